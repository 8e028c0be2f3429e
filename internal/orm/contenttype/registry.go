// Package contenttype holds the registry of user-defined content types.
//
// Each content type is a RowShape: the discriminator value stored on rows of
// a polymorphic resource, plus flags such as reachability. Snapshots are
// immutable; a reload builds a new snapshot and swaps it in atomically so a
// compilation in flight always sees one consistent version.
package contenttype

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrUnknownContentType is returned when a logical content-type name is not registered
var ErrUnknownContentType = errors.New("unknown content type")

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldSpec describes one field of a content type
type FieldSpec struct {
	Name       string `mapstructure:"name" validate:"required"`
	Searchable bool   `mapstructure:"searchable"`
	Boolean    bool   `mapstructure:"boolean"`
	Numeric    bool   `mapstructure:"numeric"`
	Date       bool   `mapstructure:"date"`
	Geo        bool   `mapstructure:"geo"`
}

// RowShape is the concrete row shape of one content type. Table holds the
// content type's own fields, keyed by the id of the parent row. Resource
// names the polymorphic resource the rows belong to; it may be left empty
// when the schema has a single one.
type RowShape struct {
	Name          string      `mapstructure:"name" validate:"required"`
	Discriminator string      `mapstructure:"discriminator" validate:"required"`
	Table         string      `mapstructure:"table"`
	Resource      string      `mapstructure:"resource"`
	Reachable     bool        `mapstructure:"reachable"`
	Fields        []FieldSpec `mapstructure:"fields" validate:"dive"`
}

// SearchableFields returns the names of the searchable fields in declaration order
func (s RowShape) SearchableFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Searchable {
			names = append(names, f.Name)
		}
	}
	return names
}

// Predicate selects row shapes
type Predicate func(RowShape) bool

// Reachable selects shapes whose reachable flag equals b
func Reachable(b bool) Predicate {
	return func(s RowShape) bool { return s.Reachable == b }
}

// Snapshot is an immutable, ordered set of row shapes
type Snapshot struct {
	version uint64
	shapes  []RowShape
	byName  map[string]int
}

// NewSnapshot validates shapes and builds a snapshot. Names and
// discriminators must be unique.
func NewSnapshot(shapes []RowShape) (*Snapshot, error) {
	s := &Snapshot{
		shapes: make([]RowShape, len(shapes)),
		byName: make(map[string]int, len(shapes)),
	}
	copy(s.shapes, shapes)

	discriminators := make(map[string]string, len(shapes))
	for i, shape := range s.shapes {
		if err := validate.Struct(shape); err != nil {
			return nil, fmt.Errorf("invalid content type #%d (%q): %w", i, shape.Name, err)
		}
		if _, dup := s.byName[shape.Name]; dup {
			return nil, fmt.Errorf("content type %s is declared twice", shape.Name)
		}
		if other, dup := discriminators[shape.Discriminator]; dup {
			return nil, fmt.Errorf("content types %s and %s share discriminator %q", other, shape.Name, shape.Discriminator)
		}
		s.byName[shape.Name] = i
		discriminators[shape.Discriminator] = shape.Name
	}
	return s, nil
}

// Version returns the registry version the snapshot was published as
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Len returns the number of row shapes
func (s *Snapshot) Len() int {
	return len(s.shapes)
}

// All returns a copy of all row shapes in declaration order
func (s *Snapshot) All() []RowShape {
	out := make([]RowShape, len(s.shapes))
	copy(out, s.shapes)
	return out
}

// RowShapeFor returns the row shape of a logical content-type name
func (s *Snapshot) RowShapeFor(name string) (RowShape, error) {
	i, ok := s.byName[name]
	if !ok {
		return RowShape{}, fmt.Errorf("%w: %s", ErrUnknownContentType, name)
	}
	return s.shapes[i], nil
}

// SubtypesMatching returns the row shapes selected by pred, in declaration order
func (s *Snapshot) SubtypesMatching(pred Predicate) []RowShape {
	out := make([]RowShape, 0, len(s.shapes))
	for _, shape := range s.shapes {
		if pred(shape) {
			out = append(out, shape)
		}
	}
	return out
}

// Registry publishes the current snapshot
type Registry struct {
	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64
	logger  *zap.Logger
}

// NewRegistry creates a registry serving initial
func NewRegistry(initial *Snapshot, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{logger: logger}
	if initial == nil {
		initial, _ = NewSnapshot(nil)
	}
	r.Swap(initial)
	return r
}

// Snapshot returns the current snapshot. Callers keep using the returned
// value for the whole compilation.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Swap publishes next as the current snapshot. The registry takes ownership
// of next; it must not be published elsewhere.
func (r *Registry) Swap(next *Snapshot) {
	next.version = r.seq.Add(1)
	r.current.Store(next)
	r.logger.Info("content types published",
		zap.Uint64("version", next.version),
		zap.Int("content_types", next.Len()))
}
