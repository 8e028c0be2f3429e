// Package schema describes the resource metadata the criteria engine resolves
// property paths against: scalar fields, associations between resources and
// the discriminator column of polymorphic resources.
package schema

import (
	"fmt"
	"strings"
)

// PrimitiveType represents the scalar kind of a field
type PrimitiveType int

const (
	// Text types
	TypeString PrimitiveType = iota
	TypeText

	// Numeric types
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDecimal

	// Boolean
	TypeBool

	// Time types
	TypeTimestamp
	TypeDate

	// Identifiers
	TypeUUID

	// Structured
	TypeJSON
	TypeGeo
)

// String returns the string representation of the primitive type
func (p PrimitiveType) String() string {
	switch p {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeUUID:
		return "uuid"
	case TypeJSON:
		return "json"
	case TypeGeo:
		return "geo"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType converts a string to a PrimitiveType
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch strings.ToLower(s) {
	case "string":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "int":
		return TypeInt, nil
	case "bigint":
		return TypeBigInt, nil
	case "float":
		return TypeFloat, nil
	case "decimal":
		return TypeDecimal, nil
	case "bool":
		return TypeBool, nil
	case "timestamp":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "uuid":
		return TypeUUID, nil
	case "json":
		return TypeJSON, nil
	case "geo":
		return TypeGeo, nil
	default:
		return 0, fmt.Errorf("unknown primitive type: %s", s)
	}
}

// TypeSpec represents a field type with nullability
type TypeSpec struct {
	BaseType PrimitiveType
	Nullable bool
}

// String returns a string representation of the TypeSpec
func (t *TypeSpec) String() string {
	s := t.BaseType.String()
	if t.Nullable {
		return s + "?"
	}
	return s + "!"
}

// IsNumeric returns true if the type is a numeric type
func (t *TypeSpec) IsNumeric() bool {
	return t.BaseType == TypeInt ||
		t.BaseType == TypeBigInt ||
		t.BaseType == TypeFloat ||
		t.BaseType == TypeDecimal
}

// IsText returns true if the type is a text type
func (t *TypeSpec) IsText() bool {
	return t.BaseType == TypeString || t.BaseType == TypeText
}

// IsTemporal returns true for timestamp and date types
func (t *TypeSpec) IsTemporal() bool {
	return t.BaseType == TypeTimestamp || t.BaseType == TypeDate
}

// Field represents a scalar field of a resource
type Field struct {
	Name   string
	Column string
	Type   *TypeSpec
}

// ColumnName returns the database column backing the field
func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return toSnakeCase(f.Name)
}

// RelationType represents the type of relationship
type RelationType int

const (
	RelationshipBelongsTo RelationType = iota
	RelationshipHasMany
	RelationshipHasManyThrough
	RelationshipHasOne
)

// String returns the string representation of the relationship type
func (r RelationType) String() string {
	switch r {
	case RelationshipBelongsTo:
		return "belongs_to"
	case RelationshipHasMany:
		return "has_many"
	case RelationshipHasManyThrough:
		return "has_many_through"
	case RelationshipHasOne:
		return "has_one"
	default:
		return "unknown"
	}
}

// ParseRelationType converts a string to a RelationType
func ParseRelationType(s string) (RelationType, error) {
	switch s {
	case "belongs_to":
		return RelationshipBelongsTo, nil
	case "has_many":
		return RelationshipHasMany, nil
	case "has_many_through":
		return RelationshipHasManyThrough, nil
	case "has_one":
		return RelationshipHasOne, nil
	default:
		return 0, fmt.Errorf("unknown relationship type: %s", s)
	}
}

// Relationship represents an association between resources.
//
// For belongs_to the foreign key lives on the owner; for has_one and has_many
// it lives on the target. has_many_through goes through JoinTable, where
// ForeignKey points at the owner and AssociationKey at the target.
type Relationship struct {
	Type           RelationType
	TargetResource string
	FieldName      string
	Nullable       bool

	ForeignKey string

	JoinTable      string
	AssociationKey string
}

// IsToMany reports whether following the relationship can multiply rows
func (r *Relationship) IsToMany() bool {
	return r.Type == RelationshipHasMany || r.Type == RelationshipHasManyThrough
}

// ResourceSchema represents the metadata of one resource type
type ResourceSchema struct {
	Name          string
	Documentation string

	Fields        map[string]*Field
	Relationships map[string]*Relationship

	// Discriminator is the column holding the concrete row shape of a
	// polymorphic resource. Empty for plain resources.
	Discriminator string

	// Subtypes of a polymorphic resource name their Parent and the
	// discriminator value their rows carry
	Parent             string
	DiscriminatorValue string

	// Extensions are has_one associations whose target fields resolve as
	// fields of this resource (joined-table inheritance)
	Extensions []string

	TableName  string
	PrimaryKey string
}

// NewResourceSchema creates a new ResourceSchema
func NewResourceSchema(name string) *ResourceSchema {
	return &ResourceSchema{
		Name:          name,
		Fields:        make(map[string]*Field),
		Relationships: make(map[string]*Relationship),
		TableName:     pluralize(toSnakeCase(name)),
		PrimaryKey:    "id",
	}
}

// GetPrimaryKey returns the primary key field
func (r *ResourceSchema) GetPrimaryKey() (*Field, error) {
	if field, ok := r.Fields[r.PrimaryKey]; ok {
		return field, nil
	}
	return nil, fmt.Errorf("resource %s has no primary key", r.Name)
}

// PrimaryKeyColumn returns the column of the primary key, defaulting to id
func (r *ResourceSchema) PrimaryKeyColumn() string {
	if field, err := r.GetPrimaryKey(); err == nil {
		return field.ColumnName()
	}
	return "id"
}

// HasField returns true if the resource has a field with the given name
func (r *ResourceSchema) HasField(name string) bool {
	_, exists := r.Fields[name]
	return exists
}

// HasRelationship returns true if the resource has a relationship with the given name
func (r *ResourceSchema) HasRelationship(name string) bool {
	_, exists := r.Relationships[name]
	return exists
}

// IsPolymorphic reports whether rows of the resource carry a discriminator
func (r *ResourceSchema) IsPolymorphic() bool {
	return r.Discriminator != ""
}

// IsSubtype reports whether the resource is one row shape of a polymorphic parent
func (r *ResourceSchema) IsSubtype() bool {
	return r.Parent != "" && r.DiscriminatorValue != ""
}

// toSnakeCase converts a string to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			// camelCase boundary, or the end of an acronym ("HTTPServer" -> "http_server")
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// pluralize adds simple pluralization
func pluralize(s string) string {
	if strings.HasSuffix(s, "s") ||
		strings.HasSuffix(s, "x") ||
		strings.HasSuffix(s, "z") {
		return s + "es"
	}
	if strings.HasSuffix(s, "y") {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}
