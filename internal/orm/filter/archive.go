package filter

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/conduit-lang/criteria/internal/orm/query"
)

var (
	archiveDay   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	archiveMonth = regexp.MustCompile(`^\d{4}-\d{2}$`)
	archiveYear  = regexp.MustCompile(`^\d{4}$`)

	errArchiveFormat = errors.New("archive expects YYYY, YYYY-MM or YYYY-MM-DD")
)

// ArchiveRule turns field[archive] = "YYYY" | "YYYY-MM" | "YYYY-MM-DD" into
// a date window on field
type ArchiveRule struct{}

// Name returns the rule name
func (ArchiveRule) Name() string { return "archive" }

// Subscriptions returns the rule priorities
func (ArchiveRule) Subscriptions() map[Event]int {
	return map[Event]int{EventFilter: 30}
}

// Apply claims any property whose value is a map holding "archive", except
// the not and intersect bags, where "archive" is a field name
func (ArchiveRule) Apply(c *Compilation, _ Event, crit *Criterion) (Outcome, error) {
	if !crit.Value.IsMap() || isBag(crit.Property) {
		return NotClaimed, nil
	}
	raw, ok := crit.Value.Get("archive")
	if !ok {
		return NotClaimed, nil
	}
	if crit.Value.Len() != 1 {
		return NotClaimed, malformed(crit, "archive cannot be combined with other operators")
	}

	token, ok := raw.AsString()
	if !ok {
		return NotClaimed, malformed(crit, "archive expects YYYY, YYYY-MM or YYYY-MM-DD")
	}
	start, end, err := ArchiveWindow(token, c.Now)
	if err != nil {
		return NotClaimed, &MalformedValueError{Property: crit.Property, Value: crit.Value, Reason: err.Error()}
	}

	path, err := c.Resolve(crit, crit.Property)
	if err != nil {
		return NotClaimed, err
	}
	if field := path.TargetField(); field == nil || !field.Type.IsTemporal() {
		return NotClaimed, malformed(crit, "archive needs a timestamp or date field")
	}
	alias, column, err := c.Query.JoinPath(crit.Alias, path, query.InnerJoin, false)
	if err != nil {
		return NotClaimed, err
	}

	c.Query.Where(c.Query.Compare(alias, column, query.OpIsNotNull))
	c.Query.Where(c.Query.Compare(alias, column, query.OpBetween, start, end))
	return Claimed, nil
}

// ArchiveWindow returns the inclusive window of a day, month or year token
// evaluated at now. A window still running ends at now; a past one ends one
// second before the next period starts.
func ArchiveWindow(token string, now time.Time) (time.Time, time.Time, error) {
	loc := now.Location()

	var (
		start time.Time
		end   time.Time
		err   error
	)
	switch {
	case archiveDay.MatchString(token):
		start, err = time.ParseInLocation("2006-01-02", token, loc)
		end = start.AddDate(0, 0, 1)
	case archiveMonth.MatchString(token):
		start, err = time.ParseInLocation("2006-01", token, loc)
		end = start.AddDate(0, 1, 0)
	case archiveYear.MatchString(token):
		start, err = time.ParseInLocation("2006", token, loc)
		end = start.AddDate(1, 0, 0)
	default:
		return time.Time{}, time.Time{}, errArchiveFormat
	}
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("archive date out of range: %s", token)
	}

	if end.After(now) {
		end = now
	} else {
		end = end.Add(-time.Second)
	}
	return start, end, nil
}
