package criteria

import "strings"

// TagGroups normalizes a tag-group value into groups of tag names. Groups
// are ANDed, names within a group are ORed.
//
//	"a, b"            -> [[a b]]
//	["a,b", "c"]      -> [[a b] [c]]
//	[["a","b"],["c"]] -> [[a b] [c]]
//	{x: "a,b", y: [c]} -> [[a b] [c]]  (sorted by key)
//
// Empty names are dropped. An empty group is kept as an empty slice so the
// caller can treat it as unsatisfiable; a blank string yields no groups.
// ok is false for any other shape.
func TagGroups(v Value) (groups [][]string, ok bool) {
	switch v.kind {
	case KindScalar:
		s, ok := v.scalar.(string)
		if !ok {
			return nil, false
		}
		names := splitNames(s)
		if len(names) == 0 {
			return nil, true
		}
		return [][]string{names}, true

	case KindList:
		for _, item := range v.list {
			group, ok := groupOf(item)
			if !ok {
				return nil, false
			}
			groups = appendGroup(groups, group)
		}
		return groups, true

	case KindMap:
		for _, k := range v.Keys() {
			group, ok := groupOf(v.fields[k])
			if !ok {
				return nil, false
			}
			groups = appendGroup(groups, group)
		}
		return groups, true

	default:
		return nil, false
	}
}

// groupOf reads one group: a comma-separated string or a list of strings
func groupOf(v Value) ([]string, bool) {
	switch v.kind {
	case KindScalar:
		s, ok := v.scalar.(string)
		if !ok {
			return nil, false
		}
		return splitNames(s), true
	case KindList:
		var names []string
		for _, item := range v.list {
			s, ok := item.scalar.(string)
			if item.kind != KindScalar || !ok {
				return nil, false
			}
			names = append(names, splitNames(s)...)
		}
		return names, true
	default:
		return nil, false
	}
}

func splitNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func appendGroup(groups [][]string, group []string) [][]string {
	if group == nil {
		group = []string{}
	}
	return append(groups, group)
}
