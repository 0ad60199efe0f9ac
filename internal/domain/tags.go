package domain

import "strings"

// ParseTagList splits a comma-delimited tag list into trimmed, lower-cased, unique names
// preserving first occurrence order.
func ParseTagList(tagList string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, part := range strings.Split(tagList, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// JoinTagList renders tag names back into the canonical list form.
func JoinTagList(names []string) string {
	return strings.Join(names, ",")
}
