package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// GroupIndex is the ordered list of child-level chunk indices a coarser chunk summarizes.
// It serializes to a JSON array; Encode/ParseGroupIndex give a comma-delimited text form.
type GroupIndex []int

// Range returns the contiguous group [start, end).
func Range(start, end int) GroupIndex {
	if end <= start {
		return nil
	}
	g := make(GroupIndex, 0, end-start)
	for i := start; i < end; i++ {
		g = append(g, i)
	}
	return g
}

// Encode renders the group as "0,1,2". An empty group encodes as "".
func (g GroupIndex) Encode() string {
	if len(g) == 0 {
		return ""
	}
	parts := make([]string, len(g))
	for i, v := range g {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ParseGroupIndex decodes the Encode form. Only non-negative decimal integers
// separated by single commas are accepted.
func ParseGroupIndex(s string) (GroupIndex, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	g := make(GroupIndex, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("group index %q: empty element", s)
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return nil, fmt.Errorf("group index %q: invalid element %q", s, p)
			}
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("group index %q: %w", s, err)
		}
		g = append(g, v)
	}
	return g, nil
}
