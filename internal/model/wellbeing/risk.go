package wellbeing

import (
	"encoding/json"
	"strings"
)

// RiskSet is an ordered set of lower-case risk tags.
type RiskSet []string

// NewRiskSet trims and lower-cases tags, dropping empties and duplicates.
// The first occurrence keeps its position. The result is never nil.
func NewRiskSet(tags ...string) RiskSet {
	set := make(RiskSet, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		set = append(set, tag)
	}
	return set
}

// Union returns a new set holding s followed by any tags of other not yet in s.
func (s RiskSet) Union(other ...string) RiskSet {
	merged := make([]string, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return NewRiskSet(merged...)
}

// Contains reports whether tag (case-insensitive) is in the set.
func (s RiskSet) Contains(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range s {
		if t == tag {
			return true
		}
	}
	return false
}

// MarshalJSON encodes a nil set as [] rather than null.
func (s RiskSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}
