// Package questionnaire holds the rules shared by the server and by the
// client-side form engine: dimension discovery, required-field completion
// and read-only composition.
package questionnaire

import "journey_backend/internal/model"

// Dimension is a group of questions discovered from the question set.
type Dimension struct {
	Key       string                    `json:"key"`
	Name      string                    `json:"name"`
	Questions []model.DiscoveryQuestion `json:"questions"`
}

// GroupByDimension groups questions by dimension_key. Group order is the
// order of first occurrence; question order inside a group follows the input.
// The first non-empty display name seen for a key wins.
func GroupByDimension(questions []model.DiscoveryQuestion) []Dimension {
	index := make(map[string]int)
	var groups []Dimension
	for _, q := range questions {
		i, ok := index[q.DimensionKey]
		if !ok {
			i = len(groups)
			index[q.DimensionKey] = i
			groups = append(groups, Dimension{Key: q.DimensionKey, Name: q.DimensionName})
		}
		if groups[i].Name == "" {
			groups[i].Name = q.DimensionName
		}
		groups[i].Questions = append(groups[i].Questions, q)
	}
	return groups
}
