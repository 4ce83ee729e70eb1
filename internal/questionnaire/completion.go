package questionnaire

import "journey_backend/internal/model"

// Progress summarizes required-question completion across all dimensions.
type Progress struct {
	AnsweredRequired int      `json:"answered_required"`
	TotalRequired    int      `json:"total_required"`
	Missing          []string `json:"missing_question_ids,omitempty"`
}

// Complete reports whether every required question is answered.
func (p Progress) Complete() bool {
	return p.AnsweredRequired == p.TotalRequired
}

// AnsweredFunc tells whether a question currently has an answer.
type AnsweredFunc func(q *model.DiscoveryQuestion) bool

// StoredAnswer uses the answer attached to the question row.
func StoredAnswer(q *model.DiscoveryQuestion) bool {
	return q.Answer.IsAnswered()
}

func RequiredProgress(questions []model.DiscoveryQuestion, answered AnsweredFunc) Progress {
	var p Progress
	for i := range questions {
		q := &questions[i]
		if !q.IsRequired {
			continue
		}
		p.TotalRequired++
		if answered(q) {
			p.AnsweredRequired++
		} else {
			p.Missing = append(p.Missing, q.ID)
		}
	}
	return p
}
