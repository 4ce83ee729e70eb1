package dto

import (
	"encoding/json"
	"journey_backend/internal/journey"
	"journey_backend/internal/model"
	"journey_backend/internal/questionnaire"
	"time"
)

type SaveAnswerRequest struct {
	QuestionID string          `json:"question_id" binding:"required"`
	AnswerText *string         `json:"answer_text"`
	AnswerJSON json.RawMessage `json:"answer_json" swaggertype:"object"`
}

type SaveAnswerResponse struct {
	QuestionID string    `json:"question_id"`
	SavedAt    time.Time `json:"saved_at"`
}

type ProgressView struct {
	questionnaire.Progress
	CanSubmit bool `json:"can_submit"`
}

// QuestionnaireView 生成未完成时 dimensions 与 documents 为空
type QuestionnaireView struct {
	AssessmentID string                    `json:"assessment_id"`
	JobState     model.JobState            `json:"job_state"`
	FormStatus   model.FormStatus          `json:"form_status"`
	Approved     bool                      `json:"approved"`
	ReadOnly     bool                      `json:"read_only"`
	Dimensions   []questionnaire.Dimension `json:"dimensions"`
	Documents    []model.DocumentRequest   `json:"documents"`
	Progress     ProgressView              `json:"progress"`
}

type JourneyView struct {
	AssessmentID string          `json:"assessment_id"`
	Current      journey.StageKey `json:"current"`
	Stages       []journey.Stage  `json:"stages"`
}
