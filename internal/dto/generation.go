package dto

import (
	"encoding/json"
	"journey_backend/internal/model"
)

// JobStatus 任务状态及运行时长
type JobStatus struct {
	*model.GenerationJob
	ElapsedSeconds int64 `json:"elapsed_seconds"`
	TakingLonger   bool  `json:"taking_longer"`
}

type TriggerRequest struct {
	Force bool `json:"force"`
}

// GeneratedQuestion 执行者回传的问题
type GeneratedQuestion struct {
	DimensionKey     string             `json:"dimension_key" binding:"required"`
	DimensionName    string             `json:"dimension_name"`
	QuestionText     string             `json:"question_text" binding:"required"`
	Context          string             `json:"context"`
	AnswerFormat     model.AnswerFormat `json:"answer_format" binding:"required"`
	Options          []string           `json:"options"`
	IsRequired       bool               `json:"is_required"`
	ConfidenceImpact model.ImpactTier   `json:"confidence_impact"`
	DisplayOrder     int                `json:"display_order"`
	EvidenceType     string             `json:"evidence_type"`
}

// GeneratedDocument 执行者回传的文档需求
type GeneratedDocument struct {
	DimensionKey     string           `json:"dimension_key"`
	DimensionName    string           `json:"dimension_name"`
	DocumentType     string           `json:"document_type" binding:"required"`
	WhyNeeded        string           `json:"why_needed"`
	AcceptedFormats  []string         `json:"accepted_formats"`
	ExampleFilenames []string         `json:"example_filenames"`
	IsRequired       bool             `json:"is_required"`
	ConfidenceImpact model.ImpactTier `json:"confidence_impact"`
	DisplayOrder     int              `json:"display_order"`
}

type CompleteRequest struct {
	RunID     string              `json:"run_id" binding:"required"`
	Questions []GeneratedQuestion `json:"questions" binding:"dive"`
	Documents []GeneratedDocument `json:"documents" binding:"dive"`
}

type FailRequest struct {
	RunID       string          `json:"run_id" binding:"required"`
	Error       string          `json:"error"`
	ErrorDetail json.RawMessage `json:"error_detail" swaggertype:"object"`
}
