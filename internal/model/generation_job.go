package model

import (
	"time"

	"gorm.io/datatypes"
)

// JobState 需求生成任务状态
type JobState string

const (
	JobNotStarted JobState = "not_started"
	JobRunning    JobState = "running"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// GenerationJob 每个 Assessment 一条，由外部进程执行
// swagger:model GenerationJob
type GenerationJob struct {
	UUIDBase
	AssessmentID   string         `gorm:"uniqueIndex;type:varchar(36);not null" json:"assessment_id"`
	State          JobState       `gorm:"size:20;not null;default:'not_started'" json:"state"`
	RunID          string         `gorm:"size:36" json:"run_id,omitempty"`
	Attempts       int            `gorm:"default:0" json:"attempts"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage   string         `gorm:"type:text" json:"error,omitempty"`
	ErrorDetail    datatypes.JSON `json:"error_detail,omitempty"`
	QuestionsCount int            `gorm:"default:0" json:"questions_count"`
	DocumentsCount int            `gorm:"default:0" json:"documents_count"`
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}

// Elapsed 自 started_at 起经过的时间；未开始时为 0
func (j *GenerationJob) Elapsed(now time.Time) time.Duration {
	if j == nil || j.StartedAt == nil {
		return 0
	}
	return now.Sub(*j.StartedAt)
}
