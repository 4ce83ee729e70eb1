package model

import "time"

// AutoApprover 自动审批时记录的审批人
const AutoApprover = "auto"

// ApprovalRecord 单向锁存，设置后不可清除
// swagger:model ApprovalRecord
type ApprovalRecord struct {
	UUIDBase
	AssessmentID string    `gorm:"uniqueIndex;type:varchar(36);not null" json:"assessment_id"`
	ApprovedBy   string    `gorm:"size:255;not null" json:"approved_by"`
	ApprovedAt   time.Time `json:"approved_at"`
}

func (ApprovalRecord) TableName() string {
	return "approval_records"
}
