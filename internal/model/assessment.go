package model

import (
	"time"
)

// FormStatus 需求问卷提交状态（派生，不单独持久化）
type FormStatus string

const (
	FormDraft     FormStatus = "draft"
	FormInReview  FormStatus = "in_review"
	FormCompleted FormStatus = "completed"
)

// Assessment 一次客户合作的范围标识，客户转化时创建
// swagger:model Assessment
type Assessment struct {
	UUIDBase
	ProspectID        string     `gorm:"size:64;index" json:"prospect_id"`
	CompanyName       string     `gorm:"size:255;not null" json:"company_name"`
	ContactName       string     `gorm:"size:255" json:"contact_name"`
	ContactEmail      string     `gorm:"size:255" json:"contact_email"`
	ProspectCreatedAt *time.Time `json:"prospect_created_at,omitempty"`
	ReportDeliveredAt *time.Time `json:"report_delivered_at,omitempty"`
	ConvertedAt       time.Time  `json:"converted_at"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
	SubmittedBy       string     `gorm:"size:64" json:"submitted_by,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// Submitted 客户提交后问卷进入终态
func (a *Assessment) Submitted() bool {
	return a.SubmittedAt != nil
}

// DeriveFormStatus completed 为终态；审批后进入 in_review；否则为 draft
func DeriveFormStatus(a *Assessment, approval *ApprovalRecord) FormStatus {
	switch {
	case a != nil && a.Submitted():
		return FormCompleted
	case approval != nil:
		return FormInReview
	default:
		return FormDraft
	}
}
