// Package dto 定义 HTTP 接口的请求与响应结构，服务端与控制台客户端共用
package dto

import (
	"journey_backend/internal/model"
	"time"
)

// CreateAssessmentRequest 潜在客户转化时创建
type CreateAssessmentRequest struct {
	ProspectID        string     `json:"prospect_id"`
	CompanyName       string     `json:"company_name" binding:"required"`
	ContactName       string     `json:"contact_name"`
	ContactEmail      string     `json:"contact_email" binding:"omitempty,email"`
	ProspectCreatedAt *time.Time `json:"prospect_created_at"`
	ReportDeliveredAt *time.Time `json:"report_delivered_at"`
}

// AssessmentView 附带派生的问卷状态
type AssessmentView struct {
	*model.Assessment
	FormStatus model.FormStatus `json:"form_status"`
	JobState   model.JobState   `json:"job_state"`
	Approved   bool             `json:"approved"`
}
