// Package journey derives the lifecycle view of an engagement from the state of
// its generation job, approval and submission. Nothing here is persisted.
package journey

import (
	"journey_backend/internal/model"
	"time"
)

// StageStatus 阶段状态
type StageStatus string

const (
	StatusCompleted StageStatus = "completed"
	StatusActive    StageStatus = "active"
	StatusUpcoming  StageStatus = "upcoming"
	StatusLocked    StageStatus = "locked"
)

// StageKey 阶段标识
type StageKey string

const (
	StageProspect             StageKey = "prospect"
	StageQualified            StageKey = "qualified"
	StageReportDelivered      StageKey = "report_delivered"
	StageConverted            StageKey = "converted"
	StageRequirements         StageKey = "requirements_generated"
	StageApproved             StageKey = "approved"
	StageSubmitted            StageKey = "submitted"
	StageRoadmapDelivered     StageKey = "roadmap_delivered"
	StageFinalReportDelivered StageKey = "final_report_delivered"
)

var labels = map[StageKey]string{
	StageProspect:             "Prospect",
	StageQualified:            "Qualified",
	StageReportDelivered:      "Report delivered",
	StageConverted:            "Converted to customer",
	StageRequirements:         "Requirements generated",
	StageApproved:             "Requirements approved",
	StageSubmitted:            "Requirements submitted",
	StageRoadmapDelivered:     "Roadmap delivered",
	StageFinalReportDelivered: "Final report delivered",
}

// Stage 旅程中的一个阶段
type Stage struct {
	Key            StageKey    `json:"key"`
	Label          string      `json:"label"`
	Status         StageStatus `json:"status"`
	At             *time.Time  `json:"at,omitempty"`
	NeedsAttention bool        `json:"needs_attention,omitempty"`
}

// Input 推导所需的全部状态
type Input struct {
	ProspectCreatedAt   *time.Time
	HasQualifyingReport bool
	ReportDeliveredAt   *time.Time
	Converted           bool
	ConvertedAt         *time.Time
	Job                 *model.GenerationJob
	Approval            *model.ApprovalRecord
	SubmittedAt         *time.Time
}

// Derive returns the stages in lifecycle order. A stage whose predecessor is
// not completed is locked regardless of its own state.
func Derive(in Input) []Stage {
	stages := []Stage{
		prospect(in),
		qualified(in),
		reportDelivered(in),
		converted(in),
		requirements(in),
		approved(in),
		submitted(in),
		{Key: StageRoadmapDelivered, Status: StatusLocked},
		{Key: StageFinalReportDelivered, Status: StatusLocked},
	}
	for i := range stages {
		stages[i].Label = labels[stages[i].Key]
		if i > 0 && stages[i-1].Status != StatusCompleted {
			stages[i].Status = StatusLocked
			stages[i].NeedsAttention = false
		}
		if stages[i].Status == StatusLocked {
			stages[i].At = nil
		}
	}
	return stages
}

// Current returns the first stage that is not completed, or the last stage
// when everything is done.
func Current(stages []Stage) Stage {
	for _, s := range stages {
		if s.Status != StatusCompleted {
			return s
		}
	}
	if len(stages) == 0 {
		return Stage{}
	}
	return stages[len(stages)-1]
}

func prospect(in Input) Stage {
	return Stage{Key: StageProspect, Status: StatusCompleted, At: in.ProspectCreatedAt}
}

func qualified(in Input) Stage {
	if in.HasQualifyingReport || in.Converted {
		return Stage{Key: StageQualified, Status: StatusCompleted}
	}
	return Stage{Key: StageQualified, Status: StatusUpcoming}
}

// 转化即意味着报告已交付
func reportDelivered(in Input) Stage {
	if in.ReportDeliveredAt != nil || in.Converted {
		return Stage{Key: StageReportDelivered, Status: StatusCompleted, At: in.ReportDeliveredAt}
	}
	return Stage{Key: StageReportDelivered, Status: StatusUpcoming}
}

func converted(in Input) Stage {
	if in.Converted {
		return Stage{Key: StageConverted, Status: StatusCompleted, At: in.ConvertedAt}
	}
	return Stage{Key: StageConverted, Status: StatusUpcoming}
}

// 失败的任务显示为进行中并提示处理，因为总可以重试
func requirements(in Input) Stage {
	s := Stage{Key: StageRequirements, Status: StatusUpcoming}
	if in.Job == nil {
		return s
	}
	switch in.Job.State {
	case model.JobRunning:
		s.Status = StatusActive
		s.At = in.Job.StartedAt
	case model.JobFailed:
		s.Status = StatusActive
		s.NeedsAttention = true
		s.At = in.Job.StartedAt
	case model.JobCompleted:
		s.Status = StatusCompleted
		s.At = in.Job.CompletedAt
	}
	return s
}

func approved(in Input) Stage {
	if in.Approval != nil {
		at := in.Approval.ApprovedAt
		return Stage{Key: StageApproved, Status: StatusCompleted, At: &at}
	}
	if in.Job != nil && in.Job.State == model.JobCompleted {
		return Stage{Key: StageApproved, Status: StatusUpcoming}
	}
	return Stage{Key: StageApproved, Status: StatusLocked}
}

func submitted(in Input) Stage {
	if in.SubmittedAt != nil {
		return Stage{Key: StageSubmitted, Status: StatusCompleted, At: in.SubmittedAt}
	}
	if in.Approval != nil {
		return Stage{Key: StageSubmitted, Status: StatusUpcoming}
	}
	return Stage{Key: StageSubmitted, Status: StatusLocked}
}
