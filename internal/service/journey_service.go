package service

import (
	"errors"
	"journey_backend/internal/dto"
	"journey_backend/internal/journey"
	"journey_backend/internal/repository"
	"journey_backend/internal/util"

	"gorm.io/gorm"
)

// JourneyService 组合各组件当前状态得到旅程视图，不落库
type JourneyService struct {
	Assessments *repository.AssessmentRepository
	Jobs        *repository.GenerationJobRepository
	Approvals   *repository.ApprovalRepository
}

func NewJourneyService(assessments *repository.AssessmentRepository, jobs *repository.GenerationJobRepository, approvals *repository.ApprovalRepository) *JourneyService {
	return &JourneyService{Assessments: assessments, Jobs: jobs, Approvals: approvals}
}

func (s *JourneyService) Get(assessmentID string) (*dto.JourneyView, error) {
	a, err := s.Assessments.FindByID(assessmentID)
	if err != nil {
		return nil, notFound(err, util.ErrAssessmentNotFound)
	}
	job, err := s.Jobs.FindByAssessment(assessmentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		job, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	approval, err := s.Approvals.Find(assessmentID)
	if err != nil {
		return nil, err
	}

	// Assessment 只在转化时创建，存在即说明已有合格报告并已转化
	converted := a.ConvertedAt
	stages := journey.Derive(journey.Input{
		ProspectCreatedAt:   a.ProspectCreatedAt,
		HasQualifyingReport: true,
		ReportDeliveredAt:   a.ReportDeliveredAt,
		Converted:           true,
		ConvertedAt:         &converted,
		Job:                 job,
		Approval:            approval,
		SubmittedAt:         a.SubmittedAt,
	})
	return &dto.JourneyView{
		AssessmentID: assessmentID,
		Current:      journey.Current(stages).Key,
		Stages:       stages,
	}, nil
}

