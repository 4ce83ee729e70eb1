package service

import (
	"context"
	"errors"
	"journey_backend/internal/model"
	"journey_backend/internal/repository"
	"journey_backend/internal/util"
	"journey_backend/pkg/logger"
	"journey_backend/pkg/tracing"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApprovalService 审批门：生成完成后由管理员审批一次，审批后客户才能编辑
type ApprovalService struct {
	Assessments *repository.AssessmentRepository
	Jobs        *repository.GenerationJobRepository
	Approvals   *repository.ApprovalRepository
	Notifier    ApprovalNotifier

	now func() time.Time
	wg  sync.WaitGroup
}

func NewApprovalService(assessments *repository.AssessmentRepository, jobs *repository.GenerationJobRepository, approvals *repository.ApprovalRepository, notifier ApprovalNotifier) *ApprovalService {
	return &ApprovalService{
		Assessments: assessments,
		Jobs:        jobs,
		Approvals:   approvals,
		Notifier:    notifier,
		now:         time.Now,
	}
}

func (s *ApprovalService) Approve(ctx context.Context, assessmentID, approverID string) (*model.ApprovalRecord, error) {
	_, span := tracing.StartSpan(ctx, "approval.approve", assessmentID)
	defer span.End()

	a, err := s.Assessments.FindByID(assessmentID)
	if err != nil {
		return nil, notFound(err, util.ErrAssessmentNotFound)
	}
	job, err := s.Jobs.FindByAssessment(assessmentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil || job.State != model.JobCompleted {
		return nil, util.ErrJobNotCompleted
	}

	rec := &model.ApprovalRecord{
		AssessmentID: assessmentID,
		ApprovedBy:   approverID,
		ApprovedAt:   s.now(),
	}
	created, err := s.Approvals.Create(rec)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, util.ErrAlreadyApproved
	}

	logger.Log.Info("Assessment approved",
		zap.String("assessment_id", assessmentID),
		zap.String("approved_by", approverID))

	if s.Notifier != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.Notifier.NotifyApproved(a, rec); err != nil {
				logger.Log.Warn("Failed to send approval email",
					zap.String("assessment_id", assessmentID),
					zap.Error(err))
			}
		}()
	}
	return rec, nil
}

// Find 未审批时返回 nil
func (s *ApprovalService) Find(assessmentID string) (*model.ApprovalRecord, error) {
	return s.Approvals.Find(assessmentID)
}

// Wait 等待尚未发出的通知，用于关停与测试
func (s *ApprovalService) Wait() {
	s.wg.Wait()
}

// notFound 把 gorm 的未找到映射为领域错误
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
