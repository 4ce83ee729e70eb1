package service

import (
	"journey_backend/internal/dto"
	"journey_backend/internal/model"
	"journey_backend/internal/repository"
	"journey_backend/internal/util"
	"journey_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AssessmentService struct {
	Repo      *repository.AssessmentRepository
	Jobs      *repository.GenerationJobRepository
	Approvals *repository.ApprovalRepository
}

func NewAssessmentService(repo *repository.AssessmentRepository, jobs *repository.GenerationJobRepository, approvals *repository.ApprovalRepository) *AssessmentService {
	return &AssessmentService{Repo: repo, Jobs: jobs, Approvals: approvals}
}

// Create 同时创建 not_started 的生成任务
func (s *AssessmentService) Create(req dto.CreateAssessmentRequest) (*model.Assessment, error) {
	a := &model.Assessment{
		ProspectID:        req.ProspectID,
		CompanyName:       req.CompanyName,
		ContactName:       req.ContactName,
		ContactEmail:      req.ContactEmail,
		ProspectCreatedAt: req.ProspectCreatedAt,
		ReportDeliveredAt: req.ReportDeliveredAt,
		ConvertedAt:       time.Now(),
	}
	err := s.Repo.DB.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewAssessmentRepository(tx).Create(a); err != nil {
			return err
		}
		return repository.NewGenerationJobRepository(tx).Create(&model.GenerationJob{
			AssessmentID: a.ID,
			State:        model.JobNotStarted,
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Assessment created",
		zap.String("assessment_id", a.ID),
		zap.String("company", a.CompanyName))
	return a, nil
}

func (s *AssessmentService) Get(id string) (*dto.AssessmentView, error) {
	a, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, notFound(err, util.ErrAssessmentNotFound)
	}
	job, err := s.Jobs.Current(id)
	if err != nil {
		return nil, err
	}
	approval, err := s.Approvals.Find(id)
	if err != nil {
		return nil, err
	}
	return &dto.AssessmentView{
		Assessment: a,
		FormStatus: model.DeriveFormStatus(a, approval),
		JobState:   job.State,
		Approved:   approval != nil,
	}, nil
}

func (s *AssessmentService) List(page, limit int) ([]model.Assessment, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.Repo.List(page, limit)
}
