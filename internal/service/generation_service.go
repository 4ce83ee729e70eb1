package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"journey_backend/internal/config"
	"journey_backend/internal/dto"
	"journey_backend/internal/model"
	"journey_backend/internal/repository"
	"journey_backend/internal/util"
	"journey_backend/pkg/logger"
	"journey_backend/pkg/monitoring"
	"journey_backend/pkg/tracing"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const dispatchTimeout = 30 * time.Second

// GenerationService 监督外部需求生成任务：触发、状态查询、执行者回调
type GenerationService struct {
	Assessments *repository.AssessmentRepository
	Jobs        *repository.GenerationJobRepository
	Dispatcher  Dispatcher
	Approvals   *ApprovalService
	Config      *config.GenerationConfig

	now func() time.Time
	wg  sync.WaitGroup
}

func NewGenerationService(assessments *repository.AssessmentRepository, jobs *repository.GenerationJobRepository, dispatcher Dispatcher, approvals *ApprovalService, cfg *config.GenerationConfig) *GenerationService {
	return &GenerationService{
		Assessments: assessments,
		Jobs:        jobs,
		Dispatcher:  dispatcher,
		Approvals:   approvals,
		Config:      cfg,
		now:         time.Now,
	}
}

// Trigger 启动或重试生成任务，立即返回，不等待执行结果。
// not_started/failed 直接启动；running 只有 force 时才重新派发；completed 不可再触发。
func (s *GenerationService) Trigger(ctx context.Context, assessmentID, actorID string, force bool) (*model.GenerationJob, error) {
	_, span := tracing.StartSpan(ctx, "generation.trigger", assessmentID)
	defer span.End()

	a, err := s.Assessments.FindByID(assessmentID)
	if err != nil {
		return nil, notFound(err, util.ErrAssessmentNotFound)
	}
	job, err := s.Jobs.Ensure(assessmentID)
	if err != nil {
		return nil, err
	}

	var from []model.JobState
	result := "started"
	switch job.State {
	case model.JobCompleted:
		monitoring.GenerationTriggers.WithLabelValues("rejected").Inc()
		return nil, util.ErrJobNotRetryable
	case model.JobRunning:
		if !force {
			monitoring.GenerationTriggers.WithLabelValues("noop").Inc()
			return job, nil
		}
		from = []model.JobState{model.JobRunning}
		result = "forced"
	default:
		from = []model.JobState{model.JobNotStarted, model.JobFailed}
		if job.State == model.JobFailed {
			result = "retried"
		}
	}

	runID := uuid.NewString()
	started, err := s.Jobs.Start(assessmentID, from, runID, s.now())
	if err != nil {
		return nil, err
	}
	job, err = s.Jobs.FindByAssessment(assessmentID)
	if err != nil {
		return nil, err
	}
	if !started {
		// 并发触发时只有一个调用真正派发
		monitoring.GenerationTriggers.WithLabelValues("noop").Inc()
		if job.State == model.JobCompleted {
			return nil, util.ErrJobNotRetryable
		}
		return job, nil
	}
	monitoring.GenerationTriggers.WithLabelValues(result).Inc()

	logger.Log.Info("Generation job started",
		zap.String("assessment_id", assessmentID),
		zap.String("run_id", runID),
		zap.Int("attempt", job.Attempts),
		zap.Bool("force", force))

	req := GenerationRequest{
		AssessmentID: assessmentID,
		RunID:        runID,
		Attempt:      job.Attempts,
		CompanyName:  a.CompanyName,
		RequestedBy:  actorID,
		RequestedAt:  s.now(),
	}
	s.wg.Add(1)
	go s.dispatch(req)
	return job, nil
}

func (s *GenerationService) dispatch(req GenerationRequest) {
	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := s.Dispatcher.Dispatch(ctx, req); err != nil {
		logger.Log.Error("Failed to dispatch generation job",
			zap.String("assessment_id", req.AssessmentID),
			zap.String("run_id", req.RunID),
			zap.Error(err))
		detail, _ := json.Marshal(map[string]string{"node": "dispatch", "error": err.Error()})
		if ok, ferr := s.Jobs.Fail(req.AssessmentID, req.RunID, "failed to hand the job to the generator", detail, s.now()); ferr != nil {
			logger.Log.Error("Failed to record dispatch failure", zap.String("assessment_id", req.AssessmentID), zap.Error(ferr))
		} else if ok {
			monitoring.GenerationOutcomes.WithLabelValues(string(model.JobFailed)).Inc()
			s.publish(ctx, req.AssessmentID, req.RunID, model.JobFailed)
		}
		return
	}
	s.publish(ctx, req.AssessmentID, req.RunID, model.JobRunning)
}

func (s *GenerationService) publish(ctx context.Context, assessmentID, runID string, state model.JobState) {
	ev := JobEvent{AssessmentID: assessmentID, RunID: runID, State: state, At: s.now()}
	if err := s.Dispatcher.Publish(ctx, ev); err != nil {
		logger.Log.Warn("Failed to publish job event",
			zap.String("assessment_id", assessmentID),
			zap.String("state", string(state)),
			zap.Error(err))
	}
}

// Status 返回任务当前状态；运行超过阈值时标记 taking_longer，仅作提示
func (s *GenerationService) Status(assessmentID string) (*dto.JobStatus, error) {
	if _, err := s.Assessments.FindByID(assessmentID); err != nil {
		return nil, notFound(err, util.ErrAssessmentNotFound)
	}
	job, err := s.Jobs.Current(assessmentID)
	if err != nil {
		return nil, err
	}
	st := &dto.JobStatus{GenerationJob: job}
	if job.State == model.JobRunning {
		elapsed := job.Elapsed(s.now())
		st.ElapsedSeconds = int64(elapsed / time.Second)
		st.TakingLonger = s.Config.StaleAfter() > 0 && elapsed > s.Config.StaleAfter()
	}
	return st, nil
}

// Complete 执行者回调：写入生成结果并置为 completed
func (s *GenerationService) Complete(ctx context.Context, assessmentID string, req dto.CompleteRequest) (*model.GenerationJob, error) {
	ctx, span := tracing.StartSpan(ctx, "generation.complete", assessmentID)
	defer span.End()

	questions := make([]model.DiscoveryQuestion, 0, len(req.Questions))
	for i, gq := range req.Questions {
		q, err := questionFromGenerated(gq)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		questions = append(questions, q)
	}
	requests := make([]model.DocumentRequest, 0, len(req.Documents))
	for _, gd := range req.Documents {
		requests = append(requests, requestFromGenerated(gd))
	}

	job, err := s.Jobs.Complete(assessmentID, req.RunID, questions, requests, s.now())
	if errors.Is(err, repository.ErrRunMismatch) {
		return nil, util.ErrStaleRun
	}
	if err != nil {
		return nil, err
	}
	monitoring.GenerationOutcomes.WithLabelValues(string(model.JobCompleted)).Inc()
	logger.Log.Info("Generation job completed",
		zap.String("assessment_id", assessmentID),
		zap.String("run_id", req.RunID),
		zap.Int("questions", job.QuestionsCount),
		zap.Int("documents", job.DocumentsCount))
	s.publish(ctx, assessmentID, req.RunID, model.JobCompleted)

	if s.Config.AutoApprove && s.Approvals != nil {
		if _, err := s.Approvals.Approve(ctx, assessmentID, model.AutoApprover); err != nil && !errors.Is(err, util.ErrAlreadyApproved) {
			logger.Log.Warn("Auto approval failed", zap.String("assessment_id", assessmentID), zap.Error(err))
		}
	}
	return job, nil
}

// Fail 执行者回调：记录失败原因，不自动重试
func (s *GenerationService) Fail(ctx context.Context, assessmentID string, req dto.FailRequest) (*model.GenerationJob, error) {
	ctx, span := tracing.StartSpan(ctx, "generation.fail", assessmentID)
	defer span.End()

	msg := strings.TrimSpace(req.Error)
	if msg == "" {
		return nil, util.ErrJobErrorRequired
	}
	var detail datatypes.JSON
	if len(req.ErrorDetail) > 0 && string(req.ErrorDetail) != "null" {
		detail = datatypes.JSON(req.ErrorDetail)
	}
	ok, err := s.Jobs.Fail(assessmentID, req.RunID, msg, detail, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrStaleRun
	}
	monitoring.GenerationOutcomes.WithLabelValues(string(model.JobFailed)).Inc()
	logger.Log.Warn("Generation job failed",
		zap.String("assessment_id", assessmentID),
		zap.String("run_id", req.RunID),
		zap.String("error", msg))
	s.publish(ctx, assessmentID, req.RunID, model.JobFailed)
	return s.Jobs.FindByAssessment(assessmentID)
}

// Wait 等待正在进行的派发
func (s *GenerationService) Wait() {
	s.wg.Wait()
}

func questionFromGenerated(gq dto.GeneratedQuestion) (model.DiscoveryQuestion, error) {
	if !gq.AnswerFormat.Valid() {
		return model.DiscoveryQuestion{}, fmt.Errorf("%w: unknown answer format %q", util.ErrInvalidAnswer, gq.AnswerFormat)
	}
	q := model.DiscoveryQuestion{
		DimensionKey:     gq.DimensionKey,
		DimensionName:    gq.DimensionName,
		Prompt:           gq.QuestionText,
		ContextNote:      gq.Context,
		AnswerFormat:     gq.AnswerFormat,
		IsRequired:       gq.IsRequired,
		ConfidenceImpact: gq.ConfidenceImpact,
		DisplayOrder:     gq.DisplayOrder,
		EvidenceType:     gq.EvidenceType,
	}
	if len(gq.Options) > 0 {
		q.Options, _ = json.Marshal(gq.Options)
	}
	return q, nil
}

func requestFromGenerated(gd dto.GeneratedDocument) model.DocumentRequest {
	r := model.DocumentRequest{
		DimensionKey:     gd.DimensionKey,
		DimensionName:    gd.DimensionName,
		DocumentType:     gd.DocumentType,
		Reason:           gd.WhyNeeded,
		IsRequired:       gd.IsRequired,
		ConfidenceImpact: gd.ConfidenceImpact,
		DisplayOrder:     gd.DisplayOrder,
	}
	if len(gd.AcceptedFormats) > 0 {
		r.AcceptedFormats, _ = json.Marshal(gd.AcceptedFormats)
	}
	if len(gd.ExampleFilenames) > 0 {
		r.ExampleFilenames, _ = json.Marshal(gd.ExampleFilenames)
	}
	return r
}
