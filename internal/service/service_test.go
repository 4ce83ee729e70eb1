package service

import (
	"context"
	"errors"
	"journey_backend/internal/config"
	"journey_backend/internal/dto"
	"journey_backend/internal/model"
	"journey_backend/internal/repository"
	"journey_backend/internal/testutil"
	"sync"
	"testing"

	"gorm.io/gorm"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	requests []GenerationRequest
	events   []JobEvent
	err      error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, req GenerationRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	return d.err
}

func (d *fakeDispatcher) Publish(_ context.Context, ev JobEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

func (d *fakeDispatcher) dispatched() []GenerationRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]GenerationRequest(nil), d.requests...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) NotifyApproved(a *model.Assessment, _ *model.ApprovalRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, a.ID)
	return nil
}

type env struct {
	db            *gorm.DB
	dispatcher    *fakeDispatcher
	notifier      *fakeNotifier
	genCfg        *config.GenerationConfig
	assessments   *AssessmentService
	generation    *GenerationService
	approvals     *ApprovalService
	questionnaire *QuestionnaireService
	documents     *DocumentService
	journey       *JourneyService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	assessRepo := repository.NewAssessmentRepository(db)
	jobRepo := repository.NewGenerationJobRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	docRepo := repository.NewDocumentRepository(db)

	cfg := &config.Config{}
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()
	cfg.Generation.StaleAfterMinutes = 10

	e := &env{
		db:         db,
		dispatcher: &fakeDispatcher{},
		notifier:   &fakeNotifier{},
		genCfg:     &cfg.Generation,
	}
	e.assessments = NewAssessmentService(assessRepo, jobRepo, approvalRepo)
	e.approvals = NewApprovalService(assessRepo, jobRepo, approvalRepo, e.notifier)
	e.generation = NewGenerationService(assessRepo, jobRepo, e.dispatcher, e.approvals, e.genCfg)
	e.questionnaire = NewQuestionnaireService(assessRepo, questionRepo, docRepo, jobRepo, approvalRepo)
	e.documents = NewDocumentService(assessRepo, docRepo, approvalRepo, NewStorageService(cfg), 0)
	e.journey = NewJourneyService(assessRepo, jobRepo, approvalRepo)
	t.Cleanup(func() {
		e.generation.Wait()
		e.approvals.Wait()
	})
	return e
}

// completeJob 触发并以给定结果完成生成任务
func (e *env) completeJob(t *testing.T, assessmentID string, questions []dto.GeneratedQuestion, docs []dto.GeneratedDocument) *model.GenerationJob {
	t.Helper()
	job, err := e.generation.Trigger(context.Background(), assessmentID, "admin-1", false)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	e.generation.Wait()
	done, err := e.generation.Complete(context.Background(), assessmentID, dto.CompleteRequest{
		RunID:     job.RunID,
		Questions: questions,
		Documents: docs,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return done
}

func mustErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
