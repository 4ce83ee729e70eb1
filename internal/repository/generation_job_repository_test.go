package repository

import (
	"errors"
	"journey_backend/internal/model"
	"journey_backend/internal/testutil"
	"testing"
	"time"
)

func TestGenerationJobStartIsConditional(t *testing.T) {
	db := testutil.DB(t)
	a := testutil.SeedAssessment(t, db, "acme")
	repo := NewGenerationJobRepository(db)
	from := []model.JobState{model.JobNotStarted, model.JobFailed}

	ok, err := repo.Start(a.ID, from, "run-1", time.Now())
	if err != nil || !ok {
		t.Fatalf("first start: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Start(a.ID, from, "run-2", time.Now())
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if ok {
		t.Fatal("second start from running must not transition")
	}

	job, err := repo.FindByAssessment(a.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if job.State != model.JobRunning || job.RunID != "run-1" || job.Attempts != 1 {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestGenerationJobCompleteCountsInsertedRows(t *testing.T) {
	db := testutil.DB(t)
	a := testutil.SeedAssessment(t, db, "acme")
	repo := NewGenerationJobRepository(db)
	if _, err := repo.Start(a.ID, []model.JobState{model.JobNotStarted}, "run-1", time.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}

	qs := []model.DiscoveryQuestion{
		{DimensionKey: "ops", Prompt: "q1", AnswerFormat: model.FormatFreeText},
		{DimensionKey: "ops", Prompt: "q2", AnswerFormat: model.FormatYesNo},
		{DimensionKey: "data", Prompt: "q3", AnswerFormat: model.FormatScale},
	}
	docs := []model.DocumentRequest{{DocumentType: "Org chart"}}

	if _, err := repo.Complete(a.ID, "stale", qs, docs, time.Now()); !errors.Is(err, ErrRunMismatch) {
		t.Fatalf("expected ErrRunMismatch for stale run, got %v", err)
	}

	job, err := repo.Complete(a.ID, "run-1", qs, docs, time.Now())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if job.State != model.JobCompleted {
		t.Fatalf("expected completed, got %s", job.State)
	}

	qn, _ := NewQuestionRepository(db).Count(a.ID)
	dn, _ := NewDocumentRepository(db).CountRequests(a.ID)
	if int64(job.QuestionsCount) != qn || int64(job.DocumentsCount) != dn {
		t.Fatalf("counts %d/%d do not match rows %d/%d", job.QuestionsCount, job.DocumentsCount, qn, dn)
	}
	if qn != 3 || dn != 1 {
		t.Fatalf("expected 3 questions and 1 request, got %d and %d", qn, dn)
	}
}

func TestGenerationJobFailRequiresMatchingRun(t *testing.T) {
	db := testutil.DB(t)
	a := testutil.SeedAssessment(t, db, "acme")
	repo := NewGenerationJobRepository(db)
	if _, err := repo.Start(a.ID, []model.JobState{model.JobNotStarted}, "run-1", time.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ok, err := repo.Fail(a.ID, "other", "boom", nil, time.Now())
	if err != nil || ok {
		t.Fatalf("stale fail must be ignored: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Fail(a.ID, "run-1", "boom", []byte(`{"node":"extract"}`), time.Now())
	if err != nil || !ok {
		t.Fatalf("fail: ok=%v err=%v", ok, err)
	}
	job, _ := repo.FindByAssessment(a.ID)
	if job.State != model.JobFailed || job.ErrorMessage != "boom" {
		t.Fatalf("unexpected job %+v", job)
	}

	// 失败后允许重试，错误信息被清空
	ok, err = repo.Start(a.ID, []model.JobState{model.JobNotStarted, model.JobFailed}, "run-2", time.Now())
	if err != nil || !ok {
		t.Fatalf("retry: ok=%v err=%v", ok, err)
	}
	job, _ = repo.FindByAssessment(a.ID)
	if job.ErrorMessage != "" || job.Attempts != 2 {
		t.Fatalf("retry should clear error and count attempt: %+v", job)
	}
}
