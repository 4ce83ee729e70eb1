package service

import (
	"context"
	"journey_backend/internal/dto"
	"journey_backend/internal/journey"
	"journey_backend/internal/testutil"
	"testing"
)

func stageStatus(v *dto.JourneyView, key journey.StageKey) journey.StageStatus {
	for _, s := range v.Stages {
		if s.Key == key {
			return s.Status
		}
	}
	return ""
}

func TestJourneyFollowsComponents(t *testing.T) {
	e := newEnv(t)
	a := testutil.SeedAssessment(t, e.db, "acme")
	ctx := context.Background()

	v, err := e.journey.Get(a.ID)
	if err != nil {
		t.Fatalf("journey: %v", err)
	}
	if v.Current != journey.StageRequirements || stageStatus(v, journey.StageRequirements) != journey.StatusUpcoming {
		t.Fatalf("expected requirements upcoming, got %+v", v)
	}
	if stageStatus(v, journey.StageConverted) != journey.StatusCompleted {
		t.Fatal("converted stage must be completed")
	}

	job, _ := e.generation.Trigger(ctx, a.ID, "admin-1", false)
	e.generation.Wait()
	if _, err := e.generation.Fail(ctx, a.ID, dto.FailRequest{RunID: job.RunID, Error: "boom"}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	v, _ = e.journey.Get(a.ID)
	for _, s := range v.Stages {
		if s.Key == journey.StageRequirements && (s.Status != journey.StatusActive || !s.NeedsAttention) {
			t.Fatalf("failed job should be active and need attention, got %+v", s)
		}
	}

	job, _ = e.generation.Trigger(ctx, a.ID, "admin-1", false)
	e.generation.Wait()
	if _, err := e.generation.Complete(ctx, a.ID, dto.CompleteRequest{RunID: job.RunID, Questions: sampleQuestions()}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	v, _ = e.journey.Get(a.ID)
	if stageStatus(v, journey.StageApproved) != journey.StatusUpcoming || stageStatus(v, journey.StageSubmitted) != journey.StatusLocked {
		t.Fatalf("unexpected stages after completion: %+v", v.Stages)
	}

	if _, err := e.approvals.Approve(ctx, a.ID, "admin-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	v, _ = e.journey.Get(a.ID)
	if stageStatus(v, journey.StageSubmitted) != journey.StatusUpcoming || v.Current != journey.StageSubmitted {
		t.Fatalf("expected submission upcoming, got %+v", v.Stages)
	}
}
