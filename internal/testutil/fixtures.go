package testutil

import (
	"encoding/json"
	"journey_backend/internal/model"
	"testing"
	"time"

	"gorm.io/gorm"
)

func SeedAssessment(tb testing.TB, db *gorm.DB, company string) *model.Assessment {
	tb.Helper()
	now := time.Now()
	a := &model.Assessment{
		ProspectID:        "prospect-" + company,
		CompanyName:       company,
		ContactName:       "Dana Reyes",
		ContactEmail:      "dana@example.com",
		ProspectCreatedAt: &now,
		ReportDeliveredAt: &now,
		ConvertedAt:       now,
	}
	if err := db.Create(a).Error; err != nil {
		tb.Fatalf("seed assessment: %v", err)
	}
	job := &model.GenerationJob{AssessmentID: a.ID, State: model.JobNotStarted}
	if err := db.Create(job).Error; err != nil {
		tb.Fatalf("seed generation job: %v", err)
	}
	return a
}

// SetJobState forces the job into a state without going through the supervisor.
func SetJobState(tb testing.TB, db *gorm.DB, assessmentID string, state model.JobState, runID string) {
	tb.Helper()
	now := time.Now()
	updates := map[string]interface{}{"state": state, "run_id": runID, "started_at": now}
	if state == model.JobFailed {
		updates["error_message"] = "seeded failure"
	}
	if err := db.Model(&model.GenerationJob{}).Where("assessment_id = ?", assessmentID).Updates(updates).Error; err != nil {
		tb.Fatalf("set job state: %v", err)
	}
}

func SeedQuestion(tb testing.TB, db *gorm.DB, assessmentID, dimension string, format model.AnswerFormat, required bool, order int, options ...string) *model.DiscoveryQuestion {
	tb.Helper()
	q := &model.DiscoveryQuestion{
		AssessmentID:     assessmentID,
		DimensionKey:     dimension,
		DimensionName:    dimension,
		Prompt:           "How is " + dimension + " handled today?",
		AnswerFormat:     format,
		IsRequired:       required,
		ConfidenceImpact: model.ImpactMedium,
		DisplayOrder:     order,
	}
	if len(options) > 0 {
		q.Options, _ = json.Marshal(options)
	}
	if err := db.Create(q).Error; err != nil {
		tb.Fatalf("seed question: %v", err)
	}
	return q
}

func SeedDocumentRequest(tb testing.TB, db *gorm.DB, assessmentID, docType string, order int) *model.DocumentRequest {
	tb.Helper()
	r := &model.DocumentRequest{
		AssessmentID:  assessmentID,
		DimensionKey:  "operations",
		DimensionName: "Operations",
		DocumentType:  docType,
		Reason:        "Needed to size the integration work",
		IsRequired:    false,
		DisplayOrder:  order,
	}
	if err := db.Create(r).Error; err != nil {
		tb.Fatalf("seed document request: %v", err)
	}
	return r
}

func SeedApproval(tb testing.TB, db *gorm.DB, assessmentID string) *model.ApprovalRecord {
	tb.Helper()
	rec := &model.ApprovalRecord{AssessmentID: assessmentID, ApprovedBy: "admin-1", ApprovedAt: time.Now()}
	if err := db.Create(rec).Error; err != nil {
		tb.Fatalf("seed approval: %v", err)
	}
	return rec
}
