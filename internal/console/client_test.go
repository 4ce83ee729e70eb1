package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"journey_backend/internal/app"
	"journey_backend/internal/config"
	"journey_backend/internal/dto"
	"journey_backend/internal/model"
	"journey_backend/internal/questionnaire"
	"journey_backend/internal/testutil"
	"journey_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	secret      = "console-test-secret-with-enough-chars"
	runnerToken = "runner"
)

type backend struct {
	t      *testing.T
	server *httptest.Server
	admin  *Client
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hash, err := bcrypt.GenerateFromPassword([]byte(runnerToken), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()
	cfg.Generation.Dispatcher = util.DispatcherNoop
	cfg.Runner.TokenHash = string(hash)

	a := app.Build(cfg, testutil.DB(t), nil)
	srv := httptest.NewServer(a.Router)
	t.Cleanup(func() {
		srv.Close()
		a.Wait()
	})
	b := &backend{t: t, server: srv}
	b.admin = NewClient(srv.URL, b.token(model.RoleAdmin, ""))
	return b
}

func (b *backend) token(role model.Role, assessmentID string) string {
	b.t.Helper()
	tok, err := util.GenerateJWT(util.Claims{UserID: "u-" + string(role), Name: string(role), Role: role, AssessmentID: assessmentID}, secret, time.Hour)
	if err != nil {
		b.t.Fatal(err)
	}
	return tok
}

func (b *backend) createAssessment() string {
	b.t.Helper()
	var a model.Assessment
	err := b.admin.doJSON(context.Background(), http.MethodPost, "/api/admin/assessments", dto.CreateAssessmentRequest{CompanyName: "Northwind"}, &a)
	if err != nil {
		b.t.Fatalf("create assessment: %v", err)
	}
	return a.ID
}

func (b *backend) complete(assessmentID, runID string) {
	b.t.Helper()
	raw, _ := json.Marshal(dto.CompleteRequest{
		RunID: runID,
		Questions: []dto.GeneratedQuestion{
			{DimensionKey: "ops", DimensionName: "Operations", QuestionText: "Describe order intake", AnswerFormat: model.FormatFreeText, IsRequired: true, DisplayOrder: 1},
			{DimensionKey: "ops", DimensionName: "Operations", QuestionText: "Maturity", AnswerFormat: model.FormatScale, IsRequired: true, DisplayOrder: 2},
		},
		Documents: []dto.GeneratedDocument{{DocumentType: "Process map", DisplayOrder: 1}},
	})
	req, _ := http.NewRequest(http.MethodPost, b.server.URL+"/internal/generation/"+assessmentID+"/complete", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Runner-Token", runnerToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		b.t.Fatalf("complete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b.t.Fatalf("complete: status %d", resp.StatusCode)
	}
}

func TestClientDrivesQuestionnaireEngine(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	id := b.createAssessment()
	customer := NewClient(b.server.URL, b.token(model.RoleCustomer, id))

	job, err := b.admin.Trigger(ctx, id, false)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	b.complete(id, job.RunID)
	if _, err := b.admin.Approve(ctx, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := b.admin.Approve(ctx, id); !errors.Is(err, util.ErrAlreadyApproved) {
		t.Fatalf("expected ErrAlreadyApproved from second approval, got %v", err)
	}

	ov, err := customer.LoadOverview(ctx, id)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Job.State != model.JobCompleted || ov.Job.QuestionsCount != 2 {
		t.Fatalf("unexpected job in overview: %+v", ov.Job.GenerationJob)
	}
	if _, ok := ov.Uploads[model.OtherDocumentsSlot]; !ok {
		t.Fatal("expected other slot in overview uploads")
	}

	var questions []model.DiscoveryQuestion
	for _, d := range ov.Questionnaire.Dimensions {
		questions = append(questions, d.Questions...)
	}
	access := questionnaire.Access{Role: model.RoleCustomer, Approved: ov.Questionnaire.Approved}
	engine := questionnaire.NewEngine(id, questions, access, customer, questionnaire.WithDebounce(time.Millisecond))
	defer engine.Close()

	if err := engine.SetText(questions[0].ID, "Orders arrive by email"); err != nil {
		t.Fatalf("set text: %v", err)
	}
	if err := engine.Choose(questions[1].ID, "4"); err != nil {
		t.Fatalf("choose: %v", err)
	}
	if err := engine.Submit(ctx, customer); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st := engine.Status(questions[0].ID); st.Status != questionnaire.SaveSaved {
		t.Fatalf("expected text answer saved before submit, got %+v", st)
	}

	text := "late edit"
	_, err = customer.SaveAnswer(ctx, id, questionnaire.SaveRequest{QuestionID: questions[0].ID, AnswerText: &text})
	if !errors.Is(err, util.ErrFormSubmitted) {
		t.Fatalf("expected ErrFormSubmitted after submit, got %v", err)
	}
	if !IsStatus(err, http.StatusConflict) {
		t.Fatalf("expected 409, got %v", err)
	}

	jv, err := customer.Journey(ctx, id)
	if err != nil {
		t.Fatalf("journey: %v", err)
	}
	if jv.Current != "roadmap_delivered" {
		t.Fatalf("expected roadmap_delivered, got %s", jv.Current)
	}
}

func TestClientUploadAndRemove(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	id := b.createAssessment()
	customer := NewClient(b.server.URL, b.token(model.RoleCustomer, id))

	job, err := b.admin.Trigger(ctx, id, false)
	if err != nil {
		t.Fatal(err)
	}
	b.complete(id, job.RunID)
	if _, err := b.admin.Approve(ctx, id); err != nil {
		t.Fatal(err)
	}

	view, err := customer.Questionnaire(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	uploads, err := customer.Uploads(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	slots := NewSlotManager(customer, id, view.Documents, uploads, 0)
	slotKey := view.Documents[0].ID

	content := "step,owner\nintake,ops\n"
	results, err := slots.UploadBatch(ctx, slotKey, []File{
		{Name: "process.csv", Size: int64(len(content)), ContentType: "text/csv", Body: strings.NewReader(content)},
		{Name: "tool.exe", Size: 2, ContentType: "application/x-msdownload", Body: strings.NewReader("MZ")},
	})
	if err != nil {
		t.Fatalf("upload batch: %v", err)
	}
	if results[0].Err != nil || results[0].Document == nil {
		t.Fatalf("expected csv upload to succeed, got %+v", results[0])
	}
	if !errors.Is(results[1].Err, util.ErrUnsupportedFileType) {
		t.Fatalf("expected exe to be rejected locally, got %v", results[1].Err)
	}

	if err := slots.Remove(ctx, slotKey, results[0].Document.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	after, err := customer.Uploads(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(after[slotKey]) != 0 {
		t.Fatalf("expected slot empty after remove, got %d", len(after[slotKey]))
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	err := &APIError{Status: http.StatusBadRequest, Message: "required questions are unanswered: 1 of 2 answered"}
	if !errors.Is(err, util.ErrRequiredUnanswered) {
		t.Fatal("expected prefix match on known error")
	}
	if errors.Unwrap(&APIError{Status: 500, Message: "boom"}) != nil {
		t.Fatal("unknown messages must not unwrap")
	}
}
