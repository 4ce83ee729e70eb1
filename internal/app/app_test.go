package app

import (
	"bytes"
	"encoding/json"
	"io"
	"journey_backend/internal/config"
	"journey_backend/internal/dto"
	"journey_backend/internal/model"
	"journey_backend/internal/testutil"
	"journey_backend/internal/util"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret      = "test-secret-with-enough-characters"
	testRunnerToken = "runner-token"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t   *testing.T
	app *App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(testRunnerToken), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash runner token: %v", err)
	}
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.JWT.Secret = testSecret
	cfg.Storage.Type = "local"
	cfg.Storage.LocalPath = t.TempDir()
	cfg.Generation.Dispatcher = util.DispatcherNoop
	cfg.Generation.StaleAfterMinutes = 10
	cfg.Upload.MaxSizeMB = 1
	cfg.Runner.TokenHash = string(hash)
	cfg.CORS.AllowedOrigins = []string{"http://portal.local"}

	a := Build(cfg, testutil.DB(t), nil)
	t.Cleanup(a.Wait)
	return &testServer{t: t, app: a}
}

func (s *testServer) token(role model.Role, assessmentID string) string {
	s.t.Helper()
	tok, err := util.GenerateJWT(util.Claims{UserID: string(role) + "-1", Role: role, AssessmentID: assessmentID}, testSecret, time.Hour)
	if err != nil {
		s.t.Fatalf("generate jwt: %v", err)
	}
	return tok
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(req)
}

func (s *testServer) runner(path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Runner-Token", token)
	}
	return s.serve(req)
}

func (s *testServer) upload(assessmentID, token, slot, filename string, content []byte) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("slot_key", slot)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		s.t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(content)
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/assessments/"+assessmentID+"/uploads", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) (int, envelope) {
	s.t.Helper()
	rec := httptest.NewRecorder()
	s.app.Router.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(rec.Body.Bytes()), []byte("{")) {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("decode %s %s: %v (%s)", req.Method, req.URL.Path, err, rec.Body.String())
		}
	}
	return rec.Code, env
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func expectStatus(t *testing.T, got, want int, env envelope) {
	t.Helper()
	if got != want {
		t.Fatalf("expected status %d, got %d: %s", want, got, env.Message)
	}
}

func (s *testServer) createAssessment(admin string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/admin/assessments", admin, dto.CreateAssessmentRequest{
		CompanyName:  "Acme Logistics",
		ContactEmail: "ops@acme.test",
	})
	expectStatus(s.t, code, http.StatusCreated, env)
	var a model.Assessment
	decode(s.t, env, &a)
	return a.ID
}

func (s *testServer) generate(admin, assessmentID string) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/assessments/"+assessmentID+"/generation", admin, nil)
	expectStatus(s.t, code, http.StatusAccepted, env)
	var job model.GenerationJob
	decode(s.t, env, &job)
	if job.State != model.JobRunning || job.RunID == "" {
		s.t.Fatalf("expected running job with run id, got %+v", job)
	}

	code, env = s.runner("/internal/generation/"+assessmentID+"/complete", testRunnerToken, dto.CompleteRequest{
		RunID: job.RunID,
		Questions: []dto.GeneratedQuestion{
			{DimensionKey: "ops", DimensionName: "Operations", QuestionText: "Which ERP do you run?", AnswerFormat: model.FormatFreeText, IsRequired: true, DisplayOrder: 1},
			{DimensionKey: "ops", DimensionName: "Operations", QuestionText: "Is data centralized?", AnswerFormat: model.FormatYesNo, IsRequired: true, DisplayOrder: 2},
			{DimensionKey: "data", DimensionName: "Data", QuestionText: "Tools in use", AnswerFormat: model.FormatMultiSelect, Options: []string{"crm", "bi"}, DisplayOrder: 3},
		},
		Documents: []dto.GeneratedDocument{
			{DimensionKey: "data", DocumentType: "Org chart", IsRequired: true},
		},
	})
	expectStatus(s.t, code, http.StatusOK, env)
}

func (s *testServer) questionnaire(token, assessmentID string) dto.QuestionnaireView {
	s.t.Helper()
	code, env := s.do(http.MethodGet, "/api/assessments/"+assessmentID+"/questionnaire", token, nil)
	expectStatus(s.t, code, http.StatusOK, env)
	var view dto.QuestionnaireView
	decode(s.t, env, &view)
	return view
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(http.MethodGet, "/api/health", "", nil)
	expectStatus(t, code, http.StatusOK, env)
}

func TestAuthAndScope(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(model.RoleAdmin, "")
	id := s.createAssessment(admin)
	other := s.createAssessment(admin)

	if code, env := s.do(http.MethodGet, "/api/assessments/"+id, "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d: %s", code, env.Message)
	}
	customer := s.token(model.RoleCustomer, id)
	if code, env := s.do(http.MethodGet, "/api/assessments/"+other, customer, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 across assessments, got %d: %s", code, env.Message)
	}
	if code, env := s.do(http.MethodPost, "/api/assessments/"+id+"/generation", customer, nil); code != http.StatusForbidden {
		t.Fatalf("customers must not trigger generation, got %d: %s", code, env.Message)
	}
	if code, env := s.do(http.MethodGet, "/api/admin/assessments", customer, nil); code != http.StatusForbidden {
		t.Fatalf("customers must not list assessments, got %d: %s", code, env.Message)
	}
	code, env := s.do(http.MethodGet, "/api/assessments/"+id, customer, nil)
	expectStatus(t, code, http.StatusOK, env)
}

func TestRunnerCallbackRequiresToken(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(model.RoleAdmin, "")
	id := s.createAssessment(admin)

	body := dto.FailRequest{RunID: "x", Error: "boom"}
	if code, _ := s.runner("/internal/generation/"+id+"/fail", "", body); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without runner token, got %d", code)
	}
	if code, _ := s.runner("/internal/generation/"+id+"/fail", "wrong", body); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong runner token, got %d", code)
	}
	if code, env := s.runner("/internal/generation/"+id+"/fail", testRunnerToken, body); code != http.StatusConflict {
		t.Fatalf("expected 409 for a job that is not running, got %d: %s", code, env.Message)
	}
}

func TestGenerationFailureAndRetry(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(model.RoleAdmin, "")
	id := s.createAssessment(admin)

	code, env := s.do(http.MethodPost, "/api/assessments/"+id+"/generation", admin, nil)
	expectStatus(t, code, http.StatusAccepted, env)
	var job model.GenerationJob
	decode(t, env, &job)

	code, env = s.runner("/internal/generation/"+id+"/fail", testRunnerToken, dto.FailRequest{
		RunID:       job.RunID,
		Error:       "LLM timeout",
		ErrorDetail: json.RawMessage(`{"node":"question_generation"}`),
	})
	expectStatus(t, code, http.StatusOK, env)

	code, env = s.do(http.MethodGet, "/api/assessments/"+id+"/generation", admin, nil)
	expectStatus(t, code, http.StatusOK, env)
	var st struct {
		State          model.JobState    `json:"state"`
		Error          string            `json:"error"`
		ErrorDetail    map[string]string `json:"error_detail"`
		QuestionsCount int               `json:"questions_count"`
	}
	decode(t, env, &st)
	if st.State != model.JobFailed || st.Error != "LLM timeout" || st.ErrorDetail["node"] != "question_generation" {
		t.Fatalf("expected failed job with error, got %+v", st)
	}

	code, env = s.do(http.MethodGet, "/api/assessments/"+id+"/journey", admin, nil)
	expectStatus(t, code, http.StatusOK, env)
	var jv dto.JourneyView
	decode(t, env, &jv)
	if jv.Current != "requirements_generated" {
		t.Fatalf("expected current stage requirements_generated, got %s", jv.Current)
	}

	code, env = s.do(http.MethodPost, "/api/assessments/"+id+"/generation", admin, dto.TriggerRequest{})
	expectStatus(t, code, http.StatusAccepted, env)
	var retried model.GenerationJob
	decode(t, env, &retried)
	if retried.State != model.JobRunning || retried.RunID == job.RunID {
		t.Fatalf("retry must start a new run, got %+v", retried)
	}

	questions := make([]dto.GeneratedQuestion, 5)
	for i := range questions {
		questions[i] = dto.GeneratedQuestion{DimensionKey: "ops", DimensionName: "Operations", QuestionText: "Question " + string(rune('A'+i)), AnswerFormat: model.FormatFreeText, DisplayOrder: i + 1}
	}
	code, env = s.runner("/internal/generation/"+id+"/complete", testRunnerToken, dto.CompleteRequest{RunID: retried.RunID, Questions: questions})
	expectStatus(t, code, http.StatusOK, env)

	code, env = s.do(http.MethodGet, "/api/assessments/"+id+"/generation", admin, nil)
	expectStatus(t, code, http.StatusOK, env)
	st.Error, st.ErrorDetail = "", nil
	decode(t, env, &st)
	if st.State != model.JobCompleted || st.QuestionsCount != 5 || st.Error != "" || len(st.ErrorDetail) != 0 {
		t.Fatalf("expected clean completed job with 5 questions, got %+v", st)
	}
	view := s.questionnaire(admin, id)
	if len(view.Dimensions) != 1 || len(view.Dimensions[0].Questions) != 5 {
		t.Fatalf("expected generated questions visible, got %+v", view.Dimensions)
	}

	// 首次运行的迟到回调
	code, env = s.runner("/internal/generation/"+id+"/fail", testRunnerToken, dto.FailRequest{RunID: job.RunID, Error: "late"})
	expectStatus(t, code, http.StatusConflict, env)
}

func TestQuestionnaireLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(model.RoleAdmin, "")
	id := s.createAssessment(admin)
	customer := s.token(model.RoleCustomer, id)

	view := s.questionnaire(customer, id)
	if len(view.Dimensions) != 0 || !view.ReadOnly {
		t.Fatalf("expected empty read-only questionnaire before generation, got %+v", view)
	}

	s.generate(admin, id)
	view = s.questionnaire(customer, id)
	if len(view.Dimensions) != 2 || view.Progress.TotalRequired != 2 {
		t.Fatalf("unexpected questionnaire after generation: %+v", view)
	}
	if !view.ReadOnly || view.FormStatus != model.FormDraft {
		t.Fatalf("questionnaire must stay read-only until approved, got %+v", view)
	}
	textQ := view.Dimensions[0].Questions[0].ID
	ynQ := view.Dimensions[0].Questions[1].ID

	answer := "SAP S/4"
	if code, env := s.do(http.MethodPost, "/api/assessments/"+id+"/answers", customer, dto.SaveAnswerRequest{QuestionID: textQ, AnswerText: &answer}); code != http.StatusForbidden {
		t.Fatalf("expected 403 before approval, got %d: %s", code, env.Message)
	}

	code, env := s.do(http.MethodPost, "/api/admin/assessments/"+id+"/approve", admin, nil)
	expectStatus(t, code, http.StatusOK, env)
	if code, env := s.do(http.MethodPost, "/api/admin/assessments/"+id+"/approve", admin, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 on second approval, got %d: %s", code, env.Message)
	}

	code, env = s.do(http.MethodPost, "/api/assessments/"+id+"/answers", customer, dto.SaveAnswerRequest{QuestionID: textQ, AnswerText: &answer})
	expectStatus(t, code, http.StatusOK, env)
	var saved dto.SaveAnswerResponse
	decode(t, env, &saved)
	if saved.SavedAt.IsZero() {
		t.Fatal("expected saved_at")
	}

	maybe := "maybe"
	if code, env := s.do(http.MethodPost, "/api/assessments/"+id+"/answers", customer, dto.SaveAnswerRequest{QuestionID: ynQ, AnswerText: &maybe}); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid yes/no, got %d: %s", code, env.Message)
	}

	code, env = s.do(http.MethodPost, "/api/assessments/"+id+"/submit", customer, nil)
	expectStatus(t, code, http.StatusBadRequest, env)
	var missing struct {
		Missing []string `json:"missing_question_ids"`
	}
	decode(t, env, &missing)
	if len(missing.Missing) != 1 || missing.Missing[0] != ynQ {
		t.Fatalf("expected yes/no question reported missing, got %+v", missing)
	}

	yes := "yes"
	code, env = s.do(http.MethodPost, "/api/assessments/"+id+"/answers", customer, dto.SaveAnswerRequest{QuestionID: ynQ, AnswerText: &yes})
	expectStatus(t, code, http.StatusOK, env)

	if code, env := s.do(http.MethodPost, "/api/assessments/"+id+"/submit", admin, nil); code != http.StatusForbidden {
		t.Fatalf("admins must not submit, got %d: %s", code, env.Message)
	}
	code, env = s.do(http.MethodPost, "/api/assessments/"+id+"/submit", customer, nil)
	expectStatus(t, code, http.StatusOK, env)

	if code, env := s.do(http.MethodPost, "/api/assessments/"+id+"/answers", customer, dto.SaveAnswerRequest{QuestionID: ynQ, AnswerText: &yes}); code != http.StatusConflict {
		t.Fatalf("expected 409 after submit, got %d: %s", code, env.Message)
	}
	view = s.questionnaire(customer, id)
	if view.FormStatus != model.FormCompleted || !view.ReadOnly {
		t.Fatalf("expected completed read-only form, got %+v", view)
	}

	code, env = s.do(http.MethodGet, "/api/assessments/"+id+"/journey", customer, nil)
	expectStatus(t, code, http.StatusOK, env)
	var jv dto.JourneyView
	decode(t, env, &jv)
	if jv.Current != "roadmap_delivered" {
		t.Fatalf("expected roadmap_delivered as current stage, got %s", jv.Current)
	}
}

func TestDocumentSlots(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(model.RoleAdmin, "")
	id := s.createAssessment(admin)
	customer := s.token(model.RoleCustomer, id)
	s.generate(admin, id)

	if code, env := s.upload(id, customer, model.OtherDocumentsSlot, "notes.csv", []byte("a,b\n1,2\n")); code != http.StatusForbidden {
		t.Fatalf("expected 403 before approval, got %d: %s", code, env.Message)
	}
	code, env := s.do(http.MethodPost, "/api/admin/assessments/"+id+"/approve", admin, nil)
	expectStatus(t, code, http.StatusOK, env)

	view := s.questionnaire(customer, id)
	if len(view.Documents) != 1 {
		t.Fatalf("expected one document request, got %d", len(view.Documents))
	}
	slot := view.Documents[0].ID

	code, env = s.upload(id, customer, slot, "org.csv", []byte("name,role\n"))
	expectStatus(t, code, http.StatusCreated, env)
	var doc model.UploadedDocument
	decode(t, env, &doc)

	code, env = s.upload(id, customer, model.OtherDocumentsSlot, "malware.exe", []byte("MZ"))
	expectStatus(t, code, http.StatusBadRequest, env)
	var ferr util.FileError
	decode(t, env, &ferr)
	if ferr.Filename != "malware.exe" {
		t.Fatalf("expected rejected filename in detail, got %+v", ferr)
	}

	if code, env := s.upload(id, customer, "no-such-slot", "a.csv", []byte("x")); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown slot, got %d: %s", code, env.Message)
	}

	code, env = s.do(http.MethodGet, "/api/assessments/"+id+"/uploads", customer, nil)
	expectStatus(t, code, http.StatusOK, env)
	var slots map[string][]model.UploadedDocument
	decode(t, env, &slots)
	if _, ok := slots[model.OtherDocumentsSlot]; !ok {
		t.Fatal("expected empty other slot in listing")
	}
	if len(slots[slot]) != 1 {
		t.Fatalf("expected one upload in %s, got %d", slot, len(slots[slot]))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/uploads/"+doc.ID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+customer)
	rec := httptest.NewRecorder()
	s.app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "name,role\n" {
		t.Fatalf("unexpected download: %d %q", rec.Code, rec.Body.String())
	}

	if code, env := s.do(http.MethodDelete, "/api/uploads/"+doc.ID, admin, nil); code != http.StatusForbidden {
		t.Fatalf("admin must not delete customer upload, got %d: %s", code, env.Message)
	}
	code, env = s.do(http.MethodDelete, "/api/uploads/"+doc.ID, customer, nil)
	expectStatus(t, code, http.StatusOK, env)
}

func TestConfigReloadUpdatesUploadLimitAndCORS(t *testing.T) {
	s := newTestServer(t)

	next := *s.app.CurrentConfig()
	next.Upload.MaxSizeMB = 3
	next.CORS.AllowedOrigins = []string{"http://new.local"}
	s.app.ApplyConfig(&next)

	if got := s.app.services.document.MaxUploadBytes(); got != 3<<20 {
		t.Fatalf("expected upload limit to follow config, got %d", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://new.local")
	rec := httptest.NewRecorder()
	s.app.Router.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://new.local" {
		t.Fatal("expected reloaded origin to be allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://portal.local")
	rec = httptest.NewRecorder()
	s.app.Router.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected old origin to be dropped after reload")
	}
}
