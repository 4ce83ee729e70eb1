package questionnaire

import (
	"context"
	"errors"
	"journey_backend/internal/model"
	"journey_backend/internal/util"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) schedule(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// elapse fires every timer that has not been stopped.
func (c *fakeClock) elapse() {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type recordingSaver struct {
	mu    sync.Mutex
	saves []SaveRequest
	err   error
	gate  chan struct{}
}

func (s *recordingSaver) SaveAnswer(_ context.Context, _ string, req SaveRequest) (time.Time, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, req)
	if s.err != nil {
		return time.Time{}, s.err
	}
	return time.Now(), nil
}

func (s *recordingSaver) calls() []SaveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SaveRequest(nil), s.saves...)
}

type submitRecorder struct{ called bool }

func (s *submitRecorder) SubmitForm(context.Context, string) error {
	s.called = true
	return nil
}

func testQuestions() []model.DiscoveryQuestion {
	return []model.DiscoveryQuestion{
		question("text", "ops", "Operations", model.FormatFreeText, true),
		question("multi", "ops", "Operations", model.FormatMultiSelect, true, "crm", "erp", "bi"),
		question("yn", "data", "Data", model.FormatYesNo, false),
	}
}

func newTestEngine(t *testing.T, access Access, saver Saver) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	e := NewEngine("a1", testQuestions(), access, saver, WithScheduler(clock.schedule))
	t.Cleanup(e.Close)
	return e, clock
}

var customerApproved = Access{Role: model.RoleCustomer, Approved: true}

func TestDebouncedTextSavesOnceWithLastValue(t *testing.T) {
	saver := &recordingSaver{}
	e, clock := newTestEngine(t, customerApproved, saver)

	for _, v := range []string{"W", "We", "We use SAP"} {
		if err := e.SetText("text", v); err != nil {
			t.Fatalf("SetText: %v", err)
		}
	}
	if got := len(saver.calls()); got != 0 {
		t.Fatalf("expected no save before the quiet period, got %d", got)
	}

	clock.elapse()
	e.Flush()

	calls := saver.calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one save, got %d", len(calls))
	}
	if calls[0].AnswerText == nil || *calls[0].AnswerText != "We use SAP" {
		t.Fatalf("saved wrong value: %+v", calls[0])
	}
	if st := e.Status("text"); st.Status != SaveSaved || st.SavedAt.IsZero() {
		t.Fatalf("expected saved status with timestamp, got %+v", st)
	}
}

func TestToggleOptionSavesFullSetImmediately(t *testing.T) {
	saver := &recordingSaver{}
	e, _ := newTestEngine(t, customerApproved, saver)

	if err := e.ToggleOption("multi", "bi"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := e.ToggleOption("multi", "crm"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	e.Flush()

	calls := saver.calls()
	if len(calls) == 0 {
		t.Fatal("expected immediate saves")
	}
	last := calls[len(calls)-1]
	if string(last.AnswerJSON) != `["crm","bi"]` {
		t.Fatalf("expected full set in option order, got %s", last.AnswerJSON)
	}

	if err := e.ToggleOption("multi", "crm"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	e.Flush()
	if got := e.Selected("multi"); len(got) != 1 || got[0] != "bi" {
		t.Fatalf("expected [bi] after untoggle, got %v", got)
	}
	if err := e.ToggleOption("multi", "nope"); !errors.Is(err, util.ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
}

func TestSavesForOneQuestionDoNotOverlap(t *testing.T) {
	saver := &recordingSaver{gate: make(chan struct{})}
	e, _ := newTestEngine(t, customerApproved, saver)

	if err := e.Choose("yn", "yes"); err != nil {
		t.Fatal(err)
	}
	if err := e.Choose("yn", "no"); err != nil {
		t.Fatal(err)
	}
	if st := e.Status("yn"); st.Status != SaveSaving {
		t.Fatalf("expected saving, got %s", st.Status)
	}
	close(saver.gate)
	e.Flush()

	calls := saver.calls()
	if len(calls) != 2 {
		t.Fatalf("expected two sequential saves, got %d", len(calls))
	}
	if *calls[1].AnswerText != "no" {
		t.Fatalf("last write must carry last value, got %q", *calls[1].AnswerText)
	}
	if st := e.Status("yn"); st.Status != SaveSaved {
		t.Fatalf("expected saved, got %s", st.Status)
	}
}

func TestFailedSaveKeepsValue(t *testing.T) {
	saver := &recordingSaver{err: errors.New("network down")}
	e, clock := newTestEngine(t, customerApproved, saver)

	if err := e.SetText("text", "draft answer"); err != nil {
		t.Fatal(err)
	}
	clock.elapse()
	e.Flush()

	st := e.Status("text")
	if st.Status != SaveError || st.Err == nil {
		t.Fatalf("expected error status, got %+v", st)
	}
	if text, _ := e.Value("text"); text == nil || *text != "draft answer" {
		t.Fatal("value must survive a failed save")
	}
}

func TestEngineReadOnly(t *testing.T) {
	saver := &recordingSaver{}
	e, _ := newTestEngine(t, Access{Role: model.RoleCustomer}, saver)
	if err := e.SetText("text", "x"); !errors.Is(err, util.ErrFormReadOnly) {
		t.Fatalf("expected ErrFormReadOnly before approval, got %v", err)
	}

	admin, _ := newTestEngine(t, Access{Role: model.RoleAdmin, Approved: true}, saver)
	if err := admin.Choose("yn", "yes"); !errors.Is(err, util.ErrFormReadOnly) {
		t.Fatalf("expected admin read-only without edit mode, got %v", err)
	}
	admin.SetEditMode(true)
	if err := admin.Choose("yn", "yes"); err != nil {
		t.Fatalf("expected admin write in edit mode, got %v", err)
	}
	admin.Flush()
}

func TestSubmitFlow(t *testing.T) {
	saver := &recordingSaver{}
	e, _ := newTestEngine(t, customerApproved, saver)
	sub := &submitRecorder{}

	if e.CanSubmit() {
		t.Fatal("submit must be disabled with required questions unanswered")
	}
	if err := e.Submit(context.Background(), sub); !errors.Is(err, util.ErrRequiredUnanswered) {
		t.Fatalf("expected ErrRequiredUnanswered, got %v", err)
	}
	if sub.called {
		t.Fatal("incomplete form must not reach the server")
	}

	_ = e.SetText("text", "answer")
	_ = e.ToggleOption("multi", "erp")
	if !e.CanSubmit() {
		t.Fatal("expected submit enabled")
	}
	// 文本保存仍在防抖中，Submit 必须先落盘
	if err := e.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !sub.called {
		t.Fatal("expected SubmitForm call")
	}
	found := false
	for _, c := range saver.calls() {
		if c.QuestionID == "text" {
			found = true
		}
	}
	if !found {
		t.Fatal("pending text save was not flushed before submit")
	}
	if !e.ReadOnly() {
		t.Fatal("form must be read-only for the customer after submit")
	}
	if err := e.Submit(context.Background(), sub); !errors.Is(err, util.ErrFormSubmitted) {
		t.Fatalf("expected ErrFormSubmitted, got %v", err)
	}
}

func TestAdminCannotSubmit(t *testing.T) {
	e, _ := newTestEngine(t, Access{Role: model.RoleAdmin, Approved: true, EditMode: true}, &recordingSaver{})
	if e.CanSubmit() {
		t.Fatal("admin must never see submit")
	}
	if err := e.Submit(context.Background(), &submitRecorder{}); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestInterleavedDebouncedFieldsBothSave(t *testing.T) {
	saver := &recordingSaver{}
	clock := &fakeClock{}
	questions := []model.DiscoveryQuestion{
		question("crm", "ops", "Operations", model.FormatFreeText, true),
		question("headcount", "ops", "Operations", model.FormatNumber, true),
	}
	e := NewEngine("a1", questions, customerApproved, saver, WithScheduler(clock.schedule))
	t.Cleanup(e.Close)

	steps := []struct{ id, value string }{
		{"crm", "a"},
		{"headcount", "1"},
		{"crm", "ab"},
		{"headcount", "12"},
	}
	for _, s := range steps {
		if err := e.SetText(s.id, s.value); err != nil {
			t.Fatalf("SetText(%s): %v", s.id, err)
		}
	}
	clock.elapse()
	e.Flush()

	got := map[string]string{}
	for _, c := range saver.calls() {
		got[c.QuestionID] = *c.AnswerText
	}
	if len(saver.calls()) != 2 || got["crm"] != "ab" || got["headcount"] != "12" {
		t.Fatalf("expected one save per field with its last value, got %v", got)
	}
	for _, q := range questions {
		if st := e.Status(q.ID); st.Status != SaveSaved {
			t.Fatalf("%s: expected saved, got %s", q.ID, st.Status)
		}
	}
}

func TestCloseDropsPendingSaves(t *testing.T) {
	saver := &recordingSaver{}
	clock := &fakeClock{}
	e := NewEngine("a1", testQuestions(), customerApproved, saver, WithScheduler(clock.schedule))

	if err := e.SetText("text", "draft"); err != nil {
		t.Fatal(err)
	}
	// 模拟计时器在关闭过程中触发
	clock.mu.Lock()
	fire := clock.timers[0].f
	clock.mu.Unlock()

	e.Close()
	fire()
	e.Flush()

	if n := len(saver.calls()); n != 0 {
		t.Fatalf("expected no save after close, got %d", n)
	}
	if err := e.SetText("text", "late"); !errors.Is(err, util.ErrFormReadOnly) {
		t.Fatalf("expected closed engine to refuse edits, got %v", err)
	}
}
