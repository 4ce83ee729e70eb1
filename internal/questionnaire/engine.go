package questionnaire

import (
	"context"
	"encoding/json"
	"fmt"
	"journey_backend/internal/model"
	"journey_backend/internal/util"
	"sync"
	"time"
)

// DefaultDebounce 文本类问题的自动保存延迟
const DefaultDebounce = 1500 * time.Millisecond

// SaveStatus 单个问题的保存状态
type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
)

// SaveRequest is the body of one answer write.
type SaveRequest struct {
	QuestionID string          `json:"question_id"`
	AnswerText *string         `json:"answer_text,omitempty"`
	AnswerJSON json.RawMessage `json:"answer_json,omitempty"`
}

// Saver persists a single answer and returns the server's save time.
type Saver interface {
	SaveAnswer(ctx context.Context, assessmentID string, req SaveRequest) (time.Time, error)
}

// Submitter performs the final submission of the form.
type Submitter interface {
	SubmitForm(ctx context.Context, assessmentID string) error
}

// Timer is the part of *time.Timer the engine needs.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler func(d time.Duration, f func()) Timer

func realScheduler(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// FieldStatus is what a render shows next to a question.
type FieldStatus struct {
	Status  SaveStatus
	SavedAt time.Time
	Err     error
}

type field struct {
	q    *model.DiscoveryQuestion
	text *string
	raw  json.RawMessage

	status  SaveStatus
	savedAt time.Time
	err     error

	// seq 每次用户修改递增，只有最新一次修改的保存结果会被采纳
	seq      uint64
	timer    Timer
	inflight bool
	pending  bool
}

// Engine holds the local state of one questionnaire session and drives
// autosave. Text-like questions are saved after a quiet period, the rest on
// every change. Saves for one question never overlap, so the last change made
// is the last value written.
type Engine struct {
	assessmentID string
	saver        Saver
	debounce     time.Duration
	schedule     Scheduler
	onChange     func(questionID string)

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	questions []model.DiscoveryQuestion
	fields    map[string]*field
	access    Access

	// saving 正在进行的保存数，归零时广播 idle；closed 后不再发起新的保存
	saving int
	idle   *sync.Cond
	closed bool
}

type EngineOption func(*Engine)

func WithDebounce(d time.Duration) EngineOption {
	return func(e *Engine) { e.debounce = d }
}

func WithScheduler(s Scheduler) EngineOption {
	return func(e *Engine) { e.schedule = s }
}

// WithOnChange registers a callback fired after any value or status change.
// It runs outside the engine lock.
func WithOnChange(fn func(questionID string)) EngineOption {
	return func(e *Engine) { e.onChange = fn }
}

func NewEngine(assessmentID string, questions []model.DiscoveryQuestion, access Access, saver Saver, opts ...EngineOption) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		assessmentID: assessmentID,
		saver:        saver,
		debounce:     DefaultDebounce,
		schedule:     realScheduler,
		ctx:          ctx,
		cancel:       cancel,
		questions:    questions,
		fields:       make(map[string]*field, len(questions)),
		access:       access,
	}
	e.idle = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	for i := range e.questions {
		q := &e.questions[i]
		f := &field{q: q, status: SaveIdle}
		if q.Answer != nil {
			f.text = q.Answer.AnswerText
			f.raw = json.RawMessage(q.Answer.AnswerJSON)
			f.savedAt = q.Answer.UpdatedAt
		}
		e.fields[q.ID] = f
	}
	return e
}

func (e *Engine) Dimensions() []Dimension {
	return GroupByDimension(e.questions)
}

// ReadOnly reports whether edits are currently refused.
func (e *Engine) ReadOnly() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.access.ReadOnly()
}

// SetEditMode toggles the privileged edit mode. It has no effect on a form the
// role may not write.
func (e *Engine) SetEditMode(on bool) {
	e.mu.Lock()
	e.access.EditMode = on
	e.mu.Unlock()
}

func (e *Engine) Access() Access {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.access
}

func (e *Engine) Status(questionID string) FieldStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.fields[questionID]
	if !ok {
		return FieldStatus{Status: SaveIdle}
	}
	return FieldStatus{Status: f.status, SavedAt: f.savedAt, Err: f.err}
}

// Value returns the local value of a question, saved or not.
func (e *Engine) Value(questionID string) (*string, json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.fields[questionID]
	if !ok {
		return nil, nil
	}
	return f.text, f.raw
}

// Selected returns the options picked on a multi-select question.
func (e *Engine) Selected(questionID string) []string {
	_, raw := e.Value(questionID)
	var picked []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &picked)
	}
	return picked
}

// Progress counts answered required questions from local values.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked()
}

func (e *Engine) progressLocked() Progress {
	return RequiredProgress(e.questions, func(q *model.DiscoveryQuestion) bool {
		f := e.fields[q.ID]
		return model.HasAnswerValue(f.text, f.raw)
	})
}

// CanSubmit reports whether the submit action is enabled for this session.
func (e *Engine) CanSubmit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.access.SubmitReachable() && e.progressLocked().Complete()
}

// SetText updates a free-text, number or percentage question. The save is
// deferred until no further change arrives within the debounce window.
func (e *Engine) SetText(questionID, text string) error {
	e.mu.Lock()
	f, err := e.editableLocked(questionID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if !f.q.AnswerFormat.Debounced() {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is not a text question", util.ErrInvalidAnswer, questionID)
	}
	f.text = &text
	f.raw = nil
	f.seq++
	f.status = SaveIdle
	f.err = nil
	if f.timer != nil {
		f.timer.Stop()
	}
	seq := f.seq
	f.timer = e.schedule(e.debounce, func() { e.fire(questionID, seq) })
	e.mu.Unlock()
	e.notify(questionID)
	return nil
}

// Choose sets a yes/no, single-select or scale question and saves at once.
func (e *Engine) Choose(questionID, value string) error {
	e.mu.Lock()
	f, err := e.editableLocked(questionID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	text := value
	var raw json.RawMessage
	switch f.q.AnswerFormat {
	case model.FormatYesNo, model.FormatSingleSelect:
	case model.FormatScale:
		raw = json.RawMessage(value)
	default:
		e.mu.Unlock()
		return fmt.Errorf("%w: %s does not take a single choice", util.ErrInvalidAnswer, questionID)
	}
	if err := ValidateAnswer(f.q, &text, raw); err != nil {
		e.mu.Unlock()
		return err
	}
	f.text = &text
	f.raw = raw
	e.changeNowLocked(questionID, f)
	e.mu.Unlock()
	e.notify(questionID)
	return nil
}

// ToggleOption adds or removes one option of a multi-select question and
// saves the whole resulting set at once.
func (e *Engine) ToggleOption(questionID, option string) error {
	e.mu.Lock()
	f, err := e.editableLocked(questionID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if f.q.AnswerFormat != model.FormatMultiSelect {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is not multi-select", util.ErrInvalidAnswer, questionID)
	}
	opts := f.q.OptionList()
	if !containsOption(opts, option) {
		e.mu.Unlock()
		return fmt.Errorf("%w: option %q not offered", util.ErrInvalidAnswer, option)
	}

	picked := map[string]bool{}
	var current []string
	if len(f.raw) > 0 {
		_ = json.Unmarshal(f.raw, &current)
	}
	for _, c := range current {
		picked[c] = true
	}
	picked[option] = !picked[option]

	// 按选项原始顺序输出
	next := make([]string, 0, len(picked))
	for _, o := range opts {
		if picked[o] {
			next = append(next, o)
			delete(picked, o)
		}
	}
	for _, c := range current {
		if picked[c] {
			next = append(next, c)
		}
	}
	raw, _ := json.Marshal(next)
	f.text = nil
	f.raw = raw
	e.changeNowLocked(questionID, f)
	e.mu.Unlock()
	e.notify(questionID)
	return nil
}

// Flush saves every pending change immediately and waits for all writes.
func (e *Engine) Flush() {
	e.mu.Lock()
	for id, f := range e.fields {
		if f.timer != nil {
			f.timer.Stop()
			f.timer = nil
			e.requestSaveLocked(id, f)
		}
	}
	e.waitIdleLocked()
	e.mu.Unlock()
}

// Submit flushes outstanding saves, checks required answers locally and asks
// the server to submit. Only the customer can submit.
func (e *Engine) Submit(ctx context.Context, s Submitter) error {
	e.mu.Lock()
	access := e.access
	e.mu.Unlock()
	if access.Role != model.RoleCustomer {
		return util.ErrPermissionDenied
	}
	if access.Submitted {
		return util.ErrFormSubmitted
	}
	if !access.Approved {
		return util.ErrNotApproved
	}

	e.Flush()
	if p := e.Progress(); !p.Complete() {
		return fmt.Errorf("%w: %d of %d answered", util.ErrRequiredUnanswered, p.AnsweredRequired, p.TotalRequired)
	}
	if err := s.SubmitForm(ctx, e.assessmentID); err != nil {
		return err
	}
	e.mu.Lock()
	e.access.Submitted = true
	e.mu.Unlock()
	return nil
}

// Close stops pending timers and cancels in-flight saves.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	for _, f := range e.fields {
		if f.timer != nil {
			f.timer.Stop()
			f.timer = nil
		}
	}
	e.mu.Unlock()
	e.cancel()

	e.mu.Lock()
	e.waitIdleLocked()
	e.mu.Unlock()
}

func (e *Engine) waitIdleLocked() {
	for e.saving > 0 {
		e.idle.Wait()
	}
}

func (e *Engine) editableLocked(questionID string) (*field, error) {
	f, ok := e.fields[questionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrQuestionNotFound, questionID)
	}
	if e.closed || e.access.ReadOnly() {
		return nil, util.ErrFormReadOnly
	}
	return f, nil
}

func (e *Engine) changeNowLocked(questionID string, f *field) {
	f.seq++
	f.err = nil
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	e.requestSaveLocked(questionID, f)
}

func (e *Engine) fire(questionID string, seq uint64) {
	e.mu.Lock()
	f := e.fields[questionID]
	if f.seq != seq || f.timer == nil {
		e.mu.Unlock()
		return
	}
	f.timer = nil
	e.requestSaveLocked(questionID, f)
	e.mu.Unlock()
	e.notify(questionID)
}

func (e *Engine) requestSaveLocked(questionID string, f *field) {
	if f.inflight {
		f.pending = true
		f.status = SaveSaving
		return
	}
	f.inflight = true
	e.startSaveLocked(questionID, f)
}

func (e *Engine) startSaveLocked(questionID string, f *field) {
	if e.closed {
		f.inflight = false
		f.pending = false
		return
	}
	seq := f.seq
	req := SaveRequest{QuestionID: questionID, AnswerText: f.text, AnswerJSON: f.raw}
	f.status = SaveSaving
	e.saving++
	go e.runSave(questionID, seq, req)
}

func (e *Engine) runSave(questionID string, seq uint64, req SaveRequest) {
	savedAt, err := e.saver.SaveAnswer(e.ctx, e.assessmentID, req)

	e.mu.Lock()
	f := e.fields[questionID]
	switch {
	case f.pending:
		f.pending = false
		e.startSaveLocked(questionID, f)
	case f.seq != seq:
		// 更新的修改仍在等待防抖
		f.inflight = false
	default:
		f.inflight = false
		if err != nil {
			f.status = SaveError
			f.err = err
		} else {
			f.status = SaveSaved
			f.savedAt = savedAt
			f.err = nil
		}
	}
	e.saving--
	if e.saving == 0 {
		e.idle.Broadcast()
	}
	e.mu.Unlock()
	e.notify(questionID)
}

func (e *Engine) notify(questionID string) {
	if e.onChange != nil {
		e.onChange(questionID)
	}
}
