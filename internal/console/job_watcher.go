package console

import (
	"context"
	"journey_backend/internal/dto"
	"journey_backend/internal/model"
	"journey_backend/pkg/logger"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultStaleAfter   = 10 * time.Minute
)

// JobAPI 轮询需要的两个接口
type JobAPI interface {
	JobStatus(ctx context.Context, assessmentID string) (*dto.JobStatus, error)
	Trigger(ctx context.Context, assessmentID string, force bool) (*model.GenerationJob, error)
}

// JobWatcher 只在任务运行中时轮询，到达终态即停止；失败后不会自动重试
type JobWatcher struct {
	api          JobAPI
	assessmentID string
	interval     time.Duration
	staleAfter   time.Duration
	now          func() time.Time
	onUpdate     func(*dto.JobStatus)

	mu      sync.Mutex
	status  *dto.JobStatus
	lastErr error
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type WatcherOption func(*JobWatcher)

func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *JobWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithStaleAfter(d time.Duration) WatcherOption {
	return func(w *JobWatcher) {
		if d > 0 {
			w.staleAfter = d
		}
	}
}

func WithClock(now func() time.Time) WatcherOption {
	return func(w *JobWatcher) { w.now = now }
}

// WithOnUpdate 每次拿到新状态时回调，控制台用它驱动界面刷新
func WithOnUpdate(f func(*dto.JobStatus)) WatcherOption {
	return func(w *JobWatcher) { w.onUpdate = f }
}

func NewJobWatcher(api JobAPI, assessmentID string, opts ...WatcherOption) *JobWatcher {
	w := &JobWatcher{
		api:          api,
		assessmentID: assessmentID,
		interval:     DefaultPollInterval,
		staleAfter:   DefaultStaleAfter,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start 读取一次状态，运行中则开始轮询
func (w *JobWatcher) Start(ctx context.Context) (*dto.JobStatus, error) {
	st, err := w.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if running(st) {
		w.startPolling(ctx)
	}
	return st, nil
}

func (w *JobWatcher) Refresh(ctx context.Context) (*dto.JobStatus, error) {
	st, err := w.api.JobStatus(ctx, w.assessmentID)
	w.mu.Lock()
	w.lastErr = err
	if err == nil {
		w.status = st
	}
	cb := w.onUpdate
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if cb != nil {
		cb(st)
	}
	return st, nil
}

// Retry 由用户显式触发；force 用于重新派发仍在运行的任务
func (w *JobWatcher) Retry(ctx context.Context, force bool) (*dto.JobStatus, error) {
	job, err := w.api.Trigger(ctx, w.assessmentID, force)
	if err != nil {
		return nil, err
	}
	st := &dto.JobStatus{GenerationJob: job}
	w.mu.Lock()
	w.status = st
	w.lastErr = nil
	cb := w.onUpdate
	w.mu.Unlock()
	if cb != nil {
		cb(st)
	}
	if job.State == model.JobRunning {
		w.startPolling(ctx)
	}
	return st, nil
}

func (w *JobWatcher) startPolling(parent context.Context) {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer cancel()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.finishPolling(true)
				return
			case <-ticker.C:
				if _, err := w.Refresh(ctx); err != nil {
					// 临时错误继续轮询
					logger.Log.Debug("Job status poll failed", zap.String("assessment_id", w.assessmentID), zap.Error(err))
					continue
				}
				if w.finishPolling(false) {
					return
				}
			}
		}
	}()
}

// finishPolling 在锁内判断是否结束，避免与 Retry 启动的新一轮轮询交错
func (w *JobWatcher) finishPolling(force bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !force && running(w.status) {
		return false
	}
	w.cancel = nil
	return true
}

func running(st *dto.JobStatus) bool {
	return st != nil && st.GenerationJob != nil && st.State == model.JobRunning
}

func (w *JobWatcher) Polling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

func (w *JobWatcher) Status() *dto.JobStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *JobWatcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// TakingLonger 运行超过提示阈值，只做提示，不影响任务
func (w *JobWatcher) TakingLonger() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !running(w.status) {
		return false
	}
	return w.status.Elapsed(w.now()) > w.staleAfter
}

// Stop 停止轮询并等待退出
func (w *JobWatcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}
