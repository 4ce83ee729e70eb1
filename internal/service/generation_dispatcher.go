package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"journey_backend/internal/config"
	"journey_backend/internal/model"
	"journey_backend/internal/util"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// GenerationRequest 派发给外部生成进程的任务
type GenerationRequest struct {
	AssessmentID string    `json:"assessment_id"`
	RunID        string    `json:"run_id"`
	Attempt      int       `json:"attempt"`
	CompanyName  string    `json:"company_name"`
	RequestedBy  string    `json:"requested_by"`
	RequestedAt  time.Time `json:"requested_at"`
}

// JobEvent 任务状态变化事件
type JobEvent struct {
	AssessmentID string         `json:"assessment_id"`
	RunID        string         `json:"run_id"`
	State        model.JobState `json:"state"`
	At           time.Time      `json:"at"`
}

// Dispatcher 把生成任务交给外部执行者
type Dispatcher interface {
	Dispatch(ctx context.Context, req GenerationRequest) error
	Publish(ctx context.Context, ev JobEvent) error
}

func NewDispatcher(cfg *config.GenerationConfig, rdb *redis.Client) Dispatcher {
	switch cfg.Dispatcher {
	case util.DispatcherHTTP:
		return &HTTPDispatcher{URL: cfg.WebhookURL, Client: &http.Client{Timeout: 15 * time.Second}}
	case util.DispatcherNoop:
		return NoopDispatcher{}
	}
	if rdb == nil {
		return NoopDispatcher{}
	}
	return &RedisDispatcher{Client: rdb, Queue: cfg.Queue, Channel: cfg.EventsChannel}
}

// RedisDispatcher 把任务 RPUSH 到外部执行者消费的列表，状态变化 PUBLISH 到事件频道
type RedisDispatcher struct {
	Client  *redis.Client
	Queue   string
	Channel string
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, req GenerationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return d.Client.RPush(ctx, d.Queue, payload).Err()
}

func (d *RedisDispatcher) Publish(ctx context.Context, ev JobEvent) error {
	if d.Channel == "" {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return d.Client.Publish(ctx, d.Channel, payload).Err()
}

// HTTPDispatcher 通过 webhook 触发外部执行者
type HTTPDispatcher struct {
	URL    string
	Client *http.Client
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, req GenerationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// Publish webhook 模式下没有事件通道
func (d *HTTPDispatcher) Publish(ctx context.Context, ev JobEvent) error {
	return nil
}

// NoopDispatcher 只记录状态，由外部进程自行轮询或通过回调推进
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(ctx context.Context, req GenerationRequest) error { return nil }
func (NoopDispatcher) Publish(ctx context.Context, ev JobEvent) error            { return nil }
