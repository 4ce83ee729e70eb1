// Package console 是运营/客户端的命令行前端：HTTP 客户端、生成任务轮询、文档上传位
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"journey_backend/internal/dto"
	"journey_backend/internal/model"
	"journey_backend/internal/questionnaire"
	"journey_backend/internal/util"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Client 调用 journey 后端 API，实现问卷引擎的 Saver/Submitter
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

// APIError 非 2xx 响应；已知业务错误可以用 errors.Is 判断
type APIError struct {
	Status  int
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

var knownErrors = []error{
	util.ErrPermissionDenied,
	util.ErrAssessmentNotFound,
	util.ErrQuestionNotFound,
	util.ErrDocumentNotFound,
	util.ErrJobNotRetryable,
	util.ErrJobNotRunning,
	util.ErrJobNotCompleted,
	util.ErrStaleRun,
	util.ErrAlreadyApproved,
	util.ErrNotApproved,
	util.ErrFormSubmitted,
	util.ErrFormReadOnly,
	util.ErrRequiredUnanswered,
	util.ErrQuestionNotInAssessment,
	util.ErrEmptyAnswer,
	util.ErrInvalidAnswer,
	util.ErrUnknownSlot,
	util.ErrFileTooLarge,
	util.ErrUnsupportedFileType,
	util.ErrNotOwnerRole,
}

// Unwrap 按服务端返回的 message 前缀还原哨兵错误
func (e *APIError) Unwrap() error {
	for _, known := range knownErrors {
		if strings.HasPrefix(e.Message, known.Error()) {
			return known
		}
	}
	return nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Data: env.Data}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	return c.do(ctx, method, path, "application/json", body, out)
}

func assessmentPath(id, suffix string) string {
	return "/api/assessments/" + id + suffix
}

func (c *Client) Assessment(ctx context.Context, assessmentID string) (*dto.AssessmentView, error) {
	var v dto.AssessmentView
	if err := c.doJSON(ctx, http.MethodGet, assessmentPath(assessmentID, ""), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) JobStatus(ctx context.Context, assessmentID string) (*dto.JobStatus, error) {
	var st dto.JobStatus
	if err := c.doJSON(ctx, http.MethodGet, assessmentPath(assessmentID, "/generation"), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) Trigger(ctx context.Context, assessmentID string, force bool) (*model.GenerationJob, error) {
	var job model.GenerationJob
	if err := c.doJSON(ctx, http.MethodPost, assessmentPath(assessmentID, "/generation"), dto.TriggerRequest{Force: force}, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) Approve(ctx context.Context, assessmentID string) (*model.ApprovalRecord, error) {
	var rec model.ApprovalRecord
	if err := c.doJSON(ctx, http.MethodPost, "/api/admin/assessments/"+assessmentID+"/approve", nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) Questionnaire(ctx context.Context, assessmentID string) (*dto.QuestionnaireView, error) {
	var v dto.QuestionnaireView
	if err := c.doJSON(ctx, http.MethodGet, assessmentPath(assessmentID, "/questionnaire"), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Journey(ctx context.Context, assessmentID string) (*dto.JourneyView, error) {
	var v dto.JourneyView
	if err := c.doJSON(ctx, http.MethodGet, assessmentPath(assessmentID, "/journey"), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SaveAnswer 实现 questionnaire.Saver
func (c *Client) SaveAnswer(ctx context.Context, assessmentID string, req questionnaire.SaveRequest) (time.Time, error) {
	var res dto.SaveAnswerResponse
	if err := c.doJSON(ctx, http.MethodPost, assessmentPath(assessmentID, "/answers"), req, &res); err != nil {
		return time.Time{}, err
	}
	return res.SavedAt, nil
}

// SubmitForm 实现 questionnaire.Submitter
func (c *Client) SubmitForm(ctx context.Context, assessmentID string) error {
	return c.doJSON(ctx, http.MethodPost, assessmentPath(assessmentID, "/submit"), nil, nil)
}

func (c *Client) Uploads(ctx context.Context, assessmentID string) (map[string][]model.UploadedDocument, error) {
	slots := map[string][]model.UploadedDocument{}
	if err := c.doJSON(ctx, http.MethodGet, assessmentPath(assessmentID, "/uploads"), nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// File 待上传的本地文件
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Upload 以 multipart 发送单个文件
func (c *Client) Upload(ctx context.Context, assessmentID, slotKey string, f File) (*model.UploadedDocument, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("slot_key", slotKey); err != nil {
		return nil, err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(f.Name)))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var doc model.UploadedDocument
	if err := c.do(ctx, http.MethodPost, assessmentPath(assessmentID, "/uploads"), w.FormDataContentType(), &buf, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) RemoveUpload(ctx context.Context, documentID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/uploads/"+documentID, nil, nil)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Overview 控制台首屏需要的全部数据
type Overview struct {
	Journey       *dto.JourneyView
	Job           *dto.JobStatus
	Questionnaire *dto.QuestionnaireView
	Uploads       map[string][]model.UploadedDocument
}

// LoadOverview 并发拉取旅程、任务、问卷与上传列表，任一失败即返回
func (c *Client) LoadOverview(ctx context.Context, assessmentID string) (*Overview, error) {
	var ov Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.Journey(gctx, assessmentID)
		ov.Journey = v
		return err
	})
	g.Go(func() error {
		v, err := c.JobStatus(gctx, assessmentID)
		ov.Job = v
		return err
	})
	g.Go(func() error {
		v, err := c.Questionnaire(gctx, assessmentID)
		ov.Questionnaire = v
		return err
	})
	g.Go(func() error {
		v, err := c.Uploads(gctx, assessmentID)
		ov.Uploads = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ov, nil
}

// IsStatus 判断错误是否为指定状态码的 API 错误
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
