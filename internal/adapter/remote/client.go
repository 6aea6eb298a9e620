package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/plastinin/identtracker/internal/config"
	"github.com/plastinin/identtracker/internal/domain"
	"go.uber.org/zap"
)

// maxResponseSize ограничение на размер тела ответа
const maxResponseSize = 32 << 20 // 32 MB

var (
	// ErrUnauthorized сервер отклонил токен
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedResponse тело ответа не соответствует протоколу
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError ответ сервера с ошибкой
type APIError struct {
	StatusCode int    // HTTP статус
	Status     string // Поле status конверта
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("remote api: http %d", e.StatusCode)
	if e.Status != "" {
		msg += fmt.Sprintf(", status %q", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Client клиент удалённого API задач идентификации
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      CredentialProvider
	logger     *zap.Logger
}

// NewClient создаёт новый экземпляр Client
func NewClient(cfg config.RemoteAPIConfig, creds CredentialProvider, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		creds:   creds,
		logger:  logger,
	}
}

// createRequest тело запроса на создание задачи
type createRequest struct {
	FileID       int64          `json:"file_id"`
	AlgorithmKey string         `json:"algorithm_key"`
	Params       map[string]any `json:"params"`
}

// CreateTask создаёт задачу. POST /tasks
func (c *Client) CreateTask(ctx context.Context, submission domain.Submission) (string, error) {
	params := submission.Params
	if params == nil {
		params = map[string]any{}
	}

	env, err := c.do(ctx, http.MethodPost, "/tasks", createRequest{
		FileID:       submission.FileID,
		AlgorithmKey: submission.AlgorithmKey,
		Params:       params,
	})
	if err != nil {
		return "", err
	}

	t, err := env.task()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return t.TaskID, nil
}

// GetTaskStatus возвращает статус задачи. GET /tasks/{id}
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (*domain.RemoteStatus, error) {
	env, err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}

	t, err := env.task()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	state, err := domain.ParseRemoteState(t.state())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	status := &domain.RemoteStatus{
		State:   state,
		Stage:   t.Stage,
		Message: t.Message,
	}
	if t.Progress != nil {
		status.Progress = *t.Progress
	}
	if t.Error != nil {
		status.ErrorCode = t.Error.Code
		status.ErrorMessage = t.Error.Message
	}

	return status, nil
}

// GetTaskResult возвращает результат задачи. GET /tasks/{id}/result
func (c *Client) GetTaskResult(ctx context.Context, taskID string) (*domain.Result, error) {
	env, err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/result", nil)
	if err != nil {
		return nil, err
	}

	t, err := env.task()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if t.Result == nil {
		return nil, fmt.Errorf("%w: result is missing", ErrMalformedResponse)
	}

	return &domain.Result{
		TaskID: taskID,
		Values: t.Result,
		Meta:   t.Meta,
	}, nil
}

// CancelTask отменяет задачу. POST /tasks/{id}/cancel
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	_, err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/cancel", nil)
	return err
}

// do выполняет запрос и разбирает конверт ответа
func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Remote API request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", time.Since(startTime)),
		zap.String("request_id", requestID),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusUnauthorized || env.Status == statusUnauthorized {
		c.creds.Invalidate(ctx)
		c.logger.Warn("Remote API rejected credentials",
			zap.String("path", path),
			zap.String("request_id", requestID),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Status: env.Status, Message: env.Message, Err: ErrUnauthorized}
	}

	if decodeErr != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    snippet(raw),
			Err:        fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Status != StatusSuccess {
		return nil, &APIError{StatusCode: resp.StatusCode, Status: env.Status, Message: env.Message}
	}

	return &env, nil
}

// snippet обрезает тело ответа для сообщения об ошибке
func snippet(raw []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(raw))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
