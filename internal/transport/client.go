package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shaiso/Provisio/internal/domain"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody — сколько байт тела ответа попадает в текст ошибки.
const maxErrorBody = 200

// Observer получает длительность и результат каждого действия.
type Observer func(action string, d time.Duration, err error)

// Client — HTTP-клиент endpoint мастера.
type Client struct {
	endpoint   string
	nonce      string
	siteID     string
	httpClient *http.Client
	timeout    time.Duration
	observer   Observer
	logger     *slog.Logger
}

// Config — конфигурация Client.
type Config struct {
	// Endpoint — полный URL, например "http://localhost:8080/ajax".
	Endpoint string

	// Nonce — токен запроса, передаётся в каждом теле.
	Nonce string

	// SiteID — сайт, для которого проходит мастер.
	SiteID string

	// Timeout — таймаут одного запроса (default: 30s).
	Timeout time.Duration

	// HTTPClient (default: http.Client без собственного таймаута).
	HTTPClient *http.Client

	// Observer — hook для метрик (опционально).
	Observer Observer

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   cfg.Endpoint,
		nonce:      cfg.Nonce,
		siteID:     cfg.SiteID,
		httpClient: httpClient,
		timeout:    timeout,
		observer:   cfg.Observer,
		logger:     logger,
	}
}

// Post отправляет действие и разбирает конверт ответа.
func (c *Client) Post(ctx context.Context, action domain.Action, payload any) (domain.Response, error) {
	start := time.Now()
	resp, err := c.post(ctx, string(action), payload)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer(string(action), elapsed, err)
	}

	c.logger.Debug("action posted",
		"action", action,
		"duration", elapsed,
		"error", err,
	)

	return resp, err
}

func (c *Client) post(ctx context.Context, action string, payload any) (domain.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(Request{
		Action:  action,
		Nonce:   c.nonce,
		SiteID:  c.siteID,
		Payload: payload,
	})
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: marshal request: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if httpResp.StatusCode >= 400 {
			return domain.Response{}, fmt.Errorf("%w: HTTP %d: %s", ErrTransport, httpResp.StatusCode, truncate(string(respBody), maxErrorBody))
		}
		return domain.Response{}, fmt.Errorf("%w: decode envelope: %v", ErrTransport, err)
	}

	if !env.Success {
		return domain.Response{}, actionError(action, env.Data)
	}

	return decodeResponse(env.Data)
}

// decodeResponse разбирает data успешного конверта.
// Строка попадает в Message, объект — в поля Response и Raw.
func decodeResponse(data json.RawMessage) (domain.Response, error) {
	var resp domain.Response
	if len(data) == 0 || string(data) == "null" {
		return resp, nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		resp.Message = text
		return resp, nil
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.Response{}, fmt.Errorf("%w: decode data: %v", ErrTransport, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err == nil {
		resp.Raw = raw
	}
	return resp, nil
}

// actionError строит ActionError из data отказа.
func actionError(action string, data json.RawMessage) *ActionError {
	ae := &ActionError{Action: action}
	if len(data) == 0 {
		return ae
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		ae.Message = text
		return ae
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil {
		ae.Data = obj
		if msg, ok := obj["message"].(string); ok {
			ae.Message = msg
		}
	}
	return ae
}

// truncate обрезает строку до maxLen символов (рун), не разрезая UTF-8.
func truncate(s string, maxLen int) string {
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
