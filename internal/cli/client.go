package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/Provisio/internal/domain"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// SiteResponse — прогресс сайта из API.
type SiteResponse struct {
	ID             string        `json:"id"`
	CurrentStep    domain.Step   `json:"current_step"`
	CompletedSteps []domain.Step `json:"completed_steps"`
	IsPro          bool          `json:"is_pro"`
	CampaignID     string        `json:"campaign_id,omitempty"`
	CompletedAt    string        `json:"completed_at,omitempty"`
	UpdatedAt      string        `json:"updated_at"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для REST API бэкенда.
//
// Действия мастера (/ajax) отправляет transport.Client, этот клиент
// читает конфигурацию сайтов и аудит.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL возвращает адрес API без завершающего слэша.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ActionEndpoint возвращает адрес endpoint действий мастера.
func (c *Client) ActionEndpoint() string {
	return c.baseURL + "/ajax"
}

// --- Sites ---

// RegisterSite регистрирует сайт со стартовой конфигурацией.
func (c *Client) RegisterSite(id string, payload domain.StartupPayload) (*SiteResponse, error) {
	body := map[string]any{"id": id, "payload": payload}
	var site SiteResponse
	err := c.post("/api/v1/sites", body, &site)
	return &site, err
}

// GetSite возвращает прогресс сайта.
func (c *Client) GetSite(id string) (*SiteResponse, error) {
	var site SiteResponse
	err := c.get("/api/v1/sites/"+url.PathEscape(id), &site)
	return &site, err
}

// GetWizard возвращает стартовую конфигурацию мастера для сайта.
func (c *Client) GetWizard(siteID string) (domain.StartupPayload, error) {
	var payload domain.StartupPayload
	err := c.get("/api/v1/sites/"+url.PathEscape(siteID)+"/wizard", &payload)
	return payload, err
}

// --- Audit ---

// ListRunEvents возвращает события прохождения, записанные бэкендом.
func (c *Client) ListRunEvents(runID string) ([]domain.Event, error) {
	var events []domain.Event
	err := c.list("/api/v1/runs/"+url.PathEscape(runID)+"/events", nil, &events)
	return events, err
}

// ListSiteEvents возвращает последние события сайта.
func (c *Client) ListSiteEvents(siteID string, limit int) ([]domain.Event, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var events []domain.Event
	err := c.list("/api/v1/sites/"+url.PathEscape(siteID)+"/events", params, &events)
	return events, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
