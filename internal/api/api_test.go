package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Provisio/internal/domain"
	"github.com/shaiso/Provisio/internal/orchestrator"
	"github.com/shaiso/Provisio/internal/repo"
	"github.com/shaiso/Provisio/internal/transport"
)

// --- Test Doubles ---

// memSites — SiteStore в памяти. Get отдаёт копию, как настоящая БД,
// Save проверяет версию, как repo.SiteRepo.
type memSites struct {
	mu    sync.Mutex
	sites map[string]domain.Site

	// beforeSave вызывается перед проверкой версии, без блокировки.
	beforeSave func(id string)
}

func newMemSites() *memSites {
	return &memSites{sites: make(map[string]domain.Site)}
}

func (m *memSites) Get(_ context.Context, id string) (*domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	s.CompletedSteps = slices.Clone(s.CompletedSteps)
	s.PaymentMethods = slices.Clone(s.PaymentMethods)
	return &s, nil
}

func (m *memSites) Create(_ context.Context, site *domain.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[site.ID]; ok {
		return repo.ErrAlreadyExists
	}
	site.Version = 1
	m.sites[site.ID] = *site
	return nil
}

func (m *memSites) Save(_ context.Context, site *domain.Site) error {
	if m.beforeSave != nil {
		m.beforeSave(site.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sites[site.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Version != site.Version {
		return repo.ErrConflict
	}
	site.Version++
	m.sites[site.ID] = *site
	return nil
}

// touch имитирует параллельное действие: меняет meta и версию сайта.
func (m *memSites) touch(id, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sites[id]
	meta := make(map[string]any, len(s.Meta)+1)
	for k, v := range s.Meta {
		meta[k] = v
	}
	meta[key] = value
	s.Meta = meta
	s.Version++
	m.sites[id] = s
}

type memEvents struct {
	events []domain.Event
}

func (m *memEvents) ListByRun(_ context.Context, runID uuid.UUID) ([]domain.Event, error) {
	var out []domain.Event
	for _, ev := range m.events {
		if ev.RunID == runID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memEvents) ListBySite(_ context.Context, siteID string, limit int) ([]domain.Event, error) {
	var out []domain.Event
	for _, ev := range m.events {
		if ev.SiteID == siteID && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

const testNonce = "nonce-1"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, sites *memSites, events *memEvents) *httptest.Server {
	t.Helper()
	h := NewHandler(Config{
		Sites:       sites,
		Events:      events,
		Nonce:       testNonce,
		RedirectURL: "/dashboard",
		Logger:      discardLogger(),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func samplePayload() domain.StartupPayload {
	return domain.StartupPayload{
		Install:  []string{"forms", "forms", "stripe-gw"},
		Activate: []string{"forms"},
		Features: []string{"recurring"},
		Plugins: map[string]domain.Item{
			"forms":     {Name: "Forms", Slug: "forms"},
			"stripe-gw": {Name: "Stripe Gateway", Basename: "stripe/stripe.php"},
		},
		FeatureInfo: map[string]domain.Item{
			"recurring": {Name: "Recurring Donations"},
		},
		LicenseKey:     "PROKEY123",
		PaymentMethods: []string{"paypal"},
		Meta:           map[string]any{"currency": "USD"},
		Campaign:       domain.CampaignDraft{Title: "First", Goal: 500},
	}
}

func registerSite(t *testing.T, sites *memSites, id string, p domain.StartupPayload) {
	t.Helper()
	if err := sites.Create(context.Background(), &domain.Site{ID: id, CurrentStep: domain.StepStart, Payload: p}); err != nil {
		t.Fatalf("create site: %v", err)
	}
}

func postAction(t *testing.T, srv *httptest.Server, req transport.Request) (int, transport.Envelope) {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := http.Post(srv.URL+"/ajax", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var env transport.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp.StatusCode, env
}

// --- Action Tests ---

func TestHandleAction_BadNonce(t *testing.T) {
	sites := newMemSites()
	registerSite(t, sites, "s1", samplePayload())
	srv := newTestServer(t, sites, &memEvents{})

	status, env := postAction(t, srv, transport.Request{
		Action: string(domain.ActionSaveMeta),
		Nonce:  "wrong",
		SiteID: "s1",
	})

	if status != http.StatusForbidden {
		t.Errorf("expected 403, got %d", status)
	}
	if env.Success {
		t.Error("expected success=false")
	}
}

func TestHandleAction_UnknownSite(t *testing.T) {
	srv := newTestServer(t, newMemSites(), &memEvents{})

	status, env := postAction(t, srv, transport.Request{
		Action: string(domain.ActionSaveMeta),
		Nonce:  testNonce,
		SiteID: "missing",
	})

	if status != http.StatusNotFound || env.Success {
		t.Errorf("expected 404 failure, got %d success=%v", status, env.Success)
	}
}

func TestHandleAction_UnknownAction(t *testing.T) {
	sites := newMemSites()
	registerSite(t, sites, "s1", samplePayload())
	srv := newTestServer(t, sites, &memEvents{})

	status, env := postAction(t, srv, transport.Request{
		Action: "provisio_launch_rocket",
		Nonce:  testNonce,
		SiteID: "s1",
	})

	if status != http.StatusBadRequest || env.Success {
		t.Errorf("expected 400 failure, got %d success=%v", status, env.Success)
	}
}

func TestHandleAction_License(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
		isPro bool
	}{
		{"PROKEY123", true, true},
		{"BASIC1", true, false},
		{"abc123", false, false},
		{"SHORT", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			sites := newMemSites()
			registerSite(t, sites, "s1", samplePayload())
			srv := newTestServer(t, sites, &memEvents{})

			_, env := postAction(t, srv, transport.Request{
				Action:  string(domain.ActionActivateLicense),
				Nonce:   testNonce,
				SiteID:  "s1",
				Payload: map[string]any{"license_key": tt.key},
			})

			if env.Success != tt.valid {
				t.Fatalf("expected success=%v, got %v (%s)", tt.valid, env.Success, env.Data)
			}

			site, _ := sites.Get(context.Background(), "s1")
			if site.IsPro != tt.isPro {
				t.Errorf("expected is_pro=%v, got %v", tt.isPro, site.IsPro)
			}
			marked := site.CurrentStep == domain.StepActivateLicense
			if marked != tt.valid {
				t.Errorf("expected step marked=%v, current step %s", tt.valid, site.CurrentStep)
			}
		})
	}
}

func TestHandleAction_UnknownPluginRejected(t *testing.T) {
	sites := newMemSites()
	registerSite(t, sites, "s1", samplePayload())
	srv := newTestServer(t, sites, &memEvents{})

	status, env := postAction(t, srv, transport.Request{
		Action:  string(domain.ActionInstallPlugin),
		Nonce:   testNonce,
		SiteID:  "s1",
		Payload: map[string]any{"plugin": "nope"},
	})

	if status != http.StatusOK || env.Success {
		t.Errorf("expected 200 failure, got %d success=%v", status, env.Success)
	}

	site, _ := sites.Get(context.Background(), "s1")
	if site.CurrentStep != domain.StepStart {
		t.Errorf("rejected action must not mark a step, got %s", site.CurrentStep)
	}
}

func TestHandleAction_FeatureRequiresPro(t *testing.T) {
	sites := newMemSites()
	registerSite(t, sites, "s1", samplePayload())
	srv := newTestServer(t, sites, &memEvents{})

	_, env := postAction(t, srv, transport.Request{
		Action:  string(domain.ActionActivateFeature),
		Nonce:   testNonce,
		SiteID:  "s1",
		Payload: map[string]any{"feature": "recurring"},
	})

	if env.Success {
		t.Error("expected feature activation to be rejected without pro tier")
	}
}

func TestHandleAction_RetriesOnConcurrentUpdate(t *testing.T) {
	sites := newMemSites()
	registerSite(t, sites, "s1", samplePayload())

	var once sync.Once
	sites.beforeSave = func(id string) {
		once.Do(func() { sites.touch(id, "concurrent", "yes") })
	}
	srv := newTestServer(t, sites, &memEvents{})

	status, env := postAction(t, srv, transport.Request{
		Action:  string(domain.ActionInstallPlugin),
		Nonce:   testNonce,
		SiteID:  "s1",
		Payload: map[string]any{"plugin": "forms"},
	})
	if status != http.StatusOK || !env.Success {
		t.Fatalf("expected success after retry, got %d %+v", status, env)
	}

	site, _ := sites.Get(context.Background(), "s1")
	if site.Meta["concurrent"] != "yes" {
		t.Errorf("concurrent write lost: meta=%v", site.Meta)
	}
	if !slices.Contains(site.CompletedSteps, domain.StepInstallDependencies) {
		t.Errorf("action write lost: completed=%v", site.CompletedSteps)
	}
	if site.Version != 3 {
		t.Errorf("expected version 3 (create, touch, save), got %d", site.Version)
	}
}

func TestHandleAction_GivesUpOnConstantConflicts(t *testing.T) {
	sites := newMemSites()
	registerSite(t, sites, "s1", samplePayload())

	var saves int
	sites.beforeSave = func(id string) {
		saves++
		sites.touch(id, "writer", saves)
	}
	srv := newTestServer(t, sites, &memEvents{})

	status, env := postAction(t, srv, transport.Request{
		Action:  string(domain.ActionInstallPlugin),
		Nonce:   testNonce,
		SiteID:  "s1",
		Payload: map[string]any{"plugin": "forms"},
	})
	if status != http.StatusConflict || env.Success {
		t.Fatalf("expected 409 failure, got %d %+v", status, env)
	}
	if saves != maxActionAttempts {
		t.Errorf("expected %d attempts, got %d", maxActionAttempts, saves)
	}

	site, _ := sites.Get(context.Background(), "s1")
	if slices.Contains(site.CompletedSteps, domain.StepInstallDependencies) {
		t.Error("rejected action must not mark the step")
	}
}

// --- End-to-end Tests ---

func newWizard(srv *httptest.Server, siteID string) *orchestrator.Orchestrator {
	client := transport.New(transport.Config{
		Endpoint: srv.URL + "/ajax",
		Nonce:    testNonce,
		SiteID:   siteID,
		Logger:   discardLogger(),
	})
	return orchestrator.New(orchestrator.Config{
		Client:     client,
		StartDelay: -1,
		Logger:     discardLogger(),
	})
}

func TestWizard_AgainstBackend(t *testing.T) {
	sites := newMemSites()
	registerSite(t, sites, "s1", samplePayload())
	srv := newTestServer(t, sites, &memEvents{})

	sum, err := newWizard(srv, "s1").Run(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sum.Completed {
		t.Fatalf("expected completed wizard, final step %s", sum.FinalStep)
	}
	if sum.LicenseIssue || sum.FeatureIssue {
		t.Errorf("expected no issues, got license=%v feature=%v", sum.LicenseIssue, sum.FeatureIssue)
	}
	if sum.FeatureGate != orchestrator.FeatureGateAttempted {
		t.Errorf("expected features attempted, got %s", sum.FeatureGate)
	}
	if sum.RedirectURL != "/dashboard" {
		t.Errorf("expected redirect /dashboard, got %q", sum.RedirectURL)
	}
	if counts := sum.Counts(); counts[domain.ItemFailed] != 0 {
		t.Errorf("expected no failed items, got %v", sum.Items)
	}

	site, _ := sites.Get(context.Background(), "s1")
	if site.CurrentStep != domain.StepComplete || site.CompletedAt == nil {
		t.Errorf("expected server to record completion, got %s", site.CurrentStep)
	}
	if !site.IsPro {
		t.Error("expected server to record pro tier")
	}
	if site.CampaignID == "" || site.CampaignID != sum.CampaignID {
		t.Errorf("campaign id mismatch: server %q, client %q", site.CampaignID, sum.CampaignID)
	}

	want := []domain.Step{
		domain.StepMeta,
		domain.StepInstallDependencies,
		domain.StepActivateDependencies,
		domain.StepActivateLicense,
		domain.StepActivateFeatures,
		domain.StepCreateCampaign,
		domain.StepConfigurePaymentMethods,
		domain.StepComplete,
	}
	if !slices.Equal(site.CompletedSteps, want) {
		t.Errorf("expected server steps %v, got %v", want, site.CompletedSteps)
	}
}

func TestWizard_InvalidLicenseAgainstBackend(t *testing.T) {
	p := samplePayload()
	p.LicenseKey = "bad key"

	sites := newMemSites()
	registerSite(t, sites, "s1", p)
	srv := newTestServer(t, sites, &memEvents{})

	sum, err := newWizard(srv, "s1").Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sum.Completed || !sum.LicenseIssue {
		t.Errorf("expected completion with license issue, got %+v", sum)
	}
	if sum.FeatureGate != orchestrator.FeatureGateProRequired {
		t.Errorf("expected pro required, got %s", sum.FeatureGate)
	}
}

// --- Site Tests ---

func TestCreateSiteAndGetWizard(t *testing.T) {
	sites := newMemSites()
	srv := newTestServer(t, sites, &memEvents{})

	body, _ := json.Marshal(CreateSiteRequest{ID: "s2", Payload: samplePayload()})
	resp, err := http.Post(srv.URL+"/api/v1/sites", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Повторная регистрация — конфликт.
	resp, err = http.Post(srv.URL+"/api/v1/sites", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/sites/s2/wizard")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Data domain.StartupPayload `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data.SiteID != "s2" || out.Data.CurrentStep != domain.StepStart {
		t.Errorf("unexpected payload: site=%q step=%q", out.Data.SiteID, out.Data.CurrentStep)
	}
	if len(out.Data.Install) != 3 {
		t.Errorf("expected install queue to survive, got %v", out.Data.Install)
	}
}

func TestCreateSite_InvalidPayload(t *testing.T) {
	srv := newTestServer(t, newMemSites(), &memEvents{})

	p := samplePayload()
	p.CurrentStep = "warp"
	body, _ := json.Marshal(CreateSiteRequest{ID: "s3", Payload: p})
	resp, err := http.Post(srv.URL+"/api/v1/sites", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListRunEvents(t *testing.T) {
	runID := uuid.New()
	events := &memEvents{events: []domain.Event{
		{ID: uuid.New(), RunID: runID, Type: domain.EventWizardStarted},
		{ID: uuid.New(), RunID: uuid.New(), Type: domain.EventWizardStarted},
		{ID: uuid.New(), RunID: runID, Type: domain.EventWizardCompleted},
	}}
	srv := newTestServer(t, newMemSites(), events)

	resp, err := http.Get(srv.URL + "/api/v1/runs/" + runID.String() + "/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Data  []domain.Event `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 2 || len(out.Data) != 2 {
		t.Errorf("expected 2 events, got %d", len(out.Data))
	}

	resp2, err := http.Get(srv.URL + "/api/v1/runs/not-a-uuid/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp2.StatusCode)
	}
}

// --- Middleware Tests ---

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Fatal("expected generated request id")
	}
	if got := rec.Header().Get(headerRequestID); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "req-42" {
		t.Errorf("expected incoming request id to be kept, got %q", seen)
	}
}

func TestRecovery(t *testing.T) {
	h := Chain(Logging(discardLogger()), Recovery(discardLogger()))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ajax", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

// --- Helper Tests ---

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 50},
		{"10", 10},
		{"-1", 50},
		{"abc", 50},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.in, 50); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
