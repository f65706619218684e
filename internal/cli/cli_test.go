package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Provisio/internal/config"
	"github.com/shaiso/Provisio/internal/domain"
	"github.com/shaiso/Provisio/internal/orchestrator"
	"github.com/shaiso/Provisio/internal/transport"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Surface Tests ---

func decodeLines(t *testing.T, buf *bytes.Buffer) []surfaceLine {
	t.Helper()
	var lines []surfaceLine
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var l surfaceLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l), "line %q", sc.Text())
		lines = append(lines, l)
	}
	return lines
}

func TestJSONSurface_Lines(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONSurface(&buf)

	s.SetHeadline("Welcome")
	s.SetProgress(0)
	s.SetStatus("Installing Forms…")
	s.ShowNotice(orchestrator.NoticeConnect)
	s.HideNotice(orchestrator.NoticeConnect)
	s.Celebrate()

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 6)

	assert.Equal(t, "headline", lines[0].Kind)
	assert.Equal(t, "Welcome", lines[0].Text)

	require.NotNil(t, lines[1].Percent, "zero progress must still be reported")
	assert.Equal(t, 0, *lines[1].Percent)

	assert.Equal(t, "notice.show", lines[3].Kind)
	assert.Equal(t, string(orchestrator.NoticeConnect), lines[3].Notice)
	assert.NotEmpty(t, lines[3].Text)
	assert.Equal(t, "notice.hide", lines[4].Kind)
	assert.Equal(t, "celebrate", lines[5].Kind)
}

func TestNewSurface_NonTerminalIsJSON(t *testing.T) {
	var buf bytes.Buffer
	_, ok := NewSurface(&buf, false).(*JSONSurface)
	assert.True(t, ok, "buffer is not a terminal")

	_, ok = NewSurface(os.Stdout, true).(*JSONSurface)
	assert.True(t, ok, "--json forces JSON")
}

func TestTerminalSurface_NoticeShownOnce(t *testing.T) {
	var buf bytes.Buffer
	s := NewTerminalSurface(&buf)

	s.ShowNotice(orchestrator.NoticeLicenseFailed)
	s.ShowNotice(orchestrator.NoticeLicenseFailed)
	assert.Equal(t, 1, strings.Count(buf.String(), "License activation failed"))

	s.HideNotice(orchestrator.NoticeLicenseFailed)
	s.ShowNotice(orchestrator.NoticeLicenseFailed)
	assert.Equal(t, 2, strings.Count(buf.String(), "License activation failed"))
}

func TestTerminalSurface_Output(t *testing.T) {
	var buf bytes.Buffer
	s := NewTerminalSurface(&buf)

	s.SetHeadline("Install dependencies")
	s.SetSubHeadline("")
	s.SetProgress(30)
	s.SetStatus("Forms installed")
	s.Celebrate()

	out := buf.String()
	assert.Contains(t, out, "Install dependencies")
	assert.Contains(t, out, " 30%")
	assert.Contains(t, out, "  Forms installed")
	assert.Contains(t, out, "Setup complete!")
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent int
		filled  int
		label   string
	}{
		{0, 0, "   0%"},
		{30, 3, "  30%"},
		{100, 10, " 100%"},
		{150, 10, " 100%"},
		{-5, 0, "   0%"},
	}

	for _, tt := range tests {
		bar := progressBar(tt.percent, 10)
		assert.Equal(t, tt.filled, strings.Count(bar, "█"), "percent %d", tt.percent)
		assert.Equal(t, 10-tt.filled, strings.Count(bar, "░"), "percent %d", tt.percent)
		assert.True(t, strings.HasSuffix(bar, "]"+tt.label), "bar %q", bar)
	}
}

// --- Output Tests ---

func TestOutput_Table(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputTo(false, &stdout, &stderr)

	out.Print([]string{"STEP", "PROGRESS"}, [][]string{{"meta", "10%"}, {"complete"}}, nil)

	s := stdout.String()
	assert.Contains(t, s, "STEP")
	assert.Contains(t, s, "meta")
	assert.Contains(t, s, "10%")
	assert.Contains(t, s, "complete")
	assert.Empty(t, stderr.String())
}

func TestOutput_JSON(t *testing.T) {
	var stdout bytes.Buffer
	out := NewOutputTo(true, &stdout, &bytes.Buffer{})

	out.Print([]string{"STEP"}, [][]string{{"meta"}}, stepInfos())

	var steps []stepInfo
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &steps))
	require.Len(t, steps, len(domain.CanonicalSteps))
	assert.Equal(t, 30, steps[3].Percent)
	assert.Equal(t, 0, steps[0].Percent)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

// --- Summary Tests ---

func TestSummaryRows(t *testing.T) {
	sum := &orchestrator.Summary{
		RunID:       uuid.New(),
		FinalStep:   domain.StepMeta,
		Halted:      true,
		HaltReason:  "boom",
		FeatureGate: orchestrator.FeatureGateNone,
		Items: []orchestrator.ItemResult{
			{Queue: domain.QueueInstall, ID: "a", Outcome: domain.ItemSucceeded},
			{Queue: domain.QueueInstall, ID: "b", Outcome: domain.ItemFailed, Detail: "nope"},
		},
		Duration: 1500 * time.Millisecond,
	}

	rows := summaryRows(sum)
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r[0]] = r[1]
	}

	assert.Equal(t, "meta", values["Final step"])
	assert.Equal(t, "true (boom)", values["Halted"])
	assert.Equal(t, "1 succeeded, 1 failed, 0 skipped", values["Items"])
	assert.Equal(t, "1.5s", values["Duration"])
	assert.NotContains(t, values, "Campaign")

	items := itemRows(sum.Items)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"install", "b", "", "FAILED", "nope"}, items[1])
}

func TestPromptConnect(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"\n", true},
		{"yes\n", true},
		{"later\n", false},
		{"", false},
	}

	for _, tt := range tests {
		var prompt bytes.Buffer
		got := promptConnect(strings.NewReader(tt.input), &prompt, "stripe", "https://connect.example/x")
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, prompt.String(), "https://connect.example/x")
	}
}

// --- Client Tests ---

func TestClient_GetWizard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/sites/s1/wizard" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"site not found"}}`))
			return
		}
		w.Write([]byte(`{"data":{"site_id":"s1","current_step":"meta","install":["forms"]}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	assert.Equal(t, srv.URL+"/ajax", client.ActionEndpoint())

	p, err := client.GetWizard("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", p.SiteID)
	assert.Equal(t, domain.StepMeta, p.CurrentStep)
	assert.Equal(t, []string{"forms"}, p.Install)

	_, err = client.GetWizard("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND: site not found")
}

// --- Command Tests ---

// fakeBackend отвечает успехом на все действия и предлагает connect_url
// при сохранении способов оплаты.
type fakeBackend struct {
	mu      sync.Mutex
	actions []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.actions = append(b.actions, req.Action)
	b.mu.Unlock()

	data := map[string]any{}
	switch domain.Action(req.Action) {
	case domain.ActionConfigurePayments:
		data["connect_url"] = "https://connect.example/acct"
	case domain.ActionCreateCampaign:
		data["campaign_id"] = "cmp-1"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transport.Success(data))
}

func writePayload(t *testing.T, p domain.StartupPayload) string {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "wizard.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

type testCLI struct {
	root    *cobra.Command
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	journal string
}

func newTestCLI(t *testing.T, apiURL, stdin string) *testCLI {
	t.Helper()

	tc := &testCLI{
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		journal: filepath.Join(t.TempDir(), "journal.db"),
	}
	cfg := config.CLI{
		APIURL:          apiURL,
		JournalPath:     tc.journal,
		Timeout:         5 * time.Second,
		ConnectProvider: "stripe",
	}
	out := NewOutputTo(false, tc.stdout, tc.stderr)
	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output { return out }

	tc.root = &cobra.Command{Use: "provisio", SilenceUsage: true, SilenceErrors: true}
	tc.root.AddCommand(
		NewRunCmd(cfg, clientFn, outputFn),
		NewHistoryCmd(cfg, clientFn, outputFn),
		NewStepsCmd(outputFn),
	)
	tc.root.SetIn(strings.NewReader(stdin))
	tc.root.SetOut(tc.stdout)
	tc.root.SetErr(tc.stderr)
	return tc
}

func (tc *testCLI) exec(args ...string) error {
	tc.root.SetArgs(args)
	return tc.root.Execute()
}

func TestRunCmd_ConnectConfirmed(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	path := writePayload(t, domain.StartupPayload{
		SiteID:         "s1",
		Install:        []string{"forms"},
		Plugins:        map[string]domain.Item{"forms": {Name: "Forms"}},
		PaymentMethods: []string{"stripe"},
		Campaign:       domain.CampaignDraft{Title: "First"},
	})

	tc := newTestCLI(t, srv.URL, "\n")
	require.NoError(t, tc.exec("run", "--payload", path, "--start-delay", "0"))

	out := tc.stdout.String()
	assert.Contains(t, out, `"kind":"celebrate"`)
	assert.Contains(t, out, "Final step")
	assert.Contains(t, out, "cmp-1")
	assert.Contains(t, tc.stderr.String(), "https://connect.example/acct")

	backend.mu.Lock()
	actions := backend.actions
	backend.mu.Unlock()
	assert.Equal(t, string(domain.ActionCompleteSetup), actions[len(actions)-1])

	// Журнал видит завершённое прохождение.
	tc.stdout.Reset()
	require.NoError(t, tc.exec("history"))
	assert.Contains(t, tc.stdout.String(), "completed")
}

func TestRunCmd_ConnectDeferred(t *testing.T) {
	srv := httptest.NewServer(&fakeBackend{})
	defer srv.Close()

	path := writePayload(t, domain.StartupPayload{
		SiteID:         "s1",
		PaymentMethods: []string{"stripe"},
		SkipCampaign:   true,
	})

	tc := newTestCLI(t, srv.URL, "later\n")
	require.NoError(t, tc.exec("run", "--payload", path, "--start-delay", "0"))

	assert.Contains(t, tc.stderr.String(), "Wizard paused at almostComplete")
	assert.NotContains(t, tc.stdout.String(), `"kind":"celebrate"`)
}

func TestRunCmd_RequiresPayloadOrSite(t *testing.T) {
	tc := newTestCLI(t, "http://127.0.0.1:1", "")
	err := tc.exec("run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--payload or --site")
}

func TestHistoryCmd_InvalidRunID(t *testing.T) {
	tc := newTestCLI(t, "http://127.0.0.1:1", "")
	err := tc.exec("history", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run id")
}

func TestStepsCmd(t *testing.T) {
	tc := newTestCLI(t, "http://127.0.0.1:1", "")
	require.NoError(t, tc.exec("steps"))

	out := tc.stdout.String()
	for _, s := range domain.CanonicalSteps {
		assert.Contains(t, out, string(s))
	}
	assert.Contains(t, out, "90%")
}
