package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/shaiso/Provisio/internal/orchestrator"
)

// Палитра терминала.
var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	headlineStyle = lipgloss.NewStyle().Bold(true).Foreground(purple)
	mutedStyle    = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	successStyle  = lipgloss.NewStyle().Foreground(green)
	warnStyle     = lipgloss.NewStyle().Foreground(yellow)
	errorStyle    = lipgloss.NewStyle().Foreground(red)
)

// progressWidth — ширина полосы прогресса в символах.
const progressWidth = 30

// noticeText — тексты баннеров.
var noticeText = map[orchestrator.Notice]string{
	orchestrator.NoticeLicenseFailed:   "License activation failed. Premium features stay locked until a valid key is entered.",
	orchestrator.NoticeFeatureRequired: "Some features need the pro tier and were not enabled.",
	orchestrator.NoticeFeatureFailed:   "Some features could not be enabled. You can retry from the settings page.",
	orchestrator.NoticeCompletion:      "Your site is ready to accept donations.",
	orchestrator.NoticeConnect:         "Connect your payment provider to finish the setup.",
}

// NewSurface выбирает экран: стилизованный терминал для TTY,
// JSON-строки для всего остального или при jsonMode.
func NewSurface(w io.Writer, jsonMode bool) orchestrator.Surface {
	if jsonMode || !isTerminal(w) {
		return NewJSONSurface(w)
	}
	return NewTerminalSurface(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// --- TerminalSurface ---

// TerminalSurface печатает мастер в терминал построчно.
type TerminalSurface struct {
	mu      sync.Mutex
	w       io.Writer
	visible map[orchestrator.Notice]bool
}

// NewTerminalSurface создаёт TerminalSurface.
func NewTerminalSurface(w io.Writer) *TerminalSurface {
	return &TerminalSurface{
		w:       w,
		visible: make(map[orchestrator.Notice]bool),
	}
}

func (s *TerminalSurface) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}

func (s *TerminalSurface) SetHeadline(text string) {
	s.println("\n" + headlineStyle.Render(text))
}

func (s *TerminalSurface) SetSubHeadline(text string) {
	if text == "" {
		return
	}
	s.println(mutedStyle.Render(text))
}

func (s *TerminalSurface) SetProgress(percent int) {
	s.println(progressBar(percent, progressWidth))
}

func (s *TerminalSurface) SetStatus(text string) {
	s.println("  " + text)
}

// ShowNotice печатает баннер один раз, пока он не скрыт.
func (s *TerminalSurface) ShowNotice(n orchestrator.Notice) {
	s.mu.Lock()
	if s.visible[n] {
		s.mu.Unlock()
		return
	}
	s.visible[n] = true
	s.mu.Unlock()

	text, ok := noticeText[n]
	if !ok {
		text = string(n)
	}

	switch n {
	case orchestrator.NoticeLicenseFailed, orchestrator.NoticeFeatureFailed:
		s.println(errorStyle.Render("✗") + " " + text)
	case orchestrator.NoticeCompletion:
		s.println(successStyle.Render("✓") + " " + text)
	default:
		s.println(warnStyle.Render("!") + " " + text)
	}
}

func (s *TerminalSurface) HideNotice(n orchestrator.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.visible, n)
}

func (s *TerminalSurface) Celebrate() {
	s.println(successStyle.Bold(true).Render("🎉 Setup complete!"))
}

// progressBar рисует полосу вида "[████░░░░] 40%".
func progressBar(percent, width int) string {
	percent = max(0, min(percent, 100))
	filled := percent * width / 100

	return "[" +
		successStyle.Render(strings.Repeat("█", filled)) +
		faintStyle.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf("] %3d%%", percent)
}

// --- JSONSurface ---

// surfaceLine — одна строка JSONSurface.
type surfaceLine struct {
	Kind    string `json:"kind"`
	Text    string `json:"text,omitempty"`
	Percent *int   `json:"percent,omitempty"`
	Notice  string `json:"notice,omitempty"`
}

// JSONSurface пишет каждый вызов отдельной JSON-строкой.
type JSONSurface struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSurface создаёт JSONSurface.
func NewJSONSurface(w io.Writer) *JSONSurface {
	return &JSONSurface{enc: json.NewEncoder(w)}
}

func (s *JSONSurface) write(line surfaceLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enc.Encode(line)
}

func (s *JSONSurface) SetHeadline(text string) {
	s.write(surfaceLine{Kind: "headline", Text: text})
}

func (s *JSONSurface) SetSubHeadline(text string) {
	s.write(surfaceLine{Kind: "subheadline", Text: text})
}

func (s *JSONSurface) SetProgress(percent int) {
	s.write(surfaceLine{Kind: "progress", Percent: &percent})
}

func (s *JSONSurface) SetStatus(text string) {
	s.write(surfaceLine{Kind: "status", Text: text})
}

func (s *JSONSurface) ShowNotice(n orchestrator.Notice) {
	s.write(surfaceLine{Kind: "notice.show", Notice: string(n), Text: noticeText[n]})
}

func (s *JSONSurface) HideNotice(n orchestrator.Notice) {
	s.write(surfaceLine{Kind: "notice.hide", Notice: string(n)})
}

func (s *JSONSurface) Celebrate() {
	s.write(surfaceLine{Kind: "celebrate"})
}
