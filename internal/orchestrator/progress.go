package orchestrator

import (
	"math"

	"github.com/shaiso/Provisio/internal/domain"
	"github.com/shaiso/Provisio/internal/locale"
)

// Notice — баннер или панель на экране мастера.
type Notice string

const (
	NoticeLicenseFailed   Notice = "license_failed"
	NoticeFeatureRequired Notice = "feature_required"
	NoticeFeatureFailed   Notice = "feature_failed"
	NoticeCompletion      Notice = "completion"
	NoticeConnect         Notice = "connect"
)

// Surface — экран, на котором отображается мастер.
//
// Все методы — побочные эффекты без результата.
type Surface interface {
	SetHeadline(text string)
	SetSubHeadline(text string)
	SetProgress(percent int)
	SetStatus(text string)
	ShowNotice(n Notice)
	HideNotice(n Notice)
	Celebrate()
}

// Percent возвращает процент прогресса для шага.
//
// percent = round(index / len(CanonicalSteps) * 100); для start всегда 0,
// для неизвестного шага тоже 0.
func Percent(step domain.Step) int {
	idx := step.Index()
	if idx <= 0 {
		return 0
	}
	return int(math.Round(float64(idx) / float64(len(domain.CanonicalSteps)) * 100))
}

// Reporter синхронизирует экран с текущим шагом.
type Reporter struct {
	surface Surface
	catalog *locale.Catalog
}

// NewReporter создаёт Reporter.
func NewReporter(surface Surface, catalog *locale.Catalog) *Reporter {
	if surface == nil {
		surface = nopSurface{}
	}
	return &Reporter{surface: surface, catalog: catalog}
}

// Report выставляет прогресс и заголовки для шага.
func (r *Reporter) Report(step domain.Step) {
	h := r.catalog.Headline(step)
	r.surface.SetProgress(Percent(step))
	r.surface.SetHeadline(h.Title)
	r.surface.SetSubHeadline(h.Subtitle)
}

// Status рендерит статусное сообщение, показывает его и возвращает текст.
func (r *Reporter) Status(key string, data locale.Data) string {
	text := r.catalog.Message(key, data)
	r.surface.SetStatus(text)
	return text
}

// Show показывает баннер.
func (r *Reporter) Show(n Notice) { r.surface.ShowNotice(n) }

// Hide скрывает баннер.
func (r *Reporter) Hide(n Notice) { r.surface.HideNotice(n) }

// Celebrate запускает финальный эффект.
func (r *Reporter) Celebrate() { r.surface.Celebrate() }

// nopSurface — экран, который ничего не показывает.
type nopSurface struct{}

func (nopSurface) SetHeadline(string)    {}
func (nopSurface) SetSubHeadline(string) {}
func (nopSurface) SetProgress(int)       {}
func (nopSurface) SetStatus(string)      {}
func (nopSurface) ShowNotice(Notice)     {}
func (nopSurface) HideNotice(Notice)     {}
func (nopSurface) Celebrate()            {}
