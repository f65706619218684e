package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Provisio/internal/domain"
	"github.com/shaiso/Provisio/internal/locale"
	"github.com/shaiso/Provisio/internal/telemetry"
)

// Default configuration values.
const (
	defaultStartDelay = time.Second
)

// Client — сетевой примитив: отправляет действие и возвращает ответ сервера.
//
// Ошибка означает success=false или сбой транспорта; оркестратор
// различает только успех и неуспех.
type Client interface {
	Post(ctx context.Context, action domain.Action, payload any) (domain.Response, error)
}

// Orchestrator проводит один сайт через мастер настройки.
//
// Шаги выполняются строго последовательно: обработчик шага возвращает
// решение о следующем шаге, и цикл walk вызывает advanceTo снова.
// В каждый момент выполняется не больше одного сетевого запроса.
type Orchestrator struct {
	client     Client
	surface    Surface
	sink       EventSink
	logger     *slog.Logger
	startDelay time.Duration
	provider   string
	runID      uuid.UUID

	handlers map[domain.Step]handlerFunc

	// Заполняются в Run.
	payload   *domain.StartupPayload
	reporter  *Reporter
	startedAt time.Time

	// st — состояние мастера. Пишет только горутина Run/ConfirmConnect,
	// mu нужен для снимков State() из других горутин.
	st *WizardState
	mu sync.RWMutex

	// running — флаг единственного писателя.
	running   bool
	runningMu sync.Mutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Client — сетевой примитив (обязательный).
	Client Client

	// Surface — экран мастера (default: ничего не показывает).
	Surface Surface

	// Sink — получатель событий (default: отбрасывает события).
	Sink EventSink

	// StartDelay — пауза между start и meta (default: 1s, отрицательное значение отключает паузу).
	StartDelay time.Duration

	// ConnectProvider — способ оплаты, требующий подключения (default: "stripe").
	ConnectProvider string

	// RunID — идентификатор прохождения (default: новый UUID).
	RunID uuid.UUID

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	startDelay := cfg.StartDelay
	if startDelay == 0 {
		startDelay = defaultStartDelay
	}
	if startDelay < 0 {
		startDelay = 0
	}

	provider := cfg.ConnectProvider
	if provider == "" {
		provider = DefaultConnectProvider
	}

	runID := cfg.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sink := cfg.Sink
	if sink == nil {
		sink = nopSink{}
	}

	surface := cfg.Surface
	if surface == nil {
		surface = nopSurface{}
	}

	o := &Orchestrator{
		client:     cfg.Client,
		surface:    surface,
		sink:       sink,
		logger:     telemetry.WithRunID(logger, runID.String()),
		startDelay: startDelay,
		provider:   provider,
		runID:      runID,
	}

	o.handlers = map[domain.Step]handlerFunc{
		domain.StepStart:                   o.handleStart,
		domain.StepMeta:                    o.handleMeta,
		domain.StepInstallDependencies:     o.handleInstallDependencies,
		domain.StepActivateDependencies:    o.handleActivateDependencies,
		domain.StepActivateLicense:         o.handleActivateLicense,
		domain.StepActivateFeatures:        o.handleActivateFeatures,
		domain.StepCreateCampaign:          o.handleCreateCampaign,
		domain.StepConfigurePaymentMethods: o.handleConfigurePaymentMethods,
		domain.StepAlmostComplete:          o.handleAlmostComplete,
		domain.StepComplete:                o.handleComplete,
	}

	return o
}

// RunID возвращает идентификатор прохождения.
func (o *Orchestrator) RunID() uuid.UUID {
	return o.runID
}

// Run проходит мастер с начала.
//
// Возвращает управление, когда мастер:
//   - дошёл до complete
//   - остановился на meta (ошибка оборачивает ErrMetaBlocked)
//   - ждёт подключения провайдера (Summary.AwaitingConnect, дальше ConfirmConnect)
//
// Summary возвращается и вместе с ошибкой.
func (o *Orchestrator) Run(ctx context.Context, payload domain.StartupPayload) (*Summary, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	o.mu.Lock()
	if o.st != nil {
		o.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	o.payload = &payload
	o.st = newWizardState(&payload)
	o.mu.Unlock()

	o.reporter = NewReporter(o.surface, locale.NewCatalog(payload.Copy, o.logger))
	o.startedAt = time.Now()

	o.logger.Info("wizard started",
		"site_id", payload.SiteID,
		"persisted_step", payload.CurrentStep,
		"installs", len(payload.Install),
		"activations", len(payload.Activate),
		"features", len(payload.Features),
	)
	o.emit(ctx, Event{Type: domain.EventWizardStarted, Step: payload.CurrentStep})

	first := domain.StepStart
	if payload.ReturningFromRedirect || payload.ChecklistCompleted || payload.CurrentStep.IsTerminal() {
		o.logger.Info("skipping provisioning",
			"returning_from_redirect", payload.ReturningFromRedirect,
			"checklist_completed", payload.ChecklistCompleted,
		)
		first = domain.StepComplete
	}

	err := o.walk(ctx, first)
	return o.summary(), err
}

// ConfirmConnect — действие пользователя на шаге подключения провайдера.
// Переводит мастер в complete.
func (o *Orchestrator) ConfirmConnect(ctx context.Context) (*Summary, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	o.mu.Lock()
	if o.st == nil || !o.st.AwaitingConnect {
		o.mu.Unlock()
		return nil, ErrNotAwaitingConnect
	}
	o.st.AwaitingConnect = false
	o.mu.Unlock()

	o.reporter.Hide(NoticeConnect)
	o.logger.Info("payment provider connect confirmed", "provider", o.provider)

	err := o.walk(ctx, domain.StepComplete)
	return o.summary(), err
}

// State возвращает копию текущего состояния.
func (o *Orchestrator) State() WizardState {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.st == nil {
		return WizardState{}
	}
	return o.st.clone()
}

// walk — цикл конечного автомата: advanceTo → обработчик → advanceTo.
func (o *Orchestrator) walk(ctx context.Context, step domain.Step) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := o.advanceTo(ctx, step); err != nil {
			return err
		}

		handler, ok := o.handlers[step]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoHandler, step)
		}

		tr, err := handler(ctx)
		if err != nil {
			return err
		}
		if tr.stop {
			return nil
		}
		step = tr.next
	}
}

// advanceTo — единственная точка смены шага.
//
// Шаг может только расти: повторный вход или возврат назад — ErrBackwardTransition.
func (o *Orchestrator) advanceTo(ctx context.Context, step domain.Step) error {
	if !step.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownStep, step)
	}

	current := o.st.CurrentStep
	if current != "" && step.Index() <= current.Index() {
		return fmt.Errorf("%w: %s -> %s", ErrBackwardTransition, current, step)
	}

	o.mutate(func(st *WizardState) {
		st.CurrentStep = step
		st.Visited = append(st.Visited, step)
	})

	o.reporter.Report(step)
	telemetry.WithStep(o.logger, step.String()).Info("step entered", "percent", Percent(step))
	o.emit(ctx, Event{Type: domain.EventStepEntered, Step: step})

	return nil
}

// mutate изменяет состояние под блокировкой.
func (o *Orchestrator) mutate(fn func(st *WizardState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.st)
}

// emit дополняет событие и отправляет его в sink.
func (o *Orchestrator) emit(ctx context.Context, ev Event) {
	ev.ID = uuid.New()
	ev.RunID = o.runID
	if o.payload != nil {
		ev.SiteID = o.payload.SiteID
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	if err := o.sink.Emit(ctx, ev); err != nil {
		o.logger.Warn("failed to emit event",
			"type", ev.Type,
			"error", err,
		)
	}
}

// summary собирает итог из текущего состояния.
func (o *Orchestrator) summary() *Summary {
	o.mu.RLock()
	defer o.mu.RUnlock()

	st := o.st.clone()
	return &Summary{
		RunID:           o.runID,
		FinalStep:       st.CurrentStep,
		Visited:         st.Visited,
		Completed:       st.Completed,
		Halted:          st.Halted,
		HaltReason:      st.HaltReason,
		AwaitingConnect: st.AwaitingConnect,
		ConnectURL:      st.ConnectURL,
		LicenseIssue:    st.LicenseIssue,
		FeatureIssue:    st.FeatureIssue,
		FeatureGate:     st.FeatureGate,
		CampaignID:      st.CampaignID,
		RedirectURL:     st.RedirectURL,
		Items:           st.Items,
		Duration:        time.Since(o.startedAt),
	}
}

// acquire захватывает флаг единственного писателя.
func (o *Orchestrator) acquire() error {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()

	if o.running {
		return ErrAlreadyRunning
	}
	o.running = true
	return nil
}

// release освобождает флаг единственного писателя.
func (o *Orchestrator) release() {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()
	o.running = false
}
