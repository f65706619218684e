package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownStep — идентификатор шага не входит в канонический список.
var ErrUnknownStep = errors.New("unknown step")

// Step — идентификатор шага мастера настройки.
//
// Канонический порядок:
//
//	start → meta → installDependencies → activateDependencies → activateLicense →
//	activateFeatures → createCampaign → configurePaymentMethods → almostComplete → complete
//
// Шаги проходятся только вперёд. activateLicense может быть пропущен,
// в complete можно перейти сразу из любого шага.
type Step string

const (
	// StepStart — экран приветствия.
	StepStart Step = "start"

	// StepMeta — сохранение настроек, собранных на первых экранах.
	StepMeta Step = "meta"

	// StepInstallDependencies — установка зависимых плагинов.
	StepInstallDependencies Step = "installDependencies"

	// StepActivateDependencies — активация установленных плагинов.
	StepActivateDependencies Step = "activateDependencies"

	// StepActivateLicense — проверка лицензионного ключа.
	StepActivateLicense Step = "activateLicense"

	// StepActivateFeatures — включение платных возможностей.
	StepActivateFeatures Step = "activateFeatures"

	// StepCreateCampaign — создание первой кампании.
	StepCreateCampaign Step = "createCampaign"

	// StepConfigurePaymentMethods — сохранение выбранных способов оплаты.
	StepConfigurePaymentMethods Step = "configurePaymentMethods"

	// StepAlmostComplete — предпоследний экран, здесь может быть пауза на подключение платёжного провайдера.
	StepAlmostComplete Step = "almostComplete"

	// StepComplete — финальный экран.
	StepComplete Step = "complete"
)

// CanonicalSteps — упорядоченный список всех шагов.
var CanonicalSteps = []Step{
	StepStart,
	StepMeta,
	StepInstallDependencies,
	StepActivateDependencies,
	StepActivateLicense,
	StepActivateFeatures,
	StepCreateCampaign,
	StepConfigurePaymentMethods,
	StepAlmostComplete,
	StepComplete,
}

// Index возвращает позицию шага в CanonicalSteps или -1.
func (s Step) Index() int {
	for i, c := range CanonicalSteps {
		if c == s {
			return i
		}
	}
	return -1
}

// IsValid возвращает true для шагов из канонического списка.
func (s Step) IsValid() bool {
	return s.Index() >= 0
}

// IsTerminal возвращает true, если шаг финальный.
func (s Step) IsTerminal() bool {
	return s == StepComplete
}

// String возвращает строковое представление Step.
func (s Step) String() string {
	return string(s)
}

// ParseStep парсит строку в Step.
func ParseStep(s string) (Step, error) {
	step := Step(s)
	if !step.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
	}
	return step, nil
}

// ItemOutcome — результат обработки одного элемента очереди.
type ItemOutcome string

const (
	// ItemSucceeded — сервер подтвердил операцию.
	ItemSucceeded ItemOutcome = "SUCCEEDED"

	// ItemFailed — сервер вернул ошибку или запрос не дошёл.
	ItemFailed ItemOutcome = "FAILED"

	// ItemSkipped — для элемента нет метаданных, запрос не отправлялся.
	ItemSkipped ItemOutcome = "SKIPPED"
)

// String возвращает строковое представление ItemOutcome.
func (o ItemOutcome) String() string {
	return string(o)
}

// Queue — имя очереди мастера.
type Queue string

const (
	QueueInstall  Queue = "install"
	QueueActivate Queue = "activate"
	QueueFeature  Queue = "feature"
)
