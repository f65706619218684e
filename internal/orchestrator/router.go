package orchestrator

import (
	"slices"

	"github.com/shaiso/Provisio/internal/domain"
)

// DefaultConnectProvider — способ оплаты, для которого нужен шаг подключения.
const DefaultConnectProvider = "stripe"

// NextStep возвращает шаг, следующий за current.
//
// Функция чистая: решение зависит только от state, который обработчик
// шага уже обновил по ответу сервера.
//
//	activateDependencies → activateLicense, если введён ключ, иначе activateFeatures
//	activateLicense      → activateFeatures всегда (сбой только выставляет LicenseIssue)
//	almostComplete       → complete (пауза на подключение решается через NeedsConnect)
func NextStep(current domain.Step, st *WizardState) domain.Step {
	switch current {
	case domain.StepStart:
		return domain.StepMeta
	case domain.StepMeta:
		if st.ServerNextStep != "" && CanJumpTo(st, st.ServerNextStep) {
			return st.ServerNextStep
		}
		return domain.StepInstallDependencies
	case domain.StepInstallDependencies:
		return domain.StepActivateDependencies
	case domain.StepActivateDependencies:
		if st.LicenseKey != "" {
			return domain.StepActivateLicense
		}
		return domain.StepActivateFeatures
	case domain.StepActivateLicense:
		return domain.StepActivateFeatures
	case domain.StepActivateFeatures:
		return domain.StepCreateCampaign
	case domain.StepCreateCampaign:
		return domain.StepConfigurePaymentMethods
	case domain.StepConfigurePaymentMethods:
		return domain.StepAlmostComplete
	default:
		return domain.StepComplete
	}
}

// CanJumpTo сообщает, можно ли сразу после meta перейти к target,
// который предложил сервер.
//
// complete разрешён всегда: сервер уже считает сайт настроенным.
// Другой шаг разрешён, только если пропускаемые шаги не оставляют работы
// и target не activateLicense без ключа.
func CanJumpTo(st *WizardState, target domain.Step) bool {
	if target == domain.StepComplete {
		return true
	}
	if target.Index() <= domain.StepMeta.Index() {
		return false
	}
	if target == domain.StepActivateLicense && st.LicenseKey == "" {
		return false
	}
	for _, step := range domain.CanonicalSteps[domain.StepMeta.Index()+1 : target.Index()] {
		if !idle(st, step) {
			return false
		}
	}
	return true
}

// idle возвращает true, если шагу нечего делать и его можно пропустить.
func idle(st *WizardState, step domain.Step) bool {
	switch step {
	case domain.StepInstallDependencies:
		return len(st.PendingInstalls) == 0
	case domain.StepActivateDependencies:
		return len(st.PendingActivations) == 0
	case domain.StepActivateLicense:
		return st.LicenseKey == ""
	case domain.StepActivateFeatures:
		return len(st.PendingFeatures) == 0
	case domain.StepCreateCampaign:
		return st.SkipCampaign
	case domain.StepConfigurePaymentMethods:
		return len(st.PaymentMethods) == 0
	default:
		return true
	}
}

// NeedsConnect возвращает true, если выбран способ оплаты provider
// и известен адрес подключения. В этом случае almostComplete ждёт действия пользователя.
func NeedsConnect(st *WizardState, provider string) bool {
	return st.ConnectURL != "" && slices.Contains(st.PaymentMethods, provider)
}

// featureGate решает, обрабатывать ли очередь функций.
func featureGate(st *WizardState) FeatureGate {
	if len(st.PendingFeatures) == 0 {
		return FeatureGateNone
	}
	if (st.ProTested && !st.IsPro) || st.LicenseIssue {
		return FeatureGateProRequired
	}
	return FeatureGateAttempted
}
