package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shaiso/Provisio/internal/domain"
	"github.com/shaiso/Provisio/internal/locale"
)

// detailMissingMetadata — причина пропуска элемента без метаданных.
const detailMissingMetadata = "missing metadata"

// detailProRequired — причина пропуска функций без подходящего тарифа.
const detailProRequired = "pro tier required"

// transition — решение обработчика о следующем шаге.
type transition struct {
	next domain.Step
	// stop — остановить цикл: complete, пауза на подключение или остановка на meta.
	stop bool
}

// handlerFunc — обработчик шага.
type handlerFunc func(ctx context.Context) (transition, error)

// next возвращает переход, выбранный Router для шага.
func (o *Orchestrator) next(step domain.Step) transition {
	return transition{next: NextStep(step, o.st)}
}

// handleStart — пауза перед сохранением настроек.
func (o *Orchestrator) handleStart(ctx context.Context) (transition, error) {
	if o.startDelay > 0 {
		timer := time.NewTimer(o.startDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return transition{}, ctx.Err()
		case <-timer.C:
		}
	}
	return o.next(domain.StepStart), nil
}

// handleMeta сохраняет настройки. Сбой останавливает мастер.
func (o *Orchestrator) handleMeta(ctx context.Context) (transition, error) {
	o.reporter.Status(locale.MsgMetaSaving, locale.Data{})

	resp, err := o.client.Post(ctx, domain.ActionSaveMeta, map[string]any{
		"meta": o.payload.Meta,
	})
	if err != nil {
		detail := err.Error()
		o.logger.Error("meta step failed, wizard halted", "error", err)
		o.reporter.Status(locale.MsgMetaFailed, locale.Data{Detail: detail})

		o.mutate(func(st *WizardState) {
			st.Halted = true
			st.HaltReason = detail
		})
		o.emit(ctx, Event{Type: domain.EventWizardHalted, Step: domain.StepMeta, Detail: detail})

		return transition{stop: true}, fmt.Errorf("%w: %v", ErrMetaBlocked, err)
	}

	if resp.NextStep != "" {
		next, perr := domain.ParseStep(resp.NextStep)
		if perr == nil && CanJumpTo(o.st, next) {
			o.logger.Info("following server next step", "next_step", next)
			o.mutate(func(st *WizardState) { st.ServerNextStep = next })
		} else {
			o.logger.Warn("ignoring server next step", "next_step", resp.NextStep)
		}
	}

	return o.next(domain.StepMeta), nil
}

// handleInstallDependencies устанавливает плагины из очереди установки.
func (o *Orchestrator) handleInstallDependencies(ctx context.Context) (transition, error) {
	o.drain(ctx, domain.QueueInstall, &o.st.PendingInstalls, o.installItem)
	return o.next(domain.StepInstallDependencies), nil
}

// installItem устанавливает один плагин.
//
// Успешная установка ставит плагин в очередь активации (один раз),
// неудачная убирает его оттуда.
func (o *Orchestrator) installItem(ctx context.Context, id string) ItemResult {
	item, ok := o.payload.PluginInfo(id)
	if !ok {
		return o.skip(id)
	}
	data := itemData(item)

	o.reporter.Status(locale.MsgInstalling, data)
	resp, err := o.client.Post(ctx, domain.ActionInstallPlugin, map[string]any{
		"plugin": id,
		"slug":   item.Slug,
	})
	if err != nil {
		o.logger.Warn("plugin install failed", "plugin", id, "error", err)
		data.Detail = err.Error()
		o.reporter.Status(locale.MsgInstallFailed, data)

		o.mutate(func(st *WizardState) {
			st.PendingActivations = slices.DeleteFunc(st.PendingActivations, func(a string) bool { return a == id })
		})
		return failed(item, err)
	}

	o.mutate(func(st *WizardState) {
		if resp.Basename != "" {
			st.Basenames[id] = resp.Basename
		}
		if !slices.Contains(st.PendingActivations, id) {
			st.PendingActivations = append(st.PendingActivations, id)
		}
	})
	o.reporter.Status(locale.MsgInstalled, data)

	return succeeded(item)
}

// handleActivateDependencies активирует плагины.
func (o *Orchestrator) handleActivateDependencies(ctx context.Context) (transition, error) {
	o.drain(ctx, domain.QueueActivate, &o.st.PendingActivations, o.activateItem)
	return o.next(domain.StepActivateDependencies), nil
}

// activateItem активирует один плагин по его basename.
func (o *Orchestrator) activateItem(ctx context.Context, id string) ItemResult {
	item, ok := o.payload.PluginInfo(id)
	if !ok {
		return o.skip(id)
	}
	data := itemData(item)

	basename := o.st.Basenames[id]
	if basename == "" {
		basename = item.Basename
	}
	if basename == "" {
		basename = id
	}

	o.reporter.Status(locale.MsgActivating, data)
	_, err := o.client.Post(ctx, domain.ActionActivatePlugin, map[string]any{
		"plugin":   id,
		"basename": basename,
	})
	if err != nil {
		o.logger.Warn("plugin activation failed", "plugin", id, "basename", basename, "error", err)
		data.Detail = err.Error()
		o.reporter.Status(locale.MsgActivateFailed, data)
		return failed(item, err)
	}

	o.reporter.Status(locale.MsgActivated, data)
	return succeeded(item)
}

// handleActivateLicense проверяет ключ. Сбой выставляет LicenseIssue и не останавливает мастер.
func (o *Orchestrator) handleActivateLicense(ctx context.Context) (transition, error) {
	o.reporter.Status(locale.MsgLicenseChecking, locale.Data{})

	resp, err := o.client.Post(ctx, domain.ActionActivateLicense, map[string]any{
		"license_key": o.st.LicenseKey,
	})

	var detail string
	switch {
	case err != nil:
		detail = err.Error()
	case !resp.Valid:
		detail = resp.Message
		if detail == "" {
			detail = "license key is not valid"
		}
	}

	if detail != "" {
		o.logger.Warn("license activation failed", "error", detail)
		o.reporter.Status(locale.MsgLicenseFailed, locale.Data{Detail: detail})
		o.mutate(func(st *WizardState) { st.LicenseIssue = true })
		return o.next(domain.StepActivateLicense), nil
	}

	o.mutate(func(st *WizardState) {
		st.ProTested = true
		st.IsPro = resp.IsPro
	})
	o.logger.Info("license activated", "is_pro", resp.IsPro)
	o.reporter.Status(locale.MsgLicenseValid, locale.Data{})

	return o.next(domain.StepActivateLicense), nil
}

// handleActivateFeatures включает функции.
//
// Три исхода: очередь пуста, тариф не позволяет (без запросов и без FeatureIssue),
// очередь обработана (любой сбой выставляет FeatureIssue).
func (o *Orchestrator) handleActivateFeatures(ctx context.Context) (transition, error) {
	gate := featureGate(o.st)
	o.mutate(func(st *WizardState) { st.FeatureGate = gate })

	switch gate {
	case FeatureGateNone:
		o.logger.Debug("no features requested")

	case FeatureGateProRequired:
		o.logger.Info("features require pro tier, skipping",
			"pro_tested", o.st.ProTested,
			"is_pro", o.st.IsPro,
			"license_issue", o.st.LicenseIssue,
		)
		o.reporter.Status(locale.MsgFeatureRequired, locale.Data{})

		var ids []string
		o.mutate(func(st *WizardState) {
			ids = dedupe(st.PendingFeatures)
			st.PendingFeatures = nil
		})
		for _, id := range ids {
			item, _ := o.payload.Feature(id)
			o.record(ctx, ItemResult{
				Queue:   domain.QueueFeature,
				ID:      id,
				Name:    item.Name,
				Outcome: domain.ItemSkipped,
				Detail:  detailProRequired,
			})
		}

	case FeatureGateAttempted:
		o.drain(ctx, domain.QueueFeature, &o.st.PendingFeatures, o.featureItem)
	}

	return o.next(domain.StepActivateFeatures), nil
}

// featureItem включает одну функцию.
func (o *Orchestrator) featureItem(ctx context.Context, id string) ItemResult {
	item, ok := o.payload.Feature(id)
	if !ok {
		return o.skip(id)
	}
	data := itemData(item)

	o.reporter.Status(locale.MsgActivatingFeature, data)
	_, err := o.client.Post(ctx, domain.ActionActivateFeature, map[string]any{
		"feature": id,
	})
	if err != nil {
		o.logger.Warn("feature activation failed", "feature", id, "error", err)
		data.Detail = err.Error()
		o.reporter.Status(locale.MsgFeatureFailed, data)
		o.mutate(func(st *WizardState) { st.FeatureIssue = true })
		return failed(item, err)
	}

	o.reporter.Status(locale.MsgFeatureActivated, data)
	return succeeded(item)
}

// handleCreateCampaign создаёт первую кампанию. Сбой не останавливает мастер.
func (o *Orchestrator) handleCreateCampaign(ctx context.Context) (transition, error) {
	if o.st.SkipCampaign {
		o.logger.Info("campaign creation skipped")
		return o.next(domain.StepCreateCampaign), nil
	}

	o.reporter.Status(locale.MsgCampaignCreating, locale.Data{})

	campaign := o.payload.Campaign
	resp, err := o.client.Post(ctx, domain.ActionCreateCampaign, map[string]any{
		"title":       campaign.Title,
		"goal":        campaign.Goal,
		"description": campaign.Description,
	})
	if err != nil {
		o.logger.Warn("campaign creation failed", "error", err)
		o.reporter.Status(locale.MsgCampaignFailed, locale.Data{Detail: err.Error()})
		return o.next(domain.StepCreateCampaign), nil
	}

	o.mutate(func(st *WizardState) { st.CampaignID = resp.CampaignID })
	o.reporter.Status(locale.MsgCampaignCreated, locale.Data{ID: resp.CampaignID})

	return o.next(domain.StepCreateCampaign), nil
}

// handleConfigurePaymentMethods сохраняет способы оплаты. Сбой не останавливает мастер.
func (o *Orchestrator) handleConfigurePaymentMethods(ctx context.Context) (transition, error) {
	o.reporter.Status(locale.MsgPaymentsSaving, locale.Data{})

	resp, err := o.client.Post(ctx, domain.ActionConfigurePayments, map[string]any{
		"payment_methods": o.st.PaymentMethods,
	})
	if err != nil {
		o.logger.Warn("payment methods configuration failed", "error", err)
		return o.next(domain.StepConfigurePaymentMethods), nil
	}

	if resp.ConnectURL != "" {
		o.mutate(func(st *WizardState) { st.ConnectURL = resp.ConnectURL })
	}

	return o.next(domain.StepConfigurePaymentMethods), nil
}

// handleAlmostComplete ждёт подключения провайдера, если оно нужно.
func (o *Orchestrator) handleAlmostComplete(ctx context.Context) (transition, error) {
	if !NeedsConnect(o.st, o.provider) {
		return o.next(domain.StepAlmostComplete), nil
	}

	o.mutate(func(st *WizardState) { st.AwaitingConnect = true })
	o.reporter.Show(NoticeConnect)
	o.reporter.Status(locale.MsgPaymentConnect, locale.Data{ID: o.provider, URL: o.st.ConnectURL})

	o.logger.Info("awaiting payment provider connect",
		"provider", o.provider,
		"connect_url", o.st.ConnectURL,
	)
	o.emit(ctx, Event{Type: domain.EventAwaitingConnect, Step: domain.StepAlmostComplete, Detail: o.st.ConnectURL})

	return transition{stop: true}, nil
}

// handleComplete уведомляет сервер и показывает финальный экран.
// Сбой уведомления только логируется.
func (o *Orchestrator) handleComplete(ctx context.Context) (transition, error) {
	resp, err := o.client.Post(ctx, domain.ActionCompleteSetup, map[string]any{
		"license_issue": o.st.LicenseIssue,
		"feature_issue": o.st.FeatureIssue,
		"campaign_id":   o.st.CampaignID,
	})
	if err != nil {
		o.logger.Warn("completion notification failed", "error", err)
		o.reporter.Status(locale.MsgCompleteFailed, locale.Data{Detail: err.Error()})
	} else {
		o.mutate(func(st *WizardState) { st.RedirectURL = resp.RedirectURL })
	}

	o.reporter.Show(NoticeCompletion)
	if o.st.LicenseIssue {
		o.reporter.Show(NoticeLicenseFailed)
	}
	if o.st.FeatureGate == FeatureGateProRequired {
		o.reporter.Show(NoticeFeatureRequired)
	}
	if o.st.FeatureIssue {
		o.reporter.Show(NoticeFeatureFailed)
	}
	o.reporter.Celebrate()

	o.mutate(func(st *WizardState) { st.Completed = true })

	o.logger.Info("wizard completed",
		"license_issue", o.st.LicenseIssue,
		"feature_issue", o.st.FeatureIssue,
		"feature_gate", o.st.FeatureGate,
		"duration", time.Since(o.startedAt),
	)
	o.emit(ctx, Event{Type: domain.EventWizardCompleted, Step: domain.StepComplete})

	return transition{stop: true}, nil
}

// skip пропускает элемент без метаданных: без запроса и без флагов.
func (o *Orchestrator) skip(id string) ItemResult {
	o.logger.Warn("no metadata for queued item, skipping", "item", id)
	o.reporter.Status(locale.MsgSkipped, locale.Data{ID: id, Name: id})
	return ItemResult{
		Outcome: domain.ItemSkipped,
		Detail:  detailMissingMetadata,
	}
}

func itemData(item domain.Item) locale.Data {
	return locale.Data{ID: item.ID, Name: item.DisplayName()}
}

func succeeded(item domain.Item) ItemResult {
	return ItemResult{Name: item.DisplayName(), Outcome: domain.ItemSucceeded}
}

func failed(item domain.Item, err error) ItemResult {
	return ItemResult{Name: item.DisplayName(), Outcome: domain.ItemFailed, Detail: err.Error()}
}
