package domain

// Action — имя действия, которое мастер отправляет серверу.
type Action string

const (
	ActionSaveMeta          Action = "provisio_save_meta"
	ActionInstallPlugin     Action = "provisio_install_plugin"
	ActionActivatePlugin    Action = "provisio_activate_plugin"
	ActionActivateLicense   Action = "provisio_activate_license"
	ActionActivateFeature   Action = "provisio_activate_feature"
	ActionCreateCampaign    Action = "provisio_create_campaign"
	ActionConfigurePayments Action = "provisio_configure_payments"
	ActionCompleteSetup     Action = "provisio_complete_setup"
)

// Step возвращает шаг, который сервер отмечает после успешного действия.
func (a Action) Step() Step {
	switch a {
	case ActionSaveMeta:
		return StepMeta
	case ActionInstallPlugin:
		return StepInstallDependencies
	case ActionActivatePlugin:
		return StepActivateDependencies
	case ActionActivateLicense:
		return StepActivateLicense
	case ActionActivateFeature:
		return StepActivateFeatures
	case ActionCreateCampaign:
		return StepCreateCampaign
	case ActionConfigurePayments:
		return StepConfigurePaymentMethods
	case ActionCompleteSetup:
		return StepComplete
	default:
		return ""
	}
}
