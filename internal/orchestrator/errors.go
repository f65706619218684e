package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrMetaBlocked — сервер не сохранил настройки, мастер остановлен на шаге meta.
	ErrMetaBlocked = errors.New("meta step failed, wizard halted")

	// ErrBackwardTransition — попытка вернуться к более раннему шагу.
	ErrBackwardTransition = errors.New("backward step transition")

	// ErrAlreadyRunning — Run или ConfirmConnect уже выполняется.
	ErrAlreadyRunning = errors.New("wizard already running")

	// ErrAlreadyStarted — Run уже вызывался для этого Orchestrator.
	ErrAlreadyStarted = errors.New("wizard already started")

	// ErrNotAwaitingConnect — мастер не ждёт подключения провайдера.
	ErrNotAwaitingConnect = errors.New("wizard is not awaiting connect")

	// ErrNoHandler — для шага не зарегистрирован обработчик.
	ErrNoHandler = errors.New("no handler for step")
)
