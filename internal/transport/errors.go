package transport

import (
	"errors"
	"fmt"
)

// ErrTransport — запрос не дошёл до сервера или ответ не удалось разобрать.
var ErrTransport = errors.New("transport failure")

// ActionError — сервер обработал действие и ответил success=false.
type ActionError struct {
	// Action — имя действия.
	Action string

	// Message — текст сервера (может быть пустым).
	Message string

	// Data — data из конверта, если это объект.
	Data map[string]any
}

// Error реализует интерфейс error.
func (e *ActionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("action %s failed", e.Action)
	}
	return fmt.Sprintf("action %s failed: %s", e.Action, e.Message)
}

// IsActionError проверяет, что err — отказ сервера, а не сбой транспорта.
func IsActionError(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae)
}
