package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Provisio/internal/repo"
	"github.com/shaiso/Provisio/internal/transport"
)

// Ответы бывают двух видов:
//   - /ajax отвечает конвертом {success, data}, который ждёт мастер;
//   - /api/v1 отвечает {data} или {error: {code, message}}.

// ErrorCode — код ошибки REST API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// errorCodes сопоставляет HTTP статус и код ошибки.
var errorCodes = map[int]ErrorCode{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusConflict:            ErrCodeConflict,
	http.StatusInternalServerError: ErrCodeInternalError,
}

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — код и сообщение ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — тело успешного ответа. Total заполняется для списков.
type DataResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON пишет v с заданным статусом.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Success — 200 {data}.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created — 201 {data}.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// List — 200 {data, total}.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, DataResponse{Data: data, Total: total})
}

// Error пишет {error}. Код ошибки выводится из статуса.
func Error(w http.ResponseWriter, status int, message string) {
	code, ok := errorCodes[status]
	if !ok {
		code = ErrCodeInternalError
	}
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequest — 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// InternalError логирует err и отвечает 500 без подробностей.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// Envelope пишет конверт мастера.
func Envelope(w http.ResponseWriter, status int, env transport.Envelope) {
	JSON(w, status, env)
}

// ActionFailed пишет конверт {success: false, data: message}.
func ActionFailed(w http.ResponseWriter, status int, message string) {
	Envelope(w, status, transport.Failure(message))
}

// HandleRepoError отвечает по ошибке репозитория. Возвращает false, если err == nil.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repo.ErrNotFound):
		Error(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, repo.ErrAlreadyExists):
		Error(w, http.StatusConflict, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}
