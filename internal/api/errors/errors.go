// Пакет errors — конструкторы ошибок HTTP API transfer-receiver.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/zk-Lokomotive/zkl-sui-sol/internal/domain/failure"
)

// Коды ошибок, определённые в OpenAPI контракте.
// Отказы программы передаются своими кодами (failure.Code).
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeRuntimeViolation = "RUNTIME_VIOLATION"
	CodeIndexDisabled    = "INDEX_DISABLED"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// failureStatus — HTTP-статус для каждого кода отказа программы.
var failureStatus = map[failure.Code]int{
	failure.CodeMalformedInstruction:      http.StatusBadRequest,
	failure.CodeInsufficientPayloadLength: http.StatusBadRequest,
	failure.CodeInvalidEncoding:           http.StatusBadRequest,
	failure.CodeNotEnoughAccounts:         http.StatusBadRequest,
	failure.CodeRecipientMismatch:         http.StatusForbidden,
	failure.CodeStaleMessage:              http.StatusConflict,
	failure.CodeUnverifiedMessage:         http.StatusUnprocessableEntity,
	failure.CodeAllocationFailed:          http.StatusUnprocessableEntity,
	failure.CodeCorruptRecord:             http.StatusInternalServerError,
}

// FailureStatus возвращает HTTP-статус для отказа программы.
// ok = false, если err не является отказом программы.
func FailureStatus(err error) (status int, code failure.Code, ok bool) {
	code = failure.CodeOf(err)
	if code == "" {
		return 0, "", false
	}
	status, ok = failureStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return status, code, true
}

// WriteFailure записывает отказ программы с его кодом.
// Возвращает false, если err не является отказом программы.
func WriteFailure(w http.ResponseWriter, err error) bool {
	status, code, ok := FailureStatus(err)
	if !ok {
		return false
	}
	WriteError(w, status, string(code), err.Error())
	return true
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// RuntimeViolation — 422 результат вызова нарушает правила среды исполнения.
func RuntimeViolation(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeRuntimeViolation, message)
}

// IndexDisabled — 503 индекс получателей не настроен.
func IndexDisabled(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeIndexDisabled, message)
}

// PayloadTooLarge — 413 тело запроса превышает допустимый размер.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
