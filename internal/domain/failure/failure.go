// Пакет failure — классификация отказов программы.
// Каждый отказ окончателен для вызова: состояние не меняется,
// причина доступна вызывающему через errors.Is и машиночитаемый Code.
package failure

import (
	"errors"
	"fmt"
)

// Code — машиночитаемый код отказа.
type Code string

// Коды отказов.
const (
	CodeMalformedInstruction      Code = "MALFORMED_INSTRUCTION"
	CodeInsufficientPayloadLength Code = "INSUFFICIENT_PAYLOAD_LENGTH"
	CodeInvalidEncoding           Code = "INVALID_ENCODING"
	CodeRecipientMismatch         Code = "RECIPIENT_MISMATCH"
	CodeAllocationFailed          Code = "ALLOCATION_FAILED"
	CodeCorruptRecord             Code = "CORRUPT_RECORD"
	CodeUnverifiedMessage         Code = "UNVERIFIED_MESSAGE"
	CodeStaleMessage              Code = "STALE_MESSAGE"
	CodeNotEnoughAccounts         Code = "NOT_ENOUGH_ACCOUNTS"
)

// Виды отказов.
var (
	// ErrMalformedInstruction — инструкция не декодируется
	ErrMalformedInstruction = errors.New("некорректная инструкция")
	// ErrInsufficientPayloadLength — payload короче, чем требуют его поля
	ErrInsufficientPayloadLength = errors.New("недостаточная длина payload")
	// ErrInvalidEncoding — строка payload не является корректным UTF-8
	ErrInvalidEncoding = errors.New("некорректная кодировка payload")
	// ErrRecipientMismatch — аккаунт получателя не совпадает с получателем сообщения
	ErrRecipientMismatch = errors.New("получатель не совпадает")
	// ErrAllocationFailed — не удалось выделить или сопоставить хранилище записи
	ErrAllocationFailed = errors.New("не удалось выделить хранилище записи")
	// ErrCorruptRecord — сохранённая запись не декодируется
	ErrCorruptRecord = errors.New("запись повреждена")
	// ErrUnverifiedMessage — мост не подтвердил сообщение
	ErrUnverifiedMessage = errors.New("сообщение не подтверждено мостом")
	// ErrStaleMessage — сообщение старше сохранённой записи или конфликтует с ней
	ErrStaleMessage = errors.New("устаревшее или конфликтующее сообщение")
	// ErrNotEnoughAccounts — передано меньше аккаунтов, чем требует вызов
	ErrNotEnoughAccounts = errors.New("недостаточно аккаунтов")
)

var codes = map[error]Code{
	ErrMalformedInstruction:      CodeMalformedInstruction,
	ErrInsufficientPayloadLength: CodeInsufficientPayloadLength,
	ErrInvalidEncoding:           CodeInvalidEncoding,
	ErrRecipientMismatch:         CodeRecipientMismatch,
	ErrAllocationFailed:          CodeAllocationFailed,
	ErrCorruptRecord:             CodeCorruptRecord,
	ErrUnverifiedMessage:         CodeUnverifiedMessage,
	ErrStaleMessage:              CodeStaleMessage,
	ErrNotEnoughAccounts:         CodeNotEnoughAccounts,
}

// Error — отказ программы: вид, пояснение и исходная причина.
type Error struct {
	Kind   error
	Detail string
	Cause  error
}

// New создаёт отказ вида kind.
func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap создаёт отказ вида kind с исходной причиной cause.
func Wrap(kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Cause: cause}
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap позволяет errors.Is находить и вид, и причину.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Code возвращает машиночитаемый код отказа.
func (e *Error) Code() Code {
	return codes[e.Kind]
}

// CodeOf возвращает код отказа для err; пусто, если err не отказ программы.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code()
	}
	for kind, code := range codes {
		if errors.Is(err, kind) {
			return code
		}
	}
	return ""
}
