package model

import (
	"errors"
	"fmt"
)

// ErrorKind — вид ошибки обработки. Каждый вид однозначно отображается
// в HTTP-статус на границе API.
type ErrorKind string

const (
	// KindInvalidFileType — расширение отсутствует или не допускается операцией (4xx)
	KindInvalidFileType ErrorKind = "InvalidFileType"
	// KindMimeMismatch — сигнатура содержимого не совпадает с расширением (4xx)
	KindMimeMismatch ErrorKind = "MimeMismatch"
	// KindEngineUnavailable — внешний инструмент отсутствует или не настроен (5xx)
	KindEngineUnavailable ErrorKind = "EngineUnavailable"
	// KindConversionFailed — инструмент отработал, но не дал пригодного результата (5xx)
	KindConversionFailed ErrorKind = "ConversionFailed"
	// KindPackagingFailed — ошибка сборки архива (5xx)
	KindPackagingFailed ErrorKind = "PackagingFailed"
)

// Error — ошибка с видом из таксономии. Op и Input — контекст для логов.
type Error struct {
	Kind    ErrorKind
	Op      Operation
	Input   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " [" + string(e.Op) + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError создаёт ошибку указанного вида.
func NewError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// KindOf возвращает вид ошибки или пустую строку, если err не *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind проверяет вид ошибки.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// WithContext дополняет ошибку операцией и идентификатором входа.
// Ошибки, не принадлежащие таксономии, становятся ConversionFailed.
func WithContext(err error, op Operation, input string) *Error {
	var e *Error
	if errors.As(err, &e) {
		copied := *e
		if copied.Op == "" {
			copied.Op = op
		}
		if copied.Input == "" {
			copied.Input = input
		}
		return &copied
	}
	return &Error{Kind: KindConversionFailed, Op: op, Input: input, Err: err}
}
