package models

import (
	"errors"
	"fmt"
)

// Классы ошибок. Любая ошибка клиента биржи оборачивает ровно один из них.
var (
	ErrAuth              = errors.New("auth error")
	ErrValidation        = errors.New("validation error")
	ErrExchangeRejection = errors.New("exchange rejection")
	ErrTransient         = errors.New("transient network error")
	ErrPositionTooSmall  = errors.New("position too small")

	ErrInvalidSignal     = fmt.Errorf("invalid signal: %w", ErrValidation)
	ErrInvalidParameters = fmt.Errorf("invalid parameters: %w", ErrValidation)
	ErrDuplicateTpSl     = fmt.Errorf("tp/sl slice already covered: %w", ErrExchangeRejection)
)

// ExchangeError: ответ биржи с code != "0" (или не-2xx статус).
type ExchangeError struct {
	Code       string
	Msg        string
	HTTPStatus int
	Path       string

	class error
}

func NewExchangeError(class error, path, code, msg string, status int) *ExchangeError {
	return &ExchangeError{Code: code, Msg: msg, HTTPStatus: status, Path: path, class: class}
}

func (e *ExchangeError) Error() string {
	if e.HTTPStatus != 0 && e.Code == "" {
		return fmt.Sprintf("blofin %s: http %d: %s", e.Path, e.HTTPStatus, e.Msg)
	}
	return fmt.Sprintf("blofin %s: code=%s msg=%s", e.Path, e.Code, e.Msg)
}

func (e *ExchangeError) Unwrap() error {
	if e.class == nil {
		return ErrExchangeRejection
	}
	return e.class
}

// IsRetryable: повторять имеет смысл только сетевые/временные сбои.
func IsRetryable(err error) bool {
	return err != nil && errors.Is(err, ErrTransient)
}

func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }

// ErrorClass возвращает короткое имя класса для логов и метрик.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrPositionTooSmall):
		return "position_too_small"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrExchangeRejection):
		return "rejection"
	default:
		return "unknown"
	}
}
