// errors.go — ошибки сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — запись не найдена или ещё не заполнялась.
	ErrNotFound = errors.New("запись не найдена")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrUnverifiedDisabled — приём неподтверждённых буферов выключен.
	ErrUnverifiedDisabled = errors.New("приём неподтверждённых payload отключён")
	// ErrFaucetDisabled — faucet выключен.
	ErrFaucetDisabled = errors.New("faucet отключён")
)
