package domain

import (
	"errors"
	"fmt"
)

// Reason - машинный код отказа, уходит клиенту как есть
type Reason string

const (
	ReasonCooldownActive      Reason = "cooldown_active"
	ReasonDailyLimitReached   Reason = "daily_limit_reached"
	ReasonAlreadyCompleted    Reason = "already_completed"
	ReasonTaskInactive        Reason = "task_inactive"
	ReasonInsufficientBalance Reason = "insufficient_balance"
	ReasonInvalidMethod       Reason = "invalid_method"
	ReasonBelowMinimum        Reason = "below_minimum"
	ReasonInvalidDestination  Reason = "invalid_destination"
	ReasonAccountBanned       Reason = "account_banned"
	ReasonBonusAlreadyPaid    Reason = "bonus_already_paid"
	ReasonReferralInactive    Reason = "referral_inactive"
	ReasonReferralNotEngaged  Reason = "referral_not_engaged"
)

// DenyError - ожидаемый отказ политики, без ретраев
type DenyError struct {
	Reason Reason
}

func (e *DenyError) Error() string {
	return "отказ: " + string(e.Reason)
}

// Deny оборачивает код отказа в ошибку
func Deny(reason Reason) error {
	return &DenyError{Reason: reason}
}

// DenyReason достает код отказа, если это отказ политики
func DenyReason(err error) (Reason, bool) {
	var de *DenyError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return "", false
}

var (
	ErrAccountNotFound    = errors.New("пользователь не найден")
	ErrTaskNotFound       = errors.New("задание не найдено")
	ErrWithdrawalNotFound = errors.New("заявка на вывод не найдена")
	ErrReferralNotFound   = errors.New("реферальная связь не найдена")
	ErrSettingNotFound    = errors.New("настройка не найдена")

	ErrInvalidTransition = errors.New("заявка уже обработана")
	ErrInvalidAmount     = errors.New("неверная сумма")
	ErrInvalidDecision   = errors.New("неизвестное решение")
	ErrInvalidKind       = errors.New("неизвестный тип начисления")
	ErrInvalidProfile    = errors.New("нет telegram id")
	ErrInvalidInput      = errors.New("некорректные данные")
	ErrCodeExhausted     = errors.New("не удалось сгенерировать уникальный реферальный код")
)

// ErrorClass - класс ошибки для транспорта
type ErrorClass int

const (
	ClassStorage ErrorClass = iota
	ClassDenied
	ClassNotFound
	ClassInvalidTransition
	ClassBadRequest
)

// Classify раскладывает ошибку по таксономии
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassStorage
	case errors.As(err, new(*DenyError)):
		return ClassDenied
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrTaskNotFound),
		errors.Is(err, ErrWithdrawalNotFound), errors.Is(err, ErrReferralNotFound),
		errors.Is(err, ErrSettingNotFound):
		return ClassNotFound
	case errors.Is(err, ErrInvalidTransition):
		return ClassInvalidTransition
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidDecision), errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrInvalidKind), errors.Is(err, ErrInvalidProfile), errors.Is(err, ErrInvalidInput):
		return ClassBadRequest
	default:
		return ClassStorage
	}
}

// TransitionError уточняет, в каком статусе уже была заявка
func TransitionError(id int64, status WithdrawalStatus) error {
	return fmt.Errorf("заявка #%d в статусе %s: %w", id, status, ErrInvalidTransition)
}
