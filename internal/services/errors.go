package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrorKind groups failures by how the HTTP boundary reports them.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindBusinessRule
	KindGateway
	KindSignature
	KindConflict
	KindInternal
)

// AppError is a classified failure of a payment or order operation.
// errors.Is matches on Code, so the exported sentinels work as targets
// even when the returned error carries extra detail.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	IDs     []uuid.UUID
	Err     error
}

func (e *AppError) Error() string {
	msg := e.Code + ": " + e.Message
	if len(e.IDs) > 0 {
		ids := make([]string, len(e.IDs))
		for i, id := range e.IDs {
			ids[i] = id.String()
		}
		msg += " [" + strings.Join(ids, ", ") + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func newError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func (e *AppError) withIDs(ids []uuid.UUID) *AppError {
	cp := *e
	cp.IDs = ids
	return &cp
}

func (e *AppError) wrap(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func (e *AppError) withMessage(format string, args ...any) *AppError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

var (
	ErrValidation          = newError(KindValidation, "VALIDATION_FAILED", "invalid request")
	ErrInvalidAmount       = newError(KindValidation, "INVALID_AMOUNT", "amounts must be finite and non-negative")
	ErrInvalidQuantity     = newError(KindValidation, "INVALID_QUANTITY", "quantities must be positive")
	ErrEmptyBasket         = newError(KindValidation, "EMPTY_BASKET", "basket is empty")
	ErrProductsNotFound    = newError(KindNotFound, "PRODUCTS_NOT_FOUND", "some products could not be found")
	ErrProductsUnpublished = newError(KindBusinessRule, "PRODUCTS_UNPUBLISHED", "some products are not available for sale")
	ErrInsufficientStock   = newError(KindBusinessRule, "INSUFFICIENT_STOCK", "some products do not have enough stock")
	ErrAddressNotFound     = newError(KindNotFound, "ADDRESS_NOT_FOUND", "address not found")
	ErrUserNotFound        = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrOrderNotFound       = newError(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrOrderItemNotFound   = newError(KindNotFound, "ORDER_ITEM_NOT_FOUND", "order item not found")

	ErrDiscountNotFound     = newError(KindNotFound, "DISCOUNT_NOT_FOUND", "discount code not found")
	ErrDiscountInactive     = newError(KindBusinessRule, "DISCOUNT_INACTIVE", "discount code is not active")
	ErrDiscountExpired      = newError(KindBusinessRule, "DISCOUNT_EXPIRED", "discount code has expired")
	ErrDiscountLimitReached = newError(KindBusinessRule, "DISCOUNT_LIMIT_REACHED", "discount code usage limit reached")
	ErrDiscountOutOfScope   = newError(KindBusinessRule, "DISCOUNT_OUT_OF_SCOPE", "discount code does not apply to every product in the basket")

	ErrTokenNotFound = newError(KindNotFound, "TOKEN_NOT_FOUND", "payment session not found")
	ErrTokenExpired  = newError(KindBusinessRule, "TOKEN_EXPIRED", "payment session has expired")

	ErrCancelNotAllowed = newError(KindBusinessRule, "CANCEL_NOT_ALLOWED", "order cannot be cancelled")
	ErrRefundNotAllowed = newError(KindBusinessRule, "REFUND_NOT_ALLOWED", "order items cannot be refunded")
	ErrStatusTransition = newError(KindBusinessRule, "INVALID_STATUS_TRANSITION", "order status cannot be changed")

	ErrGatewayUnavailable = newError(KindGateway, "GATEWAY_UNAVAILABLE", "payment provider is unavailable")
	ErrSignatureMismatch  = newError(KindSignature, "SIGNATURE_MISMATCH", "payment could not be verified")

	ErrConcurrencyConflict = newError(KindConflict, "CONCURRENCY_CONFLICT", "the request conflicted with a concurrent update")
	ErrInternal            = newError(KindInternal, "INTERNAL", "internal error")
)

// ValidationError reports a malformed request detected outside this package.
func ValidationError(message string) error {
	return ErrValidation.withMessage("%s", message)
}

// KindOf returns the kind of err, treating unclassified errors as internal.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return KindGateway
	}
	return KindInternal
}
