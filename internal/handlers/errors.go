package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/services"
)

const (
	codeInternal       = "INTERNAL"
	codePaymentFailed  = "PAYMENT_FAILED"
	internalErrMessage = "an unexpected error occurred, please try again later"
)

type errorBody struct {
	Success bool     `json:"success"`
	Status  string   `json:"status"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	IDs     []string `json:"ids,omitempty"`
}

// statusFor maps a service error onto its HTTP status and public code.
// Signature and internal failures never expose their detail.
func statusFor(err error, locale string) (int, errorBody) {
	body := errorBody{Status: "failure"}

	var gwErr *services.GatewayError
	if errors.As(err, &gwErr) {
		body.Code = gwErr.ErrorCode
		body.Message = gwErr.UserMessage(locale)
		return fiber.StatusPaymentRequired, body
	}

	var appErr *services.AppError
	if !errors.As(err, &appErr) {
		body.Code = codeInternal
		body.Message = internalErrMessage
		return fiber.StatusInternalServerError, body
	}

	body.Code = appErr.Code
	body.Message = appErr.Message
	for _, id := range appErr.IDs {
		body.IDs = append(body.IDs, id.String())
	}

	switch appErr.Kind {
	case services.KindValidation:
		return fiber.StatusBadRequest, body
	case services.KindNotFound:
		return fiber.StatusNotFound, body
	case services.KindBusinessRule:
		return fiber.StatusUnprocessableEntity, body
	case services.KindGateway:
		return fiber.StatusBadGateway, body
	case services.KindConflict:
		return fiber.StatusConflict, body
	case services.KindSignature:
		return fiber.StatusInternalServerError, errorBody{Status: "failure", Code: codePaymentFailed, Message: internalErrMessage}
	default:
		return fiber.StatusInternalServerError, errorBody{Status: "failure", Code: codeInternal, Message: internalErrMessage}
	}
}

func writeError(c *fiber.Ctx, err error, locale string) error {
	status, body := statusFor(err, locale)
	if status >= fiber.StatusInternalServerError {
		logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(), "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler renders errors that escape handlers, such as *fiber.Error
// from middleware, in the same shape as service errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{
			Status:  "failure",
			Code:    codeForStatus(fe.Code),
			Message: fe.Message,
		})
	}
	return writeError(c, err, "en")
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return codeInternal
	}
}
