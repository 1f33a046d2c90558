package response

import (
	"errors"
	"inventory-service/app/domain"

	"github.com/gofiber/fiber/v2"
)

type Response struct {
	Success  bool             `json:"success"`
	Metadata *domain.Metadata `json:"meta,omitempty"`
	Data     any              `json:"data,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func Success(data any) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

func SuccessWithMetadata(data any, metadata domain.Metadata) *Response {
	return &Response{
		Success:  true,
		Data:     data,
		Metadata: &metadata,
	}
}

func Error(err error) *Response {
	return &Response{
		Success: false,
		Error:   err.Error(),
	}
}

// Failure reports an error together with a body the caller can act on.
func Failure(data any, err error) *Response {
	return &Response{
		Success: false,
		Data:    data,
		Error:   err.Error(),
	}
}

func FromError(err error) (int, *Response) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, Error(err)
	case errors.Is(err, domain.ErrInvalidRequest):
		return fiber.StatusBadRequest, Error(err)
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, Error(err)
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, Error(err)
	case errors.Is(err, domain.ErrBadRequest):
		return fiber.StatusBadRequest, Error(err)
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrConcurrencyConflict),
		errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict, Error(err)
	default:
		return fiber.StatusInternalServerError, Error(domain.ErrInternal)
	}
}

// FromOrderResult picks the status for a rejected order from its most severe error.
func FromOrderResult(result domain.OrderProcessingResult) int {
	status := fiber.StatusBadRequest
	for _, e := range result.Errors {
		switch e.Code {
		case domain.OrderErrorProcessingFailed:
			return fiber.StatusInternalServerError
		case domain.OrderErrorInsufficientStock, domain.OrderErrorProductNotFound:
			status = fiber.StatusConflict
		}
	}
	return status
}
