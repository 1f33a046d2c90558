package response

import (
	"fmt"
	"inventory-service/app/domain"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", fmt.Errorf("%w: quantity", domain.ErrValidation), fiber.StatusBadRequest, "validation error: quantity"},
		{"not found", domain.ErrNotFound, fiber.StatusNotFound, "not found"},
		{"insufficient", &domain.InsufficientStockError{ProductID: "P", Requested: 5, Available: 2}, fiber.StatusConflict, ""},
		{"transition", domain.ErrInvalidTransition, fiber.StatusConflict, "invalid status transition"},
		{"conflict", domain.ErrConcurrencyConflict, fiber.StatusConflict, "concurrency conflict"},
		{"persistence hides detail", domain.PersistenceErr("insert order", fmt.Errorf("dial tcp: refused")), fiber.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := FromError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.False(t, resp.Success)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error)
			}
		})
	}
}

func TestFromOrderResult(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, FromOrderResult(domain.OrderProcessingResult{
		Errors: []domain.OrderError{{Code: domain.OrderErrorValidation}},
	}))
	assert.Equal(t, fiber.StatusConflict, FromOrderResult(domain.OrderProcessingResult{
		Errors: []domain.OrderError{{Code: domain.OrderErrorInsufficientStock}, {Code: domain.OrderErrorProductNotFound}},
	}))
	assert.Equal(t, fiber.StatusInternalServerError, FromOrderResult(domain.OrderProcessingResult{
		Errors: []domain.OrderError{{Code: domain.OrderErrorInsufficientStock}, {Code: domain.OrderErrorProcessingFailed}},
	}))
}
