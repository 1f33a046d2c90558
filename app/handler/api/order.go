package handler

import (
	"errors"
	"inventory-service/app/domain"
	"inventory-service/app/handler/api/response"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var errOrderRejected = errors.New("order rejected")

type OrderHandler struct {
	orders    domain.OrderCoordinator
	validator *validator.Validate
}

func NewOrderHandler(orders domain.OrderCoordinator, validator *validator.Validate) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		validator: validator,
	}
}

// Create answers with the processing result either way; a rejected order carries its errors.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req domain.OrderRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.UserContext(), "[orderHandler] Create", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	result := h.orders.ProcessOrder(c.UserContext(), req)
	if !result.Success {
		slog.InfoContext(c.UserContext(), "[orderHandler] Create", "rejected", len(result.Errors))
		return c.Status(response.FromOrderResult(result)).JSON(response.Failure(result, errOrderRejected))
	}

	return c.Status(fiber.StatusCreated).JSON(response.Success(result))
}

func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	order, err := h.orders.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[orderHandler] GetByID", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(order))
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var req domain.UpdateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.UserContext(), "[orderHandler] UpdateStatus", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.UserContext(), "[orderHandler] UpdateStatus", "validation", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	order, err := h.orders.UpdateOrderStatus(c.UserContext(), c.Params("id"), req)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[orderHandler] UpdateStatus", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(order))
}
