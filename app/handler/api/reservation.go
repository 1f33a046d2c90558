package handler

import (
	"inventory-service/app/domain"
	"inventory-service/app/handler/api/response"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ReservationHandler struct {
	reservations domain.ReservationManager
	validator    *validator.Validate
}

func NewReservationHandler(reservations domain.ReservationManager, validator *validator.Validate) *ReservationHandler {
	return &ReservationHandler{
		reservations: reservations,
		validator:    validator,
	}
}

func (h *ReservationHandler) Reserve(c *fiber.Ctx) error {
	var req domain.ReserveRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.UserContext(), "[reservationHandler] Reserve", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.UserContext(), "[reservationHandler] Reserve", "validation", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	reservation, ok, err := h.reservations.Reserve(c.UserContext(), req)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[reservationHandler] Reserve", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(response.Error(domain.ErrInsufficientStock))
	}

	return c.Status(fiber.StatusCreated).JSON(response.Success(reservation))
}

func (h *ReservationHandler) Release(c *fiber.Ctx) error {
	if err := h.reservations.Release(c.UserContext(), c.Params("id")); err != nil {
		slog.ErrorContext(c.UserContext(), "[reservationHandler] Release", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(nil))
}

func (h *ReservationHandler) GetByCartID(c *fiber.Ctx) error {
	reservations, err := h.reservations.GetByCartID(c.UserContext(), c.Params("cart_id"))
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[reservationHandler] GetByCartID", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(reservations))
}
