package handler

import (
	"inventory-service/app/domain"
	"inventory-service/app/handler/api/response"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type StockHandler struct {
	ledger    domain.StockLedger
	validator *validator.Validate
}

func NewStockHandler(ledger domain.StockLedger, validator *validator.Validate) *StockHandler {
	return &StockHandler{
		ledger:    ledger,
		validator: validator,
	}
}

// GetByProductID is the storefront view of a product's sellable stock.
func (h *StockHandler) GetByProductID(c *fiber.Ctx) error {
	productID := c.Params("product_id")
	if productID == "" {
		slog.ErrorContext(c.UserContext(), "[stockHandler] GetByProductID", "productID", "missing")
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	view, err := h.ledger.GetSellable(c.UserContext(), productID)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] GetByProductID", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(view))
}

func (h *StockHandler) GetLevel(c *fiber.Ctx) error {
	level, err := h.ledger.GetStockLevel(c.UserContext(), c.Params("product_id"))
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] GetLevel", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(level))
}

func (h *StockHandler) Track(c *fiber.Ctx) error {
	var req domain.TrackProductRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] Track", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}
	req.ProductID = c.Params("product_id")

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] Track", "validation", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	level, err := h.ledger.TrackProduct(c.UserContext(), req)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] Track", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(level))
}

func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	var req domain.AdjustStockRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] Adjust", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] Adjust", "validation", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	referenceType := domain.ReferenceTypeManual
	if req.MovementType == domain.MovementTypeRestock && req.ReferenceID != "" {
		referenceType = domain.ReferenceTypePurchase
	}
	result, err := h.ledger.ApplyDelta(c.UserContext(), domain.StockChange{
		ProductID:     c.Params("product_id"),
		Delta:         req.Delta,
		MovementType:  req.MovementType,
		ReferenceID:   req.ReferenceID,
		ReferenceType: referenceType,
		Reason:        req.Reason,
		Override:      req.Override,
	})
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] Adjust", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(result))
}

func (h *StockHandler) GetListStock(c *fiber.Ctx) error {
	param := domain.GetListStockRequest{}
	if err := c.QueryParser(&param); err != nil {
		slog.WarnContext(c.UserContext(), "[stockHandler] GetListStock", "queryParser", err)
	}

	levels, metadata, err := h.ledger.GetListStock(c.UserContext(), param)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] GetListStock", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.SuccessWithMetadata(levels, metadata))
}

func (h *StockHandler) GetMovements(c *fiber.Ctx) error {
	param := domain.GetListMovementRequest{}
	if err := c.QueryParser(&param); err != nil {
		slog.WarnContext(c.UserContext(), "[stockHandler] GetMovements", "queryParser", err)
	}

	movements, metadata, err := h.ledger.GetMovements(c.UserContext(), c.Params("product_id"), param)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] GetMovements", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.SuccessWithMetadata(movements, metadata))
}

func (h *StockHandler) Reconcile(c *fiber.Ctx) error {
	result, err := h.ledger.Reconcile(c.UserContext(), c.Params("product_id"))
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] Reconcile", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(result))
}

func (h *StockHandler) GetListAlert(c *fiber.Ctx) error {
	param := domain.GetListAlertRequest{}
	if err := c.QueryParser(&param); err != nil {
		slog.WarnContext(c.UserContext(), "[stockHandler] GetListAlert", "queryParser", err)
	}

	alerts, metadata, err := h.ledger.GetListAlert(c.UserContext(), param)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] GetListAlert", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.SuccessWithMetadata(alerts, metadata))
}

func (h *StockHandler) AcknowledgeAlert(c *fiber.Ctx) error {
	var req domain.AcknowledgeAlertRequest
	if err := c.BodyParser(&req); err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] AcknowledgeAlert", "bodyParser", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrBadRequest))
	}

	if err := h.validator.Struct(req); err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] AcknowledgeAlert", "validation", err)
		return c.Status(fiber.StatusBadRequest).JSON(response.Error(domain.ErrValidation))
	}

	alert, err := h.ledger.AcknowledgeAlert(c.UserContext(), c.Params("id"), req.AcknowledgedBy)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "[stockHandler] AcknowledgeAlert", "usecase", err)
		status, resp := response.FromError(err)
		return c.Status(status).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(response.Success(alert))
}
