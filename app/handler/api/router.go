package handler

import (
	"inventory-service/app/middleware"
	"inventory-service/config"

	"github.com/gofiber/fiber/v2"
)

func SetupRouter(app *fiber.App, stockHandler *StockHandler, reservationHandler *ReservationHandler, orderHandler *OrderHandler, cfg *config.Config) {

	api := app.Group("/api")

	api.Get("/products/:product_id/stock", stockHandler.GetByProductID)

	api.Post("/cart/reservations", reservationHandler.Reserve)
	api.Delete("/cart/reservations/:id", reservationHandler.Release)
	api.Get("/cart/:cart_id/reservations", reservationHandler.GetByCartID)

	api.Post("/orders", orderHandler.Create)
	api.Get("/orders/:id", orderHandler.GetByID)

	internal := app.Group("/internal").Use(middleware.AuthInternal(cfg))
	internal.Get("/inventory", stockHandler.GetListStock)
	internal.Get("/inventory/:product_id", stockHandler.GetLevel)
	internal.Put("/inventory/:product_id", stockHandler.Track)
	internal.Post("/inventory/:product_id/adjustments", stockHandler.Adjust)
	internal.Get("/inventory/:product_id/movements", stockHandler.GetMovements)
	internal.Get("/inventory/:product_id/reconcile", stockHandler.Reconcile)
	internal.Get("/alerts", stockHandler.GetListAlert)
	internal.Post("/alerts/:id/acknowledge", stockHandler.AcknowledgeAlert)
	internal.Patch("/orders/:id/status", orderHandler.UpdateStatus)
}
