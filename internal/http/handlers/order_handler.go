// README: Customer and admin order endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medrush/internal/http/middleware"
	"medrush/internal/modules/assignment"
	"medrush/internal/modules/order"
	"medrush/internal/types"
)

type OrderHandler struct {
	orders     *order.Service
	assignment *assignment.Service
}

func NewOrderHandler(orders *order.Service, assignmentSvc *assignment.Service) *OrderHandler {
	return &OrderHandler{orders: orders, assignment: assignmentSvc}
}

type createOrderReq struct {
	LineItems []struct {
		MedicationID string `json:"medicationId"`
		Quantity     int    `json:"quantity"`
		UnitPrice    int64  `json:"unitPrice"`
	} `json:"lineItems"`
	PaymentMethod string `json:"paymentMethod"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	items := make([]order.LineItem, len(req.LineItems))
	for i, it := range req.LineItems {
		items[i] = order.LineItem{
			MedicationID: types.ID(it.MedicationID),
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
		}
	}
	o, err := h.orders.Create(c.Request.Context(), order.CreateCommand{
		CustomerID:    actor.ID,
		LineItems:     items,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) List(c *gin.Context) {
	f := order.ListFilter{Status: order.Status(c.Query("status"))}
	if v := c.Query("archived"); v != "" {
		archived := v == "true"
		f.Archived = &archived
	}
	orders, err := h.orders.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *OrderHandler) Confirm(c *gin.Context) {
	h.runTransition(c, func(actor order.Actor, id types.ID) (*order.Order, error) {
		return h.orders.Confirm(c.Request.Context(), order.ConfirmCommand{OrderID: id, Actor: actor})
	})
}

func (h *OrderHandler) Reject(c *gin.Context) {
	h.runTransition(c, func(actor order.Actor, id types.ID) (*order.Order, error) {
		return h.orders.Reject(c.Request.Context(), order.RejectCommand{OrderID: id, Actor: actor})
	})
}

func (h *OrderHandler) Prepare(c *gin.Context) {
	h.runTransition(c, func(actor order.Actor, id types.ID) (*order.Order, error) {
		return h.orders.Prepare(c.Request.Context(), order.PrepareCommand{OrderID: id, Actor: actor})
	})
}

func (h *OrderHandler) MarkReady(c *gin.Context) {
	h.runTransition(c, func(actor order.Actor, id types.ID) (*order.Order, error) {
		o, err := h.orders.MarkReady(c.Request.Context(), order.MarkReadyCommand{OrderID: id, Actor: actor})
		if err == nil && h.assignment != nil {
			h.assignment.PublishReady(c.Request.Context(), o)
		}
		return o, err
	})
}

type assignRiderReq struct {
	RiderID string `json:"riderId" binding:"required"`
}

func (h *OrderHandler) AssignRider(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id := types.ID(c.Param("id"))
	var req assignRiderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "riderId required"})
		return
	}
	o, err := h.assignment.Assign(c.Request.Context(), id, types.ID(req.RiderID), actor)
	if err != nil {
		writeOrderError(c, h.orders, id, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) ConfirmDelivery(c *gin.Context) {
	h.runTransition(c, func(actor order.Actor, id types.ID) (*order.Order, error) {
		return h.orders.ConfirmDelivery(c.Request.Context(), order.ConfirmDeliveryCommand{OrderID: id, Actor: actor})
	})
}

func (h *OrderHandler) Archive(c *gin.Context) {
	o, err := h.orders.Archive(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) Unarchive(c *gin.Context) {
	o, err := h.orders.Unarchive(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) Delete(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if err := h.orders.Delete(c.Request.Context(), id); err != nil {
		writeOrderError(c, h.orders, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) runTransition(c *gin.Context, fn func(actor order.Actor, id types.ID) (*order.Order, error)) {
	actor, _ := middleware.ActorFrom(c)
	id := types.ID(c.Param("id"))
	o, err := fn(actor, id)
	if err != nil {
		writeOrderError(c, h.orders, id, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
