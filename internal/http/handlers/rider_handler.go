// README: Rider-facing order endpoints plus rider administration.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medrush/internal/http/middleware"
	"medrush/internal/modules/assignment"
	"medrush/internal/modules/order"
	"medrush/internal/modules/rider"
	"medrush/internal/types"
)

type RiderHandler struct {
	orders     *order.Service
	riders     *rider.Service
	assignment *assignment.Service
}

func NewRiderHandler(orders *order.Service, riders *rider.Service, assignmentSvc *assignment.Service) *RiderHandler {
	return &RiderHandler{orders: orders, riders: riders, assignment: assignmentSvc}
}

func (h *RiderHandler) ListReady(c *gin.Context) {
	orders, err := h.assignment.ListClaimable(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *RiderHandler) Claim(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id := types.ID(c.Param("id"))
	o, err := h.assignment.Claim(c.Request.Context(), id, actor.ID)
	if err != nil {
		writeOrderError(c, h.orders, id, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *RiderHandler) Pickup(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id := types.ID(c.Param("id"))
	o, err := h.orders.ConfirmPickup(c.Request.Context(), order.PickupCommand{OrderID: id, RiderID: actor.ID})
	if err != nil {
		writeOrderError(c, h.orders, id, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type deliverReq struct {
	PhotoRef string `json:"photoRef"`
}

func (h *RiderHandler) Deliver(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	id := types.ID(c.Param("id"))
	var req deliverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := h.orders.Deliver(c.Request.Context(), order.DeliverCommand{
		OrderID:  id,
		RiderID:  actor.ID,
		PhotoRef: req.PhotoRef,
	})
	if err != nil {
		writeOrderError(c, h.orders, id, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type createRiderReq struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

func (h *RiderHandler) CreateRider(c *gin.Context) {
	var req createRiderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	r, err := h.riders.Create(c.Request.Context(), rider.CreateCommand{Name: req.Name, Phone: req.Phone})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

type setRiderStatusReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *RiderHandler) SetRiderStatus(c *gin.Context) {
	var req setRiderStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}
	r, err := h.riders.SetStatus(c.Request.Context(), types.ID(c.Param("id")), rider.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
