// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"medrush/internal/http/handlers"
	"medrush/internal/http/middleware"
	"medrush/internal/modules/assignment"
	"medrush/internal/modules/order"
	"medrush/internal/modules/rider"
)

type RouterDeps struct {
	Orders     *order.Service
	Riders     *rider.Service
	Assignment *assignment.Service
	JWTSecret  string
	Log        *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Assignment)
	riderHandler := handlers.NewRiderHandler(deps.Orders, deps.Riders, deps.Assignment)

	api := r.Group("/api", middleware.Auth(deps.JWTSecret))

	api.POST("/orders", middleware.RequireRole(order.RoleCustomer), orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)

	admin := api.Group("/admin", middleware.RequireRole(order.RoleAdmin))
	admin.GET("/orders", orderHandler.List)
	admin.POST("/orders/:id/confirm", orderHandler.Confirm)
	admin.POST("/orders/:id/reject", orderHandler.Reject)
	admin.POST("/orders/:id/prepare", orderHandler.Prepare)
	admin.POST("/orders/:id/ready", orderHandler.MarkReady)
	admin.POST("/orders/:id/assign-rider", orderHandler.AssignRider)
	admin.POST("/orders/:id/confirm-delivery", orderHandler.ConfirmDelivery)
	admin.POST("/orders/:id/archive", orderHandler.Archive)
	admin.POST("/orders/:id/unarchive", orderHandler.Unarchive)
	admin.DELETE("/orders/:id", orderHandler.Delete)
	admin.POST("/riders", riderHandler.CreateRider)
	admin.PUT("/riders/:id/status", riderHandler.SetRiderStatus)

	riderAPI := api.Group("/rider", middleware.RequireRole(order.RoleRider))
	riderAPI.GET("/orders/ready", riderHandler.ListReady)
	riderAPI.POST("/orders/:id/claim", riderHandler.Claim)
	riderAPI.POST("/orders/:id/pickup", riderHandler.Pickup)
	riderAPI.POST("/orders/:id/deliver", riderHandler.Deliver)

	return r
}
