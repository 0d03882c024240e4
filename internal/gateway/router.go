// Package gateway is the HTTP front of the floor service used by tablets,
// the host stand and the back office.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"syntra-floor/internal/gateway/handlers"
	"syntra-floor/internal/gateway/middleware"
	"syntra-floor/internal/logger"
	"syntra-floor/internal/screen"
	"syntra-floor/internal/utils"
)

// Backend is everything the gateway needs from the floor service.
type Backend interface {
	handlers.FloorService
	screen.Floor
	screen.Layout
	Healthy(ctx context.Context) bool
}

type Options struct {
	Backend   Backend
	JWT       *utils.JWT
	DeviceKey string
	TokenTTL  time.Duration
	RateLimit string
	GlobalRPS float64
	Timeout   time.Duration
	Log       *logger.Logger
}

// NewRouter wires middleware and routes. It returns the screen manager so the
// caller can release open screens on shutdown.
func NewRouter(o Options) (*gin.Engine, *screen.Manager, error) {
	r := gin.New()

	r.Use(middleware.Recovery(o.Log))
	r.Use(middleware.EnhancedLogger(o.Log))
	r.Use(middleware.CORS())
	r.Use(middleware.SecurityHeaders())
	if o.GlobalRPS > 0 {
		r.Use(middleware.GlobalRateLimit(o.GlobalRPS, int(o.GlobalRPS), o.Log))
	}
	if o.RateLimit != "" {
		limit, err := middleware.RateLimit(o.RateLimit, o.Log)
		if err != nil {
			return nil, nil, err
		}
		r.Use(limit)
	}
	r.Use(serviceHealthMiddleware(o.Backend))

	screens := screen.NewManager(o.Backend, o.Log)
	floorHandler := handlers.NewFloorHTTPHandler(o.Backend, o.Timeout)
	screenHandler := handlers.NewScreenHTTPHandler(screens, o.Backend, o.Timeout)
	authHandler := handlers.NewAuthHTTPHandler(o.JWT, o.DeviceKey, o.TokenTTL, o.Log)

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		public.POST("/auth/device", authHandler.DeviceLogin)
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(o.JWT, o.Log))
	{
		layouts := protected.Group("/layouts")
		{
			layouts.GET("", floorHandler.ListLayouts)
			layouts.POST("", floorHandler.CreateLayout)
			layouts.GET("/:id/plan", floorHandler.FloorPlan)
			layouts.POST("/:id/tables", floorHandler.AddTables)
		}

		tables := protected.Group("/tables")
		{
			tables.POST("/merge", floorHandler.MergeTables)
			tables.POST("/merge/check", floorHandler.CanMerge)
			tables.GET("/:id", floorHandler.GetTable)
			tables.PUT("/:id/position", floorHandler.MoveTable)
			tables.PUT("/:id/name", floorHandler.RenameTable)
			tables.DELETE("/:id", floorHandler.RemoveTable)
			tables.POST("/:id/unmerge", floorHandler.UnmergeTables)
			tables.POST("/:id/clear", floorHandler.ClearTable)
			tables.POST("/:id/cleaned", floorHandler.MarkCleaned)
		}

		orders := protected.Group("/orders")
		{
			orders.GET("", floorHandler.ListOrders)
			orders.GET("/:id", floorHandler.GetOrder)
			orders.GET("/:id/archive", floorHandler.GetArchivedCheck)
		}

		actions := protected.Group("/actions")
		{
			actions.POST("/:id/confirm", floorHandler.ConfirmAction)
			actions.DELETE("/:id", floorHandler.CancelAction)
		}

		screens := protected.Group("/screens/:session")
		{
			screens.POST("", screenHandler.Mount)
			screens.GET("", screenHandler.Get)
			screens.DELETE("", screenHandler.Unmount)
			screens.POST("/take-order", screenHandler.TakeOrder)
			screens.POST("/items", screenHandler.AddItem)
			screens.PUT("/items/:item", screenHandler.UpdateItem)
			screens.DELETE("/items/:item", screenHandler.RemoveItem)
			screens.PUT("/items/:item/status", screenHandler.SetItemStatus)
			screens.PATCH("/details", screenHandler.UpdateDetails)
			screens.POST("/pay", screenHandler.Pay)
			screens.POST("/payments", screenHandler.PaymentCompleted)
			screens.POST("/close", screenHandler.CloseCheck)
			screens.POST("/void", screenHandler.Void)
			screens.POST("/reopen", screenHandler.ReopenCheck)
			screens.POST("/clear", screenHandler.ClearTable)
			screens.POST("/confirm", screenHandler.Confirm)
			screens.POST("/dismiss", screenHandler.Dismiss)
		}

		editors := protected.Group("/editors/:session")
		{
			editors.POST("", screenHandler.OpenEditor)
			editors.DELETE("", screenHandler.CloseEditor)
			editors.POST("/selection/:table", screenHandler.ToggleTable)
			editors.DELETE("/selection", screenHandler.ClearSelection)
			editors.POST("/merge", screenHandler.MergeSelection)
			editors.POST("/unmerge", screenHandler.UnmergeSelection)
		}
	}

	r.GET("/health", healthCheckHandler(o.Backend))

	return r, screens, nil
}

func serviceHealthMiddleware(b Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		if b != nil {
			c.Header("X-Floor-Service", "available")
		} else {
			c.Header("X-Floor-Service", "unavailable")
		}
		c.Next()
	}
}

func healthCheckHandler(b Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "healthy"
		httpStatus := http.StatusOK
		unavailableServices := []string{}
		if b == nil || !b.Healthy(ctx) {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			unavailableServices = append(unavailableServices, "floor")
		}

		c.JSON(httpStatus, gin.H{
			"status":               status,
			"message":              "Server is running",
			"unavailable_services": unavailableServices,
			"timestamp":            time.Now(),
		})
	}
}
