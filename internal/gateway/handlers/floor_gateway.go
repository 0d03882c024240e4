package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/database/models"
	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

// FloorService is the floor service client as the HTTP layer sees it.
type FloorService interface {
	ListLayouts(ctx context.Context) ([]floor.Layout, error)
	CreateLayout(ctx context.Context, name string) (floor.Layout, error)
	FloorPlan(layoutID string) ([]coordinator.TableView, error)
	AddMultipleTables(layoutID string, specs []floor.TableSpec) ([]floor.Table, error)
	GetTable(ctx context.Context, tableID string) (floor.Table, error)
	MoveTable(ctx context.Context, tableID string, x, y float64) (floor.Table, error)
	RenameTable(ctx context.Context, tableID, name string) (floor.Table, error)
	RemoveTable(ctx context.Context, tableID string) (bool, error)
	CanMerge(ids []string) error
	MergeTables(ctx context.Context, ids []string) (coordinator.Result, error)
	UnmergeTables(ctx context.Context, tableID string) (coordinator.Result, error)
	ClearTable(ctx context.Context, tableID string) (coordinator.Result, error)
	MarkCleaned(ctx context.Context, tableID string) (coordinator.Result, error)
	ListOrders(ctx context.Context, liveOnly bool) ([]ledger.Order, error)
	GetOrder(ctx context.Context, orderID string) (ledger.Order, error)
	GetArchivedCheck(ctx context.Context, orderID string) (*models.CheckArchive, error)
	PendingFor(ctx context.Context, orderID string) ([]coordinator.PendingAction, error)
	Confirm(ctx context.Context, actionID string) (coordinator.Result, error)
	Cancel(actionID string) (coordinator.Result, error)
}

type FloorHTTPHandler struct {
	floor   FloorService
	timeout time.Duration
}

func NewFloorHTTPHandler(f FloorService, timeout time.Duration) *FloorHTTPHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FloorHTTPHandler{floor: f, timeout: timeout}
}

// Request structs
type CreateLayoutRequest struct {
	Name string `json:"name" binding:"required"`
}

type AddTablesRequest struct {
	Tables []floor.TableSpec `json:"tables" binding:"required,min=1"`
}

type MoveTableRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type RenameTableRequest struct {
	Name string `json:"name" binding:"required"`
}

type MergeTablesRequest struct {
	TableIDs []string `json:"table_ids" binding:"required,min=2"`
}

func (h *FloorHTTPHandler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// --- Layouts ---

func (h *FloorHTTPHandler) ListLayouts(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	layouts, err := h.floor.ListLayouts(ctx)
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Layouts retrieved successfully", layouts))
}

func (h *FloorHTTPHandler) CreateLayout(c *gin.Context) {
	var req CreateLayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	layout, err := h.floor.CreateLayout(ctx, req.Name)
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Layout created successfully", layout))
}

func (h *FloorHTTPHandler) FloorPlan(c *gin.Context) {
	plan, err := h.floor.FloorPlan(c.Param("id"))
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Floor plan retrieved successfully", plan))
}

func (h *FloorHTTPHandler) AddTables(c *gin.Context) {
	var req AddTablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	tables, err := h.floor.AddMultipleTables(c.Param("id"), req.Tables)
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Tables added successfully", tables))
}

// --- Tables ---

func (h *FloorHTTPHandler) GetTable(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	t, err := h.floor.GetTable(ctx, c.Param("id"))
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Table retrieved successfully", t))
}

func (h *FloorHTTPHandler) MoveTable(c *gin.Context) {
	var req MoveTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	t, err := h.floor.MoveTable(ctx, c.Param("id"), req.X, req.Y)
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Table moved", t))
}

func (h *FloorHTTPHandler) RenameTable(c *gin.Context) {
	var req RenameTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	t, err := h.floor.RenameTable(ctx, c.Param("id"), req.Name)
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Table renamed", t))
}

func (h *FloorHTTPHandler) RemoveTable(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	removed, err := h.floor.RemoveTable(ctx, c.Param("id"))
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, errorResponse("Table not found"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Table removed", nil))
}

func (h *FloorHTTPHandler) CanMerge(c *gin.Context) {
	var req MergeTablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	if err := h.floor.CanMerge(req.TableIDs); err != nil {
		c.JSON(http.StatusOK, successResponse(err.Error(), gin.H{"can_merge": false}))
		return
	}
	c.JSON(http.StatusOK, successResponse("Tables can be merged", gin.H{"can_merge": true}))
}

func (h *FloorHTTPHandler) MergeTables(c *gin.Context) {
	var req MergeTablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	h.respond(c, "Tables merged")(h.floor.MergeTables(ctx, req.TableIDs))
}

func (h *FloorHTTPHandler) UnmergeTables(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	h.respond(c, "Tables unmerged")(h.floor.UnmergeTables(ctx, c.Param("id")))
}

func (h *FloorHTTPHandler) ClearTable(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	h.respond(c, "Table cleared")(h.floor.ClearTable(ctx, c.Param("id")))
}

func (h *FloorHTTPHandler) MarkCleaned(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	h.respond(c, "Table cleaned")(h.floor.MarkCleaned(ctx, c.Param("id")))
}

// --- Orders ---

func (h *FloorHTTPHandler) ListOrders(c *gin.Context) {
	live, _ := strconv.ParseBool(c.DefaultQuery("live", "true"))

	ctx, cancel := h.ctx(c)
	defer cancel()

	orders, err := h.floor.ListOrders(ctx, live)
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successWithMetaResponse("Orders retrieved successfully", orders, gin.H{
		"count":     len(orders),
		"live_only": live,
	}))
}

func (h *FloorHTTPHandler) GetOrder(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.floor.GetOrder(ctx, c.Param("id"))
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	pending, err := h.floor.PendingFor(ctx, o.ID)
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Order retrieved successfully", gin.H{
		"order":   o,
		"balance": o.Balance(),
		"pending": pending,
	}))
}

func (h *FloorHTTPHandler) GetArchivedCheck(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	rec, err := h.floor.GetArchivedCheck(ctx, c.Param("id"))
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Archived check retrieved successfully", rec))
}

// --- Pending confirmations ---

func (h *FloorHTTPHandler) ConfirmAction(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	h.respond(c, "Action confirmed")(h.floor.Confirm(ctx, c.Param("id")))
}

func (h *FloorHTTPHandler) CancelAction(c *gin.Context) {
	h.respond(c, "Action cancelled")(h.floor.Cancel(c.Param("id")))
}

// respond writes a transition result, preferring the message the floor
// service attached.
func (h *FloorHTTPHandler) respond(c *gin.Context, fallback string) func(coordinator.Result, error) {
	return func(res coordinator.Result, err error) {
		if err != nil {
			handleGRPCError(c, err)
			return
		}
		msg := res.Message
		if msg == "" {
			msg = fallback
		}
		c.JSON(http.StatusOK, successResponse(msg, res))
	}
}
