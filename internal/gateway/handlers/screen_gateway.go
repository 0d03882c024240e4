package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/gateway/middleware"
	"syntra-floor/internal/ledger"
	"syntra-floor/internal/screen"
)

// ScreenHTTPHandler serves table screens and layout editors to floor
// devices. Sessions are scoped to the device named in the token.
type ScreenHTTPHandler struct {
	screens *screen.Manager
	layout  screen.Layout
	timeout time.Duration

	mu      sync.Mutex
	editors map[string]*screen.LayoutEditor
}

func NewScreenHTTPHandler(m *screen.Manager, layout screen.Layout, timeout time.Duration) *ScreenHTTPHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ScreenHTTPHandler{
		screens: m,
		layout:  layout,
		timeout: timeout,
		editors: make(map[string]*screen.LayoutEditor),
	}
}

// Request structs
type MountScreenRequest struct {
	TableID string `json:"table_id" binding:"required"`
}

type CustomizationRequest struct {
	Name  string `json:"name" binding:"required"`
	Price string `json:"price"`
}

type ItemRequest struct {
	ID             string                 `json:"id,omitempty"`
	MenuItemID     string                 `json:"menu_item_id" binding:"required"`
	Name           string                 `json:"name" binding:"required"`
	Quantity       int                    `json:"quantity" binding:"required,min=1"`
	Price          string                 `json:"price" binding:"required"`
	Customizations []CustomizationRequest `json:"customizations,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
}

type ItemStatusRequest struct {
	Status ledger.ItemStatus `json:"status" binding:"required"`
}

type PaymentRequest struct {
	Amount      string         `json:"amount" binding:"required"`
	Method      string         `json:"method" binding:"required"`
	Reference   string         `json:"reference,omitempty"`
	Allocations map[string]int `json:"allocations,omitempty"`
}

type OpenEditorRequest struct {
	LayoutID string `json:"layout_id" binding:"required"`
}

func (r ItemRequest) toCartItem() (ledger.CartItem, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return ledger.CartItem{}, err
	}
	item := ledger.CartItem{
		ID:         r.ID,
		MenuItemID: r.MenuItemID,
		Name:       r.Name,
		Quantity:   r.Quantity,
		Price:      price,
		Notes:      r.Notes,
	}
	for _, cz := range r.Customizations {
		p := decimal.Zero
		if cz.Price != "" {
			if p, err = decimal.NewFromString(cz.Price); err != nil {
				return ledger.CartItem{}, err
			}
		}
		item.Customizations = append(item.Customizations, ledger.Customization{Name: cz.Name, Price: p})
	}
	return item, nil
}

func (r PaymentRequest) toInput() (ledger.PaymentInput, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return ledger.PaymentInput{}, err
	}
	return ledger.PaymentInput{
		Amount:      amount,
		Method:      r.Method,
		Reference:   r.Reference,
		Allocations: r.Allocations,
	}, nil
}

// sessionID namespaces the path session with the device id so one device
// cannot drive another device's screen.
func sessionID(c *gin.Context) string {
	if claims, ok := middleware.CurrentClaims(c); ok {
		return claims.DeviceID + "/" + c.Param("session")
	}
	return c.Param("session")
}

func (h *ScreenHTTPHandler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// --- Table screens ---

func (h *ScreenHTTPHandler) Mount(c *gin.Context) {
	var req MountScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	_, st, err := h.screens.Mount(ctx, sessionID(c), req.TableID)
	if errors.Is(err, coordinator.ErrTableNeedsCleaning) {
		c.JSON(http.StatusConflict, APIResponse{Success: false, Message: "Table needs cleaning", Data: st})
		return
	}
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Screen opened", st))
}

func (h *ScreenHTTPHandler) Get(c *gin.Context) {
	s, err := h.screens.Screen(sessionID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, successResponse("Screen retrieved", s.State()))
}

func (h *ScreenHTTPHandler) Unmount(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.screens.Unmount(ctx, sessionID(c)); err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Screen closed", nil))
}

// intent runs fn against the session's screen and writes the new state.
func (h *ScreenHTTPHandler) intent(c *gin.Context, fn func(ctx context.Context, s *screen.Screen) (screen.State, error)) {
	s, err := h.screens.Screen(sessionID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	st, err := fn(ctx, s)
	switch {
	case errors.Is(err, screen.ErrScreenClosed):
		c.JSON(http.StatusGone, errorResponse(err.Error()))
	case errors.Is(err, screen.ErrNoPending):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case err != nil:
		handleGRPCError(c, err)
	default:
		msg := st.Toast
		if msg == "" {
			msg = "OK"
		}
		c.JSON(http.StatusOK, successResponse(msg, st))
	}
}

func (h *ScreenHTTPHandler) TakeOrder(c *gin.Context) {
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.TakeOrder(ctx)
	})
}

func (h *ScreenHTTPHandler) AddItem(c *gin.Context) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	item, err := req.toCartItem()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid price"))
		return
	}
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.AddItem(ctx, item)
	})
}

func (h *ScreenHTTPHandler) UpdateItem(c *gin.Context) {
	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	req.ID = c.Param("item")
	item, err := req.toCartItem()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid price"))
		return
	}
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.UpdateItem(ctx, item)
	})
}

func (h *ScreenHTTPHandler) RemoveItem(c *gin.Context) {
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.RemoveItem(ctx, c.Param("item"))
	})
}

func (h *ScreenHTTPHandler) SetItemStatus(c *gin.Context) {
	var req ItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.SetItemStatus(ctx, c.Param("item"), req.Status)
	})
}

func (h *ScreenHTTPHandler) UpdateDetails(c *gin.Context) {
	var req ledger.Patch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.UpdateDetails(ctx, req)
	})
}

func (h *ScreenHTTPHandler) Pay(c *gin.Context) {
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.Pay(ctx)
	})
}

func (h *ScreenHTTPHandler) PaymentCompleted(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	in, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid amount"))
		return
	}
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.PaymentCompleted(ctx, in)
	})
}

func (h *ScreenHTTPHandler) CloseCheck(c *gin.Context) {
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.CloseCheck(ctx)
	})
}

func (h *ScreenHTTPHandler) Void(c *gin.Context) {
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.Void(ctx)
	})
}

func (h *ScreenHTTPHandler) ReopenCheck(c *gin.Context) {
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.ReopenCheck(ctx)
	})
}

func (h *ScreenHTTPHandler) ClearTable(c *gin.Context) {
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.ClearTable(ctx)
	})
}

func (h *ScreenHTTPHandler) Confirm(c *gin.Context) {
	h.intent(c, func(ctx context.Context, s *screen.Screen) (screen.State, error) {
		return s.Confirm(ctx)
	})
}

func (h *ScreenHTTPHandler) Dismiss(c *gin.Context) {
	h.intent(c, func(_ context.Context, s *screen.Screen) (screen.State, error) {
		return s.Dismiss()
	})
}

// --- Layout editors ---

func (h *ScreenHTTPHandler) editor(c *gin.Context) (*screen.LayoutEditor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ed, ok := h.editors[sessionID(c)]
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("Layout editor not open"))
	}
	return ed, ok
}

func (h *ScreenHTTPHandler) editorState(ed *screen.LayoutEditor) gin.H {
	canMerge, reason := true, ""
	if err := ed.CanMerge(); err != nil {
		canMerge, reason = false, err.Error()
	}
	return gin.H{
		"selection": ed.Selection(),
		"can_merge": canMerge,
		"reason":    reason,
	}
}

func (h *ScreenHTTPHandler) OpenEditor(c *gin.Context) {
	var req OpenEditorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	ed := screen.NewLayoutEditor(h.layout, req.LayoutID)

	h.mu.Lock()
	h.editors[sessionID(c)] = ed
	h.mu.Unlock()

	c.JSON(http.StatusCreated, successResponse("Layout editor opened", h.editorState(ed)))
}

func (h *ScreenHTTPHandler) CloseEditor(c *gin.Context) {
	h.mu.Lock()
	delete(h.editors, sessionID(c))
	h.mu.Unlock()
	c.JSON(http.StatusOK, successResponse("Layout editor closed", nil))
}

func (h *ScreenHTTPHandler) ToggleTable(c *gin.Context) {
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	ed.Toggle(c.Param("table"))
	c.JSON(http.StatusOK, successResponse("Selection updated", h.editorState(ed)))
}

func (h *ScreenHTTPHandler) ClearSelection(c *gin.Context) {
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	ed.Clear()
	c.JSON(http.StatusOK, successResponse("Selection cleared", h.editorState(ed)))
}

func (h *ScreenHTTPHandler) MergeSelection(c *gin.Context) {
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := ed.Merge(ctx)
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(res.Message, res))
}

func (h *ScreenHTTPHandler) UnmergeSelection(c *gin.Context) {
	ed, ok := h.editor(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := ed.Unmerge(ctx)
	if errors.Is(err, screen.ErrSelectOne) {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if err != nil {
		handleGRPCError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(res.Message, res))
}
