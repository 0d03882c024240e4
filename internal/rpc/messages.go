package rpc

import (
	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

type TableRequest struct {
	TableID string `json:"table_id"`
}

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type TakeOrderRequest struct {
	TableID string `json:"table_id"`
	OrderID string `json:"order_id"`
}

type ItemRequest struct {
	OrderID string          `json:"order_id"`
	Item    ledger.CartItem `json:"item"`
}

type ItemStatusRequest struct {
	OrderID string            `json:"order_id"`
	ItemID  string            `json:"item_id"`
	Status  ledger.ItemStatus `json:"status,omitempty"`
}

type DetailsRequest struct {
	OrderID string       `json:"order_id"`
	Patch   ledger.Patch `json:"patch"`
}

type PaymentRequest struct {
	OrderID string              `json:"order_id"`
	Payment ledger.PaymentInput `json:"payment"`
}

type ActionRequest struct {
	ActionID string `json:"action_id"`
}

type TablesRequest struct {
	TableIDs []string `json:"table_ids"`
}

type ListOrdersRequest struct {
	LiveOnly bool `json:"live_only"`
}

type LayoutRequest struct {
	LayoutID string `json:"layout_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

type AddTablesRequest struct {
	LayoutID string            `json:"layout_id"`
	Specs    []floor.TableSpec `json:"specs"`
}

type MoveTableRequest struct {
	TableID string  `json:"table_id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

type RenameTableRequest struct {
	TableID string `json:"table_id"`
	Name    string `json:"name"`
}

type Empty struct{}

type CountResponse struct {
	Count int `json:"count"`
}

type BoolResponse struct {
	OK bool `json:"ok"`
}

type OrdersResponse struct {
	Orders []ledger.Order `json:"orders"`
}

type PendingResponse struct {
	Actions []coordinator.PendingAction `json:"actions"`
}

type LayoutsResponse struct {
	Layouts []floor.Layout `json:"layouts"`
}

type TablesResponse struct {
	Tables []floor.Table `json:"tables"`
}

type FloorPlanResponse struct {
	Tables []coordinator.TableView `json:"tables"`
}
