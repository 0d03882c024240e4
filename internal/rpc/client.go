package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/database/models"
	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

// Client talks to the floor service. It satisfies the table screen and layout
// editor interfaces, so a gateway can run screens against a remote floor.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("floor service connection failed: %w", err)
	}
	return NewClient(conn, timeout), nil
}

func NewClient(conn *grpc.ClientConn, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{conn: conn, timeout: timeout}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Healthy reports whether the floor service answers its health check.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var trailer metadata.MD
	err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp,
		grpc.CallContentSubtype(CodecName),
		grpc.Trailer(&trailer),
	)
	return fromStatus(err, trailer)
}

func (c *Client) result(ctx context.Context, method string, req any) (coordinator.Result, error) {
	var res coordinator.Result
	if err := c.invoke(ctx, method, req, &res); err != nil {
		return coordinator.Result{}, err
	}
	return res, nil
}

// OpenTable mirrors the coordinator: a table waiting for cleaning comes back
// in the result next to the error.
func (c *Client) OpenTable(ctx context.Context, tableID string) (coordinator.Result, error) {
	res, err := c.result(ctx, "OpenTable", &TableRequest{TableID: tableID})
	if errors.Is(err, coordinator.ErrTableNeedsCleaning) {
		if t, terr := c.GetTable(ctx, tableID); terr == nil {
			res.Table = &t
			res.Navigation = coordinator.NavTables
		}
	}
	return res, err
}

func (c *Client) TakeOrder(ctx context.Context, tableID, orderID string) (coordinator.Result, error) {
	return c.result(ctx, "TakeOrder", &TakeOrderRequest{TableID: tableID, OrderID: orderID})
}

func (c *Client) AddItem(ctx context.Context, orderID string, item ledger.CartItem) (coordinator.Result, error) {
	return c.result(ctx, "AddItem", &ItemRequest{OrderID: orderID, Item: item})
}

func (c *Client) UpdateItem(ctx context.Context, orderID string, item ledger.CartItem) (coordinator.Result, error) {
	return c.result(ctx, "UpdateItem", &ItemRequest{OrderID: orderID, Item: item})
}

func (c *Client) RemoveItem(ctx context.Context, orderID, itemID string) (coordinator.Result, error) {
	return c.result(ctx, "RemoveItem", &ItemStatusRequest{OrderID: orderID, ItemID: itemID})
}

func (c *Client) SetItemStatus(ctx context.Context, orderID, itemID string, status ledger.ItemStatus) (coordinator.Result, error) {
	return c.result(ctx, "SetItemStatus", &ItemStatusRequest{OrderID: orderID, ItemID: itemID, Status: status})
}

func (c *Client) UpdateDetails(ctx context.Context, orderID string, p ledger.Patch) (coordinator.Result, error) {
	return c.result(ctx, "UpdateDetails", &DetailsRequest{OrderID: orderID, Patch: p})
}

func (c *Client) RequestPayment(ctx context.Context, orderID string) (coordinator.Result, error) {
	return c.result(ctx, "RequestPayment", &OrderRequest{OrderID: orderID})
}

func (c *Client) RecordPayment(ctx context.Context, orderID string, in ledger.PaymentInput) (coordinator.Result, error) {
	return c.result(ctx, "RecordPayment", &PaymentRequest{OrderID: orderID, Payment: in})
}

func (c *Client) CloseCheck(ctx context.Context, orderID string) (coordinator.Result, error) {
	return c.result(ctx, "CloseCheck", &OrderRequest{OrderID: orderID})
}

func (c *Client) RequestVoid(ctx context.Context, orderID string) (coordinator.Result, error) {
	return c.result(ctx, "RequestVoid", &OrderRequest{OrderID: orderID})
}

func (c *Client) ReopenCheck(ctx context.Context, orderID string) (coordinator.Result, error) {
	return c.result(ctx, "ReopenCheck", &OrderRequest{OrderID: orderID})
}

func (c *Client) ClearTable(ctx context.Context, tableID string) (coordinator.Result, error) {
	return c.result(ctx, "ClearTable", &TableRequest{TableID: tableID})
}

func (c *Client) MarkCleaned(ctx context.Context, tableID string) (coordinator.Result, error) {
	return c.result(ctx, "MarkCleaned", &TableRequest{TableID: tableID})
}

func (c *Client) MergeTables(ctx context.Context, ids []string) (coordinator.Result, error) {
	return c.result(ctx, "MergeTables", &TablesRequest{TableIDs: ids})
}

func (c *Client) UnmergeTables(ctx context.Context, tableID string) (coordinator.Result, error) {
	return c.result(ctx, "UnmergeTables", &TableRequest{TableID: tableID})
}

func (c *Client) CanMerge(ids []string) error {
	return c.invoke(context.Background(), "CanMerge", &TablesRequest{TableIDs: ids}, &Empty{})
}

func (c *Client) Confirm(ctx context.Context, actionID string) (coordinator.Result, error) {
	return c.result(ctx, "Confirm", &ActionRequest{ActionID: actionID})
}

func (c *Client) Cancel(actionID string) (coordinator.Result, error) {
	return c.result(context.Background(), "Cancel", &ActionRequest{ActionID: actionID})
}

// CancelPendingFor returns 0 when the service cannot be reached; pending
// actions expire with the screen anyway.
func (c *Client) CancelPendingFor(orderID string) int {
	var resp CountResponse
	if err := c.invoke(context.Background(), "CancelPendingFor", &OrderRequest{OrderID: orderID}, &resp); err != nil {
		return 0
	}
	return resp.Count
}

func (c *Client) PendingFor(ctx context.Context, orderID string) ([]coordinator.PendingAction, error) {
	var resp PendingResponse
	err := c.invoke(ctx, "PendingFor", &OrderRequest{OrderID: orderID}, &resp)
	return resp.Actions, err
}

func (c *Client) DiscardDraft(ctx context.Context, orderID string) (bool, error) {
	var resp BoolResponse
	err := c.invoke(ctx, "DiscardDraft", &OrderRequest{OrderID: orderID}, &resp)
	return resp.OK, err
}

func (c *Client) GetTable(ctx context.Context, tableID string) (floor.Table, error) {
	var t floor.Table
	err := c.invoke(ctx, "GetTable", &TableRequest{TableID: tableID}, &t)
	return t, err
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (ledger.Order, error) {
	var o ledger.Order
	err := c.invoke(ctx, "GetOrder", &OrderRequest{OrderID: orderID}, &o)
	return o, err
}

// Table and Order are the lookup form the screens use.
func (c *Client) Table(id string) (floor.Table, bool) {
	t, err := c.GetTable(context.Background(), id)
	return t, err == nil
}

func (c *Client) Order(id string) (ledger.Order, bool) {
	o, err := c.GetOrder(context.Background(), id)
	return o, err == nil
}

func (c *Client) ListOrders(ctx context.Context, liveOnly bool) ([]ledger.Order, error) {
	var resp OrdersResponse
	err := c.invoke(ctx, "ListOrders", &ListOrdersRequest{LiveOnly: liveOnly}, &resp)
	return resp.Orders, err
}

func (c *Client) CreateLayout(ctx context.Context, name string) (floor.Layout, error) {
	var l floor.Layout
	err := c.invoke(ctx, "CreateLayout", &LayoutRequest{Name: name}, &l)
	return l, err
}

func (c *Client) ListLayouts(ctx context.Context) ([]floor.Layout, error) {
	var resp LayoutsResponse
	err := c.invoke(ctx, "ListLayouts", &Empty{}, &resp)
	return resp.Layouts, err
}

func (c *Client) AddMultipleTables(layoutID string, specs []floor.TableSpec) ([]floor.Table, error) {
	var resp TablesResponse
	err := c.invoke(context.Background(), "AddTables", &AddTablesRequest{LayoutID: layoutID, Specs: specs}, &resp)
	return resp.Tables, err
}

func (c *Client) MoveTable(ctx context.Context, tableID string, x, y float64) (floor.Table, error) {
	var t floor.Table
	err := c.invoke(ctx, "MoveTable", &MoveTableRequest{TableID: tableID, X: x, Y: y}, &t)
	return t, err
}

func (c *Client) RenameTable(ctx context.Context, tableID, name string) (floor.Table, error) {
	var t floor.Table
	err := c.invoke(ctx, "RenameTable", &RenameTableRequest{TableID: tableID, Name: name}, &t)
	return t, err
}

func (c *Client) RemoveTable(ctx context.Context, tableID string) (bool, error) {
	var resp BoolResponse
	err := c.invoke(ctx, "RemoveTable", &TableRequest{TableID: tableID}, &resp)
	return resp.OK, err
}

func (c *Client) FloorPlan(layoutID string) ([]coordinator.TableView, error) {
	var resp FloorPlanResponse
	err := c.invoke(context.Background(), "FloorPlan", &LayoutRequest{LayoutID: layoutID}, &resp)
	return resp.Tables, err
}

func (c *Client) GetArchivedCheck(ctx context.Context, orderID string) (*models.CheckArchive, error) {
	var rec models.CheckArchive
	if err := c.invoke(ctx, "GetArchivedCheck", &OrderRequest{OrderID: orderID}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
