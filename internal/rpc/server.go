package rpc

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/database/models"
	"syntra-floor/internal/floor"
	"syntra-floor/internal/logger"
)

const ServiceName = "floor.v1.FloorService"

// ArchiveReader looks up settled checks.
type ArchiveReader interface {
	Find(ctx context.Context, orderID string) (*models.CheckArchive, error)
}

type floorService interface {
	isFloorService()
}

// Server exposes the coordinator over gRPC.
type Server struct {
	floor   *coordinator.Coordinator
	archive ArchiveReader
	log     *logger.Logger
}

func NewServer(c *coordinator.Coordinator, archive ArchiveReader, log *logger.Logger) *Server {
	return &Server{floor: c, archive: archive, log: log}
}

func (*Server) isFloorService() {}

// NewGRPCServer builds a grpc.Server with the floor service, health and
// reflection registered.
func NewGRPCServer(s *Server, log *logger.Logger) (*grpc.Server, *health.Server) {
	g := grpc.NewServer(grpc.ChainUnaryInterceptor(
		recoveryInterceptor(log),
		loggingInterceptor(log),
	))
	g.RegisterService(&ServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(g, hs)

	reflection.Register(g)
	return g, hs
}

func recoveryInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("GRPC", fmt.Sprintf("panic in %s: %v", info.FullMethod, r), "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func loggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		switch code {
		case codes.OK:
			log.Debug("GRPC", info.FullMethod, "code", code.String(), "duration", time.Since(start).String())
		case codes.Internal, codes.Unknown:
			log.Error("GRPC", info.FullMethod, "code", code.String(), "error", err, "duration", time.Since(start).String())
		default:
			log.Info("GRPC", info.FullMethod, "code", code.String(), "error", err, "duration", time.Since(start).String())
		}
		return resp, err
	}
}

// method builds a unary method descriptor decoding into Req and converting
// domain errors to statuses.
func method[Req any](name string, h func(s *Server, ctx context.Context, req *Req) (any, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			call := func(ctx context.Context, r any) (any, error) {
				resp, err := h(srv.(*Server), ctx, r.(*Req))
				if err != nil {
					return nil, toStatus(ctx, err)
				}
				return resp, nil
			}
			if interceptor == nil {
				return call(ctx, req)
			}
			return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: full}, call)
		},
	}
}

func result(res coordinator.Result, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func table(t floor.Table, ok bool) (any, error) {
	if !ok {
		return nil, floor.ErrTableNotFound
	}
	return &t, nil
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*floorService)(nil),
	Metadata:    "floor/v1/floor.json",
	Methods: []grpc.MethodDesc{
		method("OpenTable", func(s *Server, ctx context.Context, r *TableRequest) (any, error) {
			return result(s.floor.OpenTable(ctx, r.TableID))
		}),
		method("TakeOrder", func(s *Server, ctx context.Context, r *TakeOrderRequest) (any, error) {
			return result(s.floor.TakeOrder(ctx, r.TableID, r.OrderID))
		}),
		method("AddItem", func(s *Server, ctx context.Context, r *ItemRequest) (any, error) {
			return result(s.floor.AddItem(ctx, r.OrderID, r.Item))
		}),
		method("UpdateItem", func(s *Server, ctx context.Context, r *ItemRequest) (any, error) {
			return result(s.floor.UpdateItem(ctx, r.OrderID, r.Item))
		}),
		method("RemoveItem", func(s *Server, ctx context.Context, r *ItemStatusRequest) (any, error) {
			return result(s.floor.RemoveItem(ctx, r.OrderID, r.ItemID))
		}),
		method("SetItemStatus", func(s *Server, ctx context.Context, r *ItemStatusRequest) (any, error) {
			return result(s.floor.SetItemStatus(ctx, r.OrderID, r.ItemID, r.Status))
		}),
		method("UpdateDetails", func(s *Server, ctx context.Context, r *DetailsRequest) (any, error) {
			return result(s.floor.UpdateDetails(ctx, r.OrderID, r.Patch))
		}),
		method("RequestPayment", func(s *Server, ctx context.Context, r *OrderRequest) (any, error) {
			return result(s.floor.RequestPayment(ctx, r.OrderID))
		}),
		method("RecordPayment", func(s *Server, ctx context.Context, r *PaymentRequest) (any, error) {
			return result(s.floor.RecordPayment(ctx, r.OrderID, r.Payment))
		}),
		method("CloseCheck", func(s *Server, ctx context.Context, r *OrderRequest) (any, error) {
			return result(s.floor.CloseCheck(ctx, r.OrderID))
		}),
		method("RequestVoid", func(s *Server, ctx context.Context, r *OrderRequest) (any, error) {
			return result(s.floor.RequestVoid(ctx, r.OrderID))
		}),
		method("ReopenCheck", func(s *Server, ctx context.Context, r *OrderRequest) (any, error) {
			return result(s.floor.ReopenCheck(ctx, r.OrderID))
		}),
		method("ClearTable", func(s *Server, ctx context.Context, r *TableRequest) (any, error) {
			return result(s.floor.ClearTable(ctx, r.TableID))
		}),
		method("MarkCleaned", func(s *Server, ctx context.Context, r *TableRequest) (any, error) {
			return result(s.floor.MarkCleaned(ctx, r.TableID))
		}),
		method("MergeTables", func(s *Server, ctx context.Context, r *TablesRequest) (any, error) {
			return result(s.floor.MergeTables(ctx, r.TableIDs))
		}),
		method("UnmergeTables", func(s *Server, ctx context.Context, r *TableRequest) (any, error) {
			return result(s.floor.UnmergeTables(ctx, r.TableID))
		}),
		method("CanMerge", func(s *Server, _ context.Context, r *TablesRequest) (any, error) {
			if err := s.floor.CanMerge(r.TableIDs); err != nil {
				return nil, err
			}
			return &Empty{}, nil
		}),
		method("Confirm", func(s *Server, ctx context.Context, r *ActionRequest) (any, error) {
			return result(s.floor.Confirm(ctx, r.ActionID))
		}),
		method("Cancel", func(s *Server, _ context.Context, r *ActionRequest) (any, error) {
			return result(s.floor.Cancel(r.ActionID))
		}),
		method("CancelPendingFor", func(s *Server, _ context.Context, r *OrderRequest) (any, error) {
			return &CountResponse{Count: s.floor.CancelPendingFor(r.OrderID)}, nil
		}),
		method("PendingFor", func(s *Server, _ context.Context, r *OrderRequest) (any, error) {
			return &PendingResponse{Actions: s.floor.PendingFor(r.OrderID)}, nil
		}),
		method("DiscardDraft", func(s *Server, ctx context.Context, r *OrderRequest) (any, error) {
			ok, err := s.floor.DiscardDraft(ctx, r.OrderID)
			if err != nil {
				return nil, err
			}
			return &BoolResponse{OK: ok}, nil
		}),
		method("GetTable", func(s *Server, _ context.Context, r *TableRequest) (any, error) {
			return table(s.floor.Table(r.TableID))
		}),
		method("GetOrder", func(s *Server, _ context.Context, r *OrderRequest) (any, error) {
			o, ok := s.floor.Order(r.OrderID)
			if !ok {
				return nil, coordinator.ErrOrderNotFound
			}
			return &o, nil
		}),
		method("ListOrders", func(s *Server, _ context.Context, r *ListOrdersRequest) (any, error) {
			return &OrdersResponse{Orders: s.floor.Orders(r.LiveOnly)}, nil
		}),
		method("CreateLayout", func(s *Server, _ context.Context, r *LayoutRequest) (any, error) {
			l := s.floor.CreateLayout(r.Name)
			return &l, nil
		}),
		method("ListLayouts", func(s *Server, _ context.Context, _ *Empty) (any, error) {
			return &LayoutsResponse{Layouts: s.floor.Layouts()}, nil
		}),
		method("AddTables", func(s *Server, _ context.Context, r *AddTablesRequest) (any, error) {
			tables, err := s.floor.AddMultipleTables(r.LayoutID, r.Specs)
			if err != nil {
				return nil, err
			}
			return &TablesResponse{Tables: tables}, nil
		}),
		method("MoveTable", func(s *Server, _ context.Context, r *MoveTableRequest) (any, error) {
			return table(s.floor.MoveTable(r.TableID, r.X, r.Y))
		}),
		method("RenameTable", func(s *Server, _ context.Context, r *RenameTableRequest) (any, error) {
			return table(s.floor.RenameTable(r.TableID, r.Name))
		}),
		method("RemoveTable", func(s *Server, ctx context.Context, r *TableRequest) (any, error) {
			ok, err := s.floor.RemoveTable(ctx, r.TableID)
			if err != nil {
				return nil, err
			}
			return &BoolResponse{OK: ok}, nil
		}),
		method("FloorPlan", func(s *Server, _ context.Context, r *LayoutRequest) (any, error) {
			views, err := s.floor.FloorPlan(r.LayoutID)
			if err != nil {
				return nil, err
			}
			return &FloorPlanResponse{Tables: views}, nil
		}),
		method("GetArchivedCheck", func(s *Server, ctx context.Context, r *OrderRequest) (any, error) {
			if s.archive == nil {
				return nil, status.Error(codes.Unimplemented, "check archive is not configured")
			}
			return s.archive.Find(ctx, r.OrderID)
		}),
	},
	Streams: []grpc.StreamDesc{},
}
