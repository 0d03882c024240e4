package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/database"
	"syntra-floor/internal/floor"
	"syntra-floor/internal/ledger"
)

// reasonKey carries the name of the domain error in the response trailer so
// the client can hand back an error that matches with errors.Is.
const reasonKey = "x-floor-reason"

type reason struct {
	name string
	err  error
	code codes.Code
}

var reasons = []reason{
	{"TABLE_NOT_FOUND", floor.ErrTableNotFound, codes.NotFound},
	{"LAYOUT_NOT_FOUND", floor.ErrLayoutNotFound, codes.NotFound},
	{"ORDER_NOT_FOUND", ledger.ErrOrderNotFound, codes.NotFound},
	{"ITEM_NOT_FOUND", ledger.ErrItemNotFound, codes.NotFound},
	{"ACTION_NOT_FOUND", coordinator.ErrActionNotFound, codes.NotFound},
	{"ARCHIVE_NOT_FOUND", database.ErrArchiveNotFound, codes.NotFound},

	{"TABLE_NEEDS_CLEANING", coordinator.ErrTableNeedsCleaning, codes.FailedPrecondition},
	{"TABLE_NOT_CLEANED", floor.ErrTableNotCleaned, codes.FailedPrecondition},
	{"NOT_ORDERABLE", coordinator.ErrNotOrderable, codes.FailedPrecondition},
	{"TABLE_OCCUPIED", coordinator.ErrTableOccupied, codes.FailedPrecondition},
	{"VOID_WITH_PAYMENTS", coordinator.ErrVoidWithPayments, codes.FailedPrecondition},
	{"CHECK_NOT_SETTLED", coordinator.ErrCheckNotSettled, codes.FailedPrecondition},
	{"CHECK_NOT_BOUND", coordinator.ErrCheckNotBound, codes.FailedPrecondition},
	{"NOTHING_TO_PAY", coordinator.ErrNothingToPay, codes.FailedPrecondition},
	{"MERGE_CLOSED_CHECK", coordinator.ErrMergeClosedCheck, codes.FailedPrecondition},
	{"TABLE_BUSY", coordinator.ErrTableBusy, codes.FailedPrecondition},
	{"NOT_CLEANING", coordinator.ErrNotCleaning, codes.FailedPrecondition},
	{"CHECK_CLOSED", ledger.ErrCheckClosed, codes.FailedPrecondition},
	{"CHECK_NOT_CLOSED", ledger.ErrCheckNotClosed, codes.FailedPrecondition},
	{"ORDER_RETIRED", ledger.ErrOrderRetired, codes.FailedPrecondition},
	{"HAS_PAYMENTS", ledger.ErrHasPayments, codes.FailedPrecondition},
	{"ALREADY_ASSIGNED", ledger.ErrAlreadyAssigned, codes.FailedPrecondition},
	{"ITEM_PAID", ledger.ErrItemPaid, codes.FailedPrecondition},
	{"NOT_DRAFT", ledger.ErrNotDraft, codes.FailedPrecondition},
	{"ALREADY_MERGED", floor.ErrAlreadyMerged, codes.FailedPrecondition},
	{"STATIC_OBJECT", floor.ErrStaticObject, codes.FailedPrecondition},

	{"DUPLICATE_ITEM", ledger.ErrDuplicateItem, codes.InvalidArgument},
	{"INVALID_QUANTITY", ledger.ErrInvalidQuantity, codes.InvalidArgument},
	{"INVALID_PRICE", ledger.ErrInvalidPrice, codes.InvalidArgument},
	{"INVALID_STATUS", ledger.ErrInvalidStatus, codes.InvalidArgument},
	{"INVALID_PAYMENT", ledger.ErrInvalidPayment, codes.InvalidArgument},
	{"INVALID_SHAPE", floor.ErrInvalidShape, codes.InvalidArgument},
	{"TOO_FEW_TABLES", floor.ErrTooFewTables, codes.InvalidArgument},
	{"DUPLICATE_TABLE", floor.ErrDuplicateTable, codes.InvalidArgument},
	{"LAYOUT_MISMATCH", floor.ErrLayoutMismatch, codes.InvalidArgument},

	{"CONTENTION", coordinator.ErrContention, codes.Aborted},
}

func lookupReason(err error) (reason, bool) {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r, true
		}
	}
	return reason{}, false
}

// toStatus converts a domain error into a gRPC status and records its reason
// in the trailer.
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if r, ok := lookupReason(err); ok {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(reasonKey, r.name))
		return status.Error(r.code, err.Error())
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// RemoteError is a domain error returned by the floor service. It keeps the
// server's message and unwraps to the matching local sentinel.
type RemoteError struct {
	Code    codes.Code
	Message string
	cause   error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.cause }

// GRPCStatus lets status.FromError and status.Code see through the wrapper.
func (e *RemoteError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// fromStatus is the client half of toStatus.
func fromStatus(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if names := trailer.Get(reasonKey); len(names) > 0 {
		for _, r := range reasons {
			if r.name == names[0] {
				return &RemoteError{Code: st.Code(), Message: st.Message(), cause: r.err}
			}
		}
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return &RemoteError{Code: st.Code(), Message: st.Message(), cause: context.DeadlineExceeded}
	case codes.Canceled:
		return &RemoteError{Code: st.Code(), Message: st.Message(), cause: context.Canceled}
	}
	return err
}
