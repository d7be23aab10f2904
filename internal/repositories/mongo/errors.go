package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

// writeConflictCode is MongoDB's WriteConflict server error.
const writeConflictCode = 112

const transientTransactionLabel = "TransientTransactionError"

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *repositories.StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return repositories.NewStoreError(op, repositories.StoreErrorNotFound, "document not found", err)
	case mongo.IsDuplicateKeyError(err):
		return repositories.NewStoreError(op, repositories.StoreErrorConflict, "duplicate key", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return repositories.NewStoreError(op, repositories.StoreErrorUnavailable, "mongo unavailable", err)
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.HasErrorCode(writeConflictCode) {
			return repositories.NewStoreError(op, repositories.StoreErrorConflict, "write conflict", err)
		}
		if serverErr.HasErrorLabel(transientTransactionLabel) {
			return repositories.NewStoreError(op, repositories.StoreErrorConflict, "transient transaction error", err)
		}
	}
	return repositories.NewStoreError(op, repositories.StoreErrorUnknown, "mongo error", err)
}
