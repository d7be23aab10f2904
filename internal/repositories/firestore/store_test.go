package firestore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
	pfirestore "github.com/Shelia5K/FAPI-order-service/internal/platform/firestore"
	"github.com/Shelia5K/FAPI-order-service/internal/repositories"
)

func TestToStoreError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want repositories.StoreErrorCode
	}{
		{"not found", pfirestore.WrapError("get", status.Error(codes.NotFound, "missing")), repositories.StoreErrorNotFound},
		{"already exists", pfirestore.WrapError("commit", status.Error(codes.AlreadyExists, "dup")), repositories.StoreErrorConflict},
		{"aborted", pfirestore.WrapError("commit", status.Error(codes.Aborted, "contention")), repositories.StoreErrorConflict},
		{"unavailable", pfirestore.WrapError("get", status.Error(codes.Unavailable, "down")), repositories.StoreErrorUnavailable},
		{"plain", errors.New("boom"), repositories.StoreErrorUnknown},
		{"store error", repositories.NewStoreError("tx", repositories.StoreErrorInsufficientStock, "", nil), repositories.StoreErrorInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, repositories.ErrorCode(toStoreError("op", tc.err)))
		})
	}
	assert.NoError(t, toStoreError("op", nil))
}

func TestDocumentMapping(t *testing.T) {
	description := "Boxwood"
	created := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	doc := productDocument{Title: "Brass desk lamp", Description: &description, UnitPrice: 1990, Quantity: 5, CreatedAt: created}

	product := doc.toDomain("prod-1")
	assert.Equal(t, "prod-1", product.ID)
	assert.Equal(t, 5, product.Quantity)
	*product.Description = "changed"
	assert.Equal(t, "Boxwood", *doc.Description)

	order := domain.Order{
		ID:        "order-1",
		ProductID: "prod-1",
		Customer:  domain.Customer{Name: "Jana", Email: "jana@example.com", Country: "CZ"},
		Quantity:  2,
		Subtotal:  3980,
		TaxAmount: 835.8,
		Total:     4815.8,
		TaxRate:   0.21,
		Currency:  domain.BaseCurrency,
		CreatedAt: created,
	}
	assert.Equal(t, order, newOrderDocument(order).toDomain("order-1"))
}

func TestNewRequiresProvider(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
