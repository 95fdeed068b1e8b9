package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleximart-etl/internal/models"
	"fleximart-etl/internal/store"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customer(email string) models.Customer {
	return models.Customer{
		FirstName:        "Test",
		LastName:         "User",
		Email:            email,
		RegistrationDate: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoadCustomers_ClassifiesEveryRow(t *testing.T) {
	src := newFakeSource()
	src.customers = []models.Customer{{CustomerID: 100, Email: "existing@x.com"}}
	src.insertErr["bad-fk@x.com"] = &pq.Error{Code: "23514"}
	src.insertErr["flaky@x.com"] = errors.New("connection reset by peer")

	rows := []models.Customer{
		customer("new@x.com"),
		customer("existing@x.com"),
		customer("bad-fk@x.com"),
		customer("flaky@x.com"),
		customer("other@x.com"),
	}

	m, err := NewLoader(src).LoadCustomers(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, int64(2), m.Get("customers_loaded"))
	assert.Equal(t, int64(1), m.Get("customers_skipped_existing"))
	assert.Equal(t, int64(1), m.Get("customers_rejected_constraint"))
	assert.Equal(t, int64(1), m.Get("customers_failed"))

	// failed rows do not undo earlier successes
	ids, err := src.CustomerIdentities(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ids, "new@x.com")
	assert.Contains(t, ids, "other@x.com")
	assert.Equal(t, int64(100), ids["existing@x.com"])
}

func TestLoadCustomers_SecondRunLoadsNothing(t *testing.T) {
	src := newFakeSource()
	loader := NewLoader(src)
	rows := []models.Customer{customer("a@x.com"), customer("b@x.com")}

	_, err := loader.LoadCustomers(context.Background(), rows)
	require.NoError(t, err)

	m, err := loader.LoadCustomers(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.Get("customers_loaded"))
	assert.Equal(t, int64(2), m.Get("customers_skipped_existing"))
	assert.Len(t, src.customers, 2)
}

func TestLoadProducts_CommitFailureIsStageError(t *testing.T) {
	src := newFakeSource()
	src.commitErr = &store.PersistError{Kind: store.TransientFailure, Op: "commit", Err: errors.New("server closed the connection")}

	_, err := NewLoader(src).LoadProducts(context.Background(), []models.Product{
		{ProductName: "Widget", Category: "Tools", Price: decimal.NewFromInt(50)},
	})
	require.Error(t, err)
	assert.Equal(t, store.TransientFailure, store.Classify(err))
	assert.Empty(t, src.products)
}
