package repository

import (
	"context"
	"testing"
	"time"

	"stockledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSale(t *testing.T, productID uuid.UUID, quantity int, at time.Time) {
	t.Helper()
	err := insertTransaction(context.Background(), testDB, &domain.Transaction{
		ID:          uuid.New(),
		ProductID:   productID,
		ProductName: "sold",
		Type:        domain.TransactionSale,
		Quantity:    quantity,
		HandledBy:   "user@example.com",
		Timestamp:   at,
	})
	require.NoError(t, err)
}

func TestTransactionRepository_RecentNewestFirstWithLimit(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewTransactionRepository(testDB)
	base := now().Add(-time.Hour)
	productID := uuid.New()

	for i := 0; i < 5; i++ {
		recordSale(t, productID, i+1, base.Add(time.Duration(i)*time.Minute))
	}

	entries, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 5, entries[0].Quantity)
	assert.Equal(t, 4, entries[1].Quantity)
	assert.Equal(t, 3, entries[2].Quantity)
	assert.Equal(t, domain.TransactionSale, entries[0].Type)
}

func TestTransactionRepository_SalesStats(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewTransactionRepository(testDB)
	products := NewProductRepository(testDB)

	priced := newTestProduct("Priced", 0)
	priced.Price = decimal.RequireFromString("2.50")
	_, err := products.Create(ctx, priced, "admin@example.com")
	require.NoError(t, err)

	at := now()
	recordSale(t, priced.ID, 4, at.Add(-time.Hour))
	recordSale(t, uuid.New(), 3, at.Add(-time.Hour)) // deleted product
	recordSale(t, priced.ID, 100, at.Add(-48*time.Hour))

	// stock movements are not sales
	_, _, err = products.AdjustStock(ctx, StockChange{ProductID: priced.ID, Type: domain.TransactionStockIn, Quantity: 9, HandledBy: "staff@example.com", At: at})
	require.NoError(t, err)

	orders, revenue, err := repo.SalesStats(ctx, at.Add(-24*time.Hour), at)
	require.NoError(t, err)
	assert.Equal(t, 2, orders)
	assert.True(t, decimal.RequireFromString("10").Equal(revenue), "got %s", revenue)

	orders, revenue, err = repo.SalesStats(ctx, at.Add(-time.Minute), at)
	require.NoError(t, err)
	assert.Equal(t, 0, orders)
	assert.True(t, revenue.IsZero())
}

func TestTransactionRepository_TopSelling(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewTransactionRepository(testDB)
	at := now()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	recordSale(t, a, 2, at.Add(-time.Hour))
	recordSale(t, a, 3, at.Add(-2*time.Hour))
	recordSale(t, b, 7, at.Add(-time.Hour))
	recordSale(t, c, 50, at.Add(-60*24*time.Hour))

	t.Run("all time", func(t *testing.T) {
		ranked, err := repo.TopSelling(ctx, nil, at, 10)
		require.NoError(t, err)
		require.Len(t, ranked, 3)
		assert.Equal(t, ProductSold{ProductID: c, Quantity: 50}, ranked[0])
		assert.Equal(t, ProductSold{ProductID: b, Quantity: 7}, ranked[1])
		assert.Equal(t, ProductSold{ProductID: a, Quantity: 5}, ranked[2])
	})

	t.Run("window and limit", func(t *testing.T) {
		from := at.Add(-24 * time.Hour)
		ranked, err := repo.TopSelling(ctx, &from, at, 1)
		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.Equal(t, b, ranked[0].ProductID)
	})
}
