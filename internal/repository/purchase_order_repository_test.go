package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stockledger/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(token string) *domain.PurchaseOrder {
	productID := uuid.New()
	return &domain.PurchaseOrder{
		ID:                uuid.New(),
		VendorEmail:       "vendor@example.com",
		ProductID:         &productID,
		ProductName:       "Widget",
		QuantityToOrder:   30,
		Status:            domain.PurchaseOrderSent,
		ConfirmationToken: &token,
		CreatedBy:         "admin@example.com",
		CreatedAt:         now(),
	}
}

func TestPurchaseOrderRepository_CreateAndFind(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewPurchaseOrderRepository(testDB)

	order := newTestOrder("token-create")
	require.NoError(t, repo.Create(ctx, order))

	byToken, err := repo.FindByToken(ctx, "token-create")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byToken.ID)
	assert.Equal(t, domain.PurchaseOrderSent, byToken.Status)
	require.NotNil(t, byToken.ProductID)
	assert.Equal(t, *order.ProductID, *byToken.ProductID)
	assert.Nil(t, byToken.ConfirmedAt)

	_, err = repo.FindByToken(ctx, "unknown")
	assert.ErrorIs(t, err, ErrPurchaseOrderNotFound)
}

func TestPurchaseOrderRepository_FreeTextProduct(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewPurchaseOrderRepository(testDB)

	order := newTestOrder("token-free-text")
	order.ProductID = nil
	order.ProductName = "Something not in the catalog"
	require.NoError(t, repo.Create(ctx, order))

	found, err := repo.FindByToken(ctx, "token-free-text")
	require.NoError(t, err)
	assert.Nil(t, found.ProductID)
	assert.Equal(t, "Something not in the catalog", found.ProductName)
}

func TestPurchaseOrderRepository_DuplicateToken(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewPurchaseOrderRepository(testDB)

	require.NoError(t, repo.Create(ctx, newTestOrder("same-token")))
	assert.ErrorIs(t, repo.Create(ctx, newTestOrder("same-token")), ErrDuplicateToken)
}

func TestPurchaseOrderRepository_DuplicateIDIsNotATokenClash(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewPurchaseOrderRepository(testDB)

	first := newTestOrder("token-a")
	require.NoError(t, repo.Create(ctx, first))

	second := newTestOrder("token-b")
	second.ID = first.ID
	err := repo.Create(ctx, second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateToken)
}

func TestPurchaseOrderRepository_ConfirmIsSingleUse(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewPurchaseOrderRepository(testDB)

	order := newTestOrder("token-confirm")
	require.NoError(t, repo.Create(ctx, order))

	at := now()
	confirmed, err := repo.ConfirmByToken(ctx, "token-confirm", at)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseOrderConfirmed, confirmed.Status)
	assert.Nil(t, confirmed.ConfirmationToken)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.True(t, at.Equal(*confirmed.ConfirmedAt))

	_, err = repo.ConfirmByToken(ctx, "token-confirm", now())
	assert.ErrorIs(t, err, ErrPurchaseOrderNotFound)

	_, err = repo.FindByToken(ctx, "token-confirm")
	assert.ErrorIs(t, err, ErrPurchaseOrderNotFound, "the token is cleared on confirmation")
}

func TestPurchaseOrderRepository_ConcurrentConfirmSucceedsOnce(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewPurchaseOrderRepository(testDB)

	require.NoError(t, repo.Create(ctx, newTestOrder("token-race")))

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ConfirmByToken(ctx, "token-race", now())
			if err == nil {
				mu.Lock()
				confirmed++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrPurchaseOrderNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, confirmed)
}

func TestPurchaseOrderRepository_FindAllNewestFirst(t *testing.T) {
	resetTables(t)
	ctx := context.Background()
	repo := NewPurchaseOrderRepository(testDB)

	older := newTestOrder("token-older")
	older.CreatedAt = now().Add(-time.Hour)
	newer := newTestOrder("token-newer")
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	orders, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer.ID, orders[0].ID)
	assert.Equal(t, older.ID, orders[1].ID)
}
