package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/middleware"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testUserID = uuid.MustParse("7d1f5c52-2a3e-4d0a-9b51-0f7f3c9a1e01")

// asCaller stands in for the JWT middleware and authenticates every request
// with the role named in the X-Test-Role header
func asCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Test-Role")
		if role == "" {
			middleware.RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		ctx := middleware.WithIdentity(r.Context(), middleware.Identity{
			UserID: testUserID,
			Email:  "staff@example.com",
			Role:   domain.Role(role),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router, mw func(http.Handler) http.Handler)
}

func newTestRouter(h routeRegistrar) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r, asCaller)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

type stubProductService struct {
	products map[uuid.UUID]*domain.Product
	created  []service.CreateProductInput
	actors   []string
	err      error
}

func newStubProductService(products ...*domain.Product) *stubProductService {
	s := &stubProductService{products: make(map[uuid.UUID]*domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *stubProductService) Create(ctx context.Context, input service.CreateProductInput, actor string) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, input)
	s.actors = append(s.actors, actor)
	p := &domain.Product{
		ID:         uuid.New(),
		Name:       input.Name,
		Quantity:   input.Quantity,
		Price:      input.Price,
		ExpiryDate: input.ExpiryDate,
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *stubProductService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, service.ErrProductNotFound
	}
	return p, nil
}

func (s *stubProductService) List(ctx context.Context) ([]*domain.Product, error) {
	out := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubProductService) Update(ctx context.Context, id uuid.UUID, update domain.ProductUpdate) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, service.ErrProductNotFound
	}
	p.Name = update.Name
	p.Price = update.Price
	p.ExpiryDate = update.ExpiryDate
	return p, nil
}

func (s *stubProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.products[id]; !ok {
		return service.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

type stockCall struct {
	productID uuid.UUID
	quantity  int
	txType    domain.TransactionType
	actor     string
}

type stubStockService struct {
	calls        []stockCall
	historyLimit int
	err          error
}

func (s *stubStockService) AdjustStock(ctx context.Context, productID uuid.UUID, quantity int, txType domain.TransactionType, actor string) (*domain.Product, error) {
	s.calls = append(s.calls, stockCall{productID, quantity, txType, actor})
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Product{ID: productID, Quantity: quantity}, nil
}

func (s *stubStockService) StockIn(ctx context.Context, productID uuid.UUID, quantity int, actor string) (*domain.Product, error) {
	return s.AdjustStock(ctx, productID, quantity, domain.TransactionStockIn, actor)
}

func (s *stubStockService) StockOut(ctx context.Context, productID uuid.UUID, quantity int, actor string) (*domain.Product, error) {
	return s.AdjustStock(ctx, productID, quantity, domain.TransactionStockOut, actor)
}

func (s *stubStockService) History(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	s.historyLimit = limit
	return []*domain.Transaction{}, nil
}

type stubCartService struct {
	cart        *domain.Cart
	checkout    *service.CheckoutResult
	checkoutErr error
	addErr      error
	actor       string
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.Cart, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	s.cart.Items = append(s.cart.Items, domain.CartItem{ProductID: productID, Quantity: quantity, AddedAt: time.Now()})
	return s.cart, nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*domain.Cart, error) {
	for i, item := range s.cart.Items {
		if item.ProductID == productID {
			s.cart.Items = append(s.cart.Items[:i], s.cart.Items[i+1:]...)
			return s.cart, nil
		}
	}
	return nil, service.ErrCartItemNotFound
}

func (s *stubCartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	return s.cart, nil
}

func (s *stubCartService) Checkout(ctx context.Context, userID uuid.UUID, actor string) (*service.CheckoutResult, error) {
	s.actor = actor
	return s.checkout, s.checkoutErr
}

type stubAlertService struct {
	notifications []*domain.Notification
	unread        int
	markErr       error
	marked        []uuid.UUID
}

func (s *stubAlertService) Scan(ctx context.Context, now time.Time) (service.ScanReport, error) {
	return service.ScanReport{}, nil
}

func (s *stubAlertService) List(ctx context.Context) ([]*domain.Notification, error) {
	return s.notifications, nil
}

func (s *stubAlertService) UnreadCount(ctx context.Context, now time.Time) (int, error) {
	return s.unread, nil
}

func (s *stubAlertService) MarkRead(ctx context.Context, id uuid.UUID) error {
	s.marked = append(s.marked, id)
	return s.markErr
}

type stubOrderService struct {
	order      *domain.PurchaseOrder
	createErr  error
	input      service.CreatePurchaseOrderInput
	confirm    *service.ConfirmResult
	confirmErr error
	advice     []domain.RestockAdvice
}

func (s *stubOrderService) CreateAndSend(ctx context.Context, input service.CreatePurchaseOrderInput, actor string) (*domain.PurchaseOrder, error) {
	s.input = input
	return s.order, s.createErr
}

func (s *stubOrderService) Confirm(ctx context.Context, token string) (*service.ConfirmResult, error) {
	return s.confirm, s.confirmErr
}

func (s *stubOrderService) List(ctx context.Context) ([]*domain.PurchaseOrder, error) {
	return []*domain.PurchaseOrder{s.order}, nil
}

func (s *stubOrderService) Forecast(ctx context.Context) ([]domain.RestockAdvice, error) {
	return s.advice, nil
}

func (s *stubOrderService) Suggestions(ctx context.Context) ([]domain.RestockAdvice, error) {
	var out []domain.RestockAdvice
	for _, a := range s.advice {
		if a.NeedsRestock() {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubAnalyticsService struct {
	period service.Period
}

func (s *stubAnalyticsService) Summary(ctx context.Context, now time.Time) (*domain.SalesSummary, error) {
	return &domain.SalesSummary{OrdersToday: 2}, nil
}

func (s *stubAnalyticsService) TopSelling(ctx context.Context, period service.Period, now time.Time) ([]domain.ProductSales, error) {
	s.period = period
	return []domain.ProductSales{}, nil
}

func (s *stubAnalyticsService) Trends(ctx context.Context, period service.Period, now time.Time) ([]service.TrendPoint, error) {
	if period == service.PeriodAll {
		return nil, service.ErrInvalidPeriod
	}
	s.period = period
	return []service.TrendPoint{}, nil
}
