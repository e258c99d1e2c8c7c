package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/cardtab-system/internal/model"
	"github.com/mmeshcher/cardtab-system/internal/repository"
)

type stubService struct {
	openCard    *model.Card
	openCardErr error

	addProductCard *model.Card
	addProductErr  error

	closeCard    *model.Card
	closeCardErr error

	getCard    *model.Card
	getCardErr error

	cards    []model.Card
	cardsErr error

	customer    *model.Customer
	customerErr error

	employee    *model.Employee
	employeeErr error

	visitsErr error

	employeeCalls int
	visitsCalls   int
}

func (s *stubService) OpenCard(ctx context.Context, code, customerID int64, dateIn time.Time) (*model.Card, error) {
	return s.openCard, s.openCardErr
}

func (s *stubService) AddProductToCard(ctx context.Context, code, productID, amount int64) (*model.Card, error) {
	return s.addProductCard, s.addProductErr
}

func (s *stubService) CloseCard(ctx context.Context, code int64, dateOut time.Time) (*model.Card, error) {
	return s.closeCard, s.closeCardErr
}

func (s *stubService) GetCard(ctx context.Context, code int64) (*model.Card, error) {
	return s.getCard, s.getCardErr
}

func (s *stubService) ListCards(ctx context.Context, onlyOpen bool) ([]model.Card, error) {
	return s.cards, s.cardsErr
}

func (s *stubService) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	return s.customer, s.customerErr
}

func (s *stubService) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	return s.customer, s.customerErr
}

func (s *stubService) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return nil, nil
}

func (s *stubService) IncrementVisits(ctx context.Context, id int64) error {
	s.visitsCalls++
	return s.visitsErr
}

func (s *stubService) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	return nil, nil
}

func (s *stubService) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return nil, nil
}

func (s *stubService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return nil, nil
}

func (s *stubService) CreateStockProduct(ctx context.Context, p model.StockProduct) (*model.StockProduct, error) {
	return nil, nil
}

func (s *stubService) ListStockProducts(ctx context.Context) ([]model.StockProduct, error) {
	return nil, nil
}

func (s *stubService) CreateEmployee(ctx context.Context, e model.Employee) (*model.Employee, error) {
	s.employeeCalls++
	return s.employee, s.employeeErr
}

func (s *stubService) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, svc Service) http.Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger).SetupRouter()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func testCard() *model.Card {
	c := model.NewCard(101, 42, time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC))
	c.ID = 1
	return c
}

func TestOpenCard_Created(t *testing.T) {
	svc := &stubService{openCard: testCard()}
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/cards/", openCardRequest{Code: 101, CustomerID: 42})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var resp cardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != 101 || resp.CustomerID != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.TotalAmount != 0 || len(resp.LineItems) != 0 {
		t.Fatalf("new card must be empty: %+v", resp)
	}
}

func TestOpenCard_Conflicts(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{name: "already open", err: repository.ErrCardAlreadyOpen, want: http.StatusConflict},
		{name: "code taken", err: repository.ErrCardCodeExists, want: http.StatusConflict},
		{name: "customer missing", err: repository.ErrCustomerNotFound, want: http.StatusNotFound},
		{name: "storage down", err: repository.ErrStorageUnavailable, want: http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{openCardErr: tt.err}
			router := newTestRouter(t, svc)

			rec := doJSON(t, router, http.MethodPost, "/api/cards/", openCardRequest{Code: 101, CustomerID: 42})
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAddProduct_StatusMapping(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid quantity", err: model.ErrInvalidQuantity, want: http.StatusBadRequest},
		{name: "card missing", err: repository.ErrCardNotFound, want: http.StatusNotFound},
		{name: "product missing", err: repository.ErrProductNotFound, want: http.StatusNotFound},
		{name: "card closed", err: model.ErrCardClosed, want: http.StatusConflict},
		{name: "storage down", err: repository.ErrStorageUnavailable, want: http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{addProductErr: tt.err}
			router := newTestRouter(t, svc)

			rec := doJSON(t, router, http.MethodPost, "/api/cards/101/products", addProductRequest{ProductID: 7, Amount: 2})
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAddProduct_ReturnsUpdatedCard(t *testing.T) {
	card := testCard()
	if err := card.AddLineItem(model.ProductSnapshot{ProductID: 7, Name: "beer", PriceCents: 1000}, 5); err != nil {
		t.Fatalf("AddLineItem: %v", err)
	}

	svc := &stubService{addProductCard: card}
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/cards/101/products", addProductRequest{ProductID: 7, Amount: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp cardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.TotalAmount != 50.0 {
		t.Fatalf("total = %v, want 50.0", resp.TotalAmount)
	}
	if len(resp.LineItems) != 1 || resp.LineItems[0].Quantity != 5 || resp.LineItems[0].Price != 10.0 {
		t.Fatalf("unexpected line items: %+v", resp.LineItems)
	}
}

func TestCloseCard_StatusMapping(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{name: "close before open", err: model.ErrInvalidCloseTime, want: http.StatusBadRequest},
		{name: "card missing", err: repository.ErrCardNotFound, want: http.StatusNotFound},
		{name: "already closed", err: model.ErrCardAlreadyClosed, want: http.StatusConflict},
		{name: "storage down", err: repository.ErrStorageUnavailable, want: http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{closeCardErr: tt.err}
			router := newTestRouter(t, svc)

			rec := doJSON(t, router, http.MethodPost, "/api/cards/101/close", closeCardRequest{})
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCloseCard_EmptyBody(t *testing.T) {
	svc := &stubService{closeCard: testCard()}
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/cards/101/close", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestGetCard_StatusMapping(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{name: "card missing", err: repository.ErrCardNotFound, want: http.StatusNotFound},
		{name: "storage down", err: repository.ErrStorageUnavailable, want: http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{getCardErr: tt.err}
			router := newTestRouter(t, svc)

			rec := doJSON(t, router, http.MethodGet, "/api/cards/999/", nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGetCards_StorageUnavailable(t *testing.T) {
	svc := &stubService{cardsErr: repository.ErrStorageUnavailable}
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodGet, "/api/cards/", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestGetCards_NoContent(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodGet, "/api/cards/", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestCreateEmployee_InvalidCPF(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/employees/", employeeRequest{
		Name:          "Ana",
		CPF:           "11111111111",
		DateOfBirth:   "1990-01-01",
		Role:          "waiter",
		AdmissionDate: "2020-01-01",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if svc.employeeCalls != 0 {
		t.Fatalf("service called despite invalid CPF")
	}
}

func TestIncrementVisits_StatusMapping(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{name: "recorded", err: nil, want: http.StatusNoContent},
		{name: "customer missing", err: repository.ErrCustomerNotFound, want: http.StatusNotFound},
		{name: "storage down", err: repository.ErrStorageUnavailable, want: http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{visitsErr: tt.err}
			router := newTestRouter(t, svc)

			rec := doJSON(t, router, http.MethodPost, "/api/customers/42/visits", nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if svc.visitsCalls != 1 {
				t.Fatalf("visits calls = %d, want 1", svc.visitsCalls)
			}
		})
	}
}

func TestIncrementVisits_BadID(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/customers/abc/visits", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if svc.visitsCalls != 0 {
		t.Fatalf("service called despite invalid id")
	}
}

func TestCreateCustomer_InvalidRG(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(t, svc)

	rec := doJSON(t, router, http.MethodPost, "/api/customers/", customerRequest{
		Name:        "Rui",
		RG:          "12ab",
		DateOfBirth: "1990-01-01",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}
