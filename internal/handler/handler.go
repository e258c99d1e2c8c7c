// Package handler содержит HTTP-обработчики API сервиса карт-контроля.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/cardtab-system/internal/model"
	"github.com/mmeshcher/cardtab-system/internal/repository"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	OpenCard(ctx context.Context, code, customerID int64, dateIn time.Time) (*model.Card, error)
	AddProductToCard(ctx context.Context, code, productID, amount int64) (*model.Card, error)
	CloseCard(ctx context.Context, code int64, dateOut time.Time) (*model.Card, error)
	GetCard(ctx context.Context, code int64) (*model.Card, error)
	ListCards(ctx context.Context, onlyOpen bool) ([]model.Card, error)
	CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	IncrementVisits(ctx context.Context, id int64) error
	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateStockProduct(ctx context.Context, p model.StockProduct) (*model.StockProduct, error)
	ListStockProducts(ctx context.Context) ([]model.StockProduct, error)
	CreateEmployee(ctx context.Context, e model.Employee) (*model.Employee, error)
	ListEmployees(ctx context.Context) ([]model.Employee, error)
}

// Handler реализует HTTP-обработчики API сервиса карт-контроля.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type openCardRequest struct {
	Code       int64  `json:"code"`
	CustomerID int64  `json:"customer_id"`
	DateIn     string `json:"date_in,omitempty"`
}

type addProductRequest struct {
	ProductID int64 `json:"product_id"`
	Amount    int64 `json:"amount"`
}

type closeCardRequest struct {
	DateOut string `json:"date_out,omitempty"`
}

type ledgerEntryResponse struct {
	ProductID   int64   `json:"product_id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Quantity    int64   `json:"quantity"`
}

type cardResponse struct {
	Code        int64                 `json:"code"`
	CustomerID  int64                 `json:"customer_id"`
	DateIn      string                `json:"date_in"`
	DateOut     *string               `json:"date_out,omitempty"`
	TotalAmount float64               `json:"total_amount"`
	LineItems   []ledgerEntryResponse `json:"line_items"`
}

func toCardResponse(c *model.Card) cardResponse {
	resp := cardResponse{
		Code:        c.Code,
		CustomerID:  c.CustomerID,
		DateIn:      c.DateIn.Format(time.RFC3339),
		TotalAmount: float64(c.TotalCents) / 100,
		LineItems:   make([]ledgerEntryResponse, 0, len(c.LineItems)),
	}

	if c.DateOut != nil {
		out := c.DateOut.Format(time.RFC3339)
		resp.DateOut = &out
	}

	for _, e := range c.LineItems {
		resp.LineItems = append(resp.LineItems, ledgerEntryResponse{
			ProductID:   e.ProductID,
			Name:        e.Name,
			Price:       float64(e.PriceCents) / 100,
			Description: e.Description,
			Quantity:    e.Quantity,
		})
	}
	sort.Slice(resp.LineItems, func(i, j int) bool {
		return resp.LineItems[i].ProductID < resp.LineItems[j].ProductID
	})

	return resp
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func cardCodeFromURL(r *http.Request) (int64, bool) {
	code, err := strconv.ParseInt(chi.URLParam(r, "code"), 10, 64)
	return code, err == nil
}

// OpenCard открывает новую карту посетителя.
func (h *Handler) OpenCard(w http.ResponseWriter, r *http.Request) {
	var req openCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Code <= 0 || req.CustomerID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var dateIn time.Time
	if req.DateIn != "" {
		parsed, err := time.Parse(time.RFC3339, req.DateIn)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		dateIn = parsed
	}

	card, err := h.service.OpenCard(r.Context(), req.Code, req.CustomerID, dateIn)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCustomerNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrCardAlreadyOpen), errors.Is(err, repository.ErrCardCodeExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("open card error", zap.Error(err), zap.Int64("code", req.Code))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, toCardResponse(card))
}

// AddProduct добавляет продукт на открытую карту.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	code, ok := cardCodeFromURL(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	card, err := h.service.AddProductToCard(r.Context(), code, req.ProductID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidQuantity):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrCardNotFound), errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, model.ErrCardClosed):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("add product error", zap.Error(err), zap.Int64("code", code), zap.Int64("product", req.ProductID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toCardResponse(card))
}

// CloseCard закрывает карту — терминальный переход.
func (h *Handler) CloseCard(w http.ResponseWriter, r *http.Request) {
	code, ok := cardCodeFromURL(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Тело запроса необязательно: без него карта закрывается текущим временем.
	var req closeCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var dateOut time.Time
	if req.DateOut != "" {
		parsed, err := time.Parse(time.RFC3339, req.DateOut)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		dateOut = parsed
	}

	card, err := h.service.CloseCard(r.Context(), code, dateOut)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidCloseTime):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrCardNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, model.ErrCardAlreadyClosed):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("close card error", zap.Error(err), zap.Int64("code", code))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toCardResponse(card))
}

// GetCard возвращает карту по коду.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	code, ok := cardCodeFromURL(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	card, err := h.service.GetCard(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCardNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("get card error", zap.Error(err), zap.Int64("code", code))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toCardResponse(card))
}

// GetCards возвращает все карты; с параметром open=true — только открытые.
func (h *Handler) GetCards(w http.ResponseWriter, r *http.Request) {
	onlyOpen := r.URL.Query().Get("open") == "true"

	cards, err := h.service.ListCards(r.Context(), onlyOpen)
	if err != nil {
		if errors.Is(err, repository.ErrStorageUnavailable) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("list cards error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(cards) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]cardResponse, 0, len(cards))
	for i := range cards {
		resp = append(resp, toCardResponse(&cards[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}
