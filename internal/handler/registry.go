package handler

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/cardtab-system/internal/model"
	"github.com/mmeshcher/cardtab-system/internal/repository"
	"github.com/mmeshcher/cardtab-system/internal/validation"
)

const dateLayout = "2006-01-02"

type customerRequest struct {
	Name        string `json:"name"`
	RG          string `json:"rg"`
	DateOfBirth string `json:"date_of_birth"`
	Age         int    `json:"age"`
	Gender      int    `json:"gender"`
}

type customerResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	RG          string `json:"rg"`
	DateOfBirth string `json:"date_of_birth"`
	Age         int    `json:"age"`
	Gender      int    `json:"gender"`
	Visits      int    `json:"visits"`
}

func toCustomerResponse(c *model.Customer) customerResponse {
	return customerResponse{
		ID:          c.ID,
		Name:        c.Name,
		RG:          c.RG,
		DateOfBirth: c.DateOfBirth.Format(dateLayout),
		Age:         c.Age,
		Gender:      c.Gender,
		Visits:      c.Visits,
	}
}

// CreateCustomer регистрирует нового посетителя.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if !validation.IsValidRG(req.RG) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	dob, err := time.Parse(dateLayout, req.DateOfBirth)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), model.Customer{
		Name:        req.Name,
		RG:          req.RG,
		DateOfBirth: dob,
		Age:         req.Age,
		Gender:      req.Gender,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCustomerExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("create customer error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, toCustomerResponse(customer))
}

// GetCustomer возвращает посетителя по идентификатору.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCustomerNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("get customer error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toCustomerResponse(customer))
}

// GetCustomers возвращает всех посетителей.
func (h *Handler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrStorageUnavailable) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("list customers error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(customers) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]customerResponse, 0, len(customers))
	for i := range customers {
		resp = append(resp, toCustomerResponse(&customers[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// IncrementVisits отмечает визит посетителя без открытия карты.
func (h *Handler) IncrementVisits(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.IncrementVisits(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrCustomerNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("increment visits error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type productRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	BaseItemIDs []int64 `json:"base_item_ids,omitempty"`
}

type productResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	BaseItemIDs []int64 `json:"base_item_ids,omitempty"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       float64(p.PriceCents) / 100,
		Description: p.Description,
		BaseItemIDs: p.BaseItemIDs,
	}
}

// CreateProduct регистрирует продукт меню.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.service.CreateProduct(r.Context(), model.Product{
		Name:        req.Name,
		PriceCents:  int64(math.Round(req.Price * 100)),
		Description: req.Description,
		BaseItemIDs: req.BaseItemIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidPrice):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrStockProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrProductExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("create product error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// GetProduct возвращает продукт по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("get product error", zap.Error(err), zap.Int64("id", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(product))
}

// GetProducts возвращает все продукты меню.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrStorageUnavailable) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("list products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(products) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type stockProductRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type stockProductResponse struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// CreateStockProduct регистрирует складскую позицию.
func (h *Handler) CreateStockProduct(w http.ResponseWriter, r *http.Request) {
	var req stockProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	product, err := h.service.CreateStockProduct(r.Context(), model.StockProduct{
		Name:       req.Name,
		PriceCents: int64(math.Round(req.Price * 100)),
		Stock:      req.Stock,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidPrice):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrStockProductExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("create stock product error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, stockProductResponse{
		ID:    product.ID,
		Name:  product.Name,
		Price: float64(product.PriceCents) / 100,
		Stock: product.Stock,
	})
}

// GetStockProducts возвращает все складские позиции.
func (h *Handler) GetStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListStockProducts(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrStorageUnavailable) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("list stock products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(products) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]stockProductResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, stockProductResponse{
			ID:    p.ID,
			Name:  p.Name,
			Price: float64(p.PriceCents) / 100,
			Stock: p.Stock,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type employeeRequest struct {
	Name          string `json:"name"`
	CPF           string `json:"cpf"`
	DateOfBirth   string `json:"date_of_birth"`
	Gender        int    `json:"gender"`
	Role          string `json:"role"`
	AdmissionDate string `json:"admission_date"`
	Age           int    `json:"age"`
	Address       string `json:"address,omitempty"`
}

type employeeResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CPF           string `json:"cpf"`
	DateOfBirth   string `json:"date_of_birth"`
	Gender        int    `json:"gender"`
	Role          string `json:"role"`
	AdmissionDate string `json:"admission_date"`
	Age           int    `json:"age"`
	Address       string `json:"address,omitempty"`
}

func toEmployeeResponse(e *model.Employee) employeeResponse {
	return employeeResponse{
		ID:            e.ID,
		Name:          e.Name,
		CPF:           e.CPF,
		DateOfBirth:   e.DateOfBirth.Format(dateLayout),
		Gender:        e.Gender,
		Role:          e.Role,
		AdmissionDate: e.AdmissionDate.Format(dateLayout),
		Age:           e.Age,
		Address:       e.Address,
	}
}

// CreateEmployee регистрирует сотрудника.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Role == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if !validation.IsValidCPF(req.CPF) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	dob, err := time.Parse(dateLayout, req.DateOfBirth)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	admission, err := time.Parse(dateLayout, req.AdmissionDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	employee, err := h.service.CreateEmployee(r.Context(), model.Employee{
		Name:          req.Name,
		CPF:           req.CPF,
		DateOfBirth:   dob,
		Gender:        req.Gender,
		Role:          req.Role,
		AdmissionDate: admission,
		Age:           req.Age,
		Address:       req.Address,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmployeeExists):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, repository.ErrStorageUnavailable):
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		default:
			h.logger.Error("create employee error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, toEmployeeResponse(employee))
}

// GetEmployees возвращает всех сотрудников.
func (h *Handler) GetEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.ListEmployees(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrStorageUnavailable) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("list employees error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(employees) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]employeeResponse, 0, len(employees))
	for i := range employees {
		resp = append(resp, toEmployeeResponse(&employees[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}
