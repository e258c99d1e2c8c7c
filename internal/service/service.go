// Package service реализует бизнес-логику сервиса карт-контроля.
package service

import (
	"context"
	"time"

	"github.com/mmeshcher/cardtab-system/internal/model"
)

// CardStore описывает контракт хранилища карт, используемый сервисом.
// Реализация отвечает за атомарность: CreateCard создаёт карту и увеличивает
// счётчик визитов одной транзакцией, AddCardItem и CloseCard выполняют
// read-modify-write карты под взаимным исключением по её строке.
type CardStore interface {
	Close() error
	CreateCard(ctx context.Context, code, customerID int64, dateIn time.Time) (*model.Card, error)
	GetCardByCode(ctx context.Context, code int64) (*model.Card, error)
	ListCards(ctx context.Context, onlyOpen bool) ([]model.Card, error)
	AddCardItem(ctx context.Context, code int64, snap model.ProductSnapshot, quantity int64) (*model.Card, error)
	CloseCard(ctx context.Context, code int64, dateOut time.Time) (*model.Card, error)
}

// CustomerRegistry описывает контракт реестра посетителей.
type CustomerRegistry interface {
	CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	IncrementVisits(ctx context.Context, id int64) error
}

// ProductCatalog выдаёт снимок продукта на момент продажи.
// Реализуется локальным реестром продуктов либо клиентом внешнего каталога.
type ProductCatalog interface {
	ResolveProduct(ctx context.Context, id int64) (*model.ProductSnapshot, error)
}

// ProductRegistry описывает контракт реестра продуктов, складских позиций и сотрудников.
type ProductRegistry interface {
	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateStockProduct(ctx context.Context, p model.StockProduct) (*model.StockProduct, error)
	ListStockProducts(ctx context.Context) ([]model.StockProduct, error)
	CreateEmployee(ctx context.Context, e model.Employee) (*model.Employee, error)
	ListEmployees(ctx context.Context) ([]model.Employee, error)
}

// Service содержит бизнес-логику сервиса карт-контроля.
type Service struct {
	store     CardStore
	customers CustomerRegistry
	registry  ProductRegistry
	catalog   ProductCatalog
}

// NewService создаёт новый сервис поверх хранилища карт, реестров и каталога продуктов.
func NewService(store CardStore, customers CustomerRegistry, registry ProductRegistry, catalog ProductCatalog) *Service {
	return &Service{
		store:     store,
		customers: customers,
		registry:  registry,
		catalog:   catalog,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// OpenCard открывает карту с указанным кодом для посетителя.
// Посетитель обязан существовать, вторая открытая карта не допускается.
func (s *Service) OpenCard(ctx context.Context, code, customerID int64, dateIn time.Time) (*model.Card, error) {
	if dateIn.IsZero() {
		dateIn = time.Now().UTC()
	}

	if _, err := s.customers.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	return s.store.CreateCard(ctx, code, customerID, dateIn)
}

// AddProductToCard добавляет amount единиц продукта на открытую карту.
// Предусловия проверяются по порядку: количество, существование карты,
// открытость карты, существование продукта. Хранилище повторяет проверку
// открытости под блокировкой строки, поэтому гонка с закрытием не теряется.
func (s *Service) AddProductToCard(ctx context.Context, code, productID, amount int64) (*model.Card, error) {
	if amount < 1 {
		return nil, model.ErrInvalidQuantity
	}

	card, err := s.store.GetCardByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !card.IsOpen() {
		return nil, model.ErrCardClosed
	}

	snap, err := s.catalog.ResolveProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.store.AddCardItem(ctx, code, *snap, amount)
}

// CloseCard закрывает карту; дальнейшие изменения карты невозможны.
func (s *Service) CloseCard(ctx context.Context, code int64, dateOut time.Time) (*model.Card, error) {
	if dateOut.IsZero() {
		dateOut = time.Now().UTC()
	}

	return s.store.CloseCard(ctx, code, dateOut)
}

// GetCard возвращает карту по коду.
func (s *Service) GetCard(ctx context.Context, code int64) (*model.Card, error) {
	return s.store.GetCardByCode(ctx, code)
}

// ListCards возвращает карты, при onlyOpen — только открытые.
func (s *Service) ListCards(ctx context.Context, onlyOpen bool) ([]model.Card, error) {
	return s.store.ListCards(ctx, onlyOpen)
}

// CreateCustomer регистрирует посетителя.
func (s *Service) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	return s.customers.CreateCustomer(ctx, c)
}

// GetCustomer возвращает посетителя по идентификатору.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	return s.customers.GetCustomer(ctx, id)
}

// ListCustomers возвращает всех посетителей.
func (s *Service) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.customers.ListCustomers(ctx)
}

// IncrementVisits отмечает визит посетителя без открытия карты.
func (s *Service) IncrementVisits(ctx context.Context, id int64) error {
	return s.customers.IncrementVisits(ctx, id)
}

// CreateProduct регистрирует продукт меню. Цена обязана быть положительной.
func (s *Service) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if p.PriceCents <= 0 {
		return nil, model.ErrInvalidPrice
	}
	return s.registry.CreateProduct(ctx, p)
}

// GetProduct возвращает продукт по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.registry.GetProduct(ctx, id)
}

// ListProducts возвращает все продукты меню.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.registry.ListProducts(ctx)
}

// CreateStockProduct регистрирует складскую позицию.
func (s *Service) CreateStockProduct(ctx context.Context, p model.StockProduct) (*model.StockProduct, error) {
	if p.PriceCents < 0 {
		return nil, model.ErrInvalidPrice
	}
	return s.registry.CreateStockProduct(ctx, p)
}

// ListStockProducts возвращает все складские позиции.
func (s *Service) ListStockProducts(ctx context.Context) ([]model.StockProduct, error) {
	return s.registry.ListStockProducts(ctx)
}

// CreateEmployee регистрирует сотрудника.
func (s *Service) CreateEmployee(ctx context.Context, e model.Employee) (*model.Employee, error) {
	return s.registry.CreateEmployee(ctx, e)
}

// ListEmployees возвращает всех сотрудников.
func (s *Service) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	return s.registry.ListEmployees(ctx)
}
