// Package model содержит доменные сущности сервиса карт-контроля.
package model

import "time"

// Customer представляет посетителя заведения.
type Customer struct {
	ID          int64
	Name        string
	RG          string
	DateOfBirth time.Time
	Age         int
	Gender      int
	Visits      int
}

// Employee представляет сотрудника заведения.
type Employee struct {
	ID            int64
	Name          string
	CPF           string
	DateOfBirth   time.Time
	Gender        int
	Role          string
	AdmissionDate time.Time
	Age           int
	Address       string
}

// Product описывает позицию меню, доступную для продажи.
type Product struct {
	ID          int64
	Name        string
	PriceCents  int64
	Description string
	// BaseItemIDs — складские позиции, из которых состоит продукт.
	BaseItemIDs []int64
}

// StockProduct описывает складскую позицию.
type StockProduct struct {
	ID         int64
	Name       string
	PriceCents int64
	Stock      int
}

// ProductSnapshot — срез данных продукта на момент продажи.
// Цена фиксируется при первом добавлении продукта на карту и далее не перечитывается.
type ProductSnapshot struct {
	ProductID   int64
	Name        string
	PriceCents  int64
	Description string
}
