package model

import (
	"errors"
	"time"
)

// ErrInvalidQuantity возвращается при попытке добавить неположительное количество продукта.
var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidPrice возвращается при регистрации продукта с неположительной ценой.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrCardClosed возвращается при попытке изменить закрытую карту.
	ErrCardClosed = errors.New("card is closed")
	// ErrCardAlreadyClosed возвращается при повторном закрытии карты.
	ErrCardAlreadyClosed = errors.New("card already closed")
	// ErrInvalidCloseTime возвращается, если время закрытия раньше времени открытия.
	ErrInvalidCloseTime = errors.New("close time is before open time")
)

// LedgerEntry — одна позиция на карте: накопленное количество продукта
// и зафиксированные при первом добавлении имя, цена и описание.
type LedgerEntry struct {
	ProductID   int64  `json:"product_id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price"`
	Description string `json:"description,omitempty"`
	Quantity    int64  `json:"quantity"`
}

// Card — карта (счёт) посетителя на один визит. Идентифицируется кодом,
// выдаваемым на входе, и накапливает позиции до закрытия на выходе.
type Card struct {
	ID         int64
	Code       int64
	CustomerID int64
	DateIn     time.Time
	DateOut    *time.Time
	LineItems  map[int64]LedgerEntry
	TotalCents int64
}

// NewCard создаёт открытую карту без позиций.
func NewCard(code, customerID int64, dateIn time.Time) *Card {
	return &Card{
		Code:       code,
		CustomerID: customerID,
		DateIn:     dateIn,
		LineItems:  map[int64]LedgerEntry{},
	}
}

// IsOpen сообщает, открыта ли карта. Карта открыта, пока не установлено время выхода.
func (c *Card) IsOpen() bool {
	return c.DateOut == nil
}

// AddLineItem добавляет quantity единиц продукта на открытую карту.
// Если продукт уже есть на карте, увеличивается только количество:
// имя, цена и описание остаются зафиксированными с первого добавления.
// Итог увеличивается на зафиксированную цену, умноженную на quantity.
func (c *Card) AddLineItem(snap ProductSnapshot, quantity int64) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if !c.IsOpen() {
		return ErrCardClosed
	}

	if c.LineItems == nil {
		c.LineItems = map[int64]LedgerEntry{}
	}

	entry, ok := c.LineItems[snap.ProductID]
	if ok {
		entry.Quantity += quantity
	} else {
		entry = LedgerEntry{
			ProductID:   snap.ProductID,
			Name:        snap.Name,
			PriceCents:  snap.PriceCents,
			Description: snap.Description,
			Quantity:    quantity,
		}
	}

	c.LineItems[snap.ProductID] = entry
	c.TotalCents += entry.PriceCents * quantity

	return nil
}

// Close закрывает карту. Времена сравниваются в UTC; время закрытия
// не может быть раньше времени открытия. Закрытие терминально.
func (c *Card) Close(dateOut time.Time) error {
	if !c.IsOpen() {
		return ErrCardAlreadyClosed
	}
	if dateOut.UTC().Before(c.DateIn.UTC()) {
		return ErrInvalidCloseTime
	}

	out := dateOut.UTC()
	c.DateOut = &out

	return nil
}
