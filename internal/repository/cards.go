package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/cardtab-system/internal/model"
)

// CreateCard открывает новую карту для посетителя и увеличивает его счётчик
// визитов в одной транзакции. Уникальный частичный индекс по (customer_id)
// WHERE date_out IS NULL гарантирует не более одной открытой карты на посетителя:
// конкурирующая вставка получает ErrCardAlreadyOpen от БД, а не от проверки в коде.
func (r *PostgresRepository) CreateCard(ctx context.Context, code, customerID int64, dateIn time.Time) (*model.Card, error) {
	var card *model.Card

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`UPDATE customers SET visits = visits + 1 WHERE id = $1`,
			customerID,
		)
		if err != nil {
			return fmt.Errorf("increment visits: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrCustomerNotFound
		}

		var id int64
		err = tx.QueryRow(ctx,
			`INSERT INTO cards (code, customer_id, date_in) VALUES ($1, $2, $3) RETURNING id`,
			code, customerID, dateIn.UTC(),
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err, constraintCardCode) {
				return fmt.Errorf("%w: %d", ErrCardCodeExists, code)
			}
			if isUniqueViolation(err, constraintCustomerOpen) {
				return ErrCardAlreadyOpen
			}
			return fmt.Errorf("insert card: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		card = model.NewCard(code, customerID, dateIn.UTC())
		card.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	return card, nil
}

// GetCardByCode возвращает карту по её коду вместе с позициями.
func (r *PostgresRepository) GetCardByCode(ctx context.Context, code int64) (*model.Card, error) {
	var card *model.Card

	err := r.withRetry(ctx, func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx,
			`SELECT id, code, customer_id, date_in, date_out, total_cents, line_items
			 FROM cards
			 WHERE code = $1`,
			code,
		)

		c, err := scanCard(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCardNotFound
			}
			return fmt.Errorf("get card: %w", err)
		}

		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return card, nil
}

// ListCards возвращает все карты, при onlyOpen — только открытые.
func (r *PostgresRepository) ListCards(ctx context.Context, onlyOpen bool) ([]model.Card, error) {
	query := `SELECT id, code, customer_id, date_in, date_out, total_cents, line_items
	          FROM cards
	          ORDER BY date_in DESC`
	if onlyOpen {
		query = `SELECT id, code, customer_id, date_in, date_out, total_cents, line_items
		         FROM cards
		         WHERE date_out IS NULL
		         ORDER BY date_in DESC`
	}

	var cards []model.Card

	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("select cards: %w", err)
		}
		defer rows.Close()

		cards = cards[:0]
		for rows.Next() {
			card, err := scanCard(rows)
			if err != nil {
				return fmt.Errorf("scan card: %w", err)
			}
			cards = append(cards, *card)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return cards, nil
}

// AddCardItem добавляет quantity единиц продукта на карту под блокировкой её строки.
// Снимок продукта используется только для новой позиции; у существующей позиции
// растёт лишь количество, цена остаётся зафиксированной с первого добавления.
// Позиции и итог записываются одной командой и коммитятся вместе.
func (r *PostgresRepository) AddCardItem(ctx context.Context, code int64, snap model.ProductSnapshot, quantity int64) (*model.Card, error) {
	var card *model.Card

	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		card, err = r.updateCard(ctx, code, func(c *model.Card) error {
			return c.AddLineItem(snap, quantity)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return card, nil
}

// CloseCard закрывает карту. Берёт ту же блокировку строки, что и AddCardItem,
// поэтому гонка закрытия и добавления сериализуется на уровне БД: проигравший
// видит уже закоммиченное состояние.
func (r *PostgresRepository) CloseCard(ctx context.Context, code int64, dateOut time.Time) (*model.Card, error) {
	var card *model.Card

	err := r.withRetry(ctx, func(ctx context.Context) error {
		var err error
		card, err = r.updateCard(ctx, code, func(c *model.Card) error {
			return c.Close(dateOut)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return card, nil
}

// updateCard выполняет read-modify-write карты в одной транзакции:
// SELECT ... FOR UPDATE, мутация в памяти, запись полного состояния.
// Ошибка мутации откатывает транзакцию, частичных изменений не остаётся.
func (r *PostgresRepository) updateCard(ctx context.Context, code int64, mutate func(*model.Card) error) (*model.Card, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT id, code, customer_id, date_in, date_out, total_cents, line_items
		 FROM cards
		 WHERE code = $1
		 FOR UPDATE`,
		code,
	)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("lock card: %w", err)
	}

	if err := mutate(card); err != nil {
		return nil, err
	}

	items, err := json.Marshal(card.LineItems)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE cards SET line_items = $2, total_cents = $3, date_out = $4 WHERE id = $1`,
		card.ID, items, card.TotalCents, card.DateOut,
	)
	if err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return card, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*model.Card, error) {
	var (
		card  model.Card
		items []byte
	)

	err := row.Scan(&card.ID, &card.Code, &card.CustomerID, &card.DateIn, &card.DateOut, &card.TotalCents, &items)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &card.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	if card.LineItems == nil {
		card.LineItems = map[int64]model.LedgerEntry{}
	}

	return &card, nil
}
