// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrCardNotFound возвращается, если карта с указанным кодом не найдена.
var (
	ErrCardNotFound = errors.New("card not found")
	// ErrCardCodeExists возвращается при попытке открыть карту с уже занятым кодом.
	ErrCardCodeExists = errors.New("card code already exists")
	// ErrCardAlreadyOpen возвращается, если у посетителя уже есть открытая карта.
	ErrCardAlreadyOpen = errors.New("customer already has an open card")
	// ErrCustomerNotFound возвращается, если посетитель не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrCustomerExists возвращается при попытке создать посетителя с уже зарегистрированным RG.
	ErrCustomerExists = errors.New("customer already exists")
	// ErrProductNotFound возвращается, если продукт не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrProductExists возвращается при попытке создать продукт с занятым именем.
	ErrProductExists = errors.New("product already exists")
	// ErrStockProductNotFound возвращается, если складская позиция не найдена.
	ErrStockProductNotFound = errors.New("stock product not found")
	// ErrStockProductExists возвращается при попытке создать складскую позицию с занятым именем.
	ErrStockProductExists = errors.New("stock product already exists")
	// ErrEmployeeExists возвращается при попытке создать сотрудника с уже зарегистрированным CPF.
	ErrEmployeeExists = errors.New("employee already exists")
	// ErrStorageUnavailable возвращается, когда хранилище недоступно после повторных попыток.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Имена ограничений схемы, по которым различаются конфликты уникальности.
const (
	constraintCardCode     = "cards_code_key"
	constraintCustomerOpen = "uq_cards_customer_open"
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry выполняет fn, повторяя его ограниченное число раз при временных
// ошибках хранилища (deadlock, serialization failure, обрыв соединения).
// После исчерпания попыток временная ошибка оборачивается в ErrStorageUnavailable.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if isTransientError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})

	if err != nil && isTransientError(err) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return err
}

func isTransientError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
			return true
		}
		return pgerrcode.IsConnectionException(pgErr.Code)
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == constraint
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
