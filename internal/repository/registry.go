package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/cardtab-system/internal/model"
)

// CreateCustomer регистрирует нового посетителя.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, c model.Customer) (*model.Customer, error) {
	err := r.withRetry(ctx, func(ctx context.Context) error {
		err := r.pool.QueryRow(ctx,
			`INSERT INTO customers (name, rg, date_of_birth, age, gender)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			c.Name, c.RG, c.DateOfBirth, c.Age, c.Gender,
		).Scan(&c.ID)
		if err != nil {
			if isAnyUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrCustomerExists, c.RG)
			}
			return fmt.Errorf("create customer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// GetCustomer возвращает посетителя по идентификатору.
func (r *PostgresRepository) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	var c model.Customer

	err := r.withRetry(ctx, func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx,
			`SELECT id, name, rg, date_of_birth, age, gender, visits
			 FROM customers
			 WHERE id = $1`,
			id,
		)

		err := row.Scan(&c.ID, &c.Name, &c.RG, &c.DateOfBirth, &c.Age, &c.Gender, &c.Visits)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCustomerNotFound
			}
			return fmt.Errorf("get customer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// ListCustomers возвращает всех посетителей.
func (r *PostgresRepository) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	var res []model.Customer

	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, name, rg, date_of_birth, age, gender, visits
			 FROM customers
			 ORDER BY id`,
		)
		if err != nil {
			return fmt.Errorf("select customers: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var c model.Customer
			if err := rows.Scan(&c.ID, &c.Name, &c.RG, &c.DateOfBirth, &c.Age, &c.Gender, &c.Visits); err != nil {
				return fmt.Errorf("scan customer: %w", err)
			}
			res = append(res, c)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// IncrementVisits увеличивает счётчик визитов посетителя.
// При открытии карты счётчик увеличивается внутри транзакции CreateCard;
// эта операция нужна внешним вызовам реестра.
func (r *PostgresRepository) IncrementVisits(ctx context.Context, id int64) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		cmdTag, err := r.pool.Exec(ctx,
			`UPDATE customers SET visits = visits + 1 WHERE id = $1`,
			id,
		)
		if err != nil {
			return fmt.Errorf("increment visits: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrCustomerNotFound
		}
		return nil
	})
}

// CreateProduct регистрирует продукт меню вместе со ссылками на складские позиции.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO products (name, price_cents, description)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			p.Name, p.PriceCents, nullableText(p.Description),
		).Scan(&p.ID)
		if err != nil {
			if isAnyUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrProductExists, p.Name)
			}
			return fmt.Errorf("insert product: %w", err)
		}

		for _, stockID := range p.BaseItemIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO product_base_items (product_id, stock_product_id) VALUES ($1, $2)`,
				p.ID, stockID,
			)
			if err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("%w: %d", ErrStockProductNotFound, stockID)
				}
				return fmt.Errorf("insert base item: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// GetProduct возвращает продукт по идентификатору вместе со ссылками на складские позиции.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product

	err := r.withRetry(ctx, func(ctx context.Context) error {
		p = model.Product{}

		row := r.pool.QueryRow(ctx,
			`SELECT id, name, price_cents, COALESCE(description, '')
			 FROM products
			 WHERE id = $1`,
			id,
		)

		if err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Description); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("get product: %w", err)
		}

		rows, err := r.pool.Query(ctx,
			`SELECT stock_product_id FROM product_base_items WHERE product_id = $1 ORDER BY stock_product_id`,
			id,
		)
		if err != nil {
			return fmt.Errorf("select base items: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var stockID int64
			if err := rows.Scan(&stockID); err != nil {
				return fmt.Errorf("scan base item: %w", err)
			}
			p.BaseItemIDs = append(p.BaseItemIDs, stockID)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// ListProducts возвращает все продукты меню.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	var res []model.Product

	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, name, price_cents, COALESCE(description, '')
			 FROM products
			 ORDER BY id`,
		)
		if err != nil {
			return fmt.Errorf("select products: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var p model.Product
			if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Description); err != nil {
				return fmt.Errorf("scan product: %w", err)
			}
			res = append(res, p)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ResolveProduct возвращает снимок продукта для добавления на карту.
func (r *PostgresRepository) ResolveProduct(ctx context.Context, id int64) (*model.ProductSnapshot, error) {
	var snap model.ProductSnapshot

	err := r.withRetry(ctx, func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx,
			`SELECT id, name, price_cents, COALESCE(description, '')
			 FROM products
			 WHERE id = $1`,
			id,
		)

		err := row.Scan(&snap.ProductID, &snap.Name, &snap.PriceCents, &snap.Description)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("resolve product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &snap, nil
}

// CreateStockProduct регистрирует складскую позицию.
func (r *PostgresRepository) CreateStockProduct(ctx context.Context, p model.StockProduct) (*model.StockProduct, error) {
	err := r.withRetry(ctx, func(ctx context.Context) error {
		err := r.pool.QueryRow(ctx,
			`INSERT INTO stock_products (name, price_cents, stock)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			p.Name, p.PriceCents, p.Stock,
		).Scan(&p.ID)
		if err != nil {
			if isAnyUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrStockProductExists, p.Name)
			}
			return fmt.Errorf("create stock product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// ListStockProducts возвращает все складские позиции.
func (r *PostgresRepository) ListStockProducts(ctx context.Context) ([]model.StockProduct, error) {
	var res []model.StockProduct

	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, name, price_cents, stock
			 FROM stock_products
			 ORDER BY id`,
		)
		if err != nil {
			return fmt.Errorf("select stock products: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var p model.StockProduct
			if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock); err != nil {
				return fmt.Errorf("scan stock product: %w", err)
			}
			res = append(res, p)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// CreateEmployee регистрирует сотрудника.
func (r *PostgresRepository) CreateEmployee(ctx context.Context, e model.Employee) (*model.Employee, error) {
	err := r.withRetry(ctx, func(ctx context.Context) error {
		err := r.pool.QueryRow(ctx,
			`INSERT INTO employees (name, cpf, date_of_birth, gender, role, admission_date, age, address)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			e.Name, e.CPF, e.DateOfBirth, e.Gender, e.Role, e.AdmissionDate, e.Age, e.Address,
		).Scan(&e.ID)
		if err != nil {
			if isAnyUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrEmployeeExists, e.CPF)
			}
			return fmt.Errorf("create employee: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// ListEmployees возвращает всех сотрудников.
func (r *PostgresRepository) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	var res []model.Employee

	err := r.withRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, name, cpf, date_of_birth, gender, role, admission_date, age, address
			 FROM employees
			 ORDER BY id`,
		)
		if err != nil {
			return fmt.Errorf("select employees: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var e model.Employee
			err := rows.Scan(&e.ID, &e.Name, &e.CPF, &e.DateOfBirth, &e.Gender, &e.Role, &e.AdmissionDate, &e.Age, &e.Address)
			if err != nil {
				return fmt.Errorf("scan employee: %w", err)
			}
			res = append(res, e)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func isAnyUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
