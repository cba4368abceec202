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
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/preorder-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrOrderNotFound возвращается, если заказ с указанным идентификатором отсутствует.
var ErrOrderNotFound = errors.New("order not found")

// PostgresRepository предоставляет доступ к хранилищу заказов в PostgreSQL.
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

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраим только сериализационные конфликты и дедлоки: два сотрудника,
		// одновременно закрывающие один заказ, — реальный сценарий.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateOrder сохраняет заказ вместе с позициями и возвращает назначенный идентификатор.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (name, address, is_pickup, total_price, slip_ref, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		order.Name, order.Address, order.IsPickup, order.TotalPrice, order.SlipRef,
		string(model.OrderStatusPending),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range order.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, design, size, quantity, price_per_unit)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, it.Design, string(it.Size), it.Quantity, it.PricePerUnit,
		)
		if err != nil {
			return 0, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// ListOrders возвращает все заказы с позициями, новые сначала.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, address, is_pickup, total_price, slip_ref, status, created_at
		 FROM orders
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	index := make(map[int64]int)
	for rows.Next() {
		var o model.Order
		var status string
		if err := rows.Scan(&o.ID, &o.Name, &o.Address, &o.IsPickup, &o.TotalPrice,
			&o.SlipRef, &status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	itemRows, err := r.pool.Query(ctx,
		`SELECT order_id, design, size, quantity, price_per_unit
		 FROM order_items
		 ORDER BY order_id, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID int64
		var it model.OrderItem
		var size string
		if err := itemRows.Scan(&orderID, &it.Design, &size, &it.Quantity, &it.PricePerUnit); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.Size = model.Size(size)
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// GetOrderSlipRef возвращает ссылку на изображение слипа заказа.
func (r *PostgresRepository) GetOrderSlipRef(ctx context.Context, orderID int64) (string, error) {
	var ref string
	err := r.pool.QueryRow(ctx,
		`SELECT slip_ref FROM orders WHERE id = $1`,
		orderID,
	).Scan(&ref)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("select slip ref: %w", err)
	}
	return ref, nil
}

// MarkDelivered переводит заказ из pending в delivered атомарным compare-and-set.
// Повторный вызов для уже доставленного заказа успешен и ничего не меняет.
func (r *PostgresRepository) MarkDelivered(ctx context.Context, orderID int64) error {
	return r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1 AND status = $3`,
			orderID, string(model.OrderStatusDelivered), string(model.OrderStatusPending),
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if cmdTag.RowsAffected() == 1 {
			return nil
		}

		// Ничего не обновилось: либо заказ уже доставлен (идемпотентный успех),
		// либо его не существует.
		var status string
		err = r.pool.QueryRow(ctx,
			`SELECT status FROM orders WHERE id = $1`,
			orderID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("select order status: %w", err)
		}

		return nil
	})
}
