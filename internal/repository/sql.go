package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"stolik/internal/domain"
)

// SQLStore хранилище поверх MySQL. Схема — в migrations/schema.sql.
// Транзакция кладётся в контекст; все методы работают либо через неё, либо
// напрямую через пул соединений.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

type sqlTxKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return ok
}

var _ ItemRepository = (*SQLStore)(nil)
var _ TxManager = (*SQLStore)(nil)

// WithTransaction настоящая SQL-транзакция: COMMIT при nil из fn, иначе ROLLBACK
func (s *SQLStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		return markConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return markConflict(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// markConflict переводит конкурентные ошибки MySQL в ErrConflict —
// транзиентную ошибку, заявку можно повторить целиком. Сюда попадает и
// проигравший гонки за уникальный ключ (два первых upsert одного имени,
// два первых заказа одной пары customer+seat).
func markConflict(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1213, 1205, 1062: // ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT, ER_DUP_ENTRY
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}

func (s *SQLStore) Create(ctx context.Context, it *domain.Item) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	q := s.q(ctx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO items (id, name, name_key, category) VALUES (?, ?, ?, ?)`,
		it.ID, it.Name, domain.NameKey(it.Name), string(it.Category),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return s.insertVariants(ctx, q, it)
}

func (s *SQLStore) insertVariants(ctx context.Context, q querier, it *domain.Item) error {
	for pos, v := range it.Variants {
		_, err := q.ExecContext(ctx, `
			INSERT INTO item_variants (item_id, position, size, price, stock)
			VALUES (?, ?, ?, ?, ?)`,
			it.ID, pos, v.Size, v.Price, v.Stock,
		)
		if err != nil {
			return fmt.Errorf("insert variant: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	return s.getItem(ctx, `WHERE id = ?`, id)
}

func (s *SQLStore) GetByName(ctx context.Context, name string) (*domain.Item, error) {
	return s.getItem(ctx, `WHERE name_key = ?`, domain.NameKey(name))
}

func (s *SQLStore) getItem(ctx context.Context, where string, arg any) (*domain.Item, error) {
	q := s.q(ctx)
	query := `SELECT id, name, category FROM items ` + where
	if inTx(ctx) {
		// внутри транзакции берём строковую блокировку — это и есть
		// per-item lock размещения заказа
		query += ` FOR UPDATE`
	}
	var it domain.Item
	err := q.QueryRowContext(ctx, query, arg).Scan(&it.ID, &it.Name, &it.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	vq := `SELECT size, price, stock FROM item_variants WHERE item_id = ? ORDER BY position`
	if inTx(ctx) {
		vq += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, vq, it.ID)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.Size, &v.Price, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		it.Variants = append(it.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return &it, nil
}

// Update перезаписывает позицию целиком вместе с вариантами
func (s *SQLStore) Update(ctx context.Context, it *domain.Item) error {
	q := s.q(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE items SET name = ?, name_key = ?, category = ? WHERE id = ?`,
		it.Name, domain.NameKey(it.Name), string(it.Category), it.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// RowsAffected == 0 и при неизменённой строке; убеждаемся, что она есть
		var exists int
		if err := q.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, it.ID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("check item: %w", err)
		}
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM item_variants WHERE item_id = ?`, it.ID); err != nil {
		return fmt.Errorf("clear variants: %w", err)
	}
	return s.insertVariants(ctx, q, it)
}

func (s *SQLStore) List(ctx context.Context, f ItemFilter) ([]domain.Item, error) {
	q := s.q(ctx)
	query := `SELECT id, name, category FROM items WHERE 1=1`
	args := []any{}
	if f.NameSubstring != "" {
		query += ` AND name_key LIKE ?`
		args = append(args, "%"+domain.NameKey(f.NameSubstring)+"%")
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	query += ` ORDER BY name`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Item, 0)
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Category); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	for i := range out {
		if err := s.loadVariants(ctx, q, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLStore) loadVariants(ctx context.Context, q querier, it *domain.Item) error {
	rows, err := q.QueryContext(ctx, `
		SELECT size, price, stock FROM item_variants WHERE item_id = ? ORDER BY position`, it.ID)
	if err != nil {
		return fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.Size, &v.Price, &v.Stock); err != nil {
			return fmt.Errorf("scan variant: %w", err)
		}
		it.Variants = append(it.Variants, v)
	}
	return rows.Err()
}

// OrderRepository implementation on wrapper type
type SQLOrders struct{ store *SQLStore }

func NewSQLOrders(store *SQLStore) *SQLOrders { return &SQLOrders{store: store} }

var _ OrderRepository = (*SQLOrders)(nil)

func (so *SQLOrders) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = time.Now().UTC()
	q := so.store.q(ctx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, customer_name, seat_number, created_at)
		VALUES (?, ?, ?, ?)`,
		o.ID, o.CustomerName, o.SeatNumber, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return so.insertLines(ctx, q, o)
}

func (so *SQLOrders) insertLines(ctx context.Context, q querier, o *domain.Order) error {
	for pos, l := range o.Lines {
		_, err := q.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, position, item_id, name, size, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, pos, l.ItemID, l.Name, l.Size, l.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

func (so *SQLOrders) FindOpen(ctx context.Context, customerName, seatNumber string) (*domain.Order, error) {
	q := so.store.q(ctx)
	query := `
		SELECT id, customer_name, seat_number, created_at
		FROM orders WHERE customer_name = ? AND seat_number = ?`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}
	var o domain.Order
	err := q.QueryRowContext(ctx, query, customerName, seatNumber).
		Scan(&o.ID, &o.CustomerName, &o.SeatNumber, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if err := so.loadLines(ctx, q, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (so *SQLOrders) loadLines(ctx context.Context, q querier, o *domain.Order) error {
	rows, err := q.QueryContext(ctx, `
		SELECT item_id, name, size, quantity FROM order_lines
		WHERE order_id = ? ORDER BY position`, o.ID)
	if err != nil {
		return fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ItemID, &l.Name, &l.Size, &l.Quantity); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	return rows.Err()
}

func (so *SQLOrders) Update(ctx context.Context, o *domain.Order) error {
	q := so.store.q(ctx)
	var exists int
	if err := q.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, o.ID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("check order: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = ?`, o.ID); err != nil {
		return fmt.Errorf("clear order lines: %w", err)
	}
	return so.insertLines(ctx, q, o)
}

func (so *SQLOrders) List(ctx context.Context) ([]domain.Order, error) {
	q := so.store.q(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT id, customer_name, seat_number, created_at
		FROM orders ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.SeatNumber, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	for i := range out {
		if err := so.loadLines(ctx, q, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (so *SQLOrders) DeleteBySeat(ctx context.Context, seatNumber string) (int, error) {
	q := so.store.q(ctx)
	if _, err := q.ExecContext(ctx, `
		DELETE l FROM order_lines l
		JOIN orders o ON o.id = l.order_id
		WHERE o.seat_number = ?`, seatNumber); err != nil {
		return 0, fmt.Errorf("delete order lines: %w", err)
	}
	res, err := q.ExecContext(ctx, `DELETE FROM orders WHERE seat_number = ?`, seatNumber)
	if err != nil {
		return 0, fmt.Errorf("delete orders: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
