package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/inventory-audit/internal/model"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

const productColumns = "id, name, quantity, category"

// PoolConfig configures the connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if pool.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pool.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return db, nil
}

// dbtx is satisfied by *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store on database/sql with the lib/pq driver
type PostgresStore struct {
	pgQueries
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		pgQueries: pgQueries{conn: db},
		db:        db,
	}
}

// WithTx runs fn inside a read-committed transaction
func (s *PostgresStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(pgQueries{conn: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type pgQueries struct {
	conn dbtx
}

func (q pgQueries) InsertProduct(ctx context.Context, name string, quantity int, category string) (*model.Product, error) {
	row := q.conn.QueryRowContext(ctx,
		`INSERT INTO products (name, quantity, category) VALUES ($1, $2, $3) RETURNING `+productColumns,
		name, quantity, category,
	)
	return scanProduct(row)
}

func (q pgQueries) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	row := q.conn.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	)
	return scanProduct(row)
}

func (q pgQueries) ProductNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := q.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE name = $1)`,
		name,
	).Scan(&exists)
	return exists, err
}

// UpdateProduct builds the SET clause from whitelisted column identifiers
// only; every value travels as a bind parameter.
func (q pgQueries) UpdateProduct(ctx context.Context, id int64, set []Assignment) (*model.Product, error) {
	query, args, err := buildUpdate(id, set)
	if err != nil {
		return nil, err
	}
	return scanProduct(q.conn.QueryRowContext(ctx, query, args...))
}

func buildUpdate(id int64, set []Assignment) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, errors.New("store: empty assignment list")
	}
	clauses := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+1)
	for _, a := range set {
		if !a.Column.Updatable() {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownColumn, a.Column)
		}
		args = append(args, a.Value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", a.Column, len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d RETURNING %s",
		strings.Join(clauses, ", "), len(args), productColumns)
	return query, args, nil
}

func (q pgQueries) DeleteEmptyProduct(ctx context.Context, id int64) (*model.Product, error) {
	row := q.conn.QueryRowContext(ctx,
		`DELETE FROM products WHERE id = $1 AND quantity = 0 RETURNING `+productColumns,
		id,
	)
	return scanProduct(row)
}

func (q pgQueries) ListProducts(ctx context.Context) ([]model.Product, error) {
	return q.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY id ASC`)
}

func (q pgQueries) ListProductsByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return q.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY id ASC`,
		category,
	)
}

func (q pgQueries) ListProductsByQuantity(ctx context.Context, min, max int) ([]model.Product, error) {
	return q.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE quantity BETWEEN $1 AND $2 ORDER BY id ASC`,
		min, max,
	)
}

// ListProductsPage reads the count and the page in one statement so both
// come from the same snapshot. The LEFT JOIN keeps the count row when the
// offset is past the end.
func (q pgQueries) ListProductsPage(ctx context.Context, limit, offset int) ([]model.Product, int, error) {
	rows, err := q.conn.QueryContext(ctx, `
		WITH total AS (SELECT COUNT(*) AS n FROM products)
		SELECT p.id, p.name, p.quantity, p.category, total.n
		FROM total
		LEFT JOIN LATERAL (
			SELECT `+productColumns+` FROM products ORDER BY id ASC LIMIT $1 OFFSET $2
		) p ON true
		ORDER BY p.id ASC
	`, limit, offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	products := make([]model.Product, 0, limit)
	var total int
	for rows.Next() {
		var (
			id       sql.NullInt64
			name     sql.NullString
			quantity sql.NullInt64
			category sql.NullString
		)
		if err := rows.Scan(&id, &name, &quantity, &category, &total); err != nil {
			return nil, 0, err
		}
		if !id.Valid {
			continue
		}
		products = append(products, model.Product{
			ID:       id.Int64,
			Name:     name.String,
			Quantity: int(quantity.Int64),
			Category: category.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (q pgQueries) InsertEventLog(ctx context.Context, productID int64, action model.Action, details *string) (*model.EventLog, error) {
	var (
		e   model.EventLog
		det sql.NullString
	)
	err := q.conn.QueryRowContext(ctx,
		`INSERT INTO event_logs (product_id, action, details) VALUES ($1, $2, $3)
		 RETURNING id, product_id, action, timestamp, details`,
		productID, string(action), nullString(details),
	).Scan(&e.ID, &e.ProductID, &e.Action, &e.Timestamp, &det)
	if err != nil {
		return nil, mapError(err)
	}
	if det.Valid {
		e.Details = &det.String
	}
	return &e, nil
}

func (q pgQueries) ListEventLogs(ctx context.Context, productID *int64) ([]model.EventLog, error) {
	query := `SELECT id, product_id, action, timestamp, details FROM event_logs`
	var args []any
	if productID != nil {
		query += ` WHERE product_id = $1`
		args = append(args, *productID)
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	rows, err := q.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	logs := make([]model.EventLog, 0)
	for rows.Next() {
		var (
			e   model.EventLog
			det sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Action, &e.Timestamp, &det); err != nil {
			return nil, err
		}
		if det.Valid {
			e.Details = &det.String
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

func (q pgQueries) queryProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := q.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	products := make([]model.Product, 0)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.Category); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row *sql.Row) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Quantity, &p.Category); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

// mapError translates driver errors into the store's sentinels
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicateName, pqErr.Message)
		case pqCheckViolation:
			return fmt.Errorf("%w: %s", ErrCheckViolation, pqErr.Message)
		}
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
