package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one JSONB table per collection. Unique keys are
// expression indexes created by the migrations, so duplicate inserts fail
// at the storage boundary regardless of application-level pre-checks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MinConns = 1
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Collection(name string) Collection {
	return &pgCollection{pool: p.pool, table: name}
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStore) Pool() *pgxpool.Pool { return p.pool }

type pgCollection struct {
	pool  *pgxpool.Pool
	table string
}

const queryTimeout = 3 * time.Second

func (c *pgCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	where, args := buildWhere(filter)
	q := fmt.Sprintf(`SELECT doc FROM %s%s ORDER BY id LIMIT 1`, c.table, where)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var raw []byte
	if err := c.pool.QueryRow(ctx, q, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoDocuments
		}
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *pgCollection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	where, args := buildWhere(filter)
	q := fmt.Sprintf(`SELECT doc FROM %s%s ORDER BY id`, c.table, where)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (c *pgCollection) InsertOne(ctx context.Context, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`INSERT INTO %s (doc) VALUES ($1::jsonb)`, c.table)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := c.pool.Exec(ctx, q, raw); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (c *pgCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (bool, error) {
	where, args := buildWhere(filter)

	// The whole read-modify-write runs as one UPDATE so counter increments
	// stay atomic under concurrent use.
	expr := "doc"
	if len(update.Set) > 0 {
		raw, err := json.Marshal(update.Set)
		if err != nil {
			return false, err
		}
		args = append(args, raw)
		expr = fmt.Sprintf("%s || $%d::jsonb", expr, len(args))
	}
	for field, delta := range update.Inc {
		expr = fmt.Sprintf(
			`jsonb_set(%s, '{%s}', to_jsonb(COALESCE((doc->>'%s')::bigint, 0) + %d))`,
			expr, field, field, delta,
		)
	}

	q := fmt.Sprintf(
		`UPDATE %s SET doc = %s WHERE id = (SELECT id FROM %s%s ORDER BY id LIMIT 1)`,
		c.table, expr, c.table, where,
	)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := c.pool.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (c *pgCollection) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	where, args := buildWhere(filter)
	q := fmt.Sprintf(`DELETE FROM %s%s`, c.table, where)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := c.pool.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgCollection) CountDocuments(ctx context.Context, filter Filter) (int64, error) {
	where, args := buildWhere(filter)
	q := fmt.Sprintf(`SELECT count(*) FROM %s%s`, c.table, where)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int64
	if err := c.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// buildWhere translates a Filter into a WHERE clause over the jsonb doc.
// Field names come from internal constants, never from request input.
func buildWhere(filter Filter) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}

	var conds []string
	var args []any
	for key, value := range filter {
		switch v := value.(type) {
		case gtBound:
			conds = append(conds, boundCond(key, v.v, ">", &args))
		case ltBound:
			conds = append(conds, boundCond(key, v.v, "<", &args))
		case nil:
			conds = append(conds, fmt.Sprintf(`doc->>'%s' IS NULL`, key))
		case bool:
			args = append(args, v)
			conds = append(conds, fmt.Sprintf(`(doc->>'%s')::boolean = $%d`, key, len(args)))
		case int, int64, float64:
			args = append(args, v)
			conds = append(conds, fmt.Sprintf(`(doc->>'%s')::numeric = $%d`, key, len(args)))
		case time.Time:
			args = append(args, v)
			conds = append(conds, fmt.Sprintf(`(doc->>'%s')::timestamptz = $%d`, key, len(args)))
		default:
			args = append(args, v)
			conds = append(conds, fmt.Sprintf(`doc->>'%s' = $%d`, key, len(args)))
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func boundCond(key string, v any, op string, args *[]any) string {
	switch tv := v.(type) {
	case time.Time:
		*args = append(*args, tv)
		return fmt.Sprintf(`(doc->>'%s')::timestamptz %s $%d`, key, op, len(*args))
	case int, int64, float64:
		*args = append(*args, tv)
		return fmt.Sprintf(`(doc->>'%s')::numeric %s $%d`, key, op, len(*args))
	default:
		*args = append(*args, tv)
		return fmt.Sprintf(`doc->>'%s' %s $%d`, key, op, len(*args))
	}
}
