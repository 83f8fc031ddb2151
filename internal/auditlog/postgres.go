package auditlog

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresRepo implements ItemRepo on PostgreSQL.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRepo connects, applies the schema, and returns the repo.
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &PostgresRepo{pool: pool}, nil
}

// Write implements ItemRepo.
func (r *PostgresRepo) Write(ctx context.Context, item Item) error {
	query := `
		INSERT INTO audit_log_item
			(account, source_store_id, store_id, space_id, content_id, result, checksum, detail, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		item.Account,
		item.SourceStoreID,
		item.StoreID,
		item.SpaceID,
		item.ContentID,
		item.Result,
		item.Checksum,
		item.Detail,
		item.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("write audit log item: %w", err)
	}
	return nil
}

// FindByAccountAndSpace implements ItemRepo.
func (r *PostgresRepo) FindByAccountAndSpace(ctx context.Context, account, spaceID string, page PageRequest) (*Page, error) {
	if page.Size <= 0 {
		page.Size = 50
	}
	if page.Index < 0 {
		page.Index = 0
	}

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_log_item WHERE account = $1 AND space_id = $2`,
		account, spaceID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count audit log items: %w", err)
	}

	query := `
		SELECT id, account, source_store_id, store_id, space_id, content_id, result, checksum, detail, ts
		FROM audit_log_item
		WHERE account = $1 AND space_id = $2
		ORDER BY content_id ASC, id ASC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, account, spaceID, page.Size, page.Index*page.Size)
	if err != nil {
		return nil, fmt.Errorf("query audit log items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Index: page.Index, TotalCount: total}, nil
}

// FindByAccountAndStoreAndSpaceAndContent implements ItemRepo.
func (r *PostgresRepo) FindByAccountAndStoreAndSpaceAndContent(ctx context.Context, account, storeID, spaceID, contentID string) ([]Item, error) {
	query := `
		SELECT id, account, source_store_id, store_id, space_id, content_id, result, checksum, detail, ts
		FROM audit_log_item
		WHERE account = $1 AND store_id = $2 AND space_id = $3 AND content_id = $4
		ORDER BY ts DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, account, storeID, spaceID, contentID)
	if err != nil {
		return nil, fmt.Errorf("query audit log items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// DeleteByAccountAndStoreAndSpace implements ItemRepo.
func (r *PostgresRepo) DeleteByAccountAndStoreAndSpace(ctx context.Context, account, storeID, spaceID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM audit_log_item WHERE account = $1 AND store_id = $2 AND space_id = $3`,
		account, storeID, spaceID)
	if err != nil {
		return fmt.Errorf("delete audit log items: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepo) Close() {
	r.pool.Close()
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanItems(rows rowScanner) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.Account, &it.SourceStoreID, &it.StoreID, &it.SpaceID,
			&it.ContentID, &it.Result, &it.Checksum, &it.Detail, &it.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit log item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log items: %w", err)
	}
	return items, nil
}
