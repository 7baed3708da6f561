package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// PostgresRecordRepository stores every collection in a single JSONB table.
type PostgresRecordRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresRecordRepository creates a new PostgresRecordRepository using the provided *sql.DB.
// db must be a valid connection to a PostgreSQL instance with the records schema applied.
func NewPostgresRecordRepository(db *sql.DB) *PostgresRecordRepository {
	return &PostgresRecordRepository{DB: db}
}

// List fetches the records of a collection whose top-level fields equal the
// filter values, in insertion order.
func (s *PostgresRecordRepository) List(ctx context.Context, collection string, filter map[string]string) ([]models.Record, error) {
	var b strings.Builder
	b.WriteString(`SELECT data FROM records WHERE collection = $1`)
	args := []any{collection}
	for _, k := range sortedKeys(filter) {
		args = append(args, k, models.Canonical(filter[k]))
		fmt.Fprintf(&b, ` AND data->>$%d = $%d`, len(args)-1, len(args))
	}
	b.WriteString(` ORDER BY seq`)

	rows, err := s.DB.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	out := make([]models.Record, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var rec models.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}

// Get retrieves a single record by id.
func (s *PostgresRecordRepository) Get(ctx context.Context, collection string, id models.ID) (models.Record, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx, `
		SELECT data FROM records WHERE collection = $1 AND id = $2
	`, collection, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	var rec models.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", collection, err)
	}
	return rec, nil
}

// Create inserts a record, assigning the next numeric id when it has none.
func (s *PostgresRecordRepository) Create(ctx context.Context, collection string, rec models.Record) (models.Record, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec = rec.Clone()
	id := rec.ID()
	if id.IsZero() {
		var next int64
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(id::bigint), 0) + 1 FROM records
			WHERE collection = $1 AND id ~ '^[0-9]+$'
		`, collection).Scan(&next)
		if err != nil {
			return nil, fmt.Errorf("next id: %w", err)
		}
		id = models.NewID(next)
	}
	rec["id"] = idValue(id)

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (collection, id, data) VALUES ($1, $2, $3)
	`, collection, id.String(), data)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateID, collection, id)
		}
		return nil, fmt.Errorf("insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// Replace overwrites the stored document of a record, keeping its id.
func (s *PostgresRecordRepository) Replace(ctx context.Context, collection string, id models.ID, rec models.Record) (models.Record, error) {
	rec = rec.Clone()
	rec["id"] = idValue(id)

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE records SET data = $3 WHERE collection = $1 AND id = $2
	`, collection, id.String(), data)
	if err != nil {
		return nil, fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Delete removes a record by id.
func (s *PostgresRecordRepository) Delete(ctx context.Context, collection string, id models.ID) error {
	n, err := s.DeleteMany(ctx, collection, []models.ID{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes records by their ids and reports how many were removed.
func (s *PostgresRecordRepository) DeleteMany(ctx context.Context, collection string, ids []models.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}

	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM records WHERE collection = $1 AND id = ANY($2)
	`, collection, pq.Array(keys))
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Reset replaces all stored records with snapshot inside one transaction.
func (s *PostgresRecordRepository) Reset(ctx context.Context, snapshot models.Snapshot) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	for _, collection := range models.Collections {
		records := snapshot[collection]
		for i, rec := range records {
			id := rec.ID()
			if id.IsZero() {
				id = models.NewID(int64(i + 1))
			}
			rec = rec.Clone()
			rec["id"] = idValue(id)
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO records (collection, id, data) VALUES ($1, $2, $3)
			`, collection, id.String(), data); err != nil {
				return fmt.Errorf("seed %s: %w", collection, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
