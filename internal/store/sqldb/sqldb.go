// Package sqldb implements store.Store on database/sql for SQLite and Postgres.
//
// Timestamps are stored as RFC 3339 text with nanoseconds so that version
// stamps round-trip exactly; payloads are stored as JSON text.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/fieldops/fieldsync/database"
	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/store"
)

const pgUniqueViolation = "23505"

// Store implements store.Store
type Store struct {
	db      *sql.DB
	dialect database.Dialect
}

var _ store.Store = (*Store)(nil)

// New wraps an already migrated database
func New(db *sql.DB, dialect database.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close implements store.Store
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres
func (s *Store) rebind(query string) string {
	if s.dialect != database.DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// Enqueue implements store.Queue
func (s *Store) Enqueue(ctx context.Context, change *domain.PendingChange) (int64, error) {
	if change == nil {
		return 0, fmt.Errorf("change is required")
	}

	var id int64
	err := s.queryRow(ctx, `
		INSERT INTO pending_changes
			(client_change_id, tenant_id, entity, entity_id, action, payload, base_updated_at, created_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING local_id`,
		change.ClientChangeID,
		change.TenantID,
		change.Entity,
		change.EntityID,
		string(change.Action),
		nullJSON(change.Payload),
		nullTime(change.BaseUpdatedAt),
		formatTime(change.CreatedAt),
		change.Synced,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", store.ErrDuplicateChange, change.ClientChangeID)
		}
		return 0, fmt.Errorf("failed to enqueue change %s: %w", change.ClientChangeID, err)
	}
	change.LocalID = id
	return id, nil
}

// ListPending implements store.Queue
func (s *Store) ListPending(ctx context.Context, tenantID string) ([]domain.PendingChange, error) {
	rows, err := s.query(ctx, `
		SELECT local_id, client_change_id, tenant_id, entity, entity_id, action,
		       payload, base_updated_at, created_at, synced
		FROM pending_changes
		WHERE tenant_id = ? AND synced = ?
		ORDER BY local_id`, tenantID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending changes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]domain.PendingChange, 0)
	for rows.Next() {
		var (
			c         domain.PendingChange
			action    string
			payload   sql.NullString
			baseAt    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&c.LocalID, &c.ClientChangeID, &c.TenantID, &c.Entity, &c.EntityID,
			&action, &payload, &baseAt, &createdAt, &c.Synced); err != nil {
			return nil, fmt.Errorf("failed to scan pending change: %w", err)
		}
		c.Action = domain.Action(action)
		c.Payload = jsonFrom(payload)
		if c.BaseUpdatedAt, err = parseNullTime(baseAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending changes: %w", err)
	}
	return result, nil
}

// MarkConsumed implements store.Queue
func (s *Store) MarkConsumed(ctx context.Context, localID int64) error {
	res, err := s.exec(ctx, `UPDATE pending_changes SET synced = ? WHERE local_id = ?`, true, localID)
	if err != nil {
		return fmt.Errorf("failed to mark change %d consumed: %w", localID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pending change %d: %w", localID, store.ErrNotFound)
	}
	return nil
}

// RemapEntityID implements store.Queue
func (s *Store) RemapEntityID(ctx context.Context, tenantID, entity, oldID, newID string) error {
	_, err := s.exec(ctx, `
		UPDATE pending_changes SET entity_id = ?
		WHERE tenant_id = ? AND entity = ? AND entity_id = ? AND synced = ?`,
		newID, tenantID, entity, oldID, false)
	if err != nil {
		return fmt.Errorf("failed to remap %s/%s to %s: %w", entity, oldID, newID, err)
	}
	return nil
}

// GetRecord implements store.Records
func (s *Store) GetRecord(ctx context.Context, tenantID, entity, id string) (*domain.Record, error) {
	row := s.queryRow(ctx, `
		SELECT id, tenant_id, entity, payload, updated_at, base_updated_at, synced, deleted
		FROM local_records
		WHERE tenant_id = ? AND entity = ? AND id = ?`, tenantID, entity, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s/%s: %w", entity, id, err)
	}
	return rec, nil
}

// PutRecord implements store.Records
func (s *Store) PutRecord(ctx context.Context, record *domain.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record with an id is required")
	}

	_, err := s.exec(ctx, `
		INSERT INTO local_records (tenant_id, entity, id, payload, updated_at, base_updated_at, synced, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, entity, id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at,
			base_updated_at = excluded.base_updated_at,
			synced = excluded.synced,
			deleted = excluded.deleted`,
		record.TenantID,
		record.Entity,
		record.ID,
		nullJSON(record.Payload),
		formatTime(record.UpdatedAt),
		nullTime(record.BaseUpdatedAt),
		record.Synced,
		record.Deleted,
	)
	if err != nil {
		return fmt.Errorf("failed to store record %s/%s: %w", record.Entity, record.ID, err)
	}
	return nil
}

// DeleteRecord implements store.Records
func (s *Store) DeleteRecord(ctx context.Context, tenantID, entity, id string) error {
	_, err := s.exec(ctx, `DELETE FROM local_records WHERE tenant_id = ? AND entity = ? AND id = ?`,
		tenantID, entity, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", entity, id, err)
	}
	return nil
}

// ListRecords implements store.Records
func (s *Store) ListRecords(ctx context.Context, tenantID, entity string) ([]domain.Record, error) {
	rows, err := s.query(ctx, `
		SELECT id, tenant_id, entity, payload, updated_at, base_updated_at, synced, deleted
		FROM local_records
		WHERE tenant_id = ? AND entity = ?
		ORDER BY id`, tenantID, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]domain.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return result, nil
}

// AppendConflict implements store.ConflictLog
func (s *Store) AppendConflict(ctx context.Context, entry *domain.ConflictLogEntry) error {
	if entry == nil {
		return fmt.Errorf("conflict entry is required")
	}

	versions := make([]any, 0, 3)
	for _, rec := range []*domain.Record{entry.ClientVersion, entry.ServerVersion, entry.ResolvedVersion} {
		v, err := marshalNullable(rec)
		if err != nil {
			return fmt.Errorf("failed to encode conflict version: %w", err)
		}
		versions = append(versions, v)
	}

	err := s.queryRow(ctx, `
		INSERT INTO conflict_log
			(tenant_id, entity_type, entity_id, client_version, server_version, resolved_version, winner, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		entry.TenantID,
		entry.EntityType,
		entry.EntityID,
		versions[0],
		versions[1],
		versions[2],
		string(entry.Winner),
		formatTime(entry.ResolvedAt),
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append conflict for %s/%s: %w", entry.EntityType, entry.EntityID, err)
	}
	return nil
}

// ListConflicts implements store.ConflictLog
func (s *Store) ListConflicts(ctx context.Context, tenantID string, limit int) ([]domain.ConflictLogEntry, error) {
	q := `
		SELECT id, tenant_id, entity_type, entity_id, client_version, server_version, resolved_version, winner, resolved_at
		FROM conflict_log
		WHERE tenant_id = ?
		ORDER BY id DESC`
	args := []any{tenantID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]domain.ConflictLogEntry, 0)
	for rows.Next() {
		var (
			e                           domain.ConflictLogEntry
			clientV, serverV, resolvedV sql.NullString
			winner, resolvedAt          string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EntityType, &e.EntityID,
			&clientV, &serverV, &resolvedV, &winner, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		e.Winner = domain.Side(winner)
		if e.ResolvedAt, err = parseTime(resolvedAt); err != nil {
			return nil, err
		}
		for _, pair := range []struct {
			src sql.NullString
			dst **domain.Record
		}{{clientV, &e.ClientVersion}, {serverV, &e.ServerVersion}, {resolvedV, &e.ResolvedVersion}} {
			if !pair.src.Valid {
				continue
			}
			var rec domain.Record
			if err := json.Unmarshal([]byte(pair.src.String), &rec); err != nil {
				return nil, fmt.Errorf("failed to decode conflict version: %w", err)
			}
			*pair.dst = &rec
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conflicts: %w", err)
	}
	return result, nil
}

// ParkFailed implements store.FailedChanges
func (s *Store) ParkFailed(ctx context.Context, failed *domain.FailedChange) error {
	if failed == nil {
		return fmt.Errorf("failed change is required")
	}

	change, err := json.Marshal(failed.Change)
	if err != nil {
		return fmt.Errorf("failed to encode failed change: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO failed_changes (tenant_id, change, reason, failed_at)
		VALUES (?, ?, ?, ?)`,
		failed.Change.TenantID, string(change), failed.Reason, formatTime(failed.FailedAt))
	if err != nil {
		return fmt.Errorf("failed to park change %s: %w", failed.Change.ClientChangeID, err)
	}
	return nil
}

// ListFailed implements store.FailedChanges
func (s *Store) ListFailed(ctx context.Context, tenantID string) ([]domain.FailedChange, error) {
	rows, err := s.query(ctx, `
		SELECT change, reason, failed_at FROM failed_changes
		WHERE tenant_id = ?
		ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed changes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]domain.FailedChange, 0)
	for rows.Next() {
		var (
			f                domain.FailedChange
			change, failedAt string
		)
		if err := rows.Scan(&change, &f.Reason, &failedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failed change: %w", err)
		}
		if err := json.Unmarshal([]byte(change), &f.Change); err != nil {
			return nil, fmt.Errorf("failed to decode failed change: %w", err)
		}
		if f.FailedAt, err = parseTime(failedAt); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate failed changes: %w", err)
	}
	return result, nil
}

// GetCursor implements store.Cursors
func (s *Store) GetCursor(ctx context.Context, tenantID, entity string) (domain.Cursor, error) {
	var watermark string
	err := s.queryRow(ctx, `SELECT watermark FROM sync_cursors WHERE tenant_id = ? AND entity = ?`,
		tenantID, entity).Scan(&watermark)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load cursor for %s: %w", entity, err)
	}
	return domain.Cursor(watermark), nil
}

// SaveCursor implements store.Cursors
func (s *Store) SaveCursor(ctx context.Context, tenantID, entity string, cursor domain.Cursor) error {
	_, err := s.exec(ctx, `
		INSERT INTO sync_cursors (tenant_id, entity, watermark, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, entity) DO UPDATE SET
			watermark = excluded.watermark,
			updated_at = excluded.updated_at`,
		tenantID, entity, cursor.String(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save cursor for %s: %w", entity, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.Record, error) {
	var (
		rec       domain.Record
		payload   sql.NullString
		updatedAt string
		baseAt    sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.Entity, &payload, &updatedAt, &baseAt,
		&rec.Synced, &rec.Deleted); err != nil {
		return nil, err
	}
	rec.Payload = jsonFrom(payload)
	var err error
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if rec.BaseUpdatedAt, err = parseNullTime(baseAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", value, err)
	}
	return t, nil
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func jsonFrom(value sql.NullString) json.RawMessage {
	if !value.Valid {
		return nil
	}
	return json.RawMessage(value.String)
}

func marshalNullable(rec *domain.Record) (sql.NullString, error) {
	if rec == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// isUniqueViolation recognises unique constraint failures from both drivers
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
