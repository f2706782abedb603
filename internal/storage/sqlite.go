package storage

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// SQLiteOption configures a SQLite storage.
type SQLiteOption func(*SQLite)

// WithEvictionHandler registers the callback notified when entries are evicted.
func WithEvictionHandler(h EvictionHandler) SQLiteOption {
	return func(s *SQLite) {
		s.onEvict = h
	}
}

// SQLite is a Storage backed by a single SQLite database file.
type SQLite struct {
	db      *sql.DB
	cfg     config.StorageConfig
	enc     cbor.EncMode
	dec     cbor.DecMode
	onEvict EvictionHandler
	logger  logger.ILogger

	// mu serializes the capacity check with the insert that depends on it.
	mu sync.Mutex
}

var _ Storage = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at cfg.Path. Leases are
// left untouched so other processes may open the same file; the owner calls
// RecoverLeases once it knows no batch is in flight.
func OpenSQLite(cfg config.StorageConfig, log logger.ILogger, opts ...SQLiteOption) (*SQLite, error) {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("storage: cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("storage: cbor decoder: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	// One connection: SQLite allows a single writer and the channel loops
	// already serialize their own calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`, `PRAGMA synchronous=NORMAL`} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	s := &SQLite{
		db:     db,
		cfg:    cfg,
		enc:    enc,
		dec:    dec,
		logger: log.SubLogger("SQLiteStorage"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	s.logger.Debugf("storage opened: path=%s, max_events=%d", cfg.Path, cfg.MaxEvents)
	return s, nil
}

// migrate creates tables on first run.
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id   TEXT    NOT NULL,
			priority   INTEGER NOT NULL,
			batch_id   TEXT,
			payload    BLOB    NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_group ON events(group_id, batch_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_batch ON events(batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_priority ON events(priority, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// ioError tags err as ErrStorageIO while keeping the cause inspectable.
func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageIO, err)
}

// Persist stores one entry, evicting lower priority entries first if the store is full.
func (s *SQLite) Persist(ctx context.Context, group string, priority model.Priority, entry *model.LogEntry) (int64, error) {
	payload, err := s.enc.Marshal(entry)
	if err != nil {
		return 0, ioError("encoding entry", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, ioError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	evicted, err := s.makeRoom(ctx, tx, priority)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (group_id, priority, payload, created_at) VALUES (?, ?, ?, ?)`,
		group, int(priority), payload, time.Now().UnixNano())
	if err != nil {
		return 0, ioError("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, ioError("insert id", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, ioError("commit", err)
	}

	entry.ID = id
	s.notifyEvicted(evicted)
	return id, nil
}

// makeRoom deletes the oldest unbatched entries of strictly lower priority
// until one more entry fits. It returns the evicted count per group.
func (s *SQLite) makeRoom(ctx context.Context, tx *sql.Tx, priority model.Priority) (map[string]int, error) {
	if s.cfg.MaxEvents <= 0 {
		return nil, nil
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return nil, ioError("count", err)
	}
	need := total - s.cfg.MaxEvents + 1
	if need <= 0 {
		return nil, nil
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, group_id FROM events
		 WHERE priority < ? AND batch_id IS NULL
		 ORDER BY priority ASC, id ASC LIMIT ?`,
		int(priority), need)
	if err != nil {
		return nil, ioError("select eviction candidates", err)
	}
	var ids []int64
	evicted := make(map[string]int)
	for rows.Next() {
		var id int64
		var group string
		if err := rows.Scan(&id, &group); err != nil {
			rows.Close()
			return nil, ioError("scan eviction candidate", err)
		}
		ids = append(ids, id)
		evicted[group]++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, ioError("select eviction candidates", err)
	}

	if len(ids) < need {
		return nil, fmt.Errorf("%w: %d events stored, limit %d", ErrStorageFull, total, s.cfg.MaxEvents)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
			return nil, ioError("evict", err)
		}
	}
	return evicted, nil
}

func (s *SQLite) notifyEvicted(evicted map[string]int) {
	for group, n := range evicted {
		s.logger.Warningf("evicted events to make room: channel=%s, events=%d", group, n)
		if s.onEvict != nil {
			s.onEvict(group, n)
		}
	}
}

// FetchNextBatch leases the oldest unbatched entries of the group under a new batch id.
func (s *SQLite) FetchNextBatch(ctx context.Context, group string, limit int) (*model.Batch, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("fetch batch: limit must be positive, got %d", limit)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ioError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	batchID := uuid.NewString()
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET batch_id = ?
		 WHERE id IN (SELECT id FROM events WHERE group_id = ? AND batch_id IS NULL ORDER BY id LIMIT ?)`,
		batchID, group, limit)
	if err != nil {
		return nil, ioError("lease batch", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, payload FROM events WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, ioError("read batch", err)
	}
	batch := &model.Batch{ID: batchID, GroupID: group}
	var corrupt []int64
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			rows.Close()
			return nil, ioError("scan batch", err)
		}
		entry := &model.LogEntry{}
		if err := s.dec.Unmarshal(payload, entry); err != nil {
			s.logger.Errorf("dropping undecodable event: channel=%s, id=%d, error=%v", group, id, err)
			corrupt = append(corrupt, id)
			continue
		}
		entry.ID = id
		batch.Entries = append(batch.Entries, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, ioError("read batch", err)
	}

	for _, id := range corrupt {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
			return nil, ioError("drop undecodable event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, ioError("commit", err)
	}

	if len(corrupt) > 0 {
		s.notifyEvicted(map[string]int{group: len(corrupt)})
	}
	if batch.Len() == 0 {
		return nil, nil
	}
	return batch, nil
}

// DeleteBatch removes the entries leased under batchID.
func (s *SQLite) DeleteBatch(ctx context.Context, batchID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE batch_id = ?`, batchID); err != nil {
		return ioError("delete batch", err)
	}
	return nil
}

// ReleaseBatch makes the entries leased under batchID eligible for a new batch.
func (s *SQLite) ReleaseBatch(ctx context.Context, batchID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE events SET batch_id = NULL WHERE batch_id = ?`, batchID); err != nil {
		return ioError("release batch", err)
	}
	return nil
}

// DeleteGroup removes every entry of the group.
func (s *SQLite) DeleteGroup(ctx context.Context, group string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE group_id = ?`, group)
	if err != nil {
		return 0, ioError("delete group", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ioError("delete group", err)
	}
	return int(n), nil
}

// RecoverLeases releases every batch lease, making the entries of batches
// interrupted by a crash eligible again. Only the process shipping from the
// database may call it, before its channels start.
func (s *SQLite) RecoverLeases(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET batch_id = NULL WHERE batch_id IS NOT NULL`)
	if err != nil {
		return 0, ioError("recover leases", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ioError("recover leases", err)
	}
	if n > 0 {
		s.logger.Infof("released events of interrupted batches: events=%d", n)
	}
	return int(n), nil
}

// Leased returns the number of entries of the group currently leased to a batch.
func (s *SQLite) Leased(ctx context.Context, group string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE group_id = ? AND batch_id IS NOT NULL`, group).Scan(&n); err != nil {
		return 0, ioError("leased", err)
	}
	return n, nil
}

// Count returns the number of stored entries of the group.
func (s *SQLite) Count(ctx context.Context, group string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE group_id = ?`, group).Scan(&n); err != nil {
		return 0, ioError("count", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
