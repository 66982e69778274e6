// Package sqlstore persists the memory store to a relational database. Each
// transaction is written as rows in a single SQL transaction from the memory
// store's commit hook, so a rejected SQL commit leaves both the database and
// the in-memory state untouched.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"afyafamilia/internal/infra/persistence/memory"
	"afyafamilia/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Dialect captures the differences between supported SQL engines.
type Dialect struct {
	Name        string
	PayloadType string
	// Numbered placeholders ($1, $2) instead of question marks.
	Numbered bool
}

// SQLite is the modernc.org/sqlite dialect.
var SQLite = Dialect{Name: "sqlite", PayloadType: "TEXT"}

// Postgres is the pgx dialect.
var Postgres = Dialect{Name: "postgres", PayloadType: "JSONB", Numbered: true}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
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

// Schema returns the DDL statements for the dialect.
func (d Dialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS records (
			category TEXT NOT NULL,
			id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			event_date TEXT NOT NULL,
			type_key TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			payload %s NOT NULL,
			PRIMARY KEY (category, id)
		)`, d.PayloadType),
		`CREATE INDEX IF NOT EXISTS records_subject_date_idx ON records (category, subject_id, event_date)`,
		`CREATE INDEX IF NOT EXISTS records_type_idx ON records (category, type_key)`,
		`CREATE INDEX IF NOT EXISTS records_active_idx ON records (category, active)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			sequence BIGINT NOT NULL,
			record_category TEXT NOT NULL,
			record_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			changed_at TEXT NOT NULL,
			payload %s NOT NULL
		)`, d.PayloadType),
		`CREATE INDEX IF NOT EXISTS audit_entries_record_idx ON audit_entries (record_category, record_id, changed_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS baselines (
			subject_id TEXT PRIMARY KEY,
			payload %s NOT NULL
		)`, d.PayloadType),
	}
}

const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// Store persists state to SQL while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db      *sql.DB
	dialect Dialect
}

// Open applies the schema, loads and migrates any persisted state and
// returns a store whose transactions are committed to db.
func Open(ctx context.Context, db *sql.DB, dialect Dialect, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.applySchema(ctx); err != nil {
		return nil, err
	}
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	migrated, ran := domain.Migrate(snapshot)
	if ran || snapshot.Version == 0 {
		if err := s.rewrite(ctx, migrated); err != nil {
			return nil, err
		}
	}
	opts = append(opts, memory.WithCommitHook(s.commit))
	s.Store = memory.NewStore(engine, opts...)
	if err := s.ImportState(migrated); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the configured dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) applySchema(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// SchemaVersion returns the persisted schema version, 0 when unset.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return readVersion(ctx, s.db, s.dialect)
}

func readVersion(ctx context.Context, db *sql.DB, d Dialect) (int, error) {
	var raw string
	err := db.QueryRowContext(ctx, d.Rebind(`SELECT value FROM schema_meta WHERE key = ?`), "schema_version").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", raw, err)
	}
	return v, nil
}

func (s *Store) load(ctx context.Context) (domain.Snapshot, error) {
	version, err := readVersion(ctx, s.db, s.dialect)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap := domain.Snapshot{Version: version}
	if err := scanPayloads(ctx, s.db, `SELECT payload FROM records ORDER BY category, id`, func(raw []byte) error {
		var rec domain.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		snap.Records = append(snap.Records, rec)
		return nil
	}); err != nil {
		return domain.Snapshot{}, err
	}
	if err := scanPayloads(ctx, s.db, `SELECT payload FROM audit_entries ORDER BY sequence`, func(raw []byte) error {
		var entry domain.AuditEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("decode audit entry: %w", err)
		}
		snap.Audit = append(snap.Audit, entry)
		return nil
	}); err != nil {
		return domain.Snapshot{}, err
	}
	if err := scanPayloads(ctx, s.db, `SELECT payload FROM baselines ORDER BY subject_id`, func(raw []byte) error {
		var b domain.BaselineProfile
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("decode baseline: %w", err)
		}
		snap.Baselines = append(snap.Baselines, b)
		return nil
	}); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Version == 0 && (len(snap.Records) > 0 || len(snap.Audit) > 0 || len(snap.Baselines) > 0) {
		// Rows without a version row predate version tracking.
		snap.Version = 1
	}
	return snap, nil
}

func scanPayloads(ctx context.Context, db *sql.DB, query string, fn func([]byte) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := fn(payload); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rewrite stores a full snapshot, used after migrations and on first open.
func (s *Store) rewrite(ctx context.Context, snap domain.Snapshot) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, rec := range snap.Records {
		if err := s.upsertRecord(ctx, tx, rec); err != nil {
			return err
		}
	}
	for _, b := range snap.Baselines {
		if err := s.upsertBaseline(ctx, tx, b.Normalize()); err != nil {
			return err
		}
	}
	if err := s.writeVersion(ctx, tx, snap.Version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func (s *Store) writeVersion(ctx context.Context, ex execer, version int) error {
	_, err := ex.ExecContext(ctx, s.dialect.Rebind(`INSERT INTO schema_meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`), "schema_version", strconv.Itoa(version))
	if err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// commit writes the changes of one memory transaction atomically.
func (s *Store) commit(ctx context.Context, changes []domain.Change) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError{Op: "begin", Err: err}
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, change := range changes {
		if err := s.apply(ctx, tx, change); err != nil {
			return domain.StorageError{Op: string(change.Action) + " " + string(change.Category), Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.StorageError{Op: "commit", Err: err}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, ex execer, change domain.Change) error {
	switch after := change.After.(type) {
	case domain.Record:
		return s.upsertRecord(ctx, ex, after)
	case domain.AuditEntry:
		return s.insertAudit(ctx, ex, after)
	case domain.BaselineProfile:
		return s.upsertBaseline(ctx, ex, after)
	}
	return fmt.Errorf("unsupported change value %T", change.After)
}

func (s *Store) upsertRecord(ctx context.Context, ex execer, rec domain.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	active := 0
	if rec.Active() {
		active = 1
	}
	_, err = ex.ExecContext(ctx, s.dialect.Rebind(`INSERT INTO records(category, id, subject_id, event_date, type_key, active, payload)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, id) DO UPDATE SET
			subject_id = excluded.subject_id,
			event_date = excluded.event_date,
			type_key = excluded.type_key,
			active = excluded.active,
			payload = excluded.payload`),
		string(rec.Category), rec.ID, rec.SubjectID, formatTime(rec.Date), rec.TypeKey(), active, string(payload))
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// insertAudit uses a plain INSERT; audit rows are never updated.
func (s *Store) insertAudit(ctx context.Context, ex execer, entry domain.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	_, err = ex.ExecContext(ctx, s.dialect.Rebind(`INSERT INTO audit_entries(id, sequence, record_category, record_id, subject_id, changed_at, payload)
		VALUES(?, ?, ?, ?, ?, ?, ?)`),
		entry.ID, entry.Sequence, string(entry.RecordCategory), entry.RecordID, entry.SubjectID, formatTime(entry.ChangedAt), string(payload))
	if err != nil {
		return fmt.Errorf("insert audit entry %s: %w", entry.ID, err)
	}
	return nil
}

func (s *Store) upsertBaseline(ctx context.Context, ex execer, b domain.BaselineProfile) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	_, err = ex.ExecContext(ctx, s.dialect.Rebind(`INSERT INTO baselines(subject_id, payload) VALUES(?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET payload = excluded.payload`), b.SubjectID, string(payload))
	if err != nil {
		return fmt.Errorf("upsert baseline %s: %w", b.SubjectID, err)
	}
	return nil
}
