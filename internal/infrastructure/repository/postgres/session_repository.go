package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// SessionRepository persists batch sessions. Files, documents, and groups
// are stored as JSONB documents: they are always read and written as one
// consistent unit, never queried row by row.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS batch_sessions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	sort_method TEXT NOT NULL,
	status TEXT NOT NULL,
	progress_current INTEGER NOT NULL DEFAULT 0,
	progress_total INTEGER NOT NULL DEFAULT 0,
	skipped_files INTEGER NOT NULL DEFAULT 0,
	files JSONB NOT NULL DEFAULT '[]'::jsonb,
	documents JSONB NOT NULL DEFAULT '[]'::jsonb,
	groups JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batch_sessions_status ON batch_sessions(status);
CREATE INDEX IF NOT EXISTS idx_batch_sessions_created_at ON batch_sessions(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.BatchSession) error {
	filesJSON, documentsJSON, groupsJSON, err := marshalSessionParts(session)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO batch_sessions (
	id, name, sort_method, status, progress_current, progress_total, skipped_files, files, documents, groups, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		session.ID, session.Name, string(session.SortMethod), string(session.Status),
		session.Progress.Current, session.Progress.Total, session.SkippedFiles,
		filesJSON, documentsJSON, groupsJSON, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.BatchSession, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, sort_method, status, progress_current, progress_total, skipped_files, files, documents, groups, created_at, updated_at
FROM batch_sessions
WHERE id = $1
`, id)

	var session domain.BatchSession
	var sortMethod, status string
	var filesRaw, documentsRaw, groupsRaw []byte

	err := row.Scan(
		&session.ID, &session.Name, &sortMethod, &status,
		&session.Progress.Current, &session.Progress.Total, &session.SkippedFiles,
		&filesRaw, &documentsRaw, &groupsRaw, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	session.SortMethod = domain.SortMethod(sortMethod)
	session.Status = domain.SessionStatus(status)
	if err := json.Unmarshal(filesRaw, &session.Files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}
	if err := json.Unmarshal(documentsRaw, &session.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if err := json.Unmarshal(groupsRaw, &session.Groups); err != nil {
		return nil, fmt.Errorf("unmarshal groups: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) Save(ctx context.Context, session *domain.BatchSession) error {
	filesJSON, documentsJSON, groupsJSON, err := marshalSessionParts(session)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE batch_sessions
SET name = $2, sort_method = $3, status = $4, progress_current = $5, progress_total = $6,
	skipped_files = $7, files = $8, documents = $9, groups = $10, updated_at = $11
WHERE id = $1
`,
		session.ID, session.Name, string(session.SortMethod), string(session.Status),
		session.Progress.Current, session.Progress.Total, session.SkippedFiles,
		filesJSON, documentsJSON, groupsJSON, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res, "save session", session.ID)
}

func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, progress domain.Progress) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE batch_sessions
SET status = $2, progress_current = $3, progress_total = $4, updated_at = $5
WHERE id = $1
`, id, string(status), progress.Current, progress.Total, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRow(res, "update session status", id)
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM batch_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(res, "delete session", id)
}

func marshalSessionParts(session *domain.BatchSession) ([]byte, []byte, []byte, error) {
	filesJSON, err := json.Marshal(session.Files)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal files: %w", err)
	}
	documentsJSON, err := json.Marshal(session.Documents)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal documents: %w", err)
	}
	groupsJSON, err := json.Marshal(session.Groups)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal groups: %w", err)
	}
	return filesJSON, documentsJSON, groupsJSON, nil
}

func requireRow(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrSessionNotFound, op, fmt.Errorf("id %s", id))
	}
	return nil
}
