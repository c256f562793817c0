// Package sqlite provides the SQLite-backed game service store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Monroeshindelar/lw-game-service/internal/platform/storage/sqlitemigrate"
	"github.com/Monroeshindelar/lw-game-service/internal/squadlocke/domain"
	"github.com/Monroeshindelar/lw-game-service/internal/storage"
	"github.com/Monroeshindelar/lw-game-service/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists sessions and encounter candidate pools in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts a session with compare-and-swap on the version column.
func (s *Store) Save(ctx context.Context, session domain.Session) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return domain.Session{}, fmt.Errorf("session id is required")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshal session: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, fmt.Errorf("begin save transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	nextVersion := session.Version + 1
	if session.Version == 0 {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO sessions (id, creator_id, phase, version, payload, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			session.ID,
			session.CreatorID,
			int(session.State.Phase),
			nextVersion,
			string(payload),
			toMillis(session.CreatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.Session{}, fmt.Errorf("insert session %s: %w", session.ID, storage.ErrVersionConflict)
			}
			return domain.Session{}, fmt.Errorf("insert session %s: %w", session.ID, err)
		}
	} else {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE sessions SET phase = ?, version = ?, payload = ?
			 WHERE id = ? AND version = ?`,
			int(session.State.Phase),
			nextVersion,
			string(payload),
			session.ID,
			session.Version,
		)
		if err != nil {
			return domain.Session{}, fmt.Errorf("update session %s: %w", session.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return domain.Session{}, fmt.Errorf("update session %s: %w", session.ID, err)
		}
		if affected == 0 {
			return domain.Session{}, fmt.Errorf("save session %s at version %d: %w", session.ID, session.Version, storage.ErrVersionConflict)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_participants WHERE session_id = ?`, session.ID); err != nil {
		return domain.Session{}, fmt.Errorf("clear session participants: %w", err)
	}
	for _, participant := range session.Participants {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO session_participants (session_id, participant_id) VALUES (?, ?)`,
			session.ID,
			participant.ID,
		); err != nil {
			return domain.Session{}, fmt.Errorf("insert session participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Session{}, fmt.Errorf("commit save transaction: %w", err)
	}

	session.Version = nextVersion
	return session, nil
}

// Get fetches a session by id.
func (s *Store) Get(ctx context.Context, id string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return domain.Session{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT payload, version FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListByParticipant returns every session the participant is part of,
// oldest first.
func (s *Store) ListByParticipant(ctx context.Context, participantID string) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT s.payload, s.version FROM sessions s
		 JOIN session_participants sp ON sp.session_id = s.id
		 WHERE sp.participant_id = ?
		 ORDER BY s.created_at`,
		participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions by participant: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSessions(rows)
}

// ListJoinable returns registration-state sessions the user has not joined,
// oldest first.
func (s *Store) ListJoinable(ctx context.Context, participantID string) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT s.payload, s.version FROM sessions s
		 WHERE s.phase = ?
		   AND s.id NOT IN (
		     SELECT session_id FROM session_participants WHERE participant_id = ?
		   )
		 ORDER BY s.created_at`,
		int(domain.PhaseRegistration),
		participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list joinable sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSessions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var payload string
	var version int64
	if err := row.Scan(&payload, &version); err != nil {
		if err == sql.ErrNoRows {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	session.Version = version
	return session, nil
}

func scanSessions(rows *sql.Rows) ([]domain.Session, error) {
	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "constraint failed")
}
