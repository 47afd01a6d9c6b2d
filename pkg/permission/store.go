package permission

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Store persists standing "always" permission decisions and an audit trail of
// every recorded decision. Once-decisions are audited but never become
// standing policy.
type Store struct {
	db        *sql.DB
	logger    zerolog.Logger
	sweeper   *cron.Cron
	retention time.Duration
	now       func() time.Time
}

// StoreConfig holds store configuration. AuditRetention and SweepSchedule are
// optional; with both set, audit rows older than the retention are pruned on
// the cron schedule (e.g. "@hourly").
type StoreConfig struct {
	DBPath         string
	Logger         zerolog.Logger
	AuditRetention time.Duration
	SweepSchedule  string
}

// NewStore opens (creating if needed) the permission database.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency between broker and sweeper.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:        db,
		logger:    cfg.Logger.With().Str("component", "permission-store").Logger(),
		retention: cfg.AuditRetention,
		now:       time.Now,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.SweepSchedule != "" && cfg.AuditRetention > 0 {
		sweeper := cron.New()
		if _, err := sweeper.AddFunc(cfg.SweepSchedule, s.sweepAudit); err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.SweepSchedule, err)
		}
		sweeper.Start()
		s.sweeper = sweeper
	}

	s.logger.Info().Str("db_path", cfg.DBPath).Msg("Permission store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS standing_permissions (
			principal_type TEXT NOT NULL,
			principal      TEXT NOT NULL,
			permission     TEXT NOT NULL,
			decided_at     TIMESTAMP NOT NULL,
			PRIMARY KEY (principal_type, principal)
		);

		CREATE TABLE IF NOT EXISTS permission_audit (
			id             TEXT PRIMARY KEY,
			principal_type TEXT NOT NULL,
			principal      TEXT NOT NULL,
			permission     TEXT NOT NULL,
			decided_at     TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_audit_decided_at
			ON permission_audit(decided_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Record persists a decision. Durable decisions replace any standing policy
// for the principal; every decision is appended to the audit trail.
func (s *Store) Record(confirmation Confirmation, principal string) error {
	if principal == "" {
		return errors.New("principal is required")
	}
	if !confirmation.Permission.Valid() {
		return fmt.Errorf("unknown permission %q", confirmation.Permission)
	}

	decidedAt := s.now().UTC()

	if confirmation.Permission.Durable() {
		_, err := s.db.Exec(`
			INSERT INTO standing_permissions (principal_type, principal, permission, decided_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (principal_type, principal)
			DO UPDATE SET permission = excluded.permission, decided_at = excluded.decided_at`,
			string(confirmation.PrincipalType), principal, string(confirmation.Permission), decidedAt)
		if err != nil {
			return fmt.Errorf("failed to record standing permission: %w", err)
		}
	}

	auditID, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate audit id: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO permission_audit (id, principal_type, principal, permission, decided_at)
		VALUES (?, ?, ?, ?, ?)`,
		auditID, string(confirmation.PrincipalType), principal, string(confirmation.Permission), decidedAt)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	s.logger.Debug().
		Str("principal", principal).
		Str("principal_type", string(confirmation.PrincipalType)).
		Str("permission", string(confirmation.Permission)).
		Msg("Permission decision recorded")
	return nil
}

// Lookup returns the standing permission for a principal, if one exists.
func (s *Store) Lookup(principalType PrincipalType, principal string) (Permission, bool, error) {
	var raw string
	err := s.db.QueryRow(`
		SELECT permission FROM standing_permissions
		WHERE principal_type = ? AND principal = ?`,
		string(principalType), principal).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up standing permission: %w", err)
	}

	permission, err := Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("corrupt standing permission for %s/%s: %w", principalType, principal, err)
	}
	return permission, true, nil
}

// Forget removes the standing permission for a principal, if any.
func (s *Store) Forget(principalType PrincipalType, principal string) error {
	_, err := s.db.Exec(`
		DELETE FROM standing_permissions
		WHERE principal_type = ? AND principal = ?`,
		string(principalType), principal)
	if err != nil {
		return fmt.Errorf("failed to forget standing permission: %w", err)
	}
	return nil
}

// AuditCount returns the number of audit rows. Intended for diagnostics.
func (s *Store) AuditCount() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM permission_audit`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}

// sweepAudit prunes audit rows older than the configured retention.
func (s *Store) sweepAudit() {
	cutoff := s.now().UTC().Add(-s.retention)
	result, err := s.db.Exec(`DELETE FROM permission_audit WHERE decided_at < ?`, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Audit sweep failed")
		return
	}
	if pruned, err := result.RowsAffected(); err == nil && pruned > 0 {
		s.logger.Debug().Int64("pruned", pruned).Msg("Audit entries pruned")
	}
}

// Close stops the sweeper and closes the database.
func (s *Store) Close() error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
