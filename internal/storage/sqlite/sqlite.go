package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"focuslock/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	storage := &SQLiteStorage{db: db}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			token_hash TEXT NOT NULL,
			chat_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS presets (
			id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			mode TEXT NOT NULL,
			selected_apps TEXT NOT NULL DEFAULT '[]',
			blocked_websites TEXT NOT NULL DEFAULT '[]',
			duration_days INTEGER NOT NULL DEFAULT 0,
			duration_hours INTEGER NOT NULL DEFAULT 0,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			target_date DATETIME,
			no_time_limit INTEGER NOT NULL DEFAULT 0,
			block_settings INTEGER NOT NULL DEFAULT 0,
			strict_mode INTEGER NOT NULL DEFAULT 0,
			allow_emergency_tapout INTEGER NOT NULL DEFAULT 0,
			is_scheduled INTEGER NOT NULL DEFAULT 0,
			schedule_start DATETIME,
			schedule_end DATETIME,
			repeat_enabled INTEGER NOT NULL DEFAULT 0,
			repeat_unit TEXT NOT NULL DEFAULT '',
			repeat_interval INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 0,
			is_default INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, id),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS lock_status (
			user_id TEXT PRIMARY KEY,
			is_locked INTEGER NOT NULL DEFAULT 0,
			lock_ends_at DATETIME,
			lock_started_at DATETIME,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS tapout_status (
			user_id TEXT PRIMARY KEY,
			remaining INTEGER NOT NULL DEFAULT 0,
			last_refill_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS pending_tapouts (
			user_id TEXT PRIMARY KEY,
			preset_id TEXT NOT NULL,
			requested_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_presets_user ON presets(user_id);
		CREATE INDEX IF NOT EXISTS idx_presets_active ON presets(user_id, is_active);
	`

	_, err := s.db.Exec(schema)
	return err
}

// presetColumns is the canonical column list for preset scans
const presetColumns = `id, user_id, name, mode, selected_apps, blocked_websites,
	duration_days, duration_hours, duration_minutes, duration_seconds,
	target_date, no_time_limit, block_settings, strict_mode,
	allow_emergency_tapout, is_scheduled, schedule_start, schedule_end,
	repeat_enabled, repeat_unit, repeat_interval, is_active, is_default,
	created_at, updated_at`

// CreatePreset creates a new preset
func (s *SQLiteStorage) CreatePreset(ctx context.Context, preset *core.Preset) error {
	if err := preset.Validate(); err != nil {
		return err
	}

	now := time.Now()
	preset.CreatedAt = now
	preset.UpdatedAt = now

	apps, sites, err := encodeSets(preset)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO presets (`+presetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, preset.ID, preset.UserID, preset.Name, preset.Mode, apps, sites,
		preset.DurationDays, preset.DurationHours, preset.DurationMinutes, preset.DurationSeconds,
		nullTime(preset.TargetDate), preset.NoTimeLimit, preset.BlockSettings, preset.StrictMode,
		preset.AllowEmergencyTapout, preset.IsScheduled, nullTime(preset.ScheduleStart), nullTime(preset.ScheduleEnd),
		preset.RepeatEnabled, preset.RepeatUnit, preset.RepeatInterval, preset.IsActive, preset.IsDefault,
		preset.CreatedAt, preset.UpdatedAt)

	return err
}

// GetPreset retrieves a preset by ID
func (s *SQLiteStorage) GetPreset(ctx context.Context, userID, id string) (*core.Preset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+presetColumns+` FROM presets WHERE user_id = ? AND id = ?
	`, userID, id)

	preset, err := scanPreset(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrPresetNotFound
	}
	if err != nil {
		return nil, err
	}
	return preset, nil
}

// ListPresets retrieves all presets for a user
func (s *SQLiteStorage) ListPresets(ctx context.Context, userID string) ([]*core.Preset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+presetColumns+` FROM presets WHERE user_id = ? ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var presets []*core.Preset
	for rows.Next() {
		preset, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, preset)
	}
	return presets, rows.Err()
}

// SavePreset updates an existing preset
func (s *SQLiteStorage) SavePreset(ctx context.Context, preset *core.Preset) error {
	if err := preset.Validate(); err != nil {
		return err
	}

	preset.UpdatedAt = time.Now()

	apps, sites, err := encodeSets(preset)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE presets
		SET name = ?, mode = ?, selected_apps = ?, blocked_websites = ?,
			duration_days = ?, duration_hours = ?, duration_minutes = ?, duration_seconds = ?,
			target_date = ?, no_time_limit = ?, block_settings = ?, strict_mode = ?,
			allow_emergency_tapout = ?, is_scheduled = ?, schedule_start = ?, schedule_end = ?,
			repeat_enabled = ?, repeat_unit = ?, repeat_interval = ?, is_active = ?, is_default = ?,
			updated_at = ?
		WHERE user_id = ? AND id = ?
	`, preset.Name, preset.Mode, apps, sites,
		preset.DurationDays, preset.DurationHours, preset.DurationMinutes, preset.DurationSeconds,
		nullTime(preset.TargetDate), preset.NoTimeLimit, preset.BlockSettings, preset.StrictMode,
		preset.AllowEmergencyTapout, preset.IsScheduled, nullTime(preset.ScheduleStart), nullTime(preset.ScheduleEnd),
		preset.RepeatEnabled, preset.RepeatUnit, preset.RepeatInterval, preset.IsActive, preset.IsDefault,
		preset.UpdatedAt, preset.UserID, preset.ID)

	if err != nil {
		return err
	}
	return requireRow(result, core.ErrPresetNotFound)
}

// DeletePreset deletes a preset
func (s *SQLiteStorage) DeletePreset(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM presets WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	return requireRow(result, core.ErrPresetNotFound)
}

// SetActiveExclusive marks one non-scheduled preset active and all other
// non-scheduled presets of the user inactive, in a single transaction
func (s *SQLiteStorage) SetActiveExclusive(ctx context.Context, userID, presetID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE presets SET is_active = 0, updated_at = ?
		WHERE user_id = ? AND is_scheduled = 0 AND id != ?
	`, now, userID, presetID)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE presets SET is_active = 1, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, now, userID, presetID)
	if err != nil {
		return err
	}
	if err := requireRow(result, core.ErrPresetNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

// SetPresetActive flips one preset's active flag
func (s *SQLiteStorage) SetPresetActive(ctx context.Context, userID, presetID string, active bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE presets SET is_active = ?, updated_at = ? WHERE user_id = ? AND id = ?
	`, active, time.Now(), userID, presetID)
	if err != nil {
		return err
	}
	return requireRow(result, core.ErrPresetNotFound)
}

// GetLockStatus retrieves a user's lock status. A user with no row is idle.
func (s *SQLiteStorage) GetLockStatus(ctx context.Context, userID string) (*core.LockStatus, error) {
	var lock core.LockStatus
	var endsAt, startedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, is_locked, lock_ends_at, lock_started_at, updated_at
		FROM lock_status WHERE user_id = ?
	`, userID).Scan(&lock.UserID, &lock.IsLocked, &endsAt, &startedAt, &lock.UpdatedAt)

	if err == sql.ErrNoRows {
		return &core.LockStatus{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}

	if endsAt.Valid {
		lock.LockEndsAt = &endsAt.Time
	}
	if startedAt.Valid {
		lock.LockStartedAt = &startedAt.Time
	}
	return &lock, nil
}

// SetLockStatus writes a user's lock status
func (s *SQLiteStorage) SetLockStatus(ctx context.Context, userID string, isLocked bool, endsAt, startedAt *time.Time) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lock_status (user_id, is_locked, lock_ends_at, lock_started_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			is_locked = excluded.is_locked,
			lock_ends_at = excluded.lock_ends_at,
			lock_started_at = excluded.lock_started_at,
			updated_at = excluded.updated_at
	`, userID, isLocked, nullTime(endsAt), nullTime(startedAt), now)
	return err
}

// GetTapoutStatus retrieves a user's tapout ledger row
func (s *SQLiteStorage) GetTapoutStatus(ctx context.Context, userID string) (*core.TapoutStatus, error) {
	var status core.TapoutStatus

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, remaining, last_refill_at, updated_at
		FROM tapout_status WHERE user_id = ?
	`, userID).Scan(&status.UserID, &status.Remaining, &status.LastRefillAt, &status.UpdatedAt)

	if err == sql.ErrNoRows {
		return &core.TapoutStatus{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// SaveTapoutStatus upserts a user's tapout ledger row
func (s *SQLiteStorage) SaveTapoutStatus(ctx context.Context, status *core.TapoutStatus) error {
	status.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tapout_status (user_id, remaining, last_refill_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			remaining = excluded.remaining,
			last_refill_at = excluded.last_refill_at,
			updated_at = excluded.updated_at
	`, status.UserID, status.Remaining, status.LastRefillAt, status.UpdatedAt)
	return err
}

// ConsumeTapout atomically spends one tapout: decrement iff remaining > 0
func (s *SQLiteStorage) ConsumeTapout(ctx context.Context, userID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tapout_status SET remaining = remaining - 1, updated_at = ?
		WHERE user_id = ? AND remaining > 0
	`, time.Now(), userID)
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, core.ErrTapoutExhausted
	}

	var remaining int
	err = s.db.QueryRowContext(ctx, `
		SELECT remaining FROM tapout_status WHERE user_id = ?
	`, userID).Scan(&remaining)
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// SetPendingTapout records an unconfirmed tapout marker
func (s *SQLiteStorage) SetPendingTapout(ctx context.Context, pending *core.PendingTapout) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_tapouts (user_id, preset_id, requested_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			preset_id = excluded.preset_id,
			requested_at = excluded.requested_at
	`, pending.UserID, pending.PresetID, pending.RequestedAt)
	return err
}

// GetPendingTapout retrieves a user's pending tapout marker, nil when none
func (s *SQLiteStorage) GetPendingTapout(ctx context.Context, userID string) (*core.PendingTapout, error) {
	var pending core.PendingTapout

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, preset_id, requested_at FROM pending_tapouts WHERE user_id = ?
	`, userID).Scan(&pending.UserID, &pending.PresetID, &pending.RequestedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

// ClearPendingTapout removes a user's pending tapout marker
func (s *SQLiteStorage) ClearPendingTapout(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pending_tapouts WHERE user_id = ?", userID)
	return err
}

// CreateUser creates a new user together with an initial tapout allowance
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *core.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, name, token_hash, chat_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Name, user.TokenHash, user.ChatID, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return err
	}

	// New accounts start with one banked emergency tapout
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tapout_status (user_id, remaining, last_refill_at, updated_at)
		VALUES (?, 1, ?, ?)
	`, user.ID, now, now)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetUser retrieves a user by ID
func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*core.User, error) {
	var user core.User

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, token_hash, chat_id, created_at, updated_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Name, &user.TokenHash, &user.ChatID, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUserIDs retrieves all user IDs, for the scheduler sweep
func (s *SQLiteStorage) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM users ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Helper functions

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPreset(row rowScanner) (*core.Preset, error) {
	var preset core.Preset
	var apps, sites string
	var targetDate, scheduleStart, scheduleEnd sql.NullTime
	var repeatUnit string

	err := row.Scan(&preset.ID, &preset.UserID, &preset.Name, &preset.Mode, &apps, &sites,
		&preset.DurationDays, &preset.DurationHours, &preset.DurationMinutes, &preset.DurationSeconds,
		&targetDate, &preset.NoTimeLimit, &preset.BlockSettings, &preset.StrictMode,
		&preset.AllowEmergencyTapout, &preset.IsScheduled, &scheduleStart, &scheduleEnd,
		&preset.RepeatEnabled, &repeatUnit, &preset.RepeatInterval, &preset.IsActive, &preset.IsDefault,
		&preset.CreatedAt, &preset.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(apps), &preset.SelectedApps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selected apps: %w", err)
	}
	if err := json.Unmarshal([]byte(sites), &preset.BlockedWebsites); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blocked websites: %w", err)
	}

	if targetDate.Valid {
		preset.TargetDate = &targetDate.Time
	}
	if scheduleStart.Valid {
		preset.ScheduleStart = &scheduleStart.Time
	}
	if scheduleEnd.Valid {
		preset.ScheduleEnd = &scheduleEnd.Time
	}
	preset.RepeatUnit = core.RepeatUnit(repeatUnit)

	return &preset, nil
}

func encodeSets(preset *core.Preset) (apps string, sites string, err error) {
	appsBytes, err := json.Marshal(emptyIfNil(preset.SelectedApps))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal selected apps: %w", err)
	}
	sitesBytes, err := json.Marshal(emptyIfNil(preset.BlockedWebsites))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal blocked websites: %w", err)
	}
	return string(appsBytes), string(sitesBytes), nil
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
