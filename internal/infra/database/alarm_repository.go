package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt" // For error wrapping
	"time"

	"alarm_clock_bot/internal/domain/alarm"
)

// Custom errors
var ErrAlarmNotFound = fmt.Errorf("alarm not found")

const alarmColumns = `id, hour, minute, label, enabled, repeat_mask, vibrate, sound_uri,
	snooze_enabled, snooze_minutes, created_at, updated_at`

// SQLAlarmRepository stores alarms in Postgres or SQLite. Instants are kept as unix
// milliseconds and the repeat mask as an integer bitmask, so both dialects share one schema shape.
type SQLAlarmRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewAlarmRepository(db *sql.DB, dialect Dialect) *SQLAlarmRepository {
	return &SQLAlarmRepository{db: db, dialect: dialect, now: time.Now}
}

var _ alarm.Repository = (*SQLAlarmRepository)(nil)

func (r *SQLAlarmRepository) q(query string) string {
	return rebind(r.dialect, query)
}

func (r *SQLAlarmRepository) Create(ctx context.Context, a *alarm.Alarm) error {
	query := `INSERT INTO alarms (hour, minute, label, enabled, repeat_mask, vibrate, sound_uri,
                   snooze_enabled, snooze_minutes, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
               RETURNING id`

	now := r.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.SoundURI == "" {
		a.SoundURI = alarm.DefaultSound
	}
	err := r.db.QueryRowContext(ctx, r.q(query),
		a.Hour, a.Minute, a.Label, a.Enabled, int(a.Repeat), a.Vibrate, a.SoundURI,
		a.SnoozeEnabled, a.SnoozeMinutes, a.CreatedAt.UnixMilli(),
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("error creating alarm: %w", err)
	}
	a.CreatedAt = time.UnixMilli(a.CreatedAt.UnixMilli())
	a.UpdatedAt = a.CreatedAt
	return nil
}

func (r *SQLAlarmRepository) GetByID(ctx context.Context, id int64) (*alarm.Alarm, error) {
	query := `SELECT ` + alarmColumns + ` FROM alarms WHERE id = $1`
	a, err := scanAlarm(r.db.QueryRowContext(ctx, r.q(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlarmNotFound
		}
		return nil, fmt.Errorf("error getting alarm by ID: %w", err)
	}
	return a, nil
}

func (r *SQLAlarmRepository) Update(ctx context.Context, a *alarm.Alarm) error {
	query := `UPDATE alarms
               SET hour = $1, minute = $2, label = $3, enabled = $4, repeat_mask = $5, vibrate = $6,
                   sound_uri = $7, snooze_enabled = $8, snooze_minutes = $9, updated_at = $10
               WHERE id = $11`

	now := r.now()
	res, err := r.db.ExecContext(ctx, r.q(query),
		a.Hour, a.Minute, a.Label, a.Enabled, int(a.Repeat), a.Vibrate, a.SoundURI,
		a.SnoozeEnabled, a.SnoozeMinutes, now.UnixMilli(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating alarm: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	a.UpdatedAt = time.UnixMilli(now.UnixMilli())
	return nil
}

func (r *SQLAlarmRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	query := `UPDATE alarms SET enabled = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, r.q(query), enabled, r.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("error updating alarm enabled flag: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLAlarmRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM alarms WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("error deleting alarm: %w", err)
	}
	return expectOneRow(res)
}

func (r *SQLAlarmRepository) ListAll(ctx context.Context) ([]*alarm.Alarm, error) {
	query := `SELECT ` + alarmColumns + ` FROM alarms ORDER BY hour, minute, id`
	return r.list(ctx, "all", query)
}

func (r *SQLAlarmRepository) ListEnabled(ctx context.Context) ([]*alarm.Alarm, error) {
	query := `SELECT ` + alarmColumns + ` FROM alarms WHERE enabled = $1 ORDER BY hour, minute, id`
	return r.list(ctx, "enabled", query, true)
}

func (r *SQLAlarmRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alarms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting alarms: %w", err)
	}
	return n, nil
}

func (r *SQLAlarmRepository) list(ctx context.Context, what, query string, args ...any) ([]*alarm.Alarm, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error listing %s alarms: %w", what, err)
	}
	defer rows.Close()

	alarms := make([]*alarm.Alarm, 0)
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning %s alarm: %w", what, err)
		}
		alarms = append(alarms, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s alarms: %w", what, err)
	}
	return alarms, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row rowScanner) (*alarm.Alarm, error) {
	var (
		a                    alarm.Alarm
		repeat               int
		createdAt, updatedAt int64
	)
	err := row.Scan(&a.ID, &a.Hour, &a.Minute, &a.Label, &a.Enabled, &repeat, &a.Vibrate, &a.SoundURI,
		&a.SnoozeEnabled, &a.SnoozeMinutes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Repeat = alarm.RepeatMask(repeat)
	a.CreatedAt = time.UnixMilli(createdAt)
	a.UpdatedAt = time.UnixMilli(updatedAt)
	return &a, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrAlarmNotFound
	}
	return nil
}
