// Package persistence provides SQLite-backed storage for world saves
// plus compressed snapshot files for offline backup and transfer.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/lifesim/internal/action"
	"github.com/talgya/lifesim/internal/ledger"
	"github.com/talgya/lifesim/internal/schedule"
	"github.com/talgya/lifesim/internal/sim"
)

// ErrNoSave reports a database with no saved world.
var ErrNoSave = errors.New("no saved world")

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL,
		health_json TEXT NOT NULL,
		templates_json TEXT NOT NULL,
		special_days_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ledgers (
		id TEXT PRIMARY KEY,
		kind INTEGER NOT NULL,
		amount REAL NOT NULL,
		capacity REAL,
		can_go_negative INTEGER NOT NULL,
		decay_rate_per_hour REAL NOT NULL,
		critical_threshold REAL NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stored_resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind INTEGER NOT NULL,
		resource_id TEXT NOT NULL,
		amount REAL NOT NULL,
		quality REAL NOT NULL,
		deterioration_rate_per_hour REAL NOT NULL,
		stored_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pending_actions (
		id TEXT PRIMARY KEY,
		record_json TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at_minutes INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at_minutes);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveWorld performs a full-replace save of a snapshot.
func (db *DB) SaveWorld(data sim.SaveData) error {
	slog.Info("saving world state",
		"day", data.Clock.Day,
		"entities", len(data.Entities),
		"ledgers", len(data.Ledgers),
		"pending_actions", len(data.Pending),
	)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"entities", "ledgers", "stored_resources", "pending_actions", "events"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	for _, e := range data.Entities {
		healthJSON, _ := json.Marshal(e.Health)
		templatesJSON, _ := json.Marshal(e.Templates)
		specialJSON, _ := json.Marshal(e.SpecialDays)
		_, err := tx.Exec(`INSERT INTO entities
			(id, name, location, health_json, templates_json, special_days_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(e.ID), e.Name, e.Location,
			string(healthJSON), string(templatesJSON), string(specialJSON),
		)
		if err != nil {
			return fmt.Errorf("insert entity %s: %w", e.ID, err)
		}
	}

	for i, l := range data.Ledgers {
		var capacity sql.NullFloat64
		if l.Capacity != nil {
			capacity = sql.NullFloat64{Float64: *l.Capacity, Valid: true}
		}
		negative := 0
		if l.CanGoNegative {
			negative = 1
		}
		_, err := tx.Exec(`INSERT INTO ledgers
			(id, kind, amount, capacity, can_go_negative, decay_rate_per_hour, critical_threshold, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.Kind, l.Amount, capacity, negative, l.DecayRatePerHour, l.CriticalThreshold, i,
		)
		if err != nil {
			return fmt.Errorf("insert ledger %s: %w", l.ID, err)
		}
	}

	for _, r := range data.Stored {
		_, err := tx.Exec(`INSERT INTO stored_resources
			(kind, resource_id, amount, quality, deterioration_rate_per_hour, stored_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ResourceKind, r.ResourceID, r.Amount, r.Quality,
			r.DeteriorationRatePerHour, r.StoredAt, r.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("insert stored %s: %w", r.ResourceID, err)
		}
	}

	for i, sc := range data.Pending {
		recordJSON, _ := json.Marshal(sc)
		_, err := tx.Exec(
			"INSERT INTO pending_actions (id, record_json, position) VALUES (?, ?, ?)",
			sc.ID, string(recordJSON), i,
		)
		if err != nil {
			return fmt.Errorf("insert pending %s: %w", sc.ID, err)
		}
	}

	for _, ev := range data.Events {
		_, err := tx.Exec(
			"INSERT INTO events (at_minutes, description, category) VALUES (?, ?, ?)",
			ev.AtMinutes, ev.Description, ev.Category,
		)
		if err != nil {
			return err
		}
	}

	clockJSON, _ := json.Marshal(data.Clock)
	economyJSON, _ := json.Marshal(data.Economy)
	meta := map[string]string{
		"save_version": fmt.Sprintf("%d", data.Version),
		"clock":        string(clockJSON),
		"economy":      string(economyJSON),
	}
	for key, value := range meta {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", key, value,
		); err != nil {
			return fmt.Errorf("save meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("world state saved")
	return nil
}

type ledgerRow struct {
	ID                string          `db:"id"`
	Kind              int             `db:"kind"`
	Amount            float64         `db:"amount"`
	Capacity          sql.NullFloat64 `db:"capacity"`
	CanGoNegative     int             `db:"can_go_negative"`
	DecayRatePerHour  float64         `db:"decay_rate_per_hour"`
	CriticalThreshold float64         `db:"critical_threshold"`
}

type storedRow struct {
	Kind                     int     `db:"kind"`
	ResourceID               string  `db:"resource_id"`
	Amount                   float64 `db:"amount"`
	Quality                  float64 `db:"quality"`
	DeteriorationRatePerHour float64 `db:"deterioration_rate_per_hour"`
	StoredAt                 int64   `db:"stored_at"`
	ExpiresAt                int64   `db:"expires_at"`
}

// LoadWorld reads the saved world back into a snapshot. Returns
// ErrNoSave for a freshly migrated database.
func (db *DB) LoadWorld() (sim.SaveData, error) {
	var data sim.SaveData

	var clockJSON string
	if err := db.conn.Get(&clockJSON, "SELECT value FROM world_meta WHERE key = 'clock'"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return data, ErrNoSave
		}
		return data, fmt.Errorf("load clock: %w", err)
	}
	if err := json.Unmarshal([]byte(clockJSON), &data.Clock); err != nil {
		return data, fmt.Errorf("decode clock: %w", err)
	}
	var economyJSON string
	if err := db.conn.Get(&economyJSON, "SELECT value FROM world_meta WHERE key = 'economy'"); err == nil {
		if err := json.Unmarshal([]byte(economyJSON), &data.Economy); err != nil {
			return data, fmt.Errorf("decode economy: %w", err)
		}
	}
	data.Version = sim.SaveVersion

	rows, err := db.conn.Queryx("SELECT id, name, location, health_json, templates_json, special_days_json FROM entities ORDER BY id")
	if err != nil {
		return data, fmt.Errorf("load entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name, location, healthJSON, templatesJSON, specialJSON string
		if err := rows.Scan(&id, &name, &location, &healthJSON, &templatesJSON, &specialJSON); err != nil {
			return data, err
		}
		es := sim.EntitySave{ID: schedule.EntityID(id), Name: name, Location: location}
		if err := json.Unmarshal([]byte(healthJSON), &es.Health); err != nil {
			return data, fmt.Errorf("decode entity %s health: %w", id, err)
		}
		if err := json.Unmarshal([]byte(templatesJSON), &es.Templates); err != nil {
			return data, fmt.Errorf("decode entity %s templates: %w", id, err)
		}
		if err := json.Unmarshal([]byte(specialJSON), &es.SpecialDays); err != nil {
			return data, fmt.Errorf("decode entity %s special days: %w", id, err)
		}
		data.Entities = append(data.Entities, es)
	}

	var lrows []ledgerRow
	if err := db.conn.Select(&lrows, `SELECT id, kind, amount, capacity, can_go_negative,
		decay_rate_per_hour, critical_threshold FROM ledgers ORDER BY position`); err != nil {
		return data, fmt.Errorf("load ledgers: %w", err)
	}
	for _, l := range lrows {
		led := ledger.Ledger{
			ID:                l.ID,
			Kind:              ledger.Kind(l.Kind),
			Amount:            l.Amount,
			CanGoNegative:     l.CanGoNegative != 0,
			DecayRatePerHour:  l.DecayRatePerHour,
			CriticalThreshold: l.CriticalThreshold,
		}
		if l.Capacity.Valid {
			c := l.Capacity.Float64
			led.Capacity = &c
		}
		data.Ledgers = append(data.Ledgers, led)
	}

	var srows []storedRow
	if err := db.conn.Select(&srows, `SELECT kind, resource_id, amount, quality,
		deterioration_rate_per_hour, stored_at, expires_at FROM stored_resources ORDER BY id`); err != nil {
		return data, fmt.Errorf("load stored: %w", err)
	}
	for _, r := range srows {
		data.Stored = append(data.Stored, ledger.StoredResource{
			ResourceKind:             ledger.Kind(r.Kind),
			ResourceID:               r.ResourceID,
			Amount:                   r.Amount,
			Quality:                  r.Quality,
			DeteriorationRatePerHour: r.DeteriorationRatePerHour,
			StoredAt:                 r.StoredAt,
			ExpiresAt:                r.ExpiresAt,
		})
	}

	var records []string
	if err := db.conn.Select(&records, "SELECT record_json FROM pending_actions ORDER BY position"); err != nil {
		return data, fmt.Errorf("load pending: %w", err)
	}
	for _, raw := range records {
		var sc action.Scheduled
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			return data, fmt.Errorf("decode pending action: %w", err)
		}
		data.Pending = append(data.Pending, sc)
	}

	var events []sim.Event
	if err := db.conn.Select(&events, "SELECT at_minutes AS atminutes, description, category FROM events ORDER BY id"); err != nil {
		return data, fmt.Errorf("load events: %w", err)
	}
	data.Events = events

	return data, nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]sim.Event, error) {
	var events []sim.Event
	err := db.conn.Select(&events,
		"SELECT at_minutes AS atminutes, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
