// Package persistence provides SQLite-based scheduler state storage.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/haulnet/internal/engine"
	"github.com/talgya/haulnet/internal/logistics"
	"github.com/talgya/haulnet/internal/world"
)

// DB wraps a SQLite connection for scheduler state persistence.
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

var entityTables = []string{"producers", "consumers", "stores", "carriers", "workers"}

func (db *DB) migrate() error {
	schema := ""
	for _, t := range entityTables {
		schema += `
	CREATE TABLE IF NOT EXISTS ` + t + ` (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		zone TEXT NOT NULL,
		pos_q INTEGER NOT NULL,
		pos_r INTEGER NOT NULL,
		energy INTEGER NOT NULL,
		capacity INTEGER NOT NULL,
		rate INTEGER NOT NULL,
		urgency_json TEXT NOT NULL,
		detail_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_` + t + `_zone ON ` + t + `(zone);`
	}
	schema += `
	CREATE TABLE IF NOT EXISTS leases (
		id TEXT PRIMARY KEY,
		zone TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		created_tick INTEGER NOT NULL,
		expires_tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deficits (
		zone TEXT PRIMARY KEY,
		demand REAL NOT NULL,
		supply REAL NOT NULL,
		net REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// entityRow is the shared column set of every entity table. Kind-specific
// fields live in detail_json.
type entityRow struct {
	ID          string `db:"id"`
	Kind        string `db:"kind"`
	Zone        string `db:"zone"`
	PosQ        int    `db:"pos_q"`
	PosR        int    `db:"pos_r"`
	Energy      int    `db:"energy"`
	Capacity    int    `db:"capacity"`
	Rate        int    `db:"rate"`
	UrgencyJSON string `db:"urgency_json"`
	DetailJSON  string `db:"detail_json"`
}

func (r entityRow) energy() logistics.Energy {
	return logistics.Energy{Current: r.Energy, Capacity: r.Capacity}
}

func (r entityRow) pos() world.HexCoord {
	return world.HexCoord{Q: r.PosQ, R: r.PosR}
}

func (r entityRow) urgency() (logistics.Urgency, error) {
	var u logistics.Urgency
	err := json.Unmarshal([]byte(r.UrgencyJSON), &u)
	return u, err
}

type producerDetail struct {
	WithdrawTiming logistics.Timing `json:"withdraw_timing"`
}

type consumerDetail struct {
	DepositTiming logistics.Timing  `json:"deposit_timing"`
	DecayTiming   *logistics.Timing `json:"decay_timing,omitempty"`
}

type storeDetail struct {
	Actions logistics.Actions `json:"actions"`
}

type carrierDetail struct {
	DecayTiming *logistics.Timing             `json:"decay_timing,omitempty"`
	Reservation *logistics.CarrierReservation `json:"reservation,omitempty"`
}

func row(id logistics.EntityID, kind string, zone world.ZoneID, pos world.HexCoord, e logistics.Energy, rate int, u logistics.Urgency, detail any) (entityRow, error) {
	uj, err := json.Marshal(u)
	if err != nil {
		return entityRow{}, err
	}
	dj, err := json.Marshal(detail)
	if err != nil {
		return entityRow{}, err
	}
	return entityRow{
		ID: string(id), Kind: kind, Zone: string(zone),
		PosQ: pos.Q, PosR: pos.R,
		Energy: e.Current, Capacity: e.Capacity, Rate: rate,
		UrgencyJSON: string(uj), DetailJSON: string(dj),
	}, nil
}

func insertRows(tx *sqlx.Tx, table string, rows []entityRow) error {
	if _, err := tx.Exec("DELETE FROM " + table); err != nil {
		return err
	}
	stmt, err := tx.PrepareNamed(`INSERT INTO ` + table + `
		(id, kind, zone, pos_q, pos_r, energy, capacity, rate, urgency_json, detail_json)
		VALUES (:id, :kind, :zone, :pos_q, :pos_r, :energy, :capacity, :rate, :urgency_json, :detail_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r); err != nil {
			return fmt.Errorf("insert %s %s: %w", table, r.ID, err)
		}
	}
	return nil
}

// SaveState writes the whole registry in one transaction (full replace).
func (db *DB) SaveState(st *logistics.State) error {
	tables := make(map[string][]entityRow, len(entityTables))
	add := func(table string, r entityRow, err error) error {
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", table, r.ID, err)
		}
		tables[table] = append(tables[table], r)
		return nil
	}

	for _, p := range st.Producers {
		r, err := row(p.ID, p.Kind, p.Zone, p.Position, p.Energy, p.ProductionPerTick, p.Urgency, producerDetail{p.WithdrawTiming})
		if err := add("producers", r, err); err != nil {
			return err
		}
	}
	for _, c := range st.Consumers {
		r, err := row(c.ID, c.Kind, c.Zone, c.Position, c.Energy, c.ProductionPerTick, c.Urgency, consumerDetail{c.DepositTiming, c.DecayTiming})
		if err := add("consumers", r, err); err != nil {
			return err
		}
	}
	for _, s := range st.Stores {
		r, err := row(s.ID, s.Kind, s.Zone, s.Position, s.Energy, 0, s.Urgency, storeDetail{s.Actions})
		if err := add("stores", r, err); err != nil {
			return err
		}
	}
	for _, c := range st.Carriers {
		r, err := row(c.ID, c.Kind, c.Zone, c.Position, c.Energy, 0, c.Urgency, carrierDetail{c.DecayTiming, c.Reservation})
		if err := add("carriers", r, err); err != nil {
			return err
		}
	}
	for _, w := range st.Workers {
		r, err := row(w.ID, w.Kind, w.Zone, w.Position, w.Energy, 0, logistics.Urgency{}, struct{}{})
		if err := add("workers", r, err); err != nil {
			return err
		}
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range entityTables {
		if err := insertRows(tx, t, tables[t]); err != nil {
			return err
		}
	}

	if _, err := tx.Exec("DELETE FROM leases"); err != nil {
		return err
	}
	for zone, table := range st.Leases {
		for _, l := range table {
			_, err := tx.Exec(`INSERT INTO leases
				(id, zone, requester_id, source_id, amount, created_tick, expires_tick)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				l.ID, zone, l.RequesterID, l.SourceID, l.Amount, l.CreatedTick, l.ExpiresTick,
			)
			if err != nil {
				return fmt.Errorf("insert lease %s: %w", l.ID, err)
			}
		}
	}

	if _, err := tx.Exec("DELETE FROM deficits"); err != nil {
		return err
	}
	for zone, d := range st.HaulingDeficit {
		_, err := tx.Exec("INSERT INTO deficits (zone, demand, supply, net) VALUES (?, ?, ?, ?)",
			zone, d.Demand, d.Supply, d.Net)
		if err != nil {
			return fmt.Errorf("insert deficit %s: %w", zone, err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES ('last_tick', ?)",
		strconv.FormatUint(st.Tick, 10)); err != nil {
		return err
	}

	return tx.Commit()
}

type leaseRow struct {
	ID          string `db:"id"`
	Zone        string `db:"zone"`
	RequesterID string `db:"requester_id"`
	SourceID    string `db:"source_id"`
	Amount      int    `db:"amount"`
	CreatedTick uint64 `db:"created_tick"`
	ExpiresTick uint64 `db:"expires_tick"`
}

type deficitRow struct {
	Zone   string  `db:"zone"`
	Demand float64 `db:"demand"`
	Supply float64 `db:"supply"`
	Net    float64 `db:"net"`
}

func (db *DB) selectRows(table string) ([]entityRow, error) {
	var rows []entityRow
	err := db.conn.Select(&rows, "SELECT * FROM "+table+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return rows, nil
}

// LoadState rebuilds a registry from the database. Reservation ledgers are
// reconstructed from the bound leases.
func (db *DB) LoadState() (*logistics.State, error) {
	st := logistics.NewState()
	if tick, err := db.GetMeta("last_tick"); err == nil {
		if st.Tick, err = strconv.ParseUint(tick, 10, 64); err != nil {
			return nil, fmt.Errorf("load last_tick %q: %w", tick, err)
		}
	}

	rows, err := db.selectRows("producers")
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		u, err := r.urgency()
		if err != nil {
			return nil, fmt.Errorf("producer %s: %w", r.ID, err)
		}
		var d producerDetail
		if err := json.Unmarshal([]byte(r.DetailJSON), &d); err != nil {
			return nil, fmt.Errorf("producer %s: %w", r.ID, err)
		}
		if err := st.RegisterProducer(&logistics.Producer{
			ID: logistics.EntityID(r.ID), Energy: r.energy(), Position: r.pos(), Zone: world.ZoneID(r.Zone),
			Urgency: u, WithdrawTiming: d.WithdrawTiming, ProductionPerTick: r.Rate, Kind: r.Kind,
		}); err != nil {
			return nil, err
		}
	}

	if rows, err = db.selectRows("consumers"); err != nil {
		return nil, err
	}
	for _, r := range rows {
		u, err := r.urgency()
		if err != nil {
			return nil, fmt.Errorf("consumer %s: %w", r.ID, err)
		}
		var d consumerDetail
		if err := json.Unmarshal([]byte(r.DetailJSON), &d); err != nil {
			return nil, fmt.Errorf("consumer %s: %w", r.ID, err)
		}
		if err := st.RegisterConsumer(&logistics.Consumer{
			ID: logistics.EntityID(r.ID), Energy: r.energy(), Position: r.pos(), Zone: world.ZoneID(r.Zone),
			Urgency: u, DepositTiming: d.DepositTiming, DecayTiming: d.DecayTiming,
			ProductionPerTick: r.Rate, Kind: r.Kind,
		}); err != nil {
			return nil, err
		}
	}

	if rows, err = db.selectRows("stores"); err != nil {
		return nil, err
	}
	for _, r := range rows {
		u, err := r.urgency()
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", r.ID, err)
		}
		var d storeDetail
		if err := json.Unmarshal([]byte(r.DetailJSON), &d); err != nil {
			return nil, fmt.Errorf("store %s: %w", r.ID, err)
		}
		if err := st.RegisterStore(&logistics.Store{
			ID: logistics.EntityID(r.ID), Actions: d.Actions, Energy: r.energy(), Position: r.pos(),
			Zone: world.ZoneID(r.Zone), Urgency: u, Kind: r.Kind,
		}); err != nil {
			return nil, err
		}
	}

	if rows, err = db.selectRows("carriers"); err != nil {
		return nil, err
	}
	for _, r := range rows {
		u, err := r.urgency()
		if err != nil {
			return nil, fmt.Errorf("carrier %s: %w", r.ID, err)
		}
		var d carrierDetail
		if err := json.Unmarshal([]byte(r.DetailJSON), &d); err != nil {
			return nil, fmt.Errorf("carrier %s: %w", r.ID, err)
		}
		if err := st.RegisterCarrier(&logistics.Carrier{
			ID: logistics.EntityID(r.ID), Energy: r.energy(), Position: r.pos(), Zone: world.ZoneID(r.Zone),
			Urgency: u, DecayTiming: d.DecayTiming, Reservation: d.Reservation, Kind: r.Kind,
		}); err != nil {
			return nil, err
		}
	}

	if rows, err = db.selectRows("workers"); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := st.RegisterWorker(&logistics.Worker{
			ID: logistics.EntityID(r.ID), Energy: r.energy(), Position: r.pos(),
			Zone: world.ZoneID(r.Zone), Kind: r.Kind,
		}); err != nil {
			return nil, err
		}
	}

	var leases []leaseRow
	if err := db.conn.Select(&leases, "SELECT * FROM leases ORDER BY created_tick, id"); err != nil {
		return nil, fmt.Errorf("load leases: %w", err)
	}
	for _, r := range leases {
		zone := world.ZoneID(r.Zone)
		if st.Leases[zone] == nil {
			st.Leases[zone] = make(map[logistics.LeaseID]*logistics.Lease)
		}
		l := &logistics.Lease{
			ID:          logistics.LeaseID(r.ID),
			RequesterID: logistics.EntityID(r.RequesterID),
			SourceID:    logistics.EntityID(r.SourceID),
			Amount:      r.Amount,
			CreatedTick: r.CreatedTick,
			ExpiresTick: r.ExpiresTick,
		}
		st.Leases[zone][l.ID] = l
		if !l.Bound() {
			continue
		}
		if p, ok := st.Producers[l.SourceID]; ok {
			p.Reservations[l.ID] = l.Amount
		} else if s, ok := st.Stores[l.SourceID]; ok {
			s.Reservations[l.ID] = l.Amount
		}
	}

	var deficits []deficitRow
	if err := db.conn.Select(&deficits, "SELECT * FROM deficits"); err != nil {
		return nil, fmt.Errorf("load deficits: %w", err)
	}
	for _, d := range deficits {
		st.HaulingDeficit[world.ZoneID(d.Zone)] = logistics.Deficit{Demand: d.Demand, Supply: d.Supply, Net: d.Net}
	}

	return st, nil
}

// HasState reports whether a registry has been saved.
func (db *DB) HasState() bool {
	_, err := db.GetMeta("last_tick")
	return err == nil
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorldState checkpoints the simulation: registry, then pending events.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	return sim.Checkpoint(func(tick uint64, st *logistics.State, events []engine.Event) error {
		slog.Info("saving scheduler state",
			"tick", tick,
			"carriers", len(st.Carriers),
			"leases", len(st.Leases),
			"events", len(events),
		)
		if err := db.SaveState(st); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		if err := db.SaveEvents(events); err != nil {
			return fmt.Errorf("save events: %w", err)
		}
		slog.Info("scheduler state saved")
		return nil
	})
}

// RecentEvents returns the most recent N events.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
