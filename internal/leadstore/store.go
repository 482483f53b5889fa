package leadstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/boothworks/leadcore/internal/config"
	_ "modernc.org/sqlite"
)

// Lead capture kinds.
const (
	TypeAudio = "audio"
	TypeImage = "image"
)

// ErrBoothNotFound is returned when a lead references a booth that does not
// exist. The store never defaults or invents a booth.
var ErrBoothNotFound = errors.New("booth not found")

// Booth is a registered capture point at an event.
type Booth struct {
	ID        int64
	Name      string
	Event     string
	Location  string
	CreatedAt time.Time
}

// Lead is the durable record produced by a pipeline run. Nil fields were
// unknown at extraction time. Leads are immutable once created.
type Lead struct {
	ID         int64
	BoothID    int64
	Name       *string
	Email      *string
	Phone      *string
	Company    *string
	Notes      *string
	Interest   *string
	Source     string
	Type       string
	Confidence *float64
	Remarks    *string
	CreatedAt  time.Time
}

// Store wraps the SQLite-backed booth and lead tables.
type Store struct {
	db    *sql.DB
	cfg   config.LeadStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the lead store according to config.
func Open(ctx context.Context, cfg config.LeadStoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("lead store vacuum failed", slog.String("error", err.Error()))
		}
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS booths (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    event TEXT,
    location TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS leads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    booth_id INTEGER NOT NULL,
    name TEXT,
    email TEXT,
    phone TEXT,
    company TEXT,
    notes TEXT,
    interest TEXT,
    source TEXT NOT NULL,
    type TEXT NOT NULL,
    confidence REAL,
    remarks TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(booth_id) REFERENCES booths(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_leads_booth_created ON leads(booth_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateBooth registers a booth and returns it with its assigned ID.
func (s *Store) CreateBooth(ctx context.Context, name, event, location string) (Booth, error) {
	now := s.clock().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO booths(name, event, location, created_at) VALUES(?, ?, ?, ?)`,
		name, event, location, now)
	if err != nil {
		return Booth{}, fmt.Errorf("create booth: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Booth{}, err
	}
	return Booth{ID: id, Name: name, Event: event, Location: location, CreatedAt: now}, nil
}

// BoothExists reports whether the given booth ID is registered.
func (s *Store) BoothExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM booths WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check booth: %w", err)
	}
	return exists, nil
}

// DeleteBooth removes a booth; its leads cascade away with it.
func (s *Store) DeleteBooth(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM booths WHERE id = ?`, id)
	return err
}

// CreateLead persists a lead. The referenced booth must exist; an unknown
// booth yields ErrBoothNotFound rather than a silently orphaned row.
func (s *Store) CreateLead(ctx context.Context, lead Lead) (Lead, error) {
	ok, err := s.BoothExists(ctx, lead.BoothID)
	if err != nil {
		return Lead{}, err
	}
	if !ok {
		return Lead{}, fmt.Errorf("%w: id %d", ErrBoothNotFound, lead.BoothID)
	}

	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = s.clock().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads(booth_id, name, email, phone, company, notes, interest, source, type, confidence, remarks, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.BoothID, lead.Name, lead.Email, lead.Phone, lead.Company, lead.Notes,
		lead.Interest, lead.Source, lead.Type, lead.Confidence, lead.Remarks, lead.CreatedAt)
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Lead{}, err
	}
	lead.ID = id
	return lead, nil
}

// ListBoothLeads retrieves up to limit leads for a booth, newest first.
func (s *Store) ListBoothLeads(ctx context.Context, boothID int64, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, booth_id, name, email, phone, company, notes, interest, source, type, confidence, remarks, created_at
		 FROM leads WHERE booth_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, boothID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var l Lead
		var created string
		if err := rows.Scan(&l.ID, &l.BoothID, &l.Name, &l.Email, &l.Phone, &l.Company,
			&l.Notes, &l.Interest, &l.Source, &l.Type, &l.Confidence, &l.Remarks, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			l.CreatedAt = ts
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}
