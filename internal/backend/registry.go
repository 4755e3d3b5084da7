package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PlateRecord is an uploaded plate together with the source file it was read from.
type PlateRecord struct {
	ID         string
	Filename   string
	SourcePath string
	PlateIndex int
	PrintTime  int
	Weight     float64
	ImageURL   string
	CreatedAt  time.Time
}

// Registry remembers uploaded plates so generate requests can refer to them by id.
type Registry interface {
	SavePlates(ctx context.Context, plates []PlateRecord) error
	LookupPlates(ctx context.Context, ids []string) (map[string]PlateRecord, error)
}

var ErrUnknownPlate = errors.New("unknown plate id")

// DB is implemented by *pgxpool.Pool and pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func AutoMigrate(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS plates (
          id          TEXT PRIMARY KEY,
          filename    TEXT NOT NULL,
          source_path TEXT NOT NULL,
          plate_index INT NOT NULL,
          print_time  INT NOT NULL DEFAULT 0,
          weight      DOUBLE PRECISION NOT NULL DEFAULT 0,
          image_url   TEXT NOT NULL DEFAULT '',
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `)
	if err != nil {
		return fmt.Errorf("migrate plates: %w", err)
	}
	return nil
}

type PGRegistry struct {
	db DB
}

func NewPGRegistry(db DB) *PGRegistry {
	return &PGRegistry{db: db}
}

func (r *PGRegistry) SavePlates(ctx context.Context, plates []PlateRecord) error {
	for _, p := range plates {
		_, err := r.db.Exec(ctx, `
			INSERT INTO plates (id, filename, source_path, plate_index, print_time, weight, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Filename, p.SourcePath, p.PlateIndex, p.PrintTime, p.Weight, p.ImageURL)
		if err != nil {
			return fmt.Errorf("save plate %s: %w", p.ID, err)
		}
	}
	return nil
}

func (r *PGRegistry) LookupPlates(ctx context.Context, ids []string) (map[string]PlateRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, filename, source_path, plate_index, print_time, weight, image_url, created_at
		FROM plates
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup plates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]PlateRecord, len(ids))
	for rows.Next() {
		var p PlateRecord
		if err := rows.Scan(&p.ID, &p.Filename, &p.SourcePath, &p.PlateIndex, &p.PrintTime, &p.Weight, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan plate: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup plates: %w", err)
	}
	return out, nil
}

// MemoryRegistry keeps plates for the lifetime of the process.
type MemoryRegistry struct {
	mu     sync.RWMutex
	plates map[string]PlateRecord
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{plates: make(map[string]PlateRecord)}
}

func (r *MemoryRegistry) SavePlates(_ context.Context, plates []PlateRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range plates {
		if _, ok := r.plates[p.ID]; ok {
			continue
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		r.plates[p.ID] = p
	}
	return nil
}

func (r *MemoryRegistry) LookupPlates(_ context.Context, ids []string) (map[string]PlateRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]PlateRecord, len(ids))
	for _, id := range ids {
		if p, ok := r.plates[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
