// Package cache is the on-disk compile cache: canonical patch hash in,
// compiled program out. SQLite keeps it a single file next to the user's
// patches; the cache is an optimization, never a source of truth, and a
// corrupt or stale entry is safely recompiled over.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
)

//go:embed schema.sql
var schemaSQL string

// Cache is a compile cache over one SQLite file.
type Cache struct {
	db *sql.DB
}

// Open creates or opens the cache database at path. WAL mode keeps reads
// concurrent with the single writer; the busy timeout covers two kinet
// processes sharing one cache file.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// PatchHash computes the cache key for a patch: the domain-separated hash
// of its canonical JSON. Sorting first makes block and edge order
// irrelevant to the key.
func PatchHash(p *patch.Patch) (string, error) {
	sorted := *p
	sorted.Blocks = append([]patch.Block(nil), p.Blocks...)
	sorted.Edges = append([]patch.Edge(nil), p.Edges...)
	sorted.Sort()
	return ir.HashCanonical(ir.DomainPatch, &sorted)
}

// Get looks up a compiled program by patch hash. A missing entry is not
// an error; a row that fails to decode is treated as missing so the
// caller recompiles and overwrites it.
func (c *Cache) Get(ctx context.Context, patchHash string) (*ir.CompiledProgram, bool, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT program_json FROM compiled_programs WHERE patch_hash = ?`,
		patchHash,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var prog ir.CompiledProgram
	if err := json.Unmarshal(blob, &prog); err != nil {
		return nil, false, nil
	}
	return &prog, true, nil
}

// Put stores a compiled program under its patch hash, replacing any
// previous entry, and returns the new entry id.
func (c *Cache) Put(ctx context.Context, patchHash string, prog *ir.CompiledProgram) (string, error) {
	progHash, err := prog.ProgramHash()
	if err != nil {
		return "", fmt.Errorf("cache put: %w", err)
	}
	m, err := ir.CanonicalMap(prog)
	if err != nil {
		return "", fmt.Errorf("cache put: %w", err)
	}
	blob, err := ir.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("cache put: %w", err)
	}

	entryID := uuid.NewString()
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO compiled_programs (patch_hash, entry_id, program_hash, program_json)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (patch_hash) DO UPDATE SET
		     entry_id = excluded.entry_id,
		     program_hash = excluded.program_hash,
		     program_json = excluded.program_json`,
		patchHash, entryID, progHash, blob,
	)
	if err != nil {
		return "", fmt.Errorf("cache put: %w", err)
	}
	return entryID, nil
}

// Entries returns (patch hash, program hash) pairs in insertion-stable
// order, for `kinet cache ls` style inspection.
func (c *Cache) Entries(ctx context.Context) ([][2]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT patch_hash, program_hash FROM compiled_programs ORDER BY patch_hash`)
	if err != nil {
		return nil, fmt.Errorf("cache entries: %w", err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var ph, gh string
		if err := rows.Scan(&ph, &gh); err != nil {
			return nil, fmt.Errorf("cache entries: %w", err)
		}
		out = append(out, [2]string{ph, gh})
	}
	return out, rows.Err()
}
