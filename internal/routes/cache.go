package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jisangain/find-my-br-train/internal/timetable"
)

// pairSeparator joins the station pair in on-disk route keys. The dataset
// pipeline has always used this delimiter; changing it breaks cache reuse.
const pairSeparator = "|||"

// cacheDocument is the on-disk shape of the interchange table.
type cacheDocument struct {
	Revision int                 `json:"revision"`
	Routes   map[string][]Option `json:"routes"`
}

// LoadTable reads a cached table from disk. Returns false when the file is
// missing, unreadable, corrupt, or built from a different revision; callers
// then recompute.
func LoadTable(path string, revision int) (*Table, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var doc cacheDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		log.Printf("interchange: ignoring corrupt cache %s: %v", path, err)
		return nil, false
	}
	if doc.Revision != revision {
		log.Printf("interchange: cache revision %d != current %d, recomputing", doc.Revision, revision)
		return nil, false
	}

	table := &Table{Revision: doc.Revision, Routes: make(map[StationPair][]Option, len(doc.Routes))}
	for key, options := range doc.Routes {
		from, to, ok := strings.Cut(key, pairSeparator)
		if !ok {
			log.Printf("interchange: ignoring cache with malformed key %q", key)
			return nil, false
		}
		table.Routes[StationPair{From: from, To: to}] = options
	}
	return table, true
}

// SaveTable writes the table to disk. The document is written to a temp file
// in the same directory and renamed into place, so an interrupted write
// leaves the previous cache intact.
func (t *Table) SaveTable(path string) error {
	doc := cacheDocument{Revision: t.Revision, Routes: make(map[string][]Option, len(t.Routes))}
	for pair, options := range t.Routes {
		doc.Routes[pair.From+pairSeparator+pair.To] = options
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode route cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write route cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close route cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("swap route cache: %w", err)
	}
	return nil
}

// LoadOrBuildTable returns the cached table when the revision matches,
// otherwise precomputes and persists a fresh one. A failed save is logged
// but does not fail the build; the table is still usable in memory.
func LoadOrBuildTable(ctx context.Context, path string, data *timetable.Dataset) (*Table, error) {
	if table, ok := LoadTable(path, data.Revision); ok {
		log.Printf("interchange: loaded %d station pairs from cache (revision %d)", len(table.Routes), table.Revision)
		return table, nil
	}
	table, err := BuildTable(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := table.SaveTable(path); err != nil {
		log.Printf("interchange: cache save failed: %v", err)
	}
	return table, nil
}
