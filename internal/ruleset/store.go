// Package ruleset persists confirmed extraction Rule Sets to sqlite, in the same
// plain database/sql style as the teacher's job store — no ORM, JSON-blob columns for
// nested structures, an in-memory cache rebuilt on load.
package ruleset

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/assistedscrape/engine/internal/models"
)

// Store is a sqlite-backed Rule Set repository with an in-memory read cache.
type Store struct {
	db *sql.DB

	mu    sync.RWMutex
	cache map[string]*models.RuleSet
}

// Open opens (creating if necessary) the sqlite database at path and loads its rule
// sets into the in-memory cache.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	s := &Store{db: db, cache: make(map[string]*models.RuleSet)}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.reload(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS rule_sets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT,
		country TEXT,
		competitor_type TEXT,
		item_container TEXT,
		fields TEXT NOT NULL DEFAULT '[]',
		pagination TEXT,
		dismiss_actions TEXT DEFAULT '[]',
		lazy_load TEXT,
		target_items INTEGER DEFAULT 0,
		max_pages INTEGER DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
	INSERT OR REPLACE INTO schema_version (version, applied_at)
	VALUES (1, datetime('now'))`)
	return err
}

// reload rebuilds the in-memory cache from the database, tolerating per-row scan
// failures the way the teacher's LoadJobs does rather than aborting the whole load.
func (s *Store) reload() error {
	rows, err := s.db.Query(`SELECT
		id, name, url, country, competitor_type, item_container, fields,
		pagination, dismiss_actions, lazy_load, target_items, max_pages,
		created_at, updated_at
		FROM rule_sets`)
	if err != nil {
		return err
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*models.RuleSet)

	for rows.Next() {
		var rs models.RuleSet
		var url, country, competitorType, itemContainer, paginationJSON, lazyLoadJSON sql.NullString
		var fieldsJSON, dismissActionsJSON string

		if err := rows.Scan(
			&rs.ID, &rs.Name, &url, &country, &competitorType, &itemContainer,
			&fieldsJSON, &paginationJSON, &dismissActionsJSON, &lazyLoadJSON,
			&rs.TargetItems, &rs.MaxPages, &rs.CreatedAt, &rs.UpdatedAt,
		); err != nil {
			continue
		}

		rs.URL = url.String
		rs.Country = country.String
		rs.CompetitorType = competitorType.String
		rs.ItemContainer = itemContainer.String

		if fieldsJSON != "" {
			json.Unmarshal([]byte(fieldsJSON), &rs.Fields)
		}
		if dismissActionsJSON != "" {
			json.Unmarshal([]byte(dismissActionsJSON), &rs.DismissActions)
		}
		if paginationJSON.Valid && paginationJSON.String != "" && paginationJSON.String != "null" {
			var p models.PaginationDescriptor
			if json.Unmarshal([]byte(paginationJSON.String), &p) == nil {
				rs.Pagination = &p
			}
		}
		if lazyLoadJSON.Valid && lazyLoadJSON.String != "" && lazyLoadJSON.String != "null" {
			var l models.LazyLoadConfig
			if json.Unmarshal([]byte(lazyLoadJSON.String), &l) == nil {
				rs.LazyLoad = &l
			}
		}

		s.cache[rs.ID] = &rs
	}

	return nil
}

// Save inserts or updates a Rule Set, keeping the in-memory cache in sync.
func (s *Store) Save(rs *models.RuleSet) error {
	now := time.Now()
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = now
	}
	rs.UpdatedAt = now

	fieldsJSON, err := json.Marshal(rs.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	dismissJSON, err := json.Marshal(rs.DismissActions)
	if err != nil {
		return fmt.Errorf("marshal dismiss_actions: %w", err)
	}

	var paginationJSON, lazyLoadJSON []byte
	if rs.Pagination != nil {
		if paginationJSON, err = json.Marshal(rs.Pagination); err != nil {
			return fmt.Errorf("marshal pagination: %w", err)
		}
	}
	if rs.LazyLoad != nil {
		if lazyLoadJSON, err = json.Marshal(rs.LazyLoad); err != nil {
			return fmt.Errorf("marshal lazy_load: %w", err)
		}
	}

	_, err = s.db.Exec(`
		INSERT INTO rule_sets (
			id, name, url, country, competitor_type, item_container, fields,
			pagination, dismiss_actions, lazy_load, target_items, max_pages,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, url=excluded.url, country=excluded.country,
			competitor_type=excluded.competitor_type, item_container=excluded.item_container,
			fields=excluded.fields, pagination=excluded.pagination,
			dismiss_actions=excluded.dismiss_actions, lazy_load=excluded.lazy_load,
			target_items=excluded.target_items, max_pages=excluded.max_pages,
			updated_at=excluded.updated_at`,
		rs.ID, rs.Name, rs.URL, rs.Country, rs.CompetitorType, rs.ItemContainer,
		string(fieldsJSON), string(paginationJSON), string(dismissJSON), string(lazyLoadJSON),
		rs.TargetItems, rs.MaxPages, rs.CreatedAt, rs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save rule set %s: %w", rs.ID, err)
	}

	s.mu.Lock()
	cp := *rs
	s.cache[rs.ID] = &cp
	s.mu.Unlock()

	return nil
}

// Get returns the cached Rule Set for id, or false if it does not exist.
func (s *Store) Get(id string) (*models.RuleSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.cache[id]
	return rs, ok
}

// List returns every cached Rule Set.
func (s *Store) List() []*models.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.RuleSet, 0, len(s.cache))
	for _, rs := range s.cache {
		out = append(out, rs)
	}
	return out
}

// FindByURL returns the first cached Rule Set whose URL matches exactly, used by the
// batch runner to look up a row's configured extraction rules.
func (s *Store) FindByURL(url string) (*models.RuleSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rs := range s.cache {
		if rs.URL == url {
			return rs, true
		}
	}
	return nil, false
}

// Delete removes a Rule Set from both the database and the cache.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM rule_sets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete rule set %s: %w", id, err)
	}
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	return nil
}
