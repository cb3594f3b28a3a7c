package items

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"osrs-market/internal/services/wiki"
)

var ErrNotFound = errors.New("item not found")

// MappingFetcher is the slice of the wiki client the catalog needs.
type MappingFetcher interface {
	Mapping(ctx context.Context) ([]wiki.ItemMapping, error)
}

// Catalog is a read-through cache of the upstream item mapping. It is
// populated on first use (or an explicit Refresh) and shared by every
// caller that needs name resolution.
type Catalog struct {
	fetcher MappingFetcher

	mu    sync.RWMutex
	byID  map[int]wiki.ItemMapping
	order []int // mapping order, kept for deterministic iteration
}

func NewCatalog(fetcher MappingFetcher) *Catalog {
	return &Catalog{fetcher: fetcher}
}

// Refresh replaces the cached mapping with a fresh fetch.
func (c *Catalog) Refresh(ctx context.Context) error {
	mapping, err := c.fetcher.Mapping(ctx)
	if err != nil {
		return fmt.Errorf("refresh item mapping: %w", err)
	}

	byID := make(map[int]wiki.ItemMapping, len(mapping))
	order := make([]int, 0, len(mapping))
	for _, m := range mapping {
		if _, ok := byID[m.ID]; ok {
			continue
		}
		byID[m.ID] = m
		order = append(order, m.ID)
	}

	c.mu.Lock()
	c.byID = byID
	c.order = order
	c.mu.Unlock()
	return nil
}

func (c *Catalog) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.byID != nil
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Refresh(ctx)
}

// NormalizeName applies the upstream naming convention: surrounding
// whitespace trimmed, lower-cased, first rune capitalized.
// "  iron ORE  " -> "Iron ore".
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	runes := []rune(name)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Resolve maps a free-text item name to its id. The input is normalized
// first and then matched case-sensitively. If two mapping entries share
// a display name the first in mapping order wins; that ordering is an
// upstream accident, not a contract.
func (c *Catalog) Resolve(ctx context.Context, name string) (int, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return 0, fmt.Errorf("%w: empty name", ErrNotFound)
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		if c.byID[id].Name == normalized {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, normalized)
}

// Autocomplete returns up to limit item names containing the query as a
// case-insensitive substring, in mapping order. Queries shorter than two
// characters (runes, not bytes) return nothing.
func (c *Catalog) Autocomplete(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(query) < 2 {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	suggestions := make([]string, 0, limit)
	for _, id := range c.order {
		name := c.byID[id].Name
		if name == "" {
			continue
		}
		if strings.Contains(strings.ToLower(name), query) {
			suggestions = append(suggestions, name)
			if len(suggestions) >= limit {
				break
			}
		}
	}
	return suggestions, nil
}

// Name returns the display name for an id, falling back to "Item <id>"
// for ids missing from the mapping.
func (c *Catalog) Name(ctx context.Context, itemID int) string {
	if err := c.ensureLoaded(ctx); err != nil {
		return "Item " + strconv.Itoa(itemID)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.byID[itemID]; ok && m.Name != "" {
		return m.Name
	}
	return "Item " + strconv.Itoa(itemID)
}
