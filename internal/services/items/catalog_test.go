package items

import (
	"context"
	"errors"
	"testing"

	"osrs-market/internal/services/wiki"
)

type fakeMapping struct {
	entries []wiki.ItemMapping
	err     error
	calls   int
}

func (f *fakeMapping) Mapping(context.Context) ([]wiki.ItemMapping, error) {
	f.calls++
	return f.entries, f.err
}

func testMapping() *fakeMapping {
	return &fakeMapping{entries: []wiki.ItemMapping{
		{ID: 440, Name: "Iron ore"},
		{ID: 453, Name: "Coal"},
		{ID: 2, Name: "Cannonball"},
		{ID: 436, Name: "Copper ore"},
		{ID: 438, Name: "Tin ore"},
		{ID: 9001, Name: "Énergy rune"},
		{ID: 440, Name: "Iron ore duplicate"}, // duplicate id, dropped
	}}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  iron ORE  ", "Iron ore"},
		{"COAL", "Coal"},
		{"cannonball", "Cannonball"},
		{"   ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	catalog := NewCatalog(testMapping())
	ctx := context.Background()

	id, err := catalog.Resolve(ctx, "  iron ORE  ")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != 440 {
		t.Errorf("Resolve() = %d, want 440", id)
	}

	if _, err := catalog.Resolve(ctx, "rune scimmy"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
	if _, err := catalog.Resolve(ctx, "   "); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(blank) error = %v, want ErrNotFound", err)
	}
}

func TestResolveFetchError(t *testing.T) {
	catalog := NewCatalog(&fakeMapping{err: errors.New("upstream down")})
	if _, err := catalog.Resolve(context.Background(), "Coal"); err == nil {
		t.Error("Resolve() succeeded with a failing mapping fetch")
	}
}

func TestAutocomplete(t *testing.T) {
	catalog := NewCatalog(testMapping())
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"substring in mapping order", "ore", 10, []string{"Iron ore", "Copper ore", "Tin ore"}},
		{"case insensitive", "ORE", 10, []string{"Iron ore", "Copper ore", "Tin ore"}},
		{"limit applies", "ore", 2, []string{"Iron ore", "Copper ore"}},
		{"too short", "o", 10, []string{}},
		{"one multibyte rune is still too short", "É", 10, []string{}},
		{"two runes pass the gate", "én", 10, []string{"Énergy rune"}},
		{"no match", "zz", 10, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := catalog.Autocomplete(ctx, tt.query, tt.limit)
			if err != nil {
				t.Fatalf("Autocomplete() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Autocomplete() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("position %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestName(t *testing.T) {
	catalog := NewCatalog(testMapping())
	ctx := context.Background()

	if got := catalog.Name(ctx, 453); got != "Coal" {
		t.Errorf("Name(453) = %q, want Coal", got)
	}
	if got := catalog.Name(ctx, 99999); got != "Item 99999" {
		t.Errorf("Name(unknown) = %q, want fallback", got)
	}
}

func TestMappingLoadedOnce(t *testing.T) {
	fetcher := testMapping()
	catalog := NewCatalog(fetcher)
	ctx := context.Background()

	catalog.Resolve(ctx, "Coal")
	catalog.Autocomplete(ctx, "ore", 10)
	catalog.Name(ctx, 440)

	if fetcher.calls != 1 {
		t.Errorf("mapping fetched %d times, want 1", fetcher.calls)
	}

	if err := catalog.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if fetcher.calls != 2 {
		t.Errorf("mapping fetched %d times after Refresh, want 2", fetcher.calls)
	}
}
