package provider

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"reelscrape/internal/challenge"
	"reelscrape/internal/fetch"
	"reelscrape/internal/media"
	"reelscrape/internal/tmdb"
	"reelscrape/internal/token"
)

// Registry holds the known sources and embeds.
type Registry struct {
	sources  []Source
	embeds   map[string]Embed
	disabled map[string]bool
}

// NewRegistry creates an empty registry. Providers whose id is in disabled
// are kept for listing but never run.
func NewRegistry(disabled ...string) *Registry {
	return &Registry{
		embeds:   make(map[string]Embed),
		disabled: lo.SliceToMap(disabled, func(id string) (string, bool) { return id, true }),
	}
}

// AddSource registers a source. Ids must be unique.
func (r *Registry) AddSource(s Source) error {
	id := s.Registration().ID
	if _, ok := r.Source(id); ok {
		return fmt.Errorf("duplicate source %q", id)
	}
	r.sources = append(r.sources, s)
	return nil
}

// AddEmbed registers an embed scraper. Ids must be unique.
func (r *Registry) AddEmbed(e Embed) error {
	id := e.Registration().ID
	if _, ok := r.embeds[id]; ok {
		return fmt.Errorf("duplicate embed %q", id)
	}
	r.embeds[id] = e
	return nil
}

// Source returns the source with the given id.
func (r *Registry) Source(id string) (Source, bool) {
	return lo.Find(r.sources, func(s Source) bool { return s.Registration().ID == id })
}

// Embed returns the enabled embed scraper with the given id.
func (r *Registry) Embed(id string) (Embed, bool) {
	e, ok := r.embeds[id]
	if !ok || r.disabled[id] {
		return nil, false
	}
	return e, true
}

// Sources returns the enabled sources, highest rank first.
func (r *Registry) Sources() []Source {
	out := lo.Filter(r.sources, func(s Source, _ int) bool { return !r.disabled[s.Registration().ID] })
	slices.SortStableFunc(out, func(a, b Source) int {
		return cmp.Compare(b.Registration().Rank, a.Registration().Rank)
	})
	return out
}

// Disabled reports whether a provider id was disabled.
func (r *Registry) Disabled(id string) bool {
	return r.disabled[id]
}

// List returns every registered source, enabled or not, highest rank first.
func (r *Registry) List() []media.ProviderRegistration {
	regs := lo.Map(r.sources, func(s Source, _ int) media.ProviderRegistration { return s.Registration() })
	slices.SortStableFunc(regs, func(a, b media.ProviderRegistration) int {
		return cmp.Compare(b.Rank, a.Rank)
	})
	return regs
}

// ListEmbeds returns every registered embed scraper, highest rank first.
func (r *Registry) ListEmbeds() []media.ProviderRegistration {
	regs := lo.MapToSlice(r.embeds, func(_ string, e Embed) media.ProviderRegistration { return e.Registration() })
	slices.SortFunc(regs, func(a, b media.ProviderRegistration) int {
		if c := cmp.Compare(b.Rank, a.Rank); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return regs
}

// Deps are the collaborators of the built-in providers.
type Deps struct {
	Fetcher   fetch.Fetcher
	Tokens    *token.Exchange
	Solver    challenge.Solver
	Titles    *tmdb.Client // Optional
	M3U8Proxy string
	Evaluate  bool // Run unrecognized packed scripts in the JS sandbox
	Disabled  []string
	Log       logrus.FieldLogger
}

// NewDefaultRegistry registers every built-in source and embed.
func NewDefaultRegistry(d Deps) (*Registry, error) {
	r := NewRegistry(d.Disabled...)

	sources := []Source{
		NewMovies4F(d.Fetcher, DefaultMovies4FConfig(), d.Log),
		NewFSOnline(d.Fetcher, FSOnlineOrigin, d.Titles, d.Log),
	}
	for _, cfg := range UiraConfigs {
		sources = append(sources, NewUira(d.Fetcher, cfg, UiraOptions{
			Tokens:    d.Tokens,
			Solver:    d.Solver,
			M3U8Proxy: d.M3U8Proxy,
		}, d.Log))
	}
	for _, s := range sources {
		if err := r.AddSource(s); err != nil {
			return nil, err
		}
	}

	embeds := []Embed{
		NewFilemoon(d.Fetcher, FSOnlineOrigin, d.Evaluate, d.Log),
		Mirror{},
	}
	for _, e := range embeds {
		if err := r.AddEmbed(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}
