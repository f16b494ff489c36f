// Package refdata loads the static reference tables used to validate and
// enrich classification output: the IDX company profile table, the
// sub-sector to sector mapping, the top-tier (largest market cap) company
// list, and the tag vocabulary.
package refdata

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Company is one listed instrument.
type Company struct {
	Symbol    string `json:"symbol"`     // Ticker symbol including the .JK suffix
	Name      string `json:"name"`       // Full company name
	SubSector string `json:"sub_sector"` // Sub-sector slug
}

// Data holds every reference table. It is read-only after Load and safe to
// share across goroutines.
type Data struct {
	companies map[string]Company // keyed by bare symbol, e.g. "BBCA"
	sectors   map[string]string  // sub-sector slug -> sector slug
	topTier   map[string]bool    // bare symbols of top market cap companies
	tags      []string
}

// Load reads the reference tables from JSON files under dir. A missing or
// unreadable file degrades to an empty table with a warning; classification
// then skips the corresponding validation instead of failing.
func Load(dir string, log *slog.Logger) *Data {
	d := &Data{
		companies: make(map[string]Company),
		sectors:   make(map[string]string),
		topTier:   make(map[string]bool),
	}

	var companies map[string]Company
	if readJSON(filepath.Join(dir, "companies.json"), &companies, log) {
		for key, c := range companies {
			if c.Symbol == "" {
				c.Symbol = withJK(key)
			}
			d.companies[bareSymbol(key)] = c
		}
	}

	readJSON(filepath.Join(dir, "sectors_data.json"), &d.sectors, log)

	var top []string
	if readJSON(filepath.Join(dir, "top_companies.json"), &top, log) {
		for _, sym := range top {
			d.topTier[bareSymbol(sym)] = true
		}
	}

	readJSON(filepath.Join(dir, "unique_tags.json"), &d.tags, log)

	log.Info("reference data loaded",
		"dir", dir,
		"companies", len(d.companies),
		"sectors", len(d.sectors),
		"top_tier", len(d.topTier),
		"tags", len(d.tags))
	return d
}

func readJSON(path string, v any, log *slog.Logger) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("reference table unavailable", "path", path, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn("reference table malformed", "path", path, "error", err)
		return false
	}
	return true
}

// NormalizeTicker uppercases a symbol and appends the .JK exchange suffix
// when absent, so "bbca" and "BBCA.JK" refer to the same instrument.
func NormalizeTicker(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if sym == "" {
		return ""
	}
	if i := strings.IndexByte(sym, '.'); i >= 0 {
		return sym[:i] + ".JK"
	}
	return sym + ".JK"
}

func bareSymbol(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if i := strings.IndexByte(sym, '.'); i >= 0 {
		return sym[:i]
	}
	return sym
}

func withJK(sym string) string {
	return bareSymbol(sym) + ".JK"
}

// ValidTicker reports whether the symbol, with or without the .JK suffix,
// corresponds to a known instrument. An empty company table accepts nothing.
func (d *Data) ValidTicker(sym string) bool {
	_, ok := d.companies[bareSymbol(sym)]
	return ok
}

// Company returns the profile for a symbol.
func (d *Data) Company(sym string) (Company, bool) {
	c, ok := d.companies[bareSymbol(sym)]
	return c, ok
}

// SubSectorOf returns the sub-sector slug for a symbol, or "" when unknown.
func (d *Data) SubSectorOf(sym string) string {
	if c, ok := d.companies[bareSymbol(sym)]; ok {
		return c.SubSector
	}
	return ""
}

// SectorOf maps a sub-sector slug to its sector, or "" when unknown.
func (d *Data) SectorOf(subSector string) string {
	return d.sectors[strings.ToLower(strings.TrimSpace(subSector))]
}

// KnownSubSector reports whether the slug appears in the sectors table.
func (d *Data) KnownSubSector(slug string) bool {
	_, ok := d.sectors[strings.ToLower(strings.TrimSpace(slug))]
	return ok
}

// IsTopTier reports whether the symbol is on the top market cap list.
func (d *Data) IsTopTier(sym string) bool {
	return d.topTier[bareSymbol(sym)]
}

// Tags returns the tag vocabulary. May be empty.
func (d *Data) Tags() []string {
	return d.tags
}

// TickerSymbols returns every known symbol (with suffix) in sorted order,
// for inclusion in classification prompts.
func (d *Data) TickerSymbols() []string {
	out := make([]string, 0, len(d.companies))
	for _, c := range d.companies {
		out = append(out, c.Symbol)
	}
	sort.Strings(out)
	return out
}

// SubSectorSlugs returns every known sub-sector slug in sorted order.
func (d *Data) SubSectorSlugs() []string {
	out := make([]string, 0, len(d.sectors))
	for slug := range d.sectors {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
