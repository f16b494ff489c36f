package refdata

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeTestTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"companies.json": `{
			"BBCA.JK": {"symbol": "BBCA.JK", "name": "Bank Central Asia", "sub_sector": "banks"},
			"TLKM.JK": {"symbol": "TLKM.JK", "name": "Telkom Indonesia", "sub_sector": "telecommunication"},
			"ADRO":    {"name": "Adaro Energy", "sub_sector": "oil-gas-coal"}
		}`,
		"sectors_data.json": `{
			"banks": "financials",
			"telecommunication": "infrastructures",
			"oil-gas-coal": "energy"
		}`,
		"top_companies.json": `["BBCA.JK", "TLKM"]`,
		"unique_tags.json":   `["dividend", "acquisition", "earnings-report"]`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	d := Load(writeTestTables(t), slog.Default())

	if !d.ValidTicker("BBCA") || !d.ValidTicker("bbca.jk") {
		t.Error("BBCA should be valid with or without suffix")
	}
	if d.ValidTicker("FAKE") {
		t.Error("unknown symbol should be invalid")
	}
	// Entry without an explicit symbol field gets one derived from its key.
	if c, ok := d.Company("ADRO"); !ok || c.Symbol != "ADRO.JK" {
		t.Errorf("expected derived symbol ADRO.JK, got %+v ok=%v", c, ok)
	}

	if got := d.SubSectorOf("TLKM.JK"); got != "telecommunication" {
		t.Errorf("unexpected sub-sector %q", got)
	}
	if got := d.SectorOf("banks"); got != "financials" {
		t.Errorf("unexpected sector %q", got)
	}
	if d.SectorOf("unknown-slug") != "" {
		t.Error("unknown sub-sector should map to empty sector")
	}

	if !d.IsTopTier("BBCA.JK") || !d.IsTopTier("tlkm") {
		t.Error("top tier lookup should normalize symbols")
	}
	if d.IsTopTier("ADRO") {
		t.Error("ADRO is not on the top tier list")
	}

	if len(d.Tags()) != 3 {
		t.Errorf("expected 3 tags, got %d", len(d.Tags()))
	}
	if len(d.TickerSymbols()) != 3 {
		t.Errorf("expected 3 ticker symbols, got %d", len(d.TickerSymbols()))
	}
}

func TestLoadMissingDir(t *testing.T) {
	// Missing tables degrade to empty, they never fail.
	d := Load(filepath.Join(t.TempDir(), "nope"), slog.Default())

	if d.ValidTicker("BBCA") {
		t.Error("empty company table should accept nothing")
	}
	if len(d.SubSectorSlugs()) != 0 {
		t.Error("expected no sub-sectors")
	}
}

func TestNormalizeTicker(t *testing.T) {
	tests := []struct{ in, want string }{
		{"bbca", "BBCA.JK"},
		{"BBCA.JK", "BBCA.JK"},
		{"BBCA.NS", "BBCA.JK"},
		{" tlkm ", "TLKM.JK"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTicker(tt.in); got != tt.want {
			t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
