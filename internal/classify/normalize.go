package classify

import (
	"strconv"
	"strings"

	"marketwire/internal/core"
	"marketwire/internal/refdata"
)

// splitList breaks a comma- or newline-separated model answer into trimmed
// items, dropping empties and list markers the model sometimes prefixes.
func splitList(raw string) []string {
	raw = strings.NewReplacer("\n", ",", ";", ",").Replace(raw)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		item = strings.TrimLeft(item, "-*• \t")
		item = strings.Trim(item, `"'`)
		if item != "" && !strings.EqualFold(item, "none") && !strings.EqualFold(item, "n/a") {
			out = append(out, item)
		}
	}
	return out
}

// NormalizeTags trims, deduplicates case-insensitively, and, when a tag
// vocabulary is loaded, drops anything outside it.
func NormalizeTags(tags []string, vocab []string) []string {
	known := make(map[string]string, len(vocab))
	for _, t := range vocab {
		known[strings.ToLower(t)] = t
	}

	var out []string
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		if len(known) > 0 {
			canonical, ok := known[key]
			if !ok {
				continue
			}
			t = canonical
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// NormalizeTickers uppercases, appends the exchange suffix, and keeps only
// symbols present in the company table. Hallucinated symbols are dropped.
func NormalizeTickers(tickers []string, ref *refdata.Data) []string {
	var out []string
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		sym := refdata.NormalizeTicker(t)
		if sym == "" || seen[sym] || !ref.ValidTicker(sym) {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if strings.EqualFold(v, item) {
			return list
		}
	}
	return append(list, item)
}

// parseDimensions reads "name: value" lines from the model output. Dimension
// values outside 0..10 are ignored and stay unscored. The same output also
// carries the sentiment label and the predicted sub-sector slug.
func parseDimensions(raw string) (dims map[string]*int, sentiment, subSector string) {
	dims = make(map[string]*int)
	valid := make(map[string]bool, len(core.DimensionKeys))
	for _, k := range core.DimensionKeys {
		valid[k] = true
	}

	for _, line := range strings.Split(raw, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(strings.TrimLeft(name, "-*• \t")))
		value = strings.TrimSpace(value)

		switch {
		case valid[name]:
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 10 {
				continue
			}
			dims[name] = &n
		case name == "sentiment":
			s := strings.ToLower(value)
			if s == "bullish" || s == "bearish" || s == "neutral" {
				sentiment = s
			}
		case name == "sub_sector" || name == "subsector":
			subSector = value
		}
	}
	return dims, sentiment, subSector
}
