package mapper

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minFuzzyHeader is the shortest normalized header tried with subsequence
// matching; shorter ones only match exactly.
const minFuzzyHeader = 3

// formatHint matches bracketed annotations such as "(MM/DD/YYYY)" or "[kg]",
// which are ignored when matching.
var formatHint = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

// FuzzySuggester matches headers to columns without a network call. It tries,
// in order: an exact match against a column name or alias after
// normalization, a header that contains every word of a name or alias and no
// word foreign to that column, and subsequence matching. Bracketed format
// hints are ignored. It backs the offline CLI mode and the fuzzy provider.
type FuzzySuggester struct{}

// SuggestMapping implements Suggester.
func (FuzzySuggester) SuggestMapping(_ context.Context, req Request) (map[string]string, error) {
	type key struct {
		text   string
		column string
	}
	var keys []key
	vocab := make(map[string]map[string]bool)
	for _, c := range req.Candidates {
		keys = append(keys, key{normalizeHeader(c.Name), c.Name})
		for _, a := range c.Aliases {
			keys = append(keys, key{normalizeHeader(a), c.Name})
		}
	}
	for _, k := range keys {
		if vocab[k.column] == nil {
			vocab[k.column] = make(map[string]bool)
		}
		for _, w := range strings.Fields(k.text) {
			vocab[k.column][w] = true
		}
	}

	out := make(map[string]string)
	used := make(map[string]bool)
	assign := func(h, col string) bool {
		if used[col] {
			return false
		}
		used[col] = true
		out[h] = col
		return true
	}

	norms := make([]string, len(req.Headers))
	for i, h := range req.Headers {
		norms[i] = normalizeHeader(formatHint.ReplaceAllString(h, " "))
	}

	// Exact matches first so they cannot be claimed by a looser match.
	for i, h := range req.Headers {
		for _, k := range keys {
			if k.text == norms[i] && assign(h, k.column) {
				break
			}
		}
	}

	// Whole-word containment, longest key first. Every header word must
	// belong to the column's own names, so "Internal Notes" does not match
	// an alias "Notes".
	byLen := append([]key(nil), keys...)
	sort.SliceStable(byLen, func(a, b int) bool { return len(byLen[a].text) > len(byLen[b].text) })
	for i, h := range req.Headers {
		if _, done := out[h]; done {
			continue
		}
		words := strings.Fields(norms[i])
		for _, k := range byLen {
			if len(k.text) >= 4 && containsWords(words, strings.Fields(k.text)) &&
				withinVocab(words, vocab[k.column]) && assign(h, k.column) {
				break
			}
		}
	}

	// Subsequence matching with sahilm/fuzzy, best score wins.
	data := make([]string, len(keys))
	for i, k := range keys {
		data[i] = k.text
	}
	for i, h := range req.Headers {
		if _, done := out[h]; done || len([]rune(norms[i])) < minFuzzyHeader {
			continue
		}
		for _, m := range fuzzy.Find(norms[i], data) {
			if assign(h, keys[m.Index].column) {
				break
			}
		}
	}

	return out, nil
}

// normalizeHeader lowercases, strips accents and turns punctuation and
// underscores into single spaces: "Médication_Name " becomes "medication name".
func normalizeHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// withinVocab reports whether every word is one of vocab.
func withinVocab(words []string, vocab map[string]bool) bool {
	for _, w := range words {
		if !vocab[w] {
			return false
		}
	}
	return true
}

func containsWords(haystack, needles []string) bool {
	if len(needles) == 0 {
		return false
	}
	set := make(map[string]bool, len(haystack))
	for _, w := range haystack {
		set[w] = true
	}
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
}
