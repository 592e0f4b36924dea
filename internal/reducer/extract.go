package reducer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pfrederiksen/opencall-events/internal/event"
)

const (
	// MaxCandidates caps how many matches of each kind are reported.
	MaxCandidates = 10
	// ContextWindow is how many characters either side of a match are kept.
	ContextWindow = 50
)

// AmountKind classifies a monetary match.
type AmountKind string

const (
	AmountCurrency   AmountKind = "currency"
	AmountRange      AmountKind = "range"
	AmountCommission AmountKind = "commission"
)

// DateCandidate is a date-like mention found in the relevant text.
type DateCandidate struct {
	Match         string   `json:"match"`
	Context       string   `json:"context"`
	Groups        []string `json:"groups"`
	Rule          string   `json:"rule"`
	Normalized    string   `json:"normalized,omitempty"`
	NormalizedEnd string   `json:"normalized_end,omitempty"`
}

// AmountCandidate is a fee, price or commission mention. Value and Upper are
// decimal strings; Upper is set for ranges only.
type AmountCandidate struct {
	Match   string     `json:"match"`
	Context string     `json:"context"`
	Groups  []string   `json:"groups"`
	Rule    string     `json:"rule"`
	Kind    AmountKind `json:"kind"`
	Value   string     `json:"value"`
	Upper   string     `json:"upper,omitempty"`
}

type rule struct {
	name string
	kind AmountKind
	re   *regexp.Regexp
}

const (
	money    = `(\d+(?:\.\d{2})?)`
	symbol   = `[£€$]`
	months   = `(January|February|March|April|May|June|July|August|September|October|November|December)`
	numeric  = `(\d{1,2})[/.-](\d{1,2})[/.-](\d{2,4})`
	ordinal  = `(?:st|nd|rd|th)?`
	dayMonth = `(\d{1,2})` + ordinal + `\s+` + months + `\s+(\d{2,4})`
)

// Rules run in order; a match lying inside an earlier accepted match is skipped.
var amountRules = []rule{
	{"currency_symbol", AmountCurrency, regexp.MustCompile(symbol + `\s*` + money)},
	{"currency_word", AmountCurrency, regexp.MustCompile(`(?i)\b` + money + `\s*(?:pounds?|GBP)\b`)},
	{"entry_fee", AmountCurrency, regexp.MustCompile(`(?i)\bentry\s+fee[:\s]*` + symbol + `?\s*` + money)},
	{"submission_fee", AmountCurrency, regexp.MustCompile(`(?i)\bsubmission\s+fee[:\s]*` + symbol + `?\s*` + money)},
	{"cost", AmountCurrency, regexp.MustCompile(`(?i)\bcost[:\s]*` + symbol + `?\s*` + money)},
	{"price", AmountCurrency, regexp.MustCompile(`(?i)\bprice[:\s]*` + symbol + `?\s*` + money)},
	{"fee", AmountCurrency, regexp.MustCompile(`(?i)\bfee[:\s]*` + symbol + `?\s*` + money)},
	{"symbol_range", AmountRange, regexp.MustCompile(symbol + `\s*` + money + `\s*[-–]\s*` + symbol + `\s*` + money)},
	{"word_range", AmountRange, regexp.MustCompile(`(?i)\b(\d+)\s*[-–]\s*(\d+)\s*(?:pounds?|GBP)\b`)},
	{"commission_suffix", AmountCommission, regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s*commission`)},
	{"commission_prefix", AmountCommission, regexp.MustCompile(`(?i)\bcommission[:\s]*(\d+(?:\.\d+)?)\s*%`)},
}

var dateRules = []rule{
	{name: "numeric_day_first", re: regexp.MustCompile(`\b` + numeric + `\b`)},
	{name: "day_month_year", re: regexp.MustCompile(`(?i)\b` + dayMonth + `\b`)},
	{name: "month_day_year", re: regexp.MustCompile(`(?i)\b` + months + `\s+(\d{1,2})` + ordinal + `,?\s+(\d{2,4})\b`)},
	{name: "month_year", re: regexp.MustCompile(`(?i)\b` + months + `\s+(\d{4})\b`)},
	{name: "year_first", re: regexp.MustCompile(`\b(\d{4})[/.-](\d{1,2})[/.-](\d{1,2})\b`)},
	{name: "deadline_numeric", re: regexp.MustCompile(`(?i)\bdeadline[:\s]*` + numeric + `\b`)},
	{name: "deadline_long", re: regexp.MustCompile(`(?i)\bdeadline[:\s]*` + dayMonth + `\b`)},
	{name: "submission_deadline", re: regexp.MustCompile(`(?i)\bsubmission\s+deadline[:\s]*` + numeric + `\b`)},
	{name: "apply_by", re: regexp.MustCompile(`(?i)\bapply\s+by[:\s]*` + numeric + `\b`)},
	{name: "closes", re: regexp.MustCompile(`(?i)\bcloses?[:\s]*` + numeric + `\b`)},
	{name: "opens", re: regexp.MustCompile(`(?i)\bopens?[:\s]*` + numeric + `\b`)},
	{name: "numeric_range", re: regexp.MustCompile(`\b` + numeric + `\s*[-–]\s*` + numeric + `\b`)},
}

// coreDate finds the date text inside a match that may carry a keyword prefix.
var coreDate = regexp.MustCompile(`(?i)\d{4}[/.-]\d{1,2}[/.-]\d{1,2}|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|` +
	dayMonth + `|` + months + `\s+\d{1,2}` + ordinal + `,?\s+\d{2,4}|` + months + `\s+\d{4}`)

type match struct {
	rule   rule
	start  int
	end    int
	groups []string
}

// scan applies rules in order and returns accepted matches plus the total count.
func scan(text string, rules []rule) []match {
	var accepted []match
	for _, r := range rules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if covered(accepted, start, end) {
				continue
			}
			groups := make([]string, 0, len(loc)/2-1)
			for i := 2; i < len(loc); i += 2 {
				if loc[i] < 0 {
					groups = append(groups, "")
					continue
				}
				groups = append(groups, text[loc[i]:loc[i+1]])
			}
			accepted = append(accepted, match{rule: r, start: start, end: end, groups: groups})
		}
	}
	return accepted
}

func covered(accepted []match, start, end int) bool {
	for _, m := range accepted {
		if start >= m.start && end <= m.end {
			return true
		}
	}
	return false
}

// extractAmounts returns up to MaxCandidates amounts and how many were left out.
func extractAmounts(text string) ([]AmountCandidate, int) {
	matches := scan(text, amountRules)
	omitted := 0
	if len(matches) > MaxCandidates {
		omitted = len(matches) - MaxCandidates
		matches = matches[:MaxCandidates]
	}

	out := make([]AmountCandidate, 0, len(matches))
	for _, m := range matches {
		c := AmountCandidate{
			Match:   text[m.start:m.end],
			Context: contextAround(text, m.start, m.end),
			Groups:  m.groups,
			Rule:    m.rule.name,
			Kind:    m.rule.kind,
			Value:   m.groups[0],
		}
		if m.rule.kind == AmountRange && len(m.groups) > 1 {
			c.Upper = m.groups[1]
		}
		out = append(out, c)
	}
	return out, omitted
}

// extractDates returns up to MaxCandidates dates and how many were left out.
func extractDates(text string) ([]DateCandidate, int) {
	matches := scan(text, dateRules)
	omitted := 0
	if len(matches) > MaxCandidates {
		omitted = len(matches) - MaxCandidates
		matches = matches[:MaxCandidates]
	}

	out := make([]DateCandidate, 0, len(matches))
	for _, m := range matches {
		matched := text[m.start:m.end]
		c := DateCandidate{
			Match:   matched,
			Context: contextAround(text, m.start, m.end),
			Groups:  m.groups,
			Rule:    m.rule.name,
		}
		cores := coreDate.FindAllString(matched, 2)
		if len(cores) > 0 {
			c.Normalized = event.NormalizeDateText(cores[0])
		}
		if len(cores) > 1 {
			c.NormalizedEnd = event.NormalizeDateText(cores[1])
		}
		out = append(out, c)
	}
	return out, omitted
}

// contextAround returns the match with up to ContextWindow characters either side.
func contextAround(text string, start, end int) string {
	from := start
	for n := 0; n < ContextWindow && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for n := 0; n < ContextWindow && to < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}
	return strings.TrimSpace(text[from:to])
}
