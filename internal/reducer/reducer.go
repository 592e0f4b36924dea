package reducer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/opencall-events/internal/logger"
)

const (
	DefaultMaxChars  = 5000
	DefaultCacheSize = 512
	// TruncationMarker is appended to relevant text cut at the character cap.
	TruncationMarker = "\n... [CONTENT TRUNCATED]"
)

// DefaultKeywords select segments worth keeping from an open-call page.
var DefaultKeywords = []string{
	"exhibition", "open call", "submission", "entry fee", "fee", "deadline",
	"prize", "award", "competition", "cost", "commission", "apply", "closes",
}

// ReducedContent is the output of Reduce. Cached values are shared between
// callers and must not be modified.
type ReducedContent struct {
	Hash           string            `json:"hash"`
	Title          string            `json:"title,omitempty"`
	RelevantText   string            `json:"relevant_text"`
	Truncated      bool              `json:"truncated"`
	Dates          []DateCandidate   `json:"dates"`
	DatesOmitted   int               `json:"dates_omitted"`
	Amounts        []AmountCandidate `json:"amounts"`
	AmountsOmitted int               `json:"amounts_omitted"`
	Segmentation   Segmentation      `json:"segmentation"`
	Fallback       bool              `json:"fallback"`
	StripMode      StripMode         `json:"strip_mode"`
}

// Reducer converts raw markup into ReducedContent. It is safe for concurrent use.
type Reducer struct {
	maxChars   int
	keywords   []string
	cacheSize  int
	cacheTTL   time.Duration
	structural bool
	cache      *resultCache
	metrics    *logger.Metrics
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithMaxChars sets the character cap on relevant text.
func WithMaxChars(n int) Option {
	return func(r *Reducer) {
		if n > 0 {
			r.maxChars = n
		}
	}
}

// WithKeywords replaces the keyword set. Matching is case-insensitive.
func WithKeywords(keywords []string) Option {
	return func(r *Reducer) {
		if len(keywords) > 0 {
			r.keywords = keywords
		}
	}
}

// WithCacheSize bounds the number of cached results. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(r *Reducer) { r.cacheSize = n }
}

// WithCacheTTL expires cached results after d. Zero keeps them until evicted.
func WithCacheTTL(d time.Duration) Option {
	return func(r *Reducer) { r.cacheTTL = d }
}

// WithStructuralParsing toggles the HTML parser. When off, markup is always
// stripped with patterns.
func WithStructuralParsing(enabled bool) Option {
	return func(r *Reducer) { r.structural = enabled }
}

// WithMetrics sets the metrics tracker. Defaults to logger.DefaultMetrics().
func WithMetrics(m *logger.Metrics) Option {
	return func(r *Reducer) { r.metrics = m }
}

// New creates a Reducer with its own cache.
func New(opts ...Option) *Reducer {
	r := &Reducer{
		maxChars:   DefaultMaxChars,
		keywords:   DefaultKeywords,
		cacheSize:  DefaultCacheSize,
		structural: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	lowered := make([]string, 0, len(r.keywords))
	for _, kw := range r.keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	r.keywords = lowered
	r.cache = newResultCache(r.cacheSize, r.cacheTTL)
	if r.metrics == nil {
		r.metrics = logger.DefaultMetrics()
	}
	return r
}

// Reduce strips, filters and extracts from raw. Byte-identical inputs return the
// cached result.
func (r *Reducer) Reduce(raw string) ReducedContent {
	start := time.Now()
	sum := sha256.Sum256([]byte(raw))
	key := hex.EncodeToString(sum[:])

	if cached, ok := r.cache.Get(key); ok {
		r.metrics.IncrCounter("reducer.cache_hits")
		return cached
	}
	r.metrics.IncrCounter("reducer.cache_misses")

	text, title, mode := r.strip(raw)
	segments, segmentation := segment(text)
	kept, fallback := filterSegments(segments, r.keywords)
	relevant := joinSegments(kept, segmentation)

	dates, datesOmitted := extractDates(relevant)
	amounts, amountsOmitted := extractAmounts(relevant)
	bounded, truncated := truncate(relevant, r.maxChars)

	result := ReducedContent{
		Hash:           key,
		Title:          title,
		RelevantText:   bounded,
		Truncated:      truncated,
		Dates:          dates,
		DatesOmitted:   datesOmitted,
		Amounts:        amounts,
		AmountsOmitted: amountsOmitted,
		Segmentation:   segmentation,
		Fallback:       fallback,
		StripMode:      mode,
	}
	r.cache.Set(key, result)

	r.metrics.SetGauge("reducer.cache_size", float64(r.cache.Stats().Size))
	r.metrics.RecordTiming("reducer.duration", time.Since(start))
	return result
}

func (r *Reducer) strip(raw string) (string, string, StripMode) {
	if r.structural {
		text, title, err := stripStructural(raw)
		if err == nil && utf8.RuneCountInString(text) >= minStructuralText {
			return text, title, StripStructural
		}
	}
	text, title := stripPattern(raw)
	return text, title, StripPattern
}

// Stats reports cache activity.
func (r *Reducer) Stats() CacheStats {
	return r.cache.Stats()
}

// truncate cuts s to max characters and appends TruncationMarker when it does.
func truncate(s string, max int) (string, bool) {
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]) + TruncationMarker, true
}

// Report renders reduced content as the plain-text block handed to an
// extraction model.
func Report(rc ReducedContent) string {
	var b strings.Builder
	b.WriteString("PREPROCESSED CONTENT:\n\n")
	if rc.Title != "" {
		fmt.Fprintf(&b, "TITLE: %s\n\n", rc.Title)
	}
	b.WriteString("RELEVANT TEXT:\n")
	b.WriteString(rc.RelevantText)
	b.WriteString("\n\nEXTRACTED STRUCTURED DATA:\n")

	if len(rc.Amounts) == 0 {
		b.WriteString("No prices found in text\n")
	} else {
		b.WriteString("Extracted Prices:\n")
		for i, a := range rc.Amounts {
			fmt.Fprintf(&b, "%d. %s (context: ...%s...)\n", i+1, a.Match, a.Context)
		}
		if rc.AmountsOmitted > 0 {
			fmt.Fprintf(&b, "... and %d more prices found\n", rc.AmountsOmitted)
		}
	}
	b.WriteString("\n")

	if len(rc.Dates) == 0 {
		b.WriteString("No dates found in text\n")
	} else {
		b.WriteString("Extracted Dates:\n")
		for i, d := range rc.Dates {
			fmt.Fprintf(&b, "%d. %s (context: ...%s...)\n", i+1, d.Match, d.Context)
		}
		if rc.DatesOmitted > 0 {
			fmt.Fprintf(&b, "... and %d more dates found\n", rc.DatesOmitted)
		}
	}
	return b.String()
}
