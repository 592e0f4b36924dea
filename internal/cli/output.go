package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/storage"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// WriteOutput writes v in the specified format. Text output is produced by text.
func WriteOutput(w io.Writer, format OutputFormat, v interface{}, text func(io.Writer) error) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, v)
	case FormatText:
		return text(w)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeEvents outputs events as human-readable text
func writeEvents(w io.Writer, events []event.Event, verbose bool) error {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}

	for _, evt := range events {
		fmt.Fprintf(w, "#%d %s\n", evt.ID, evt.Title)
		fmt.Fprintf(w, "     Dates: %s\n", dateSpan(evt))
		fmt.Fprintf(w, "     Where: %s, %s\n", evt.Venue, evt.Location)
		if verbose {
			if evt.County != nil {
				fmt.Fprintf(w, "     County: %s\n", *evt.County)
			}
			fmt.Fprintf(w, "     Link: %d\n", evt.URLID)
			for _, tier := range evt.FeeTiers {
				fmt.Fprintf(w, "     Fee: %s\n", describeTier(tier))
			}
			for _, prize := range evt.Prizes {
				fmt.Fprintf(w, "     Prize: %s\n", describePrize(prize))
			}
		}
	}
	fmt.Fprintf(w, "\nTotal: %d events\n", len(events))
	return nil
}

func dateSpan(evt event.Event) string {
	if evt.DateStart.Equal(evt.DateEnd.Time) {
		return evt.DateStart.String()
	}
	return evt.DateStart.String() + " to " + evt.DateEnd.String()
}

func describeTier(tier event.FeeTier) string {
	var b strings.Builder
	b.WriteString(tier.FeeAmount.StringFixed(2))
	if tier.NumberEntries != nil {
		fmt.Fprintf(&b, " for %d entries", *tier.NumberEntries)
	} else {
		b.WriteString(" flat")
	}
	if tier.FlatRate.Valid {
		fmt.Fprintf(&b, ", flat rate %s", tier.FlatRate.Decimal.StringFixed(2))
	}
	if tier.CommissionPercent.Valid {
		fmt.Fprintf(&b, ", commission %s%%", tier.CommissionPercent.Decimal.String())
	}
	return b.String()
}

func describePrize(prize event.Prize) string {
	var parts []string
	if prize.PrizeRank != nil {
		parts = append(parts, fmt.Sprintf("rank %d", *prize.PrizeRank))
	}
	if prize.PrizeAmount.Valid {
		parts = append(parts, prize.PrizeAmount.Decimal.StringFixed(2))
	}
	if prize.PrizeType != nil {
		parts = append(parts, *prize.PrizeType)
	}
	if prize.PrizeDescription != nil {
		parts = append(parts, *prize.PrizeDescription)
	}
	if len(parts) == 0 {
		return "unspecified"
	}
	return strings.Join(parts, ", ")
}

func writeUpsert(w io.Writer, what string, res event.Upsert) error {
	switch res.Outcome {
	case event.Found:
		fmt.Fprintf(w, "%s already exists (id %d)\n", what, res.ID)
	default:
		fmt.Fprintf(w, "%s created (id %d)\n", what, res.ID)
	}
	return nil
}

func writeLinks(w io.Writer, links []event.SourceLink) error {
	if len(links) == 0 {
		fmt.Fprintln(w, "No unprocessed links.")
		return nil
	}
	for _, link := range links {
		fmt.Fprintf(w, "#%d %s\n", link.ID, link.URL)
		if link.RawTitle != nil {
			fmt.Fprintf(w, "     Title: %s\n", *link.RawTitle)
		}
		if link.RawDate != nil {
			fmt.Fprintf(w, "     Date: %s\n", *link.RawDate)
		}
	}
	fmt.Fprintf(w, "\nTotal: %d links\n", len(links))
	return nil
}

func writeFeeReport(w io.Writer, r storage.FeeReport) error {
	fmt.Fprintln(w, "Fees")
	fmt.Fprintf(w, "  count %d  avg %s  min %s  max %s  total %s\n",
		r.Fees.Count, r.Fees.Average, r.Fees.Min, r.Fees.Max, r.Fees.Total)

	fmt.Fprintln(w, "\nTier distribution")
	if len(r.Distribution) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, b := range r.Distribution {
		fmt.Fprintf(w, "  %3d entries: %d tiers, avg fee %s\n", b.NumberEntries, b.Count, b.AverageFee)
	}

	fmt.Fprintln(w, "\nCommission")
	fmt.Fprintf(w, "  count %d  avg %s%%  min %s%%  max %s%%\n",
		r.Commission.Count, r.Commission.Average, r.Commission.Min, r.Commission.Max)

	fmt.Fprintln(w, "\nFee types")
	if len(r.FeeTypes) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, ft := range r.FeeTypes {
		fmt.Fprintf(w, "  %-5s %d\n", ft.FeeType, ft.Count)
	}
	return nil
}

func writeStats(w io.Writer, s storage.Stats) error {
	fmt.Fprintf(w, "Source links: %d (%d processed, %d pending)\n", s.SourceLinks, s.ProcessedLinks, s.UnprocessedLinks)
	fmt.Fprintf(w, "Events:       %d\n", s.Events)
	fmt.Fprintf(w, "Fee tiers:    %d\n", s.FeeTiers)
	fmt.Fprintf(w, "Prizes:       %d (total %s)\n", s.Prizes, s.TotalPrizeMoney)
	if s.EarliestStart != nil && s.LatestEnd != nil {
		fmt.Fprintf(w, "Date range:   %s to %s\n", s.EarliestStart, s.LatestEnd)
	}
	return nil
}

func writeSchema(w io.Writer, s storage.TableSchema) error {
	fmt.Fprintf(w, "%s (%s)\n", s.Table, s.Driver)
	for _, c := range s.Columns {
		var flags []string
		if c.PrimaryKey {
			flags = append(flags, "primary key")
		}
		if !c.Nullable {
			flags = append(flags, "not null")
		}
		line := fmt.Sprintf("  %s: %s", c.Name, c.Type)
		if len(flags) > 0 {
			line += " (" + strings.Join(flags, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
	if len(s.Indexes) > 0 {
		fmt.Fprintln(w, "Indexes")
		for _, idx := range s.Indexes {
			unique := ""
			if idx.Unique {
				unique = " unique"
			}
			fmt.Fprintf(w, "  %s%s (%s)\n", idx.Name, unique, strings.Join(idx.Columns, ", "))
		}
	}
	return nil
}

func writeCleanup(w io.Writer, r storage.CleanupReport) error {
	fmt.Fprintf(w, "Removed %d rows\n", r.Total())
	fmt.Fprintf(w, "  source links: %d (events relinked: %d)\n", r.SourceLinks, r.EventsRelinked)
	fmt.Fprintf(w, "  events:       %d\n", r.Events)
	fmt.Fprintf(w, "  fee tiers:    %d\n", r.FeeTiers)
	fmt.Fprintf(w, "  prizes:       %d\n", r.Prizes)
	return nil
}

func writeIndexes(w io.Writer, r storage.IndexReport) error {
	fmt.Fprintf(w, "Created: %d, already present: %d\n", len(r.Created), len(r.Existing))
	for _, name := range r.Created {
		fmt.Fprintf(w, "  + %s\n", name)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ! %s: %s\n", e.Name, e.Error)
	}
	return nil
}
