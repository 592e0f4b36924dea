package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/logger"
)

// FeeSummary aggregates fee amounts. Money is a decimal string with two places.
type FeeSummary struct {
	Count   int64  `json:"count"`
	Average string `json:"average"`
	Min     string `json:"min"`
	Max     string `json:"max"`
	Total   string `json:"total"`
}

// TierBucket aggregates the tiers that apply to one entry count.
type TierBucket struct {
	NumberEntries int    `json:"number_entries"`
	Count         int64  `json:"count"`
	AverageFee    string `json:"average_fee"`
}

// CommissionSummary aggregates commission percentages over tiers that have one.
type CommissionSummary struct {
	Count   int64  `json:"count"`
	Average string `json:"average"`
	Min     string `json:"min"`
	Max     string `json:"max"`
}

// FeeTypeCount is one bar of the fee-type histogram.
type FeeTypeCount struct {
	FeeType event.FeeType `json:"fee_type"`
	Count   int64         `json:"count"`
}

// FeeReport is the result of FeeAnalysisReport.
type FeeReport struct {
	Fees         FeeSummary        `json:"fees"`
	Distribution []TierBucket      `json:"tier_distribution"`
	Commission   CommissionSummary `json:"commission"`
	FeeTypes     []FeeTypeCount    `json:"fee_types"`
}

// Stats is the result of AggregateStats.
type Stats struct {
	SourceLinks      int64       `json:"source_links"`
	ProcessedLinks   int64       `json:"processed_links"`
	UnprocessedLinks int64       `json:"unprocessed_links"`
	Events           int64       `json:"events"`
	FeeTiers         int64       `json:"fee_tiers"`
	Prizes           int64       `json:"prizes"`
	EarliestStart    *event.Date `json:"earliest_start"`
	LatestEnd        *event.Date `json:"latest_end"`
	TotalPrizeMoney  string      `json:"total_prize_money"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// IndexInfo describes one index of a table.
type IndexInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// TableSchema is the result of DescribeSchema.
type TableSchema struct {
	Table   string       `json:"table"`
	Driver  string       `json:"driver"`
	Columns []ColumnInfo `json:"columns"`
	Indexes []IndexInfo  `json:"indexes"`
}

// Tables lists the tables DescribeSchema accepts.
var Tables = []string{"source_links", "events", "fee_tiers", "prizes"}

// money formats an aggregate with two decimal places, treating NULL as zero.
func money(d decimal.NullDecimal) string {
	if !d.Valid {
		return decimal.Zero.StringFixed(2)
	}
	return d.Decimal.StringFixed(2)
}

// FeeAnalysisReport aggregates fee amounts, the per-entry-count tier
// distribution, commission percentages and fee types.
func (s *Store) FeeAnalysisReport(ctx context.Context) (FeeReport, error) {
	const op = "fee_analysis_report"
	start := time.Now()
	db := s.db.WithContext(ctx)
	report := FeeReport{Distribution: []TierBucket{}, FeeTypes: []FeeTypeCount{}}

	var avg, min, max, sum decimal.NullDecimal
	err := db.Raw(`SELECT COUNT(*), AVG(fee_amount), MIN(fee_amount), MAX(fee_amount), SUM(fee_amount) FROM fee_tiers`).
		Row().Scan(&report.Fees.Count, &avg, &min, &max, &sum)
	if err != nil {
		return FeeReport{}, s.observe(op, start, fmt.Errorf("summarising fees: %w", err), nil)
	}
	report.Fees.Average, report.Fees.Min, report.Fees.Max, report.Fees.Total = money(avg), money(min), money(max), money(sum)

	rows, err := db.Raw(`SELECT number_entries, COUNT(*), AVG(fee_amount) FROM fee_tiers
		WHERE number_entries IS NOT NULL GROUP BY number_entries ORDER BY number_entries`).Rows()
	if err != nil {
		return FeeReport{}, s.observe(op, start, fmt.Errorf("tier distribution: %w", err), nil)
	}
	for rows.Next() {
		var bucket TierBucket
		var avgFee decimal.NullDecimal
		if err := rows.Scan(&bucket.NumberEntries, &bucket.Count, &avgFee); err != nil {
			rows.Close()
			return FeeReport{}, s.observe(op, start, fmt.Errorf("tier distribution: %w", err), nil)
		}
		bucket.AverageFee = money(avgFee)
		report.Distribution = append(report.Distribution, bucket)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return FeeReport{}, s.observe(op, start, fmt.Errorf("tier distribution: %w", err), nil)
	}

	var cAvg, cMin, cMax decimal.NullDecimal
	err = db.Raw(`SELECT COUNT(commission_percent), AVG(commission_percent), MIN(commission_percent), MAX(commission_percent) FROM fee_tiers`).
		Row().Scan(&report.Commission.Count, &cAvg, &cMin, &cMax)
	if err != nil {
		return FeeReport{}, s.observe(op, start, fmt.Errorf("summarising commission: %w", err), nil)
	}
	report.Commission.Average, report.Commission.Min, report.Commission.Max = money(cAvg), money(cMin), money(cMax)

	err = db.Raw(`SELECT fee_type, COUNT(*) AS count FROM fee_tiers GROUP BY fee_type ORDER BY fee_type`).
		Scan(&report.FeeTypes).Error
	if err != nil {
		return FeeReport{}, s.observe(op, start, fmt.Errorf("fee types: %w", err), nil)
	}

	return report, s.observe(op, start, nil, logger.Fields{"fee_tiers": report.Fees.Count})
}

// AggregateStats counts rows per table and reports the overall event date span.
func (s *Store) AggregateStats(ctx context.Context) (Stats, error) {
	const op = "aggregate_stats"
	start := time.Now()
	db := s.db.WithContext(ctx)
	var stats Stats

	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&event.SourceLink{}, &stats.SourceLinks},
		{&event.Event{}, &stats.Events},
		{&event.FeeTier{}, &stats.FeeTiers},
		{&event.Prize{}, &stats.Prizes},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dest).Error; err != nil {
			return Stats{}, s.observe(op, start, err, nil)
		}
	}

	err := db.Model(&event.SourceLink{}).
		Where("EXISTS (SELECT 1 FROM events WHERE events.url_id = source_links.id)").
		Count(&stats.ProcessedLinks).Error
	if err != nil {
		return Stats{}, s.observe(op, start, err, nil)
	}
	stats.UnprocessedLinks = stats.SourceLinks - stats.ProcessedLinks

	var earliest, latest event.Date
	if err := db.Raw(`SELECT MIN(date_start), MAX(date_end) FROM events`).Row().Scan(&earliest, &latest); err != nil {
		return Stats{}, s.observe(op, start, fmt.Errorf("event date span: %w", err), nil)
	}
	if !earliest.IsZero() {
		stats.EarliestStart = &earliest
	}
	if !latest.IsZero() {
		stats.LatestEnd = &latest
	}

	var prizeMoney decimal.NullDecimal
	if err := db.Raw(`SELECT SUM(prize_amount) FROM prizes`).Row().Scan(&prizeMoney); err != nil {
		return Stats{}, s.observe(op, start, fmt.Errorf("prize money: %w", err), nil)
	}
	stats.TotalPrizeMoney = money(prizeMoney)

	return stats, s.observe(op, start, nil, logger.Fields{"events": stats.Events})
}

// DescribeSchema lists the columns and indexes of one of the store's tables.
func (s *Store) DescribeSchema(ctx context.Context, table string) (TableSchema, error) {
	const op = "describe_schema"
	start := time.Now()
	fields := logger.Fields{"table": table}

	if !knownTable(table) {
		err := fmt.Errorf("%w %q (available: %s)", ErrUnknownTable, table, strings.Join(Tables, ", "))
		return TableSchema{}, s.observe(op, start, err, fields)
	}

	migrator := s.db.WithContext(ctx).Migrator()
	columns, err := migrator.ColumnTypes(table)
	if err != nil {
		return TableSchema{}, s.observe(op, start, fmt.Errorf("reading columns of %s: %w", table, err), fields)
	}

	schema := TableSchema{Table: table, Driver: s.Driver()}
	for _, col := range columns {
		info := ColumnInfo{Name: col.Name(), Type: strings.ToLower(col.DatabaseTypeName())}
		if nullable, ok := col.Nullable(); ok {
			info.Nullable = nullable
		}
		if pk, ok := col.PrimaryKey(); ok {
			info.PrimaryKey = pk
		}
		schema.Columns = append(schema.Columns, info)
	}

	indexes, err := migrator.GetIndexes(table)
	if err != nil {
		return TableSchema{}, s.observe(op, start, fmt.Errorf("reading indexes of %s: %w", table, err), fields)
	}
	for _, idx := range indexes {
		info := IndexInfo{Name: idx.Name(), Columns: idx.Columns()}
		if unique, ok := idx.Unique(); ok {
			info.Unique = unique
		}
		schema.Indexes = append(schema.Indexes, info)
	}
	sort.Slice(schema.Indexes, func(i, j int) bool { return schema.Indexes[i].Name < schema.Indexes[j].Name })

	return schema, s.observe(op, start, nil, fields)
}

func knownTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}
