package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/opencall-events/internal/logger"
	"github.com/pfrederiksen/opencall-events/internal/storage"
)

func (a *app) newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Analytical reports over stored events",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "fees",
		Short: "Summarise fee amounts, tier distribution, commission and fee types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				report, err := s.FeeAnalysisReport(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(cmd, report, func(w io.Writer) error {
					return writeFeeReport(w, report)
				})
			})
		},
	})
	return cmd
}

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts, processing progress and date coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				stats, err := s.AggregateStats(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(cmd, stats, func(w io.Writer) error {
					return writeStats(w, stats)
				})
			})
		},
	}
}

func (a *app) newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema TABLE",
		Short:     "Describe the columns and indexes of a table",
		Long:      "Describe the columns and indexes of one of: " + strings.Join(storage.Tables, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: storage.Tables,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				schema, err := s.DescribeSchema(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.output(cmd, schema, func(w io.Writer) error {
					return writeSchema(w, schema)
				})
			})
		},
	}
}

func (a *app) newMaintainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Database housekeeping",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Remove duplicate links and events, then orphaned fee tiers and prizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				report, err := s.CleanupDuplicates(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(cmd, report, func(w io.Writer) error {
					return writeCleanup(w, report)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "indexes",
		Short: "Create any missing query indexes and refresh planner statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				report, err := s.EnsureIndexes(cmd.Context())
				if err != nil {
					return err
				}
				if len(report.Errors) > 0 {
					a.log.Warn("some indexes could not be created", logger.Fields{"failed": len(report.Errors)})
				}
				if err := a.output(cmd, report, func(w io.Writer) error {
					return writeIndexes(w, report)
				}); err != nil {
					return err
				}
				if len(report.Errors) > 0 {
					return fmt.Errorf("%d indexes failed", len(report.Errors))
				}
				return nil
			})
		},
	})

	return cmd
}
