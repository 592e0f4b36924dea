package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/opencall-events/internal/calendar"
	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/filter"
	"github.com/pfrederiksen/opencall-events/internal/logger"
	"github.com/pfrederiksen/opencall-events/internal/storage"
)

func (a *app) newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Add, query and export events",
	}
	cmd.AddCommand(
		a.newEventsAddCmd(),
		a.newEventsImportCmd(),
		a.newEventsQueryCmd(),
		a.newEventsShowCmd(),
		a.newEventsDeleteCmd(),
		a.newEventsExportCmd(),
	)
	return cmd
}

func (a *app) newEventsAddCmd() *cobra.Command {
	var in event.EventInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one event for an existing source link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				id, err := s.AddEvent(cmd.Context(), in)
				if err != nil {
					return err
				}
				res := event.Upsert{ID: id, Outcome: event.Created}
				return a.output(cmd, res, func(w io.Writer) error {
					return writeUpsert(w, "Event", res)
				})
			})
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "Event title")
	cmd.Flags().StringVar(&in.DateStart, "start", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.DateEnd, "end", "", "Last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.Venue, "venue", "", "Venue name")
	cmd.Flags().StringVar(&in.Location, "location", "", "Town or city")
	cmd.Flags().StringVar(&in.County, "county", "", "County")
	cmd.Flags().StringVar(&in.Description, "description", "", "Free text description")
	cmd.Flags().UintVar(&in.URLID, "link", 0, "Source link id")

	return cmd
}

func (a *app) newEventsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Insert a JSON array of events atomically",
		Long: `Reads a JSON array of events and inserts all of them in one transaction.
If any record is invalid or refers to a missing link, nothing is written.
Use "-" to read from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readEventInputs(cmd, args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				ids, err := s.BulkInsertEvents(cmd.Context(), inputs)
				if err != nil {
					return err
				}
				return a.output(cmd, ids, func(w io.Writer) error {
					fmt.Fprintf(w, "Imported %d events: %v\n", len(ids), ids)
					return nil
				})
			})
		},
	}
}

func readEventInputs(cmd *cobra.Command, path string) ([]event.EventInput, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var inputs []event.EventInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, &event.ValidationError{Op: "import", Err: fmt.Errorf("decoding %s: %w", path, err)}
	}
	return inputs, nil
}

func (a *app) newEventsQueryCmd() *cobra.Command {
	var (
		from, to  string
		dates     string
		fees      string
		sortOrder string
		f         filter.Filter
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List events matching date, location and fee criteria",
		Long: `List stored events that match every given criterion.

Date range examples for --dates:
  2026-03-01..2026-03-31   ISO range (either side may be omitted)
  Mar 1-15                 days within one month
  March 1 - April 15       across months
  March                    whole month

Fee range examples for --fees:
  10-50   10+   ..50   50 (maximum only)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := parseSortOrder(sortOrder)
			if err != nil {
				return err
			}
			if err := buildFilter(&f, from, to, dates, fees); err != nil {
				return err
			}

			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				events, err := s.QueryEventsByCriteria(cmd.Context(), f)
				if err != nil {
					return err
				}
				sortEvents(events, order)
				a.log.Debug("query complete", logger.Fields{
					"filter":  f.String(),
					"matches": len(events),
				})
				if events == nil {
					events = []event.Event{}
				}
				return a.output(cmd, events, func(w io.Writer) error {
					if !f.IsEmpty() {
						fmt.Fprintf(w, "Filters: %s\n\n", f.String())
					}
					return writeEvents(w, events, a.verbose)
				})
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Earliest start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Latest end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dates, "dates", "", "Date range in a human form, overrides --from and --to")
	cmd.Flags().StringVar(&f.Location, "location", "", "Case-insensitive location substring")
	cmd.Flags().StringVar(&fees, "fees", "", "Fee range, e.g. 10-50 or 10+")
	cmd.Flags().StringVar(&sortOrder, "sort", string(SortByDate), "Sort by date, title, location or fee")

	return cmd
}

// buildFilter fills the date and fee bounds of f from the raw flag values.
func buildFilter(f *filter.Filter, from, to, dates, fees string) error {
	if from != "" {
		d, err := event.ParseISODate(from)
		if err != nil {
			return &event.ValidationError{Op: "filter", Err: fmt.Errorf("--from: %w", err)}
		}
		f.DateFrom = &d
	}
	if to != "" {
		d, err := event.ParseISODate(to)
		if err != nil {
			return &event.ValidationError{Op: "filter", Err: fmt.Errorf("--to: %w", err)}
		}
		f.DateTo = &d
	}
	if dates != "" {
		start, end, err := filter.ParseDateRange(dates)
		if err != nil {
			return &event.ValidationError{Op: "filter", Err: err}
		}
		f.DateFrom, f.DateTo = start, end
	}
	if fees != "" {
		lo, hi, err := filter.ParseFeeRange(fees)
		if err != nil {
			return &event.ValidationError{Op: "filter", Err: err}
		}
		f.FeeMin, f.FeeMax = lo, hi
	}
	return nil
}

func (a *app) newEventsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one event with its fee tiers and prizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				evt, err := s.GetEvent(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.output(cmd, evt, func(w io.Writer) error {
					return writeEvents(w, []event.Event{evt}, true)
				})
			})
		},
	}
}

func (a *app) newEventsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an event together with its fee tiers and prizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				if err := s.DeleteEvent(cmd.Context(), id); err != nil {
					return err
				}
				res := map[string]uint{"deleted": id}
				return a.output(cmd, res, func(w io.Writer) error {
					fmt.Fprintf(w, "Event %d deleted\n", id)
					return nil
				})
			})
		},
	}
}

func (a *app) newEventsExportCmd() *cobra.Command {
	var (
		outPath string
		name    string
		from    string
		to      string
		loc     string
	)

	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Export matching events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := filter.Filter{Location: loc}
			if err := buildFilter(&f, from, to, "", ""); err != nil {
				return err
			}

			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				events, err := s.QueryEventsByCriteria(cmd.Context(), f)
				if err != nil {
					return err
				}
				ids := make([]uint, 0, len(events))
				for _, evt := range events {
					ids = append(ids, evt.URLID)
				}
				urls, err := s.LinkURLs(cmd.Context(), ids)
				if err != nil {
					return err
				}

				ics := calendar.GenerateICS(events,
					calendar.WithSourceURLs(urls),
					calendar.WithCalendarName(name),
				)

				if outPath == "" {
					_, err := io.WriteString(cmd.OutOrStdout(), ics)
					return err
				}
				if err := os.WriteFile(outPath, []byte(ics), 0600); err != nil {
					return fmt.Errorf("writing %s: %w", outPath, err)
				}
				a.log.Info("calendar exported", logger.Fields{"path": outPath, "events": len(events)})
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringVar(&name, "name", "Open calls", "Calendar name")
	cmd.Flags().StringVar(&from, "from", "", "Earliest start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Latest end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&loc, "location", "", "Case-insensitive location substring")

	return cmd
}
