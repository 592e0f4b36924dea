package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/fetcher"
	"github.com/pfrederiksen/opencall-events/internal/logger"
	"github.com/pfrederiksen/opencall-events/internal/reducer"
	"github.com/pfrederiksen/opencall-events/internal/storage"
)

// fetchResult is the JSON shape of the fetch command.
type fetchResult struct {
	URL     string                  `json:"url"`
	Raw     string                  `json:"raw,omitempty"`
	Reduced *reducer.ReducedContent `json:"reduced,omitempty"`
	Saved   *event.Upsert           `json:"saved,omitempty"`
}

func (a *app) newFetchCmd() *cobra.Command {
	var (
		timeout time.Duration
		raw     bool
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch a page and reduce it to its relevant text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			ctx := cmd.Context()

			f := fetcher.New(
				fetcher.WithConfig(a.cfg.Fetch),
				fetcher.WithLogger(a.log),
				fetcher.WithMetrics(a.metrics),
			)
			body, err := f.Fetch(ctx, url, timeout)
			if err != nil {
				return err
			}

			result := fetchResult{URL: url}
			if raw {
				result.Raw = body
			}

			// The title and first date are needed for --save even with --raw.
			var rc reducer.ReducedContent
			if !raw || save {
				opts := append(a.cfg.Reduce.Options(), reducer.WithMetrics(a.metrics))
				rc = reducer.New(opts...).Reduce(body)
				if !raw {
					result.Reduced = &rc
				}
			}

			if save {
				in := event.SourceLinkInput{URL: url, RawTitle: rc.Title}
				if len(rc.Dates) > 0 {
					in.RawDate = rc.Dates[0].Match
				}
				err := a.withStore(ctx, func(s *storage.Store) error {
					res, err := s.AddSourceLink(ctx, in)
					if err != nil {
						return err
					}
					result.Saved = &res
					return nil
				})
				if err != nil {
					return err
				}
				a.log.Info("source link saved", logger.Fields{"url": url, "id": result.Saved.ID, "outcome": result.Saved.Outcome})
			}

			return a.output(cmd, result, func(w io.Writer) error {
				if raw {
					fmt.Fprintln(w, body)
				} else {
					fmt.Fprint(w, reducer.Report(rc))
				}
				if result.Saved != nil {
					return writeUpsert(w, "Source link", *result.Saved)
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-attempt timeout (default from config)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw body instead of the reduced report")
	cmd.Flags().BoolVar(&save, "save", false, "Record the URL as a source link")

	return cmd
}
