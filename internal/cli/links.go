package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/storage"
)

func (a *app) newLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Manage discovered source links",
	}
	cmd.AddCommand(a.newLinksAddCmd(), a.newLinksPendingCmd(), a.newLinksStatusCmd())
	return cmd
}

func (a *app) newLinksAddCmd() *cobra.Command {
	var in event.SourceLinkInput

	cmd := &cobra.Command{
		Use:   "add URL",
		Short: "Record a discovered page; an existing URL is returned unchanged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.URL = args[0]
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				res, err := s.AddSourceLink(cmd.Context(), in)
				if err != nil {
					return err
				}
				return a.output(cmd, res, func(w io.Writer) error {
					return writeUpsert(w, "Source link", res)
				})
			})
		},
	}

	cmd.Flags().StringVar(&in.RawTitle, "title", "", "Title as seen on the page")
	cmd.Flags().StringVar(&in.RawDate, "date", "", "Date text as seen on the page")
	cmd.Flags().StringVar(&in.RawLocation, "location", "", "Location text as seen on the page")
	cmd.Flags().StringVar(&in.RawDescription, "description", "", "Description text as seen on the page")

	return cmd
}

func (a *app) newLinksPendingCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List links that have not produced an event yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				links, err := s.ListUnprocessedLinks(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if links == nil {
					links = []event.SourceLink{}
				}
				return a.output(cmd, links, func(w io.Writer) error {
					return writeLinks(w, links)
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", storage.DefaultPendingLimit, "Maximum number of links")
	return cmd
}

func (a *app) newLinksStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show whether a link has been processed into events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				state, err := s.LinkStatus(cmd.Context(), id)
				if err != nil {
					return err
				}
				return a.output(cmd, state, func(w io.Writer) error {
					fmt.Fprintf(w, "#%d %s\n", state.Link.ID, state.Link.URL)
					fmt.Fprintf(w, "     Status: %s (%d events)\n", state.Status, state.EventCount)
					return nil
				})
			})
		},
	}
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 0)
	if err != nil || id == 0 {
		return 0, &event.ValidationError{Op: "arguments", Err: fmt.Errorf("invalid id %q", s)}
	}
	return uint(id), nil
}
