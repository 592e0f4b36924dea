package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/storage"
)

func (a *app) newFeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Manage event fee tiers",
	}
	cmd.AddCommand(a.newFeesAddCmd())
	return cmd
}

func (a *app) newFeesAddCmd() *cobra.Command {
	var (
		in      event.FeeTierInput
		entries int
		feeType string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a fee tier; an existing tier for the same entry count is returned unchanged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("entries") {
				in.NumberEntries = &entries
			}
			in.FeeType = event.FeeType(feeType)
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				res, err := s.AddFeeTier(cmd.Context(), in)
				if err != nil {
					return err
				}
				return a.output(cmd, res, func(w io.Writer) error {
					return writeUpsert(w, "Fee tier", res)
				})
			})
		},
	}

	cmd.Flags().UintVar(&in.EventID, "event", 0, "Event id")
	cmd.Flags().IntVar(&entries, "entries", 0, "Number of entries covered; omit for a flat fee")
	cmd.Flags().StringVar(&in.FeeAmount, "amount", "", "Fee amount")
	cmd.Flags().StringVar(&in.FlatRate, "flat-rate", "", "Flat rate charged alongside the fee")
	cmd.Flags().StringVar(&in.CommissionPercent, "commission", "", "Commission percentage (0-100)")
	cmd.Flags().StringVar(&feeType, "type", "", "flat or tier (derived from --entries when omitted)")

	return cmd
}

func (a *app) newPrizesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prizes",
		Short: "Manage event prizes",
	}
	cmd.AddCommand(a.newPrizesAddCmd())
	return cmd
}

func (a *app) newPrizesAddCmd() *cobra.Command {
	var (
		in   event.PrizeInput
		rank int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a prize to an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("rank") {
				in.PrizeRank = &rank
			}
			return a.withStore(cmd.Context(), func(s *storage.Store) error {
				id, err := s.AddPrize(cmd.Context(), in)
				if err != nil {
					return err
				}
				res := event.Upsert{ID: id, Outcome: event.Created}
				return a.output(cmd, res, func(w io.Writer) error {
					return writeUpsert(w, "Prize", res)
				})
			})
		},
	}

	cmd.Flags().UintVar(&in.EventID, "event", 0, "Event id")
	cmd.Flags().IntVar(&rank, "rank", 0, "Prize rank, 1 for first; omit for unranked")
	cmd.Flags().StringVar(&in.PrizeAmount, "amount", "", "Prize money")
	cmd.Flags().StringVar(&in.PrizeType, "type", "", "Prize type, e.g. cash or exhibition")
	cmd.Flags().StringVar(&in.PrizeDescription, "description", "", "Free text description")

	return cmd
}
