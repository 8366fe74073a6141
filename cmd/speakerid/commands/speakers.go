package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
)

var speakersCmd = &cobra.Command{
	Use:     "speakers",
	Aliases: []string{"speaker"},
	Short:   "Manage enrolled speakers",
}

var speakersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List enrolled speakers",
	Long: `List enrolled speakers in id order.

Examples:
  speakerid speakers list
  speakerid speakers list --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := getContext()
		if err != nil {
			return err
		}
		svc, closeSvc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer closeSvc()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		recs, err := svc.ListSpeakers(ctx)
		if err != nil {
			return err
		}
		return outputResult(recs, cli.FormatTable)
	},
}

var speakersGetCmd = &cobra.Command{
	Use:   "get <speaker-id>",
	Short: "Show a speaker record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := getContext()
		if err != nil {
			return err
		}
		svc, closeSvc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer closeSvc()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rec, err := svc.GetSpeaker(ctx, args[0])
		if err != nil {
			return err
		}
		return outputResult(rec, cli.FormatYAML)
	},
}

var speakersDeleteCmd = &cobra.Command{
	Use:     "delete <speaker-id>...",
	Aliases: []string{"rm"},
	Short:   "Delete speakers and their models",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := getContext()
		if err != nil {
			return err
		}
		svc, closeSvc, err := openService(cctx)
		if err != nil {
			return err
		}
		defer closeSvc()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, id := range args {
			if err := svc.DeleteSpeaker(ctx, id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
			cli.PrintSuccess("Speaker %q deleted", id)
		}
		return nil
	},
}

func init() {
	speakersCmd.AddCommand(speakersListCmd)
	speakersCmd.AddCommand(speakersGetCmd)
	speakersCmd.AddCommand(speakersDeleteCmd)
}
