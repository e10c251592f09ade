package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/watercrawl/WaterCrawl-sub003/internal/client"
	"github.com/watercrawl/WaterCrawl-sub003/internal/render"
	"github.com/watercrawl/WaterCrawl-sub003/internal/service/agent/streaming"
)

func newReplayCommand(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Rebuild a transcript from a captured event stream",
		Long: `Read a captured text/event-stream body (for example saved with
curl -N) and print the transcript it produces. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := os.Stdin
			if args[0] != "-" {
				var err error
				f, err = os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open capture: %w", err)
				}
			}

			source := client.NewEventStream(f, a.logger)
			out := streaming.NewIngestor(source, nil, nil, a.logger).Run(cmd.Context())

			a.logger.Info("replay finished",
				"file", args[0],
				"events", out.Events,
				"entries", len(out.Block.Entries),
			)

			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), out.Block); err != nil {
					return err
				}
			} else {
				renderer := render.New(stylesFor(cmd.OutOrStdout()), 0)
				fmt.Fprintln(cmd.OutOrStdout(), renderer.Transcript(nil, &out.Block, out.Err))
			}

			if out.Err != nil {
				return out.Err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the final block as JSON")
	return cmd
}
