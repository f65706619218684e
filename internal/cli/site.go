package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewSiteCmd создаёт группу команд для сайтов на бэкенде.
func NewSiteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Inspect site progress on the backend",
	}

	cmd.AddCommand(
		newSiteShowCmd(clientFn, outputFn),
		newSiteEventsCmd(clientFn, outputFn),
	)

	return cmd
}

func newSiteShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show SITE_ID",
		Short: "Show the progress recorded by the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := clientFn().GetSite(args[0])
			if err != nil {
				return err
			}

			steps := make([]string, len(site.CompletedSteps))
			for i, s := range site.CompletedSteps {
				steps[i] = string(s)
			}

			rows := [][]string{
				{"ID", site.ID},
				{"Current step", string(site.CurrentStep)},
				{"Completed steps", strings.Join(steps, ", ")},
				{"Campaign", site.CampaignID},
				{"Completed at", site.CompletedAt},
				{"Updated at", site.UpdatedAt},
			}
			outputFn().Print([]string{"FIELD", "VALUE"}, rows, site)
			return nil
		},
	}
}

func newSiteEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events SITE_ID",
		Short: "Show recent wizard events recorded for a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := clientFn().ListSiteEvents(args[0], limit)
			if err != nil {
				return err
			}

			outputFn().Print([]string{"AT", "TYPE", "STEP", "QUEUE", "ITEM", "OUTCOME", "DETAIL"}, eventRows(events), events)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")

	return cmd
}
