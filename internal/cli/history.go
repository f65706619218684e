package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Provisio/internal/config"
	"github.com/shaiso/Provisio/internal/domain"
	"github.com/shaiso/Provisio/internal/journal"
	"github.com/spf13/cobra"
)

// NewHistoryCmd создаёт команду просмотра журнала прохождений.
func NewHistoryCmd(cfg config.CLI, clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var journalPath string
	var limit int
	var remote bool

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show past wizard runs or the events of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if len(args) == 0 {
				if remote {
					return errors.New("--remote needs a RUN_ID")
				}
				store, err := journal.Open(journalPath)
				if err != nil {
					return err
				}
				defer store.Close()

				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out.Print([]string{"RUN_ID", "SITE", "STATUS", "FINAL_STEP", "EVENTS", "STARTED"}, runRows(runs), runs)
				return nil
			}

			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			var events []domain.Event
			if remote {
				events, err = clientFn().ListRunEvents(runID.String())
			} else {
				var store *journal.Store
				store, err = journal.Open(journalPath)
				if err != nil {
					return err
				}
				defer store.Close()
				events, err = store.Events(cmd.Context(), runID)
			}
			if err != nil {
				return err
			}

			out.Print([]string{"AT", "TYPE", "STEP", "QUEUE", "ITEM", "OUTCOME", "DETAIL"}, eventRows(events), events)
			return nil
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", cfg.JournalPath, "Local SQLite journal")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	cmd.Flags().BoolVar(&remote, "remote", false, "Read events from the backend audit instead of the local journal")

	return cmd
}

func runRows(runs []journal.Run) [][]string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.RunID.String(),
			r.SiteID,
			r.Status,
			string(r.FinalStep),
			strconv.Itoa(r.Events),
			r.StartedAt.Local().Format(time.DateTime),
		}
	}
	return rows
}

func eventRows(events []domain.Event) [][]string {
	rows := make([][]string, len(events))
	for i, ev := range events {
		rows[i] = []string{
			ev.At.Local().Format(time.TimeOnly),
			string(ev.Type),
			string(ev.Step),
			string(ev.Queue),
			ev.Item,
			string(ev.Outcome),
			truncate(ev.Detail, 50),
		}
	}
	return rows
}
