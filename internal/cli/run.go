package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Provisio/internal/config"
	"github.com/shaiso/Provisio/internal/domain"
	"github.com/shaiso/Provisio/internal/orchestrator"
	"github.com/shaiso/Provisio/internal/transport"
	"github.com/spf13/cobra"
)

// NewRunCmd создаёт команду прохождения мастера.
func NewRunCmd(cfg config.CLI, clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		payloadPath string
		siteID      string
		register    bool
		startDelay  time.Duration
		provider    string
		journalPath string
		metricsAddr string
		nonce       string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the setup wizard for a site",
		Long: `Run the setup wizard step by step against the backend.

The startup payload is read from --payload (JSON or TOML) or fetched
from the backend with --site. When a payment provider has to be
connected, the wizard pauses and waits for confirmation on stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if payloadPath == "" && siteID == "" {
				return errors.New("either --payload or --site is required")
			}

			ctx := cmd.Context()
			client := clientFn()
			out := outputFn()
			logger := slog.Default()

			payload, err := loadRunPayload(client, payloadPath, siteID)
			if err != nil {
				return err
			}

			if register {
				if payload.SiteID == "" {
					return errors.New("--register needs a site id (--site or site_id in the payload)")
				}
				if _, err := client.RegisterSite(payload.SiteID, payload); err != nil {
					return fmt.Errorf("register site: %w", err)
				}
				out.Success(fmt.Sprintf("Site %s registered", payload.SiteID))
			}

			sinks, err := openSinks(ctx, sinkOptions{
				JournalPath: journalPath,
				MetricsAddr: metricsAddr,
				RabbitMQURL: cfg.RabbitMQURL,
			}, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := sinks.Close(); err != nil {
					logger.Warn("failed to close event sinks", "error", err)
				}
			}()

			actions := transport.New(transport.Config{
				Endpoint: client.ActionEndpoint(),
				Nonce:    nonce,
				SiteID:   payload.SiteID,
				Timeout:  timeout,
				Observer: sinks.observer,
				Logger:   logger,
			})

			// 0 в флаге означает «без паузы».
			delay := startDelay
			if delay == 0 {
				delay = -1
			}

			wizard := orchestrator.New(orchestrator.Config{
				Client:          actions,
				Surface:         NewSurface(out.Writer(), out.JSONMode()),
				Sink:            sinks.sink,
				StartDelay:      delay,
				ConnectProvider: provider,
				Logger:          logger,
			})

			sum, err := wizard.Run(ctx, payload)
			if err == nil && sum.AwaitingConnect {
				if !promptConnect(cmd.InOrStdin(), cmd.ErrOrStderr(), provider, sum.ConnectURL) {
					printSummary(out, sum)
					out.Success(fmt.Sprintf("Wizard paused at %s (run %s)", sum.FinalStep, sum.RunID))
					return nil
				}
				sum, err = wizard.ConfirmConnect(ctx)
			}

			if sum != nil {
				printSummary(out, sum)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&payloadPath, "payload", "", "Startup payload file (.json or .toml)")
	cmd.Flags().StringVar(&siteID, "site", "", "Site ID; without --payload the payload is fetched from the backend")
	cmd.Flags().BoolVar(&register, "register", false, "Register the payload with the backend before running")
	cmd.Flags().DurationVar(&startDelay, "start-delay", cfg.StartDelay, "Pause on the welcome screen (0 disables)")
	cmd.Flags().StringVar(&provider, "provider", cfg.ConnectProvider, "Payment method that requires a provider connect")
	cmd.Flags().StringVar(&journalPath, "journal", cfg.JournalPath, "Local SQLite journal (empty disables)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().StringVar(&nonce, "nonce", cfg.Nonce, "Request nonce for the action endpoint")
	cmd.Flags().DurationVar(&timeout, "timeout", cfg.Timeout, "Timeout of a single backend request")

	return cmd
}

// loadRunPayload читает payload из файла или с бэкенда.
// --site переопределяет site_id из файла.
func loadRunPayload(client *Client, path, siteID string) (domain.StartupPayload, error) {
	var (
		payload domain.StartupPayload
		err     error
	)

	if path != "" {
		payload, err = config.LoadPayload(path)
		if err != nil {
			return payload, err
		}
	} else {
		payload, err = client.GetWizard(siteID)
		if err != nil {
			return payload, fmt.Errorf("fetch wizard for site %s: %w", siteID, err)
		}
	}

	if siteID != "" {
		payload.SiteID = siteID
	}
	return payload, nil
}

// promptConnect просит пользователя подключить провайдера.
// Возвращает false, если пользователь отказался или ввод закончился.
func promptConnect(in io.Reader, out io.Writer, provider, connectURL string) bool {
	fmt.Fprintf(out, "\nConnect %s at:\n  %s\nPress Enter when done (or type \"later\" to stop here): ", provider, connectURL)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "later", "skip", "q":
		return false
	default:
		return true
	}
}

// printSummary выводит итог прохождения.
func printSummary(out *Output, sum *orchestrator.Summary) {
	if out.JSONMode() {
		out.JSON(sum)
		return
	}

	out.Table([]string{"FIELD", "VALUE"}, summaryRows(sum))
	if rows := itemRows(sum.Items); len(rows) > 0 {
		out.Table([]string{"QUEUE", "ID", "NAME", "OUTCOME", "DETAIL"}, rows)
	}
}

func summaryRows(sum *orchestrator.Summary) [][]string {
	halted := strconv.FormatBool(sum.Halted)
	if sum.HaltReason != "" {
		halted += " (" + sum.HaltReason + ")"
	}

	rows := [][]string{
		{"Run ID", sum.RunID.String()},
		{"Final step", string(sum.FinalStep)},
		{"Completed", strconv.FormatBool(sum.Completed)},
		{"Halted", halted},
		{"Awaiting connect", strconv.FormatBool(sum.AwaitingConnect)},
		{"License issue", strconv.FormatBool(sum.LicenseIssue)},
		{"Feature gate", string(sum.FeatureGate)},
		{"Feature issue", strconv.FormatBool(sum.FeatureIssue)},
	}
	if sum.CampaignID != "" {
		rows = append(rows, []string{"Campaign", sum.CampaignID})
	}
	if sum.RedirectURL != "" {
		rows = append(rows, []string{"Redirect", sum.RedirectURL})
	}

	counts := sum.Counts()
	rows = append(rows,
		[]string{"Items", fmt.Sprintf("%d succeeded, %d failed, %d skipped",
			counts[domain.ItemSucceeded], counts[domain.ItemFailed], counts[domain.ItemSkipped])},
		[]string{"Duration", sum.Duration.Round(time.Millisecond).String()},
	)
	return rows
}

func itemRows(items []orchestrator.ItemResult) [][]string {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{string(it.Queue), it.ID, it.Name, string(it.Outcome), truncate(it.Detail, 60)}
	}
	return rows
}

// truncate обрезает строку до maxLen символов.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
