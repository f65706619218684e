// Provisio CLI — проходит мастер настройки сайта через бэкенд.
//
// Использование:
//
//	provisio [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	run      Пройти мастер
//	history  Прохождения из локального журнала
//	steps    Шаги мастера
//	site     Прогресс сайта на бэкенде
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Provisio/internal/cli"
	"github.com/shaiso/Provisio/internal/config"
	"github.com/shaiso/Provisio/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	// stdout занят экраном мастера, логи уходят в stderr.
	slog.SetDefault(telemetry.NewLogger(os.Stderr))

	cfg, err := config.LoadCLI()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "provisio",
		Short:         "Provisio CLI — site setup wizard",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", cfg.APIURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(cfg, clientFn, outputFn),
		cli.NewHistoryCmd(cfg, clientFn, outputFn),
		cli.NewStepsCmd(outputFn),
		cli.NewSiteCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
