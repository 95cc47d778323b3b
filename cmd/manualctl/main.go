// Command manualctl is the operator CLI for the manual assistant: it chunks,
// ingests and queries manuals, and evaluates the answerability gate offline.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/manual-assistant/internal/bootstrap"
	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/observability/logging"
)

const serviceName = "manualctl"

var rootCmd = &cobra.Command{
	Use:   "manualctl",
	Short: "Operate the manual troubleshooting assistant",
	Long: `manualctl drives the manual assistant pipeline from the command line.
Settings come from the same environment variables as the API and worker.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			level = config.Load().LogLevel
		}
		slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, level))
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")
}

// openApp bootstraps the pipeline without a message queue.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.New(ctx, config.Load(), bootstrap.Options{})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
