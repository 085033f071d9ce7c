package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var inputPath string

var runCmd = &cobra.Command{
	Use:   "run [request text]",
	Short: "Run the whole pipeline for a founder request",
	Long: `Run extracts the founder's preferences, finds matching investors and
events, geocodes them, estimates commutes and prints the resulting schedule
as JSON.

Examples:
  founder-scheduler run "Seed-stage fintech in Berlin, free 2025-06-02 and 2025-06-03"
  founder-scheduler run --input request.txt
  echo "..." | founder-scheduler run --input -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&inputPath, "input", "", "read the request from a file, or - for stdin")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fallback := ""
	if len(args) == 1 {
		fallback = args[0]
	}
	text, err := readInput(inputPath, cmd.InOrStdin(), fallback)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no request text given")
	}

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.orch.Run(ctx, text)
	if err != nil {
		return err
	}
	if result.Infeasible() {
		rt.log.Warn("no candidate fits the availability", map[string]interface{}{
			"unscheduled": result.Unscheduled,
		})
	}
	return printJSON(cmd.OutOrStdout(), result)
}
