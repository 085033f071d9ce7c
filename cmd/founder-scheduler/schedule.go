package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"founder-scheduler/pkg/registry"
)

var requestPath string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule already-routed candidates without calling the backend",
	Long: `Schedule sends a {user, investors, events} request to the SchedulingAgent
stage. Every candidate needs coordinates; commute and priority are optional.

Examples:
  founder-scheduler schedule --request routed.json`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&requestPath, "request", "-", "request file, or - for stdin")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	body, err := readInput(requestPath, cmd.InOrStdin(), "")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	raw, err := rt.orch.Router().Send(ctx, "cli", registry.SchedulingAgent, body)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	var out json.RawMessage = []byte(raw)
	return printJSON(cmd.OutOrStdout(), out)
}
