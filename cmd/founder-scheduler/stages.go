package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"founder-scheduler/pkg/registry"
)

var registryPath string

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the pipeline stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBACKEND\tSHAPE\tDESCRIPTION")
		for _, s := range reg.Stages {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Backend, s.Shape, s.Description)
		}
		return w.Flush()
	},
}

var validateStagesCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a stage registry file",
	Long: `Validate parses a registry file and makes sure every stage the pipeline
needs is present.

Examples:
  founder-scheduler stages validate --registry pkg/registry/stages.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		if err := checkRegistry(reg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d stages.\n", len(reg.Stages))
		return nil
	},
}

func init() {
	stagesCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "registry file (default: built-in)")
	stagesCmd.AddCommand(validateStagesCmd)
}

func loadRegistry() (*registry.StageRegistry, error) {
	if registryPath == "" {
		return registry.Default(), nil
	}
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func checkRegistry(reg *registry.StageRegistry) error {
	required := []string{
		registry.UserAgent,
		registry.InvestorAgent,
		registry.EventAgent,
		registry.GeolocationAgent,
		registry.CommuteAgent,
		registry.SchedulingAgent,
	}
	for _, id := range required {
		s, ok := reg.Lookup(id)
		if !ok {
			return fmt.Errorf("registry is missing stage %s", id)
		}
		if s.DisplayName == "" {
			return fmt.Errorf("stage %s missing required field: DisplayName", id)
		}
		if len(s.OutputSchema) == 0 {
			return fmt.Errorf("stage %s missing required field: OutputSchema", id)
		}
	}
	return nil
}
