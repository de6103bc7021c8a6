package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/orplan/config"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration file and print a summary",
	RunE:  runCheckConfig,
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	t := cfg.Topology
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "rooms: %d, clinicians: %d, equipment pools: %d\n", len(t.Rooms), len(t.Clinicians), len(t.Equipment))
	_, _ = fmt.Fprintf(out, "day: %s-%s, turnover %dm, break %dm\n", t.Constants.DayStart, t.Constants.DayEnd, t.Constants.TurnoverMinutes, t.Constants.BreakMinutes)
	_, _ = fmt.Fprintf(out, "emergency room: %s, prediction: %s, history: %s\n", orNone(t.Emergency.Room), cfg.Prediction.Mode, cfg.History.Backend)
	_, _ = fmt.Fprintf(out, "configuration %s is valid\n", cfgPath)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
