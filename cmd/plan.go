package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/orplan/app"
	"github.com/kilianp07/orplan/config"
	"github.com/kilianp07/orplan/core/model"
	"github.com/kilianp07/orplan/core/prediction"
	"github.com/kilianp07/orplan/core/replan"
	"github.com/kilianp07/orplan/core/report"
	"github.com/kilianp07/orplan/core/scheduler"
	"github.com/kilianp07/orplan/infra/logger"
	_ "github.com/kilianp07/orplan/infra/prediction"
)

var (
	planCases  string
	planFormat string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Solve a roster once and print the schedule",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planCases, "cases", "", "case records file (YAML or JSON); defaults to cases_file")
	planCmd.Flags().StringVar(&planFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := planCases
	if path == "" {
		path = cfg.CasesFile
	}
	if path == "" {
		return fmt.Errorf("no case records: pass --cases or set cases_file")
	}
	recs, err := app.LoadRecords(path)
	if err != nil {
		return err
	}
	pred, err := prediction.New(cfg.Prediction)
	if err != nil {
		return err
	}
	solver := scheduler.New(cfg.Topology, cfg.Scheduler, logger.New("scheduler"))
	planner, err := replan.NewPlanner(cfg.Topology, solver, pred, logger.New("planner"))
	if err != nil {
		return err
	}
	planner.SetFallback(cfg.Prediction.FallbackMinutes, cfg.Prediction.MinMinutes)
	sched, err := planner.Ingest(context.Background(), recs)
	if err != nil {
		return err
	}
	kpis := report.Compute(cfg.Topology, planner.Cases(), sched)

	switch planFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Schedule model.Schedule `json:"schedule"`
			KPIs     report.KPIs    `json:"kpis"`
		}{sched, kpis})
	case "table":
		return printSchedule(cmd.OutOrStdout(), sched, kpis)
	default:
		return fmt.Errorf("unknown format %q", planFormat)
	}
}

func printSchedule(w io.Writer, sched model.Schedule, kpis report.KPIs) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CASE\tPROCEDURE\tCLINICIAN\tROOM\tSTART\tEND\tSEVERITY")
	for _, r := range sched.Rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n", r.CaseID, r.Procedure, r.Clinician, r.Room, r.Start, r.End, r.Severity)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nrevision %s, objective %d, optimal %t, makespan %s, overtime %dm, mean utilization %.1f%%\n",
		sched.Revision, sched.Stats.Objective, sched.Stats.Optimal, kpis.Makespan, kpis.OvertimeMinutes, kpis.MeanUtilization()*100)
	return err
}
