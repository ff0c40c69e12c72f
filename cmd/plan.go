package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/storageopt/config"
	"github.com/kilianp07/storageopt/core/control"
	"github.com/kilianp07/storageopt/core/model"
	"github.com/kilianp07/storageopt/core/optimizer"
	"github.com/kilianp07/storageopt/infra/prices"
)

var planSoC float64

// planCmd fetches the current horizon, solves once and prints the schedule.
// It never touches the device; useful to sanity check tariffs and tuning.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Fetch prices and print the optimized schedule without applying it",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().Float64Var(&planSoC, "soc", 0.5, "state of charge fraction to plan from")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if planSoC < 0 || planSoC > 1 {
		return fmt.Errorf("soc must be within [0, 1]")
	}

	client := prices.NewClient(cfg.Prices)
	horizon, err := client.FetchHorizon(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch horizon: %w", err)
	}
	horizon = horizon.FilterFrom(model.HourStart(time.Now()))
	if len(horizon) == 0 {
		return fmt.Errorf("no tariff points from the current hour onwards")
	}

	st := cfg.Battery.ToStorageState().WithSoC(planSoC)
	sol, err := optimizer.New(cfg.Optimizer).Optimize(horizon, st)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	if !sol.Status.Usable() {
		fmt.Printf("no usable plan: %s\n", sol.Status)
		return nil
	}

	fmt.Printf("status=%s cost=%.4f\n", sol.Status, sol.Cost)
	fmt.Println("hour                  price     charge  discharge    soc  action")
	for i, p := range sol.Points {
		action := control.DeriveAction(sol, i, cfg.Control.ToleranceKW)
		fmt.Printf("%s  %8.4f  %9.2f  %9.2f  %5.2f  %s\n",
			p.Timestamp.Format("2006-01-02T15:04Z07:00"), p.Price, p.ChargeKW, p.DischargeKW, p.SoCKWh, action)
	}
	return nil
}
