package cli

import (
	"github.com/spf13/cobra"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/allocator/internal/modules/optimization/handlers"
	optionshandlers "github.com/aristath/allocator/internal/modules/options/handlers"
	"github.com/aristath/allocator/internal/modules/simulation"
	simulationhandlers "github.com/aristath/allocator/internal/modules/simulation/handlers"
	"github.com/aristath/allocator/internal/modules/stopping"
	"github.com/aristath/allocator/pkg/formulas"
)

func (a *app) optimizeCmd() *cobra.Command {
	var target float64
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize weights for the risk tolerance or a target return",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, _, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			req := optimization.Request{Snapshot: snap, RiskTolerance: a.cfg.RiskToleranceValue()}
			if cmd.Flags().Changed("target") {
				req.TargetReturn = &target
			} else {
				req.TargetReturn = a.cfg.TargetReturn
			}
			res, err := a.container.Optimizer.Optimize(req)
			if err != nil {
				return err
			}
			return a.print(cmd, optimizationhandlers.NewOptimizeResponse(snap, res))
		},
	}
	cmd.Flags().Float64Var(&target, "target", 0, "annualized target return (default $TARGET_RETURN, else risk tolerance mode)")
	return cmd
}

func (a *app) frontierCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frontier",
		Short: "Sweep the efficient frontier over the expected return range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, _, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			curve, err := a.container.Sweeper.Sweep(cmd.Context(), snap, a.cfg.RiskToleranceValue())
			if err != nil {
				return err
			}
			return a.print(cmd, optimizationhandlers.FrontierResponse{
				Points:       curve.Points,
				Volatilities: curve.Volatilities(),
				Converged:    curve.Converged(),
			})
		},
	}
}

func (a *app) simulateCmd() *cobra.Command {
	var (
		paths     int
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate correlated GBM paths from the latest prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.history(cmd.Context())
			if err != nil {
				return err
			}
			seed := a.cfg.SimulationSeed
			req := simulationhandlers.SimulateRequest{
				HorizonYears: a.cfg.TimeHorizon,
				Simulations:  a.cfg.Simulations,
				Steps:        a.cfg.SimulationSteps,
				Seed:         &seed,
				Correlated:   a.cfg.CorrelatedDraws,
			}
			req.History = h
			params, err := req.Params()
			if err != nil {
				return err
			}
			tensor, err := a.container.Simulator.Simulate(cmd.Context(), params)
			if err != nil {
				return err
			}
			all, err := simulation.PortfolioValues(tensor, nil, 0)
			if err != nil {
				return err
			}
			if paths <= 0 || paths > len(all) {
				paths = len(all)
			}
			resp := simulationhandlers.SimulateResponse{
				Simulations: tensor.Simulations,
				Steps:       tensor.Steps,
				ValuePaths:  all[:paths],
				Summary:     simulation.Summarize(all),
			}
			if cmd.Flags().Changed("stopping-threshold") {
				resp.DecisionPoints = stopping.Detect(stopping.FromTensor(tensor), threshold)
			}
			return a.print(cmd, resp)
		},
	}
	f := cmd.Flags()
	f.IntVar(&paths, "paths", simulation.DefaultDisplayPaths, "value paths to print")
	f.Float64Var(&threshold, "stopping-threshold", stopping.DefaultThreshold, "also report stopping decision points at this threshold")
	f.Float64Var(&a.cfgOverrides.horizon, "horizon", 0, "horizon in years (default $TIME_HORIZON)")
	f.IntVar(&a.cfgOverrides.simulations, "simulations", 0, "number of trajectories (default $SIMULATIONS)")
	f.IntVar(&a.cfgOverrides.steps, "steps", 0, "steps per trajectory (default $SIMULATION_STEPS)")
	f.Uint64Var(&a.cfgOverrides.seed, "seed", 0, "random seed (default $SIMULATION_SEED)")
	f.BoolVar(&a.cfgOverrides.correlated, "correlated", false, "draw correlated shocks (default $CORRELATED_DRAWS)")
	return cmd
}

func (a *app) rebalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Replay the walk-forward rebalance, printing one JSON event per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.history(cmd.Context())
			if err != nil {
				return err
			}
			opts := a.cfg.RebalanceOptions()
			opts.Source = "cli"
			_, err = a.container.Rebalancer.Run(cmd.Context(), h, opts, func(e domain.RebalanceEvent) error {
				return a.print(cmd, e)
			})
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.cfgOverrides.frequency, "frequency", "", "Quarterly or Yearly (default $REBALANCE_FREQUENCY)")
	f.Float64Var(&a.cfgOverrides.threshold, "threshold", 0, "stopping threshold (default $REBALANCE_THRESHOLD)")
	return cmd
}

func (a *app) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Allocation, frontier, simulation, VaR and Sharpe ratio in one report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.history(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := a.container.Reports.Generate(cmd.Context(), h, a.cfg.ReportDefaults())
			if err != nil {
				return err
			}
			return a.print(cmd, rep)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&a.cfgOverrides.horizon, "horizon", 0, "horizon in years (default $TIME_HORIZON)")
	f.IntVar(&a.cfgOverrides.simulations, "simulations", 0, "number of trajectories (default $SIMULATIONS)")
	f.IntVar(&a.cfgOverrides.steps, "steps", 0, "steps per trajectory (default $SIMULATION_STEPS)")
	f.Uint64Var(&a.cfgOverrides.seed, "seed", 0, "random seed (default $SIMULATION_SEED)")
	return cmd
}

func (a *app) priceCmd() *cobra.Command {
	var (
		in  formulas.OptionInput
		typ string
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Black-Scholes price of a European option",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := formulas.ParseOptionType(typ)
			if err != nil {
				return err
			}
			in.Type = t
			price, err := formulas.RiskNeutralPrice(in)
			if err != nil {
				return err
			}
			return a.print(cmd, optionshandlers.PriceResponse{OptionInput: in, Price: price})
		},
	}
	f := cmd.Flags()
	f.Float64Var(&in.Spot, "spot", 0, "spot price")
	f.Float64Var(&in.Strike, "strike", 0, "strike price")
	f.Float64Var(&in.Maturity, "maturity", 0, "time to maturity in years")
	f.Float64Var(&in.RiskFree, "rate", 0, "annual risk-free rate")
	f.Float64Var(&in.Volatility, "volatility", 0, "annual volatility")
	f.StringVar(&typ, "type", string(formulas.Call), "call or put")
	return cmd
}
