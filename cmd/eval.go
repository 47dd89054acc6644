package main

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/eval"
	"github.com/sells-group/fredqa/internal/model"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run and generate evaluation suites",
}

var (
	evalCases     []string
	evalRemote    string
	evalOut       string
	evalXLSX      bool
	evalWorkers   int
	evalThreshold float64
	evalAgent     string
)

var evalRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer every case, verify the responses and write reports",
	Long: "Loads JSONL cases, answers them in-process (or against a remote fredqa serve with --remote), " +
		"verifies each response and writes report.json and report.md. Exits non-zero when the pass gate fails.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		paths := evalCases
		if len(paths) == 0 {
			paths = []string{cfg.Eval.Golden, cfg.Eval.Refusals}
		}
		cases, err := eval.LoadCases(paths...)
		if err != nil {
			return err
		}

		suite, err := initSuite(cfg, env.Engine, env.Metrics)
		if err != nil {
			return err
		}

		var asker eval.Asker = env.Answerer
		agent := "fredqa"
		if evalRemote != "" {
			asker = eval.NewHTTPAsker(evalRemote)
			agent = evalRemote
		}
		if evalAgent != "" {
			agent = evalAgent
		}

		workers := evalWorkers
		if workers <= 0 {
			workers = cfg.Eval.Workers
		}
		runner := eval.NewRunner(suite, asker,
			eval.WithWorkers(workers),
			eval.WithCaseTimeout(time.Duration(cfg.Eval.CaseTimeoutSecs)*time.Second),
			eval.WithAgent(agent),
			eval.WithRunnerMetrics(env.Metrics),
		)

		out := evalOut
		if out == "" {
			out = cfg.Eval.ReportDir
		}
		threshold := evalThreshold
		if threshold <= 0 {
			threshold = cfg.Eval.PassThreshold
		}
		report, err := executeEval(ctx, cmd.OutOrStdout(), runner, cases, out, evalXLSX || cfg.Eval.XLSX, threshold)
		if report != nil {
			notify(ctx, evalSnapshot(report, threshold))
		}
		return err
	},
}

// executeEval runs cases, writes the report files into outDir, prints the
// console summary to w and applies the pass gate.
func executeEval(ctx context.Context, w io.Writer, runner *eval.Runner, cases []model.Case, outDir string, withXLSX bool, threshold float64) (*eval.Report, error) {
	report, err := runner.Run(ctx, cases)
	if err != nil {
		return nil, err
	}

	written, err := eval.WriteFiles(outDir, report, withXLSX)
	if err != nil {
		return report, err
	}
	if err := eval.WriteTable(w, report); err != nil {
		return report, err
	}

	zap.L().Info("eval complete",
		zap.String("run_id", report.RunID),
		zap.Int("total", report.Summary.Total),
		zap.Int("passed", report.Summary.NumPassed),
		zap.Float64("pass_rate", report.Summary.PassRate),
		zap.Int("critical_failures", report.Summary.CriticalFailureCount),
		zap.Strings("reports", written),
	)

	return report, report.Summary.Gate(threshold)
}

var (
	genOut         string
	genRefusalsOut string
	genSeed        uint64
	genPoint       int
	genYoY         int
	genMoM         int
	genMA          int
	genWindow      int
)

var evalGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate golden cases from the observation store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := eval.DefaultGenerateOptions()
		opts.Seed = cfg.Eval.Seed
		if cmd.Flags().Changed("seed") {
			opts.Seed = genSeed
		}
		opts.Point, opts.YoY, opts.MoM, opts.MA, opts.Window = genPoint, genYoY, genMoM, genMA, genWindow
		opts.Series = env.Catalog.IDs()
		opts.Names = env.Catalog.Names()

		cases, err := eval.NewGenerator(env.Store, env.Engine, opts).Generate(ctx)
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			return eris.New("eval generate: no cases could be generated; run `fredqa ingest` first")
		}

		out := genOut
		if out == "" {
			out = cfg.Eval.Golden
		}
		if err := eval.SaveCases(out, cases); err != nil {
			return err
		}

		refusalsOut := genRefusalsOut
		if refusalsOut == "" {
			refusalsOut = cfg.Eval.Refusals
		}
		refusals := eval.RefusalCases()
		if err := eval.SaveCases(refusalsOut, refusals); err != nil {
			return err
		}

		zap.L().Info("generated cases",
			zap.Int("golden", len(cases)),
			zap.Int("refusals", len(refusals)),
			zap.String("golden_path", out),
			zap.String("refusals_path", refusalsOut),
		)
		return nil
	},
}

func init() {
	evalRunCmd.Flags().StringSliceVar(&evalCases, "cases", nil, "JSONL case files (default eval.golden and eval.refusals)")
	evalRunCmd.Flags().StringVar(&evalRemote, "remote", "", "base URL of a running fredqa serve")
	evalRunCmd.Flags().StringVar(&evalOut, "out", "", "report directory (default eval.report_dir)")
	evalRunCmd.Flags().BoolVar(&evalXLSX, "xlsx", false, "also write report.xlsx")
	evalRunCmd.Flags().IntVar(&evalWorkers, "workers", 0, "concurrent cases (default eval.workers)")
	evalRunCmd.Flags().Float64Var(&evalThreshold, "threshold", 0, "minimum pass rate (default eval.pass_threshold)")
	evalRunCmd.Flags().StringVar(&evalAgent, "agent", "", "agent name recorded in the report")

	defaults := eval.DefaultGenerateOptions()
	evalGenerateCmd.Flags().StringVar(&genOut, "out", "", "golden JSONL path (default eval.golden)")
	evalGenerateCmd.Flags().StringVar(&genRefusalsOut, "refusals-out", "", "refusal JSONL path (default eval.refusals)")
	evalGenerateCmd.Flags().Uint64Var(&genSeed, "seed", defaults.Seed, "random seed (default eval.seed)")
	evalGenerateCmd.Flags().IntVar(&genPoint, "point", defaults.Point, "point cases")
	evalGenerateCmd.Flags().IntVar(&genYoY, "yoy", defaults.YoY, "year-over-year cases")
	evalGenerateCmd.Flags().IntVar(&genMoM, "mom", defaults.MoM, "month-over-month cases")
	evalGenerateCmd.Flags().IntVar(&genMA, "ma", defaults.MA, "moving-average cases")
	evalGenerateCmd.Flags().IntVar(&genWindow, "window", defaults.Window, "max/min window cases")

	evalCmd.AddCommand(evalRunCmd, evalGenerateCmd)
	rootCmd.AddCommand(evalCmd)
}
