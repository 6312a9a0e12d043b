package commands

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/execkit/engine"
	"github.com/kbukum/execkit/logger"
	"github.com/kbukum/execkit/version"
)

type runOptions struct {
	requests    int
	concurrency int
	batch       int
	timeout     time.Duration
	retries     int
	workload    workload
}

// runReport is printed at the end of a run.
type runReport struct {
	Requests   int           `json:"requests" yaml:"requests"`
	Failed     int64         `json:"failed" yaml:"failed"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
	Throughput float64       `json:"throughput_per_sec" yaml:"throughput_per_sec"`
	Batch      *batchReport  `json:"batch,omitempty" yaml:"batch,omitempty"`
	Engine     engine.Stats  `json:"engine" yaml:"engine"`
}

type batchReport struct {
	Items   int           `json:"items" yaml:"items"`
	Failed  int           `json:"failed" yaml:"failed"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate synthetic load against an engine",
		Long: `Run drives an in-process engine with synthetic operations and prints its
statistics. Operations sharing a key are identical, so lowering --keys raises
the coalescing rate; --failure-rate trips circuit breakers.`,
		Example: `  # 1000 calls over 100 distinct keys
  execbench run

  # Heavy failures, JSON output
  execbench run --failure-rate 0.6 --json

  # Follow the load with a 200 item batch
  execbench run --batch 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			report, err := runLoad(cmd.Context(), cfg, log, opts)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), report, jsonOutput)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.requests, "requests", "n", 1000, "number of Execute calls")
	f.IntVar(&opts.concurrency, "concurrency", 50, "concurrent callers")
	f.IntVar(&opts.batch, "batch", 0, "items in a trailing ExecuteBatch call")
	f.DurationVar(&opts.timeout, "timeout", 0, "explicit per-call timeout (0 for adaptive)")
	f.IntVar(&opts.retries, "retries", 0, "retries per call")
	f.IntVar(&opts.workload.keys, "keys", 100, "distinct operation keys")
	f.DurationVar(&opts.workload.latency, "latency", 20*time.Millisecond, "base operation latency")
	f.DurationVar(&opts.workload.jitter, "jitter", 10*time.Millisecond, "random latency added per call")
	f.Float64Var(&opts.workload.failureRate, "failure-rate", 0.05, "probability that a call fails")

	return cmd
}

func runLoad(ctx context.Context, cfg *Config, log *logger.Logger, opts runOptions) (*runReport, error) {
	if opts.requests < 0 || opts.concurrency <= 0 || opts.batch < 0 {
		return nil, fmt.Errorf("requests and batch must be non-negative and concurrency positive")
	}

	e := engine.New(cfg.Engine, engine.WithLogger(log.WithComponent("engine")))
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Engine.ShutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Warn("Engine shutdown incomplete", logger.ErrorFields("shutdown", err))
		}
	}()

	log.Info("Starting run", logger.Fields(
		"requests", opts.requests,
		"concurrency", opts.concurrency,
		"keys", opts.workload.keys,
		"version", version.Get().Short(),
	))

	var failed atomic.Int64
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(opts.concurrency)
	for i := range opts.requests {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			op, typ := opts.workload.op(i)
			_, err := e.Execute(ctx, op, callOptions(typ, opts)...)
			if err != nil {
				failed.Add(1)
				log.Debug("Call failed", logger.ErrorFields(op.Name(), err))
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	report := &runReport{
		Requests: opts.requests,
		Failed:   failed.Load(),
		Elapsed:  elapsed,
	}
	if elapsed > 0 {
		report.Throughput = float64(opts.requests) / elapsed.Seconds()
	}
	log.Info("Load finished", logger.DurationFields("run", elapsed))

	if opts.batch > 0 {
		report.Batch = runBatch(ctx, e, opts)
		log.Info("Batch finished", logger.DurationFields("batch", report.Batch.Elapsed))
	}

	report.Engine = e.Stats()
	if ctx.Err() != nil {
		log.Warn("Run interrupted", logger.ErrorFields("run", context.Cause(ctx)))
	}
	return report, nil
}

func runBatch(ctx context.Context, e *engine.Engine, opts runOptions) *batchReport {
	items := make([]engine.BatchItem, opts.batch)
	for i := range items {
		op, typ := opts.workload.op(i)
		items[i] = engine.BatchItem{
			Op:       op,
			Type:     typ,
			Priority: i % 3,
			Options:  callOptions(typ, opts)[1:],
		}
	}

	start := time.Now()
	results := e.ExecuteBatch(ctx, items)
	r := &batchReport{Items: len(items), Elapsed: time.Since(start)}
	for _, res := range results {
		if res.Err != nil {
			r.Failed++
		}
	}
	return r
}

// callOptions always starts with the task type.
func callOptions(typ engine.TaskType, opts runOptions) []engine.CallOption {
	co := []engine.CallOption{engine.WithTaskType(typ)}
	if opts.timeout > 0 {
		co = append(co, engine.WithTimeout(opts.timeout))
	}
	if opts.retries > 0 {
		co = append(co, engine.WithRetries(opts.retries))
	}
	return co
}
