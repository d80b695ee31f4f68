package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sentinel-review/sentinel/internal/adapters/executor"
	"github.com/sentinel-review/sentinel/internal/adapters/github"
	"github.com/sentinel-review/sentinel/internal/adapters/ledger"
	"github.com/sentinel-review/sentinel/internal/core"
	"github.com/sentinel-review/sentinel/internal/events"
	"github.com/sentinel-review/sentinel/internal/service"
)

var reviewFlags struct {
	owner         string
	repo          string
	budget        float64
	maxIterations int
	skipStyle     bool
	agents        []string
	noPublish     bool
	concurrency   int
}

var reviewCmd = &cobra.Command{
	Use:   "review <pr-number> [pr-number...]",
	Short: "Run the agent review over one or more pull requests",
	Long: `Run the full agent review over the given pull requests. Each run
fetches the change-set, drives the coordinator and specialist agents until
a termination condition fires, archives the run, and posts the synthesized
verdict as a pull request review.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVar(&reviewFlags.owner, "owner", "", "repository owner (required)")
	reviewCmd.Flags().StringVar(&reviewFlags.repo, "repo", "", "repository name (required)")
	reviewCmd.Flags().Float64Var(&reviewFlags.budget, "budget", 0, "cost budget in dollars (default from config)")
	reviewCmd.Flags().IntVar(&reviewFlags.maxIterations, "max-iterations", 0, "iteration ceiling (default from config)")
	reviewCmd.Flags().BoolVar(&reviewFlags.skipStyle, "skip-style", false, "exclude the style agent")
	reviewCmd.Flags().StringSliceVar(&reviewFlags.agents, "agents", nil, "restrict worker agents (security, codereview, style)")
	reviewCmd.Flags().BoolVar(&reviewFlags.noPublish, "no-publish", false, "do not post the review, only print and archive it")
	reviewCmd.Flags().IntVar(&reviewFlags.concurrency, "concurrency", 0, "concurrent reviews (default from config)")

	_ = reviewCmd.MarkFlagRequired("owner")
	_ = reviewCmd.MarkFlagRequired("repo")

	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg)

	numbers := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return core.ErrValidation(core.CodeInvalidRequest,
				fmt.Sprintf("not a pull request number: %q", arg))
		}
		numbers = append(numbers, n)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agentIDs, err := parseAgentFlags(reviewFlags.agents)
	if err != nil {
		return err
	}

	// The executor needs the same topology the engine enforces, so its
	// prompts only offer legal handoff targets.
	regOpts := make([]core.RegistryOption, 0, 2)
	if len(agentIDs) > 0 {
		regOpts = append(regOpts, core.WithAgents(agentIDs...))
	}
	if reviewFlags.skipStyle || cfg.Review.SkipStyle {
		regOpts = append(regOpts, core.WithSkipStyle())
	}
	registry, err := core.NewRegistry(regOpts...)
	if err != nil {
		return err
	}

	ghClient, err := github.NewClient()
	if err != nil {
		return err
	}
	ghClient = ghClient.WithTimeout(cfg.GitHub.Timeout)

	exec, err := executor.New(executor.Config{
		Path: cfg.Agent.Path,
		Models: map[core.ModelTier]string{
			core.TierFast:     cfg.Agent.FastModel,
			core.TierStandard: cfg.Agent.StandardModel,
			core.TierAdvanced: cfg.Agent.AdvancedModel,
		},
		Timeout: cfg.Agent.Timeout,
		WorkDir: cfg.Agent.WorkDir,
	}, registry, executor.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := exec.CheckAvailability(); err != nil {
		return err
	}

	store, err := ledger.Open(cfg.Ledger.Path, ledger.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	var publisher core.ReviewPublisher
	if !reviewFlags.noPublish {
		publisher = ghClient
	}

	bus := events.NewBus()
	defer bus.Close()
	go func() {
		for ev := range bus.Subscribe() {
			logger.Debug("run event", "type", ev.EventType(), "run_id", ev.RunID())
		}
	}()

	engine := service.NewEngine(ghClient, exec, store, publisher,
		service.WithLogger(logger),
		service.WithBus(bus),
		service.WithTurnPause(cfg.Review.TurnPause),
	)

	budget := cfg.Review.BudgetLimit
	if reviewFlags.budget > 0 {
		budget = reviewFlags.budget
	}
	maxIter := cfg.Review.MaxIterations
	if reviewFlags.maxIterations > 0 {
		maxIter = reviewFlags.maxIterations
	}
	concurrency := cfg.Review.Concurrency
	if reviewFlags.concurrency > 0 {
		concurrency = reviewFlags.concurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]*service.RunResult, len(numbers))
	for i, number := range numbers {
		i, number := i, number
		g.Go(func() error {
			req := core.ReviewRequest{
				RepositoryOwner: reviewFlags.owner,
				RepositoryName:  reviewFlags.repo,
				ChangeSetID:     number,
				BudgetLimit:     budget,
				MaxIterations:   maxIter,
				AgentsToRun:     agentIDs,
				SkipStyle:       reviewFlags.skipStyle || cfg.Review.SkipStyle,
			}

			result, err := engine.Run(gctx, req)
			if err != nil {
				return err
			}
			results[i] = result

			if err := store.SaveRun(gctx, result); err != nil {
				logger.Warn("archiving run failed", "run_id", result.RunID, "error", err)
			}
			if path, err := service.WriteReport(cfg.Report.Dir, result); err != nil {
				logger.Warn("writing report failed", "run_id", result.RunID, "error", err)
			} else {
				logger.Info("report written", "path", path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, result := range results {
		if result == nil {
			continue
		}
		printResult(cmd, result)
		if !result.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d review(s) did not complete cleanly", failed, len(numbers))
	}
	return nil
}

func parseAgentFlags(names []string) ([]core.AgentID, error) {
	var out []core.AgentID
	for _, name := range names {
		id, err := core.ParseAgentID(name)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func printResult(cmd *cobra.Command, r *service.RunResult) {
	cmd.Printf("\n%s/%s#%d  %s\n", r.RepositoryOwner, r.RepositoryName, r.ChangeSetID, r.RunID)
	cmd.Printf("  status:   %s\n", r.ReviewStatus)
	cmd.Printf("  reason:   %s\n", r.CompletionReason)
	cmd.Printf("  findings: %d (%d high, %d medium, %d low, %d info)\n",
		len(r.Findings), r.Summary.HighCount, r.Summary.MediumCount,
		r.Summary.LowCount, r.Summary.InfoCount)
	cmd.Printf("  cost:     $%.4f over %d iterations (%d tokens)\n",
		r.TotalCost, r.Metadata.Iterations, r.TotalTokens)
	if r.Error != "" {
		cmd.Printf("  error:    %s\n", r.Error)
	}
}
