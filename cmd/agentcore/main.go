// Command agentcore is a minimal CLI driving the core against a local
// Ollama daemon.
//
// Usage:
//
//	agentcore run "summarize the README" --model llama3.2
//	agentcore run "what time is it" --model llama3.2 --solver react
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/agentcore/internal/demo"
	"github.com/kadirpekel/agentcore/pkg/broker"
	"github.com/kadirpekel/agentcore/pkg/coreconfig"
	"github.com/kadirpekel/agentcore/pkg/corelog"
	"github.com/kadirpekel/agentcore/pkg/solver"
	"github.com/kadirpekel/agentcore/pkg/tool"
)

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Run a goal through the solver."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config   string `short:"c" help:"Path to YAML config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd prints the binary's version.
type VersionCmd struct{}

// Run implements the version command.
func (c *VersionCmd) Run() error {
	fmt.Println("agentcore dev")
	return nil
}

// RunCmd drives one goal through a solver.
type RunCmd struct {
	Goal          string `arg:"" help:"Goal to give the solver."`
	Model         string `help:"Model name." required:""`
	Solver        string `help:"Solver kind (simple, react)." default:"simple"`
	MaxIterations int    `name:"max-iterations" help:"Iteration cap (overrides config default)."`
}

// Run implements the run command.
func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger := corelog.New("agentcore", corelog.ParseLevel(cli.LogLevel))

	cfg := &coreconfig.Config{}
	if cli.Config != "" {
		loaded, err := coreconfig.Load(cli.Config)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg.SetDefaults()
	}

	cfg.Solver.Model = c.Model
	if c.Solver != "" {
		cfg.Solver.Kind = coreconfig.SolverKind(c.Solver)
	}
	if c.MaxIterations > 0 {
		cfg.Solver.MaxIterations = c.MaxIterations
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	gw := demo.NewOllamaGateway()
	tools := []tool.Tool{demo.EchoTool{}, demo.ClockTool{Now: func() string { return "now" }}}
	br := broker.New(gw, tools, broker.WithLogger(logger))

	var result solver.Result
	var err error
	switch cfg.Solver.Kind {
	case coreconfig.SolverKindReact:
		rs := solver.NewReactSolver(br, cfg.Solver.Model, tools,
			solver.WithReactMaxIterations(cfg.Solver.MaxIterations),
			solver.WithReactTimeout(cfg.Solver.Timeout))
		result, err = rs.Solve(ctx, c.Goal)
	default:
		ss := solver.NewSimpleSolver(br, cfg.Solver.Model, solver.WithSimpleMaxIterations(cfg.Solver.MaxIterations))
		result, err = ss.Solve(ctx, c.Goal)
	}
	if err != nil {
		return err
	}

	fmt.Println(result.State.Solution)
	logger.Info("solve complete", "outcome", result.Outcome, "iterations", result.State.Iteration)
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentcore"),
		kong.Description("agentcore - event-driven agent coordination core"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
