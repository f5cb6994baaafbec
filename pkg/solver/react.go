package solver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/agentcore/pkg/broker"
	"github.com/kadirpekel/agentcore/pkg/corelog"
	"github.com/kadirpekel/agentcore/pkg/gateway"
	"github.com/kadirpekel/agentcore/pkg/metrics"
	"github.com/kadirpekel/agentcore/pkg/tool"
)

// state is the ReactSolver's internal position in the
// Thinking/Deciding/Acting/Finishing/Failed machine.
type state string

const (
	stateThinking  state = "thinking"
	stateDeciding  state = "deciding"
	stateActing    state = "acting"
	stateFinishing state = "finishing"
)

const defaultReactMaxIterations = 10
const defaultReactTimeout = 300 * time.Second

type planDecision struct {
	Steps []string `json:"steps"`
}

type actionDecision struct {
	Action    string         `json:"action"` // PLAN | ACT | FINISH
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Thought   string         `json:"thought,omitempty"`
}

var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"steps": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"steps"},
}

var decisionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"action":    map[string]any{"type": "string", "enum": []string{"PLAN", "ACT", "FINISH"}},
		"tool":      map[string]any{"type": "string"},
		"arguments": map[string]any{"type": "object"},
		"thought":   map[string]any{"type": "string"},
	},
	"required": []string{"action"},
}

// ReactOption configures a ReactSolver at construction time.
type ReactOption func(*ReactSolver)

// WithReactMaxIterations overrides the iteration cap. Default is 10.
func WithReactMaxIterations(n int) ReactOption {
	return func(s *ReactSolver) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithReactTimeout overrides the wall-clock deadline for one Solve call.
// Default is 300 seconds.
func WithReactTimeout(d time.Duration) ReactOption {
	return func(s *ReactSolver) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithReactLogger attaches a structured logger. Defaults to corelog.Noop().
func WithReactLogger(logger *slog.Logger) ReactOption {
	return func(s *ReactSolver) { s.logger = logger }
}

// WithReactRecorder attaches a Recorder. Defaults to metrics.Noop().
func WithReactRecorder(r metrics.Recorder) ReactOption {
	return func(s *ReactSolver) { s.recorder = r }
}

// ReactSolver drives the full think/decide/(act|finish)/observe state
// machine against a broker.Broker, using structured-output decisions to
// choose between planning, acting and finishing.
type ReactSolver struct {
	br            *broker.Broker
	model         string
	tools         []tool.Tool
	maxIterations int
	timeout       time.Duration

	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewReactSolver builds a ReactSolver driving br toward a goal using
// model, with tools available for the Acting state to invoke.
func NewReactSolver(br *broker.Broker, model string, tools []tool.Tool, opts ...ReactOption) *ReactSolver {
	s := &ReactSolver{
		br:            br,
		model:         model,
		tools:         tools,
		maxIterations: defaultReactMaxIterations,
		timeout:       defaultReactTimeout,
		logger:        corelog.Noop(),
		recorder:      metrics.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve runs the state machine until Finishing produces a solution,
// Failed is reached (invalid decision, unknown tool, iteration cap, LLM
// error), or the timeout elapses.
func (s *ReactSolver) Solve(ctx context.Context, goal string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	goalState := GoalState{Goal: goal, MaxIterations: s.maxIterations}
	history := make(History, 0, s.maxIterations)
	plan := []string{}
	cur := stateThinking

	var pendingTool tool.Tool
	var pendingArgs map[string]any

	for {
		select {
		case <-ctx.Done():
			return s.finish(goalState, history, OutcomeTimeout, "timed out waiting for a solution", start), nil
		default:
		}

		switch cur {
		case stateThinking:
			steps, err := s.think(ctx, goal, history)
			if err != nil {
				return s.finish(goalState, history, OutcomeFail, err.Error(), start), nil
			}
			plan = steps
			cur = stateDeciding

		case stateDeciding:
			if goalState.Iteration >= s.maxIterations {
				return s.finish(goalState, history, OutcomeCapExceeded, "iteration cap exceeded", start), nil
			}
			goalState.Iteration++

			decision, err := s.decide(ctx, goal, plan, history)
			if err != nil {
				return s.finish(goalState, history, OutcomeFail, err.Error(), start), nil
			}

			switch strings.ToUpper(decision.Action) {
			case "ACT":
				t, ok := tool.Find(s.tools, decision.Tool)
				if !ok {
					return s.finish(goalState, history, OutcomeFail, fmt.Sprintf("unknown tool %q", decision.Tool), start), nil
				}
				pendingTool, pendingArgs = t, decision.Arguments
				history = append(history, Step{Thought: decision.Thought, Action: decision.Tool})
				cur = stateActing
			case "PLAN":
				cur = stateThinking
			case "FINISH":
				cur = stateFinishing
			default:
				return s.finish(goalState, history, OutcomeFail, fmt.Sprintf("invalid decision %q", decision.Action), start), nil
			}

		case stateActing:
			result, err := pendingTool.Run(ctx, pendingArgs)
			observation := result.Content
			if err != nil {
				observation = err.Error()
				s.logger.Warn("react solver tool failed", "tool", pendingTool.Name(), "error", err)
			}
			history[len(history)-1].Observation = observation
			cur = stateDeciding

		case stateFinishing:
			summary, err := s.br.Generate(ctx, s.model, s.summaryMessages(goal, history), gateway.DefaultCompletionConfig())
			if err != nil {
				return s.finish(goalState, history, OutcomeFail, err.Error(), start), nil
			}
			return s.finish(goalState, history, OutcomeDone, summary, start), nil
		}
	}
}

func (s *ReactSolver) finish(goalState GoalState, history History, outcome Outcome, solution string, start time.Time) Result {
	goalState.Solution = solution
	goalState.IsComplete = outcome == OutcomeDone
	s.recorder.RecordSolverCompletion(string(outcome), goalState.Iteration, time.Since(start))
	return Result{State: goalState, History: history, Outcome: outcome}
}

func (s *ReactSolver) think(ctx context.Context, goal string, history History) ([]string, error) {
	prompt := "Goal: " + goal + "\n" + renderHistory(history) + "\nProduce a step-wise plan to achieve the goal."
	messages := []gateway.Message{{Role: gateway.RoleUser, Content: prompt}}

	obj, err := s.br.GenerateObject(ctx, s.model, messages, planSchema, gateway.DefaultCompletionConfig())
	if err != nil {
		return nil, err
	}

	var plan planDecision
	if err := decodeObject(obj, &plan); err != nil {
		return nil, err
	}
	return plan.Steps, nil
}

func (s *ReactSolver) decide(ctx context.Context, goal string, plan []string, history History) (actionDecision, error) {
	prompt := "Goal: " + goal + "\nPlan: " + strings.Join(plan, "; ") + "\n" + renderHistory(history) +
		"\nDecide the next step: PLAN to revise the plan, ACT to invoke a tool, or FINISH to answer."
	messages := []gateway.Message{{Role: gateway.RoleUser, Content: prompt}}

	obj, err := s.br.GenerateObject(ctx, s.model, messages, decisionSchema, gateway.DefaultCompletionConfig())
	if err != nil {
		return actionDecision{}, err
	}

	var decision actionDecision
	if err := decodeObject(obj, &decision); err != nil {
		return actionDecision{}, err
	}
	return decision, nil
}

func (s *ReactSolver) summaryMessages(goal string, history History) []gateway.Message {
	prompt := "Goal: " + goal + "\n" + renderHistory(history) + "\nProvide the final answer to the user."
	return []gateway.Message{{Role: gateway.RoleUser, Content: prompt}}
}

func renderHistory(history History) string {
	if len(history) == 0 {
		return "History: (none yet)"
	}
	var b strings.Builder
	b.WriteString("History:\n")
	for i, step := range history {
		fmt.Fprintf(&b, "%d. thought=%q action=%q observation=%q\n", i+1, step.Thought, step.Action, step.Observation)
	}
	return b.String()
}

// decodeObject decodes a Gateway's loosely-typed structured-output Object
// into a concrete Go struct using mapstructure.
func decodeObject(obj any, target any) error {
	return mapstructure.Decode(obj, target)
}
