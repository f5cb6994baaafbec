package solver

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kadirpekel/agentcore/pkg/broker"
	"github.com/kadirpekel/agentcore/pkg/corelog"
	"github.com/kadirpekel/agentcore/pkg/gateway"
	"github.com/kadirpekel/agentcore/pkg/metrics"
)

const defaultSimpleMaxIterations = 5

// doneFailPattern matches standalone `done`/`fail` tokens, case
// insensitive, without firing on embedded substrings like "failed",
// "undone" or "abandoned".
var doneFailPattern = regexp.MustCompile(`(?i)\b(done|fail)\b`)

// SimpleOption configures a SimpleSolver at construction time.
type SimpleOption func(*SimpleSolver)

// WithSimpleMaxIterations overrides the iteration cap. Default is 5.
func WithSimpleMaxIterations(n int) SimpleOption {
	return func(s *SimpleSolver) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithSimpleLogger attaches a structured logger. Defaults to corelog.Noop().
func WithSimpleLogger(logger *slog.Logger) SimpleOption {
	return func(s *SimpleSolver) { s.logger = logger }
}

// WithSimpleRecorder attaches a Recorder. Defaults to metrics.Noop().
func WithSimpleRecorder(r metrics.Recorder) SimpleOption {
	return func(s *SimpleSolver) { s.recorder = r }
}

// SimpleSolver drives a goal to completion by scanning each broker
// response for a standalone DONE or FAIL token, issuing a final summary
// prompt regardless of how the loop exited.
type SimpleSolver struct {
	br            *broker.Broker
	model         string
	maxIterations int

	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewSimpleSolver builds a SimpleSolver driving br toward a goal using
// model.
func NewSimpleSolver(br *broker.Broker, model string, opts ...SimpleOption) *SimpleSolver {
	s := &SimpleSolver{
		br:            br,
		model:         model,
		maxIterations: defaultSimpleMaxIterations,
		logger:        corelog.Noop(),
		recorder:      metrics.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve drives the loop until a DONE/FAIL token is observed or the
// iteration cap is reached, then always issues a final summary prompt.
func (s *SimpleSolver) Solve(ctx context.Context, goal string) (Result, error) {
	start := time.Now()
	state := GoalState{Goal: goal, MaxIterations: s.maxIterations}
	history := make(History, 0, s.maxIterations)
	messages := []gateway.Message{{Role: gateway.RoleUser, Content: goal}}

	outcome := OutcomeCapExceeded
	var last string

	for state.Iteration < s.maxIterations {
		state.Iteration++

		resp, err := s.br.Generate(ctx, s.model, messages, gateway.DefaultCompletionConfig())
		if err != nil {
			s.logger.Warn("simple solver generate failed", "iteration", state.Iteration, "error", err)
			outcome = OutcomeFail
			last = err.Error()
			break
		}

		last = resp
		history = append(history, Step{Observation: resp})
		messages = append(messages, gateway.Message{Role: gateway.RoleAssistant, Content: resp})

		match := doneFailPattern.FindStringSubmatch(resp)
		if match == nil {
			s.recorder.RecordSolverIteration("continue")
			continue
		}

		if strings.EqualFold(match[1], "fail") {
			outcome = OutcomeFail
		} else {
			outcome = OutcomeDone
		}
		s.recorder.RecordSolverIteration(string(outcome))
		break
	}

	summary, err := s.summarize(ctx, goal, outcome, last)
	if err != nil {
		summary = last
	}

	state.Solution = summary
	state.IsComplete = outcome == OutcomeDone
	s.recorder.RecordSolverCompletion(string(outcome), state.Iteration, time.Since(start))

	return Result{State: state, History: history, Outcome: outcome}, nil
}

func (s *SimpleSolver) summarize(ctx context.Context, goal string, outcome Outcome, last string) (string, error) {
	prompt := "Goal: " + goal + "\nLatest response: " + last + "\nOutcome: " + string(outcome) +
		"\nProvide a final, concise summary of the result for the user."
	messages := []gateway.Message{{Role: gateway.RoleUser, Content: prompt}}
	return s.br.Generate(ctx, s.model, messages, gateway.DefaultCompletionConfig())
}
