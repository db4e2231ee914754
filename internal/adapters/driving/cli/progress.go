package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/boltindex/internal/adapters/driving/tui/progress"
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
)

// runExecution runs an execution, showing the interactive progress view when
// stdout is a terminal and plain polling output otherwise.
func runExecution(
	cmd *cobra.Command,
	engine driving.ExecutionEngine,
	executionID string,
	plain bool,
) (*domain.RunResult, error) {
	if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
		return progress.Run(cmd.Context(), engine, executionID)
	}
	return runWithPolling(cmd.Context(), cmd, engine, executionID)
}

// runWithPolling runs the execution while printing step progress.
func runWithPolling(
	ctx context.Context,
	cmd *cobra.Command,
	engine driving.ExecutionEngine,
	executionID string,
) (*domain.RunResult, error) {
	type outcome struct {
		res *domain.RunResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := engine.Run(ctx, executionID)
		done <- outcome{res, err}
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastDone := -1
	for {
		select {
		case o := <-done:
			if lastDone >= 0 {
				cmd.Println()
			}
			return o.res, o.err
		case <-ticker.C:
			// Best effort; the run result carries any real error.
			st, err := engine.Status(ctx, executionID)
			if err != nil || st == nil {
				continue
			}
			n := st.CountSteps(domain.StepCompleted)
			if n != lastDone {
				cmd.Printf("\rRunning... %d/%d steps", n, len(st.Plan.Steps))
				lastDone = n
			}
		}
	}
}

// printRunResult summarises how a run ended.
func printRunResult(cmd *cobra.Command, res *domain.RunResult) {
	st := &res.State
	cmd.Printf("Execution %s %s (%d/%d steps completed)\n",
		st.ExecutionID, res.Outcome(), st.CountSteps(domain.StepCompleted), len(st.Plan.Steps))

	degraded := 0
	for _, e := range res.Events {
		if e.Kind == domain.EventDegradedEmbedding {
			degraded++
			continue
		}
		cmd.Printf("  %s %s: %s\n", e.Kind, e.StepID, e.Message)
	}
	if degraded > 0 {
		cmd.Printf("  %d embeddings are structural-only (no oracle)\n", degraded)
	}

	for _, step := range st.Plan.Steps {
		if s := st.Steps[step.ID]; s != nil && s.Status == domain.StepFailed {
			cmd.Printf("  step %s failed: %s\n", step.ID, s.Error)
		}
	}
	if res.Outcome() == domain.OutcomePaused && st.LastCheckpointID != "" {
		cmd.Printf("Resume with: boltindex resume %s\n", st.LastCheckpointID)
	}
}
