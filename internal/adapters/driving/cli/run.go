package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/config/planfile"
	"github.com/custodia-labs/boltindex/internal/core/domain"
)

func newRunCommand(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Run a processing plan",
		Long: `Validates a YAML plan, starts a checkpointed execution of it and runs it
until every step finishes, a step fails, or the run is paused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			plan, err := planfile.Load(args[0])
			if err != nil {
				return err
			}
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}
			state, err := svc.engine.Initialize(ctx, plan)
			if err != nil {
				return fmt.Errorf("starting plan %s: %w", plan.ID, err)
			}
			cmd.Printf("Running plan %s as execution %s...\n", plan.ID, state.ExecutionID)

			res, err := runExecution(cmd, svc.engine, state.ExecutionID, plain)
			if err != nil {
				return err
			}
			printRunResult(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "no-progress", false, "print plain progress instead of the interactive view")
	return cmd
}

func newResumeCommand(a *app) *cobra.Command {
	var latest string
	cmd := &cobra.Command{
		Use:   "resume [checkpoint-id]",
		Short: "Resume an execution from a checkpoint",
		Long: `Restores an execution from a checkpoint and runs its remaining steps.
Use --latest with an execution ID to resume from its newest checkpoint.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if latest == "" && len(args) != 1 {
				return errors.New("give a checkpoint id or --latest <execution-id>")
			}
			if latest != "" && len(args) != 0 {
				return errors.New("--latest does not take a checkpoint id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}

			var res *domain.RunResult
			if latest != "" {
				cmd.Printf("Resuming execution %s...\n", latest)
				res, err = svc.engine.ResumeLatest(ctx, latest)
			} else {
				cmd.Printf("Resuming from checkpoint %s...\n", args[0])
				res, err = svc.engine.Resume(ctx, args[0])
			}
			if err != nil {
				return fmt.Errorf("resume failed: %w", err)
			}
			printRunResult(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&latest, "latest", "", "resume this execution from its latest checkpoint")
	return cmd
}

func newExecutionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			states, err := svc.engine.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(states) == 0 {
				cmd.Println("No executions found.")
				return nil
			}
			for i := range states {
				st := &states[i]
				cmd.Printf("%s  %-9s  %d/%d  plan=%s  checkpoint=%s\n",
					st.ExecutionID, st.Status, st.CountSteps(domain.StepCompleted), len(st.Plan.Steps),
					st.PlanID, st.LastCheckpointID)
			}
			return nil
		},
	}
	cmd.AddCommand(
		newExecutionShowCommand(a),
		newExecutionDeleteCommand(a),
		newExecutionExportCommand(a),
	)
	return cmd
}

func newExecutionShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <execution-id>",
		Short: "Show an execution's steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			st, err := svc.engine.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("Execution: %s\n", st.ExecutionID)
			cmd.Printf("Plan:      %s\n", st.PlanID)
			cmd.Printf("Status:    %s\n", st.Status)
			if st.LastCheckpointID != "" {
				cmd.Printf("Checkpoint: %s\n", st.LastCheckpointID)
			}
			cmd.Println()
			for _, step := range st.Plan.Steps {
				status, attempts, msg := domain.StepPending, 0, ""
				if s := st.Steps[step.ID]; s != nil {
					status, attempts, msg = s.Status, s.Attempts, s.Error
				}
				cmd.Printf("  %-12s %-10s %-10s attempts=%d", step.ID, step.Kind, status, attempts)
				if msg != "" {
					cmd.Printf("  %s", msg)
				}
				cmd.Println()
			}
			return nil
		},
	}
}

func newExecutionDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <execution-id>",
		Short: "Delete an execution and its checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.engine.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Execution %s deleted.\n", args[0])
			return nil
		},
	}
}

func newExecutionExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <execution-id> <plan.yaml>",
		Short: "Write an execution's plan to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			st, err := svc.engine.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := planfile.Save(args[1], st.Plan); err != nil {
				return err
			}
			cmd.Printf("Plan %s written to %s.\n", st.PlanID, args[1])
			return nil
		},
	}
}

func newCheckpointsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoints <execution-id>",
		Short: "List an execution's checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd.Context())
			if err != nil {
				return err
			}
			cps, err := svc.engine.Checkpoints(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(cps) == 0 {
				cmd.Println("No checkpoints found.")
				return nil
			}
			for _, cp := range cps {
				cmd.Printf("%s  seq=%d  %s\n", cp.ID, cp.Sequence, cp.CreatedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}
