package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seantiz/dispatch/internal/model"
	"github.com/seantiz/dispatch/internal/workflow"
)

var runFile string

var runCmd = &cobra.Command{
	Use:   "run -f <workflow.yaml>",
	Short: "Run a workflow definition",
	Long: `Run the steps of a YAML workflow definition in order:

  name: report
  context:
    audience: engineering
  steps:
    - id: search
      target: web_search_agent
      instruction: Find recent incidents
      timeout_s: 60
    - id: summary
      target: content_generator_agent
      instruction: Summarize the incidents
      depends_on: [search]

Each step receives the workflow context, its own context, and the results
of its dependencies under result_<step id>. The first failed step aborts
the run.`,
	Args: cobra.NoArgs,
	RunE: runWorkflowCmd,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Workflow definition file")
	_ = runCmd.MarkFlagRequired("file")
}

func runWorkflowCmd(cmd *cobra.Command, args []string) error {
	def, err := workflow.LoadDefinition(runFile)
	if err != nil {
		return err
	}

	st, err := loadStack(os.Stderr)
	if err != nil {
		return err
	}
	defer st.close(context.Background())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := st.runner.RunDefinition(ctx, def)
	if st.archive != nil {
		if err := st.archive.SaveWorkflowRun(context.WithoutCancel(ctx), run); err != nil {
			st.logger.Error("archive workflow run", "workflow_id", run.WorkflowID, "error", err)
		}
	}

	printRun(cmd.OutOrStdout(), run, def.Steps)
	if run.Status != model.StatusSuccess {
		if run.Err != nil {
			return run.Err
		}
		return errors.New(run.Error)
	}
	return nil
}

// runPlanned runs steps produced by the planner.
func runPlanned(cmd *cobra.Command, name string, steps []model.WorkflowStep) error {
	st, err := loadStack(os.Stderr)
	if err != nil {
		return err
	}
	defer st.close(context.Background())

	run := st.runner.Run(cmd.Context(), name, steps, nil)
	printRun(cmd.OutOrStdout(), run, steps)
	if run.Status != model.StatusSuccess {
		return fmt.Errorf("workflow %s: %s", run.Status, run.Error)
	}
	return nil
}
