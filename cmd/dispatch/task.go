package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/dispatch/internal/model"
)

var (
	taskContext string
	taskTimeout time.Duration
	taskWait    bool
)

var taskCmd = &cobra.Command{
	Use:   "task <target> <instruction>",
	Short: "Submit one task to a target",
	Long: `Submit one instruction to a target.

With --wait the command blocks until the task finishes and prints its
result. Without it the task is queued and the command still waits for the
engine to drain before exiting, printing the task id first.`,
	Args: cobra.ExactArgs(2),
	RunE: runTaskCmd,
}

func init() {
	taskCmd.Flags().StringVar(&taskContext, "context", "", "Task context as a JSON object")
	taskCmd.Flags().DurationVar(&taskTimeout, "timeout", 0, "Task timeout (default: default_timeout)")
	taskCmd.Flags().BoolVar(&taskWait, "wait", false, "Wait for the result and print it")
}

func runTaskCmd(cmd *cobra.Command, args []string) error {
	var taskCtx map[string]any
	if taskContext != "" {
		if err := json.Unmarshal([]byte(taskContext), &taskCtx); err != nil {
			return fmt.Errorf("parse --context: %w", err)
		}
	}

	st, err := loadStack(os.Stderr)
	if err != nil {
		return err
	}
	defer st.close(context.Background())

	ctx := cmd.Context()
	id, err := st.engine.Submit(ctx, model.TaskRequest{
		TargetName:  args[0],
		Instruction: args[1],
		Context:     taskCtx,
		Timeout:     taskTimeout,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !taskWait {
		printStatus(out, model.StatusRunning, "submitted "+id)
		return nil
	}

	res, err := st.engine.Wait(ctx, id, taskTimeout)
	if err != nil {
		return err
	}
	printResult(out, id, res)
	if res.Status != model.StatusSuccess {
		return fmt.Errorf("task %s: %s", res.Status, res.Error)
	}
	return nil
}
