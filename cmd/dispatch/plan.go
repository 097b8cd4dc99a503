package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seantiz/dispatch/internal/workflow"
)

var planRun bool

var planCmd = &cobra.Command{
	Use:   "plan <requirements>",
	Short: "Plan a workflow from free-form requirements",
	Long: `Translate requirements into workflow steps by keyword and print them
as a workflow definition that 'dispatch run -f' accepts.

  search / find / lookup          -> web_search_agent
  analyze / process / calculate   -> data_analysis_agent
  generate / create / write       -> content_generator_agent

With --run the planned workflow is executed immediately.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planRun, "run", false, "Run the planned workflow")
}

func runPlan(cmd *cobra.Command, args []string) error {
	requirements := strings.Join(args, " ")
	steps, err := workflow.NewKeywordPlanner().Plan(requirements)
	if err != nil {
		return err
	}

	if planRun {
		return runPlanned(cmd, "planned", steps)
	}

	def := workflow.Definition{Name: "planned", Steps: steps}
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
