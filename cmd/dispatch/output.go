package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/seantiz/dispatch/internal/model"
)

// statusColor maps a task or workflow status to its display color.
func statusColor(status string) color.Attribute {
	switch status {
	case model.StatusSuccess:
		return color.FgGreen
	case model.StatusRunning:
		return color.FgCyan
	case model.StatusTimeout:
		return color.FgYellow
	default:
		return color.FgRed
	}
}

func statusSymbol(status string) string {
	switch status {
	case model.StatusSuccess:
		return "✓"
	case model.StatusRunning:
		return "…"
	case model.StatusTimeout:
		return "⚠"
	default:
		return "✗"
	}
}

func printStatus(w io.Writer, status, message string) {
	c := color.New(statusColor(status))
	fmt.Fprintf(w, "%s %s\n", c.Sprint(statusSymbol(status)), message)
}

// printResult writes a task result as a status line followed by its payload
// or error.
func printResult(w io.Writer, label string, res *model.TaskResult) {
	printStatus(w, res.Status, fmt.Sprintf("%s [%s] %s (%.2fs)", label, res.TargetName, res.Status, res.ExecutionTime))
	if res.Error != "" {
		fmt.Fprintf(w, "    %s %s\n", color.RedString("error:"), res.Error)
		return
	}
	if res.Result != nil {
		fmt.Fprintln(w, indent(formatPayload(res.Result), "    "))
	}
}

// printRun writes a workflow run: one line per step, then the outcome.
func printRun(w io.Writer, run *model.WorkflowRun, steps []model.WorkflowStep) {
	results := run.Results
	if results == nil {
		results = run.PartialResults
	}
	for _, step := range steps {
		res, ok := results[step.StepID()]
		if !ok {
			fmt.Fprintf(w, "%s %s skipped\n", color.New(color.Faint).Sprint("-"), step.StepID())
			continue
		}
		printResult(w, step.StepID(), res)
	}

	elapsed := run.FinishedAt.Sub(run.StartedAt).Seconds()
	msg := fmt.Sprintf("workflow %s %s in %.2fs", run.WorkflowID, run.Status, elapsed)
	if run.Error != "" {
		msg += ": " + run.Error
	}
	fmt.Fprintln(w)
	printStatus(w, run.Status, msg)
}

func formatPayload(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
