package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seantiz/dispatch/internal/target"
)

var (
	targetsCapability  string
	targetsTriggerType string
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List registered targets",
	Long: `List the targets available to tasks and workflows: the built-in
targets plus every definition in the targets directory.`,
	Args: cobra.NoArgs,
	RunE: runTargets,
}

func init() {
	targetsCmd.Flags().StringVar(&targetsCapability, "capability", "", "Only targets advertising this capability")
	targetsCmd.Flags().StringVar(&targetsTriggerType, "trigger-type", "", "Only targets with this trigger type")
}

func runTargets(cmd *cobra.Command, args []string) error {
	st, err := loadStack(os.Stderr)
	if err != nil {
		return err
	}
	defer st.close(cmd.Context())

	var targets []target.Target
	if targetsCapability != "" {
		targets = st.registry.ByCapability(targetsCapability)
	} else {
		targets = st.registry.List(targetsTriggerType)
	}

	out := cmd.OutOrStdout()
	if len(targets) == 0 {
		fmt.Fprintln(out, "No targets found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTRIGGER\tENDPOINT\tCAPABILITIES")
	for _, t := range targets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.TriggerType, t.Endpoint, strings.Join(t.Capabilities, ","))
	}
	return tw.Flush()
}
