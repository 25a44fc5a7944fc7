package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
)

// treeCmd represents the tree command
var treeCmd = &cobra.Command{
	Use:   "tree <uuid>",
	Short: "Print a workflow tree",
	Long: `Prints the workflow with the given uuid and everything below it, two
spaces of indent per level. Steps show their status and recorded
successor; attached calculations show their pks.

With --mermaid the tree is emitted as a Mermaid flowchart instead, ready
to paste into any renderer that understands the syntax.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		profile, logger, err := setup(cmd)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		engine, closeEngine, err := cli.NewEngine(profile, logger)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer func() { _ = closeEngine() }()

		wf, err := engine.Workflows().Load(cmd.Context(), strings.TrimSpace(args[0]))
		if err != nil {
			fmt.Printf("Error loading workflow: %v\n", err)
			os.Exit(1)
		}

		if mermaid, _ := cmd.Flags().GetBool("mermaid"); mermaid {
			fmt.Print(graph.GenerateMermaid(wf))
			return
		}

		if root := wf.Root(); root != wf {
			fmt.Printf("Part of workflow <%d> %q, showing the subtree at %q.\n\n", root.PK, root.Label, wf.Label)
		}
		printWorkflow(wf, 0)
	},
}

func printWorkflow(wf *domain.Workflow, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s <%d> [%s] %s\n", indent, wf.Label, wf.PK, wf.Status, wf.UUID)

	for _, step := range wf.Steps {
		next := ""
		if step.Nextcall != "" {
			next = " -> " + step.Nextcall
		}
		fmt.Printf("%s  * %s (%s)%s\n", indent, step.Name, step.Status, next)

		for _, pk := range step.Calculations {
			fmt.Printf("%s    calc <%d>\n", indent, pk)
		}
		for _, sub := range step.Subworkflows {
			printWorkflow(sub, depth+2)
		}
	}
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().Bool("mermaid", false, "Render the tree as a Mermaid flowchart")
}
