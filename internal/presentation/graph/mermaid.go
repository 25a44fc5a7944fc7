package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart syntax string from a workflow
// tree. It applies semantic styling:
// - Root workflow: ((Circle))
// - Sub-workflow: [Rectangle]
// - Step: [[Subroutine]]
// - Calculation: [/Parallelogram/]
// Statuses map to style classes so a rendered tree shows at a glance what is
// still running and what was killed.
func GenerateMermaid(root *domain.Workflow) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var running, finished, killed []string
	seen := make(map[int]bool)
	writeWorkflow(&sb, root, seen, &running, &finished, &killed)

	// Status Styles
	sb.WriteString("\n    %% Status Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	sb.WriteString("    classDef running fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	sb.WriteString("    classDef finished fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef killed fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
	writeClass(&sb, "running", running)
	writeClass(&sb, "finished", finished)
	writeClass(&sb, "killed", killed)

	return sb.String()
}

func writeWorkflow(sb *strings.Builder, wf *domain.Workflow, seen map[int]bool, running, finished, killed *[]string) {
	// A re-encountered pk is skipped, matching the subtree listing.
	if seen[wf.PK] {
		return
	}
	seen[wf.PK] = true

	wfID := fmt.Sprintf("wf%d", wf.PK)

	// Workflow Shape: circle for the root, rectangle below it.
	opener, closer := "[", "]"
	if wf.Parent == nil {
		opener, closer = "((", "))"
	}
	label := wf.Label
	if label == "" {
		label = "workflow"
	}
	sb.WriteString(fmt.Sprintf("    %s%s\"%s <%d>\"%s\n", wfID, opener, label, wf.PK, closer))

	switch wf.Status {
	case domain.WorkflowRunning:
		*running = append(*running, wfID)
	case domain.WorkflowFinished:
		*finished = append(*finished, wfID)
	}

	for _, step := range wf.Steps {
		stepID := wfID + "_" + sanitizeMermaidID(step.Name)
		sb.WriteString(fmt.Sprintf("    %s[[\"%s\"]]\n", stepID, step.Name))
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", wfID, stepID))

		switch step.Status {
		case domain.StepRunning:
			*running = append(*running, stepID)
		case domain.StepFinished:
			*finished = append(*finished, stepID)
		case domain.StepKilled:
			*killed = append(*killed, stepID)
		}

		// Step chain. The exit sentinel has no node of its own.
		if step.Nextcall != "" && step.Nextcall != domain.StepNameExit {
			nextID := wfID + "_" + sanitizeMermaidID(step.Nextcall)
			sb.WriteString(fmt.Sprintf("    %s -- \"next\" --> %s\n", stepID, nextID))
		}

		for _, pk := range step.Calculations {
			calcID := fmt.Sprintf("calc%d", pk)
			sb.WriteString(fmt.Sprintf("    %s[/\"calc <%d>\"/]\n", calcID, pk))
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", stepID, calcID))
		}

		// Dotted arrows mark the crossing into another workflow.
		for _, sub := range step.Subworkflows {
			sb.WriteString(fmt.Sprintf("    %s -.-> wf%d\n", stepID, sub.PK))
		}
	}

	for _, step := range wf.Steps {
		for _, sub := range step.Subworkflows {
			writeWorkflow(sb, sub, seen, running, finished, killed)
		}
	}
}

func writeClass(sb *strings.Builder, class string, ids []string) {
	if len(ids) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("    class %s %s;\n", strings.Join(ids, ","), class))
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
