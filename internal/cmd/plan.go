package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/arittr/chopstack/internal/plan"
	"github.com/arittr/chopstack/internal/task"
	"github.com/arittr/chopstack/internal/util"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect a plan file",
}

var planShowCmd = &cobra.Command{
	Use:   "show [plan-file]",
	Short: "Print a plan's tasks as a table",
	Long: `Show loads a plan file and prints a table of its tasks: id, name,
complexity, declared files and dependencies, in plan order. Long columns
are truncated to fit a terminal-friendly width; pass --wide to disable
truncation.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanShow,
}

var planShowWide bool

func init() {
	planShowCmd.Flags().BoolVar(&planShowWide, "wide", false, "do not truncate columns")
	planCmd.AddCommand(planShowCmd)
}

var (
	planHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	planIDStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

const (
	colID     = 16
	colName   = 28
	colCompl  = 10
	colFiles  = 36
	colDepend = 24
)

func runPlanShow(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}

	fmt.Printf("%s  (%s, %d tasks)\n\n", p.Name, p.Strategy, p.TaskCount())
	printPlanHeader()
	for _, t := range p.Tasks {
		printPlanRow(t)
	}
	return nil
}

func printPlanHeader() {
	row := fmt.Sprintf("%-*s %-*s %-*s %-*s %-*s",
		colID, "ID", colName, "NAME", colCompl, "COMPLEXITY", colFiles, "FILES", colDepend, "DEPENDS ON")
	fmt.Println(planHeaderStyle.Render(row))
}

func printPlanRow(t task.Task) {
	id := styledCell(planIDStyle.Render(t.ID), colID)
	name := cell(t.Name, colName)
	complexity := cell(string(t.Complexity), colCompl)
	files := cell(strings.Join(t.Files, ","), colFiles)
	depends := cell(strings.Join(t.DependsOn, ","), colDepend)
	fmt.Printf("%s %s %s %s %s\n", id, name, complexity, files, depends)
}

// cell pads or truncates a plain (unstyled) column to width with
// util.TruncateString, which counts runes rather than visual columns.
func cell(s string, width int) string {
	if !planShowWide && len(s) > width {
		s = util.TruncateString(s, width)
	}
	pad := width - len(s)
	if pad < 0 {
		pad = 0
	}
	return s + strings.Repeat(" ", pad)
}

// styledCell is cell for a column that already carries ANSI styling (the
// id column's color): util.TruncateANSI/lipgloss.Width count visual
// columns rather than bytes, so escape sequences aren't mistaken for
// printable width.
func styledCell(s string, width int) string {
	if !planShowWide && lipgloss.Width(s) > width {
		s = util.TruncateANSI(s, width)
	}
	pad := width - lipgloss.Width(s)
	if pad < 0 {
		pad = 0
	}
	return s + strings.Repeat(" ", pad)
}
