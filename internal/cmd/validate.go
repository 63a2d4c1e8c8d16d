package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/arittr/chopstack/internal/plan"
	"github.com/arittr/chopstack/internal/validate"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [plan-file]",
	Short: "Validate a plan file for structural soundness",
	Long: `Validate runs the plan validator (C3) against a plan file: duplicate
task ids, missing dependencies, dependency cycles, and file conflicts
between tasks that could run in the same layer.

The exit code indicates the result:
  0 - Plan is valid (may have warnings)
  1 - Plan has validation errors or could not be parsed

Examples:
  chopstack validate plan.yaml
  chopstack validate --json plan.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var validateJSON bool

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "output the validation result as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	p, err := plan.Load(filePath)
	if err != nil {
		if validateJSON {
			return outputValidateJSON(filePath, validate.Result{Errors: []string{err.Error()}})
		}
		return fmt.Errorf("failed to load plan: %w", err)
	}

	result := validate.ValidatePlan(p)

	if validateJSON {
		return outputValidateJSON(filePath, result)
	}
	return outputValidateHuman(filePath, p.TaskCount(), result)
}

func outputValidateJSON(filePath string, result validate.Result) error {
	type output struct {
		FilePath string `json:"file_path"`
		validate.Result
	}
	data, err := json.MarshalIndent(output{FilePath: filePath, Result: result}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal validation result: %w", err)
	}
	fmt.Println(string(data))
	if !result.Valid {
		return &silentError{}
	}
	return nil
}

func outputValidateHuman(filePath string, taskCount int, result validate.Result) error {
	fmt.Printf("Validating: %s\n", filePath)
	fmt.Printf("  Tasks: %d\n\n", taskCount)

	if result.Valid {
		fmt.Println("Status: VALID")
	} else {
		fmt.Println("Status: INVALID")
	}
	if len(result.Warnings) > 0 {
		fmt.Printf("  Warnings: %d\n", len(result.Warnings))
	}
	fmt.Println()

	if len(result.Errors) > 0 {
		fmt.Println("Errors:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
		fmt.Println()
	}
	if len(result.Warnings) > 0 {
		fmt.Println("Warnings:")
		for _, w := range result.Warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	if !result.Valid {
		return fmt.Errorf("plan validation failed with %d error(s)", len(result.Errors))
	}
	return nil
}

// silentError signals a handled failure whose message has already been
// printed, so cobra doesn't print a duplicate "Error: ..." line.
type silentError struct{}

func (e *silentError) Error() string { return "validation failed" }
