package execute

import "fmt"

func errNoChanges(taskID string) error {
	return fmt.Errorf("task %s reported success but produced no file modifications", taskID)
}

func errDeferredExhausted(taskID string) error {
	return fmt.Errorf("task %s stayed deferred past the retry limit waiting for a dependency to stack", taskID)
}
