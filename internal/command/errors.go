package command

import "fmt"

// UsageError reports missing or malformed arguments. It is printed to the
// local console and the command is aborted with no state change.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("Usage: %s", e.Usage)
}
