// Package display formats command output.
package display

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/opgen/errors"
)

// ShouldOutputJSON determines if a command should output JSON based on its
// --json flag, falling back to the global one.
func ShouldOutputJSON(cmd *cobra.Command) bool {
	// Handle nil command gracefully
	if cmd == nil {
		return false
	}

	// Check if --json flag was explicitly set
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	// Check global --json flag
	globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json")
	return globalFlag
}

// OutputJSON marshals v with MarshalJSON and writes it to w
func OutputJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
