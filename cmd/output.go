// File: cmd/output.go
package cmd

import (
	"errors"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var errVerificationFailed = errors.New("verification did not complete; see the step responses above")

// printJSON writes v to the command's stdout, indented.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
