// ABOUTME: Help output for the mdtview CLI: cobra's generated help plus examples and environment status.
// ABOUTME: envStatus reports whether each MDTVIEW_* variable is set without printing its value.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389-research/mdtview/config"
)

// helpWithEnvironment appends examples and environment status to the root help.
func helpWithEnvironment(base func(*cobra.Command, []string)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		base(cmd, args)
		if cmd.HasParent() {
			return
		}
		printExamples(cmd.OutOrStdout())
		printEnvironment(cmd.OutOrStdout())
	}
}

func printExamples(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  mdtview run cases/patient.json")
	fmt.Fprintln(w, "  mdtview run --plain --markdown-out report.md cases/patient.json")
	fmt.Fprintln(w, "  mdtview watch 1f0c7e9a-run-id")
	fmt.Fprintln(w, "  mdtview fetch --format json 1f0c7e9a-run-id")
	fmt.Fprintln(w, "  mdtview diagram --diagram-format svg --diagram-out mdt.svg")
}

func printEnvironment(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	for _, key := range []string{
		config.EnvBaseURL,
		config.EnvRequestTimeout,
		config.EnvLogFile,
		config.EnvDiagramFormat,
		config.EnvStyle,
	} {
		fmt.Fprintf(w, "  %-24s %s\n", key, envStatus(key))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Variables may also be set in a .env file in the working directory or config dir.")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}
