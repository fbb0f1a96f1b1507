// Command sprconvert is the offline CLI front-end: "record" captures a
// fixed number of samples of the current process straight to a spool
// file, "convert" turns an already-recorded spool into perf-script,
// pprof, or collapsed output. Subcommand structure follows
// maxgio92-xcover/pkg/cmd's cobra.Command tree (see DESIGN.md).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sprconvert",
		Short:         "record and convert in-process sampling profiler output",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRecordCommand())
	root.AddCommand(newConvertCommand())
	return root
}
