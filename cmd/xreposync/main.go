// Command xreposync drives the cross-repo commit synchronizer's components
// from the command line: a preflight doctor check, an in-process demo of
// the full sync pipeline, and fixture-driven one-shot/loop invocations of
// the syncer, tailer, pushredirection coordinator and verifier.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/steveyegge/xreposync/internal/xrs"
	"github.com/steveyegge/xreposync/internal/xrs/xlog"
)

var verbose bool

func newCLIContext() context.Context {
	return context.Background()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xreposync",
		Short: "Cross-repo commit synchronizer",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				xlog.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newDoctorCmd())
	root.AddCommand(newDemoCmd())
	root.AddCommand(newSyncCommitCmd())
	root.AddCommand(newRunForwardCmd())
	root.AddCommand(newRunBacksyncCmd())
	root.AddCommand(newPushredirectCmd())
	root.AddCommand(newVerifyCmd())
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if xe, ok := xrs.KindOf(err); ok {
			fmt.Fprintf(os.Stderr, "xreposync: %v (%s)\n", err, xe)
		} else {
			fmt.Fprintf(os.Stderr, "xreposync: %v\n", err)
		}
		os.Exit(xrs.ExitCodeFor(err))
	}
}
