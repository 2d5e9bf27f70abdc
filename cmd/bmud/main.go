// Command bmud is the backup agent's CLI: daemon lifecycle control plus
// cache housekeeping, against the state written by a running daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bmu/internal/agentdir"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bmud",
		Short: "Backup agent daemon control",
	}

	root.AddCommand(
		newDaemonCmd(),
		newCleanCmd(),
	)
	return root
}

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the background backup daemon",
	}
	cmd.AddCommand(newDaemonStartCmd(), newDaemonStopCmd(), newDaemonRestartCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon if it is not already running",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := agentdir.Load()
			if err != nil {
				return err
			}
			if dirs.ReadState() == agentdir.StateRunning {
				fmt.Println("daemon is already running")
				return nil
			}
			return startDaemon(dirs)
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal the daemon to terminate",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := agentdir.Load()
			if err != nil {
				return err
			}
			if dirs.ReadState() != agentdir.StateRunning {
				fmt.Println("daemon is already stopped")
				return nil
			}
			if err := dirs.WriteState(agentdir.StateTerminate); err != nil {
				return err
			}
			fmt.Println("terminate message was sent to the daemon")
			return nil
		},
	}
}

func newDaemonRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop then start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := agentdir.Load()
			if err != nil {
				return err
			}
			if dirs.ReadState() == agentdir.StateRunning {
				if err := dirs.WriteState(agentdir.StateTerminate); err != nil {
					return err
				}
			}
			if err := waitForStop(dirs); err != nil {
				return err
			}
			return startDaemon(dirs)
		},
	}
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove cached files left behind by the daemon (logs are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := agentdir.Load()
			if err != nil {
				return err
			}
			if dirs.ReadState() == agentdir.StateRunning {
				return fmt.Errorf("refusing to clean while the daemon is running; run 'bmud daemon stop' first")
			}
			return cleanDirs(dirs)
		},
	}
}
