// Package cli provides the command-line interface for simplevm.
package cli

import (
	"fmt"

	"github.com/mosvirt/virtkit/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "simplevm",
	Short: "simplevm - boot a Linux kernel in a lightweight VM",
	Long: `simplevm boots a Linux kernel directly in a virtual machine backed by
the host's native hypervisor, with the guest console attached to your
terminal.

Give it a kernel (and optionally an initrd and disk images) and it takes
care of validation, device wiring and the VM lifecycle.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		switch cmd.Name() {
		case "version", "completion", "supported":
			return nil
		}
		return config.Load()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(supportedCmd)
}
