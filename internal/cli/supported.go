package cli

import (
	"fmt"

	"github.com/mosvirt/virtkit/pkg/virt"
	"github.com/spf13/cobra"
)

var supportedCmd = &cobra.Command{
	Use:   "supported",
	Short: "Check whether this host can run virtual machines",
	Long:  "Check whether the host exposes a hypervisor simplevm can use.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !virt.Supported() {
			return fmt.Errorf("virtualization is not supported on this host")
		}
		fmt.Println("Virtualization is supported on this host.")
		return nil
	},
}
