package cli

import (
	"fmt"

	"github.com/aetherment-labs/aetherment/internal/app"
	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <id>",
	Short: "Remove an installed mod",
	Long:  `Remove an installed mod from the mods directory.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runUninstall,
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	id := args[0]

	a, err := openApp(app.Options{})
	if err != nil {
		return err
	}
	if err := a.Installer().Uninstall(id); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
	return nil
}
