package cli

import (
	"fmt"
	"strconv"

	"github.com/aetherment-labs/aetherment/internal/app"
	"github.com/spf13/cobra"
)

var autoUpdateCmd = &cobra.Command{
	Use:   "autoupdate <id> <on|off>",
	Short: "Enable or disable auto-update for a mod",
	Args:  cobra.ExactArgs(2),
	RunE:  runAutoUpdate,
}

func init() {
	rootCmd.AddCommand(autoUpdateCmd)
}

func runAutoUpdate(cmd *cobra.Command, args []string) error {
	id := args[0]
	enabled, err := parseSwitch(args[1])
	if err != nil {
		return err
	}

	a, err := openApp(app.Options{})
	if err != nil {
		return err
	}
	if err := a.Installer().SetAutoUpdate(id, enabled); err != nil {
		return err
	}

	state := "off"
	if enabled {
		state = "on"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Auto-update for %s is %s\n", id, state)
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "enable", "enabled":
		return true, nil
	case "off", "disable", "disabled":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}
