package cli

import (
	"fmt"
	"strings"

	"github.com/aetherment-labs/aetherment/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage user settings",
	Long: `Read and write settings stored in config.json in the config directory.

Keys: ` + strings.Join(config.Keys(), ", "),
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		key, value := args[0], args[1]
		if err := store.Set(key, value); err != nil {
			return fmt.Errorf("setting config key %q: %w", key, err)
		}
		if err := store.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		value, err := store.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		for _, key := range config.Keys() {
			value, _ := store.Get(key)
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
		}
		return nil
	},
}

// loadStore opens and loads the settings of the selected config dir.
func loadStore() (*config.Store, error) {
	store := config.Open(configDir())
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}
