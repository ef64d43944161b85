package cli

import (
	"errors"
	"fmt"

	"github.com/aetherment-labs/aetherment/internal/config"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/spf13/cobra"
)

func init() {
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoRemoveCmd)
	rootCmd.AddCommand(repoCmd)
}

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage mod repositories",
	Long: `Manage the GitHub repositories mods are installed from.

The built-in repository ` + config.BuiltinRepo.String() + ` is always listed first and cannot be removed.`,
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		for _, r := range store.Repos() {
			suffix := ""
			if r.Equal(config.BuiltinRepo) {
				suffix = " (built-in)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", r, suffix)
		}
		return nil
	},
}

var repoAddCmd = &cobra.Command{
	Use:   "add <owner/name[@branch]>",
	Short: "Add a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := mod.ParseRepo(args[0])
		if err != nil {
			return err
		}
		store, err := loadStore()
		if err != nil {
			return err
		}
		if err := store.AddRepo(repo); err != nil {
			if errors.Is(err, config.ErrDuplicateRepo) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already added\n", repo)
				return nil
			}
			return err
		}
		if err := store.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", repo)
		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:     "remove <owner/name[@branch]>",
	Aliases: []string{"rm"},
	Short:   "Remove a repository",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := mod.ParseRepo(args[0])
		if err != nil {
			return err
		}
		store, err := loadStore()
		if err != nil {
			return err
		}
		if err := store.RemoveRepo(repo); err != nil {
			return err
		}
		if err := store.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", repo)
		return nil
	},
}
