package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/aetherment-labs/aetherment/internal/app"
	"github.com/aetherment-labs/aetherment/internal/mod"
	"github.com/aetherment-labs/aetherment/internal/remote"
	"github.com/spf13/cobra"
)

var (
	installAutoUpdate bool
	installFrom       string
)

var installCmd = &cobra.Command{
	Use:   "install [owner/name[@branch]] <id> | --from <dir>",
	Short: "Install a mod from a repository",
	Long: `Download a mod and install it into the mods directory.

Without a repository argument, the configured repositories are searched in
order and the first one serving the mod is used. Reinstalling a mod keeps its
auto-update setting unless --auto-update is given explicitly.

With --from, the package in a local directory is copied into the mods
directory instead. It auto-updates only if its manifest names a repository.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if installFrom != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.RangeArgs(1, 2)(cmd, args)
	},
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installAutoUpdate, "auto-update", true, "Keep the mod updated on startup")
	installCmd.Flags().StringVar(&installFrom, "from", "", "Install the package in this directory")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	a, err := openApp(app.Options{})
	if err != nil {
		return err
	}

	if installFrom != "" {
		m, err := a.Installer().InstallDir(installFrom)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s %s\n", m.ID, m.Version)
		return nil
	}

	id := args[len(args)-1]
	repos := a.Store().Repos()
	if len(args) == 2 {
		repo, err := mod.ParseRepo(args[0])
		if err != nil {
			return err
		}
		repos = []mod.RepoInfo{repo}
	}

	ctx := cmd.Context()
	m, err := findMod(ctx, a.Remote(), repos, id)
	if err != nil {
		return err
	}

	_, reinstall := a.Registry().Get(id)
	m.AutoUpdate = installAutoUpdate

	fmt.Fprintf(cmd.ErrOrStderr(), "Installing %s %s from %s...\n", m.ID, m.Version, m.Repo)
	if err := a.Installer().DownloadMod(ctx, m); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  ✗ %s (%v)\n", m.ID, err)
		return err
	}
	if reinstall && cmd.Flags().Changed("auto-update") {
		if err := a.Installer().SetAutoUpdate(id, installAutoUpdate); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s %s\n", m.ID, m.Version)
	return nil
}

// findMod returns the mod from the first repository that serves it.
func findMod(ctx context.Context, client *remote.Client, repos []mod.RepoInfo, id string) (*mod.Mod, error) {
	var errs []error
	for _, repo := range repos {
		m, err := client.GetMod(ctx, repo, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if m != nil {
			return m, nil
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("mod %q not found: %w", id, errors.Join(errs...))
	}
	return nil, fmt.Errorf("mod %q not found in %d repositories", id, len(repos))
}
