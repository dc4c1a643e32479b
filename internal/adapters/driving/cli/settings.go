package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings stored in config.toml.

Keys:
  journal.retention           snapshots kept for undo (at least 1)
  cache.capacity              cell contents kept in memory
  reconciler.poll_interval_ms how often a running editor is checked
  editor.command              editor, overrides $EDITOR
  remote.requests_per_second  download rate for remote cells`,
	Annotations: map[string]string{annotationServices: servicesConfig},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	editor := settings.Editor.Command
	if editor == "" {
		editor = "(from $EDITOR)"
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()
	cmd.Println("[Journal]")
	cmd.Printf("  Retention: %d snapshots\n", settings.Journal.Retention)
	cmd.Println()
	cmd.Println("[Cache]")
	cmd.Printf("  Capacity: %d cells\n", settings.Cache.Capacity)
	cmd.Println()
	cmd.Println("[Editor]")
	cmd.Printf("  Command: %s\n", editor)
	cmd.Printf("  Poll interval: %s\n", settings.Reconciler.PollInterval)
	cmd.Println()
	cmd.Println("[Remote]")
	cmd.Printf("  Requests per second: %g\n", settings.Remote.RequestsPerSecond)

	if err := settings.Validate(); err != nil {
		cmd.Println()
		cmd.Printf("Warning: %v\n", err)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("%s = %s\n", args[0], args[1])
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}
	for _, k := range settingsService.Keys() {
		cmd.Println(k)
	}
	return nil
}
