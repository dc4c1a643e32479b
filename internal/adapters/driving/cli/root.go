// Package cli implements the cellstore command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
	"github.com/custodia-labs/cellstore/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Services are the driving ports commands call.
type Services struct {
	Cells    driving.CellService
	Reader   driving.CellReader
	History  driving.HistoryService
	Edit     driving.EditService
	Traces   driving.TraceService
	Transfer driving.TransferService
	Settings driving.SettingsService

	// Close releases whatever backs the services. May be nil.
	Close func() error
}

// OpenOptions tells an Opener what the running command needs.
type OpenOptions struct {
	ProjectPath string
	ConfigDir   string
	NeedProject bool
	Interactive bool
}

// Opener builds services before a command runs.
type Opener func(ctx context.Context, opts OpenOptions) (*Services, error)

// Command annotations.
const (
	annotationServices = "cellstore/services"
	servicesNone       = "none"
	servicesConfig     = "config"
)

var (
	projectPath string
	configDir   string
	verbose     bool

	opener        Opener
	closeServices func() error
)

var (
	cellService     driving.CellService
	cellReader      driving.CellReader
	historyService  driving.HistoryService
	editService     driving.EditService
	traceService    driving.TraceService
	transferService driving.TransferService
	settingsService driving.SettingsService
)

var rootCmd = &cobra.Command{
	Use:   "cellstore",
	Short: "Versioned storage for cell graphs",
	Long: `cellstore keeps a project's cells, their content and relationships in a
local store, journals every change for undo and redo, and reconciles edits
made in external editors.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: openServices,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", "board.cells", "project store file")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.cellstore)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetOpener installs the function that builds services for each command.
func SetOpener(o Opener) {
	opener = o
}

// SetServices installs services directly, bypassing the opener.
func SetServices(s *Services) {
	cellService = s.Cells
	cellReader = s.Reader
	historyService = s.History
	editService = s.Edit
	traceService = s.Traces
	transferService = s.Transfer
	settingsService = s.Settings
	closeServices = s.Close
}

// Execute runs the command tree and releases services afterwards.
func Execute(ctx context.Context) error {
	defer releaseServices()
	return rootCmd.ExecuteContext(ctx)
}

func openServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if opener == nil {
		return nil
	}

	need := servicesNeeded(cmd)
	if need == servicesNone {
		return nil
	}
	svc, err := opener(cmd.Context(), OpenOptions{
		ProjectPath: projectPath,
		ConfigDir:   configDir,
		NeedProject: need != servicesConfig,
		Interactive: isInteractive(),
	})
	if err != nil {
		return err
	}
	SetServices(svc)
	return nil
}

func releaseServices() {
	if closeServices == nil {
		return
	}
	if err := closeServices(); err != nil {
		logger.Warn("closing project: %v", err)
	}
	closeServices = nil
}

// servicesNeeded reads the nearest annotation up the command chain.
func servicesNeeded(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if v, ok := c.Annotations[annotationServices]; ok {
			return v
		}
	}
	return ""
}

// isInteractive reports whether both stdin and stdout are terminals.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// errNotConfigured is returned when a command runs without its service.
func errNotConfigured(name string) error {
	return fmt.Errorf("%s service not configured", name)
}
