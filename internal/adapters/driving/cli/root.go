// Package cli implements the querynest command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/querynest/internal/core/ports/driving"
	"github.com/custodia-labs/querynest/internal/logger"
)

// Session names for the active document pointer.
const (
	SessionCLI = "cli"
	SessionMCP = "mcp"
)

// annotationSession selects the session a command runs in.
const annotationSession = "querynest/session"

// annotationNoServices marks commands that run without any services.
const annotationNoServices = "querynest/no-services"

// annotationSettingsOnly marks commands that only need settings, so they
// keep working when the pipeline cannot be built from broken settings.
const annotationSettingsOnly = "querynest/settings-only"

// Retrier heals partly indexed documents in the background.
type Retrier interface {
	Start(ctx context.Context) error
	Stop() error
}

// Services holds everything the commands drive.
type Services struct {
	Documents driving.DocumentService
	Queries   driving.QueryService
	Settings  driving.SettingsService
	Retry     Retrier
	Metrics   http.Handler

	// Accept reports whether a file can be uploaded. Used by watch.
	Accept func(path string) bool

	// Close releases the services. May be nil.
	Close func() error
}

// Options are the global flags a Builder needs.
type Options struct {
	ConfigDir    string
	Session      string
	SettingsOnly bool
}

// Builder constructs the services once flags are parsed.
type Builder func(opts Options) (*Services, error)

var (
	version = "dev"
	builder Builder

	documentService driving.DocumentService
	queryService    driving.QueryService
	settingsService driving.SettingsService
	retryScheduler  Retrier
	metricsHandler  http.Handler
	acceptFile      func(string) bool
	closeServices   func() error
)

// Global flags.
var (
	verbose      bool
	outputFormat string
	configDir    string
)

var rootCmd = &cobra.Command{
	Use:   "querynest",
	Short: "Ask questions about your documents",
	Long: `QueryNest turns PDF, DOCX, HTML, Markdown and text documents into a
searchable index split along their own headings. Ask questions, request
summaries of a whole document, one section or a topic, and see how well
each answer is supported by the source.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", formatText, "Output format: text, json or yaml")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default ~/.querynest)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBuilder installs the function that wires services for each run.
func SetBuilder(b Builder) {
	builder = b
}

// Configure installs ready-made services, bypassing the builder.
func Configure(s *Services) {
	if s == nil {
		s = &Services{}
	}
	documentService = s.Documents
	queryService = s.Queries
	settingsService = s.Settings
	retryScheduler = s.Retry
	metricsHandler = s.Metrics
	acceptFile = s.Accept
	closeServices = s.Close
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if err := checkFormat(outputFormat); err != nil {
		return err
	}
	if annotation(cmd, annotationNoServices) != "" || cmd.Name() == "help" || builder == nil ||
		documentService != nil || settingsService != nil {
		return nil
	}

	session := annotation(cmd, annotationSession)
	if session == "" {
		session = SessionCLI
	}

	services, err := builder(Options{
		ConfigDir:    configDir,
		Session:      session,
		SettingsOnly: annotation(cmd, annotationSettingsOnly) != "",
	})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	Configure(services)
	return nil
}

// annotation returns the nearest value of key on cmd or its parents.
func annotation(cmd *cobra.Command, key string) string {
	for c := cmd; c != nil; c = c.Parent() {
		if v := c.Annotations[key]; v != "" {
			return v
		}
	}
	return ""
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	if builder != nil {
		Configure(nil)
	}
	return err
}

func requireDocuments() error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	return nil
}

func requireQueries() error {
	if queryService == nil {
		return errors.New("query service not configured")
	}
	return nil
}
