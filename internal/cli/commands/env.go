package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/conduit-lang/criteria/internal/cli/config"
	"github.com/conduit-lang/criteria/internal/cli/ui"
	"github.com/conduit-lang/criteria/internal/orm/contenttype"
	"github.com/conduit-lang/criteria/internal/orm/filter"
	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// environment is what every command needs: configuration, logger and the
// loaded metadata
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	schemas *schema.Registry
	types   *contenttype.Registry
}

// loadConfig loads the configuration and resolves its file paths against
// the directory of an explicit config file
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if opts.configFile != "" {
		base := filepath.Dir(opts.configFile)
		cfg.SchemaFile = resolvePath(base, cfg.SchemaFile)
		cfg.ContentTypesFile = resolvePath(base, cfg.ContentTypesFile)
	}
	return cfg, nil
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// loadEnvironment loads configuration, resource metadata and content types.
// Failures are described on stderr.
func loadEnvironment(opts *globalOptions, stderr io.Writer) (*environment, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, report(stderr, ui.ConfigError(err.Error(), opts.noColor), err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	schemas, err := schema.LoadFile(cfg.SchemaFile)
	if err != nil {
		return nil, report(stderr, schemaError(cfg.SchemaFile, err, opts.noColor), err)
	}

	snap, err := contenttype.LoadFile(cfg.ContentTypesFile)
	if err != nil {
		return nil, report(stderr, ui.FormatError(ui.ErrorOptions{
			Context: "invalid content types",
			Problem: fmt.Sprintf("Cannot load %s.", cfg.ContentTypesFile),
			Detail:  err.Error(),
			NoColor: opts.noColor,
		}), err)
	}

	return &environment{
		cfg:     cfg,
		logger:  logger,
		schemas: schemas,
		types:   contenttype.NewRegistry(snap, logger),
	}, nil
}

func schemaError(path string, err error, noColor bool) string {
	return ui.FormatError(ui.ErrorOptions{
		Context:      "invalid schema",
		Problem:      fmt.Sprintf("Cannot load %s.", path),
		Detail:       err.Error(),
		HelpCommands: []string{"Check associations: every target must be a declared resource"},
		NoColor:      noColor,
	})
}

// compiler builds a compiler over the environment
func (e *environment) compiler(opts ...filter.Option) *filter.Compiler {
	base := []filter.Option{
		filter.WithLogger(e.logger),
		filter.WithRootAlias(e.cfg.RootAlias),
	}
	return filter.NewCompiler(e.schemas, e.types, append(base, opts...)...)
}

// report writes a formatted message and returns err marked as reported
func report(w io.Writer, message string, err error) error {
	fmt.Fprint(w, message)
	return &reportedError{err: err}
}
