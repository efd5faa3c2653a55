package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

// RootOptions holds global flags and the configuration resolved from them.
type RootOptions struct {
	ConfigPath string
	Server     string
	Token      string
	Store      string
	Format     string
	LogLevel   string

	Config Config
	Logger zerolog.Logger
	Out    io.Writer
	Err    io.Writer
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Out: os.Stdout, Err: os.Stderr})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "attract",
		Short:         "Link editorial timeline strips to tracker shots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}
	cmd.SetOut(opts.Out)
	cmd.SetErr(opts.Err)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "YAML config file (default $ATTRACT_CONFIG)")
	flags.StringVar(&opts.Server, "server", "", "tracker base URL (default "+DefaultServer+")")
	flags.StringVar(&opts.Token, "token", "", "session token")
	flags.StringVar(&opts.Store, "store", "", "strip store DSN (default "+DefaultStoreDSN+")")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	for _, op := range operationCommands {
		cmd.AddCommand(newOperationCommand(opts, op))
	}
	cmd.AddCommand(newUpdateCommand(opts))
	cmd.AddCommand(newReorderCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	return cmd
}

func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server = o.Server
	}
	if flags.Changed("token") {
		cfg.Token = o.Token
	}
	if flags.Changed("store") {
		cfg.Store = o.Store
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if err := cfg.validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	logger, err := NewLogger(o.Err, cfg.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.Config = cfg
	o.Logger = logger
	return nil
}

func (o *RootOptions) formatter() *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: o.Out}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{Out: stdout, Err: stderr, Format: "text"}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)

	ctx, stop := signalContext(context.Background())
	defer stop()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	// Anything cobra rejects before a command runs is a usage error.
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		err = NewExitError(ExitCommandError, err.Error())
	}
	code := GetExitCode(err)
	if isValidFormat(opts.Format) {
		_ = opts.formatter().Error(err)
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, unix.SIGINT, unix.SIGTERM)
}
