package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/odvcencio/gitweave/pkg/config"
	"github.com/odvcencio/gitweave/pkg/ledger"
	"github.com/odvcencio/gitweave/pkg/remote"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath      string
	gateway         string
	protocolVersion string
	concurrency     int
	verbose         bool
}

func (o *globalOptions) register(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "config file (default: user config dir/gitweave/config.toml)")
	flags.StringVar(&o.gateway, "gateway", "", "gateway base URL")
	flags.StringVar(&o.protocolVersion, "protocol-version", "", "protocol Version tag to read")
	flags.IntVar(&o.concurrency, "concurrency", 0, "max parallel downloads (0 = unbounded)")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
}

// load reads config and applies flags that were set explicitly.
func (o *globalOptions) load(cmd *cobra.Command) (config.Config, error) {
	path := o.configPath
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if o.gateway != "" {
		cfg.Gateway.URL = o.gateway
	}
	if o.protocolVersion != "" {
		cfg.Protocol.Version = o.protocolVersion
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Fetch.Concurrency = o.concurrency
	}
	if o.verbose {
		cfg.Log.Level = zerolog.LevelDebugValue
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// client builds a remote client for remoteURI from config and flags.
func (o *globalOptions) client(cmd *cobra.Command, remoteURI string) (*remote.Client, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel())

	lc, err := ledger.NewClient(cfg.Gateway.URL, cfg.LedgerOptions(&logger))
	if err != nil {
		return nil, err
	}
	return remote.NewClient(remoteURI, lc, cfg.RemoteOptions(&logger))
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, NoColor: !isTerminal(w), TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
