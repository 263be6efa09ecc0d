// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"reelscrape/internal/challenge"
	"reelscrape/internal/config"
	"reelscrape/internal/fetch"
	"reelscrape/internal/httputil"
	"reelscrape/internal/logging"
	"reelscrape/internal/provider"
	"reelscrape/internal/tmdb"
	"reelscrape/internal/token"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig     string
	flagProxy      string
	flagSolver     string
	flagNoHeaders  bool
	flagTokenStore string
	flagJSON       bool
	flagDebug      bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

// log is the root logger, built once the configuration is known.
var log logrus.FieldLogger = logging.Discard()

var rootCmd = &cobra.Command{
	Use:   "reelscrape",
	Short: "Resolve movies and show episodes to playable streams",
	Long: `reelscrape searches video sites for a title, follows their embed pages
and prints the stream URL with the headers needed to play it.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: $XDG_CONFIG_HOME/reelscrape/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagProxy, "proxy", "", "Proxy URL: http(s)://host:port | socks5://host:port")
	rootCmd.PersistentFlags().StringVar(&flagSolver, "solver", "", "Challenge solver service URL")
	rootCmd.PersistentFlags().BoolVar(&flagNoHeaders, "no-headers", false, "Consumer cannot send custom headers; proxy manifests")
	rootCmd.PersistentFlags().StringVar(&flagTokenStore, "token-store", "", "Token store: memory | file | sqlite")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagProxy != "" {
		cfg.Proxy = flagProxy
	}
	if flagSolver != "" {
		cfg.SolverURL = flagSolver
	}
	if flagNoHeaders {
		cfg.HeadersSupported = false
	}
	if flagTokenStore != "" {
		cfg.TokenStore = flagTokenStore
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log = logging.New(cfg.LogLevel, cfg.LogJSON, os.Stderr)
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var noClose io.Closer = closerFunc(func() error { return nil })

// openTokenStore opens the configured token store. The returned closer
// releases it.
func openTokenStore(ctx context.Context) (token.Store, io.Closer, error) {
	if cfg.TokenStore == config.StoreMemory {
		return token.NewMemoryStore(), noClose, nil
	}

	path, err := cfg.ExpandTokenPath()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating token directory: %w", err)
	}

	if cfg.TokenStore == config.StoreSQLite {
		s, err := token.OpenSQLiteStore(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return token.NewFileStore(path), noClose, nil
}

// newRunner wires the fetcher, token exchange and providers from cfg.
func newRunner(ctx context.Context) (*provider.Runner, *provider.Registry, io.Closer, error) {
	fingerprint := cfg.FingerprintHosts
	if strings.HasPrefix(cfg.Proxy, "http") {
		log.WithField("proxy", cfg.Proxy).Warn("TLS fingerprinting needs a direct connection or SOCKS5 proxy; disabled")
		fingerprint = nil
	}
	client, err := httputil.NewClient(httputil.ClientOptions{
		Timeout:          cfg.Timeout,
		Proxy:            cfg.Proxy,
		FingerprintHosts: fingerprint,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating HTTP client: %w", err)
	}
	fetcher := fetch.NewHTTPFetcher(client, log)

	store, closer, err := openTokenStore(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening token store: %w", err)
	}

	solver := challenge.Unavailable
	if cfg.SolverURL != "" {
		solver = challenge.NewClient(cfg.SolverURL, "https://pasmells.uira.live", cfg.Timeout, log)
	}

	var titles *tmdb.Client
	if cfg.TMDBAPIKey != "" {
		titles = tmdb.NewClient(cfg.TMDBAPIKey, fetcher)
	}

	registry, err := provider.NewDefaultRegistry(provider.Deps{
		Fetcher:   fetcher,
		Tokens:    token.NewExchange(store, cfg.TokenTTL, nil, log),
		Solver:    solver,
		Titles:    titles,
		M3U8Proxy: cfg.M3U8Proxy,
		Evaluate:  cfg.EvaluateScripts,
		Disabled:  cfg.Disabled,
		Log:       log,
	})
	if err != nil {
		closer.Close()
		return nil, nil, nil, err
	}
	return provider.NewRunner(registry, log), registry, closer, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("reelscrape", Version)
	},
}
