package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Bidon15/hatsdeploy"
	"github.com/Bidon15/hatsdeploy/internal/chain"
	"github.com/Bidon15/hatsdeploy/internal/logging"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Environment variable names
const (
	EnvPrivateKey = "PRIVATE_KEY"
	EnvRPCURL     = "RPC_URL"
	EnvChainID    = "CHAIN_ID"
	EnvPrefix     = "HATSDEPLOY"
)

// DefaultConfigFile is read when --config is not given. A missing file is
// not an error.
const DefaultConfigFile = "hatsdeploy.yaml"

// Global flag variables
var (
	cfgFile    string
	envFile    string
	paramsPath string
	jsonOut    bool
	verbose    bool
	noRecord   bool
)

// configUsed is the config file actually read, if any.
var configUsed string

// dial connects to the RPC endpoint. Tests replace it.
var dial chain.DialFunc = chain.Dial

// v holds the configuration for the current invocation.
var v = viper.New()

var rootCmd *cobra.Command

var versionCmd *cobra.Command

func init() {
	rootCmd = &cobra.Command{
		Use:   "hatsdeploy",
		Short: "Deploy the AllowlistEligibility factory and its modules",
		Long: `hatsdeploy deploys the AllowlistEligibilityFactory contract to a
deterministic CREATE2 address and deploys AllowlistEligibility modules
through it.

Configuration (in order of priority):
  1. Command-line flags (--rpc-url, --chain-id, ...)
  2. Environment variables (RPC_URL, CHAIN_ID, HATSDEPLOY_*)
  3. Config file (./hatsdeploy.yaml or --config)
  4. Built-in defaults

The deployer key is read from PRIVATE_KEY in the environment or the .env
file in the working directory.

Get started:
  $ hatsdeploy predict        # Show the factory's CREATE2 address
  $ hatsdeploy preflight      # Check RPC, chain ID and balance
  $ hatsdeploy factory        # Deploy the factory
  $ hatsdeploy module         # Deploy a module through the factory`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version, commit hash, and build date of hatsdeploy",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "hatsdeploy %s\n", Version)
			if verbose {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", Commit)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildDate)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./"+DefaultConfigFile+")")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&paramsPath, "params", "", "YAML file overriding the deployment parameters")
	flags.String("rpc-url", hatsdeploy.DefaultRPCURL, "RPC endpoint (or RPC_URL)")
	flags.Uint64("chain-id", 0, "expected chain ID, 0 to accept any (or CHAIN_ID)")
	flags.String("artifacts-dir", hatsdeploy.DefaultArtifactsDir, "build artifacts directory")
	flags.String("deployments-dir", hatsdeploy.DefaultDeploymentsDir, "directory for deployment records")
	flags.String("create2-deployer", hatsdeploy.DefaultCreate2Deployer.Hex(), "deterministic deployment proxy address")
	flags.Uint64("gas-limit", 0, "gas limit, 0 to estimate")
	flags.Duration("timeout", 0, "overall timeout, 0 waits until mined")
	flags.String("log-format", logging.FormatTerminal, "log format: terminal or json")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.BoolVar(&jsonOut, "json", false, "output in JSON format")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newFactoryCmd())
	rootCmd.AddCommand(newModuleCmd())
	rootCmd.AddCommand(newPredictCmd())
	rootCmd.AddCommand(newPreflightCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteWithArgs runs the root command with the provided arguments (for testing)
func ExecuteWithArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// SetOutput sets the output writer for the root command (for testing)
func SetOutput(w io.Writer) {
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)
}

// ResetFlags resets all global flags to their defaults (for testing)
func ResetFlags() {
	cfgFile = ""
	envFile = ".env"
	paramsPath = ""
	configUsed = ""
	jsonOut = false
	verbose = false
	noRecord = false
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, cmd := range rootCmd.Commands() {
		cmd.Flags().VisitAll(reset)
		for _, sub := range cmd.Commands() {
			sub.Flags().VisitAll(reset)
		}
	}
	v = viper.New()
}

// initConfig loads .env and builds a fresh viper instance from flags,
// environment and the config file.
func initConfig(cmd *cobra.Command) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v = viper.New()
	configUsed = ""

	keys := map[string]string{
		"rpc_url":          "rpc-url",
		"chain_id":         "chain-id",
		"artifacts_dir":    "artifacts-dir",
		"deployments_dir":  "deployments-dir",
		"create2_deployer": "create2-deployer",
		"gas_limit":        "gas-limit",
		"timeout":          "timeout",
		"log_format":       "log-format",
		"log_level":        "log-level",
		"params":           "params",
	}
	for key, flag := range keys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("rpc_url", "HATSDEPLOY_RPC_URL", EnvRPCURL)
	_ = v.BindEnv("chain_id", "HATSDEPLOY_CHAIN_ID", EnvChainID)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		configUsed = v.ConfigFileUsed()
		return nil
	}
	v.SetConfigFile(DefaultConfigFile)
	v.SetConfigType("yaml")
	// Read config file (ignore error if not found)
	if err := v.ReadInConfig(); err == nil {
		configUsed = v.ConfigFileUsed()
	}
	return nil
}

// loadConfig resolves the runtime configuration. The private key is taken
// from the environment only.
func loadConfig() (*hatsdeploy.Config, error) {
	cfg := &hatsdeploy.Config{
		PrivateKey:     os.Getenv(EnvPrivateKey),
		RPCURL:         v.GetString("rpc_url"),
		ChainID:        v.GetUint64("chain_id"),
		ArtifactsDir:   v.GetString("artifacts_dir"),
		DeploymentsDir: v.GetString("deployments_dir"),
		GasLimit:       v.GetUint64("gas_limit"),
		Timeout:        v.GetDuration("timeout"),
	}

	if cfg.RPCURL == "" {
		cfg.RPCURL = hatsdeploy.DefaultRPCURL
	}
	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = hatsdeploy.DefaultArtifactsDir
	}
	if cfg.DeploymentsDir == "" {
		cfg.DeploymentsDir = hatsdeploy.DefaultDeploymentsDir
	}

	proxy := v.GetString("create2_deployer")
	if proxy == "" {
		cfg.Create2Deployer = hatsdeploy.DefaultCreate2Deployer
	} else {
		addr, err := hatsdeploy.ParseAddress("create2_deployer", proxy)
		if err != nil {
			return nil, err
		}
		cfg.Create2Deployer = addr
	}
	return cfg, nil
}

// loadParams reads the deployment parameters, layering --params over the
// built-in defaults.
func loadParams() (hatsdeploy.ParamsFile, error) {
	return hatsdeploy.LoadParamsFile(v.GetString("params"))
}

// newLogger builds the logger for a command. Logs go to stderr so stdout
// stays parseable with --json.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level := v.GetString("log_level")
	if verbose && level == "info" {
		level = "debug"
	}
	return logging.New(cmd.ErrOrStderr(), v.GetString("log_format"), level)
}

// runContext returns the context for a network run: cancelled on SIGINT or
// SIGTERM, and bounded by --timeout when set.
func runContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// connect checks the credential, then dials and binds a transactor. No
// network call is made without a usable key.
func connect(ctx context.Context, cfg *hatsdeploy.Config, logger *slog.Logger) (*chain.Transactor, func(), error) {
	signer, err := chain.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, nil, err
	}

	backend, err := dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.RPCURL, err)
	}

	tx, err := chain.NewTransactor(ctx, backend, signer, chain.TransactorOptions{
		ExpectedChainID: cfg.ChainID,
		GasLimit:        cfg.GasLimit,
		Logger:          logger,
	})
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return tx, backend.Close, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func addressPtr(a common.Address) *common.Address {
	return &a
}
