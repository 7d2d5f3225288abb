// Package main provides the CLI entrypoint for techlookup.
// It wires the lookup and balance commands, loads configuration, and initializes logging.
package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"techlookup/internal/config"
	"techlookup/pkg/logger"
	"techlookup/pkg/lookup/wappalyzer"
	"techlookup/pkg/transport"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli carries state shared by all commands once flags are parsed.
type cli struct {
	cfg *config.Config
	// fs holds the domain file and receives the results
	fs afero.Fs
}

// setup loads the configuration named by --config and configures the logger.
// It runs before every command.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	// usage is only useful for flag and argument errors, which happen before this point
	cmd.SilenceUsage = true

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	verbose, _ := cmd.Flags().GetBool("verbose")
	debug, _ := cmd.Flags().GetBool("debug")
	logger.Setup(logger.Options{
		Environment: cfg.Environment,
		Verbose:     verbose,
		Debug:       debug || cfg.Debug,
	})

	return nil
}

// client builds the API client from configuration.
func (c *cli) client() *wappalyzer.Client {
	httpClient := &http.Client{
		Timeout:   c.cfg.API.Timeout,
		Transport: transport.WithLogger(http.DefaultTransport),
	}

	return wappalyzer.New(httpClient, wappalyzer.Options{
		BalanceURL: c.cfg.API.BalanceURL,
		LookupURL:  c.cfg.API.LookupURL,
	})
}

// execute builds the command tree around c, runs it with args and returns the
// process exit status.
func execute(ctx context.Context, c *cli, args []string, in io.Reader, out io.Writer) int {
	rootCmd := lookupCommand(c)
	rootCmd.PersistentPreRunE = c.setup
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringP("config", "c", "config.yml", "Config File Path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Increase output verbosity")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every API request")

	// asking for help is reported as a failure, like a missing domain file
	helpShown := false
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpShown = true
		defaultHelp(cmd, args)
	})

	rootCmd.AddCommand(
		balanceCommand(c),
	)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logger.Error(ctx, "ERROR", zap.Error(err))
	}
	_ = logger.Get(ctx).Sync()
	if err != nil || helpShown {
		return 1
	}

	return 0
}

// main runs the CLI against the real terminal and filesystem and maps
// failures to exit status 1.
func main() {
	logger.Setup(logger.Options{Environment: logger.DevelopmentEnvironment})
	ctx := context.Background()

	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, "captured panic, exiting...", zap.Any("panic", p))
			_ = logger.Get(ctx).Sync()

			panic(p)
		}
	}()

	code := execute(ctx, &cli{fs: afero.NewOsFs()}, os.Args[1:], os.Stdin, os.Stdout)
	if code != 0 {
		os.Exit(code) //nolint: gocritic
	}
}
