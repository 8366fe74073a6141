package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/kv"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

const appName = "speakerid"

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	outputJSON  bool
	verbose     bool

	// Global configuration
	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "speakerid",
	Short: "Text-independent speaker identification",
	Long: `speakerid - enroll speakers and recognize them from audio.

Each speaker is modeled by a Gaussian mixture over MFCC features. Models
and speaker records live in a key-value store selected by the context:
memory, badger (default), a local directory, or an S3 bucket.

Configuration is stored in ~/.giztoy/speakerid/ and supports multiple
contexts, similar to kubectl's context management. Without a context the
CLI uses a badger store under ~/.giztoy/speakerid/data.

Examples:
  # Enroll two speakers
  speakerid enroll alice alice.wav
  speakerid enroll bob s3://voices/bob.wav

  # Identify a recording
  speakerid recognize meeting.wav --threshold -45

  # Listen on the default microphone
  speakerid live`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.giztoy/speakerid/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(speakersCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context to use. Without -c and without a current
// context, an unnamed default context is returned.
func getContext() (*cli.Context, error) {
	cfg := getConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	if contextName == "" && cfg.CurrentContext == "" {
		return &cli.Context{Name: "default"}, nil
	}
	return cfg.ResolveContext(contextName)
}

// openService opens the context's store and wraps it in a voiceprint
// service. The returned close func releases the store.
func openService(ctx *cli.Context) (*voiceprint.Service, func(), error) {
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.Default()
	store, err := cli.OpenStore(ctx.Store, paths.StoreDir(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	printVerbose("Using context %q", ctx.Name)
	svc, err := voiceprint.New(voiceprint.Options{
		Store:  store,
		Prefix: ctx.Prefix,
		Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return svc, func() { closeStore(store) }, nil
}

func closeStore(store kv.Store) {
	if err := store.Close(); err != nil {
		slog.Warn("close store", "err", err)
	}
}

// outputResult writes result as JSON with --json, as YAML to an -o file,
// and in format def otherwise.
func outputResult(result any, def cli.OutputFormat) error {
	format := def
	switch {
	case outputJSON:
		format = cli.FormatJSON
	case outputFile != "":
		format = cli.FormatYAML
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
	})
}

// printVerbose prints verbose output if enabled
func printVerbose(format string, args ...any) {
	cli.PrintVerbose(verbose, format, args...)
}
