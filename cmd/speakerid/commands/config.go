package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/speakerid/pkg/cli"
	"github.com/haivivi/speakerid/pkg/voiceprint"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

A context selects the speaker store, the key prefix inside it and the
feature and model parameters used for enrollment and recognition.

Configuration is stored in ~/.giztoy/speakerid/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Examples:
  speakerid config add-context dev --store badger --dir ./voices
  speakerid config add-context shared --store local --dir /srv/speakerid
  speakerid config add-context prod --store s3 --bucket voices --region eu-west-1
  speakerid config add-context minio --store s3 --bucket voices \
      --endpoint http://127.0.0.1:9000 --path-style
  speakerid config add-context strict --threshold -45 --mixtures 16`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		f := cmd.Flags()

		var store cli.StoreConfig
		var err error
		for flag, dst := range map[string]*string{
			"store":      &store.Type,
			"dir":        &store.Dir,
			"bucket":     &store.Bucket,
			"s3-prefix":  &store.Prefix,
			"region":     &store.Region,
			"endpoint":   &store.Endpoint,
			"access-key": &store.AccessKey,
			"secret-key": &store.SecretKey,
		} {
			if *dst, err = f.GetString(flag); err != nil {
				return fmt.Errorf("failed to read '%s' flag: %w", flag, err)
			}
		}
		if store.PathStyle, err = f.GetBool("path-style"); err != nil {
			return fmt.Errorf("failed to read 'path-style' flag: %w", err)
		}
		switch store.Type {
		case "", cli.StoreMemory, cli.StoreBadger, cli.StoreLocal:
		case cli.StoreS3:
			if store.Bucket == "" {
				return fmt.Errorf("--bucket is required for s3 stores")
			}
		default:
			return fmt.Errorf("unknown store type %q", store.Type)
		}

		ctx := &cli.Context{Store: &store}
		if ctx.Prefix, err = f.GetString("prefix"); err != nil {
			return fmt.Errorf("failed to read 'prefix' flag: %w", err)
		}
		if ctx.Device, err = f.GetString("device"); err != nil {
			return fmt.Errorf("failed to read 'device' flag: %w", err)
		}
		if ctx.Listen, err = f.GetString("listen"); err != nil {
			return fmt.Errorf("failed to read 'listen' flag: %w", err)
		}

		vp, err := voiceprintFlags(cmd, voiceprint.Config{})
		if err != nil {
			return err
		}
		if vp != (voiceprint.Config{}) {
			if err := vp.Validate(); err != nil {
				return err
			}
			ctx.Voiceprint = &vp
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.UseContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"get-contexts"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSTORE\tLOCATION\tPREFIX")

		for _, name := range names {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			typ, location := describeStore(ctx.Store)
			prefix := ctx.Prefix
			if prefix == "" {
				prefix = voiceprint.DefaultPrefix
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name, typ, location, prefix)
		}

		w.Flush()
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		fmt.Printf("Config file: %s\n", cfg.Path())
		fmt.Printf("Current context: %s\n", cfg.CurrentContext)
		fmt.Printf("Contexts: %d\n", len(cfg.Contexts))

		for _, name := range cfg.ListContexts() {
			ctx := cfg.Contexts[name]
			typ, location := describeStore(ctx.Store)
			fmt.Printf("\n  %s:\n", name)
			fmt.Printf("    Store: %s (%s)\n", typ, location)
			if s := ctx.Store; s != nil && s.AccessKey != "" {
				fmt.Printf("    Access Key: %s\n", cli.MaskSecret(s.AccessKey))
				fmt.Printf("    Secret Key: %s\n", cli.MaskSecret(s.SecretKey))
			}
			if ctx.Prefix != "" {
				fmt.Printf("    Prefix: %s\n", ctx.Prefix)
			}
			if ctx.Device != "" {
				fmt.Printf("    Device: %s\n", ctx.Device)
			}
			if ctx.Listen != "" {
				fmt.Printf("    Listen: %s\n", ctx.Listen)
			}
			vp := ctx.VoiceprintConfig()
			fmt.Printf("    Voiceprint: %d Hz, %d mixtures, %d coefficients", vp.SampleRate, vp.Mixtures, vp.NumCeps)
			if vp.ScoreThreshold != nil {
				fmt.Printf(", threshold %g", *vp.ScoreThreshold)
			}
			fmt.Println()
		}

		return nil
	},
}

func describeStore(s *cli.StoreConfig) (typ, location string) {
	if s == nil {
		s = &cli.StoreConfig{}
	}
	typ = s.Type
	if typ == "" {
		typ = cli.StoreBadger
	}
	switch typ {
	case cli.StoreMemory:
		location = "-"
	case cli.StoreS3:
		location = "s3://" + s.Bucket
		if s.Prefix != "" {
			location += "/" + s.Prefix
		}
		if s.Endpoint != "" {
			location += " @ " + s.Endpoint
		}
	default:
		location = s.Dir
		if location == "" {
			location = "(default)"
		}
	}
	return typ, location
}

func init() {
	f := configAddContextCmd.Flags()
	f.String("store", "", "store type: memory, badger, local or s3 (default badger)")
	f.String("dir", "", "directory for badger and local stores")
	f.String("bucket", "", "S3 bucket")
	f.String("s3-prefix", "", "object key prefix inside the bucket")
	f.String("region", "", "S3 region (default $AWS_REGION or us-east-1)")
	f.String("endpoint", "", "S3-compatible endpoint URL")
	f.Bool("path-style", false, "use path-style S3 addressing")
	f.String("access-key", "", "S3 access key (default $AWS_ACCESS_KEY_ID)")
	f.String("secret-key", "", "S3 secret key (default $AWS_SECRET_ACCESS_KEY)")
	f.String("prefix", "", "key prefix inside the store (default speakerid)")
	f.String("device", "", "default capture device for live")
	f.String("listen", "", "default listen address for serve")
	addVoiceprintFlags(configAddContextCmd)

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
