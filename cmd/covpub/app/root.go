package app

import (
	"github.com/spf13/cobra"

	"github.com/zjy-dev/covpub/internal/config"
	"github.com/zjy-dev/covpub/internal/logger"
	"github.com/zjy-dev/covpub/internal/pipeline"
)

type rootOptions struct {
	configFile string
	envFile    string
}

// NewCovpubCommand creates the root command for the covpub tool.
func NewCovpubCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "covpub",
		Short: "Publish JaCoCo code coverage to a code coverage API.",
		Long: `covpub converts JaCoCo XML reports into per-file line coverage, resolves
the reported source files inside the project and publishes the result for a
commit to the code coverage REST API of a Bitbucket-compatible server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default: covpub.yaml in . or configs/)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Env file loaded before reading the environment (default: .env if present)")

	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// loadConfig reads the configuration of cmd and applies its log settings.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		ConfigFile: opts.configFile,
		EnvFile:    opts.envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := logger.ParseLevel(cfg.Log.Level)
	logger.Configure(logger.Options{
		Level:  level,
		Output: cmd.ErrOrStderr(),
		Color:  cfg.Log.Color,
	})
	return cfg, nil
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		ProjectRoot:          cfg.ProjectRoot,
		Reports:              cfg.Reports,
		SearchDirs:           cfg.SearchDirs,
		SkipOnMissingReports: cfg.SkipOnMissingReports,
	}
}
