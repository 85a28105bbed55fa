package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjy-dev/covpub/internal/config"
	"github.com/zjy-dev/covpub/internal/exec"
	"github.com/zjy-dev/covpub/internal/logger"
	"github.com/zjy-dev/covpub/internal/pipeline"
	"github.com/zjy-dev/covpub/internal/publish"
)

// NewPublishCommand creates the "publish" subcommand.
func NewPublishCommand(root *rootOptions) *cobra.Command {
	return newPublishCommand(root, exec.NewCommandExecutor())
}

func newPublishCommand(root *rootOptions, executor exec.Executor) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Convert JaCoCo reports and publish the coverage for a commit.",
		Long: `This command converts the configured JaCoCo XML reports, resolves the
reported source files below the project root and publishes their line coverage
for one commit.

The request is sent to
  <host>/rest/code-coverage/1.0/[projects/<key>/repos/<slug>/]commits/<commit>

When no commit is configured, the HEAD commit of the git work tree containing
the project root is used.

Examples:
  # Publish with settings from covpub.yaml
  covpub publish

  # Publish a multi-module build
  covpub publish --host https://bitbucket.example.com --token $TOKEN \
    --report '**/build/reports/jacoco/**/*.xml' \
    --search-dir module-a/src/main/java --search-dir module-b/src/main/java`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runPublish(cmd, cfg, executor)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runPublish(cmd *cobra.Command, cfg *config.Config, executor exec.Executor) error {
	// An invalid host fails before git or the network is touched.
	if err := cfg.PublishConfig().Validate(); errors.Is(err, publish.ErrInvalidHost) {
		return err
	}

	if cfg.Server.CommitID == "" {
		commit, err := exec.HeadCommit(cmd.Context(), executor, cfg.ProjectRoot)
		if err != nil {
			return fmt.Errorf("no commit configured and none could be read from git: %w", err)
		}
		logger.Info("Using commit %s of the git work tree", commit)
		cfg.Server.CommitID = commit
	}

	if err := cfg.ValidatePublish(); err != nil {
		return err
	}

	client, err := publish.NewClient(cfg.PublishConfig())
	if err != nil {
		return fmt.Errorf("failed to create publish client: %w", err)
	}

	_, err = pipeline.Run(cmd.Context(), pipelineOptions(cfg), client)
	return err
}
