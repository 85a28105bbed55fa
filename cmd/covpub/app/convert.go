package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjy-dev/covpub/internal/config"
	"github.com/zjy-dev/covpub/internal/logger"
	"github.com/zjy-dev/covpub/internal/pipeline"
	"github.com/zjy-dev/covpub/internal/publish"
)

// NewConvertCommand creates the "convert" subcommand.
func NewConvertCommand(root *rootOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert JaCoCo reports and print the payload without publishing.",
		Long: `This command runs the same conversion and source file resolution as
"publish" and prints the payload that would be sent. No server settings are
needed and no request is made.

Examples:
  # Print the payload as JSON
  covpub convert --report build/reports/jacoco --search-dir src/main/java

  # Write the payload as YAML to a file
  covpub convert --format yaml --output coverage.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q, expected json or yaml", format)
			}

			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			result, err := pipeline.Collect(pipelineOptions(cfg))
			if err != nil {
				return err
			}

			data, err := marshalPayload(result.Payload(), format)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write payload: %w", err)
			}
			logger.Info("Payload with %d files written to %s", len(result.Files), output)
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func marshalPayload(payload publish.Payload, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := payload.JSON()
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml":
		return yaml.Marshal(payload)
	}
	return nil, fmt.Errorf("unknown format %q, expected json or yaml", format)
}
