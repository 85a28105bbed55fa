package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zjy-dev/covpub/internal/logger"
	"github.com/zjy-dev/covpub/internal/publish"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. COVPUB_SERVER_TOKEN.
	EnvPrefix = "COVPUB"
	// DefaultConfigName is the base name of the config file searched in "." and "configs".
	DefaultConfigName = "covpub"
	// DefaultEnvFile is loaded when present.
	DefaultEnvFile = ".env"
)

// ServerConfig holds the code coverage API settings.
type ServerConfig struct {
	Host       string        `mapstructure:"host"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CommitID   string        `mapstructure:"commit_id"`
	ProjectKey string        `mapstructure:"project_key"`
	RepoSlug   string        `mapstructure:"repo_slug"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Color bool   `mapstructure:"color"`
}

// Config is the complete configuration of a run.
type Config struct {
	ProjectRoot          string       `mapstructure:"project_root"`
	Reports              []string     `mapstructure:"reports"`
	SearchDirs           []string     `mapstructure:"search_dirs"`
	SkipOnMissingReports bool         `mapstructure:"skip_on_missing_reports"`
	Server               ServerConfig `mapstructure:"server"`
	Log                  LogConfig    `mapstructure:"log"`
}

// Options controls where configuration is read from.
type Options struct {
	// ConfigFile is an explicit config file. When empty, covpub.yaml is
	// searched in "." and "configs" and may be absent.
	ConfigFile string
	// EnvFile is an explicit .env file. When empty, ".env" is loaded if present.
	EnvFile string
	// Flags override file and environment values when set.
	Flags *pflag.FlagSet
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"project-root":            "project_root",
	"report":                  "reports",
	"search-dir":              "search_dirs",
	"skip-on-missing-reports": "skip_on_missing_reports",
	"host":                    "server.host",
	"user":                    "server.user",
	"password":                "server.password",
	"token":                   "server.token",
	"timeout":                 "server.timeout",
	"commit":                  "server.commit_id",
	"project-key":             "server.project_key",
	"repo-slug":               "server.repo_slug",
	"log-level":               "log.level",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("project-root", ".", "Project root directory; published paths are relative to it")
	fs.StringSlice("report", nil, "JaCoCo XML report file, directory or glob (repeatable)")
	fs.StringSlice("search-dir", nil, "Directory searched for source files, in order (repeatable)")
	fs.Bool("skip-on-missing-reports", false, "Succeed without publishing when no report is found")
	fs.String("host", "", "Base URL of the server, e.g. https://bitbucket.example.com")
	fs.String("user", "", "User for basic authentication")
	fs.String("password", "", "Password for basic authentication")
	fs.String("token", "", "Bearer token, used when user and password are not set")
	fs.Duration("timeout", publish.DefaultTimeout, "Timeout of the publish request")
	fs.String("commit", "", "Commit id the coverage belongs to (default: git HEAD of the project root)")
	fs.String("project-key", "", "Project key, requires --repo-slug")
	fs.String("repo-slug", "", "Repository slug, requires --project-key")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project_root", ".")
	v.SetDefault("reports", []string{})
	v.SetDefault("search_dirs", []string{})
	v.SetDefault("skip_on_missing_reports", false)
	v.SetDefault("server.host", "")
	v.SetDefault("server.user", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.token", "")
	v.SetDefault("server.timeout", publish.DefaultTimeout)
	v.SetDefault("server.commit_id", "")
	v.SetDefault("server.project_key", "")
	v.SetDefault("server.repo_slug", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.color", true)
}

// Load reads the configuration from the config file, the environment and the
// flags, in increasing order of precedence.
func Load(opts Options) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		logger.Debug("Using config file %s", v.ConfigFileUsed())
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %s: %w", cfg.ProjectRoot, err)
	}
	cfg.ProjectRoot = root

	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	logger.Debug("Loaded environment from %s", path)
	return nil
}

// Validate checks the settings needed to convert reports.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	info, err := os.Stat(c.ProjectRoot)
	if err != nil {
		return fmt.Errorf("project root %s: %w", c.ProjectRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project root %s is not a directory", c.ProjectRoot)
	}
	return nil
}

// ValidatePublish checks the settings needed to publish, in addition to Validate.
func (c *Config) ValidatePublish() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.PublishConfig().Validate()
}

// PublishConfig returns the settings of the publish client.
func (c *Config) PublishConfig() publish.Config {
	return publish.Config{
		Host:       c.Server.Host,
		User:       c.Server.User,
		Password:   c.Server.Password,
		Token:      c.Server.Token,
		Timeout:    c.Server.Timeout,
		CommitID:   c.Server.CommitID,
		ProjectKey: c.Server.ProjectKey,
		RepoSlug:   c.Server.RepoSlug,
	}
}
