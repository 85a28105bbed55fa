package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjy-dev/covpub/internal/publish"
)

// setupTestConfigs switches into a fresh directory containing a "configs"
// subdirectory and returns the path of that subdirectory.
func setupTestConfigs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	configDir := filepath.Join(dir, "configs")
	require.NoError(t, os.Mkdir(configDir, 0755))
	chdir(t, dir)
	return configDir
}

const fullConfig = `
project_root: "."
reports:
  - "sub-project-1/build/reports/jacoco/test/jacocoTestReport.xml"
  - "**/jacoco/**/*.xml"
search_dirs:
  - "sub-project-1/src/main/java"
skip_on_missing_reports: true
server:
  host: "https://bitbucket.example.com"
  token: "file-token"
  timeout: "5s"
  commit_id: "12345"
  project_key: "PROJ"
  repo_slug: "repo"
log:
  level: "debug"
  color: false
`

func TestLoad_Success(t *testing.T) {
	configDir := setupTestConfigs(t)
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "covpub.yaml"), []byte(fullConfig), 0644))

	cfg, err := Load(Options{})
	require.NoError(t, err)

	wd, _ := os.Getwd()
	assert.Equal(t, wd, cfg.ProjectRoot)
	assert.Equal(t, []string{"sub-project-1/build/reports/jacoco/test/jacocoTestReport.xml", "**/jacoco/**/*.xml"}, cfg.Reports)
	assert.Equal(t, []string{"sub-project-1/src/main/java"}, cfg.SearchDirs)
	assert.True(t, cfg.SkipOnMissingReports)
	assert.Equal(t, "https://bitbucket.example.com", cfg.Server.Host)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "12345", cfg.Server.CommitID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Color)

	assert.Equal(t, publish.Config{
		Host:       "https://bitbucket.example.com",
		Token:      "file-token",
		Timeout:    5 * time.Second,
		CommitID:   "12345",
		ProjectKey: "PROJ",
		RepoSlug:   "repo",
	}, cfg.PublishConfig())
	assert.NoError(t, cfg.ValidatePublish())
}

func TestLoad_Defaults(t *testing.T) {
	setupTestConfigs(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Empty(t, cfg.Reports)
	assert.Empty(t, cfg.SearchDirs)
	assert.False(t, cfg.SkipOnMissingReports)
	assert.Equal(t, publish.DefaultTimeout, cfg.Server.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Color)
	assert.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.ValidatePublish(), publish.ErrInvalidHost)
}

func TestLoad_ExplicitFileNotExists(t *testing.T) {
	setupTestConfigs(t)

	_, err := Load(Options{ConfigFile: "missing.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	configDir := setupTestConfigs(t)
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "covpub.yaml"), []byte("server: test\n  host: oops"), 0644))

	_, err := Load(Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	configDir := setupTestConfigs(t)
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "covpub.yaml"), []byte(fullConfig), 0644))
	t.Setenv("COVPUB_SERVER_TOKEN", "env-token")
	t.Setenv("COVPUB_SEARCH_DIRS", "a,b")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Server.Token)
	assert.Equal(t, []string{"a", "b"}, cfg.SearchDirs)
}

func TestLoad_EnvFile(t *testing.T) {
	setupTestConfigs(t)
	require.NoError(t, os.WriteFile(".env", []byte("COVPUB_SERVER_PASSWORD=from-dotenv\nCOVPUB_SERVER_USER=ci\n"), 0600))
	t.Cleanup(func() {
		os.Unsetenv("COVPUB_SERVER_PASSWORD")
		os.Unsetenv("COVPUB_SERVER_USER")
	})

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "ci", cfg.Server.User)
	assert.Equal(t, "from-dotenv", cfg.Server.Password)
}

func TestLoad_ExplicitEnvFileMissing(t *testing.T) {
	setupTestConfigs(t)

	_, err := Load(Options{EnvFile: "missing.env"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load env file")
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	configDir := setupTestConfigs(t)
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "covpub.yaml"), []byte(fullConfig), 0644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--commit", "abcdef",
		"--search-dir", "x", "--search-dir", "y",
		"--timeout", "1m",
	}))

	cfg, err := Load(Options{Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, "abcdef", cfg.Server.CommitID)
	assert.Equal(t, []string{"x", "y"}, cfg.SearchDirs)
	assert.Equal(t, time.Minute, cfg.Server.Timeout)
	// Unchanged flags keep the file value.
	assert.Equal(t, "https://bitbucket.example.com", cfg.Server.Host)
	assert.Equal(t, "PROJ", cfg.Server.ProjectKey)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	cfg := &Config{ProjectRoot: dir, Log: LogConfig{Level: "info"}}
	assert.NoError(t, cfg.Validate())

	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = &Config{ProjectRoot: filepath.Join(dir, "missing")}
	assert.Error(t, cfg.Validate())

	cfg = &Config{ProjectRoot: file}
	assert.Error(t, cfg.Validate())
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
