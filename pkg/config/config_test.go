package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"NOTION_TOKEN", "NOTION_BASE_URL", "NOTION_VERSION",
	"DATABASE_PROJETS_IA", "DATABASE_PROJETS", "DATABASE_TACHES_IA", "DATABASE_TACHES",
	"ESTIMATOR_ENGINE", "GEMINI_API_KEY", "GEMINI_MODEL", "GPT_API_KEY", "GPT_MODEL", "GPT_BASE_URL",
	"DEBUG_MODE", "LOG_DIR", "WORKERS", "REQUEST_TIMEOUT_SECONDS",
}

// clearEnv blanks every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeEnv(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, t.TempDir(), "NOTION_TOKEN=secret\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.NotionToken)
	assert.Equal(t, "https://api.notion.com/v1", cfg.NotionBaseURL)
	assert.Equal(t, "2022-06-28", cfg.NotionVersion)
	assert.Equal(t, EngineGemini, cfg.Engine)
	assert.Equal(t, "gemini-2.0-flash-exp", cfg.GeminiModel)
	assert.Equal(t, "gpt-4o", cfg.GPTModel)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, path, cfg.EnvFile)
}

func TestLoad_DotenvFile(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, t.TempDir(), `NOTION_TOKEN=secret
DATABASE_PROJETS=legacy-projects
DATABASE_TACHES_IA=tasks-db
DATABASE_TACHES=ignored
ESTIMATOR_ENGINE=GPT
GPT_API_KEY=sk-1
DEBUG_MODE=true
WORKERS=4
REQUEST_TIMEOUT_SECONDS=10
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "legacy-projects", cfg.ProjectsDB)
	assert.Equal(t, "tasks-db", cfg.TasksDB)
	assert.Equal(t, EngineGPT, cfg.Engine)
	assert.Equal(t, "sk-1", cfg.GPTKey)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, t.TempDir(), "NOTION_TOKEN=from-file\nLOG_DIR=file-logs\n")
	t.Setenv("NOTION_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.NotionToken)
	assert.Equal(t, "file-logs", cfg.LogDir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestFindEnvFile(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Empty(t, FindEnvFile(deep))

	path := writeEnv(t, root, "NOTION_TOKEN=x\n")
	assert.Equal(t, path, FindEnvFile(deep))

	tooDeep := filepath.Join(root, "a", "b", "c", "d", "e")
	require.NoError(t, os.MkdirAll(tooDeep, 0o755))
	assert.Empty(t, FindEnvFile(tooDeep))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		flows   []string
		missing []string
	}{
		{
			name:  "complete gemini",
			cfg:   Config{NotionToken: "t", ProjectsDB: "p", TasksDB: "d", Engine: EngineGemini, GeminiKey: "k"},
			flows: []string{"projects", "tasks"},
		},
		{
			name:    "everything missing",
			cfg:     Config{Engine: EngineGPT},
			flows:   []string{"projects", "tasks"},
			missing: []string{"NOTION_TOKEN", "DATABASE_PROJETS_IA", "DATABASE_TACHES_IA", "GPT_API_KEY"},
		},
		{
			name:  "tasks only ignores projects db",
			cfg:   Config{NotionToken: "t", TasksDB: "d", Engine: EngineGPT, GPTKey: "k"},
			flows: []string{"tasks"},
		},
		{
			name:    "gemini key",
			cfg:     Config{NotionToken: "t", ProjectsDB: "p", Engine: EngineGemini, GPTKey: "k"},
			flows:   []string{"projects"},
			missing: []string{"GEMINI_API_KEY"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.flows...)
			if len(tt.missing) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissing))
			for _, k := range tt.missing {
				assert.Contains(t, err.Error(), k)
			}
		})
	}
}

func TestValidate_UnknownEngine(t *testing.T) {
	err := (&Config{NotionToken: "t", Engine: "claude"}).Validate()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissing))
	assert.Contains(t, err.Error(), "claude")
}

func TestValidateStore_IgnoresEngine(t *testing.T) {
	cfg := &Config{NotionToken: "t", ProjectsDB: "p", Engine: "claude"}
	assert.NoError(t, cfg.ValidateStore("projects"))

	err := cfg.ValidateStore("projects", "tasks")
	assert.True(t, errors.Is(err, ErrMissing))
	assert.Contains(t, err.Error(), "DATABASE_TACHES_IA")
}
