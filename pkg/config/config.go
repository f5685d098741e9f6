package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

const (
	envFile = ".env"
	// envSearchDepth is how many directories are searched for envFile,
	// starting at the working directory.
	envSearchDepth = 5
)

const (
	EngineGemini = "gemini"
	EngineGPT    = "gpt"
)

// ErrMissing is returned by Validate when required keys are absent.
var ErrMissing = eris.New("missing required configuration")

// Config is the whole runtime configuration.
type Config struct {
	NotionToken   string
	NotionBaseURL string
	NotionVersion string

	ProjectsDB string
	TasksDB    string

	Engine      string
	GeminiKey   string
	GeminiModel string
	GPTKey      string
	GPTModel    string
	GPTBaseURL  string

	Debug          bool
	LogDir         string
	Workers        int
	RequestTimeout time.Duration

	// EnvFile is the dotenv file that was read, if any.
	EnvFile string
}

func defaults(v *viper.Viper) {
	v.SetDefault("NOTION_BASE_URL", "https://api.notion.com/v1")
	v.SetDefault("NOTION_VERSION", "2022-06-28")
	v.SetDefault("ESTIMATOR_ENGINE", EngineGemini)
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash-exp")
	v.SetDefault("GPT_MODEL", "gpt-4o")
	v.SetDefault("GPT_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("DEBUG_MODE", false)
	v.SetDefault("LOG_DIR", "logs")
	v.SetDefault("WORKERS", 1)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
}

// FindEnvFile looks for a .env file in dir and its parents.
func FindEnvFile(dir string) string {
	for i := 0; i < envSearchDepth; i++ {
		path := filepath.Join(dir, envFile)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Load reads the environment, layered over the dotenv file at path. An empty
// path searches upward from the working directory; finding nothing is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			path = FindEnvFile(cwd)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, eris.Wrapf(err, "failed to read %s", path)
		}
	}

	cfg := &Config{
		NotionToken:    v.GetString("NOTION_TOKEN"),
		NotionBaseURL:  v.GetString("NOTION_BASE_URL"),
		NotionVersion:  v.GetString("NOTION_VERSION"),
		ProjectsDB:     firstOf(v, "DATABASE_PROJETS_IA", "DATABASE_PROJETS"),
		TasksDB:        firstOf(v, "DATABASE_TACHES_IA", "DATABASE_TACHES"),
		Engine:         strings.ToLower(strings.TrimSpace(v.GetString("ESTIMATOR_ENGINE"))),
		GeminiKey:      v.GetString("GEMINI_API_KEY"),
		GeminiModel:    v.GetString("GEMINI_MODEL"),
		GPTKey:         v.GetString("GPT_API_KEY"),
		GPTModel:       v.GetString("GPT_MODEL"),
		GPTBaseURL:     v.GetString("GPT_BASE_URL"),
		Debug:          v.GetBool("DEBUG_MODE"),
		LogDir:         v.GetString("LOG_DIR"),
		Workers:        v.GetInt("WORKERS"),
		RequestTimeout: time.Duration(v.GetInt("REQUEST_TIMEOUT_SECONDS")) * time.Second,
		EnvFile:        path,
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return cfg, nil
}

func firstOf(v *viper.Viper, keys ...string) string {
	for _, k := range keys {
		if s := v.GetString(k); s != "" {
			return s
		}
	}
	return ""
}

// Validate checks that everything the given flows need is present,
// including the selected engine's credentials, and reports every missing
// key at once.
func (c *Config) Validate(flows ...string) error {
	return c.validate(true, flows)
}

// ValidateStore is Validate without the engine requirements.
func (c *Config) ValidateStore(flows ...string) error {
	return c.validate(false, flows)
}

func (c *Config) validate(engine bool, flows []string) error {
	var missing []string
	if c.NotionToken == "" {
		missing = append(missing, "NOTION_TOKEN")
	}
	for _, flow := range flows {
		switch flow {
		case "projects":
			if c.ProjectsDB == "" {
				missing = append(missing, "DATABASE_PROJETS_IA")
			}
		case "tasks":
			if c.TasksDB == "" {
				missing = append(missing, "DATABASE_TACHES_IA")
			}
		}
	}
	if engine {
		switch c.Engine {
		case EngineGemini:
			if c.GeminiKey == "" {
				missing = append(missing, "GEMINI_API_KEY")
			}
		case EngineGPT:
			if c.GPTKey == "" {
				missing = append(missing, "GPT_API_KEY")
			}
		default:
			return eris.Errorf("unknown ESTIMATOR_ENGINE %q (want %s or %s)", c.Engine, EngineGemini, EngineGPT)
		}
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrMissing, "%s", strings.Join(missing, ", "))
	}
	return nil
}
