package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`         // listen address, e.g. ":8080"
	FrontendOrigins []string `yaml:"frontendOrigins"` // allowed CORS origins
}

// SpacesConfig holds the on-disk layout of tenant spaces.
type SpacesConfig struct {
	Root string `yaml:"root"` // directory that contains spaces/<name>/...
}

// OllamaConfig holds connection settings for the Ollama daemon that serves
// both the embedding model and the generation models.
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"` // e.g. "http://localhost:11434"
}

// ModelsConfig names the concrete models behind each backend role.
type ModelsConfig struct {
	Embedding    string `yaml:"embedding"`    // text -> vector
	Code         string `yaml:"code"`         // code-intent generation
	Vision       string `yaml:"vision"`       // image-input generation
	General      string `yaml:"general"`      // general-purpose generation
	TranslateP2E string `yaml:"translateP2E"` // Persian -> English
	TranslateE2P string `yaml:"translateE2P"` // English -> Persian
}

// ChunkingConfig controls how documents are split before embedding.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // target chunk length in runes
	Overlap int `yaml:"overlap"` // overlap between consecutive chunks
}

// RetrievalConfig controls context assembly at query time.
type RetrievalConfig struct {
	TopK            int `yaml:"topK"`            // chunks retrieved per query
	MaxContextWords int `yaml:"maxContextWords"` // overflow threshold for assembled context
}

// RouterConfig controls how the query router invokes generation backends.
// Mode is either "perChunk" (one backend call per retrieved chunk, outputs
// joined with a separator) or "combined" (one call over the concatenated
// context).
type RouterConfig struct {
	Mode string `yaml:"mode"`
}

// AppConfig is the root configuration for the service. It is loaded once in
// main and passed by reference into every component constructor; no package
// reads configuration from ambient state.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Spaces    SpacesConfig    `yaml:"spaces"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Models    ModelsConfig    `yaml:"models"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Router    RouterConfig    `yaml:"router"`
	Logger    LoggerConfig    `yaml:"logger"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level string `yaml:"level"` // logrus level name, e.g. "info" or "debug"
}

// Router invocation modes.
const (
	RouterModePerChunk = "perChunk"
	RouterModeCombined = "combined"
)

// Default returns a configuration with working local defaults. LoadConfig
// starts from these, so a partial config file only needs to override what it
// changes.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Address:         ":8080",
			FrontendOrigins: []string{"http://localhost:5173"},
		},
		Spaces: SpacesConfig{Root: "data"},
		Ollama: OllamaConfig{BaseURL: "http://localhost:11434"},
		Models: ModelsConfig{
			Embedding:    "mxbai-embed-large",
			Code:         "codegemma",
			Vision:       "llava",
			General:      "deepseek-r1:latest",
			TranslateP2E: "persian-to-english-mt5",
			TranslateE2P: "english-to-persian-mt5",
		},
		Chunking:  ChunkingConfig{Size: 1000, Overlap: 200},
		Retrieval: RetrievalConfig{TopK: 5, MaxContextWords: 2000},
		Router:    RouterConfig{Mode: RouterModePerChunk},
		Logger:    LoggerConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML configuration file and unmarshals it over the
// defaults.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.topK must be positive, got %d", c.Retrieval.TopK)
	}
	switch c.Router.Mode {
	case RouterModePerChunk, RouterModeCombined:
	default:
		return fmt.Errorf("router.mode must be %q or %q, got %q", RouterModePerChunk, RouterModeCombined, c.Router.Mode)
	}
	return nil
}
