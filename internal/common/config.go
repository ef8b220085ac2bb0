package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/pdftext"
)

// PlaceholderAPIKey is the value shipped in the sample .env; it counts as unset.
const PlaceholderAPIKey = "sk-your-api-key-here"

// Provider names accepted by LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// LedgerDisabled turns the run ledger off when used as LEDGER_DSN.
const LedgerDisabled = "off"

// Config holds all application configuration
type Config struct {
	NumReports int             `yaml:"num_reports"`
	Catalogue  CatalogueConfig `yaml:"catalogue"`
	Fetch      FetchConfig     `yaml:"fetch"`
	Storage    StorageConfig   `yaml:"storage"`
	Text       TextConfig      `yaml:"text"`
	LLM        LLMConfig       `yaml:"llm"`
	Ledger     LedgerConfig    `yaml:"ledger"`
}

// CatalogueConfig holds the publisher search and content API settings
type CatalogueConfig struct {
	BaseURL            string        `yaml:"base_url"`
	Format             string        `yaml:"format"`
	PageSize           int           `yaml:"page_size"`
	Timeout            time.Duration `yaml:"timeout"`
	ResolveMaxAttempts int           `yaml:"resolve_max_attempts"` // <= 0 retries forever
	ResolveRetryDelay  time.Duration `yaml:"resolve_retry_delay"`
	Exclude            string        `yaml:"exclude"`
}

// FetchConfig holds document download settings
type FetchConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	ValidatePDF bool          `yaml:"validate_pdf"`
}

// StorageConfig holds the working directories and final outputs
type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	PDFsDir      string `yaml:"pdfs_dir"`
	TextsDir     string `yaml:"texts_dir"`
	ExtractedDir string `yaml:"extracted_dir"`
	OutputExcel  string `yaml:"output_excel"`
	OutputCSV    string `yaml:"output_csv"`
}

// TextConfig holds text-layer extraction settings
type TextConfig struct {
	Method       string `yaml:"method"`
	Pdftotext    string `yaml:"pdftotext"`
	SkipExisting bool   `yaml:"skip_existing"`
}

// ProviderConfig holds per-provider credentials
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider      string         `yaml:"provider"`
	OpenAI        ProviderConfig `yaml:"openai"`
	Gemini        ProviderConfig `yaml:"gemini"`
	Temperature   float32        `yaml:"temperature"`
	Timeout       time.Duration  `yaml:"timeout"`
	MaxInputChars int            `yaml:"max_input_chars"`
}

// LedgerConfig holds the run ledger database settings
type LedgerConfig struct {
	DSN string `yaml:"dsn"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	dataDir := getEnv("DATA_DIR", ".data")
	return &Config{
		NumReports: getEnvAsInt("NUM_REPORTS", 10),
		Catalogue: CatalogueConfig{
			BaseURL:            getEnv("CATALOGUE_BASE_URL", "https://www.gov.uk"),
			Format:             getEnv("CATALOGUE_FORMAT", "aaib_report"),
			PageSize:           getEnvAsInt("CATALOGUE_PAGE_SIZE", 1500),
			Timeout:            getEnvAsDuration("CATALOGUE_TIMEOUT", 30*time.Second),
			ResolveMaxAttempts: getEnvAsInt("RESOLVE_MAX_ATTEMPTS", 0),
			ResolveRetryDelay:  getEnvAsDuration("RESOLVE_RETRY_DELAY", 3*time.Second),
			Exclude:            getEnv("ATTACHMENT_EXCLUDE", constants.DefaultAttachmentExclude),
		},
		Fetch: FetchConfig{
			MaxAttempts: getEnvAsInt("FETCH_MAX_ATTEMPTS", 3),
			RetryDelay:  getEnvAsDuration("FETCH_RETRY_DELAY", 3*time.Second),
			Timeout:     getEnvAsDuration("FETCH_TIMEOUT", 60*time.Second),
			ValidatePDF: getEnvAsBool("FETCH_VALIDATE_PDF", false),
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			PDFsDir:      getEnv("PDFS_DIR", filepath.Join(dataDir, "pdfs")),
			TextsDir:     getEnv("TEXTS_DIR", filepath.Join(dataDir, "texts")),
			ExtractedDir: getEnv("EXTRACTED_DIR", filepath.Join(dataDir, "extracted")),
			OutputExcel:  getEnv("OUTPUT_EXCEL", filepath.Join(dataDir, "aaib_reports.xlsx")),
			OutputCSV:    getEnv("OUTPUT_CSV", filepath.Join(dataDir, "aaib_reports.csv")),
		},
		Text: TextConfig{
			Method:       getEnv("TEXT_METHOD", pdftext.MethodNative),
			Pdftotext:    getEnv("PDFTOTEXT_BIN", "pdftotext"),
			SkipExisting: getEnvAsBool("TEXT_SKIP_EXISTING", true),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			OpenAI: ProviderConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o"),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			},
			Gemini: ProviderConfig{
				APIKey: getEnv("GEMINI_API_KEY", ""),
				Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			},
			Temperature:   getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			MaxInputChars: getEnvAsInt("LLM_MAX_INPUT_CHARS", 20000),
		},
		Ledger: LedgerConfig{
			DSN: getEnv("LEDGER_DSN", filepath.Join(dataDir, "runs.db")),
		},
	}
}

// LoadFile overlays a YAML settings file onto c. Keys absent from the file keep their current value.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return NewAppError("CONFIG_ERROR", "parse "+path, err)
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	return nil
}

// ActiveProvider returns the settings of the selected LLM provider.
func (c *LLMConfig) ActiveProvider() *ProviderConfig {
	if c.Provider == ProviderGemini {
		return &c.Gemini
	}
	return &c.OpenAI
}

// HasAPIKey reports whether the selected provider has a usable credential.
func (c *LLMConfig) HasAPIKey() bool {
	key := strings.TrimSpace(c.ActiveProvider().APIKey)
	return key != "" && key != PlaceholderAPIKey
}

// LedgerEnabled reports whether runs should be recorded.
func (c *Config) LedgerEnabled() bool {
	dsn := strings.TrimSpace(c.Ledger.DSN)
	return dsn != "" && !strings.EqualFold(dsn, LedgerDisabled)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("NUM_REPORTS", c.NumReports, Positive).
		Field("CATALOGUE_BASE_URL", c.Catalogue.BaseURL, Required, HTTPURL).
		Field("CATALOGUE_FORMAT", c.Catalogue.Format, Required).
		Field("CATALOGUE_PAGE_SIZE", c.Catalogue.PageSize, Positive).
		Field("FETCH_MAX_ATTEMPTS", c.Fetch.MaxAttempts, Positive).
		Field("PDFS_DIR", c.Storage.PDFsDir, Required).
		Field("TEXTS_DIR", c.Storage.TextsDir, Required).
		Field("EXTRACTED_DIR", c.Storage.ExtractedDir, Required).
		Field("OUTPUT_EXCEL", c.Storage.OutputExcel, Required).
		Field("OUTPUT_CSV", c.Storage.OutputCSV, Required).
		Field("TEXT_METHOD", c.Text.Method, OneOf(pdftext.MethodNative, pdftext.MethodPdftotext)).
		Field("LLM_PROVIDER", c.LLM.Provider, OneOf(ProviderOpenAI, ProviderGemini)).
		Field("LLM_MAX_INPUT_CHARS", c.LLM.MaxInputChars, Positive)
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
