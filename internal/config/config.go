package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-sorter/internal/facematch"
)

//go:embed matching.yaml
var matchingYAML []byte

type Config struct {
	Paths      PathsConfig
	Detector   DetectorConfig
	Restorer   RestorerConfig
	Database   DatabaseConfig
	Matching   MatchingConfig
	Distribute DistributeConfig
	Log        LogConfig
	Web        WebConfig
}

type PathsConfig struct {
	ReferenceDB    string // gob or JSON artifact written by enrollment
	KnownPeopleDir string // one labeled photo per person, file name is the person name
	InputDir       string // event photos to sort
	OutputDir      string // per-person folders are created here
}

type DetectorConfig struct {
	URL     string        // face embedding service, defaults to http://localhost:8000
	Timeout time.Duration // per request
}

type RestorerConfig struct {
	URL     string // face restoration service, rescue is disabled when empty
	Timeout time.Duration
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL (pgvector reference store)
	MariaDBDSN    string // MariaDB DSN (JSON blob reference store)
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the identify HNSW index (optional)
}

type MatchingConfig struct {
	Thresholds    facematch.Thresholds     `yaml:"thresholds"`
	Profiles      map[string]ProfileConfig `yaml:"profiles"`
	UnknownFolder string                   `yaml:"unknown_folder"`
	Extensions    []string                 `yaml:"extensions"`
}

type ProfileConfig struct {
	DetSize int `yaml:"det_size"`
}

// DetSize returns the detector input size for a profile.
func (c MatchingConfig) DetSize(p facematch.Profile) int {
	if pc, ok := c.Profiles[string(p)]; ok && pc.DetSize > 0 {
		return pc.DetSize
	}
	if p == facematch.ProfileLowRes {
		return 320
	}
	return 640
}

type DistributeConfig struct {
	WebhookURL   string
	AttendeesCSV string
	ReportCSV    string
	ZipDir       string
	Subject      string
	Timeout      time.Duration
}

type LogConfig struct {
	Level  string // trace, debug, info, warning, error
	Format string // text or json
}

type WebConfig struct {
	Host string
	Port int
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func Load() *Config {
	var matching MatchingConfig
	if err := yaml.Unmarshal(matchingYAML, &matching); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded matching.yaml: " + err.Error())
	}

	th := &matching.Thresholds
	th.Strict = envFloat("STRICT_THRESHOLD", th.Strict)
	th.Doubt = envFloat("DOUBT_THRESHOLD", th.Doubt)
	th.Quality = envFloat("QUALITY_GATE_SCORE", th.Quality)
	th.CropMargin = envFloat("RESCUE_CROP_MARGIN", th.CropMargin)
	matching.UnknownFolder = envString("UNKNOWN_FOLDER", matching.UnknownFolder)

	return &Config{
		Paths: PathsConfig{
			ReferenceDB:    envString("REFERENCE_DB_PATH", "data/embeddings.gob"),
			KnownPeopleDir: envString("KNOWN_PEOPLE_DIR", "data/known_people"),
			InputDir:       envString("INPUT_DIR", "data/input_photos"),
			OutputDir:      envString("OUTPUT_DIR", "data/output"),
		},
		Detector: DetectorConfig{
			URL:     envString("DETECTOR_URL", "http://localhost:8000"),
			Timeout: envDuration("DETECTOR_TIMEOUT", 60*time.Second),
		},
		Restorer: RestorerConfig{
			URL:     os.Getenv("RESTORER_URL"),
			Timeout: envDuration("RESTORER_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MariaDBDSN:    os.Getenv("MARIADB_DSN"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Matching: matching,
		Distribute: DistributeConfig{
			WebhookURL:   os.Getenv("WEBHOOK_URL"),
			AttendeesCSV: envString("ATTENDEES_CSV", "data/attendees.csv"),
			ReportCSV:    envString("REPORT_CSV", "data/execution_report.csv"),
			ZipDir:       envString("ZIP_DIR", "data/zips"),
			Subject:      envString("MAIL_SUBJECT", "Your photos are ready"),
			Timeout:      envDuration("WEBHOOK_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
	}
}

// Validate checks the values every command depends on.
func (c *Config) Validate() error {
	if err := c.Matching.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Matching.UnknownFolder == "" {
		return fmt.Errorf("unknown folder name must not be empty")
	}
	if err := facematch.ValidatePersonName(c.Matching.UnknownFolder, ""); err != nil {
		return fmt.Errorf("unknown folder: %w", err)
	}
	return nil
}

// IsImageFile reports whether a file name has one of the configured photo extensions.
func (c MatchingConfig) IsImageFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range c.Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
