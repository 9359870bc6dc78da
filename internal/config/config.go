package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
}

// LoadConfig loads database config from environment variables with sensible defaults.
// Supported env vars: DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME
func LoadConfig() *Config {
	host := getenvDefault("DB_HOST", "localhost")
	portStr := getenvDefault("DB_PORT", "5432")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 5432
	}
	user := getenvDefault("DB_USER", "bugbounty")
	pass := getenvDefault("DB_PASSWORD", "bugbounty")
	name := getenvDefault("DB_NAME", "bugbounty")

	return &Config{
		DBHost:     host,
		DBPort:     port,
		DBUser:     user,
		DBPassword: pass,
		DBName:     name,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ScanSettings holds the tunable knobs executors read from their per-scan
// config blob, with service-wide defaults. Unknown keys in a scan config are
// ignored, never rejected.
type ScanSettings struct {
	BatchSize        int           `yaml:"batch_size" mapstructure:"batch_size"`
	HTTPTimeout      time.Duration `yaml:"http_timeout" mapstructure:"http_timeout"`
	ToolTimeout      time.Duration `yaml:"tool_timeout" mapstructure:"tool_timeout"`
	DNSResolver      string        `yaml:"dns_resolver" mapstructure:"dns_resolver"`
	PortProfile      string        `yaml:"port_profile" mapstructure:"port_profile"`
	ScanTechnique    string        `yaml:"scan_technique" mapstructure:"scan_technique"`
	MaxJSFiles       int           `yaml:"max_js_files" mapstructure:"max_js_files"`
	MaxJSFileSize    int64         `yaml:"max_js_file_size" mapstructure:"max_js_file_size"`
	VerifyLiveness   bool          `yaml:"verify_liveness" mapstructure:"verify_liveness"`
	ArchiveLookup    bool          `yaml:"archive_lookup" mapstructure:"archive_lookup"`
	ParameterFuzzing bool          `yaml:"parameter_fuzzing" mapstructure:"parameter_fuzzing"`
	WorkDir          string        `yaml:"work_dir" mapstructure:"work_dir"`
}

// LoadScanSettings reads scan defaults from an optional scans.yaml in the
// config directory, falling back to coded defaults for every knob.
func LoadScanSettings(configPath string) (*ScanSettings, error) {
	v := viper.New()
	v.SetConfigName("scans")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./config")

	v.SetDefault("batch_size", 10)
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("tool_timeout", 10*time.Minute)
	v.SetDefault("dns_resolver", "8.8.8.8:53")
	v.SetDefault("port_profile", "top1000")
	v.SetDefault("scan_technique", "auto")
	v.SetDefault("max_js_files", 50)
	v.SetDefault("max_js_file_size", int64(2*1024*1024))
	v.SetDefault("verify_liveness", true)
	v.SetDefault("archive_lookup", true)
	v.SetDefault("parameter_fuzzing", false)
	v.SetDefault("work_dir", "")

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var settings ScanSettings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}
