package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Tutortoise/digit-recognition-service/digits"
)

const envPrefix = "DIGITS"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Model   ModelConfig   `mapstructure:"model"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Resize  ResizeConfig  `mapstructure:"resize"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Lambda  LambdaConfig  `mapstructure:"lambda"`
	Debug   bool          `mapstructure:"debug"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ModelConfig struct {
	Path       string `mapstructure:"path"`
	InputName  string `mapstructure:"input_name"`
	OutputName string `mapstructure:"output_name"`
}

type RuntimeConfig struct {
	Library        string   `mapstructure:"library"`
	SearchPaths    []string `mapstructure:"search_paths"`
	IntraOpThreads int      `mapstructure:"intra_op_threads"`
	InterOpThreads int      `mapstructure:"inter_op_threads"`
}

type PoolConfig struct {
	Size              int           `mapstructure:"size"`
	AcquireTimeout    time.Duration `mapstructure:"acquire_timeout"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

type ResizeConfig struct {
	Backend string `mapstructure:"backend"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LambdaConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_body_bytes", int64(10<<20))

	v.SetDefault("model.path", "mnist-8.onnx")
	v.SetDefault("model.input_name", "")
	v.SetDefault("model.output_name", "")

	v.SetDefault("runtime.library", "")
	v.SetDefault("runtime.search_paths", []string{".", "lib", "/opt/lib"})
	v.SetDefault("runtime.intra_op_threads", 0)
	v.SetDefault("runtime.inter_op_threads", 0)

	v.SetDefault("pool.size", DefaultPoolSize)
	v.SetDefault("pool.acquire_timeout", AcquireTimeout)
	v.SetDefault("pool.health_check_period", HealthCheckPeriod)

	v.SetDefault("resize.backend", digits.BackendImaging)
	v.SetDefault("cors.allowed_origins", []string{"*"})

	// Lambda sets AWS_LAMBDA_RUNTIME_API in every function environment.
	v.SetDefault("lambda.enabled", os.Getenv("AWS_LAMBDA_RUNTIME_API") != "")
	v.SetDefault("debug", false)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("digit-recognition-service", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML/JSON/TOML config file")
	fs.String("host", "", "interface to listen on")
	fs.Int("port", 8080, "port to listen on")
	fs.String("model", "mnist-8.onnx", "path to the ONNX digit classification model")
	fs.String("ort-lib", "", "path to the ONNX Runtime shared library")
	fs.Int("pool-size", DefaultPoolSize, "number of model sessions")
	fs.String("resize-backend", digits.BackendImaging, "Lanczos resampler: imaging or nfnt")
	fs.Bool("debug", false, "enable development logging and per-request timings")
	fs.Bool("lambda", false, "serve through the AWS Lambda runtime instead of HTTP")
	return fs
}

var flagKeys = map[string]string{
	"host":           "server.host",
	"port":           "server.port",
	"model":          "model.path",
	"ort-lib":        "runtime.library",
	"pool-size":      "pool.size",
	"resize-backend": "resize.backend",
	"debug":          "debug",
	"lambda":         "lambda.enabled",
}

// loadConfig merges, in order of precedence, command line flags, DIGITS_*
// environment variables, an optional config file and defaults.
func loadConfig(args []string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("debug", envPrefix+"_DEBUG", "DEBUG"); err != nil {
		return nil, err
	}

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Model.Path == "" {
		return fmt.Errorf("model path is required")
	}
	if c.Pool.Size <= 0 {
		return fmt.Errorf("pool size must be positive, got %d", c.Pool.Size)
	}
	if c.Pool.AcquireTimeout <= 0 {
		return fmt.Errorf("pool acquire timeout must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if _, err := digits.NewResampler(c.Resize.Backend); err != nil {
		return err
	}
	return nil
}
