package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/craving/internal/conversation"
	"github.com/hurttlocker/craving/internal/extract"
	"github.com/hurttlocker/craving/internal/recommend"
	"github.com/hurttlocker/craving/internal/scoring"
)

// ValueSource names the layer a setting was taken from.
type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Scorer providers.
const (
	ScorerRisk = "risk"
	ScorerONNX = "onnx"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ResolvedValue is one setting together with where it came from.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI overrides, the highest precedence layer.
type ResolveOptions struct {
	ConfigPath  string
	CLICatalog  string
	CLIDBPath   string
	CLIScorer   string
	CLITimezone string
	CLITTL      string
	CLILogLevel string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	CatalogPath ResolvedValue `json:"catalog_path"`
	DBPath      ResolvedValue `json:"db_path"`
	PendingTTL  ResolvedValue `json:"pending_ttl"`
	Timezone    ResolvedValue `json:"timezone"`

	Scorer       ResolvedValue `json:"scorer"`
	ScoreWorkers ResolvedValue `json:"score_workers"`
	ONNXModel    ResolvedValue `json:"onnx_model"`
	ONNXLibrary  ResolvedValue `json:"onnx_library"`
	ONNXInput    ResolvedValue `json:"onnx_input"`
	ONNXOutput   ResolvedValue `json:"onnx_output"`

	LogLevel  ResolvedValue `json:"log_level"`
	LogFormat ResolvedValue `json:"log_format"`

	// Thresholds is only settable from the config file.
	Thresholds     recommend.ThresholdPolicy `json:"thresholds"`
	ThresholdsFrom ValueSource               `json:"thresholds_from"`
}

type fileConfig struct {
	CatalogPath string `yaml:"catalog_path"`
	DBPath      string `yaml:"db_path"`
	PendingTTL  string `yaml:"pending_ttl"`
	Timezone    string `yaml:"timezone"`
	Scoring     struct {
		Provider   string                     `yaml:"provider"`
		Workers    string                     `yaml:"workers"`
		ONNX       scoring.ONNXConfig         `yaml:"onnx"`
		Thresholds *recommend.ThresholdPolicy `yaml:"thresholds"`
	} `yaml:"scoring"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".craving", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:     path,
		PendingTTL:     defaultValue(conversation.DefaultTTL.String()),
		Timezone:       defaultValue(extract.DefaultLocation),
		Scorer:         defaultValue(ScorerRisk),
		ScoreWorkers:   defaultValue(strconv.Itoa(recommend.DefaultWorkers)),
		LogLevel:       defaultValue("info"),
		LogFormat:      defaultValue("console"),
		Thresholds:     recommend.DefaultThresholds(),
		ThresholdsFrom: SourceDefault,
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.CatalogPath, cfg.CatalogPath, SourceConfig, path)
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.PendingTTL, cfg.PendingTTL, SourceConfig, path)
		apply(&out.Timezone, cfg.Timezone, SourceConfig, path)
		apply(&out.Scorer, cfg.Scoring.Provider, SourceConfig, path)
		apply(&out.ScoreWorkers, cfg.Scoring.Workers, SourceConfig, path)
		apply(&out.ONNXModel, cfg.Scoring.ONNX.ModelPath, SourceConfig, path)
		apply(&out.ONNXLibrary, cfg.Scoring.ONNX.LibraryPath, SourceConfig, path)
		apply(&out.ONNXInput, cfg.Scoring.ONNX.InputName, SourceConfig, path)
		apply(&out.ONNXOutput, cfg.Scoring.ONNX.OutputName, SourceConfig, path)
		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
		apply(&out.LogFormat, cfg.Log.Format, SourceConfig, path)
		if cfg.Scoring.Thresholds != nil {
			out.Thresholds = *cfg.Scoring.Thresholds
			out.ThresholdsFrom = SourceConfig
		}
	}

	applyEnv(&out.CatalogPath, "CRAVING_CATALOG")
	applyEnv(&out.DBPath, "CRAVING_DB")
	applyEnv(&out.DBPath, "CRAVING_DB_PATH")
	applyEnv(&out.PendingTTL, "CRAVING_PENDING_TTL")
	applyEnv(&out.Timezone, "CRAVING_TIMEZONE")
	applyEnv(&out.Scorer, "CRAVING_SCORER")
	applyEnv(&out.ScoreWorkers, "CRAVING_SCORE_WORKERS")
	applyEnv(&out.ONNXModel, "CRAVING_ONNX_MODEL")
	applyEnv(&out.ONNXLibrary, "CRAVING_ONNX_LIBRARY")
	applyEnv(&out.LogLevel, "CRAVING_LOG_LEVEL")
	applyEnv(&out.LogFormat, "CRAVING_LOG_FORMAT")

	apply(&out.CatalogPath, opts.CLICatalog, SourceCLI, "--catalog")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Scorer, opts.CLIScorer, SourceCLI, "--scorer")
	apply(&out.Timezone, opts.CLITimezone, SourceCLI, "--timezone")
	apply(&out.PendingTTL, opts.CLITTL, SourceCLI, "--ttl")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")

	for _, v := range []*ResolvedValue{&out.CatalogPath, &out.DBPath, &out.ONNXModel, &out.ONNXLibrary} {
		if v.Value != "" {
			v.Value = expandUserPath(v.Value)
		}
	}

	return out, out.Validate()
}

// Validate checks every typed setting.
func (r ResolvedConfig) Validate() error {
	var errs []error
	if _, err := r.TTL(); err != nil {
		errs = append(errs, err)
	}
	if _, err := r.Workers(); err != nil {
		errs = append(errs, err)
	}
	if _, err := r.Location(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(r.Scorer.Value) {
	case ScorerRisk:
	case ScorerONNX:
		if r.ONNXModel.Value == "" {
			errs = append(errs, fmt.Errorf("%w: scorer %q needs an onnx model path", ErrInvalidConfig, ScorerONNX))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown scorer %q (from %s)", ErrInvalidConfig, r.Scorer.Value, describe(r.Scorer)))
	}
	if err := r.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

// TTL parses the pending extraction lifetime. Bare integers are seconds.
func (r ResolvedConfig) TTL() (time.Duration, error) {
	v := r.PendingTTL.Value
	if n, err := strconv.Atoi(v); err == nil {
		v = strconv.Itoa(n) + "s"
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: pending ttl %q (from %s)", ErrInvalidConfig, r.PendingTTL.Value, describe(r.PendingTTL))
	}
	return d, nil
}

// Workers parses the scorer concurrency limit.
func (r ResolvedConfig) Workers() (int, error) {
	n, err := strconv.Atoi(r.ScoreWorkers.Value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: score workers %q (from %s)", ErrInvalidConfig, r.ScoreWorkers.Value, describe(r.ScoreWorkers))
	}
	return n, nil
}

// Location loads the configured time zone.
func (r ResolvedConfig) Location() (*time.Location, error) {
	loc, err := extract.LoadLocation(r.Timezone.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q (from %s): %w", ErrInvalidConfig, r.Timezone.Value, describe(r.Timezone), err)
	}
	return loc, nil
}

// ONNX returns the ONNX scorer settings.
func (r ResolvedConfig) ONNX() scoring.ONNXConfig {
	return scoring.ONNXConfig{
		ModelPath:   r.ONNXModel.Value,
		LibraryPath: r.ONNXLibrary.Value,
		InputName:   r.ONNXInput.Value,
		OutputName:  r.ONNXOutput.Value,
	}
}

func describe(v ResolvedValue) string {
	if v.From != "" {
		return v.From
	}
	return string(v.Source)
}

func defaultValue(v string) ResolvedValue {
	return ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
