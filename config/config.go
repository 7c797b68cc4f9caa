// Package config loads scorer configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// GMMSCORE_* environment variables. Validate checks the result.
//
// Example YAML:
//
//	covariance:
//	  min_determinant: 1e-30
//	evaluation:
//	  precision: float32
//	  use_simd: true
//	  use_ldl: false
//	  ldl_coefficients: 0
//	  max_distance: 1e10
//	  log_density_floor: -1e30
//	  log_density_ceiling: .inf
//	  max_cache_bytes: 1073741824
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/matthias-wolff/gmmscore/internal/mathutil"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "GMMSCORE_"

// Config holds all scorer settings.
type Config struct {
	Covariance CovarianceConfig `yaml:"covariance"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
}

// CovarianceConfig controls covariance preparation.
type CovarianceConfig struct {
	// MinDeterminant marks classes with a smaller det(Σ) rank deficient.
	MinDeterminant float64 `yaml:"min_determinant"`
}

// EvaluationConfig controls kernels and score limits.
type EvaluationConfig struct {
	// Precision is "float32" or "float64".
	Precision       string `yaml:"precision"`
	UseSIMD         bool   `yaml:"use_simd"`
	UseLDL          bool   `yaml:"use_ldl"`
	LDLCoefficients int    `yaml:"ldl_coefficients"`

	MaxDistance       float64 `yaml:"max_distance"`
	LogDensityFloor   float64 `yaml:"log_density_floor"`
	LogDensityCeiling float64 `yaml:"log_density_ceiling"`

	// MaxCacheBytes bounds the precalculated caches; 0 disables the check.
	MaxCacheBytes int64 `yaml:"max_cache_bytes"`
}

// LoadDefaults returns the built-in configuration.
func LoadDefaults() *Config {
	return &Config{
		Covariance: CovarianceConfig{
			MinDeterminant: 0,
		},
		Evaluation: EvaluationConfig{
			Precision:         "float64",
			UseSIMD:           true,
			MaxDistance:       1e10,
			LogDensityFloor:   mathutil.LogZero,
			LogDensityCeiling: math.Inf(1),
			MaxCacheBytes:     1 << 30,
		},
	}
}

// LoadFromFile reads path on top of the defaults and applies the
// environment. A missing file is not an error.
func LoadFromFile(path string) (*Config, error) {
	cfg := LoadDefaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrap(err, "config: read")
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "config: parse %s", path)
			}
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// LoadFromEnv returns the defaults overridden by the environment.
func LoadFromEnv() *Config {
	cfg := LoadDefaults()
	applyEnv(cfg)
	return cfg
}

func applyEnv(c *Config) {
	c.Covariance.MinDeterminant = getEnvFloat("MIN_DETERMINANT", c.Covariance.MinDeterminant)

	e := &c.Evaluation
	e.Precision = getEnv("PRECISION", e.Precision)
	e.UseSIMD = getEnvBool("USE_SIMD", e.UseSIMD)
	e.UseLDL = getEnvBool("USE_LDL", e.UseLDL)
	e.LDLCoefficients = getEnvInt("LDL_COEFFICIENTS", e.LDLCoefficients)
	e.MaxDistance = getEnvFloat("MAX_DISTANCE", e.MaxDistance)
	e.LogDensityFloor = getEnvFloat("LOG_DENSITY_FLOOR", e.LogDensityFloor)
	e.LogDensityCeiling = getEnvFloat("LOG_DENSITY_CEILING", e.LogDensityCeiling)
	e.MaxCacheBytes = int64(getEnvInt("MAX_CACHE_BYTES", int(e.MaxCacheBytes)))
}

// Validate checks the configuration for values no scorer can be built from.
func (c *Config) Validate() error {
	e := c.Evaluation
	switch {
	case c.Covariance.MinDeterminant < 0 || math.IsNaN(c.Covariance.MinDeterminant):
		return errors.Errorf("config: min_determinant %g must be non-negative", c.Covariance.MinDeterminant)
	case e.Precision != "float32" && e.Precision != "float64":
		return errors.Errorf("config: precision %q must be float32 or float64", e.Precision)
	case e.LDLCoefficients < 0:
		return errors.Errorf("config: ldl_coefficients %d must be non-negative", e.LDLCoefficients)
	case !mathutil.Finite(e.MaxDistance) || e.MaxDistance <= 0:
		return errors.Errorf("config: max_distance %g must be positive and finite", e.MaxDistance)
	case !mathutil.Finite(e.LogDensityFloor):
		return errors.Errorf("config: log_density_floor %g must be finite", e.LogDensityFloor)
	case math.IsNaN(e.LogDensityCeiling):
		return errors.New("config: log_density_ceiling must not be NaN")
	case e.Precision == "float32" && (!finite32(e.MaxDistance) || !finite32(e.LogDensityFloor)):
		return errors.Errorf("config: max_distance %g or log_density_floor %g overflows float32",
			e.MaxDistance, e.LogDensityFloor)
	case e.LogDensityFloor >= e.LogDensityCeiling:
		return errors.Errorf("config: log_density_floor %g not below log_density_ceiling %g",
			e.LogDensityFloor, e.LogDensityCeiling)
	case e.MaxCacheBytes < 0:
		return errors.Errorf("config: max_cache_bytes %d must be non-negative", e.MaxCacheBytes)
	}
	return nil
}

func finite32(v float64) bool {
	return mathutil.Finite(float64(float32(v)))
}

// String renders the effective configuration as YAML.
func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
