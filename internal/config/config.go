package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full externally-supplied configuration surface of the
// risk core. Values come from an optional YAML file with environment
// variable overrides; nothing is prompted interactively.
type Config struct {
	Environment string `yaml:"environment"`
	Symbol      string `yaml:"symbol"`

	Validator struct {
		OutlierSigma      float64 `yaml:"outlier_sigma"`
		QualityScoreMin   float64 `yaml:"quality_score_min"`
		MaxZeroVolumePct  float64 `yaml:"max_zero_volume_pct"`
		GapMedianMultiple float64 `yaml:"gap_median_multiple"`
	} `yaml:"validator"`

	Ensemble struct {
		Method              string  `yaml:"method"` // weighted_average, majority, blended
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	} `yaml:"ensemble"`

	Risk struct {
		DrawdownLevel1     float64 `yaml:"drawdown_level_1"` // percent, negative
		DrawdownLevel2     float64 `yaml:"drawdown_level_2"`
		DrawdownLevel3     float64 `yaml:"drawdown_level_3"`
		KellyMinWinProb    float64 `yaml:"kelly_min_win_prob"`
		KellyScale         float64 `yaml:"kelly_scale"`
		KellyPayoffRatio   float64 `yaml:"kelly_payoff_ratio"`
		MinPositionSize    float64 `yaml:"min_position_size"` // fraction of equity
		MaxPositionSize    float64 `yaml:"max_position_size"`
		LowCorrelation     float64 `yaml:"low_correlation"`
	} `yaml:"risk"`

	Breaker struct {
		FailureThreshold int           `yaml:"failure_threshold"`
		SuccessThreshold int           `yaml:"success_threshold"`
		Timeout          time.Duration `yaml:"timeout"`
		HalfOpenMaxCalls int           `yaml:"half_open_max_calls"`
	} `yaml:"breaker"`

	Stops struct {
		DefaultType          string  `yaml:"default_type"` // percentage, atr, chandelier, dynamic
		ActivationProfitPct  float64 `yaml:"activation_profit_pct"`
		TrailDistance        float64 `yaml:"trail_distance"` // percent
		ATRPeriod            int     `yaml:"atr_period"`
		ATRMultiplier        float64 `yaml:"atr_multiplier"`
		ChandelierPeriod     int     `yaml:"chandelier_period"`
		ChandelierMultiplier float64 `yaml:"chandelier_multiplier"`
	} `yaml:"stops"`

	Monitoring struct {
		PrometheusPort int `yaml:"prometheus_port"`
		HealthPort     int `yaml:"health_port"`
	} `yaml:"monitoring"`

	Reporting struct {
		OutputDir string `yaml:"output_dir"`
	} `yaml:"reporting"`
}

// Default returns the configuration defaults documented in the
// component contracts.
func Default() *Config {
	cfg := &Config{}
	cfg.Environment = "development"
	cfg.Symbol = "BTCUSDT"

	cfg.Validator.OutlierSigma = 5.0
	cfg.Validator.QualityScoreMin = 0.8
	cfg.Validator.MaxZeroVolumePct = 0.10
	cfg.Validator.GapMedianMultiple = 2.0

	cfg.Ensemble.Method = "weighted_average"
	cfg.Ensemble.ConfidenceThreshold = 0.5

	cfg.Risk.DrawdownLevel1 = -5.0
	cfg.Risk.DrawdownLevel2 = -10.0
	cfg.Risk.DrawdownLevel3 = -15.0
	cfg.Risk.KellyMinWinProb = 0.5
	cfg.Risk.KellyScale = 0.5
	cfg.Risk.KellyPayoffRatio = 2.0
	cfg.Risk.MinPositionSize = 0.01
	cfg.Risk.MaxPositionSize = 0.25
	cfg.Risk.LowCorrelation = 0.5

	cfg.Breaker.FailureThreshold = 5
	cfg.Breaker.SuccessThreshold = 2
	cfg.Breaker.Timeout = 60 * time.Second
	cfg.Breaker.HalfOpenMaxCalls = 1

	cfg.Stops.DefaultType = "percentage"
	cfg.Stops.ActivationProfitPct = 2.0
	cfg.Stops.TrailDistance = 1.0
	cfg.Stops.ATRPeriod = 14
	cfg.Stops.ATRMultiplier = 2.0
	cfg.Stops.ChandelierPeriod = 22
	cfg.Stops.ChandelierMultiplier = 3.0

	cfg.Monitoring.PrometheusPort = 9090
	cfg.Monitoring.HealthPort = 8081

	cfg.Reporting.OutputDir = "reports"

	return cfg
}

// Load builds the configuration from defaults, an optional YAML file
// and environment variable overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Environment = getEnv("ENV", c.Environment)
	c.Symbol = getEnv("SYMBOL", c.Symbol)

	c.Validator.OutlierSigma = getEnvFloat("VALIDATOR_OUTLIER_SIGMA", c.Validator.OutlierSigma)
	c.Validator.QualityScoreMin = getEnvFloat("VALIDATOR_QUALITY_MIN", c.Validator.QualityScoreMin)

	c.Ensemble.Method = getEnv("ENSEMBLE_METHOD", c.Ensemble.Method)
	c.Ensemble.ConfidenceThreshold = getEnvFloat("ENSEMBLE_CONFIDENCE_THRESHOLD", c.Ensemble.ConfidenceThreshold)

	c.Risk.DrawdownLevel1 = getEnvFloat("RISK_DRAWDOWN_LEVEL_1", c.Risk.DrawdownLevel1)
	c.Risk.DrawdownLevel2 = getEnvFloat("RISK_DRAWDOWN_LEVEL_2", c.Risk.DrawdownLevel2)
	c.Risk.DrawdownLevel3 = getEnvFloat("RISK_DRAWDOWN_LEVEL_3", c.Risk.DrawdownLevel3)
	c.Risk.MinPositionSize = getEnvFloat("RISK_MIN_POSITION_SIZE", c.Risk.MinPositionSize)
	c.Risk.MaxPositionSize = getEnvFloat("RISK_MAX_POSITION_SIZE", c.Risk.MaxPositionSize)

	c.Breaker.FailureThreshold = getEnvInt("BREAKER_FAILURE_THRESHOLD", c.Breaker.FailureThreshold)
	c.Breaker.SuccessThreshold = getEnvInt("BREAKER_SUCCESS_THRESHOLD", c.Breaker.SuccessThreshold)
	c.Breaker.Timeout = getEnvDuration("BREAKER_TIMEOUT", c.Breaker.Timeout)
	c.Breaker.HalfOpenMaxCalls = getEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", c.Breaker.HalfOpenMaxCalls)

	c.Stops.DefaultType = getEnv("STOPS_DEFAULT_TYPE", c.Stops.DefaultType)
	c.Stops.ActivationProfitPct = getEnvFloat("STOPS_ACTIVATION_PROFIT_PCT", c.Stops.ActivationProfitPct)
	c.Stops.TrailDistance = getEnvFloat("STOPS_TRAIL_DISTANCE", c.Stops.TrailDistance)

	c.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", c.Monitoring.PrometheusPort)
	c.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", c.Monitoring.HealthPort)
}

// Validate rejects misconfiguration at construction time rather than
// at call time.
func (c *Config) Validate() error {
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker failure_threshold must be positive, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker success_threshold must be positive, got %d", c.Breaker.SuccessThreshold)
	}
	if c.Breaker.Timeout <= 0 {
		return fmt.Errorf("breaker timeout must be positive, got %v", c.Breaker.Timeout)
	}
	if c.Breaker.HalfOpenMaxCalls <= 0 {
		return fmt.Errorf("breaker half_open_max_calls must be positive, got %d", c.Breaker.HalfOpenMaxCalls)
	}

	if c.Risk.DrawdownLevel1 >= 0 || c.Risk.DrawdownLevel2 >= 0 || c.Risk.DrawdownLevel3 >= 0 {
		return fmt.Errorf("drawdown levels must be negative: %.2f/%.2f/%.2f",
			c.Risk.DrawdownLevel1, c.Risk.DrawdownLevel2, c.Risk.DrawdownLevel3)
	}
	if !(c.Risk.DrawdownLevel1 >= c.Risk.DrawdownLevel2 && c.Risk.DrawdownLevel2 >= c.Risk.DrawdownLevel3) {
		return fmt.Errorf("drawdown levels must be ordered level_1 >= level_2 >= level_3: %.2f/%.2f/%.2f",
			c.Risk.DrawdownLevel1, c.Risk.DrawdownLevel2, c.Risk.DrawdownLevel3)
	}

	if c.Risk.MinPositionSize < 0 || c.Risk.MaxPositionSize <= 0 || c.Risk.MinPositionSize > c.Risk.MaxPositionSize {
		return fmt.Errorf("invalid position size bounds [%.4f, %.4f]", c.Risk.MinPositionSize, c.Risk.MaxPositionSize)
	}

	if c.Validator.QualityScoreMin < 0 || c.Validator.QualityScoreMin > 1 {
		return fmt.Errorf("validator quality_score_min must be in [0,1], got %.2f", c.Validator.QualityScoreMin)
	}
	if c.Validator.OutlierSigma <= 0 {
		return fmt.Errorf("validator outlier_sigma must be positive, got %.2f", c.Validator.OutlierSigma)
	}

	if c.Ensemble.ConfidenceThreshold < 0 || c.Ensemble.ConfidenceThreshold > 1 {
		return fmt.Errorf("ensemble confidence_threshold must be in [0,1], got %.2f", c.Ensemble.ConfidenceThreshold)
	}

	switch c.Stops.DefaultType {
	case "percentage", "atr", "chandelier", "dynamic":
	default:
		return fmt.Errorf("unknown stop type %q", c.Stops.DefaultType)
	}
	if c.Stops.TrailDistance <= 0 {
		return fmt.Errorf("stops trail_distance must be positive, got %.2f", c.Stops.TrailDistance)
	}
	if c.Stops.ATRPeriod <= 0 || c.Stops.ChandelierPeriod <= 0 {
		return fmt.Errorf("stop lookback periods must be positive: atr=%d chandelier=%d",
			c.Stops.ATRPeriod, c.Stops.ChandelierPeriod)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
