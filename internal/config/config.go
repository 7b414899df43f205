// Package config loads the immutable process-wide Config every
// component is built from: gate thresholds, Monte Carlo defaults,
// runs/terminal directories, simulator call defaults, and the stress
// scenario calendar. Values layer the same way the teacher's
// cmd/server/main.go flags do (flag > file > built-in default), but
// sourced through viper so a deployment can also hand in a config file
// or environment variables without a code change.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/eastress/robustness-pipeline/internal/gate"
	"github.com/eastress/robustness-pipeline/internal/montecarlo"
	"github.com/eastress/robustness-pipeline/internal/simulator"
	"github.com/eastress/robustness-pipeline/internal/stress"
)

// Config is the fully-resolved, read-only configuration a server process
// builds once at startup and threads into every stage's Env.
type Config struct {
	Host string
	Port int

	RunsDir  string
	WorkDir  string
	LogLevel string

	DefaultTerminalID string
	Terminals         map[string]simulator.TerminalConfig

	Thresholds gate.Thresholds
	MCConfig   montecarlo.Config

	StressSuite    stress.SuiteConfig
	StressOverlays []stress.OverlayCost

	InjectorMinTrades int
	MaxFixAttempts    int

	Deposit               float64
	Currency              string
	Leverage              int
	OptimizationCriterion int
	RunTimeoutSeconds     int64

	FromDate string
	ToDate   string

	AdditionalSymbols []string

	LeaderboardPassesPerWorkflow int
}

// setDefaults seeds every knob viper doesn't find in a config file or
// environment variable, mirroring the teacher's flag.String/flag.Int
// default arguments one for one.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	v.SetDefault("runsDir", "./runs")
	v.SetDefault("workDir", "./work")
	v.SetDefault("logLevel", "info")

	v.SetDefault("terminal.defaultId", "default")

	thresholds := gate.DefaultThresholds()
	v.SetDefault("gate.minTrades", thresholds.MinTrades)
	v.SetDefault("gate.minProfitFactor", thresholds.MinProfitFactor)
	v.SetDefault("gate.maxDrawdownPct", thresholds.MaxDrawdownPct)
	v.SetDefault("gate.mcConfidenceMin", thresholds.MCConfidenceMin)
	v.SetDefault("gate.mcRuinMax", thresholds.MCRuinMax)
	v.SetDefault("gate.minOptimizationPasses", thresholds.MinOptimizationPasses)

	mc := montecarlo.DefaultConfig()
	v.SetDefault("montecarlo.initialBalance", mc.InitialBalance)
	v.SetDefault("montecarlo.iterations", mc.Iterations)
	v.SetDefault("montecarlo.ruinThreshold", mc.RuinThreshold)
	v.SetDefault("montecarlo.seed", mc.Seed)

	suite := stress.DefaultSuiteConfig()
	v.SetDefault("stress.rollingDays", suite.RollingDays)
	v.SetDefault("stress.calendarMonthsAgo", suite.CalendarMonthsAgo)

	v.SetDefault("injector.minTrades", 50)
	v.SetDefault("pipeline.maxFixAttempts", 3)

	v.SetDefault("simulator.deposit", 10000.0)
	v.SetDefault("simulator.currency", "USD")
	v.SetDefault("simulator.leverage", 100)
	v.SetDefault("simulator.optimizationCriterion", 2) // OptimizationCriterion= id; the genetic mode is set separately
	v.SetDefault("simulator.runTimeoutSeconds", 0)

	v.SetDefault("leaderboard.passesPerWorkflow", 30)
}

// Load builds a Config from (in increasing priority) built-in defaults,
// an optional config file, and environment variables prefixed
// ROBUSTNESS_ (ROBUSTNESS_SERVER_PORT overrides server.port, etc).
// configFile may be empty, in which case only defaults and the
// environment apply.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ROBUSTNESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	rollingDays := toIntSlice(v.Get("stress.rollingDays"))
	calendarMonthsAgo := toIntSlice(v.Get("stress.calendarMonthsAgo"))

	cfg := Config{
		Host: v.GetString("server.host"),
		Port: v.GetInt("server.port"),

		RunsDir:  v.GetString("runsDir"),
		WorkDir:  v.GetString("workDir"),
		LogLevel: v.GetString("logLevel"),

		DefaultTerminalID: v.GetString("terminal.defaultId"),
		Terminals:         map[string]simulator.TerminalConfig{},

		Thresholds: gate.Thresholds{
			MinTrades:             v.GetInt("gate.minTrades"),
			MinProfitFactor:       v.GetFloat64("gate.minProfitFactor"),
			MaxDrawdownPct:        v.GetFloat64("gate.maxDrawdownPct"),
			MCConfidenceMin:       v.GetFloat64("gate.mcConfidenceMin"),
			MCRuinMax:             v.GetFloat64("gate.mcRuinMax"),
			MinOptimizationPasses: v.GetInt("gate.minOptimizationPasses"),
		},
		MCConfig: montecarlo.Config{
			InitialBalance:   v.GetFloat64("montecarlo.initialBalance"),
			Iterations:       v.GetInt("montecarlo.iterations"),
			RuinThreshold:    v.GetFloat64("montecarlo.ruinThreshold"),
			ConfidenceLevels: montecarlo.DefaultConfig().ConfidenceLevels,
			Seed:             v.GetInt64("montecarlo.seed"),
		},

		StressSuite: stress.SuiteConfig{
			RollingDays:       rollingDays,
			CalendarMonthsAgo: calendarMonthsAgo,
			Models:            stress.DefaultSuiteConfig().Models,
		},

		InjectorMinTrades: v.GetInt("injector.minTrades"),
		MaxFixAttempts:    v.GetInt("pipeline.maxFixAttempts"),

		Deposit:               v.GetFloat64("simulator.deposit"),
		Currency:              v.GetString("simulator.currency"),
		Leverage:              v.GetInt("simulator.leverage"),
		OptimizationCriterion: v.GetInt("simulator.optimizationCriterion"),
		RunTimeoutSeconds:     v.GetInt64("simulator.runTimeoutSeconds"),

		FromDate: v.GetString("simulator.fromDate"),
		ToDate:   v.GetString("simulator.toDate"),

		AdditionalSymbols: v.GetStringSlice("simulator.additionalSymbols"),

		LeaderboardPassesPerWorkflow: v.GetInt("leaderboard.passesPerWorkflow"),
	}

	var terminals map[string]map[string]interface{}
	if err := v.UnmarshalKey("terminals", &terminals); err == nil {
		for id, raw := range terminals {
			cfg.Terminals[id] = simulator.TerminalConfig{
				Name:     id,
				Path:     fmt.Sprint(raw["path"]),
				DataPath: fmt.Sprint(raw["dataPath"]),
				Default:  id == cfg.DefaultTerminalID,
			}
		}
	}

	return cfg, nil
}

func toIntSlice(raw interface{}) []int {
	switch v := raw.(type) {
	case []int:
		return v
	case []interface{}:
		out := make([]int, 0, len(v))
		for _, e := range v {
			switch n := e.(type) {
			case int:
				out = append(out, n)
			case int64:
				out = append(out, int(n))
			case float64:
				out = append(out, int(n))
			}
		}
		return out
	default:
		return nil
	}
}

// RunTimeout is RunTimeoutSeconds as a time.Duration, 0 meaning "let the
// simulator use its own default".
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}
