// Package montecarlo resamples a trade-profit sequence to estimate ruin
// probability and profit percentiles under different trade orderings
// (spec §4.5, C5). Iterations fan out across the workers pool; every
// iteration derives its shuffle seed deterministically from the run's
// master seed and iteration index, so a given (seed, trades) pair always
// produces bitwise-identical output regardless of how the pool schedules
// the work (spec §8).
package montecarlo

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
	"github.com/eastress/robustness-pipeline/internal/workers"
	"go.uber.org/zap"
)

// monteCarloTaskTimeout bounds a single iteration; iterations are pure
// in-memory loops over a small trade list, so this is generous headroom
// rather than a tuned limit.
const monteCarloTaskTimeout = 5 * time.Second

// Config controls a single Monte Carlo run.
type Config struct {
	InitialBalance   float64
	Iterations       int
	RuinThreshold    float64   // fraction of peak, e.g. 0.5 = 50% drawdown
	ConfidenceLevels []float64 // percentiles in [0,1], e.g. 0.05, 0.50, 0.95
	Seed             int64
	Concurrency      int // 0 = run inline, sequential
}

// DefaultConfig matches the original implementation's defaults.
func DefaultConfig() Config {
	return Config{
		InitialBalance: 10000,
		Iterations:     10000,
		RuinThreshold:  0.5,
		ConfidenceLevels: []float64{0.05, 0.10, 0.25, 0.50, 0.75, 0.90, 0.95},
		Seed:           1,
	}
}

type iterationOutcome struct {
	finalProfit float64
	maxDrawdown float64 // percentage points
	ruined      bool
}

// deriveSeed produces a seed for iteration i from the master seed. The
// multiplier is an arbitrary large odd constant chosen only to spread
// adjacent indices across the 64-bit space; it has no numerical meaning.
func deriveSeed(master int64, i int) int64 {
	return master + int64(i)*2654435761
}

func runOne(trades []float64, cfg Config, i int) iterationOutcome {
	rng := rand.New(rand.NewSource(deriveSeed(cfg.Seed, i)))

	shuffled := make([]float64, len(trades))
	copy(shuffled, trades)
	rng.Shuffle(len(shuffled), func(a, b int) {
		shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
	})

	balance := cfg.InitialBalance
	peak := cfg.InitialBalance
	maxDD := 0.0
	ruined := false

	for _, trade := range shuffled {
		balance += trade
		if balance > peak {
			peak = balance
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - balance) / peak
		}
		if dd > maxDD {
			maxDD = dd
		}
		if dd >= cfg.RuinThreshold {
			ruined = true
		}
		// Deliberately do not break on ruin: the final profit must be
		// computed from the whole shuffled sequence (spec §4.5).
	}

	return iterationOutcome{
		finalProfit: balance - cfg.InitialBalance,
		maxDrawdown: maxDD * 100,
		ruined:      ruined,
	}
}

// Run executes the Monte Carlo simulation over trades (a list of
// per-trade profit/loss values) and returns the aggregate result plus
// the raw distributions (for charting / dashboard data feed).
func Run(logger *zap.Logger, trades []float64, cfg Config) (domain.MonteCarloResult, []float64, []float64) {
	if len(trades) == 0 {
		return domain.MonteCarloResult{}, nil, nil
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultConfig().Iterations
	}
	if len(cfg.ConfidenceLevels) == 0 {
		cfg.ConfidenceLevels = DefaultConfig().ConfidenceLevels
	}

	outcomes := make([]iterationOutcome, cfg.Iterations)

	if cfg.Concurrency > 1 {
		runParallel(logger, trades, cfg, outcomes)
	} else {
		for i := 0; i < cfg.Iterations; i++ {
			outcomes[i] = runOne(trades, cfg, i)
		}
	}

	finalProfits := make([]float64, cfg.Iterations)
	maxDrawdowns := make([]float64, cfg.Iterations)
	ruinCount := 0
	profitableCount := 0
	sumProfit := 0.0

	for i, o := range outcomes {
		finalProfits[i] = o.finalProfit
		maxDrawdowns[i] = o.maxDrawdown
		sumProfit += o.finalProfit
		if o.finalProfit > 0 {
			profitableCount++
		}
		if o.ruined {
			ruinCount++
		}
	}

	// Deterministic post-sort: percentiles must not depend on which
	// goroutine produced which result (spec §5).
	sort.Float64s(finalProfits)
	sort.Float64s(maxDrawdowns)

	n := len(finalProfits)
	percentiles := make(map[string]float64, len(cfg.ConfidenceLevels))
	ddPercentiles := make(map[string]float64, len(cfg.ConfidenceLevels))
	for _, level := range cfg.ConfidenceLevels {
		idx := clampIndex(int(level*float64(n)), n)
		percentiles[levelKey(level)] = finalProfits[idx]
		ddPercentiles[levelKey(level)] = maxDrawdowns[idx]
	}

	result := domain.MonteCarloResult{
		Iterations:          cfg.Iterations,
		RuinProbabilityPct:  round2(float64(ruinCount) / float64(cfg.Iterations) * 100),
		ConfidencePct:       round2(float64(profitableCount) / float64(cfg.Iterations) * 100),
		ExpectedProfit:      round2(sumProfit / float64(n)),
		MedianProfit:        round2(finalProfits[n/2]),
		WorstCaseP5:         round2(percentileOrEdge(percentiles, "p5", finalProfits[0])),
		BestCaseP95:         round2(percentileOrEdge(percentiles, "p95", finalProfits[n-1])),
		MaxDrawdownMedian:   round2(maxDrawdowns[n/2]),
		MaxDrawdownWorstP95: round2(maxDrawdowns[clampIndex(int(0.95*float64(n)), n)]),
		Percentiles:         percentiles,
		DDPercentiles:       ddPercentiles,
	}

	return result, finalProfits, maxDrawdowns
}

func runParallel(logger *zap.Logger, trades []float64, cfg Config, outcomes []iterationOutcome) {
	poolCfg := workers.DefaultPoolConfig("montecarlo")
	poolCfg.NumWorkers = cfg.Concurrency
	poolCfg.QueueSize = len(outcomes)
	poolCfg.TaskTimeout = monteCarloTaskTimeout

	pool := workers.NewPool(logger, poolCfg)
	pool.Start()
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(len(outcomes))
	for i := range outcomes {
		i := i
		_ = pool.SubmitFunc(func() error {
			defer wg.Done()
			outcomes[i] = runOne(trades, cfg, i)
			return nil
		})
	}
	wg.Wait()
}

func clampIndex(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

func levelKey(level float64) string {
	return "p" + itoa(int(level*100+0.5))
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func percentileOrEdge(percentiles map[string]float64, key string, edge float64) float64 {
	if v, ok := percentiles[key]; ok {
		return v
	}
	return edge
}

func round2(v float64) float64 {
	return float64(int(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
