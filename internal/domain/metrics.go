package domain

// TradeMetrics is the flat numeric record produced by the report parser and
// consumed by the gate engine, Monte Carlo estimator, and aggregator alike.
type TradeMetrics struct {
	Profit          float64 `json:"profit"`
	ProfitFactor    float64 `json:"profitFactor"`
	MaxDrawdownPct  float64 `json:"maxDrawdownPct"`
	TotalTrades     int     `json:"totalTrades"`
	WinRate         float64 `json:"winRate"`
	Sharpe          float64 `json:"sharpe"`
	Sortino         float64 `json:"sortino"`
	ExpectedPayoff  float64 `json:"expectedPayoff"`
	RecoveryFactor  float64 `json:"recoveryFactor"`
	GrossProfit     float64 `json:"grossProfit"`
	GrossLoss       float64 `json:"grossLoss"`
}

// ToMap flattens the record to a string-keyed map, the shape the gate
// engine's pure functions and the parser's alias table both operate on.
func (m TradeMetrics) ToMap() map[string]float64 {
	return map[string]float64{
		"profit":            m.Profit,
		"profit_factor":     m.ProfitFactor,
		"max_drawdown_pct":  m.MaxDrawdownPct,
		"total_trades":      float64(m.TotalTrades),
		"win_rate":          m.WinRate,
		"sharpe":            m.Sharpe,
		"sortino":           m.Sortino,
		"expected_payoff":   m.ExpectedPayoff,
		"recovery_factor":   m.RecoveryFactor,
		"gross_profit":      m.GrossProfit,
		"gross_loss":        m.GrossLoss,
	}
}

// TradeMetricsFromMap rebuilds a TradeMetrics from its flat-map form.
func TradeMetricsFromMap(m map[string]float64) TradeMetrics {
	return TradeMetrics{
		Profit:         m["profit"],
		ProfitFactor:   m["profit_factor"],
		MaxDrawdownPct: m["max_drawdown_pct"],
		TotalTrades:    int(m["total_trades"]),
		WinRate:        m["win_rate"],
		Sharpe:         m["sharpe"],
		Sortino:        m["sortino"],
		ExpectedPayoff: m["expected_payoff"],
		RecoveryFactor: m["recovery_factor"],
		GrossProfit:    m["gross_profit"],
		GrossLoss:      m["gross_loss"],
	}
}

// GateOperator is the comparison a GateResult was evaluated with.
type GateOperator string

const (
	OpGTE GateOperator = ">="
	OpLTE GateOperator = "<="
	OpGT  GateOperator = ">"
	OpLT  GateOperator = "<"
	OpEQ  GateOperator = "=="
)

// Compare applies the operator to (value, threshold).
func (op GateOperator) Compare(value, threshold float64) bool {
	switch op {
	case OpGTE:
		return value >= threshold
	case OpLTE:
		return value <= threshold
	case OpGT:
		return value > threshold
	case OpLT:
		return value < threshold
	case OpEQ:
		return value == threshold
	default:
		return false
	}
}

// GateResult is the output of a single gate predicate.
type GateResult struct {
	Name      string       `json:"name"`
	Passed    bool         `json:"passed"`
	Value     float64      `json:"value"`
	Threshold float64      `json:"threshold"`
	Operator  GateOperator `json:"operator"`
	Message   string       `json:"message"`
}

// MonteCarloResult is the output of the Monte Carlo engine (C5).
type MonteCarloResult struct {
	Iterations          int                `json:"iterations"`
	ConfidencePct       float64            `json:"confidencePct"`
	RuinProbabilityPct  float64            `json:"ruinProbabilityPct"`
	ExpectedProfit      float64            `json:"expectedProfit"`
	MedianProfit        float64            `json:"medianProfit"`
	WorstCaseP5         float64            `json:"worstCaseP5"`
	BestCaseP95         float64            `json:"bestCaseP95"`
	MaxDrawdownMedian   float64            `json:"maxDrawdownMedian"`
	MaxDrawdownWorstP95 float64            `json:"maxDrawdownWorstP95"`
	Percentiles         map[string]float64 `json:"percentiles"`
	DDPercentiles       map[string]float64 `json:"ddPercentiles"`
}
