package domain

import "time"

// Side is the direction of a position.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is a single closed (or partially closed) position recovered from
// the simulator's deal stream, with NetProfit = GrossProfit + Commission
// + Swap enforced at construction time (spec invariant, §8).
type Trade struct {
	Ticket      int64     `json:"ticket"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Volume      float64   `json:"volume"`
	OpenTime    time.Time `json:"openTime"`
	CloseTime   time.Time `json:"closeTime"`
	OpenPrice   float64   `json:"openPrice"`
	ClosePrice  float64   `json:"closePrice"`
	Commission  float64   `json:"commission"`
	Swap        float64   `json:"swap"`
	GrossProfit float64   `json:"grossProfit"`
	NetProfit   float64   `json:"netProfit"`
}

// NewTrade constructs a Trade and computes NetProfit from its components,
// so every Trade ever produced satisfies the reconciliation invariant.
func NewTrade(ticket int64, symbol string, side Side, volume float64, openTime, closeTime time.Time, openPrice, closePrice, commission, swap, grossProfit float64) Trade {
	return Trade{
		Ticket:      ticket,
		Symbol:      symbol,
		Side:        side,
		Volume:      volume,
		OpenTime:    openTime,
		CloseTime:   closeTime,
		OpenPrice:   openPrice,
		ClosePrice:  closePrice,
		Commission:  commission,
		Swap:        swap,
		GrossProfit: grossProfit,
		NetProfit:   grossProfit + commission + swap,
	}
}

// ScenarioVariant distinguishes a scenario computed by the simulator from
// one derived post-hoc by applying cost overlays to an existing scenario's
// trade list.
type ScenarioVariant string

const (
	VariantBase    ScenarioVariant = "base"
	VariantOverlay ScenarioVariant = "overlay"
)

// ScenarioWindow is the time range (and bookkeeping identity) a scenario
// replays over.
type ScenarioWindow struct {
	From  string `json:"from"`
	To    string `json:"to"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ScenarioSettings carries the simulator-facing execution parameters for a
// scenario: the data model, latency, and any fixed spread.
type ScenarioSettings struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Model        string `json:"model"`
	LatencyMs    int    `json:"latencyMs"`
	SpreadPoints int    `json:"spreadPoints"`
}

// OverlaySettings carries the post-hoc cost parameters for an overlay
// scenario (spec §4.4).
type OverlaySettings struct {
	SpreadPips   float64 `json:"spreadPips"`
	SlippagePips float64 `json:"slippagePips"`
	Sides        int     `json:"sides"`
}

// Scenario is one entry of the deterministic stress-test suite (C6).
type Scenario struct {
	ID              string            `json:"id"`
	Label           string            `json:"label"`
	PeriodID        string            `json:"periodId"`
	Variant         ScenarioVariant   `json:"variant"`
	Window          ScenarioWindow    `json:"window"`
	Settings        ScenarioSettings  `json:"settings"`
	Tags            []string          `json:"tags,omitempty"`
	OverlaySettings *OverlaySettings  `json:"overlaySettings,omitempty"`
	BaseScenarioID  string            `json:"baseScenarioId,omitempty"`
}
