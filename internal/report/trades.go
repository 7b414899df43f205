package report

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

// DealRow is one row of the simulator's deal stream: every entry, exit,
// or combined entry+exit recorded against a position.
type DealRow struct {
	Time       time.Time
	Deal       int64
	Symbol     string
	Type       string // "buy" or "sell"
	Direction  string // "in", "out", or "inout"
	Volume     float64
	Price      float64
	Commission float64
	Swap       float64
	Profit     float64
	Comment    string
}

// ParseDealsHTML extracts the deal-stream table from a single-run HTML
// report. The header row is the first row whose cells, once normalized,
// include "time", "deal" and "direction"; every following row with a
// numeric Deal column and a parseable Time is a data row. Rows that don't
// parse are skipped until the first deal is found; after that, the table
// ends at the first row that doesn't parse as a deal (a section footer or
// the next table's header).
func ParseDealsHTML(data []byte) []DealRow {
	rows := htmlRows(decodeHTMLBytes(data))

	headerIdx := -1
	var colIndex map[string]int
	for i, row := range rows {
		idx := indexDealColumns(row)
		if idx != nil {
			headerIdx = i
			colIndex = idx
			break
		}
	}
	if headerIdx == -1 {
		return nil
	}

	var deals []DealRow
	for _, row := range rows[headerIdx+1:] {
		deal, ok := parseDealRow(row, colIndex)
		if !ok {
			if len(deals) > 0 {
				break
			}
			continue
		}
		deals = append(deals, deal)
	}

	sort.SliceStable(deals, func(i, j int) bool { return deals[i].Time.Before(deals[j].Time) })
	return deals
}

func indexDealColumns(row []string) map[string]int {
	idx := make(map[string]int, len(row))
	for i, cell := range row {
		idx[normalizeHeader(cell)] = i
	}
	if _, hasTime := idx["time"]; !hasTime {
		return nil
	}
	if _, hasDeal := idx["deal"]; !hasDeal {
		return nil
	}
	if _, hasDir := idx["direction"]; !hasDir {
		return nil
	}
	return idx
}

func parseDealRow(row []string, col map[string]int) (DealRow, bool) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	dealID, err := strconv.ParseInt(strings.TrimSpace(get("deal")), 10, 64)
	if err != nil {
		return DealRow{}, false
	}
	t, ok := ParseDatetime(get("time"))
	if !ok {
		return DealRow{}, false
	}

	volume, _ := ParseNumber(get("volume"))
	price, _ := ParseNumber(get("price"))
	commission, _ := ParseNumber(get("commission"))
	swap, _ := ParseNumber(get("swap"))
	profit, _ := ParseNumber(get("profit"))

	return DealRow{
		Time:       t,
		Deal:       dealID,
		Symbol:     strings.TrimSpace(get("symbol")),
		Type:       strings.ToLower(strings.TrimSpace(get("type"))),
		Direction:  strings.ToLower(strings.TrimSpace(get("direction"))),
		Volume:     volume,
		Price:      price,
		Commission: commission,
		Swap:       swap,
		Profit:     profit,
		Comment:    strings.TrimSpace(get("comment")),
	}, true
}

// openLot is one unclosed (or partially closed) entry deal awaiting a
// matching exit.
type openLot struct {
	volume     float64
	price      float64
	openTime   time.Time
	commission float64
	swap       float64
	side       domain.Side
	symbol     string
}

const volumeEpsilon = 1e-9

// ExtractTrades replays a chronologically ordered deal stream into a
// list of closed trades, accounting for partial closes: an "out" deal
// whose volume is smaller than the open position it closes splits that
// position, allocating its commission/swap/profit proportionally to the
// volume actually closed and leaving the remainder open; an "out" deal
// spanning more than one FIFO-queued entry consumes them in order. An
// "out" deal with no matching open lot (the report's window starts
// mid-position) is recorded as a standalone trade from the deal's own
// figures, ported from modules/trade_extractor.py's accounting rules.
func ExtractTrades(deals []DealRow) []domain.Trade {
	open := make(map[string][]*openLot)
	var trades []domain.Trade
	var ticket int64

	keyFor := func(symbol, typ string) string { return symbol + "|" + typ }

	for _, d := range deals {
		switch d.Direction {
		case "in":
			side := domain.SideBuy
			if d.Type == "sell" {
				side = domain.SideSell
			}
			key := keyFor(d.Symbol, d.Type)
			open[key] = append(open[key], &openLot{
				volume:     d.Volume,
				price:      d.Price,
				openTime:   d.Time,
				commission: d.Commission,
				swap:       d.Swap,
				side:       side,
				symbol:     d.Symbol,
			})
		case "out", "inout":
			key := findOpenKey(open, d.Symbol, d.Type)
			if key == "" {
				ticket++
				trades = append(trades, standaloneTrade(ticket, d))
				continue
			}
			closed, remainingLots := closeFIFO(open[key], d, &ticket)
			trades = append(trades, closed...)
			open[key] = remainingLots
		}
	}
	return trades
}

// oppositeType returns the entry side that must have opened a position
// a deal of the given type is now closing: a "sell" deal closes a "buy"
// position and vice versa.
func oppositeType(typ string) string {
	if typ == "buy" {
		return "sell"
	}
	return "buy"
}

// findOpenKey locates the open-position bucket a closing deal should
// draw from: the closing deal's own Type records the closing action
// (a "sell" deal closes an open "buy"), so the bucket it must draw from
// is keyed by the opposite side, not its own type. Falls back to any
// bucket for the same symbol regardless of side when no opposite-side
// lot is open (the report's window starts mid-position, or the export
// doesn't carry clean side information).
func findOpenKey(open map[string][]*openLot, symbol, typ string) string {
	opposite := symbol + "|" + oppositeType(typ)
	if lots, ok := open[opposite]; ok && len(lots) > 0 {
		return opposite
	}
	prefix := symbol + "|"
	for key, lots := range open {
		if strings.HasPrefix(key, prefix) && len(lots) > 0 {
			return key
		}
	}
	return ""
}

// closeFIFO consumes open lots oldest-first to satisfy a closing deal's
// volume, proportionally allocating the deal's own commission/swap/
// profit across every lot it touches (by each lot's share of the deal's
// total volume), and proportionally carrying forward a lot's own entry
// commission/swap when only part of it is closed.
func closeFIFO(lots []*openLot, d DealRow, ticket *int64) ([]domain.Trade, []*openLot) {
	var closed []domain.Trade
	remaining := d.Volume

	for len(lots) > 0 && remaining > volumeEpsilon {
		lot := lots[0]
		closedVolume := lot.volume
		if closedVolume > remaining {
			closedVolume = remaining
		}
		dealShare := 0.0
		if d.Volume > volumeEpsilon {
			dealShare = closedVolume / d.Volume
		}
		lotShare := 0.0
		if lot.volume > volumeEpsilon {
			lotShare = closedVolume / lot.volume
		}

		allocCommission := d.Commission*dealShare + lot.commission*lotShare
		allocSwap := d.Swap*dealShare + lot.swap*lotShare
		allocProfit := d.Profit * dealShare

		*ticket++
		closed = append(closed, domain.NewTrade(
			*ticket, lot.symbol, lot.side, closedVolume,
			lot.openTime, d.Time, lot.price, d.Price,
			allocCommission, allocSwap, allocProfit,
		))

		lot.volume -= closedVolume
		lot.commission -= lot.commission * lotShare
		lot.swap -= lot.swap * lotShare
		remaining -= closedVolume

		if lot.volume <= volumeEpsilon {
			lots = lots[1:]
		}
	}

	return closed, lots
}

// standaloneTrade builds a trade directly from a closing deal that has
// no matching open lot (the report's window starts mid-position), using
// the deal's own profit/commission/swap in full.
func standaloneTrade(ticket int64, d DealRow) domain.Trade {
	side := domain.SideBuy
	if d.Type == "sell" {
		side = domain.SideSell
	}
	return domain.NewTrade(
		ticket, d.Symbol, side, d.Volume,
		d.Time, d.Time, d.Price, d.Price,
		d.Commission, d.Swap, d.Profit,
	)
}
