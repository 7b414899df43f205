package report

import (
	"math"
	"testing"
	"time"
)

func tm(s string) time.Time {
	t, err := time.Parse("2006.01.02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestExtractTradesFullClose(t *testing.T) {
	deals := []DealRow{
		{Time: tm("2024.01.01 10:00:00"), Deal: 1, Symbol: "EURUSD", Type: "buy", Direction: "in", Volume: 1.0, Price: 1.1000, Commission: -2},
		{Time: tm("2024.01.01 12:00:00"), Deal: 2, Symbol: "EURUSD", Type: "buy", Direction: "out", Volume: 1.0, Price: 1.1050, Commission: -2, Profit: 500},
	}
	trades := ExtractTrades(deals)
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(trades))
	}
	tr := trades[0]
	if math.Abs(tr.GrossProfit-500) > 1e-9 {
		t.Fatalf("GrossProfit = %v, want 500", tr.GrossProfit)
	}
	if math.Abs(tr.NetProfit-(tr.GrossProfit+tr.Commission+tr.Swap)) > 1e-9 {
		t.Fatal("NetProfit does not reconcile")
	}
}

func TestExtractTradesPartialClose(t *testing.T) {
	deals := []DealRow{
		{Time: tm("2024.01.01 10:00:00"), Deal: 1, Symbol: "EURUSD", Type: "buy", Direction: "in", Volume: 2.0, Price: 1.1000, Commission: -4},
		{Time: tm("2024.01.01 11:00:00"), Deal: 2, Symbol: "EURUSD", Type: "buy", Direction: "out", Volume: 0.5, Price: 1.1020, Commission: -1, Profit: 100},
		{Time: tm("2024.01.01 12:00:00"), Deal: 3, Symbol: "EURUSD", Type: "buy", Direction: "out", Volume: 1.5, Price: 1.1050, Commission: -3, Profit: 450},
	}
	trades := ExtractTrades(deals)
	if len(trades) != 2 {
		t.Fatalf("len(trades) = %d, want 2", len(trades))
	}

	totalProfit := 0.0
	totalVolume := 0.0
	for _, tr := range trades {
		totalProfit += tr.GrossProfit
		totalVolume += tr.Volume
		if math.Abs(tr.NetProfit-(tr.GrossProfit+tr.Commission+tr.Swap)) > 1e-9 {
			t.Fatalf("trade %+v does not reconcile net profit", tr)
		}
	}
	if math.Abs(totalProfit-550) > 1e-6 {
		t.Fatalf("total allocated profit = %v, want 550", totalProfit)
	}
	if math.Abs(totalVolume-2.0) > 1e-9 {
		t.Fatalf("total closed volume = %v, want 2.0", totalVolume)
	}
}

func TestExtractTradesFIFOAcrossMultipleLots(t *testing.T) {
	deals := []DealRow{
		{Time: tm("2024.01.01 09:00:00"), Deal: 1, Symbol: "GBPUSD", Type: "sell", Direction: "in", Volume: 1.0, Price: 1.2500, Commission: -2},
		{Time: tm("2024.01.01 10:00:00"), Deal: 2, Symbol: "GBPUSD", Type: "sell", Direction: "in", Volume: 1.0, Price: 1.2480, Commission: -2},
		{Time: tm("2024.01.01 14:00:00"), Deal: 3, Symbol: "GBPUSD", Type: "sell", Direction: "out", Volume: 1.5, Price: 1.2400, Commission: -3, Profit: 600},
	}
	trades := ExtractTrades(deals)
	if len(trades) != 2 {
		t.Fatalf("len(trades) = %d, want 2 (one full close, one partial)", len(trades))
	}
	if math.Abs(trades[0].Volume-1.0) > 1e-9 {
		t.Fatalf("first closed lot volume = %v, want 1.0 (oldest lot fully closed first)", trades[0].Volume)
	}
	if math.Abs(trades[1].Volume-0.5) > 1e-9 {
		t.Fatalf("second closed lot volume = %v, want 0.5 (remainder of second lot)", trades[1].Volume)
	}
}

func TestExtractTradesOppositeSideClose(t *testing.T) {
	// Exports record a closing deal's Type as the closing action itself
	// ("sell" closes a "buy" position), not the original position's side.
	deals := []DealRow{
		{Time: tm("2024.01.01 10:00:00"), Deal: 1, Symbol: "EURUSD", Type: "buy", Direction: "in", Volume: 1.0, Price: 1.1000, Commission: -2},
		{Time: tm("2024.01.01 12:00:00"), Deal: 2, Symbol: "EURUSD", Type: "sell", Direction: "out", Volume: 1.0, Price: 1.1050, Commission: -2, Profit: 500},
	}
	trades := ExtractTrades(deals)
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(trades))
	}
	if math.Abs(trades[0].GrossProfit-500) > 1e-9 {
		t.Fatalf("GrossProfit = %v, want 500", trades[0].GrossProfit)
	}
}

func TestExtractTradesOppositeSideClosePrefersCorrectHedgeBucket(t *testing.T) {
	// Both a buy and a sell position are open on the same symbol; the
	// closing "sell" deal must drain the buy lot, not the sell lot.
	deals := []DealRow{
		{Time: tm("2024.01.01 09:00:00"), Deal: 1, Symbol: "EURUSD", Type: "buy", Direction: "in", Volume: 1.0, Price: 1.1000, Commission: -2},
		{Time: tm("2024.01.01 09:30:00"), Deal: 2, Symbol: "EURUSD", Type: "sell", Direction: "in", Volume: 1.0, Price: 1.1010, Commission: -2},
		{Time: tm("2024.01.01 12:00:00"), Deal: 3, Symbol: "EURUSD", Type: "sell", Direction: "out", Volume: 1.0, Price: 1.1050, Commission: -2, Profit: 500},
	}
	trades := ExtractTrades(deals)
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(trades))
	}
	if trades[0].Side != "buy" {
		t.Fatalf("closed side = %v, want buy (the sell deal must close the opposite-side lot)", trades[0].Side)
	}
	if math.Abs(trades[0].OpenPrice-1.1000) > 1e-9 {
		t.Fatalf("OpenPrice = %v, want 1.1000 (the buy lot, not the sell lot)", trades[0].OpenPrice)
	}
}

func TestExtractTradesStandaloneCloseWithNoOpenLot(t *testing.T) {
	deals := []DealRow{
		{Time: tm("2024.01.01 10:00:00"), Deal: 1, Symbol: "USDJPY", Type: "buy", Direction: "out", Volume: 1.0, Price: 150.00, Commission: -2, Profit: 300},
	}
	trades := ExtractTrades(deals)
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1 standalone trade", len(trades))
	}
	if math.Abs(trades[0].GrossProfit-300) > 1e-9 {
		t.Fatalf("GrossProfit = %v, want 300", trades[0].GrossProfit)
	}
}
