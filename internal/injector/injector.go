// Package injector mechanically inserts OnTester scoring and trade-safety
// guard code into an EA's source, writing a modified copy and leaving the
// original untouched.
package injector

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const onTesterCodeTemplate = `
//+------------------------------------------------------------------+
//| OnTester - Injected by EA Stress Test System                     |
//| Criterion: Profit x R^2 x sqrt(trades/100) x DD_factor            |
//+------------------------------------------------------------------+
double OnTester()
{
    double profit = TesterStatistics(STAT_PROFIT);
    double trades = TesterStatistics(STAT_TRADES);
    double maxDD = TesterStatistics(STAT_EQUITY_DDREL_PERCENT);
    double profitFactor = TesterStatistics(STAT_PROFIT_FACTOR);

    if(trades < {{MIN_TRADES}}) return -1000;
    if(profit <= 0) return -500;

    double ddFactor = 1.0 / (1.0 + maxDD / 50.0);

    if(!HistorySelect(0, TimeCurrent()))
        return profit * ddFactor * MathSqrt(trades / 100.0);

    int totalDeals = HistoryDealsTotal();
    if(totalDeals < 10)
        return profit * ddFactor * MathSqrt(trades / 100.0);

    double equity[];
    ArrayResize(equity, 0);
    double cumProfit = 0;

    for(int i = 0; i < totalDeals; i++)
    {
        ulong ticket = HistoryDealGetTicket(i);
        if(ticket == 0) continue;

        long dealType = HistoryDealGetInteger(ticket, DEAL_TYPE);
        if(dealType == DEAL_TYPE_BUY || dealType == DEAL_TYPE_SELL)
        {
            double dealProfit = HistoryDealGetDouble(ticket, DEAL_PROFIT);
            double dealSwap = HistoryDealGetDouble(ticket, DEAL_SWAP);
            double dealComm = HistoryDealGetDouble(ticket, DEAL_COMMISSION);
            cumProfit += dealProfit + dealSwap + dealComm;

            int size = ArraySize(equity);
            ArrayResize(equity, size + 1);
            equity[size] = cumProfit;
        }
    }

    int n = ArraySize(equity);
    if(n < 10)
        return profit * ddFactor * MathSqrt(trades / 100.0);

    double sumX = 0, sumY = 0, sumXY = 0, sumX2 = 0;
    for(int i = 0; i < n; i++)
    {
        double x = (double)i;
        double y = equity[i];
        sumX += x;
        sumY += y;
        sumXY += x * y;
        sumX2 += x * x;
    }

    double nD = (double)n;
    double denom = nD * sumX2 - sumX * sumX;
    if(MathAbs(denom) < 1e-10)
        return profit * ddFactor * MathSqrt(trades / 100.0);

    double slope = (nD * sumXY - sumX * sumY) / denom;
    double intercept = (sumY - slope * sumX) / nD;
    double meanY = sumY / nD;

    double ssTotal = 0, ssResidual = 0;
    for(int i = 0; i < n; i++)
    {
        double y = equity[i];
        double yPred = slope * (double)i + intercept;
        ssTotal += (y - meanY) * (y - meanY);
        ssResidual += (y - yPred) * (y - yPred);
    }

    double rSquared = 1.0;
    if(ssTotal > 1e-10)
        rSquared = 1.0 - (ssResidual / ssTotal);
    if(rSquared < 0) rSquared = 0;
    if(rSquared > 1) rSquared = 1;

    double score = profit * rSquared * MathSqrt(trades / 100.0) * ddFactor;

    if(profitFactor > 1.5)
        score *= (1.0 + (profitFactor - 1.5) * 0.03);

    return score;
}
`

const safetyGuards = `
//+------------------------------------------------------------------+
//| Safety Guards - Injected by EA Stress Test System                |
//+------------------------------------------------------------------+
#define STRESS_TEST_MODE true

#ifdef STRESS_TEST_MODE
    #define FileOpen(a,b,c) INVALID_HANDLE
    #define FileWrite(a,b) 0
    #define FileDelete(a) false
    #define WebRequest(a,b,c,d,e,f,g) false
    #define DLLCall(a,b) 0
#endif
`

const tradeSafetyGuards = `
//+------------------------------------------------------------------+
//| Trade Safety - Injected by EA Stress Test System                 |
//+------------------------------------------------------------------+
#ifdef STRESS_TEST_MODE

input double EAStressSafety_MaxSpreadPips = 3.0;     // Max allowed spread (pips)
input double EAStressSafety_MaxSlippagePips = 3.0;   // Max allowed slippage (pips)

double EAStressSafety_PipSize()
{
    if(_Digits == 3 || _Digits == 5) return _Point * 10.0;
    return _Point;
}

bool EAStressSafety_IsSpreadOk()
{
    if(EAStressSafety_MaxSpreadPips <= 0) return true;

    long spreadPoints = 0;
    if(!SymbolInfoInteger(_Symbol, SYMBOL_SPREAD, spreadPoints)) return true;

    double maxSpreadPoints = (EAStressSafety_MaxSpreadPips * EAStressSafety_PipSize()) / _Point;
    if(maxSpreadPoints <= 0) return true;

    return (double)spreadPoints <= maxSpreadPoints;
}

int EAStressSafety_MaxDeviationPoints()
{
    if(EAStressSafety_MaxSlippagePips <= 0) return 0;
    double points = (EAStressSafety_MaxSlippagePips * EAStressSafety_PipSize()) / _Point;
    if(points < 0) return 0;
    return (int)MathRound(points);
}

bool EAStressSafety_OrderSend(const MqlTradeRequest &request, MqlTradeResult &result)
{
    if(!EAStressSafety_IsSpreadOk())
    {
        result.retcode = 0;
        result.comment = "EAStressSafety: Spread too high";
        return false;
    }

    MqlTradeRequest req = request;

    int maxDev = EAStressSafety_MaxDeviationPoints();
    if(maxDev > 0)
    {
        if((int)req.deviation <= 0 || (int)req.deviation > maxDev)
            req.deviation = maxDev;
    }

    return OrderSend(req, result);
}

bool EAStressSafety_OrderSendAsync(const MqlTradeRequest &request, MqlTradeResult &result)
{
    if(!EAStressSafety_IsSpreadOk())
    {
        result.retcode = 0;
        result.comment = "EAStressSafety: Spread too high";
        return false;
    }

    MqlTradeRequest req = request;

    int maxDev = EAStressSafety_MaxDeviationPoints();
    if(maxDev > 0)
    {
        if((int)req.deviation <= 0 || (int)req.deviation > maxDev)
            req.deviation = maxDev;
    }

    return OrderSendAsync(req, result);
}

#define OrderSend EAStressSafety_OrderSend
#define OrderSendAsync EAStressSafety_OrderSendAsync

#endif
`

var (
	onTesterRe = regexp.MustCompile(`(?m)^\s*(double|int|void)\s+OnTester\s*\(\s*\)`)
	directiveRe = regexp.MustCompile(`(?m)^#\w+.*$`)
	headerLineRe = regexp.MustCompile(`^//\+-+\+$`)
)

// HasOnTester reports whether the EA already defines OnTester.
func HasOnTester(content string) bool {
	return onTesterRe.MatchString(content)
}

// HasSafetyGuards reports whether the EA already carries the injected
// STRESS_TEST_MODE guard block.
func HasSafetyGuards(content string) bool {
	return strings.Contains(content, "STRESS_TEST_MODE")
}

// HasTradeSafetyGuards reports whether the reserved safety inputs are
// already present.
func HasTradeSafetyGuards(content string) bool {
	return strings.Contains(content, "EAStressSafety_MaxSpreadPips")
}

func onTesterCode(minTrades int) string {
	return strings.ReplaceAll(onTesterCodeTemplate, "{{MIN_TRADES}}", strconv.Itoa(minTrades))
}

// InjectOnTester inserts the scoring function after the EA's last
// preprocessor directive, or after its header comment block when no
// directive exists. A no-op (injected=false) when OnTester is already
// present.
func InjectOnTester(content string, minTrades int) (string, bool) {
	if HasOnTester(content) {
		return content, false
	}

	injectionPoint := 0
	prefix := "\n"
	if loc := lastMatchEnd(directiveRe, content); loc > 0 {
		injectionPoint = loc
		prefix = "\n\n"
	} else if strings.HasPrefix(strings.TrimSpace(content), "//+") {
		injectionPoint = headerBlockEnd(content)
	}

	modified := content[:injectionPoint] + prefix + onTesterCode(minTrades) + "\n" + content[injectionPoint:]
	return modified, true
}

func lastMatchEnd(re *regexp.Regexp, content string) int {
	matches := re.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return 0
	}
	return matches[len(matches)-1][1]
}

// headerBlockEnd finds the byte offset just past the EA's leading
// //+---+ boxed comment block, or 0 if none is found.
func headerBlockEnd(content string) int {
	lines := strings.Split(content, "\n")
	offset := 0
	for i, line := range lines {
		lineLen := len(line) + 1
		if i > 0 && headerLineRe.MatchString(strings.TrimSpace(line)) {
			return offset + lineLen
		}
		offset += lineLen
	}
	return 0
}

// InjectSafety inserts the STRESS_TEST_MODE guard block and the reserved
// trade-safety inputs, each only if not already present. Existing files
// injected by an older run are upgraded in place: the trade-safety block
// is added even when the base guard block is already there.
func InjectSafety(content string) (string, bool) {
	injected := false
	commentEnd := 0
	if strings.HasPrefix(strings.TrimSpace(content), "//+") {
		commentEnd = headerBlockEnd(content)
	}

	if !HasSafetyGuards(content) {
		content = content[:commentEnd] + "\n" + safetyGuards + "\n" + content[commentEnd:]
		injected = true
	}

	if !HasTradeSafetyGuards(content) {
		marker := "//| Safety Guards - Injected by EA Stress Test System"
		if idx := strings.Index(content, marker); idx != -1 {
			endIdx := strings.Index(content[idx:], "#endif")
			if endIdx != -1 {
				endIdx = idx + endIdx
				if nl := strings.Index(content[endIdx:], "\n"); nl != -1 {
					insertAt := endIdx + nl + 1
					content = content[:insertAt] + tradeSafetyGuards + "\n" + content[insertAt:]
				} else {
					content += "\n" + tradeSafetyGuards + "\n"
				}
			} else {
				content += "\n" + tradeSafetyGuards + "\n"
			}
		} else {
			content = content[:commentEnd] + "\n" + tradeSafetyGuards + "\n" + content[commentEnd:]
		}
		injected = true
	}

	return content, injected
}

// Result is the outcome of CreateModifiedEA.
type Result struct {
	Success          bool
	OriginalPath     string
	ModifiedPath     string
	OnTesterInjected bool
	SafetyInjected   bool
	Errors           []string
}

// DefaultSuffix is the filename suffix applied to a modified EA copy.
const DefaultSuffix = "_stress_test"

// CreateModifiedEA writes a modified copy of eaPath with OnTester and/or
// safety guards injected, leaving the original source untouched.
func CreateModifiedEA(eaPath, outputDir string, injectTester, injectGuards bool, suffix string, minTrades int) Result {
	if _, err := os.Stat(eaPath); err != nil {
		return Result{Success: false, OriginalPath: eaPath, Errors: []string{fmt.Sprintf("EA file not found: %s", eaPath)}}
	}

	raw, err := os.ReadFile(eaPath)
	if err != nil {
		return Result{Success: false, OriginalPath: eaPath, Errors: []string{fmt.Sprintf("failed to read EA: %v", err)}}
	}
	content := string(raw)

	var onTesterInjected, safetyInjected bool
	if injectTester {
		content, onTesterInjected = InjectOnTester(content, minTrades)
	}
	if injectGuards {
		content, safetyInjected = InjectSafety(content)
	}

	stem := strings.TrimSuffix(filepath.Base(eaPath), filepath.Ext(eaPath))
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(eaPath)
	}
	outputPath := filepath.Join(dir, stem+suffix+".mq5")

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{Success: false, OriginalPath: eaPath, OnTesterInjected: onTesterInjected, SafetyInjected: safetyInjected,
			Errors: []string{fmt.Sprintf("failed to create output dir: %v", err)}}
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return Result{Success: false, OriginalPath: eaPath, OnTesterInjected: onTesterInjected, SafetyInjected: safetyInjected,
			Errors: []string{fmt.Sprintf("failed to write modified EA: %v", err)}}
	}

	return Result{
		Success:          true,
		OriginalPath:     eaPath,
		ModifiedPath:     outputPath,
		OnTesterInjected: onTesterInjected,
		SafetyInjected:   safetyInjected,
	}
}

// RestoreOriginal removes a previously generated modified EA (and its
// compiled .ex5 sibling, if present).
func RestoreOriginal(modifiedPath string) (bool, error) {
	stem := strings.TrimSuffix(filepath.Base(modifiedPath), filepath.Ext(modifiedPath))
	if !strings.Contains(stem, "_stress_test") {
		return false, nil
	}
	if _, err := os.Stat(modifiedPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := os.Remove(modifiedPath); err != nil {
		return false, err
	}
	ex5 := strings.TrimSuffix(modifiedPath, filepath.Ext(modifiedPath)) + ".ex5"
	if _, err := os.Stat(ex5); err == nil {
		_ = os.Remove(ex5)
	}
	return true, nil
}
