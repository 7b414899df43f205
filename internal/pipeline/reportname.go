package pipeline

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/eastress/robustness-pipeline/internal/stage"
)

var nonTokenRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)
var runRe = regexp.MustCompile(`_+`)

func sanitize(value string, maxLen int) string {
	value = strings.TrimSpace(value)
	value = nonTokenRe.ReplaceAllString(value, "_")
	value = runRe.ReplaceAllString(value, "_")
	value = strings.Trim(value, "_")
	if value == "" {
		value = "run"
	}
	if len(value) > maxLen {
		value = value[:maxLen]
	}
	return value
}

// reportName derives a deterministic, collision-resistant simulator
// report name from (workflow id, stage, symbol, timeframe): every
// simulator call a stage makes for the same workflow and step always
// asks for the same report file, so a crashed-and-resumed run's partial
// output is never mistaken for a different call's (spec §4.6). The
// stage name and workflow id are independently truncated; the hash of
// their untruncated concatenation absorbs any collision that truncation
// would otherwise introduce, the same pattern internal/stress uses for
// scenario report names.
func reportName(workflowID string, name stage.Name, symbol, timeframe string) string {
	wfShort := sanitize(workflowID, 16)
	stepShort := sanitize(string(name), 20)
	sum := sha1.Sum([]byte(workflowID + ":" + string(name) + ":" + symbol + ":" + timeframe))
	digest := hex.EncodeToString(sum[:])[:8]
	return sanitize(fmt.Sprintf("%s_%s_%s", wfShort, stepShort, digest), 60)
}
