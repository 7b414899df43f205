// Package extractor reads the declared `input`/`sinput` lines out of an
// EA's MQL5 source, the way modules/params.py does for the pipeline's
// extract-params stage.
package extractor

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/eastress/robustness-pipeline/internal/domain"
)

// mql5Types maps declared MQL5 types to their normalized domain type.
// Anything not listed here defaults to TypeString, except all-caps /
// ENUM_-prefixed declared types, which are always TypeEnum.
var mql5Types = map[string]domain.NormalizedType{
	"int":                domain.TypeInt,
	"uint":               domain.TypeInt,
	"long":               domain.TypeInt,
	"ulong":              domain.TypeInt,
	"short":              domain.TypeInt,
	"ushort":             domain.TypeInt,
	"char":               domain.TypeInt,
	"uchar":              domain.TypeInt,
	"double":             domain.TypeDouble,
	"float":              domain.TypeDouble,
	"bool":               domain.TypeBool,
	"string":             domain.TypeString,
	"datetime":           domain.TypeDatetime,
	"color":              domain.TypeColor,
	"enum_timeframes":    domain.TypeEnum,
	"enum_applied_price": domain.TypeEnum,
	"enum_ma_method":     domain.TypeEnum,
	"enum_order_type":    domain.TypeEnum,
	"enum_position_type": domain.TypeEnum,
}

var inputLineRe = regexp.MustCompile(
	`^\s*(sinput|input)\s+` + // input or sinput keyword
		`([\w\s]+?)\s+` + // declared type
		`(\w+)\s*` + // parameter name
		`(?:=\s*([^;/]+?))?` + // optional default value
		`\s*;`, // semicolon
)

func normalizeType(declared string) domain.NormalizedType {
	lower := strings.ToLower(declared)
	if t, ok := mql5Types[lower]; ok {
		return t
	}
	if strings.HasPrefix(declared, "ENUM_") || declared == strings.ToUpper(declared) {
		return domain.TypeEnum
	}
	return domain.TypeString
}

// ExtractParams reads eaPath and returns every declared input parameter,
// in source order, with name/type/optimizability resolved per
// domain.NewParameter's rule.
func ExtractParams(eaPath string) ([]domain.Parameter, error) {
	raw, err := os.ReadFile(eaPath)
	if err != nil {
		return nil, fmt.Errorf("extractor: read EA file: %w", err)
	}

	var params []domain.Parameter
	for lineNum, line := range strings.Split(string(raw), "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "//") || strings.HasPrefix(stripped, "/*") {
			continue
		}

		m := inputLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		keyword := m[1]
		declaredType := strings.TrimSpace(m[2])
		name := strings.TrimSpace(m[3])
		defaultValue := strings.TrimSpace(m[4])

		isStatic := keyword == "sinput"
		params = append(params, domain.NewParameter(
			name, declaredType, normalizeType(declaredType), defaultValue, lineNum+1, isStatic,
		))
	}

	return params, nil
}

// Optimizable filters params to those the extractor marked optimizable.
func Optimizable(params []domain.Parameter) []domain.Parameter {
	out := make([]domain.Parameter, 0, len(params))
	for _, p := range params {
		if p.Optimizable {
			out = append(out, p)
		}
	}
	return out
}
