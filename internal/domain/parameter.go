// Package domain holds the immutable value types shared by every stage of
// the robustness pipeline: parameters, optimization ranges, metrics,
// gate results, trades, scenarios, and workflow state.
package domain

// NormalizedType is the canonical type a declared EA input is reduced to.
type NormalizedType string

const (
	TypeInt      NormalizedType = "int"
	TypeDouble   NormalizedType = "double"
	TypeBool     NormalizedType = "bool"
	TypeString   NormalizedType = "string"
	TypeEnum     NormalizedType = "enum"
	TypeDatetime NormalizedType = "datetime"
	TypeColor    NormalizedType = "color"
)

// reservedSafetyPrefixes lists the input-name prefixes an extractor must
// never mark optimizable, regardless of declared type. Safety inputs are
// injected by this system (see internal/injector) and must stay fixed.
var reservedSafetyPrefixes = []string{"EAStressSafety_"}

// Parameter is a single declared EA input, as found by the extractor stage.
type Parameter struct {
	Name           string         `json:"name"`
	DeclaredType   string         `json:"declaredType"`
	NormalizedType NormalizedType `json:"normalizedType"`
	Default        string         `json:"default,omitempty"`
	Line            int           `json:"line"`
	Optimizable    bool           `json:"optimizable"`
}

// IsReservedSafetyInput reports whether name falls in the injector's
// reserved namespace and must never be optimizable.
func IsReservedSafetyInput(name string) bool {
	for _, prefix := range reservedSafetyPrefixes {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// NewParameter builds a Parameter, applying the optimizable rule:
// true only for int/double declared as non-static inputs, and never for
// names in the reserved safety-prefix namespace.
func NewParameter(name, declaredType string, normalized NormalizedType, def string, line int, isStatic bool) Parameter {
	optimizable := (normalized == TypeInt || normalized == TypeDouble) &&
		!isStatic && !IsReservedSafetyInput(name)
	return Parameter{
		Name:           name,
		DeclaredType:   declaredType,
		NormalizedType: normalized,
		Default:        def,
		Line:           line,
		Optimizable:    optimizable,
	}
}

// OptimizationRange describes how a single parameter is swept (or held
// fixed) during an optimization run.
type OptimizationRange struct {
	Name        string   `json:"name"`
	Start       float64  `json:"start"`
	Stop        float64  `json:"stop"`
	Step        float64  `json:"step,omitempty"`
	Optimize    bool     `json:"optimize"`
	FixedValue  *float64 `json:"fixedValue,omitempty"`
	SkipReason  string   `json:"skipReason,omitempty"`
	Category    string   `json:"category,omitempty"`
	Rationale   string   `json:"rationale,omitempty"`
}

// Validate enforces the OptimizationRange invariants from the data model:
// when Optimize is true and bounds are numeric, Start <= Stop and Step > 0;
// when Optimize is false and Start != Stop, a FixedValue must be supplied.
func (r OptimizationRange) Validate() error {
	if r.Optimize {
		if r.Start > r.Stop {
			return &ValidationError{Field: r.Name, Reason: "start must be <= stop when optimizing"}
		}
		if r.Step <= 0 {
			return &ValidationError{Field: r.Name, Reason: "step must be > 0 when optimizing"}
		}
		return nil
	}
	if r.Start != r.Stop && r.FixedValue == nil {
		return &ValidationError{Field: r.Name, Reason: "fixed_value required when start != stop and optimize=false"}
	}
	return nil
}

// ValidationError reports a single field-level validation failure, used for
// OptimizationRange and for external resume payloads.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
