package widgets

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/go-go-golems/scout/pkg/llm"
	"github.com/go-go-golems/scout/pkg/turns"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

const TypeCalculation = "calculation_result"

type CalculationParams struct {
	Expression string `json:"expression,omitempty" jsonschema:"description=Arithmetic expression to evaluate, e.g. 250 * 0.12 or sqrt(2) ^ 3"`
}

type CalculationResult struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
	Formatted  string  `json:"formatted"`
}

type CalculationWidget struct{}

var _ Widget = CalculationWidget{}

func (CalculationWidget) Type() string {
	return TypeCalculation
}

func (CalculationWidget) Description() string {
	return "Evaluates arithmetic: percentages, unit-free math, powers and roots. Params: the expression in plain arithmetic syntax."
}

func (CalculationWidget) Schema() *jsonschema.Schema {
	return llm.ReflectSchema(CalculationParams{})
}

func (CalculationWidget) ShouldExecute(c turns.Classification) bool {
	return selected(TypeCalculation, c)
}

func (CalculationWidget) Execute(ctx context.Context, in Input) (*Output, error) {
	params, ok, err := resolveParams(ctx, in, TypeCalculation,
		"Translate the requested calculation into an arithmetic expression using + - * / % ^ and functions such as sqrt, log, sin.",
		func(p CalculationParams) bool { return strings.TrimSpace(p.Expression) != "" })
	if err != nil || !ok {
		return nil, err
	}
	res, err := Evaluate(params.Expression)
	if err != nil {
		return nil, err
	}
	return &Output{
		Type: TypeCalculation,
		Data: res,
		LLMContext: fmt.Sprintf("The calculation widget evaluated %s = %s. This result is already shown to the user.",
			res.Expression, res.Formatted),
	}, nil
}

var percentOf = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s*of\s+`)

var mathEnv = map[string]any{
	"sqrt":  math.Sqrt,
	"pow":   math.Pow,
	"exp":   math.Exp,
	"log":   math.Log,
	"ln":    math.Log,
	"log10": math.Log10,
	"log2":  math.Log2,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"pi":    math.Pi,
	"e":     math.E,
}

// Evaluate computes a numeric expression. "N% of" is rewritten to a product.
func Evaluate(expression string) (CalculationResult, error) {
	src := strings.TrimSpace(expression)
	if src == "" {
		return CalculationResult{}, errors.New("empty expression")
	}
	src = percentOf.ReplaceAllString(src, "($1 / 100) * ")
	src = strings.ReplaceAll(src, "×", "*")
	src = strings.ReplaceAll(src, "÷", "/")

	program, err := expr.Compile(src, expr.Env(mathEnv))
	if err != nil {
		return CalculationResult{}, errors.Wrapf(err, "compile %q", expression)
	}
	out, err := expr.Run(program, mathEnv)
	if err != nil {
		return CalculationResult{}, errors.Wrapf(err, "evaluate %q", expression)
	}
	v, err := toFloat(out)
	if err != nil {
		return CalculationResult{}, errors.Wrapf(err, "evaluate %q", expression)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return CalculationResult{}, errors.Errorf("%q is not a finite number", expression)
	}
	// drop binary floating point noise such as 30.000000000000004
	v = math.Round(v*1e10) / 1e10
	return CalculationResult{
		Expression: expression,
		Result:     v,
		Formatted:  strconv.FormatFloat(v, 'f', -1, 64),
	}, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, errors.Errorf("result %v is not a number", v)
	}
}
