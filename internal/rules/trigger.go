package rules

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lukewarren/ledgerflow/internal/model"
)

// Evaluator evaluates triggers and trigger groups against transactions.
// It caches compiled regex patterns across evaluations, which matters
// when the same rule set runs over tens of thousands of transactions.
//
// Evaluation never fails: malformed comparison values make the trigger
// evaluate to false rather than erroring, so bad rule data degrades
// instead of crashing a bulk run.
type Evaluator struct {
	regexCache map[string]*regexp.Regexp
}

// NewEvaluator creates a new trigger evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		regexCache: make(map[string]*regexp.Regexp),
	}
}

// EvaluateTrigger evaluates a single leaf condition against a
// transaction. The negation flag inverts the result after operator
// evaluation, independent of the operator.
func (e *Evaluator) EvaluateTrigger(t model.Trigger, txn *model.Transaction) bool {
	value := ExtractField(t.Field, txn)

	var result bool
	switch value.Kind {
	case ValueText:
		result = e.evalText(t.Operator, value.Text, t.Value)
	case ValueAmount:
		result = evalAmount(t.Operator, value.Amount, t.Value)
	case ValueDate:
		result = evalDate(t.Operator, value.Date, t.Value)
	case ValueType:
		result = evalType(t.Operator, value.Type, t.Value)
	}

	if t.Negate {
		return !result
	}
	return result
}

// evalText applies string operators case-insensitively. Numeric and
// range operators are not defined for text fields and evaluate false.
func (e *Evaluator) evalText(op model.TriggerOperator, field, cmp string) bool {
	fieldLower := strings.ToLower(field)
	cmpLower := strings.ToLower(cmp)

	switch op {
	case model.OpContains:
		return cmpLower != "" && strings.Contains(fieldLower, cmpLower)
	case model.OpEquals:
		return fieldLower == cmpLower
	case model.OpStartsWith:
		return cmpLower != "" && strings.HasPrefix(fieldLower, cmpLower)
	case model.OpEndsWith:
		return cmpLower != "" && strings.HasSuffix(fieldLower, cmpLower)
	case model.OpMatchesRegex:
		return e.matchRegex(cmp, field)
	case model.OpOneOf:
		for _, candidate := range splitList(cmp) {
			if strings.EqualFold(candidate, field) {
				return true
			}
		}
		return false
	case model.OpIsEmpty:
		return strings.TrimSpace(field) == ""
	case model.OpIsNotEmpty:
		return strings.TrimSpace(field) != ""
	default:
		return false
	}
}

// evalAmount compares decimals exactly. Comparisons against a
// non-negative trigger value use the transaction amount's magnitude,
// so "amount greater than 1000" matches a -1500.00 expense the way
// users expect; a signed trigger value compares against the signed
// amount.
func evalAmount(op model.TriggerOperator, field decimal.Decimal, cmp string) bool {
	switch op {
	case model.OpIsEmpty:
		return field.IsZero()
	case model.OpIsNotEmpty:
		return !field.IsZero()
	case model.OpBetween:
		low, high, ok := parseBetweenDecimals(cmp)
		if !ok {
			return false
		}
		actual := field
		if low.Sign() >= 0 && high.Sign() >= 0 {
			actual = field.Abs()
		}
		return actual.Cmp(low) >= 0 && actual.Cmp(high) <= 0
	case model.OpOneOf:
		for _, candidate := range splitList(cmp) {
			if value, err := decimal.NewFromString(candidate); err == nil {
				if amountForComparison(field, value).Equal(value) {
					return true
				}
			}
		}
		return false
	}

	value, err := decimal.NewFromString(strings.TrimSpace(cmp))
	if err != nil {
		return false
	}
	actual := amountForComparison(field, value)

	switch op {
	case model.OpEquals:
		return actual.Equal(value)
	case model.OpGreaterThan:
		return actual.Cmp(value) > 0
	case model.OpGreaterOrEqual:
		return actual.Cmp(value) >= 0
	case model.OpLessThan:
		return actual.Cmp(value) < 0
	case model.OpLessOrEqual:
		return actual.Cmp(value) <= 0
	default:
		return false
	}
}

func amountForComparison(field, cmp decimal.Decimal) decimal.Decimal {
	if cmp.Sign() >= 0 {
		return field.Abs()
	}
	return field
}

// evalDate compares at day granularity.
func evalDate(op model.TriggerOperator, field time.Time, cmp string) bool {
	switch op {
	case model.OpIsEmpty:
		return field.IsZero()
	case model.OpIsNotEmpty:
		return !field.IsZero()
	case model.OpBetween:
		parts := strings.SplitN(cmp, model.BetweenSeparator, 2)
		if len(parts) != 2 {
			return false
		}
		low, okLow := parseDate(parts[0])
		high, okHigh := parseDate(parts[1])
		if !okLow || !okHigh {
			return false
		}
		return !field.Before(low) && !field.After(high)
	}

	value, ok := parseDate(cmp)
	if !ok {
		return false
	}

	switch op {
	case model.OpEquals:
		return field.Equal(value)
	case model.OpGreaterThan:
		return field.After(value)
	case model.OpGreaterOrEqual:
		return !field.Before(value)
	case model.OpLessThan:
		return field.Before(value)
	case model.OpLessOrEqual:
		return !field.After(value)
	default:
		return false
	}
}

// evalType compares transaction types, accepting banking synonyms in
// the comparison value ("withdrawal" for expense, "deposit" for income).
func evalType(op model.TriggerOperator, field model.TransactionType, cmp string) bool {
	switch op {
	case model.OpEquals:
		return matchesType(field, cmp)
	case model.OpOneOf:
		for _, candidate := range splitList(cmp) {
			if matchesType(field, candidate) {
				return true
			}
		}
		return false
	case model.OpIsEmpty:
		return field == "" || field == model.TypeUnknown
	case model.OpIsNotEmpty:
		return field != "" && field != model.TypeUnknown
	default:
		return false
	}
}

func matchesType(field model.TransactionType, cmp string) bool {
	parsed := model.ParseTransactionType(cmp)
	if parsed == model.TypeUnknown {
		// Only an explicit "unknown" matches unknown-type transactions;
		// garbage comparison values match nothing.
		return strings.EqualFold(strings.TrimSpace(cmp), string(model.TypeUnknown)) &&
			field == model.TypeUnknown
	}
	return field == parsed
}

// matchRegex compiles the pattern case-insensitively, caching the
// result. Invalid patterns evaluate false.
func (e *Evaluator) matchRegex(pattern, text string) bool {
	re, ok := e.regexCache[pattern]
	if !ok {
		compiled, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			e.regexCache[pattern] = nil
			return false
		}
		re = compiled
		e.regexCache[pattern] = re
	}
	if re == nil {
		return false
	}
	return re.MatchString(text)
}

func parseBetweenDecimals(cmp string) (low, high decimal.Decimal, ok bool) {
	parts := strings.SplitN(cmp, model.BetweenSeparator, 2)
	if len(parts) != 2 {
		return decimal.Zero, decimal.Zero, false
	}
	low, errLow := decimal.NewFromString(strings.TrimSpace(parts[0]))
	high, errHigh := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if errLow != nil || errHigh != nil {
		return decimal.Zero, decimal.Zero, false
	}
	return low, high, true
}

// parseDate accepts the day format rule editors produce, with RFC3339
// as a fallback for values that carry time.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), true
	}
	return time.Time{}, false
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
