package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// Validate checks a result set's shape against the parsed format hint.
// It never fails; every outcome is a tagged result.
//
// Scalar hints require exactly one row with at least one numeric cell.
// Object hints require exactly one row mappable to the declared fields
// by name or position. List hints require every row to be mappable, and
// an empty row set is itself a shape mismatch, flagged Empty so the
// repair controller can widen filters instead of regenerating.
func Validate(rs *domain.ResultSet, hint domain.FormatHint) domain.ValidationResult {
	if hint.Kind == "" {
		// Unrecognized hint: any well-formed result set passes.
		return domain.ValidationResult{Status: domain.ValidationValid}
	}

	switch hint.Kind {
	case domain.HintInt, domain.HintFloat:
		return validateScalar(rs, hint)
	case domain.HintObject:
		return validateObject(rs, hint)
	case domain.HintList:
		return validateList(rs, hint)
	}
	return domain.ValidationResult{Status: domain.ValidationValid}
}

func validateScalar(rs *domain.ResultSet, hint domain.FormatHint) domain.ValidationResult {
	if len(rs.Rows) == 0 {
		return mismatch(hint, "0 rows", true)
	}
	if len(rs.Rows) != 1 {
		return mismatch(hint, describeShape(rs), false)
	}
	for _, col := range rs.Columns {
		if _, ok := toFloat(rs.Rows[0][col]); ok {
			return domain.ValidationResult{Status: domain.ValidationValid}
		}
	}
	return mismatch(hint, "1 row without numeric cells", false)
}

func validateObject(rs *domain.ResultSet, hint domain.FormatHint) domain.ValidationResult {
	if len(rs.Rows) == 0 {
		return mismatch(hint, "0 rows", true)
	}
	if len(rs.Rows) != 1 {
		return mismatch(hint, describeShape(rs), false)
	}
	if !mappable(rs, hint.Fields) {
		return mismatch(hint, describeShape(rs), false)
	}
	return domain.ValidationResult{Status: domain.ValidationValid}
}

func validateList(rs *domain.ResultSet, hint domain.FormatHint) domain.ValidationResult {
	if len(rs.Rows) == 0 {
		// Evidence absence, not a type mismatch: the remedy is widening
		// the query, not reshaping the result.
		return mismatch(hint, "0 rows", true)
	}
	if !mappable(rs, hint.Fields) {
		return mismatch(hint, describeShape(rs), false)
	}
	return domain.ValidationResult{Status: domain.ValidationValid}
}

// mappable reports whether the declared fields can all be resolved from
// the result columns by name or by position.
func mappable(rs *domain.ResultSet, fields []domain.Field) bool {
	for i, f := range fields {
		if _, ok := findColumn(rs.Columns, f.Name, i); !ok {
			return false
		}
	}
	return true
}

// findColumn resolves a declared field to a result column: exact name
// match (case-insensitive) first, then position.
func findColumn(columns []string, name string, pos int) (string, bool) {
	for _, c := range columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	if pos < len(columns) {
		return columns[pos], true
	}
	return "", false
}

func mismatch(hint domain.FormatHint, actual string, empty bool) domain.ValidationResult {
	return domain.ValidationResult{
		Status:   domain.ValidationShapeMismatch,
		Expected: hint.Raw,
		Actual:   actual,
		Empty:    empty,
		Cause:    domain.ErrShapeMismatch.Message,
	}
}

func describeShape(rs *domain.ResultSet) string {
	return fmt.Sprintf("%d rows, columns [%s]", len(rs.Rows), strings.Join(rs.Columns, " "))
}

// toFloat coerces a cell value to float64 when possible.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
