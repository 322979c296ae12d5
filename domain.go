package fsdb

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Op is a domain filter comparison operator.
type Op string

const (
	OpEq    Op = "="
	OpNe    Op = "!="
	OpIn    Op = "in"
	OpNotIn Op = "not in"
	OpGt    Op = ">"
	OpGe    Op = ">="
	OpLt    Op = "<"
	OpLe    Op = "<="
)

// Filter is a single (field, op, value) triple in a search domain.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Domain is a polish-notation boolean expression over field filters: a
// sequence mixing operator tokens ("&", "|") and Filter triples (or their
// legacy []any{field, op, value} wire form, which is still accepted).
// Adjacent filters with no operator between them are implicitly joined by
// "&".
type Domain []any

// normalizeElement converts a raw domain element (string operator, Filter,
// or legacy []any triple) into its canonical form: string or Filter.
func normalizeElement(domain any, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case Filter:
		return v, nil
	case []any:
		if len(v) != 3 {
			return nil, newDomainError(domain, "filter must have exactly 3 elements")
		}
		field, ok := v[0].(string)
		if !ok {
			return nil, newDomainError(domain, "filter field must be a string")
		}
		op, ok := v[1].(string)
		if !ok {
			return nil, newDomainError(domain, "filter operator must be a string")
		}
		return Filter{Field: field, Op: Op(op), Value: v[2]}, nil
	default:
		return nil, newDomainError(domain, "domain element must be an operator string or a (field, op, value) filter")
	}
}

func validOp(op Op) bool {
	switch op {
	case OpEq, OpNe, OpIn, OpNotIn, OpGt, OpGe, OpLt, OpLe:
		return true
	default:
		return false
	}
}

// ValidateDomain checks that domain is well-formed: every element is an
// operator or a filter over a known field, in/not in filters carry a list
// value, and the "fake-evaluated" sequence (every filter replaced by true)
// reduces to a single boolean.
func ValidateDomain(domain Domain, validFields map[string]bool) error {
	if domain == nil {
		return nil
	}
	fake := make([]any, 0, len(domain))
	for _, raw := range domain {
		elem, err := normalizeElement(domain, raw)
		if err != nil {
			return err
		}
		switch v := elem.(type) {
		case string:
			if v != "&" && v != "|" {
				return newDomainError(domain, "unknown operator \""+v+"\"")
			}
			fake = append(fake, v)
		case Filter:
			if !validFields[v.Field] {
				return newDomainError(domain, "unknown field \""+v.Field+"\"")
			}
			if !validOp(v.Op) {
				return newDomainError(domain, "unknown comparison operator \""+string(v.Op)+"\"")
			}
			if v.Op == OpIn || v.Op == OpNotIn {
				if _, ok := v.Value.([]any); !ok {
					return newDomainError(domain, "\"in\"/\"not in\" value must be a list")
				}
			}
			fake = append(fake, true)
		}
	}

	if _, err := reduceProcessed(fake); err != nil {
		return newDomainError(domain, "domain does not reduce to a single boolean")
	}
	return nil
}

// EvaluateDomain resolves every filter in domain via resolve and reduces
// the resulting sequence of booleans per the polish-notation rewrite rules.
// An empty domain evaluates to true.
func EvaluateDomain(domain Domain, resolve func(Filter) (bool, error)) (bool, error) {
	if len(domain) == 0 {
		return true, nil
	}

	processed := make([]any, 0, len(domain))
	for _, raw := range domain {
		elem, err := normalizeElement(domain, raw)
		if err != nil {
			return false, err
		}
		switch v := elem.(type) {
		case string:
			processed = append(processed, v)
		case Filter:
			ok, err := resolve(v)
			if err != nil {
				return false, err
			}
			processed = append(processed, ok)
		}
	}

	return reduceProcessed(processed)
}

// reduceProcessed reduces a sequence mixing bool results and "&"/"|"
// operator tokens to a single boolean, per spec.md §4.2:
//  1. two leading booleans -> their conjunction
//  2. three consecutive booleans -> keep the first, conjoin the second and third
//  3. op, bool, bool -> fold with the operator's semantics
//
// The first applicable rewrite is applied repeatedly until none applies;
// every rewrite shrinks the sequence length (by one for rules 1 and 2, by two
// for rule 3), so this terminates.
func reduceProcessed(seq []any) (bool, error) {
	work := append([]any(nil), seq...)
	if len(work) == 0 {
		return true, nil
	}

	for {
		if applyLeadingBooleans(&work) {
			continue
		}
		if applyThreeBooleans(&work) {
			continue
		}
		applied, err := applyOpBoolBool(&work)
		if err != nil {
			return false, err
		}
		if applied {
			continue
		}
		break
	}

	if len(work) != 1 {
		return false, newDomainError(seq, "domain did not reduce to a single result")
	}
	b, ok := work[0].(bool)
	if !ok {
		return false, newDomainError(seq, "domain did not reduce to a boolean")
	}
	return b, nil
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func applyLeadingBooleans(seq *[]any) bool {
	s := *seq
	if len(s) < 2 {
		return false
	}
	b0, ok0 := asBool(s[0])
	b1, ok1 := asBool(s[1])
	if !ok0 || !ok1 {
		return false
	}
	s[0] = b0 && b1
	*seq = append(s[:1], s[2:]...)
	return true
}

func applyThreeBooleans(seq *[]any) bool {
	s := *seq
	for i := 0; i+2 < len(s); i++ {
		b1, ok1 := asBool(s[i])
		b2, ok2 := asBool(s[i+1])
		b3, ok3 := asBool(s[i+2])
		if ok1 && ok2 && ok3 {
			s[i+1] = b2 && b3
			*seq = append(s[:i+2], s[i+3:]...)
			return true
		}
	}
	return false
}

func applyOpBoolBool(seq *[]any) (bool, error) {
	s := *seq
	for i := 0; i+2 < len(s); i++ {
		op, okOp := s[i].(string)
		b2, ok2 := asBool(s[i+1])
		b3, ok3 := asBool(s[i+2])
		if okOp && ok2 && ok3 {
			var result bool
			switch op {
			case "&":
				result = b2 && b3
			case "|":
				result = b2 || b3
			default:
				return false, newDomainError(s, "unknown operator \""+op+"\"")
			}
			s[i] = result
			*seq = append(s[:i+1], s[i+3:]...)
			return true, nil
		}
	}
	return false, nil
}

// ApplyOp evaluates a single comparison between a record's field value and
// the domain filter's value.
func ApplyOp(op Op, fieldValue, domainValue any) (bool, error) {
	switch op {
	case OpEq:
		return valuesEqual(fieldValue, domainValue), nil
	case OpNe:
		return !valuesEqual(fieldValue, domainValue), nil
	case OpIn:
		return containsValue(domainValue, fieldValue)
	case OpNotIn:
		ok, err := containsValue(domainValue, fieldValue)
		return !ok, err
	case OpGt, OpGe, OpLt, OpLe:
		return compareOrdered(op, fieldValue, domainValue)
	default:
		return false, newDomainError(nil, "unsupported operator \""+string(op)+"\"")
	}
}

// valuesEqual compares a record's field value against a domain literal.
// A record's int field always reads back as int64 (field.go's Read), but a
// domain literal may arrive as a Go int, or as float64 (the shape both
// encoding/json and the CLI's JSON-decoded domain produce) - reflect.DeepEqual
// treats those as unequal even when they represent the same number. Numeric
// operands are compared by value via orderedAsFloat first; everything else
// falls back to DeepEqual.
func valuesEqual(a, b any) bool {
	af, aOk := orderedAsFloat(a)
	bf, bOk := orderedAsFloat(b)
	if aOk && bOk {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func containsValue(list any, value any) (bool, error) {
	items, ok := list.([]any)
	if !ok {
		return false, newDomainError(nil, "\"in\"/\"not in\" value must be a list")
	}
	for _, item := range items {
		if valuesEqual(item, value) {
			return true, nil
		}
	}
	return false, nil
}

// compareOrdered implements >, >=, <, <= across the value kinds that carry a
// natural order: bool (false < true, matching Python's bool-as-int), int64,
// float64, string, and time.Time. Other kinds (list, dict, file references)
// have no natural order and return a Generic error.
func compareOrdered(op Op, a, b any) (bool, error) {
	af, aOk := orderedAsFloat(a)
	bf, bOk := orderedAsFloat(b)
	if aOk && bOk {
		return compareFloats(op, af, bf), nil
	}

	as, aOk := a.(string)
	bs, bOk := b.(string)
	if aOk && bOk {
		return compareStrings(op, as, bs), nil
	}

	at, aOk := a.(time.Time)
	bt, bOk := b.(time.Time)
	if aOk && bOk {
		return compareTimes(op, at, bt), nil
	}

	return false, fmt.Errorf("fsdb: values of type %T and %T have no natural order", a, b)
}

func orderedAsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func compareFloats(op Op, a, b float64) bool {
	switch op {
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	}
	return false
}

func compareStrings(op Op, a, b string) bool {
	switch op {
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	}
	return false
}

func compareTimes(op Op, a, b time.Time) bool {
	switch op {
	case OpGt:
		return a.After(b)
	case OpGe:
		return a.After(b) || a.Equal(b)
	case OpLt:
		return a.Before(b)
	case OpLe:
		return a.Before(b) || a.Equal(b)
	}
	return false
}

// valueLess reports whether a sorts before b, for the same value kinds
// compareOrdered accepts. Used for record ordering (Table.SearchRecords)
// and id sorting (Table.LoadRecordIDs).
func valueLess(a, b any) (bool, error) {
	return compareOrdered(OpLt, a, b)
}

// OrderClause is one parsed clause of a search order specification.
type OrderClause struct {
	Field string
	Desc  bool
}

// ParseOrder validates and parses a comma-separated order specification of
// the form "field [asc|desc], field [asc|desc], ...".
func ParseOrder(order string) ([]OrderClause, error) {
	var clauses []OrderClause
	for _, part := range strings.Split(order, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, orderf("empty order clause")
		}
		tokens := strings.Split(part, " ")
		if len(tokens) != 2 {
			return nil, orderf("order clause %q must have exactly two space-separated tokens", part)
		}
		dir := strings.ToLower(tokens[1])
		if dir != "asc" && dir != "desc" {
			return nil, orderf("order direction %q must be \"asc\" or \"desc\"", tokens[1])
		}
		clauses = append(clauses, OrderClause{Field: tokens[0], Desc: dir == "desc"})
	}
	return clauses, nil
}
