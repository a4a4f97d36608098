package chart

import (
	"math"

	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// defaultGroupColumn holds the group key when a trace declares no group column
const defaultGroupColumn = "group"

// allGroup is the single implicit group used without a group column
const allGroup = "all"

// Compare evaluates cell op lit. Ordering operators compare numerically and
// are false when either side has no numeric reading; == and != use loose
// equality so "5" equals 5. Unknown operators keep the row.
func Compare(cell table.Value, op Op, lit table.Value) bool {
	switch op {
	case OpGT, OpLT, OpGE, OpLE:
		n, ok1 := cell.Float()
		v, ok2 := lit.Float()
		if !ok1 || !ok2 {
			return false
		}
		switch op {
		case OpGT:
			return n > v
		case OpLT:
			return n < v
		case OpGE:
			return n >= v
		default:
			return n <= v
		}
	case OpEQ:
		return looseEqual(cell, lit)
	case OpNE:
		return !looseEqual(cell, lit)
	default:
		return true
	}
}

func looseEqual(a, b table.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.Kind == table.KindString && b.Kind == table.KindString {
		return a.Str == b.Str
	}
	if a.Kind == table.KindNumber || b.Kind == table.KindNumber {
		x, ok1 := a.Float()
		y, ok2 := b.Float()
		return ok1 && ok2 && x == y
	}
	// date against date or text
	return a.Text() == b.Text()
}

// ApplyFilters keeps the rows passing every global filter, in order
func ApplyFilters(rows []table.Row, filters []GlobalFilter) []table.Row {
	out := rows
	for _, f := range filters {
		if f.Field == "" || f.Op == "" || f.Value == nil {
			continue
		}
		out = filterRows(out, f.Field, f.Op, *f.Value)
	}
	return out
}

// ApplyTransforms runs the trace's transforms in declaration order. The input
// slice is never modified.
func ApplyTransforms(rows []table.Row, spec TraceSpec) []table.Row {
	out := rows
	for _, tx := range spec.Transforms {
		switch tx.Type {
		case TransformFilter:
			for _, f := range tx.Filters {
				if f.Target == "" || f.Operation == "" || f.Value == nil {
					continue
				}
				out = filterRows(out, f.Target, f.Operation, *f.Value)
			}
		case TransformAggregate:
			if tx.Aggregations != nil {
				out = aggregate(out, spec.Groups, tx.Aggregations)
			}
		}
	}
	return out
}

func filterRows(rows []table.Row, column string, op Op, lit table.Value) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		if Compare(r[column], op, lit) {
			out = append(out, r)
		}
	}
	return out
}

// aggregate groups rows by groupCol (or one implicit group) and emits one row
// per group, in first-appearance order.
func aggregate(rows []table.Row, groupCol string, aggs []Aggregation) []table.Row {
	var order []string
	groups := make(map[string][]table.Row)
	for _, r := range rows {
		key := allGroup
		if groupCol != "" {
			key = r[groupCol].Text()
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	keyCol := groupCol
	if keyCol == "" {
		keyCol = defaultGroupColumn
	}

	out := make([]table.Row, 0, len(order))
	for _, key := range order {
		row := table.Row{keyCol: table.String(key)}
		for _, agg := range aggs {
			if agg.Target == "" || agg.Func == "" {
				continue
			}
			if agg.Enabled != nil && !*agg.Enabled {
				continue
			}
			row[agg.Target] = table.Number(Reduce(agg.Func, numericValues(groups[key], agg.Target)))
		}
		out = append(out, row)
	}
	return out
}

func numericValues(rows []table.Row, column string) []float64 {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		if f, ok := r[column].Float(); ok {
			vals = append(vals, f)
		}
	}
	return vals
}

// Reduce applies fn to vals. An empty set reduces to 0 and an unknown
// reducer takes the first value.
func Reduce(fn Reducer, vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}

	switch fn {
	case ReduceSum:
		return sum(vals)
	case ReduceAvg:
		return sum(vals) / float64(len(vals))
	case ReduceMin:
		m := math.Inf(1)
		for _, v := range vals {
			m = math.Min(m, v)
		}
		return m
	case ReduceMax:
		m := math.Inf(-1)
		for _, v := range vals {
			m = math.Max(m, v)
		}
		return m
	default:
		return vals[0]
	}
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}
