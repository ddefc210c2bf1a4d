package engine

import (
	"sort"

	"github.com/JerryiaL/minisql/pkg/page"
	"github.com/JerryiaL/minisql/pkg/record"
)

// compareFields orders two same-typed fields, returning <0, 0, >0.
// Comparing across types is a caller bug and returns 0.
func compareFields(a, b record.Field) int {
	switch a.Type {
	case record.TypeInt:
		switch {
		case a.I32 < b.I32:
			return -1
		case a.I32 > b.I32:
			return 1
		}
		return 0
	case record.TypeBigInt:
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		}
		return 0
	case record.TypeFloat:
		switch {
		case a.F64 < b.F64:
			return -1
		case a.F64 > b.F64:
			return 1
		}
		return 0
	case record.TypeBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	default: // Varchar, Char
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		}
		return 0
	}
}

// evalComparison applies one Comparison against row, using schema to
// locate the column's position.
func evalComparison(c Comparison, schema record.Schema, row record.Row) bool {
	pos := schema.ColumnIndex(c.Column)
	if pos < 0 || pos >= len(row.Fields) || row.Null[pos] {
		return false
	}
	cmp := compareFields(row.Fields[pos], c.Value)
	switch c.Op {
	case OpEQ:
		return cmp == 0
	case OpNE:
		return cmp != 0
	case OpLT:
		return cmp < 0
	case OpLE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpGE:
		return cmp >= 0
	default:
		return false
	}
}

// evalPredicate recursively evaluates a predicate tree against row.
func evalPredicate(p Predicate, schema record.Schema, row record.Row) bool {
	if p == nil {
		return true
	}
	switch n := p.(type) {
	case Comparison:
		return evalComparison(n, schema, row)
	case And:
		return evalPredicate(n.Left, schema, row) && evalPredicate(n.Right, schema, row)
	case Or:
		return evalPredicate(n.Left, schema, row) || evalPredicate(n.Right, schema, row)
	default:
		return false
	}
}

// ridLess orders row-ids page-id then slot, the lexicographic order
// spec.md §4.9 requires for set intersection/union by sort+merge.
func ridLess(a, b page.RID) bool {
	if a.PageID != b.PageID {
		return a.PageID < b.PageID
	}
	return a.Slot < b.Slot
}

func sortRIDs(rids []page.RID) {
	sort.Slice(rids, func(i, j int) bool { return ridLess(rids[i], rids[j]) })
}

// intersectRIDs merges two already-sorted row-id sets, keeping only
// row-ids present in both.
func intersectRIDs(a, b []page.RID) []page.RID {
	out := make([]page.RID, 0, minInt(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case ridLess(a[i], b[j]):
			i++
		case ridLess(b[j], a[i]):
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// unionRIDs merges two already-sorted row-id sets, deduplicating.
func unionRIDs(a, b []page.RID) []page.RID {
	out := make([]page.RID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case ridLess(a[i], b[j]):
			out = append(out, a[i])
			i++
		case ridLess(b[j], a[i]):
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
