package flatvtab

import (
	"fmt"
	"strings"

	"modernc.org/sqlite/vtab"
)

// Table implements vtab.Table for one declared TableStore.
type Table struct {
	def *tableDef
}

// columnName resolves a SQLite column index (declared columns, then the
// four hidden columns, in the order schemaFor emits them) to its name.
func (t *Table) columnName(i int) (string, bool) {
	if i < 0 {
		return "", false
	}
	if i < len(t.def.columns) {
		return t.def.columns[i], true
	}
	hi := i - len(t.def.columns)
	if hi < len(hiddenColumns) {
		return hiddenColumns[hi], true
	}
	return "", false
}

// columnCandidate tracks, per indexed column, which usable constraints were
// seen during BestIndex so the preference order (equality > closed range >
// half-open range > scan) can be applied.
type columnCandidate struct {
	eqConstraint int // index into IndexInfo.Constraints, or -1
	geConstraint int
	geOp         vtab.ConstraintOp
	leConstraint int
	leOp         vtab.ConstraintOp
}

func opCode(op vtab.ConstraintOp) string {
	switch op {
	case vtab.OpGE:
		return "ge"
	case vtab.OpGT:
		return "gt"
	case vtab.OpLE:
		return "le"
	case vtab.OpLT:
		return "lt"
	}
	return ""
}

// BestIndex implements vtab.Table.BestIndex. It applies the preference
// order from the bridge contract: an equality constraint on an indexed
// column beats a closed (>=,<=) range, which beats a single half-open
// bound, which beats a full scan. Usable equality constraints on
// non-indexed columns are pushed down for residual evaluation via
// connor.Match against the materialized row, saving the host engine a
// recheck; constraints on indexed columns other than the chosen one are
// left for the host engine to check.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	byColumn := map[string]*columnCandidate{}
	var residualEq []int

	for i, c := range info.Constraints {
		if !c.Usable {
			continue
		}
		name, ok := t.columnName(c.Column)
		if !ok || isHidden(name) {
			continue
		}

		_, indexed := t.def.store.IndexKind(name)
		if !indexed {
			if c.Op == vtab.OpEQ {
				residualEq = append(residualEq, i)
			}
			continue
		}

		cand := byColumn[name]
		if cand == nil {
			cand = &columnCandidate{eqConstraint: -1, geConstraint: -1, leConstraint: -1}
			byColumn[name] = cand
		}
		switch c.Op {
		case vtab.OpEQ:
			cand.eqConstraint = i
		case vtab.OpGE, vtab.OpGT:
			cand.geConstraint = i
			cand.geOp = c.Op
		case vtab.OpLE, vtab.OpLT:
			cand.leConstraint = i
			cand.leOp = c.Op
		}
	}

	chosenColumn, chosen := pickCandidate(t.def.columns, byColumn)

	nextArg := 0
	assign := func(constraintIdx int) int {
		info.Constraints[constraintIdx].ArgIndex = nextArg
		info.Constraints[constraintIdx].Omit = true
		nextArg++
		return nextArg - 1
	}

	var plan string
	switch {
	case chosen == nil:
		plan = "scan"
		info.EstimatedCost = 1_000_000
		info.EstimatedRows = 1_000_000
	case chosen.eqConstraint >= 0:
		assign(chosen.eqConstraint)
		plan = "eq:" + chosenColumn
		info.IdxFlags = vtab.IndexScanUnique
		info.EstimatedCost = 2
		info.EstimatedRows = 1
	case chosen.geConstraint >= 0 && chosen.leConstraint >= 0:
		assign(chosen.geConstraint)
		assign(chosen.leConstraint)
		plan = fmt.Sprintf("range:%s:%s:%s", opCode(chosen.geOp), opCode(chosen.leOp), chosenColumn)
		info.EstimatedCost = 10
	case chosen.geConstraint >= 0:
		assign(chosen.geConstraint)
		plan = fmt.Sprintf("%s:%s", opCode(chosen.geOp), chosenColumn)
		info.EstimatedCost = 100
	default:
		assign(chosen.leConstraint)
		plan = fmt.Sprintf("%s:%s", opCode(chosen.leOp), chosenColumn)
		info.EstimatedCost = 100
	}

	var residualNames []string
	for _, ci := range residualEq {
		name, _ := t.columnName(info.Constraints[ci].Column)
		assign(ci)
		residualNames = append(residualNames, name)
	}

	if len(residualNames) > 0 {
		info.IdxStr = plan + "|" + strings.Join(residualNames, ",")
	} else {
		info.IdxStr = plan
	}
	return nil
}

// pickCandidate applies the preference order across every indexed column
// that has at least one usable constraint, breaking ties by declared
// column order for determinism.
func pickCandidate(columns []string, byColumn map[string]*columnCandidate) (string, *columnCandidate) {
	for _, name := range columns {
		if cand := byColumn[name]; cand != nil && cand.eqConstraint >= 0 {
			return name, cand
		}
	}
	for _, name := range columns {
		if cand := byColumn[name]; cand != nil && cand.geConstraint >= 0 && cand.leConstraint >= 0 {
			return name, cand
		}
	}
	for _, name := range columns {
		if cand := byColumn[name]; cand != nil && (cand.geConstraint >= 0 || cand.leConstraint >= 0) {
			return name, cand
		}
	}
	return "", nil
}

// Open implements vtab.Table.Open.
func (t *Table) Open() (vtab.Cursor, error) {
	return &Cursor{table: t}, nil
}

// Disconnect implements vtab.Table.Disconnect.
func (t *Table) Disconnect() error { return nil }

// Destroy implements vtab.Table.Destroy.
func (t *Table) Destroy() error { return nil }
