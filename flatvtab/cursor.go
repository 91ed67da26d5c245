package flatvtab

import (
	"fmt"
	"strings"

	"github.com/SierraSoftworks/connor"

	"modernc.org/sqlite/vtab"

	"github.com/flatsql/flatsql/flatindex"
	"github.com/flatsql/flatsql/flatvalue"
)

// rowRef is the per-row identity a Cursor walks: enough to materialize any
// column (real or hidden) lazily via the owning TableStore.
type rowRef struct {
	offset   uint64
	length   uint32
	sequence uint64
}

func entriesToRows(entries []flatindex.Entry) []rowRef {
	rows := make([]rowRef, len(entries))
	for i, e := range entries {
		rows[i] = rowRef{offset: e.DataOffset, length: e.DataLength, sequence: e.Sequence}
	}
	return rows
}

// Cursor implements vtab.Cursor. It either walks entries an Index chose
// (point/range) or a full scan of the table's file-id bucket, materializing
// columns lazily via the extractor.
type Cursor struct {
	table *Table
	rows  []rowRef
	pos   int
}

// Filter implements vtab.Cursor.Filter. idxStr encodes the plan BestIndex
// chose, in the form built by table.go: "<plan>" or "<plan>|<residual
// columns>", where plan is "scan", "eq:<col>", "range:<geop>:<leop>:<col>",
// or "<geop|leop>:<col>".
func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	plan := idxStr
	var residualCols []string
	if i := strings.IndexByte(idxStr, '|'); i >= 0 {
		plan = idxStr[:i]
		if rest := idxStr[i+1:]; rest != "" {
			residualCols = strings.Split(rest, ",")
		}
	}

	rows, consumed, err := c.executePlan(plan, vals)
	if err != nil {
		return err
	}

	if len(residualCols) > 0 {
		rows, err = c.applyResidual(rows, residualCols, vals[consumed:])
		if err != nil {
			return err
		}
	}

	c.rows = rows
	c.pos = 0
	return nil
}

func (c *Cursor) executePlan(plan string, vals []vtab.Value) ([]rowRef, int, error) {
	store := c.table.def.store

	if plan == "scan" {
		refs := store.ScanRefs()
		rows := make([]rowRef, len(refs))
		for i, r := range refs {
			rows[i] = rowRef{offset: r.Offset, length: r.Length, sequence: r.Sequence}
		}
		return rows, 0, nil
	}

	parts := strings.Split(plan, ":")

	switch parts[0] {
	case "eq":
		column := strings.Join(parts[1:], ":")
		kind, _ := store.IndexKind(column)
		key := flatvalue.FromDriverValue(vals[0], kind)
		entries, err := store.FindRawByIndex(column, key)
		if err != nil {
			return nil, 0, fmt.Errorf("flatvtab: eq %s: %w", column, err)
		}
		return entriesToRows(entries), 1, nil

	case "range":
		geOp, leOp, column := parts[1], parts[2], strings.Join(parts[3:], ":")
		kind, _ := store.IndexKind(column)
		min := flatvalue.FromDriverValue(vals[0], kind)
		max := flatvalue.FromDriverValue(vals[1], kind)
		entries, err := store.RangeByIndex(column, min, max)
		if err != nil {
			return nil, 0, fmt.Errorf("flatvtab: range %s: %w", column, err)
		}
		entries = excludeStrict(entries, geOp, min)
		entries = excludeStrict(entries, leOp, max)
		return entriesToRows(entries), 2, nil

	case "ge", "gt":
		column := strings.Join(parts[1:], ":")
		kind, _ := store.IndexKind(column)
		min := flatvalue.FromDriverValue(vals[0], kind)
		entries, err := store.RangeFromByIndex(column, min)
		if err != nil {
			return nil, 0, fmt.Errorf("flatvtab: %s %s: %w", parts[0], column, err)
		}
		entries = excludeStrict(entries, parts[0], min)
		return entriesToRows(entries), 1, nil

	case "le", "lt":
		column := strings.Join(parts[1:], ":")
		kind, _ := store.IndexKind(column)
		max := flatvalue.FromDriverValue(vals[0], kind)
		entries, err := store.RangeToByIndex(column, max)
		if err != nil {
			return nil, 0, fmt.Errorf("flatvtab: %s %s: %w", parts[0], column, err)
		}
		entries = excludeStrict(entries, parts[0], max)
		return entriesToRows(entries), 1, nil

	default:
		return nil, 0, fmt.Errorf("flatvtab: unrecognized plan %q", plan)
	}
}

// excludeStrict drops entries exactly equal to bound when op is a strict
// comparison ("gt" or "lt"); RangeSearch/RangeFrom/RangeTo are all
// inclusive, so strictness is enforced here as a post-filter.
func excludeStrict(entries []flatindex.Entry, op string, bound flatvalue.Value) []flatindex.Entry {
	if op != "gt" && op != "lt" {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if flatvalue.Compare(e.Key, bound) == 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (c *Cursor) applyResidual(rows []rowRef, columns []string, vals []vtab.Value) ([]rowRef, error) {
	filter := map[string]interface{}{}
	for i, col := range columns {
		filter[col] = vals[i]
	}

	out := rows[:0]
	for _, r := range rows {
		data := map[string]interface{}{}
		for _, col := range columns {
			value := c.table.def.store.MaterializeColumn(r.offset, r.length, col)
			data[col] = flatvalue.ToDriverValue(value)
		}
		match, err := connor.Match(filter, data)
		if err != nil {
			return nil, fmt.Errorf("flatvtab: residual match: %w", err)
		}
		if match {
			out = append(out, r)
		}
	}
	return out, nil
}

// Next implements vtab.Cursor.Next.
func (c *Cursor) Next() error {
	c.pos++
	return nil
}

// Eof implements vtab.Cursor.Eof.
func (c *Cursor) Eof() bool {
	return c.pos >= len(c.rows)
}

// Column implements vtab.Cursor.Column. Hidden columns resolve directly
// from the row's identity; real columns go through the extractor.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	row := c.rows[c.pos]
	name, ok := c.table.columnName(col)
	if !ok {
		return nil, fmt.Errorf("flatvtab: column index %d out of range", col)
	}

	switch name {
	case hiddenSource:
		return c.table.def.name, nil
	case hiddenRowid:
		return int64(row.sequence), nil
	case hiddenOffset:
		return int64(row.offset), nil
	case hiddenData:
		return c.table.def.store.ReadAtOffset(row.offset, row.length), nil
	default:
		value := c.table.def.store.MaterializeColumn(row.offset, row.length, name)
		return flatvalue.ToDriverValue(value), nil
	}
}

// Rowid implements vtab.Cursor.Rowid: the sequence number is the row's
// stable identity.
func (c *Cursor) Rowid() (int64, error) {
	return int64(c.rows[c.pos].sequence), nil
}

// Close implements vtab.Cursor.Close.
func (c *Cursor) Close() error {
	c.rows = nil
	return nil
}
