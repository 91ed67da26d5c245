// Package flatvtab implements the virtual-table bridge: the seam between
// the host SQL engine (modernc.org/sqlite, driven through its vtab
// extension point) and a TableStore. Every declared table is exposed as one
// virtual table backed by the flatsql module registered once per Database.
package flatvtab

import (
	"fmt"
	"strings"

	"modernc.org/sqlite/vtab"

	"github.com/flatsql/flatsql/flattable"
)

const (
	hiddenSource = "_source"
	hiddenRowid  = "_rowid"
	hiddenOffset = "_offset"
	hiddenData   = "_data"
)

var hiddenColumns = []string{hiddenSource, hiddenRowid, hiddenOffset, hiddenData}

func isHidden(name string) bool {
	for _, h := range hiddenColumns {
		if h == name {
			return true
		}
	}
	return false
}

type tableDef struct {
	name    string
	store   *flattable.TableStore
	columns []string
}

// Module implements vtab.Module. One Module instance backs every
// CREATE VIRTUAL TABLE "<name>" USING "<module>"() statement for a Database,
// where <module> is the name the Database registered it under; Declare must
// be called once per table before any such statement runs.
type Module struct {
	tables map[string]*tableDef
}

// NewModule creates an empty Module.
func NewModule() *Module {
	return &Module{tables: map[string]*tableDef{}}
}

// Declare registers tableName's owning store and its ordered, declared
// column names (hidden columns are appended automatically at schema time).
func (m *Module) Declare(tableName string, store *flattable.TableStore, columns []string) {
	m.tables[tableName] = &tableDef{name: tableName, store: store, columns: columns}
}

func (m *Module) resolve(args []string) (*tableDef, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("flatvtab: expected module/db/table arguments, got %d", len(args))
	}
	tableName := args[2]
	def, ok := m.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("flatvtab: table %q not declared", tableName)
	}
	return def, nil
}

func schemaFor(def *tableDef) string {
	parts := make([]string, 0, len(def.columns)+len(hiddenColumns))
	for _, c := range def.columns {
		parts = append(parts, fmt.Sprintf("%q", c))
	}
	for _, h := range hiddenColumns {
		parts = append(parts, fmt.Sprintf("%q HIDDEN", h))
	}
	return "CREATE TABLE x(" + strings.Join(parts, ", ") + ")"
}

// Create implements vtab.Module.Create.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

// Connect implements vtab.Module.Connect.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	def, err := m.resolve(args)
	if err != nil {
		return nil, err
	}
	if err := ctx.Declare(schemaFor(def)); err != nil {
		return nil, fmt.Errorf("flatvtab: declare schema for %s: %w", args[2], err)
	}
	return &Table{def: def}, nil
}
