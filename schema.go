package flatsql

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/flatsql/flatsql/flatvalue"
)

// columnDef is one declared column: its name, cell kind, and whether it
// carries a secondary index.
type columnDef struct {
	name    string
	kind    flatvalue.Kind
	indexed bool
}

// tableDef is one declared table: its name, routing file-id, and columns in
// declaration order.
type tableDef struct {
	name    string
	fileID  [4]byte
	columns []columnDef
}

var kindNames = map[string]flatvalue.Kind{
	"BOOL":    flatvalue.KindBool,
	"INT8":    flatvalue.KindInt8,
	"INT16":   flatvalue.KindInt16,
	"INT32":   flatvalue.KindInt32,
	"INT64":   flatvalue.KindInt64,
	"UINT8":   flatvalue.KindUint8,
	"UINT16":  flatvalue.KindUint16,
	"UINT32":  flatvalue.KindUint32,
	"UINT64":  flatvalue.KindUint64,
	"FLOAT32": flatvalue.KindFloat32,
	"FLOAT64": flatvalue.KindFloat64,
	"STRING":  flatvalue.KindString,
	"BYTES":   flatvalue.KindBytes,
}

// parseSchema reads the minimal table-declaration language a Database is
// built from:
//
//	TABLE User FILEID=USER
//	  id INT64 INDEX
//	  name STRING
//	  age INT64 INDEX
//	END
//
// One TABLE/END block per table; FILEID is exactly 4 ASCII bytes, matching
// the file identifier records carry at offset [4..8). Blank lines and lines
// starting with # are ignored. The SQL parser/planner/executor and any
// richer schema IDL (junctions, relationships) stay out of scope; this is
// just enough to declare table shape and routing.
func parseSchema(text string) ([]tableDef, error) {
	var tables []tableDef
	var current *tableDef

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch strings.ToUpper(fields[0]) {
		case "TABLE":
			if current != nil {
				return nil, fmt.Errorf("flatsql: line %d: nested TABLE before END", lineNo)
			}
			if len(fields) < 3 {
				return nil, fmt.Errorf("flatsql: line %d: expected TABLE <name> FILEID=<id>", lineNo)
			}
			fileID, err := parseFileIDArg(fields[2])
			if err != nil {
				return nil, fmt.Errorf("flatsql: line %d: %w", lineNo, err)
			}
			current = &tableDef{name: fields[1], fileID: fileID}

		case "END":
			if current == nil {
				return nil, fmt.Errorf("flatsql: line %d: END without matching TABLE", lineNo)
			}
			tables = append(tables, *current)
			current = nil

		default:
			if current == nil {
				return nil, fmt.Errorf("flatsql: line %d: column declared outside TABLE/END", lineNo)
			}
			if len(fields) < 2 {
				return nil, fmt.Errorf("flatsql: line %d: expected <column> <kind> [INDEX]", lineNo)
			}
			kind, ok := kindNames[strings.ToUpper(fields[1])]
			if !ok {
				return nil, fmt.Errorf("flatsql: line %d: unknown kind %q", lineNo, fields[1])
			}
			indexed := len(fields) >= 3 && strings.EqualFold(fields[2], "INDEX")
			current.columns = append(current.columns, columnDef{
				name:    fields[0],
				kind:    kind,
				indexed: indexed,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("flatsql: scan schema: %w", err)
	}
	if current != nil {
		return nil, fmt.Errorf("flatsql: unterminated TABLE %q", current.name)
	}
	return tables, nil
}

func parseFileIDArg(field string) ([4]byte, error) {
	var id [4]byte
	const prefix = "FILEID="
	if !strings.HasPrefix(strings.ToUpper(field), prefix) {
		return id, fmt.Errorf("expected FILEID=<4 bytes>, got %q", field)
	}
	value := field[len(prefix):]
	if len(value) != 4 {
		return id, fmt.Errorf("FILEID must be exactly 4 bytes, got %q", value)
	}
	copy(id[:], value)
	return id, nil
}
