// Command flatsql is a one-shot CLI over a flatsql.Database: load a schema,
// optionally replay an exported log, ingest stdin, run a query, optionally
// export and print stats.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fulldump/goconfig"
	"github.com/go-json-experiment/json"
	"github.com/go-pkgz/lgr"

	"github.com/flatsql/flatsql"
)

// Config is the CLI's flag/env surface, read with goconfig.
type Config struct {
	Schema string `usage:"path to the schema file (required)"`
	Map    string `usage:"comma-separated FILEID=TABLE mappings, e.g. USER=User,POST=Post"`
	Query  string `usage:"SQL to run against the ingested data"`
	Load   string `usage:"path to a previously exported log to replay before ingest"`
	Export string `usage:"path to write the log's export blob to after ingest"`
	Stats  bool   `usage:"print per-table record/index stats to stderr"`
}

const stdinChunkSize = 64 * 1024

func main() {
	os.Exit(run())
}

func run() int {
	c := Config{}
	goconfig.Read(&c)

	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	lgr.Setup(logOpts...)

	if c.Schema == "" {
		lgr.Printf("[ERROR] --schema is required")
		return 1
	}

	schemaBytes, err := os.ReadFile(c.Schema)
	if err != nil {
		lgr.Printf("[ERROR] read schema: %s", err)
		return 1
	}

	db, err := flatsql.FromSchema(string(schemaBytes), c.Schema)
	if err != nil {
		lgr.Printf("[ERROR] build database: %s", err)
		return 1
	}
	defer db.Close()

	if err := applyMappings(db, c.Map); err != nil {
		lgr.Printf("[ERROR] %s", err)
		return 1
	}

	if c.Load != "" {
		blob, err := os.ReadFile(c.Load)
		if err != nil {
			lgr.Printf("[ERROR] read --load file: %s", err)
			return 1
		}
		if err := db.LoadAndRebuild(blob); err != nil {
			lgr.Printf("[ERROR] load and rebuild: %s", err)
			return 1
		}
		lgr.Printf("[INFO] replayed %d bytes from %s", len(blob), c.Load)
	}

	if err := ingestStdin(db); err != nil {
		lgr.Printf("[ERROR] ingest stdin: %s", err)
		return 1
	}

	if c.Query != "" {
		if err := runQuery(db, c.Query); err != nil {
			lgr.Printf("[ERROR] query: %s", err)
			return 1
		}
	}

	if c.Export != "" {
		blob := db.ExportData()
		if err := os.WriteFile(c.Export, blob, 0644); err != nil {
			lgr.Printf("[ERROR] write --export file: %s", err)
			return 1
		}
		lgr.Printf("[INFO] exported %d bytes to %s", len(blob), c.Export)
	}

	if c.Stats {
		printStats(db)
	}

	return 0
}

// applyMappings parses "FILEID=TABLE,FILEID=TABLE,..." and registers each
// routing entry. Repeated --map flags aren't something goconfig's flat
// struct-tag model supports, so the CLI takes one comma-separated value
// instead of spec §6.4's literal repeated-flag phrasing.
func applyMappings(db *flatsql.Database, mappings string) error {
	if mappings == "" {
		return nil
	}
	for _, entry := range strings.Split(mappings, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || len(parts[0]) != 4 {
			return fmt.Errorf("invalid --map entry %q: expected FILEID=TABLE with a 4-byte FILEID", entry)
		}
		var fileID [4]byte
		copy(fileID[:], parts[0])
		if err := db.RegisterFileID(fileID, parts[1]); err != nil {
			return fmt.Errorf("--map %q: %w", entry, err)
		}
	}
	return nil
}

// ingestStdin reads stdin in 64 KiB chunks, feeding each into db.Ingest and
// re-appending whatever tail ingest didn't consume, the direct
// generalization of the partial-frame contract to a live pipe.
func ingestStdin(db *flatsql.Database) error {
	var tail []byte
	chunk := make([]byte, stdinChunkSize)
	total := 0

	for {
		n, readErr := os.Stdin.Read(chunk)
		if n > 0 {
			tail = append(tail, chunk[:n]...)
			consumed, processed := db.Ingest(tail)
			tail = tail[consumed:]
			total += processed
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	lgr.Printf("[INFO] ingested %d records (%d bytes unconsumed tail)", total, len(tail))
	return nil
}

func runQuery(db *flatsql.Database, sqlText string) error {
	result, err := db.Query(sqlText)
	if err != nil {
		return err
	}

	out := map[string]interface{}{
		"columns": result.Columns,
		"rows":    result.Rows,
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode query result: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}

func printStats(db *flatsql.Database) {
	for _, name := range db.ListTables() {
		stats := db.GetStats()[name]
		lgr.Printf("[INFO] %s: %d records, indexes %v", name, stats.RecordCount, stats.Indexes)
	}
}
