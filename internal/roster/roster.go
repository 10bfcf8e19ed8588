// Package roster loads and validates roster seed files.
//
// A seed file is a JSON array of member profile entries. The embedded CUE
// schema rejects malformed entries (missing names, unknown voice types,
// bad ID shapes) before anything is written to the remote store, since a
// bad roster would poison every attendance record saved after it.
package roster

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"

	"choirsync/internal/domain"
)

//go:embed schema.cue
var schemaSource string

// Load reads, validates and normalizes a roster seed file.
func Load(path, prefix string) ([]domain.Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	members, err := Parse(data, prefix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return members, nil
}

// Parse validates raw roster JSON against the schema and returns the
// normalized roster: role suffixes stripped to flags, sequence IDs
// assigned, voice types defaulted.
func Parse(data []byte, prefix string) ([]domain.Member, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile roster schema: %w", err)
	}
	rosterSchema := schema.LookupPath(cue.ParsePath("#Roster"))
	if err := rosterSchema.Err(); err != nil {
		return nil, fmt.Errorf("roster schema missing #Roster: %w", err)
	}

	expr, err := cuejson.Extract("roster", data)
	if err != nil {
		return nil, fmt.Errorf("parse roster JSON: %w", err)
	}
	value := ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build roster value: %w", err)
	}

	unified := rosterSchema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("roster fails schema: %w", err)
	}

	var raw []domain.Member
	if err := unified.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}

	return domain.NormalizeRoster(raw, prefix), nil
}
