// Package schemacfg loads a flatbase.Table from a TOML document,
// supplementing the original tools' hardcoded-in-source table
// definitions with a declarative option. Grounded on Pieczasz-smf's use
// of github.com/BurntSushi/toml for its own configuration surface.
package schemacfg

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/solidcoredata/flatbase"
)

// Field is one [[field]] entry in a schema document.
type Field struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// Document is the top-level shape of a schema TOML file:
//
//	[[field]]
//	name = "Name"
//	type = "text16"
//
//	[[field]]
//	name = "Squat"
//	type = "int"
type Document struct {
	Field []Field `toml:"field"`
}

// typeByName maps a document's type string to its AttrType. The
// identifier type is deliberately absent: a schema document declares
// user fields only, the synthetic "id" field is always injected by
// Table.Write.
var typeByName = map[string]flatbase.AttrType{
	"int":    flatbase.AttrInt,
	"float":  flatbase.AttrFloat,
	"text16": flatbase.AttrText16,
}

// Load reads path as a TOML schema document and builds a flatbase.Table
// from its field list, in document order (the Table itself re-sorts by
// padded name on Write, so document order here only affects nothing
// observable beyond readability).
func Load(path string) (*flatbase.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schemacfg: open %s: %w", path, err)
	}
	defer f.Close()

	var doc Document
	if _, err := toml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("schemacfg: decode %s: %w", path, err)
	}

	table := flatbase.NewTable()
	for _, field := range doc.Field {
		typ, ok := typeByName[field.Type]
		if !ok {
			return nil, fmt.Errorf("schemacfg: field %q has unknown type %q: %w", field.Name, field.Type, flatbase.ErrSchema)
		}
		table.AddField(field.Name, typ)
	}
	return table, nil
}
