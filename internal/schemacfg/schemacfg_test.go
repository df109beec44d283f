// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schemacfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidcoredata/flatbase"
)

func writeSchema(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadBuildsTableFromDocument(t *testing.T) {
	path := writeSchema(t, `
[[field]]
name = "Name"
type = "text16"

[[field]]
name = "Squat"
type = "int"

[[field]]
name = "Wilks"
type = "float"
`)

	table, err := Load(path)
	require.NoError(t, err)

	typ, ok := table.FieldType("Name")
	require.True(t, ok)
	assert.Equal(t, flatbase.AttrText16, typ)

	typ, ok = table.FieldType("Squat")
	require.True(t, ok)
	assert.Equal(t, flatbase.AttrInt, typ)

	typ, ok = table.FieldType("Wilks")
	require.True(t, ok)
	assert.Equal(t, flatbase.AttrFloat, typ)
}

func TestLoadRejectsUnknownType(t *testing.T) {
	path := writeSchema(t, `
[[field]]
name = "Bad"
type = "blob"
`)

	_, err := Load(path)
	assert.ErrorIs(t, err, flatbase.ErrSchema)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.toml")
	assert.Error(t, err)
}
