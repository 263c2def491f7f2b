// Copyright (c) 2026 The ZeroNSD Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zeronsd

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempHosts(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseHosts(t *testing.T) {
	content := `
# a comment line
1.2.3.4 router gateway
10.0.0.1 box # trailing comment
10.0.0.1 box2
not-an-ip oops

`
	path := writeTempHosts(t, content)

	entries, warnings, err := ParseHosts(path)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Len(t, entries, 2)

	assert.Equal(t, netip.MustParseAddr("1.2.3.4"), entries[0].IP)
	assert.Equal(t, []string{"router", "gateway"}, entries[0].Names)

	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), entries[1].IP)
	assert.Equal(t, []string{"box", "box2"}, entries[1].Names)
}

func TestParseHosts_EmptyPath(t *testing.T) {
	entries, warnings, err := ParseHosts("")
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.Nil(t, warnings)
}

func TestParseHosts_MissingFile(t *testing.T) {
	_, _, err := ParseHosts("/nonexistent/path/hosts")
	require.Error(t, err)
}
