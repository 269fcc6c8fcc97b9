// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	m, err := Parse(testManifest, "/assets")
	require.NoError(t, err)
	require.Equal(t, "/assets", m.Dir)
	require.Equal(t, []ShaderSpec{
		{Name: "default", Vertex: "shaders/default.vert", Fragment: "shaders/default.frag"},
	}, m.Shaders)
	require.Len(t, m.Textures, 3)
	require.Equal(t, TextureSpec{Name: "tree_1", Path: "textures/tree_1.png", Flip: true}, m.Textures[1])
	require.Equal(t, ModelSpec{Name: "tree", Textures: []string{"tree_1", "tree_2"}}, m.Models[1])

	require.Equal(t, filepath.Join("/assets", "a.png"), m.resolve("a.png"))
	require.Equal(t, "/abs/a.png", m.resolve("/abs/a.png"))
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name     string
		manifest string
		expected string
	}{
		{
			name:     "syntax",
			manifest: `[[texture]`,
			expected: "decode manifest",
		},
		{
			name: "unknown-key",
			manifest: `
[[texture]]
name = "a"
path = "a.png"
wrap = "repeat"
`,
			expected: "unknown keys: texture.wrap",
		},
		{
			name: "unnamed",
			manifest: `
[[model]]
textures = ["a"]
`,
			expected: "model without a name",
		},
		{
			name: "duplicate",
			manifest: `
[[texture]]
name = "a"
path = "a.png"

[[texture]]
name = "a"
path = "b.png"
`,
			expected: `duplicate texture "a"`,
		},
		{
			name: "shader-fragment",
			manifest: `
[[shader]]
name = "s"
vertex = "s.vert"
`,
			expected: `shader "s" needs both vertex and fragment`,
		},
		{
			name: "texture-path",
			manifest: `
[[texture]]
name = "a"
`,
			expected: `texture "a" has no path`,
		},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse(c.manifest, "")
			require.Error(t, err)
			require.Contains(t, err.Error(), c.expected)
		})
	}
}

func TestParseSameNameAcrossKinds(t *testing.T) {
	_, err := Parse(`
[[texture]]
name = "sign"
path = "sign.png"

[[model]]
name = "sign"
textures = ["sign"]
`, "")
	require.NoError(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.toml")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o644))

	m, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, dir, m.Dir)
	require.Len(t, m.Models, 2)

	_, err = LoadFile(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}
