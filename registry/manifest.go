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
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Manifest lists the resources to load. It is decoded from TOML:
//
//	[[shader]]
//	name = "default"
//	vertex = "shaders/default.vert"
//	fragment = "shaders/default.frag"
//
//	[[texture]]
//	name = "grass"
//	path = "textures/grass.png"
//	flip = true
//
//	[[model]]
//	name = "tree"
//	textures = ["tree_1", "tree_2"]
//
// Relative paths are resolved against Dir.
type Manifest struct {
	Dir      string        `toml:"-"`
	Shaders  []ShaderSpec  `toml:"shader"`
	Textures []TextureSpec `toml:"texture"`
	Models   []ModelSpec   `toml:"model"`
}

// ShaderSpec names a shader and its vertex and fragment source files.
type ShaderSpec struct {
	Name     string `toml:"name"`
	Vertex   string `toml:"vertex"`
	Fragment string `toml:"fragment"`
}

// TextureSpec names a texture and its image file.
type TextureSpec struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
	Flip bool   `toml:"flip"`
}

// ModelSpec names a model and the textures it is drawn with.
type ModelSpec struct {
	Name     string   `toml:"name"`
	Textures []string `toml:"textures"`
}

// LoadFile reads and validates the manifest at path. Its directory becomes
// the manifest's Dir.
func LoadFile(path string) (*Manifest, error) {
	var m Manifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, errors.Wrapf(err, "decode manifest %s", path)
	}
	m.Dir = filepath.Dir(path)
	if err := checkUndecoded(md); err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	return &m, nil
}

// Parse decodes and validates a manifest whose relative paths are resolved
// against dir.
func Parse(data, dir string) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(data, &m)
	if err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	m.Dir = dir
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func checkUndecoded(md toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, k := range undecoded {
		keys[i] = k.String()
	}
	sort.Strings(keys)
	return errors.Errorf("unknown keys: %s", strings.Join(keys, ", "))
}

// Validate checks that every resource is named, that names are unique per
// kind, and that every file a resource needs is given.
func (m *Manifest) Validate() error {
	seen := make(map[Kind]map[string]struct{}, numKinds)
	check := func(k Kind, name string) error {
		if name == "" {
			return errors.Errorf("%s without a name", k)
		}
		if seen[k] == nil {
			seen[k] = make(map[string]struct{})
		}
		if _, ok := seen[k][name]; ok {
			return errors.Errorf("duplicate %s %q", k, name)
		}
		seen[k][name] = struct{}{}
		return nil
	}

	for _, s := range m.Shaders {
		if err := check(Shader, s.Name); err != nil {
			return err
		}
		if s.Vertex == "" || s.Fragment == "" {
			return errors.Errorf("shader %q needs both vertex and fragment", s.Name)
		}
	}
	for _, t := range m.Textures {
		if err := check(Texture, t.Name); err != nil {
			return err
		}
		if t.Path == "" {
			return errors.Errorf("texture %q has no path", t.Name)
		}
	}
	for _, md := range m.Models {
		if err := check(Model, md.Name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) || m.Dir == "" {
		return path
	}
	return filepath.Join(m.Dir, path)
}
