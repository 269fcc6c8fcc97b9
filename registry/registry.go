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

// Package registry keeps named shaders, textures and models in one
// dhash.Table per kind. Resources are inserted once at load time, owned by
// their table, looked up by name as often as needed, and released when
// removed or when the registry is closed.
package registry

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/dhash"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrUnknownTexture is wrapped by Load when a model names a texture that
	// is not registered.
	ErrUnknownTexture = errors.New("unknown texture")

	// ErrInUse is wrapped by Remove when a registered model still draws with
	// the texture being removed.
	ErrInUse = errors.New("resource in use")
)

// Registry is a set of name-keyed resource tables. Like dhash.Table it is not
// goroutine-safe.
type Registry struct {
	tables   [numKinds]*dhash.Table[*Resource]
	baseSize int
	logger   log.FieldLogger
}

// Option configures a Registry.
type Option func(r *Registry)

// WithLogger sets the logger used for the registry and its tables.
func WithLogger(logger log.FieldLogger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithBaseSize sets the base size of each table. The default is
// dhash.DefaultBaseSize.
func WithBaseSize(n int) Option {
	return func(r *Registry) {
		r.baseSize = n
	}
}

// New creates an empty registry.
func New(options ...Option) (*Registry, error) {
	r := &Registry{
		logger: log.StandardLogger(),
	}
	for _, op := range options {
		op(r)
	}

	for _, k := range Kinds {
		t, err := dhash.New[*Resource](r.baseSize,
			dhash.WithLogger[*Resource](r.logger.WithField("kind", k.String())))
		if err != nil {
			r.Close()
			return nil, errors.Wrapf(err, "create %s table", k)
		}
		r.tables[k] = t
	}
	return r, nil
}

// Load reads every resource in m and registers it, replacing (and
// releasing) any resource already registered under the same kind and name.
// Models that referred to a replaced texture are pointed at its replacement.
// Shaders are loaded first, then textures, then models, so a model may refer
// to any texture in the same manifest. Loading stops at the first error;
// resources registered before it remain registered.
func (r *Registry) Load(m *Manifest) error {
	for _, s := range m.Shaders {
		vertex, fragment := m.resolve(s.Vertex), m.resolve(s.Fragment)
		data, err := readFiles(vertex, fragment)
		if err != nil {
			return errors.Wrapf(err, "shader %q", s.Name)
		}
		res := &Resource{Kind: Shader, Name: s.Name, Paths: []string{vertex, fragment}, Data: data}
		if err := r.register(res); err != nil {
			return err
		}
	}

	for _, t := range m.Textures {
		path := m.resolve(t.Path)
		data, err := readFiles(path)
		if err != nil {
			return errors.Wrapf(err, "texture %q", t.Name)
		}
		res := &Resource{Kind: Texture, Name: t.Name, Paths: []string{path}, Data: data, Flip: t.Flip}
		if err := r.register(res); err != nil {
			return err
		}
	}

	for _, md := range m.Models {
		textures := make([]*Resource, 0, len(md.Textures))
		for _, name := range md.Textures {
			t, ok := r.Lookup(Texture, name)
			if !ok {
				return errors.Wrapf(ErrUnknownTexture, "model %q: texture %q", md.Name, name)
			}
			textures = append(textures, t)
		}
		res := &Resource{Kind: Model, Name: md.Name, Textures: textures}
		if err := r.register(res); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) register(res *Resource) error {
	t := r.tables[res.Kind]
	old, replaced := t.Search(res.Name)
	if err := t.Insert(res.Name, res, true); err != nil {
		return errors.Wrapf(err, "register %s %q", res.Kind, res.Name)
	}
	if replaced && res.Kind == Texture {
		r.tables[Model].All(func(_ string, md *Resource) bool {
			for i, tex := range md.Textures {
				if tex == old {
					md.Textures[i] = res
				}
			}
			return true
		})
	}
	r.logger.WithFields(log.Fields{
		"kind":  res.Kind.String(),
		"name":  res.Name,
		"bytes": res.Size(),
	}).Debug("registered resource")
	return nil
}

func readFiles(paths ...string) ([][]byte, error) {
	data := make([][]byte, len(paths))
	for i, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrap(err, "read")
		}
		data[i] = b
	}
	return data, nil
}

// Lookup returns the resource registered under kind and name.
func (r *Registry) Lookup(kind Kind, name string) (*Resource, bool) {
	t := r.table(kind)
	if t == nil {
		return nil, false
	}
	return t.Search(name)
}

// Remove unregisters and releases a resource. It is a noop if nothing is
// registered under kind and name. A texture that a registered model draws
// with is not removed; the returned error wraps ErrInUse and names the
// models.
func (r *Registry) Remove(kind Kind, name string) error {
	t := r.table(kind)
	if t == nil {
		return nil
	}
	if kind == Texture {
		res, ok := t.Search(name)
		if !ok {
			return nil
		}
		if users := r.modelsUsing(res); len(users) > 0 {
			return errors.Wrapf(ErrInUse, "texture %q used by model %s", name, strings.Join(users, ", "))
		}
	}
	t.Delete(name)
	return nil
}

// modelsUsing returns the sorted names of the models drawn with tex.
func (r *Registry) modelsUsing(tex *Resource) []string {
	var users []string
	r.tables[Model].All(func(name string, md *Resource) bool {
		for _, t := range md.Textures {
			if t == tex {
				users = append(users, strconv.Quote(name))
				break
			}
		}
		return true
	})
	sort.Strings(users)
	return users
}

// Detach unregisters a resource without releasing it and hands it to the
// caller, who becomes responsible for it. Models that draw with a detached
// texture keep referring to it.
func (r *Registry) Detach(kind Kind, name string) (*Resource, bool) {
	t := r.table(kind)
	if t == nil {
		return nil, false
	}
	return t.Detach(name)
}

// Names returns the sorted names registered for kind.
func (r *Registry) Names(kind Kind) []string {
	t := r.table(kind)
	if t == nil {
		return nil
	}
	names := make([]string, 0, t.Len())
	t.All(func(name string, _ *Resource) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Len returns the number of resources registered for kind.
func (r *Registry) Len(kind Kind) int {
	if t := r.table(kind); t != nil {
		return t.Len()
	}
	return 0
}

// Close releases every registered resource. The registry must not be used
// afterwards.
func (r *Registry) Close() {
	// Models only refer to textures, so release them first.
	for i := len(Kinds) - 1; i >= 0; i-- {
		if t := r.tables[Kinds[i]]; t != nil {
			t.Close()
		}
	}
}

func (r *Registry) table(kind Kind) *dhash.Table[*Resource] {
	if kind < 0 || kind >= numKinds {
		return nil
	}
	return r.tables[kind]
}
