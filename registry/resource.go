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
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the class of a resource. Each kind lives in its own table, so the
// same name may be used once per kind.
type Kind int

const (
	Shader Kind = iota
	Texture
	Model

	numKinds
)

// Kinds lists every kind in load order.
var Kinds = []Kind{Shader, Texture, Model}

func (k Kind) String() string {
	switch k {
	case Shader:
		return "shader"
	case Texture:
		return "texture"
	case Model:
		return "model"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the name of a kind as printed by Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown resource kind %q", s)
}

// Resource is a named resource loaded from disk.
type Resource struct {
	Kind Kind
	Name string
	// Paths are the files the resource was read from: vertex and fragment
	// source for a shader, the image for a texture, nothing for a model.
	Paths []string
	// Data holds the contents of Paths, in the same order.
	Data [][]byte
	// Flip is set for textures that are stored upside down.
	Flip bool
	// Textures are the textures a model is drawn with. The registry's
	// texture table owns them; a model only refers to them.
	Textures []*Resource

	releases int
}

// Size returns the number of bytes of loaded data.
func (r *Resource) Size() int {
	var n int
	for _, d := range r.Data {
		n += len(d)
	}
	return n
}

// Release drops the loaded data. It is called by the registry when the
// resource is removed, replaced, or the registry is closed.
func (r *Resource) Release() {
	if r == nil {
		return
	}
	r.Data = nil
	r.Textures = nil
	r.releases++
}

// Released reports whether Release has been called.
func (r *Resource) Released() bool {
	return r.releases > 0
}

func (r *Resource) String() string {
	switch r.Kind {
	case Model:
		names := make([]string, len(r.Textures))
		for i, t := range r.Textures {
			names[i] = t.Name
		}
		return fmt.Sprintf("%s %q textures=[%s]", r.Kind, r.Name, strings.Join(names, " "))
	default:
		return fmt.Sprintf("%s %q files=[%s] bytes=%d", r.Kind, r.Name, strings.Join(r.Paths, " "), r.Size())
	}
}
