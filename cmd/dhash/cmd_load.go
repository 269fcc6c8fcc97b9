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

package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/dhash/registry"
	"github.com/spf13/cobra"
)

var cmdLoad = &cobra.Command{
	Use:   "load manifest.toml",
	Short: "Register the resources of a manifest and list them",
	Long: `
The "load" command reads a TOML manifest, loads every shader, texture and
model it names into a resource registry, and prints the registered resources
grouped by kind. Relative paths in the manifest are resolved against the
directory holding the manifest.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	Args:              cobra.ExactArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad(args[0], cmd.OutOrStdout())
	},
}

func init() {
	cmdRoot.AddCommand(cmdLoad)
}

// openRegistry loads the manifest at path into a new registry.
func openRegistry(path string) (*registry.Registry, error) {
	m, err := registry.LoadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := registry.New()
	if err != nil {
		return nil, err
	}
	if err := r.Load(m); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func runLoad(path string, out io.Writer) error {
	r, err := openRegistry(path)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, k := range registry.Kinds {
		fmt.Fprintf(out, "%ss: %d\n", k, r.Len(k))
		for _, name := range r.Names(k) {
			res, _ := r.Lookup(k, name)
			fmt.Fprintf(out, "  %s\n", res)
		}
	}
	return nil
}
