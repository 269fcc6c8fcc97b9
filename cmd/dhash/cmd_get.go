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
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmdGet = &cobra.Command{
	Use:   "get manifest.toml kind name",
	Short: "Look up one resource of a manifest",
	Long: `
The "get" command loads a TOML manifest like "load" does and prints the single
resource registered under kind (shader, texture or model) and name.

EXIT STATUS
===========

Exit status is 0 if the resource was found, and non-zero otherwise.
`,
	Args:              cobra.ExactArgs(3),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGet(args[0], args[1], args[2], cmd.OutOrStdout())
	},
}

func init() {
	cmdRoot.AddCommand(cmdGet)
}

func runGet(path, kind, name string, out io.Writer) error {
	k, err := registry.ParseKind(kind)
	if err != nil {
		return err
	}
	r, err := openRegistry(path)
	if err != nil {
		return err
	}
	defer r.Close()

	res, ok := r.Lookup(k, name)
	if !ok {
		return errors.Errorf("%s %q not found in %s", k, name, path)
	}
	fmt.Fprintln(out, res)
	return nil
}
