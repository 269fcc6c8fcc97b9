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
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// GlobalOptions hold options shared by all commands.
type GlobalOptions struct {
	LogLevel string
}

var globalOptions GlobalOptions

// cmdRoot is the base command when no other command has been specified.
var cmdRoot = &cobra.Command{
	Use:   "dhash",
	Short: "Exercise the dhash table and resource registry",
	Long: `
dhash drives a double hashing table: "demo" inserts a batch of keys and
reports how the table grew, "load" and "get" register the resources named in
a TOML manifest and look them up.
`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(globalOptions.LogLevel)
		if err != nil {
			return errors.Wrap(err, "--log-level")
		}
		log.SetLevel(level)
		log.SetOutput(cmd.ErrOrStderr())
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(0)
	},
}

func init() {
	f := cmdRoot.PersistentFlags()
	f.StringVar(&globalOptions.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
