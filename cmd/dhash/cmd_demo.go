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

	"github.com/cockroachdb/dhash"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cmdDemo = &cobra.Command{
	Use:   "demo",
	Short: "Insert numbered keys and report table growth",
	Long: `
The "demo" command creates a table, inserts the keys "string 1" through
"string N" with owned values, looks one key up, and closes the table. It
prints the capacity after each resize and how many values the close released.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(demoOptions, cmd.OutOrStdout())
	},
}

// DemoOptions bundles all options for the demo command.
type DemoOptions struct {
	BaseSize int
	Count    int
	Lookup   string
}

var demoOptions DemoOptions

func init() {
	cmdRoot.AddCommand(cmdDemo)

	f := cmdDemo.Flags()
	f.IntVar(&demoOptions.BaseSize, "base-size", dhash.DefaultBaseSize, "initial base size of the table")
	f.IntVar(&demoOptions.Count, "count", 100, "number of keys to insert")
	f.StringVar(&demoOptions.Lookup, "lookup", "string 57", "key to look up after inserting")
}

// capacityRecorder is an Allocator that remembers the size of every slot
// array it hands out.
type capacityRecorder struct {
	capacities []int
}

func (a *capacityRecorder) AllocSlots(n int) ([]dhash.Slot[string], error) {
	a.capacities = append(a.capacities, n)
	return make([]dhash.Slot[string], n), nil
}

func (a *capacityRecorder) FreeSlots([]dhash.Slot[string]) {
}

func runDemo(opts DemoOptions, out io.Writer) error {
	if opts.Count < 0 {
		return errors.Errorf("--count must not be negative, got %d", opts.Count)
	}

	var released int
	alloc := &capacityRecorder{}
	t, err := dhash.New[string](opts.BaseSize,
		dhash.WithAllocator[string](alloc),
		dhash.WithReleaser[string](dhash.ReleaseFunc[string](func(string, string) {
			released++
		})),
		dhash.WithLogger[string](log.StandardLogger()))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created: capacity=%d\n", t.Capacity())

	for i := 1; i <= opts.Count; i++ {
		before := t.Capacity()
		if err := t.Insert(fmt.Sprintf("string %d", i), fmt.Sprintf("value %d", i), true); err != nil {
			t.Close()
			return errors.Wrapf(err, "insert %d", i)
		}
		if c := t.Capacity(); c != before {
			fmt.Fprintf(out, "resized: entries=%d capacity=%d->%d\n", i-1, before, c)
		}
	}
	fmt.Fprintf(out, "inserted: entries=%d capacity=%d resizes=%d\n",
		t.Len(), t.Capacity(), len(alloc.capacities)-1)

	if v, ok := t.Search(opts.Lookup); ok {
		fmt.Fprintf(out, "lookup: %q => %q\n", opts.Lookup, v)
	} else {
		fmt.Fprintf(out, "lookup: %q not found\n", opts.Lookup)
	}

	t.Close()
	fmt.Fprintf(out, "closed: released=%d\n", released)
	return nil
}
