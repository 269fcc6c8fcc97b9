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

package dhash

import (
	"io"

	"github.com/sirupsen/logrus"
)

// option provide an interface to do work on Table while it is being created.
type option[V any] interface {
	apply(t *Table[V])
}

type hashOption[V any] struct {
	hash func(key string, prime, m uint64) uint64
}

func (op hashOption[V]) apply(t *Table[V]) {
	t.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Table[V].
// The function must return a value in [0, m) and must be deterministic for a
// given (key, prime, m). It is called with two different primes to derive
// the home slot and the probe step.
func WithHash[V any](hash func(key string, prime, m uint64) uint64) option[V] {
	return hashOption[V]{hash}
}

// Allocator specifies an interface for allocating and releasing the slot
// arrays used by a Table. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// AllocSlots may fail, in which case the operation that needed the slots
// returns an error wrapping ErrAllocation and the table is left unchanged.
type Allocator[V any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[V], n).
	AllocSlots(n int) ([]Slot[V], error)

	// FreeSlots can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocSlots. The
	// entries have already been moved or released when this is called.
	FreeSlots(v []Slot[V])
}

type defaultAllocator[V any] struct{}

func (defaultAllocator[V]) AllocSlots(n int) ([]Slot[V], error) {
	return make([]Slot[V], n), nil
}

func (defaultAllocator[V]) FreeSlots(v []Slot[V]) {
}

type allocatorOption[V any] struct {
	allocator Allocator[V]
}

func (op allocatorOption[V]) apply(t *Table[V]) {
	t.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Table[V].
func WithAllocator[V any](allocator Allocator[V]) option[V] {
	return allocatorOption[V]{allocator}
}

// Releaser releases the storage behind an owned value. It is called once for
// every owned entry that leaves the table through Delete, an overwriting
// Insert, or Close. It is never called by DeleteShallow, Detach,
// CloseShallow, or while the table is resizing.
type Releaser[V any] interface {
	Release(key string, value V)
}

// ReleaseFunc adapts a function to the Releaser interface.
type ReleaseFunc[V any] func(key string, value V)

// Release calls f(key, value).
func (f ReleaseFunc[V]) Release(key string, value V) {
	f(key, value)
}

// Releasable is implemented by values that hold storage of their own. The
// default Releaser calls Release on owned values that implement it and
// otherwise leaves the value to the GC.
type Releasable interface {
	Release()
}

type defaultReleaser[V any] struct{}

func (defaultReleaser[V]) Release(_ string, value V) {
	if r, ok := any(value).(Releasable); ok {
		r.Release()
	}
}

type releaserOption[V any] struct {
	releaser Releaser[V]
}

func (op releaserOption[V]) apply(t *Table[V]) {
	t.releaser = op.releaser
}

// WithReleaser is an option to specify the Releaser to use for a Table[V].
func WithReleaser[V any](releaser Releaser[V]) option[V] {
	return releaserOption[V]{releaser}
}

type loggerOption[V any] struct {
	logger logrus.FieldLogger
}

func (op loggerOption[V]) apply(t *Table[V]) {
	t.logger = op.logger
}

// WithLogger is an option to log resizes and tombstone purges at debug
// level. Tables log nothing by default.
func WithLogger[V any](logger logrus.FieldLogger) option[V] {
	return loggerOption[V]{logger}
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}()
