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

// Package dhash is a string-keyed hash table using open addressing with
// double hashing over a prime number of slots. It is meant as a
// general-purpose store for named resources: values are inserted once under
// a name, looked up by name many times, and released when removed or when
// the table is closed.
//
// # Probing
//
// Every key has two polynomial hashes, hashA and hashB, computed with
// different prime multipliers and reduced modulo the capacity. Attempt i
// examines slot (hashA + i*(hashB|1)) mod capacity. Since the capacity is
// always prime and the step is never zero, the first capacity attempts visit
// every slot exactly once. See probeSeq.
//
// A slot is empty, full, or a tombstone. Lookups skip tombstones and stop at
// the first empty slot. Insert also skips tombstones and only ever places an
// entry in an empty slot, which guarantees that an existing entry for the
// key is found before the insertion point.
//
// # Growth
//
// Each table has a base size and a capacity of nextPrime(baseSize). Before an
// entry is placed, if the load after insertion would exceed 70% of the
// capacity the base size is doubled and every live entry is moved into a
// fresh slot array. Tombstones are dropped by the move. If live entries
// alone are under the threshold but live entries plus tombstones are not,
// the table is rehashed at its current size instead, purely to drop
// tombstones. The table never shrinks.
//
// # Ownership
//
// Each entry records whether the table owns its value. Owned values are
// handed to the table's Releaser when the entry is deleted, overwritten, or
// the table is closed. DeleteShallow and CloseShallow never release values;
// they are for values whose lifetime the caller manages itself, such as
// values shared between tables.
package dhash

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseSize is the base size used when New is given a size <= 0.
	DefaultBaseSize = 53

	// maxLoadPercent is the upper bound on count*100/capacity after an
	// Insert returns.
	maxLoadPercent = 70
)

var (
	// ErrClosed is returned by Insert on a table that has been closed.
	ErrClosed = errors.New("dhash: table is closed")

	// ErrAllocation is wrapped by errors returned when the Allocator cannot
	// supply a slot array.
	ErrAllocation = errors.New("dhash: cannot allocate slots")
)

type slotState uint8

const (
	slotEmpty slotState = iota
	slotTombstone
	slotFull
)

func (s slotState) String() string {
	switch s {
	case slotEmpty:
		return "empty"
	case slotTombstone:
		return "tombstone"
	case slotFull:
		return "full"
	default:
		return fmt.Sprintf("slotState(%d)", uint8(s))
	}
}

// Slot holds a key and value. The zero Slot is empty.
type Slot[V any] struct {
	key   string
	value V
	owned bool
	state slotState
}

// Table is an unordered map from string keys to values with Insert, Search,
// Delete, and All operations.
//
// A Table is NOT goroutine-safe. A host that shares one between goroutines
// must hold a single exclusive lock around every call, since any Insert may
// rebuild the whole slot array.
//
// The zero value for a Table is not usable; use New.
type Table[V any] struct {
	hash      hashFn
	allocator Allocator[V]
	releaser  Releaser[V]
	logger    logrus.FieldLogger

	slots []Slot[V]
	// The number of slots, always prime. Zero once the table is closed.
	capacity int
	// The nominal size the capacity was derived from. Growth doubles it.
	baseSize int
	// minBaseSize is the resize floor: requests for a smaller base size are
	// ignored.
	minBaseSize int
	// The number of full slots.
	used int
	// The number of tombstone slots. Tombstones are never reused, so they
	// count against the load threshold until the next resize drops them.
	tombstones int
	closed     bool
}

// New constructs a new Table with capacity nextPrime(baseSize). If baseSize
// is <= 0, DefaultBaseSize is used. The base size is also the smallest size
// the table can ever be resized to. An error is returned only if the
// allocator cannot supply the initial slots.
func New[V any](baseSize int, options ...option[V]) (*Table[V], error) {
	if baseSize <= 0 {
		baseSize = DefaultBaseSize
	}
	t := &Table[V]{
		hash:        polyHash,
		allocator:   defaultAllocator[V]{},
		releaser:    defaultReleaser[V]{},
		logger:      discardLogger,
		minBaseSize: baseSize,
	}

	for _, op := range options {
		op.apply(t)
	}

	slots, err := t.allocSlots(baseSize)
	if err != nil {
		return nil, err
	}
	t.slots = slots
	t.capacity = len(slots)
	t.baseSize = baseSize

	t.checkInvariants()
	return t, nil
}

// Close closes the table, releasing every owned value and returning the slot
// array to the allocator. It is invalid to insert into a Table after it has
// been closed, though Close itself is idempotent.
func (t *Table[V]) Close() {
	t.close(true)
}

// CloseShallow is like Close but never releases values, owned or not.
func (t *Table[V]) CloseShallow() {
	t.close(false)
}

func (t *Table[V]) close(release bool) {
	if t.closed {
		return
	}
	slots := t.slots
	t.slots = nil
	t.capacity = 0
	t.used = 0
	t.tombstones = 0
	t.closed = true

	if release {
		for i := range slots {
			if slots[i].state == slotFull {
				t.release(&slots[i])
			}
		}
	}
	t.allocator.FreeSlots(slots)
}

// Insert inserts an entry into the table, replacing the entry with the same
// key if one exists. The table keeps its own copy of key. If owned is true
// the table releases value when the entry later leaves the table. Replacing
// an entry releases the old value if the old entry was owned.
//
// An error is returned if the table is closed or if growing the table
// failed, in which case the table is unchanged.
func (t *Table[V]) Insert(key string, value V, owned bool) error {
	if t.closed {
		return ErrClosed
	}
	// Growth happens before placement so the new entry lands in the resized
	// slot array.
	if err := t.reserve(); err != nil {
		return err
	}

	for seq := makeProbeSeq(t.hash, key, t.capacity); ; seq = seq.next() {
		s := &t.slots[seq.offset]
		switch s.state {
		case slotEmpty:
			*s = Slot[V]{key: strings.Clone(key), value: value, owned: owned, state: slotFull}
			t.used++
			t.checkInvariants()
			return nil

		case slotFull:
			if s.key == key {
				old := *s
				*s = Slot[V]{key: strings.Clone(key), value: value, owned: owned, state: slotFull}
				t.release(&old)
				t.checkInvariants()
				return nil
			}
		}
		// Tombstones and other keys: keep probing.
	}
}

// Search retrieves the value stored for key, returning ok=false if the key
// is not present.
func (t *Table[V]) Search(key string) (value V, ok bool) {
	i, ok := t.find(key)
	if !ok {
		return value, false
	}
	return t.slots[i].value, true
}

// Delete deletes the entry for key, releasing its value if the entry is
// owned. It is a noop to delete a non-existent key.
func (t *Table[V]) Delete(key string) {
	t.delete(key, true)
}

// DeleteShallow deletes the entry for key without releasing its value,
// leaving the value's lifetime to the caller. It is a noop to delete a
// non-existent key.
func (t *Table[V]) DeleteShallow(key string) {
	t.delete(key, false)
}

// Detach is like DeleteShallow but also returns the value that was stored for
// key. The caller becomes responsible for the value.
func (t *Table[V]) Detach(key string) (value V, ok bool) {
	return t.delete(key, false)
}

func (t *Table[V]) delete(key string, release bool) (value V, ok bool) {
	i, ok := t.find(key)
	if !ok {
		return value, false
	}
	old := t.slots[i]
	t.slots[i] = Slot[V]{state: slotTombstone}
	t.used--
	t.tombstones++
	if release {
		t.release(&old)
	}
	t.checkInvariants()
	return old.value, true
}

// All calls yield sequentially for each key and value present in the table.
// If yield returns false, iteration stops. The table can be mutated during
// iteration, though there is no guarantee that the mutations will be visible
// to the iteration.
func (t *Table[V]) All(yield func(key string, value V) bool) {
	// Snapshot the slots so that iteration remains valid if the table is
	// resized during iteration.
	slots := t.slots
	for i := range slots {
		if s := &slots[i]; s.state == slotFull {
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Len returns the number of entries in the table.
func (t *Table[V]) Len() int {
	return t.used
}

// Capacity returns the number of slots in the table. It is always prime for
// an open table.
func (t *Table[V]) Capacity() int {
	return t.capacity
}

// find returns the index of the full slot holding key.
func (t *Table[V]) find(key string) (int, bool) {
	if t.capacity == 0 {
		return 0, false
	}
	for seq := makeProbeSeq(t.hash, key, t.capacity); ; seq = seq.next() {
		s := &t.slots[seq.offset]
		switch s.state {
		case slotEmpty:
			return 0, false
		case slotFull:
			if s.key == key {
				return int(seq.offset), true
			}
		}
	}
}

func (t *Table[V]) release(s *Slot[V]) {
	if s.owned {
		t.releaser.Release(s.key, s.value)
	}
}

// reserve makes room for one more entry: it grows the table while the load
// after insertion would exceed maxLoadPercent, and otherwise rehashes in
// place if tombstones alone would push it over.
func (t *Table[V]) reserve() error {
	for (t.used+1)*100/t.capacity > maxLoadPercent {
		if err := t.resize(t.baseSize * 2); err != nil {
			return err
		}
	}
	if (t.used+t.tombstones+1)*100/t.capacity > maxLoadPercent {
		t.logger.WithFields(logrus.Fields{
			"capacity":   t.capacity,
			"used":       t.used,
			"tombstones": t.tombstones,
		}).Debug("dhash: purging tombstones")
		return t.resize(t.baseSize)
	}
	return nil
}

// resize moves every live entry into a fresh slot array of capacity
// nextPrime(newBaseSize) and returns the old array to the allocator. No value
// is released: the entries themselves move, keys and ownership included. The
// Table handle stays valid across a resize. Requests below the table's
// minimum base size are ignored.
func (t *Table[V]) resize(newBaseSize int) error {
	if newBaseSize < t.minBaseSize {
		return nil
	}

	slots, err := t.allocSlots(newBaseSize)
	if err != nil {
		return err
	}

	oldSlots, oldCapacity := t.slots, t.capacity
	t.slots = slots
	t.capacity = len(slots)
	t.baseSize = newBaseSize
	t.tombstones = 0

	for i := range oldSlots {
		if oldSlots[i].state == slotFull {
			t.uncheckedPut(oldSlots[i])
		}
	}
	t.allocator.FreeSlots(oldSlots)

	t.logger.WithFields(logrus.Fields{
		"from": oldCapacity,
		"to":   t.capacity,
		"base": t.baseSize,
		"used": t.used,
	}).Debug("dhash: resized table")

	t.checkInvariants()
	return nil
}

// uncheckedPut places an entry known not to be in the table into the first
// empty slot of its probe sequence. Used by resize, where the slot array has
// no tombstones and the key set is already unique.
func (t *Table[V]) uncheckedPut(s Slot[V]) {
	for seq := makeProbeSeq(t.hash, s.key, t.capacity); ; seq = seq.next() {
		if t.slots[seq.offset].state == slotEmpty {
			t.slots[seq.offset] = s
			return
		}
	}
}

func (t *Table[V]) allocSlots(baseSize int) ([]Slot[V], error) {
	n := nextPrime(baseSize)
	slots, err := t.allocator.AllocSlots(n)
	if err != nil {
		return nil, errors.Wrapf(ErrAllocation, "%d slots: %s", n, err)
	}
	if len(slots) != n {
		return nil, errors.Wrapf(ErrAllocation, "allocator returned %d slots, expected %d", len(slots), n)
	}
	return slots, nil
}

func (t *Table[V]) checkInvariants() {
	if invariants {
		if t.closed {
			if t.capacity != 0 || t.used != 0 || t.slots != nil {
				panic(fmt.Sprintf("invariant failed: closed table has state\n%s", t.debugString()))
			}
			return
		}
		if isPrime(t.capacity) != prime {
			panic(fmt.Sprintf("invariant failed: capacity %d is not prime\n%s", t.capacity, t.debugString()))
		}
		if t.capacity != len(t.slots) {
			panic(fmt.Sprintf("invariant failed: capacity %d != len(slots) %d", t.capacity, len(t.slots)))
		}
		if t.capacity != nextPrime(t.baseSize) {
			panic(fmt.Sprintf("invariant failed: capacity %d != nextPrime(%d)", t.capacity, t.baseSize))
		}

		// For every full slot, verify we can retrieve the key using find and
		// that it resolves to this very slot. Count the slots in each state.
		var used, tombstones, empty int
		for i := range t.slots {
			s := &t.slots[i]
			switch s.state {
			case slotEmpty:
				empty++
			case slotTombstone:
				tombstones++
			case slotFull:
				j, ok := t.find(s.key)
				if !ok || j != i {
					panic(fmt.Sprintf("invariant failed: slot(%d): %q found=%t at %d\n%s",
						i, s.key, ok, j, t.debugString()))
				}
				used++
			default:
				panic(fmt.Sprintf("invariant failed: slot(%d): unexpected state %s", i, s.state))
			}
		}

		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
		if tombstones != t.tombstones {
			panic(fmt.Sprintf("invariant failed: found %d tombstones, but tombstone count is %d\n%s",
				tombstones, t.tombstones, t.debugString()))
		}
		if empty == 0 {
			panic(fmt.Sprintf("invariant failed: no empty slots\n%s", t.debugString()))
		}
	}
}

func (t *Table[V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  base=%d  used=%d  tombstones=%d\n",
		t.capacity, t.baseSize, t.used, t.tombstones)
	for i := range t.slots {
		switch s := &t.slots[i]; s.state {
		case slotFull:
			seq := makeProbeSeq(t.hash, s.key, t.capacity)
			fmt.Fprintf(&buf, "  %4d: %q [home=%d step=%d owned=%t]\n", i, s.key, seq.offset, seq.step, s.owned)
		default:
			fmt.Fprintf(&buf, "  %4d: %s\n", i, s.state)
		}
	}
	return buf.String()
}
