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

import "fmt"

const (
	// hashPrimeA and hashPrimeB are the multipliers of the two polynomial
	// hashes that drive double hashing. hashPrimeA picks the home slot and
	// hashPrimeB picks the probe step.
	hashPrimeA = 67
	hashPrimeB = 199
)

// hashFn maps key to a value in [0, m) using prime as the polynomial
// multiplier.
type hashFn func(key string, prime, m uint64) uint64

// polyHash is the polynomial rolling hash
//
//	key[0]*prime^(n-1) + key[1]*prime^(n-2) + ... + key[n-1]   (mod m)
//
// evaluated with Horner's rule. The running value is reduced modulo m at
// every step, so nothing overflows as long as m*prime fits in 64 bits. Key
// bytes are treated as unsigned.
func polyHash(key string, prime, m uint64) uint64 {
	var h uint64
	for i := 0; i < len(key); i++ {
		h = (h*prime + uint64(key[i])) % m
	}
	return h
}

// probeSeq maintains the state for a double hashing probe sequence:
//
//	p(i) := (hashA(key) + i*step) mod capacity,  step = hashB(key) | 1
//
// The "| 1" keeps the step from being zero. On an odd capacity it can still
// land exactly on capacity (when hashB(key) == capacity-1), which is zero
// modulo capacity, so that case falls back to a step of 1. Because capacity
// is prime and 0 < step < capacity, the sequence visits every slot exactly
// once in its first capacity steps. Running past that means the table has no
// empty slot left, which the load policy never allows.
type probeSeq struct {
	capacity uint64
	offset   uint64
	step     uint64
	index    uint64
}

func makeProbeSeq(hash hashFn, key string, capacity int) probeSeq {
	c := uint64(capacity)
	step := hash(key, hashPrimeB, c) | 1
	if step >= c {
		step = 1
	}
	return probeSeq{
		capacity: c,
		offset:   hash(key, hashPrimeA, c) % c,
		step:     step,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	if s.index >= s.capacity {
		panic(fmt.Sprintf("dhash: probe sequence exhausted: %s", s))
	}
	s.offset = (s.offset + s.step) % s.capacity
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("capacity=%d offset=%d step=%d index=%d", s.capacity, s.offset, s.step, s.index)
}
