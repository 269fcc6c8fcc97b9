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

type primality int8

const (
	indeterminate primality = -1
	composite     primality = 0
	prime         primality = 1
)

// isPrime reports whether x is prime by trial division. Values below 2 are
// neither prime nor composite.
func isPrime(x int) primality {
	switch {
	case x < 2:
		return indeterminate
	case x < 4:
		return prime
	case x%2 == 0:
		return composite
	}
	for i := 3; i*i <= x; i += 2 {
		if x%i == 0 {
			return composite
		}
	}
	return prime
}

// nextPrime returns the smallest prime >= x.
func nextPrime(x int) int {
	for isPrime(x) != prime {
		x++
	}
	return x
}
