// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package floats

import (
	"github.com/viterin/vek/vek32"
)

// MatZero fills zeros in a matrix of 32-bit floats.
func MatZero(x [][]float32) {
	for i := range x {
		Zero(x[i])
	}
}

// Zero fills zeros in a slice of 32-bit floats.
func Zero(a []float32) {
	for i := range a {
		a[i] = 0
	}
}

// Add two vectors: dst = dst + s
func Add(dst, s []float32) {
	if len(dst) != len(s) {
		panic("floats: slice lengths do not match")
	}
	vek32.Add_Inplace(dst, s)
}

// MulConst multiplies a vector with a const: dst = dst * c
func MulConst(dst []float32, c float32) {
	vek32.MulNumber_Inplace(dst, c)
}

// MulConstAdd multiplies a vector and a const, then adds to dst: dst = dst + a * c
func MulConstAdd(a []float32, c float32, dst []float32) {
	if len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	for i := range a {
		dst[i] += a[i] * c
	}
}

// Dot two vectors.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		panic("floats: slice lengths do not match")
	}
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b)
}

// Norm returns the euclidean norm of a vector.
func Norm(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Norm(a)
}

// Normalize returns a unit-length copy of a vector. A zero vector is copied unchanged.
func Normalize(a []float32) []float32 {
	ret := make([]float32, len(a))
	copy(ret, a)
	if norm := Norm(a); norm > 0 {
		vek32.DivNumber_Inplace(ret, norm)
	}
	return ret
}

// NormalizeMatrix normalizes every row of a matrix into a new matrix.
func NormalizeMatrix(x [][]float32) [][]float32 {
	ret := make([][]float32, len(x))
	for i := range x {
		ret[i] = Normalize(x[i])
	}
	return ret
}
