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

package dataset

import (
	"reflect"
)

// Ref refers to a user or an item in a training set. It is either a known index or Unknown.
type Ref struct {
	index int32
	known bool
}

// Unknown refers to an entity that is absent from the training set.
var Unknown = Ref{}

func Known(index int32) Ref {
	return Ref{index: index, known: true}
}

// Index returns the dense index and whether the reference is known.
func (r Ref) Index() (int32, bool) {
	return r.index, r.known
}

func (r Ref) IsKnown() bool {
	return r.known
}

// isHashable reports whether a value can be used as a map key without panicking. A comparable
// type is not enough: interface fields of structs and arrays may hold slices or maps.
func isHashable(v any) bool {
	if v == nil {
		return true
	}
	return hashable(reflect.ValueOf(v))
}

func hashable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func:
		return false
	case reflect.Interface:
		return v.IsNil() || hashable(v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !hashable(v.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !hashable(v.Index(i)) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
