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

// Index is an ordered bidirectional map between external ids and dense indices. Indices are
// assigned in first-seen order, starting from zero.
type Index struct {
	si map[any]int32
	is []any
}

func NewIndex() *Index {
	return &Index{si: make(map[any]int32), is: []any{}}
}

// Count returns the number of ids.
func (d *Index) Count() int {
	return len(d.is)
}

// Add returns the index of an id. A new index is assigned if the id hasn't been seen.
func (d *Index) Add(id any) int32 {
	if y, ok := d.si[id]; ok {
		return y
	}
	y := int32(len(d.is))
	d.si[id] = y
	d.is = append(d.is, id)
	return y
}

// Lookup returns the index of an id without assigning a new one.
func (d *Index) Lookup(id any) (int32, bool) {
	if !isHashable(id) {
		return 0, false
	}
	y, ok := d.si[id]
	return y, ok
}

// Ref resolves an id into a reference, which is Unknown for unseen ids.
func (d *Index) Ref(id any) Ref {
	if y, ok := d.Lookup(id); ok {
		return Known(y)
	}
	return Unknown
}

func (d *Index) Contains(id any) bool {
	_, ok := d.Lookup(id)
	return ok
}

// Id returns the external id of an index.
func (d *Index) Id(index int32) (any, bool) {
	if index < 0 || int(index) >= len(d.is) {
		return nil, false
	}
	return d.is[index], true
}

// Ids returns all ids in first-seen order.
func (d *Index) Ids() []any {
	ids := make([]any, len(d.is))
	copy(ids, d.is)
	return ids
}
