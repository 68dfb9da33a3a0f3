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

// Entry is a (user, item, score) triple.
type Entry struct {
	User  Ref
	Item  Ref
	Score float32
}

// Matrix is a sparse matrix stored as an ordered sequence of triples.
type Matrix struct {
	entries []Entry
}

func NewMatrix(capacity int) *Matrix {
	return &Matrix{entries: make([]Entry, 0, capacity)}
}

func (m *Matrix) Push(user, item Ref, score float32) {
	m.entries = append(m.entries, Entry{User: user, Item: item, Score: score})
}

// Len returns the number of triples. A nil matrix is empty.
func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns the underlying triples, which must not be modified.
func (m *Matrix) Entries() []Entry {
	if m == nil {
		return nil
	}
	return m.entries
}

// Scores returns the scores of all triples.
func (m *Matrix) Scores() []float32 {
	scores := make([]float32, m.Len())
	for i, e := range m.Entries() {
		scores[i] = e.Score
	}
	return scores
}
