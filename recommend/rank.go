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

package recommend

import (
	"cmp"
	"slices"

	"github.com/gorse-io/disco/common/heap"
)

const (
	// DefaultCount is the number of results returned when the caller has no preference.
	DefaultCount = 5
	// All lifts the limit on the number of results.
	All = -1
)

// ItemScore is a recommended item and its score.
type ItemScore struct {
	ItemId any     `json:"item_id"`
	Score  float32 `json:"score"`
}

// UserScore is a similar user and its similarity.
type UserScore struct {
	UserId any     `json:"user_id"`
	Score  float32 `json:"score"`
}

type candidate struct {
	index int32
	score float32
}

// rank scores n candidates and returns the best k of them in descending order. Equal scores
// keep index order. A negative k ranks all candidates.
func rank(n, k int, score func(index int32) float32) []candidate {
	if k < 0 {
		candidates := make([]candidate, n)
		for i := range candidates {
			candidates[i] = candidate{index: int32(i), score: score(int32(i))}
		}
		slices.SortStableFunc(candidates, func(a, b candidate) int {
			return cmp.Compare(b.score, a.score)
		})
		return candidates
	}
	filter := heap.NewTopKFilter[int32, float32](k)
	for i := int32(0); i < int32(n); i++ {
		filter.Push(i, score(i))
	}
	indices, scores := filter.PopAll()
	candidates := make([]candidate, len(indices))
	for i := range indices {
		candidates[i] = candidate{index: indices[i], score: scores[i]}
	}
	return candidates
}
