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
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

var ErrInvalidId = errors.New("id must be comparable")

// RatingRange is the range of observed ratings.
type RatingRange struct {
	Min float32
	Max float32
}

// Clamp limits a score to the range. A nil range leaves the score unchanged.
func (r *RatingRange) Clamp(score float32) float32 {
	if r == nil {
		return score
	}
	return math32.Max(math32.Min(score, r.Max), r.Min)
}

// TrainingSet is everything derived from the records passed to one fit.
type TrainingSet struct {
	Mode       Mode
	UserIndex  *Index
	ItemIndex  *Index
	Range      *RatingRange
	Train      *Matrix
	Validation *Matrix
	rated      []mapset.Set[int32]
}

func (t *TrainingSet) CountUsers() int {
	return t.UserIndex.Count()
}

func (t *TrainingSet) CountItems() int {
	return t.ItemIndex.Count()
}

// Rated returns the items a user interacted with during training.
func (t *TrainingSet) Rated(userIndex int32) mapset.Set[int32] {
	return t.rated[userIndex]
}

// Build validates training and validation records and assembles a training set. The
// validation set is optional; ids absent from the training set are mapped to Unknown.
func Build(trainSet, validationSet []Feedback) (*TrainingSet, error) {
	if len(trainSet) == 0 {
		return nil, errors.Trace(ErrNoTrainingData)
	}

	mode := DetectMode(trainSet)
	if err := ValidateRatings(trainSet, mode); err != nil {
		return nil, errors.Trace(err)
	}
	if validationSet != nil {
		if err := ValidateRatings(validationSet, mode); err != nil {
			return nil, errors.Trace(err)
		}
	}

	t := &TrainingSet{
		Mode:      mode,
		UserIndex: NewIndex(),
		ItemIndex: NewIndex(),
		Train:     NewMatrix(len(trainSet)),
	}
	for _, f := range trainSet {
		if !isHashable(f.UserId) || !isHashable(f.ItemId) {
			return nil, errors.Annotatef(ErrInvalidId, "user %v item %v", f.UserId, f.ItemId)
		}
		u := t.UserIndex.Add(f.UserId)
		i := t.ItemIndex.Add(f.ItemId)
		if int(u) == len(t.rated) {
			t.rated = append(t.rated, mapset.NewThreadUnsafeSet[int32]())
		}
		t.rated[u].Add(i)
		t.Train.Push(Known(u), Known(i), score(f, mode))
	}

	// one membership check instead of checking every record
	if t.UserIndex.Contains(nil) {
		return nil, errors.Trace(ErrMissingUserId)
	}
	if t.ItemIndex.Contains(nil) {
		return nil, errors.Trace(ErrMissingItemId)
	}

	if mode == Explicit {
		t.Range = &RatingRange{Min: math32.Inf(1), Max: math32.Inf(-1)}
		for _, e := range t.Train.Entries() {
			t.Range.Min = math32.Min(t.Range.Min, e.Score)
			t.Range.Max = math32.Max(t.Range.Max, e.Score)
		}
	}

	if validationSet != nil {
		t.Validation = NewMatrix(len(validationSet))
		for _, f := range validationSet {
			t.Validation.Push(t.UserIndex.Ref(f.UserId), t.ItemIndex.Ref(f.ItemId), score(f, mode))
		}
	}
	return t, nil
}

func score(f Feedback, mode Mode) float32 {
	if mode == Implicit {
		return 1
	}
	rating, _ := ParseRating(f.Rating)
	return rating
}
