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
	"github.com/juju/errors"
)

var (
	ErrNoTrainingData   = errors.New("no training data")
	ErrMissingUserId    = errors.New("missing userId")
	ErrMissingItemId    = errors.New("missing itemId")
	ErrMissingRating    = errors.New("missing rating")
	ErrRatingNotNumeric = errors.New("rating must be numeric")
)

// Feedback is an interaction between a user and an item. Ids must be comparable scalars
// such as integers or strings, and a nil id means the id is missing. A nil rating means
// the interaction carries no rating.
type Feedback struct {
	UserId any `json:"user_id"`
	ItemId any `json:"item_id"`
	Rating any `json:"rating,omitempty"`
}

// HasRating reports whether the feedback carries a rating.
func (f Feedback) HasRating() bool {
	return f.Rating != nil
}

// Mode is the kind of feedback in a training set.
type Mode int

const (
	// Implicit feedback indicates occurrence only.
	Implicit Mode = iota
	// Explicit feedback carries a rating.
	Explicit
)

func (m Mode) String() string {
	if m == Explicit {
		return "explicit"
	}
	return "implicit"
}

// DetectMode returns Explicit if any feedback carries a rating. The scan stops at the first
// rated feedback.
func DetectMode(feedback []Feedback) Mode {
	for _, f := range feedback {
		if f.HasRating() {
			return Explicit
		}
	}
	return Implicit
}

type floatNumber interface {
	Float64() (float64, error)
}

// ParseRating converts a rating into a float. Go numeric types and json numbers are accepted,
// except NaN.
func ParseRating(rating any) (float32, bool) {
	v, ok := parseNumber(rating)
	if !ok || math32.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func parseNumber(rating any) (float32, bool) {
	switch v := rating.(type) {
	case float64:
		return float32(v), true
	case float32:
		return v, true
	case int:
		return float32(v), true
	case int8:
		return float32(v), true
	case int16:
		return float32(v), true
	case int32:
		return float32(v), true
	case int64:
		return float32(v), true
	case uint:
		return float32(v), true
	case uint8:
		return float32(v), true
	case uint16:
		return float32(v), true
	case uint32:
		return float32(v), true
	case uint64:
		return float32(v), true
	case floatNumber:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return float32(f), true
	default:
		return 0, false
	}
}

// ValidateRatings checks that every feedback carries a numeric rating in explicit mode.
// Nothing is checked in implicit mode.
func ValidateRatings(feedback []Feedback, mode Mode) error {
	if mode != Explicit {
		return nil
	}
	for _, f := range feedback {
		if !f.HasRating() {
			return errors.Trace(ErrMissingRating)
		}
	}
	for _, f := range feedback {
		if _, ok := ParseRating(f.Rating); !ok {
			return errors.Trace(ErrRatingNotNumeric)
		}
	}
	return nil
}
