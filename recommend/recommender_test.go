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
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/gorse-io/disco/common/floats"
	"github.com/gorse-io/disco/config"
	"github.com/gorse-io/disco/dataset"
	"github.com/gorse-io/disco/model/cf"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedBackend returns preset factors and records how it was called.
type fixedBackend struct {
	result *cf.Result
	err    error
	config *cf.FitConfig
	shape  cf.Shape
}

func (b *fixedBackend) Fit(_ context.Context, _, _ *dataset.Matrix, shape cf.Shape, config *cf.FitConfig) (*cf.Result, error) {
	b.config = config
	b.shape = shape
	return b.result, b.err
}

func explicitFeedback() []dataset.Feedback {
	var feedback []dataset.Feedback
	for u := 0; u < 6; u++ {
		for i := 0; i < 8; i++ {
			if (u+i)%3 != 0 {
				feedback = append(feedback, dataset.Feedback{
					UserId: u,
					ItemId: fmt.Sprintf("item_%d", i),
					Rating: (u*i)%5 + 1,
				})
			}
		}
	}
	return feedback
}

func implicitFeedback() []dataset.Feedback {
	return lo.Map(explicitFeedback(), func(f dataset.Feedback, _ int) dataset.Feedback {
		return dataset.Feedback{UserId: f.UserId, ItemId: f.ItemId}
	})
}

func TestExplicit(t *testing.T) {
	feedback := explicitFeedback()
	r := New(WithFactors(4), WithEpochs(50))
	require.NoError(t, r.Fit(context.Background(), feedback, nil))

	expected := lo.SumBy(feedback, func(f dataset.Feedback) float32 {
		return float32(f.Rating.(int))
	}) / float32(len(feedback))
	assert.InDelta(t, expected, r.GlobalMean(), 1e-4)

	// known pairs are clamped inner products
	predictions, err := r.Predict(feedback)
	require.NoError(t, err)
	require.Len(t, predictions, len(feedback))
	for i, f := range feedback {
		score := floats.Dot(r.UserFactors(f.UserId), r.ItemFactors(f.ItemId))
		score = min(max(score, 1), 5)
		assert.Equal(t, score, predictions[i])
	}

	// rated items are never recommended
	for _, userId := range r.UserIds() {
		recs, err := r.UserRecs(userId, All)
		require.NoError(t, err)
		for _, rec := range recs {
			assert.False(t, lo.ContainsBy(feedback, func(f dataset.Feedback) bool {
				return f.UserId == userId && f.ItemId == rec.ItemId
			}))
			assert.GreaterOrEqual(t, rec.Score, float32(1))
			assert.LessOrEqual(t, rec.Score, float32(5))
		}
	}

	// unlimited similarity queries return everything but the query
	recs, err := r.ItemRecs("item_1", All)
	require.NoError(t, err)
	assert.Len(t, recs, len(r.ItemIds())-1)
	assert.NotContains(t, lo.Map(recs, func(s ItemScore, _ int) any { return s.ItemId }), "item_1")
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Score, recs[i].Score)
	}
	users, err := r.SimilarUsers(0, All)
	require.NoError(t, err)
	assert.Len(t, users, len(r.UserIds())-1)
	users, err = r.SimilarUsers(0, 2)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestImplicit(t *testing.T) {
	r := New(WithFactors(4))
	require.NoError(t, r.Fit(context.Background(), implicitFeedback(), nil))
	assert.Zero(t, r.GlobalMean())

	// predictions are not clamped
	predictions, err := r.Predict([]dataset.Feedback{{UserId: 0, ItemId: "item_1"}})
	require.NoError(t, err)
	assert.Equal(t, floats.Dot(r.UserFactors(0), r.ItemFactors("item_1")), predictions[0])

	recs, err := r.UserRecs(0, DefaultCount)
	require.NoError(t, err)
	for _, rec := range recs {
		assert.False(t, lo.Contains([]any{"item_1", "item_2", "item_4", "item_5", "item_7"}, rec.ItemId))
	}
}

func TestExamples(t *testing.T) {
	r := New()
	err := r.Fit(context.Background(), []dataset.Feedback{
		{UserId: 1, ItemId: 1, Rating: 5},
		{UserId: 2, ItemId: 1, Rating: 3},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, r.UserIds())
	assert.Equal(t, []any{1}, r.ItemIds())
	_, err = r.UserRecs(1, DefaultCount)
	assert.NoError(t, err)
	_, err = r.ItemRecs(1, DefaultCount)
	assert.NoError(t, err)

	r = New()
	err = r.Fit(context.Background(), []dataset.Feedback{
		{UserId: 1, ItemId: 1},
		{UserId: 2, ItemId: 1},
	}, nil)
	require.NoError(t, err)
	_, err = r.UserRecs(1, DefaultCount)
	assert.NoError(t, err)
	_, err = r.ItemRecs(1, DefaultCount)
	assert.NoError(t, err)
}

func TestRated(t *testing.T) {
	r := New()
	err := r.Fit(context.Background(), []dataset.Feedback{
		{UserId: 1, ItemId: "A"},
		{UserId: 1, ItemId: "B"},
		{UserId: 1, ItemId: "C"},
		{UserId: 1, ItemId: "D"},
		{UserId: 2, ItemId: "C"},
		{UserId: 2, ItemId: "D"},
		{UserId: 2, ItemId: "E"},
		{UserId: 2, ItemId: "F"},
	}, nil)
	require.NoError(t, err)
	recs, err := r.UserRecs(1, DefaultCount)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"E", "F"}, lo.Map(recs, func(s ItemScore, _ int) any { return s.ItemId }))
	recs, err = r.UserRecs(2, DefaultCount)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"A", "B"}, lo.Map(recs, func(s ItemScore, _ int) any { return s.ItemId }))
}

func TestItemRecsSameScore(t *testing.T) {
	r := New(WithFactors(50))
	err := r.Fit(context.Background(), []dataset.Feedback{
		{UserId: 1, ItemId: "A"},
		{UserId: 1, ItemId: "B"},
		{UserId: 2, ItemId: "C"},
	}, nil)
	require.NoError(t, err)
	recs, err := r.ItemRecs("A", DefaultCount)
	require.NoError(t, err)
	assert.Equal(t, []any{"B", "C"}, lo.Map(recs, func(s ItemScore, _ int) any { return s.ItemId }))
}

func TestIds(t *testing.T) {
	r := New()
	assert.Nil(t, r.UserIds())
	assert.Nil(t, r.ItemIds())
	err := r.Fit(context.Background(), []dataset.Feedback{
		{UserId: 1, ItemId: "A"},
		{UserId: 1, ItemId: "B"},
		{UserId: 2, ItemId: "B"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, r.UserIds())
	assert.Equal(t, []any{"A", "B"}, r.ItemIds())
}

func TestFactors(t *testing.T) {
	r := New(WithFactors(20))
	assert.Nil(t, r.UserFactors(1))
	err := r.Fit(context.Background(), []dataset.Feedback{
		{UserId: 1, ItemId: "A"},
		{UserId: 1, ItemId: "B"},
		{UserId: 2, ItemId: "B"},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, r.UserFactors(1), 20)
	assert.Len(t, r.ItemFactors("A"), 20)
	assert.Nil(t, r.UserFactors(3))
	assert.Nil(t, r.ItemFactors("C"))
	assert.Nil(t, r.UserFactors([]int{1}))

	// returned factors are copies
	r.UserFactors(1)[0] = 100
	assert.NotEqual(t, float32(100), r.UserFactors(1)[0])
}

func TestValidationSet(t *testing.T) {
	train := explicitFeedback()
	validation := []dataset.Feedback{
		{UserId: 0, ItemId: "item_1", Rating: 3},
		{UserId: "missing", ItemId: "item_1", Rating: 3},
		{UserId: 0, ItemId: "missing", Rating: 3},
	}
	r := New(WithVerbose(false))
	assert.NoError(t, r.Fit(context.Background(), train, validation))

	validation = lo.Map(validation, func(f dataset.Feedback, _ int) dataset.Feedback {
		return dataset.Feedback{UserId: f.UserId, ItemId: f.ItemId}
	})
	assert.NoError(t, r.Fit(context.Background(), implicitFeedback(), validation))
}

func TestNewUser(t *testing.T) {
	r := New()
	err := r.Fit(context.Background(), []dataset.Feedback{
		{UserId: 1, ItemId: 1, Rating: 5},
		{UserId: 2, ItemId: 1, Rating: 3},
	}, nil)
	require.NoError(t, err)
	recs, err := r.UserRecs(1000, DefaultCount)
	require.NoError(t, err)
	assert.Empty(t, recs)
	recs, err = r.ItemRecs(1000, DefaultCount)
	require.NoError(t, err)
	assert.Empty(t, recs)
	users, err := r.SimilarUsers("missing", DefaultCount)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NotNil(t, users)

	// unseen ids get the global mean, unclamped
	predictions, err := r.Predict([]dataset.Feedback{
		{UserId: 1000, ItemId: 1},
		{UserId: 1, ItemId: 1000},
		{UserId: []int{1}, ItemId: 1},
		{UserId: 1, ItemId: nestedId{X: []int{1}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{r.GlobalMean(), r.GlobalMean(), r.GlobalMean(), r.GlobalMean()}, predictions)

	// ids holding slices behind interfaces are unknown
	recs, err = r.UserRecs(nestedId{X: []int{1}}, DefaultCount)
	require.NoError(t, err)
	assert.Empty(t, recs)
	recs, err = r.ItemRecs(nestedId{X: []int{1}}, DefaultCount)
	require.NoError(t, err)
	assert.Empty(t, recs)
	users, err = r.SimilarUsers(nestedId{X: []int{1}}, DefaultCount)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.True(t, errors.Is(r.Fit(context.Background(), []dataset.Feedback{{UserId: nestedId{X: []int{1}}, ItemId: 1}}, nil),
		dataset.ErrInvalidId))
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	r := New()
	assert.True(t, errors.Is(r.Fit(ctx, nil, nil), dataset.ErrNoTrainingData))
	assert.True(t, errors.Is(r.Fit(ctx, []dataset.Feedback{{ItemId: 1, Rating: 5}}, nil), dataset.ErrMissingUserId))
	assert.True(t, errors.Is(r.Fit(ctx, []dataset.Feedback{{UserId: 1, Rating: 5}}, nil), dataset.ErrMissingItemId))
	assert.True(t, errors.Is(r.Fit(ctx, []dataset.Feedback{
		{UserId: 1, ItemId: 1, Rating: 5},
		{UserId: 1, ItemId: 2},
	}, nil), dataset.ErrMissingRating))
	assert.True(t, errors.Is(r.Fit(ctx,
		[]dataset.Feedback{{UserId: 1, ItemId: 1, Rating: 5}},
		[]dataset.Feedback{{UserId: 1, ItemId: 2}}), dataset.ErrMissingRating))
	assert.True(t, errors.Is(r.Fit(ctx, []dataset.Feedback{{UserId: 1, ItemId: 1, Rating: "invalid"}}, nil),
		dataset.ErrRatingNotNumeric))
	assert.True(t, errors.Is(r.Fit(ctx,
		[]dataset.Feedback{{UserId: 1, ItemId: 1, Rating: 5}},
		[]dataset.Feedback{{UserId: 1, ItemId: 1, Rating: "invalid"}}), dataset.ErrRatingNotNumeric))
	assert.Error(t, New(WithFactors(0)).Fit(ctx, explicitFeedback(), nil))
}

func TestNotFit(t *testing.T) {
	r := New()
	_, err := r.UserRecs(1, DefaultCount)
	assert.True(t, errors.Is(err, ErrNotFit))
	_, err = r.ItemRecs(1, DefaultCount)
	assert.True(t, errors.Is(err, ErrNotFit))
	_, err = r.SimilarUsers(1, DefaultCount)
	assert.True(t, errors.Is(err, ErrNotFit))
	_, err = r.Predict([]dataset.Feedback{{UserId: 1, ItemId: 1}})
	assert.True(t, errors.Is(err, ErrNotFit))
	assert.EqualError(t, ErrNotFit, "not fit")
	assert.Zero(t, r.GlobalMean())

	// a failed fit keeps the recommender unfit
	assert.Error(t, r.Fit(context.Background(), nil, nil))
	_, err = r.UserRecs(1, DefaultCount)
	assert.True(t, errors.Is(err, ErrNotFit))
}

func TestFitMultiple(t *testing.T) {
	r := New()
	require.NoError(t, r.Fit(context.Background(), []dataset.Feedback{{UserId: 1, ItemId: 1, Rating: 5}}, nil))
	require.NoError(t, r.Fit(context.Background(), []dataset.Feedback{{UserId: 2, ItemId: 2}}, nil))
	assert.Equal(t, []any{2}, r.UserIds())
	assert.Equal(t, []any{2}, r.ItemIds())
	predictions, err := r.Predict([]dataset.Feedback{{UserId: 2, ItemId: 2}})
	require.NoError(t, err)
	assert.LessOrEqual(t, predictions[0], float32(1))
}

func TestFailedFitKeepsState(t *testing.T) {
	ctx := context.Background()
	r := New()
	require.NoError(t, r.Fit(ctx, []dataset.Feedback{{UserId: 1, ItemId: 1}}, nil))
	assert.Error(t, r.Fit(ctx, []dataset.Feedback{{UserId: 2, ItemId: 2, Rating: "bad"}}, nil))
	assert.Equal(t, []any{1}, r.UserIds())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := r.Fit(cancelled, []dataset.Feedback{{UserId: 3, ItemId: 3}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []any{1}, r.UserIds())

	backend := &fixedBackend{err: errors.New("backend failed")}
	r = New(WithBackend(backend))
	assert.Error(t, r.Fit(ctx, []dataset.Feedback{{UserId: 1, ItemId: 1}}, nil))
	assert.Nil(t, r.UserIds())
}

type nestedId struct {
	X any
}

func TestInvalidBackendResult(t *testing.T) {
	ctx := context.Background()
	train := []dataset.Feedback{{UserId: 1, ItemId: 1}, {UserId: 2, ItemId: 2}}
	r := New(WithFactors(1), WithBackend(&fixedBackend{result: &cf.Result{
		UserFactors: [][]float32{{1}, {1}},
		ItemFactors: [][]float32{{1}, {1}},
	}}))
	require.NoError(t, r.Fit(ctx, train, nil))

	for _, result := range []*cf.Result{
		nil,
		{UserFactors: [][]float32{{1}}, ItemFactors: [][]float32{{1}}},
		{UserFactors: [][]float32{{1}, {1}}, ItemFactors: [][]float32{{1}}},
		{UserFactors: [][]float32{{1}, {1, 2}}, ItemFactors: [][]float32{{1}, {1}}},
		{UserFactors: [][]float32{{1}, {1}}, ItemFactors: [][]float32{{1}, {}}},
	} {
		r.backend = &fixedBackend{result: result}
		err := r.Fit(ctx, train, nil)
		assert.True(t, errors.Is(err, errors.NotValid), "%v", err)
	}
	// the previous model keeps serving
	recs, err := r.UserRecs(2, DefaultCount)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].ItemId)
}

func TestVerbose(t *testing.T) {
	ctx := context.Background()
	train := []dataset.Feedback{{UserId: 1, ItemId: 1}}
	result := &cf.Result{UserFactors: [][]float32{{1}}, ItemFactors: [][]float32{{1}}}

	backend := &fixedBackend{result: result}
	require.NoError(t, New(WithFactors(1), WithBackend(backend)).Fit(ctx, train, nil))
	assert.False(t, backend.config.Verbose)
	assert.Equal(t, cf.OneClassL2, backend.config.Loss)
	assert.Equal(t, cf.Shape{Users: 1, Items: 1}, backend.shape)

	require.NoError(t, New(WithFactors(1), WithBackend(backend)).Fit(ctx, train, train))
	assert.True(t, backend.config.Verbose)

	require.NoError(t, New(WithFactors(1), WithBackend(backend), WithVerbose(false)).Fit(ctx, train, train))
	assert.False(t, backend.config.Verbose)

	require.NoError(t, New(WithFactors(1), WithBackend(backend), WithVerbose(true)).Fit(ctx, train, nil))
	assert.True(t, backend.config.Verbose)
}

func TestOptions(t *testing.T) {
	c := config.GetDefaultConfig()
	c.Factors = 3
	c.Jobs = 2
	backend := &fixedBackend{result: &cf.Result{
		Bias:        3,
		UserFactors: [][]float32{{1, 1, 1}},
		ItemFactors: [][]float32{{1, 1, 1}},
	}}
	r := New(WithConfig(c), WithEpochs(7), WithBackend(backend))
	require.NoError(t, r.Fit(context.Background(), []dataset.Feedback{{UserId: 1, ItemId: 1, Rating: 3}}, nil))
	assert.Equal(t, &cf.FitConfig{Loss: cf.RealL2, Factors: 3, Epochs: 7, Jobs: 2}, backend.config)
}

// newRankingRecommender fits preset factors: user "a" rated i2 and i3, user "b" rated i0 and i1.
// Both users score the items 4, 3, 2, 1 and ratings range over [1, 3].
func newRankingRecommender(t *testing.T) (*Recommender, *fixedBackend) {
	backend := &fixedBackend{result: &cf.Result{
		Bias:        2,
		UserFactors: [][]float32{{1, 0}, {1, 0}},
		ItemFactors: [][]float32{{4, 0}, {3, 0}, {2, 0}, {1, 0}},
	}}
	r := New(WithFactors(2), WithBackend(backend))
	err := r.Fit(context.Background(), rankingFeedback, nil)
	require.NoError(t, err)
	return r, backend
}

var rankingFeedback = []dataset.Feedback{
	{UserId: "b", ItemId: "i0", Rating: 1},
	{UserId: "b", ItemId: "i1", Rating: 3},
	{UserId: "a", ItemId: "i2", Rating: 2},
	{UserId: "a", ItemId: "i3", Rating: 2},
}

func TestUserRecsTruncateBeforeFilter(t *testing.T) {
	r, _ := newRankingRecommender(t)
	// candidates are cut to count + |rated| = 3 before rated items are removed
	recs, err := r.UserRecs("a", 1)
	require.NoError(t, err)
	assert.Equal(t, []ItemScore{{ItemId: "i0", Score: 3}, {ItemId: "i1", Score: 3}}, recs)
	recs, err = r.UserRecs("a", 0)
	require.NoError(t, err)
	assert.Equal(t, []ItemScore{{ItemId: "i0", Score: 3}, {ItemId: "i1", Score: 3}}, recs)
	// user "b" rated the best items
	recs, err = r.UserRecs("b", 1)
	require.NoError(t, err)
	assert.Equal(t, []ItemScore{{ItemId: "i2", Score: 2}}, recs)
	recs, err = r.UserRecs("b", All)
	require.NoError(t, err)
	assert.Equal(t, []ItemScore{{ItemId: "i2", Score: 2}, {ItemId: "i3", Score: 1}}, recs)
}

func TestSimilarTies(t *testing.T) {
	backend := &fixedBackend{result: &cf.Result{
		UserFactors: [][]float32{{1, 0}, {2, 0}, {0, 3}},
		ItemFactors: [][]float32{{1, 0}, {5, 0}, {2, 0}, {0, 1}},
	}}
	r := New(WithFactors(2), WithBackend(backend))
	err := r.Fit(context.Background(), []dataset.Feedback{
		{UserId: "u0", ItemId: "i0"},
		{UserId: "u1", ItemId: "i1"},
		{UserId: "u2", ItemId: "i2"},
		{UserId: "u2", ItemId: "i3"},
	}, nil)
	require.NoError(t, err)

	// equal similarities keep first-seen order
	recs, err := r.ItemRecs("i1", 1)
	require.NoError(t, err)
	assert.Equal(t, []ItemScore{{ItemId: "i0", Score: 1}}, recs)
	recs, err = r.ItemRecs("i1", All)
	require.NoError(t, err)
	assert.Equal(t, []ItemScore{{ItemId: "i0", Score: 1}, {ItemId: "i2", Score: 1}, {ItemId: "i3", Score: 0}}, recs)
	recs, err = r.ItemRecs("i0", 2)
	require.NoError(t, err)
	assert.Equal(t, []ItemScore{{ItemId: "i1", Score: 1}, {ItemId: "i2", Score: 1}}, recs)

	users, err := r.SimilarUsers("u2", 1)
	require.NoError(t, err)
	assert.Equal(t, []UserScore{{UserId: "u0", Score: 0}}, users)
}

func TestQueryCache(t *testing.T) {
	r, backend := newRankingRecommender(t)
	recs, err := r.UserRecs("a", All)
	require.NoError(t, err)
	// cached results are copies
	recs[0].Score = 100
	recs, err = r.UserRecs("a", All)
	require.NoError(t, err)
	assert.Equal(t, []ItemScore{{ItemId: "i0", Score: 3}, {ItemId: "i1", Score: 3}}, recs)

	// refit invalidates cached results
	backend.result = &cf.Result{
		Bias:        2,
		UserFactors: [][]float32{{1, 0}, {-1, 0}},
		ItemFactors: [][]float32{{4, 0}, {3, 0}, {2, 0}, {1, 0}},
	}
	require.NoError(t, r.Fit(context.Background(), rankingFeedback, nil))
	recs, err = r.UserRecs("a", All)
	require.NoError(t, err)
	assert.Equal(t, []ItemScore{{ItemId: "i1", Score: 1}, {ItemId: "i0", Score: 1}}, recs)

	// the cache can be disabled
	c := config.GetDefaultConfig()
	c.Factors = 2
	c.QueryCache.Size = 0
	r = New(WithConfig(c), WithBackend(backend))
	require.NoError(t, r.Fit(context.Background(), rankingFeedback, nil))
	recs, err = r.UserRecs("a", All)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestScoreJSON(t *testing.T) {
	data, err := json.Marshal(ItemScore{ItemId: "A", Score: 1.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item_id":"A","score":1.5}`, string(data))
	data, err = json.Marshal(UserScore{UserId: 1, Score: 0.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":1,"score":0.5}`, string(data))
}
