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
	"slices"
	"time"

	"github.com/gorse-io/disco/common/floats"
	"github.com/gorse-io/disco/common/log"
	"github.com/gorse-io/disco/config"
	"github.com/gorse-io/disco/dataset"
	"github.com/gorse-io/disco/model"
	"github.com/gorse-io/disco/model/cf"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrNotFit = errors.New("not fit")

// Option configures a Recommender.
type Option func(*Recommender)

func WithFactors(factors int) Option {
	return func(r *Recommender) {
		r.config.Factors = factors
	}
}

func WithEpochs(epochs int) Option {
	return func(r *Recommender) {
		r.config.Epochs = epochs
	}
}

// WithVerbose overrides whether training progress is logged. By default progress is logged
// only when a validation set is given.
func WithVerbose(verbose bool) Option {
	return func(r *Recommender) {
		r.config.Verbose = &verbose
	}
}

// WithConfig replaces the whole configuration. Options after it still apply.
func WithConfig(c *config.Config) Option {
	return func(r *Recommender) {
		r.config = *c
	}
}

// WithBackend replaces the factorization backend.
func WithBackend(backend cf.Backend) Option {
	return func(r *Recommender) {
		r.backend = backend
	}
}

// snapshot is the immutable state produced by one fit.
type snapshot struct {
	generation      uint64
	train           *dataset.TrainingSet
	result          *cf.Result
	normalizedUsers atomic.Pointer[[][]float32]
	normalizedItems atomic.Pointer[[][]float32]
}

func (s *snapshot) normalizedUserFactors() [][]float32 {
	if normalized := s.normalizedUsers.Load(); normalized != nil {
		return *normalized
	}
	normalized := floats.NormalizeMatrix(s.result.UserFactors)
	s.normalizedUsers.Store(&normalized)
	return normalized
}

func (s *snapshot) normalizedItemFactors() [][]float32 {
	if normalized := s.normalizedItems.Load(); normalized != nil {
		return *normalized
	}
	normalized := floats.NormalizeMatrix(s.result.ItemFactors)
	s.normalizedItems.Store(&normalized)
	return normalized
}

type queryKind int

const (
	userRecsQuery queryKind = iota
	itemRecsQuery
	similarUsersQuery
)

func (kind queryKind) String() string {
	switch kind {
	case userRecsQuery:
		return "user_recs"
	case itemRecsQuery:
		return "item_recs"
	default:
		return "similar_users"
	}
}

type queryKey struct {
	generation uint64
	kind       queryKind
	index      int32
	count      int
}

// Recommender trains latent factors on user-item feedback and answers queries over them.
// Fit must not run concurrently with itself. Queries may run concurrently with each other
// and with Fit: each query reads exactly one fitted snapshot.
type Recommender struct {
	config     config.Config
	backend    cf.Backend
	state      atomic.Pointer[snapshot]
	generation atomic.Uint64
	cache      *ttlcache.Cache[queryKey, any]
}

func New(opts ...Option) *Recommender {
	r := &Recommender{config: *config.GetDefaultConfig()}
	for _, opt := range opts {
		opt(r)
	}
	if r.config.QueryCache.Size > 0 {
		r.cache = ttlcache.New[queryKey, any](
			ttlcache.WithTTL[queryKey, any](r.config.QueryCache.TTL),
			ttlcache.WithCapacity[queryKey, any](r.config.QueryCache.Size),
		)
	}
	return r
}

func (r *Recommender) params() model.Params {
	return model.Params{
		model.Lr:          float32(r.config.Lr),
		model.Reg:         float32(r.config.Reg),
		model.Alpha:       float32(r.config.Alpha),
		model.InitStdDev:  float32(r.config.InitStdDev),
		model.RandomState: r.config.RandomState,
	}
}

// Fit trains the recommender. The validation set is optional and only used to report
// progress. A failed fit leaves the previous state untouched.
func (r *Recommender) Fit(ctx context.Context, trainSet, validationSet []dataset.Feedback) error {
	start := time.Now()
	if err := r.fit(ctx, trainSet, validationSet); err != nil {
		FitTotal.WithLabelValues("failed").Inc()
		return errors.Trace(err)
	}
	FitTotal.WithLabelValues("succeed").Inc()
	FitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

func (r *Recommender) fit(ctx context.Context, trainSet, validationSet []dataset.Feedback) error {
	if err := r.config.Validate(); err != nil {
		return errors.Trace(err)
	}
	train, err := dataset.Build(trainSet, validationSet)
	if err != nil {
		return errors.Trace(err)
	}

	verbose := validationSet != nil
	if r.config.Verbose != nil {
		verbose = *r.config.Verbose
	}
	loss := cf.RealL2
	if train.Mode == dataset.Implicit {
		loss = cf.OneClassL2
	}
	fitConfig := cf.NewFitConfig().
		SetLoss(loss).
		SetFactors(r.config.Factors).
		SetEpochs(r.config.Epochs).
		SetVerbose(verbose).
		SetJobs(r.config.Jobs)
	backend := r.backend
	if backend == nil {
		backend = cf.NewFactorization(r.params())
	}
	shape := cf.Shape{Users: train.CountUsers(), Items: train.CountItems()}
	result, err := backend.Fit(ctx, train.Train, train.Validation, shape, fitConfig)
	if err != nil {
		return errors.Trace(err)
	}
	if err = checkResult(result, shape, fitConfig.Factors); err != nil {
		return errors.Trace(err)
	}

	r.state.Store(&snapshot{
		generation: r.generation.Inc(),
		train:      train,
		result:     result,
	})
	if r.cache != nil {
		r.cache.DeleteAll()
	}
	log.Logger().Info("fit recommender",
		zap.Stringer("mode", train.Mode),
		zap.Int("n_users", shape.Users),
		zap.Int("n_items", shape.Items),
		zap.Int("n_feedback", train.Train.Len()),
		zap.Float32("global_mean", result.Bias))
	return nil
}

// checkResult requires one factor row per user and per item, each with the configured length.
func checkResult(result *cf.Result, shape cf.Shape, factors int) error {
	if result == nil {
		return errors.NotValidf("nil factorization result")
	}
	if len(result.UserFactors) != shape.Users {
		return errors.NotValidf("%d user factors for %d users", len(result.UserFactors), shape.Users)
	}
	if len(result.ItemFactors) != shape.Items {
		return errors.NotValidf("%d item factors for %d items", len(result.ItemFactors), shape.Items)
	}
	for _, row := range result.UserFactors {
		if len(row) != factors {
			return errors.NotValidf("user factor of length %d, expect %d", len(row), factors)
		}
	}
	for _, row := range result.ItemFactors {
		if len(row) != factors {
			return errors.NotValidf("item factor of length %d, expect %d", len(row), factors)
		}
	}
	return nil
}

func (r *Recommender) snapshot() (*snapshot, error) {
	s := r.state.Load()
	if s == nil {
		return nil, errors.Trace(ErrNotFit)
	}
	return s, nil
}

// Predict scores user-item pairs in order. Pairs with an unseen user or item get the global
// mean. Other scores are clamped to the range of training ratings.
func (r *Recommender) Predict(pairs []dataset.Feedback) ([]float32, error) {
	s, err := r.snapshot()
	if err != nil {
		return nil, errors.Trace(err)
	}
	scores := make([]float32, len(pairs))
	for i, pair := range pairs {
		user := s.train.UserIndex.Ref(pair.UserId)
		item := s.train.ItemIndex.Ref(pair.ItemId)
		if !user.IsKnown() || !item.IsKnown() {
			scores[i] = s.result.Bias
			continue
		}
		scores[i] = s.train.Range.Clamp(s.result.Predict(user, item))
	}
	return scores, nil
}

// UserRecs recommends items a user has not interacted with, best first. Candidates are cut to
// count plus the number of rated items before rated items are removed, so fewer than count
// items may be returned. An unseen user gets no recommendations.
func (r *Recommender) UserRecs(userId any, count int) ([]ItemScore, error) {
	s, err := r.snapshot()
	if err != nil {
		return nil, errors.Trace(err)
	}
	QueryTotal.WithLabelValues(userRecsQuery.String()).Inc()
	userIndex, ok := s.train.UserIndex.Lookup(userId)
	if !ok {
		return []ItemScore{}, nil
	}
	key := queryKey{generation: s.generation, kind: userRecsQuery, index: userIndex, count: count}
	if recs, ok := r.cached(key); ok {
		return slices.Clone(recs.([]ItemScore)), nil
	}

	rated := s.train.Rated(userIndex)
	limit := All
	if count >= 0 {
		limit = count + rated.Cardinality()
	}
	userFactor := s.result.UserFactors[userIndex]
	candidates := rank(s.train.CountItems(), limit, func(itemIndex int32) float32 {
		return floats.Dot(userFactor, s.result.ItemFactors[itemIndex])
	})
	recs := make([]ItemScore, 0, len(candidates))
	for _, c := range candidates {
		if rated.Contains(c.index) {
			continue
		}
		itemId, _ := s.train.ItemIndex.Id(c.index)
		recs = append(recs, ItemScore{ItemId: itemId, Score: s.train.Range.Clamp(c.score)})
	}
	r.store(key, recs)
	return slices.Clone(recs), nil
}

// ItemRecs finds the items most similar to an item by cosine similarity, best first.
func (r *Recommender) ItemRecs(itemId any, count int) ([]ItemScore, error) {
	s, err := r.snapshot()
	if err != nil {
		return nil, errors.Trace(err)
	}
	QueryTotal.WithLabelValues(itemRecsQuery.String()).Inc()
	itemIndex, ok := s.train.ItemIndex.Lookup(itemId)
	if !ok {
		return []ItemScore{}, nil
	}
	key := queryKey{generation: s.generation, kind: itemRecsQuery, index: itemIndex, count: count}
	if recs, ok := r.cached(key); ok {
		return slices.Clone(recs.([]ItemScore)), nil
	}

	candidates := similar(s.normalizedItemFactors(), itemIndex, count)
	recs := make([]ItemScore, len(candidates))
	for i, c := range candidates {
		id, _ := s.train.ItemIndex.Id(c.index)
		recs[i] = ItemScore{ItemId: id, Score: c.score}
	}
	r.store(key, recs)
	return slices.Clone(recs), nil
}

// SimilarUsers finds the users most similar to a user by cosine similarity, best first.
func (r *Recommender) SimilarUsers(userId any, count int) ([]UserScore, error) {
	s, err := r.snapshot()
	if err != nil {
		return nil, errors.Trace(err)
	}
	QueryTotal.WithLabelValues(similarUsersQuery.String()).Inc()
	userIndex, ok := s.train.UserIndex.Lookup(userId)
	if !ok {
		return []UserScore{}, nil
	}
	key := queryKey{generation: s.generation, kind: similarUsersQuery, index: userIndex, count: count}
	if users, ok := r.cached(key); ok {
		return slices.Clone(users.([]UserScore)), nil
	}

	candidates := similar(s.normalizedUserFactors(), userIndex, count)
	users := make([]UserScore, len(candidates))
	for i, c := range candidates {
		id, _ := s.train.UserIndex.Id(c.index)
		users[i] = UserScore{UserId: id, Score: c.score}
	}
	r.store(key, users)
	return slices.Clone(users), nil
}

// similar ranks rows of normalized factors against one row. One extra slot is kept for the
// row itself, which is then removed.
func similar(normalized [][]float32, index int32, count int) []candidate {
	limit := All
	if count >= 0 {
		limit = count + 1
	}
	query := normalized[index]
	candidates := rank(len(normalized), limit, func(i int32) float32 {
		return floats.Dot(query, normalized[i])
	})
	return slices.DeleteFunc(candidates, func(c candidate) bool {
		return c.index == index
	})
}

func (r *Recommender) cached(key queryKey) (any, bool) {
	if r.cache == nil {
		return nil, false
	}
	item := r.cache.Get(key)
	if item == nil {
		return nil, false
	}
	QueryCacheHitTotal.WithLabelValues(key.kind.String()).Inc()
	return item.Value(), true
}

func (r *Recommender) store(key queryKey, value any) {
	if r.cache != nil {
		r.cache.Set(key, value, ttlcache.DefaultTTL)
	}
}

// UserFactors returns a copy of the factors of a user, or nil if the user is unseen.
func (r *Recommender) UserFactors(userId any) []float32 {
	s := r.state.Load()
	if s == nil {
		return nil
	}
	userIndex, ok := s.train.UserIndex.Lookup(userId)
	if !ok {
		return nil
	}
	return slices.Clone(s.result.UserFactors[userIndex])
}

// ItemFactors returns a copy of the factors of an item, or nil if the item is unseen.
func (r *Recommender) ItemFactors(itemId any) []float32 {
	s := r.state.Load()
	if s == nil {
		return nil
	}
	itemIndex, ok := s.train.ItemIndex.Lookup(itemId)
	if !ok {
		return nil
	}
	return slices.Clone(s.result.ItemFactors[itemIndex])
}

// GlobalMean is the prediction for unseen users and items. It is 0 for implicit feedback.
func (r *Recommender) GlobalMean() float32 {
	s := r.state.Load()
	if s == nil {
		return 0
	}
	return s.result.Bias
}

// UserIds returns users in the order they first appeared in the training set.
func (r *Recommender) UserIds() []any {
	s := r.state.Load()
	if s == nil {
		return nil
	}
	return s.train.UserIndex.Ids()
}

// ItemIds returns items in the order they first appeared in the training set.
func (r *Recommender) ItemIds() []any {
	s := r.state.Load()
	if s == nil {
		return nil
	}
	return s.train.ItemIndex.Ids()
}
