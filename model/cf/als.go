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

package cf

import (
	"context"
	"fmt"
	"time"

	"github.com/gorse-io/disco/common/floats"
	"github.com/gorse-io/disco/common/log"
	"github.com/gorse-io/disco/common/parallel"
	"github.com/gorse-io/disco/dataset"
	"github.com/gorse-io/disco/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ALS fits implicit feedback with element-wise alternating least squares (eALS). Observed
// entries have target 1 and weight 1; every unobserved entry has target 0 and weight Alpha.
// The bias is always 0.
type ALS struct {
	model.BaseModel
	// Hyper parameters
	initMean   float32
	initStdDev float32
	reg        float32
	weight     float32
}

// NewALS creates a eALS model.
func NewALS(params model.Params) *ALS {
	als := new(ALS)
	als.SetParams(params)
	return als
}

// SetParams sets hyper-parameters for the ALS model.
func (als *ALS) SetParams(params model.Params) {
	als.BaseModel.SetParams(params)
	als.initMean = als.Params.GetFloat32(model.InitMean, 0)
	als.initStdDev = als.Params.GetFloat32(model.InitStdDev, 0.1)
	als.reg = als.Params.GetFloat32(model.Reg, 0.06)
	als.weight = als.Params.GetFloat32(model.Alpha, 0.001)
}

// Fit the ALS model. Its task complexity is O(epochs * (|train| * factors + (users + items) * factors^2)).
func (als *ALS) Fit(ctx context.Context, train, validation *dataset.Matrix, shape Shape, config *FitConfig) (*Result, error) {
	log.Logger().Info("fit als",
		zap.Int("train_set_size", train.Len()),
		zap.Int("validation_set_size", validation.Len()),
		zap.Int("n_users", shape.Users),
		zap.Int("n_items", shape.Items),
		zap.Int("factors", config.Factors),
		zap.Int("epochs", config.Epochs))
	nFactors := config.Factors
	jobs := max(config.Jobs, 1)
	userFeedback, itemFeedback := adjacency(train, shape)

	// Initialize
	rng := als.GetRandomGenerator()
	result := &Result{
		UserFactors: rng.NormalMatrix(shape.Users, nFactors, als.initMean, als.initStdDev),
		ItemFactors: rng.NormalMatrix(shape.Items, nFactors, als.initMean, als.initStdDev),
	}
	// Create temporary matrix
	s := lo.Times(nFactors, func(int) []float32 { return make([]float32, nFactors) })
	userPredictions := make([][]float32, jobs)
	itemPredictions := make([][]float32, jobs)
	userRes := make([][]float32, jobs)
	itemRes := make([][]float32, jobs)
	for i := 0; i < jobs; i++ {
		userPredictions[i] = make([]float32, shape.Items)
		itemPredictions[i] = make([]float32, shape.Users)
		userRes[i] = make([]float32, shape.Items)
		itemRes[i] = make([]float32, shape.Users)
	}

	for ep := 1; ep <= config.Epochs; ep++ {
		fitStart := time.Now()
		// Update user factors
		// S^q <- \sum^N_{itemIndex=1} c_i q_i q_i^T
		gram(s, result.ItemFactors)
		err := parallel.Parallel(ctx, shape.Users, jobs, func(workerId, userIndex int) error {
			als.update(result.UserFactors[userIndex], result.ItemFactors, userFeedback[userIndex], s,
				userPredictions[workerId], userRes[workerId])
			return nil
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
		// Update item factors
		// S^p <- P^T P
		gram(s, result.UserFactors)
		err = parallel.Parallel(ctx, shape.Items, jobs, func(workerId, itemIndex int) error {
			als.update(result.ItemFactors[itemIndex], result.UserFactors, itemFeedback[itemIndex], s,
				itemPredictions[workerId], itemRes[workerId])
			return nil
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
		if config.Verbose {
			fields := []zap.Field{
				zap.String("fit_time", time.Since(fitStart).String()),
				zap.Float32("train_rmse", evaluate(result, train)),
			}
			if validation != nil {
				fields = append(fields, zap.Float32("valid_rmse", evaluate(result, validation)))
			}
			log.Logger().Info(fmt.Sprintf("fit als %v/%v", ep, config.Epochs), fields...)
		}
	}
	log.Logger().Info("fit als complete")
	return result, nil
}

// update solves the factor x of one row against the factors of the other side, one
// coordinate at a time. feedback lists the observed columns of the row, s is the Gram
// matrix of the other side, predictions and res are buffers indexed by column.
func (als *ALS) update(x []float32, other [][]float32, feedback []int32, s [][]float32, predictions, res []float32) {
	nFactors := len(x)
	for _, j := range feedback {
		predictions[j] = floats.Dot(x, other[j])
	}
	for f := 0; f < nFactors; f++ {
		// for j \in R do   \hat_{r}^f_j <- \hat_{r}_j - x_f y_{jf}
		for _, j := range feedback {
			res[j] = predictions[j] - x[f]*other[j][f]
		}
		// x_f <-
		a, b, c := float32(0), float32(0), float32(0)
		for _, j := range feedback {
			a += (1 - (1-als.weight)*res[j]) * other[j][f]
			c += (1 - als.weight) * other[j][f] * other[j][f]
		}
		for k := 0; k < nFactors; k++ {
			if k != f {
				b += als.weight * x[k] * s[k][f]
			}
		}
		x[f] = (a - b) / (c + als.weight*s[f][f] + als.reg)
		// for j \in R do   \hat_{r}_j <- \hat_{r}^f_j + x_f y_{jf}
		for _, j := range feedback {
			predictions[j] = res[j] + x[f]*other[j][f]
		}
	}
}

// gram computes s = X^T X.
func gram(s [][]float32, x [][]float32) {
	floats.MatZero(s)
	for _, row := range x {
		for i := range s {
			floats.MulConstAdd(row, row[i], s[i])
		}
	}
}

// adjacency lists the distinct observed items of each user and users of each item.
func adjacency(train *dataset.Matrix, shape Shape) ([][]int32, [][]int32) {
	userFeedback := make([][]int32, shape.Users)
	itemFeedback := make([][]int32, shape.Items)
	for _, e := range train.Entries() {
		u, _ := e.User.Index()
		i, _ := e.Item.Index()
		userFeedback[u] = append(userFeedback[u], i)
		itemFeedback[i] = append(itemFeedback[i], u)
	}
	for u := range userFeedback {
		userFeedback[u] = lo.Uniq(userFeedback[u])
	}
	for i := range itemFeedback {
		itemFeedback[i] = lo.Uniq(itemFeedback[i])
	}
	return userFeedback, itemFeedback
}
