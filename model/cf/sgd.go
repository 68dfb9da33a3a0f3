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

	"github.com/chewxy/math32"
	"github.com/gorse-io/disco/common/floats"
	"github.com/gorse-io/disco/common/log"
	"github.com/gorse-io/disco/dataset"
	"github.com/gorse-io/disco/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// SGD fits explicit ratings by minimizing the regularized squared error
//
//	\sum_{(u,i)} (r_{ui} - p_u^T q_i)^2 + \lambda (|p_u|^2 + |q_i|^2)
//
// with stochastic gradient descent. The bias is the mean rating and factors start around
// sqrt(|bias|/k), so p_u^T q_i alone estimates a rating.
type SGD struct {
	model.BaseModel
	// Hyper parameters
	lr         float32
	reg        float32
	initStdDev float32
}

// NewSGD creates a SGD model.
func NewSGD(params model.Params) *SGD {
	sgd := new(SGD)
	sgd.SetParams(params)
	return sgd
}

// SetParams sets hyper-parameters of the SGD model.
func (sgd *SGD) SetParams(params model.Params) {
	sgd.BaseModel.SetParams(params)
	sgd.lr = sgd.Params.GetFloat32(model.Lr, 0.01)
	sgd.reg = sgd.Params.GetFloat32(model.Reg, 0.05)
	sgd.initStdDev = sgd.Params.GetFloat32(model.InitStdDev, 0.1)
}

// Fit the SGD model. Its task complexity is O(epochs * |train| * factors).
func (sgd *SGD) Fit(ctx context.Context, train, validation *dataset.Matrix, shape Shape, config *FitConfig) (*Result, error) {
	log.Logger().Info("fit sgd",
		zap.Int("train_set_size", train.Len()),
		zap.Int("validation_set_size", validation.Len()),
		zap.Int("n_users", shape.Users),
		zap.Int("n_items", shape.Items),
		zap.Int("factors", config.Factors),
		zap.Int("epochs", config.Epochs))
	entries := train.Entries()
	if len(entries) == 0 {
		return nil, errors.New("empty training matrix")
	}

	// Initialize parameters
	bias := float32(stat.Mean(lo.Map(entries, func(e dataset.Entry, _ int) float64 {
		return float64(e.Score)
	}), nil))
	scale := math32.Sqrt(math32.Abs(bias) / float32(config.Factors))
	sign := lo.Ternary[float32](bias < 0, -1, 1)
	rng := sgd.GetRandomGenerator()
	result := &Result{
		Bias:        bias,
		UserFactors: rng.NormalMatrix(shape.Users, config.Factors, scale, sgd.initStdDev),
		ItemFactors: rng.NormalMatrix(shape.Items, config.Factors, sign*scale, sgd.initStdDev),
	}

	// Training
	userFactor := make([]float32, config.Factors)
	decay := 1 - sgd.lr*sgd.reg
	for epoch := 1; epoch <= config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		fitStart := time.Now()
		var cost float32
		for _, j := range rng.Perm(len(entries)) {
			e := entries[j]
			u, _ := e.User.Index()
			i, _ := e.Item.Index()
			p, q := result.UserFactors[u], result.ItemFactors[i]
			diff := e.Score - floats.Dot(p, q)
			cost += diff * diff
			copy(userFactor, p)
			// p_u <- p_u + lr (e_{ui} q_i - reg p_u)
			floats.MulConst(p, decay)
			floats.MulConstAdd(q, sgd.lr*diff, p)
			// q_i <- q_i + lr (e_{ui} p_u - reg q_i)
			floats.MulConst(q, decay)
			floats.MulConstAdd(userFactor, sgd.lr*diff, q)
		}
		if config.Verbose {
			fields := []zap.Field{
				zap.String("fit_time", time.Since(fitStart).String()),
				zap.Float32("train_rmse", math32.Sqrt(cost/float32(len(entries)))),
			}
			if validation != nil {
				fields = append(fields, zap.Float32("valid_rmse", evaluate(result, validation)))
			}
			log.Logger().Info(fmt.Sprintf("fit sgd %v/%v", epoch, config.Epochs), fields...)
		}
	}
	log.Logger().Info("fit sgd complete", zap.Float32("bias", bias))
	return result, nil
}
