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

	"github.com/gorse-io/disco/common/floats"
	"github.com/gorse-io/disco/dataset"
	"github.com/gorse-io/disco/model"
	"github.com/juju/errors"
)

// Loss selects the objective minimized by a backend.
type Loss int

const (
	// RealL2 is the squared error over explicit ratings.
	RealL2 Loss = iota
	// OneClassL2 is the squared error over implicit feedback, where every unobserved entry
	// is a weighted zero.
	OneClassL2
)

func (loss Loss) String() string {
	switch loss {
	case RealL2:
		return "real_l2"
	case OneClassL2:
		return "one_class_l2"
	default:
		return "unknown"
	}
}

// Shape is the number of rows and columns of a training matrix.
type Shape struct {
	Users int
	Items int
}

type FitConfig struct {
	Loss    Loss
	Factors int
	Epochs  int
	Verbose bool
	Jobs    int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Loss:    RealL2,
		Factors: 8,
		Epochs:  20,
		Jobs:    1,
	}
}

func (config *FitConfig) SetLoss(loss Loss) *FitConfig {
	config.Loss = loss
	return config
}

func (config *FitConfig) SetFactors(factors int) *FitConfig {
	config.Factors = factors
	return config
}

func (config *FitConfig) SetEpochs(epochs int) *FitConfig {
	config.Epochs = epochs
	return config
}

func (config *FitConfig) SetVerbose(verbose bool) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

func (config *FitConfig) validate() error {
	if config.Factors < 1 {
		return errors.NotValidf("factors %d", config.Factors)
	}
	if config.Epochs < 0 {
		return errors.NotValidf("epochs %d", config.Epochs)
	}
	return nil
}

// Result is a fitted model: a global bias and a latent factor per user and per item.
type Result struct {
	Bias        float32
	UserFactors [][]float32
	ItemFactors [][]float32
}

// Predict scores a pair of references. Unknown users or items get the bias.
func (r *Result) Predict(user, item dataset.Ref) float32 {
	u, userKnown := user.Index()
	i, itemKnown := item.Index()
	if !userKnown || !itemKnown {
		return r.Bias
	}
	return floats.Dot(r.UserFactors[u], r.ItemFactors[i])
}

// Backend fits latent factors to a training matrix. The validation matrix is optional and
// only used for reporting.
type Backend interface {
	Fit(ctx context.Context, train, validation *dataset.Matrix, shape Shape, config *FitConfig) (*Result, error)
}

// Factorization is the default backend. It runs SGD for squared loss on explicit ratings
// and element-wise ALS for one-class loss on implicit feedback.
//
// Hyper-parameters:
//
//	Lr          - The learning rate of SGD. Default is 0.01.
//	Reg         - The regularization strength. Default is 0.05 for SGD and 0.06 for ALS.
//	InitStdDev  - The standard deviation of initial factors. Default is 0.1.
//	Alpha       - The weight of unobserved entries in ALS. Default is 0.001.
//	RandomState - The random seed. Default is 0.
type Factorization struct {
	params model.Params
}

func NewFactorization(params model.Params) *Factorization {
	if params == nil {
		params = model.Params{}
	}
	return &Factorization{params: params}
}

func (f *Factorization) Fit(ctx context.Context, train, validation *dataset.Matrix, shape Shape, config *FitConfig) (*Result, error) {
	if config == nil {
		config = NewFitConfig()
	}
	if err := config.validate(); err != nil {
		return nil, errors.Trace(err)
	}
	switch config.Loss {
	case RealL2:
		return NewSGD(f.params).Fit(ctx, train, validation, shape, config)
	case OneClassL2:
		return NewALS(f.params).Fit(ctx, train, validation, shape, config)
	default:
		return nil, errors.NotSupportedf("loss %v", config.Loss)
	}
}

// evaluate returns the root mean square error of a result over a matrix.
func evaluate(r *Result, m *dataset.Matrix) float32 {
	if m.Len() == 0 {
		return 0
	}
	predictions := make([]float32, m.Len())
	for i, e := range m.Entries() {
		predictions[i] = r.Predict(e.User, e.Item)
	}
	rmse, _ := model.RMSE(predictions, m.Scores())
	return rmse
}
