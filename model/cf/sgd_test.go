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
	"testing"

	"github.com/gorse-io/disco/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSGD(t *testing.T) {
	train := newBlockMatrix(func(u, i int32) float32 { return float32(u+i)/2 + 1 })
	shape := Shape{Users: 4, Items: 4}
	config := NewFitConfig().SetFactors(4).SetEpochs(0)
	initial, err := NewSGD(nil).Fit(context.Background(), train, nil, shape, config)
	require.NoError(t, err)
	// bias is the mean rating
	assert.InDelta(t, 2.5, initial.Bias, 1e-5)

	validation := dataset.NewMatrix(2)
	validation.Push(dataset.Known(0), dataset.Unknown, 5)
	validation.Push(dataset.Unknown, dataset.Known(0), 5)
	fitted, err := NewSGD(nil).Fit(context.Background(), train, validation, shape,
		config.SetEpochs(500).SetVerbose(true))
	require.NoError(t, err)
	assert.Less(t, evaluate(fitted, train), evaluate(initial, train))
	// unknown references fall back to the bias
	assert.InDelta(t, 2.5, evaluate(fitted, validation), 1e-5)
}

func TestSGDCancel(t *testing.T) {
	train := newBlockMatrix(func(u, i int32) float32 { return 1 })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSGD(nil).Fit(ctx, train, nil, Shape{Users: 4, Items: 4}, NewFitConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
