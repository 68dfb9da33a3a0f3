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

package model

import (
	"github.com/chewxy/math32"
	"github.com/juju/errors"
)

var ErrSizeMismatch = errors.New("size mismatch")

// RMSE is the root mean square error between actual and expected values.
func RMSE(act, exp []float32) (float32, error) {
	if len(act) != len(exp) {
		return 0, errors.Trace(ErrSizeMismatch)
	}
	if len(act) == 0 {
		return 0, nil
	}
	var sum float32
	for i := range act {
		diff := act[i] - exp[i]
		sum += diff * diff
	}
	return math32.Sqrt(sum / float32(len(act))), nil
}
