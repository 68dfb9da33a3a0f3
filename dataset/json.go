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
	"bufio"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/juju/errors"
)

// ReadJSONLines reads one feedback object per line, e.g.
//
//	{"user_id": 1, "item_id": "Star Wars (1977)", "rating": 5}
//
// Numbers are decoded as float64.
func ReadJSONLines(r io.Reader) ([]Feedback, error) {
	var feedback []Feedback
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineCount := 0
	for scanner.Scan() {
		lineCount++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var f Feedback
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			return nil, errors.Annotatef(err, "line %d", lineCount)
		}
		feedback = append(feedback, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return feedback, nil
}
