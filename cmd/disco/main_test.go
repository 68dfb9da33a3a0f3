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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/disco/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ratings = `user,item,rating
u1,i1,5
u1,i2,3
u2,i1,4
u2,i3,2
u3,i2,1
u3,i3,5
u4,i1,2
u4,i4,4
`

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestUserRecs(t *testing.T) {
	path := writeFile(t, "ratings.csv", ratings)
	out, err := execute(t, "user-recs", "--input", path, "--header", "--epochs", "5", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "i3")
	assert.Contains(t, out, "i4")
	assert.NotContains(t, out, "i1 ")
	assert.NotContains(t, out, "i2 ")
}

func TestItemRecs(t *testing.T) {
	path := writeFile(t, "ratings.csv", ratings)
	out, err := execute(t, "item-recs", "--input", path, "--header", "--all", "i1")
	require.NoError(t, err)
	for _, item := range []string{"i2", "i3", "i4"} {
		assert.Contains(t, out, item)
	}
}

func TestSimilarUsers(t *testing.T) {
	path := writeFile(t, "ratings.tsv", strings.ReplaceAll(ratings, ",", "\t"))
	out, err := execute(t, "similar-users", "--input", path, "--header", "-n", "1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "u1 "))
}

func TestPredict(t *testing.T) {
	path := writeFile(t, "ratings.jsonl", `{"user_id": 1, "item_id": "a"}
{"user_id": 1, "item_id": "b"}
{"user_id": 2, "item_id": "b"}
`)
	out, err := execute(t, "predict", "--input", path, "1", "a", "3", "a")
	require.NoError(t, err)
	assert.Contains(t, out, "0.0000")

	_, err = execute(t, "predict", "--input", path, "1")
	assert.Error(t, err)
	_, err = execute(t, "predict", "--input", path, "1", "a", "2")
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	path := writeFile(t, "ratings.csv", ratings)
	out, err := execute(t, "evaluate", "--input", path, "--header", "--test-ratio", "0.25", "--verbose=false")
	require.NoError(t, err)
	assert.Contains(t, out, "explicit")
	assert.Contains(t, out, "rmse")

	_, err = execute(t, "evaluate", "--input", path, "--header", "--test-ratio", "0")
	assert.Error(t, err)
	for _, ratio := range []string{"1.5", "-0.5", "NaN"} {
		_, err = execute(t, "evaluate", "--input", path, "--header", "--test-ratio="+ratio)
		assert.ErrorContains(t, err, "test ratio", ratio)
	}
}

func TestMissingInput(t *testing.T) {
	_, err := execute(t, "user-recs", "u1")
	assert.Error(t, err)
	_, err = execute(t, "user-recs", "--input", filepath.Join(t.TempDir(), "missing.csv"), "u1")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version")
}

func TestResolveId(t *testing.T) {
	ids := []any{1, "2", 3.5}
	assert.Equal(t, 1, resolveId(ids, "1"))
	assert.Equal(t, "2", resolveId(ids, "2"))
	assert.Equal(t, 3.5, resolveId(ids, "3.5"))
	assert.Equal(t, "4", resolveId(ids, "4"))
}

func TestSplit(t *testing.T) {
	feedback := make([]dataset.Feedback, 10)
	for i := range feedback {
		feedback[i] = dataset.Feedback{UserId: i, ItemId: i}
	}
	train, test := split(feedback, 0.2, 0)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)
	assert.ElementsMatch(t, feedback, append(append([]dataset.Feedback{}, train...), test...))
	train2, test2 := split(feedback, 0.2, 0)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}
