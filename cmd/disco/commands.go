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
	"fmt"
	"math/rand"
	"time"

	"github.com/gorse-io/disco/common/log"
	"github.com/gorse-io/disco/dataset"
	"github.com/gorse-io/disco/model"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newUserRecsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "user-recs USER_ID...",
		Short: "Recommend items to users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := fitRecommender(cmd)
			if err != nil {
				return errors.Trace(err)
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("user_id", "item_id", "score")
			for _, arg := range args {
				userId := resolveId(r.UserIds(), arg)
				recs, err := r.UserRecs(userId, count(cmd))
				if err != nil {
					return errors.Trace(err)
				}
				for _, rec := range recs {
					if err = table.Append([]string{fmt.Sprint(userId), fmt.Sprint(rec.ItemId), formatScore(rec.Score)}); err != nil {
						return errors.Trace(err)
					}
				}
			}
			return table.Render()
		},
	}
}

func newItemRecsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "item-recs ITEM_ID...",
		Short: "Find similar items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := fitRecommender(cmd)
			if err != nil {
				return errors.Trace(err)
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("item_id", "similar_item_id", "similarity")
			for _, arg := range args {
				itemId := resolveId(r.ItemIds(), arg)
				recs, err := r.ItemRecs(itemId, count(cmd))
				if err != nil {
					return errors.Trace(err)
				}
				for _, rec := range recs {
					if err = table.Append([]string{fmt.Sprint(itemId), fmt.Sprint(rec.ItemId), formatScore(rec.Score)}); err != nil {
						return errors.Trace(err)
					}
				}
			}
			return table.Render()
		},
	}
}

func newSimilarUsersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "similar-users USER_ID...",
		Short: "Find similar users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := fitRecommender(cmd)
			if err != nil {
				return errors.Trace(err)
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("user_id", "similar_user_id", "similarity")
			for _, arg := range args {
				userId := resolveId(r.UserIds(), arg)
				users, err := r.SimilarUsers(userId, count(cmd))
				if err != nil {
					return errors.Trace(err)
				}
				for _, user := range users {
					if err = table.Append([]string{fmt.Sprint(userId), fmt.Sprint(user.UserId), formatScore(user.Score)}); err != nil {
						return errors.Trace(err)
					}
				}
			}
			return table.Render()
		},
	}
}

func newPredictCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "predict USER_ID ITEM_ID [USER_ID ITEM_ID]...",
		Short: "Predict scores of user-item pairs",
		Args: cobra.MatchAll(cobra.MinimumNArgs(2), func(cmd *cobra.Command, args []string) error {
			if len(args)%2 != 0 {
				return errors.Errorf("expect pairs of user and item but got %d arguments", len(args))
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := fitRecommender(cmd)
			if err != nil {
				return errors.Trace(err)
			}
			userIds, itemIds := r.UserIds(), r.ItemIds()
			pairs := lo.Map(lo.Chunk(args, 2), func(pair []string, _ int) dataset.Feedback {
				return dataset.Feedback{UserId: resolveId(userIds, pair[0]), ItemId: resolveId(itemIds, pair[1])}
			})
			scores, err := r.Predict(pairs)
			if err != nil {
				return errors.Trace(err)
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("user_id", "item_id", "score")
			for i, pair := range pairs {
				if err = table.Append([]string{fmt.Sprint(pair.UserId), fmt.Sprint(pair.ItemId), formatScore(scores[i])}); err != nil {
					return errors.Trace(err)
				}
			}
			return table.Render()
		},
	}
}

func newEvaluateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "evaluate",
		Short: "Hold out part of the feedback and report the RMSE of predictions on it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			feedback, err := loadFeedback(cmd)
			if err != nil {
				return errors.Trace(err)
			}
			testRatio, _ := cmd.Flags().GetFloat64("test-ratio")
			if !(testRatio >= 0 && testRatio <= 1) {
				return errors.NotValidf("test ratio %v outside [0, 1]", testRatio)
			}
			seed, _ := cmd.Flags().GetInt64("seed")
			trainSet, testSet := split(feedback, testRatio, seed)
			if len(testSet) == 0 {
				return errors.New("test set is empty")
			}
			r, err := newRecommender(cmd)
			if err != nil {
				return errors.Trace(err)
			}
			start := time.Now()
			if err = r.Fit(cmd.Context(), trainSet, testSet); err != nil {
				return errors.Trace(err)
			}
			fitTime := time.Since(start)
			predictions, err := r.Predict(testSet)
			if err != nil {
				return errors.Trace(err)
			}
			mode := dataset.DetectMode(trainSet)
			targets := lo.Map(testSet, func(f dataset.Feedback, _ int) float32 {
				if mode == dataset.Implicit {
					return 1
				}
				rating, _ := dataset.ParseRating(f.Rating)
				return rating
			})
			rmse, err := model.RMSE(predictions, targets)
			if err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("evaluate recommender",
				zap.Int("n_train", len(trainSet)),
				zap.Int("n_test", len(testSet)),
				zap.Float32("rmse", rmse))

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("metric", "value")
			rows := [][]string{
				{"mode", mode.String()},
				{"train_size", fmt.Sprint(len(trainSet))},
				{"test_size", fmt.Sprint(len(testSet))},
				{"global_mean", formatScore(r.GlobalMean())},
				{"rmse", formatScore(rmse)},
				{"fit_time", fitTime.String()},
			}
			for _, row := range rows {
				if err = table.Append(row); err != nil {
					return errors.Trace(err)
				}
			}
			return table.Render()
		},
	}
	command.Flags().Float64("test-ratio", 0.2, "ratio of feedback held out for testing")
	command.Flags().Int64("seed", 0, "random seed of the split")
	return command
}

// split shuffles feedback and holds out a ratio of it as the test set.
func split(feedback []dataset.Feedback, testRatio float64, seed int64) ([]dataset.Feedback, []dataset.Feedback) {
	rng := rand.New(rand.NewSource(seed))
	shuffled := make([]dataset.Feedback, len(feedback))
	for i, j := range rng.Perm(len(feedback)) {
		shuffled[i] = feedback[j]
	}
	testSize := int(float64(len(feedback)) * testRatio)
	trainSize := len(feedback) - testSize
	return shuffled[:trainSize], shuffled[trainSize:]
}

func formatScore(score float32) string {
	return fmt.Sprintf("%.4f", score)
}
