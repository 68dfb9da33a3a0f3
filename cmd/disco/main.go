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
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/gorse-io/disco/cmd/version"
	"github.com/gorse-io/disco/common/log"
	"github.com/gorse-io/disco/config"
	"github.com/gorse-io/disco/dataset"
	"github.com/gorse-io/disco/recommend"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "disco",
		Short:         "Recommendations from user-item feedback with collaborative filtering.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug, _ := cmd.Flags().GetBool("debug")
			log.SetLogger(cmd.Flags(), debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				_, err := fmt.Fprint(cmd.OutOrStdout(), version.BuildInfo())
				return err
			}
			return cmd.Help()
		},
	}
	flags := rootCommand.PersistentFlags()
	log.AddFlags(flags)
	flags.BoolP("version", "v", false, "disco version")
	flags.StringP("config", "c", "", "configuration file path")
	flags.Bool("movielens", false, "train on the MovieLens 100k dataset")
	flags.StringP("input", "i", "", "feedback file (csv, tsv or jsonl)")
	flags.String("sep", ",", "field separator of csv files")
	flags.Bool("header", false, "skip the first line of csv files")
	flags.Int("factors", 8, "number of latent factors")
	flags.Int("epochs", 20, "number of training epochs")
	flags.Bool("verbose", false, "log training progress")
	flags.IntP("count", "n", recommend.DefaultCount, "number of results")
	flags.Bool("all", false, "return all results")

	rootCommand.AddCommand(
		newUserRecsCommand(),
		newItemRecsCommand(),
		newSimilarUsersCommand(),
		newPredictCommand(),
		newEvaluateCommand(),
	)
	return rootCommand
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

// loadFeedback reads feedback from MovieLens or an input file. Files ending in .jsonl or .json
// hold one JSON object per line and files ending in .tsv are tab separated.
func loadFeedback(cmd *cobra.Command) ([]dataset.Feedback, error) {
	flags := cmd.Flags()
	if movielens, _ := flags.GetBool("movielens"); movielens {
		return dataset.LoadMovieLens(cmd.Context())
	}
	path, _ := flags.GetString("input")
	if path == "" {
		return nil, errors.New("either --movielens or --input is required")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	sep, _ := flags.GetString("sep")
	header, _ := flags.GetBool("header")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".json":
		return dataset.ReadJSONLines(file)
	case ".tsv":
		if !flags.Changed("sep") {
			sep = "\t"
		}
	}
	return dataset.ReadCSV(file, sep, header)
}

// newRecommender applies command line flags on top of the configuration file.
func newRecommender(cmd *cobra.Command) (*recommend.Recommender, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	opts := []recommend.Option{recommend.WithConfig(conf)}
	if flags.Changed("factors") {
		factors, _ := flags.GetInt("factors")
		opts = append(opts, recommend.WithFactors(factors))
	}
	if flags.Changed("epochs") {
		epochs, _ := flags.GetInt("epochs")
		opts = append(opts, recommend.WithEpochs(epochs))
	}
	if flags.Changed("verbose") {
		verbose, _ := flags.GetBool("verbose")
		opts = append(opts, recommend.WithVerbose(verbose))
	}
	return recommend.New(opts...), nil
}

// fitRecommender loads feedback and trains a recommender on all of it.
func fitRecommender(cmd *cobra.Command) (*recommend.Recommender, error) {
	feedback, err := loadFeedback(cmd)
	if err != nil {
		return nil, errors.Trace(err)
	}
	r, err := newRecommender(cmd)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = r.Fit(cmd.Context(), feedback, nil); err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

func count(cmd *cobra.Command) int {
	if all, _ := cmd.Flags().GetBool("all"); all {
		return recommend.All
	}
	n, _ := cmd.Flags().GetInt("count")
	return n
}

// resolveId maps a command line argument to a known id. Ids keep the type they were loaded
// with, so MovieLens users are integers while ids from files are strings.
func resolveId(ids []any, arg string) any {
	for _, id := range ids {
		if fmt.Sprint(id) == arg {
			return id
		}
	}
	return arg
}
