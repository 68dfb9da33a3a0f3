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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/disco/common/log"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// DataDir is where downloaded datasets are cached. It defaults to ~/.disco.
var DataDir string

func init() {
	if dir := os.Getenv("DISCO_DATA_DIR"); dir != "" {
		DataDir = dir
	} else if home, err := os.UserHomeDir(); err == nil {
		DataDir = filepath.Join(home, ".disco")
	}
}

type remoteFile struct {
	name     string
	url      string
	checksum string
}

var (
	movieLensItems = remoteFile{
		name:     "ml-100k/u.item",
		url:      "https://files.grouplens.org/datasets/movielens/ml-100k/u.item",
		checksum: "553841ebc7de3a0fd0d6b62a204ea30c1e651aacfb2814c7a6584ac52f2c5701",
	}
	movieLensRatings = remoteFile{
		name:     "ml-100k/u.data",
		url:      "https://files.grouplens.org/datasets/movielens/ml-100k/u.data",
		checksum: "06416e597f82b7342361e41163890c81036900f418ad91315590814211dca490",
	}
)

const downloadTries = 3

// LoadMovieLens loads the MovieLens 100k ratings. Users are integers, items are movie titles
// and ratings are integers from 1 to 5. Files are downloaded once and cached in DataDir.
func LoadMovieLens(ctx context.Context) ([]Feedback, error) {
	itemPath, err := download(ctx, movieLensItems)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dataPath, err := download(ctx, movieLensRatings)
	if err != nil {
		return nil, errors.Trace(err)
	}

	itemFile, err := os.ReadFile(itemPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	movies, err := parseMovieLensItems(itemFile)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer dataFile.Close()
	return parseMovieLensRatings(dataFile, movies)
}

// parseMovieLensItems maps movie ids to titles. Titles are stored in ISO-8859-1.
func parseMovieLensItems(raw []byte) (map[string]string, error) {
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, errors.Trace(err)
	}
	movies := make(map[string]string)
	for _, line := range strings.Split(string(text), "\n") {
		fields := strings.Split(line, "|")
		if len(fields) >= 2 {
			movies[fields[0]] = fields[1]
		}
	}
	return movies, nil
}

func parseMovieLensRatings(r io.Reader, movies map[string]string) ([]Feedback, error) {
	var feedback []Feedback
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, errors.Errorf("invalid line: %v", line)
		}
		userId, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Trace(err)
		}
		rating, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Trace(err)
		}
		feedback = append(feedback, Feedback{
			UserId: userId,
			ItemId: movies[fields[1]],
			Rating: rating,
		})
	}
	return feedback, errors.Trace(scanner.Err())
}

// download fetches a file into DataDir unless it is cached already.
func download(ctx context.Context, file remoteFile) (string, error) {
	if DataDir == "" {
		return "", errors.New("no data directory")
	}
	dest := filepath.Join(DataDir, file.name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return "", errors.Trace(err)
	}

	log.Logger().Info("downloading dataset", zap.String("url", file.url))
	contents, err := backoff.Retry(ctx, func() ([]byte, error) {
		return fetch(ctx, file.url)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(downloadTries))
	if err != nil {
		return "", errors.Annotatef(err, "failed to download %v", file.url)
	}

	if err := verifyChecksum(contents, file.checksum); err != nil {
		return "", errors.Trace(err)
	}
	if err := os.WriteFile(dest, contents, 0644); err != nil {
		return "", errors.Trace(err)
	}
	log.Logger().Info("download complete", zap.String("path", dest))
	return dest, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(errors.Trace(err))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.Errorf("unexpected status %v", resp.Status)
	} else if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(errors.Errorf("unexpected status %v", resp.Status))
	}
	bar := progressbar.DefaultBytes(resp.ContentLength, "downloading "+filepath.Base(url))
	reader := progressbar.NewReader(resp.Body, bar)
	contents, err := io.ReadAll(&reader)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return contents, nil
}

func verifyChecksum(contents []byte, expected string) error {
	sum := sha256.Sum256(contents)
	if checksum := hex.EncodeToString(sum[:]); checksum != expected {
		return errors.Errorf("bad checksum: %v", checksum)
	}
	return nil
}
