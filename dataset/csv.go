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
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// ReadLines parses the fields of each line of a csv file. The separator may span several
// characters (e.g. "::"). Parsing stops early if the handler returns false.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	sepRunes := []rune(sep)
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		line := []rune(sc.Text())
		// start of line
		if quoted {
			builder.WriteString("\r\n")
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if !quoted && hasRunePrefix(line[i:], sepRunes) {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
				i += len(sepRunes) - 1
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if !handler(lineCount, fields) {
				return nil
			}
			fields = []string{}
		}
		lineCount++
	}
	return sc.Err()
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) == 0 || len(s) < len(prefix) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ReadCSV reads feedback from lines of "user<sep>item[<sep>rating]". Numeric ratings are
// parsed into floats; other ratings are kept as strings and rejected later by validation.
// An empty or absent rating column means no rating.
func ReadCSV(r io.Reader, sep string, header bool) ([]Feedback, error) {
	var (
		feedback []Feedback
		err      error
	)
	readErr := ReadLines(bufio.NewScanner(r), sep, func(i int, fields []string) bool {
		if header && i == 0 {
			return true
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			return true
		}
		if len(fields) < 2 {
			err = errors.Errorf("line %d: expect at least 2 fields but got %d", i+1, len(fields))
			return false
		}
		f := Feedback{UserId: fields[0], ItemId: fields[1]}
		if len(fields) > 2 && fields[2] != "" {
			if rating, parseErr := strconv.ParseFloat(strings.TrimSpace(fields[2]), 32); parseErr == nil {
				f.Rating = rating
			} else {
				f.Rating = fields[2]
			}
		}
		feedback = append(feedback, f)
		return true
	})
	if readErr != nil {
		return nil, errors.Trace(readErr)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return feedback, nil
}
