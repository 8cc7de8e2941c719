// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package extsort

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// sliceSource replays records, then returns err (or io.EOF when err is nil).
type sliceSource struct {
	records []string
	pos     int
	err     error
	reads   int
}

func (s *sliceSource) readRecord() (string, error) {
	s.reads++
	if s.pos >= len(s.records) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

type sliceSink struct {
	records []string
	writes  int
	err     error
}

func (s *sliceSink) writeRecords(records []string) error {
	s.writes++
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

// writeSource writes lines, each terminated by a newline, to dir/name.
func writeSource(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

// readLines returns the lines of path; every line must be newline terminated.
func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if len(data) == 0 {
		return []string{}
	}
	require.Equal(t, byte('\n'), data[len(data)-1], "file %s must end with a newline", path)
	return strings.Split(string(data[:len(data)-1]), "\n")
}

// filesWithPrefix lists the files in dir whose names start with prefix.
func filesWithPrefix(t *testing.T, dir, prefix string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	return names
}

// keyAndSeq splits a "key, seq" test record.
func keyAndSeq(t *testing.T, record string) (int, int) {
	t.Helper()
	k, s, ok := strings.Cut(record, ", ")
	require.True(t, ok, "malformed record %q", record)
	key, err := strconv.Atoi(k)
	require.NoError(t, err)
	seq, err := strconv.Atoi(s)
	require.NoError(t, err)
	return key, seq
}

// byLeadingInt compares records by the integer before the first comma.
func byLeadingInt(a, b string) int {
	ka, _, _ := strings.Cut(a, ",")
	kb, _, _ := strings.Cut(b, ",")
	x, _ := strconv.Atoi(strings.TrimSpace(ka))
	y, _ := strconv.Atoi(strings.TrimSpace(kb))
	return x - y
}

type progressLog struct {
	lines []string
}

func (p *progressLog) add(line string) {
	p.lines = append(p.lines, line)
}
