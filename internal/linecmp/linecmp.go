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

// Package linecmp builds comparators for text records.
//
// Every comparator returned here is a total order: values that fail to parse
// as numbers sort after all valid numbers and are ordered lexically among
// themselves.
package linecmp

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Func compares two records. It has the same shape as extsort.Compare.
type Func = func(a, b string) int

// Kind selects how a key is compared.
type Kind int

const (
	KindLexical Kind = iota
	KindInteger
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindLexical:
		return "lexical"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts "lexical", "integer" or "float" (and "" for lexical).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lexical", "text", "string":
		return KindLexical, nil
	case "integer", "int", "numeric":
		return KindInteger, nil
	case "float", "number":
		return KindFloat, nil
	default:
		return 0, fmt.Errorf("unknown key kind %q", s)
	}
}

// Lexical compares records byte by byte.
func Lexical(a, b string) int {
	return strings.Compare(a, b)
}

// Numeric compares records by their leading integer, as in "42, rest of line".
func Numeric(a, b string) int {
	return compareInts(leadingInt(a), leadingInt(b))
}

// Field compares records by their n-th field, counting from 1. Fields are
// separated by sep; n == 0 or an empty sep uses the whole record. Missing
// fields compare as empty strings.
func Field(sep string, n int, kind Kind) Func {
	compare := keyCompare(kind)
	if sep == "" || n <= 0 {
		return compare
	}
	return func(a, b string) int {
		return compare(field(a, sep, n), field(b, sep, n))
	}
}

// IgnoreCase wraps c so that records are compared after lower-casing both with strings.ToLower.
func IgnoreCase(c Func) Func {
	return func(a, b string) int {
		return c(strings.ToLower(a), strings.ToLower(b))
	}
}

// Reverse inverts c.
func Reverse(c Func) Func {
	return func(a, b string) int {
		return c(b, a)
	}
}

func keyCompare(kind Kind) Func {
	switch kind {
	case KindInteger:
		return func(a, b string) int {
			return compareInts(parseInt(a), parseInt(b))
		}
	case KindFloat:
		return func(a, b string) int {
			return compareFloats(parseFloat(a), parseFloat(b))
		}
	default:
		return Lexical
	}
}

// field returns the n-th (1-based) sep-separated field of s without allocating.
func field(s, sep string, n int) string {
	for i := 1; i < n; i++ {
		_, rest, ok := strings.Cut(s, sep)
		if !ok {
			return ""
		}
		s = rest
	}
	f, _, _ := strings.Cut(s, sep)
	return f
}

type parsedInt struct {
	raw   string
	value int64
	ok    bool
}

type parsedFloat struct {
	raw   string
	value float64
	ok    bool
}

func parseInt(s string) parsedInt {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return parsedInt{raw: s, value: v, ok: err == nil}
}

func parseFloat(s string) parsedFloat {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return parsedFloat{raw: s, value: v, ok: err == nil}
}

// leadingInt parses an optionally signed run of digits at the start of s,
// after any leading blanks.
func leadingInt(s string) parsedInt {
	t := strings.TrimLeft(s, " \t")
	end := 0
	if end < len(t) && (t[end] == '-' || t[end] == '+') {
		end++
	}
	digits := end
	for end < len(t) && t[end] >= '0' && t[end] <= '9' {
		end++
	}
	if end == digits {
		return parsedInt{raw: s}
	}
	v, err := strconv.ParseInt(t[:end], 10, 64)
	return parsedInt{raw: s, value: v, ok: err == nil}
}

func compareInts(a, b parsedInt) int {
	switch {
	case a.ok && b.ok:
		return cmp.Compare(a.value, b.value)
	case a.ok:
		return -1
	case b.ok:
		return 1
	default:
		return strings.Compare(a.raw, b.raw)
	}
}

func compareFloats(a, b parsedFloat) int {
	switch {
	case a.ok && b.ok:
		return cmp.Compare(a.value, b.value)
	case a.ok:
		return -1
	case b.ok:
		return 1
	default:
		return strings.Compare(a.raw, b.raw)
	}
}
