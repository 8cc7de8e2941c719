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

package linecmp

import "fmt"

// KeyOptions describes a comparator the way command line flags do.
type KeyOptions struct {
	// Separator splits a record into fields. Empty means the whole record is the key.
	Separator string
	// Field is the 1-based field used as key; 0 means the whole record.
	Field int
	// Kind selects lexical, integer or float comparison.
	Kind Kind
	// IgnoreCase folds case before a lexical comparison.
	IgnoreCase bool
	// Reverse sorts descending.
	Reverse bool
}

// FromOptions builds the comparator described by opts.
func FromOptions(opts KeyOptions) (Func, error) {
	if opts.Field < 0 {
		return nil, fmt.Errorf("field %d must not be negative", opts.Field)
	}
	if opts.Field > 0 && opts.Separator == "" {
		return nil, fmt.Errorf("field %d needs a separator", opts.Field)
	}
	if opts.IgnoreCase && opts.Kind != KindLexical {
		return nil, fmt.Errorf("ignore case only applies to lexical keys, not %s", opts.Kind)
	}

	var c Func
	if opts.Kind == KindInteger && opts.Field == 0 {
		c = Numeric
	} else {
		c = Field(opts.Separator, opts.Field, opts.Kind)
	}
	if opts.IgnoreCase {
		c = IgnoreCase(c)
	}
	if opts.Reverse {
		c = Reverse(c)
	}
	return c, nil
}
