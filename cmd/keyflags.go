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

package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/linesort/internal/linecmp"
)

// keyFlags are the comparator flags shared by sort and verify.
type keyFlags struct {
	field      int
	separator  string
	kind       string
	numeric    bool
	ignoreCase bool
	reverse    bool
}

func addKeyFlags(c *cobra.Command, k *keyFlags) {
	c.Flags().IntVar(&k.field, "key", 0, "1-based field to sort by; 0 uses the whole line")
	c.Flags().StringVar(&k.separator, "separator", "", "Field separator for --key")
	c.Flags().StringVar(&k.kind, "kind", "lexical", "Key comparison: lexical, integer or float")
	c.Flags().BoolVar(&k.numeric, "numeric", false, "Shorthand for --kind integer")
	c.Flags().BoolVar(&k.ignoreCase, "ignore-case", false, "Fold case when comparing lexical keys")
	c.Flags().BoolVar(&k.reverse, "reverse", false, "Sort in descending order")
}

func (k keyFlags) comparator() (linecmp.Func, error) {
	kind, err := linecmp.ParseKind(k.kind)
	if err != nil {
		return nil, err
	}
	if k.numeric {
		if kind == linecmp.KindFloat {
			return nil, errors.New("--numeric conflicts with --kind float")
		}
		kind = linecmp.KindInteger
	}
	return linecmp.FromOptions(linecmp.KeyOptions{
		Separator:  k.separator,
		Field:      k.field,
		Kind:       kind,
		IgnoreCase: k.ignoreCase,
		Reverse:    k.reverse,
	})
}
