/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TieBreak selects how a drawn match is decided. The zero value is invalid so
// that a missing or unrecognised mode is caught by validation.
type TieBreak int

const (
	TieBreakRating TieBreak = iota + 1
	TieBreakColor
)

func (tb TieBreak) String() string {
	switch tb {
	case TieBreakRating:
		return "rating"
	case TieBreakColor:
		return "color"
	default:
		return "?"
	}
}

func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "rating":
		return TieBreakRating, nil
	case "color", "colour":
		return TieBreakColor, nil
	}

	return 0, fmt.Errorf("%w: unknown tie_break %q (want rating or color)",
		ErrInvalidConfig, s)
}

func (tb *TieBreak) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := ParseTieBreak(s)
	if err != nil {
		return err
	}
	*tb = v

	return nil
}

func (tb TieBreak) MarshalYAML() (any, error) {
	return tb.String(), nil
}
