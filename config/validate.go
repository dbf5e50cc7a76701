/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	eventNameRe = regexp.MustCompile(`^[A-Za-z0-9 ,.\-]{2,30}$`)
	teamIDRe    = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)
	ghUserRe    = regexp.MustCompile(`^[A-Za-z0-9,.\-_]{1,39}$`)
	ghRepoRe    = regexp.MustCompile(`^[A-Za-z0-9.\-_]+$`)
)

// AllowedClockInit is the set of initial clock times (seconds) the host
// accepts.
var AllowedClockInit = map[int]bool{
	0: true, 15: true, 30: true, 45: true, 60: true, 90: true, 120: true,
	180: true, 240: true, 300: true, 360: true, 420: true, 480: true,
	600: true, 900: true, 1200: true, 1500: true, 1800: true, 2400: true,
	3000: true, 3600: true, 4200: true, 4800: true, 5400: true, 6000: true,
	6600: true, 7200: true, 7800: true, 8400: true, 9000: true, 9600: true,
	10200: true, 10800: true,
}

func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("eventname", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || eventNameRe.MatchString(s)
	})
	_ = v.RegisterValidation("teamid", func(fl validator.FieldLevel) bool {
		return teamIDRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("ghuser", func(fl validator.FieldLevel) bool {
		return ghUserRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("ghrepo", func(fl validator.FieldLevel) bool {
		return ghRepoRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("clockinit", func(fl validator.FieldLevel) bool {
		return AllowedClockInit[int(fl.Field().Int())]
	})

	return v
}

// Validate checks every option eagerly. The returned error wraps
// ErrInvalidConfig and lists each violation.
func (cfg *Config) Validate() error {
	var problems []string

	if err := newValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, e := range verrs {
			problems = append(problems, describe(e))
		}
	}

	problems = append(problems, cfg.Artifacts.storeProblems()...)
	problems = append(problems, cfg.Options.crossFieldProblems()...)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig,
			strings.Join(problems, "; "))
	}

	return nil
}

func (a ArtifactConfig) storeProblems() []string {
	var problems []string

	switch a.Store {
	case "s3":
		if a.Bucket == "" {
			problems = append(problems, "Artifacts.Bucket: is required for the s3 store")
		}
	case "github":
		if a.GitHubUser == "" || a.GitHubRepo == "" {
			problems = append(problems,
				"Artifacts.GitHubUser/GitHubRepo: are required for the github store")
		}
	}

	return problems
}

// crossFieldProblems covers the rules that span more than one option.
func (o Options) crossFieldProblems() []string {
	var problems []string

	if o.ClockInit+o.ClockInc <= 0 {
		problems = append(problems, "clock: cannot play 0+0")
	}
	degenerate := (o.ClockInit == 0 && o.ClockInc == 1) ||
		(o.ClockInit == 15 && o.ClockInc == 0)
	if degenerate && o.Variant != "standard" && o.Rated {
		problems = append(problems,
			"clock: degenerate variant time controls cannot be rated")
	}
	if o.TieBreak == TieBreakColor && o.GamesPerMatch%2 == 0 {
		problems = append(problems,
			"tie_break: deciding by color is only possible for odd games_per_match")
	}
	if o.TotalRounds() > 100 {
		problems = append(problems, fmt.Sprintf(
			"games_per_match: %v match rounds of %v games exceeds 100 rounds",
			o.MatchRounds(), o.GamesPerMatch))
	}

	return problems
}

func describe(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%v: is required", field)
	case "min":
		return fmt.Sprintf("%v: must be at least %v (got %v)", field,
			e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%v: must be at most %v (got %v)", field,
			e.Param(), e.Value())
	case "ltefield":
		return fmt.Sprintf("%v: must not exceed %v (got %v)", field,
			e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%v: must be one of [%v] (got %q)", field,
			e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%v: is not a valid url", field)
	case "clockinit":
		return fmt.Sprintf("%v: %v is not an allowed initial clock time",
			field, e.Value())
	default:
		return fmt.Sprintf("%v: contains illegal characters or has improper length (%q)",
			field, e.Value())
	}
}
