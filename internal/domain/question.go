package domain

import (
	"fmt"
	"unicode/utf8"

	"github.com/Novapool/ParallelTracks/internal/errors"
)

// questionTemplate is the fixed two-blank dilemma template. Both outcome
// fragments are substituted verbatim.
const questionTemplate = "A runaway trolley is barreling down the tracks. If you do nothing, five people will %s. If you pull the lever, one person will %s. What should you do?"

const (
	// MinFragmentLen and MaxFragmentLen bound each outcome fragment in
	// characters, checked before any network submission.
	MinFragmentLen = 3
	MaxFragmentLen = 500
)

// ValidateFragment checks a single outcome fragment against the length bounds.
func ValidateFragment(fragment string) error {
	n := utf8.RuneCountInString(fragment)
	if n < MinFragmentLen {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("fragment too short (min %d characters)", MinFragmentLen))
	}
	if n > MaxFragmentLen {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("fragment too long (max %d characters)", MaxFragmentLen))
	}
	return nil
}

// AssembleQuestion fills the fixed template with the two outcome fragments.
// Both fragments must pass ValidateFragment.
func AssembleQuestion(first, second string) (string, error) {
	if err := ValidateFragment(first); err != nil {
		return "", err
	}
	if err := ValidateFragment(second); err != nil {
		return "", err
	}
	return fmt.Sprintf(questionTemplate, first, second), nil
}
