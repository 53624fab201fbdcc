package generation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"storygen/internal/domain"
)

// ConsistencyClause is appended to a prompt whenever a reference image from
// the previous slide is attached as conditioning input.
const ConsistencyClause = "maintain character consistency with the reference image, same character design and style"

// promptDenylist is a fixed substring check applied before any job record
// exists. Rejected prompts are returned synchronously and are never retried.
var promptDenylist = []string{
	"gore",
	"beheading",
	"child sexual",
	"csam",
	"nude minor",
	"terror manifesto",
	"how to build a bomb",
}

var foldCaser = cases.Fold()

// ValidatePrompt rejects empty prompts and prompts containing denylisted
// terms. The match is case folded so alternate casings do not slip through.
func ValidatePrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return fmt.Errorf("%w: prompt is empty", domain.ErrInvalidPrompt)
	}
	folded := foldCaser.String(trimmed)
	for _, term := range promptDenylist {
		if strings.Contains(folded, foldCaser.String(term)) {
			return fmt.Errorf("%w: prompt contains a disallowed term", domain.ErrInvalidPrompt)
		}
	}
	return nil
}

// withConsistencyClause appends the consistency instruction once.
func withConsistencyClause(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	if strings.Contains(strings.ToLower(trimmed), ConsistencyClause) {
		return trimmed
	}
	return strings.TrimRight(trimmed, ".") + ". " + ConsistencyClause
}
