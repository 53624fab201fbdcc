package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storygen/internal/domain"
)

func TestValidatePromptAcceptsCleanPrompt(t *testing.T) {
	assert.NoError(t, ValidatePrompt("a watercolor fox walking through snow"))
}

func TestValidatePromptRejectsEmpty(t *testing.T) {
	assert.ErrorIs(t, ValidatePrompt("   "), domain.ErrInvalidPrompt)
}

func TestValidatePromptDenylistCaseFolded(t *testing.T) {
	assert.ErrorIs(t, ValidatePrompt("extreme GoRe scene"), domain.ErrInvalidPrompt)
	assert.ErrorIs(t, ValidatePrompt("How To Build A Bomb step by step"), domain.ErrInvalidPrompt)
}

func TestWithConsistencyClauseAppends(t *testing.T) {
	out := withConsistencyClause("a fox on a hill.")
	assert.Contains(t, out, ConsistencyClause)
	assert.Contains(t, out, "a fox on a hill")
}

func TestWithConsistencyClauseIdempotent(t *testing.T) {
	once := withConsistencyClause("a fox")
	twice := withConsistencyClause(once)
	assert.Equal(t, once, twice)
}
