package giveaway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesKeyword(t *testing.T) {
	assert.True(t, MatchesKeyword("weeat", "weeat"))
	assert.True(t, MatchesKeyword("  WeEat ", "weeat"))
	assert.True(t, MatchesKeyword("weeat", " WEEAT "))
	assert.False(t, MatchesKeyword("we eat", "weeat"))
	assert.False(t, MatchesKeyword("weeat please", "weeat"))
	assert.False(t, MatchesKeyword("anything", ""))
}

func TestParseEligibilityRuleEmpty(t *testing.T) {
	rule, err := ParseEligibilityRule("   ")
	require.NoError(t, err)
	assert.Nil(t, rule)
	assert.True(t, rule.Allows(Entrant{UserID: 1}))
	assert.Equal(t, "", rule.String())
}

func TestParseEligibilityRuleInvalid(t *testing.T) {
	_, err := ParseEligibilityRule("is_subscriber ==")
	assert.Error(t, err)
}

func TestEligibilityRuleSubscribersOnly(t *testing.T) {
	rule, err := ParseEligibilityRule("is_subscriber == true")
	require.NoError(t, err)
	require.NotNil(t, rule)

	assert.True(t, rule.Allows(Entrant{UserID: 1, Username: "sub", IsSubscriber: true}))
	assert.False(t, rule.Allows(Entrant{UserID: 2, Username: "pleb", IsSubscriber: false}))
	assert.Equal(t, "is_subscriber == true", rule.String())
}

func TestEligibilityRuleNonBooleanRejects(t *testing.T) {
	rule, err := ParseEligibilityRule("username")
	require.NoError(t, err)
	assert.False(t, rule.Allows(Entrant{UserID: 1, Username: "somebody"}))
}
