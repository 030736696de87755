package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierAtLeast(t *testing.T) {
	assert.True(t, TierFree.AtLeast(""))
	assert.True(t, TierPro.AtLeast(TierFree))
	assert.True(t, TierElite.AtLeast(TierPro))
	assert.False(t, TierFree.AtLeast(TierPro))
	assert.False(t, TierPro.AtLeast(TierElite))
	assert.False(t, Tier("gold").Valid())
}
