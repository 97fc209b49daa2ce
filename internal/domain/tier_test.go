package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		tier         Tier
		wantQuota    int
		wantKind     PeriodKind
		wantUnlim    bool
		maxPlatforms int
		unlimPlat    bool
	}{
		{TierFree, 3, PeriodWeekly, false, 1, false},
		{TierPro, 5, PeriodWeekly, false, 0, true},
		{TierPremium, 10, PeriodMonthly, false, 0, true},
		{TierPlatinum, 0, PeriodMonthly, true, 0, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			policy, err := PolicyFor(tt.tier)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuota, policy.CaptionQuota)
			assert.Equal(t, tt.wantKind, policy.PeriodKind)
			assert.Equal(t, tt.wantUnlim, policy.UnlimitedCaptions)
			assert.Equal(t, tt.unlimPlat, policy.UnlimitedPlatforms)
			if !tt.unlimPlat {
				assert.Equal(t, tt.maxPlatforms, policy.MaxPlatforms)
			}
		})
	}
}

func TestPolicyFor_UnknownTier(t *testing.T) {
	_, err := PolicyFor(Tier("enterprise"))
	require.Error(t, err)
	assert.Equal(t, EINVALID, ErrorCode(err))

	_, err = PolicyFor("")
	require.Error(t, err)
}

func TestTierPolicy_AllowsPlatformCount(t *testing.T) {
	free, err := PolicyFor(TierFree)
	require.NoError(t, err)
	assert.True(t, free.AllowsPlatformCount(1))
	assert.False(t, free.AllowsPlatformCount(2))

	platinum, err := PolicyFor(TierPlatinum)
	require.NoError(t, err)
	assert.True(t, platinum.AllowsPlatformCount(len(platformSpecs)))
}

func TestUser_EffectiveTier(t *testing.T) {
	tests := []struct {
		name   string
		tier   Tier
		status SubscriptionStatus
		want   Tier
	}{
		{"free always free", TierFree, SubscriptionStatusInactive, TierFree},
		{"active pro", TierPro, SubscriptionStatusActive, TierPro},
		{"trialing premium", TierPremium, SubscriptionStatusTrialing, TierPremium},
		{"canceled platinum falls back", TierPlatinum, SubscriptionStatusCanceled, TierFree},
		{"past due pro falls back", TierPro, SubscriptionStatusPastDue, TierFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Tier: tt.tier, SubscriptionStatus: tt.status}
			assert.Equal(t, tt.want, u.EffectiveTier())
		})
	}
}
