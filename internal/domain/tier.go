// Package domain contains core business types and interfaces.
//
// This file defines the subscription tier catalog: the static mapping from
// each tier to its caption quota, accounting period, and platform cap.
package domain

// Tier represents the pricing tier of a subscription.
type Tier string

const (
	TierFree     Tier = "free"
	TierPro      Tier = "pro"
	TierPremium  Tier = "premium"
	TierPlatinum Tier = "platinum"
)

// Valid reports whether the tier is one of the four canonical values.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierPremium, TierPlatinum:
		return true
	default:
		return false
	}
}

// TierPolicy defines the entitlement limits for a subscription tier.
// Policies are static and never change at runtime.
type TierPolicy struct {
	CaptionQuota       int        // Captions per period; ignored when UnlimitedCaptions
	PeriodKind         PeriodKind // Window over which the quota resets
	MaxPlatforms       int        // Platforms per caption; ignored when UnlimitedPlatforms
	GalleryCap         int        // Stored artworks; ignored when UnlimitedGallery
	UnlimitedCaptions  bool
	UnlimitedPlatforms bool
	UnlimitedGallery   bool
	HasGallery         bool
}

// tierPolicies maps each tier to its policy.
// Free and Pro reset weekly; Premium and Platinum reset monthly.
var tierPolicies = map[Tier]TierPolicy{
	TierFree: {
		CaptionQuota: 3,
		PeriodKind:   PeriodWeekly,
		MaxPlatforms: 1,
	},
	TierPro: {
		CaptionQuota:       5,
		PeriodKind:         PeriodWeekly,
		UnlimitedPlatforms: true,
	},
	TierPremium: {
		CaptionQuota:       10,
		PeriodKind:         PeriodMonthly,
		UnlimitedPlatforms: true,
		HasGallery:         true,
		GalleryCap:         5,
	},
	TierPlatinum: {
		PeriodKind:         PeriodMonthly,
		UnlimitedCaptions:  true,
		UnlimitedPlatforms: true,
		HasGallery:         true,
		UnlimitedGallery:   true,
	},
}

// PolicyFor returns the policy for a tier.
// Unlike a defaulting lookup, an unknown tier is rejected: it indicates
// corrupted subscription state upstream and must never be silently treated
// as free.
func PolicyFor(tier Tier) (TierPolicy, error) {
	policy, ok := tierPolicies[tier]
	if !ok {
		return TierPolicy{}, UnknownTier("tier.policy_for", tier)
	}
	return policy, nil
}

// AllowsPlatformCount reports whether the policy permits a caption request
// targeting the given number of platforms.
func (p TierPolicy) AllowsPlatformCount(n int) bool {
	if p.UnlimitedPlatforms {
		return true
	}
	return n <= p.MaxPlatforms
}
