package domain

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies a social network a caption is written for.
type Platform string

const (
	PlatformInstagram  Platform = "instagram"
	PlatformTikTok     Platform = "tiktok"
	PlatformTwitter    Platform = "twitter"
	PlatformReddit     Platform = "reddit"
	PlatformArtStation Platform = "artstation"
	PlatformDeviantArt Platform = "deviantart"
)

// PlatformSpec describes the caption conventions for one platform.
type PlatformSpec struct {
	MaxChars    int
	MaxHashtags int
	Style       string
}

// platformSpecs is the static catalog of supported platforms.
var platformSpecs = map[Platform]PlatformSpec{
	PlatformInstagram: {
		MaxChars:    2200,
		MaxHashtags: 30,
		Style:       "Visual storytelling with emojis, engaging hooks, and community-building CTAs",
	},
	PlatformTikTok: {
		MaxChars:    300,
		MaxHashtags: 5,
		Style:       "Short, punchy, trend-aware with Gen Z appeal",
	},
	PlatformTwitter: {
		MaxChars:    280,
		MaxHashtags: 3,
		Style:       "Concise, witty, conversation-starting",
	},
	PlatformReddit: {
		MaxChars:    40000,
		MaxHashtags: 0,
		Style:       "Authentic, detailed, community-focused without promotional tone",
	},
	PlatformArtStation: {
		MaxChars:    5000,
		MaxHashtags: 10,
		Style:       "Professional, technical process details, industry-focused",
	},
	PlatformDeviantArt: {
		MaxChars:    5000,
		MaxHashtags: 15,
		Style:       "Creative community-oriented, inspirational, fellow artist connection",
	},
}

// SpecFor returns the spec for a platform and whether it is supported.
func SpecFor(p Platform) (PlatformSpec, bool) {
	spec, ok := platformSpecs[p]
	return spec, ok
}

// ArtworkDetails carries the artist-supplied description of the piece.
// Medium is the only required field.
type ArtworkDetails struct {
	Medium        string
	ArtStyle      string
	Tone          string
	Mood          string
	Audience      string
	Subject       string
	CustomContext string
}

// CaptionOptions toggles optional caption features.
type CaptionOptions struct {
	IncludeProcess  bool
	IncludeHashtags bool
	IncludeCTA      bool
	IncludeEmoji    bool
	SEOOptimized    bool
}

// CaptionRequest is a validated request to generate a caption.
type CaptionRequest struct {
	UserID      uuid.UUID
	ImageData   []byte
	ContentType string
	Platforms   []Platform
	Details     ArtworkDetails
	Options     CaptionOptions
}

// CaptionResult is the outcome of a successful caption generation.
type CaptionResult struct {
	Caption   string
	Platforms []Platform
	Model     string
	Remaining int64
	Unlimited bool
}

// Generation is the persisted record of one successful caption generation.
// Token counts and cost come from the AI provider's usage report.
type Generation struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Platforms    []Platform
	Model        string
	InputTokens  int32
	OutputTokens int32
	CostCents    int32
	CreatedAt    time.Time
}
