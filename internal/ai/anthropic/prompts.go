package anthropic

import (
	"fmt"
	"strings"

	"github.com/captionmyart/captiond/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.English)

func domainSpec(p domain.Platform) (domain.PlatformSpec, bool) {
	return domain.SpecFor(p)
}

// buildCaptionPrompt creates the caption-writing prompt from the artwork
// details, the selected platforms and the option toggles
func buildCaptionPrompt(platforms []domain.Platform, details domain.ArtworkDetails, options domain.CaptionOptions) string {
	var b strings.Builder

	b.WriteString("You are an expert social media caption writer for artists. Generate a compelling caption for this artwork.\n\n")

	b.WriteString("ARTWORK DETAILS:\n")
	writeDetail(&b, "Medium", details.Medium)
	writeDetail(&b, "Style", details.ArtStyle)
	writeDetail(&b, "Tone", details.Tone)
	writeDetail(&b, "Mood", details.Mood)
	writeDetail(&b, "Target Audience", details.Audience)
	writeDetail(&b, "Subject", details.Subject)
	writeDetail(&b, "Additional Context", details.CustomContext)

	b.WriteString("\nPLATFORMS & GUIDELINES:\n")
	for _, platform := range platforms {
		spec, ok := domain.SpecFor(platform)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %s (max %d chars, %d hashtags)\n",
			upper.String(string(platform)), spec.Style, spec.MaxChars, spec.MaxHashtags)
	}

	b.WriteString("\nCAPTION OPTIONS:\n")
	if options.IncludeProcess {
		b.WriteString("- Include details about the creative process\n")
	}
	if options.IncludeHashtags {
		b.WriteString("- Include relevant, trending hashtags\n")
	}
	if options.IncludeCTA {
		b.WriteString("- Include a call-to-action\n")
	}
	if options.IncludeEmoji {
		b.WriteString("- Use emojis strategically\n")
	}
	if options.SEOOptimized {
		b.WriteString("- Optimize for discoverability and search\n")
	}

	b.WriteString(`
INSTRUCTIONS:
1. Carefully and thoughtfully analyze the uploaded artwork
2. The generated captions should not contain emoji's of any kind, unless specified.
3. Captions should be intelligent, always.
4. Never mention AI
5. Captions should sound human, without using generic terms or phrases such as Dive In
6. Always be as thoughtful as possible in generating the captions.
7. Be specific about what makes THIS artwork special
8. Avoid generic art buzzwords

Generate the caption now:`)

	return b.String()
}

func writeDetail(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
