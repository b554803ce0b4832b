package scraper

import "strings"

// Dialect holds the selector set for one reddit page flavor. Old and new
// reddit render comments with unrelated markup, so the selectors differ per
// hostname; General is the cross-flavor fallback tried when a dialect's own
// selectors match nothing.
type Dialect struct {
	Name      string
	Comments  string // selects comment body elements
	Container string // selects the enclosing comment element
}

// known dialects
var (
	OldReddit = Dialect{
		Name:      "oldReddit",
		Comments:  ".comment .usertext-body .md",
		Container: ".comment",
	}

	NewReddit = Dialect{
		Name:      "newReddit",
		Comments:  `shreddit-profile-comment .md p, shreddit-comment .md p, [data-testid="comment"] p, div[id*="post-rtjson-content"] p, .RichTextJSON-root p, .Comment p`,
		Container: `shreddit-profile-comment, shreddit-comment, [data-testid="comment"]`,
	}

	General = Dialect{
		Name:      "general",
		Comments:  `.usertext-body p, [role="article"] p, .Comment p, .commentarea p, shreddit-profile-comment .md p, shreddit-comment .md p, div[id*="post-rtjson-content"] p`,
		Container: `.comment, [data-testid="comment"], [role="article"], shreddit-profile-comment, shreddit-comment`,
	}
)

// DetectDialect picks the selector set for the given hostname
func DetectDialect(hostname string) Dialect {
	switch {
	case strings.Contains(hostname, "old.reddit"):
		return OldReddit
	case strings.Contains(hostname, "sh.reddit"): // sh.reddit serves the new UI
		return NewReddit
	case strings.Contains(hostname, "reddit.com"):
		return NewReddit
	default:
		return General
	}
}
