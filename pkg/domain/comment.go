package domain

// Comment is a single comment extracted from a thread page
type Comment struct {
	ID       string // derived identifier, not guaranteed globally unique
	Username string // empty when no author could be extracted
	Text     string // plain text with quotes and spoilers stripped
}

// MinCommentLength is the shortest text worth classifying; anything below is
// skipped before reaching the classifier
const MinCommentLength = 10
