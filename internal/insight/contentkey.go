package insight

import "strings"

// contentKeyMaxLen bounds the normalized content portion of a key.
const contentKeyMaxLen = 100

// ContentKey computes the normalized dedup key for a claim's content.
//
// The key is "category:" followed by the content lowercased, with runs of
// whitespace collapsed to single spaces, truncated to 100 characters. Two
// claims with the same key are exact-match duplicates for the fast-path
// cache, short-circuiting the semantic search.
func ContentKey(category Category, content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	if runes := []rune(normalized); len(runes) > contentKeyMaxLen {
		normalized = string(runes[:contentKeyMaxLen])
	}
	return string(category) + ":" + normalized
}

// Key returns the claim's normalized content key.
func (c *Claim) Key() string {
	return ContentKey(c.Category, c.Content)
}
