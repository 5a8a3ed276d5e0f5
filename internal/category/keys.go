package category

import (
	"fmt"
	"strings"
)

// Cache keys. Every key embeds the merchant so one tenant's mutation only
// evicts that tenant's entries.
func TreeKey(merchantID string) string {
	return fmt.Sprintf("category:tree:%s", merchantID)
}

func NodeKey(merchantID, id string) string {
	return fmt.Sprintf("category:node:%s:%s", merchantID, id)
}

func SubtreeKey(merchantID, id string) string {
	return fmt.Sprintf("category:subtree:%s:%s", merchantID, id)
}

func DescendantsKey(merchantID, id string) string {
	return fmt.Sprintf("category:descendants:%s:%s", merchantID, id)
}

func AncestorsKey(merchantID, id string) string {
	return fmt.Sprintf("category:ancestors:%s:%s", merchantID, id)
}

// InvalidationPatterns lists the patterns that cover every cached read of a
// merchant's tree: the full tree and all per-node entries.
func InvalidationPatterns(merchantID string) []string {
	return []string{
		fmt.Sprintf("category:*:%s", globEscape(merchantID)),
		fmt.Sprintf("category:*:%s:*", globEscape(merchantID)),
	}
}

var globMeta = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// globEscape quotes the characters that are special in Redis MATCH and
// path.Match patterns so a merchant ID only ever matches itself.
func globEscape(s string) string {
	return globMeta.Replace(s)
}
