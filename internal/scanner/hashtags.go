package scanner

import (
	"regexp"
	"sort"
	"strings"
)

// A hashtag is '#' followed by at least one character that is not
// whitespace, another '#', or sentence punctuation that ends a token.
var hashtagRe = regexp.MustCompile(`#([^\s#.,!?;:]+)`)

// ExtractHashtags scans free text for hashtag tokens and returns them
// lower-cased with duplicates removed. The result is sorted only to make
// it deterministic; callers must not rely on any particular order.
func ExtractHashtags(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
		seen[strings.ToLower(m[1])] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
