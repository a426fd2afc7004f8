package pages

import (
	"strings"

	"github.com/contre95/mdlive/src/infra/digest"
)

// FormatETag renders a digest as a weak validator.
func FormatETag(sum string) string {
	return `W/"` + sum + `"`
}

// ParseETags extracts the digests listed in an If-None-Match header. Weak
// markers and quotes are stripped; anything that is not a digest is dropped,
// so a malformed header behaves like an absent one.
func ParseETags(header string) []string {
	if header == "" {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(part)
		tag = strings.TrimPrefix(tag, "W/")
		tag = strings.Trim(tag, `"`)
		tag = strings.ToLower(tag)
		if digest.Valid(tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}

func matches(tags []string, sum string) bool {
	for _, tag := range tags {
		if tag == sum {
			return true
		}
	}
	return false
}
