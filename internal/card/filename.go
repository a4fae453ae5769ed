package card

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength caps the slug part of a generated filename.
const MaxSlugLength = 50

// GenerateFilename returns {unixMillis}-{slug}.md for a new card. Two cards
// created in the same millisecond with the same title collide; that is
// accepted.
func GenerateFilename(title string, now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + Slugify(title) + Extension
}

// Slugify lowercases title, folds accented letters to ASCII, collapses every
// run of other characters into one hyphen, trims hyphens from both ends and
// truncates to MaxSlugLength.
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
	}
	return slug
}
