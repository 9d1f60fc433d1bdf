package string

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	scriptBlock  = regexp.MustCompile(`(?is)<script\b[^<]*(?:<[^<]*)*?</script>`)
	htmlTag      = regexp.MustCompile(`<[^>]*>`)
	jsScheme     = regexp.MustCompile(`(?i)javascript:`)
	eventHandler = regexp.MustCompile(`(?i)on\w+\s*=`)
)

// TrimStrings trims every pointed-to string in place.
func TrimStrings(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}

// SanitizeInput trims s and strips script blocks, HTML tags, javascript:
// schemes and inline event handler attributes.
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	s = scriptBlock.ReplaceAllString(s, "")
	s = htmlTag.ReplaceAllString(s, "")
	s = jsScheme.ReplaceAllString(s, "")
	return eventHandler.ReplaceAllString(s, "")
}

func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
