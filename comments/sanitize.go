package comments

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	entityPattern  = regexp.MustCompile(`&[^;]+;`)
	spacePattern   = regexp.MustCompile(`\s+`)
	dangerousChars = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")

	maliciousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script\b.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)data:text/html`),
		regexp.MustCompile(`(?i)vbscript:`),
		regexp.MustCompile(`(?i)<iframe\b`),
		regexp.MustCompile(`(?i)<object\b`),
		regexp.MustCompile(`(?i)<embed\b`),
		regexp.MustCompile(`(?i)<form\b`),
		regexp.MustCompile(`(?i)expression\s*\(`),
		regexp.MustCompile(`(?i)url\s*\(\s*javascript:`),
	}
)

// SpamWords are rejected anywhere in comment content, case-insensitively.
var SpamWords = []string{"spam", "casino", "viagra", "loan", "credit"}

// Malicious reports whether s carries script or markup injection.
func Malicious(s string) bool {
	for _, p := range maliciousPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// SanitizeText strips tags, entities and HTML-significant characters and
// collapses whitespace.
func SanitizeText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = entityPattern.ReplaceAllString(s, "")
	s = dangerousChars.Replace(s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// SanitizeNickname cleans a nickname like SanitizeText and caps it at 30
// runes. An empty result becomes DefaultNickname.
func SanitizeNickname(s string) string {
	s = SanitizeText(s)
	if utf8.RuneCountInString(s) > 30 {
		s = string([]rune(s)[:30])
	}
	if s = strings.TrimSpace(s); s == "" {
		return DefaultNickname
	}
	return s
}

// Spam reports whether content contains one of SpamWords.
func Spam(content string) bool {
	lower := strings.ToLower(content)
	for _, w := range SpamWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
