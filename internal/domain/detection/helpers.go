package detection

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
)

// urlPattern matches http(s) links up to the first whitespace, bracket or
// quote, so HTML attributes like href="..." end where the attribute does
var urlPattern = regexp.MustCompile(`(?i)https?://[^\s()\[\]{}<>"']+`)

// urlTrailing is sentence punctuation that ends prose links ("see http://x.")
const urlTrailing = ".,;:!?"

// ipLiteralPattern only checks the dotted shape, octets above 255 still match
var ipLiteralPattern = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// ExtractDomain returns the part after the last '@', lowercased and trimmed.
// Addresses without '@' yield an empty domain.
func ExtractDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(address[at+1:]))
}

// ExtractURLs returns every http(s) URL in text, in order of appearance
func ExtractURLs(text string) []string {
	spans := findURLs(text)
	urls := make([]string, 0, len(spans))
	for _, span := range spans {
		urls = append(urls, text[span[0]:span[1]])
	}
	return urls
}

// findURLs returns the [start, end) offsets of every URL in text. Trailing
// punctuation is not part of the link; a match left with nothing after the
// scheme is dropped.
func findURLs(text string) [][]int {
	matches := urlPattern.FindAllStringIndex(text, -1)
	spans := make([][]int, 0, len(matches))
	for _, m := range matches {
		raw := strings.TrimRight(text[m[0]:m[1]], urlTrailing)
		if strings.HasSuffix(raw, "://") {
			continue
		}
		spans = append(spans, []int{m[0], m[0] + len(raw)})
	}
	return spans
}

// URLHost returns the lowercase host of a URL without credentials or port.
// Any parse failure yields an empty string.
func URLHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// urlAuthority returns the authority segment (between "://" and the first
// '/', '?' or '#'), without parsing, so malformed URLs still expose it
func urlAuthority(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// hasUserInfo reports whether a URL embeds "user@" before its host
func hasUserInfo(rawURL string) bool {
	return strings.Contains(urlAuthority(rawURL), "@")
}

// IsIPLiteral reports whether host looks like a dotted IPv4 address
func IsIPLiteral(host string) bool {
	return ipLiteralPattern.MatchString(host)
}

// DomainMatches reports whether host is root or one of its subdomains
func DomainMatches(host, root string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	root = strings.ToLower(strings.TrimSpace(root))
	if root == "" {
		return false
	}
	return host == root || strings.HasSuffix(host, "."+root)
}

// SecondLevelLabel returns the label right before the public suffix,
// e.g. "paypa1" for "login.paypa1.co.uk"
func SecondLevelLabel(domain string) string {
	domain = strings.Trim(strings.ToLower(domain), ".")
	if domain == "" {
		return ""
	}

	if registrable, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		if i := strings.Index(registrable, "."); i > 0 {
			return registrable[:i]
		}
		return registrable
	}

	// Not a registrable name (bare label, IP, suffix only): fall back to the
	// second to last label
	parts := strings.Split(domain, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return parts[0]
}

// EditDistance calculates the Levenshtein distance between two strings.
// Comparison is rune based and case sensitive; callers normalize case.
func EditDistance(a, b string) int {
	s1 := []rune(a)
	s2 := []rune(b)

	// Base cases: if either string is empty, distance is the other string's length
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// Create DP table: matrix[i][j] = distance between s1[0:i] and s2[0:j]
	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
	}

	for i := 0; i <= len(s1); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(s2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // Deletion
				matrix[i][j-1]+1,      // Insertion
				matrix[i-1][j-1]+cost, // Substitution
			)
		}
	}

	return matrix[len(s1)][len(s2)]
}

// prefixRunes returns at most n leading characters of s
func prefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// window returns the text within n characters on each side of s[start:end]
func window(s string, start, end, n int) string {
	left := start
	for k := 0; k < n && left > 0; k++ {
		_, size := utf8.DecodeLastRuneInString(s[:left])
		left -= size
	}
	right := end
	for k := 0; k < n && right < len(s); k++ {
		_, size := utf8.DecodeRuneInString(s[right:])
		right += size
	}
	return s[left:right]
}

// containsAny returns the first keyword found in text, or "" if none
func containsAny(text string, keywords []string) string {
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(text, keyword) {
			return keyword
		}
	}
	return ""
}
