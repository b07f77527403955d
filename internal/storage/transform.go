package storage

import (
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TransformFunc normalizes the basename of a logical name, without its
// extension. Applying it to its own output must not change the result.
type TransformFunc func(string) string

var transforms = map[string]TransformFunc{
	"slugify": Slugify,
	"lower":   strings.ToLower,
	"hash":    Hash,
}

// LookupTransform resolves a transform by its configured name. The empty
// name means no transform.
func LookupTransform(name string) (TransformFunc, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}
	fn, ok := transforms[name]
	if !ok {
		return nil, &ConfigurationError{
			Field:  "filename_transform",
			Reason: "unknown transform " + name + " (supported: " + strings.Join(TransformNames(), ", ") + ")",
		}
	}
	return fn, nil
}

// TransformNames lists the registered transform names.
func TransformNames() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Slugify folds s to ASCII, drops everything but letters, digits,
// underscores, hyphens and spaces, lowercases it and joins the words with
// single hyphens.
func Slugify(s string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r > unicode.MaxASCII:
			continue
		case r == '-' || unicode.IsSpace(r):
			pendingDash = b.Len() > 0
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash {
				b.WriteByte('-')
				pendingDash = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Hash replaces s with the hex blake2b-256 digest of s. A stem that already
// is such a digest is returned unchanged, so the name Save hands back
// resolves to the same object on later calls.
func Hash(s string) string {
	if isDigest(s) {
		return s
	}
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func isDigest(s string) bool {
	if len(s) != 2*blake2b.Size256 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('0' > c || c > '9') && ('a' > c || c > 'f') {
			return false
		}
	}
	return true
}
