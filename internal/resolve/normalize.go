package resolve

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists common legal entity suffixes to strip during name
// normalization.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LP", " L.P.", " L.P",
	" LLP", " L.L.P.", " L.L.P",
	" PLC", " P.L.C.",
	" CO", " CO.",
	" SA", " S.A.",
	" AG", " A.G.",
	" NV", " N.V.",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// foldAccents strips combining marks after NFKD decomposition, so
// "Société" matches "Societe".
var foldAccents = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName standardizes a company name for matching by:
//  1. Folding accented characters to their ASCII base
//  2. Converting to uppercase
//  3. Removing common legal suffixes (LLC, Inc, Corp, etc.)
//  4. Stripping punctuation (commas, periods, quotes, dashes, ampersands)
//  5. Collapsing multiple spaces into single spaces
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(foldAccents, name); err == nil {
		name = folded
	}

	name = strings.ToUpper(name)

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
		"/", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	return name
}
