package track

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Similarity thresholds. Titles are matched strictly; artists more leniently
// to absorb featuring-credit variations.
const (
	titleThreshold  = 0.90
	artistThreshold = 0.85

	// Base-title similarity required before version vocabulary can mark two
	// titles as remix variants of the same song.
	remixBaseThreshold = 0.8

	// Titles whose normalized lengths differ by more than this never match,
	// regardless of ratio.
	maxTitleLengthDiff = 3
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	punctuationRe = regexp.MustCompile(`[^\w\s]`)

	// Featuring-artist suffix on a title: "song feat someone".
	titleFeaturingRe = regexp.MustCompile(`\s+(?:feat|ft|featuring)\s+.*$`)

	// Parenthesized or bracketed qualifiers: "(Club Mix)", "[Radio Edit]".
	bracketedRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)

	// Trailing hyphen qualifier: "Song - Extended Version".
	hyphenQualifierRe = regexp.MustCompile(`\s+-.*$`)

	// Trailing numeric or part suffixes: "Song 2", "Song Pt. 3", "Song Two".
	numericSuffixRe = regexp.MustCompile(`\s+\d+$`)
	partSuffixRe    = regexp.MustCompile(`(?i)\s+(?:pt|part)\s+\d+$`)
	wordNumberRe    = regexp.MustCompile(`(?i)\s+(?:one|two|three|four|five|six|seven|eight|nine|ten)$`)

	// Suffix a numbered variation carries on the raw title. Such titles are
	// never considered similar to anything: "Song" and "Song 2" are distinct.
	numberedVariationRe = regexp.MustCompile(`(?i)\d+$|\s+(?:pt|part)\s+\d+\s*$`)

	// Artist joining conventions folded into a canonical " feat " separator.
	artistJoinRes = []*regexp.Regexp{
		regexp.MustCompile(`\bfeat\b\.?\s*`),
		regexp.MustCompile(`\bft\b\.?\s*`),
		regexp.MustCompile(`\bfeaturing\b\s*`),
		regexp.MustCompile(`\bwith\b\s*`),
		regexp.MustCompile(`\band\b\s*`),
		regexp.MustCompile(`&\s*`),
		regexp.MustCompile(`\bvs\b\.?\s*`),
	}
)

// versionVocabulary is stripped from titles when reducing to a base name.
var versionVocabulary = []string{
	"remix", "mix", "edit", "version", "extended", "radio", "club",
	"original", "instrumental", "remastered", "remaster", "live",
	"acoustic", "unplugged",
}

// remixIndicators mark a raw title as a remix or alternate version.
var remixIndicators = []string{
	"remix", "mix", "edit", "version", "extended", "radio", "club",
	"original", "instrumental",
}

var versionSuffixRes = buildSuffixRes(versionVocabulary)

func buildSuffixRes(words []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		res[i] = regexp.MustCompile(`\s+` + w + `\b.*$`)
	}
	return res
}

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldDiacritics strips combining marks so "Beyoncé" compares as "Beyonce".
func foldDiacritics(s string) string {
	folded, _, err := transform.String(diacriticFolder, s)
	if err != nil {
		return s
	}
	return folded
}

// normalizeString lowercases, folds diacritics, strips punctuation, and
// collapses whitespace.
func normalizeString(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = foldDiacritics(s)
	s = punctuationRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// baseName reduces a song title to its base form: featuring credits,
// bracketed and hyphenated qualifiers, numeric suffixes, and remix/version
// vocabulary are all removed. Each transform is applied in sequence so the
// individual steps stay testable.
func baseName(songName string) string {
	name := strings.ToLower(strings.TrimSpace(songName))
	name = foldDiacritics(name)
	name = whitespaceRe.ReplaceAllString(name, " ")

	// Qualifiers are delimited by punctuation, so strip them before the
	// punctuation itself is removed.
	name = bracketedRe.ReplaceAllString(name, "")
	name = hyphenQualifierRe.ReplaceAllString(name, "")

	name = punctuationRe.ReplaceAllString(name, "")
	name = whitespaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	name = titleFeaturingRe.ReplaceAllString(name, "")
	name = numericSuffixRe.ReplaceAllString(name, "")
	name = partSuffixRe.ReplaceAllString(name, "")
	name = wordNumberRe.ReplaceAllString(name, "")

	for _, re := range versionSuffixRes {
		name = re.ReplaceAllString(name, "")
	}

	return strings.TrimSpace(name)
}

// normalizeArtist folds every joining convention (feat, ft, with, and, &,
// vs) into a canonical " feat " separator. Folding runs before punctuation
// stripping so "&" is still present to be collapsed.
func normalizeArtist(artist string) string {
	a := strings.ToLower(strings.TrimSpace(artist))
	a = foldDiacritics(a)
	a = whitespaceRe.ReplaceAllString(a, " ")
	for _, re := range artistJoinRes {
		a = re.ReplaceAllString(a, " feat ")
	}
	a = punctuationRe.ReplaceAllString(a, "")
	a = whitespaceRe.ReplaceAllString(a, " ")
	return strings.TrimSpace(a)
}

// primaryArtist returns the part of a normalized artist before the first
// featuring separator.
func primaryArtist(normalized string) string {
	if i := strings.Index(normalized, " feat "); i >= 0 {
		return strings.TrimSpace(normalized[:i])
	}
	return normalized
}

// hasNumberSuffix reports whether the raw title carries a trailing numeral
// or part number.
func hasNumberSuffix(songName string) bool {
	return numberedVariationRe.MatchString(strings.TrimSpace(songName))
}

var remixIndicatorRe = regexp.MustCompile(`\b(?:` + strings.Join(remixIndicators, "|") + `)\b`)

// containsVersionVocabulary reports whether the raw title names a remix or
// alternate version.
func containsVersionVocabulary(songName string) bool {
	return remixIndicatorRe.MatchString(strings.ToLower(songName))
}

// ratio computes the Ratcliff/Obershelp similarity of two strings in [0,1].
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(runeStrings(a), runeStrings(b)).Ratio()
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// lengthPenalty discounts the base ratio as the absolute length difference
// grows. The falloff is deliberately steep: a four-character difference
// leaves only a quarter of the base similarity.
var lengthPenalties = []float64{1.0, 0.85, 0.65, 0.45, 0.25}

func lengthPenalty(lenDiff int) float64 {
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff >= len(lengthPenalties) {
		return lengthPenalties[len(lengthPenalties)-1]
	}
	return lengthPenalties[lenDiff]
}

// penalizedSimilarity is the length-penalized string similarity used for
// both title and artist comparison.
func penalizedSimilarity(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}
	lenDiff := len([]rune(a)) - len([]rune(b))
	return ratio(a, b) * lengthPenalty(lenDiff)
}

// isRemixRelationship reports whether the two raw titles are versions of the
// same base song, one of them carrying remix/version vocabulary.
func isRemixRelationship(songA, songB string) bool {
	if ratio(baseName(songA), baseName(songB)) < remixBaseThreshold {
		return false
	}
	return containsVersionVocabulary(songA) || containsVersionVocabulary(songB)
}

// IsSimilarTo decides whether two tracks identify the same song. Titles must
// match strictly (or be remix variants of one another) and artists must match
// leniently. A trailing number on either title vetoes the match outright, so
// "Song" and "Song 2" stay distinct.
func (t *Track) IsSimilarTo(other *Track) bool {
	if other == nil {
		return false
	}

	if hasNumberSuffix(t.SongName) || hasNumberSuffix(other.SongName) {
		return false
	}

	thisTitle := baseName(t.SongName)
	otherTitle := baseName(other.SongName)

	titleMatch := thisTitle == otherTitle
	if !titleMatch {
		lenDiff := len([]rune(thisTitle)) - len([]rune(otherTitle))
		if lenDiff < 0 {
			lenDiff = -lenDiff
		}
		titleMatch = lenDiff <= maxTitleLengthDiff && penalizedSimilarity(thisTitle, otherTitle) >= titleThreshold
	}
	if !titleMatch && isRemixRelationship(t.SongName, other.SongName) {
		titleMatch = true
	}
	if !titleMatch {
		return false
	}

	thisArtist := normalizeArtist(t.Artist)
	otherArtist := normalizeArtist(other.Artist)

	artistMatch := thisArtist == otherArtist ||
		primaryArtist(thisArtist) == primaryArtist(otherArtist) ||
		penalizedSimilarity(thisArtist, otherArtist) >= artistThreshold

	return artistMatch
}
