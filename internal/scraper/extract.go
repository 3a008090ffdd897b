package scraper

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinWords = 10
	MaxWords = 2000

	// minLyricChars is the text length a lyric container must exceed.
	minLyricChars = 50
)

// LyricSelectors are tried in order; the first match with enough text wins.
var LyricSelectors = []string{
	".lyric-original",
	`div[class*="lyric"]`,
	`div[class*="letra"]`,
	"div.cnt-lyric",
	"pre.lyric",
}

// InvalidMarkers disqualify a lyric or title that contains them.
var InvalidMarkers = []string{
	"página não encontrada",
	"erro 404",
	"acesso negado",
	"letra não disponível",
}

var (
	yearPattern       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	lowerUpperPattern = regexp.MustCompile(`([a-záéíóúâêîôûàèìòùãç])([ÁÉÍÓÚÂÊÎÔÛÀÈÌÒÙÃÇA-Z])`)
	punctUpperPattern = regexp.MustCompile(`([!?.,;:])([A-ZÁÉÍÓÚÂÊÎÔÛÀÈÌÒÙÃÇ])`)
	spacesPattern     = regexp.MustCompile(` {2,}`)
	slugStrip         = regexp.MustCompile(`[^a-z0-9\-]`)
	itempropDate      = regexp.MustCompile(`(?i)date|year`)
)

// ExtractLyric returns the raw text of the first lyric container longer
// than 50 characters. Line breaks (<br>) are kept as newlines.
func ExtractLyric(doc *goquery.Document) (string, bool) {
	for _, sel := range LyricSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		node.Find("br").ReplaceWithHtml("\n")
		text := node.Text()
		if len([]rune(strings.TrimSpace(text))) > minLyricChars {
			return text, true
		}
	}
	return "", false
}

// ExtractTitle reads the song title from the page heading.
func ExtractTitle(doc *goquery.Document) string {
	title := doc.Find("h1.head_title").First()
	if title.Length() == 0 {
		title = doc.Find("h1").First()
	}
	return strings.TrimSpace(title.Text())
}

// CountLines returns the number of non-blank lines of a raw lyric.
func CountLines(raw string) int {
	n := 0
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// CleanLyric flattens a lyric to one line: lines are trimmed, empty ones
// dropped and the rest joined by spaces. Words glued by a lost line break
// (lower followed by upper case, or punctuation followed by upper case) are
// split again.
func CleanLyric(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	text := strings.Join(lines, " ")
	text = lowerUpperPattern.ReplaceAllString(text, "$1 $2")
	text = punctUpperPattern.ReplaceAllString(text, "$1 $2")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\t", " ")
	text = spacesPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Validate rejects lyrics outside 10..2000 words or whose lyric or title
// carries an error-page marker.
func Validate(lyric, title string) error {
	words := len(strings.Fields(lyric))
	if words < MinWords {
		return fmt.Errorf("too short: %d words", words)
	}
	if words > MaxWords {
		return fmt.Errorf("too long: %d words", words)
	}
	lyricLower, titleLower := strings.ToLower(lyric), strings.ToLower(title)
	for _, marker := range InvalidMarkers {
		if strings.Contains(lyricLower, marker) || strings.Contains(titleLower, marker) {
			return fmt.Errorf("invalid content: %s", marker)
		}
	}
	return nil
}

// FoldAccents removes diacritics, e.g. "Zezé" -> "Zeze".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slug turns an artist name into its URL path segment.
func Slug(name string) string {
	s := FoldAccents(strings.ToLower(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "&", "e")
	return slugStrip.ReplaceAllString(s, "")
}

// FindYear returns the first year matched in s.
func FindYear(s string) (int, bool) {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	year, err := strconv.Atoi(m)
	return year, err == nil
}

// yearStrategy looks for a release year in one kind of markup.
type yearStrategy func(doc *goquery.Document) (int, bool)

// yearStrategies run from most to least reliable.
var yearStrategies = []yearStrategy{
	yearFromJSONLD,
	yearFromMeta,
	yearFromMicrodata,
	yearFromLegacy,
}

// ExtractYear returns the release year of the page, or 0 when none is found.
func ExtractYear(doc *goquery.Document) int {
	for _, strategy := range yearStrategies {
		if year, ok := strategy(doc); ok {
			return year
		}
	}
	return 0
}

var jsonLDDateFields = []string{"datePublished", "releaseDate", "dateCreated", "uploadDate"}

func yearFromJSONLD(doc *goquery.Document) (int, bool) {
	year, found := 0, false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		for _, field := range jsonLDDateFields {
			if v, ok := data[field]; ok {
				if year, found = FindYear(fmt.Sprint(v)); found {
					return false
				}
			}
		}
		if data["@type"] == "MusicRecording" {
			if album, ok := data["inAlbum"].(map[string]interface{}); ok {
				if v, ok := album["datePublished"]; ok {
					if year, found = FindYear(fmt.Sprint(v)); found {
						return false
					}
				}
			}
		}
		return true
	})
	return year, found
}

var metaDateTags = [][2]string{
	{"property", "music:release_date"},
	{"property", "article:published_time"},
	{"name", "publish_date"},
	{"name", "release_date"},
	{"itemprop", "datePublished"},
	{"itemprop", "releaseDate"},
}

func yearFromMeta(doc *goquery.Document) (int, bool) {
	for _, tag := range metaDateTags {
		content, ok := doc.Find(fmt.Sprintf(`meta[%s="%s"]`, tag[0], tag[1])).First().Attr("content")
		if !ok || content == "" {
			continue
		}
		if year, ok := FindYear(content); ok {
			return year, true
		}
	}
	return 0, false
}

func yearFromMicrodata(doc *goquery.Document) (int, bool) {
	year, found := 0, false
	doc.Find("[itemprop]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !itempropDate.MatchString(s.AttrOr("itemprop", "")) {
			return true
		}
		text := s.Text()
		if text == "" {
			text = s.AttrOr("content", "")
		}
		if text == "" {
			text = s.AttrOr("datetime", "")
		}
		year, found = FindYear(text)
		return !found
	})
	return year, found
}

func yearFromLegacy(doc *goquery.Document) (int, bool) {
	for _, sel := range []string{"span.year", "time", "div.song-info"} {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if year, ok := FindYear(node.Text()); ok {
			return year, true
		}
	}
	return 0, false
}
