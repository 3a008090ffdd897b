package lyrics

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Excerpt is a unit of lyric text evaluated against candidate topics.
type Excerpt struct {
	ID   string
	Text string
}

// PreviewLimit is the number of runes kept by Preview before the ellipsis.
const PreviewLimit = 50

// Preview returns the first 50 runes followed by "..." when the text is
// longer than 53 runes; shorter texts are returned whole so that the
// ellipsis never makes a preview longer than the original.
func (e Excerpt) Preview() string {
	if utf8.RuneCountInString(e.Text) <= PreviewLimit+3 {
		return e.Text
	}
	runes := []rune(e.Text)
	return string(runes[:PreviewLimit]) + "..."
}

// Topic is a candidate thematic label.
type Topic struct {
	ID   string
	Name string
}

// TopicID builds a topic identifier from a raw table cell. Cells holding an
// integer, including spreadsheet renderings such as "3.0", are normalised to
// their integer form.
func TopicID(raw string) string {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return strconv.Itoa(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return raw
}

// Song is one scraped lyric page.
type Song struct {
	Title       string    `json:"titulo"`
	Artist      string    `json:"artista"`
	Lyric       string    `json:"letra"`
	URL         string    `json:"url"`
	Year        int       `json:"ano,omitempty"`
	CollectedAt time.Time `json:"coletado_em"`
	WordCount   int       `json:"contagem_palavras"`
	LineCount   int       `json:"contagem_linhas"`
}

// HasYear reports whether a release year was found for the song.
func (s Song) HasYear() bool { return s.Year > 0 }

// SongHeaders is the column order used when songs are written to a table.
var SongHeaders = []string{"titulo", "artista", "letra", "url", "ano", "coletado_em", "contagem_palavras", "contagem_linhas"}

// Row renders the song in SongHeaders order.
func (s Song) Row() []string {
	year := ""
	if s.HasYear() {
		year = strconv.Itoa(s.Year)
	}
	return []string{
		s.Title,
		s.Artist,
		s.Lyric,
		s.URL,
		year,
		s.CollectedAt.Format(time.RFC3339),
		strconv.Itoa(s.WordCount),
		strconv.Itoa(s.LineCount),
	}
}
