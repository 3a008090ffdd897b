// Package corpus computes descriptive statistics over a scraped lyric
// corpus: artists, release years, lyric lengths and vocabulary.
package corpus

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"llmusic/domain/lyrics"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

const (
	TopArtists  = 10
	TopLongest  = 5
	TopWords    = 15
	MinWordSize = 3
)

var wordPattern = regexp.MustCompile(`[a-záéíóúçãõâêôà]+`)

// Count is a labelled frequency with its share of the relevant total, in
// percent.
type Count struct {
	Label string
	N     int
	Share float64
}

// ArtistStats summarises who is in the corpus.
type ArtistStats struct {
	Unique         int
	SongsPerArtist float64
	Top            []Count
}

// YearStats summarises release years. Distribution shares are relative to
// the songs with a year.
type YearStats struct {
	With         int
	Without      int
	Distribution []Count
	Min          int
	Max          int
	Mean         float64
}

// Band is a closed word-count range; Max < 0 means unbounded.
type Band struct {
	Name string
	Min  int
	Max  int
}

// WordBands are the lyric length ranges reported.
var WordBands = []Band{
	{Name: "Curtas", Min: 0, Max: 100},
	{Name: "Médias", Min: 101, Max: 200},
	{Name: "Longas", Min: 201, Max: 300},
	{Name: "Muito Longas", Min: 301, Max: -1},
}

func (b Band) contains(n int) bool {
	if b.Max < 0 {
		return n >= b.Min
	}
	return n >= b.Min && n <= b.Max
}

// Label renders the range, e.g. "101-200" or "301+".
func (b Band) Label() string {
	if b.Max < 0 {
		return strconv.Itoa(b.Min) + "+"
	}
	return strconv.Itoa(b.Min) + "-" + strconv.Itoa(b.Max)
}

// SongLength identifies a song by its word count.
type SongLength struct {
	Artist string
	Title  string
	Words  int
}

// WordStats summarises lyric lengths.
type WordStats struct {
	Total   int
	Mean    float64
	Median  float64
	StdDev  float64 // sample standard deviation
	Min     int
	Max     int
	Q1      float64
	Q3      float64
	Bands   []Count
	Longest []SongLength
}

// VocabularyStats summarises the words of at least three letters.
type VocabularyStats struct {
	Top      []Count
	Unique   int
	Total    int
	Richness float64
}

// Report is the full analysis of a corpus.
type Report struct {
	Source      string
	GeneratedAt time.Time
	Songs       int
	Artists     ArtistStats
	Years       YearStats
	Words       WordStats
	Vocabulary  VocabularyStats
}

// Analyze builds the report. An empty corpus yields a report with zero
// counts.
func Analyze(source string, songs []lyrics.Song) *Report {
	r := &Report{Source: source, GeneratedAt: time.Now(), Songs: len(songs)}
	if len(songs) == 0 {
		return r
	}
	r.Artists = analyzeArtists(songs)
	r.Years = analyzeYears(songs)
	r.Words = analyzeWords(songs)
	r.Vocabulary = analyzeVocabulary(songs)
	return r
}

func analyzeArtists(songs []lyrics.Song) ArtistStats {
	counts := make(map[string]int)
	for _, s := range songs {
		counts[s.Artist]++
	}
	top := rank(counts, len(songs))
	if len(top) > TopArtists {
		top = top[:TopArtists]
	}
	return ArtistStats{
		Unique:         len(counts),
		SongsPerArtist: float64(len(songs)) / float64(len(counts)),
		Top:            top,
	}
}

func analyzeYears(songs []lyrics.Song) YearStats {
	var ys YearStats
	counts := make(map[int]int)
	var years stats.Float64Data
	for _, s := range songs {
		if !s.HasYear() {
			ys.Without++
			continue
		}
		ys.With++
		counts[s.Year]++
		years = append(years, float64(s.Year))
	}
	if ys.With == 0 {
		return ys
	}

	keys := make([]int, 0, len(counts))
	for y := range counts {
		keys = append(keys, y)
	}
	sort.Ints(keys)
	for _, y := range keys {
		ys.Distribution = append(ys.Distribution, Count{Label: strconv.Itoa(y), N: counts[y], Share: percent(counts[y], ys.With)})
	}
	ys.Min, ys.Max = keys[0], keys[len(keys)-1]
	ys.Mean, _ = stats.Mean(years)
	return ys
}

// quantile interpolates linearly between the closest ranks of sorted, the
// same rule pandas uses: position p*(n-1), so [100 200] has Q1 125.
func quantile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func analyzeWords(songs []lyrics.Song) WordStats {
	var ws WordStats
	data := make(stats.Float64Data, len(songs))
	for i, s := range songs {
		data[i] = float64(s.WordCount)
		ws.Total += s.WordCount
	}
	ws.Mean, _ = stats.Mean(data)
	ws.Median, _ = stats.Median(data)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	ws.Min, ws.Max = int(lo), int(hi)

	if len(data) > 1 {
		ws.StdDev = stat.StdDev(data, nil)
	}

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	ws.Q1 = quantile(sorted, 0.25)
	ws.Q3 = quantile(sorted, 0.75)

	for _, b := range WordBands {
		n := 0
		for _, s := range songs {
			if b.contains(s.WordCount) {
				n++
			}
		}
		ws.Bands = append(ws.Bands, Count{Label: b.Name + " (" + b.Label() + ")", N: n, Share: percent(n, len(songs))})
	}

	byLength := append([]lyrics.Song(nil), songs...)
	sort.SliceStable(byLength, func(i, j int) bool { return byLength[i].WordCount > byLength[j].WordCount })
	for i := 0; i < len(byLength) && i < TopLongest; i++ {
		ws.Longest = append(ws.Longest, SongLength{Artist: byLength[i].Artist, Title: byLength[i].Title, Words: byLength[i].WordCount})
	}
	return ws
}

// Words returns the lowercase words of text with at least three letters.
func Words(text string) []string {
	var out []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(w)) >= MinWordSize {
			out = append(out, w)
		}
	}
	return out
}

func analyzeVocabulary(songs []lyrics.Song) VocabularyStats {
	var vs VocabularyStats
	counts := make(map[string]int)
	for _, s := range songs {
		for _, w := range Words(s.Lyric) {
			counts[w]++
			vs.Total++
		}
	}
	if vs.Total == 0 {
		return vs
	}
	vs.Unique = len(counts)
	vs.Richness = percent(vs.Unique, vs.Total)
	vs.Top = rank(counts, vs.Total)
	if len(vs.Top) > TopWords {
		vs.Top = vs.Top[:TopWords]
	}
	return vs
}

// rank orders counts by frequency, ties broken alphabetically.
func rank(counts map[string]int, total int) []Count {
	out := make([]Count, 0, len(counts))
	for label, n := range counts {
		out = append(out, Count{Label: label, N: n, Share: percent(n, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}
