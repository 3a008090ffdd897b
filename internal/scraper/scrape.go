package scraper

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"llmusic/domain/lyrics"
	"llmusic/internal"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"
	"gopkg.in/yaml.v3"
)

// SongLink is one entry of an artist's song list.
type SongLink struct {
	Title string
	URL   string
}

// Config describes a scraping job, usually loaded from YAML.
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	Artists  []string      `yaml:"artists"`
	MaxSongs int           `yaml:"max_songs"`
	Workers  int           `yaml:"workers"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoadConfig reads a YAML job file and fills defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scraper config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scraper config %s: %w", path, err)
	}
	if len(cfg.Artists) == 0 {
		return nil, fmt.Errorf("scraper config %s lists no artists", path)
	}
	defaults := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MinDelay == 0 && cfg.MaxDelay == 0 {
		cfg.MinDelay, cfg.MaxDelay = defaults.MinDelay, defaults.MaxDelay
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &cfg, nil
}

// ClientConfig extracts the fetch settings of the job.
func (c *Config) ClientConfig() ClientConfig {
	return ClientConfig{BaseURL: c.BaseURL, Timeout: c.Timeout, MinDelay: c.MinDelay, MaxDelay: c.MaxDelay}
}

// Scraper walks artists, their song lists and song pages.
type Scraper struct {
	client *Client
	logger *internal.Logger
	now    func() time.Time
}

// New creates a Scraper.
func New(client *Client, logger *internal.Logger) *Scraper {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Scraper{client: client, logger: logger, now: time.Now}
}

func (s *Scraper) absolute(href string) string {
	base, err := url.Parse(s.client.BaseURL() + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func looksLikeArtistPage(doc *goquery.Document) bool {
	if doc.Find("h1.head_title, div.artist-info, ul.songList").Length() > 0 {
		return true
	}
	return doc.Find("h1").Length() > 0 && strings.Contains(strings.ToLower(doc.Text()), "discografia")
}

// FindArtist resolves the artist page, first by its slug URL and then via
// the site search.
func (s *Scraper) FindArtist(ctx context.Context, name string) (string, error) {
	direct := fmt.Sprintf("%s/%s/", s.client.BaseURL(), Slug(name))
	doc, err := s.client.Fetch(ctx, direct)
	if err == nil && looksLikeArtistPage(doc) {
		s.logger.Info("artist found: %s", direct)
		return direct, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	search := fmt.Sprintf("%s/busca.php?words=%s", s.client.BaseURL(), url.QueryEscape(name))
	doc, err = s.client.Fetch(ctx, search)
	if err != nil {
		return "", fmt.Errorf("artist %q not found: %w", name, err)
	}

	var found string
	lowerName := strings.ToLower(name)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		text := strings.ToLower(strings.TrimSpace(a.Text()))
		if strings.HasPrefix(href, "/") && strings.Contains(text, lowerName) && strings.Contains(href, "discografia") {
			found = s.absolute(strings.Replace(href, "/discografia", "", 1))
			return false
		}
		return true
	})
	if found == "" {
		return "", fmt.Errorf("artist %q not found", name)
	}
	s.logger.Info("artist found via search: %s", found)
	return found, nil
}

// songListSelectors are the song list layouts seen on artist pages. The
// first layout with any entry is used.
var songListSelectors = []string{"li.songList-table-row", "a.song-name", "div.cnt-list-songs"}

// ListSongs returns up to limit songs of an artist page; limit <= 0 means
// all of them.
func (s *Scraper) ListSongs(ctx context.Context, artistURL string, limit int) ([]SongLink, error) {
	doc, err := s.client.Fetch(ctx, artistURL)
	if err != nil {
		return nil, err
	}

	var songs []SongLink
	for _, sel := range songListSelectors {
		items := doc.Find(sel)
		if items.Length() == 0 {
			continue
		}
		items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
			link := item.Find("a[href]").First()
			if link.Length() == 0 {
				if !item.Is("a[href]") {
					return true
				}
				link = item
			}
			title := strings.TrimSpace(link.Text())
			href := link.AttrOr("href", "")
			if title != "" && href != "" {
				songs = append(songs, SongLink{Title: title, URL: s.absolute(href)})
			}
			return limit <= 0 || len(songs) < limit
		})
		break
	}
	s.logger.Info("found %d songs at %s", len(songs), artistURL)
	return songs, nil
}

// ScrapeSong downloads one song page. The artist name is taken as given.
func (s *Scraper) ScrapeSong(ctx context.Context, songURL, artist string) (*lyrics.Song, error) {
	doc, err := s.client.Fetch(ctx, songURL)
	if err != nil {
		return nil, err
	}

	raw, ok := ExtractLyric(doc)
	if !ok {
		return nil, fmt.Errorf("no lyric found at %s", songURL)
	}
	lyric := CleanLyric(raw)
	title := ExtractTitle(doc)
	if err := Validate(lyric, title); err != nil {
		return nil, fmt.Errorf("rejected %s: %w", songURL, err)
	}

	return &lyrics.Song{
		Title:       title,
		Artist:      artist,
		Lyric:       lyric,
		URL:         songURL,
		Year:        ExtractYear(doc),
		CollectedAt: s.now(),
		WordCount:   len(strings.Fields(lyric)),
		LineCount:   CountLines(raw),
	}, nil
}

// ScrapeArtist collects every valid song of an artist. Individual song
// failures are logged and skipped.
func (s *Scraper) ScrapeArtist(ctx context.Context, name string, maxSongs int) ([]lyrics.Song, error) {
	s.logger.Info("scraping %s", name)
	artistURL, err := s.FindArtist(ctx, name)
	if err != nil {
		return nil, err
	}
	links, err := s.ListSongs(ctx, artistURL, maxSongs)
	if err != nil {
		return nil, err
	}

	var songs []lyrics.Song
	failed := 0
	for i, link := range links {
		if ctx.Err() != nil {
			return songs, ctx.Err()
		}
		s.logger.Debug("[%d/%d] %s", i+1, len(links), link.Title)
		song, err := s.ScrapeSong(ctx, link.URL, name)
		if err != nil {
			failed++
			s.logger.Warn("  %v", err)
			continue
		}
		songs = append(songs, *song)
	}

	if total := len(songs) + failed; total > 0 {
		s.logger.Info("%s done: %d ok, %d failed (%.1f%% success)", name, len(songs), failed, float64(len(songs))*100/float64(total))
	}
	return songs, nil
}

// ArtistResult is the outcome of scraping one artist.
type ArtistResult struct {
	Artist string
	Songs  []lyrics.Song
	Err    error
}

// ScrapeAll scrapes the artists with at most workers running at once.
// Results keep the input order; an artist that fails does not stop the
// others.
func (s *Scraper) ScrapeAll(ctx context.Context, artists []string, maxSongs, workers int) []ArtistResult {
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	results := make([]ArtistResult, len(artists))

	var wg sync.WaitGroup
	for i, name := range artists {
		results[i].Artist = name
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			defer sem.Release(1)
			songs, err := s.ScrapeArtist(ctx, name, maxSongs)
			results[i].Songs, results[i].Err = songs, err
			if err != nil {
				s.logger.Error("artist %s failed: %v", name, err)
			}
		}(i, name)
	}
	wg.Wait()
	return results
}

// Songs flattens successful results.
func Songs(results []ArtistResult) []lyrics.Song {
	var out []lyrics.Song
	for _, r := range results {
		out = append(out, r.Songs...)
	}
	return out
}
