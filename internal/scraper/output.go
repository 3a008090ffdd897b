package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"llmusic/adapters/tabular"
	"llmusic/domain/lyrics"
)

// SaveSongs writes songs as JSON when path ends in .json and as a table
// otherwise.
func SaveSongs(path string, songs []lyrics.Song) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := json.MarshalIndent(songs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode songs: %w", err)
		}
		return os.WriteFile(path, data, 0o644)
	}
	rows := make([][]string, len(songs))
	for i, s := range songs {
		rows[i] = s.Row()
	}
	return tabular.Write(path, lyrics.SongHeaders, rows)
}

// LoadSongs reads a JSON file written by SaveSongs.
func LoadSongs(path string) ([]lyrics.Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var songs []lyrics.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("failed to decode songs from %s: %w", path, err)
	}
	return songs, nil
}
