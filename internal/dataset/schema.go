// Package dataset turns loosely typed input tables into typed excerpts,
// topics and theme candidates. Every column choice goes through one
// documented fallback chain and fails with a schema error naming what is
// missing.
package dataset

import (
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"llmusic/adapters/tabular"
	"llmusic/domain/lyrics"
	"llmusic/internal/errors"
)

// TextColumn holds the lyric text of an excerpt row.
const TextColumn = "letra"

// ExcerptIDColumns are tried in order to identify an excerpt.
var ExcerptIDColumns = []string{"tag_trecho", "tag_musica", "ranking_posicao"}

// TopicNameColumns are the accepted topic name headers after lowercasing and
// removing spaces.
var TopicNameColumns = []string{"topicos_temas", "topicos_tema", "tema", "temas"}

// ExcerptSchema records which columns were used.
type ExcerptSchema struct {
	IDColumn   string
	TextColumn string
	TotalRows  int
}

// TopicSchema records which columns were used. IDColumn is empty when the
// identifiers were synthesized.
type TopicSchema struct {
	IDColumn   string
	NameColumn string
}

// DetectExcerptSchema resolves the id and text columns of an excerpts table.
func DetectExcerptSchema(t *tabular.Table) (ExcerptSchema, error) {
	schema := ExcerptSchema{TextColumn: TextColumn, TotalRows: len(t.Rows)}
	for _, name := range ExcerptIDColumns {
		if t.Has(name) {
			schema.IDColumn = name
			break
		}
	}
	if schema.IDColumn == "" {
		return schema, errors.SchemaError("excerpts table has no id column (expected one of %s)", strings.Join(ExcerptIDColumns, "/"))
	}
	if !t.Has(TextColumn) {
		return schema, errors.SchemaError("excerpts table has no %q column", TextColumn)
	}
	return schema, nil
}

// LoadExcerpts extracts excerpts, skipping rows whose text is blank. A
// table without any usable excerpt is an input error.
func LoadExcerpts(t *tabular.Table) ([]lyrics.Excerpt, ExcerptSchema, error) {
	schema, err := DetectExcerptSchema(t)
	if err != nil {
		return nil, schema, err
	}
	idIdx, textIdx := t.Index(schema.IDColumn), t.Index(schema.TextColumn)

	excerpts := make([]lyrics.Excerpt, 0, len(t.Rows))
	for _, row := range t.Rows {
		text := strings.TrimSpace(row[textIdx])
		if text == "" {
			continue
		}
		excerpts = append(excerpts, lyrics.Excerpt{ID: strings.TrimSpace(row[idIdx]), Text: text})
	}
	if len(excerpts) == 0 {
		return nil, schema, errors.InvalidInput("excerpts table has no rows with text")
	}
	return excerpts, schema, nil
}

// Sample returns n excerpts drawn without replacement using seed. When n is
// not positive or not smaller than the input, the input is returned as is.
func Sample(excerpts []lyrics.Excerpt, n int, seed int64) []lyrics.Excerpt {
	if n <= 0 || n >= len(excerpts) {
		return excerpts
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(excerpts))
	out := make([]lyrics.Excerpt, n)
	for i := 0; i < n; i++ {
		out[i] = excerpts[perm[i]]
	}
	return out
}

// DetectTopicSchema resolves the id and name columns of a topics table.
func DetectTopicSchema(t *tabular.Table) (TopicSchema, error) {
	if len(t.Headers) == 0 {
		return TopicSchema{}, errors.SchemaError("topics table has no columns")
	}
	var schema TopicSchema
	for _, h := range t.Headers {
		if strings.ToLower(strings.TrimSpace(h)) == "id" {
			schema.IDColumn = h
			break
		}
	}
	for _, h := range t.Headers {
		if isTopicNameHeader(h) {
			schema.NameColumn = h
			break
		}
	}
	if schema.NameColumn == "" {
		schema.NameColumn = t.Headers[0]
	}
	return schema, nil
}

func isTopicNameHeader(h string) bool {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "")
	for _, name := range TopicNameColumns {
		if key == name {
			return true
		}
	}
	return false
}

// LoadTopics extracts topics. Without an id column the identifier is the
// 1-based position of the row in the file. Blank and "nan" names are
// skipped; zero topics is an input error.
func LoadTopics(t *tabular.Table) ([]lyrics.Topic, TopicSchema, error) {
	schema, err := DetectTopicSchema(t)
	if err != nil {
		return nil, schema, err
	}
	nameIdx := t.Index(schema.NameColumn)
	idIdx := -1
	if schema.IDColumn != "" {
		idIdx = t.Index(schema.IDColumn)
	}

	topics := make([]lyrics.Topic, 0, len(t.Rows))
	for i, row := range t.Rows {
		name := strings.TrimSpace(row[nameIdx])
		if isMissing(name) {
			continue
		}
		id := strconv.Itoa(i + 1)
		if idIdx >= 0 {
			id = lyrics.TopicID(row[idIdx])
		}
		topics = append(topics, lyrics.Topic{ID: id, Name: name})
	}
	if len(topics) == 0 {
		return nil, schema, errors.InvalidInput("no topics loaded from the topics table")
	}
	return topics, schema, nil
}

// ThemeCandidates is the global list of themes a classifier may pick from.
type ThemeCandidates struct {
	Themes  []string
	IDs     map[string]string
	Columns []string
}

// LoadThemeCandidates collects the sorted unique theme names from tema_*
// columns, or from a topics-like column, or from the only column of a
// single-column table. Theme ids come from an "id" column when present; the
// first id seen for a theme wins.
func LoadThemeCandidates(t *tabular.Table) (*ThemeCandidates, error) {
	var cols []string
	for _, h := range t.Headers {
		if strings.HasPrefix(h, "tema_") {
			cols = append(cols, h)
		}
	}
	if len(cols) == 0 {
		for _, h := range t.Headers {
			if isTopicNameHeader(h) {
				cols = append(cols, h)
			}
		}
	}
	if len(cols) == 0 && len(t.Headers) == 1 {
		cols = []string{t.Headers[0]}
	}
	if len(cols) == 0 {
		return nil, errors.SchemaError("no theme columns found (expected tema_* or a Topicos_tema-like column)")
	}

	schema, _ := DetectTopicSchema(t)
	idIdx := -1
	if schema.IDColumn != "" {
		idIdx = t.Index(schema.IDColumn)
	}

	seen := make(map[string]bool)
	ids := make(map[string]string)
	for _, row := range t.Rows {
		for _, c := range cols {
			theme := strings.Trim(strings.TrimSpace(row[t.Index(c)]), `"`)
			if isMissing(theme) {
				continue
			}
			seen[theme] = true
			if idIdx >= 0 {
				if _, ok := ids[theme]; !ok && strings.TrimSpace(row[idIdx]) != "" {
					ids[theme] = lyrics.TopicID(row[idIdx])
				}
			}
		}
	}
	if len(seen) == 0 {
		return nil, errors.InvalidInput("theme columns are empty")
	}

	themes := make([]string, 0, len(seen))
	for theme := range seen {
		themes = append(themes, theme)
	}
	sort.Strings(themes)
	return &ThemeCandidates{Themes: themes, IDs: ids, Columns: cols}, nil
}

func isMissing(v string) bool {
	return v == "" || strings.EqualFold(v, "nan")
}

// ReadExcerpts reads and loads an excerpts file.
func ReadExcerpts(path string) ([]lyrics.Excerpt, ExcerptSchema, error) {
	t, err := tabular.Read(path)
	if err != nil {
		return nil, ExcerptSchema{}, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return LoadExcerpts(t)
}

// ReadTopics reads and loads a topics file.
func ReadTopics(path string) ([]lyrics.Topic, TopicSchema, error) {
	t, err := tabular.Read(path)
	if err != nil {
		return nil, TopicSchema{}, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return LoadTopics(t)
}
