// Package themes labels excerpts with themes from a fixed candidate list and
// proposes new themes from batches of excerpts.
package themes

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/rand"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"llmusic/domain/lyrics"
	"llmusic/internal"
	"llmusic/internal/dataset"
	"llmusic/internal/errors"
	"llmusic/ports"
)

// ClassificationHeaders is the column order of classification output.
var ClassificationHeaders = []string{"iteracao", "tag_trecho", "letra", "topico_id", "topicos_temas", "classificado_positivo"}

// Label is the verdict for one (iteration, excerpt, candidate) triple.
type Label struct {
	Iteration int
	Excerpt   lyrics.Excerpt
	ThemeID   string
	Theme     string
	Positive  bool
}

// Row renders the label in ClassificationHeaders order.
func (l Label) Row() []string {
	positive := "0"
	if l.Positive {
		positive = "1"
	}
	return []string{strconv.Itoa(l.Iteration), l.Excerpt.ID, l.Excerpt.Text, l.ThemeID, l.Theme, positive}
}

// BuildClassificationPrompt lists every candidate and asks for a JSON array
// of the ones that apply to the excerpt.
func BuildClassificationPrompt(candidates []string, excerpt lyrics.Excerpt) string {
	var b strings.Builder
	b.WriteString("Voce recebera TEMAS candidatos e um unico TRECHO de musica (Portugues do Brasil).\n")
	b.WriteString("Marque quais temas fazem sentido para esse trecho. Pode ser nenhum, um ou varios.\n")
	b.WriteString("Regras:\n")
	b.WriteString("- Use APENAS temas fornecidos. E proibido inventar novos temas.\n")
	b.WriteString("- Nao repita temas na resposta.\n")
	b.WriteString("- Retorne SOMENTE JSON com este formato: [\"<tema fornecido>\", ...].\n")
	b.WriteString("- Se nenhum tema se aplica, retorne [].\n")
	b.WriteString("- Nao adicione nenhum texto fora do JSON.\n\n")
	b.WriteString("TEMAS CANDIDATOS:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	fmt.Fprintf(&b, "\nTRECHO:\n[%s] %s\n", excerpt.ID, excerpt.Text)
	return b.String()
}

// ParseSelection decodes a classification reply. The reply must be a JSON
// array of candidate names or of objects with a "theme" field; a single
// object is accepted as a one-element array. Names outside candidates are
// an error.
func ParseSelection(reply string, candidates []string) (map[string]bool, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, fmt.Errorf("empty reply")
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return nil, fmt.Errorf("reply is not JSON: %s", truncate(reply, 200))
	}
	if obj, ok := parsed.(map[string]interface{}); ok {
		parsed = []interface{}{obj}
	}
	items, ok := parsed.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected reply shape: %s", truncate(reply, 200))
	}

	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c] = true
	}

	selected := make(map[string]bool)
	for _, item := range items {
		var theme string
		switch v := item.(type) {
		case map[string]interface{}:
			if t, ok := v["theme"]; ok && t != nil {
				theme = fmt.Sprint(t)
			}
		case string:
			theme = v
		default:
			theme = fmt.Sprint(v)
		}
		theme = strings.TrimSpace(theme)
		if theme == "" {
			continue
		}
		if !allowed[theme] {
			return nil, fmt.Errorf("theme %q is not in the candidate list", theme)
		}
		selected[theme] = true
	}
	return selected, nil
}

// Classifier labels excerpts against the global candidate list.
type Classifier struct {
	gen        ports.Generator
	model      string
	iterations int
	logger     *internal.Logger
}

// NewClassifier creates a multi-label classifier.
func NewClassifier(gen ports.Generator, model string, iterations int, logger *internal.Logger) *Classifier {
	if iterations < 1 {
		iterations = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Classifier{gen: gen, model: model, iterations: iterations, logger: logger}
}

// Classify runs every iteration over every excerpt at temperature 0. An
// excerpt whose reply cannot be used is logged and skipped for that
// iteration. Having no label at all is an error.
func (c *Classifier) Classify(ctx context.Context, excerpts []lyrics.Excerpt, candidates *dataset.ThemeCandidates) ([]Label, error) {
	start := time.Now()
	c.logger.Info("classifying %d excerpts against %d candidate themes (%d iterations)", len(excerpts), len(candidates.Themes), c.iterations)

	var labels []Label
	width := len(strconv.Itoa(len(excerpts)))
	for it := 1; it <= c.iterations; it++ {
		c.logger.Info("=== iteration %d/%d ===", it, c.iterations)
		for i, excerpt := range excerpts {
			if err := ctx.Err(); err != nil {
				return labels, err
			}
			c.logger.Info("record [%0*d/%d] tag=%s", width, i+1, len(excerpts), excerpt.ID)

			reply, err := c.gen.Generate(ctx, ports.GenerateRequest{
				Model:       c.model,
				Prompt:      BuildClassificationPrompt(candidates.Themes, excerpt),
				Temperature: 0,
			})
			if err != nil {
				c.logger.Warn("    failed on %s: %v", excerpt.ID, err)
				continue
			}
			selected, err := ParseSelection(reply, candidates.Themes)
			if err != nil {
				c.logger.Warn("    failed on %s: %v", excerpt.ID, err)
				continue
			}

			for _, theme := range candidates.Themes {
				labels = append(labels, Label{
					Iteration: it,
					Excerpt:   excerpt,
					ThemeID:   candidates.IDs[theme],
					Theme:     theme,
					Positive:  selected[theme],
				})
			}
			c.logger.Info("    positive themes: %v", sortedKeys(selected))
		}
	}

	c.logger.Info("theme classification finished in %.1f minutes", time.Since(start).Minutes())
	if len(labels) == 0 {
		return nil, errors.New(errors.CodeExternalService, "no excerpt could be classified")
	}
	return labels, nil
}

// GeneratedHeaders is the column order of generated themes.
var GeneratedHeaders = []string{"iteracao", "tema"}

// GeneratedTheme is one line proposed by the model.
type GeneratedTheme struct {
	Iteration int
	Theme     string
}

// Row renders the theme in GeneratedHeaders order.
func (g GeneratedTheme) Row() []string {
	return []string{strconv.Itoa(g.Iteration), g.Theme}
}

// GenerateOptions controls theme generation.
type GenerateOptions struct {
	Iterations       int
	ExcerptsPerBatch int
	ThemesPerBatch   int
	Temperature      float64
	MaxTokens        int
	Seed             int64
}

// BuildGenerationPrompt asks for k short themes, one per line, for a batch.
func BuildGenerationPrompt(batch []string, k int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "dado os seguintes trechos de musica, sugira %d topicos que descrevem os assuntos abordados:\n\n", k)
	for i, text := range batch {
		fmt.Fprintf(&b, "%d. %s\n", i+1, text)
	}
	b.WriteString("\nREGRAS:\n")
	b.WriteString("- Responda APENAS com os topicos, um por linha.\n")
	b.WriteString("- Nao inclua numeros na sua resposta.\n")
	b.WriteString("- Gere temas curtos e conceituais (ex: 'Sofrimento por amor', 'Festa e bebida').")
	return b.String()
}

// SplitThemes returns the non-empty trimmed lines of a reply.
func SplitThemes(reply string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Generator proposes themes from shuffled batches of excerpts.
type Generator struct {
	gen    ports.Generator
	model  string
	opts   GenerateOptions
	logger *internal.Logger
}

// NewGenerator creates a theme generator.
func NewGenerator(gen ports.Generator, model string, opts GenerateOptions, logger *internal.Logger) *Generator {
	if opts.Iterations < 1 {
		opts.Iterations = 1
	}
	if opts.ExcerptsPerBatch < 1 {
		opts.ExcerptsPerBatch = 5
	}
	if opts.ThemesPerBatch < 1 {
		opts.ThemesPerBatch = 3
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Generator{gen: gen, model: model, opts: opts, logger: logger}
}

// Generate shuffles the texts once per iteration, cuts them into batches
// and collects the themes of every batch. A batch that fails or returns
// nothing is skipped; failing to reach the endpoint at all aborts the run
// with the themes gathered so far.
func (g *Generator) Generate(ctx context.Context, texts []string) ([]GeneratedTheme, error) {
	rng := rand.New(rand.NewSource(g.opts.Seed))
	pool := append([]string(nil), texts...)

	var out []GeneratedTheme
	for it := 1; it <= g.opts.Iterations; it++ {
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		batches := (len(pool) + g.opts.ExcerptsPerBatch - 1) / g.opts.ExcerptsPerBatch
		g.logger.Info("iteration %d/%d: %d batches", it, g.opts.Iterations, batches)

		for n := 0; n < batches; n++ {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			end := (n + 1) * g.opts.ExcerptsPerBatch
			if end > len(pool) {
				end = len(pool)
			}
			batch := pool[n*g.opts.ExcerptsPerBatch : end]

			reply, err := g.gen.Generate(ctx, ports.GenerateRequest{
				Model:       g.model,
				Prompt:      BuildGenerationPrompt(batch, g.opts.ThemesPerBatch),
				Temperature: g.opts.Temperature,
				NumPredict:  g.opts.MaxTokens,
			})
			if err != nil {
				if IsConnectionError(err) {
					return out, errors.ExternalServiceError("llm endpoint", err)
				}
				g.logger.Warn("  batch %d failed: %v, skipping", n+1, err)
				continue
			}
			themes := SplitThemes(reply)
			if len(themes) == 0 {
				g.logger.Warn("  batch %d returned no themes", n+1)
				continue
			}
			for _, t := range themes {
				out = append(out, GeneratedTheme{Iteration: it, Theme: t})
			}
			g.logger.Debug("    batch %d themes: %v", n+1, themes)
			if (n+1)%50 == 0 {
				g.logger.Info("  ...batch %d/%d done", n+1, batches)
			}
		}
	}
	g.logger.Info("generated %d themes", len(out))
	return out, nil
}

// IsConnectionError reports whether err comes from failing to dial the
// endpoint.
func IsConnectionError(err error) bool {
	var opErr *net.OpError
	return stderrors.As(err, &opErr) && opErr.Op == "dial"
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
