package corpus

import (
	"fmt"
	"strings"

	"llmusic/adapters/tabular"
	"llmusic/internal/render"
)

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Relatório do corpus\n\n")
	fmt.Fprintf(&b, "- Arquivo analisado: %s\n", r.Source)
	fmt.Fprintf(&b, "- Data da análise: %s\n", r.GeneratedAt.Format("02/01/2006 15:04:05"))
	fmt.Fprintf(&b, "- Total de músicas: %d\n", r.Songs)
	if r.Songs == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, "- Artistas únicos: %d\n", r.Artists.Unique)
	fmt.Fprintf(&b, "- Total de palavras: %d\n", r.Words.Total)
	fmt.Fprintf(&b, "- Média palavras/música: %.0f\n", r.Words.Mean)
	if r.Years.With > 0 {
		fmt.Fprintf(&b, "- Período: %d - %d\n", r.Years.Min, r.Years.Max)
	}
	if len(r.Artists.Top) > 0 {
		fmt.Fprintf(&b, "- Artista mais presente: %s (%d músicas)\n", r.Artists.Top[0].Label, r.Artists.Top[0].N)
	}

	fmt.Fprintf(&b, "\n## Artistas\n\n")
	fmt.Fprintf(&b, "Média de músicas por artista: %.1f\n\n", r.Artists.SongsPerArtist)
	writeCountTable(&b, "Artista", "Músicas", r.Artists.Top)

	fmt.Fprintf(&b, "\n## Anos\n\n")
	fmt.Fprintf(&b, "- Com ano: %d (%.1f%%)\n", r.Years.With, percent(r.Years.With, r.Songs))
	fmt.Fprintf(&b, "- Sem ano: %d (%.1f%%)\n", r.Years.Without, percent(r.Years.Without, r.Songs))
	if r.Years.With > 0 {
		fmt.Fprintf(&b, "- Ano médio: %.1f\n\n", r.Years.Mean)
		writeCountTable(&b, "Ano", "Músicas", r.Years.Distribution)
	}

	fmt.Fprintf(&b, "\n## Palavras\n\n")
	fmt.Fprintf(&b, "- Média: %.0f\n- Mediana: %.0f\n- Desvio padrão: %.1f\n- Mínimo: %d\n- Máximo: %d\n- Quartis: %.1f / %.1f\n\n",
		r.Words.Mean, r.Words.Median, r.Words.StdDev, r.Words.Min, r.Words.Max, r.Words.Q1, r.Words.Q3)
	writeCountTable(&b, "Faixa", "Músicas", r.Words.Bands)
	fmt.Fprintf(&b, "\n### Mais longas\n\n")
	for i, s := range r.Words.Longest {
		fmt.Fprintf(&b, "%d. %s - %s (%d palavras)\n", i+1, s.Artist, s.Title, s.Words)
	}

	fmt.Fprintf(&b, "\n## Vocabulário\n\n")
	fmt.Fprintf(&b, "- Palavras únicas: %d\n- Total de palavras: %d\n- Riqueza vocabular: %.1f%%\n\n",
		r.Vocabulary.Unique, r.Vocabulary.Total, r.Vocabulary.Richness)
	writeCountTable(&b, "Palavra", "Ocorrências", r.Vocabulary.Top)
	return b.String()
}

func writeCountTable(b *strings.Builder, label, count string, rows []Count) {
	fmt.Fprintf(b, "| %s | %s | %% |\n|---|---:|---:|\n", label, count)
	for _, c := range rows {
		fmt.Fprintf(b, "| %s | %d | %.1f |\n", c.Label, c.N, c.Share)
	}
}

// HTML renders the report as an HTML page.
func (r *Report) HTML() []byte {
	return render.MarkdownPage(r.Markdown(), "llmusic")
}

// Sheets lays the report out as worksheets.
func (r *Report) Sheets() []tabular.Sheet {
	summary := tabular.Sheet{
		Name:    "Resumo",
		Headers: []string{"metrica", "valor"},
		Rows: [][]interface{}{
			{"arquivo", r.Source},
			{"musicas", r.Songs},
			{"artistas_unicos", r.Artists.Unique},
			{"musicas_com_ano", r.Years.With},
			{"musicas_sem_ano", r.Years.Without},
			{"total_palavras", r.Words.Total},
			{"media_palavras", r.Words.Mean},
			{"mediana_palavras", r.Words.Median},
			{"desvio_palavras", r.Words.StdDev},
			{"q1_palavras", r.Words.Q1},
			{"q3_palavras", r.Words.Q3},
			{"palavras_unicas", r.Vocabulary.Unique},
			{"riqueza_vocabular", r.Vocabulary.Richness},
		},
	}

	longest := tabular.Sheet{Name: "Mais longas", Headers: []string{"artista", "titulo", "palavras"}}
	for _, s := range r.Words.Longest {
		longest.Rows = append(longest.Rows, []interface{}{s.Artist, s.Title, s.Words})
	}

	return []tabular.Sheet{
		summary,
		countSheet("Artistas", "artista", r.Artists.Top),
		countSheet("Anos", "ano", r.Years.Distribution),
		countSheet("Faixas", "faixa", r.Words.Bands),
		longest,
		countSheet("Vocabulario", "palavra", r.Vocabulary.Top),
	}
}

func countSheet(name, label string, rows []Count) tabular.Sheet {
	sheet := tabular.Sheet{Name: name, Headers: []string{label, "quantidade", "percentual"}}
	for _, c := range rows {
		sheet.Rows = append(sheet.Rows, []interface{}{c.Label, c.N, c.Share})
	}
	return sheet
}

// WriteWorkbook saves the report as an XLSX workbook.
func (r *Report) WriteWorkbook(path string) error {
	return tabular.WriteWorkbook(path, r.Sheets())
}
