package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"llmusic/adapters/tabular"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedPath(t *testing.T) {
	assert.Equal(t, "trechos_relatorio_final.csv", derivedPath("trechos.xlsx", "_relatorio_final.csv"))
	assert.Equal(t, "data/out.log", derivedPath("data/out.csv", ".log"))
	assert.Equal(t, "musicas_relatorio.md", derivedPath("musicas", "_relatorio.md"))
}

func TestFormatTemperatures(t *testing.T) {
	assert.Equal(t, "0.1,0.4,1", formatTemperatures([]float64{0.1, 0.4, 1.0}))
	assert.Equal(t, "", formatTemperatures(nil))
}

func TestOpenLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, closer, err := openLogger("INFO", path)
	require.NoError(t, err)
	logger.Info("hello %s", "file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] hello file")
}

func TestRootHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range []interface{ Name() string }{
		newClassifyCmd(), newThemesCmd(), newGenerateThemesCmd(), newScrapeCmd(), newStatsCmd(), newServeCmd(),
	} {
		names[c.Name()] = true
	}
	for _, n := range []string{"classify", "themes", "generate-themes", "scrape", "stats", "serve"} {
		assert.True(t, names[n], n)
	}
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "musicas.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"titulo": "A", "artista": "Henrique e Juliano", "letra": "amor amor saudade", "url": "u1", "ano": 2019, "contagem_palavras": 120, "contagem_linhas": 10},
		{"titulo": "B", "artista": "Jorge e Mateus", "letra": "festa de amor", "url": "u2", "contagem_palavras": 80, "contagem_linhas": 8}
	]`), 0o644))

	cmd := newStatsCmd()
	cmd.SetArgs([]string{input, "--html", filepath.Join(dir, "r.html")})
	require.NoError(t, cmd.Execute())

	md, err := os.ReadFile(filepath.Join(dir, "musicas_relatorio.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "Total de músicas: 2")
	assert.FileExists(t, filepath.Join(dir, "musicas_relatorio.xlsx"))
	assert.FileExists(t, filepath.Join(dir, "r.html"))
}

// fakeOllama answers every generate call with "4", or with a 500 when fail
// matches the prompt. It counts the requests it receives.
func fakeOllama(t *testing.T, fail func(prompt string) bool) (*httptest.Server, *int64) {
	t.Helper()
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || r.URL.Path != "/api/generate" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if fail != nil && fail(req.Prompt) {
			http.Error(w, "model crashed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"4","done":true}`))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("LLMUSIC_PROVIDER", "ollama")
	t.Setenv("LLMUSIC_BASE_URL", srv.URL)
	t.Setenv("LLMUSIC_MODEL", "test-model")
	t.Setenv("LLMUSIC_INFERENCIAS", "3")
	t.Setenv("LLMUSIC_REQUEST_DELAY", "0s")
	t.Setenv("LLMUSIC_WORKERS", "1")
	t.Setenv("DATABASE_URL", "")
	return srv, &calls
}

func writeClassifyInputs(t *testing.T, excerpts string) (dir, excerptsPath, topicsPath string) {
	t.Helper()
	dir = t.TempDir()
	excerptsPath = filepath.Join(dir, "trechos.csv")
	topicsPath = filepath.Join(dir, "topicos.csv")
	require.NoError(t, os.WriteFile(excerptsPath, []byte(excerpts), 0o644))
	require.NoError(t, os.WriteFile(topicsPath, []byte("id,topicos_temas\n1,Amor\n2,Festa\n"), 0o644))
	return dir, excerptsPath, topicsPath
}

const twoExcerpts = "tag_trecho,letra\nt1,Eu te amo demais\nt2,Hoje tem festa no bar\n"

func TestClassifyCommandWritesReportAndLog(t *testing.T) {
	_, calls := fakeOllama(t, nil)
	dir, excerpts, topics := writeClassifyInputs(t, twoExcerpts)
	output := filepath.Join(dir, "saida.csv")

	cmd := newClassifyCmd()
	cmd.SetArgs([]string{"--excerpts", excerpts, "--topics", topics, "--output", output})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, int64(2*2*3), atomic.LoadInt64(calls))
	table, err := tabular.Read(output)
	require.NoError(t, err)
	require.Len(t, table.Rows, 4)
	ids := table.Column("trecho_id")
	assert.Equal(t, []string{"t1", "t1", "t2", "t2"}, ids)
	for _, c := range table.Column("classificado_positivo") {
		assert.Equal(t, "1", c)
	}

	logData, err := os.ReadFile(filepath.Join(dir, "saida.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "Report saved to "+output+" (4 rows)")
}

func TestClassifyCommandRejectsMissingColumnBeforeCalls(t *testing.T) {
	_, calls := fakeOllama(t, nil)
	dir, excerpts, topics := writeClassifyInputs(t, "tag_trecho,texto\nt1,Eu te amo\n")
	output := filepath.Join(dir, "saida.csv")

	cmd := newClassifyCmd()
	cmd.SetArgs([]string{"--excerpts", excerpts, "--topics", topics, "--output", output})
	cmd.SilenceUsage = true
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "letra")

	assert.Zero(t, atomic.LoadInt64(calls))
	assert.NoFileExists(t, output)
	assert.NoFileExists(t, filepath.Join(dir, "saida.log"))
}

func TestClassifyCommandLeavesOutStarvedPairs(t *testing.T) {
	_, calls := fakeOllama(t, func(prompt string) bool {
		return strings.Contains(prompt, "Topico: Festa")
	})
	dir, excerpts, topics := writeClassifyInputs(t, twoExcerpts)
	output := filepath.Join(dir, "saida.csv")

	cmd := newClassifyCmd()
	cmd.SetArgs([]string{"--excerpts", excerpts, "--topics", topics, "--output", output})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, int64(12), atomic.LoadInt64(calls))
	table, err := tabular.Read(output)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Amor", "Amor"}, table.Column("topico_nome"))
}

func TestClassifyCommandReturnsRunErrorAfterWritingReport(t *testing.T) {
	_, calls := fakeOllama(t, nil)
	dir, excerpts, topics := writeClassifyInputs(t, twoExcerpts)
	output := filepath.Join(dir, "saida.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := newClassifyCmd()
	cmd.SetArgs([]string{"--excerpts", excerpts, "--topics", topics, "--output", output})
	cmd.SilenceUsage = true
	err := cmd.ExecuteContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, atomic.LoadInt64(calls))
	data, readErr := os.ReadFile(output)
	require.NoError(t, readErr)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "trecho_id,"))
	assert.FileExists(t, filepath.Join(dir, "saida.log"))
}
