package tabular

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSVNormalisesRows(t *testing.T) {
	in := "\ufeff tag_trecho ,letra,extra\n1,primeiro trecho\n,,\n2,segundo,x,overflow\n"
	table, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"tag_trecho", "letra", "extra"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"1", "primeiro trecho", ""}, table.Rows[0])
	assert.Equal(t, []string{"2", "segundo", "x"}, table.Rows[1])
	assert.Equal(t, []string{"primeiro trecho", "segundo"}, table.Column("letra"))
	assert.Nil(t, table.Column("missing"))
	assert.True(t, table.Has("extra"))
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, Write(path, []string{"a", "b"}, [][]string{{"1", "x, y"}, {"2", "z"}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x, y\"\n2,z\n", string(raw))

	table, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "x, y"}, {"2", "z"}}, table.Rows)
}

func TestWriteXLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, Write(path, []string{"id", "tema"}, [][]string{{"1", "Saudade"}, {"2", "Festa"}}))

	table, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "tema"}, table.Headers)
	assert.Equal(t, [][]string{{"1", "Saudade"}, {"2", "Festa"}}, table.Rows)
}

func TestWriteWorkbookSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	err := WriteWorkbook(path, []Sheet{
		{Name: "Resumo", Headers: []string{"k", "v"}, Rows: [][]interface{}{{"musicas", 3}}},
		{Name: "Artistas", Headers: []string{"artista"}, Rows: [][]interface{}{{"A"}, {"B"}}},
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Resumo", "Artistas"}, f.GetSheetList())

	v, err := f.GetCellValue("Resumo", "B2")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	rows, err := f.GetRows("Artistas")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestWriteWorkbookNeedsSheet(t *testing.T) {
	assert.Error(t, WriteWorkbook(filepath.Join(t.TempDir(), "x.xlsx"), nil))
}

func TestWriteCSVToBuffer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"h"}, nil))
	assert.Equal(t, "h\n", buf.String())
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatXLSX, FormatOf("a/b/Report.XLSX"))
	assert.Equal(t, FormatCSV, FormatOf("a.csv"))
	assert.Equal(t, FormatCSV, FormatOf("noext"))
}
