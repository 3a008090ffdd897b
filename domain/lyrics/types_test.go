package lyrics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPreview(t *testing.T) {
	short := Excerpt{Text: "Eu sei que vou te amar"}
	assert.Equal(t, short.Text, short.Preview())

	exact := Excerpt{Text: strings.Repeat("a", 53)}
	assert.Equal(t, exact.Text, exact.Preview())

	long := Excerpt{Text: strings.Repeat("ç", 54)}
	assert.Equal(t, strings.Repeat("ç", 50)+"...", long.Preview())
}

func TestTopicID(t *testing.T) {
	assert.Equal(t, "3", TopicID("3"))
	assert.Equal(t, "3", TopicID(" 3.0 "))
	assert.Equal(t, "2.5", TopicID("2.5"))
	assert.Equal(t, "amor", TopicID("amor"))
}

func TestSongRow(t *testing.T) {
	s := Song{
		Title: "Evidências", Artist: "Chitãozinho & Xororó", Lyric: "quando eu digo",
		URL: "https://www.letras.mus.br/x/", CollectedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		WordCount: 3, LineCount: 1,
	}
	assert.Equal(t, []string{"Evidências", "Chitãozinho & Xororó", "quando eu digo", "https://www.letras.mus.br/x/", "", "2024-01-02T03:04:05Z", "3", "1"}, s.Row())
	assert.False(t, s.HasYear())

	s.Year = 1990
	assert.Equal(t, "1990", s.Row()[4])
	assert.Len(t, SongHeaders, len(s.Row()))
}
