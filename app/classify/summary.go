package classify

import (
	"fmt"
	"sort"
	"strings"

	"llmusic/domain/consensus"
)

// TopicSummary aggregates the records of one topic.
type TopicSummary struct {
	TopicID   string
	TopicName string
	Pairs     int
	Positive  int
	MeanScore float64
}

// Summary aggregates the records of a run.
type Summary struct {
	Records      int
	Positive     int
	ByConfidence map[consensus.Confidence]int
	Topics       []TopicSummary
}

// Summarize groups records by topic in first-seen order.
func Summarize(records []Record) Summary {
	s := Summary{Records: len(records), ByConfidence: make(map[consensus.Confidence]int)}
	index := make(map[string]int)
	sums := make([]float64, 0)
	for _, r := range records {
		if r.Positive {
			s.Positive++
		}
		s.ByConfidence[r.Confidence]++

		i, ok := index[r.TopicID]
		if !ok {
			i = len(s.Topics)
			index[r.TopicID] = i
			s.Topics = append(s.Topics, TopicSummary{TopicID: r.TopicID, TopicName: r.TopicName})
			sums = append(sums, 0)
		}
		s.Topics[i].Pairs++
		if r.Positive {
			s.Topics[i].Positive++
		}
		sums[i] += r.Mean
	}
	for i := range s.Topics {
		s.Topics[i].MeanScore = Round2(sums[i] / float64(s.Topics[i].Pairs))
	}
	return s
}

// Ranked returns the topics ordered by positive count; ties keep
// first-seen order.
func (s Summary) Ranked() []TopicSummary {
	out := append([]TopicSummary(nil), s.Topics...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Positive > out[j].Positive
	})
	return out
}

// Markdown renders the summary with a per-topic table.
func (s Summary) Markdown(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Pares classificados: %d\n", s.Records)
	fmt.Fprintf(&b, "- Positivos: %d\n", s.Positive)
	for _, c := range []consensus.Confidence{consensus.ConfidenceHigh, consensus.ConfidenceMedium, consensus.ConfidenceLow} {
		fmt.Fprintf(&b, "- Confiança %s: %d\n", c, s.ByConfidence[c])
	}
	fmt.Fprintf(&b, "\n## Tópicos\n\n| ID | Tópico | Pares | Positivos | Média |\n|---|---|---:|---:|---:|\n")
	for _, t := range s.Ranked() {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %s |\n", t.TopicID, t.TopicName, t.Pairs, t.Positive, FormatDecimal(t.MeanScore))
	}
	return b.String()
}
