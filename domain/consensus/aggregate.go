// Package consensus reduces repeated relevance samples for one
// (excerpt, topic) pair into a single judgement with a confidence label.
package consensus

import (
	"errors"
	"math"

	"github.com/montanaflynn/stats"
)

// Confidence is a coarse bucket derived from the dispersion of the samples.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const (
	MinScore = 1
	MaxScore = 5

	// PositiveMode is the smallest representative score classified positive.
	PositiveMode = 4
	// MaxPositiveStdDev is the largest dispersion still classified positive.
	MaxPositiveStdDev = 1.5

	HighConfidenceStdDev   = 0.5
	MediumConfidenceStdDev = 1.0
)

// ErrNoSamples is returned when a pair has no valid score at all.
var ErrNoSamples = errors.New("consensus: no valid samples")

// Result is the consensus judgement for one pair.
type Result struct {
	Scores     []int
	Count      int
	Mean       float64
	Mode       int
	StdDev     float64
	Positive   bool
	Confidence Confidence
}

// Classification returns 1 for a positive judgement and 0 otherwise.
func (r Result) Classification() int {
	if r.Positive {
		return 1
	}
	return 0
}

// Aggregate computes the consensus over valid scores in [1,5].
//
// The representative value is the unique most frequent score. When several
// scores tie for most frequent it falls back to the median rounded half to
// even; that policy is kept as is.
func Aggregate(scores []int) (Result, error) {
	if len(scores) == 0 {
		return Result{}, ErrNoSamples
	}

	data := make(stats.Float64Data, len(scores))
	for i, s := range scores {
		data[i] = float64(s)
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return Result{}, err
	}
	stdDev, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return Result{}, err
	}
	mode, err := representative(data)
	if err != nil {
		return Result{}, err
	}

	raw := make([]int, len(scores))
	copy(raw, scores)

	return Result{
		Scores:     raw,
		Count:      len(scores),
		Mean:       mean,
		Mode:       mode,
		StdDev:     stdDev,
		Positive:   Classify(mode, stdDev),
		Confidence: ConfidenceFor(stdDev),
	}, nil
}

// Classify applies the positive rule: high central value and low dispersion.
func Classify(mode int, stdDev float64) bool {
	return mode >= PositiveMode && stdDev <= MaxPositiveStdDev
}

// ConfidenceFor buckets a standard deviation.
func ConfidenceFor(stdDev float64) Confidence {
	switch {
	case stdDev <= HighConfidenceStdDev:
		return ConfidenceHigh
	case stdDev <= MediumConfidenceStdDev:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func representative(data stats.Float64Data) (int, error) {
	if m, ok := uniqueMode(data); ok {
		return m, nil
	}
	median, err := stats.Median(data)
	if err != nil {
		return 0, err
	}
	return int(math.RoundToEven(median)), nil
}

// uniqueMode returns the most frequent value when exactly one value holds
// the highest count.
func uniqueMode(data stats.Float64Data) (int, bool) {
	counts := make(map[int]int, len(data))
	for _, v := range data {
		counts[int(v)]++
	}
	best, bestCount, tied := 0, 0, false
	for v, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount, tied = v, c, false
		case c == bestCount:
			tied = true
		}
	}
	return best, !tied
}
