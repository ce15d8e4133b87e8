package main

import "fmt"

// DefaultMaxPlayedMeasures bounds the output of ExpandRepeats.
const DefaultMaxPlayedMeasures = 10000

// PlayedMeasure is one measure of the performance after repeats are expanded.
// Sequence is dense and 1-based over the played order; Source.Number still
// refers to the measure in the tab.
type PlayedMeasure struct {
	Sequence int         `json:"sequence" yaml:"sequence"`
	Pass     int         `json:"pass" yaml:"pass"`
	Source   MeasureInfo `json:"source" yaml:"source"`
}

type ExpandLimits struct {
	MaxMeasures int // zero means DefaultMaxPlayedMeasures
}

func (l ExpandLimits) maxMeasures() int {
	if l.MaxMeasures <= 0 {
		return DefaultMaxPlayedMeasures
	}
	return l.MaxMeasures
}

// ExpandRepeats flattens repeat regions and alternative endings into the
// sequence of measures actually played.
//
// A region runs from the current measure up to the first measure with a
// repeat close, unless another repeat open is met first. The region is played
// RepeatClose+1 times; on pass p its measures are played in order, skipping
// alternative endings that belong to other passes. Nested regions are not
// recognized: the first close ends the region.
func ExpandRepeats(measures []MeasureInfo, limits ExpandLimits) ([]PlayedMeasure, error) {
	limit := limits.maxMeasures()
	played := make([]PlayedMeasure, 0, len(measures))

	emit := func(m MeasureInfo, pass int) {
		played = append(played, PlayedMeasure{
			Sequence: len(played) + 1,
			Pass:     pass,
			Source:   m,
		})
	}

	i := 0
	for i < len(measures) {
		end, found := findRepeatRegion(measures, i)
		if !found {
			if len(played)+1 > limit {
				return nil, fmt.Errorf("%w: more than %d played measures", ErrUnboundedExpansion, limit)
			}
			emit(measures[i], 1)
			i++
			continue
		}

		region := measures[i : end+1]
		passes := region[len(region)-1].RepeatClose + 1

		count, lastPass := regionLength(region, passes, limit-len(played))
		if count < 0 || len(played)+count > limit {
			return nil, fmt.Errorf("%w: repeat at measures %d-%d (%d passes) exceeds %d played measures",
				ErrUnboundedExpansion, region[0].Number, region[len(region)-1].Number, passes, limit)
		}

		for pass := 1; pass <= lastPass; pass++ {
			for _, m := range region {
				if m.RepeatAlternative == 0 || m.RepeatAlternative == pass {
					emit(m, pass)
				}
			}
		}

		i = end + 1
	}

	return played, nil
}

// findRepeatRegion returns the index of the repeat close that ends the region
// starting at start.
func findRepeatRegion(measures []MeasureInfo, start int) (int, bool) {
	for j := start; j < len(measures); j++ {
		if j != start && measures[j].RepeatOpen {
			return 0, false
		}
		if measures[j].RepeatClose > 0 {
			return j, true
		}
	}
	return 0, false
}

// regionLength counts the measures emitted for a region over all passes
// without materializing them. It returns -1 once the count passes budget. The
// second value is the last pass that emits anything, so a region made only of
// alternative endings does not loop over empty passes.
func regionLength(region []MeasureInfo, passes, budget int) (int, int) {
	mainCount := 0
	altCount := make(map[int]int)
	lastAlt := 0
	for _, m := range region {
		if m.RepeatAlternative == 0 {
			mainCount++
			continue
		}
		altCount[m.RepeatAlternative]++
		if m.RepeatAlternative > lastAlt {
			lastAlt = m.RepeatAlternative
		}
	}

	lastPass := passes
	if mainCount == 0 && lastAlt < lastPass {
		lastPass = lastAlt
	}

	if mainCount > 0 && passes > budget/mainCount+1 {
		return -1, lastPass
	}

	count := mainCount * lastPass
	for pass, n := range altCount {
		if pass <= lastPass {
			count += n
		}
	}
	if count > budget {
		return -1, lastPass
	}
	return count, lastPass
}
