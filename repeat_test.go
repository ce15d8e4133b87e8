package main

import (
	"errors"
	"reflect"
	"testing"
)

// measuresFrom numbers a list of measures starting at 1 and fills in 120 BPM
// 4/4.
func measuresFrom(ms ...MeasureInfo) []MeasureInfo {
	for i := range ms {
		ms[i].Number = i + 1
		ms[i].TempoBPM = 120
		ms[i].TimeSignature = commonTime
	}
	return ms
}

func sourceNumbers(played []PlayedMeasure) []int {
	numbers := make([]int, len(played))
	for i, pm := range played {
		numbers[i] = pm.Source.Number
	}
	return numbers
}

func checkSequence(t *testing.T, played []PlayedMeasure) {
	t.Helper()
	for i, pm := range played {
		if pm.Sequence != i+1 {
			t.Errorf("Played measure %d: expected sequence %d, got %d", i, i+1, pm.Sequence)
		}
	}
}

func TestExpandRepeatsWithoutRepeats(t *testing.T) {
	measures := measuresFrom(MeasureInfo{}, MeasureInfo{}, MeasureInfo{DoubleBar: true}, MeasureInfo{})

	played, err := ExpandRepeats(measures, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(played) != len(measures) {
		t.Fatalf("Expected %d played measures, got %d", len(measures), len(played))
	}
	checkSequence(t, played)

	if got := sourceNumbers(played); !reflect.DeepEqual(got, []int{1, 2, 3, 4}) {
		t.Errorf("Expected [1 2 3 4], got %v", got)
	}
	for _, pm := range played {
		if pm.Pass != 1 {
			t.Errorf("Expected pass 1 outside repeats, got %d", pm.Pass)
		}
	}
}

func TestExpandRepeatsSimpleRepeat(t *testing.T) {
	measures := measuresFrom(
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{},
		MeasureInfo{RepeatClose: 2},
	)

	played, err := ExpandRepeats(measures, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []int{1, 2, 3, 1, 2, 3, 1, 2, 3}
	if got := sourceNumbers(played); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
	checkSequence(t, played)

	passes := []int{1, 1, 1, 2, 2, 2, 3, 3, 3}
	for i, pm := range played {
		if pm.Pass != passes[i] {
			t.Errorf("Played measure %d: expected pass %d, got %d", i+1, passes[i], pm.Pass)
		}
	}
}

func TestExpandRepeatsAlternativeEndings(t *testing.T) {
	measures := measuresFrom(
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{RepeatAlternative: 1},
		MeasureInfo{RepeatAlternative: 2},
		MeasureInfo{RepeatClose: 1},
	)

	played, err := ExpandRepeats(measures, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []int{1, 2, 4, 1, 3, 4}
	if got := sourceNumbers(played); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
	checkSequence(t, played)
}

func TestExpandRepeatsAlternativeOnClosingMeasure(t *testing.T) {
	measures := measuresFrom(
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{},
		MeasureInfo{RepeatAlternative: 1, RepeatClose: 1},
		MeasureInfo{RepeatAlternative: 2},
		MeasureInfo{},
	)

	played, err := ExpandRepeats(measures, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// the second ending sits after the close and is played once, in order
	expected := []int{1, 2, 3, 1, 2, 4, 5}
	if got := sourceNumbers(played); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestExpandRepeatsWithoutOpen(t *testing.T) {
	measures := measuresFrom(
		MeasureInfo{},
		MeasureInfo{RepeatClose: 1},
		MeasureInfo{},
	)

	played, err := ExpandRepeats(measures, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []int{1, 2, 1, 2, 3}
	if got := sourceNumbers(played); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestExpandRepeatsRegionsInSequence(t *testing.T) {
	measures := measuresFrom(
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{RepeatClose: 1},
		MeasureInfo{},
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{RepeatClose: 1},
	)

	played, err := ExpandRepeats(measures, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []int{1, 2, 1, 2, 3, 4, 5, 4, 5}
	if got := sourceNumbers(played); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestExpandRepeatsOpenWithoutClose(t *testing.T) {
	measures := measuresFrom(
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{},
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{RepeatClose: 1},
	)

	played, err := ExpandRepeats(measures, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []int{1, 2, 3, 4, 3, 4}
	if got := sourceNumbers(played); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestExpandRepeatsNestedUsesFirstClose(t *testing.T) {
	measures := measuresFrom(
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{RepeatClose: 1},
		MeasureInfo{RepeatClose: 1},
	)

	played, err := ExpandRepeats(measures, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// nesting is not recognized: the inner region repeats, then the outer
	// close only repeats its own measure
	expected := []int{1, 2, 3, 2, 3, 4, 4}
	if got := sourceNumbers(played); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestExpandRepeatsOnlyAlternatives(t *testing.T) {
	measures := measuresFrom(
		MeasureInfo{RepeatOpen: true, RepeatAlternative: 1},
		MeasureInfo{RepeatAlternative: 2, RepeatClose: 5},
	)

	played, err := ExpandRepeats(measures, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []int{1, 2}
	if got := sourceNumbers(played); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestExpandRepeatsLimits(t *testing.T) {
	huge := measuresFrom(
		MeasureInfo{RepeatOpen: true},
		MeasureInfo{RepeatClose: 1 << 30},
	)

	_, err := ExpandRepeats(huge, ExpandLimits{})
	if !errors.Is(err, ErrUnboundedExpansion) {
		t.Errorf("Expected ErrUnboundedExpansion, got %v", err)
	}

	plain := measuresFrom(MeasureInfo{}, MeasureInfo{}, MeasureInfo{})
	_, err = ExpandRepeats(plain, ExpandLimits{MaxMeasures: 2})
	if !errors.Is(err, ErrUnboundedExpansion) {
		t.Errorf("Expected ErrUnboundedExpansion for plain measures over the limit, got %v", err)
	}

	played, err := ExpandRepeats(plain, ExpandLimits{MaxMeasures: 3})
	if err != nil {
		t.Fatalf("Expected exactly the limit to pass, got %v", err)
	}
	if len(played) != 3 {
		t.Errorf("Expected 3 played measures, got %d", len(played))
	}

	repeated := measuresFrom(MeasureInfo{RepeatOpen: true}, MeasureInfo{RepeatClose: 2})
	if _, err := ExpandRepeats(repeated, ExpandLimits{MaxMeasures: 5}); !errors.Is(err, ErrUnboundedExpansion) {
		t.Errorf("Expected ErrUnboundedExpansion for 6 played measures with limit 5, got %v", err)
	}
}

func TestExpandRepeatsEmpty(t *testing.T) {
	played, err := ExpandRepeats(nil, ExpandLimits{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(played) != 0 {
		t.Errorf("Expected no played measures, got %d", len(played))
	}
}
