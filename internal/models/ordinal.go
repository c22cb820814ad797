package models

// OrdinalScale is a bidirectional lookup between enum values and their ordinal
// numbers. Values missing from the table map to Default.
type OrdinalScale struct {
	Name    string
	Default int
	values  map[string]int
	names   map[int]string
}

// NewOrdinalScale builds a scale from value->number pairs
func NewOrdinalScale(name string, defaultValue int, values map[string]int) *OrdinalScale {
	s := &OrdinalScale{
		Name:    name,
		Default: defaultValue,
		values:  make(map[string]int, len(values)),
		names:   make(map[int]string, len(values)),
	}
	for k, v := range values {
		s.values[k] = v
		s.names[v] = k
	}
	return s
}

// Number returns the ordinal for value, or Default if unmapped
func (s *OrdinalScale) Number(value string) int {
	if n, ok := s.values[value]; ok {
		return n
	}
	return s.Default
}

// Lookup returns the ordinal for value and whether it was mapped
func (s *OrdinalScale) Lookup(value string) (int, bool) {
	n, ok := s.values[value]
	return n, ok
}

// Value returns the enum value for an ordinal, or "" if unmapped
func (s *OrdinalScale) Value(n int) string {
	return s.names[n]
}

// Max returns the largest ordinal in the scale
func (s *OrdinalScale) Max() int {
	max := 0
	for _, v := range s.values {
		if v > max {
			max = v
		}
	}
	return max
}

// Normalized maps value onto [0,1] using the scale's min of 1 and its max
func (s *OrdinalScale) Normalized(value string) float64 {
	max := s.Max()
	if max <= 1 {
		return 0
	}
	return float64(s.Number(value)-1) / float64(max-1)
}

var (
	// MoodScale maps mood to 1 (poor) .. 5 (excellent); unmapped is neutral (3)
	MoodScale = NewOrdinalScale("mood", 3, map[string]int{
		string(MoodPoor):      1,
		string(MoodLow):       2,
		string(MoodNeutral):   3,
		string(MoodGood):      4,
		string(MoodExcellent): 5,
	})

	// EnergyScale maps energy to 1 (low) .. 3 (high); unmapped is medium (2)
	EnergyScale = NewOrdinalScale("energy", 2, map[string]int{
		string(LevelLow):    1,
		string(LevelMedium): 2,
		string(LevelHigh):   3,
	})

	// MotivationScale maps motivation to 1 (struggling) .. 4 (high); unmapped is medium (3)
	MotivationScale = NewOrdinalScale("motivation", 3, map[string]int{
		string(MotivationStruggling): 1,
		string(MotivationLow):        2,
		string(MotivationMedium):     3,
		string(MotivationHigh):       4,
	})

	// StressScale maps stress to 1 (low) .. 4 (overwhelming); unmapped is moderate (2)
	StressScale = NewOrdinalScale("stress", 2, map[string]int{
		string(StressLow):          1,
		string(StressModerate):     2,
		string(StressHigh):         3,
		string(StressOverwhelming): 4,
	})
)

// IsValidMood reports whether m is one of the recognized mood values
func IsValidMood(m Mood) bool {
	_, ok := MoodScale.Lookup(string(m))
	return ok
}
