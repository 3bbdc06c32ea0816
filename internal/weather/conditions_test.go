package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessIdealConditions(t *testing.T) {
	a := Assess(Sample{TempC: 20, WindSpeed: 4, Pressure: 1016, Sky: "Clouds"})

	// 50 + 20 temp + 15 wind + 10 pressure + 10 overcast
	assert.Equal(t, 100, a.Score)
	assert.Equal(t, "excellent", a.Rating)
	assert.Contains(t, a.Conditions, "Good temperature for fishing")
	assert.Contains(t, a.Recommendations, "Excellent conditions - try various techniques")
}

func TestAssessHostileConditions(t *testing.T) {
	a := Assess(Sample{TempC: 2, WindSpeed: 14, Pressure: 990, Sky: "Rain"})

	// 50 - 10 temp - 15 wind - 10 pressure - 15 rain
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, "poor", a.Rating)
	assert.Contains(t, a.Recommendations, "Consider waiting for better conditions")
	assert.Contains(t, a.Recommendations, "Use slow-moving baits in cold water")
}

func TestAssessScoreStaysInBounds(t *testing.T) {
	for _, s := range []Sample{
		{TempC: -30, WindSpeed: 40, Pressure: 950, Sky: "Rain"},
		{TempC: 20, WindSpeed: 4, Pressure: 1016, Sky: "Clouds"},
	} {
		a := Assess(s)
		require.GreaterOrEqual(t, a.Score, 0)
		require.LessOrEqual(t, a.Score, 100)
	}
}

func TestAssessMissingPressureIsNeutral(t *testing.T) {
	withZero := Assess(Sample{TempC: 20, WindSpeed: 4, Pressure: 0, Sky: "Clear"})
	withLow := Assess(Sample{TempC: 20, WindSpeed: 4, Pressure: 995, Sky: "Clear"})

	// an absent reading must not be scored like a storm front
	assert.Greater(t, withZero.Score, withLow.Score)
}

func TestRatingBands(t *testing.T) {
	assert.Equal(t, "excellent", rating(75))
	assert.Equal(t, "good", rating(60))
	assert.Equal(t, "fair", rating(45))
	assert.Equal(t, "poor", rating(44))
}
