package weather

import "strings"

// Sample is the subset of a weather reading that drives the fishing score.
type Sample struct {
	TempC     float64
	WindSpeed float64 // m/s
	Pressure  float64 // hPa
	Sky       string  // provider's main condition, e.g. "Clouds"
}

// Assessment is a 0-100 fishing score with its supporting observations.
type Assessment struct {
	Score           int      `json:"score"`
	Rating          string   `json:"rating"`
	Conditions      []string `json:"conditions"`
	Recommendations []string `json:"recommendations"`
}

// Assess scores how promising a reading is for a day on the water.
// The weights favour mild temperature, a light breeze, stable pressure
// and overcast skies.
func Assess(s Sample) Assessment {
	score := 50
	conditions := []string{}

	switch {
	case s.TempC >= 15 && s.TempC <= 25:
		score += 20
		conditions = append(conditions, "Good temperature for fishing")
	case s.TempC >= 10 && s.TempC <= 30:
		score += 10
		conditions = append(conditions, "Acceptable temperature")
	default:
		score -= 10
		conditions = append(conditions, "Temperature not ideal for fishing")
	}

	switch {
	case s.WindSpeed >= 2 && s.WindSpeed <= 7:
		score += 15
		conditions = append(conditions, "Light breeze creates good water movement")
	case s.WindSpeed < 2:
		score -= 5
		conditions = append(conditions, "Very calm conditions may reduce fish activity")
	default:
		score -= 15
		conditions = append(conditions, "Strong winds may make fishing difficult")
	}

	switch {
	case s.Pressure >= 1013 && s.Pressure <= 1023:
		score += 10
		conditions = append(conditions, "Stable barometric pressure")
	case s.Pressure > 0 && s.Pressure < 1000:
		score -= 10
		conditions = append(conditions, "Low pressure may reduce fish activity")
	}

	sky := strings.ToLower(s.Sky)
	switch {
	case strings.Contains(sky, "rain"):
		score -= 15
		conditions = append(conditions, "Rain may reduce visibility and comfort")
	case strings.Contains(sky, "cloud"):
		score += 10
		conditions = append(conditions, "Overcast conditions often good for fishing")
	case strings.Contains(sky, "clear"):
		score += 5
		conditions = append(conditions, "Clear skies provide good visibility")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Assessment{
		Score:           score,
		Rating:          rating(score),
		Conditions:      conditions,
		Recommendations: recommendations(s, score),
	}
}

func rating(score int) string {
	switch {
	case score >= 75:
		return "excellent"
	case score >= 60:
		return "good"
	case score >= 45:
		return "fair"
	default:
		return "poor"
	}
}

func recommendations(s Sample, score int) []string {
	recs := []string{}
	sky := strings.ToLower(s.Sky)

	if s.TempC < 10 {
		recs = append(recs,
			"Consider deeper waters where fish may be more active",
			"Use slow-moving baits in cold water")
	} else if s.TempC > 25 {
		recs = append(recs,
			"Fish early morning or evening when it's cooler",
			"Look for shaded areas or deeper water")
	}

	if s.WindSpeed > 10 {
		recs = append(recs,
			"Find sheltered areas to avoid strong winds",
			"Use heavier tackle to maintain control")
	} else if s.WindSpeed < 1 {
		recs = append(recs, "Try areas with current or structure to find active fish")
	}

	if strings.Contains(sky, "rain") {
		recs = append(recs, "Consider postponing trip or find covered fishing spots")
	} else if strings.Contains(sky, "cloud") {
		recs = append(recs,
			"Great time for surface fishing",
			"Fish may be more active in overcast conditions")
	}

	if score >= 70 {
		recs = append(recs, "Excellent conditions - try various techniques")
	} else if score < 45 {
		recs = append(recs, "Consider waiting for better conditions")
	}

	return recs
}
