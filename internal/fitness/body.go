package fitness

import "time"

// BMI categories as shown on the athlete dashboard.
const (
	BMIUnderweight = "underweight"
	BMINormal      = "normal"
	BMIOverweight  = "overweight"
	BMIObese       = "obese"
)

// BMI returns weight / height² rounded to one decimal, with its category.
// ok=false when height or weight is not positive.
func BMI(weightKG, heightM float64) (bmi float64, category string, ok bool) {
	if weightKG <= 0 || heightM <= 0 {
		return 0, "", false
	}
	raw := weightKG / (heightM * heightM)
	switch {
	case raw < 18.5:
		category = BMIUnderweight
	case raw < 25:
		category = BMINormal
	case raw < 30:
		category = BMIOverweight
	default:
		category = BMIObese
	}
	return roundTo(raw, 1), category, true
}

// WeightPoint is one measurement in a weight history.
type WeightPoint struct {
	Date     time.Time `json:"date"`
	WeightKG float64   `json:"weight_kg"`
}

// WeightChange is newest minus oldest weight in history, rounded to one
// decimal. History may be in any order; ok=false with fewer than two points.
func WeightChange(history []WeightPoint) (float64, bool) {
	if len(history) < 2 {
		return 0, false
	}
	oldest, newest := history[0], history[0]
	for _, p := range history[1:] {
		if p.Date.Before(oldest.Date) {
			oldest = p
		}
		if p.Date.After(newest.Date) {
			newest = p
		}
	}
	return roundTo(newest.WeightKG-oldest.WeightKG, 1), true
}
