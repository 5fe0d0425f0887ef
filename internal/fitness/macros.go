// Package fitness holds the pure calculators behind the athlete and coach
// dashboards: macro targets, streaks, body metrics and trend aggregation.
// Nothing here touches the database; callers load the records first.
package fitness

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

/* ─── Enumerations ───────────────────────────────────────────────────── */

// Sex selects the Mifflin-St Jeor constant.
type Sex int

const (
	SexFemale Sex = iota
	SexMale
)

// ActivityLevel is the closed set of TDEE multipliers.
type ActivityLevel int

const (
	ActivityModerate ActivityLevel = iota
	ActivitySedentary
	ActivityLight
	ActivityActive
	ActivityVeryActive
)

// Goal drives the calorie adjustment and protein target.
type Goal int

const (
	GoalMaintain Goal = iota
	GoalLoss
	GoalGain
)

// activityMultipliers is the single source of truth for TDEE scaling.
var activityMultipliers = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

// activityTokens maps normalized input (lowercase, no accents, single spaces)
// to an ActivityLevel. French tokens come from existing profile rows.
var activityTokens = map[string]ActivityLevel{
	"sedentary":   ActivitySedentary,
	"sedentaire":  ActivitySedentary,
	"light":       ActivityLight,
	"leger":       ActivityLight,
	"moderate":    ActivityModerate,
	"modere":      ActivityModerate,
	"active":      ActivityActive,
	"actif":       ActivityActive,
	"very active": ActivityVeryActive,
	"tres actif":  ActivityVeryActive,
}

var goalTokens = map[string]Goal{
	"perte de poids":  GoalLoss,
	"perte":           GoalLoss,
	"loss":            GoalLoss,
	"weight loss":     GoalLoss,
	"lose":            GoalLoss,
	"prise de masse":  GoalGain,
	"gain musculaire": GoalGain,
	"muscle":          GoalGain,
	"muscle gain":     GoalGain,
	"gain":            GoalGain,
	"maintien":        GoalMaintain,
	"maintenance":     GoalMaintain,
	"maintain":        GoalMaintain,
}

var maleTokens = map[string]bool{
	"male":  true,
	"m":     true,
	"man":   true,
	"homme": true,
	"h":     true,
}

// normalizeToken lowercases, strips combining marks and collapses
// underscores, hyphens and repeated whitespace to single spaces, so
// "Très_Actif" and "tres actif" compare equal.
func normalizeToken(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("_", " ", "-", " ").Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// ParseSex returns ok=false only for an empty token. Any non-male token
// selects the female constant.
func ParseSex(s string) (Sex, bool) {
	n := normalizeToken(s)
	if n == "" {
		return SexFemale, false
	}
	if maleTokens[n] {
		return SexMale, true
	}
	return SexFemale, true
}

// ParseActivityLevel falls back to ActivityModerate for unknown tokens.
func ParseActivityLevel(s string) ActivityLevel {
	level, _ := LookupActivityLevel(s)
	return level
}

// LookupActivityLevel reports whether s is a recognized token. Used by the
// profile handler to reject typos before they are stored.
func LookupActivityLevel(s string) (ActivityLevel, bool) {
	level, ok := activityTokens[normalizeToken(s)]
	if !ok {
		return ActivityModerate, false
	}
	return level, true
}

// ParseGoal falls back to GoalMaintain for unknown tokens.
func ParseGoal(s string) Goal {
	goal, _ := LookupGoal(s)
	return goal
}

// LookupGoal reports whether s is a recognized goal token.
func LookupGoal(s string) (Goal, bool) {
	goal, ok := goalTokens[normalizeToken(s)]
	if !ok {
		return GoalMaintain, false
	}
	return goal, true
}

func (a ActivityLevel) String() string {
	switch a {
	case ActivitySedentary:
		return "sedentary"
	case ActivityLight:
		return "light"
	case ActivityActive:
		return "active"
	case ActivityVeryActive:
		return "very_active"
	default:
		return "moderate"
	}
}

func (g Goal) String() string {
	switch g {
	case GoalLoss:
		return "loss"
	case GoalGain:
		return "gain"
	default:
		return "maintain"
	}
}

func (s Sex) String() string {
	if s == SexMale {
		return "male"
	}
	return "female"
}

/* ─── Calculator ─────────────────────────────────────────────────────── */

// MacroGoals is the daily target handed to the dashboard.
type MacroGoals struct {
	Calories int     `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatsG    float64 `json:"fats_g"`
}

// Profile is the calculator's view of an athlete. Nil pointers mean the
// field was never filled in.
type Profile struct {
	Age           *int
	HeightM       *float64
	Sex           *string
	ActivityLevel *string
	Goal          *string
}

// MacroResult carries the intermediate values along with the goals so the
// CLI and dashboard can show where the numbers came from.
type MacroResult struct {
	BMR   float64    `json:"bmr"`
	TDEE  float64    `json:"tdee"`
	Goals MacroGoals `json:"goals"`
}

const (
	fatShare       = 0.275
	kcalPerGramFat = 9.0
	kcalPerGramPC  = 4.0
)

// CalculateBMR uses Mifflin-St Jeor. heightM is converted to centimetres.
func CalculateBMR(weightKG, heightM float64, age int, sex Sex) float64 {
	heightCM := heightM * 100
	bmr := 10*weightKG + 6.25*heightCM - 5*float64(age)
	if sex == SexMale {
		return bmr + 5
	}
	return bmr - 161
}

// CalculateTDEE scales BMR by the activity multiplier.
func CalculateTDEE(bmr float64, level ActivityLevel) float64 {
	mult, ok := activityMultipliers[level]
	if !ok {
		mult = activityMultipliers[ActivityModerate]
	}
	return bmr * mult
}

// goalAdjustment returns the unrounded daily calories and protein grams.
func goalAdjustment(tdee float64, goal Goal, weightKG float64) (calories, proteinG float64) {
	switch goal {
	case GoalLoss:
		return tdee - 500, weightKG * 2.0
	case GoalGain:
		return tdee + 300, weightKG * 2.2
	default:
		return tdee, weightKG * 1.8
	}
}

// CalculateDailyGoals splits the goal-adjusted calories into macros.
func CalculateDailyGoals(tdee float64, goal Goal, weightKG float64) MacroGoals {
	calories, proteinG := goalAdjustment(tdee, goal, weightKG)

	fatCalories := calories * fatShare
	proteinCalories := proteinG * kcalPerGramPC
	carbCalories := calories - proteinCalories - fatCalories

	return MacroGoals{
		Calories: int(math.Round(calories)),
		ProteinG: roundTo(proteinG, 1),
		CarbsG:   roundTo(carbCalories/kcalPerGramPC, 1),
		FatsG:    roundTo(fatCalories/kcalPerGramFat, 1),
	}
}

// CalculateForProfile runs the full pipeline. Returns ok=false when age,
// height or sex is missing, or when weight/height/age are not positive.
func CalculateForProfile(p Profile, weightKG float64) (MacroResult, bool) {
	if p.Age == nil || p.HeightM == nil || p.Sex == nil {
		return MacroResult{}, false
	}
	sex, ok := ParseSex(*p.Sex)
	if !ok {
		return MacroResult{}, false
	}
	if *p.Age <= 0 || *p.HeightM <= 0 || weightKG <= 0 {
		return MacroResult{}, false
	}

	level := ActivityModerate
	if p.ActivityLevel != nil {
		level = ParseActivityLevel(*p.ActivityLevel)
	}
	goal := GoalMaintain
	if p.Goal != nil {
		goal = ParseGoal(*p.Goal)
	}

	bmr := CalculateBMR(weightKG, *p.HeightM, *p.Age, sex)
	tdee := CalculateTDEE(bmr, level)
	return MacroResult{
		BMR:   bmr,
		TDEE:  tdee,
		Goals: CalculateDailyGoals(tdee, goal, weightKG),
	}, true
}

// roundTo rounds half away from zero to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
