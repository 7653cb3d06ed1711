// Package nutrition computes energy budgets and macro splits from a
// physiological profile and a training context. All functions are pure:
// full inputs in, numbers plus their derivation out.
package nutrition

import (
	"fmt"
	"math"
)

// Gender of the profile. Unspecified is a valid value: energy formulas then
// use the midpoint of the sex-specific constants.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = "unspecified"
)

// Goal is the training goal driving the calorie strategy.
type Goal string

const (
	GoalMuscleGain     Goal = "muscle_gain"
	GoalFatLoss        Goal = "fat_loss"
	GoalRecomposition  Goal = "recomposition"
	GoalEndurance      Goal = "endurance"
	GoalGeneralFitness Goal = "general_fitness"
)

// Experience tier of the user.
type Experience string

const (
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
)

// DietStyle adjusts protein needs and carbohydrate floors.
type DietStyle string

const (
	DietStandard            DietStyle = "standard"
	DietVegetarian          DietStyle = "vegetarian"
	DietVegan               DietStyle = "vegan"
	DietKeto                DietStyle = "keto"
	DietIntermittentFasting DietStyle = "intermittent_fasting"
)

// Limitation is a medical condition that scales energy targets down.
type Limitation string

const (
	LimitationAsthma         Limitation = "asthma"
	LimitationHypertension   Limitation = "hypertension"
	LimitationDiabetes       Limitation = "diabetes"
	LimitationKneeInjury     Limitation = "knee_injury"
	LimitationShoulderInjury Limitation = "shoulder_injury"
	LimitationBackPain       Limitation = "back_pain"
)

// Profile is the physiological input. Zero values for age, height and weight
// mean "unknown" and are substituted with documented defaults.
type Profile struct {
	Gender         Gender
	Age            int
	HeightCm       float64
	WeightKg       float64
	BodyFatPercent float64 // 0 means unknown
}

// Context carries the training-related inputs of a calculation.
type Context struct {
	Goal              Goal
	Experience        Experience
	TrainingFrequency string // "2x".."6x" sessions per week
	Sleep             string // "Less than 6", "6-7", "7-8", "8-9", "9+"
	Diet              DietStyle
	Limitations       []Limitation
}

// Macros is a macro split in grams per day.
type Macros struct {
	ProteinGrams int
	CarbsGrams   int
	FatGrams     int
}

// Strategy describes how the calorie target relates to maintenance.
type Strategy struct {
	Kind string // "deficit", "surplus" or "maintenance"
	Kcal int    // magnitude relative to TDEE
}

// Plan is the full calculation output including its derivation, so callers
// can render an explanation.
type Plan struct {
	BMR            float64
	TDEE           float64
	TargetCalories float64
	Macros         Macros
	BMI            float64
	BMICategory    string
	Strategy       Strategy
	Assumptions    []string // defaults substituted for missing inputs
}

// Defaults substituted for missing profile values. Substitutions never block
// the calculation; they are reported in Plan.Assumptions instead.
const (
	defaultWeightKg = 70.0
	defaultHeightCm = 175.0
	defaultAge      = 25
)

// Calculate runs the full pipeline: BMR, TDEE, calorie target and macros.
func Calculate(profile Profile, c Context) Plan {
	profile, assumptions := applyDefaults(profile)

	bmr := BMR(profile)
	tdee := TDEE(bmr, profile.Age, c)
	bmi := BMI(profile)
	target := TargetCalories(tdee, bmi, profile, c)
	macros := MacroSplit(target, profile, c)

	return Plan{
		BMR:            bmr,
		TDEE:           tdee,
		TargetCalories: target,
		Macros:         macros,
		BMI:            bmi,
		BMICategory:    bmiCategory(bmi),
		Strategy:       strategy(tdee, target),
		Assumptions:    assumptions,
	}
}

func applyDefaults(profile Profile) (Profile, []string) {
	var assumptions []string
	if profile.WeightKg <= 0 {
		profile.WeightKg = defaultWeightKg
		assumptions = append(assumptions, fmt.Sprintf("weight defaulted to %.0f kg", defaultWeightKg))
	}
	if profile.HeightCm <= 0 {
		profile.HeightCm = defaultHeightCm
		assumptions = append(assumptions, fmt.Sprintf("height defaulted to %.0f cm", defaultHeightCm))
	}
	if profile.Age <= 0 {
		profile.Age = defaultAge
		assumptions = append(assumptions, fmt.Sprintf("age defaulted to %d years", defaultAge))
	}
	if profile.Gender == "" {
		profile.Gender = GenderUnspecified
	}
	return profile, assumptions
}

// BMR computes the basal metabolic rate. With a known body-fat percentage the
// Katch-McArdle formula applies; otherwise Mifflin-St Jeor with an age-bracket
// multiplier. The unspecified gender uses the midpoint of the sex constants.
func BMR(profile Profile) float64 {
	if profile.BodyFatPercent > 0 {
		leanBodyMass := profile.WeightKg * (1 - profile.BodyFatPercent/100)
		return 370 + 21.6*leanBodyMass
	}

	var sexConstant float64
	switch profile.Gender {
	case GenderMale:
		sexConstant = 5
	case GenderFemale:
		sexConstant = -161
	default:
		sexConstant = (5 + -161) / 2.0
	}
	base := 10*profile.WeightKg + 6.25*profile.HeightCm - 5*float64(profile.Age) + sexConstant

	var ageMultiplier float64
	switch age := profile.Age; {
	case age < 18:
		ageMultiplier = 1.12
	case age <= 25:
		ageMultiplier = 1.05
	case age <= 35:
		ageMultiplier = 1.0
	case age <= 45:
		ageMultiplier = 0.97
	case age <= 55:
		ageMultiplier = 0.94
	case age <= 65:
		ageMultiplier = 0.91
	default:
		ageMultiplier = 0.87
	}
	return base * ageMultiplier
}

// TDEE scales the BMR by training frequency, experience, age, sleep quality
// and medical limitations. Every factor is a deterministic table lookup.
func TDEE(bmr float64, age int, c Context) float64 {
	var frequency float64
	switch c.TrainingFrequency {
	case "2x":
		frequency = 1.375
	case "3x":
		frequency = 1.55
	case "4x":
		frequency = 1.725
	case "5x":
		frequency = 1.9
	case "6x":
		frequency = 2.0
	default:
		frequency = 1.2
	}

	experience := 1.0
	switch c.Experience {
	case ExperienceBeginner:
		experience = 1.08 // higher expenditure from inefficient movement
	case ExperienceAdvanced:
		experience = 0.96
	case ExperienceIntermediate:
	}

	ageFactor := 1.0
	switch {
	case age <= 25:
		ageFactor = 1.02
	case age <= 35:
		ageFactor = 1.0
	case age <= 50:
		ageFactor = 0.98
	default:
		ageFactor = 0.95
	}

	sleep := 1.0
	switch c.Sleep {
	case "Less than 6":
		sleep = 0.90
	case "6-7":
		sleep = 0.97
	case "7-8":
		sleep = 1.0
	case "8-9":
		sleep = 1.02
	case "9+":
		sleep = 1.01
	}

	limitation := 1.0
	switch {
	case hasLimitation(c.Limitations, LimitationAsthma):
		limitation = 0.92
	case hasLimitation(c.Limitations, LimitationHypertension, LimitationDiabetes):
		limitation = 0.94
	case hasLimitation(c.Limitations, LimitationKneeInjury, LimitationShoulderInjury, LimitationBackPain):
		limitation = 0.96
	}

	return bmr * frequency * experience * ageFactor * sleep * limitation
}

// BMI is weight over squared height in metres.
func BMI(profile Profile) float64 {
	heightM := profile.HeightCm / 100
	if heightM <= 0 {
		return 0
	}
	return profile.WeightKg / (heightM * heightM)
}

// TargetCalories derives the daily calorie target from TDEE per goal, with a
// final correction for diabetes and hypertension.
func TargetCalories(tdee, bmi float64, profile Profile, c Context) float64 {
	target := tdee
	switch c.Goal {
	case GoalMuscleGain:
		target = tdee + muscleGainSurplus(profile, c.Experience)
	case GoalFatLoss:
		target = fatLossTarget(tdee, bmi, profile)
	case GoalRecomposition:
		switch {
		case c.Experience == ExperienceBeginner && bmi < 25:
			target = tdee + 150
		case bmi > 25:
			target = tdee - 200
		case profile.BodyFatPercent > recompositionFatThreshold(profile.Gender):
			target = tdee - 150
		}
	case GoalEndurance:
		switch c.Experience {
		case ExperienceAdvanced:
			target = tdee + 300
		case ExperienceIntermediate:
			target = tdee + 250
		case ExperienceBeginner:
			target = tdee + 200
		default:
			target = tdee + 200
		}
	case GoalGeneralFitness:
		switch {
		case bmi > 25:
			target = tdee - 250
		case bmi < 20:
			target = tdee + 200
		}
	}

	switch {
	case hasLimitation(c.Limitations, LimitationDiabetes):
		target *= 0.98
	case hasLimitation(c.Limitations, LimitationHypertension):
		target *= 0.97
	}
	return target
}

func muscleGainSurplus(profile Profile, experience Experience) float64 {
	surplus := 350.0
	switch experience {
	case ExperienceBeginner:
		surplus = 450
	case ExperienceIntermediate:
		surplus = 350
	case ExperienceAdvanced:
		surplus = 250
	}

	ageFactor := 1.0
	switch age := profile.Age; {
	case age < 25:
		ageFactor = 1.0
	case age <= 35:
		ageFactor = 0.95
	case age <= 45:
		ageFactor = 0.85
	case age <= 55:
		ageFactor = 0.75
	default:
		ageFactor = 0.65
	}

	bodyFatFactor := 1.0
	if bf := profile.BodyFatPercent; bf > 0 {
		male := profile.Gender == GenderMale
		switch {
		case bf < 10 && male, bf < 18 && !male:
			bodyFatFactor = 1.1 // very lean, can gain more aggressively
		case bf > 20 && male, bf > 28 && !male:
			bodyFatFactor = 0.8
		}
	}

	return surplus * ageFactor * bodyFatFactor
}

func fatLossTarget(tdee, bmi float64, profile Profile) float64 {
	var deficit float64
	switch {
	case bmi > 35:
		deficit = 750
	case bmi > 30:
		deficit = 650
	case bmi > 27:
		deficit = 550
	case bmi > 25:
		deficit = 450
	default:
		deficit = 350
	}

	genderFactor := 1.0
	if profile.Gender == GenderFemale {
		genderFactor = 0.85
	}

	ageFactor := 1.0
	switch {
	case profile.Age > 50:
		ageFactor = 0.85
	case profile.Age <= 25:
		ageFactor = 1.1
	}

	minCalories := 1500.0
	if profile.Gender == GenderFemale {
		minCalories = 1200
	}

	return math.Max(tdee-deficit*genderFactor*ageFactor, minCalories)
}

func recompositionFatThreshold(gender Gender) float64 {
	if gender == GenderFemale {
		return 25
	}
	return 15
}

// MacroSplit divides the calorie target into protein, fat and carbohydrate
// grams. Protein and fat come first from per-kilogram tables; carbohydrates
// take the remaining calories with a diet-style floor or cap.
func MacroSplit(calories float64, profile Profile, c Context) Macros {
	protein := proteinGrams(profile, c)
	fat := fatGrams(profile, c)

	remaining := calories - float64(protein)*4 - float64(fat)*9
	carbs := int(remaining / 4)
	switch c.Diet {
	case DietKeto:
		carbs = min(50, carbs)
	case DietIntermittentFasting:
		carbs = max(100, carbs)
	default:
		carbs = max(80, carbs) // minimum for brain function
	}

	return Macros{ProteinGrams: protein, CarbsGrams: carbs, FatGrams: fat}
}

func proteinGrams(profile Profile, c Context) int {
	var perKg float64
	switch c.Goal {
	case GoalMuscleGain:
		switch c.Experience {
		case ExperienceBeginner:
			perKg = 1.8
		case ExperienceIntermediate:
			perKg = 2.0
		case ExperienceAdvanced:
			perKg = 2.2
		default:
			perKg = 1.9
		}
	case GoalFatLoss:
		perKg = 2.0
		if bf := profile.BodyFatPercent; bf > 0 {
			threshold := 20.0
			if profile.Gender == GenderFemale {
				threshold = 30
			}
			if bf > threshold {
				perKg = 2.4 // higher protein preserves muscle on aggressive cuts
			}
		}
	case GoalRecomposition:
		perKg = 2.2
	case GoalEndurance:
		perKg = 1.4
	case GoalGeneralFitness:
		perKg = 1.6
	default:
		perKg = 1.7
	}

	ageFactor := 1.0
	switch age := profile.Age; {
	case age < 25:
		ageFactor = 1.0
	case age <= 40:
		ageFactor = 1.05
	case age <= 55:
		ageFactor = 1.15
	case age <= 70:
		ageFactor = 1.25
	default:
		ageFactor = 1.35 // increased protein needs for the elderly
	}

	genderFactor := 1.0
	if profile.Gender == GenderFemale {
		genderFactor = 0.95
	}

	dietFactor := 1.0
	switch c.Diet {
	case DietVegetarian, DietVegan:
		dietFactor = 1.15 // higher total to cover amino acid completeness
	case DietKeto:
		dietFactor = 1.1
	case DietStandard, DietIntermittentFasting:
	}

	return int(perKg * profile.WeightKg * ageFactor * genderFactor * dietFactor)
}

func fatGrams(profile Profile, c Context) int {
	var perKg float64
	switch {
	case c.Diet == DietKeto:
		switch c.Goal {
		case GoalMuscleGain:
			perKg = 1.8
		case GoalFatLoss:
			perKg = 1.5
		default:
			perKg = 1.6
		}
	case c.Goal == GoalFatLoss && profile.BodyFatPercent > 25:
		perKg = 0.7
	case hasLimitation(c.Limitations, LimitationHypertension):
		perKg = 0.8 // lower saturated fat
	case profile.Gender == GenderFemale:
		switch {
		case profile.Age < 30:
			perKg = 1.1 // higher fat needs for hormones
		case profile.Age < 50:
			perKg = 1.2
		default:
			perKg = 1.3
		}
	default:
		switch {
		case profile.Age < 30:
			perKg = 0.9
		case profile.Age < 50:
			perKg = 1.0
		default:
			perKg = 1.1
		}
	}
	return int(perKg * profile.WeightKg)
}

func bmiCategory(bmi float64) string {
	switch {
	case bmi <= 0:
		return "unknown"
	case bmi < 18.5:
		return "underweight"
	case bmi < 25:
		return "normal"
	case bmi < 30:
		return "overweight"
	default:
		return "obese"
	}
}

func strategy(tdee, target float64) Strategy {
	delta := int(math.Round(target - tdee))
	switch {
	case delta > 0:
		return Strategy{Kind: "surplus", Kcal: delta}
	case delta < 0:
		return Strategy{Kind: "deficit", Kcal: -delta}
	default:
		return Strategy{Kind: "maintenance", Kcal: 0}
	}
}

func hasLimitation(limitations []Limitation, wanted ...Limitation) bool {
	for _, l := range limitations {
		for _, w := range wanted {
			if l == w {
				return true
			}
		}
	}
	return false
}
