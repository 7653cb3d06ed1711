package nutrition_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/kuntoapp/internal/nutrition"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestBMR(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile nutrition.Profile
		want    float64
	}{
		{
			name: "katch-mcardle with known body fat",
			profile: nutrition.Profile{
				Gender: nutrition.GenderMale, Age: 30, HeightCm: 180, WeightKg: 80, BodyFatPercent: 20,
			},
			// LBM = 80 * 0.8 = 64; 370 + 21.6*64.
			want: 370 + 21.6*64,
		},
		{
			name: "mifflin-st jeor male with age bracket",
			profile: nutrition.Profile{
				Gender: nutrition.GenderMale, Age: 25, HeightCm: 180, WeightKg: 80,
			},
			// (10*80 + 6.25*180 - 5*25 + 5) * 1.05.
			want: 1805 * 1.05,
		},
		{
			name: "mifflin-st jeor female",
			profile: nutrition.Profile{
				Gender: nutrition.GenderFemale, Age: 30, HeightCm: 165, WeightKg: 60,
			},
			// 10*60 + 6.25*165 - 5*30 - 161 = 1320.25, bracket 26-35 is 1.0.
			want: 1320.25,
		},
		{
			name: "unspecified gender uses sex constant midpoint",
			profile: nutrition.Profile{
				Gender: nutrition.GenderUnspecified, Age: 30, HeightCm: 170, WeightKg: 70,
			},
			// 10*70 + 6.25*170 - 5*30 - 78 = 1534.5.
			want: 1534.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := nutrition.BMR(tt.profile); !almostEqual(got, tt.want) {
				t.Errorf("BMR() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculate_fatLossScenario(t *testing.T) {
	t.Parallel()

	profile := nutrition.Profile{
		Gender:   nutrition.GenderMale,
		Age:      25,
		HeightCm: 180,
		WeightKg: 80,
	}
	c := nutrition.Context{
		Goal:              nutrition.GoalFatLoss,
		Experience:        nutrition.ExperienceIntermediate,
		TrainingFrequency: "3x",
		Sleep:             "7-8",
	}

	plan := nutrition.Calculate(profile, c)

	wantBMR := 1805 * 1.05
	if !almostEqual(plan.BMR, wantBMR) {
		t.Errorf("BMR = %v, want %v", plan.BMR, wantBMR)
	}

	wantTDEE := wantBMR * 1.55 * 1.0 * 1.02 * 1.0
	if !almostEqual(plan.TDEE, wantTDEE) {
		t.Errorf("TDEE = %v, want %v", plan.TDEE, wantTDEE)
	}

	// BMI 24.7 is in the lowest deficit tier: 350 * male 1.0 * young 1.1.
	wantTarget := wantTDEE - 385
	if !almostEqual(plan.TargetCalories, wantTarget) {
		t.Errorf("TargetCalories = %v, want %v", plan.TargetCalories, wantTarget)
	}

	if plan.BMICategory != "normal" {
		t.Errorf("BMICategory = %q, want normal", plan.BMICategory)
	}
	wantStrategy := nutrition.Strategy{Kind: "deficit", Kcal: 385}
	if diff := cmp.Diff(wantStrategy, plan.Strategy); diff != "" {
		t.Errorf("Strategy mismatch (-want +got):\n%s", diff)
	}
	if len(plan.Assumptions) != 0 {
		t.Errorf("Assumptions = %v, want none for a complete profile", plan.Assumptions)
	}
}

func TestCalculate_floorsFatLossCalories(t *testing.T) {
	t.Parallel()

	// A light, sedentary profile drives the target below the floor.
	profile := nutrition.Profile{
		Gender:   nutrition.GenderFemale,
		Age:      30,
		HeightCm: 155,
		WeightKg: 45,
	}
	c := nutrition.Context{
		Goal:       nutrition.GoalFatLoss,
		Experience: nutrition.ExperienceIntermediate,
	}

	plan := nutrition.Calculate(profile, c)
	if plan.TargetCalories != 1200 {
		t.Errorf("TargetCalories = %v, want the 1200 kcal floor", plan.TargetCalories)
	}
}

func TestCalculate_defaultsAreReported(t *testing.T) {
	t.Parallel()

	plan := nutrition.Calculate(nutrition.Profile{}, nutrition.Context{
		Goal:       nutrition.GoalGeneralFitness,
		Experience: nutrition.ExperienceBeginner,
	})

	wantAssumptions := []string{
		"weight defaulted to 70 kg",
		"height defaulted to 175 cm",
		"age defaulted to 25 years",
	}
	if diff := cmp.Diff(wantAssumptions, plan.Assumptions); diff != "" {
		t.Errorf("Assumptions mismatch (-want +got):\n%s", diff)
	}
	if plan.TargetCalories <= 0 {
		t.Errorf("TargetCalories = %v, want a usable number from defaults", plan.TargetCalories)
	}
}

func TestCalculate_macroRoundTrip(t *testing.T) {
	t.Parallel()

	// Inputs chosen so the carbohydrate floor does not kick in; then the
	// macros must reconstruct the calorie target within integer rounding.
	profile := nutrition.Profile{
		Gender:   nutrition.GenderMale,
		Age:      30,
		HeightCm: 178,
		WeightKg: 75,
	}
	c := nutrition.Context{
		Goal:              nutrition.GoalMuscleGain,
		Experience:        nutrition.ExperienceIntermediate,
		TrainingFrequency: "4x",
		Sleep:             "7-8",
		Diet:              nutrition.DietStandard,
	}

	plan := nutrition.Calculate(profile, c)
	if plan.Macros.CarbsGrams <= 80 {
		t.Fatalf("CarbsGrams = %d, test requires an un-floored carb amount", plan.Macros.CarbsGrams)
	}

	reconstructed := float64(plan.Macros.ProteinGrams)*4 +
		float64(plan.Macros.CarbsGrams)*4 +
		float64(plan.Macros.FatGrams)*9
	// Each gram conversion truncates, losing at most 4+4+9 kcal.
	if diff := math.Abs(reconstructed - plan.TargetCalories); diff > 17 {
		t.Errorf("macros reconstruct %v kcal, target %v, diff %v", reconstructed, plan.TargetCalories, diff)
	}
}

func TestMacroSplit_dietStyles(t *testing.T) {
	t.Parallel()

	profile := nutrition.Profile{Gender: nutrition.GenderMale, Age: 30, HeightCm: 180, WeightKg: 80}

	tests := []struct {
		name      string
		diet      nutrition.DietStyle
		calories  float64
		checkCarb func(t *testing.T, carbs int)
	}{
		{
			name:     "keto caps carbs at 50",
			diet:     nutrition.DietKeto,
			calories: 3500,
			checkCarb: func(t *testing.T, carbs int) {
				t.Helper()
				if carbs > 50 {
					t.Errorf("carbs = %d, want <= 50 on keto", carbs)
				}
			},
		},
		{
			name:     "intermittent fasting floors carbs at 100",
			diet:     nutrition.DietIntermittentFasting,
			calories: 1200,
			checkCarb: func(t *testing.T, carbs int) {
				t.Helper()
				if carbs < 100 {
					t.Errorf("carbs = %d, want >= 100 on intermittent fasting", carbs)
				}
			},
		},
		{
			name:     "standard floors carbs at 80",
			diet:     nutrition.DietStandard,
			calories: 1000,
			checkCarb: func(t *testing.T, carbs int) {
				t.Helper()
				if carbs < 80 {
					t.Errorf("carbs = %d, want >= 80 on a standard diet", carbs)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			macros := nutrition.MacroSplit(tt.calories, profile, nutrition.Context{
				Goal:       nutrition.GoalGeneralFitness,
				Experience: nutrition.ExperienceIntermediate,
				Diet:       tt.diet,
			})
			tt.checkCarb(t, macros.CarbsGrams)
		})
	}
}

func TestTDEE_limitationFactors(t *testing.T) {
	t.Parallel()

	base := nutrition.Context{
		Goal:              nutrition.GoalGeneralFitness,
		Experience:        nutrition.ExperienceIntermediate,
		TrainingFrequency: "3x",
		Sleep:             "7-8",
	}

	none := nutrition.TDEE(2000, 30, base)

	asthma := base
	asthma.Limitations = []nutrition.Limitation{nutrition.LimitationAsthma}
	if got := nutrition.TDEE(2000, 30, asthma); !almostEqual(got, none*0.92) {
		t.Errorf("asthma TDEE = %v, want %v", got, none*0.92)
	}

	joint := base
	joint.Limitations = []nutrition.Limitation{nutrition.LimitationKneeInjury}
	if got := nutrition.TDEE(2000, 30, joint); !almostEqual(got, none*0.96) {
		t.Errorf("joint injury TDEE = %v, want %v", got, none*0.96)
	}

	// Asthma dominates when combined with other limitations.
	both := base
	both.Limitations = []nutrition.Limitation{nutrition.LimitationDiabetes, nutrition.LimitationAsthma}
	if got := nutrition.TDEE(2000, 30, both); !almostEqual(got, none*0.92) {
		t.Errorf("combined TDEE = %v, want %v", got, none*0.92)
	}
}
