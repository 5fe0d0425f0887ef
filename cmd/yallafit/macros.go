package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"yallafit/go-api/internal/fitness"
)

var (
	macroWeight   float64
	macroHeight   float64
	macroAge      int
	macroSex      string
	macroActivity string
	macroGoal     string
)

// macrosCmd runs the same calculator the API uses, without a database.
var macrosCmd = &cobra.Command{
	Use:   "macros",
	Short: "Print BMR, TDEE and daily macro goals for a body profile",
	Example: `  yallafit macros --weight 70 --height 1.75 --age 30 --sex male
  yallafit macros --weight 62 --height 1.65 --age 28 --sex female --activity "très actif" --goal perte`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile := fitness.Profile{
			Age:           &macroAge,
			HeightM:       &macroHeight,
			Sex:           &macroSex,
			ActivityLevel: &macroActivity,
			Goal:          &macroGoal,
		}
		res, ok := fitness.CalculateForProfile(profile, macroWeight)
		if !ok {
			return fmt.Errorf("insufficient data: --weight, --height, --age and --sex are required and must be positive")
		}
		printMacros(cmd.OutOrStdout(), res, fitness.ParseActivityLevel(macroActivity), fitness.ParseGoal(macroGoal))
		return nil
	},
}

func init() {
	f := macrosCmd.Flags()
	f.Float64Var(&macroWeight, "weight", 0, "Body weight in kg")
	f.Float64Var(&macroHeight, "height", 0, "Height in metres")
	f.IntVar(&macroAge, "age", 0, "Age in years")
	f.StringVar(&macroSex, "sex", "", "Sex (male/female, m/f, homme/femme)")
	f.StringVar(&macroActivity, "activity", "moderate", "Activity level (sedentary, light, moderate, active, very active)")
	f.StringVar(&macroGoal, "goal", "maintain", "Goal (loss, maintain, gain)")
	rootCmd.AddCommand(macrosCmd)
}

func printMacros(w io.Writer, res fitness.MacroResult, level fitness.ActivityLevel, goal fitness.Goal) {
	fmt.Fprintf(w, "Activity: %s\n", level)
	fmt.Fprintf(w, "Goal:     %s\n", goal)
	fmt.Fprintf(w, "BMR:      %.2f kcal\n", res.BMR)
	fmt.Fprintf(w, "TDEE:     %.2f kcal\n", res.TDEE)
	fmt.Fprintf(w, "Calories: %d kcal\n", res.Goals.Calories)
	fmt.Fprintf(w, "Protein:  %.1f g\n", res.Goals.ProteinG)
	fmt.Fprintf(w, "Carbs:    %.1f g\n", res.Goals.CarbsG)
	fmt.Fprintf(w, "Fat:      %.1f g\n", res.Goals.FatsG)
}
