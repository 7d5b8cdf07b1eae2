/*
Copyright © 2024 Jonathan Taylor <jonrtaylor12@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

package cmd

import (
	"fmt"

	"github.com/jt05610/lathe/cycle"
	"github.com/spf13/cobra"
)

var turning cycle.TurningInput

var turningFields = optional{
	"target":          &turning.Target,
	"z-end":           &turning.ZEnd,
	"feed-rate":       &turning.FeedRate,
	"step-down":       &turning.StepDown,
	"final-step-down": &turning.FinalStepDown,
	"taper-angle":     &turning.TaperAngle,
	"spring-passes":   &turning.SpringPasses,
}

// turnCmd represents the turn command
var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "validate and print a turning cycle",
	Long: `Validate turning parameters and print the record the executor would
receive for a tool at the given position. Nothing is sent to the hardware.

Parameters are taken from the preset, then the input file, then the flags.
The input file may declare its units; flags are in the machine's units.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, sys, err := loadMachine()
		if err != nil {
			return err
		}
		turning = cycle.TurningInput{}
		in := &turning
		if presetName != "" {
			lib, err := loadPresets(m)
			if err != nil {
				return err
			}
			p, err := lib.TurningPreset(presetName)
			if err != nil {
				return err
			}
			base, err := p.Apply(sys)
			if err != nil {
				return err
			}
			*in = *base
		}
		var file cycle.TurningInput
		if err := readInput(&file); err != nil {
			return err
		}
		if err := file.ConvertTo(sys); err != nil {
			return fmt.Errorf("%s: %w", inputFile, err)
		}
		in.Merge(&file)
		if err := turningFields.apply(cmd); err != nil {
			return err
		}
		params, err := in.Generate(position)
		if err != nil {
			return printInvalid(cmd.ErrOrStderr(), err)
		}
		return printRecord(cmd.OutOrStdout(), params)
	},
}

func init() {
	rootCmd.AddCommand(turnCmd)
	cycleFlags(turnCmd)
	turningFields.register(turnCmd, map[string]string{
		"target":          "finished diameter (required)",
		"z-end":           "cut length along Z (required)",
		"feed-rate":       "feed per revolution",
		"step-down":       "roughing depth per pass",
		"final-step-down": "finishing depth",
		"taper-angle":     "taper angle in degrees",
		"spring-passes":   "passes repeated at final size",
	})
}
