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

var threading cycle.ThreadingInput

var threadingFields = optional{
	"pitch":       &threading.Pitch,
	"x-depth":     &threading.XDepth,
	"z-depth":     &threading.ZDepth,
	"angle":       &threading.Angle,
	"z-end":       &threading.ZEnd,
	"x-pullout":   &threading.XPullout,
	"z-pullout":   &threading.ZPullout,
	"first-cut":   &threading.FirstCut,
	"cut-mult":    &threading.CutMult,
	"min-cut":     &threading.MinCut,
	"spring-cuts": &threading.SpringCuts,
}

// threadCmd represents the thread command
var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "validate and print a threading cycle",
	Long: `Validate threading parameters and print the record the executor would
receive for a tool at the given position. Nothing is sent to the hardware.

Parameters are taken from the preset, then the input file, then the flags.
The input file may declare its units; flags are in the machine's units.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, sys, err := loadMachine()
		if err != nil {
			return err
		}
		threading = cycle.ThreadingInput{}
		in := &threading
		if presetName != "" {
			lib, err := loadPresets(m)
			if err != nil {
				return err
			}
			p, err := lib.ThreadingPreset(presetName)
			if err != nil {
				return err
			}
			base, err := p.Apply(sys)
			if err != nil {
				return err
			}
			*in = *base
		}
		var file cycle.ThreadingInput
		if err := readInput(&file); err != nil {
			return err
		}
		if err := file.ConvertTo(sys); err != nil {
			return fmt.Errorf("%s: %w", inputFile, err)
		}
		in.Merge(&file)
		if err := threadingFields.apply(cmd); err != nil {
			return err
		}
		params, err := in.Generate(position, sys)
		if err != nil {
			return printInvalid(cmd.ErrOrStderr(), err)
		}
		return printRecord(cmd.OutOrStdout(), params)
	},
}

func init() {
	rootCmd.AddCommand(threadCmd)
	cycleFlags(threadCmd)
	threadingFields.register(threadCmd, map[string]string{
		"pitch":       "thread pitch (required)",
		"z-end":       "thread length along Z, relative to the start (required)",
		"x-depth":     "total infeed depth along X",
		"z-depth":     "extra Z travel past the end",
		"angle":       "taper angle in degrees",
		"x-pullout":   "X retract between passes",
		"z-pullout":   "Z retract between passes",
		"first-cut":   "depth of the first pass",
		"cut-mult":    "degression between passes, 0.5 to 1",
		"min-cut":     "smallest pass depth",
		"spring-cuts": "passes repeated at full depth",
	})
}
