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
	"text/tabwriter"

	"github.com/jt05610/lathe/feed"
	"github.com/spf13/cobra"
)

func mark(b bool) string {
	if b {
		return "x"
	}
	return "-"
}

// tableCmd represents the table command
var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "print the feed/direction decision table",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "MODE\tDIRECTION\tSTEPPER Z\tSTEPPER X\tPITCH Z\tPITCH X\tFORWARD Z\tFORWARD X")
		for _, m := range feed.Modes() {
			for _, d := range feed.Directions() {
				f := feed.Resolve(m, d)
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", m, d,
					mark(f.StepperZ), mark(f.StepperX), mark(f.PitchZ), mark(f.PitchX),
					mark(f.ForwardZ), mark(f.ForwardX))
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(tableCmd)
}
