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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jt05610/lathe/axis"
	"github.com/jt05610/lathe/cycle"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	position   axis.Position
	inputFile  string
	presetName string
	asJSON     bool
)

// cycleFlags registers the flags shared by every cycle command.
func cycleFlags(c *cobra.Command) {
	c.Flags().Float64Var(&position.X, "x", 0, "logical X position of the tool")
	c.Flags().Float64Var(&position.Z, "z", 0, "logical Z position of the tool")
	c.Flags().Float64Var(&position.A, "a", 0, "spindle angle in degrees")
	c.Flags().StringVarP(&inputFile, "input", "i", "", "YAML file with the cycle parameters")
	c.Flags().StringVarP(&presetName, "preset", "p", "", "start from a named preset")
	c.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON")
}

// optional binds float flags that stay nil unless given on the command line.
type optional map[string]**float64

func (o optional) register(c *cobra.Command, usage map[string]string) {
	for name := range o {
		c.Flags().Float64(name, 0, usage[name])
	}
}

func (o optional) apply(c *cobra.Command) error {
	for name, dst := range o {
		if !c.Flags().Changed(name) {
			continue
		}
		v, err := c.Flags().GetFloat64(name)
		if err != nil {
			return err
		}
		*dst = &v
	}
	return nil
}

func readInput(v interface{}) error {
	if inputFile == "" {
		return nil
	}
	b, err := os.ReadFile(inputFile)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", inputFile, err)
	}
	return nil
}

type record struct {
	Kind   string                 `json:"kind" yaml:"kind"`
	Passes int                    `json:"passes" yaml:"passes"`
	Depths []float64              `json:"depths,omitempty" yaml:"depths,omitempty"`
	Fields map[string]interface{} `json:"fields" yaml:"fields"`
}

func printRecord(w io.Writer, p cycle.Params) error {
	r := record{Kind: p.Kind().String(), Passes: p.Passes(), Fields: p.Fields()}
	if s, ok := p.(cycle.Scheduled); ok {
		r.Depths = s.Depths()
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	enc := yaml.NewEncoder(w)
	defer func() {
		_ = enc.Close()
	}()
	return enc.Encode(r)
}

// printInvalid lists every validation message before failing.
func printInvalid(w io.Writer, err error) error {
	for _, msg := range cycle.Messages(err) {
		_, _ = fmt.Fprintln(w, msg)
	}
	return err
}
