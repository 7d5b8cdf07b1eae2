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
	"os"

	"github.com/jt05610/lathe/cycle"
	"github.com/jt05610/lathe/env"
	"github.com/jt05610/lathe/units"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	development bool
	machineFile string
	unitSystem  string

	logger *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lathe",
	Short: "lathe coordinates a hobby lathe's axes, feeds and canned cycles",
	Long: `lathe polls the motion hardware at a fixed cadence, keeps the zeroed and
tool-corrected axis positions, drives jogs and feeds, and turns operator
parameters into threading and turning cycles for the motion executor.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if development {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&development, "dev", "d", false, "human readable debug logging")
	rootCmd.PersistentFlags().StringVarP(&machineFile, "machine", "m", "", "machine file, LATHE_CONFIG when empty")
	rootCmd.PersistentFlags().StringVarP(&unitSystem, "units", "u", "", "metric or imperial, overriding the machine file")
}

// loadMachine reads the machine file named by the flag or the environment.
func loadMachine() (*env.Machine, units.System, error) {
	path := machineFile
	if path == "" {
		path = os.Getenv("LATHE_CONFIG")
	}
	m, err := env.LoadMachine(path)
	if err != nil {
		return nil, units.Metric, err
	}
	if unitSystem != "" {
		m.Units = unitSystem
	}
	sys, err := m.System()
	if err != nil {
		return nil, units.Metric, fmt.Errorf("%w: %q", err, m.Units)
	}
	return m, sys, nil
}

func loadPresets(m *env.Machine) (*cycle.Library, error) {
	if m.Presets == "" {
		return cycle.DefaultLibrary(), nil
	}
	lib, err := cycle.LoadLibraryFile(m.Presets)
	if err != nil {
		return nil, fmt.Errorf("presets: %w", err)
	}
	return lib, nil
}
