// Package units converts dimensional values between metric and imperial and
// applies the 6-decimal rounding the motion executor expects on every value it
// receives.
package units

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MillimetersPerInch is the exact conversion factor between the two systems.
const MillimetersPerInch = 25.4

// Places is the number of decimal places kept on every stored or transmitted value.
const Places = 6

type System int

const (
	Metric System = iota
	Imperial
)

var systems = []string{
	Metric:   "metric",
	Imperial: "imperial",
}

func (s System) String() string {
	return systems[s]
}

var ErrUnknownSystem = errors.New("unknown unit system")

func ParseSystem(s string) (System, error) {
	for i, name := range systems {
		if strings.EqualFold(s, name) {
			return System(i), nil
		}
	}
	return Metric, ErrUnknownSystem
}

var factor = decimal.NewFromFloat(MillimetersPerInch)

// Round rounds v to Places decimals. Round(Round(v)) == Round(v).
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(Places).InexactFloat64()
}

// Scale multiplies v by f and rounds the product.
func Scale(v, f float64) float64 {
	return decimal.NewFromFloat(v).Mul(decimal.NewFromFloat(f)).Round(Places).InexactFloat64()
}

// ToMetric converts inches to millimetres.
func ToMetric(v float64) float64 {
	return decimal.NewFromFloat(v).Mul(factor).Round(Places).InexactFloat64()
}

// ToImperial converts millimetres to inches.
func ToImperial(v float64) float64 {
	return decimal.NewFromFloat(v).DivRound(factor, Places).InexactFloat64()
}

// Convert moves v from one system to another. Same-system conversion only rounds.
func Convert(v float64, from, to System) float64 {
	switch {
	case from == to:
		return Round(v)
	case to == Metric:
		return ToMetric(v)
	default:
		return ToImperial(v)
	}
}

// PresetFactor is the multiplier applied to millimetre-authored values when they
// are loaded into a session running in s.
func PresetFactor(s System) float64 {
	if s == Metric {
		return 1
	}
	return 1 / MillimetersPerInch
}
