// Package cycle validates operator-entered canned-cycle fields and generates
// the machine-frame parameter records handed to the motion executor.
//
// Generation is stateless: every call reads the tool position it is given and
// returns a new record. All reals in a record are rounded to six decimals.
package cycle

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jt05610/lathe/units"
)

type Kind int

const (
	Threading Kind = iota
	Turning
)

var kinds = []string{
	Threading: "threading",
	Turning:   "turning",
}

func (k Kind) String() string {
	return kinds[k]
}

var ErrUnknownKind = errors.New("unknown cycle kind")

func ParseKind(s string) (Kind, error) {
	for i, name := range kinds {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return Threading, ErrUnknownKind
}

// Params is an immutable generated record.
type Params interface {
	Kind() Kind
	// Fields is the executor wire map, keyed by the executor's parameter names.
	Fields() map[string]interface{}
	// Passes is the planned number of cutting passes, spring passes included.
	Passes() int
}

// ValidationError carries every violated constraint, not only the first.
type ValidationError struct {
	Kind     Kind
	Messages []string
}

func (e *ValidationError) Error() string {
	return e.Kind.String() + ": " + strings.Join(e.Messages, "; ")
}

func validationError(k Kind, msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	return &ValidationError{Kind: k, Messages: msgs}
}

// Messages extracts the validation messages from err, or nil when err is not a
// validation failure.
func Messages(err error) []string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Messages
	}
	return nil
}

// maxDimension is the largest pitch or X depth accepted, in millimetres.
const maxDimension = 10

// dimensionLimit is maxDimension in sys and its label for messages.
func dimensionLimit(sys units.System) (float64, string) {
	if sys == units.Imperial {
		v := units.Convert(maxDimension, units.Metric, units.Imperial)
		return v, fmt.Sprintf("%gin", v)
	}
	return maxDimension, fmt.Sprintf("%dmm", maxDimension)
}

// declared is the system an input says it was entered in, sys when it says
// nothing.
func declared(name string, sys units.System) (units.System, error) {
	if name == "" {
		return sys, nil
	}
	s, err := units.ParseSystem(name)
	if err != nil {
		return sys, fmt.Errorf("%w: %q", err, name)
	}
	return s, nil
}

func values(slots []**float64) []*float64 {
	ret := make([]*float64, len(slots))
	for i, s := range slots {
		ret[i] = *s
	}
	return ret
}

func merge(dst, src []**float64) {
	for i := range dst {
		if *src[i] != nil {
			*dst[i] = *src[i]
		}
	}
}

func pick(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func or(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func count(v float64) int {
	return int(math.Floor(v + 0.5))
}

func tan(deg float64) float64 {
	return math.Tan(deg * math.Pi / 180)
}

func round(v *float64) {
	if v != nil {
		*v = units.Round(*v)
	}
}

func convert(v *float64, from, to units.System) {
	if v != nil {
		*v = units.Convert(*v, from, to)
	}
}

func scale(v *float64, f float64) {
	if v != nil {
		*v = units.Scale(*v, f)
	}
}
