// Package timecode converts between playback offsets in seconds and the
// timestamp text shown to users, and finds timestamp references such as
// "[1:05]" embedded in free text.
package timecode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
)

// refPattern matches "[M:SS]" and "[H:MM:SS]" references. Leading groups
// allow one or two digits.
var refPattern = regexp.MustCompile(`\[(\d{1,2}):(\d{2})(?::(\d{2}))?\]`)

// maxSeconds is the largest input Format converts exactly.
const maxSeconds = 1 << 53

// Format renders seconds as MM:SS below one hour and HH:MM:SS otherwise.
// Fractional seconds are truncated. Negative, NaN and infinite input render
// as 00:00; larger values are capped at maxSeconds.
func Format(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	if seconds > maxSeconds {
		seconds = maxSeconds
	}
	total := int64(math.Floor(seconds))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// Ref is a timestamp reference found in text. Start and End are byte offsets
// of the matched span, Display is the matched text including brackets.
type Ref struct {
	Display string `json:"display" yaml:"display"`
	Seconds int    `json:"seconds" yaml:"seconds"`
	Start   int    `json:"-" yaml:"-"`
	End     int    `json:"-" yaml:"-"`
}

// ExtractRefs returns every timestamp reference in text, left to right.
// A two-field reference is minutes:seconds, a three-field one is
// hours:minutes:seconds. Text without references yields nil.
func ExtractRefs(text string) []Ref {
	matches := refPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	refs := make([]Ref, 0, len(matches))
	for _, m := range matches {
		a := atoi(text[m[2]:m[3]])
		b := atoi(text[m[4]:m[5]])

		var seconds int
		if m[6] >= 0 {
			seconds = a*3600 + b*60 + atoi(text[m[6]:m[7]])
		} else {
			seconds = a*60 + b
		}

		refs = append(refs, Ref{
			Display: text[m[0]:m[1]],
			Seconds: seconds,
			Start:   m[0],
			End:     m[1],
		})
	}
	return refs
}

// Parse reads user-typed time input: "65", "1:05", "01:02:05", optionally
// wrapped in brackets. Two-field input is minutes:seconds.
func Parse(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if s == "" {
		return 0, fmt.Errorf("empty time: %w", vterrors.ErrValidation)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: %w", text, vterrors.ErrValidation)
	}

	total := 0.0
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid time %q: %w", text, vterrors.ErrValidation)
		}
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid time %q: field out of range: %w", text, vterrors.ErrValidation)
		}
		total = total*60 + v
	}
	return total, nil
}

// atoi is only called on regexp digit groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
