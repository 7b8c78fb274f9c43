package valueobjects

import (
	"math"
	"strconv"
	"strings"
)

// Probability is a model-reported confidence in [0,1].
type Probability float64

const (
	ListPrecision  = 2
	ChartPrecision = 1
)

func (p Probability) Valid() bool {
	f := float64(p)
	return !math.IsNaN(f) && f >= 0 && f <= 1
}

// Percent renders probability*100 with a fixed number of decimals and a "%" suffix.
// Exact halves round up, so 0.0125 is "1.3%" at one decimal.
func (p Probability) Percent(decimals int) string {
	return formatHalfUp(float64(p)*100, decimals) + "%"
}

// exactDigits is enough fraction digits to print any float64 without rounding.
const exactDigits = 1100

// formatHalfUp rounds the exact decimal value of x to the given decimals, ties away from zero.
func formatHalfUp(x float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', decimals, 64)
	}

	exact := strconv.FormatFloat(math.Abs(x), 'f', exactDigits, 64)
	point := strings.IndexByte(exact, '.')
	digits := []byte(exact[:point] + exact[point+1:point+1+decimals])

	if exact[point+1+decimals] >= '5' {
		i := len(digits) - 1
		for ; i >= 0; i-- {
			if digits[i] != '9' {
				digits[i]++
				break
			}
			digits[i] = '0'
		}
		if i < 0 {
			digits = append([]byte{'1'}, digits...)
		}
	}

	intLen := len(digits) - decimals
	out := string(digits[:intLen])
	if decimals > 0 {
		out += "." + string(digits[intLen:])
	}
	if x < 0 && strings.Trim(out, "0.") != "" {
		out = "-" + out
	}
	return out
}

func (p Probability) ListPercent() string {
	return p.Percent(ListPrecision)
}

func (p Probability) ChartPercent() string {
	return p.Percent(ChartPrecision)
}
