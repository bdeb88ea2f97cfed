package calculator

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// 비유한 결과의 표시 문자열
const (
	DisplayInfinity    = "Infinity"
	DisplayNegInfinity = "-Infinity"
	DisplayNaN         = "NaN"
)

var numeralPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]*)?(e[+-][0-9]+)?$`)

// ParseNumber 표시 문자열을 float64로 변환 (파싱 불가면 NaN)
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case DisplayInfinity:
		return math.Inf(1)
	case DisplayNegInfinity:
		return math.Inf(-1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return f
		}
		return math.NaN()
	}
	return f
}

// FormatNumber 최단 왕복 10진 문자열로 변환
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return DisplayNaN
	case math.IsInf(f, 1):
		return DisplayInfinity
	case math.IsInf(f, -1):
		return DisplayNegInfinity
	case f == 0:
		// -0도 "0"
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	// 지수 표기: 1e-08 -> 1e-8
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

// IsNumeral 유한 10진 표기인지 확인
func IsNumeral(s string) bool {
	return numeralPattern.MatchString(s)
}

// IsNonFinite Infinity / -Infinity / NaN 표시인지 확인
func IsNonFinite(s string) bool {
	return s == DisplayInfinity || s == DisplayNegInfinity || s == DisplayNaN
}

// ValidDisplay 표시값으로 허용되는 문자열인지 확인
func ValidDisplay(s string) bool {
	return IsNumeral(s) || IsNonFinite(s)
}

// normalize 피연산자 캡처 시 숫자 형태로 정규화 ("5." -> "5")
func normalize(s string) string {
	return FormatNumber(ParseNumber(s))
}
