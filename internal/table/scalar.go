package table

import (
	"math"
	"strconv"
	"strings"
)

// Kind тип значения ячейки
type Kind uint8

const (
	KindEmpty Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "empty"
	}
}

// Scalar значение ячейки: пусто, строка, число или булево.
// Нулевое значение Scalar является пустой ячейкой.
type Scalar struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

func Empty() Scalar { return Scalar{} }

func String(s string) Scalar { return Scalar{kind: KindString, str: s} }

func Number(n float64) Scalar { return Scalar{kind: KindNumber, num: n} }

func Bool(b bool) Scalar { return Scalar{kind: KindBool, b: b} }

// Strings строит строку таблицы из строковых значений
func Strings(values ...string) []Scalar {
	row := make([]Scalar, len(values))
	for i, v := range values {
		row[i] = String(v)
	}
	return row
}

func (v Scalar) Kind() Kind { return v.kind }

func (v Scalar) IsEmpty() bool { return v.kind == KindEmpty }

// Num возвращает числовое значение; ok=false для нечисловых ячеек
func (v Scalar) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// BoolValue возвращает булево значение; ok=false для небулевых ячеек
func (v Scalar) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// Falsy истинно для пустой ячейки, пустой строки, нуля, NaN и false.
func (v Scalar) Falsy() bool {
	switch v.kind {
	case KindString:
		return v.str == ""
	case KindNumber:
		return v.num == 0 || math.IsNaN(v.num)
	case KindBool:
		return !v.b
	default:
		return true
	}
}

// String приводит значение к тексту так же, как это делает экспорт в CSV.
func (v Scalar) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	case math.Abs(n) >= 1e21 || math.Abs(n) < 1e-6:
		return trimExponent(strconv.FormatFloat(n, 'e', -1, 64))
	default:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
}

// trimExponent убирает ведущие нули порядка: 1e-07 -> 1e-7
func trimExponent(s string) string {
	i := strings.IndexByte(s, 'e')
	if i < 0 || i+2 >= len(s) {
		return s
	}
	exp := strings.TrimLeft(s[i+2:], "0")
	if exp == "" {
		exp = "0"
	}
	return s[:i+2] + exp
}
