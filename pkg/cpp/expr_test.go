package cpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, expr string) (value, error) {
	t.Helper()
	return evalExpr(lexFragment(expr, Pos{File: "t.c", Line: 1}))
}

func TestEvalExpr(t *testing.T) {
	tests := []struct {
		expr     string
		want     int64
		unsigned bool
	}{
		{"1 + 2 * 3", 7, false},
		{"(1 + 2) * 3", 9, false},
		{"10 / 3", 3, false},
		{"-7 / 2", -3, false},
		{"-7 % 3", -1, false},
		{"1 ? 2 : 3", 2, false},
		{"0 ? 2 : 3", 3, false},
		{"0 ? 2 : 3u", 3, true},
		{"-1 > 0u", 1, false},
		{"-1 > 0", 0, false},
		{"0u - 1", -1, true},
		{"1 << 63 >> 63", -1, false},
		{"1u << 63 >> 63", 1, true},
		{"~0", -1, false},
		{"!5 + !0", 1, false},
		{"0 && 1 / 0", 0, false},
		{"1 || 1 % 0", 1, false},
		{"1, 2", 2, false},
		{"1'000 + 100ULL", 1100, true},
		{"18446744073709551615", -1, true},
		{"'\\377'", -1, false},
		{"'ab'", 0x6162, false},
		{"L'\\xff'", 255, false},
		{"undefined_name + 1", 1, false},
		{"6 & 3 | 8 ^ 1", 11, false},
		{"3 >= 3 && 2 <= 1 == 0 && 1 != 2", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := eval(t, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.asInt())
			assert.Equal(t, tt.unsigned, v.unsigned)
		})
	}
}

func TestEvalExprErrors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"", "#if with no expression"},
		{"1 +", "#if expression ends early"},
		{"(1", "missing ')' in expression"},
		{"1 2", `missing binary operator before token "2"`},
		{"1.0", "floating constant in preprocessor expression"},
		{"1 ? 2", "'?' without following ':'"},
		{`"s"`, `token "\"s\"" is not valid in preprocessor expressions`},
		{"1 / 0", "division by zero in #if"},
		{"1 % (2 - 2)", "division by zero in #if"},
		{"0x", `invalid integer constant "0x" in #if`},
		{"''", "invalid character constant ''"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := eval(t, tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
