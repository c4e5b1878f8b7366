package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Arithmetic(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		values map[string]float64
		want   float64
	}{
		{"number", "42", nil, 42},
		{"decimal", "2.5 * 4", nil, 10},
		{"precedence", "2 + 3 * 4", nil, 14},
		{"parens", "(2 + 3) * 4", nil, 20},
		{"reference", "{VENDAS}", map[string]float64{"VENDAS": 120}, 120},
		{"mixed", "{VENDAS} * {CSAT} / 100", map[string]float64{"VENDAS": 120, "CSAT": 90}, 108},
		{"subtraction chain", "10 - 3 - 2", nil, 5},
		{"division chain", "100 / 5 / 2", nil, 10},
		{"ref with spaces", "{ VENDAS }", map[string]float64{"VENDAS": 7}, 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := Compile(tc.input)
			require.NoError(t, err)
			got := e(tc.values)
			require.NotNil(t, got)
			assert.InDelta(t, tc.want, *got, 1e-9)
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	e, err := Compile("({A} + {B}) / {C}")
	require.NoError(t, err)

	values := map[string]float64{"A": 10, "B": 20, "C": 4}
	first := e(values)
	second := e(values)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
	assert.InDelta(t, 7.5, *first, 1e-9)
}

func TestCompile_NullPropagation(t *testing.T) {
	t.Run("division by zero", func(t *testing.T) {
		e, err := Compile("{A}/{B}")
		require.NoError(t, err)
		assert.Nil(t, e(map[string]float64{"A": 10, "B": 0}))
	})

	t.Run("missing reference", func(t *testing.T) {
		e, err := Compile("{A}+{B}")
		require.NoError(t, err)
		assert.Nil(t, e(map[string]float64{"B": 5}))
	})

	t.Run("null propagates through outer operators", func(t *testing.T) {
		e, err := Compile("1 + {A}/{B} * 3")
		require.NoError(t, err)
		assert.Nil(t, e(map[string]float64{"A": 1, "B": 0}))
	})

	t.Run("literal division by zero", func(t *testing.T) {
		e, err := Compile("5 / 0")
		require.NoError(t, err)
		assert.Nil(t, e(nil))
	})
}

func TestCompile_SyntaxErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"unterminated reference", "{VENDAS"},
		{"double operator", "1 + + 2"},
		{"unbalanced parens", "(1+2"},
		{"trailing tokens", "1 + 2 3"},
		{"trailing close paren", "1 + 2)"},
		{"invalid character", "1 + a"},
		{"empty input", ""},
		{"empty reference", "{}"},
		{"dangling operator", "1 +"},
		{"malformed number", "1. + 2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.input)
			require.Error(t, err)
			var syntaxErr *SyntaxError
			assert.True(t, errors.As(err, &syntaxErr), "expected *SyntaxError, got %T", err)
		})
	}
}

func TestExtractRefs(t *testing.T) {
	refs, err := ExtractRefs("{VENDAS} * {CSAT} / 100")
	require.NoError(t, err)
	assert.Equal(t, []string{"VENDAS", "CSAT"}, refs)
}

func TestExtractRefs_DedupesInFirstSeenOrder(t *testing.T) {
	refs, err := ExtractRefs("{B} + {A} + {B} + {A}")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, refs)
}

func TestExtractRefs_NoReferences(t *testing.T) {
	refs, err := ExtractRefs("1 + 2")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestExtractRefs_Malformed(t *testing.T) {
	_, err := ExtractRefs("{VENDAS")
	require.Error(t, err)
	var syntaxErr *SyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
}
