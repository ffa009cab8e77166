package token

import (
	"slices"
	"testing"

	"github.com/arloliu/mws/errs"
	"github.com/stretchr/testify/require"
)

// ==============================================================================
// Packing
// ==============================================================================

func TestPack(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		tok, err := Pack(3, 200)
		require.NoError(t, err)
		require.Equal(t, uint8(3), tok.Arity())
		require.Equal(t, uint32(200), tok.ID())
		require.Equal(t, uint32(3<<24|200), tok.Uint32())
	})

	t.Run("max values", func(t *testing.T) {
		tok, err := Pack(MaxArity, MaxID)
		require.NoError(t, err)
		require.Equal(t, uint8(MaxArity), tok.Arity())
		require.Equal(t, uint32(MaxID), tok.ID())
	})

	t.Run("zero id rejected", func(t *testing.T) {
		_, err := Pack(1, 0)
		require.ErrorIs(t, err, errs.ErrInvalidToken)
	})

	t.Run("id wider than 24 bits rejected", func(t *testing.T) {
		_, err := Pack(0, MaxID+1)
		require.ErrorIs(t, err, errs.ErrInvalidToken)
	})
}

func TestToken_Kind(t *testing.T) {
	tests := []struct {
		id   uint32
		kind Kind
	}{
		{HvarIDMin, KindHvar},
		{HvarIDMax, KindHvar},
		{AnonHvarIDMin, KindAnonHvar},
		{AnonHvarIDMax, KindAnonHvar},
		{QvarIDMin, KindQvar},
		{QvarIDMax, KindQvar},
		{AnonQvarIDMin, KindAnonQvar},
		{AnonQvarIDMax, KindAnonQvar},
		{RangeIDMin, KindRange},
		{RangeIDMax, KindRange},
		{ConstantIDMin, KindConstant},
		{MaxID, KindConstant},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			tok := MustPack(0, tt.id)
			require.Equal(t, tt.kind, tok.Kind())
			require.Equal(t, tt.kind != KindConstant && tt.kind != KindRange, tok.IsVar())
			require.Equal(t, tt.kind == KindConstant, tok.IsConstant())
			require.Equal(t, tt.kind == KindRange, tok.IsRange())
		})
	}

	require.Equal(t, KindInvalid, Token(0).Kind())
}

func TestReservedConstructors(t *testing.T) {
	h, err := Hvar(2)
	require.NoError(t, err)
	require.True(t, h.IsHvar())
	require.False(t, h.IsAnonymous())
	require.Equal(t, 2, h.VarIndex())
	require.Equal(t, uint8(0), h.Arity())

	a, err := AnonQvar(31)
	require.NoError(t, err)
	require.True(t, a.IsQvar())
	require.True(t, a.IsAnonymous())
	require.Equal(t, 31, a.VarIndex())

	r, err := Range(0)
	require.NoError(t, err)
	require.True(t, r.IsRange())
	require.Equal(t, 0, r.VarIndex())

	_, err = Qvar(VarRangeSize)
	require.ErrorIs(t, err, errs.ErrVarIndexOverflow)
	_, err = AnonHvar(-1)
	require.ErrorIs(t, err, errs.ErrVarIndexOverflow)
}

func TestConstant(t *testing.T) {
	c, err := Constant(2, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(ConstantIDMin+1), c.ID())
	require.Equal(t, uint32(1), c.DictID())
	require.Equal(t, -1, c.VarIndex())

	_, err = Constant(0, 0)
	require.ErrorIs(t, err, errs.ErrInvalidToken)
	_, err = Constant(0, MaxDictID+1)
	require.ErrorIs(t, err, errs.ErrInvalidToken)

	q, _ := Qvar(0)
	require.Equal(t, uint32(0), q.DictID())
}

func TestCompare(t *testing.T) {
	low := MustPack(0, 5000)
	high := MustPack(1, ConstantIDMin+1)

	require.True(t, Less(low, high), "arity dominates the identifier")
	require.Equal(t, -1, Compare(low, high))
	require.Equal(t, 1, Compare(high, low))
	require.Equal(t, 0, Compare(low, low))

	toks := []Token{MustPack(2, 300), MustPack(0, 400), MustPack(2, 200), MustPack(0, 1)}
	slices.SortFunc(toks, Compare)
	require.Equal(t, []Token{MustPack(0, 1), MustPack(0, 400), MustPack(2, 200), MustPack(2, 300)}, toks)
}

// ==============================================================================
// Formula
// ==============================================================================

// f(h, h, t) with constants f=1, h=2, t=3.
func sample() Formula {
	return Formula{
		MustPack(3, ConstantIDMin+1),
		MustPack(0, ConstantIDMin+2),
		MustPack(0, ConstantIDMin+2),
		MustPack(0, ConstantIDMin+3),
	}
}

func TestFormula_Validate(t *testing.T) {
	require.NoError(t, sample().Validate())
	require.NoError(t, Formula{MustPack(0, ConstantIDMin+1)}.Validate())

	require.ErrorIs(t, Formula{}.Validate(), errs.ErrEmptyFormula)
	require.ErrorIs(t, sample()[:3].Validate(), errs.ErrMalformedFormula)

	trailing := append(sample(), MustPack(0, ConstantIDMin+4))
	require.ErrorIs(t, trailing.Validate(), errs.ErrMalformedFormula)
}

func TestFormula_SubtreeEnd(t *testing.T) {
	// g(f(a, b), c)
	f := Formula{
		MustPack(2, ConstantIDMin+10),
		MustPack(2, ConstantIDMin+11),
		MustPack(0, ConstantIDMin+12),
		MustPack(0, ConstantIDMin+13),
		MustPack(0, ConstantIDMin+14),
	}

	end, err := f.SubtreeEnd(0)
	require.NoError(t, err)
	require.Equal(t, 5, end)

	end, err = f.SubtreeEnd(1)
	require.NoError(t, err)
	require.Equal(t, 4, end)

	sub, err := f.Subterm(1)
	require.NoError(t, err)
	require.Equal(t, f[1:4], sub)

	_, err = f[:3].SubtreeEnd(0)
	require.ErrorIs(t, err, errs.ErrMalformedFormula)
	_, err = f.SubtreeEnd(9)
	require.ErrorIs(t, err, errs.ErrMalformedFormula)
}

func TestFormula_Binary(t *testing.T) {
	f := sample()
	buf := f.AppendBinary([]byte{0xAA})

	parsed, n, err := ParseFormula(buf[1:])
	require.NoError(t, err)
	require.Equal(t, len(buf)-1, n)
	require.True(t, f.Equal(parsed))

	_, _, err = ParseFormula(buf[1:6])
	require.ErrorIs(t, err, errs.ErrMalformedFormula)
}

func TestFormula_HasVarsAndClone(t *testing.T) {
	f := sample()
	require.False(t, f.HasVars())

	c := f.Clone()
	q, _ := Qvar(0)
	c[1] = q
	require.True(t, c.HasVars())
	require.False(t, f.Equal(c))
	require.NotEqual(t, f[1], c[1])
}
