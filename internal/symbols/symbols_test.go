package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "NQ=F", Normalize(" nq "))
	assert.Equal(t, "NQ=F", Normalize("nq=f"))
	assert.Equal(t, "SPY", Normalize("spy"))
	assert.Equal(t, "", Normalize("  "))
}

func TestLookup(t *testing.T) {
	inst, ok := Lookup("ym")
	require.True(t, ok)
	assert.Equal(t, "YM=F", inst.Symbol)
	assert.Equal(t, 1.0, inst.TickSize)

	inst, ok = Lookup("RTY=F")
	require.True(t, ok)
	assert.Equal(t, 0.1, inst.TickSize)

	inst, ok = Lookup("qqq")
	assert.False(t, ok)
	assert.Equal(t, "QQQ", inst.Symbol)
	assert.Zero(t, inst.TickSize)
}

func TestResolve(t *testing.T) {
	insts, err := Resolve([]string{"nq,es", "index", "^GSPC"})
	require.NoError(t, err)

	var got []string
	for _, i := range insts {
		got = append(got, i.Symbol)
	}
	assert.Equal(t, []string{"NQ=F", "ES=F", "YM=F", "RTY=F", "^GSPC"}, got)

	_, err = Resolve([]string{"NQ=F", "bad symbol!"})
	assert.ErrorContains(t, err, "invalid symbol")

	_, err = Resolve([]string{" , "})
	assert.Error(t, err)
}

func TestGetUniverse(t *testing.T) {
	assert.Len(t, GetUniverse(UniverseIndex), 4)
	assert.Len(t, GetUniverse(UniverseMicro), 4)
	assert.Nil(t, GetUniverse("nope"))

	for _, sym := range append(GetUniverse(UniverseIndex), GetUniverse(UniverseMicro)...) {
		inst, ok := Lookup(sym)
		assert.True(t, ok, sym)
		assert.Positive(t, inst.TickSize, sym)
	}
}

func TestIsValidSymbol(t *testing.T) {
	for _, s := range []string{"NQ=F", "^GSPC", "BRK.B", "M2K=F"} {
		assert.True(t, isValidSymbol(s), s)
	}
	for _, s := range []string{"", "=F", "NQ^", "TOOLONGSYMBOL", "nq=f", "A B"} {
		assert.False(t, isValidSymbol(s), s)
	}
}
