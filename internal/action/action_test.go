package action

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecodesCompoundTokens(t *testing.T) {
	a, err := Parse("choose:3:M")
	require.NoError(t, err)
	assert.Equal(t, ChooseVariant("3", "M"), a)

	a, err = Parse("choose:3:EU:42")
	require.NoError(t, err)
	assert.Equal(t, "EU:42", a.Variant, "variant keeps everything after the id")

	a, err = Parse("rm:7::M")
	require.NoError(t, err)
	assert.Equal(t, RemoveFromCart("7::M"), a)

	a, err = Parse("rm:7::")
	require.NoError(t, err)
	assert.Equal(t, "7::", a.Key)
}

func TestTokenRoundTrip(t *testing.T) {
	for _, a := range []Action{
		Shop(), ViewCart(), ClearCart(), BeginCheckout(), Confirm(), Cancel(),
		ViewProduct("12"), AddToCart("12"), ChooseVariant("12", "XL"), RemoveFromCart("12::XL"),
	} {
		got, err := Parse(a.Token())
		require.NoError(t, err, a.Kind.String())
		assert.Equal(t, a, got)
	}
}

func TestChooseSplitsOnFirstSeparator(t *testing.T) {
	a, err := Parse(ChooseVariant("7", "EU:42").Token())
	require.NoError(t, err)
	assert.Equal(t, "7", a.ProductID)
	assert.Equal(t, "EU:42", a.Variant)
}

func TestCheckTokenLength(t *testing.T) {
	assert.NoError(t, ChooseVariant("12", "XL").Check())
	assert.NoError(t, Shop().Check())

	err := ChooseVariant("product-0123456789abcdef0123456789", "XXL-long-variant-name-here").Check()
	assert.True(t, errors.Is(err, ErrTokenTooLong))

	id := strings.Repeat("a", MaxTokenLen-len("prod:"))
	assert.NoError(t, ViewProduct(id).Check())
	assert.True(t, errors.Is(ViewProduct(id+"a").Check(), ErrTokenTooLong))
}

func TestParseRejectsUnknownTokens(t *testing.T) {
	for _, tok := range []string{"", "prod:", "choose:3", "choose::M", "bogus", "rm:"} {
		_, err := Parse(tok)
		assert.True(t, errors.Is(err, ErrUnknownToken), "token %q", tok)
	}
}
