package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("  Cash ")
	require.NoError(t, err)
	assert.Equal(t, Cash, m)

	m, err = ParseMethod("CARD")
	require.NoError(t, err)
	assert.Equal(t, Card, m)

	m, err = ParseMethod("transfer")
	require.NoError(t, err)
	assert.Equal(t, Transfer, m)

	_, err = ParseMethod("cheque")
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestValidate_ZeroTotal(t *testing.T) {
	_, err := Validate(Cash, "10.00", decimal.Zero)
	require.ErrorIs(t, err, ErrNothingToPay)

	_, err = Validate(Card, "", decimal.Zero)
	require.ErrorIs(t, err, ErrNothingToPay)
}

func TestValidate_CardAndTransferUnconditional(t *testing.T) {
	total := decimal.RequireFromString("30.00")

	for _, m := range []Method{Card, Transfer} {
		attempt, err := Validate(m, "", total)
		require.NoError(t, err)
		assert.Equal(t, m, attempt.Method)
		assert.True(t, attempt.Tendered.IsZero())
		assert.True(t, attempt.Change.IsZero())
	}
}

func TestValidate_CashExactTender(t *testing.T) {
	total := decimal.RequireFromString("30.00")

	attempt, err := Validate(Cash, "30.00", total)
	require.NoError(t, err)
	assert.Equal(t, Cash, attempt.Method)
	assert.True(t, attempt.Tendered.Equal(total))
	assert.True(t, attempt.Change.IsZero())
}

func TestValidate_CashWithChange(t *testing.T) {
	attempt, err := Validate(Cash, "60.00", decimal.RequireFromString("51.00"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.00").Equal(attempt.Change))
}

func TestValidate_CashOneCentShort(t *testing.T) {
	_, err := Validate(Cash, "29.99", decimal.RequireFromString("30.00"))

	var ifErr *InsufficientFundsError
	require.ErrorAs(t, err, &ifErr)
	assert.True(t, decimal.RequireFromString("0.01").Equal(ifErr.Shortfall))
}

func TestValidate_CashShortfallReported(t *testing.T) {
	_, err := Validate(Cash, "20.00", decimal.RequireFromString("51.00"))

	var ifErr *InsufficientFundsError
	require.ErrorAs(t, err, &ifErr)
	assert.True(t, decimal.RequireFromString("31.00").Equal(ifErr.Shortfall))
}

func TestValidate_CashUnparseableAmount(t *testing.T) {
	for _, input := range []string{"abc", "", "12.3.4", "10,00"} {
		_, err := Validate(Cash, input, decimal.RequireFromString("30.00"))

		var iaErr *InvalidAmountError
		require.ErrorAs(t, err, &iaErr, "input %q", input)
		assert.Equal(t, input, iaErr.Input)
	}
}

func TestValidate_CashNegativeAmount(t *testing.T) {
	_, err := Validate(Cash, "-5.00", decimal.RequireFromString("30.00"))

	var iaErr *InvalidAmountError
	require.ErrorAs(t, err, &iaErr)
}

func TestValidate_UnknownMethod(t *testing.T) {
	_, err := Validate(Method("cheque"), "", decimal.RequireFromString("30.00"))
	require.ErrorIs(t, err, ErrUnknownMethod)
}
