package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
		ok   bool
	}{
		{"rupee prefix", "Balance ₹250.00", 250.0, true},
		{"rs prefix", "Rs. 1,234.56 available", 1234.56, true},
		{"inr prefix", "INR 500", 500.0, true},
		{"currency suffix", "250.00 Rs", 250.0, true},
		{"labeled no currency", "Total: 99.50", 99.5, true},
		{"available label", "Available   750.25", 750.25, true},
		{"bare two decimals", "you have 123.45 in wallet", 123.45, true},
		{"comma thousands", "₹12,345.00", 12345.0, true},
		{"nothing numeric", "no money here", 0, false},
		{"bare integer not matched", "some 250 things", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractAmount(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractAmountPrefixedWinsOverBare(t *testing.T) {
	got, ok := extractAmount("order id 111.22 total ₹333.44")
	assert.True(t, ok)
	assert.Equal(t, 333.44, got)
}

func TestExtractUID(t *testing.T) {
	uid, ok := extractUID("UID: 123456789 Balance ₹500")
	assert.True(t, ok)
	assert.Equal(t, "123456789", uid)

	uid, ok = extractUID("User ID 987654321")
	assert.True(t, ok)
	assert.Equal(t, "987654321", uid)

	// Labeled UID beats an earlier bare run.
	uid, ok = extractUID("txn 111111111 UID: 222222222")
	assert.True(t, ok)
	assert.Equal(t, "222222222", uid)

	// Bare fallback.
	uid, ok = extractUID("account 123456 active")
	assert.True(t, ok)
	assert.Equal(t, "123456", uid)

	_, ok = extractUID("only 12345 digits")
	assert.False(t, ok)
}

func TestExtractUIDsDistinctOrdered(t *testing.T) {
	text := "123456 then 987654321 then 123456 again and 11112222"
	assert.Equal(t, []string{"123456", "987654321", "11112222"}, ExtractUIDs(text))
	assert.Nil(t, ExtractUIDs("no digits"))
}

func TestEvaluatePassAtThreshold(t *testing.T) {
	res := Evaluate("123456789", "UID: 123456789 Balance: ₹100.00", 100.0)
	assert.Equal(t, WalletPass, res.Outcome)
	assert.Equal(t, 100.0, res.Balance)
}

func TestEvaluateFailBelowThreshold(t *testing.T) {
	res := Evaluate("123456789", "UID: 123456789 Balance: ₹99.99", 100.0)
	assert.Equal(t, WalletFail, res.Outcome)
	assert.Equal(t, ReasonBalanceBelowMinimum, res.Reason)
}

func TestEvaluateReasonPriority(t *testing.T) {
	// Both the UID mismatch and the low balance apply; mismatch wins.
	res := Evaluate("123456789", "UID: 999999999 Balance: ₹5.00", 100.0)
	assert.Equal(t, WalletFail, res.Outcome)
	assert.Equal(t, ReasonUIDMismatch, res.Reason)
	assert.Equal(t, "999999999", res.ExtractedUID)

	// UID matches but no amount at all.
	res = Evaluate("123456789", "UID: 123456789 nothing else", 100.0)
	assert.Equal(t, ReasonBalanceUndetected, res.Reason)
}

func TestEvaluateNoUIDInText(t *testing.T) {
	res := Evaluate("123456789", "Balance: ₹500.00", 100.0)
	assert.Equal(t, WalletFail, res.Outcome)
	assert.Equal(t, ReasonUIDMismatch, res.Reason)
	assert.Empty(t, res.ExtractedUID)
}

func TestUIDPattern(t *testing.T) {
	assert.True(t, UIDPattern.MatchString("123456"))
	assert.True(t, UIDPattern.MatchString("123456789012"))
	assert.False(t, UIDPattern.MatchString("12345"))
	assert.False(t, UIDPattern.MatchString("1234567890123"))
	assert.False(t, UIDPattern.MatchString("12345a"))
}
