package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/uidcheckbot/verify"
)

func TestUIDRegex(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"123456789", "123456789"},
		{"UID 123456789", "123456789"},
		{"uid: my id is 987654", "987654"},
		{"check UID123456789 please", "123456789"},
		{"12345", ""},
		{"no digits here", ""},
	}
	for _, tt := range tests {
		m := uidRegex.FindStringSubmatch(tt.text)
		if tt.want == "" {
			assert.Nil(t, m, tt.text)
			continue
		}
		if assert.NotNil(t, m, tt.text) {
			assert.Equal(t, tt.want, m[1], tt.text)
		}
	}
}

func TestMaskCode(t *testing.T) {
	assert.Equal(t, "F0394C76A4CC-XXXX-CAEB", maskCode("F0394C76A4CC0B6716EED375826CAEB"))
	assert.Equal(t, "ABCD-XXXX-GH", maskCode("ABCDEFGH"))
	assert.Equal(t, "XXXX-EF", maskCode("ABCDEF"))
	assert.Equal(t, "XXXXXX", maskCode("A"))
}

func TestIsBlockedError(t *testing.T) {
	assert.True(t, isBlockedError(errors.New("Forbidden: bot was blocked by the user")))
	assert.True(t, isBlockedError(errors.New("Bad Request: chat not found")))
	assert.True(t, isBlockedError(errors.New("user is deactivated")))
	assert.False(t, isBlockedError(errors.New("Too Many Requests: retry after 5")))
}

func TestWalletFailMessage(t *testing.T) {
	msg := walletFailMessage(verify.WalletResult{
		Outcome: verify.WalletFail, Reason: verify.ReasonUIDMismatch,
		UID: "123456789", ExtractedUID: "999999999",
	})
	assert.Contains(t, msg, "UID mismatch")
	assert.Contains(t, msg, "999999999")

	msg = walletFailMessage(verify.WalletResult{
		Outcome: verify.WalletFail, Reason: verify.ReasonBalanceUndetected,
	})
	assert.Contains(t, msg, "Could not detect balance")

	msg = walletFailMessage(verify.WalletResult{
		Outcome: verify.WalletFail, Reason: verify.ReasonBalanceBelowMinimum,
		Balance: 42.5, HasBalance: true,
	})
	assert.Contains(t, msg, "Insufficient Balance")
	assert.Contains(t, msg, "42.50")
}
