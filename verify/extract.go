package verify

import (
	"regexp"
	"strconv"
	"strings"
)

// UIDPattern validates the canonical UID shape.
var UIDPattern = regexp.MustCompile(`^\d{6,12}$`)

// Amount patterns in priority order: currency-prefixed, currency-suffixed,
// labeled, then any bare amount with two decimal places. Thousands commas
// are stripped before parsing.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:₹|Rs\.?|INR)\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)\s*(?:₹|Rs\.?|INR)`),
	regexp.MustCompile(`(?i)(?:Balance|Total|Amount|Available)[:\s]*(?:₹|Rs\.?|INR)?\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(\d{1,3}(?:,\d{3})*\.\d{2})`),
}

var (
	uidLabeledPattern = regexp.MustCompile(`(?i)(?:UID|User\s*ID)[:\s]*(\d{6,12})`)
	uidRunPattern     = regexp.MustCompile(`\b\d{6,12}\b`)
)

// extractAmount returns the first amount matched by the ordered pattern list.
func extractAmount(text string) (float64, bool) {
	for _, p := range amountPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return amount, true
	}
	return 0, false
}

// extractUID prefers a labeled UID, falling back to any 6-12 digit run.
func extractUID(text string) (string, bool) {
	if m := uidLabeledPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := uidRunPattern.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// ExtractUIDs returns all distinct 6-12 digit runs, in order of appearance.
// Used by the admin bulk-screenshot flow.
func ExtractUIDs(text string) []string {
	seen := make(map[string]bool)
	var uids []string
	for _, m := range uidRunPattern.FindAllString(text, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		uids = append(uids, m)
	}
	return uids
}

// Evaluate applies the wallet pass rule to already-extracted OCR text:
// PASS iff the extracted UID equals uid and the amount is present and at
// least minBalance. Failure reasons are prioritized uid_mismatch, then
// balance_undetected, then balance_below_minimum.
func Evaluate(uid, text string, minBalance float64) WalletResult {
	res := WalletResult{UID: uid, Text: text}
	res.ExtractedUID, _ = extractUID(text)
	res.Balance, res.HasBalance = extractAmount(text)

	if res.ExtractedUID == uid && res.HasBalance && res.Balance >= minBalance {
		res.Outcome = WalletPass
		return res
	}

	res.Outcome = WalletFail
	switch {
	case res.ExtractedUID != uid:
		res.Reason = ReasonUIDMismatch
	case !res.HasBalance:
		res.Reason = ReasonBalanceUndetected
	default:
		res.Reason = ReasonBalanceBelowMinimum
	}
	return res
}
