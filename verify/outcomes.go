package verify

// ClaimOutcome is the decision for a UID submission.
type ClaimOutcome int

const (
	// SubmittedForApproval means the UID was unknown and now waits for admin review.
	SubmittedForApproval ClaimOutcome = iota
	// ReadyForWallet means the UID is claimed by this user and a wallet
	// screenshot should be submitted next.
	ReadyForWallet
	// StillPending means this user already submitted the UID and admin
	// review has not happened yet.
	StillPending
	// ClaimedByOther means a different user holds the claim; first claim wins.
	ClaimedByOther
)

func (c ClaimOutcome) String() string {
	switch c {
	case SubmittedForApproval:
		return "submitted_for_approval"
	case ReadyForWallet:
		return "ready_for_wallet"
	case StillPending:
		return "still_pending"
	case ClaimedByOther:
		return "claimed_by_other"
	}
	return "unknown"
}

// WalletOutcome is the decision for a wallet screenshot submission.
type WalletOutcome int

const (
	WalletPass WalletOutcome = iota
	WalletFail
	// WalletExtractionFailed means the oracle returned nothing; the pending
	// claim survives so the user can retry with another image.
	WalletExtractionFailed
	// WalletNoPending means there is no outstanding claim to verify against.
	WalletNoPending
)

func (w WalletOutcome) String() string {
	switch w {
	case WalletPass:
		return "pass"
	case WalletFail:
		return "fail"
	case WalletExtractionFailed:
		return "extraction_failed"
	case WalletNoPending:
		return "no_pending_claim"
	}
	return "unknown"
}

// FailReason explains a WalletFail; only the highest-priority reason is surfaced.
type FailReason string

const (
	ReasonUIDMismatch         FailReason = "uid_mismatch"
	ReasonBalanceUndetected   FailReason = "balance_undetected"
	ReasonBalanceBelowMinimum FailReason = "balance_below_minimum"
)

// WalletResult carries the outcome plus what was read from the screenshot,
// for transport-layer messaging and admin notifications.
type WalletResult struct {
	Outcome      WalletOutcome
	Reason       FailReason
	UID          string
	ExtractedUID string
	Balance      float64
	HasBalance   bool
	Text         string
}
