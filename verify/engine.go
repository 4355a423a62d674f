package verify

import (
	"context"
	"sync"

	"github.com/example/uidcheckbot/logger"
	"github.com/example/uidcheckbot/models"
)

// TextExtractor is the opaque OCR oracle. An empty string signals that
// nothing could be read from the image.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Options configure a new Engine.
type Options struct {
	MinBalance   float64
	RestrictMode bool
}

// Engine decides UID claim and wallet confirmation outcomes, mutating the
// account store accordingly. Calls for the same user are serialized; calls
// for different users may run concurrently.
type Engine struct {
	store      Store
	oracle     TextExtractor
	sessions   *Sessions
	minBalance float64

	restrictMu sync.RWMutex
	restrict   bool

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewEngine(store Store, oracle TextExtractor, opts Options) *Engine {
	return &Engine{
		store:      withRetries(store),
		oracle:     oracle,
		sessions:   NewSessions(),
		minBalance: opts.MinBalance,
		restrict:   opts.RestrictMode,
		locks:      make(map[int64]*sync.Mutex),
	}
}

// RestrictMode reports whether exclusive one-owner-per-UID semantics apply.
func (e *Engine) RestrictMode() bool {
	e.restrictMu.RLock()
	defer e.restrictMu.RUnlock()
	return e.restrict
}

// SetRestrictMode toggles the operating mode; admin-only.
func (e *Engine) SetRestrictMode(on bool) {
	e.restrictMu.Lock()
	e.restrict = on
	e.restrictMu.Unlock()
	logger.Log.Infow("restrict mode changed", "on", on)
}

func (e *Engine) userLock(userID int64) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[userID] = l
	}
	return l
}

// SubmitUID resolves a UID claim for the user. The caller must have
// validated the UID format already.
func (e *Engine) SubmitUID(ctx context.Context, uid string, userID int64, username string) (ClaimOutcome, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	restrict := e.RestrictMode()

	found, err := e.store.FindUID(ctx, uid)
	if err != nil {
		return 0, err
	}

	if found == nil {
		rec := &models.UIDRecord{
			UID:       uid,
			ClaimedBy: userID,
			Username:  username,
			Status:    models.StatusPending,
			AddedBy:   models.AddedByUser,
		}
		if err := e.store.UpsertUID(ctx, rec); err != nil {
			return 0, err
		}
		logger.Log.Infow("uid submitted for approval", "uid", uid, "user", userID)
		return SubmittedForApproval, nil
	}

	if !restrict {
		// Last writer wins: overwrite the owner unconditionally.
		rec := *found
		rec.ClaimedBy = userID
		rec.Username = username
		if rec.Status != models.StatusFullyVerified {
			rec.Status = models.StatusClaimed
		}
		if err := e.store.UpsertUID(ctx, &rec); err != nil {
			return 0, err
		}
		e.sessions.SetPending(userID, uid)
		return ReadyForWallet, nil
	}

	claimed := found.Status == models.StatusClaimed || found.Status == models.StatusFullyVerified

	switch {
	case found.ClaimedBy == userID && claimed:
		// Idempotent re-claim: refresh bookkeeping only.
		rec := *found
		rec.Username = username
		if err := e.store.UpsertUID(ctx, &rec); err != nil {
			return 0, err
		}
		e.sessions.SetPending(userID, uid)
		return ReadyForWallet, nil

	case found.ClaimedBy == userID && found.Status == models.StatusPending:
		return StillPending, nil

	case found.ClaimedBy != 0 && found.ClaimedBy != userID && claimed:
		logger.Log.Infow("uid claim rejected, owned by another user",
			"uid", uid, "user", userID, "owner", found.ClaimedBy)
		return ClaimedByOther, nil

	default:
		// Record exists but belongs to nobody conclusively: take the claim.
		rec := *found
		rec.ClaimedBy = userID
		rec.Username = username
		rec.Status = models.StatusClaimed
		if err := e.store.UpsertUID(ctx, &rec); err != nil {
			return 0, err
		}
		e.sessions.SetPending(userID, uid)
		return ReadyForWallet, nil
	}
}

// SubmitWalletImage runs the OCR oracle over the image and evaluates the
// wallet pass rule against the user's pending UID. A terminal PASS or FAIL
// clears the pending claim; an extraction failure preserves it.
func (e *Engine) SubmitWalletImage(ctx context.Context, userID int64, image []byte) (WalletResult, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	uid, ok := e.sessions.GetPending(userID)
	if !ok {
		return WalletResult{Outcome: WalletNoPending}, nil
	}

	text, err := e.oracle.ExtractText(ctx, image)
	if err != nil || text == "" {
		if err != nil {
			logger.Log.Errorw("ocr extraction failed", "uid", uid, "user", userID, "error", err)
		}
		return WalletResult{Outcome: WalletExtractionFailed, UID: uid}, nil
	}

	res := Evaluate(uid, text, e.minBalance)

	if res.Outcome == WalletPass {
		found, err := e.store.FindUID(ctx, uid)
		if err != nil {
			return res, err
		}
		if found == nil {
			// Record purged while pending; nothing to verify against.
			e.sessions.ClearPending(userID)
			res.Outcome = WalletFail
			res.Reason = ReasonUIDMismatch
			return res, nil
		}
		rec := *found
		rec.Status = models.StatusFullyVerified
		rec.WalletBalance = res.Balance
		rec.HasBalance = true
		if err := e.store.UpsertUID(ctx, &rec); err != nil {
			// Keep the pending claim so a retry can still complete.
			return res, err
		}
		logger.Log.Infow("wallet verification passed", "uid", uid, "user", userID, "balance", res.Balance)
	} else {
		logger.Log.Infow("wallet verification failed",
			"uid", uid, "user", userID, "reason", res.Reason, "extracted_uid", res.ExtractedUID)
	}

	e.sessions.ClearPending(userID)
	return res, nil
}

// SetPending arms a wallet confirmation for the user, used when an admin
// approves a submitted uid out of band.
func (e *Engine) SetPending(userID int64, uid string) {
	e.sessions.SetPending(userID, uid)
}

// CancelPending drops the user's outstanding wallet confirmation, if any.
func (e *Engine) CancelPending(userID int64) {
	e.sessions.ClearPending(userID)
}

// PendingUID reports the user's outstanding wallet confirmation.
func (e *Engine) PendingUID(userID int64) (string, bool) {
	return e.sessions.GetPending(userID)
}
