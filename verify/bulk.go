package verify

import (
	"context"

	"github.com/example/uidcheckbot/logger"
	"github.com/example/uidcheckbot/models"
)

// BulkTally reports per-UID results of a batch upsert.
type BulkTally struct {
	Added  int
	Failed int
}

// BulkClaim upserts admin-sourced UIDs as claimed, skipping the pending
// step. Existing owners keep their claim; a fully verified record is reset
// to claimed and its balance cleared so the owner re-verifies.
func (e *Engine) BulkClaim(ctx context.Context, uids []string) BulkTally {
	var tally BulkTally
	for _, uid := range uids {
		if !UIDPattern.MatchString(uid) {
			tally.Failed++
			continue
		}
		found, err := e.store.FindUID(ctx, uid)
		if err != nil {
			logger.Log.Errorw("bulk claim lookup failed", "uid", uid, "error", err)
			tally.Failed++
			continue
		}
		rec := &models.UIDRecord{UID: uid, Status: models.StatusClaimed, AddedBy: models.AddedByAdmin}
		if found != nil {
			rec.ClaimedBy = found.ClaimedBy
			rec.Username = found.Username
		}
		if err := e.store.UpsertUID(ctx, rec); err != nil {
			logger.Log.Errorw("bulk claim upsert failed", "uid", uid, "error", err)
			tally.Failed++
			continue
		}
		tally.Added++
	}
	return tally
}

// RejectAndPurge deletes UID records outright; used by admin review flows.
func (e *Engine) RejectAndPurge(ctx context.Context, uids []string) (int64, error) {
	return e.store.DeleteUIDs(ctx, uids)
}
