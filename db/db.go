package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/uidcheckbot/models"
)

type DB struct {
	*sql.DB
}

func New(path string) (*DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := migrate(database); err != nil {
		return nil, err
	}
	return &DB{database}, nil
}

func migrate(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS uids(
                        uid TEXT PRIMARY KEY,
                        claimed_by INTEGER,
                        username TEXT DEFAULT '',
                        status TEXT NOT NULL DEFAULT 'unclaimed',
                        wallet_balance REAL,
                        added_by TEXT NOT NULL DEFAULT 'user',
                        flagged INTEGER DEFAULT 0,
                        notified INTEGER DEFAULT 0,
                        last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
                );`,
		`CREATE TABLE IF NOT EXISTS user_stats(
                        user_id INTEGER PRIMARY KEY,
                        username TEXT DEFAULT '',
                        first_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
                        last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
                        blocked INTEGER DEFAULT 0,
                        blocked_by_user INTEGER DEFAULT 0
                );`,
		`CREATE TABLE IF NOT EXISTS gift_codes(
                        id INTEGER PRIMARY KEY,
                        code TEXT,
                        active INTEGER DEFAULT 1,
                        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
                );`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// FindUID returns the record for uid, or nil when none exists.
func (db *DB) FindUID(ctx context.Context, uid string) (*models.UIDRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT uid, claimed_by, username, status, wallet_balance, added_by, flagged, notified, last_updated
                FROM uids WHERE uid=?`, uid)
	rec, err := scanUID(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUID(row rowScanner) (*models.UIDRecord, error) {
	var rec models.UIDRecord
	var claimedBy sql.NullInt64
	var balance sql.NullFloat64
	var flagged, notified int
	if err := row.Scan(&rec.UID, &claimedBy, &rec.Username, &rec.Status, &balance, &rec.AddedBy, &flagged, &notified, &rec.LastUpdated); err != nil {
		return nil, err
	}
	rec.ClaimedBy = claimedBy.Int64
	rec.WalletBalance = balance.Float64
	rec.HasBalance = balance.Valid
	rec.Flagged = flagged == 1
	rec.Notified = notified == 1
	return &rec, nil
}

// UpsertUID inserts or replaces the record keyed by uid.
func (db *DB) UpsertUID(ctx context.Context, rec *models.UIDRecord) error {
	var claimedBy sql.NullInt64
	if rec.ClaimedBy != 0 {
		claimedBy = sql.NullInt64{Int64: rec.ClaimedBy, Valid: true}
	}
	var balance sql.NullFloat64
	if rec.HasBalance {
		balance = sql.NullFloat64{Float64: rec.WalletBalance, Valid: true}
	}
	_, err := db.ExecContext(ctx, `INSERT INTO uids(uid, claimed_by, username, status, wallet_balance, added_by, flagged, notified, last_updated)
                VALUES(?,?,?,?,?,?,?,?,?)
                ON CONFLICT(uid) DO UPDATE SET
                        claimed_by=excluded.claimed_by,
                        username=excluded.username,
                        status=excluded.status,
                        wallet_balance=excluded.wallet_balance,
                        added_by=excluded.added_by,
                        flagged=excluded.flagged,
                        notified=excluded.notified,
                        last_updated=excluded.last_updated`,
		rec.UID, claimedBy, rec.Username, rec.Status, balance, rec.AddedBy, boolToInt(rec.Flagged), boolToInt(rec.Notified), time.Now().UTC())
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DeleteUIDs removes the given uids and reports how many rows went away.
func (db *DB) DeleteUIDs(ctx context.Context, uids []string) (int64, error) {
	if len(uids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(uids)), ",")
	args := make([]any, len(uids))
	for i, u := range uids {
		args[i] = u
	}
	res, err := db.ExecContext(ctx, "DELETE FROM uids WHERE uid IN ("+placeholders+")", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListUIDs returns up to limit records filtered by status ("" for all).
func (db *DB) ListUIDs(ctx context.Context, status models.ClaimStatus, limit int) ([]models.UIDRecord, error) {
	q := `SELECT uid, claimed_by, username, status, wallet_balance, added_by, flagged, notified, last_updated FROM uids`
	var args []any
	if status != "" {
		q += " WHERE status=?"
		args = append(args, status)
	}
	q += " ORDER BY last_updated DESC LIMIT ?"
	args = append(args, limit)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []models.UIDRecord
	for rows.Next() {
		rec, err := scanUID(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// ListNotFullyVerified returns records still short of full verification.
func (db *DB) ListNotFullyVerified(ctx context.Context, limit int) ([]models.UIDRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT uid, claimed_by, username, status, wallet_balance, added_by, flagged, notified, last_updated
                FROM uids WHERE status != ? ORDER BY last_updated DESC LIMIT ?`, models.StatusFullyVerified, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []models.UIDRecord
	for rows.Next() {
		rec, err := scanUID(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// FindVerifiedByUser returns a fully verified record claimed by the user, if any.
func (db *DB) FindVerifiedByUser(ctx context.Context, userID int64) (*models.UIDRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT uid, claimed_by, username, status, wallet_balance, added_by, flagged, notified, last_updated
                FROM uids WHERE claimed_by=? AND status=? LIMIT 1`, userID, models.StatusFullyVerified)
	rec, err := scanUID(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// FlagUID marks a record whose wallet screenshot looked tampered with.
func (db *DB) FlagUID(ctx context.Context, uid string) error {
	_, err := db.ExecContext(ctx, "UPDATE uids SET flagged=1, last_updated=? WHERE uid=?", time.Now().UTC(), uid)
	return err
}

// ListUnnotifiedClaimed returns approved records whose owner has not yet
// heard their claim went through.
func (db *DB) ListUnnotifiedClaimed(ctx context.Context) ([]models.UIDRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT uid, claimed_by, username, status, wallet_balance, added_by, flagged, notified, last_updated
                FROM uids WHERE status=? AND notified=0 AND claimed_by IS NOT NULL`, models.StatusClaimed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []models.UIDRecord
	for rows.Next() {
		rec, err := scanUID(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func (db *DB) MarkNotified(ctx context.Context, uid string) error {
	_, err := db.ExecContext(ctx, "UPDATE uids SET notified=1 WHERE uid=?", uid)
	return err
}

func (db *DB) CountUIDs(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM uids").Scan(&n)
	return n, err
}

// Stats aggregates the admin activity report in one pass per counter.
func (db *DB) Stats(ctx context.Context, minBalance float64) (*models.Stats, error) {
	var s models.Stats
	counters := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&s.TotalUsers, "SELECT COUNT(*) FROM user_stats WHERE blocked=0", nil},
		{&s.BlockedUsers, "SELECT COUNT(*) FROM user_stats WHERE blocked=1", nil},
		{&s.TotalUIDs, "SELECT COUNT(*) FROM uids", nil},
		{&s.ClaimedUIDs, "SELECT COUNT(*) FROM uids WHERE status IN (?,?)", []any{models.StatusClaimed, models.StatusFullyVerified}},
		{&s.FullyVerified, "SELECT COUNT(*) FROM uids WHERE status=?", []any{models.StatusFullyVerified}},
		{&s.PendingApproval, "SELECT COUNT(*) FROM uids WHERE status=?", []any{models.StatusPending}},
		{&s.AdminAdded, "SELECT COUNT(*) FROM uids WHERE added_by=?", []any{models.AddedByAdmin}},
		{&s.QualifiedBalance, "SELECT COUNT(*) FROM uids WHERE status=? AND wallet_balance >= ?", []any{models.StatusFullyVerified, minBalance}},
	}
	for _, c := range counters {
		if err := db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// TouchUser records activity for the user, creating the row if needed.
// A user marked blocked-by-user is unblocked when they show up again.
func (db *DB) TouchUser(ctx context.Context, userID int64, username string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO user_stats(user_id, username) VALUES(?,?)
                ON CONFLICT(user_id) DO UPDATE SET
                        username=excluded.username,
                        last_seen=CURRENT_TIMESTAMP,
                        blocked=CASE WHEN user_stats.blocked_by_user=1 THEN 0 ELSE user_stats.blocked END,
                        blocked_by_user=0`, userID, username)
	return err
}

func (db *DB) IsUserBlocked(ctx context.Context, userID int64) (bool, error) {
	var blocked, byUser int
	err := db.QueryRowContext(ctx, "SELECT blocked, blocked_by_user FROM user_stats WHERE user_id=?", userID).Scan(&blocked, &byUser)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// Blocked-by-user is lifted on the next inbound message, so only an
	// admin block denies access here.
	return blocked == 1 && byUser == 0, nil
}

// MarkUserBlocked flags a user; byUser distinguishes "user blocked the bot"
// from an admin block.
func (db *DB) MarkUserBlocked(ctx context.Context, userID int64, byUser bool) error {
	_, err := db.ExecContext(ctx, "UPDATE user_stats SET blocked=1, blocked_by_user=? WHERE user_id=?", boolToInt(byUser), userID)
	return err
}

// ListActiveUserIDs returns users eligible for broadcast delivery.
func (db *DB) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, "SELECT user_id FROM user_stats WHERE blocked=0 OR blocked_by_user=1")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const defaultGiftCode = "F0394C76A4CC0B6716EED375826CAEB"

// ActiveGiftCode returns the current code, seeding a default when none exists.
func (db *DB) ActiveGiftCode(ctx context.Context) (*models.GiftCode, error) {
	var gc models.GiftCode
	var active int
	err := db.QueryRowContext(ctx, "SELECT id, code, active, updated_at FROM gift_codes WHERE active=1 ORDER BY id DESC LIMIT 1").
		Scan(&gc.ID, &gc.Code, &active, &gc.UpdatedAt)
	if err == sql.ErrNoRows {
		if err := db.SetGiftCode(ctx, defaultGiftCode); err != nil {
			return nil, err
		}
		return db.ActiveGiftCode(ctx)
	}
	if err != nil {
		return nil, err
	}
	gc.Active = active == 1
	return &gc, nil
}

// SetGiftCode deactivates previous codes and installs a new active one.
func (db *DB) SetGiftCode(ctx context.Context, code string) error {
	if _, err := db.ExecContext(ctx, "UPDATE gift_codes SET active=0 WHERE active=1"); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, "INSERT INTO gift_codes(code, active) VALUES(?,1)", code)
	return err
}
