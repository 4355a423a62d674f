package auditlog

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

// DB handles verification audit events in a separate SQLite database.
type DB struct {
	*sql.DB
}

// Entry represents a single verification event.
type Entry struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
	UID       string `json:"uid"`
	UserID    int64  `json:"user_id"`
	Event     string `json:"event"`
	Detail    string `json:"detail"`
}

// Event names recorded by the transport layer.
const (
	EventClaimSubmitted = "claim_submitted"
	EventClaimReady     = "claim_ready"
	EventClaimRejected  = "claim_rejected"
	EventWalletPass     = "wallet_pass"
	EventWalletFail     = "wallet_fail"
	EventOCRFailed      = "ocr_failed"
	EventEditedImage    = "edited_image"
)

// New opens database at given path creating file if needed.
func New(path string) (*DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	q := `CREATE TABLE IF NOT EXISTS events (
        id INTEGER PRIMARY KEY,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        uid TEXT,
        user_id INTEGER,
        event TEXT,
        detail TEXT
    );`
	if _, err := database.Exec(q); err != nil {
		return nil, err
	}
	return &DB{database}, nil
}

// Add stores an audit event.
func (db *DB) Add(ctx context.Context, e *Entry) error {
	_, err := db.ExecContext(ctx, `INSERT INTO events(uid, user_id, event, detail) VALUES(?,?,?,?)`,
		e.UID, e.UserID, e.Event, e.Detail)
	return err
}

// Recent returns the latest events, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, created_at, uid, user_id, event, detail
        FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.UID, &e.UserID, &e.Event, &e.Detail); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CountByEvent tallies events by name.
func (db *DB) CountByEvent(ctx context.Context, event string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE event=?", event).Scan(&n)
	return n, err
}
