package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/uidcheckbot/logger"
	"github.com/example/uidcheckbot/models"
	"github.com/example/uidcheckbot/verify"
)

// Admin update conversation steps.
const (
	stepModeSelect = iota
	stepSingleUID
	stepBulkImages
)

// maxExtractionBatches bounds the /del undo history.
const maxExtractionBatches = 10

type adminState struct {
	step  int
	added int
}

func (b *Bot) adminState(userID int64) *adminState {
	b.adminMu.Lock()
	defer b.adminMu.Unlock()
	return b.adminStates[userID]
}

func (b *Bot) setAdminState(userID int64, st *adminState) {
	b.adminMu.Lock()
	defer b.adminMu.Unlock()
	if st == nil {
		delete(b.adminStates, userID)
	} else {
		b.adminStates[userID] = st
	}
}

func (b *Bot) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	switch m.Command() {
	case "start":
		b.cmdStart(m)
		return
	case "claim":
		b.cmdClaim(ctx, m)
		return
	case "cancel":
		b.cmdCancel(m)
		return
	case "done":
		if b.cfg.IsAdmin(m.From.ID) && b.adminState(m.From.ID) != nil {
			b.finishUpdateMode(ctx, m)
			return
		}
	}

	if !b.cfg.IsAdmin(m.From.ID) {
		return
	}

	switch m.Command() {
	case "stats":
		b.cmdStats(ctx, m)
	case "verified":
		b.cmdVerified(ctx, m)
	case "nonverified":
		b.cmdNonVerified(ctx, m)
	case "all":
		b.cmdAll(ctx, m)
	case "update":
		b.cmdUpdate(m)
	case "dustbin":
		b.cmdDustbin(ctx, m)
	case "del":
		b.cmdDel(ctx, m)
	case "restrict":
		b.cmdRestrict(m)
	case "newcode":
		b.cmdNewCode(ctx, m)
	case "broadcast":
		b.cmdBroadcast(ctx, m)
	case "history":
		b.cmdHistory(ctx, m)
	}
}

func (b *Bot) cmdStart(m *tgbotapi.Message) {
	text := "*Welcome to UID Verifier Bot! 🧞*\n\n" +
		"*1. Register with the official link 🔗*\n" +
		fmt.Sprintf("*2. Deposit ₹%.0f at least 📥*\n", b.cfg.MinBalance) +
		"*3. Send UID & wallet screenshot 📃*\n" +
		"*4. Wait for admin approval ⏰*"
	msg := tgbotapi.NewMessage(m.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if b.cfg.RegisterURL != "" {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Registration Link", b.cfg.RegisterURL),
			))
		msg.ReplyMarkup = &kb
	}
	b.send(msg, m.From.ID)
}

func (b *Bot) cmdClaim(ctx context.Context, m *tgbotapi.Message) {
	gc, err := b.db.ActiveGiftCode(ctx)
	if err != nil {
		logger.Log.Errorw("gift code lookup", "error", err)
		b.reply(m, "❌ Error processing your claim request. Please try again.")
		return
	}

	rec, err := b.db.FindVerifiedByUser(ctx, m.From.ID)
	if err != nil {
		logger.Log.Errorw("verified lookup", "user_id", m.From.ID, "error", err)
		b.reply(m, "❌ Error processing your claim request. Please try again.")
		return
	}

	if rec != nil {
		b.replyMarkdown(m, fmt.Sprintf(
			"*🎁 Your Gift Code*\n\n"+
				"📥 Code : `%s`\n\n"+
				"*✅ Verified UID: %s*", gc.Code, rec.UID))
		return
	}

	b.replyMarkdown(m, fmt.Sprintf(
		"*🎁 Ready to Grab Your Reward ⁉️*\n\n"+
			"📥 Code : `%s`\n"+
			"*🔐 Verify your ID & Wallet to unlock the surprise!*\n\n"+
			"*⏳ Hurry Up !! Limited codes Available 🦋*", maskCode(gc.Code)))
}

// maskCode hides the middle of a gift code for unverified users.
func maskCode(code string) string {
	switch {
	case len(code) >= 16:
		return code[:12] + "-XXXX-" + code[len(code)-4:]
	case len(code) >= 8:
		return code[:4] + "-XXXX-" + code[len(code)-2:]
	case len(code) >= 2:
		return "XXXX-" + code[len(code)-2:]
	default:
		return "XXXXXX"
	}
}

func (b *Bot) cmdCancel(m *tgbotapi.Message) {
	b.engine.CancelPending(m.From.ID)
	if b.cfg.IsAdmin(m.From.ID) {
		b.setAdminState(m.From.ID, nil)
	}
	msg := tgbotapi.NewMessage(m.Chat.ID, "❌ Operation cancelled.")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.send(msg, m.From.ID)
}

func (b *Bot) cmdStats(ctx context.Context, m *tgbotapi.Message) {
	stats, err := b.db.Stats(ctx, b.cfg.MinBalance)
	if err != nil {
		logger.Log.Errorw("stats", "error", err)
		b.reply(m, "❌ Error retrieving statistics.")
		return
	}
	rate := 0.0
	if stats.TotalUIDs > 0 {
		rate = float64(stats.FullyVerified) / float64(stats.TotalUIDs) * 100
	}
	b.replyMarkdown(m, fmt.Sprintf(
		"📊 *USER ACTIVITY REPORT*\n\n"+
			"🤖 Total Bot Users: %d\n"+
			"🚫 Blocked Users: %d\n"+
			"📂 Total UIDs: %d\n"+
			"✅ Claimed UIDs: %d\n"+
			"🔒 Fully Verified: %d\n"+
			"⏳ Pending Approval: %d\n"+
			"🛠 Added by Admin: %d\n"+
			"💰 Qualified Balance: %d\n\n"+
			"📈 Verification Rate: %.1f%%",
		stats.TotalUsers, stats.BlockedUsers, stats.TotalUIDs, stats.ClaimedUIDs,
		stats.FullyVerified, stats.PendingApproval, stats.AdminAdded,
		stats.QualifiedBalance, rate))
}

const listLimit = 50

func (b *Bot) cmdVerified(ctx context.Context, m *tgbotapi.Message) {
	recs, err := b.db.ListUIDs(ctx, models.StatusFullyVerified, listLimit)
	if err != nil {
		logger.Log.Errorw("list verified", "error", err)
		b.reply(m, "❌ Error retrieving verified UIDs.")
		return
	}
	if len(recs) == 0 {
		b.reply(m, "📭 No verified UIDs found.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 *Verified UIDs (%d shown)*\n\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&sb, "✅ %s (@%s, ₹%.2f)\n", r.UID, r.Username, r.WalletBalance)
	}
	b.replyMarkdown(m, sb.String())
}

func (b *Bot) cmdNonVerified(ctx context.Context, m *tgbotapi.Message) {
	recs, err := b.db.ListNotFullyVerified(ctx, listLimit)
	if err != nil {
		logger.Log.Errorw("list nonverified", "error", err)
		b.reply(m, "❌ Error retrieving non-verified UIDs.")
		return
	}
	if len(recs) == 0 {
		b.reply(m, "📭 No non-verified UIDs found.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏳ *Non-Verified UIDs (%d shown)*\n\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&sb, "❌ %s (@%s, %s)\n", r.UID, r.Username, r.Status)
	}
	b.replyMarkdown(m, sb.String())
}

func (b *Bot) cmdAll(ctx context.Context, m *tgbotapi.Message) {
	total, err := b.db.CountUIDs(ctx)
	if err != nil {
		logger.Log.Errorw("count uids", "error", err)
		b.reply(m, "❌ Error retrieving UIDs.")
		return
	}
	recs, err := b.db.ListUIDs(ctx, "", listLimit)
	if err != nil {
		logger.Log.Errorw("list all", "error", err)
		b.reply(m, "❌ Error retrieving UIDs.")
		return
	}
	if len(recs) == 0 {
		b.reply(m, "📭 No UIDs found in database.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📂 *All UIDs (%d total)*\n\n", total)
	for _, r := range recs {
		mark := "❌"
		if r.Status == models.StatusFullyVerified {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %s\n", mark, r.UID)
	}
	if total > len(recs) {
		fmt.Fprintf(&sb, "\n... and %d more", total-len(recs))
	}
	b.replyMarkdown(m, sb.String())
}

func (b *Bot) cmdUpdate(m *tgbotapi.Message) {
	b.setAdminState(m.From.ID, &adminState{step: stepModeSelect})
	msg := tgbotapi.NewMessage(m.Chat.ID,
		"🔧 *Admin Update Mode*\n\n"+
			"Choose update method:\n"+
			"• Single UID: Add one UID at a time\n"+
			"• Bulk Screenshot: Extract UIDs from images\n"+
			"• Cancel: Exit update mode")
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("Single UID")),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("Bulk Screenshot")),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("Cancel")),
	)
	b.send(msg, m.From.ID)
}

func (b *Bot) handleAdminStep(ctx context.Context, st *adminState, m *tgbotapi.Message) {
	switch st.step {
	case stepModeSelect:
		b.handleModeSelect(st, m)
	case stepSingleUID:
		b.handleSingleUID(ctx, st, m)
	case stepBulkImages:
		b.handleBulkImage(ctx, st, m)
	}
}

func (b *Bot) handleModeSelect(st *adminState, m *tgbotapi.Message) {
	switch m.Text {
	case "Single UID":
		st.step = stepSingleUID
		msg := tgbotapi.NewMessage(m.Chat.ID,
			"📝 *Single UID Mode*\n\nSend the UID to add/update (6-12 digits).\nType /done when finished.")
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		b.send(msg, m.From.ID)
	case "Bulk Screenshot":
		st.step = stepBulkImages
		msg := tgbotapi.NewMessage(m.Chat.ID,
			"📸 *Bulk Screenshot Mode*\n\nSend screenshot(s) containing UIDs.\nType /done when finished.")
		msg.ParseMode = tgbotapi.ModeMarkdown
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		b.send(msg, m.From.ID)
	default:
		b.setAdminState(m.From.ID, nil)
		msg := tgbotapi.NewMessage(m.Chat.ID, "❌ Update mode cancelled.")
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		b.send(msg, m.From.ID)
	}
}

func (b *Bot) handleSingleUID(ctx context.Context, st *adminState, m *tgbotapi.Message) {
	uid := strings.TrimSpace(m.Text)
	if !verify.UIDPattern.MatchString(uid) {
		b.reply(m, "❌ Invalid UID format. Must be 6-12 digits.\nSend another UID or type /done to finish.")
		return
	}
	tally := b.engine.BulkClaim(ctx, []string{uid})
	if tally.Added == 0 {
		b.reply(m, "❌ Database error. Please try again.")
		return
	}
	st.added++
	b.reply(m, fmt.Sprintf("✅ UID %s added to database.\nSend another UID or type /done to finish.", uid))
}

func (b *Bot) handleBulkImage(ctx context.Context, st *adminState, m *tgbotapi.Message) {
	if len(m.Photo) == 0 {
		b.reply(m, "📸 Please send an image or /done to finish.")
		return
	}

	img, err := b.downloadPhoto(m)
	if err != nil {
		logger.Log.Errorw("bulk photo download", "error", err)
		b.reply(m, "❌ Error processing image. Please try again.")
		return
	}

	b.reply(m, "🔄 Processing image...")
	text, err := b.ocr.ExtractText(ctx, img)
	if err != nil || text == "" {
		logger.Log.Warnw("bulk ocr failed", "error", err)
		b.reply(m, "❌ Could not process image. Try another image.")
		return
	}

	uids := verify.ExtractUIDs(text)
	if len(uids) == 0 {
		b.reply(m, "❌ No UIDs found in image. Try another image.")
		return
	}

	tally := b.engine.BulkClaim(ctx, uids)
	st.added += tally.Added

	b.adminMu.Lock()
	b.extractions = append(b.extractions, uids)
	if len(b.extractions) > maxExtractionBatches {
		b.extractions = b.extractions[1:]
	}
	b.adminMu.Unlock()

	preview := uids
	suffix := ""
	if len(preview) > 10 {
		preview = preview[:10]
		suffix = "..."
	}
	b.reply(m, fmt.Sprintf("✅ Processed %d UID(s) from image.\nFound UIDs: %s%s\n\nSend another image or /done to finish.",
		tally.Added, strings.Join(preview, ", "), suffix))
}

func (b *Bot) finishUpdateMode(ctx context.Context, m *tgbotapi.Message) {
	b.setAdminState(m.From.ID, nil)
	msg := tgbotapi.NewMessage(m.Chat.ID, "✅ Update completed.")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.send(msg, m.From.ID)
	b.notifyApprovedUsers(ctx, m)
}

// notifyApprovedUsers tells each user whose submitted UID an admin approved
// that a wallet screenshot is now expected, and arms the pending state.
func (b *Bot) notifyApprovedUsers(ctx context.Context, m *tgbotapi.Message) {
	recs, err := b.db.ListUnnotifiedClaimed(ctx)
	if err != nil {
		logger.Log.Errorw("unnotified list", "error", err)
		b.reply(m, "❌ Error checking for newly verified UIDs.")
		return
	}
	if len(recs) == 0 {
		b.reply(m, "ℹ️ No newly verified UIDs found.")
		return
	}

	notified := 0
	for _, rec := range recs {
		msg := tgbotapi.NewMessage(rec.ClaimedBy, fmt.Sprintf(
			"*⚡Great News, Champ! 🧞*\n\n"+
				"*✅ UID %s Verified Successfully*\n"+
				"*📩 Now, Please Send Your Wallet Screenshot For Balance Check.*\n"+
				"*💰 Minimum Required Balance: ₹%.0f*", rec.UID, b.cfg.MinBalance))
		msg.ParseMode = tgbotapi.ModeMarkdown
		if !b.send(msg, rec.ClaimedBy) {
			continue
		}
		if err := b.db.MarkNotified(ctx, rec.UID); err != nil {
			logger.Log.Errorw("mark notified", "uid", rec.UID, "error", err)
		}
		b.engine.SetPending(rec.ClaimedBy, rec.UID)
		notified++
	}
	b.replyMarkdown(m, fmt.Sprintf(
		"📢 *Notification Summary*\n\n✅ Notified %d users about verified UIDs", notified))
}

func (b *Bot) cmdDustbin(ctx context.Context, m *tgbotapi.Message) {
	args := strings.TrimSpace(m.CommandArguments())
	if args == "" {
		b.replyMarkdown(m, "🗑️ *Dustbin Command*\n\nUsage: `/dustbin uid1,uid2,uid3`")
		return
	}
	var uids []string
	for _, part := range strings.Split(args, ",") {
		if u := strings.TrimSpace(part); u != "" {
			uids = append(uids, u)
		}
	}
	deleted, err := b.engine.RejectAndPurge(ctx, uids)
	if err != nil {
		logger.Log.Errorw("dustbin", "error", err)
		b.reply(m, "❌ Error deleting UIDs.")
		return
	}
	b.replyMarkdown(m, fmt.Sprintf("🗑️ *Deletion Complete*\n\nDeleted: %d UID(s)\nRequested: %d UID(s)", deleted, len(uids)))
}

func (b *Bot) cmdDel(ctx context.Context, m *tgbotapi.Message) {
	b.adminMu.Lock()
	available := len(b.extractions)
	b.adminMu.Unlock()

	args := strings.TrimSpace(m.CommandArguments())
	if args == "" {
		b.replyMarkdown(m, fmt.Sprintf(
			"🗑️ *Delete Last Extractions*\n\nUsage: `/del <number>`\nAvailable extractions: %d", available))
		return
	}
	num, err := strconv.Atoi(args)
	if err != nil {
		b.reply(m, "❌ Invalid number format.")
		return
	}
	if num <= 0 || num > available {
		b.reply(m, fmt.Sprintf("❌ Invalid number. Available: 1-%d", available))
		return
	}

	b.adminMu.Lock()
	var uids []string
	for _, batch := range b.extractions[:num] {
		uids = append(uids, batch...)
	}
	b.extractions = b.extractions[num:]
	b.adminMu.Unlock()

	deleted, err := b.engine.RejectAndPurge(ctx, uids)
	if err != nil {
		logger.Log.Errorw("del extractions", "error", err)
		b.reply(m, "❌ Error deleting UIDs.")
		return
	}
	b.replyMarkdown(m, fmt.Sprintf(
		"🗑️ *Deletion Complete*\n\nDeleted: %d UID(s)\nFrom: %d extraction(s)", deleted, num))
}

func (b *Bot) cmdRestrict(m *tgbotapi.Message) {
	on := !b.engine.RestrictMode()
	b.engine.SetRestrictMode(on)
	state := "OFF"
	if on {
		state = "ON"
	}
	logger.Log.Infow("restrict mode toggled", "on", on, "admin_id", m.From.ID)
	b.reply(m, fmt.Sprintf("🔒 Restriction mode is now %s.", state))
}

func (b *Bot) cmdNewCode(ctx context.Context, m *tgbotapi.Message) {
	code := strings.TrimSpace(m.CommandArguments())
	if code == "" {
		b.replyMarkdown(m, "🎁 *Update Gift Code*\n\nUsage: `/newcode <new_gift_code>`")
		return
	}
	if err := b.db.SetGiftCode(ctx, code); err != nil {
		logger.Log.Errorw("set gift code", "error", err)
		b.reply(m, "❌ Error updating gift code.")
		return
	}
	b.replyMarkdown(m, fmt.Sprintf(
		"✅ *Gift Code Updated Successfully!*\n\n🎁 New Code: `%s`\n\n🔔 *Broadcasting notification to all users...*", code))

	sent, failed := b.broadcast(ctx,
		"*🎁 New Gift Code Available!*\n\n*💸 A fresh gift code just dropped. Use /claim to grab yours!*", true)
	logger.Log.Infow("gift code broadcast", "sent", sent, "failed", failed)
	b.reply(m, fmt.Sprintf("📢 Broadcast finished: %d sent, %d unreachable.", sent, failed))
}

func (b *Bot) cmdBroadcast(ctx context.Context, m *tgbotapi.Message) {
	text := strings.TrimSpace(m.CommandArguments())
	if text == "" {
		b.replyMarkdown(m, "📢 *Broadcast*\n\nUsage: `/broadcast <message>`")
		return
	}
	sent, failed := b.broadcast(ctx, text, false)
	b.reply(m, fmt.Sprintf("📢 Broadcast finished: %d sent, %d unreachable.", sent, failed))
}

func (b *Bot) cmdHistory(ctx context.Context, m *tgbotapi.Message) {
	entries, err := b.audit.Recent(ctx, 20)
	if err != nil {
		logger.Log.Errorw("audit history", "error", err)
		b.reply(m, "❌ Error retrieving history.")
		return
	}
	if len(entries) == 0 {
		b.reply(m, "📭 No events recorded yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("📜 Recent verification events:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s  %s  uid=%s user=%d", e.CreatedAt, e.Event, e.UID, e.UserID)
		if e.Detail != "" {
			fmt.Fprintf(&sb, " (%s)", e.Detail)
		}
		sb.WriteByte('\n')
	}
	b.reply(m, sb.String())
}
