package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/uidcheckbot/auditlog"
	"github.com/example/uidcheckbot/config"
	"github.com/example/uidcheckbot/db"
	"github.com/example/uidcheckbot/logger"
	"github.com/example/uidcheckbot/ocr"
	"github.com/example/uidcheckbot/verify"
)

// uidRegex accepts a bare 6-12 digit run, optionally prefixed with "UID".
var uidRegex = regexp.MustCompile(`(?i)(?:UID\s*)?(\d{6,12})`)

// editedConfidenceCutoff is the minimum forensics confidence at which an
// edited screenshot is rejected outright.
const editedConfidenceCutoff = 60

type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    *config.Config
	db     *db.DB
	audit  *auditlog.DB
	engine *verify.Engine
	ocr    *ocr.Client

	adminMu     sync.Mutex
	adminStates map[int64]*adminState
	extractions [][]string
}

func New(cfg *config.Config, store *db.DB, audit *auditlog.DB, engine *verify.Engine, oracle *ocr.Client) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:         api,
		cfg:         cfg,
		db:          store,
		audit:       audit,
		engine:      engine,
		ocr:         oracle,
		adminStates: make(map[int64]*adminState),
	}, nil
}

func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	logger.Log.Infow("bot started", "username", b.api.Self.UserName)
	for update := range updates {
		if update.Message != nil {
			b.handleMessage(update.Message)
		}
	}
}

func (b *Bot) handleMessage(m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	ctx := context.Background()
	userID := m.From.ID
	username := m.From.UserName

	if err := b.db.TouchUser(ctx, userID, username); err != nil {
		logger.Log.Errorw("touch user", "user_id", userID, "error", err)
	}

	blocked, err := b.db.IsUserBlocked(ctx, userID)
	if err != nil {
		logger.Log.Errorw("blocked lookup", "user_id", userID, "error", err)
	}
	if blocked {
		b.reply(m, "🚫 You have been blocked from using this bot.")
		return
	}

	if m.IsCommand() {
		b.handleCommand(ctx, m)
		return
	}

	if b.cfg.IsAdmin(userID) {
		if st := b.adminState(userID); st != nil {
			b.handleAdminStep(ctx, st, m)
			return
		}
	}

	if len(m.Photo) > 0 {
		b.handleWalletPhoto(ctx, m)
		return
	}

	if m.Text != "" {
		b.handleText(ctx, m)
	}
}

func (b *Bot) handleText(ctx context.Context, m *tgbotapi.Message) {
	match := uidRegex.FindStringSubmatch(m.Text)
	if match == nil {
		b.replyMarkdown(m,
			"*📩 Send Your UID or Screenshot to Proceed*\n\n"+
				"*☑️ Valid UID Format: 123456789 or UID 123456789*\n"+
				"*🔐 UID must be 6-12 digits only*")
		return
	}
	uid := match[1]

	outcome, err := b.engine.SubmitUID(ctx, uid, m.From.ID, m.From.UserName)
	if err != nil {
		logger.Log.Errorw("submit uid", "uid", uid, "user_id", m.From.ID, "error", err)
		b.reply(m, "❌ Database temporarily unavailable. Please try again in a few minutes.")
		return
	}

	switch outcome {
	case verify.SubmittedForApproval:
		b.replyMarkdown(m,
			"*☑️ Your UID Successfully Sent For Approval !*\n\n"+
				"*🔴 You Will Get Access Within Few Minutes If You Enter Correct Details*")
		b.recordEvent(ctx, uid, m.From.ID, auditlog.EventClaimSubmitted, "")
		b.notifyAdmins(fmt.Sprintf("⚠️ New UID verification attempt:\nUID: %s\nUser: @%s (ID: %d)\nStatus: NOT FOUND",
			uid, m.From.UserName, m.From.ID))
	case verify.ReadyForWallet:
		b.replyMarkdown(m, fmt.Sprintf(
			"*✅ UID %s Verified*\n"+
				"*📸 Please Send Your Wallet Screenshot For Balance Verification.*\n"+
				"*💰 Minimum Required Balance: ₹%.0f*", uid, b.cfg.MinBalance))
		b.recordEvent(ctx, uid, m.From.ID, auditlog.EventClaimReady, "")
	case verify.StillPending:
		b.replyMarkdown(m,
			"*⏳ UID Still Under Review*\n\n"+
				"*🔴 Your UID is already submitted and waiting for admin approval.*\n"+
				"*⏰ Please wait for verification. No need to submit again.*")
	case verify.ClaimedByOther:
		msg := tgbotapi.NewMessage(m.Chat.ID, fmt.Sprintf(
			"*🔒 UID Already Verified by Another Account*\n"+
				"*🆔 UID: %s*\n"+
				"*⚠️ This UID has been claimed by a different Telegram account.*\n"+
				"*🔁 Each UID can only be verified once per user.*", uid))
		msg.ParseMode = tgbotapi.ModeMarkdown
		if b.cfg.SupportURL != "" {
			kb := tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonURL("Contact Admin 👤", b.cfg.SupportURL),
				))
			msg.ReplyMarkup = &kb
		}
		b.send(msg, m.From.ID)
		b.recordEvent(ctx, uid, m.From.ID, auditlog.EventClaimRejected, "claimed_by_other")
	}
}

func (b *Bot) handleWalletPhoto(ctx context.Context, m *tgbotapi.Message) {
	uid, ok := b.engine.PendingUID(m.From.ID)
	if !ok {
		b.reply(m, "❌ No pending UID verification. Please send your UID first.")
		return
	}

	img, err := b.downloadPhoto(m)
	if err != nil {
		logger.Log.Errorw("photo download", "user_id", m.From.ID, "error", err)
		b.reply(m, "❌ Error processing wallet screenshot. Please try again.")
		return
	}

	b.reply(m, "🔄 Processing wallet screenshot...")

	verdict, err := b.ocr.Inspect(ctx, img)
	if err != nil {
		logger.Log.Warnw("authenticity check failed", "user_id", m.From.ID, "error", err)
	}
	if verdict.Edited && verdict.Confidence >= editedConfidenceCutoff {
		b.rejectEditedScreenshot(ctx, m, uid, verdict)
		return
	}

	res, err := b.engine.SubmitWalletImage(ctx, m.From.ID, img)
	if err != nil {
		logger.Log.Errorw("wallet verification", "uid", uid, "user_id", m.From.ID, "error", err)
		b.reply(m, "❌ Database temporarily unavailable. Please try again in a few minutes.")
		return
	}

	switch res.Outcome {
	case verify.WalletPass:
		b.replyMarkdown(m, fmt.Sprintf(
			"*✅ Verification Successful! 🎯*\n\n"+
				"*📋 UID: %s*\n"+
				"*💰 Balance: ₹%.2f*\n"+
				"*🏆 Status: Fully Verified*\n\n"+
				"*🎁 Use /claim to get your gift code*", res.UID, res.Balance))
		b.recordEvent(ctx, res.UID, m.From.ID, auditlog.EventWalletPass, fmt.Sprintf("balance=%.2f", res.Balance))
		b.notifyAdmins(fmt.Sprintf("✅ Successful verification:\nUID: %s\nUser: @%s\nBalance: ₹%.2f",
			res.UID, m.From.UserName, res.Balance))
	case verify.WalletFail:
		b.replyMarkdown(m, walletFailMessage(res))
		b.recordEvent(ctx, res.UID, m.From.ID, auditlog.EventWalletFail, string(res.Reason))
		balanceText := "Not detected"
		if res.HasBalance {
			balanceText = fmt.Sprintf("₹%.2f", res.Balance)
		}
		b.notifyAdmins(fmt.Sprintf("❌ Failed wallet verification:\nUID: %s\nUser: @%s\nExtracted UID: %s\nBalance: %s\nReason: %s",
			res.UID, m.From.UserName, res.ExtractedUID, balanceText, res.Reason))
	case verify.WalletExtractionFailed:
		b.reply(m, "❌ Could not process image. Please try again with a clearer screenshot.")
		b.recordEvent(ctx, uid, m.From.ID, auditlog.EventOCRFailed, "")
	case verify.WalletNoPending:
		b.reply(m, "❌ No pending UID verification. Please send your UID first.")
	}
}

func walletFailMessage(res verify.WalletResult) string {
	switch res.Reason {
	case verify.ReasonUIDMismatch:
		return fmt.Sprintf(
			"*📛 Access Denied*\n"+
				"*🚫 Reason: UID mismatch (found: %s, expected: %s)*\n"+
				"*📄 Please send screenshot with correct UID.*\n"+
				"*🔔 Admin has been notified.*", res.ExtractedUID, res.UID)
	case verify.ReasonBalanceUndetected:
		return "*📛 Access Denied*\n" +
			"*🚫 Reason: Could not detect balance from screenshot*\n" +
			"*📄 Please send a clearer wallet screenshot.*\n" +
			"*🔔 Admin has been notified.*"
	default:
		return fmt.Sprintf(
			"*📛 Access Denied*\n"+
				"*🚫 Reason: Insufficient Balance (₹%.2f)*\n"+
				"*📄 Please recharge your account to continue.*\n"+
				"*🔔 Admin has been notified.*", res.Balance)
	}
}

func (b *Bot) rejectEditedScreenshot(ctx context.Context, m *tgbotapi.Message, uid string, verdict ocr.Verdict) {
	logger.Log.Warnw("edited screenshot detected",
		"user_id", m.From.ID, "uid", uid, "confidence", verdict.Confidence)

	if err := b.db.FlagUID(ctx, uid); err != nil {
		logger.Log.Errorw("flag uid", "uid", uid, "error", err)
	}
	b.engine.CancelPending(m.From.ID)
	b.recordEvent(ctx, uid, m.From.ID, auditlog.EventEditedImage, fmt.Sprintf("confidence=%d", verdict.Confidence))

	msg := tgbotapi.NewMessage(m.Chat.ID,
		"🚨 *SECURITY ALERT - EDITED SCREENSHOT DETECTED* 🚨\n\n"+
			"❌ *Your wallet screenshot has been digitally edited or manipulated*\n\n"+
			"⚠️ Only submit ORIGINAL, unmodified screenshots taken directly from your app.\n"+
			"🚫 *Access denied*")
	msg.ParseMode = tgbotapi.ModeMarkdown
	if b.cfg.SupportURL != "" {
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Contact Admin 👤", b.cfg.SupportURL),
			))
		msg.ReplyMarkup = &kb
	}
	b.send(msg, m.From.ID)

	b.notifyAdmins(fmt.Sprintf("🚨 EDITED SCREENSHOT ALERT 🚨\n\nUser: @%s (ID: %d)\nUID: %s\nConfidence: %d%%\nEvidence: %s",
		m.From.UserName, m.From.ID, uid, verdict.Confidence, strings.Join(verdict.Evidence, ", ")))
}

// downloadPhoto fetches the highest resolution size of the message photo.
func (b *Bot) downloadPhoto(m *tgbotapi.Message) ([]byte, error) {
	photo := m.Photo[len(m.Photo)-1]
	url, err := b.api.GetFileDirectURL(photo.FileID)
	if err != nil {
		return nil, err
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo download: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bot) reply(m *tgbotapi.Message, text string) {
	b.send(tgbotapi.NewMessage(m.Chat.ID, text), m.From.ID)
}

func (b *Bot) replyMarkdown(m *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(m.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg, m.From.ID)
}

// send delivers a message and marks the user blocked when Telegram reports
// the bot can no longer reach them.
func (b *Bot) send(msg tgbotapi.MessageConfig, userID int64) bool {
	if _, err := b.api.Send(msg); err != nil {
		if isBlockedError(err) {
			if dbErr := b.db.MarkUserBlocked(context.Background(), userID, true); dbErr != nil {
				logger.Log.Errorw("mark blocked", "user_id", userID, "error", dbErr)
			}
			logger.Log.Infow("user blocked the bot", "user_id", userID)
		} else {
			logger.Log.Errorw("send message", "user_id", userID, "error", err)
		}
		return false
	}
	return true
}

var blockedErrorMarkers = []string{
	"blocked", "deactivated", "forbidden", "chat not found",
}

func isBlockedError(err error) bool {
	s := strings.ToLower(err.Error())
	for _, marker := range blockedErrorMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func (b *Bot) notifyAdmins(text string) {
	for _, id := range b.cfg.AdminIDs {
		b.send(tgbotapi.NewMessage(id, text), id)
	}
}

func (b *Bot) recordEvent(ctx context.Context, uid string, userID int64, event, detail string) {
	err := b.audit.Add(ctx, &auditlog.Entry{UID: uid, UserID: userID, Event: event, Detail: detail})
	if err != nil {
		logger.Log.Errorw("audit record", "event", event, "error", err)
	}
}

// broadcast fans a message out to every reachable user with a small delay
// between sends to stay under Telegram rate limits.
func (b *Bot) broadcast(ctx context.Context, text string, markdown bool) (sent, failed int) {
	ids, err := b.db.ListActiveUserIDs(ctx)
	if err != nil {
		logger.Log.Errorw("broadcast user list", "error", err)
		return 0, 0
	}
	for _, id := range ids {
		msg := tgbotapi.NewMessage(id, text)
		if markdown {
			msg.ParseMode = tgbotapi.ModeMarkdown
		}
		if b.send(msg, id) {
			sent++
		} else {
			failed++
		}
		time.Sleep(100 * time.Millisecond)
	}
	return sent, failed
}
