package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// ==================== COMMAND SYSTEM ====================

func handleUpdate(bot *tgbotapi.BotAPI, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}
	// Every message runs in its own goroutine so one slow transfer
	// never blocks the others.
	go processMessage(bot, update.Message)
}

func processMessage(bot *tgbotapi.BotAPI, msg *tgbotapi.Message) {
	// Safety guard: one bad message must not take the process down.
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("⚠️ [CRASH PREVENTED] message from %d: %v\n", msg.From.ID, r)
		}
	}()

	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "/start":
		sendStart(bot, msg)
	case strings.HasPrefix(text, "/admins"):
		sendAdminList(bot, msg.Chat.ID)
	case strings.HasPrefix(text, "/admin"):
		handleAddAdmin(bot, msg, strings.TrimSpace(strings.TrimPrefix(text, "/admin")))
	case strings.HasPrefix(text, "/remove"):
		handleRemoveAdmin(bot, msg, strings.TrimSpace(strings.TrimPrefix(text, "/remove")))
	case text == "/cancel":
		handleCancel(bot, msg)
	case text == "/status":
		sendStatus(bot, msg.Chat.ID)
	case strings.HasPrefix(text, "/gofile"):
		startTransfer(bot, msg, strings.TrimSpace(strings.TrimPrefix(text, "/gofile")))
	case strings.Contains(text, "mega.nz/") || strings.Contains(text, "mega.io/"):
		// A bare link works too.
		startTransfer(bot, msg, text)
	}
}

func sendStart(bot *tgbotapi.BotAPI, msg *tgbotapi.Message) {
	if !registry.IsAuthorized(msg.From.ID) {
		reply(bot, msg, fmt.Sprintf(`🔒 Access Restricted

You need to be an admin to use this bot.
Contact the main admin for access: %d`, registry.MainAdmin()))
		return
	}
	reply(bot, msg, fmt.Sprintf(`🚀 %s

Send /gofile <mega_link> to relay a file to Gofile.

🔐 Admin Management (MAIN ADMIN ONLY)
• /admin <user_id> — add admin
• /remove <user_id> — remove admin

👑 Main Admin: %d
👥 Admins: %s`, BOT_NAME, registry.MainAdmin(), formatAdminList(registry.Delegated())))
}

func handleAddAdmin(bot *tgbotapi.BotAPI, msg *tgbotapi.Message, arg string) {
	if arg == "" {
		reply(bot, msg, "Usage: /admin <user_id>")
		return
	}
	target, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		reply(bot, msg, "❌ Invalid user ID! Must be a number.")
		return
	}
	if err := registry.Add(msg.From.ID, target); err != nil {
		reply(bot, msg, adminErrorText(err))
		fmt.Printf("⚠️ [ADMIN] add %d by %d rejected: %v\n", target, msg.From.ID, err)
		return
	}
	fmt.Printf("👑 [ADMIN] %d added by main admin\n", target)
	reply(bot, msg, fmt.Sprintf("✅ Added admin: %d", target))
	notifyAdmins(bot, fmt.Sprintf(`👥 Admin list changed

➕ Added: %d
👑 Main Admin: %d
👥 Admins: %s`, target, registry.MainAdmin(), formatAdminList(registry.Delegated())))
}

func handleRemoveAdmin(bot *tgbotapi.BotAPI, msg *tgbotapi.Message, arg string) {
	if arg == "" {
		reply(bot, msg, "Usage: /remove <user_id>")
		return
	}
	target, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		reply(bot, msg, "❌ Invalid user ID! Must be a number.")
		return
	}
	if err := registry.Remove(msg.From.ID, target); err != nil {
		reply(bot, msg, adminErrorText(err))
		fmt.Printf("⚠️ [ADMIN] remove %d by %d rejected: %v\n", target, msg.From.ID, err)
		return
	}
	fmt.Printf("🗑️ [ADMIN] %d removed by main admin\n", target)
	reply(bot, msg, fmt.Sprintf("🗑️ Removed admin: %d", target))
	notifyAdmins(bot, fmt.Sprintf(`👥 Admin list changed

➖ Removed: %d
👑 Main Admin: %d
👥 Admins: %s`, target, registry.MainAdmin(), formatAdminList(registry.Delegated())))
}

func adminErrorText(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return fmt.Sprintf(`❌ ACCESS DENIED!

Only the main admin can manage admins.
Main Admin ID: %d`, registry.MainAdmin())
	case errors.Is(err, ErrInvalidOperation):
		return "⚠️ " + strings.TrimPrefix(err.Error(), ErrInvalidOperation.Error()+": ")
	default:
		return "❌ " + err.Error()
	}
}

func sendAdminList(bot *tgbotapi.BotAPI, chatID int64) {
	sendTo(bot, chatID, fmt.Sprintf(`👑 Main Admin: %d
👥 Admins: %s`, registry.MainAdmin(), formatAdminList(registry.Delegated())))
}

func handleCancel(bot *tgbotapi.BotAPI, msg *tgbotapi.Message) {
	if pipeline.Cancel(msg.From.ID) {
		reply(bot, msg, "🛑 Cancelling your transfer...")
	} else {
		reply(bot, msg, "⚠️ You have no running transfer.")
	}
}

func sendStatus(bot *tgbotapi.BotAPI, chatID int64) {
	countersMutex.Lock()
	ok, failed := transfersOK, transfersFailed
	countersMutex.Unlock()
	sendTo(bot, chatID, fmt.Sprintf(`📊 %s

⏱ Uptime: %s (total %s)
⚙️ Active transfers: %d
✅ Completed: %d
❌ Failed: %d`, BOT_NAME, formatDuration(time.Since(startTime)),
		formatDuration(time.Duration(persistentUptime.Load())*time.Second),
		pipeline.ActiveCount(), ok, failed))
}

// ==================== TRANSFER FLOW ====================

func startTransfer(bot *tgbotapi.BotAPI, msg *tgbotapi.Message, link string) {
	userID := msg.From.ID
	if !registry.IsAuthorized(userID) {
		reply(bot, msg, fmt.Sprintf(`❌ Access denied!

You need to be an admin to use this bot.
Contact main admin: %d`, registry.MainAdmin()))
		fmt.Printf("🚫 [GUARD] non-admin %d tried to start a transfer\n", userID)
		return
	}
	if link == "" {
		reply(bot, msg, "Usage: /gofile <mega_link>")
		return
	}
	if !strings.HasPrefix(link, "https://mega.nz/") && !strings.HasPrefix(link, "https://mega.io/") {
		reply(bot, msg, `❌ Invalid Mega link!

Must start with https://mega.nz/ or https://mega.io/`)
		return
	}

	req := &TransferRequest{
		ID:        uuid.NewString(),
		Link:      link,
		UserID:    userID,
		ChatID:    msg.Chat.ID,
		CreatedAt: time.Now(),
	}
	fmt.Printf("📨 [REQUEST %s] user %d: %s\n", req.ID, userID, link)

	status, err := bot.Send(tgbotapi.NewMessage(msg.Chat.ID,
		"📥 Starting download from Mega...\n"+renderBar(0, cfg.Progress.BarWidth)))
	if err != nil {
		fmt.Printf("❌ [TG] could not send status message: %v\n", err)
		return
	}

	reporter := NewProgressReporter(cfg.Progress.BarWidth, cfg.Progress.StepPct, cfg.progressInterval(),
		func(state ProgressState, bar string) {
			header := "📥 Downloading from Mega: " + state.FileName
			if state.Stage == StageUpload {
				header = "⏫ Uploading to Gofile: " + state.FileName
			}
			editTo(bot, msg.Chat.ID, status.MessageID, header+"\n"+bar)
			broadcastWS(map[string]any{
				"event": "progress", "id": req.ID, "stage": state.Stage,
				"file": state.FileName, "pct": state.Percentage, "bar": bar,
			})
		})

	result, err := pipeline.Transfer(ctx, req, reporter)
	finished := time.Now()
	rec := TransferRecord{
		ID:         req.ID,
		UserID:     req.UserID,
		Link:       req.Link,
		StartedAt:  req.CreatedAt,
		FinishedAt: finished,
		Duration:   finished.Sub(req.CreatedAt),
	}

	switch {
	case err == nil:
		rec.Status = "success"
		rec.FileName = result.FileName
		rec.Size = result.Size
		rec.ResultURL = result.URL
		editTo(bot, msg.Chat.ID, status.MessageID, fmt.Sprintf(`✅ Upload successful!

📁 File: %s
🔗 Download: %s

⭐ Thank you for using %s Bot!`, result.FileName, result.URL, OWNER_NAME))
		notifyAdmins(bot, fmt.Sprintf("✅ Transfer done for %d: %s → %s", req.UserID, result.FileName, result.URL))
	case errors.Is(err, context.Canceled):
		rec.Status = "cancelled"
		rec.Error = "cancelled by user"
		editTo(bot, msg.Chat.ID, status.MessageID, "🛑 Transfer cancelled.")
		notifyAdmins(bot, fmt.Sprintf("🛑 Transfer cancelled by %d: %s", req.UserID, req.Link))
	default:
		rec.Status = "failed"
		rec.Error = err.Error()
		fmt.Printf("❌ [TRANSFER %s] %v\n", req.ID, err)
		editTo(bot, msg.Chat.ID, status.MessageID, transferErrorText(err))
		notifyAdmins(bot, fmt.Sprintf("❌ Transfer failed for %d: %v", req.UserID, err))
	}

	recordOutcome(rec)
	broadcastWS(map[string]any{
		"event": "done", "id": req.ID, "status": rec.Status,
		"file": rec.FileName, "url": rec.ResultURL, "error": rec.Error,
	})
}

func transferErrorText(err error) string {
	switch {
	case errors.Is(err, ErrSourceUnavailable):
		return "❌ Mega link unavailable!\n\n" + err.Error()
	case errors.Is(err, ErrSourceTooLarge):
		return "❌ File too large!\n\n" + err.Error()
	case errors.Is(err, ErrDestinationError):
		return "❌ Gofile upload failed!\n\n" + err.Error()
	case errors.Is(err, ErrTransientNetwork):
		return "❌ Network kept failing, gave up after retries.\n\n" + err.Error()
	case errors.Is(err, ErrInvalidOperation):
		return "⚠️ " + strings.TrimPrefix(err.Error(), ErrInvalidOperation.Error()+": ")
	default:
		return "❌ Error: " + err.Error()
	}
}

// recordOutcome updates the in-memory counters, mirrors them into
// redis and appends the history record.
func recordOutcome(rec TransferRecord) {
	countersMutex.Lock()
	if rec.Status == "success" {
		transfersOK++
	} else {
		transfersFailed++
	}
	countersMutex.Unlock()
	if rdb != nil {
		key := "transfers_failed"
		if rec.Status == "success" {
			key = "transfers_ok"
		}
		if err := rdb.Incr(ctx, key).Err(); err != nil {
			fmt.Printf("⚠️ [REDIS ERROR] counter: %v\n", err)
		}
	}
	saveTransferRecord(rec)
}

// ==================== HELPERS ====================

func reply(bot *tgbotapi.BotAPI, msg *tgbotapi.Message, text string) {
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ReplyToMessageID = msg.MessageID
	if _, err := bot.Send(m); err != nil {
		fmt.Printf("❌ [TG] reply failed: %v\n", err)
	}
}

func sendTo(bot *tgbotapi.BotAPI, chatID int64, text string) {
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		fmt.Printf("❌ [TG] send to %d failed: %v\n", chatID, err)
	}
}

func editTo(bot *tgbotapi.BotAPI, chatID int64, messageID int, text string) {
	if _, err := bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		fmt.Printf("⚠️ [TG] edit failed: %v\n", err)
	}
}

// notifyAdmins fans a message out to every registered admin.
func notifyAdmins(bot *tgbotapi.BotAPI, text string) {
	for _, id := range registry.List() {
		sendTo(bot, id, text)
	}
}

func formatAdminList(ids []int64) string {
	if len(ids) == 0 {
		return "None"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
