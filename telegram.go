package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram rejects messages longer than this many characters.
const telegramMessageLimit = 4096

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TaskReminder is implemented by notifiers that can attach task actions
// to a reminder.
type TaskReminder interface {
	Remind(ctx context.Context, t *Task, text string) error
}

// TelegramOptions configures NewTelegramBot.
type TelegramOptions struct {
	Logger *zap.Logger

	// ChatID pins the delivery chat; 0 means learn it from the first
	// chat that writes
	ChatID int64

	// RequestTimeout bounds each Bot API call. Zero means no limit.
	RequestTimeout time.Duration
}

// TelegramBot connects the Assistant to a Telegram chat. It is also the
// Notifier the scheduler delivers through.
type TelegramBot struct {
	api       telegramAPI
	store     *Store
	assistant *Assistant
	log       *zap.Logger

	mu     sync.Mutex
	chatID int64

	// background scans
	jobs     sync.WaitGroup
	scanning atomic.Bool
}

// NewTelegramBot logs in with token.
func NewTelegramBot(token string, store *Store, a *Assistant, opts *TelegramOptions) (*TelegramBot, error) {
	if token == "" {
		return nil, &ConfigError{Field: "TELEGRAM_BOT_TOKEN", Reason: "is required"}
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, telegramClient(opts))
	if err != nil {
		return nil, &ExternalServiceError{Service: "telegram", Op: "login", Err: err}
	}
	b := newTelegramBot(api, store, a, opts)
	b.log.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return b, nil
}

// telegramClient is the HTTP client for Bot API calls. Long polling
// waits up to 60s server side, so it gets that on top of the timeout.
func telegramClient(opts *TelegramOptions) *http.Client {
	if opts == nil || opts.RequestTimeout <= 0 {
		return &http.Client{}
	}
	return &http.Client{Timeout: opts.RequestTimeout + pollTimeout*time.Second}
}

func newTelegramBot(api telegramAPI, store *Store, a *Assistant, opts *TelegramOptions) *TelegramBot {
	if opts == nil {
		opts = &TelegramOptions{}
	}
	return &TelegramBot{
		api:       api,
		store:     store,
		assistant: a,
		log:       nopIfNil(opts.Logger).Named("telegram"),
		chatID:    opts.ChatID,
	}
}

// Seconds the server holds a getUpdates call open.
const pollTimeout = 60

// Run long-polls for updates and handles them one at a time until ctx is
// cancelled. A /scan runs in the background and Run waits for it before
// returning.
func (b *TelegramBot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()
	defer b.jobs.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.handleUpdate(ctx, upd); err != nil {
				b.log.Error("handle update", zap.Int("update_id", upd.UpdateID), zap.Error(err))
			}
		}
	}
}

func (b *TelegramBot) handleUpdate(ctx context.Context, upd tgbotapi.Update) error {
	switch {
	case upd.Message != nil:
		return b.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		return b.handleCallback(ctx, upd.CallbackQuery)
	}
	return nil
}

func (b *TelegramBot) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.Chat == nil || strings.TrimSpace(m.Text) == "" {
		return nil
	}
	ok, err := b.authorize(ctx, m.Chat.ID)
	if err != nil {
		return err
	}
	if !ok {
		b.log.Warn("ignoring message from unknown chat", zap.Int64("chat_id", m.Chat.ID))
		return b.send(m.Chat.ID, "This assistant is private.", nil)
	}
	if b.assistant.Slow(m.Text) {
		return b.scan(ctx, m.Chat.ID, m.Text)
	}

	reply, err := b.assistant.Handle(ctx, m.Chat.ID, m.Text)
	if err != nil {
		_ = b.send(m.Chat.ID, "Something went wrong, please try again.", nil)
		return err
	}
	return b.send(m.Chat.ID, reply, nil)
}

// scan acknowledges a scan request at once and sends the result when the
// pipeline finishes. Only one scan runs at a time.
func (b *TelegramBot) scan(ctx context.Context, chatID int64, text string) error {
	if !b.scanning.CompareAndSwap(false, true) {
		return b.send(chatID, "A scan is already running.", nil)
	}
	if err := b.send(chatID, "Scanning for new papers, I'll report back when it's done.", nil); err != nil {
		b.scanning.Store(false)
		return err
	}
	b.jobs.Add(1)
	go func() {
		defer b.jobs.Done()
		defer b.scanning.Store(false)
		reply, err := b.assistant.Handle(ctx, chatID, text)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Error("scan", zap.Error(err))
			reply = "The scan failed, please try again later."
		}
		if err := b.send(chatID, reply, nil); err != nil {
			b.log.Error("send scan result", zap.Error(err))
		}
	}()
	return nil
}

// handleCallback runs a reminder button press as the matching command.
func (b *TelegramBot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	msg := q.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	if ok, err := b.authorize(ctx, msg.Chat.ID); err != nil || !ok {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.log.Warn("answer callback", zap.Error(err))
	}

	cmd, err := callbackCommand(q.Data)
	if err != nil {
		return err
	}
	reply, err := b.assistant.Handle(ctx, msg.Chat.ID, cmd)
	if err != nil {
		return err
	}
	return b.send(msg.Chat.ID, reply, nil)
}

// callbackCommand turns reminder button data into a chat command:
// "done:7" is /done 7, "snooze:7:60" is /snooze 7 60 min.
func callbackCommand(data string) (string, error) {
	parts := strings.Split(data, ":")
	switch {
	case len(parts) == 2 && parts[0] == "done":
		return "/done " + parts[1], nil
	case len(parts) == 3 && parts[0] == "snooze":
		return fmt.Sprintf("/snooze %s %s min", parts[1], parts[2]), nil
	}
	return "", fmt.Errorf("unknown callback data %q", data)
}

// authorize reports whether chatID may use the bot. The first chat to
// write is remembered when no chat is configured.
func (b *TelegramBot) authorize(ctx context.Context, chatID int64) (bool, error) {
	target, err := b.target(ctx)
	if err != nil {
		return false, err
	}
	if target != 0 {
		return target == chatID, nil
	}
	if err := b.store.SetState(ctx, StateChatID, strconv.FormatInt(chatID, 10)); err != nil {
		return false, err
	}
	b.mu.Lock()
	b.chatID = chatID
	b.mu.Unlock()
	b.log.Info("learned chat id", zap.Int64("chat_id", chatID))
	return true, nil
}

// target returns the delivery chat, or 0 when none is known yet.
func (b *TelegramBot) target(ctx context.Context) (int64, error) {
	b.mu.Lock()
	id := b.chatID
	b.mu.Unlock()
	if id != 0 {
		return id, nil
	}
	v, err := b.store.State(ctx, StateChatID)
	if err != nil {
		return 0, err
	}
	id, _ = ChatID(v)
	if id != 0 {
		b.mu.Lock()
		b.chatID = id
		b.mu.Unlock()
	}
	return id, nil
}

var errNoChat = errors.New("no chat to deliver to; send the bot a message first")

// Notify implements Notifier.
func (b *TelegramBot) Notify(ctx context.Context, text string) error {
	id, err := b.target(ctx)
	if err != nil {
		return err
	}
	if id == 0 {
		return errNoChat
	}
	return b.send(id, text, nil)
}

// Remind implements TaskReminder with done and snooze buttons.
func (b *TelegramBot) Remind(ctx context.Context, t *Task, text string) error {
	id, err := b.target(ctx)
	if err != nil {
		return err
	}
	if id == 0 {
		return errNoChat
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Done", fmt.Sprintf("done:%d", t.ID)),
		tgbotapi.NewInlineKeyboardButtonData("Snooze 1h", fmt.Sprintf("snooze:%d:60", t.ID)),
	))
	return b.send(id, text, &keyboard)
}

// send delivers text in as many messages as needed. The keyboard goes on
// the last part.
func (b *TelegramBot) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	parts := splitMessage(text, telegramMessageLimit)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		if keyboard != nil && i == len(parts)-1 {
			msg.ReplyMarkup = *keyboard
		}
		if _, err := b.api.Send(msg); err != nil {
			return &ExternalServiceError{Service: "telegram", Op: "send", Err: err}
		}
	}
	return nil
}

// splitMessage cuts text into parts of at most limit runes, preferring
// line boundaries.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen > 0 && curLen+1+n > limit {
			flush()
		}
		for n > limit {
			flush()
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		if curLen > 0 {
			cur.WriteByte('\n')
			curLen++
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return parts
}
