package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/graphchef/internal/conversation"
	"github.com/user/graphchef/internal/gateway"
	"github.com/user/graphchef/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram chats to the gateway. Each (user, chat) pair
// maps to one thread via a stable thread key.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	gateway *gateway.Gateway
	threads types.ThreadStore
	log     types.MessageLog
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway, threads types.ThreadStore, messageLog types.MessageLog) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:     bot,
		gateway: gw,
		threads: threads,
		log:     messageLog,
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// Handle commands
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	question := &types.InboundQuestion{
		Source:    "telegram",
		ThreadKey: buildThreadKey(msg.From.ID, msg.Chat.ID),
		UserID:    strconv.FormatInt(msg.From.ID, 10),
		Text:      msg.Text,
	}

	err := a.gateway.HandleInbound(ctx, question, gateway.WithOnComplete(func(answer *conversation.Answer, err error) {
		if err != nil {
			log.Printf("run failed: %v", err)
			a.sendResponse(chatID, "Sorry, I couldn't answer that. Please try again.")
			return
		}
		a.sendResponse(chatID, answer.Response)
	}))
	if err != nil {
		log.Printf("handle inbound error: %v", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'm Graphchef. Ask me anything about your recipes, preferences, or meal plans.")

	case "status":
		key := buildThreadKey(msg.From.ID, msg.Chat.ID)
		tid, err := a.threads.ResolveOrCreate(ctx, key)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		count, err := a.log.Count(ctx, tid)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Thread: %s\nMessages: %d", tid, count))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /status")
	}
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				log.Printf("send message error: %v", err)
			}
		}
	}
}

// SendTo delivers a message to the chat encoded in a telegram thread key
// ("telegram:<user_id>:<chat_id>"). Used by scheduled task delivery.
func (a *Adapter) SendTo(key types.ThreadKey, text string) error {
	parts := strings.Split(string(key), ":")
	if len(parts) != 3 || parts[0] != "telegram" {
		return fmt.Errorf("not a telegram thread key: %s", key)
	}
	chatID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id from key %s: %w", key, err)
	}
	a.sendResponse(chatID, text)
	return nil
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildThreadKey(userID, chatID int64) types.ThreadKey {
	return types.NewThreadKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}
