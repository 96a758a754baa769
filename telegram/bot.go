package telegram

import (
	"evlink/internal"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

const (
	statusFaulted     = "Faulted"
	statusUnavailable = "Unavailable"
)

// TgBot implements EventHandler, forwarding transaction events and faults to the configured chats
type TgBot struct {
	api     *tgbotapi.BotAPI
	logger  internal.LogHandler
	chatIds []int64
	event   chan MessageContent
}

type MessageContent struct {
	ChatID int64
	Text   string
}

func NewBot(apiKey string, chatIds []int64) (*TgBot, error) {
	tgBot := &TgBot{
		chatIds: chatIds,
		event:   make(chan MessageContent, 100),
	}
	api, err := tgbotapi.NewBotAPI(apiKey)
	if err != nil {
		return nil, err
	}
	tgBot.api = api
	return tgBot, nil
}

func (b *TgBot) SetLogger(logger internal.LogHandler) {
	b.logger = logger
}

func (b *TgBot) Start() {
	go b.eventPump()
}

// eventPump sending events to all chats
func (b *TgBot) eventPump() {
	for event := range b.event {
		for _, chatId := range b.chatIds {
			b.sendMessage(chatId, event.Text)
		}
	}
}

// sendMessage common routine to send a message via bot API
func (b *TgBot) sendMessage(id int64, text string) {
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = "MarkdownV2"
	_, err := b.api.Send(msg)
	if err != nil {
		// maybe error was while parsing, so we can send a message about this error
		msg = tgbotapi.NewMessage(id, fmt.Sprintf("Error: %v", err))
		_, err = b.api.Send(msg)
		if err != nil && b.logger != nil {
			b.logger.Error("bot: sending message", err)
		}
	}
}

// push never blocks; the event is dropped when the queue is full
func (b *TgBot) push(text string) {
	if text == "" {
		return
	}
	select {
	case b.event <- MessageContent{Text: text}:
	default:
		if b.logger != nil {
			b.logger.Warn("bot: event queue is full")
		}
	}
}

func (b *TgBot) OnStatusNotification(event *internal.EventMessage) {
	b.push(statusMessage(event))
}

func (b *TgBot) OnTransactionStart(event *internal.EventMessage) {
	b.push(transactionMessage(event, "START"))
}

func (b *TgBot) OnTransactionStop(event *internal.EventMessage) {
	b.push(transactionMessage(event, "STOP"))
}

// statusMessage reports only faults; regular transitions are covered by transaction events
func statusMessage(event *internal.EventMessage) string {
	if event.Status != statusFaulted && event.Status != statusUnavailable {
		return ""
	}
	msg := fmt.Sprintf("*%v*: Connector %v: `%v`\n", sanitize(event.ChargePointId), event.ConnectorId, event.Status)
	if event.TransactionId > 0 {
		msg += fmt.Sprintf("Transaction ID: %v\n", event.TransactionId)
	}
	if event.Info != "" {
		msg += fmt.Sprintf("%v\n", sanitize(event.Info))
	}
	return msg
}

func transactionMessage(event *internal.EventMessage, stage string) string {
	msg := fmt.Sprintf("*%v*: Connector %v: `%v`\n", sanitize(event.ChargePointId), event.ConnectorId, event.Status)
	msg += fmt.Sprintf("Transaction ID: %v %s\n", event.TransactionId, stage)
	msg += fmt.Sprintf("ID Tag: %v\n", sanitize(event.IdTag))
	if event.Info != "" {
		msg += fmt.Sprintf("Info: %v\n", sanitize(event.Info))
	}
	return msg
}

func sanitize(input string) string {
	// reserved characters of MarkdownV2
	reservedChars := "\\`*_{}[]()#+-.!|=>~"

	var sanitized strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized.WriteRune('\\')
		}
		sanitized.WriteRune(char)
	}
	return sanitized.String()
}
