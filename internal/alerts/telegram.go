package alerts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender sends alerts to a Telegram chat via the Bot API
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender creates a new Telegram sender
func NewTelegramSender(botToken, chatID string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	return &TelegramSender{
		bot:    bot,
		chatID: chatIDInt,
	}, nil
}

// Send sends the alert as a MarkdownV2 message
func (s *TelegramSender) Send(ctx context.Context, payload *Payload) error {
	return s.sendMarkdownV2(formatTelegramAlert(payload))
}

// SendDigest sends a multi-line digest as a MarkdownV2 message
func (s *TelegramSender) SendDigest(ctx context.Context, title, body string) error {
	text := fmt.Sprintf("*%s*\n\n%s", escapeMarkdownV2(title), escapeMarkdownV2(body))
	return s.sendMarkdownV2(text)
}

func (s *TelegramSender) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = "MarkdownV2"
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatTelegramAlert(payload *Payload) string {
	var b strings.Builder

	b.WriteString("🎯 *Sharp bettor placed a bet*\n\n")
	b.WriteString(fmt.Sprintf("👤 %s \\(`%s`\\)\n",
		escapeMarkdownV2(payload.DisplayName()), escapeMarkdownV2(payload.WalletShort)))

	question := escapeMarkdownV2(truncate(payload.MarketQuestion, 120))
	if payload.MarketURL != "" {
		b.WriteString(fmt.Sprintf("📊 [%s](%s)\n", question, payload.MarketURL))
	} else {
		b.WriteString(fmt.Sprintf("📊 %s\n", question))
	}

	b.WriteString(fmt.Sprintf("💰 %s on *%s*\n",
		escapeMarkdownV2(FormatUSD(payload.PositionValue)), escapeMarkdownV2(payload.Side)))
	b.WriteString(fmt.Sprintf("📈 Lifetime P&L %s at %s ROI\n",
		escapeMarkdownV2(FormatUSD(payload.TotalPnL)),
		escapeMarkdownV2(fmt.Sprintf("%.1f%%", payload.ROI))))
	b.WriteString(fmt.Sprintf("🏷 %s\n", escapeMarkdownV2(payload.Category)))

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
