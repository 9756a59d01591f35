package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-classifieds-bot/internal/config"
	"telegram-classifieds-bot/internal/domain/model"
	"telegram-classifieds-bot/internal/domain/ports/adapter"
)

// Compile-time checks
var (
	_ adapter.ChannelPublisher = (*ChannelBot)(nil)
	_ adapter.TelegramNotifier = (*ChannelBot)(nil)
)

// ChannelBot publishes ads into the region channels and sends direct
// messages to users, over one shared bot token.
type ChannelBot struct {
	bot      *tgbotapi.BotAPI
	byRegion map[string][]string
	log      *zerolog.Logger
}

func NewChannelBot(cfg *config.BotConfig, channels config.ChannelsConfig, logger *zerolog.Logger) (*ChannelBot, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("bot token is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "ChannelBot").Logger()
	return &ChannelBot{bot: bot, byRegion: channels.ByRegion, log: &l}, nil
}

func (b *ChannelBot) HasChannels(region string) bool {
	return len(b.byRegion[region]) > 0
}

// Publish posts the rendered ad to every channel of its region and returns
// channel -> posted message ids.
func (b *ChannelBot) Publish(ctx context.Context, ad *model.Ad) (map[string][]int, error) {
	channels := b.byRegion[ad.Region]
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels configured for region %q", ad.Region)
	}

	text := renderAd(ad)
	out := make(map[string][]int, len(channels))
	for _, channel := range channels {
		msg := tgbotapi.NewMessageToChannel(channel, text)
		msg.ParseMode = tgbotapi.ModeHTML
		sent, err := b.bot.Send(msg)
		if err != nil {
			// Partial publication is an error: the caller keeps its prior state.
			return nil, fmt.Errorf("publish to %s: %w", channel, err)
		}
		out[channel] = []int{sent.MessageID}
	}
	return out, nil
}

// DeleteMessage removes one posted copy. An already-deleted message reports
// success so sweeps stay idempotent.
func (b *ChannelBot) DeleteMessage(ctx context.Context, channelID string, messageID int) bool {
	chatID, err := resolveChatID(b.bot, channelID)
	if err != nil {
		b.log.Debug().Err(err).Str("channel", channelID).Msg("channel resolve failed")
		return false
	}
	_, err = b.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	if err != nil {
		if strings.Contains(err.Error(), "message to delete not found") {
			return true
		}
		b.log.Debug().Err(err).Str("channel", channelID).Int("message_id", messageID).Msg("delete failed")
		return false
	}
	return true
}

func (b *ChannelBot) SendMessage(ctx context.Context, telegramID int64, text string) error {
	msg := tgbotapi.NewMessage(telegramID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.bot.Send(msg)
	return err
}

func (b *ChannelBot) SendButtons(ctx context.Context, telegramID int64, text string, rows [][]adapter.InlineButton) error {
	msg := tgbotapi.NewMessage(telegramID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
			}
		}
		keyboard = append(keyboard, btns)
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	_, err := b.bot.Send(msg)
	return err
}

func resolveChatID(bot *tgbotapi.BotAPI, channel string) (int64, error) {
	chat, err := bot.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: channel},
	})
	if err != nil {
		return 0, err
	}
	return chat.ID, nil
}

func renderAd(ad *model.Ad) string {
	var sb strings.Builder
	if ad.UrgentUntil != nil {
		sb.WriteString("🔥 <b>Срочно</b>\n")
	}
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n\n", escapeHTML(ad.Title)))
	if ad.Description != "" {
		sb.WriteString(escapeHTML(ad.Description))
		sb.WriteString("\n\n")
	}
	if ad.Price != nil {
		sb.WriteString(fmt.Sprintf("💰 %s ₽\n", ad.Price.StringFixed(0)))
	}
	if ad.City != "" {
		sb.WriteString(fmt.Sprintf("📍 %s\n", escapeHTML(ad.City)))
	}
	sb.WriteString(fmt.Sprintf("#%s", strings.ReplaceAll(ad.Category, " ", "_")))
	return sb.String()
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
