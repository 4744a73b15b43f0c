package reporter

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of *tgbotapi.BotAPI we use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramReporter posts failures (and failed-session summaries) to a chat.
type TelegramReporter struct {
	bot    sender
	chatID int64
	//crumbs caps how many trailing breadcrumbs go into a message
	crumbs int
}

func NewTelegramReporter(token string, chatID int64) (*TelegramReporter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	//turn this on in case of debug
	//bot.Debug = true

	return NewTelegramReporterWithSender(bot, chatID), nil
}

func NewTelegramReporterWithSender(bot sender, chatID int64) *TelegramReporter {
	return &TelegramReporter{bot: bot, chatID: chatID, crumbs: 10}
}

func (t *TelegramReporter) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

func (t *TelegramReporter) ReportFailure(ctx context.Context, rec FailureRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ <b>Scrape failed: %s</b>\n", html.EscapeString(rec.Site))
	fmt.Fprintf(&b, "🏷 %s / %s at <i>%s</i> (page %d)\n",
		html.EscapeString(rec.Type), html.EscapeString(rec.Classification), html.EscapeString(rec.Stage), rec.Page)
	fmt.Fprintf(&b, "💬 %s\n", html.EscapeString(truncate(rec.Message, 500)))
	fmt.Fprintf(&b, "📊 pages %d, links %d, cached %d, skipped %d\n",
		rec.Stats.PagesVisited, rec.Stats.LinksFound, rec.Stats.PagesCached, rec.Stats.LinksSkipped)

	crumbs := rec.Breadcrumbs
	if len(crumbs) > t.crumbs {
		crumbs = crumbs[len(crumbs)-t.crumbs:]
	}
	if len(crumbs) > 0 {
		b.WriteString("<pre>")
		for _, c := range crumbs {
			b.WriteString(html.EscapeString(truncate(c.String(), 200)))
			b.WriteByte('\n')
		}
		b.WriteString("</pre>")
	}

	return t.SendMessage(b.String())
}

// ReportSummary only speaks up for failed sessions; successful runs stay quiet.
func (t *TelegramReporter) ReportSummary(ctx context.Context, sum Summary) error {
	if sum.Success {
		return nil
	}
	text := fmt.Sprintf("❌ <b>%s</b> ended: %s after %d pages, %d links",
		html.EscapeString(sum.Site), html.EscapeString(sum.Classification), sum.Pages, sum.Links)
	return t.SendMessage(text)
}

// truncate cuts s to at most n bytes on a rune boundary; Telegram rejects invalid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
