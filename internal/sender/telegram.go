package sender

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"alert-relay/internal/payload"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// Telegram message hard limit is 4096 chars; keep some safety margin.
	telegramMsgLimit = 4000
)

// TelegramMirror copies delivered documents to a single Telegram chat.
type TelegramMirror struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramMirror connects to the Bot API. Every request, including the
// initial getMe, is bounded by timeout.
func NewTelegramMirror(token string, chatID int64, timeout time.Duration) (*TelegramMirror, error) {
	return newTelegramMirror(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout}, chatID)
}

func newTelegramMirror(token, apiEndpoint string, client *http.Client, chatID int64) (*TelegramMirror, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &TelegramMirror{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// Mirror renders doc as HTML and sends it to the chat.
func (t *TelegramMirror) Mirror(ctx context.Context, doc payload.Document) error {
	return t.Send(ctx, renderDocument(doc))
}

// Send joins messages and sends them to Telegram.
// It escapes HTML and splits the payload into multiple messages if needed.
func (t *TelegramMirror) Send(ctx context.Context, messages []string) error {
	if len(messages) == 0 {
		return nil
	}

	escaped := make([]string, 0, len(messages))
	for _, m := range messages {
		escaped = append(escaped, escapeTelegramHTML(m))
	}

	text := strings.Join(escaped, "\n\n")

	for _, part := range splitByLimit(text, telegramMsgLimit) {
		if err := t.sendOne(ctx, part); err != nil {
			return err
		}
	}

	return nil
}

func (t *TelegramMirror) sendOne(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "HTML"

	// tgbotapi doesn't accept ctx directly.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := t.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// renderDocument produces one header line followed by one line per
// notification.
func renderDocument(doc payload.Document) []string {
	header := fmt.Sprintf("[%s] %s", doc.Platform, doc.Key)
	if doc.StrategyName != "" {
		header += " (" + doc.StrategyName + ")"
	}

	var body strings.Builder
	for i, n := range doc.Notifications {
		if i > 0 {
			body.WriteString("\n")
		}
		fmt.Fprintf(&body, "%s %s: %s", n.Instrument, n.TimeFrame, n.Text)
	}

	return []string{header, body.String()}
}

// escapeTelegramHTML escapes minimal set of chars used by Telegram HTML parse mode.
func escapeTelegramHTML(s string) string {
	// Order matters: escape '&' first.
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// splitByLimit splits text into chunks not exceeding limit.
// It tries to split by paragraphs, then by lines, then falls back to hard split.
func splitByLimit(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	paras := strings.Split(text, "\n\n")
	var out []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for _, p := range paras {
		// +2 for the paragraph separator we add back
		addLen := len(p)
		if cur.Len() > 0 {
			addLen += 2
		}

		if cur.Len()+addLen <= limit {
			if cur.Len() > 0 {
				cur.WriteString("\n\n")
			}
			cur.WriteString(p)
			continue
		}

		flush()
		if len(p) <= limit {
			cur.WriteString(p)
			continue
		}

		for _, ln := range strings.Split(p, "\n") {
			add := len(ln)
			if cur.Len() > 0 {
				add++
			}

			if cur.Len()+add <= limit {
				if cur.Len() > 0 {
					cur.WriteString("\n")
				}
				cur.WriteString(ln)
				continue
			}

			flush()

			// Hard split a very long single line.
			for len(ln) > limit {
				i := cutPoint(ln, limit)
				out = append(out, ln[:i])
				ln = ln[i:]
			}
			cur.WriteString(ln)
		}
	}

	flush()
	return out
}

// cutPoint returns where to hard split s (len(s) > limit) so that neither a
// UTF-8 sequence nor an escaped entity is torn in half.
func cutPoint(s string, limit int) int {
	i := limit
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	if j := strings.LastIndexByte(s[:i], '&'); j > 0 && i-j < len("&amp;") && !strings.Contains(s[j:i], ";") {
		i = j
	}
	if i == 0 {
		return limit
	}
	return i
}
