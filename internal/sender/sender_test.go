package sender

var (
	_ Sender = (*WebhookSender)(nil)
	_ Mirror = (*TelegramMirror)(nil)
)
