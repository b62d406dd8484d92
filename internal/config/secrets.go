package config

import "slices"

// RedactedConfig returns a copy of cfg with credentials replaced by "***".
// Use it whenever the active configuration is logged or printed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Alpaca.KeyID)
	redact(&out.Alpaca.SecretKey)
	redact(&out.Redis.Password)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Slices are cloned so the redacted copy shares no backing arrays with
	// the original.
	out.Stream.Trades = slices.Clone(cfg.Stream.Trades)
	out.Stream.Quotes = slices.Clone(cfg.Stream.Quotes)
	out.Stream.Bars = slices.Clone(cfg.Stream.Bars)
	out.Stream.UpdatedBars = slices.Clone(cfg.Stream.UpdatedBars)
	out.Stream.DailyBars = slices.Clone(cfg.Stream.DailyBars)
	out.Stream.OrderBooks = slices.Clone(cfg.Stream.OrderBooks)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
