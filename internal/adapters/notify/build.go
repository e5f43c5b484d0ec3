package notify

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/kafka"
	"staybook/internal/adapters/telegram"
	"staybook/internal/shared"
)

// FromConfig always logs; Telegram and Kafka join when configured.
// The returned close func flushes the sinks that hold connections.
func FromConfig(cfg shared.Config) (Fanout, func(), error) {
	sinks := Fanout{LogSink{}}
	var closers []func() error

	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		tg, err := telegram.New(cfg.TelegramBase, cfg.TelegramToken, cfg.TelegramChatID, cfg.TelegramRPS)
		if err != nil {
			return nil, nil, fmt.Errorf("telegram: %w", err)
		}
		sinks = append(sinks, tg)
	}
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := kafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka: %w", err)
		}
		sinks = append(sinks, pub)
		closers = append(closers, pub.Close)
	}
	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn().Err(err).Msg("notifier close failed")
			}
		}
	}, nil
}
