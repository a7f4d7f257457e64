package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/statuscast/pkg/channels/email"
	"github.com/dmitrymomot/statuscast/pkg/channels/push"
	"github.com/dmitrymomot/statuscast/pkg/channels/sms"
	"github.com/dmitrymomot/statuscast/pkg/channels/whatsapp"
	"github.com/dmitrymomot/statuscast/pkg/config"
	mailer "github.com/dmitrymomot/statuscast/pkg/email"
	"github.com/dmitrymomot/statuscast/pkg/logger"
	"github.com/dmitrymomot/statuscast/pkg/notifications"
)

// channelConfig gathers the per-channel provider settings.
type channelConfig struct {
	Email    mailer.Config
	WhatsApp whatsapp.Config
	SMS      sms.Config
	Push     push.Config
}

func loadChannelConfig() (channelConfig, error) {
	var cfg channelConfig
	if err := config.Load(&cfg.Email); err != nil {
		return cfg, err
	}
	if err := config.Load(&cfg.WhatsApp); err != nil {
		return cfg, err
	}
	if err := config.Load(&cfg.SMS); err != nil {
		return cfg, err
	}
	if err := config.Load(&cfg.Push); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newRegistry registers the four delivery channels. Each one is built on
// first use, so a misconfigured provider only fails the deliveries that
// need it.
func newRegistry(ctx context.Context, cfg channelConfig, notifier push.Notifier, log *slog.Logger) *notifications.Registry {
	return notifications.NewRegistry(
		notifications.WithRegistryLogger(log),
		notifications.WithChannel("email", func() (notifications.Channel, error) {
			ch, err := email.New(nil, cfg.Email,
				email.WithLogger(log.With(logger.Channel("email"))),
			)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}),
		notifications.WithChannel("whatsapp", func() (notifications.Channel, error) {
			return whatsapp.New(cfg.WhatsApp,
				whatsapp.WithLogger(log.With(logger.Channel("whatsapp"))),
			), nil
		}),
		notifications.WithChannel("sms", func() (notifications.Channel, error) {
			opts := []sms.Option{sms.WithLogger(log.With(logger.Channel("sms")))}
			if strings.EqualFold(cfg.SMS.Provider, sms.ProviderSNS) {
				client, err := sms.NewSNSClient(ctx, cfg.SMS)
				if err != nil {
					return nil, err
				}
				opts = append(opts, sms.WithPublisher(client))
			}
			return sms.New(cfg.SMS, opts...), nil
		}),
		notifications.WithChannel("push", func() (notifications.Channel, error) {
			return push.New(cfg.Push, notifier,
				push.WithLogger(log.With(logger.Channel("push"))),
			), nil
		}),
	)
}

// logChannelValidation reports which channels are usable at startup.
func logChannelValidation(ctx context.Context, registry *notifications.Registry, log *slog.Logger) {
	for name, res := range registry.ValidateConfigurations() {
		if res.Valid {
			log.DebugContext(ctx, "notification channel ready", logger.Channel(name))
			continue
		}
		log.WarnContext(ctx, "notification channel misconfigured",
			logger.Channel(name),
			slog.String("reason", res.Error),
		)
	}
}
