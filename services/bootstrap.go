package services

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"journal-workflow-api/config"
)

// NewDispatcherFromConfig wires the notifiers enabled in cfg. A nil redis client skips
// pub/sub publishing.
func NewDispatcherFromConfig(cfg *config.Config, db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *Dispatcher {
	var notifiers []Notifier
	if cfg.Notify.InApp {
		notifiers = append(notifiers, NewInAppNotifier(db))
	}
	if rdb != nil && cfg.Notify.RedisChannel != "" {
		notifiers = append(notifiers, NewRedisNotifier(rdb, cfg.Notify.RedisChannel))
	}
	if cfg.Notify.Email && cfg.Mail.Enabled() {
		notifiers = append(notifiers, NewMailNotifier(db, config.NewMailer(cfg.Mail)))
	}

	names := make([]string, 0, len(notifiers))
	for _, n := range notifiers {
		names = append(names, n.Name())
	}
	logger.Info("event notifiers configured", zap.Strings("notifiers", names))

	return NewDispatcher(logger.Named("events"), cfg.Notify.Timeout, notifiers...)
}
