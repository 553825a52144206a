package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/account"
	"github.com/oggyb/devmatch/internal/activity"
	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/chat"
	"github.com/oggyb/devmatch/internal/config"
	"github.com/oggyb/devmatch/internal/events"
	"github.com/oggyb/devmatch/internal/latency"
	"github.com/oggyb/devmatch/internal/ledger"
	"github.com/oggyb/devmatch/internal/notify"
	"github.com/oggyb/devmatch/internal/privacy"
	"github.com/oggyb/devmatch/internal/profile"
	"github.com/oggyb/devmatch/internal/registry"
	"github.com/oggyb/devmatch/internal/report"
	"github.com/oggyb/devmatch/internal/repository"
	"github.com/oggyb/devmatch/internal/session"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.) and the
// services built on top of them.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Publisher  events.Publisher
	Logger     *slog.Logger

	Ledger        *ledger.Ledger
	Registry      *registry.Registry
	Profiles      *repository.ProfileRepository
	Profile       *profile.Service
	Notifications *notify.Center
	Chat          *chat.Service
	Activity      *activity.Service
	Privacy       *privacy.Service
	Reports       *report.Service
	Accounts      *account.Service
	Sessions      *session.Manager
}

// New wires every service. Close releases the notification sequencers and
// the publisher.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, pub events.Publisher, logger *slog.Logger) *AppContext {
	if pub == nil {
		pub = events.Noop{}
	}
	a := &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Publisher:  pub,
		Logger:     logger,
	}

	a.Ledger = ledger.New(repository.NewSwipeRepository(db), logger)
	a.Registry = registry.New(repository.NewMatchRepository(db), logger)
	a.Profiles = repository.NewProfileRepository(db)
	a.Activity = activity.NewService(rdb, logger)
	a.Profile = profile.NewService(a.Profiles, a.Activity, logger)
	a.Chat = chat.NewService(repository.NewChatRepository(db), rdb, logger)
	a.Notifications = notify.NewCenter(repository.NewNotificationRepository(db), rdb, notify.Options{
		Durations: notify.Durations{
			Info:    cfg.Notify.InfoDuration,
			Success: cfg.Notify.SuccessDuration,
			Warning: cfg.Notify.WarningDuration,
			Error:   cfg.Notify.ErrorDuration,
		},
		Gap: cfg.Notify.Gap,
	}, logger)
	a.Privacy = privacy.NewService(rdb, a.Notifications, a.Activity, latency.New(cfg.Latency.Privacy), logger)
	a.Reports = report.NewService(repository.NewReportRepository(db), a.Activity, pub, latency.New(cfg.Latency.Report), logger)
	a.Accounts = account.NewService(repository.NewUserRepository(db), rdb, a.Activity, latency.New(cfg.Latency.Login), logger)
	a.Sessions = session.NewManager(session.Deps{
		Ledger:             a.Ledger,
		Registry:           a.Registry,
		Candidates:         a.Profiles,
		Chat:               a.Chat,
		Activity:           a.Activity,
		Notifier:           a.Notifications,
		Store:              rdb,
		Events:             pub,
		Log:                logger,
		LowWaterMark:       cfg.Deck.LowWaterMark,
		MatchToastDuration: cfg.Notify.MatchDuration,
	})
	return a
}

func (a *AppContext) Close() {
	a.Notifications.Close()
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Warn("publisher close failed", "err", err)
	}
}
