//go:build wireinject
// +build wireinject

package app

import (
	"crypto-trading-dashboard/internal/config"
	"crypto-trading-dashboard/internal/dashboard"
	"crypto-trading-dashboard/internal/database"
	"crypto-trading-dashboard/internal/docstore"
	"crypto-trading-dashboard/internal/exchange"
	"crypto-trading-dashboard/internal/handler"
	"crypto-trading-dashboard/internal/identity"

	"github.com/google/wire"
	"go.uber.org/zap"
)

var (
	storeSet = wire.NewSet(
		database.NewDatabase,
		docstore.NewGormStore,
		wire.Bind(new(docstore.Store), new(*docstore.GormStore)),
	)

	identitySet = wire.NewSet(
		identity.NewSiteVerifier,
		identity.NewTokenInfoVerifier,
		identity.NewLogSender,
		identity.NewService,
		wire.Bind(new(identity.RecaptchaVerifier), new(*identity.SiteVerifier)),
		wire.Bind(new(identity.GoogleVerifier), new(*identity.TokenInfoVerifier)),
		wire.Bind(new(identity.SMSSender), new(*identity.LogSender)),
	)

	exchangeSet = wire.NewSet(
		exchange.NewRestClient,
		exchange.NewSyncer,
		wire.Bind(new(exchange.Client), new(*exchange.RestClient)),
	)

	dashboardSet = wire.NewSet(
		dashboard.NewManager,
		wire.Bind(new(dashboard.EventSource), new(*identity.Service)),
	)

	handlerSet = wire.NewSet(
		handler.NewAuthHandler,
		handler.NewDashboardHandler,
		handler.NewServer,
		wire.Bind(new(handler.Authenticator), new(*identity.Service)),
		wire.Bind(new(handler.SessionOpener), new(*dashboard.Manager)),
	)
)

// InitializeApp wires the application from its configuration.
func InitializeApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	wire.Build(
		storeSet,
		identitySet,
		exchangeSet,
		dashboardSet,
		handlerSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil
}
