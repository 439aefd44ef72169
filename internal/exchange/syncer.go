package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crypto-trading-dashboard/internal/config"
	"crypto-trading-dashboard/internal/docstore"
	"crypto-trading-dashboard/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const syncTimeout = 50 * time.Second

// Syncer copies every connected principal's exchange state into weexData/{uid}.
// Live dashboards pick the write up through their store subscriptions.
type Syncer struct {
	store    docstore.Store
	client   Client
	logger   *zap.Logger
	enabled  bool
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	running sync.Mutex
}

// NewSyncer creates a syncer from the exchange configuration.
func NewSyncer(cfg *config.Config, store docstore.Store, client Client, logger *zap.Logger) *Syncer {
	return &Syncer{
		store:    store,
		client:   client,
		logger:   logger.Named("syncer"),
		enabled:  cfg.Exchange.SyncEnabled,
		schedule: cfg.Exchange.SyncSchedule,
	}
}

// Start schedules SyncOnce. It does nothing when syncing is disabled.
func (s *Syncer) Start() error {
	if !s.enabled {
		s.logger.Info("Exchange sync disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("syncer is already running")
	}

	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if _, err := s.SyncOnce(ctx); err != nil {
			s.logger.Error("Exchange sync failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("Exchange sync started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the schedule and waits for a running sync to finish.
func (s *Syncer) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	ctx := c.Stop()
	<-ctx.Done()
	s.logger.Info("Exchange sync stopped")
}

// SyncOnce mirrors every profile with configured keys and returns how many were written.
// A failure for one principal does not stop the others; all failures are returned joined.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	// overlapping cron ticks skip rather than queue
	if !s.running.TryLock() {
		s.logger.Debug("Exchange sync already in progress, skipping")
		return 0, nil
	}
	defer s.running.Unlock()

	docs, err := s.store.Find(ctx, docstore.Query{Collection: models.CollectionUsers})
	if err != nil {
		return 0, fmt.Errorf("failed to list profiles: %w", err)
	}

	var errs []error
	synced := 0
	for _, doc := range docs {
		profile := models.UserProfileFromDocument(doc)
		if !profile.HasAPICredentials() {
			continue
		}
		if err := s.syncProfile(ctx, profile); err != nil {
			s.logger.Warn("Failed to sync exchange account", zap.String("uid", profile.UID), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", profile.UID, err))
			continue
		}
		synced++
	}

	s.logger.Debug("Exchange sync finished", zap.Int("synced", synced), zap.Int("failed", len(errs)))
	return synced, errors.Join(errs...)
}

func (s *Syncer) syncProfile(ctx context.Context, profile models.UserProfile) error {
	creds := Credentials{APIKey: profile.WeexAPIKey, SecretKey: profile.WeexSecretKey}

	balance, err := s.client.GetAccount(ctx, creds)
	if err != nil {
		return err
	}
	orders, err := s.client.GetOpenOrders(ctx, creds)
	if err != nil {
		return err
	}
	positions, err := s.client.GetPositions(ctx, creds)
	if err != nil {
		return err
	}

	account := models.ExchangeAccount{
		BalanceUSDT: balance,
		OpenOrders:  orders,
		Positions:   positions,
	}
	return s.store.Set(ctx, models.CollectionExchangeAccounts, profile.UID, profile.UID, account.Fields())
}
