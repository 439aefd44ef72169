// Package dashboard keeps the live per-principal views: the trade ledger, its summary, the exchange
// account mirror and transient notifications.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"crypto-trading-dashboard/internal/docstore"
	"crypto-trading-dashboard/internal/identity"
	"crypto-trading-dashboard/internal/ledger"
	"crypto-trading-dashboard/internal/models"

	"go.uber.org/zap"
)

var (
	ErrSessionClosed  = errors.New("dashboard session closed")
	ErrNotConfirmed   = errors.New("deletion was not confirmed")
	ErrMissingAPIKeys = errors.New("both API key and secret key are required")

	// ErrTradeNotFound and ErrProfileNotFound wrap docstore.ErrNotFound with the missing record.
	ErrTradeNotFound   = errors.New("trade not found")
	ErrProfileNotFound = errors.New("profile not found")
)

const (
	commandBuffer   = 16
	defaultToastTTL = 3 * time.Second
)

type feedKind int

const (
	tradesFeed feedKind = iota
	exchangeFeed
)

func (k feedKind) String() string {
	if k == tradesFeed {
		return models.CollectionTrades
	}
	return models.CollectionExchangeAccounts
}

// feed is one live subscription. A feed holds at most one subscription at a time.
type feed struct {
	kind  feedKind
	query docstore.Query
	sub   *docstore.Subscription
}

func (f *feed) c() <-chan docstore.Snapshot {
	if f.sub == nil {
		return nil
	}
	return f.sub.C()
}

func (f *feed) release() {
	if f.sub != nil {
		f.sub.Cancel()
		f.sub = nil
	}
}

// Session is the dashboard of one principal. A single goroutine owns all view state:
// snapshots, commands and toast expiry are serialised through it, so no locks guard the state.
type Session struct {
	principal identity.Principal
	store     docstore.Store
	logger    *zap.Logger
	toastTTL  time.Duration

	ctx       context.Context
	stop      context.CancelFunc
	cmds      chan func()
	done      chan struct{}
	closeOnce sync.Once
	current   atomic.Pointer[View]

	// owned by the loop
	trades      feed
	exchange    feed
	records     []models.TradeRecord
	tradesErr   error
	account     *models.ExchangeAccount
	toasts      []Toast
	nextToast   uint64
	version     uint64
	watchers    map[uint64]chan View
	nextWatcher uint64
}

// NewSession starts the dashboard of principal and subscribes both feeds.
func NewSession(principal identity.Principal, store docstore.Store, toastTTL time.Duration, logger *zap.Logger) *Session {
	if toastTTL <= 0 {
		toastTTL = defaultToastTTL
	}
	ctx, stop := context.WithCancel(context.Background())
	s := &Session{
		principal: principal,
		store:     store,
		logger:    logger.Named("session").With(zap.String("uid", principal.UID)),
		toastTTL:  toastTTL,
		ctx:       ctx,
		stop:      stop,
		cmds:      make(chan func(), commandBuffer),
		done:      make(chan struct{}),
		trades: feed{
			kind:  tradesFeed,
			query: docstore.Query{Collection: models.CollectionTrades, OwnerID: principal.UID},
		},
		exchange: feed{
			kind:  exchangeFeed,
			query: docstore.Query{Collection: models.CollectionExchangeAccounts, DocID: principal.UID},
		},
		watchers: make(map[uint64]chan View),
	}
	s.render()
	go s.run()
	return s
}

// Principal returns the owner of the session.
func (s *Session) Principal() identity.Principal {
	return s.principal
}

func (s *Session) run() {
	defer close(s.done)
	s.startFeed(&s.trades)
	s.startFeed(&s.exchange)
	s.render()

	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return
		case cmd := <-s.cmds:
			cmd()
		case snap, ok := <-s.trades.c():
			if !ok {
				s.feedEnded(&s.trades)
				continue
			}
			s.applyTrades(snap)
		case snap, ok := <-s.exchange.c():
			if !ok {
				s.feedEnded(&s.exchange)
				continue
			}
			s.applyExchange(snap)
		}
	}
}

// startFeed releases the feed's subscription, then subscribes again.
func (s *Session) startFeed(f *feed) {
	f.release()
	sub, err := s.store.Subscribe(s.ctx, f.query)
	if err != nil {
		s.logger.Error("Failed to subscribe", zap.Stringer("feed", f.kind), zap.Error(err))
		s.failFeed(f.kind, err)
		return
	}
	f.sub = sub
}

func (s *Session) feedEnded(f *feed) {
	f.sub = nil
	if s.ctx.Err() != nil {
		return
	}
	s.logger.Warn("Subscription ended", zap.Stringer("feed", f.kind))
	s.failFeed(f.kind, errors.New("subscription ended"))
	s.render()
}

func (s *Session) failFeed(kind feedKind, err error) {
	switch kind {
	case tradesFeed:
		s.tradesErr = err
		s.records = nil
		s.addToast(ToastError, MsgTradesLoadFailed)
	case exchangeFeed:
		s.account = nil
		s.addToast(ToastError, MsgExchangeFailed)
	}
}

func (s *Session) applyTrades(snap docstore.Snapshot) {
	if snap.Err != nil {
		s.logger.Error("Trade feed failed", zap.Error(snap.Err))
		s.failFeed(tradesFeed, snap.Err)
	} else {
		s.tradesErr = nil
		s.records = models.TradesFromDocuments(snap.Documents)
	}
	s.render()
}

func (s *Session) applyExchange(snap docstore.Snapshot) {
	switch {
	case snap.Err != nil:
		s.logger.Error("Exchange feed failed", zap.Error(snap.Err))
		s.failFeed(exchangeFeed, snap.Err)
	case !snap.Exists || len(snap.Documents) == 0:
		s.account = nil
	default:
		account := models.ExchangeAccountFromDocument(snap.Documents[0])
		s.account = &account
	}
	s.render()
}

func (s *Session) teardown() {
	s.trades.release()
	s.exchange.release()
	s.records = nil
	s.account = nil
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.logger.Debug("Session closed")
}

// render rebuilds the view from the mirror and pushes it to every watcher.
func (s *Session) render() {
	s.version++
	view := View{
		Version:   s.version,
		Principal: s.principal,
		Exchange:  RenderExchange(s.account),
		Toasts:    append([]Toast{}, s.toasts...),
	}
	if s.tradesErr != nil {
		view.Ledger = ledger.RenderUnavailable()
		view.Summary = ledger.RenderSummary(ledger.Aggregate(nil))
	} else {
		view.Ledger = ledger.RenderLedger(s.records)
		view.Summary = ledger.RenderSummary(ledger.Aggregate(s.records))
	}

	s.current.Store(&view)
	for _, ch := range s.watchers {
		offer(ch, view)
	}
}

// offer replaces any undelivered view in ch with v. The loop is the only sender.
func offer(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}

func (s *Session) addToast(kind ToastKind, message string) {
	s.nextToast++
	id := s.nextToast
	s.toasts = append(s.toasts, Toast{ID: id, Kind: kind, Message: message})
	time.AfterFunc(s.toastTTL, func() {
		s.post(func() { s.dismissToast(id) })
	})
}

func (s *Session) dismissToast(id uint64) {
	for i, t := range s.toasts {
		if t.ID == id {
			s.toasts = append(s.toasts[:i:i], s.toasts[i+1:]...)
			s.render()
			return
		}
	}
}

// post queues cmd on the loop. It reports false once the session is closed.
func (s *Session) post(cmd func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.cmds <- cmd:
		return true
	case <-s.done:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (s *Session) call(fn func()) error {
	finished := make(chan struct{})
	if !s.post(func() {
		fn()
		close(finished)
	}) {
		return ErrSessionClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) notify(kind ToastKind, message string) {
	_ = s.call(func() {
		s.addToast(kind, message)
		s.render()
	})
}

// View returns the latest rendered view.
func (s *Session) View() View {
	return *s.current.Load()
}

// Watch streams views, starting with the current one. A slow reader only ever sees the
// latest view. The channel is closed by cancel or when the session ends.
func (s *Session) Watch() (<-chan View, func(), error) {
	ch := make(chan View, 1)
	var id uint64
	err := s.call(func() {
		id = s.nextWatcher
		s.nextWatcher++
		s.watchers[id] = ch
		offer(ch, *s.current.Load())
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.post(func() {
				if c, ok := s.watchers[id]; ok {
					delete(s.watchers, id)
					close(c)
				}
			})
		})
	}
	return ch, cancel, nil
}

// SubmitTrade validates form and stores it as a new trade. Validation failures never reach the store.
// The new trade shows up through the trades feed, not through this call.
func (s *Session) SubmitTrade(ctx context.Context, form ledger.TradeForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, models.CollectionTrades, s.principal.UID, form.Fields(s.principal.UID))
	if err != nil {
		s.logger.Error("Failed to add trade", zap.Error(err))
		s.notify(ToastError, MsgTradeAddFailed)
		return "", fmt.Errorf("failed to add trade: %w", err)
	}

	s.notify(ToastSuccess, MsgTradeAdded)
	return id, nil
}

// RequestDelete removes one of the principal's trades once confirmed. The ledger is never edited
// locally: on success the trades feed delivers the removal, on failure nothing changes.
func (s *Session) RequestDelete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}

	if err := s.store.Delete(ctx, models.CollectionTrades, id, s.principal.UID); err != nil {
		s.logger.Error("Failed to delete trade", zap.String("trade_id", id), zap.Error(err))
		s.notify(ToastError, MsgTradeDeleteFailed)
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("failed to delete trade %s: %w: %w", id, ErrTradeNotFound, err)
		}
		return fmt.Errorf("failed to delete trade %s: %w", id, err)
	}

	s.notify(ToastSuccess, MsgTradeDeleted)
	return nil
}

// Settings loads the profile page.
func (s *Session) Settings(ctx context.Context) (SettingsView, error) {
	doc, err := s.store.Get(ctx, models.CollectionUsers, s.principal.UID)
	if errors.Is(err, docstore.ErrNotFound) {
		return RenderSettings(nil, s.principal), nil
	}
	if err != nil {
		s.logger.Error("Failed to load settings", zap.Error(err))
		return SettingsView{}, fmt.Errorf("failed to load settings: %w", err)
	}
	profile := models.UserProfileFromDocument(doc)
	return RenderSettings(&profile, s.principal), nil
}

// SaveAPIConfig stores the exchange API keys on the principal's profile. Both are required.
func (s *Session) SaveAPIConfig(ctx context.Context, apiKey, secretKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	secretKey = strings.TrimSpace(secretKey)
	if apiKey == "" || secretKey == "" {
		s.notify(ToastError, MsgAPIKeysRequired)
		return ErrMissingAPIKeys
	}

	err := s.store.Update(ctx, models.CollectionUsers, s.principal.UID, map[string]interface{}{
		models.FieldWeexAPIKey:    apiKey,
		models.FieldWeexSecretKey: secretKey,
		models.FieldUpdatedAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error("Failed to save API configuration", zap.Error(err))
		s.notify(ToastError, MsgAPIConfigFailed)
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("failed to save API configuration: %w: %w", ErrProfileNotFound, err)
		}
		return fmt.Errorf("failed to save API configuration: %w", err)
	}

	s.logger.Info("API configuration saved")
	s.notify(ToastSuccess, MsgAPIConfigSaved)
	return nil
}

// Reload releases both subscriptions and subscribes again.
func (s *Session) Reload() error {
	return s.call(func() {
		s.startFeed(&s.trades)
		s.startFeed(&s.exchange)
		s.render()
	})
}

// Close releases every subscription and ends the session. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(s.stop)
	<-s.done
}

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
