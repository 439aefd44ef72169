package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"crypto-trading-dashboard/internal/config"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	tokenIssuer          = "crypto-trading-dashboard"
	maxCodeAttempts      = 5
	verificationCodeSize = 6
)

// Claims is the payload of a session token. The subject is the principal's uid.
type Claims struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Provider    string `json:"provider"`
	jwt.RegisteredClaims
}

type phoneVerification struct {
	phoneNumber string
	code        string
	expiresAt   time.Time
	attempts    int
}

// Service implements sign-up, the three sign-in methods, sessions and the principal event stream.
type Service struct {
	db        *gorm.DB
	logger    *zap.Logger
	cfg       config.Auth
	secret    []byte
	recaptcha RecaptchaVerifier
	google    GoogleVerifier
	sms       SMSSender
	validate  *validator.Validate
	now       func() time.Time

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	revoked     map[string]time.Time
	pending     map[string]*phoneVerification
	watchers    map[uint64]*watcher
	nextWatcher uint64
}

// NewService creates the identity provider. Without a configured secret a random one is used,
// which invalidates every token on restart.
func NewService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, recaptcha RecaptchaVerifier, google GoogleVerifier, sms SMSSender) *Service {
	logger = logger.Named("identity")
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		logger.Warn("auth.jwt_secret not set, using a random secret")
		secret = uuid.NewString()
	}
	return &Service{
		db:        db,
		logger:    logger,
		cfg:       cfg.Auth,
		secret:    []byte(secret),
		recaptcha: recaptcha,
		google:    google,
		sms:       sms,
		validate:  validator.New(),
		now:       time.Now,
		limiters:  make(map[string]*rate.Limiter),
		revoked:   make(map[string]time.Time),
		pending:   make(map[string]*phoneVerification),
		watchers:  make(map[uint64]*watcher),
	}
}

// SignUpEmail registers a new email/password account and signs it in.
func (s *Service) SignUpEmail(ctx context.Context, email, password string) (Session, error) {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < s.cfg.MinPasswordLength {
		return Session{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("failed to hash password: %w", err)
	}

	account := Account{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailInUse
		}
		return tx.Create(&account).Error
	})
	if errors.Is(err, ErrEmailInUse) {
		return Session{}, ErrEmailInUse
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("Account created", zap.String("uid", account.ID), zap.String("provider", ProviderPassword))
	return s.signIn(account, ProviderPassword)
}

// SignInEmail signs in with email and password.
func (s *Service) SignInEmail(ctx context.Context, email, password string) (Session, error) {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if !s.allow("email:" + email) {
		return Session{}, ErrTooManyRequests
	}

	var account Account
	err = s.db.WithContext(ctx).
		Where("email = ? AND password_hash <> ''", email).
		Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrUserNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("Sign-in failed: wrong password", zap.String("uid", account.ID))
		return Session{}, ErrWrongPassword
	}
	return s.signIn(account, ProviderPassword)
}

// SignInGoogle signs in with a Google ID token. An existing account with the same email is linked.
func (s *Service) SignInGoogle(ctx context.Context, idToken string) (Session, error) {
	gid, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return Session{}, err
	}
	email := strings.ToLower(strings.TrimSpace(gid.Email))

	var account Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("google_subject = ?", gid.Subject).Take(&account).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if email != "" {
			err = tx.Where("email = ?", email).Take(&account).Error
			if err == nil {
				account.GoogleSubject = gid.Subject
				return tx.Model(&account).Update("google_subject", gid.Subject).Error
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		account = Account{
			ID:            ulid.Make().String(),
			Email:         email,
			GoogleSubject: gid.Subject,
		}
		return tx.Create(&account).Error
	})
	if err != nil {
		return Session{}, fmt.Errorf("failed to resolve google account: %w", err)
	}
	return s.signIn(account, ProviderGoogle)
}

// SendPhoneCode checks the reCAPTCHA token and sends a one-time code to phoneNumber.
// It returns the verification id to confirm the code against.
func (s *Service) SendPhoneCode(ctx context.Context, phoneNumber, recaptchaToken string) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return "", ErrMissingPhoneNumber
	}
	if err := s.validate.Var(phoneNumber, "e164"); err != nil {
		return "", ErrInvalidPhoneNumber
	}
	if !s.allow("phone:" + phoneNumber) {
		return "", ErrTooManyRequests
	}
	if err := s.recaptcha.Verify(ctx, recaptchaToken); err != nil {
		return "", err
	}

	code, err := verificationCode()
	if err != nil {
		return "", err
	}
	id := ulid.Make().String()

	s.mu.Lock()
	s.prunePendingLocked()
	s.pending[id] = &phoneVerification{
		phoneNumber: phoneNumber,
		code:        code,
		expiresAt:   s.now().Add(s.cfg.SMSCodeTTL()),
	}
	s.mu.Unlock()

	if err := s.sms.Send(ctx, phoneNumber, fmt.Sprintf("Your verification code is %s", code)); err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return "", fmt.Errorf("failed to send verification code: %w", err)
	}
	return id, nil
}

// ConfirmPhoneCode completes a phone sign-in, creating the account on first use.
func (s *Service) ConfirmPhoneCode(ctx context.Context, verificationID, code string) (Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Session{}, ErrMissingCode
	}

	s.mu.Lock()
	pv, ok := s.pending[verificationID]
	if ok && s.now().After(pv.expiresAt) {
		delete(s.pending, verificationID)
		ok = false
	}
	if !ok {
		s.mu.Unlock()
		return Session{}, ErrInvalidCode
	}
	pv.attempts++
	if pv.attempts > maxCodeAttempts {
		delete(s.pending, verificationID)
		s.mu.Unlock()
		return Session{}, ErrTooManyRequests
	}
	if subtle.ConstantTimeCompare([]byte(pv.code), []byte(code)) != 1 {
		s.mu.Unlock()
		return Session{}, ErrInvalidCode
	}
	delete(s.pending, verificationID)
	phoneNumber := pv.phoneNumber
	s.mu.Unlock()

	var account Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("phone_number = ?", phoneNumber).Take(&account).Error
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		account = Account{ID: ulid.Make().String(), PhoneNumber: phoneNumber}
		return tx.Create(&account).Error
	})
	if err != nil {
		return Session{}, fmt.Errorf("failed to resolve phone account: %w", err)
	}
	return s.signIn(account, ProviderPhone)
}

// SignOut revokes token and announces the sign-out.
func (s *Service) SignOut(_ context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	now := s.now()
	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
		}
	}
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	s.mu.Unlock()

	principal := claims.principal()
	s.logger.Info("Signed out", zap.String("uid", principal.UID))
	s.emit(Event{Principal: principal, SignedIn: false})
	return nil
}

// CurrentPrincipal resolves a session token. Expired, revoked or forged tokens give ErrInvalidToken.
func (s *Service) CurrentPrincipal(token string) (Principal, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Principal{}, err
	}
	return claims.principal(), nil
}

// Watch streams sign-in and sign-out events until the returned cancel func is called.
// Events queue per watcher and are delivered in order; a slow reader never loses one.
func (s *Service) Watch() (<-chan Event, func()) {
	w := &watcher{
		out:  make(chan Event),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go w.pump()

	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = w
	s.mu.Unlock()

	var once sync.Once
	return w.out, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(w.done)
		})
	}
}

func (s *Service) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers {
		w.push(ev)
	}
}

// watcher is an unbounded event queue drained into out by its own goroutine.
type watcher struct {
	out  chan Event
	wake chan struct{}
	done chan struct{}

	mu    sync.Mutex
	queue []Event
}

func (w *watcher) push(ev Event) {
	w.mu.Lock()
	w.queue = append(w.queue, ev)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) pump() {
	defer close(w.out)
	for {
		w.mu.Lock()
		pending := w.queue
		w.queue = nil
		w.mu.Unlock()

		for _, ev := range pending {
			select {
			case w.out <- ev:
			case <-w.done:
				return
			}
		}

		select {
		case <-w.wake:
		case <-w.done:
			return
		}
	}
}

func (s *Service) signIn(account Account, provider string) (Session, error) {
	session, err := s.issue(account, provider)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("Signed in", zap.String("uid", account.ID), zap.String("provider", provider))
	s.emit(Event{Principal: session.Principal, SignedIn: true})
	return session, nil
}

func (s *Service) issue(account Account, provider string) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL())
	claims := Claims{
		Email:       account.Email,
		PhoneNumber: account.PhoneNumber,
		Provider:    provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   account.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Principal: account.principal(provider),
	}, nil
}

func (s *Service) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Claims) principal() Principal {
	return Principal{
		UID:         c.Subject,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		Provider:    c.Provider,
	}
}

func (s *Service) normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// allow spends one attempt for key.
func (s *Service) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.LoginRateLimit), s.cfg.LoginRateBurst)
		s.limiters[key] = l
	}
	return l.AllowN(s.now(), 1)
}

func (s *Service) prunePendingLocked() {
	now := s.now()
	for id, pv := range s.pending {
		if now.After(pv.expiresAt) {
			delete(s.pending, id)
		}
	}
}

func verificationCode() (string, error) {
	var b strings.Builder
	for i := 0; i < verificationCodeSize; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate verification code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
