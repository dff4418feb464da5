package payment

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
)

// RegistryOptions задаёт параметры реестра платёжных методов.
type RegistryOptions struct {
	Logger   *log.Entry
	Metrics  *metrics.InventoryMetrics
	HashCost int
	Now      func() time.Time
}

// Option настраивает Registry.
type Option func(*RegistryOptions)

// WithLogger задаёт logger реестра.
func WithLogger(logger *log.Entry) Option {
	return func(opts *RegistryOptions) {
		opts.Logger = logger
	}
}

// WithMetrics включает учёт результатов авторизации.
func WithMetrics(m *metrics.InventoryMetrics) Option {
	return func(opts *RegistryOptions) {
		opts.Metrics = m
	}
}

// WithHashCost задаёт стоимость bcrypt. В тестах удобно bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(opts *RegistryOptions) {
		opts.HashCost = cost
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(opts *RegistryOptions) {
		opts.Now = now
	}
}

type storedCredential struct {
	kind         domain.PaymentKind
	secretHash   []byte
	registeredAt time.Time
}

// Registry хранит зарегистрированные платёжные методы. Секреты (CVV, пароли)
// хранятся только в виде bcrypt-хэшей.
type Registry struct {
	mu          sync.RWMutex
	credentials map[string]storedCredential

	logger   *log.Entry
	metrics  *metrics.InventoryMetrics
	hashCost int
	now      func() time.Time
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(opts ...Option) *Registry {
	options := RegistryOptions{
		HashCost: bcrypt.DefaultCost,
		Now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.Logger == nil {
		options.Logger = log.WithField("component", "payment-registry")
	}
	if options.HashCost < bcrypt.MinCost || options.HashCost > bcrypt.MaxCost {
		options.HashCost = bcrypt.DefaultCost
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	return &Registry{
		credentials: make(map[string]storedCredential),
		logger:      options.Logger,
		metrics:     options.Metrics,
		hashCost:    options.HashCost,
		now:         options.Now,
	}
}

// Register сохраняет платёжный метод без проверки формата реквизитов.
func (r *Registry) Register(kind domain.PaymentKind, key, secret string) error {
	kind, err := domain.ParsePaymentKind(string(kind))
	if err != nil {
		return err
	}
	if key == "" || secret == "" {
		return domain.ErrCredentialRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), r.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("%w: secret is too long", domain.ErrInvalidPaymentDetails)
		}
		return fmt.Errorf("hash payment secret: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.credentials[key]; exists {
		return fmt.Errorf("%w: %s", domain.ErrCredentialExists, maskKey(kind, key))
	}
	r.credentials[key] = storedCredential{
		kind:         kind,
		secretHash:   hash,
		registeredAt: r.now().UTC(),
	}

	r.logger.WithFields(log.Fields{
		"kind": kind,
		"key":  maskKey(kind, key),
	}).Info("payment method registered")
	return nil
}

// RegisterCreditCard проверяет формат карты и регистрирует её под номером, секретом служит CVV.
func (r *Registry) RegisterCreditCard(number, holder, expiry, cvv string) error {
	if !domain.ValidateCreditCard(number, holder, expiry, cvv) {
		return fmt.Errorf("%w: credit card", domain.ErrInvalidPaymentDetails)
	}
	return r.Register(domain.PaymentKindCreditCard, number, cvv)
}

// RegisterPayPal проверяет реквизиты и регистрирует аккаунт PayPal.
func (r *Registry) RegisterPayPal(email, password string) error {
	if !domain.ValidatePayPal(email, password) {
		return fmt.Errorf("%w: paypal", domain.ErrInvalidPaymentDetails)
	}
	return r.Register(domain.PaymentKindPayPal, email, password)
}

// Unregister удаляет платёжный метод.
func (r *Registry) Unregister(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.credentials[key]
	if !ok {
		return domain.ErrCredentialNotFound
	}
	delete(r.credentials, key)

	r.logger.WithFields(log.Fields{
		"kind": stored.kind,
		"key":  maskKey(stored.kind, key),
	}).Info("payment method unregistered")
	return nil
}

// List возвращает зарегистрированные методы по возрастанию ключа.
func (r *Registry) List() []domain.Credential {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Credential, 0, len(r.credentials))
	for key, stored := range r.credentials {
		result = append(result, domain.Credential{
			Key:          key,
			Kind:         stored.kind,
			RegisteredAt: stored.registeredAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// Len возвращает количество зарегистрированных методов.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.credentials)
}

// Authorize проверяет метод, секрет и сумму. Пустой Kind означает «любой тип».
func (r *Registry) Authorize(payment domain.Payment) (domain.Authorization, error) {
	auth, err := r.authorize(payment)
	r.metrics.RecordAuthorization(err == nil)

	entry := r.logger.WithFields(log.Fields{
		"kind":   payment.Kind,
		"key":    maskKey(payment.Kind, payment.Key),
		"amount": payment.Amount.String(),
	})
	if err != nil {
		entry.WithError(err).Warn("payment authorization declined")
		return domain.Authorization{}, err
	}
	entry.WithField("authorization_id", auth.ID).Info("payment authorized")
	return auth, nil
}

func (r *Registry) authorize(payment domain.Payment) (domain.Authorization, error) {
	r.mu.RLock()
	stored, ok := r.credentials[payment.Key]
	r.mu.RUnlock()

	if !ok || (payment.Kind != "" && payment.Kind != stored.kind) {
		return domain.Authorization{}, domain.ErrCredentialNotFound
	}
	if err := bcrypt.CompareHashAndPassword(stored.secretHash, []byte(payment.Secret)); err != nil {
		return domain.Authorization{}, domain.ErrInvalidCredential
	}

	return domain.Authorization{
		ID:           uuid.NewString(),
		Kind:         stored.kind,
		Key:          payment.Key,
		Amount:       payment.Amount,
		AuthorizedAt: r.now().UTC(),
	}, nil
}

// maskKey скрывает номер карты в логах, оставляя последние 4 цифры.
func maskKey(kind domain.PaymentKind, key string) string {
	if kind != domain.PaymentKindCreditCard || len(key) <= 4 {
		return key
	}
	return "****" + key[len(key)-4:]
}

var _ domain.PaymentAuthorizer = (*Registry)(nil)
