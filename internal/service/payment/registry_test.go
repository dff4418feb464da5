package payment

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/metrics"
)

const testCard = "1234567890123456"

func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	base := []Option{
		WithHashCost(bcrypt.MinCost),
		WithLogger(log.NewEntry(logger)),
	}
	return NewRegistry(append(base, opts...)...)
}

func TestRegistry_CreditCardAuthorization(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterCreditCard(testCard, "Ivan Petrov", "12/28", "123"))

	auth, err := r.Authorize(domain.Payment{
		Kind:   domain.PaymentKindCreditCard,
		Key:    testCard,
		Secret: "123",
		Amount: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, auth.ID)
	assert.Equal(t, domain.PaymentKindCreditCard, auth.Kind)
	assert.True(t, auth.Amount.Equal(decimal.NewFromInt(100)))

	_, err = r.Authorize(domain.Payment{
		Kind:   domain.PaymentKindCreditCard,
		Key:    testCard,
		Secret: "999",
		Amount: decimal.NewFromInt(100),
	})
	require.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = r.Authorize(domain.Payment{
		Kind:   domain.PaymentKindCreditCard,
		Key:    "6543210987654321",
		Secret: "123",
		Amount: decimal.NewFromInt(100),
	})
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestRegistry_AuthorizeKindMismatchAndAmount(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterPayPal("a@b.com", "pw"))

	_, err := r.Authorize(domain.Payment{
		Kind:   domain.PaymentKindCreditCard,
		Key:    "a@b.com",
		Secret: "pw",
		Amount: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)

	_, err = r.Authorize(domain.Payment{
		Kind:   domain.PaymentKindPayPal,
		Key:    "a@b.com",
		Secret: "pw",
		Amount: decimal.Zero,
	})
	// Сумму сверяет книга заказов, реестр проверяет только реквизиты.
	require.NoError(t, err)

	auth, err := r.Authorize(domain.Payment{
		Kind:   domain.PaymentKindPayPal,
		Key:    "a@b.com",
		Secret: "pw",
		Amount: decimal.NewFromInt(-5),
	})
	require.NoError(t, err)
	assert.True(t, auth.Amount.Equal(decimal.NewFromInt(-5)))

	// Пустой тип не ограничивает поиск.
	_, err = r.Authorize(domain.Payment{Key: "a@b.com", Secret: "pw", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := newTestRegistry(t)

	require.ErrorIs(t, r.RegisterCreditCard("123", "Ivan", "12/28", "123"), domain.ErrInvalidPaymentDetails)
	require.ErrorIs(t, r.RegisterPayPal("", "pw"), domain.ErrInvalidPaymentDetails)
	require.ErrorIs(t, r.Register(domain.PaymentKindPayPal, "", "pw"), domain.ErrCredentialRequired)
	require.ErrorIs(t, r.Register("cash", "k", "s"), domain.ErrUnknownPaymentKind)
	require.ErrorIs(t, r.Register(domain.PaymentKindPayPal, "a@b.com", strings.Repeat("x", 80)), domain.ErrInvalidPaymentDetails)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DuplicateAndUnregister(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(domain.PaymentKindPayPal, "a@b.com", "pw"))

	err := r.Register(domain.PaymentKindCreditCard, "a@b.com", "123")
	require.ErrorIs(t, err, domain.ErrCredentialExists)
	assert.True(t, domain.IsConflict(err))

	require.NoError(t, r.Unregister("a@b.com"))
	require.ErrorIs(t, r.Unregister("a@b.com"), domain.ErrCredentialNotFound)

	// Ключ освобождается после удаления.
	require.NoError(t, r.Register(domain.PaymentKindPayPal, "a@b.com", "other"))
}

func TestRegistry_ListSortedWithoutSecrets(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newTestRegistry(t, WithClock(func() time.Time { return fixed }))

	require.NoError(t, r.RegisterPayPal("z@shop.io", "pw"))
	require.NoError(t, r.RegisterCreditCard(testCard, "Ivan", "12/28", "123"))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, testCard, list[0].Key)
	assert.Equal(t, domain.PaymentKindCreditCard, list[0].Kind)
	assert.Equal(t, "z@shop.io", list[1].Key)
	assert.Equal(t, fixed, list[1].RegisteredAt)
}

func TestRegistry_RecordsAuthorizationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newTestRegistry(t, WithMetrics(metrics.NewInventoryMetricsWithRegisterer(reg)))
	require.NoError(t, r.RegisterPayPal("a@b.com", "pw"))

	_, _ = r.Authorize(domain.Payment{Key: "a@b.com", Secret: "pw", Amount: decimal.NewFromInt(1)})
	_, _ = r.Authorize(domain.Payment{Key: "a@b.com", Secret: "bad", Amount: decimal.NewFromInt(1)})

	families, err := reg.Gather()
	require.NoError(t, err)

	results := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "ims_payment_authorizations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				results[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, results[metrics.AuthorizationApproved])
	assert.Equal(t, 1.0, results[metrics.AuthorizationDeclined])
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****3456", maskKey(domain.PaymentKindCreditCard, testCard))
	assert.Equal(t, "a@b.com", maskKey(domain.PaymentKindPayPal, "a@b.com"))
}
