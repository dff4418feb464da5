package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// PaymentKind — тип платёжного метода.
type PaymentKind string

const (
	// PaymentKindCreditCard — банковская карта: ключ — номер, секрет — CVV.
	PaymentKindCreditCard PaymentKind = "credit_card"
	// PaymentKindPayPal — аккаунт PayPal: ключ — email, секрет — пароль.
	PaymentKindPayPal PaymentKind = "paypal"
)

const (
	creditCardNumberLen = 16
	creditCardCVVLen    = 3
)

// ParsePaymentKind принимает как машинные, так и человекочитаемые названия
// ("credit card", "Credit_Card", "PayPal").
func ParsePaymentKind(raw string) (PaymentKind, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch PaymentKind(normalized) {
	case PaymentKindCreditCard:
		return PaymentKindCreditCard, nil
	case PaymentKindPayPal:
		return PaymentKindPayPal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPaymentKind, raw)
	}
}

// Label возвращает название для вывода пользователю.
func (k PaymentKind) Label() string {
	switch k {
	case PaymentKindCreditCard:
		return "Credit Card"
	case PaymentKindPayPal:
		return "PayPal"
	default:
		return string(k)
	}
}

// Credential — публичное представление зарегистрированного метода. Секрет наружу не отдаётся.
type Credential struct {
	Key          string
	Kind         PaymentKind
	RegisteredAt time.Time
}

// Payment — запрос на оплату заказа.
type Payment struct {
	Kind   PaymentKind
	Key    string
	Secret string
	Amount decimal.Decimal
}

// Authorization — результат успешной авторизации. Списания средств не моделируется.
type Authorization struct {
	ID           string
	Kind         PaymentKind
	Key          string
	Amount       decimal.Decimal
	AuthorizedAt time.Time
}

// ValidateCreditCard проверяет только формат: 16 символов номера, 3 символа CVV,
// непустые владелец и срок действия.
func ValidateCreditCard(number, holder, expiry, cvv string) bool {
	return utf8.RuneCountInString(number) == creditCardNumberLen &&
		utf8.RuneCountInString(cvv) == creditCardCVVLen &&
		holder != "" &&
		expiry != ""
}

// ValidatePayPal проверяет, что email и пароль не пустые.
func ValidatePayPal(email, password string) bool {
	return email != "" && password != ""
}
