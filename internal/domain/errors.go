package domain

import "errors"

var (
	// ErrItemNotFound возвращается, если товара с таким ID нет на складе.
	ErrItemNotFound = errors.New("item not found")
	// Ошибка, если ID уже занят другим товаром склада.
	ErrDuplicateItemID = errors.New("item id already in use")
	// Ошибка отрицательного идентификатора товара.
	ErrInvalidItemID = errors.New("item id must be non-negative")
	// Ошибка пустого названия товара.
	ErrItemNameRequired = errors.New("item name is required")
	// Ошибка цены товара (<= 0).
	ErrInvalidPrice = errors.New("price must be greater than zero")
	// Ошибка отрицательного остатка.
	ErrInvalidQuantity = errors.New("quantity must be non-negative")
	// Ошибка отрицательного веса хрупкого товара.
	ErrInvalidWeight = errors.New("weight must be non-negative")
	// Категория задаётся один раз при создании товара.
	ErrCategoryImmutable = errors.New("category cannot be changed once set")
	// Ошибка неизвестного типа товара.
	ErrUnknownItemKind = errors.New("unknown item kind")

	// ErrOrderNotFound возвращается, если заказа нет в книге заказов.
	ErrOrderNotFound = errors.New("order not found")
	// Ошибка попытки сохранить заказ с уже занятым ID.
	ErrOrderExists = errors.New("order already exists")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrOrderLinesRequired = errors.New("order must contain at least one line")
	// Ошибка при некорректном количестве в позиции заказа (<= 0).
	ErrInvalidOrderLine = errors.New("order line qty must be greater than zero")
	// ErrInsufficientStock возвращается, если на складе меньше товара, чем в заказе.
	ErrInsufficientStock = errors.New("insufficient stock")
	// Ошибка, если сумма платежа меньше суммы заказа.
	ErrInsufficientPayment = errors.New("insufficient payment")

	// Платёжный метод с таким ключом уже зарегистрирован.
	ErrCredentialExists = errors.New("payment method already exists")
	// ErrCredentialNotFound возвращается для незарегистрированного метода.
	ErrCredentialNotFound = errors.New("payment method not found")
	// Секрет (CVV/пароль) не совпадает с сохранённым.
	ErrInvalidCredential = errors.New("invalid payment credential")
	// Ошибка пустого ключа или секрета платёжного метода.
	ErrCredentialRequired = errors.New("payment key and secret are required")
	// Ошибка неизвестного типа платёжного метода.
	ErrUnknownPaymentKind = errors.New("unknown payment kind")
	// Ошибка проверки формата реквизитов.
	ErrInvalidPaymentDetails = errors.New("invalid payment method details")
	// Товар нельзя удалить, пока его резервирует открытый заказ.
	ErrItemReserved = errors.New("item is reserved by an open order")
	// Склад нельзя заменить снимком, пока в книге есть открытые заказы.
	ErrOpenOrders = errors.New("inventory has open orders")

	// Позиции нет в корзине.
	ErrCartItemNotFound = errors.New("item not found in cart")

	// ErrSnapshotNotFound возвращается, пока снимок склада не сохранён ни разу.
	ErrSnapshotNotFound = errors.New("inventory snapshot not found")
)

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrCredentialNotFound) ||
		errors.Is(err, ErrCartItemNotFound) ||
		errors.Is(err, ErrSnapshotNotFound)
}

// IsConflict проверяет нарушение уникальности (DuplicateId/AlreadyExists).
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateItemID) ||
		errors.Is(err, ErrOrderExists) ||
		errors.Is(err, ErrCredentialExists)
}

// IsInvalidArgument проверяет, является ли ошибка ошибкой валидации входных данных.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidItemID) ||
		errors.Is(err, ErrItemNameRequired) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidWeight) ||
		errors.Is(err, ErrCategoryImmutable) ||
		errors.Is(err, ErrUnknownItemKind) ||
		errors.Is(err, ErrOrderLinesRequired) ||
		errors.Is(err, ErrInvalidOrderLine) ||
		errors.Is(err, ErrCredentialRequired) ||
		errors.Is(err, ErrUnknownPaymentKind) ||
		errors.Is(err, ErrInvalidPaymentDetails)
}
