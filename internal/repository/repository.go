package repository

import (
	"context"
	"errors"
	"strings"

	"stolik/internal/domain"
)

// ErrNotFound возвращается, когда сущность не найдена
var ErrNotFound = errors.New("not found")

// ErrConflict возвращается при конфликте конкурентной записи (SQL-бэкенд)
var ErrConflict = errors.New("write conflict")

// ItemFilter параметры фильтрации списка позиций
type ItemFilter struct {
	NameSubstring string
	Category      domain.Category
}

// ItemRepository интерфейс репозитория позиций меню
type ItemRepository interface {
	Create(ctx context.Context, it *domain.Item) error
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	// GetByName ищет по имени без учёта регистра
	GetByName(ctx context.Context, name string) (*domain.Item, error)
	Update(ctx context.Context, it *domain.Item) error
	List(ctx context.Context, f ItemFilter) ([]domain.Item, error)
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	// FindOpen возвращает открытый заказ пары (customer, seat) или ErrNotFound
	FindOpen(ctx context.Context, customerName, seatNumber string) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	List(ctx context.Context) ([]domain.Order, error)
	// DeleteBySeat удаляет все заказы места, возвращает число удалённых
	DeleteBySeat(ctx context.Context, seatNumber string) (int, error)
}

// TxManager абстракция транзакции. Для in-memory — глобальная блокировка записи,
// для SQL — настоящий BEGIN/COMMIT с откатом по ошибке из fn.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
