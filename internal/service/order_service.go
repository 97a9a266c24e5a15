package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"stolik/internal/domain"
	"stolik/internal/repository"
)

// OrderService реализует размещение заказов и выдачу по местам
type OrderService struct {
	items  repository.ItemRepository
	orders repository.OrderRepository
	tx     repository.TxManager
	log    *zap.Logger
}

func NewOrderService(items repository.ItemRepository, orders repository.OrderRepository, tx repository.TxManager, log *zap.Logger) *OrderService {
	return &OrderService{items: items, orders: orders, tx: tx, log: log}
}

var ErrInsufficientStock = errors.New("insufficient stock")

// PlaceOrder атомарно размещает многострочный заказ: проверяет остатки по
// каждой строке, списывает их и вливает строки в открытый заказ пары
// (customer, seat) либо создаёт новый. Заявка неделима: отказ по любой
// строке оставляет все остатки нетронутыми.
//
// Внутри транзакции позиции выбираются по возрастанию id — стабильный
// порядок блокировок, чтобы встречные заявки не взаимоблокировались.
// Второй результат — true, если строки влиты в существующий заказ.
func (s *OrderService) PlaceOrder(ctx context.Context, customerName, seatNumber string, lines []domain.OrderLine) (*domain.Order, bool, error) {
	if customerName == "" || seatNumber == "" {
		return nil, false, fmt.Errorf("%w: customer name and seat number are required", ErrInvalidInput)
	}
	if len(lines) == 0 {
		return nil, false, fmt.Errorf("%w: order has no lines", ErrInvalidInput)
	}
	for _, l := range lines {
		if l.ItemID == "" || domain.NormalizeSize(l.Size) == "" {
			return nil, false, fmt.Errorf("%w: line needs item and size", ErrInvalidInput)
		}
		if l.Quantity <= 0 {
			return nil, false, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
		}
	}

	var (
		result *domain.Order
		merged bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		open, err := s.orders.FindOpen(ctx, customerName, seatNumber)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		// выбираем все позиции заявки по возрастанию id
		ids := make([]string, 0, len(lines))
		seen := make(map[string]bool, len(lines))
		for _, l := range lines {
			if !seen[l.ItemID] {
				seen[l.ItemID] = true
				ids = append(ids, l.ItemID)
			}
		}
		sort.Strings(ids)

		staged := make(map[string]*domain.Item, len(ids))
		for _, id := range ids {
			it, err := s.items.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%w: item %s", repository.ErrNotFound, id)
				}
				return err
			}
			staged[id] = it
		}

		// валидируем и списываем построчно на копиях, в порядке подачи
		placed := make([]domain.OrderLine, 0, len(lines))
		for _, l := range lines {
			it := staged[l.ItemID]
			v := it.Variant(l.Size)
			if v == nil {
				return fmt.Errorf("%w: variant %s of %s", repository.ErrNotFound, domain.NormalizeSize(l.Size), it.Name)
			}
			if v.Stock < l.Quantity {
				return fmt.Errorf("%w for %s (%s)", ErrInsufficientStock, it.Name, v.Size)
			}
			v.Stock -= l.Quantity
			placed = append(placed, domain.OrderLine{
				ItemID:   it.ID,
				Name:     it.Name,
				Size:     v.Size,
				Quantity: l.Quantity,
			})
		}

		// копии прошли целиком — фиксируем остатки в том же порядке id
		for _, id := range ids {
			if err := s.items.Update(ctx, staged[id]); err != nil {
				return err
			}
		}

		if open != nil {
			mergeLines(open, placed)
			if err := s.orders.Update(ctx, open); err != nil {
				return err
			}
			result = open
			merged = true
			return nil
		}
		o := &domain.Order{
			CustomerName: customerName,
			SeatNumber:   seatNumber,
			Lines:        placed,
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}
		result = o
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	s.log.Info("order placed",
		zap.String("order_id", result.ID),
		zap.String("customer", customerName),
		zap.String("seat", seatNumber),
		zap.Int("lines", len(lines)),
		zap.Bool("merged", merged))
	return result, merged, nil
}

// mergeLines вливает новые строки: совпавшая пара (item, size) суммирует
// количество, новая пара добавляется в конец
func mergeLines(o *domain.Order, lines []domain.OrderLine) {
	for _, nl := range lines {
		found := false
		for i := range o.Lines {
			if o.Lines[i].ItemID == nl.ItemID && o.Lines[i].Size == nl.Size {
				o.Lines[i].Quantity += nl.Quantity
				found = true
				break
			}
		}
		if !found {
			o.Lines = append(o.Lines, nl)
		}
	}
}

// ListOrders возвращает все заказы, только чтение
func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// FulfillSeat отмечает все заказы места выданными, удаляя их. Остатки не
// возвращаются. Пустое место — ErrNotFound, для вызывающего это не фатально.
// Удаление идёт в транзакции: заказы места либо исчезают целиком, либо
// остаются нетронутыми.
func (s *OrderService) FulfillSeat(ctx context.Context, seatNumber string) (int, error) {
	if seatNumber == "" {
		return 0, fmt.Errorf("%w: seat number is required", ErrInvalidInput)
	}
	var removed int
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.orders.DeleteBySeat(ctx, seatNumber)
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, fmt.Errorf("%w: no orders for seat %s", repository.ErrNotFound, seatNumber)
	}
	s.log.Info("seat fulfilled", zap.String("seat", seatNumber), zap.Int("orders", removed))
	return removed, nil
}
