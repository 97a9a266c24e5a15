package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"stolik/internal/domain"
	"stolik/internal/repository"
)

// InventoryService инкапсулирует бизнес-логику вокруг позиций меню
type InventoryService struct {
	repo repository.ItemRepository
	tx   repository.TxManager
	log  *zap.Logger
}

func NewInventoryService(repo repository.ItemRepository, tx repository.TxManager, log *zap.Logger) *InventoryService {
	return &InventoryService{repo: repo, tx: tx, log: log}
}

var ErrInvalidInput = errors.New("invalid input")

// UpsertItem создаёт позицию или сливает варианты в существующую
// (совпадение имени без учёта регистра). Для совпавшего размера цена
// заменяется, остаток прибавляется; новый размер добавляется в конец.
// Второй результат — true, если позиция создана, false при слиянии.
func (s *InventoryService) UpsertItem(ctx context.Context, name string, category domain.Category, variants []domain.Variant) (*domain.Item, bool, error) {
	if domain.NameKey(name) == "" {
		return nil, false, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !domain.ValidCategory(category) {
		return nil, false, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	if len(variants) == 0 {
		return nil, false, fmt.Errorf("%w: at least one variant is required", ErrInvalidInput)
	}
	for _, v := range variants {
		if domain.NormalizeSize(v.Size) == "" {
			return nil, false, fmt.Errorf("%w: variant size is required", ErrInvalidInput)
		}
		if v.Price < 0 {
			return nil, false, fmt.Errorf("%w: negative price for size %s", ErrInvalidInput, v.Size)
		}
		if v.Stock < 0 {
			return nil, false, fmt.Errorf("%w: negative stock for size %s", ErrInvalidInput, v.Size)
		}
	}

	var (
		result  *domain.Item
		created bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByName(ctx, name)
		switch {
		case err == nil:
			mergeVariants(existing, variants)
			if err := s.repo.Update(ctx, existing); err != nil {
				return err
			}
			result = existing
			return nil
		case errors.Is(err, repository.ErrNotFound):
			it := &domain.Item{
				Name:     domain.NormalizeName(name),
				Category: category,
			}
			// дубликаты размера внутри одной заявки сливаем по тому же правилу
			mergeVariants(it, variants)
			if err := s.repo.Create(ctx, it); err != nil {
				return err
			}
			result = it
			created = true
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, err
	}
	s.log.Info("item upserted",
		zap.String("item_id", result.ID),
		zap.String("name", result.Name),
		zap.Bool("created", created))
	return result, created, nil
}

func mergeVariants(it *domain.Item, incoming []domain.Variant) {
	for _, nv := range incoming {
		size := domain.NormalizeSize(nv.Size)
		if v := it.Variant(size); v != nil {
			// price replace, stock add
			v.Price = nv.Price
			v.Stock += nv.Stock
			continue
		}
		it.Variants = append(it.Variants, domain.Variant{Size: size, Price: nv.Price, Stock: nv.Stock})
	}
}

// ListItems возвращает позиции с вариантами, только чтение
func (s *InventoryService) ListItems(ctx context.Context, f repository.ItemFilter) ([]domain.Item, error) {
	return s.repo.List(ctx, f)
}

// FindVariant возвращает вариант позиции или ErrNotFound
func (s *InventoryService) FindVariant(ctx context.Context, itemID, size string) (*domain.Variant, error) {
	if itemID == "" || domain.NormalizeSize(size) == "" {
		return nil, ErrInvalidInput
	}
	it, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	v := it.Variant(size)
	if v == nil {
		return nil, fmt.Errorf("%w: variant %s of item %s", repository.ErrNotFound, domain.NormalizeSize(size), it.Name)
	}
	return v, nil
}

// AdjustStock атомарно меняет остаток варианта на delta (может быть отрицательной).
// Остаток не может уйти ниже нуля.
func (s *InventoryService) AdjustStock(ctx context.Context, itemID, size string, delta int64) error {
	if itemID == "" || domain.NormalizeSize(size) == "" {
		return ErrInvalidInput
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		it, err := s.repo.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		v := it.Variant(size)
		if v == nil {
			return fmt.Errorf("%w: variant %s of item %s", repository.ErrNotFound, domain.NormalizeSize(size), it.Name)
		}
		if v.Stock+delta < 0 {
			return fmt.Errorf("%w for %s (%s)", ErrInsufficientStock, it.Name, v.Size)
		}
		v.Stock += delta
		return s.repo.Update(ctx, it)
	})
}
