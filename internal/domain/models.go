package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Category категория позиции меню
type Category string

const (
	CategoryBeverages Category = "Beverages"
	CategoryFood      Category = "Food"
	CategoryMisc      Category = "Misc"
)

// ValidCategory проверяет, что категория из допустимого набора
func ValidCategory(c Category) bool {
	switch c {
	case CategoryBeverages, CategoryFood, CategoryMisc:
		return true
	}
	return false
}

// Variant размерный вариант позиции: своя цена и свой остаток
type Variant struct {
	Size  string  `json:"size"`
	Price float64 `json:"price"`
	Stock int64   `json:"stock"`
}

// Item позиция меню с набором вариантов. Размеры внутри позиции уникальны.
type Item struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Category Category  `json:"category"`
	Variants []Variant `json:"variants"`
}

// Variant ищет вариант по нормализованному размеру, nil если нет
func (i *Item) Variant(size string) *Variant {
	size = NormalizeSize(size)
	for idx := range i.Variants {
		if i.Variants[idx].Size == size {
			return &i.Variants[idx]
		}
	}
	return nil
}

// Clone глубокая копия, чтобы хранилище не отдавало наружу свои слайсы
func (i *Item) Clone() *Item {
	cp := *i
	cp.Variants = make([]Variant, len(i.Variants))
	copy(cp.Variants, i.Variants)
	return &cp
}

// OrderLine строка заказа; Name — денормализованная копия имени позиции
type OrderLine struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Size     string `json:"size"`
	Quantity int64  `json:"quantity"`
}

// Order открытый заказ; естественный ключ — пара (customerName, seatNumber).
// Поля сериализуются в camelCase — исторический формат клиента.
type Order struct {
	ID           string      `json:"id"`
	CustomerName string      `json:"customerName"`
	SeatNumber   string      `json:"seatNumber"`
	Lines        []OrderLine `json:"items"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Clone глубокая копия заказа
func (o *Order) Clone() *Order {
	cp := *o
	cp.Lines = make([]OrderLine, len(o.Lines))
	copy(cp.Lines, o.Lines)
	return &cp
}

// NormalizeName приводит имя к хранимой форме: первая руна заглавная, остальное строчными
func NormalizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// NameKey ключ регистронезависимого поиска по имени
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeSize размеры храним в верхнем регистре ("s" и "S" — один вариант)
func NormalizeSize(size string) string {
	return strings.ToUpper(strings.TrimSpace(size))
}
