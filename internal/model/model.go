// Package model содержит доменные сущности сервиса предзаказа футболок.
package model

import "time"

// ShirtDesign описывает модель футболки из каталога с фиксированной ценой в батах.
type ShirtDesign struct {
	ID          string
	Name        string
	UnitPrice   int64
	Description string
	Images      []string
}

// Size описывает размер футболки из закрытого набора значений.
type Size string

const (
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

// Sizes возвращает допустимые размеры в порядке возрастания.
func Sizes() []Size {
	return []Size{SizeS, SizeM, SizeL, SizeXL, SizeXXL}
}

// OrderStatus описывает статус выполнения заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusDelivered OrderStatus = "delivered"
)

// OrderItem описывает одну позицию заказа. Цена за единицу фиксируется
// в момент оформления и не пересчитывается при изменении каталога.
type OrderItem struct {
	Design       string
	Size         Size
	Quantity     int
	PricePerUnit int64
}

// Order описывает сохранённый заказ с назначенным идентификатором и статусом.
// После создания меняется только Status, и только в сторону delivered.
type Order struct {
	ID         int64
	Name       string
	Address    string
	IsPickup   bool
	TotalPrice int64
	SlipRef    string
	Status     OrderStatus
	CreatedAt  time.Time
	Items      []OrderItem
}
