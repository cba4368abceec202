// Package builder реализует составление черновика заказа: позиции, данные
// покупателя, подсчёт суммы, валидацию и отправку на сервер.
package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/mmeshcher/preorder-system/internal/catalog"
	"github.com/mmeshcher/preorder-system/internal/model"
	"github.com/mmeshcher/preorder-system/internal/submit"
)

// Ошибки валидации черновика. Validate возвращает первую применимую,
// остальные проверки не выполняются.
var (
	ErrEmptyOrder = errors.New("order must contain at least one item")
	ErrNoName     = errors.New("customer name is required")
	ErrNoAddress  = errors.New("delivery address is required")
	ErrNoSlip     = errors.New("payment slip image is required")
)

// ErrItemIndex возвращается при обращении к несуществующей позиции заказа.
var ErrItemIndex = errors.New("item index out of range")

// ErrQuantity возвращается при попытке установить неположительное количество.
var ErrQuantity = errors.New("quantity must be positive")

// ErrSubmitInFlight возвращается при попытке отправить черновик,
// пока предыдущая отправка ещё не завершилась.
var ErrSubmitInFlight = errors.New("submission already in flight")

// Item описывает одну позицию черновика заказа.
type Item struct {
	Design   string
	Size     model.Size
	Quantity int
}

// Customer содержит данные покупателя черновика заказа.
type Customer struct {
	Name         string
	Address      string
	IsPickup     bool
	SlipFilename string
	SlipImage    []byte
}

// Submitter описывает контракт отправки заказа, используемый черновиком.
type Submitter interface {
	Submit(ctx context.Context, p submit.Payload) (*submit.Confirmation, error)
}

// Draft представляет редактируемый черновик заказа. Черновик всегда содержит
// хотя бы одну позицию. Все операции, кроме Submit, синхронные и не блокируют;
// черновик рассчитан на одного пользователя и не защищён от параллельных правок.
type Draft struct {
	catalog    *catalog.Catalog
	items      []Item
	customer   Customer
	submitting atomic.Bool
}

// New создаёт черновик с одной позицией по умолчанию.
func New(c *catalog.Catalog) *Draft {
	d := &Draft{catalog: c}
	d.reset()
	return d
}

func (d *Draft) reset() {
	d.items = []Item{defaultItem()}
	d.customer = Customer{}
}

func defaultItem() Item {
	return Item{
		Design:   catalog.DefaultDesignID,
		Size:     catalog.DefaultSize,
		Quantity: 1,
	}
}

// AddItem добавляет новую позицию со значениями по умолчанию.
func (d *Draft) AddItem() {
	d.items = append(d.items, defaultItem())
}

// RemoveItem удаляет позицию. Последнюю оставшуюся позицию удалить нельзя:
// вызов молча игнорируется, чтобы в форме всегда оставалась хотя бы одна строка.
func (d *Draft) RemoveItem(index int) {
	if index < 0 || index >= len(d.items) || len(d.items) == 1 {
		return
	}
	d.items = append(d.items[:index], d.items[index+1:]...)
}

// SetItemDesign меняет модель футболки в указанной позиции.
func (d *Draft) SetItemDesign(index int, designID string) error {
	if index < 0 || index >= len(d.items) {
		return fmt.Errorf("%w: %d", ErrItemIndex, index)
	}
	d.items[index].Design = designID
	return nil
}

// SetItemSize меняет размер в указанной позиции.
func (d *Draft) SetItemSize(index int, size model.Size) error {
	if index < 0 || index >= len(d.items) {
		return fmt.Errorf("%w: %d", ErrItemIndex, index)
	}
	d.items[index].Size = size
	return nil
}

// SetItemQuantity меняет количество в указанной позиции.
// Верхней границы нет, количество должно быть положительным.
func (d *Draft) SetItemQuantity(index int, quantity int) error {
	if index < 0 || index >= len(d.items) {
		return fmt.Errorf("%w: %d", ErrItemIndex, index)
	}
	if quantity < 1 {
		return ErrQuantity
	}
	d.items[index].Quantity = quantity
	return nil
}

// SetName устанавливает имя покупателя.
func (d *Draft) SetName(name string) {
	d.customer.Name = name
}

// SetAddress устанавливает адрес доставки.
func (d *Draft) SetAddress(address string) {
	d.customer.Address = address
}

// SetPickup переключает способ получения. При самовывозе адрес не требуется
// и не передаётся на сервер, но введённый текст в черновике сохраняется.
func (d *Draft) SetPickup(pickup bool) {
	d.customer.IsPickup = pickup
}

// AttachSlip прикрепляет изображение слипа об оплате. Содержимое не проверяется.
func (d *Draft) AttachSlip(data []byte, filename string) {
	d.customer.SlipImage = data
	d.customer.SlipFilename = filename
}

// Items возвращает копию позиций черновика в порядке добавления.
func (d *Draft) Items() []Item {
	res := make([]Item, len(d.items))
	copy(res, d.items)
	return res
}

// Customer возвращает данные покупателя.
func (d *Draft) Customer() Customer {
	return d.customer
}

// Total возвращает сумму заказа по текущим позициям. Сумма каждый раз
// считается заново по каталогу и нигде не кешируется.
func (d *Draft) Total() int64 {
	var total int64
	for _, it := range d.items {
		design, err := d.catalog.Find(it.Design)
		if err != nil {
			continue
		}
		total += design.UnitPrice * int64(it.Quantity)
	}
	return total
}

// Validate проверяет черновик перед отправкой. Проверки выполняются в
// фиксированном порядке, возвращается только первая ошибка. Состояние
// черновика не меняется.
func (d *Draft) Validate() error {
	if len(d.items) == 0 {
		return ErrEmptyOrder
	}
	if strings.TrimSpace(d.customer.Name) == "" {
		return ErrNoName
	}
	if !d.customer.IsPickup && strings.TrimSpace(d.customer.Address) == "" {
		return ErrNoAddress
	}
	if len(d.customer.SlipImage) == 0 {
		return ErrNoSlip
	}
	return nil
}

// Submit проверяет черновик и отправляет его через переданный Submitter.
// На один черновик допускается не более одной отправки одновременно:
// повторный вызов до завершения первого получает ErrSubmitInFlight.
// Черновик сбрасывается к начальному состоянию только после подтверждённого
// успеха; при любой ошибке он сохраняется без изменений.
func (d *Draft) Submit(ctx context.Context, s Submitter) (*submit.Confirmation, error) {
	if !d.submitting.CompareAndSwap(false, true) {
		return nil, ErrSubmitInFlight
	}
	defer d.submitting.Store(false)

	if err := d.Validate(); err != nil {
		return nil, err
	}

	conf, err := s.Submit(ctx, d.payload())
	if err != nil {
		return nil, err
	}

	d.reset()
	return conf, nil
}

func (d *Draft) payload() submit.Payload {
	items := make([]submit.Item, 0, len(d.items))
	for _, it := range d.items {
		items = append(items, submit.Item{
			Design:   it.Design,
			Size:     string(it.Size),
			Quantity: it.Quantity,
		})
	}

	address := d.customer.Address
	if d.customer.IsPickup {
		address = ""
	}

	return submit.Payload{
		Name:         d.customer.Name,
		Address:      address,
		IsPickup:     d.customer.IsPickup,
		Items:        items,
		TotalPrice:   d.Total(),
		SlipFilename: d.customer.SlipFilename,
		SlipImage:    d.customer.SlipImage,
	}
}
