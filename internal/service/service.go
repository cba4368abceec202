// Package service реализует бизнес-логику сервиса предзаказа футболок.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/preorder-system/internal/catalog"
	"github.com/mmeshcher/preorder-system/internal/export"
	"github.com/mmeshcher/preorder-system/internal/model"
)

// Ошибки отклонения заказа. Сообщение показывается покупателю дословно,
// поэтому тексты написаны для человека, а не для лога.
var (
	ErrNoItems         = errors.New("order must contain at least one item")
	ErrNameRequired    = errors.New("customer name is required")
	ErrAddressRequired = errors.New("delivery address is required")
	ErrSlipRequired    = errors.New("payment slip image is required")
	ErrUnknownDesign   = errors.New("unknown shirt design")
	ErrUnknownSize     = errors.New("unknown shirt size")
	ErrBadQuantity     = errors.New("quantity must be positive")
	ErrTotalMismatch   = errors.New("total price does not match order items")
)

var rejections = []error{
	ErrNoItems,
	ErrNameRequired,
	ErrAddressRequired,
	ErrSlipRequired,
	ErrUnknownDesign,
	ErrUnknownSize,
	ErrBadQuantity,
	ErrTotalMismatch,
}

// IsRejection сообщает, является ли ошибка отклонением заказа по вине входных данных.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateOrder(ctx context.Context, order *model.Order) (int64, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrderSlipRef(ctx context.Context, orderID int64) (string, error)
	MarkDelivered(ctx context.Context, orderID int64) error
}

// FileStore описывает контракт хранения изображений слипов.
type FileStore interface {
	Save(data []byte, origName string) (string, error)
	Read(ref string) ([]byte, error)
}

// InputItem описывает позицию заказа во входных данных.
type InputItem struct {
	Design   string
	Size     string
	Quantity int
}

// CreateOrderInput содержит данные заказа, принятые с формы.
type CreateOrderInput struct {
	Name          string
	Address       string
	IsPickup      bool
	Items         []InputItem
	DeclaredTotal int64
	SlipImage     []byte
	SlipFilename  string
}

// Service содержит бизнес-логику сервиса предзаказа.
type Service struct {
	repo    Repository
	catalog *catalog.Catalog
	files   FileStore
}

// NewService создаёт новый сервис с указанными репозиторием, каталогом и хранилищем файлов.
func NewService(repo Repository, c *catalog.Catalog, files FileStore) *Service {
	return &Service{
		repo:    repo,
		catalog: c,
		files:   files,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Catalog возвращает каталог моделей.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// CreateOrder проверяет входные данные, фиксирует цены позиций по каталогу
// и сохраняет заказ. Возвращает назначенный идентификатор.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (int64, error) {
	if len(in.Items) == 0 {
		return 0, ErrNoItems
	}
	if strings.TrimSpace(in.Name) == "" {
		return 0, ErrNameRequired
	}
	if !in.IsPickup && strings.TrimSpace(in.Address) == "" {
		return 0, ErrAddressRequired
	}
	if len(in.SlipImage) == 0 {
		return 0, ErrSlipRequired
	}

	items := make([]model.OrderItem, 0, len(in.Items))
	var total int64
	for _, it := range in.Items {
		design, err := s.catalog.Find(it.Design)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrUnknownDesign, it.Design)
		}
		if !validSize(it.Size) {
			return 0, fmt.Errorf("%w: %s", ErrUnknownSize, it.Size)
		}
		if it.Quantity < 1 {
			return 0, ErrBadQuantity
		}

		items = append(items, model.OrderItem{
			Design:       design.ID,
			Size:         model.Size(it.Size),
			Quantity:     it.Quantity,
			PricePerUnit: design.UnitPrice,
		})
		total += design.UnitPrice * int64(it.Quantity)
	}

	if total != in.DeclaredTotal {
		return 0, ErrTotalMismatch
	}

	address := in.Address
	if in.IsPickup {
		address = ""
	}

	ref, err := s.files.Save(in.SlipImage, in.SlipFilename)
	if err != nil {
		return 0, fmt.Errorf("save slip: %w", err)
	}

	order := &model.Order{
		Name:       in.Name,
		Address:    address,
		IsPickup:   in.IsPickup,
		TotalPrice: total,
		SlipRef:    ref,
		Status:     model.OrderStatusPending,
		Items:      items,
	}

	id, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	return id, nil
}

// ListOrders возвращает все заказы, новые сначала.
func (s *Service) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrders(ctx)
}

// MarkDelivered переводит заказ в статус delivered. Повторный вызов для уже
// доставленного заказа — успех без изменений; обратного перехода не существует.
func (s *Service) MarkDelivered(ctx context.Context, orderID int64) error {
	return s.repo.MarkDelivered(ctx, orderID)
}

// SlipImage возвращает изображение слипа заказа.
func (s *Service) SlipImage(ctx context.Context, orderID int64) ([]byte, error) {
	ref, err := s.repo.GetOrderSlipRef(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.files.Read(ref)
}

// ExportOrders возвращает XLSX-выгрузку всех заказов.
func (s *Service) ExportOrders(ctx context.Context) ([]byte, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return export.Workbook(orders)
}

func validSize(size string) bool {
	for _, s := range model.Sizes() {
		if string(s) == size {
			return true
		}
	}
	return false
}
