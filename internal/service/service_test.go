package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmeshcher/preorder-system/internal/catalog"
	"github.com/mmeshcher/preorder-system/internal/model"
	"github.com/mmeshcher/preorder-system/internal/repository"
	"github.com/xuri/excelize/v2"
)

type stubFiles struct {
	saved    []byte
	savedRef string
	saveErr  error

	readData []byte
	readErr  error
}

func (s *stubFiles) Save(data []byte, origName string) (string, error) {
	s.saved = data
	if s.saveErr != nil {
		return "", s.saveErr
	}
	if s.savedRef == "" {
		s.savedRef = "ref-1"
	}
	return s.savedRef, nil
}

func (s *stubFiles) Read(ref string) ([]byte, error) {
	return s.readData, s.readErr
}

type stubRepo struct {
	mu sync.Mutex

	createdOrder *model.Order
	createID     int64
	createErr    error

	orders   []model.Order
	listErr  error
	slipRef  string
	slipErr  error
	statuses map[int64]model.OrderStatus

	transitions int
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateOrder(ctx context.Context, order *model.Order) (int64, error) {
	s.createdOrder = order
	return s.createID, s.createErr
}

func (s *stubRepo) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.orders, s.listErr
}

func (s *stubRepo) GetOrderSlipRef(ctx context.Context, orderID int64) (string, error) {
	return s.slipRef, s.slipErr
}

// MarkDelivered повторяет семантику compare-and-set реального репозитория.
func (s *stubRepo) MarkDelivered(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.statuses[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if status == model.OrderStatusPending {
		s.statuses[orderID] = model.OrderStatusDelivered
		s.transitions++
	}
	return nil
}

func validInput() CreateOrderInput {
	return CreateOrderInput{
		Name:     "Somchai",
		Address:  "123 Sukhumvit Rd",
		IsPickup: false,
		Items: []InputItem{
			{Design: "1", Size: "M", Quantity: 2},
			{Design: "4", Size: "L", Quantity: 1},
		},
		DeclaredTotal: 2000,
		SlipImage:     []byte{0xff, 0xd8},
		SlipFilename:  "slip.jpg",
	}
}

func TestCreateOrder_SnapshotsPrices(t *testing.T) {
	repo := &stubRepo{createID: 7}
	files := &stubFiles{savedRef: "slip-ref"}
	svc := NewService(repo, catalog.Default(), files)

	id, err := svc.CreateOrder(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if id != 7 {
		t.Fatalf("id = %d, want 7", id)
	}

	o := repo.createdOrder
	if o == nil {
		t.Fatalf("order was not passed to repository")
	}
	if o.TotalPrice != 2000 {
		t.Fatalf("total = %d, want 2000", o.TotalPrice)
	}
	if o.Status != model.OrderStatusPending {
		t.Fatalf("status = %q, want pending", o.Status)
	}
	if o.SlipRef != "slip-ref" {
		t.Fatalf("slip ref = %q", o.SlipRef)
	}
	if len(o.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(o.Items))
	}
	if o.Items[0].PricePerUnit != 750 || o.Items[1].PricePerUnit != 500 {
		t.Fatalf("unit prices = %d, %d; want 750, 500",
			o.Items[0].PricePerUnit, o.Items[1].PricePerUnit)
	}
	if !bytes.Equal(files.saved, []byte{0xff, 0xd8}) {
		t.Fatalf("slip bytes not saved")
	}
}

func TestCreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(in *CreateOrderInput)
		want    error
	}{
		{
			name:    "no items",
			prepare: func(in *CreateOrderInput) { in.Items = nil },
			want:    ErrNoItems,
		},
		{
			name:    "blank name",
			prepare: func(in *CreateOrderInput) { in.Name = "  " },
			want:    ErrNameRequired,
		},
		{
			name:    "blank address for shipping",
			prepare: func(in *CreateOrderInput) { in.Address = "" },
			want:    ErrAddressRequired,
		},
		{
			name:    "no slip",
			prepare: func(in *CreateOrderInput) { in.SlipImage = nil },
			want:    ErrSlipRequired,
		},
		{
			name:    "unknown design",
			prepare: func(in *CreateOrderInput) { in.Items[0].Design = "99" },
			want:    ErrUnknownDesign,
		},
		{
			name:    "unknown size",
			prepare: func(in *CreateOrderInput) { in.Items[0].Size = "XS" },
			want:    ErrUnknownSize,
		},
		{
			name:    "zero quantity",
			prepare: func(in *CreateOrderInput) { in.Items[0].Quantity = 0 },
			want:    ErrBadQuantity,
		},
		{
			name:    "declared total mismatch",
			prepare: func(in *CreateOrderInput) { in.DeclaredTotal = 1999 },
			want:    ErrTotalMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{}
			svc := NewService(repo, catalog.Default(), &stubFiles{})

			in := validInput()
			tt.prepare(&in)

			_, err := svc.CreateOrder(context.Background(), in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("CreateOrder error = %v, want %v", err, tt.want)
			}
			if !IsRejection(err) {
				t.Fatalf("IsRejection(%v) = false, want true", err)
			}
			if repo.createdOrder != nil {
				t.Fatalf("rejected order reached repository")
			}
		})
	}
}

func TestCreateOrder_PickupClearsAddress(t *testing.T) {
	repo := &stubRepo{createID: 1}
	svc := NewService(repo, catalog.Default(), &stubFiles{})

	in := validInput()
	in.IsPickup = true
	in.Address = "leftover text"

	if _, err := svc.CreateOrder(context.Background(), in); err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if repo.createdOrder.Address != "" {
		t.Fatalf("address = %q, want empty for pickup", repo.createdOrder.Address)
	}
}

func TestMarkDelivered_Idempotent(t *testing.T) {
	repo := &stubRepo{
		statuses: map[int64]model.OrderStatus{7: model.OrderStatusPending},
	}
	svc := NewService(repo, catalog.Default(), &stubFiles{})

	if err := svc.MarkDelivered(context.Background(), 7); err != nil {
		t.Fatalf("first MarkDelivered error: %v", err)
	}
	if err := svc.MarkDelivered(context.Background(), 7); err != nil {
		t.Fatalf("second MarkDelivered error: %v", err)
	}

	if repo.statuses[7] != model.OrderStatusDelivered {
		t.Fatalf("status = %q, want delivered", repo.statuses[7])
	}
	if repo.transitions != 1 {
		t.Fatalf("transitions = %d, want 1", repo.transitions)
	}
}

func TestMarkDelivered_ConcurrentSingleTransition(t *testing.T) {
	repo := &stubRepo{
		statuses: map[int64]model.OrderStatus{7: model.OrderStatusPending},
	}
	svc := NewService(repo, catalog.Default(), &stubFiles{})

	const workers = 10
	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- svc.MarkDelivered(context.Background(), 7)
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("MarkDelivered error: %v", err)
		}
	}
	if repo.transitions != 1 {
		t.Fatalf("transitions = %d, want exactly 1", repo.transitions)
	}
}

func TestMarkDelivered_UnknownOrder(t *testing.T) {
	repo := &stubRepo{statuses: map[int64]model.OrderStatus{}}
	svc := NewService(repo, catalog.Default(), &stubFiles{})

	err := svc.MarkDelivered(context.Background(), 99)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestSlipImage(t *testing.T) {
	repo := &stubRepo{slipRef: "ref-1"}
	files := &stubFiles{readData: []byte("image bytes")}
	svc := NewService(repo, catalog.Default(), files)

	data, err := svc.SlipImage(context.Background(), 1)
	if err != nil {
		t.Fatalf("SlipImage error: %v", err)
	}
	if string(data) != "image bytes" {
		t.Fatalf("data = %q", data)
	}
}

func TestSlipImage_OrderNotFound(t *testing.T) {
	repo := &stubRepo{slipErr: repository.ErrOrderNotFound}
	svc := NewService(repo, catalog.Default(), &stubFiles{})

	_, err := svc.SlipImage(context.Background(), 1)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestExportOrders_ProducesWorkbook(t *testing.T) {
	repo := &stubRepo{
		orders: []model.Order{
			{
				ID:         2,
				Name:       "Somchai",
				IsPickup:   true,
				TotalPrice: 1500,
				Status:     model.OrderStatusPending,
				Items: []model.OrderItem{
					{Design: "1", Size: model.SizeM, Quantity: 2, PricePerUnit: 750},
				},
			},
		},
	}
	svc := NewService(repo, catalog.Default(), &stubFiles{})

	data, err := svc.ExportOrders(context.Background())
	if err != nil {
		t.Fatalf("ExportOrders error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("Orders", "C2")
	if err != nil {
		t.Fatalf("get cell: %v", err)
	}
	if got != "Somchai" {
		t.Fatalf("C2 = %q, want Somchai", got)
	}
}
