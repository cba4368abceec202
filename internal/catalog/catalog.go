// Package catalog содержит справочник моделей футболок и цен.
package catalog

import (
	"errors"

	"github.com/mmeshcher/preorder-system/internal/model"
)

// ErrDesignNotFound возвращается при запросе модели, отсутствующей в каталоге.
// Идентификаторы моделей выбираются из фиксированного списка, поэтому такая
// ошибка означает нарушение целостности данных, а не ошибку пользователя.
var ErrDesignNotFound = errors.New("design not found")

// DefaultDesignID — модель, подставляемая в новую позицию заказа.
const DefaultDesignID = "1"

// DefaultSize — размер, подставляемый в новую позицию заказа.
const DefaultSize = model.SizeM

// Catalog предоставляет доступ к неизменяемому списку моделей футболок.
// Загружается один раз при старте процесса.
type Catalog struct {
	designs []model.ShirtDesign
	byID    map[string]model.ShirtDesign
}

// New создаёт каталог из переданного списка моделей с сохранением порядка.
func New(designs []model.ShirtDesign) *Catalog {
	c := &Catalog{
		designs: make([]model.ShirtDesign, len(designs)),
		byID:    make(map[string]model.ShirtDesign, len(designs)),
	}
	copy(c.designs, designs)
	for _, d := range designs {
		c.byID[d.ID] = d
	}
	return c
}

// Default возвращает каталог с моделями текущего тиража.
func Default() *Catalog {
	return New([]model.ShirtDesign{
		{
			ID:          "1",
			Name:        "Event crew-neck tee",
			UnitPrice:   750,
			Description: "Crew-neck t-shirt, 100% cotton",
			Images:      []string{"/assets/shirts/design-1/front.jpg", "/assets/shirts/design-1/back.jpg"},
		},
		{
			ID:          "2",
			Name:        "Event polo",
			UnitPrice:   700,
			Description: "Polo shirt, premium cotton",
			Images:      []string{"/assets/shirts/design-2/front.jpg", "/assets/shirts/design-2/back.jpg"},
		},
		{
			ID:          "3",
			Name:        "Event polo, twin pack",
			UnitPrice:   1100,
			Description: "Polo shirt, premium cotton",
			Images:      []string{"/assets/shirts/design-3/front.jpg", "/assets/shirts/design-3/back.jpg"},
		},
		{
			ID:          "4",
			Name:        "Souvenir tee",
			UnitPrice:   500,
			Description: "Oxford premium shirt",
			Images:      []string{"/assets/shirts/design-4/front.jpg", "/assets/shirts/design-4/back.jpg"},
		},
	})
}

// Designs возвращает модели каталога в исходном порядке.
func (c *Catalog) Designs() []model.ShirtDesign {
	res := make([]model.ShirtDesign, len(c.designs))
	copy(res, c.designs)
	return res
}

// Find возвращает модель по идентификатору.
func (c *Catalog) Find(id string) (model.ShirtDesign, error) {
	d, ok := c.byID[id]
	if !ok {
		return model.ShirtDesign{}, ErrDesignNotFound
	}
	return d, nil
}
