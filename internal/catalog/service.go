package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/cakestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cakestore-backend/pkg/errors"
)

// Service exposes the read-only storefront catalog.
type Service interface {
	List(ctx context.Context, kind *enums.ProductKind) ([]ProductDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, kind *enums.ProductKind) ([]ProductDTO, error) {
	if kind != nil && !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product kind").
			WithDetails(map[string]any{"kind": string(*kind)})
	}
	products, err := s.repo.ListActive(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, NewProductDTO(p))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": id.String()})
	}
	dto := NewProductDTO(product)
	return &dto, nil
}
