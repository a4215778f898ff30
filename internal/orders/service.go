package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/cakestore-backend/pkg/pagination"
)

// Service exposes read access to placed orders.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := NewOrderDTO(*order)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, err
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(rows))}
	for _, row := range rows {
		out.Orders = append(out.Orders, NewOrderDTO(row))
	}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}
