package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/artisansalley/backend/internal/catalog"
	"github.com/artisansalley/backend/internal/notification"
	"github.com/artisansalley/backend/internal/user"
)

type CreateItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type CreateOrderInput struct {
	Items           []CreateItemInput `json:"items"`
	ShippingAddress string            `json:"shipping_address,omitempty"`
	Notes           string            `json:"notes,omitempty"`
}

type ListInput struct {
	Status        *Status
	PaymentStatus *PaymentStatus
	UserID        *uuid.UUID
	Limit         int
	Offset        int
}

type Service interface {
	PlaceOrder(ctx context.Context, actor *user.User, input CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, actor *user.User, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, actor *user.User, input ListInput) ([]Order, int, error)
	UpdateOrder(ctx context.Context, actor *user.User, id uuid.UUID, patch Patch) (*Order, error)
	CancelOrder(ctx context.Context, actor *user.User, id uuid.UUID) (*Order, error)
}

type ServiceConfig struct {
	TxTimeout     time.Duration
	NotifyTimeout time.Duration
}

type service struct {
	orders        Repository
	products      catalog.Repository
	users         user.Repository
	dispatcher    notification.Dispatcher
	txTimeout     time.Duration
	notifyTimeout time.Duration
}

func NewService(orders Repository, products catalog.Repository, users user.Repository,
	dispatcher notification.Dispatcher, cfg ServiceConfig) Service {
	txTimeout := cfg.TxTimeout
	if txTimeout <= 0 {
		txTimeout = 5 * time.Second
	}
	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}
	return &service{
		orders:        orders,
		products:      products,
		users:         users,
		dispatcher:    dispatcher,
		txTimeout:     txTimeout,
		notifyTimeout: notifyTimeout,
	}
}

// PlaceOrder runs the full placement pipeline: validate the requested items,
// price them, then persist order, items and stock reservations in one
// transaction. The stock pre-check here only produces early feedback; the
// authoritative check is the conditional decrement inside the transaction,
// which may still fail if a concurrent order takes the stock first.
func (s *service) PlaceOrder(ctx context.Context, actor *user.User, input CreateOrderInput) (*Order, error) {
	if len(input.Items) == 0 {
		log.Warn().Stringer("user_id", actor.ID).Msg("service: attempt to create order with no items")
		return nil, ErrEmptyOrder
	}

	lines := make([]PriceLine, 0, len(input.Items))
	items := make([]OrderItem, 0, len(input.Items))
	sellerSet := make(map[uuid.UUID]bool)

	for _, in := range input.Items {
		if in.Quantity < 1 {
			return nil, newValidationError("quantity for product %s must be positive, got %d", in.ProductID, in.Quantity)
		}

		product, err := s.products.GetByID(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, fmt.Errorf("product %s: %w", in.ProductID, catalog.ErrProductNotFound)
			}
			return nil, fmt.Errorf("service: failed to resolve product %s: %w", in.ProductID, err)
		}

		if product.Stock < in.Quantity {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Title,
				Requested:   in.Quantity,
				Available:   product.Stock,
			}
		}

		lines = append(lines, PriceLine{UnitPrice: product.Price, Quantity: in.Quantity})
		items = append(items, OrderItem{
			ProductID:    product.ID,
			ProductName:  product.Title,
			ProductPrice: product.Price,
			Quantity:     in.Quantity,
			Subtotal:     LineSubtotal(product.Price, in.Quantity),
		})
		sellerSet[product.SellerID] = true
	}

	totals, err := CalculateTotals(lines)
	if err != nil {
		return nil, newValidationError("%s", err)
	}

	o := &Order{
		OrderNumber:     GenerateOrderNumber(),
		UserID:          actor.ID,
		Subtotal:        totals.Subtotal,
		TaxAmount:       totals.Tax,
		ShippingCost:    totals.Shipping,
		TotalAmount:     totals.Total,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
		Items:           items,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	if err := s.orders.Create(txCtx, o); err != nil {
		log.Warn().Err(err).Stringer("user_id", actor.ID).Msg("service: order placement failed")
		return nil, err
	}

	log.Info().
		Stringer("order_id", o.ID).
		Str("order_number", o.OrderNumber).
		Stringer("user_id", actor.ID).
		Str("total", o.TotalAmount.StringFixed(2)).
		Msg("service: order placed")

	sellerIDs := make([]uuid.UUID, 0, len(sellerSet))
	for id := range sellerSet {
		sellerIDs = append(sellerIDs, id)
	}

	// Post-commit side effects run detached: a slow or failing notification
	// channel must never stall or fail a placed order.
	go s.notifyPlaced(*o, *actor, sellerIDs)

	return o, nil
}

func (s *service) notifyPlaced(o Order, buyer user.User, sellerIDs []uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	err := s.dispatcher.Send(ctx, notification.Event{
		Type:        notification.EventOrderConfirmation,
		Recipient:   buyer.Email,
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		Context: map[string]any{
			"total_amount": o.TotalAmount.StringFixed(2),
			"item_count":   len(o.Items),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("order_number", o.OrderNumber).Msg("service: failed to send order confirmation")
	}

	sellers, err := s.users.GetByIDs(ctx, sellerIDs)
	if err != nil {
		log.Error().Err(err).Str("order_number", o.OrderNumber).Msg("service: failed to resolve sellers for notification")
		return
	}
	for _, seller := range sellers {
		err := s.dispatcher.Send(ctx, notification.Event{
			Type:        notification.EventSellerNewOrder,
			Recipient:   seller.Email,
			OrderID:     o.ID.String(),
			OrderNumber: o.OrderNumber,
			Context: map[string]any{
				"buyer": buyer.Username,
			},
		})
		if err != nil {
			log.Error().Err(err).Str("order_number", o.OrderNumber).Stringer("seller_id", seller.ID).
				Msg("service: failed to send seller notification")
		}
	}
}

func (s *service) GetOrder(ctx context.Context, actor *user.User, id uuid.UUID) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.Role == user.RoleNormalUser && o.UserID != actor.ID {
		return nil, ErrForbidden
	}

	return o, nil
}

// ListOrders applies the actor's role scope before any client-supplied
// filter: normal users only ever see their own orders, sellers only orders
// containing their products, regardless of the filter values passed in.
func (s *service) ListOrders(ctx context.Context, actor *user.User, input ListInput) ([]Order, int, error) {
	f := Filter{
		Status:        input.Status,
		PaymentStatus: input.PaymentStatus,
		UserID:        input.UserID,
		Limit:         input.Limit,
		Offset:        input.Offset,
	}

	switch actor.Role {
	case user.RoleNormalUser:
		id := actor.ID
		f.ScopeUserID = &id
	case user.RoleSeller:
		id := actor.ID
		f.ScopeSellerID = &id
	}

	return s.orders.List(ctx, f)
}

func (s *service) UpdateOrder(ctx context.Context, actor *user.User, id uuid.UUID, patch Patch) (*Order, error) {
	current, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canModify(actor, current) {
		return nil, ErrForbidden
	}

	if patch.Status != nil && *patch.Status != current.Status {
		if !current.Status.CanTransitionTo(*patch.Status) {
			return nil, &InvalidTransitionError{From: current.Status.String(), To: patch.Status.String()}
		}
	}
	if patch.PaymentStatus != nil && *patch.PaymentStatus != current.PaymentStatus {
		if !current.PaymentStatus.CanTransitionTo(*patch.PaymentStatus) {
			return nil, &InvalidTransitionError{From: current.PaymentStatus.String(), To: patch.PaymentStatus.String()}
		}
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	updated, err := s.orders.Update(txCtx, id, patch, Expect{
		Status:        current.Status,
		PaymentStatus: current.PaymentStatus,
	})
	if err != nil {
		if errors.Is(err, ErrOrderChanged) {
			log.Warn().Stringer("order_id", id).Msg("service: order changed concurrently, update rejected")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to update order")
		return nil, err
	}

	log.Info().
		Stringer("order_id", id).
		Stringer("old_status", current.Status).
		Stringer("new_status", updated.Status).
		Msg("service: order updated")

	go s.notifyUpdated(*current, *updated)

	return updated, nil
}

// notifyUpdated compares statuses before and after the committed update and
// fires the matching notifications. Runs post-commit, best-effort.
func (s *service) notifyUpdated(old, updated Order) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	customer, err := s.users.GetByID(ctx, updated.UserID)
	if err != nil {
		log.Error().Err(err).Str("order_number", updated.OrderNumber).
			Msg("service: failed to resolve customer for update notification")
		return
	}

	send := func(eventType notification.EventType, extra map[string]any) {
		err := s.dispatcher.Send(ctx, notification.Event{
			Type:        eventType,
			Recipient:   customer.Email,
			OrderID:     updated.ID.String(),
			OrderNumber: updated.OrderNumber,
			Context:     extra,
		})
		if err != nil {
			log.Error().Err(err).Str("order_number", updated.OrderNumber).Str("type", string(eventType)).
				Msg("service: failed to send update notification")
		}
	}

	if old.Status != updated.Status {
		send(notification.EventStatusUpdate, map[string]any{
			"old_status": old.Status.String(),
			"new_status": updated.Status.String(),
		})
	}
	if old.PaymentStatus != updated.PaymentStatus && updated.PaymentStatus == PaymentPaid {
		send(notification.EventPaymentConfirmation, map[string]any{
			"total_amount": updated.TotalAmount.StringFixed(2),
		})
	}
	if old.Status != updated.Status && updated.Status == StatusShipped {
		send(notification.EventOrderShipped, nil)
	}
}

func (s *service) CancelOrder(ctx context.Context, actor *user.User, id uuid.UUID) (*Order, error) {
	current, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canModify(actor, current) {
		return nil, ErrForbidden
	}

	// Cancellability is checked by the repository under a row lock; checking
	// it here on the fetched copy would be stale under concurrency.
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	cancelled, err := s.orders.Cancel(txCtx, id)
	if err != nil {
		return nil, err
	}

	log.Info().
		Stringer("order_id", id).
		Str("order_number", cancelled.OrderNumber).
		Msg("service: order cancelled, stock restored")

	return cancelled, nil
}

// canModify gates mutations: the owner or an admin. Sellers get no blanket
// rights over other users' orders.
func canModify(actor *user.User, o *Order) bool {
	return actor.IsAdmin() || o.UserID == actor.ID
}
