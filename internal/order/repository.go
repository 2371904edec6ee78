package order

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/artisansalley/backend/internal/catalog"
)

// Filter narrows a listing. Scope fields are mandatory predicates set by the
// service from the actor's role; client-supplied filters never widen them.
type Filter struct {
	Status        *Status
	PaymentStatus *PaymentStatus
	UserID        *uuid.UUID
	ScopeUserID   *uuid.UUID
	ScopeSellerID *uuid.UUID
	Limit         int
	Offset        int
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	Status          *Status
	PaymentStatus   *PaymentStatus
	ShippingAddress *string
	Notes           *string
}

// Expect pins the status pre-image the caller validated against. Update
// applies only while the row still matches, so a transition committed in
// between cannot be silently overwritten.
type Expect struct {
	Status        Status
	PaymentStatus PaymentStatus
}

type Repository interface {
	// Create persists the order, its items, and the stock reservations in a
	// single transaction. On any failure nothing is persisted.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, int, error)
	// Update applies the patch if the row still matches expect; returns
	// ErrOrderChanged when a concurrent transition got there first.
	Update(ctx context.Context, id uuid.UUID, patch Patch, expect Expect) (*Order, error)
	// Cancel flips the order to CANCELLED and restores stock for every item,
	// atomically. Returns NotCancellableError if the order is past cancelling.
	Cancel(ctx context.Context, id uuid.UUID) (*Order, error)
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// How many times a colliding order number is regenerated before giving up.
const maxNumberRetries = 3

func (r *postgresRepository) Create(ctx context.Context, o *Order) error {
	for attempt := 0; ; attempt++ {
		err := r.createOnce(ctx, o)
		if err == nil {
			return nil
		}
		if isOrderNumberCollision(err) && attempt < maxNumberRetries {
			log.Warn().Str("order_number", o.OrderNumber).Msg("repository: order number collision, regenerating")
			o.OrderNumber = GenerateOrderNumber()
			continue
		}
		return err
	}
}

func (r *postgresRepository) createOnce(ctx context.Context, o *Order) (err error) {
	if o.ID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		o.ID = genID
	}

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to rollback after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	queryOrder := `
		INSERT INTO orders (id, order_number, user_id, subtotal, tax_amount, shipping_cost, total_amount,
		                    status, payment_status, shipping_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = tx.Exec(ctx, queryOrder,
		o.ID,
		o.OrderNumber,
		o.UserID,
		o.Subtotal,
		o.TaxAmount,
		o.ShippingCost,
		o.TotalAmount,
		string(o.Status),
		string(o.PaymentStatus),
		o.ShippingAddress,
		o.Notes,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (id, order_id, product_id, product_name, product_price, quantity, subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i := range o.Items {
		item := &o.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
		}
		item.ID = itemID
		item.OrderID = o.ID
		item.CreatedAt = now

		_, err = tx.Exec(ctx, queryItem,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.ProductPrice,
			item.Quantity,
			item.Subtotal,
			item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}

	// Reserve in a stable product order; concurrent orders listing the same
	// products in different sequences would otherwise take row locks in
	// opposite order and deadlock.
	reserve := make([]*OrderItem, len(o.Items))
	for i := range o.Items {
		reserve[i] = &o.Items[i]
	}
	sort.Slice(reserve, func(i, j int) bool {
		return bytes.Compare(reserve[i].ProductID.Bytes(), reserve[j].ProductID.Bytes()) < 0
	})
	for _, item := range reserve {
		if err = reserveStock(ctx, tx, item); err != nil {
			return err
		}
	}

	return nil
}

// reserveStock performs the authoritative check-and-decrement as one atomic
// conditional update. A plain read followed by a write would race with
// concurrent placements of the same product.
func reserveStock(ctx context.Context, q queryer, item *OrderItem) error {
	tag, err := q.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`,
		item.ProductID, item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to reserve stock for product %s: %w", item.ProductID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// The guard did not match: either the product vanished or stock is short.
	var available int
	err = q.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, item.ProductID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("repository: product %s: %w", item.ProductID, catalog.ErrProductNotFound)
		}
		return fmt.Errorf("repository: failed to read stock for product %s: %w", item.ProductID, err)
	}
	return &InsufficientStockError{
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Requested:   item.Quantity,
		Available:   available,
	}
}

func isOrderNumberCollision(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		strings.Contains(pgErr.ConstraintName, "order_number")
}

const orderColumns = `id, order_number, user_id, subtotal, tax_amount, shipping_cost, total_amount,
	status, payment_status, COALESCE(shipping_address, ''), COALESCE(notes, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Subtotal,
		&o.TaxAmount,
		&o.ShippingCost,
		&o.TotalAmount,
		&o.Status,
		&o.PaymentStatus,
		&o.ShippingAddress,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func loadItems(ctx context.Context, q queryer, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, product_price, quantity, subtotal, created_at
		FROM order_items
		WHERE order_id = ANY($1)
	`
	rows, err := q.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[uuid.UUID][]OrderItem)
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductPrice,
			&item.Quantity,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}
	return items, nil
}

func getOrder(ctx context.Context, q queryer, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	items, err := loadItems(ctx, q, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
	return o, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOrder(ctx, r.db, id)
}

func (r *postgresRepository) List(ctx context.Context, f Filter) ([]Order, int, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 4)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// Role scope first: it must hold no matter what the client filters by.
	if f.ScopeUserID != nil {
		where = append(where, "o.user_id = "+arg(*f.ScopeUserID))
	}
	if f.ScopeSellerID != nil {
		where = append(where, `EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = o.id AND p.seller_id = `+arg(*f.ScopeSellerID)+`)`)
	}
	if f.Status != nil {
		where = append(where, "o.status = "+arg(string(*f.Status)))
	}
	if f.PaymentStatus != nil {
		where = append(where, "o.payment_status = "+arg(string(*f.PaymentStatus)))
	}
	if f.UserID != nil {
		where = append(where, "o.user_id = "+arg(*f.UserID))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := `SELECT count(*) FROM orders o` + whereClause
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + orderColumns + ` FROM orders o` +
		whereClause +
		` ORDER BY o.created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	var orderIDs []uuid.UUID
	for rows.Next() {
		o, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order: %w", scanErr)
		}
		o.Items = []OrderItem{}
		orders = append(orders, *o)
		orderIDs = append(orderIDs, o.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) > 0 {
		items, err := loadItems(ctx, r.db, orderIDs)
		if err != nil {
			return nil, 0, err
		}
		for i := range orders {
			if its, ok := items[orders[i].ID]; ok {
				orders[i].Items = its
			}
		}
	}

	return orders, total, nil
}

func (r *postgresRepository) Update(ctx context.Context, id uuid.UUID, patch Patch, expect Expect) (*Order, error) {
	set := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Status != nil {
		set = append(set, "status = "+arg(string(*patch.Status)))
	}
	if patch.PaymentStatus != nil {
		set = append(set, "payment_status = "+arg(string(*patch.PaymentStatus)))
	}
	if patch.ShippingAddress != nil {
		set = append(set, "shipping_address = "+arg(*patch.ShippingAddress))
	}
	if patch.Notes != nil {
		set = append(set, "notes = "+arg(*patch.Notes))
	}
	set = append(set, "updated_at = now()")

	// The status guard makes the patch conditional on the pre-image the
	// caller validated transitions against.
	query := `UPDATE orders SET ` + strings.Join(set, ", ") +
		` WHERE id = ` + arg(id) +
		` AND status = ` + arg(string(expect.Status)) +
		` AND payment_status = ` + arg(string(expect.PaymentStatus)) +
		` RETURNING ` + orderColumns

	o, err := scanOrder(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if checkErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
				return nil, fmt.Errorf("repository: failed to check order %s: %w", id, checkErr)
			}
			if !exists {
				return nil, ErrOrderNotFound
			}
			return nil, ErrOrderChanged
		}
		return nil, fmt.Errorf("repository: failed to update order %s: %w", id, err)
	}

	items, err := loadItems(ctx, r.db, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
	return o, nil
}

func (r *postgresRepository) Cancel(ctx context.Context, id uuid.UUID) (result *Order, err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("repository: failed to rollback after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", id).Msg("repository: failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				result = nil
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	// Lock the order row so concurrent cancels or status updates serialize
	// here; the status guard below is then authoritative.
	var status Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to lock order %s: %w", id, err)
	}

	if !status.Cancellable() {
		return nil, &NotCancellableError{Status: status}
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`,
		string(StatusCancelled), id,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to cancel order %s: %w", id, err)
	}

	// Release every reserved unit back to its product in the same transaction.
	_, err = tx.Exec(ctx, `
		UPDATE products p
		SET stock = p.stock + oi.quantity, updated_at = now()
		FROM order_items oi
		WHERE oi.order_id = $1 AND p.id = oi.product_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to restore stock for order %s: %w", id, err)
	}

	result, err = getOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return result, nil
}
