package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/PrasangJhawar/storefront/internal/domain"
)

// orderPlacedPayload is the outbox event body written with each order.
type orderPlacedPayload struct {
	OrderID     uuid.UUID          `json:"order_id"`
	UserID      uuid.UUID          `json:"user_id"`
	Items       []domain.OrderItem `json:"items"`
	TotalAmount float64            `json:"total_amount"`
	PlacedAt    time.Time          `json:"placed_at"`
}

// CreateOrderFromCart converts the customer's cart into an order as a single
// transaction: load lines, snapshot prices, insert order and items, delete
// the lines, write the outbox event. The stock was already decremented when
// the lines were reserved, so this path never touches the ledger — the
// reservation is consumed, not re-checked.
func (r *Postgres) CreateOrderFromCart(ctx context.Context, userID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockCart(ctx, tx, userID); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id`,
			userID)
		if err != nil {
			return fmt.Errorf("query cart lines: %w", err)
		}

		productIDs := make([]uuid.UUID, 0, 8)
		quantities := make(map[uuid.UUID]int, 8)
		for rows.Next() {
			var productID uuid.UUID
			var quantity int
			if err := rows.Scan(&productID, &quantity); err != nil {
				rows.Close()
				return fmt.Errorf("scan cart line: %w", err)
			}
			productIDs = append(productIDs, productID)
			quantities[productID] = quantity
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("row iteration error: %w", err)
		}
		rows.Close()

		if len(productIDs) == 0 {
			return ErrEmptyCart
		}

		// Lock the referenced products in ascending id order (two checkouts
		// sharing products cannot deadlock) and capture current prices.
		ids := make([]string, len(productIDs))
		for i, id := range productIDs {
			ids[i] = id.String()
		}
		priceRows, err := tx.QueryContext(ctx,
			`SELECT id, name, price FROM products WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`,
			pq.Array(ids))
		if err != nil {
			return fmt.Errorf("lock products for snapshot: %w", err)
		}

		items := make([]domain.OrderItem, 0, len(productIDs))
		var total float64
		for priceRows.Next() {
			item := domain.OrderItem{ID: uuid.New()}
			var price float64
			if err := priceRows.Scan(&item.ProductID, &item.ProductName, &price); err != nil {
				priceRows.Close()
				return fmt.Errorf("scan price snapshot: %w", err)
			}
			item.Quantity = quantities[item.ProductID]
			item.Price = price
			total += float64(item.Quantity) * price
			items = append(items, item)
		}
		if err := priceRows.Err(); err != nil {
			priceRows.Close()
			return fmt.Errorf("row iteration error: %w", err)
		}
		priceRows.Close()

		// a cart line whose product row is gone is a data-integrity failure
		if len(items) != len(productIDs) {
			return ErrProductVanished
		}

		order = &domain.Order{
			ID:          uuid.New(),
			UserID:      userID,
			TotalAmount: total,
			Status:      domain.OrderStatusProcessing,
			Items:       items,
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (id, user_id, total_amount, status, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 RETURNING created_at`,
			order.ID, order.UserID, order.TotalAmount, order.Status).Scan(&order.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range order.Items {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				item.ID, order.ID, item.ProductID, item.ProductName, item.Quantity, item.Price)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		// the reservations are spent: delete the lines with the order
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		payload, err := json.Marshal(orderPlacedPayload{
			OrderID:     order.ID,
			UserID:      order.UserID,
			Items:       order.Items,
			TotalAmount: order.TotalAmount,
			PlacedAt:    order.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal outbox payload: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_events (order_id, event_type, payload, created_at)
			 VALUES ($1, $2, $3, NOW())`,
			order.ID, "OrderPlaced", payload); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Postgres) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	query := `SELECT id, user_id, total_amount, status, created_at
	          FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.TotalAmount,
			&order.Status,
			&order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// GetOrder returns the order with its items, or ErrOrderNotFound when the
// order is absent or owned by a different customer.
func (r *Postgres) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, total_amount, status, created_at
		 FROM orders WHERE id = $1 AND user_id = $2`,
		orderID, userID).Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&order.Status,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, product_name, quantity, price
		 FROM order_items WHERE order_id = $1 ORDER BY product_id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &order, nil
}
