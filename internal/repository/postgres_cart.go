package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/domain"
)

// GetCart returns the customer's cart with product snapshots. A customer with
// no lines gets an empty cart, not an error.
func (r *Postgres) GetCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	query := `SELECT ci.product_id, ci.quantity, ci.added_at,
	                 p.id, p.name, p.description, p.price, p.stock, p.category, p.image_url, p.created_at
	          FROM cart_items ci
	          JOIN products p ON p.id = ci.product_id
	          WHERE ci.user_id = $1
	          ORDER BY ci.added_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	cart := &domain.Cart{UserID: userID, UpdatedAt: time.Now()}
	for rows.Next() {
		var line domain.CartLine
		err := rows.Scan(
			&line.ProductID,
			&line.Quantity,
			&line.AddedAt,
			&line.Product.ID,
			&line.Product.Name,
			&line.Product.Description,
			&line.Product.Price,
			&line.Product.Stock,
			&line.Product.Category,
			&line.Product.ImageURL,
			&line.Product.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return cart, nil
}

// AddItem reserves quantity from the product's stock and creates or grows the
// cart line, as one transaction. On insufficient stock nothing changes.
func (r *Postgres) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error) {
	var line *domain.CartLine
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockCart(ctx, tx, userID); err != nil {
			return err
		}

		product, err := lockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		// stock is available-to-reserve: reject before any write
		if product.Stock < quantity {
			return ErrInsufficientStock
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - $1 WHERE id = $2`, quantity, productID); err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		product.Stock -= quantity

		upsert := `INSERT INTO cart_items (id, user_id, product_id, quantity, added_at)
		           VALUES ($1, $2, $3, $4, NOW())
		           ON CONFLICT (user_id, product_id)
		           DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		           RETURNING quantity, added_at`

		line = &domain.CartLine{ProductID: productID, Product: *product}
		err = tx.QueryRowContext(ctx, upsert, uuid.New(), userID, productID, quantity).
			Scan(&line.Quantity, &line.AddedAt)
		if err != nil {
			return fmt.Errorf("upsert cart line: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateItemQuantity reserves the positive difference or releases the
// negative one. Quantity 0 releases everything and deletes the line.
func (r *Postgres) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartLine, error) {
	var line *domain.CartLine
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockCart(ctx, tx, userID); err != nil {
			return err
		}

		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`,
			userID, productID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCartLineNotFound
		}
		if err != nil {
			return fmt.Errorf("lock cart line: %w", err)
		}

		product, err := lockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		diff := quantity - current
		if diff > 0 && product.Stock < diff {
			return ErrInsufficientStock
		}

		// diff < 0 releases; stock - diff adds the released units back
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock - $1 WHERE id = $2`, diff, productID); err != nil {
			return fmt.Errorf("move stock: %w", err)
		}
		product.Stock -= diff

		if quantity == 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID); err != nil {
				return fmt.Errorf("delete cart line: %w", err)
			}
			line = nil
			return nil
		}

		line = &domain.CartLine{ProductID: productID, Quantity: quantity, Product: *product}
		err = tx.QueryRowContext(ctx,
			`UPDATE cart_items SET quantity = $1 WHERE user_id = $2 AND product_id = $3 RETURNING added_at`,
			quantity, userID, productID).Scan(&line.AddedAt)
		if err != nil {
			return fmt.Errorf("update cart line: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveItem releases the full reserved quantity back to stock and deletes
// the line.
func (r *Postgres) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockCart(ctx, tx, userID); err != nil {
			return err
		}

		var quantity int
		err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`,
			userID, productID).Scan(&quantity)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCartLineNotFound
		}
		if err != nil {
			return fmt.Errorf("lock cart line: %w", err)
		}

		if _, err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = stock + $1 WHERE id = $2`, quantity, productID); err != nil {
			return fmt.Errorf("release stock: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID); err != nil {
			return fmt.Errorf("delete cart line: %w", err)
		}
		return nil
	})
}

// lockProduct takes the row-level lock that serializes every stock movement
// for this product.
func lockProduct(ctx context.Context, tx *sql.Tx, productID uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 FOR UPDATE`, productColumns)

	p, err := scanProduct(tx.QueryRowContext(ctx, query, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock product row: %w", err)
	}
	return p, nil
}
