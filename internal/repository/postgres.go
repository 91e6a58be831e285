package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
)

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository.
func NewPostgresOrderRepository(db *sql.DB, logger *logrus.Entry) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `id, customer_id, status, payment_status, subtotal, tax, shipping, total, created_at, updated_at`

// Create inserts the order header and its items in a single transaction.
func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order) (err error) {
	r.logger.WithFields(logrus.Fields{
		"customer_id": order.CustomerID,
		"item_count":  len(order.Items),
	}).Debug("Creating order")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.WithFields(logrus.Fields{
					"customer_id": order.CustomerID,
					"error":       rbErr.Error(),
				}).Error("Failed to rollback order transaction")
			}
		}
	}()

	var (
		orderID   int64
		createdAt time.Time
	)
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, status, payment_status, subtotal, tax, shipping, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		order.CustomerID,
		order.Status,
		order.PaymentStatus,
		order.Subtotal,
		order.Tax,
		order.Shipping,
		order.Total,
	).Scan(&orderID, &createdAt)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			err = apperrors.NewNotFoundError("customer", order.CustomerID)
			return err
		}
		r.logger.WithFields(logrus.Fields{
			"customer_id": order.CustomerID,
			"error":       err.Error(),
		}).Error("Failed to insert order")
		err = fmt.Errorf("could not create order: %w", err)
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, price, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`)
	if err != nil {
		err = fmt.Errorf("could not prepare item statement: %w", err)
		return err
	}
	defer stmt.Close()

	itemIDs := make([]int64, len(order.Items))
	for i, item := range order.Items {
		err = stmt.QueryRowContext(ctx, orderID, item.ProductID, item.Quantity, item.Price, item.Total).Scan(&itemIDs[i])
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"product_id": item.ProductID,
				"item_index": i,
				"error":      err.Error(),
			}).Error("Failed to insert order item")
			if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
				err = apperrors.NewProductNotFoundError(i, item.ProductID)
				return err
			}
			err = fmt.Errorf("could not create order item %d (product %d): %w", i, item.ProductID, err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit order: %w", err)
		return err
	}

	order.ID = orderID
	order.CreatedAt = createdAt
	for i := range order.Items {
		order.Items[i].ID = itemIDs[i]
		order.Items[i].OrderID = orderID
	}

	r.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"total":       order.Total.String(),
	}).Info("Order created successfully")

	return nil
}

// GetByID retrieves an order and its items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	r.logger.WithField("order_id", id).Debug("Fetching order by ID")

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("order", id)
	}
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"order_id": id,
			"error":    err.Error(),
		}).Error("Failed to fetch order")
		return nil, fmt.Errorf("could not retrieve order: %w", err)
	}

	items, err := r.itemsFor(ctx, r.db, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}

	return order, nil
}

// List pages through orders ordered by id, each with its items.
func (r *PostgresOrderRepository) List(ctx context.Context, filter models.OrderListFilter) ([]*models.Order, error) {
	r.logger.WithFields(logrus.Fields{
		"skip":  filter.Skip,
		"limit": filter.Limit,
	}).Debug("Listing orders")

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY id LIMIT $1 OFFSET $2`,
		filter.Limit, filter.Skip,
	)
	if err != nil {
		return nil, fmt.Errorf("could not list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.itemsFor(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
		if order.Items == nil {
			order.Items = []models.OrderItem{}
		}
	}

	return orders, nil
}

// Update locks the order row with SELECT ... FOR UPDATE, applies the change
// and writes it back before the lock is released, so concurrent updates of
// different fields never overwrite each other.
func (r *PostgresOrderRepository) Update(ctx context.Context, id int64, apply func(order *models.Order) error) (_ *models.Order, err error) {
	r.logger.WithField("order_id", id).Debug("Updating order")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.WithFields(logrus.Fields{
					"order_id": id,
					"error":    rbErr.Error(),
				}).Error("Failed to rollback order update")
			}
		}
	}()

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = apperrors.NewNotFoundError("order", id)
		return nil, err
	}
	if err != nil {
		err = fmt.Errorf("could not lock order: %w", err)
		return nil, err
	}

	if err = apply(order); err != nil {
		return nil, err
	}

	var updatedAt time.Time
	err = tx.QueryRowContext(ctx, `
		UPDATE orders
		SET customer_id = $2, status = $3, payment_status = $4,
		    tax = $5, shipping = $6, total = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		id,
		order.CustomerID,
		order.Status,
		order.PaymentStatus,
		order.Tax,
		order.Shipping,
		order.Total,
	).Scan(&updatedAt)
	if err != nil {
		if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
			err = apperrors.NewNotFoundError("customer", order.CustomerID)
			return nil, err
		}
		r.logger.WithFields(logrus.Fields{
			"order_id": id,
			"error":    err.Error(),
		}).Error("Failed to update order")
		err = fmt.Errorf("could not update order: %w", err)
		return nil, err
	}

	items, err := r.itemsFor(ctx, tx, []int64{id})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit order update: %w", err)
		return nil, err
	}

	order.UpdatedAt = &updatedAt
	order.Items = items[id]
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}

	r.logger.WithFields(logrus.Fields{
		"order_id":       id,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	}).Info("Order updated")
	return order, nil
}

// Delete removes an order and its items in one transaction.
func (r *PostgresOrderRepository) Delete(ctx context.Context, id int64) (err error) {
	r.logger.WithField("order_id", id).Debug("Deleting order")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		err = fmt.Errorf("could not delete order items: %w", err)
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		err = fmt.Errorf("could not delete order: %w", err)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = apperrors.NewNotFoundError("order", id)
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit order deletion: %w", err)
		return err
	}

	r.logger.WithField("order_id", id).Info("Order deleted")
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (r *PostgresOrderRepository) itemsFor(ctx context.Context, q queryer, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, total
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`,
		pq.Array(orderIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.Total); err != nil {
			return nil, fmt.Errorf("error scanning order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var updatedAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.Status,
		&order.PaymentStatus,
		&order.Subtotal,
		&order.Tax,
		&order.Shipping,
		&order.Total,
		&order.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if updatedAt.Valid {
		order.UpdatedAt = &updatedAt.Time
	}
	return &order, nil
}
