package database

// Order queries
const (
	InsertOrderSQL = `
		INSERT INTO orders (user_id, restaurant_id, address_id, status, total_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, menu_item_id, menu_item_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, from_status, to_status, changed_by)
		VALUES ($1, $2, $3, $4)`

	SetOrderPaymentIDSQL = `
		UPDATE orders SET payment_id = $2, updated_at = NOW()
		WHERE id = $1`

	UpdateOrderStatusSQL = `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	AssignOrderDriverSQL = `
		UPDATE orders SET status = 'PREPARING', driver_id = $2, estimated_delivery_time = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'PAID'`

	AcceptOrderSQL = `
		UPDATE orders SET status = 'ON_THE_WAY', driver_id = $2, estimated_delivery_time = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'PREPARING' AND driver_id IS NULL`

	DispatchOrderSQL = `
		UPDATE orders SET status = 'ON_THE_WAY', updated_at = NOW()
		WHERE id = $1 AND status = 'PREPARING' AND driver_id = $2`

	CompleteOrderSQL = `
		UPDATE orders SET status = 'DELIVERED', updated_at = NOW()
		WHERE id = $1 AND status = 'ON_THE_WAY' AND driver_id = $2`

	GetOrderSQL = `
		SELECT id, user_id, restaurant_id, address_id, status, total_price,
			   payment_id, driver_id, estimated_delivery_time, created_at, updated_at
		FROM orders WHERE id = $1`

	GetOrderItemsSQL = `
		SELECT id, order_id, menu_item_id, menu_item_name, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY id ASC`

	ListAvailableOrdersSQL = `
		SELECT id, user_id, restaurant_id, address_id, status, total_price,
			   payment_id, driver_id, estimated_delivery_time, created_at, updated_at
		FROM orders
		WHERE status = 'PREPARING' AND driver_id IS NULL
		ORDER BY created_at ASC`

	ListOrdersByUserSQL = `
		SELECT id, user_id, restaurant_id, address_id, status, total_price,
			   payment_id, driver_id, estimated_delivery_time, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	GetOrderStatusHistorySQL = `
		SELECT COALESCE(from_status, ''), to_status, changed_by, created_at
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC`

	InsertSagaStepSQL = `
		INSERT INTO order_saga_steps (order_id, step, detail)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, step) DO NOTHING`

	GetSagaStepsSQL = `
		SELECT order_id, step, COALESCE(detail, ''), completed_at
		FROM order_saga_steps
		WHERE order_id = $1
		ORDER BY completed_at ASC`

	ListStalledPendingOrdersSQL = `
		SELECT o.id FROM orders o
		WHERE o.status = 'PENDING_PAYMENT'
		  AND o.created_at < $1
		  AND (SELECT COUNT(*) FROM order_saga_steps s WHERE s.order_id = o.id) < $2
		ORDER BY o.created_at ASC`
)

// Restaurant queries
const (
	GetRestaurantSQL = `
		SELECT id, name FROM restaurants WHERE id = $1`

	GetMenuItemsSQL = `
		SELECT id, name, price, stock, available
		FROM menu_items WHERE restaurant_id = $1 ORDER BY id ASC`

	GetMenuItemForCheckSQL = `
		SELECT name, stock, available
		FROM menu_items WHERE id = $1 AND restaurant_id = $2`

	DecreaseStockSQL = `
		UPDATE menu_items SET stock = stock - $3
		WHERE id = $1 AND restaurant_id = $2 AND available AND stock >= $3`
)

// Payment queries
const (
	InsertPaymentSQL = `
		INSERT INTO payments (order_id, user_id, amount, status, reference)
		VALUES ($1, $2, $3, 'PENDING', $4)
		RETURNING id, created_at, updated_at`

	SettlePaymentSQL = `
		UPDATE payments SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`

	GetPaymentSQL = `
		SELECT id, order_id, user_id, amount, status, reference, created_at, updated_at
		FROM payments WHERE id = $1`
)

// Driver queries
const (
	ClaimAvailableDriverSQL = `
		UPDATE drivers SET status = 'busy'
		WHERE id = (
			SELECT id FROM drivers
			WHERE status = 'available'
			ORDER BY id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name`

	ReleaseDriverSQL = `
		UPDATE drivers
		SET status = 'available',
			total_earnings = total_earnings + $2,
			orders_delivered = orders_delivered + 1
		WHERE id = $1 AND status = 'busy'`

	GetDriverSQL = `
		SELECT id, user_id, name, status, total_earnings, orders_delivered, created_at
		FROM drivers WHERE id = $1`

	GetDriverByUserSQL = `
		SELECT id, user_id, name, status, total_earnings, orders_delivered, created_at
		FROM drivers WHERE user_id = $1`
)

// User queries
const (
	GetUserSQL = `
		SELECT id, name, email, role, created_at
		FROM users WHERE id = $1`

	GetAddressesSQL = `
		SELECT id, user_id, label, street, city
		FROM addresses WHERE user_id = $1 ORDER BY id ASC`
)
