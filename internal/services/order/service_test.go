package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"food-delivery/internal/apperr"
	"food-delivery/internal/config"
	"food-delivery/internal/logger"
	"food-delivery/internal/models"
)

// fakeRepo mirrors the conditional-write semantics of the Postgres
// repository in memory, mutex-guarded so concurrent accept races behave like
// the real guarded UPDATEs.
type fakeRepo struct {
	mu      sync.Mutex
	nextID  int64
	orders  map[int64]*models.Order
	steps   map[int64][]models.SagaStepRecord
	history map[int64][]models.OrderStatusLogEntry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:  make(map[int64]*models.Order),
		steps:   make(map[int64][]models.SagaStepRecord),
		history: make(map[int64][]models.OrderStatusLogEntry),
	}
}

func (r *fakeRepo) InsertOrder(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	order.ID = r.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	r.orders[order.ID] = &copied
	r.logLocked(order.ID, "", order.Status, "order-service")
	return nil
}

func (r *fakeRepo) logLocked(orderID int64, from, to models.OrderStatus, by string) {
	r.history[orderID] = append(r.history[orderID], models.OrderStatusLogEntry{
		FromStatus: from, ToStatus: to, ChangedBy: by, ChangedAt: time.Now(),
	})
}

func (r *fakeRepo) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("order %d not found", orderID)
	}
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	return &copied, nil
}

func (r *fakeRepo) SetPaymentID(ctx context.Context, orderID, paymentID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return apperr.NotFound("order %d not found", orderID)
	}
	order.PaymentID = &paymentID
	return nil
}

func (r *fakeRepo) MarkPaid(ctx context.Context, orderID int64) (bool, error) {
	return r.conditional(orderID, models.StatusPendingPayment, models.StatusPaid, "payment-callback")
}

func (r *fakeRepo) MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error) {
	return r.conditional(orderID, models.StatusPendingPayment, models.StatusPaymentFailed, "payment-callback")
}

func (r *fakeRepo) conditional(orderID int64, from, to models.OrderStatus, by string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	r.logLocked(orderID, from, to, by)
	return true, nil
}

func (r *fakeRepo) AssignDriver(ctx context.Context, orderID, driverID int64, eta time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok || order.Status != models.StatusPaid {
		return false, nil
	}
	order.Status = models.StatusPreparing
	order.DriverID = &driverID
	order.EstimatedDeliveryTime = &eta
	r.logLocked(orderID, models.StatusPaid, models.StatusPreparing, "orchestrator")
	return true, nil
}

func (r *fakeRepo) MarkPreparing(ctx context.Context, orderID int64) (bool, error) {
	return r.conditional(orderID, models.StatusPaid, models.StatusPreparing, "orchestrator")
}

func (r *fakeRepo) AcceptOrder(ctx context.Context, orderID, driverID int64, eta time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return apperr.NotFound("order %d not found", orderID)
	}
	if order.Status != models.StatusPreparing {
		return apperr.InvalidState("order %d is %s, not PREPARING", orderID, order.Status)
	}
	if order.DriverID != nil {
		return apperr.Conflict("order %d was already accepted by another driver", orderID)
	}
	order.Status = models.StatusOnTheWay
	order.DriverID = &driverID
	order.EstimatedDeliveryTime = &eta
	r.logLocked(orderID, models.StatusPreparing, models.StatusOnTheWay, "driver")
	return nil
}

func (r *fakeRepo) DispatchOrder(ctx context.Context, orderID, driverID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok || order.Status != models.StatusPreparing || order.DriverID == nil || *order.DriverID != driverID {
		return false, nil
	}
	order.Status = models.StatusOnTheWay
	r.logLocked(orderID, models.StatusPreparing, models.StatusOnTheWay, "auto-dispatch")
	return true, nil
}

func (r *fakeRepo) CompleteOrder(ctx context.Context, orderID, driverID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return apperr.NotFound("order %d not found", orderID)
	}
	if order.Status != models.StatusOnTheWay {
		return apperr.InvalidState("order %d is %s, not ON_THE_WAY", orderID, order.Status)
	}
	if order.DriverID == nil || *order.DriverID != driverID {
		return apperr.Forbidden("order %d is assigned to a different driver", orderID)
	}
	order.Status = models.StatusDelivered
	r.logLocked(orderID, models.StatusOnTheWay, models.StatusDelivered, "driver")
	return nil
}

func (r *fakeRepo) ListAvailableOrders(ctx context.Context) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, order := range r.orders {
		if order.Status == models.StatusPreparing && order.DriverID == nil {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, order := range r.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetStatusHistory(ctx context.Context, orderID int64) ([]models.OrderStatusLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.OrderStatusLogEntry(nil), r.history[orderID]...), nil
}

func (r *fakeRepo) RecordSagaStep(ctx context.Context, orderID int64, step, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.steps[orderID] {
		if existing.Step == step {
			return nil
		}
	}
	r.steps[orderID] = append(r.steps[orderID], models.SagaStepRecord{
		OrderID: orderID, Step: step, Detail: detail, CompletedAt: time.Now(),
	})
	return nil
}

func (r *fakeRepo) GetSagaSteps(ctx context.Context, orderID int64) ([]models.SagaStepRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SagaStepRecord(nil), r.steps[orderID]...), nil
}

func (r *fakeRepo) ListStalledPendingOrders(ctx context.Context, olderThan time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, order := range r.orders {
		if order.Status == models.StatusPendingPayment && len(r.steps[id]) < sagaStepCount {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeUserClient struct {
	users     map[int64]models.UserSummary
	addresses map[int64][]models.Address
}

func (c *fakeUserClient) GetUser(ctx context.Context, userID int64) (*models.UserSummary, error) {
	user, ok := c.users[userID]
	if !ok {
		return nil, apperr.NotFound("user %d not found", userID)
	}
	return &user, nil
}

func (c *fakeUserClient) GetAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	return c.addresses[userID], nil
}

type fakeRestaurantClient struct {
	mu          sync.Mutex
	menu        *models.Menu
	checkErr    error
	decreaseErr error
	decreased   [][]models.StockLine
}

func (c *fakeRestaurantClient) GetMenu(ctx context.Context, restaurantID int64) (*models.Menu, error) {
	if c.menu == nil {
		return nil, apperr.NotFound("restaurant %d not found", restaurantID)
	}
	return c.menu, nil
}

func (c *fakeRestaurantClient) CheckStock(ctx context.Context, restaurantID int64, items []models.StockLine) error {
	return c.checkErr
}

func (c *fakeRestaurantClient) DecreaseStock(ctx context.Context, restaurantID int64, items []models.StockLine) error {
	if c.decreaseErr != nil {
		return c.decreaseErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decreased = append(c.decreased, items)
	return nil
}

type fakePaymentClient struct {
	mu     sync.Mutex
	err    error
	nextID int64
	calls  int
}

func (c *fakePaymentClient) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	c.nextID++
	return &models.CreatePaymentResponse{PaymentID: c.nextID, Reference: "ref"}, nil
}

type fakeDriverClient struct {
	mu          sync.Mutex
	assignErr   error
	driverID    int64
	assignCalls int
	released    []models.ReleaseDriverRequest
}

func (c *fakeDriverClient) AssignDriver(ctx context.Context, orderID int64) (*models.DriverAssignment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignCalls++
	if c.assignErr != nil {
		return nil, c.assignErr
	}
	return &models.DriverAssignment{DriverID: c.driverID, DriverName: "Agus"}, nil
}

func (c *fakeDriverClient) ReleaseDriver(ctx context.Context, driverID int64, req models.ReleaseDriverRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, req)
	return nil
}

type testEnv struct {
	service     *Service
	repo        *fakeRepo
	users       *fakeUserClient
	restaurants *fakeRestaurantClient
	payments    *fakePaymentClient
	drivers     *fakeDriverClient
	timers      *[]func()
}

func price(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func newTestEnv() *testEnv {
	repo := newFakeRepo()
	users := &fakeUserClient{
		users: map[int64]models.UserSummary{1: {ID: 1, Name: "Budi"}},
		addresses: map[int64][]models.Address{
			1: {{ID: 7, UserID: 1, Label: "home", Street: "Jl. Sudirman No. 10", City: "Jakarta"}},
		},
	}
	restaurants := &fakeRestaurantClient{
		menu: &models.Menu{
			RestaurantID:   2,
			RestaurantName: "Warung Nusantara",
			Items: []models.MenuItem{
				{ID: 10, Name: "Nasi Goreng Spesial", Price: price(25000), Stock: 50, Available: true},
				{ID: 11, Name: "Sate Ayam", Price: price(35000), Stock: 40, Available: true},
				{ID: 12, Name: "Gado-Gado", Price: price(20000), Stock: 0, Available: true},
				{ID: 13, Name: "Es Teh", Price: price(5000), Stock: 10, Available: false},
			},
		},
	}
	payments := &fakePaymentClient{}
	drivers := &fakeDriverClient{driverID: 77}

	service := NewService(repo, users, restaurants, payments, drivers, nil,
		logger.New("order-service-test"), config.OrchestrationConfig{
			ClientTimeoutSeconds: 5,
			DeliveryETAMinutes:   30,
			AutoDispatchSeconds:  1,
		})

	// Capture timers instead of arming them so tests fire them explicitly.
	timers := &[]func(){}
	service.schedule = func(d time.Duration, f func()) {
		*timers = append(*timers, f)
	}

	return &testEnv{
		service:     service,
		repo:        repo,
		users:       users,
		restaurants: restaurants,
		payments:    payments,
		drivers:     drivers,
		timers:      timers,
	}
}

func validRequest() *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		UserID:       1,
		RestaurantID: 2,
		AddressID:    7,
		Items: []models.CreateOrderItem{
			{MenuItemID: 10, Quantity: 2},
			{MenuItemID: 11, Quantity: 1},
		},
	}
}

func TestCreateOrder_Success(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	resp, err := env.service.CreateOrder(ctx, validRequest(), "req-1")
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}

	if resp.Status != models.StatusPendingPayment {
		t.Errorf("status = %s, want PENDING_PAYMENT", resp.Status)
	}
	if !resp.TotalPrice.Equal(price(85000)) {
		t.Errorf("total_price = %s, want 85000", resp.TotalPrice)
	}
	if resp.PaymentID == nil {
		t.Fatal("expected payment_id to be set")
	}

	order, err := env.repo.GetOrder(ctx, resp.OrderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.PaymentID == nil || *order.PaymentID != *resp.PaymentID {
		t.Errorf("persisted payment_id = %v, want %d", order.PaymentID, *resp.PaymentID)
	}

	// Snapshot invariant: item prices come from the menu at creation time.
	if len(order.Items) != 2 {
		t.Fatalf("persisted %d items, want 2", len(order.Items))
	}
	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !sum.Equal(order.TotalPrice) {
		t.Errorf("sum of item prices %s != total_price %s", sum, order.TotalPrice)
	}
	if order.Items[0].MenuItemName != "Nasi Goreng Spesial" || !order.Items[0].Price.Equal(price(25000)) {
		t.Errorf("unexpected first item snapshot: %+v", order.Items[0])
	}

	// Stock was committed for the ordered quantities.
	if len(env.restaurants.decreased) != 1 {
		t.Fatalf("stock decremented %d times, want 1", len(env.restaurants.decreased))
	}
	lines := env.restaurants.decreased[0]
	if len(lines) != 2 || lines[0].Quantity != 2 || lines[1].Quantity != 1 {
		t.Errorf("unexpected decrement lines: %+v", lines)
	}

	steps, _ := env.repo.GetSagaSteps(ctx, resp.OrderID)
	if len(steps) != sagaStepCount {
		t.Errorf("recorded %d saga steps, want %d", len(steps), sagaStepCount)
	}
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(req *models.CreateOrderRequest)
		wantMsg string
	}{
		{
			name:    "item not found",
			mutate:  func(req *models.CreateOrderRequest) { req.Items[0].MenuItemID = 999 },
			wantMsg: "not found",
		},
		{
			name:    "item unavailable",
			mutate:  func(req *models.CreateOrderRequest) { req.Items[0].MenuItemID = 13 },
			wantMsg: "unavailable",
		},
		{
			name:    "insufficient stock",
			mutate:  func(req *models.CreateOrderRequest) { req.Items[0] = models.CreateOrderItem{MenuItemID: 12, Quantity: 3} },
			wantMsg: "insufficient stock",
		},
		{
			name:    "zero quantity",
			mutate:  func(req *models.CreateOrderRequest) { req.Items[0].Quantity = 0 },
			wantMsg: "quantity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			req := validRequest()
			tt.mutate(req)

			_, err := env.service.CreateOrder(context.Background(), req, "req-1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("kind = %v, want Validation (err: %v)", apperr.KindOf(err), err)
			}

			// All-or-nothing: no order rows may exist.
			if len(env.repo.orders) != 0 {
				t.Errorf("found %d persisted orders, want 0", len(env.repo.orders))
			}
			if env.payments.calls != 0 {
				t.Errorf("payment collaborator called %d times, want 0", env.payments.calls)
			}
		})
	}
}

func TestCreateOrder_UnknownUser(t *testing.T) {
	env := newTestEnv()
	req := validRequest()
	req.UserID = 42

	_, err := env.service.CreateOrder(context.Background(), req, "req-1")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("kind = %v, want NotFound (err: %v)", apperr.KindOf(err), err)
	}
}

func TestCreateOrder_PaymentFailureLeavesOrderPending(t *testing.T) {
	env := newTestEnv()
	env.payments.err = apperr.Upstream("payment service unreachable", nil)

	_, err := env.service.CreateOrder(context.Background(), validRequest(), "req-1")
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("kind = %v, want Upstream (err: %v)", apperr.KindOf(err), err)
	}

	// The order row survives with no payment id and no stock decrement; there
	// is no rollback of completed steps.
	if len(env.repo.orders) != 1 {
		t.Fatalf("found %d orders, want 1", len(env.repo.orders))
	}
	for _, order := range env.repo.orders {
		if order.Status != models.StatusPendingPayment {
			t.Errorf("status = %s, want PENDING_PAYMENT", order.Status)
		}
		if order.PaymentID != nil {
			t.Errorf("payment_id = %v, want nil", order.PaymentID)
		}
	}
	if len(env.restaurants.decreased) != 0 {
		t.Errorf("stock decremented %d times, want 0", len(env.restaurants.decreased))
	}
}

// flakyStepRepo fails a chosen saga-step ledger write a fixed number of
// times before behaving normally.
type flakyStepRepo struct {
	*fakeRepo
	failStep     string
	failuresLeft int
}

func (r *flakyStepRepo) RecordSagaStep(ctx context.Context, orderID int64, step, detail string) error {
	if step == r.failStep && r.failuresLeft > 0 {
		r.failuresLeft--
		return errors.New("saga step write refused")
	}
	return r.fakeRepo.RecordSagaStep(ctx, orderID, step, detail)
}

func TestCreateOrder_TransientStepLedgerFailure(t *testing.T) {
	env := newTestEnv()
	env.service.repo = &flakyStepRepo{fakeRepo: env.repo, failStep: models.SagaStepStockDecremented, failuresLeft: 1}
	ctx := context.Background()

	resp, err := env.service.CreateOrder(ctx, validRequest(), "req-1")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if len(env.restaurants.decreased) != 1 {
		t.Fatalf("stock decremented %d times, want 1", len(env.restaurants.decreased))
	}
	steps, _ := env.repo.GetSagaSteps(ctx, resp.OrderID)
	if len(steps) != sagaStepCount {
		t.Fatalf("recorded %d saga steps, want %d", len(steps), sagaStepCount)
	}

	// With the ledger complete, a reconciler pass must not re-run anything.
	rec := NewReconciler(env.service, logger.New("order-service-test"))
	if err := rec.reconcileOrder(ctx, resp.OrderID, "req-reconcile"); err != nil {
		t.Fatalf("reconcileOrder: %v", err)
	}
	if len(env.restaurants.decreased) != 1 {
		t.Errorf("stock decremented %d times after reconcile, want 1", len(env.restaurants.decreased))
	}
	if env.payments.calls != 1 {
		t.Errorf("payment calls = %d, want 1", env.payments.calls)
	}
}

func TestCreateOrder_PersistentStepLedgerFailureAborts(t *testing.T) {
	env := newTestEnv()
	env.service.repo = &flakyStepRepo{fakeRepo: env.repo, failStep: models.SagaStepStockDecremented, failuresLeft: 2}

	// A completed step whose ledger write cannot be persisted must fail the
	// creation instead of reporting success with a hole in the ledger.
	_, err := env.service.CreateOrder(context.Background(), validRequest(), "req-1")
	if err == nil {
		t.Fatal("expected creation to fail when the step ledger cannot be written")
	}
}

func createPendingOrder(t *testing.T, env *testEnv) int64 {
	t.Helper()
	resp, err := env.service.CreateOrder(context.Background(), validRequest(), "req-setup")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return resp.OrderID
}

func TestPaymentCallback_SuccessAssignsDriver(t *testing.T) {
	env := newTestEnv()
	orderID := createPendingOrder(t, env)
	ctx := context.Background()

	err := env.service.HandlePaymentCallback(ctx, &models.PaymentCallbackRequest{
		OrderID: orderID, PaymentStatus: "SUCCESS",
	}, "req-cb")
	if err != nil {
		t.Fatalf("HandlePaymentCallback: %v", err)
	}

	order, _ := env.repo.GetOrder(ctx, orderID)
	if order.Status != models.StatusPreparing {
		t.Errorf("status = %s, want PREPARING", order.Status)
	}
	if order.DriverID == nil || *order.DriverID != 77 {
		t.Errorf("driver_id = %v, want 77", order.DriverID)
	}
	if order.EstimatedDeliveryTime == nil {
		t.Error("expected estimated_delivery_time to be set")
	}
	if len(*env.timers) != 1 {
		t.Errorf("scheduled %d auto-dispatch timers, want 1", len(*env.timers))
	}
}

func TestPaymentCallback_NoDriverAvailable(t *testing.T) {
	env := newTestEnv()
	env.drivers.assignErr = apperr.NotFound("no available driver")
	orderID := createPendingOrder(t, env)
	ctx := context.Background()

	err := env.service.HandlePaymentCallback(ctx, &models.PaymentCallbackRequest{
		OrderID: orderID, PaymentStatus: "SUCCESS",
	}, "req-cb")
	if err != nil {
		t.Fatalf("HandlePaymentCallback: %v", err)
	}

	order, _ := env.repo.GetOrder(ctx, orderID)
	if order.Status != models.StatusPreparing {
		t.Errorf("status = %s, want PREPARING", order.Status)
	}
	if order.DriverID != nil {
		t.Errorf("driver_id = %v, want nil", order.DriverID)
	}
	if len(*env.timers) != 0 {
		t.Errorf("scheduled %d timers, want 0", len(*env.timers))
	}

	// The order is visible in the available pool for self-assignment.
	available, _ := env.repo.ListAvailableOrders(ctx)
	if len(available) != 1 {
		t.Errorf("available pool has %d orders, want 1", len(available))
	}
}

func TestPaymentCallback_FailureIsTerminal(t *testing.T) {
	env := newTestEnv()
	orderID := createPendingOrder(t, env)
	ctx := context.Background()

	err := env.service.HandlePaymentCallback(ctx, &models.PaymentCallbackRequest{
		OrderID: orderID, PaymentStatus: "FAILED",
	}, "req-cb")
	if err != nil {
		t.Fatalf("HandlePaymentCallback: %v", err)
	}

	order, _ := env.repo.GetOrder(ctx, orderID)
	if order.Status != models.StatusPaymentFailed {
		t.Errorf("status = %s, want PAYMENT_FAILED", order.Status)
	}
	if env.drivers.assignCalls != 0 {
		t.Errorf("driver assignment called %d times, want 0", env.drivers.assignCalls)
	}

	// PAYMENT_FAILED is absorbing: a late SUCCESS callback is a no-op.
	if err := env.service.HandlePaymentCallback(ctx, &models.PaymentCallbackRequest{
		OrderID: orderID, PaymentStatus: "SUCCESS",
	}, "req-cb2"); err != nil {
		t.Fatalf("late callback: %v", err)
	}
	order, _ = env.repo.GetOrder(ctx, orderID)
	if order.Status != models.StatusPaymentFailed {
		t.Errorf("status after late SUCCESS = %s, want PAYMENT_FAILED", order.Status)
	}
}

func TestPaymentCallback_DuplicateSuccessIsNoOp(t *testing.T) {
	env := newTestEnv()
	orderID := createPendingOrder(t, env)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.service.HandlePaymentCallback(ctx, &models.PaymentCallbackRequest{
			OrderID: orderID, PaymentStatus: "SUCCESS",
		}, "req-cb"); err != nil {
			t.Fatalf("callback %d: %v", i, err)
		}
	}

	if env.drivers.assignCalls != 1 {
		t.Errorf("driver assignment called %d times, want 1", env.drivers.assignCalls)
	}
	if len(*env.timers) != 1 {
		t.Errorf("scheduled %d auto-dispatch timers, want 1", len(*env.timers))
	}
}

func TestAutoDispatch_FiresAndGuards(t *testing.T) {
	env := newTestEnv()
	orderID := createPendingOrder(t, env)
	ctx := context.Background()

	if err := env.service.HandlePaymentCallback(ctx, &models.PaymentCallbackRequest{
		OrderID: orderID, PaymentStatus: "SUCCESS",
	}, "req-cb"); err != nil {
		t.Fatalf("HandlePaymentCallback: %v", err)
	}

	(*env.timers)[0]()

	order, _ := env.repo.GetOrder(ctx, orderID)
	if order.Status != models.StatusOnTheWay {
		t.Errorf("status = %s, want ON_THE_WAY after timer fire", order.Status)
	}

	// Firing again must be a no-op.
	(*env.timers)[0]()
	order, _ = env.repo.GetOrder(ctx, orderID)
	if order.Status != models.StatusOnTheWay {
		t.Errorf("status = %s, want ON_THE_WAY after duplicate fire", order.Status)
	}
}

// placePreparingOrder drives an order to PREPARING with no driver assigned.
func placePreparingOrder(t *testing.T, env *testEnv) int64 {
	t.Helper()
	env.drivers.assignErr = apperr.NotFound("no available driver")
	orderID := createPendingOrder(t, env)
	if err := env.service.HandlePaymentCallback(context.Background(), &models.PaymentCallbackRequest{
		OrderID: orderID, PaymentStatus: "SUCCESS",
	}, "req-setup"); err != nil {
		t.Fatalf("HandlePaymentCallback: %v", err)
	}
	env.drivers.assignErr = nil
	return orderID
}

func TestAcceptOrder_ConcurrentFirstWriterWins(t *testing.T) {
	env := newTestEnv()
	orderID := placePreparingOrder(t, env)
	ctx := context.Background()

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, driverID := range []int64{101, 102} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := env.service.AcceptOrder(ctx, orderID, id, "req-race")
			results <- err
		}(driverID)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("got %d successes and %d conflicts, want exactly 1 of each", successes, conflicts)
	}

	order, _ := env.repo.GetOrder(ctx, orderID)
	if order.DriverID == nil || (*order.DriverID != 101 && *order.DriverID != 102) {
		t.Errorf("final driver_id = %v, want the winning driver", order.DriverID)
	}
	if order.Status != models.StatusOnTheWay {
		t.Errorf("status = %s, want ON_THE_WAY", order.Status)
	}
}

func TestAcceptOrder_WrongState(t *testing.T) {
	env := newTestEnv()
	orderID := createPendingOrder(t, env)

	_, err := env.service.AcceptOrder(context.Background(), orderID, 101, "req-1")
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("kind = %v, want InvalidState (err: %v)", apperr.KindOf(err), err)
	}
}

func TestCompleteOrder_WrongDriverForbidden(t *testing.T) {
	env := newTestEnv()
	orderID := placePreparingOrder(t, env)
	ctx := context.Background()

	if _, err := env.service.AcceptOrder(ctx, orderID, 101, "req-1"); err != nil {
		t.Fatalf("AcceptOrder: %v", err)
	}

	_, err := env.service.CompleteOrder(ctx, orderID, 202, "req-2")
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("kind = %v, want Forbidden (err: %v)", apperr.KindOf(err), err)
	}

	order, _ := env.repo.GetOrder(ctx, orderID)
	if order.Status != models.StatusOnTheWay {
		t.Errorf("status = %s, want ON_THE_WAY unchanged", order.Status)
	}
}

func TestCompleteOrder_ReleasesDriver(t *testing.T) {
	env := newTestEnv()
	orderID := placePreparingOrder(t, env)
	ctx := context.Background()

	if _, err := env.service.AcceptOrder(ctx, orderID, 101, "req-1"); err != nil {
		t.Fatalf("AcceptOrder: %v", err)
	}

	order, err := env.service.CompleteOrder(ctx, orderID, 101, "req-2")
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if order.Status != models.StatusDelivered {
		t.Errorf("status = %s, want DELIVERED", order.Status)
	}
	if len(env.drivers.released) != 1 {
		t.Fatalf("driver released %d times, want 1", len(env.drivers.released))
	}
	if !env.drivers.released[0].Earnings.Equal(deliveryFee) {
		t.Errorf("earnings = %s, want %s", env.drivers.released[0].Earnings, deliveryFee)
	}
}

func TestGetOrderDetail_ResolvesAddress(t *testing.T) {
	env := newTestEnv()
	orderID := createPendingOrder(t, env)

	detail, err := env.service.GetOrderDetail(context.Background(), orderID, "req-1")
	if err != nil {
		t.Fatalf("GetOrderDetail: %v", err)
	}
	if detail.DeliveryAddress == nil || detail.DeliveryAddress.ID != 7 {
		t.Errorf("delivery address = %+v, want address 7", detail.DeliveryAddress)
	}
}
