package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied malformed or incomplete input.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the requested order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the caller is not allowed to act on the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates the order's current state forbids the requested transition.
	ErrOrderInvalidState = errors.New("order: invalid state")
	// ErrOrderInsufficientStock indicates at least one line exceeds available stock.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderConflict indicates a concurrent write conflict.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the persistence layer was unavailable.
	ErrOrderUnavailable = errors.New("order: storage unavailable")
)

// knownOrderStatuses is the closed set accepted by admin status updates.
var knownOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:        {},
	domain.OrderStatusConfirmed:      {},
	domain.OrderStatusProcessing:     {},
	domain.OrderStatusShipped:        {},
	domain.OrderStatusOutForDelivery: {},
	domain.OrderStatusDelivered:      {},
	domain.OrderStatusCancelled:      {},
}

// cancellableStatuses are the only states from which an order may become cancelled.
var cancellableStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:    {},
	domain.OrderStatusConfirmed:  {},
	domain.OrderStatusProcessing: {},
}

// OrderEventPublisher pushes lifecycle events to the order- and user-scoped
// topics. Failures are logged, never surfaced to the triggering request.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, name string, event domain.OrderEvent) error
}

// OrderServiceDeps wires the collaborators the lifecycle service needs.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Carts    repositories.CartRepository
	Users    repositories.UserRepository
	Counters repositories.CounterRepository

	Clock       func() time.Time
	IDGenerator func() string
	// TrackingNumberGenerator produces the customer-facing tracking number.
	TrackingNumberGenerator func() string
	Events                  OrderEventPublisher
	Logger                  func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	carts    repositories.CartRepository
	users    repositories.UserRepository
	counters repositories.CounterRepository

	clock          func() time.Time
	idGenerator    func() string
	trackingNumber func() string
	events         OrderEventPublisher
	logger         func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService builds the order lifecycle service. Orders, Products, Carts,
// Users, and Counters are required; clock, generators, and logger default when
// unset.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, fmt.Errorf("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, fmt.Errorf("order service: product repository is required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("order service: cart repository is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("order service: user repository is required")
	}
	if deps.Counters == nil {
		return nil, fmt.Errorf("order service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return "ord_" + ulid.Make().String()
		}
	}
	trackingGen := deps.TrackingNumberGenerator
	if trackingGen == nil {
		trackingGen = func() string {
			return "TRK" + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:         deps.Orders,
		products:       deps.Products,
		carts:          deps.Carts,
		users:          deps.Users,
		counters:       deps.Counters,
		clock:          func() time.Time { return clock().UTC() },
		idGenerator:    idGen,
		trackingNumber: trackingGen,
		events:         deps.Events,
		logger:         logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	method, err := normalizePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return Order{}, err
	}
	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return Order{}, err
	}
	if err := cmd.Totals.Validate(); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	lines, err := stockLinesFromItems(cmd.Items)
	if err != nil {
		return Order{}, err
	}

	var gateway domain.PaymentGateway
	if method == domain.PaymentMethodOnline {
		gateway, err = validateGatewayRefs(cmd.GatewayRefs)
		if err != nil {
			return Order{}, err
		}
	}

	now := s.clock()

	products, err := s.products.ReserveStock(ctx, lines, now)
	if err != nil {
		return Order{}, s.mapInventoryError(err)
	}

	paymentStatus := derivePaymentStatus(method, cmd.GatewayRefs)
	status := domain.OrderStatusPending
	if paymentStatus == domain.PaymentStatusCompleted {
		status = domain.OrderStatusConfirmed
	}

	orderNumber, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		s.compensateReservation(ctx, lines, "order.create.number")
		return Order{}, err
	}

	order := domain.Order{
		ID:              s.idGenerator(),
		OrderNumber:     orderNumber,
		TrackingNumber:  s.trackingNumber(),
		UserID:          cmd.UserID,
		Items:           buildOrderItems(cmd.Items, products),
		ShippingAddress: cmd.ShippingAddress,
		PaymentMethod:   method,
		PaymentStatus:   paymentStatus,
		Status:          status,
		Cancellation:    domain.Cancellation{Status: domain.CancellationNone},
		Revenue:         domain.Revenue{Status: domain.RevenuePending, Amount: cmd.Totals.TotalPrice},
		Refund:          domain.Refund{Status: domain.RefundNone},
		Totals:          cmd.Totals,
		TrackingHistory: domain.SeedTrackingHistory(method, now),
		Metadata:        cloneOrderMetadata(cmd.Metadata),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if method == domain.PaymentMethodOnline {
		order.PaymentGateway = gateway
		attachGatewayRefs(&order, cmd.GatewayRefs)
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		s.compensateReservation(ctx, lines, "order.create.insert")
		return Order{}, s.mapRepositoryError(err)
	}

	if cmd.ClearCart {
		if err := s.carts.Clear(ctx, cmd.UserID); err != nil {
			s.logger(ctx, "order.cart_clear_failed", map[string]any{
				"order_id": order.ID,
				"user_id":  cmd.UserID,
				"error":    err.Error(),
			})
		}
	}

	s.publishOrderEvent(ctx, order, nil, nil, nil)
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, query GetOrderQuery) (Order, error) {
	if strings.TrimSpace(query.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, query.OrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !query.AdminAccess && !order.Owner(query.RequesterID) {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, query.OrderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(cmd.TargetStatus)))
	if _, ok := knownOrderStatuses[target]; !ok {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if target == domain.OrderStatusCancelled {
		if _, ok := cancellableStatuses[order.Status]; !ok {
			return Order{}, fmt.Errorf("%w: cannot cancel order in status %s", ErrOrderInvalidState, order.Status)
		}
	}

	now := s.clock()
	order.Status = target
	if milestone, ok := domain.MilestoneForStatus(target); ok {
		order.TrackingHistory, _ = domain.AdvanceTracking(order.TrackingHistory, milestone, now)
	}
	applyRevenueRules(&order, now, cmd.ActorID)
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishOrderEvent(ctx, order, &order.PaymentStatus, nil, nil)
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !order.Owner(cmd.RequesterID) {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, cmd.OrderID)
	}
	if order.CancellationForbidden() {
		return Order{}, fmt.Errorf("%w: cannot cancel order in status %s", ErrOrderInvalidState, order.Status)
	}
	if order.Cancellation.Status == domain.CancellationRequested {
		return Order{}, fmt.Errorf("%w: cancellation already requested", ErrOrderInvalidState)
	}

	now := s.clock()
	if err := s.restoreStockOnce(ctx, &order, now); err != nil {
		return Order{}, err
	}

	order.Cancellation.Status = domain.CancellationRequested
	order.Cancellation.Reason = strings.TrimSpace(cmd.Reason)
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishOrderEvent(ctx, order, nil, &order.Cancellation.Status, nil)
	return order, nil
}

func (s *orderService) DecideCancellation(ctx context.Context, cmd CancellationDecisionCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.Cancellation.Status != domain.CancellationRequested {
		return Order{}, fmt.Errorf("%w: no pending cancellation request", ErrOrderInvalidState)
	}

	now := s.clock()
	if cmd.Approve {
		if _, ok := cancellableStatuses[order.Status]; !ok {
			return Order{}, fmt.Errorf("%w: cannot cancel order in status %s", ErrOrderInvalidState, order.Status)
		}
		if err := s.restoreStockOnce(ctx, &order, now); err != nil {
			return Order{}, err
		}
		order.Cancellation.Status = domain.CancellationApproved
		order.Cancellation.CancelledAt = valuePtr(now)
		order.Cancellation.ApprovedBy = optionalString(cmd.ActorID)
		order.Status = domain.OrderStatusCancelled
		if order.PaymentMethod == domain.PaymentMethodOnline && order.PaymentStatus == domain.PaymentStatusCompleted {
			order.Refund.Status = domain.RefundPending
			order.Refund.Amount = order.Totals.TotalPrice
		}
	} else {
		if strings.TrimSpace(cmd.RejectionReason) == "" {
			return Order{}, fmt.Errorf("%w: rejection reason is required", ErrOrderInvalidInput)
		}
		order.Cancellation.Status = domain.CancellationRejected
		order.Cancellation.RejectionReason = strings.TrimSpace(cmd.RejectionReason)
	}
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishOrderEvent(ctx, order, nil, &order.Cancellation.Status, &order.Refund.Status)
	return order, nil
}

func (s *orderService) ProcessRefund(ctx context.Context, cmd ProcessRefundCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.PaymentMethod != domain.PaymentMethodOnline {
		return Order{}, fmt.Errorf("%w: refunds apply to online orders only", ErrOrderInvalidState)
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		return Order{}, fmt.Errorf("%w: payment is not completed", ErrOrderInvalidState)
	}
	switch order.Refund.Status {
	case domain.RefundProcessed, domain.RefundCompleted:
		return Order{}, fmt.Errorf("%w: refund already processed", ErrOrderInvalidState)
	}

	now := s.clock()
	order.Refund.Status = domain.RefundCompleted
	order.Refund.Amount = order.Totals.TotalPrice
	order.Refund.ProcessedAt = valuePtr(now)
	order.Refund.ProcessedBy = optionalString(cmd.ActorID)
	order.PaymentStatus = domain.PaymentStatusRefunded
	order.Revenue.Status = domain.RevenuePending
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishOrderEvent(ctx, order, &order.PaymentStatus, nil, &order.Refund.Status)
	return order, nil
}

func (s *orderService) ConfirmCODReceipt(ctx context.Context, cmd ConfirmCODReceiptCommand) (Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Amount <= 0 {
		return Order{}, fmt.Errorf("%w: confirmed amount must be positive", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.PaymentMethod != domain.PaymentMethodCOD {
		return Order{}, fmt.Errorf("%w: receipt confirmation applies to cod orders only", ErrOrderInvalidState)
	}

	now := s.clock()
	order.Revenue.Status = domain.RevenueConfirmed
	order.Revenue.Amount = cmd.Amount
	order.Revenue.ConfirmedAt = valuePtr(now)
	order.Revenue.ConfirmedBy = optionalString(cmd.ActorID)
	order.PaymentStatus = domain.PaymentStatusCompleted
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishOrderEvent(ctx, order, &order.PaymentStatus, nil, nil)
	return order, nil
}

func (s *orderService) Track(ctx context.Context, query TrackOrderQuery) (TrackedOrder, error) {
	identifier := strings.TrimSpace(query.Identifier)
	if identifier == "" {
		return TrackedOrder{}, fmt.Errorf("%w: identifier is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByOrderNumber(ctx, identifier)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			order, err = s.orders.FindByTrackingNumber(ctx, identifier)
		}
	}
	if err != nil {
		return TrackedOrder{}, s.mapRepositoryError(err)
	}

	ownerPhone := order.ShippingAddress.Phone
	if profile, err := s.users.FindByID(ctx, order.UserID); err == nil && profile.PhoneNumber != "" {
		ownerPhone = profile.PhoneNumber
	}

	if strings.TrimSpace(query.Phone) != "" {
		if !domain.PhoneMatches(ownerPhone, query.Phone) {
			return TrackedOrder{}, fmt.Errorf("%w: phone does not match order", ErrOrderForbidden)
		}
	}

	masked := domain.MaskPhone(ownerPhone)
	order.ShippingAddress.Phone = masked
	return TrackedOrder{Order: order, MaskedPhone: masked}, nil
}

func (s *orderService) ApplyGatewayPayment(ctx context.Context, cmd GatewayPaymentCommand) (Order, error) {
	if strings.TrimSpace(cmd.GatewayOrderID) == "" {
		return Order{}, fmt.Errorf("%w: gateway order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByGatewayOrderID(ctx, cmd.Gateway, cmd.GatewayOrderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.clock()
	if cmd.Succeeded {
		order.PaymentStatus = domain.PaymentStatusCompleted
		recordGatewayPayment(&order, cmd)
		if order.Status == domain.OrderStatusPending {
			order.Status = domain.OrderStatusConfirmed
			if milestone, ok := domain.MilestoneForStatus(order.Status); ok {
				order.TrackingHistory, _ = domain.AdvanceTracking(order.TrackingHistory, milestone, now)
			}
		}
		applyRevenueRules(&order, now, "")
	} else {
		order.PaymentStatus = domain.PaymentStatusFailed
		recordGatewayPayment(&order, cmd)
	}
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishOrderEvent(ctx, order, &order.PaymentStatus, nil, nil)
	return order, nil
}

func (s *orderService) PaymentStatus(ctx context.Context, query PaymentStatusQuery) (PaymentStatusResult, error) {
	if strings.TrimSpace(query.GatewayOrderID) == "" {
		return PaymentStatusResult{}, fmt.Errorf("%w: gateway order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByGatewayOrderID(ctx, domain.GatewayRazorpay, query.GatewayOrderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			order, err = s.orders.FindByGatewayOrderID(ctx, domain.GatewayCashfree, query.GatewayOrderID)
		}
	}
	if err != nil {
		return PaymentStatusResult{}, s.mapRepositoryError(err)
	}
	if !query.AdminAccess && !order.Owner(query.RequesterID) {
		return PaymentStatusResult{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, order.ID)
	}

	return PaymentStatusResult{
		OrderID:       order.ID,
		PaymentID:     gatewayPaymentID(order),
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.Status,
	}, nil
}

func (s *orderService) ReconcileRevenue(ctx context.Context, cmd ReconcileRevenueCommand) (ReconcileRevenueResult, error) {
	filter := repositories.OrderListFilter{
		Status: []string{string(domain.OrderStatusDelivered)},
		Pagination: domain.Pagination{
			PageSize:  cmd.PageSize,
			PageToken: cmd.PageToken,
		},
	}
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return ReconcileRevenueResult{}, s.mapRepositoryError(err)
	}

	result := ReconcileRevenueResult{NextPageToken: page.NextPageToken}
	now := s.clock()
	for _, order := range page.Items {
		result.Examined++
		before := order.Revenue.Status
		applyRevenueRules(&order, now, "")
		if order.Revenue.Status == before {
			continue
		}
		order.UpdatedAt = now
		if err := s.orders.Update(ctx, order); err != nil {
			return result, s.mapRepositoryError(err)
		}
		result.Updated++
	}
	return result, nil
}

// restoreStockOnce returns reserved stock to inventory exactly once per order.
// Repeated cancellation paths (customer request followed by admin approval)
// observe the stockRestored flag and skip the second restore.
func (s *orderService) restoreStockOnce(ctx context.Context, order *domain.Order, now time.Time) error {
	if order.StockRestored {
		return nil
	}
	lines := make([]repositories.StockLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, repositories.StockLine{ProductID: item.ProductRef, Quantity: item.Quantity})
	}
	if _, err := s.products.RestoreStock(ctx, lines, now); err != nil {
		return s.mapInventoryError(err)
	}
	order.StockRestored = true
	return nil
}

// compensateReservation best-effort returns stock when order persistence fails
// after a successful reservation.
func (s *orderService) compensateReservation(ctx context.Context, lines []repositories.StockLine, op string) {
	if _, err := s.products.RestoreStock(ctx, lines, s.clock()); err != nil {
		s.logger(ctx, "order.stock_compensation_failed", map[string]any{
			"op":    op,
			"error": err.Error(),
		})
	}
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "orders", 1)
	if err != nil {
		return "", fmt.Errorf("%w: allocate order number: %v", ErrOrderUnavailable, err)
	}
	return fmt.Sprintf("OC-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) publishOrderEvent(ctx context.Context, order domain.Order, payment *domain.PaymentStatus, cancellation *domain.CancellationStatus, refund *domain.RefundStatus) {
	if s.events == nil {
		return
	}
	event := domain.OrderEvent{
		OrderID:            order.ID,
		OrderNumber:        order.OrderNumber,
		UserID:             order.UserID,
		OrderStatus:        order.Status,
		PaymentStatus:      payment,
		CancellationStatus: cancellation,
		RefundStatus:       refund,
		TrackingHistory:    order.TrackingHistory,
		UpdatedAt:          order.UpdatedAt,
	}
	if err := s.events.PublishOrderEvent(ctx, domain.EventOrderStatusUpdated, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

func (s *orderService) mapInventoryError(err error) error {
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %v", ErrOrderInsufficientStock, err)
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		}
	}
	return s.mapRepositoryError(err)
}

// applyRevenueRules re-derives revenueStatus from the current order status,
// payment method, and settlement state. Delivered COD orders earn directly;
// settled online orders confirm while in confirmed/processing/delivered.
func applyRevenueRules(order *domain.Order, now time.Time, actorID string) {
	switch order.Status {
	case domain.OrderStatusDelivered:
		if order.PaymentMethod == domain.PaymentMethodCOD {
			order.Revenue.Status = domain.RevenueEarned
			order.Revenue.Amount = order.Totals.TotalPrice
			order.Revenue.ConfirmedAt = valuePtr(now)
			order.Revenue.ConfirmedBy = optionalString(actorID)
			return
		}
		if order.PaymentStatus == domain.PaymentStatusCompleted {
			markRevenueConfirmed(order, now, actorID)
		}
	case domain.OrderStatusConfirmed, domain.OrderStatusProcessing:
		if order.PaymentMethod == domain.PaymentMethodOnline && order.PaymentStatus == domain.PaymentStatusCompleted {
			markRevenueConfirmed(order, now, actorID)
		}
	}
}

func markRevenueConfirmed(order *domain.Order, now time.Time, actorID string) {
	if order.Revenue.Status == domain.RevenueEarned {
		return
	}
	order.Revenue.Status = domain.RevenueConfirmed
	order.Revenue.Amount = order.Totals.TotalPrice
	if order.Revenue.ConfirmedAt == nil {
		order.Revenue.ConfirmedAt = valuePtr(now)
	}
	if order.Revenue.ConfirmedBy == nil {
		order.Revenue.ConfirmedBy = optionalString(actorID)
	}
}

func normalizePaymentMethod(raw string) (domain.PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cod":
		return domain.PaymentMethodCOD, nil
	case "online", "card", "upi":
		return domain.PaymentMethodOnline, nil
	default:
		return "", fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, raw)
	}
}

func validateShippingAddress(addr domain.ShippingAddress) error {
	fields := []struct {
		name  string
		value string
	}{
		{"type", addr.Type},
		{"name", addr.Name},
		{"phone", addr.Phone},
		{"address", addr.Address},
		{"city", addr.City},
		{"state", addr.State},
		{"pincode", addr.Pincode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: shipping address %s is required", ErrOrderInvalidInput, f.name)
		}
	}
	return nil
}

func stockLinesFromItems(items []CreateOrderItemInput) ([]repositories.StockLine, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	lines := make([]repositories.StockLine, 0, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return nil, fmt.Errorf("%w: item %d: product id is required", ErrOrderInvalidInput, i)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %d: quantity must be at least 1", ErrOrderInvalidInput, i)
		}
		if item.UnitPrice < 0 || item.SelectedPrice < 0 {
			return nil, fmt.Errorf("%w: item %d: prices must be non-negative", ErrOrderInvalidInput, i)
		}
		lines = append(lines, repositories.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines, nil
}

func validateGatewayRefs(refs *GatewayRefsInput) (domain.PaymentGateway, error) {
	if refs == nil {
		return "", fmt.Errorf("%w: gateway references are required for online payment", ErrOrderInvalidInput)
	}
	gateway := domain.PaymentGateway(strings.ToLower(strings.TrimSpace(refs.Gateway)))
	switch gateway {
	case domain.GatewayRazorpay, domain.GatewayCashfree:
		if strings.TrimSpace(refs.OrderID) == "" {
			return "", fmt.Errorf("%w: %s order id is required", ErrOrderInvalidInput, gateway)
		}
		return gateway, nil
	default:
		return "", fmt.Errorf("%w: unknown payment gateway %q", ErrOrderInvalidInput, refs.Gateway)
	}
}

// derivePaymentStatus considers an online order settled only when the gateway
// supplied a concrete payment id; placeholder ids keep the order pending.
func derivePaymentStatus(method domain.PaymentMethod, refs *GatewayRefsInput) domain.PaymentStatus {
	if method != domain.PaymentMethodOnline || refs == nil {
		return domain.PaymentStatusPending
	}
	paymentID := strings.TrimSpace(refs.PaymentID)
	if paymentID == "" || strings.EqualFold(paymentID, "pending") {
		return domain.PaymentStatusPending
	}
	return domain.PaymentStatusCompleted
}

func buildOrderItems(items []CreateOrderItemInput, products map[string]domain.Product) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		built := domain.OrderItem{
			ProductRef:    item.ProductID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			SelectedPrice: item.SelectedPrice,
			Size:          item.Size,
			Image:         item.Image,
		}
		if product, ok := products[item.ProductID]; ok {
			if built.Name == "" {
				built.Name = product.Name
			}
			if built.Image == nil && product.ImagePath != "" {
				built.Image = valuePtr(product.ImagePath)
			}
		}
		out = append(out, built)
	}
	return out
}

func attachGatewayRefs(order *domain.Order, refs *GatewayRefsInput) {
	if refs == nil {
		return
	}
	switch order.PaymentGateway {
	case domain.GatewayRazorpay:
		order.Razorpay = &domain.RazorpayRefs{
			OrderID:   refs.OrderID,
			PaymentID: refs.PaymentID,
			Signature: refs.Signature,
		}
	case domain.GatewayCashfree:
		order.Cashfree = &domain.CashfreeRefs{
			OrderID:          refs.OrderID,
			PaymentID:        refs.PaymentID,
			PaymentSessionID: refs.PaymentSessionID,
		}
	}
}

func recordGatewayPayment(order *domain.Order, cmd GatewayPaymentCommand) {
	switch cmd.Gateway {
	case domain.GatewayRazorpay:
		if order.Razorpay == nil {
			order.Razorpay = &domain.RazorpayRefs{OrderID: cmd.GatewayOrderID}
		}
		if cmd.PaymentID != "" {
			order.Razorpay.PaymentID = cmd.PaymentID
		}
		if cmd.Signature != "" {
			order.Razorpay.Signature = cmd.Signature
		}
		order.PaymentGateway = domain.GatewayRazorpay
	case domain.GatewayCashfree:
		if order.Cashfree == nil {
			order.Cashfree = &domain.CashfreeRefs{OrderID: cmd.GatewayOrderID}
		}
		if cmd.PaymentID != "" {
			order.Cashfree.PaymentID = cmd.PaymentID
		}
		order.PaymentGateway = domain.GatewayCashfree
	}
}

func gatewayPaymentID(order domain.Order) string {
	switch order.PaymentGateway {
	case domain.GatewayRazorpay:
		if order.Razorpay != nil {
			return order.Razorpay.PaymentID
		}
	case domain.GatewayCashfree:
		if order.Cashfree != nil {
			return order.Cashfree.PaymentID
		}
	}
	return ""
}

func cloneOrderMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func valuePtr[T any](v T) *T {
	return &v
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
