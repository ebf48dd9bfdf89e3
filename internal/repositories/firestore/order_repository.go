package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	domain "github.com/orchidcart/api/internal/domain"
	pfirestore "github.com/orchidcart/api/internal/platform/firestore"
	"github.com/orchidcart/api/internal/platform/pagination"
	"github.com/orchidcart/api/internal/repositories"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const orderCollection = "orders"

// OrderRepository persists order aggregates in Firestore.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// Insert stores a new order document keyed by the order id.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.base.Set(ctx, order.ID, fromDomainOrder(order))
	return err
}

// Update overwrites the stored order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.base.Set(ctx, order.ID, fromDomainOrder(order))
	return err
}

// FindByID loads an order by its document id.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data), nil
}

// FindByOrderNumber looks an order up by its human-facing order number.
func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return r.findByField(ctx, "orderNumber", strings.TrimSpace(orderNumber))
}

// FindByTrackingNumber looks an order up by its tracking number.
func (r *OrderRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (domain.Order, error) {
	return r.findByField(ctx, "trackingNumber", strings.TrimSpace(trackingNumber))
}

// FindByGatewayOrderID resolves the order correlated with a gateway-side order id.
func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gateway domain.PaymentGateway, gatewayOrderID string) (domain.Order, error) {
	field := ""
	switch gateway {
	case domain.GatewayRazorpay:
		field = "razorpay.orderId"
	case domain.GatewayCashfree:
		field = "cashfree.orderId"
	default:
		return domain.Order{}, fmt.Errorf("order repository: unsupported gateway %q", gateway)
	}
	return r.findByField(ctx, field, strings.TrimSpace(gatewayOrderID))
}

func (r *OrderRepository) findByField(ctx context.Context, field, value string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if value == "" {
		return domain.Order{}, errors.New("order lookup value is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(field, "==", value).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError(fmt.Sprintf("%s.query", orderCollection), status.Error(codes.NotFound, fmt.Sprintf("order with %s %q not found", field, value)))
	}
	return toDomainOrder(docs[0].ID, docs[0].Data), nil
}

// List returns orders matching the filter ordered by creation time descending.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	if pageSize > pagination.DefaultMaxPageSize {
		pageSize = pagination.DefaultMaxPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.UserID != "" {
			q = q.Where("userId", "==", filter.UserID)
		}
		if len(filter.Status) == 1 {
			q = q.Where("orderStatus", "==", filter.Status[0])
		} else if len(filter.Status) > 1 {
			q = q.Where("orderStatus", "in", filter.Status)
		}
		if filter.Gateway != "" {
			q = q.Where("paymentGateway", "==", filter.Gateway)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", *filter.DateRange.From)
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", *filter.DateRange.To)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}
	for _, doc := range docs {
		page.Items = append(page.Items, toDomainOrder(doc.ID, doc.Data))
	}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{last.Data.CreatedAt, last.ID}})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// CollectionName exposes the Firestore collection for migration tooling.
func (r *OrderRepository) CollectionName() string { return orderCollection }

type orderDocument struct {
	OrderNumber     string                  `firestore:"orderNumber"`
	TrackingNumber  string                  `firestore:"trackingNumber"`
	UserID          string                  `firestore:"userId"`
	Items           []orderItemDocument     `firestore:"orderItems"`
	ShippingAddress shippingAddressDocument `firestore:"shippingAddress"`
	PaymentMethod   string                  `firestore:"paymentMethod"`
	PaymentStatus   string                  `firestore:"paymentStatus"`
	PaymentGateway  string                  `firestore:"paymentGateway,omitempty"`
	Razorpay        *razorpayDocument       `firestore:"razorpay,omitempty"`
	Cashfree        *cashfreeDocument       `firestore:"cashfree,omitempty"`
	OrderStatus     string                  `firestore:"orderStatus"`
	Cancellation    cancellationDocument    `firestore:"cancellation"`
	Revenue         revenueDocument         `firestore:"revenue"`
	Refund          refundDocument          `firestore:"refund"`
	ItemsPrice      int64                   `firestore:"itemsPrice"`
	ShippingPrice   int64                   `firestore:"shippingPrice"`
	DiscountPrice   int64                   `firestore:"discountPrice"`
	TotalPrice      int64                   `firestore:"totalPrice"`
	TrackingHistory []trackingEventDocument `firestore:"trackingHistory"`
	StockRestored   bool                    `firestore:"stockRestored"`
	Metadata        map[string]any          `firestore:"metadata,omitempty"`
	CreatedAt       time.Time               `firestore:"createdAt"`
	UpdatedAt       time.Time               `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductRef    string  `firestore:"productRef"`
	Name          string  `firestore:"name"`
	Quantity      int     `firestore:"quantity"`
	UnitPrice     int64   `firestore:"unitPrice"`
	SelectedPrice int64   `firestore:"selectedPrice"`
	Size          *string `firestore:"size,omitempty"`
	Image         *string `firestore:"image,omitempty"`
}

type shippingAddressDocument struct {
	Type    string `firestore:"type"`
	Name    string `firestore:"name"`
	Phone   string `firestore:"phone"`
	Address string `firestore:"address"`
	City    string `firestore:"city"`
	State   string `firestore:"state"`
	Pincode string `firestore:"pincode"`
}

type razorpayDocument struct {
	OrderID   string `firestore:"orderId"`
	PaymentID string `firestore:"paymentId,omitempty"`
	Signature string `firestore:"signature,omitempty"`
}

type cashfreeDocument struct {
	OrderID          string `firestore:"orderId"`
	PaymentID        string `firestore:"paymentId,omitempty"`
	PaymentSessionID string `firestore:"paymentSessionId,omitempty"`
}

type cancellationDocument struct {
	Status          string     `firestore:"status"`
	Reason          string     `firestore:"reason,omitempty"`
	RejectionReason string     `firestore:"rejectionReason,omitempty"`
	CancelledAt     *time.Time `firestore:"cancelledAt,omitempty"`
	ApprovedBy      *string    `firestore:"approvedBy,omitempty"`
}

type revenueDocument struct {
	Status      string     `firestore:"status"`
	Amount      int64      `firestore:"amount"`
	ConfirmedAt *time.Time `firestore:"confirmedAt,omitempty"`
	ConfirmedBy *string    `firestore:"confirmedBy,omitempty"`
}

type refundDocument struct {
	Status      string     `firestore:"status"`
	Amount      int64      `firestore:"amount"`
	ProcessedAt *time.Time `firestore:"processedAt,omitempty"`
	ProcessedBy *string    `firestore:"processedBy,omitempty"`
}

type trackingEventDocument struct {
	Status      string     `firestore:"status"`
	Date        *time.Time `firestore:"date,omitempty"`
	Description string     `firestore:"description"`
	Completed   bool       `firestore:"completed"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:    strings.TrimSpace(order.OrderNumber),
		TrackingNumber: strings.TrimSpace(order.TrackingNumber),
		UserID:         strings.TrimSpace(order.UserID),
		ShippingAddress: shippingAddressDocument{
			Type:    order.ShippingAddress.Type,
			Name:    order.ShippingAddress.Name,
			Phone:   order.ShippingAddress.Phone,
			Address: order.ShippingAddress.Address,
			City:    order.ShippingAddress.City,
			State:   order.ShippingAddress.State,
			Pincode: order.ShippingAddress.Pincode,
		},
		PaymentMethod:  string(order.PaymentMethod),
		PaymentStatus:  string(order.PaymentStatus),
		PaymentGateway: string(order.PaymentGateway),
		OrderStatus:    string(order.Status),
		Cancellation: cancellationDocument{
			Status:          string(order.Cancellation.Status),
			Reason:          order.Cancellation.Reason,
			RejectionReason: order.Cancellation.RejectionReason,
			CancelledAt:     order.Cancellation.CancelledAt,
			ApprovedBy:      order.Cancellation.ApprovedBy,
		},
		Revenue: revenueDocument{
			Status:      string(order.Revenue.Status),
			Amount:      order.Revenue.Amount,
			ConfirmedAt: order.Revenue.ConfirmedAt,
			ConfirmedBy: order.Revenue.ConfirmedBy,
		},
		Refund: refundDocument{
			Status:      string(order.Refund.Status),
			Amount:      order.Refund.Amount,
			ProcessedAt: order.Refund.ProcessedAt,
			ProcessedBy: order.Refund.ProcessedBy,
		},
		ItemsPrice:    order.Totals.ItemsPrice,
		ShippingPrice: order.Totals.ShippingPrice,
		DiscountPrice: order.Totals.DiscountPrice,
		TotalPrice:    order.Totals.TotalPrice,
		StockRestored: order.StockRestored,
		Metadata:      order.Metadata,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductRef:    item.ProductRef,
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			SelectedPrice: item.SelectedPrice,
			Size:          item.Size,
			Image:         item.Image,
		})
	}
	for _, event := range order.TrackingHistory {
		doc.TrackingHistory = append(doc.TrackingHistory, trackingEventDocument{
			Status:      event.Status,
			Date:        event.Date,
			Description: event.Description,
			Completed:   event.Completed,
		})
	}
	if order.Razorpay != nil {
		doc.Razorpay = &razorpayDocument{
			OrderID:   order.Razorpay.OrderID,
			PaymentID: order.Razorpay.PaymentID,
			Signature: order.Razorpay.Signature,
		}
	}
	if order.Cashfree != nil {
		doc.Cashfree = &cashfreeDocument{
			OrderID:          order.Cashfree.OrderID,
			PaymentID:        order.Cashfree.PaymentID,
			PaymentSessionID: order.Cashfree.PaymentSessionID,
		}
	}
	return doc
}

func toDomainOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:             id,
		OrderNumber:    doc.OrderNumber,
		TrackingNumber: doc.TrackingNumber,
		UserID:         doc.UserID,
		ShippingAddress: domain.ShippingAddress{
			Type:    doc.ShippingAddress.Type,
			Name:    doc.ShippingAddress.Name,
			Phone:   doc.ShippingAddress.Phone,
			Address: doc.ShippingAddress.Address,
			City:    doc.ShippingAddress.City,
			State:   doc.ShippingAddress.State,
			Pincode: doc.ShippingAddress.Pincode,
		},
		PaymentMethod:  domain.PaymentMethod(doc.PaymentMethod),
		PaymentStatus:  domain.PaymentStatus(doc.PaymentStatus),
		PaymentGateway: domain.PaymentGateway(doc.PaymentGateway),
		Status:         domain.OrderStatus(doc.OrderStatus),
		Cancellation: domain.Cancellation{
			Status:          domain.CancellationStatus(doc.Cancellation.Status),
			Reason:          doc.Cancellation.Reason,
			RejectionReason: doc.Cancellation.RejectionReason,
			CancelledAt:     doc.Cancellation.CancelledAt,
			ApprovedBy:      doc.Cancellation.ApprovedBy,
		},
		Revenue: domain.Revenue{
			Status:      domain.RevenueStatus(doc.Revenue.Status),
			Amount:      doc.Revenue.Amount,
			ConfirmedAt: doc.Revenue.ConfirmedAt,
			ConfirmedBy: doc.Revenue.ConfirmedBy,
		},
		Refund: domain.Refund{
			Status:      domain.RefundStatus(doc.Refund.Status),
			Amount:      doc.Refund.Amount,
			ProcessedAt: doc.Refund.ProcessedAt,
			ProcessedBy: doc.Refund.ProcessedBy,
		},
		Totals: domain.OrderTotals{
			ItemsPrice:    doc.ItemsPrice,
			ShippingPrice: doc.ShippingPrice,
			DiscountPrice: doc.DiscountPrice,
			TotalPrice:    doc.TotalPrice,
		},
		StockRestored: doc.StockRestored,
		Metadata:      doc.Metadata,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if order.Cancellation.Status == "" {
		order.Cancellation.Status = domain.CancellationNone
	}
	if order.Revenue.Status == "" {
		order.Revenue.Status = domain.RevenuePending
	}
	if order.Refund.Status == "" {
		order.Refund.Status = domain.RefundNone
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductRef:    item.ProductRef,
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			SelectedPrice: item.SelectedPrice,
			Size:          item.Size,
			Image:         item.Image,
		})
	}
	for _, event := range doc.TrackingHistory {
		order.TrackingHistory = append(order.TrackingHistory, domain.TrackingEvent{
			Status:      event.Status,
			Date:        event.Date,
			Description: event.Description,
			Completed:   event.Completed,
		})
	}
	if doc.Razorpay != nil {
		order.Razorpay = &domain.RazorpayRefs{
			OrderID:   doc.Razorpay.OrderID,
			PaymentID: doc.Razorpay.PaymentID,
			Signature: doc.Razorpay.Signature,
		}
	}
	if doc.Cashfree != nil {
		order.Cashfree = &domain.CashfreeRefs{
			OrderID:          doc.Cashfree.OrderID,
			PaymentID:        doc.Cashfree.PaymentID,
			PaymentSessionID: doc.Cashfree.PaymentSessionID,
		}
	}
	return order
}
