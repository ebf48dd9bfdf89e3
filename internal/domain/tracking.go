package domain

import "time"

// Canonical tracking milestone names, in shipment order. Completion may only
// advance along this sequence, never regress.
const (
	MilestoneOrderPlaced    = "Order Placed"
	MilestoneConfirmed      = "Confirmed"
	MilestoneProcessing     = "Processing"
	MilestoneShipped        = "Shipped"
	MilestoneOutForDelivery = "Out for Delivery"
	MilestoneDelivered      = "Delivered"
)

// TrackingMilestones is the canonical checklist seeded on every order.
var TrackingMilestones = []string{
	MilestoneOrderPlaced,
	MilestoneConfirmed,
	MilestoneProcessing,
	MilestoneShipped,
	MilestoneOutForDelivery,
	MilestoneDelivered,
}

var milestoneDescriptions = map[string]string{
	MilestoneOrderPlaced:    "Your order has been placed",
	MilestoneConfirmed:      "Your order has been confirmed",
	MilestoneProcessing:     "Your order is being prepared",
	MilestoneShipped:        "Your order has been shipped",
	MilestoneOutForDelivery: "Your order is out for delivery",
	MilestoneDelivered:      "Your order has been delivered",
}

var statusMilestones = map[OrderStatus]string{
	OrderStatusPending:        MilestoneOrderPlaced,
	OrderStatusConfirmed:      MilestoneConfirmed,
	OrderStatusProcessing:     MilestoneProcessing,
	OrderStatusShipped:        MilestoneShipped,
	OrderStatusOutForDelivery: MilestoneOutForDelivery,
	OrderStatusDelivered:      MilestoneDelivered,
}

// MilestoneForStatus maps an order status to its tracking milestone. Statuses
// with no milestone (such as cancelled) report ok=false and leave tracking
// untouched.
func MilestoneForStatus(status OrderStatus) (string, bool) {
	name, ok := statusMilestones[status]
	return name, ok
}

// MilestoneIndex returns the position of a milestone in the canonical
// sequence, or -1 when the name is unknown.
func MilestoneIndex(name string) int {
	for i, m := range TrackingMilestones {
		if m == name {
			return i
		}
	}
	return -1
}

// SeedTrackingHistory builds the initial six-row checklist for a new order.
// The first two milestones are pre-completed with the creation timestamp; the
// confirmation description reflects the payment method.
func SeedTrackingHistory(method PaymentMethod, now time.Time) []TrackingEvent {
	events := make([]TrackingEvent, 0, len(TrackingMilestones))
	for i, name := range TrackingMilestones {
		event := TrackingEvent{
			Status:      name,
			Description: milestoneDescriptions[name],
		}
		if i < 2 {
			ts := now
			event.Date = &ts
			event.Completed = true
			if name == MilestoneConfirmed {
				if method == PaymentMethodCOD {
					event.Description = "Order confirmed, payment due on delivery"
				} else {
					event.Description = "Order confirmed, payment received"
				}
			}
		}
		events = append(events, event)
	}
	return events
}

// AdvanceTracking marks every milestone at or before the target as completed,
// stamping dates only where not already set. Milestones after the target are
// left unchanged. Unknown targets return the history unmodified with
// ok=false.
func AdvanceTracking(history []TrackingEvent, target string, now time.Time) ([]TrackingEvent, bool) {
	idx := MilestoneIndex(target)
	if idx < 0 {
		return history, false
	}
	updated := make([]TrackingEvent, len(history))
	copy(updated, history)
	for i := range updated {
		pos := MilestoneIndex(updated[i].Status)
		if pos < 0 || pos > idx {
			continue
		}
		if !updated[i].Completed {
			updated[i].Completed = true
		}
		if updated[i].Date == nil {
			ts := now
			updated[i].Date = &ts
		}
	}
	return updated, true
}
