package sales

import (
	"errors"
	"time"

	"github.com/seifenwerk/seifenwerk/internal/stock"
)

// OrderStatus tracks the lifecycle of a shop order.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusReturned  OrderStatus = "RETURNED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Order is a shop order whose completion consumes stock.
type Order struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	Status       OrderStatus `json:"status"`
	CustomerName string      `json:"customer_name"`
	Reference    string      `json:"reference"`
	Lines        []OrderLine `json:"lines"`
	CreatedAt    time.Time   `json:"created_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// OrderLine is one finished good position on an order.
type OrderLine struct {
	ID        int64   `json:"id"`
	ArticleID int64   `json:"article_id"`
	Quantity  float64 `json:"quantity"`
}

// LineOutcome reports what happened to one order line during completion.
type LineOutcome struct {
	ArticleID int64                  `json:"article_id"`
	Quantity  float64                `json:"quantity"`
	Applied   bool                   `json:"applied"`
	Failure   string                 `json:"failure,omitempty"`
	Summary   *stock.MutationSummary `json:"summary,omitempty"`
}

// CompletionReport aggregates per-line outcomes of a completion attempt.
// Lines are processed independently; one failing line does not roll back the
// ones already booked.
type CompletionReport struct {
	OrderID   int64         `json:"order_id"`
	Status    OrderStatus   `json:"status"`
	AllBooked bool          `json:"all_booked"`
	Lines     []LineOutcome `json:"lines"`
}

var (
	ErrOrderNotFound = errors.New("sales: order not found")
	ErrEmptyOrder    = errors.New("sales: order has no lines")
	ErrBadTransition = errors.New("sales: status does not allow this operation")
)
