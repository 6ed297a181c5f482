package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/seifenwerk/seifenwerk/internal/stock"
)

// StockPort is the slice of the stock engine the sales module consumes.
type StockPort interface {
	Deduct(ctx context.Context, input stock.DeductInput) (stock.MutationSummary, error)
	CheckAvailability(ctx context.Context, article stock.ArticleRef, count float64) (stock.MutationSummary, error)
}

// OrderRepository is implemented by Repository and by test fakes.
type OrderRepository interface {
	Create(ctx context.Context, order Order) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, status OrderStatus, limit int) ([]Order, error)
	SetStatus(ctx context.Context, id int64, status OrderStatus, completedAt *time.Time) error
	SetReference(ctx context.Context, id int64, reference string) error
}

// Service provides business logic for shop orders.
type Service struct {
	logger   *slog.Logger
	repo     OrderRepository
	stock    StockPort
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a sales service.
func NewService(logger *slog.Logger, repo OrderRepository, stockPort StockPort) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		repo:     repo,
		stock:    stockPort,
		validate: validator.New(),
		now:      time.Now,
	}
}

// CreateOrderInput describes a new shop order.
type CreateOrderInput struct {
	Number       string           `json:"number" validate:"required,min=3,max=40"`
	CustomerName string           `json:"customer_name" validate:"required,min=2,max=120"`
	Lines        []OrderLineInput `json:"lines" validate:"required,min=1,dive"`
}

// OrderLineInput is one requested position.
type OrderLineInput struct {
	ArticleID int64   `json:"article_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

// CreateOrder validates and stores a new open order. The idempotency
// reference for the later stock booking is fixed at creation time so retries
// of the completion cannot double book.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if err := s.validate.Struct(input); err != nil {
		return Order{}, fmt.Errorf("sales: %w", err)
	}
	order := Order{
		Number:       input.Number,
		Status:       StatusOpen,
		CustomerName: input.CustomerName,
		Reference:    uuid.NewString(),
	}
	for _, line := range input.Lines {
		order.Lines = append(order.Lines, OrderLine{ArticleID: line.ArticleID, Quantity: line.Quantity})
	}
	return s.repo.Create(ctx, order)
}

// GetOrder loads one order.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// ListOrders returns recent orders.
func (s *Service) ListOrders(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	return s.repo.List(ctx, status, limit)
}

// PreviewOrder runs availability checks for every line without booking.
func (s *Service) PreviewOrder(ctx context.Context, id int64) (CompletionReport, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return CompletionReport{}, err
	}
	report := CompletionReport{OrderID: order.ID, Status: order.Status, AllBooked: true}
	for _, line := range order.Lines {
		ref := stock.ArticleRef{Type: stock.ArticleFinishedGood, ID: line.ArticleID}
		summary, err := s.stock.CheckAvailability(ctx, ref, line.Quantity)
		outcome := LineOutcome{ArticleID: line.ArticleID, Quantity: line.Quantity}
		if err != nil {
			outcome.Failure = err.Error()
			report.AllBooked = false
		} else {
			outcome.Applied = summary.Success
			outcome.Summary = &summary
			if !summary.Success {
				report.AllBooked = false
			}
		}
		report.Lines = append(report.Lines, outcome)
	}
	return report, nil
}

// CompleteOrder books the stock consumption for every line. Lines are
// processed one by one; a failing line is reported but does not undo lines
// that were already booked. Re-running completion skips lines the engine has
// already seen under the order's reference.
func (s *Service) CompleteOrder(ctx context.Context, id int64, actor string) (CompletionReport, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return CompletionReport{}, err
	}
	if order.Status != StatusOpen {
		return CompletionReport{}, ErrBadTransition
	}
	if len(order.Lines) == 0 {
		return CompletionReport{}, ErrEmptyOrder
	}

	report := CompletionReport{OrderID: order.ID, Status: order.Status, AllBooked: true}
	for _, line := range order.Lines {
		outcome := s.bookLine(ctx, order, line, line.Quantity, actor)
		if !outcome.Applied {
			report.AllBooked = false
		}
		report.Lines = append(report.Lines, outcome)
	}

	if report.AllBooked {
		completedAt := s.now()
		if err := s.repo.SetStatus(ctx, order.ID, StatusCompleted, &completedAt); err != nil {
			return report, err
		}
		report.Status = StatusCompleted
	} else {
		s.logger.Warn("order completion incomplete",
			slog.Int64("order_id", order.ID),
			slog.String("number", order.Number))
	}
	return report, nil
}

// ReturnOrder reverses the consumption of a completed order by booking every
// line with a negated quantity under a fresh reference.
func (s *Service) ReturnOrder(ctx context.Context, id int64, actor string) (CompletionReport, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return CompletionReport{}, err
	}
	if order.Status != StatusCompleted {
		return CompletionReport{}, ErrBadTransition
	}

	returnRef := uuid.NewString()
	if err := s.repo.SetReference(ctx, order.ID, returnRef); err != nil {
		return CompletionReport{}, err
	}
	order.Reference = returnRef

	report := CompletionReport{OrderID: order.ID, Status: order.Status, AllBooked: true}
	for _, line := range order.Lines {
		outcome := s.bookLine(ctx, order, line, -line.Quantity, actor)
		if !outcome.Applied {
			report.AllBooked = false
		}
		report.Lines = append(report.Lines, outcome)
	}
	if report.AllBooked {
		if err := s.repo.SetStatus(ctx, order.ID, StatusReturned, nil); err != nil {
			return report, err
		}
		report.Status = StatusReturned
	}
	return report, nil
}

// CancelOrder closes an open order without touching stock.
func (s *Service) CancelOrder(ctx context.Context, id int64) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != StatusOpen {
		return ErrBadTransition
	}
	return s.repo.SetStatus(ctx, id, StatusCancelled, nil)
}

func (s *Service) bookLine(ctx context.Context, order Order, line OrderLine, quantity float64, actor string) LineOutcome {
	outcome := LineOutcome{ArticleID: line.ArticleID, Quantity: quantity}
	summary, err := s.stock.Deduct(ctx, stock.DeductInput{
		Article:   stock.ArticleRef{Type: stock.ArticleFinishedGood, ID: line.ArticleID},
		Count:     quantity,
		Reason:    fmt.Sprintf("order %s", order.Number),
		Reference: order.Reference,
		Actor:     actor,
	})
	switch {
	case err == nil:
		outcome.Applied = summary.Success
		outcome.Summary = &summary
		if !summary.Success {
			outcome.Failure = "one or more components could not be booked"
		}
	case errors.Is(err, stock.ErrDuplicateReference):
		// Already booked by an earlier attempt.
		outcome.Applied = true
	default:
		outcome.Failure = err.Error()
	}
	return outcome
}
