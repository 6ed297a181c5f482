package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seifenwerk/seifenwerk/internal/stock"
)

type memOrderRepo struct {
	orders map[int64]*Order
	nextID int64
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[int64]*Order)}
}

func (r *memOrderRepo) Create(ctx context.Context, order Order) (Order, error) {
	r.nextID++
	order.ID = r.nextID
	order.CreatedAt = time.Now().UTC()
	for i := range order.Lines {
		order.Lines[i].ID = int64(i + 1)
	}
	r.orders[order.ID] = &order
	return order, nil
}

func (r *memOrderRepo) Get(ctx context.Context, id int64) (Order, error) {
	if order, ok := r.orders[id]; ok {
		return *order, nil
	}
	return Order{}, ErrOrderNotFound
}

func (r *memOrderRepo) List(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	var out []Order
	for _, order := range r.orders {
		if status != "" && order.Status != status {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

func (r *memOrderRepo) SetStatus(ctx context.Context, id int64, status OrderStatus, completedAt *time.Time) error {
	order, ok := r.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	if completedAt != nil {
		order.CompletedAt = completedAt
	}
	return nil
}

func (r *memOrderRepo) SetReference(ctx context.Context, id int64, reference string) error {
	order, ok := r.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	order.Reference = reference
	return nil
}

// deductCall records one booking the fake stock engine received.
type deductCall struct {
	articleID int64
	count     float64
	reference string
}

type fakeStock struct {
	calls []deductCall
	// failArticles makes Deduct report an unsuccessful summary for an article.
	failArticles map[int64]bool
	// seenRefs simulates the engine's idempotency guard.
	seenRefs map[string]bool
	// short makes CheckAvailability report the article as unavailable.
	short map[int64]bool
}

func newFakeStock() *fakeStock {
	return &fakeStock{
		failArticles: make(map[int64]bool),
		seenRefs:     make(map[string]bool),
		short:        make(map[int64]bool),
	}
}

func (f *fakeStock) Deduct(ctx context.Context, input stock.DeductInput) (stock.MutationSummary, error) {
	key := input.Reference + "/" + input.Article.String()
	if f.seenRefs[key] {
		return stock.MutationSummary{}, stock.ErrDuplicateReference
	}
	if f.failArticles[input.Article.ID] {
		return stock.MutationSummary{Article: input.Article, Count: input.Count}, nil
	}
	f.seenRefs[key] = true
	f.calls = append(f.calls, deductCall{articleID: input.Article.ID, count: input.Count, reference: input.Reference})
	return stock.MutationSummary{Article: input.Article, Count: input.Count, Success: true}, nil
}

func (f *fakeStock) CheckAvailability(ctx context.Context, article stock.ArticleRef, count float64) (stock.MutationSummary, error) {
	return stock.MutationSummary{
		Article: article,
		Count:   count,
		DryRun:  true,
		Success: !f.short[article.ID],
	}, nil
}

type salesFixture struct {
	repo    *memOrderRepo
	stock   *fakeStock
	service *Service
}

func newSalesFixture() *salesFixture {
	repo := newMemOrderRepo()
	engine := newFakeStock()
	return &salesFixture{repo: repo, stock: engine, service: NewService(nil, repo, engine)}
}

func (f *salesFixture) openOrder(t *testing.T) Order {
	t.Helper()
	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		Number:       "SW-1001",
		CustomerName: "Greta Muster",
		Lines: []OrderLineInput{
			{ArticleID: 10, Quantity: 2},
			{ArticleID: 11, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return order
}

func TestCreateOrderFixesReference(t *testing.T) {
	f := newSalesFixture()
	order := f.openOrder(t)

	require.Equal(t, StatusOpen, order.Status)
	require.NotEmpty(t, order.Reference)
	require.Len(t, order.Lines, 2)
}

func TestCreateOrderValidatesInput(t *testing.T) {
	f := newSalesFixture()

	cases := []struct {
		name  string
		input CreateOrderInput
	}{
		{"no lines", CreateOrderInput{Number: "SW-1", CustomerName: "Greta Muster"}},
		{"zero quantity", CreateOrderInput{Number: "SW-1002", CustomerName: "Greta Muster", Lines: []OrderLineInput{{ArticleID: 10}}}},
		{"missing customer", CreateOrderInput{Number: "SW-1003", Lines: []OrderLineInput{{ArticleID: 10, Quantity: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateOrder(context.Background(), tc.input)
			require.Error(t, err)
		})
	}
}

func TestCompleteOrderBooksEveryLine(t *testing.T) {
	f := newSalesFixture()
	order := f.openOrder(t)

	report, err := f.service.CompleteOrder(context.Background(), order.ID, "maria")
	require.NoError(t, err)
	require.True(t, report.AllBooked)
	require.Equal(t, StatusCompleted, report.Status)

	require.Len(t, f.stock.calls, 2)
	require.Equal(t, int64(10), f.stock.calls[0].articleID)
	require.InDelta(t, 2.0, f.stock.calls[0].count, 1e-9)
	require.Equal(t, order.Reference, f.stock.calls[0].reference)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
}

func TestCompleteOrderPartialFailureStaysOpen(t *testing.T) {
	f := newSalesFixture()
	order := f.openOrder(t)
	f.stock.failArticles[11] = true

	report, err := f.service.CompleteOrder(context.Background(), order.ID, "maria")
	require.NoError(t, err)
	require.False(t, report.AllBooked)
	require.Equal(t, StatusOpen, report.Status)
	require.True(t, report.Lines[0].Applied)
	require.False(t, report.Lines[1].Applied)
	require.NotEmpty(t, report.Lines[1].Failure)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, stored.Status)
}

func TestCompleteOrderRetrySkipsBookedLines(t *testing.T) {
	f := newSalesFixture()
	order := f.openOrder(t)
	f.stock.failArticles[11] = true

	_, err := f.service.CompleteOrder(context.Background(), order.ID, "maria")
	require.NoError(t, err)
	require.Len(t, f.stock.calls, 1)

	// The failing article recovers; the retry must not book line one twice.
	delete(f.stock.failArticles, 11)
	report, err := f.service.CompleteOrder(context.Background(), order.ID, "maria")
	require.NoError(t, err)
	require.True(t, report.AllBooked)
	require.Equal(t, StatusCompleted, report.Status)
	require.True(t, report.Lines[0].Applied)

	require.Len(t, f.stock.calls, 2)
	require.Equal(t, int64(11), f.stock.calls[1].articleID)
}

func TestCompleteOrderRejectsNonOpen(t *testing.T) {
	f := newSalesFixture()
	order := f.openOrder(t)

	_, err := f.service.CompleteOrder(context.Background(), order.ID, "maria")
	require.NoError(t, err)

	_, err = f.service.CompleteOrder(context.Background(), order.ID, "maria")
	require.ErrorIs(t, err, ErrBadTransition)
}

func TestReturnOrderNegatesQuantitiesUnderFreshReference(t *testing.T) {
	f := newSalesFixture()
	order := f.openOrder(t)

	_, err := f.service.CompleteOrder(context.Background(), order.ID, "maria")
	require.NoError(t, err)

	report, err := f.service.ReturnOrder(context.Background(), order.ID, "maria")
	require.NoError(t, err)
	require.True(t, report.AllBooked)
	require.Equal(t, StatusReturned, report.Status)

	require.Len(t, f.stock.calls, 4)
	returnCall := f.stock.calls[2]
	require.InDelta(t, -2.0, returnCall.count, 1e-9)
	require.NotEqual(t, order.Reference, returnCall.reference)

	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, stored.Status)
}

func TestReturnOrderRequiresCompleted(t *testing.T) {
	f := newSalesFixture()
	order := f.openOrder(t)

	_, err := f.service.ReturnOrder(context.Background(), order.ID, "maria")
	require.ErrorIs(t, err, ErrBadTransition)
}

func TestCancelOrder(t *testing.T) {
	f := newSalesFixture()
	order := f.openOrder(t)

	require.NoError(t, f.service.CancelOrder(context.Background(), order.ID))
	stored, err := f.repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, stored.Status)

	require.ErrorIs(t, f.service.CancelOrder(context.Background(), order.ID), ErrBadTransition)
	require.Empty(t, f.stock.calls)
}

func TestPreviewReportsShortLines(t *testing.T) {
	f := newSalesFixture()
	order := f.openOrder(t)
	f.stock.short[11] = true

	report, err := f.service.PreviewOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.False(t, report.AllBooked)
	require.True(t, report.Lines[0].Applied)
	require.False(t, report.Lines[1].Applied)
	require.Empty(t, f.stock.calls)
}

func TestOrderNotFound(t *testing.T) {
	f := newSalesFixture()

	_, err := f.service.GetOrder(context.Background(), 99)
	require.ErrorIs(t, err, ErrOrderNotFound)
	_, err = f.service.CompleteOrder(context.Background(), 99, "maria")
	require.ErrorIs(t, err, ErrOrderNotFound)
}
