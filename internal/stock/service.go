package stock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/seifenwerk/seifenwerk/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards operation references. A key is only kept once the
// whole operation applied; failed runs release it so the caller can retry.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates stock mutations: it resolves the material breakdown,
// validates sufficiency, applies all deltas and appends ledger entries.
type Service struct {
	store       Store
	ledger      Ledger
	catalog     CatalogPort
	resolver    *Resolver
	validator   *Validator
	audit       AuditPort
	idempotency IdempotencyPort
	cache       *LowStockCache
}

// NewService builds Service. Audit, idempotency and cache are optional.
func NewService(store Store, ledger Ledger, catalog CatalogPort, audit AuditPort, idem IdempotencyPort, cache *LowStockCache) *Service {
	return &Service{
		store:       store,
		ledger:      ledger,
		catalog:     catalog,
		resolver:    NewResolver(catalog),
		validator:   NewValidator(store),
		audit:       audit,
		idempotency: idem,
		cache:       cache,
	}
}

// ProduceInput describes a production run. A negative count reverses a
// previous run.
type ProduceInput struct {
	Article   ArticleRef
	Count     float64
	Reason    string
	Reference string
	Actor     string
	DryRun    bool
}

// DeductInput describes a sale completion or retroactive invoice deduction.
// A negative count restocks (customer return / credit note).
type DeductInput struct {
	Article   ArticleRef
	Count     float64
	Reason    string
	Reference string
	Actor     string
	DryRun    bool
}

// CountInput describes a manual inventory count.
type CountInput struct {
	Article  ArticleRef
	Quantity float64
	Reason   string
	Actor    string
}

type opKind string

const (
	opProduce opKind = "produce"
	opDeduct  opKind = "deduct"
)

// plannedApply is one store mutation the operation will attempt.
type plannedApply struct {
	line     ConsumptionLine
	delta    float64
	movement MovementType
	// clamp floors the result at zero instead of rejecting. Used for the
	// finished good's own record when deducting made-to-order stock.
	clamp    bool
	validate bool
}

// Produce books a production run: raw materials are consumed per formula and
// the finished good's own stock is incremented in the same pass.
func (s *Service) Produce(ctx context.Context, input ProduceInput) (MutationSummary, error) {
	return s.run(ctx, opProduce, input.Article, input.Count, input.Reason, input.Reference, input.Actor, input.DryRun)
}

// Deduct books a consumption against a sale or invoice: raw materials are
// consumed per formula; the finished good's own record is decremented but
// clamped at zero because most goods are made to order.
func (s *Service) Deduct(ctx context.Context, input DeductInput) (MutationSummary, error) {
	return s.run(ctx, opDeduct, input.Article, input.Count, input.Reason, input.Reference, input.Actor, input.DryRun)
}

// CheckAvailability reports whether count units of the article could be
// produced or deducted right now. Never mutates anything.
func (s *Service) CheckAvailability(ctx context.Context, article ArticleRef, count float64) (MutationSummary, error) {
	return s.run(ctx, opDeduct, article, count, "availability check", "", shared.SystemActor, true)
}

func (s *Service) run(ctx context.Context, kind opKind, article ArticleRef, count float64, reason, reference, actor string, dryRun bool) (MutationSummary, error) {
	if count == 0 || math.IsNaN(count) || math.IsInf(count, 0) {
		return MutationSummary{}, ErrInvalidQuantity
	}
	if !article.Type.Valid() || article.ID == 0 {
		return MutationSummary{}, ErrArticleNotFound
	}
	summary := MutationSummary{Article: article, Count: count, DryRun: dryRun}

	// Resolving.
	plan, err := s.resolve(ctx, kind, article, count)
	if err != nil {
		return MutationSummary{}, err
	}
	summary.MultiComponent = len(plan) > 2

	// Validating.
	toValidate := make([]ConsumptionLine, 0, len(plan))
	for _, p := range plan {
		if p.validate {
			toValidate = append(toValidate, p.line)
		}
	}
	validation, err := s.validator.Validate(ctx, toValidate, validationMode(dryRun))
	if err != nil {
		return MutationSummary{}, err
	}
	summary.Validation = validation
	if dryRun {
		summary.Success = validation.OK
		return summary, nil
	}
	if !validation.OK {
		return MutationSummary{}, &InsufficientStockError{Article: article, Shortfalls: validation.Shortfalls()}
	}

	// Applying. Lines are applied sequentially; a line that loses a race after
	// validation does not roll back the ones already committed. The summary
	// reports exactly which lines applied.
	var idemKey string
	if reference != "" && s.idempotency != nil {
		idemKey = shared.DigestKey("stock", string(kind), article.String(), reference)
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "stock"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return MutationSummary{}, ErrDuplicateReference
			}
			return MutationSummary{}, err
		}
	}
	now := time.Now().UTC()
	summary.Success = true
	for _, p := range plan {
		result := s.applyLine(ctx, p, reason, reference, actor, now)
		if !result.Applied {
			summary.Success = false
		}
		summary.Lines = append(summary.Lines, result)
	}
	if !summary.Success && idemKey != "" {
		// A failed run stays retryable; the reference is only burned once
		// every line applied.
		_ = s.idempotency.Delete(ctx, idemKey)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   fmt.Sprintf("stock:%s", kind),
			Entity:   "stock_mutation",
			EntityID: article.String(),
			Meta: map[string]any{
				"count":     count,
				"reason":    reason,
				"reference": reference,
				"success":   summary.Success,
			},
		})
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	return summary, nil
}

// resolve builds the ordered apply plan: material lines first, the article's
// own record last.
func (s *Service) resolve(ctx context.Context, kind opKind, article ArticleRef, count float64) ([]plannedApply, error) {
	info, err := s.catalog.ArticleInfo(ctx, article)
	if err != nil {
		return nil, err
	}
	selfLine := ConsumptionLine{Ref: article, Name: info.Name, Unit: info.Unit, PerUnit: 1, Factor: 1}

	if article.Type != ArticleFinishedGood {
		// Raw materials and packaging have no formula; the operation is a
		// single self-line.
		return []plannedApply{selfSingle(selfLine, kind, count, info)}, nil
	}

	cfg, err := s.catalog.FormulaConfig(ctx, article.ID)
	if err != nil {
		return nil, err
	}
	if cfg.Shape == ShapeNone {
		// Finished goods without a multi-material formula (e.g. bought-in
		// accessories) proceed directly as a single self-line.
		return []plannedApply{selfSingle(selfLine, kind, count, info)}, nil
	}

	lines, err := s.resolver.Resolve(ctx, cfg, count)
	if err != nil {
		return nil, err
	}
	plan := make([]plannedApply, 0, len(lines)+1)
	for _, line := range lines {
		movement := MovementOut
		if -line.Required > 0 {
			movement = MovementReturn
		}
		// Unlimited materials (tap water) never block; their record floors
		// at zero instead of rejecting the draw.
		plan = append(plan, plannedApply{line: line, delta: -line.Required, movement: movement, clamp: line.Unlimited, validate: true})
	}
	switch kind {
	case opProduce:
		movement := MovementProduction
		if count < 0 {
			movement = MovementReturn
		}
		plan = append(plan, plannedApply{line: selfLine, delta: count, movement: movement})
	case opDeduct:
		movement := MovementOut
		if count < 0 {
			movement = MovementReturn
		}
		// Made-to-order goods usually hold no own stock; clamp instead of
		// rejecting so the materials still book.
		plan = append(plan, plannedApply{line: selfLine, delta: -count, movement: movement, clamp: true})
	}
	return plan, nil
}

func selfSingle(selfLine ConsumptionLine, kind opKind, count float64, info ArticleInfo) plannedApply {
	delta := count
	if kind == opDeduct {
		delta = -count
	}
	movement := MovementIn
	if delta < 0 {
		movement = MovementOut
	}
	line := selfLine
	line.Required = -delta
	line.Unlimited = info.Unlimited || nameLooksUnlimited(info.Name)
	return plannedApply{line: line, delta: delta, movement: movement, clamp: line.Unlimited, validate: true}
}

func (s *Service) applyLine(ctx context.Context, p plannedApply, reason, reference, actor string, at time.Time) LineResult {
	result := LineResult{Line: p.line, Delta: p.delta}
	record, err := s.store.GetOrCreate(ctx, p.line.Ref, p.line.Unit)
	if err != nil {
		result.Failure = err.Error()
		return result
	}
	delta := p.delta
	if p.clamp && delta < 0 && record.Quantity+delta < 0 {
		delta = -record.Quantity
	}
	if delta == 0 {
		// Nothing to move: a fully clamped draw or a zero-required line
		// (factor 0 additive, 100/0 blend component). The store rejects
		// zero deltas, so record the zero-delta ledger entry directly.
		result.Applied = true
		result.Before = record.Quantity
		result.After = record.Quantity
		result.Delta = 0
		s.appendMovement(ctx, p, 0, record.Quantity, record.Quantity, reason, reference, actor, at)
		return result
	}
	before, after, err := s.store.ApplyDelta(ctx, p.line.Ref, delta, reason)
	if err != nil {
		if errors.Is(err, ErrNegativeStock) {
			underrun := &ConcurrentUnderrunError{Ref: p.line.Ref, Required: -delta}
			result.Failure = underrun.Error()
		} else {
			result.Failure = err.Error()
		}
		return result
	}
	result.Applied = true
	result.Before = before
	result.After = after
	result.Delta = delta
	s.appendMovement(ctx, p, delta, before, after, reason, reference, actor, at)
	return result
}

func (s *Service) appendMovement(ctx context.Context, p plannedApply, delta, before, after float64, reason, reference, actor string, at time.Time) {
	// Unlimited materials still land in the ledger for traceability.
	_, _ = s.ledger.Append(ctx, Movement{
		Ref:       p.line.Ref,
		Type:      p.movement,
		Delta:     delta,
		Unit:      p.line.Unit,
		Before:    before,
		After:     after,
		Reason:    reason,
		Reference: reference,
		Actor:     actor,
		At:        at,
	})
}

// CountInventory overwrites the stored quantity after a physical count and
// books a COUNT ledger entry. Corrections never edit history.
func (s *Service) CountInventory(ctx context.Context, input CountInput) (Movement, error) {
	if !input.Article.Type.Valid() || input.Article.ID == 0 {
		return Movement{}, ErrArticleNotFound
	}
	info, err := s.catalog.ArticleInfo(ctx, input.Article)
	if err != nil {
		return Movement{}, err
	}
	if _, err := s.store.GetOrCreate(ctx, input.Article, info.Unit); err != nil {
		return Movement{}, err
	}
	reason := input.Reason
	if reason == "" {
		reason = "inventory count"
	}
	before, after, err := s.store.SetAbsolute(ctx, input.Article, input.Quantity, reason)
	if err != nil {
		return Movement{}, err
	}
	movement := Movement{
		Ref:    input.Article,
		Type:   MovementCount,
		Delta:  after - before,
		Unit:   info.Unit,
		Before: before,
		After:  after,
		Reason: reason,
		Actor:  input.Actor,
		At:     time.Now().UTC(),
	}
	if movement.ID, err = s.ledger.Append(ctx, movement); err != nil {
		return Movement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    input.Actor,
			Action:   "stock:count",
			Entity:   "stock_record",
			EntityID: input.Article.String(),
			Meta:     map[string]any{"before": before, "after": after},
		})
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	return movement, nil
}

// LowStock lists records below their reorder threshold.
func (s *Service) LowStock(ctx context.Context) ([]StockRecord, error) {
	if s.cache != nil {
		return s.cache.Fetch(ctx, s.store.ListBelowThreshold)
	}
	return s.store.ListBelowThreshold(ctx)
}

// History lists ledger entries for one article, most recent first.
func (s *Service) History(ctx context.Context, ref ArticleRef, limit int) ([]Movement, error) {
	if !ref.Type.Valid() || ref.ID == 0 {
		return nil, ErrArticleNotFound
	}
	return s.ledger.History(ctx, ref, limit)
}

func validationMode(dryRun bool) ValidationMode {
	if dryRun {
		return ModePreview
	}
	return ModeCommit
}
