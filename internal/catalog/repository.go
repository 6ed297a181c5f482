package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const articleColumns = `id, kind, name, unit, unlimited, reorder_threshold, created_at, updated_at`

func (r *Repository) GetArticle(ctx context.Context, id int64) (Article, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id=$1`, id)
	return scanArticle(row)
}

func (r *Repository) ListArticles(ctx context.Context, filters ListFilters) ([]Article, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filters.Kind != "" {
		args = append(args, filters.Kind)
		where = append(where, fmt.Sprintf("kind=$%d", len(args)))
	}
	if filters.Search != "" {
		args = append(args, "%"+strings.ToLower(filters.Search)+"%")
		where = append(where, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM articles WHERE %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		articleColumns, cond, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	articles := []Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func (r *Repository) CreateArticle(ctx context.Context, article Article) (Article, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO articles (kind, name, unit, unlimited, reorder_threshold, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING `+articleColumns, article.Kind, article.Name, article.Unit, article.Unlimited, article.ReorderThreshold)
	return scanArticle(row)
}

func (r *Repository) UpdateArticle(ctx context.Context, article Article) error {
	tag, err := r.pool.Exec(ctx, `UPDATE articles
SET name=$2, unit=$3, unlimited=$4, reorder_threshold=$5, updated_at=NOW()
WHERE id=$1`, article.ID, article.Name, article.Unit, article.Unlimited, article.ReorderThreshold)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrArticleNotFound
	}
	return nil
}

// DeleteArticle removes the article and its stock record. Movement history is
// kept; deletions never cascade into the ledger.
func (r *Repository) DeleteArticle(ctx context.Context, id int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	var kind Kind
	if err := tx.QueryRow(ctx, `DELETE FROM articles WHERE id=$1 RETURNING kind`, id).Scan(&kind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrArticleNotFound
		}
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM stock_records WHERE article_type=$1 AND article_id=$2`, kind, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM formulas WHERE article_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM formula_additives WHERE article_id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) GetFormula(ctx context.Context, articleID int64) (Formula, error) {
	var f Formula
	row := r.pool.QueryRow(ctx, `SELECT article_id, shape, unit_weight, material_id, soap1_id, soap2_id,
soap1_percent, soap2_percent, cast_material_id, fill_volume, shrinkage_percent, cast_factor
FROM formulas WHERE article_id=$1`, articleID)
	var materialID, soap1ID, soap2ID, castMaterialID *int64
	err := row.Scan(&f.ArticleID, &f.Shape, &f.UnitWeight, &materialID, &soap1ID, &soap2ID,
		&f.Soap1Percent, &f.Soap2Percent, &castMaterialID, &f.FillVolume, &f.ShrinkagePercent, &f.CastFactor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Formula{}, ErrNoFormula
		}
		return Formula{}, err
	}
	if materialID != nil {
		f.MaterialID = *materialID
	}
	if soap1ID != nil {
		f.Soap1ID = *soap1ID
	}
	if soap2ID != nil {
		f.Soap2ID = *soap2ID
	}
	if castMaterialID != nil {
		f.CastMaterialID = *castMaterialID
	}
	rows, err := r.pool.Query(ctx, `SELECT article_id, additive_id, factor, position
FROM formula_additives WHERE article_id=$1 ORDER BY position ASC`, articleID)
	if err != nil {
		return Formula{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var additive FormulaAdditive
		var owner int64
		if err := rows.Scan(&owner, &additive.ArticleID, &additive.Factor, &additive.Position); err != nil {
			return Formula{}, err
		}
		f.Additives = append(f.Additives, additive)
	}
	if err := rows.Err(); err != nil {
		return Formula{}, err
	}
	return f, nil
}

func (r *Repository) UpsertFormula(ctx context.Context, f Formula) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	_, err = tx.Exec(ctx, `INSERT INTO formulas
(article_id, shape, unit_weight, material_id, soap1_id, soap2_id, soap1_percent, soap2_percent,
 cast_material_id, fill_volume, shrinkage_percent, cast_factor)
VALUES ($1, $2, $3, NULLIF($4, 0), NULLIF($5, 0), NULLIF($6, 0), $7, $8, NULLIF($9, 0), $10, $11, $12)
ON CONFLICT (article_id) DO UPDATE SET
 shape=EXCLUDED.shape, unit_weight=EXCLUDED.unit_weight, material_id=EXCLUDED.material_id,
 soap1_id=EXCLUDED.soap1_id, soap2_id=EXCLUDED.soap2_id,
 soap1_percent=EXCLUDED.soap1_percent, soap2_percent=EXCLUDED.soap2_percent,
 cast_material_id=EXCLUDED.cast_material_id, fill_volume=EXCLUDED.fill_volume,
 shrinkage_percent=EXCLUDED.shrinkage_percent, cast_factor=EXCLUDED.cast_factor`,
		f.ArticleID, f.Shape, f.UnitWeight, f.MaterialID, f.Soap1ID, f.Soap2ID,
		f.Soap1Percent, f.Soap2Percent, f.CastMaterialID, f.FillVolume, f.ShrinkagePercent, f.CastFactor)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM formula_additives WHERE article_id=$1`, f.ArticleID); err != nil {
		return err
	}
	for _, additive := range f.Additives {
		_, err := tx.Exec(ctx, `INSERT INTO formula_additives (article_id, additive_id, factor, position)
VALUES ($1, $2, $3, $4)`, f.ArticleID, additive.ArticleID, additive.Factor, additive.Position)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func scanArticle(row pgx.Row) (Article, error) {
	var article Article
	err := row.Scan(&article.ID, &article.Kind, &article.Name, &article.Unit,
		&article.Unlimited, &article.ReorderThreshold, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Article{}, ErrArticleNotFound
		}
		return Article{}, err
	}
	return article, nil
}
