package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
)

type moduleRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Section   string         `db:"section"`
	Order     int            `db:"order"`
	Quizzes   pq.StringArray `db:"quizzes"`
	CreatedAt null.Time      `db:"created_at"`
	UpdatedAt null.Time      `db:"updated_at"`
}

type quizRow struct {
	ID           string    `db:"id"`
	ModuleID     string    `db:"module_id"`
	Title        string    `db:"title"`
	Order        int       `db:"order"`
	PassingScore int       `db:"passing_score"`
	CreatedAt    null.Time `db:"created_at"`
	UpdatedAt    null.Time `db:"updated_at"`
}

// moduleSelect aggregates the module's quiz IDs (in quiz order) in one query.
const moduleSelect = `
	SELECT m.*,
	       COALESCE(ARRAY_AGG(q.id ORDER BY q."order") FILTER (WHERE q.id IS NOT NULL), '{}') AS quizzes
	FROM module m
	LEFT JOIN quiz q ON q.module_id = m.id`

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (repo catalogRepository) unpackModule(row moduleRow) catalog.Module {
	return catalog.Module{
		ID:        row.ID,
		Name:      row.Name,
		Section:   row.Section,
		Order:     row.Order,
		Quizzes:   row.Quizzes,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (repo catalogRepository) unpackQuiz(row quizRow) catalog.Quiz {
	return catalog.Quiz{
		ID:           row.ID,
		ModuleID:     row.ModuleID,
		Title:        row.Title,
		Order:        row.Order,
		PassingScore: row.PassingScore,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

func (repo catalogRepository) CreateModule(ctx context.Context, mod catalog.Module) (catalog.Module, error) {
	mod.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO module (id, name, section, "order", created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		mod.ID, mod.Name, mod.Section, mod.Order, mod.CreatedAt, mod.UpdatedAt,
	)
	if err != nil {
		return catalog.Module{}, errors.Wrap(err, "inserting module")
	}
	return mod, nil
}

func (repo catalogRepository) UpdateModule(ctx context.Context, mod catalog.Module) (catalog.Module, error) {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE module SET name = $2, section = $3, "order" = $4, updated_at = $5 WHERE id = $1`,
		mod.ID, mod.Name, mod.Section, mod.Order, mod.UpdatedAt,
	)
	if err != nil {
		return catalog.Module{}, errors.Wrap(err, "updating module")
	}
	return mod, nil
}

func (repo catalogRepository) DeleteModule(ctx context.Context, id string) error {
	// quizzes go with it (ON DELETE CASCADE)
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM module WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return nil
}

func (repo catalogRepository) QueryModules(ctx context.Context, ordering ...core.DBOrdering) ([]catalog.Module, error) {
	query := moduleSelect + ` GROUP BY m.id`
	if len(ordering) > 0 {
		query += ` ORDER BY m."` + ordering[0].Field + `" `
		if ordering[0].Ascending {
			query += "ASC"
		} else {
			query += "DESC"
		}
	}

	var rows []moduleRow
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	modules := make([]catalog.Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, repo.unpackModule(row))
	}
	return modules, nil
}

func (repo catalogRepository) GetModule(ctx context.Context, filter catalog.ModuleGetFilter) (catalog.Module, error) {
	var row moduleRow
	var err error

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return catalog.Module{}, catalog.ErrModuleNotFound
		}
		err = repo.db.GetContext(ctx, &row, moduleSelect+` WHERE m.id = $1 GROUP BY m.id`, filter.ID)
	case filter.Order > 0:
		err = repo.db.GetContext(ctx, &row, moduleSelect+` WHERE m."order" = $1 GROUP BY m.id`, filter.Order)
	default:
		return catalog.Module{}, catalog.ErrModuleNotFound
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return catalog.Module{}, catalog.ErrModuleNotFound
		}
		return catalog.Module{}, errors.Wrap(err, "finding module")
	}
	return repo.unpackModule(row), nil
}

func (repo catalogRepository) NextModuleOrder(ctx context.Context) (int, error) {
	var next int
	err := repo.db.GetContext(ctx, &next, `SELECT COALESCE(MAX("order"), 0) + 1 FROM module`)
	return next, errors.Wrap(err, "getting next module order")
}

func (repo catalogRepository) ShiftModuleOrders(ctx context.Context, lo, hi, delta int) error {
	query := `UPDATE module SET "order" = "order" + $1 WHERE "order" >= $2`
	args := []interface{}{delta, lo}
	if hi > 0 {
		query += ` AND "order" <= $3`
		args = append(args, hi)
	}
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "shifting module orders")
	}
	return nil
}

func (repo catalogRepository) CreateQuiz(ctx context.Context, qz catalog.Quiz) (catalog.Quiz, error) {
	qz.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO quiz (id, module_id, title, "order", passing_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		qz.ID, qz.ModuleID, qz.Title, qz.Order, qz.PassingScore, qz.CreatedAt, qz.UpdatedAt,
	)
	if err != nil {
		return catalog.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return qz, nil
}

func (repo catalogRepository) UpdateQuiz(ctx context.Context, qz catalog.Quiz) (catalog.Quiz, error) {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE quiz SET title = $2, "order" = $3, passing_score = $4, updated_at = $5 WHERE id = $1`,
		qz.ID, qz.Title, qz.Order, qz.PassingScore, qz.UpdatedAt,
	)
	if err != nil {
		return catalog.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	return qz, nil
}

func (repo catalogRepository) DeleteQuiz(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM quiz WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return nil
}

func (repo catalogRepository) QueryQuizzesByModule(ctx context.Context, moduleID string) ([]catalog.Quiz, error) {
	var rows []quizRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM quiz WHERE module_id = $1 ORDER BY "order" ASC`, moduleID)
	if err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	quizzes := make([]catalog.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, repo.unpackQuiz(row))
	}
	return quizzes, nil
}

func (repo catalogRepository) GetQuiz(ctx context.Context, filter catalog.QuizGetFilter) (catalog.Quiz, error) {
	var row quizRow
	var err error

	switch {
	case filter.ID != "":
		if _, err = uuid.Parse(filter.ID); err != nil {
			return catalog.Quiz{}, catalog.ErrQuizNotFound
		}
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM quiz WHERE id = $1`, filter.ID)
	case filter.ModuleID != "" && filter.Order > 0:
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM quiz WHERE module_id = $1 AND "order" = $2`, filter.ModuleID, filter.Order)
	default:
		return catalog.Quiz{}, catalog.ErrQuizNotFound
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return catalog.Quiz{}, catalog.ErrQuizNotFound
		}
		return catalog.Quiz{}, errors.Wrap(err, "finding quiz")
	}
	return repo.unpackQuiz(row), nil
}

func (repo catalogRepository) NextQuizOrder(ctx context.Context, moduleID string) (int, error) {
	var next int
	err := repo.db.GetContext(ctx, &next, `SELECT COALESCE(MAX("order"), 0) + 1 FROM quiz WHERE module_id = $1`, moduleID)
	return next, errors.Wrap(err, "getting next quiz order")
}

func (repo catalogRepository) ShiftQuizOrders(ctx context.Context, moduleID string, lo, hi, delta int) error {
	query := `UPDATE quiz SET "order" = "order" + $1 WHERE module_id = $2 AND "order" >= $3`
	args := []interface{}{delta, moduleID, lo}
	if hi > 0 {
		query += ` AND "order" <= $4`
		args = append(args, hi)
	}
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "shifting quiz orders")
	}
	return nil
}

func (repo catalogRepository) QuerySections(ctx context.Context) ([]catalog.Section, error) {
	var sections []catalog.Section
	err := repo.db.SelectContext(ctx, &sections, `SELECT code, label FROM section ORDER BY code`)
	return sections, errors.Wrap(err, "querying sections")
}

func (repo catalogRepository) SectionExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM section WHERE code = $1)`, code)
	return exists, errors.Wrap(err, "checking section")
}
