package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/progress"
)

// progressDoc is the JSONB document persisted per user; the whole unlock and
// completion state updates atomically as one value.
type progressDoc struct {
	Global  progress.GlobalProgress   `json:"global_progress"`
	Modules []progress.ModuleProgress `json:"module_progress"`
}

type progressRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Doc       types.JSONText `db:"doc"`
	CreatedAt null.Time      `db:"created_at"`
	UpdatedAt null.Time      `db:"updated_at"`
}

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

func (repo progressRepository) pack(prog progress.Progress) (progressRow, error) {
	doc, err := json.Marshal(progressDoc{Global: prog.Global, Modules: prog.Modules})
	if err != nil {
		return progressRow{}, errors.Wrap(err, "marshalling progress doc")
	}
	return progressRow{
		ID:        prog.ID,
		UserID:    prog.UserID,
		Doc:       doc,
		CreatedAt: null.NewTime(prog.CreatedAt.UTC(), !prog.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(prog.UpdatedAt.UTC(), !prog.UpdatedAt.IsZero()),
	}, nil
}

func (repo progressRepository) unpack(row progressRow) (progress.Progress, error) {
	var doc progressDoc
	if err := json.Unmarshal(row.Doc, &doc); err != nil {
		// unreadable stored state; the app cannot trust the database anymore
		return progress.Progress{}, core.NewShutdownError(
			fmt.Sprintf("corrupt progress document %s (user %s): %v", row.ID, row.UserID, err))
	}
	return progress.Progress{
		ID:        row.ID,
		UserID:    row.UserID,
		Global:    doc.Global,
		Modules:   doc.Modules,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}, nil
}

func (repo progressRepository) unpackSlice(rows []progressRow) ([]progress.Progress, error) {
	recs := make([]progress.Progress, 0, len(rows))
	for _, row := range rows {
		prog, err := repo.unpack(row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, prog)
	}
	return recs, nil
}

func (repo progressRepository) CreateProgress(ctx context.Context, prog progress.Progress) (progress.Progress, error) {
	prog.ID = uuid.New().String()
	row, err := repo.pack(prog)
	if err != nil {
		return progress.Progress{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO progress (id, user_id, doc, created_at, updated_at)
		VALUES (:id, :user_id, :doc, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "inserting progress")
	}
	return prog, nil
}

func (repo progressRepository) UpdateProgress(ctx context.Context, prog progress.Progress) (progress.Progress, error) {
	row, err := repo.pack(prog)
	if err != nil {
		return progress.Progress{}, err
	}
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE progress SET doc = :doc, updated_at = :updated_at WHERE id = :id`,
		row,
	)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "updating progress")
	}
	count, err := res.RowsAffected()
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "updating progress")
	}
	if count == 0 {
		return progress.Progress{}, progress.ErrNotFound
	}
	return prog, nil
}

func (repo progressRepository) GetProgressByUser(ctx context.Context, userID string) (progress.Progress, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return progress.Progress{}, progress.ErrNotFound
	}
	var row progressRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM progress WHERE user_id = $1`, userID); err != nil {
		if err == sql.ErrNoRows {
			return progress.Progress{}, progress.ErrNotFound
		}
		return progress.Progress{}, errors.Wrap(err, "finding progress")
	}
	return repo.unpack(row)
}

func (repo progressRepository) QueryAllProgress(ctx context.Context) ([]progress.Progress, error) {
	var rows []progressRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM progress`); err != nil {
		return nil, errors.Wrap(err, "querying progress records")
	}
	return repo.unpackSlice(rows)
}

func (repo progressRepository) QueryProgressByUsers(ctx context.Context, userIDs []string) ([]progress.Progress, error) {
	var rows []progressRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM progress WHERE user_id = ANY($1)`, pq.StringArray(userIDs))
	if err != nil {
		return nil, errors.Wrap(err, "querying progress records")
	}
	return repo.unpackSlice(rows)
}

func (repo progressRepository) DeleteProgressByUser(ctx context.Context, userID string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM progress WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "deleting progress")
	}
	return nil
}
