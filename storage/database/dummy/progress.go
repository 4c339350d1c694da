package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/elimu/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

// clone deep-copies a record so callers never share slices with the store.
func clone(prog progress.Progress) progress.Progress {
	cp := prog
	cp.Global.UnlockedModules = append([]string(nil), prog.Global.UnlockedModules...)
	cp.Global.CompletedModules = append([]progress.ModuleCompletion(nil), prog.Global.CompletedModules...)
	cp.Modules = make([]progress.ModuleProgress, len(prog.Modules))
	for i, mp := range prog.Modules {
		mp.UnlockedQuizzes = append([]string(nil), mp.UnlockedQuizzes...)
		mp.CompletedQuizzes = append([]progress.QuizCompletion(nil), mp.CompletedQuizzes...)
		cp.Modules[i] = mp
	}
	return cp
}

func (repo *progressRepository) CreateProgress(ctx context.Context, prog progress.Progress) (progress.Progress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	prog.ID = uuid.New().String()
	stored := clone(prog)
	repo.db.table[prog.UserID] = &stored
	return prog, nil
}

func (repo *progressRepository) UpdateProgress(ctx context.Context, prog progress.Progress) (progress.Progress, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[prog.UserID]; !ok {
		return progress.Progress{}, progress.ErrNotFound
	}
	stored := clone(prog)
	repo.db.table[prog.UserID] = &stored
	return prog, nil
}

func (repo *progressRepository) GetProgressByUser(ctx context.Context, userID string) (progress.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if prog, ok := repo.db.table[userID]; ok {
		return clone(*prog), nil
	}
	return progress.Progress{}, progress.ErrNotFound
}

func (repo *progressRepository) QueryAllProgress(ctx context.Context) ([]progress.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]progress.Progress, 0, len(repo.db.table))
	for _, prog := range repo.db.table {
		recs = append(recs, clone(*prog))
	}
	return recs, nil
}

func (repo *progressRepository) QueryProgressByUsers(ctx context.Context, userIDs []string) ([]progress.Progress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]progress.Progress, 0, len(userIDs))
	for _, uid := range userIDs {
		if prog, ok := repo.db.table[uid]; ok {
			recs = append(recs, clone(*prog))
		}
	}
	return recs, nil
}

func (repo *progressRepository) DeleteProgressByUser(ctx context.Context, userID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, userID)
	return nil
}
