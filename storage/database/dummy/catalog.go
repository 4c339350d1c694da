package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
)

type catalogRepository struct {
	db *catalogTable
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db.catalog}
}

// withQuizzes fills in the module's aggregated quiz ID list.
// callers must hold at least a read lock.
func (repo *catalogRepository) withQuizzes(mod catalog.Module) catalog.Module {
	quizzes := repo.moduleQuizzes(mod.ID)
	mod.Quizzes = make([]string, 0, len(quizzes))
	for _, qz := range quizzes {
		mod.Quizzes = append(mod.Quizzes, qz.ID)
	}
	return mod
}

func (repo *catalogRepository) moduleQuizzes(moduleID string) []catalog.Quiz {
	var quizzes []catalog.Quiz
	for _, qz := range repo.db.quizzes {
		if qz.ModuleID == moduleID {
			quizzes = append(quizzes, *qz)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].Order < quizzes[j].Order })
	return quizzes
}

func (repo *catalogRepository) CreateModule(ctx context.Context, mod catalog.Module) (catalog.Module, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	mod.ID = uuid.New().String()
	repo.db.modules[mod.ID] = &mod
	return repo.withQuizzes(mod), nil
}

func (repo *catalogRepository) UpdateModule(ctx context.Context, mod catalog.Module) (catalog.Module, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.modules[mod.ID]
	if !ok {
		return catalog.Module{}, catalog.ErrModuleNotFound
	}
	orig.Name = mod.Name
	orig.Section = mod.Section
	orig.Order = mod.Order
	orig.UpdatedAt = mod.UpdatedAt
	return repo.withQuizzes(*orig), nil
}

func (repo *catalogRepository) DeleteModule(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.modules, id)
	for qid, qz := range repo.db.quizzes {
		if qz.ModuleID == id {
			delete(repo.db.quizzes, qid)
		}
	}
	return nil
}

func (repo *catalogRepository) QueryModules(ctx context.Context, ordering ...core.DBOrdering) ([]catalog.Module, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	modules := make([]catalog.Module, 0, len(repo.db.modules))
	for _, mod := range repo.db.modules {
		modules = append(modules, repo.withQuizzes(*mod))
	}
	ascending := true
	if len(ordering) > 0 {
		ascending = ordering[0].Ascending
	}
	sort.Slice(modules, func(i, j int) bool {
		if ascending {
			return modules[i].Order < modules[j].Order
		}
		return modules[i].Order > modules[j].Order
	})
	return modules, nil
}

func (repo *catalogRepository) GetModule(ctx context.Context, filter catalog.ModuleGetFilter) (catalog.Module, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if mod, ok := repo.db.modules[filter.ID]; ok {
			return repo.withQuizzes(*mod), nil
		}
		return catalog.Module{}, catalog.ErrModuleNotFound
	}
	for _, mod := range repo.db.modules {
		if mod.Order == filter.Order {
			return repo.withQuizzes(*mod), nil
		}
	}
	return catalog.Module{}, catalog.ErrModuleNotFound
}

func (repo *catalogRepository) NextModuleOrder(ctx context.Context) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var max int
	for _, mod := range repo.db.modules {
		if mod.Order > max {
			max = mod.Order
		}
	}
	return max + 1, nil
}

func (repo *catalogRepository) ShiftModuleOrders(ctx context.Context, lo, hi, delta int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, mod := range repo.db.modules {
		if mod.Order >= lo && (hi <= 0 || mod.Order <= hi) {
			mod.Order += delta
		}
	}
	return nil
}

func (repo *catalogRepository) CreateQuiz(ctx context.Context, qz catalog.Quiz) (catalog.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.modules[qz.ModuleID]; !ok {
		return catalog.Quiz{}, catalog.ErrModuleNotFound
	}
	qz.ID = uuid.New().String()
	repo.db.quizzes[qz.ID] = &qz
	return qz, nil
}

func (repo *catalogRepository) UpdateQuiz(ctx context.Context, qz catalog.Quiz) (catalog.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.quizzes[qz.ID]
	if !ok {
		return catalog.Quiz{}, catalog.ErrQuizNotFound
	}
	orig.Title = qz.Title
	orig.Order = qz.Order
	orig.PassingScore = qz.PassingScore
	orig.UpdatedAt = qz.UpdatedAt
	return *orig, nil
}

func (repo *catalogRepository) DeleteQuiz(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.quizzes, id)
	return nil
}

func (repo *catalogRepository) QueryQuizzesByModule(ctx context.Context, moduleID string) ([]catalog.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	quizzes := repo.moduleQuizzes(moduleID)
	if quizzes == nil {
		quizzes = []catalog.Quiz{}
	}
	return quizzes, nil
}

func (repo *catalogRepository) GetQuiz(ctx context.Context, filter catalog.QuizGetFilter) (catalog.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if qz, ok := repo.db.quizzes[filter.ID]; ok {
			return *qz, nil
		}
		return catalog.Quiz{}, catalog.ErrQuizNotFound
	}
	for _, qz := range repo.db.quizzes {
		if qz.ModuleID == filter.ModuleID && qz.Order == filter.Order {
			return *qz, nil
		}
	}
	return catalog.Quiz{}, catalog.ErrQuizNotFound
}

func (repo *catalogRepository) NextQuizOrder(ctx context.Context, moduleID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var max int
	for _, qz := range repo.db.quizzes {
		if qz.ModuleID == moduleID && qz.Order > max {
			max = qz.Order
		}
	}
	return max + 1, nil
}

func (repo *catalogRepository) ShiftQuizOrders(ctx context.Context, moduleID string, lo, hi, delta int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, qz := range repo.db.quizzes {
		if qz.ModuleID == moduleID && qz.Order >= lo && (hi <= 0 || qz.Order <= hi) {
			qz.Order += delta
		}
	}
	return nil
}

func (repo *catalogRepository) QuerySections(ctx context.Context) ([]catalog.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sections := make([]catalog.Section, 0, len(repo.db.sections))
	for _, sec := range repo.db.sections {
		sections = append(sections, sec)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Code < sections[j].Code })
	return sections, nil
}

func (repo *catalogRepository) SectionExists(ctx context.Context, code string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	_, ok := repo.db.sections[code]
	return ok, nil
}
