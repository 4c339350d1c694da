package catalog

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var (
	// errors
	ErrModuleNotFound = errors.New("module not found")
	ErrQuizNotFound   = errors.New("quiz not found")
	ErrUnknownSection = errors.New("unknown section code")
)

type (
	Repository interface {
		CreateModule(ctx context.Context, mod Module) (Module, error)
		UpdateModule(ctx context.Context, mod Module) (Module, error)
		DeleteModule(ctx context.Context, id string) error
		QueryModules(ctx context.Context, ordering ...core.DBOrdering) ([]Module, error)
		GetModule(ctx context.Context, filter ModuleGetFilter) (Module, error)
		NextModuleOrder(ctx context.Context) (int, error)
		// ShiftModuleOrders shifts the order of all modules with lo <= order <= hi
		// by delta. hi <= 0 means no upper bound.
		ShiftModuleOrders(ctx context.Context, lo, hi, delta int) error

		CreateQuiz(ctx context.Context, qz Quiz) (Quiz, error)
		UpdateQuiz(ctx context.Context, qz Quiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, id string) error
		QueryQuizzesByModule(ctx context.Context, moduleID string) ([]Quiz, error)
		GetQuiz(ctx context.Context, filter QuizGetFilter) (Quiz, error)
		NextQuizOrder(ctx context.Context, moduleID string) (int, error)
		ShiftQuizOrders(ctx context.Context, moduleID string, lo, hi, delta int) error

		QuerySections(ctx context.Context) ([]Section, error)
		SectionExists(ctx context.Context, code string) (bool, error)
	}

	// Service provides read access to the catalog and the administrative
	// operations that maintain the dense order sequences.
	Service struct {
		repo Repository
		log  core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, log: logger}
}

// Queries

func (svc *Service) FindModuleByOrder(ctx context.Context, order int) (Module, error) {
	return svc.repo.GetModule(ctx, ModuleGetFilter{Order: order})
}

func (svc *Service) FindModulesOrdered(ctx context.Context, ascending bool) ([]Module, error) {
	return svc.repo.QueryModules(ctx, core.DBOrdering{Field: "order", Ascending: ascending})
}

func (svc *Service) FindQuizzesByModule(ctx context.Context, moduleID string) ([]Quiz, error) {
	return svc.repo.QueryQuizzesByModule(ctx, moduleID)
}

func (svc *Service) FindQuizByModuleAndOrder(ctx context.Context, moduleID string, order int) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, QuizGetFilter{ModuleID: moduleID, Order: order})
}

func (svc *Service) GetModule(ctx context.Context, id string) (Module, error) {
	return svc.repo.GetModule(ctx, ModuleGetFilter{ID: id})
}

func (svc *Service) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, QuizGetFilter{ID: id})
}

func (svc *Service) Sections(ctx context.Context) ([]Section, error) {
	return svc.repo.QuerySections(ctx)
}

func (svc *Service) checkSection(ctx context.Context, code string) error {
	exists, err := svc.repo.SectionExists(ctx, code)
	if err != nil {
		return pkgerrors.Wrap(err, "checking section code")
	}
	if !exists {
		return core.NewValidationError(ErrUnknownSection, core.FieldError{Field: "section", Error: ErrUnknownSection.Error()})
	}
	return nil
}

// Administration

func (svc *Service) CreateModule(ctx context.Context, nm NewModule) (Module, error) {
	order, err := svc.repo.NextModuleOrder(ctx)
	if err != nil {
		return Module{}, pkgerrors.Wrap(err, "getting next module order")
	}

	now := time.Now().UTC()
	mod := Module{
		Name:      nm.Name,
		Section:   nm.Section,
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateModule(ctx, mod)
}

func (svc *Service) UpdateModule(ctx context.Context, id string, um UpdateModule) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, ModuleGetFilter{ID: id})
	if err != nil {
		return Module{}, err
	}
	mod.Name = um.Name
	mod.Section = um.Section
	mod.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateModule(ctx, mod)
}

// MoveModule re-sequences the module to newOrder, shifting the modules in
// between by one and preserving their relative order.
func (svc *Service) MoveModule(ctx context.Context, id string, newOrder int) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, ModuleGetFilter{ID: id})
	if err != nil {
		return Module{}, err
	}

	max, err := svc.repo.NextModuleOrder(ctx)
	if err != nil {
		return Module{}, pkgerrors.Wrap(err, "getting next module order")
	}
	max-- // NextModuleOrder is the count of modules + 1
	newOrder = clampOrder(newOrder, max)
	if newOrder == mod.Order {
		return mod, nil
	}

	if newOrder > mod.Order {
		err = svc.repo.ShiftModuleOrders(ctx, mod.Order+1, newOrder, -1)
	} else {
		err = svc.repo.ShiftModuleOrders(ctx, newOrder, mod.Order-1, +1)
	}
	if err != nil {
		return Module{}, pkgerrors.Wrap(err, "shifting module orders")
	}

	mod.Order = newOrder
	mod.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateModule(ctx, mod)
}

// DeleteModule removes the module (and its quizzes) and closes the order gap
// left behind. The deleted module is returned so the caller can trigger
// progress repair against it.
func (svc *Service) DeleteModule(ctx context.Context, id string) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, ModuleGetFilter{ID: id})
	if err != nil {
		return Module{}, err
	}
	if err = svc.repo.DeleteModule(ctx, mod.ID); err != nil {
		return Module{}, pkgerrors.Wrap(err, "deleting module")
	}
	if err = svc.repo.ShiftModuleOrders(ctx, mod.Order+1, 0, -1); err != nil {
		return Module{}, pkgerrors.Wrap(err, "closing module order gap")
	}
	return mod, nil
}

func (svc *Service) CreateQuiz(ctx context.Context, nq NewQuiz) (Quiz, error) {
	mod, err := svc.repo.GetModule(ctx, ModuleGetFilter{ID: nq.ModuleID})
	if err != nil {
		return Quiz{}, err
	}
	order, err := svc.repo.NextQuizOrder(ctx, mod.ID)
	if err != nil {
		return Quiz{}, pkgerrors.Wrap(err, "getting next quiz order")
	}

	passingScore := nq.PassingScore
	if passingScore == 0 {
		passingScore = DefaultPassingScore
	}

	now := time.Now().UTC()
	qz := Quiz{
		ModuleID:     mod.ID,
		Title:        nq.Title,
		Order:        order,
		PassingScore: passingScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateQuiz(ctx, qz)
}

func (svc *Service) UpdateQuiz(ctx context.Context, id string, uq UpdateQuiz) (Quiz, error) {
	qz, err := svc.repo.GetQuiz(ctx, QuizGetFilter{ID: id})
	if err != nil {
		return Quiz{}, err
	}
	qz.Title = uq.Title
	qz.PassingScore = uq.PassingScore
	qz.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateQuiz(ctx, qz)
}

func (svc *Service) MoveQuiz(ctx context.Context, id string, newOrder int) (Quiz, error) {
	qz, err := svc.repo.GetQuiz(ctx, QuizGetFilter{ID: id})
	if err != nil {
		return Quiz{}, err
	}

	max, err := svc.repo.NextQuizOrder(ctx, qz.ModuleID)
	if err != nil {
		return Quiz{}, pkgerrors.Wrap(err, "getting next quiz order")
	}
	max--
	newOrder = clampOrder(newOrder, max)
	if newOrder == qz.Order {
		return qz, nil
	}

	if newOrder > qz.Order {
		err = svc.repo.ShiftQuizOrders(ctx, qz.ModuleID, qz.Order+1, newOrder, -1)
	} else {
		err = svc.repo.ShiftQuizOrders(ctx, qz.ModuleID, newOrder, qz.Order-1, +1)
	}
	if err != nil {
		return Quiz{}, pkgerrors.Wrap(err, "shifting quiz orders")
	}

	qz.Order = newOrder
	qz.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateQuiz(ctx, qz)
}

// DeleteQuiz removes the quiz and closes the order gap within its module.
// The deleted quiz is returned so the caller can trigger progress repair.
func (svc *Service) DeleteQuiz(ctx context.Context, id string) (Quiz, error) {
	qz, err := svc.repo.GetQuiz(ctx, QuizGetFilter{ID: id})
	if err != nil {
		return Quiz{}, err
	}
	if err = svc.repo.DeleteQuiz(ctx, qz.ID); err != nil {
		return Quiz{}, pkgerrors.Wrap(err, "deleting quiz")
	}
	if err = svc.repo.ShiftQuizOrders(ctx, qz.ModuleID, qz.Order+1, 0, -1); err != nil {
		return Quiz{}, pkgerrors.Wrap(err, "closing quiz order gap")
	}
	return qz, nil
}

func clampOrder(order, max int) int {
	if order < 1 {
		return 1
	}
	if max > 0 && order > max {
		return max
	}
	return order
}
