package progress

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/user"
)

var (
	// errors
	ErrNotFound   = errors.New("progress not found")
	ErrQuizLocked = errors.New("quiz is locked")
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		CreateProgress(ctx context.Context, prog Progress) (Progress, error)
		UpdateProgress(ctx context.Context, prog Progress) (Progress, error)
		GetProgressByUser(ctx context.Context, userID string) (Progress, error)
		QueryAllProgress(ctx context.Context) ([]Progress, error)
		QueryProgressByUsers(ctx context.Context, userIDs []string) ([]Progress, error)
		DeleteProgressByUser(ctx context.Context, userID string) error
	}

	// Service owns the progression state machine: it decides what is unlocked,
	// records completions and cascades unlocks forward. All mutation is scoped
	// to a single user's Progress record, persisted as a unit.
	Service struct {
		repo    Repository
		catalog *catalog.Service
		users   user.Repository
		mailSvc core.EmailService
		log     core.Logger
	}
)

func NewService(repo Repository, catalogSvc *catalog.Service, usrRepo user.Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalogSvc,
		users:   usrRepo,
		mailSvc: mailSvc,
		log:     logger,
	}
}

// Get returns the user's Progress record.
func (svc *Service) Get(ctx context.Context, userID string) (Progress, error) {
	return svc.repo.GetProgressByUser(ctx, userID)
}

// Delete removes the user's Progress record (user deletion case).
func (svc *Service) Delete(ctx context.Context, userID string) error {
	return svc.repo.DeleteProgressByUser(ctx, userID)
}

// EnsureDefaultAccess makes sure the user has a Progress record with the first
// module (and its first quiz, when one exists) unlocked. Idempotent; persists
// only when something actually changed. If no first module exists yet, the
// record is left unseeded.
func (svc *Service) EnsureDefaultAccess(ctx context.Context, userID string) (Progress, error) {
	prog, err := svc.repo.GetProgressByUser(ctx, userID)
	created := err == ErrNotFound
	if err != nil && !created {
		return Progress{}, pkgerrors.Wrap(err, "getting progress")
	}
	if created {
		now := nowFunc().UTC()
		prog = Progress{UserID: userID, CreatedAt: now, UpdatedAt: now}
	}

	changed, err := svc.seedDefaultAccess(ctx, &prog)
	if err != nil {
		return Progress{}, err
	}

	switch {
	case created:
		return svc.repo.CreateProgress(ctx, prog)
	case changed:
		return svc.save(ctx, prog)
	}
	return prog, nil
}

// seedDefaultAccess applies the default-access guarantees to a loaded record.
func (svc *Service) seedDefaultAccess(ctx context.Context, prog *Progress) (bool, error) {
	m1, err := svc.catalog.FindModuleByOrder(ctx, 1)
	if err != nil {
		if err == catalog.ErrModuleNotFound {
			return false, nil // empty catalog; nothing to seed
		}
		return false, pkgerrors.Wrap(err, "finding first module")
	}

	var changed bool
	if prog.unlockModule(m1.ID) {
		changed = true
	}
	if prog.Global.CurrentModule == "" {
		prog.Global.CurrentModule = m1.ID
		changed = true
	}

	mp, fresh := prog.ensureModuleEntry(m1.ID)
	if fresh {
		changed = true
	}
	if mp.Status == StatusLocked {
		mp.Status = StatusUnlocked
		changed = true
	}

	q1, err := svc.catalog.FindQuizByModuleAndOrder(ctx, m1.ID, 1)
	if err != nil {
		if err == catalog.ErrQuizNotFound {
			return changed, nil
		}
		return false, pkgerrors.Wrap(err, "finding first quiz")
	}
	if mp.unlockQuiz(q1.ID) {
		changed = true
	}
	if mp.CurrentQuiz == "" {
		mp.CurrentQuiz = q1.ID
		changed = true
	}
	return changed, nil
}

// CompleteQuiz records a scored attempt and, on a passing score, propagates
// unlocks forward: the next quiz in the module, or — when the module's last
// quiz is passed and every quiz in the module has ever been passed — the next
// module with its first quiz pre-unlocked.
func (svc *Service) CompleteQuiz(ctx context.Context, userID, quizID string, attempt QuizAttempt) (Progress, error) {
	// resolve the full catalog context before touching any state
	quiz, err := svc.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return Progress{}, err
	}
	mod, err := svc.catalog.GetModule(ctx, quiz.ModuleID)
	if err != nil {
		return Progress{}, err
	}
	quizzes, err := svc.catalog.FindQuizzesByModule(ctx, mod.ID)
	if err != nil {
		return Progress{}, pkgerrors.Wrap(err, "listing module quizzes")
	}

	prog, err := svc.EnsureDefaultAccess(ctx, userID)
	if err != nil {
		return Progress{}, err
	}

	if !prog.IsModuleUnlocked(mod.ID) || !prog.IsQuizUnlockedByOrder(quiz.ID, quiz.Order) {
		return Progress{}, ErrQuizLocked
	}

	hasPassed := attempt.Score >= quiz.PassThreshold()
	now := nowFunc().UTC()

	mp, _ := prog.ensureModuleEntry(mod.ID)
	mp.recordAttempt(quiz.ID, attempt.Score, hasPassed, now)
	if mp.Status == StatusUnlocked {
		mp.Status = StatusInProgress
	}

	_, passedCount := refreshModuleEntry(mp, quizzes)

	var completedModule bool
	var nextModule catalog.Module

	if hasPassed {
		if next := quizAtOrder(quizzes, quiz.Order+1); next != nil {
			mp.unlockQuiz(next.ID)
			mp.CurrentQuiz = next.ID
		} else if passedCount >= len(quizzes) && len(quizzes) > 0 {
			// last quiz by order, and every quiz in the module has been passed
			mp.Status = StatusCompleted
			prog.markModuleCompleted(mod.ID, now)
			completedModule = true

			nextModule, err = svc.unlockNextModule(ctx, &prog, mod)
			if err != nil {
				return Progress{}, err
			}
		}
		// not fully passed: the learner must retry the failed quizzes
	}

	prog, err = svc.save(ctx, prog)
	if err != nil {
		return Progress{}, err
	}

	if completedModule {
		svc.sendModuleCompletedMail(ctx, prog, mod, nextModule)
	}
	return prog, nil
}

// unlockNextModule unlocks the module following mod, makes it current and
// seeds a fresh entry with its first quiz pre-unlocked. Completing the last
// module of the curriculum is a no-op, not an error.
func (svc *Service) unlockNextModule(ctx context.Context, prog *Progress, mod catalog.Module) (catalog.Module, error) {
	next, err := svc.catalog.FindModuleByOrder(ctx, mod.Order+1)
	if err != nil {
		if err == catalog.ErrModuleNotFound {
			return catalog.Module{}, nil // curriculum complete
		}
		return catalog.Module{}, pkgerrors.Wrap(err, "finding next module")
	}

	prog.unlockModule(next.ID)
	prog.Global.CurrentModule = next.ID

	mp, _ := prog.ensureModuleEntry(next.ID)
	if mp.Status == StatusLocked {
		mp.Status = StatusUnlocked
	}
	if q1, err := svc.catalog.FindQuizByModuleAndOrder(ctx, next.ID, 1); err == nil {
		mp.unlockQuiz(q1.ID)
		mp.CurrentQuiz = q1.ID
	} else if err != catalog.ErrQuizNotFound {
		return catalog.Module{}, pkgerrors.Wrap(err, "finding next module's first quiz")
	}
	return next, nil
}

// RecalculateCompletionPercentage re-derives the module entry's percentage
// against the live catalog, pruning references to quizzes that no longer
// exist and re-pointing a stale current quiz. Persists only on change.
func (svc *Service) RecalculateCompletionPercentage(ctx context.Context, userID, moduleID string) (Progress, error) {
	prog, err := svc.repo.GetProgressByUser(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	mp := prog.ModuleEntry(moduleID)
	if mp == nil {
		return prog, nil
	}

	quizzes, err := svc.catalog.FindQuizzesByModule(ctx, moduleID)
	if err != nil {
		return Progress{}, pkgerrors.Wrap(err, "listing module quizzes")
	}
	if changed, _ := refreshModuleEntry(mp, quizzes); changed {
		return svc.save(ctx, prog)
	}
	return prog, nil
}

// CalculateModuleFinalScore returns the rounded mean of best scores across the
// module's completion records for the user; 0 when there are none.
func (svc *Service) CalculateModuleFinalScore(ctx context.Context, userID, moduleID string) (int, error) {
	prog, err := svc.repo.GetProgressByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return prog.ModuleFinalScore(moduleID), nil
}

func (svc *Service) save(ctx context.Context, prog Progress) (Progress, error) {
	prog.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateProgress(ctx, prog)
}

func (svc *Service) sendModuleCompletedMail(ctx context.Context, prog Progress, mod, next catalog.Module) {
	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: prog.UserID})
	if err != nil {
		svc.log.Warn(fmt.Sprintf("module completion mail: %v", err), err)
		return
	}
	if usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Module completed: " + mod.Name,
		TemplateName: "module-completed",
		TemplateData: struct {
			Name           string
			ModuleName     string
			FinalScore     int
			NextModuleName string
		}{usr.Name, mod.Name, prog.ModuleFinalScore(mod.ID), next.Name},
	})
}

// refreshModuleEntry is the single shared "recompute module state" step used
// by both the incremental completion path and batch repair: it drops
// references to quizzes no longer in the catalog, re-points a stale current
// quiz to the module's last existing quiz, and recomputes the completion
// percentage. Returns whether anything changed and how many of the module's
// live quizzes have ever been passed.
func refreshModuleEntry(mp *ModuleProgress, quizzes []catalog.Quiz) (changed bool, passedCount int) {
	live := make(map[string]bool, len(quizzes))
	for _, q := range quizzes {
		live[q.ID] = true
	}

	kept := mp.CompletedQuizzes[:0]
	for _, qc := range mp.CompletedQuizzes {
		if live[qc.QuizID] {
			kept = append(kept, qc)
			if qc.EverPassed {
				passedCount++
			}
		} else {
			changed = true
		}
	}
	mp.CompletedQuizzes = kept

	unlocked := mp.UnlockedQuizzes[:0]
	for _, id := range mp.UnlockedQuizzes {
		if live[id] {
			unlocked = append(unlocked, id)
		} else {
			changed = true
		}
	}
	mp.UnlockedQuizzes = unlocked

	if mp.CurrentQuiz != "" && !live[mp.CurrentQuiz] {
		mp.CurrentQuiz = ""
		if len(quizzes) > 0 {
			mp.CurrentQuiz = quizzes[len(quizzes)-1].ID // last existing quiz by order
		}
		changed = true
	}

	if pct := percentage(passedCount, len(quizzes)); pct != mp.CompletionPercentage {
		mp.CompletionPercentage = pct
		changed = true
	}
	return changed, passedCount
}

func quizAtOrder(quizzes []catalog.Quiz, order int) *catalog.Quiz {
	for i := range quizzes {
		if quizzes[i].Order == order {
			return &quizzes[i]
		}
	}
	return nil
}
