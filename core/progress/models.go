package progress

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status describes a user's standing within one module.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusUnlocked   Status = "unlocked"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type (
	// Progress is the single per-user record tracking unlock and completion
	// state. It is loaded, mutated and persisted as a unit; catalog entities
	// are referenced by identity only.
	Progress struct {
		ID        string           `json:"id"`
		UserID    string           `json:"user_id"`
		Global    GlobalProgress   `json:"global_progress"`
		Modules   []ModuleProgress `json:"module_progress"`
		CreatedAt time.Time        `json:"created_at"` // UTC
		UpdatedAt time.Time        `json:"updated_at"` // UTC
	}

	GlobalProgress struct {
		// CurrentModule is the most-advanced module the user is actively
		// working in; empty until a first module exists.
		CurrentModule    string             `json:"current_module"`
		UnlockedModules  []string           `json:"unlocked_modules"`
		CompletedModules []ModuleCompletion `json:"completed_modules"`
	}

	ModuleCompletion struct {
		ModuleID    string    `json:"module_id"`
		CompletedAt time.Time `json:"completed_at"` // UTC
	}

	// ModuleProgress exists once per module the user has touched.
	ModuleProgress struct {
		ModuleID             string           `json:"module_id"`
		Status               Status           `json:"status"`
		CurrentQuiz          string           `json:"current_quiz"`
		UnlockedQuizzes      []string         `json:"unlocked_quizzes"`
		CompletedQuizzes     []QuizCompletion `json:"completed_quizzes"`
		CompletionPercentage int              `json:"completion_percentage"`
	}

	// QuizCompletion records the attempt history of one quiz.
	// Passed tracks the latest attempt only; EverPassed is sticky and never
	// reverts once true.
	QuizCompletion struct {
		QuizID      string    `json:"quiz_id"`
		Score       int       `json:"score"`      // latest attempt
		BestScore   int       `json:"best_score"` // maximum ever
		Attempts    int       `json:"attempts"`
		Passed      bool      `json:"passed"`
		EverPassed  bool      `json:"ever_passed"`
		CompletedAt time.Time `json:"completed_at"` // UTC, latest attempt
	}
)

// QuizAttempt is a scored submission flowing into CompleteQuiz.
type QuizAttempt struct {
	Score int `json:"score" validate:"min=0,max=100"`
}

func (qa QuizAttempt) Validate(validate *validator.Validate) error {
	return validate.Struct(qa)
}

// IsModuleUnlocked reports whether the module is in the unlocked set.
// Pure membership test; no catalog lookup.
func (p *Progress) IsModuleUnlocked(moduleID string) bool {
	return containsString(p.Global.UnlockedModules, moduleID)
}

// IsQuizUnlocked reports whether the quiz is unlocked in any module entry.
// Pure membership test; no catalog lookup.
func (p *Progress) IsQuizUnlocked(quizID string) bool {
	for i := range p.Modules {
		if containsString(p.Modules[i].UnlockedQuizzes, quizID) {
			return true
		}
	}
	return false
}

// IsQuizUnlockedByOrder is the authoritative access check: the first quiz of
// any module is never gated, everything else defers to the stored state.
// Callers resolve quizOrder from the catalog.
func (p *Progress) IsQuizUnlockedByOrder(quizID string, quizOrder int) bool {
	if quizOrder == 1 {
		return true
	}
	return p.IsQuizUnlocked(quizID)
}

// ModuleEntry returns the progress entry for the module, or nil.
func (p *Progress) ModuleEntry(moduleID string) *ModuleProgress {
	for i := range p.Modules {
		if p.Modules[i].ModuleID == moduleID {
			return &p.Modules[i]
		}
	}
	return nil
}

// ensureModuleEntry returns the existing entry or appends a fresh unlocked one.
func (p *Progress) ensureModuleEntry(moduleID string) (*ModuleProgress, bool) {
	if mp := p.ModuleEntry(moduleID); mp != nil {
		return mp, false
	}
	p.Modules = append(p.Modules, ModuleProgress{
		ModuleID: moduleID,
		Status:   StatusUnlocked,
	})
	return &p.Modules[len(p.Modules)-1], true
}

func (p *Progress) unlockModule(moduleID string) bool {
	if containsString(p.Global.UnlockedModules, moduleID) {
		return false
	}
	p.Global.UnlockedModules = append(p.Global.UnlockedModules, moduleID)
	return true
}

func (p *Progress) removeUnlockedModule(moduleID string) bool {
	next, removed := removeString(p.Global.UnlockedModules, moduleID)
	p.Global.UnlockedModules = next
	return removed
}

// markModuleCompleted appends a completion entry, idempotent by module identity.
func (p *Progress) markModuleCompleted(moduleID string, at time.Time) bool {
	for _, mc := range p.Global.CompletedModules {
		if mc.ModuleID == moduleID {
			return false
		}
	}
	p.Global.CompletedModules = append(p.Global.CompletedModules, ModuleCompletion{ModuleID: moduleID, CompletedAt: at})
	return true
}

func (p *Progress) removeCompletedModule(moduleID string) bool {
	for i, mc := range p.Global.CompletedModules {
		if mc.ModuleID == moduleID {
			p.Global.CompletedModules = append(p.Global.CompletedModules[:i], p.Global.CompletedModules[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Progress) removeModuleEntry(moduleID string) bool {
	for i := range p.Modules {
		if p.Modules[i].ModuleID == moduleID {
			p.Modules = append(p.Modules[:i], p.Modules[i+1:]...)
			return true
		}
	}
	return false
}

// ModuleFinalScore is the rounded mean of BestScore across the module's
// completion records; 0 if there are none.
func (p *Progress) ModuleFinalScore(moduleID string) int {
	mp := p.ModuleEntry(moduleID)
	if mp == nil || len(mp.CompletedQuizzes) == 0 {
		return 0
	}
	var sum int
	for _, qc := range mp.CompletedQuizzes {
		sum += qc.BestScore
	}
	return int(math.Round(float64(sum) / float64(len(mp.CompletedQuizzes))))
}

func (mp *ModuleProgress) completion(quizID string) *QuizCompletion {
	for i := range mp.CompletedQuizzes {
		if mp.CompletedQuizzes[i].QuizID == quizID {
			return &mp.CompletedQuizzes[i]
		}
	}
	return nil
}

func (mp *ModuleProgress) unlockQuiz(quizID string) bool {
	if containsString(mp.UnlockedQuizzes, quizID) {
		return false
	}
	mp.UnlockedQuizzes = append(mp.UnlockedQuizzes, quizID)
	return true
}

// recordAttempt applies one scored attempt to the quiz's completion record,
// creating it on first attempt. EverPassed only ever goes from false to true.
func (mp *ModuleProgress) recordAttempt(quizID string, score int, passed bool, at time.Time) {
	if rec := mp.completion(quizID); rec != nil {
		rec.Attempts++
		rec.Score = score
		if score > rec.BestScore {
			rec.BestScore = score
		}
		rec.Passed = passed
		rec.EverPassed = rec.EverPassed || passed
		rec.CompletedAt = at
		return
	}
	mp.CompletedQuizzes = append(mp.CompletedQuizzes, QuizCompletion{
		QuizID:      quizID,
		Score:       score,
		BestScore:   score,
		Attempts:    1,
		Passed:      passed,
		EverPassed:  passed,
		CompletedAt: at,
	})
}

func percentage(passed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(set []string, s string) ([]string, bool) {
	for i, v := range set {
		if v == s {
			return append(set[:i], set[i+1:]...), true
		}
	}
	return set, false
}
