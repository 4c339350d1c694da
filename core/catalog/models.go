package catalog

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
)

// DefaultPassingScore applies to quizzes created without an explicit threshold.
const DefaultPassingScore = 70

type (
	// Module is the ordering unit of the curriculum. Active module orders form
	// a dense sequence 1..N with no gaps or duplicates.
	Module struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Section   string    `json:"section"`
		Order     int       `json:"order"`
		Quizzes   []string  `json:"quizzes"` // quiz IDs, ascending order
		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}

	// Quiz is a gradable unit belonging to exactly one Module; its order is
	// dense and unique within that module.
	Quiz struct {
		ID           string    `json:"id"`
		ModuleID     string    `json:"module_id"`
		Title        string    `json:"title"`
		Order        int       `json:"order"`
		PassingScore int       `json:"passing_score"`
		CreatedAt    time.Time `json:"created_at"` // UTC
		UpdatedAt    time.Time `json:"updated_at"` // UTC
	}

	Section struct {
		Code  string `json:"code"`
		Label string `json:"label"`
	}
)

func (m Module) TotalQuizzes() int { return len(m.Quizzes) }

// PassThreshold returns the quiz's passing score, falling back to the default.
func (q Quiz) PassThreshold() int {
	if q.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return q.PassingScore
}

// NewModule contains information needed to create a new Module.
// New modules are always appended at the end of the sequence.
type NewModule struct {
	Name    string `json:"name" validate:"required"`
	Section string `json:"section" validate:"required"`
}

func (nm *NewModule) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Section = core.CleanString(nm.Section, true /* lower */)

	if err := validate.Struct(nm); err != nil {
		return err
	}
	return svc.checkSection(ctx, nm.Section)
}

// UpdateModule defines what may be modified on an existing Module.
// Order changes go through Service.MoveModule instead.
type UpdateModule struct {
	Name    string `json:"name"`
	Section string `json:"section"`
}

func (um *UpdateModule) Validate(ctx context.Context, validate *validator.Validate, svc *Service, orig Module) error {
	name := core.CleanString(um.Name)
	if name != "" {
		um.Name = name
	} else {
		um.Name = orig.Name
	}

	section := core.CleanString(um.Section, true /* lower */)
	if section != "" {
		um.Section = section
	} else {
		um.Section = orig.Section
	}

	if err := validate.Struct(um); err != nil {
		return err
	}
	return svc.checkSection(ctx, um.Section)
}

// NewQuiz contains information needed to create a new Quiz within a module.
type NewQuiz struct {
	ModuleID     string `json:"module_id" validate:"required"`
	Title        string `json:"title" validate:"required"`
	PassingScore int    `json:"passing_score" validate:"omitempty,min=1,max=100"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	return validate.Struct(nq)
}

// UpdateQuiz defines what may be modified on an existing Quiz.
type UpdateQuiz struct {
	Title        string `json:"title"`
	PassingScore int    `json:"passing_score" validate:"omitempty,min=1,max=100"`
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate, orig Quiz) error {
	title := core.CleanString(uq.Title)
	if title != "" {
		uq.Title = title
	} else {
		uq.Title = orig.Title
	}
	if uq.PassingScore == 0 {
		uq.PassingScore = orig.PassingScore
	}
	return validate.Struct(uq)
}

type (
	// ModuleGetFilter looks a Module up by exactly one of its fields.
	ModuleGetFilter struct {
		ID    string
		Order int
	}

	// QuizGetFilter looks a Quiz up by ID, or by (ModuleID, Order).
	QuizGetFilter struct {
		ID       string
		ModuleID string
		Order    int
	}
)
