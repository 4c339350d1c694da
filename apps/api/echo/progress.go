package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/progress"
)

type progressApi struct {
	svc      *progress.Service
	validate *validator.Validate
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{
		svc:      deps.ProgressSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/progress", jwt)
	pg.GET("/me", api.retrieveMine)
	pg.GET("/me/modules/:id/score", api.moduleScore)
	pg.POST("/me/modules/:id/recalculate", api.recalculateModule)
	pg.GET("/users/:id", api.retrieve, adminMiddleware())
	pg.POST("/repair", api.repair, adminMiddleware())

	g.POST("/quizzes/:id/submit", api.submitQuiz, jwt)
}

type (
	RepairRequest struct {
		UserIDs []string `json:"user_ids"`
	}

	ModuleScoreResponse struct {
		ModuleID   string `json:"module_id"`
		FinalScore int    `json:"final_score"`
	}
)

// Handlers

// retrieveMine returns the caller's progress record, creating and seeding it
// with the default access on first read.
func (api *progressApi) retrieveMine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	prog, err := api.svc.EnsureDefaultAccess(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "ensuring default access")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *progressApi) retrieve(ctx echo.Context) error {
	prog, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *progressApi) moduleScore(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	moduleID := ctx.Param("id")
	score, err := api.svc.CalculateModuleFinalScore(ctx.Request().Context(), claims.Subject, moduleID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ModuleScoreResponse{ModuleID: moduleID, FinalScore: score})
}

// recalculateModule re-derives the caller's completion percentage for one
// module against the live catalog, pruning any stale quiz references.
func (api *progressApi) recalculateModule(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	prog, err := api.svc.RecalculateCompletionPercentage(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *progressApi) submitQuiz(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var attempt progress.QuizAttempt
	if err = ctx.Bind(&attempt); err != nil {
		return errors.Wrap(err, "binding to QuizAttempt")
	}
	if err = attempt.Validate(api.validate); err != nil {
		return err
	}

	prog, err := api.svc.CompleteQuiz(ctx.Request().Context(), claims.Subject, ctx.Param("id"), attempt)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prog)
}

// repair runs a full consistency pass, over all records or only the given users.
func (api *progressApi) repair(ctx echo.Context) error {
	var data RepairRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RepairRequest")
	}

	report, err := api.svc.RepairAll(ctx.Request().Context(), data.UserIDs...)
	if err != nil {
		return errors.Wrap(err, "repairing progress")
	}
	return ctx.JSON(http.StatusOK, report)
}
