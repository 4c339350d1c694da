package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/progress"
)

type catalogApi struct {
	svc         *catalog.Service
	progressSvc *progress.Service
	validate    *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := catalogApi{
		svc:         deps.CatalogSvc,
		progressSvc: deps.ProgressSvc,
		validate:    deps.Validate,
	}

	cg := g.Group("/catalog", jwt)
	cg.GET("/sections", api.querySections)

	mg := cg.Group("/modules")
	mg.GET("", api.queryModules)
	mg.POST("", api.createModule, adminMiddleware())
	mg.GET("/:id", api.retrieveModule)
	mg.PUT("/:id", api.updateModule, adminMiddleware())
	mg.POST("/:id/move", api.moveModule, adminMiddleware())
	mg.DELETE("/:id", api.destroyModule, adminMiddleware())
	mg.GET("/:id/quizzes", api.queryQuizzes)
	mg.POST("/:id/quizzes", api.createQuiz, adminMiddleware())

	qg := cg.Group("/quizzes")
	qg.GET("/:id", api.retrieveQuiz)
	qg.PUT("/:id", api.updateQuiz, adminMiddleware())
	qg.POST("/:id/move", api.moveQuiz, adminMiddleware())
	qg.DELETE("/:id", api.destroyQuiz, adminMiddleware())
}

// Handlers

func (api *catalogApi) querySections(ctx echo.Context) error {
	sections, err := api.svc.Sections(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *catalogApi) queryModules(ctx echo.Context) error {
	ascending := ctx.QueryParam(orderingParam) != "-order"
	modules, err := api.svc.FindModulesOrdered(ctx.Request().Context(), ascending)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *catalogApi) createModule(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	var data catalog.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	mod, err := api.svc.CreateModule(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *catalogApi) retrieveModule(ctx echo.Context) error {
	mod, err := api.svc.GetModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *catalogApi) updateModule(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	orig, err := api.svc.GetModule(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data catalog.UpdateModule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err = data.Validate(reqCtx, api.validate, api.svc, orig); err != nil {
		return err
	}

	mod, err := api.svc.UpdateModule(reqCtx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *catalogApi) moveModule(ctx echo.Context) error {
	var data MoveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MoveRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.MoveModule(ctx.Request().Context(), ctx.Param("id"), data.Order)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mod)
}

// destroyModule removes the module, then repairs every progress record that
// still references it.
func (api *catalogApi) destroyModule(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	mod, err := api.svc.DeleteModule(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = api.progressSvc.RepairAfterModuleDeletion(reqCtx, mod); err != nil {
		return errors.Wrap(err, "repairing progress")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryQuizzes(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	mod, err := api.svc.GetModule(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	quizzes, err := api.svc.FindQuizzesByModule(reqCtx, mod.ID)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

func (api *catalogApi) createQuiz(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	var data catalog.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	data.ModuleID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	qz, err := api.svc.CreateQuiz(reqCtx, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, qz)
}

func (api *catalogApi) retrieveQuiz(ctx echo.Context) error {
	qz, err := api.svc.GetQuiz(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *catalogApi) updateQuiz(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	orig, err := api.svc.GetQuiz(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data catalog.UpdateQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err = data.Validate(api.validate, orig); err != nil {
		return err
	}

	qz, err := api.svc.UpdateQuiz(reqCtx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *catalogApi) moveQuiz(ctx echo.Context) error {
	var data MoveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MoveRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	qz, err := api.svc.MoveQuiz(ctx.Request().Context(), ctx.Param("id"), data.Order)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, qz)
}

// destroyQuiz removes the quiz, then refreshes the affected module entries in
// every progress record.
func (api *catalogApi) destroyQuiz(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	qz, err := api.svc.DeleteQuiz(reqCtx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if _, err = api.progressSvc.RepairAfterQuizDeletion(reqCtx, qz); err != nil {
		return errors.Wrap(err, "repairing progress")
	}
	return ctx.NoContent(http.StatusNoContent)
}
