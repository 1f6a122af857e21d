package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimu-lms/elimu/core/quiz"
	"github.com/elimu-lms/elimu/core/user"
)

type quizApi struct {
	svc      quiz.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerQuizAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc quiz.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := quizApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	qg := g.Group("/quizzes", jwt)
	qg.POST("/generate", api.generate, facultyOrAdminMiddleware())
	qg.GET("", api.retrieve)
	qg.POST("/submit", api.submit)
	qg.GET("/attempts", api.attempts)
}

// Handlers

func (api *quizApi) generate(ctx echo.Context) error {
	var data GenerateQuizRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateQuizRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	cq, err := api.svc.Generate(ctx.Request().Context(), data.AssignmentID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cq)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	assignmentID := ctx.QueryParam("assignment_id")
	if assignmentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "assignment_id is required")
	}

	cq, err := api.svc.GetByAssignment(ctx.Request().Context(), assignmentID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cq)
}

func (api *quizApi) submit(ctx echo.Context) error {
	var data quiz.SubmitAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAttempt")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) attempts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	attempts, err := api.svc.Attempts(ctx.Request().Context(), usr, ctx.QueryParam("assignment_id"))
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

type GenerateQuizRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
}
