package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimu-lms/elimu/core/assignment"
)

type assignmentApi struct {
	svc assignment.ServiceInterface
}

func registerAssignmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc assignment.ServiceInterface,
) {
	api := assignmentApi{svc: svc}

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.upload, facultyOrAdminMiddleware())
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.GET("/:id/file", api.file)
	ag.DELETE("/:id", api.destroy, facultyOrAdminMiddleware())
}

// Handlers

func (api *assignmentApi) upload(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "a document is required in the `file` field")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	a, err := api.svc.Create(ctx.Request().Context(), claims.Subject, fileHeader.Filename, file)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	filter := new(assignment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []assignment.Assignment{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	as, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if as == nil {
		as = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, as)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

// file streams the stored document back; it backs the remediation pdfUrl.
func (api *assignmentApi) file(ctx echo.Context) error {
	a, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	rc, _, err := api.svc.OpenFile(ctx.Request().Context(), a)
	if err != nil {
		return err
	}
	defer rc.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+a.OriginalName+`"`)
	return ctx.Stream(http.StatusOK, "application/pdf", rc)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), claims.Subject, claims.IsAdmin); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
