package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/enrollment"
)

var errClsNotFoundInCtx = errors.New("class object not found in echo.Context")

type classApi struct {
	auth     *authenticator
	svc      class.Service
	enrolSvc enrollment.Service
	validate *validator.Validate
}

func registerClassAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc class.Service,
	enrolSvc enrollment.Service,
	validate *validator.Validate,
) {
	api := classApi{auth: auth, svc: svc, enrolSvc: enrolSvc, validate: validate}

	cg := g.Group("/classes", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, tutorOrAdminMiddleware())

	// detail endpoints
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update, api.managedClassMiddleware)
	cg.DELETE("/:id", api.destroy, api.managedClassMiddleware)

	// students
	cg.GET("/:id/students", api.listStudents)
	cg.POST("/:id/students", api.enroll)
	cg.POST("/:id/students/import", api.importRoster)
	cg.DELETE("/:id/students/:studentId", api.unenroll)
}

// managedClassMiddleware loads the `:id` class into the context as "object" when the user manages it.
func (api *classApi) managedClassMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		cls, err := api.svc.GetManaged(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding managed class")
		}
		ctx.Set("object", cls)
		return next(ctx)
	}
}

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cls, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) query(ctx echo.Context) error {
	filter := new(class.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	filter.Search = core.CleanString(filter.Search)
	ordering := new(Ordering)
	ordering.Bind(ctx, classOrderingFields)

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	classes, err := api.svc.Query(ctx.Request().Context(), ctxUsr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cls, err := api.svc.Get(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) update(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClsNotFoundInCtx, "retrieving object from context")
	}

	var data class.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(cls, api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cls, err = api.svc.Update(ctx.Request().Context(), ctxUsr, cls, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) destroy(ctx echo.Context) error {
	cls, ok := ctx.Get("object").(class.Class)
	if !ok {
		return errors.Wrap(errClsNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxUsr, cls); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) listStudents(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	students, err := api.enrolSvc.ListStudents(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	if students == nil {
		students = []enrollment.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) enroll(ctx echo.Context) error {
	var data enrollment.EnrollStudents
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollStudents")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	results, err := api.enrolSvc.Enroll(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *classApi) importRoster(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer f.Close()

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	results, err := api.enrolSvc.ImportRoster(ctx.Request().Context(), ctxUsr, ctx.Param("id"), enrollment.Roster{Content: f})
	if err != nil {
		return errors.Wrap(err, "importing roster")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *classApi) unenroll(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.enrolSvc.Unenroll(ctx.Request().Context(), ctxUsr, ctx.Param("id"), ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
