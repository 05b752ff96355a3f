package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/exam"
)

var errExamNotFoundInCtx = errors.New("exam object not found in echo.Context")

type examApi struct {
	auth     *authenticator
	svc      exam.Service
	validate *validator.Validate
}

func registerExamAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc exam.Service,
	validate *validator.Validate,
) {
	api := examApi{auth: auth, svc: svc, validate: validate}

	eg := g.Group("/exams", jwt)
	eg.GET("", api.query)
	eg.POST("", api.create, tutorOrAdminMiddleware())

	// detail endpoints
	visible, managed := api.examMiddleware(false), api.examMiddleware(true)
	eg.GET("/:id", api.retrieve, visible)
	eg.PUT("/:id", api.update, managed)
	eg.DELETE("/:id", api.destroy, managed)
	eg.POST("/:id/publish", api.publish, managed)
	eg.POST("/:id/unpublish", api.unpublish, managed)

	// questions
	eg.GET("/:id/questions", api.listQuestions, visible)
	eg.POST("/:id/questions", api.addQuestion, managed)
	eg.PUT("/:id/questions/order", api.reorderQuestions, managed)
	eg.PUT("/:id/questions/:questionId", api.updateQuestion, managed)
	eg.DELETE("/:id/questions/:questionId", api.destroyQuestion, managed)
}

// examMiddleware loads the `:id` exam into the context as "object";
// managed restricts it to exams the user can manage.
func (api *examApi) examMiddleware(managed bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			var e exam.Exam
			if managed {
				e, err = api.svc.GetManaged(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
			} else {
				e, err = api.svc.Get(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
			}
			if err != nil {
				return errors.Wrap(err, "finding exam")
			}
			ctx.Set("object", e)
			return next(ctx)
		}
	}
}

func ctxExam(ctx echo.Context) (exam.Exam, error) {
	e, ok := ctx.Get("object").(exam.Exam)
	if !ok {
		return exam.Exam{}, errors.Wrap(errExamNotFoundInCtx, "retrieving object from context")
	}
	return e, nil
}

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *examApi) query(ctx echo.Context) error {
	filter := new(exam.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Exam{})
	}
	filter.Search = core.CleanString(filter.Search)
	ordering := new(Ordering)
	ordering.Bind(ctx, examOrderingFields)

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	exams, err := api.svc.Query(ctx.Request().Context(), ctxUsr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	e, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) update(ctx echo.Context) error {
	e, err := ctxExam(ctx)
	if err != nil {
		return err
	}

	var data exam.UpdateExam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExam")
	}
	if err = data.Validate(e, api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err = api.svc.Update(ctx.Request().Context(), ctxUsr, e, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) destroy(ctx echo.Context) error {
	e, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxUsr, e); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) publish(ctx echo.Context) error {
	return api.setPublished(ctx, true)
}

func (api *examApi) unpublish(ctx echo.Context) error {
	return api.setPublished(ctx, false)
}

func (api *examApi) setPublished(ctx echo.Context, published bool) error {
	e, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if published {
		e, err = api.svc.Publish(ctx.Request().Context(), ctxUsr, e)
	} else {
		e, err = api.svc.Unpublish(ctx.Request().Context(), ctxUsr, e)
	}
	if err != nil {
		return errors.Wrap(err, "setting exam publication")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) listQuestions(ctx echo.Context) error {
	e, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	questions, err := api.svc.ListQuestions(ctx.Request().Context(), ctxUsr, e)
	if err != nil {
		return errors.Wrap(err, "listing questions")
	}
	if questions == nil {
		questions = []exam.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *examApi) bindQuestion(ctx echo.Context) (exam.NewQuestion, error) {
	var data exam.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return data, err
	}
	return data, nil
}

func (api *examApi) addQuestion(ctx echo.Context) error {
	e, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	data, err := api.bindQuestion(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	q, err := api.svc.AddQuestion(ctx.Request().Context(), ctxUsr, e, data)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *examApi) updateQuestion(ctx echo.Context) error {
	e, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	data, err := api.bindQuestion(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), ctxUsr, e, ctx.Param("questionId"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *examApi) destroyQuestion(ctx echo.Context) error {
	e, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteQuestion(ctx.Request().Context(), ctxUsr, e, ctx.Param("questionId")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) reorderQuestions(ctx echo.Context) error {
	e, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	var data exam.QuestionOrder
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuestionOrder")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	questions, err := api.svc.ReorderQuestions(ctx.Request().Context(), ctxUsr, e, data)
	if err != nil {
		return errors.Wrap(err, "reordering questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}
