package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/document"
)

var errDocNotFoundInCtx = errors.New("document object not found in echo.Context")

type documentApi struct {
	auth *authenticator
	svc  document.Service
}

func registerDocumentAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc document.Service) {
	api := documentApi{auth: auth, svc: svc}

	dg := g.Group("/documents", jwt)
	dg.GET("", api.query)
	dg.POST("", api.upload, tutorOrAdminMiddleware())
	dg.GET("/:id", api.retrieve, api.documentMiddleware)
	dg.DELETE("/:id", api.destroy, api.documentMiddleware)
	dg.GET("/:id/download", api.download, api.documentMiddleware)
}

// documentMiddleware loads the `:id` document visible to the user into the context as "object".
func (api *documentApi) documentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		doc, err := api.svc.Get(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding document")
		}
		ctx.Set("object", doc)
		return next(ctx)
	}
}

func (api *documentApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer f.Close()

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	doc, err := api.svc.Upload(ctx.Request().Context(), ctxUsr, document.Upload{
		ClassID:     core.CleanString(ctx.FormValue("class_id")),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     f,
	})
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *documentApi) query(ctx echo.Context) error {
	filter := new(document.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []document.Document{})
	}
	filter.Search = core.CleanString(filter.Search)
	ordering := new(Ordering)
	ordering.Bind(ctx, documentOrderingFields)

	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	docs, err := api.svc.Query(ctx.Request().Context(), ctxUsr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying documents")
	}
	if docs == nil {
		docs = []document.Document{}
	}
	return ctx.JSON(http.StatusOK, docs)
}

func (api *documentApi) retrieve(ctx echo.Context) error {
	doc, ok := ctx.Get("object").(document.Document)
	if !ok {
		return errors.Wrap(errDocNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, doc)
}

func (api *documentApi) download(ctx echo.Context) error {
	doc, ok := ctx.Get("object").(document.Document)
	if !ok {
		return errors.Wrap(errDocNotFoundInCtx, "retrieving object from context")
	}
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	link, err := api.svc.DownloadLink(ctx.Request().Context(), ctxUsr, doc)
	if err != nil {
		return errors.Wrap(err, "signing download link")
	}
	return ctx.JSON(http.StatusOK, link)
}

func (api *documentApi) destroy(ctx echo.Context) error {
	doc, ok := ctx.Get("object").(document.Document)
	if !ok {
		return errors.Wrap(errDocNotFoundInCtx, "retrieving object from context")
	}
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxUsr, doc); err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return ctx.NoContent(http.StatusNoContent)
}
