package document

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("document not found")

	errFileEmpty    = "file is empty"
	errFileTooLarge = "file is too large"

	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	maxNameLen      = 100
)

type Document struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	ClassID     string    `json:"class_id"`
	Name        string    `json:"name"`
	Bucket      string    `json:"bucket"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// Upload is a file received from a client.
type Upload struct {
	ClassID     string
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type QueryFilter struct {
	Search    string `query:"search"`
	ClassID   string `query:"class_id"`
	OwnerID   string `query:"-"`
	StudentID string `query:"-"` // documents of the classes the student is enrolled in
}

// DownloadLink is a signed, expiring URL to a stored document.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type (
	Repository interface {
		CreateDocument(ctx context.Context, doc Document) (Document, error)
		QueryDocuments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error)
		CountDocuments(ctx context.Context, filter *QueryFilter) (int, error)
		GetDocument(ctx context.Context, id string) (Document, error)
		DeleteDocument(ctx context.Context, id string) error
	}

	Service interface {
		Upload(ctx context.Context, actor user.User, up Upload) (Document, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		// Get returns ErrNotFound unless actor owns the document, is an admin or belongs to its class.
		Get(ctx context.Context, actor user.User, id string) (Document, error)
		DownloadLink(ctx context.Context, actor user.User, doc Document) (DownloadLink, error)
		Delete(ctx context.Context, actor user.User, doc Document) error
		// SetAvatar stores a 256x256 PNG rendition of the image as usr's avatar.
		SetAvatar(ctx context.Context, usr user.User, img io.Reader) (user.User, error)
	}

	service struct {
		repo     Repository
		storage  core.FileStorage
		classSvc class.Service
		userSvc  user.Service
		conf     core.StorageConfig
		logger   core.Logger
	}
)

func NewService(
	repo Repository,
	storage core.FileStorage,
	classSvc class.Service,
	userSvc user.Service,
	conf core.StorageConfig,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		storage:  storage,
		classSvc: classSvc,
		userSvc:  userSvc,
		conf:     conf,
		logger:   logger,
	}
}

// SanitizeFilename keeps letters, digits, dots, dashes and underscores of a file's base name.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "._")
	if len(name) > maxNameLen {
		ext := path.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxNameLen-len(ext)] + ext
	}
	if name == "" {
		return "file"
	}
	return name
}

// ObjectPath returns the storage path of a document: <owner>/<yyyymmdd>-<uuid>-<sanitized name>.
func ObjectPath(ownerID, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%s-%s-%s", ownerID, now.Format("20060102"), uuid.New().String(), SanitizeFilename(filename))
}

func (svc *service) Upload(ctx context.Context, actor user.User, up Upload) (Document, error) {
	if !(actor.IsTutor() || actor.IsAdmin()) {
		return Document{}, core.ErrPermissionDenied
	}
	if up.Size <= 0 {
		return Document{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: errFileEmpty})
	}
	if svc.conf.MaxUploadSize > 0 && up.Size > svc.conf.MaxUploadSize {
		return Document{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: errFileTooLarge})
	}
	if up.ClassID != "" {
		if _, err := svc.classSvc.GetManaged(ctx, actor, up.ClassID); err != nil {
			if errors.Cause(err) == class.ErrNotFound {
				return Document{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
			}
			return Document{}, err
		}
	}

	now := core.NowFunc()
	obj, err := svc.storage.Upload(ctx, svc.conf.DocumentsBucket, ObjectPath(actor.ID, up.Filename, now), up.ContentType, up.Content)
	if err != nil {
		return Document{}, errors.Wrap(err, "storing file")
	}

	name := core.CleanString(path.Base(strings.ReplaceAll(up.Filename, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = SanitizeFilename(up.Filename)
	}
	size := obj.Size
	if size <= 0 {
		size = up.Size
	}
	doc, err := svc.repo.CreateDocument(ctx, Document{
		OwnerID:     actor.ID,
		ClassID:     up.ClassID,
		Name:        name,
		Bucket:      obj.Bucket,
		Path:        obj.Path,
		ContentType: obj.ContentType,
		Size:        size,
		CreatedAt:   now,
	})
	if err != nil {
		if delErr := svc.storage.Delete(ctx, obj.Bucket, obj.Path); delErr != nil {
			svc.logger.Error(fmt.Sprintf("document.Upload: removing orphan object %s: %v", obj.Path, delErr), delErr, actor)
		}
		return Document{}, errors.Wrap(err, "inserting document")
	}
	return doc, nil
}

func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.OwnerID, filter.StudentID = "", ""
	switch {
	case actor.IsAdmin():
	case actor.IsTutor():
		if filter.ClassID != "" {
			if _, err := svc.classSvc.GetManaged(ctx, actor, filter.ClassID); err != nil {
				return visibleOrEmpty(err)
			}
		} else {
			filter.OwnerID = actor.ID
		}
	case actor.IsStudent():
		filter.StudentID = actor.ID
	default:
		return []Document{}, nil
	}
	return svc.repo.QueryDocuments(ctx, filter, ordering)
}

func visibleOrEmpty(err error) ([]Document, error) {
	switch errors.Cause(err) {
	case class.ErrNotFound, core.ErrPermissionDenied:
		return []Document{}, nil
	}
	return nil, err
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountDocuments(ctx, filter)
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Document, error) {
	doc, err := svc.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if doc.OwnerID == actor.ID || actor.IsAdmin() {
		return doc, nil
	}
	if doc.ClassID != "" {
		if _, err := svc.classSvc.Get(ctx, actor, doc.ClassID); err == nil {
			return doc, nil
		} else if errors.Cause(err) != class.ErrNotFound {
			return Document{}, errors.Wrap(err, "finding document class")
		}
	}
	return Document{}, ErrNotFound
}

func (svc *service) DownloadLink(ctx context.Context, actor user.User, doc Document) (DownloadLink, error) {
	expiresIn := svc.conf.SignedURLExpiry
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	expiresAt := core.NowFunc().Add(expiresIn)
	url, err := svc.storage.SignedURL(ctx, doc.Bucket, doc.Path, expiresIn)
	if err != nil {
		return DownloadLink{}, errors.Wrap(err, "signing url")
	}
	return DownloadLink{URL: url, ExpiresAt: expiresAt}, nil
}

func (svc *service) Delete(ctx context.Context, actor user.User, doc Document) error {
	if !(doc.OwnerID == actor.ID || actor.IsAdmin()) {
		return core.ErrPermissionDenied
	}
	if err := svc.repo.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}
	if err := svc.storage.Delete(ctx, doc.Bucket, doc.Path); err != nil {
		svc.logger.Error(fmt.Sprintf("document.Delete: removing object %s: %v", doc.Path, err), err, actor)
	}
	return nil
}
