package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/user"
)

var (
	AvatarSize = 256

	errInvalidImage = "file is not a supported image"
)

// avatarPath returns the object path of a new avatar of usr.
func avatarPath(usr user.User) string {
	return fmt.Sprintf("%s/%s.png", usr.ID, uuid.New().String())
}

func (svc *service) SetAvatar(ctx context.Context, usr user.User, r io.Reader) (user.User, error) {
	if svc.conf.MaxUploadSize > 0 {
		r = io.LimitReader(r, svc.conf.MaxUploadSize+1)
	}
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return user.User{}, core.NewValidationError(nil, core.FieldError{Field: "avatar", Error: errInvalidImage})
	}

	img := imaging.Fill(src, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return user.User{}, errors.Wrap(err, "encoding avatar")
	}

	obj, err := svc.storage.Upload(ctx, svc.conf.AvatarsBucket, avatarPath(usr), "image/png", &buf)
	if err != nil {
		return user.User{}, errors.Wrap(err, "storing avatar")
	}

	oldURL := usr.AvatarURL
	updated, err := svc.userSvc.SetAvatar(ctx, usr, svc.storage.PublicURL(obj.Bucket, obj.Path))
	if err != nil {
		if delErr := svc.storage.Delete(ctx, obj.Bucket, obj.Path); delErr != nil {
			svc.logger.Error(fmt.Sprintf("document.SetAvatar: removing orphan object %s: %v", obj.Path, delErr), delErr, usr)
		}
		return user.User{}, errors.Wrap(err, "setting avatar url")
	}

	// drop the previous avatar if it lives in our bucket
	prefix := svc.storage.PublicURL(svc.conf.AvatarsBucket, "")
	if oldURL != "" && strings.HasPrefix(oldURL, prefix) {
		if err := svc.storage.Delete(ctx, svc.conf.AvatarsBucket, strings.TrimPrefix(oldURL, prefix)); err != nil {
			svc.logger.Warn(fmt.Sprintf("document.SetAvatar: removing old avatar: %v", err), err, updated)
		}
	}
	return updated, nil
}
