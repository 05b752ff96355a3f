package user

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrInvalidIDToken = errors.New("invalid google id token")
	errInvalidValue   = "invalid value"
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		CountUsers(ctx context.Context, filter *QueryFilter) (int, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		GetUsersByID(ctx context.Context, ids []string) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
	}

	// GoogleVerifier verifies Google ID tokens issued to the app's client.
	GoogleVerifier interface {
		Verify(ctx context.Context, idToken string) (GoogleIdentity, error)
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		Signup(ctx context.Context, su SignupUser) (User, error)
		// EnsureStudent returns the user with the given email, creating a password-less student if none exists.
		EnsureStudent(ctx context.Context, name, email string) (usr User, created bool, err error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByIDs(ctx context.Context, ids []string) ([]User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		GoogleLogin(ctx context.Context, idToken string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetAvatar(ctx context.Context, usr User, avatarURL string) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		// MakeInviteToken returns the uid and token pair used by the password-reset-confirm flow.
		MakeInviteToken(usr User) (uid, token string)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		google  GoogleVerifier
		conf    *core.Config
		tokens  tokenGenerator
	}
)

var _ Service = (*service)(nil) // interface compliance check

// NewService returns the user service; google may be nil when Google sign-in is not configured.
func NewService(repo Repository, mailSvc core.EmailService, google GoogleVerifier, conf *core.Config) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		google:  google,
		conf:    conf,
		tokens:  newTokenGenerator(conf),
	}
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	now := core.NowFunc()
	usr := User{
		Name:          nu.Name,
		Username:      nu.Username,
		Email:         nu.Email,
		IsActive:      true,
		Roles:         nu.Roles,
		Theme:         ThemeSystem,
		Phone:         nu.Phone,
		InstitutionID: nu.InstitutionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Signup(ctx context.Context, su SignupUser) (User, error) {
	if !svc.conf.AllowSignup {
		return User{}, core.ErrPermissionDenied
	}
	return svc.Create(ctx, NewUser{
		Name:            su.Name,
		Email:           su.Email,
		Password:        su.Password,
		PasswordConfirm: su.PasswordConfirm,
		Roles:           []string{RoleTutor},
	})
}

func (svc *service) EnsureStudent(ctx context.Context, name, email string) (User, bool, error) {
	email = core.CleanString(email, true /* lower */)
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
	if err == nil {
		return usr, false, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return User{}, false, errors.Wrap(err, "finding user by email")
	}

	name = core.CleanString(name)
	if name == "" {
		name = email
	}
	now := core.NowFunc()
	usr, err = svc.repo.CreateUser(ctx, User{
		Name:      name,
		Email:     email,
		IsActive:  true,
		Roles:     []string{RoleStudent},
		Theme:     ThemeSystem,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return User{}, false, errors.Wrap(err, "creating student")
	}
	return usr, true, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountUsers(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	return svc.repo.GetUsersByID(ctx, ids)
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// GoogleLogin signs in the owner of a Google ID token.
// Unknown accounts are linked by email, or created as tutors when sign-up is allowed.
func (svc *service) GoogleLogin(ctx context.Context, idToken string) (User, error) {
	if svc.google == nil {
		return User{}, core.ErrPermissionDenied
	}
	ident, err := svc.google.Verify(ctx, idToken)
	if err != nil {
		return User{}, ErrInvalidIDToken
	}
	ident.Email = core.CleanString(ident.Email, true /* lower */)

	usr, err := svc.repo.GetUser(ctx, GetFilter{GoogleID: ident.Subject})
	if err == nil {
		return usr, nil
	} else if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "finding user by google id")
	}

	// an unverified email must not take over a local account
	if ident.Email == "" || !ident.EmailVerified {
		return User{}, ErrInvalidIDToken
	}
	usr, err = svc.repo.GetUser(ctx, GetFilter{Email: ident.Email})
	if err == nil {
		usr.GoogleID = ident.Subject
		usr.UpdatedAt = core.NowFunc()
		return svc.repo.UpdateUser(ctx, usr)
	} else if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "finding user by email")
	}

	if !svc.conf.AllowSignup {
		return User{}, core.ErrPermissionDenied
	}
	name := core.CleanString(ident.Name)
	if name == "" {
		name = ident.Email
	}
	now := core.NowFunc()
	return svc.repo.CreateUser(ctx, User{
		Name:      name,
		Email:     ident.Email,
		GoogleID:  ident.Subject,
		IsActive:  true,
		Roles:     []string{RoleTutor},
		Theme:     ThemeSystem,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Update applies a validated UpdateUser to usr.
func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if err := svc.checkUniqueness(ctx, uu.Username, uu.Email, usr); err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Theme = uu.Theme
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.InstitutionID != nil {
		usr.InstitutionID = *uu.InstitutionID
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetAvatar(ctx context.Context, usr User, avatarURL string) (User, error) {
	usr.AvatarURL = avatarURL
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteUsersByID(ctx, ids...)
	return err
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	uid, token := svc.MakeInviteToken(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   uid,
			"Token": token,
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "uid", Error: errInvalidValue})
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "uid", Error: errInvalidValue})
		}
		return errors.Wrap(err, "finding user by ID")
	}

	if err := svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "token", Error: errInvalidValue})
	}

	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.NowFunc()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

func (svc *service) MakeInviteToken(usr User) (string, string) {
	return EncodeUID(usr), svc.tokens.makeToken(usr)
}
