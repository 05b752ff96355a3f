package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/user"
)

var userColumns = []string{
	"id", "name", "username", "email", "is_active", "roles", "password_hash", "avatar_url",
	"theme", "phone", "institution_id", "google_id", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Username      sql.NullString `db:"username"`
	Email         sql.NullString `db:"email"`
	IsActive      bool           `db:"is_active"`
	Roles         pq.StringArray `db:"roles"`
	PasswordHash  []byte         `db:"password_hash"`
	AvatarURL     string         `db:"avatar_url"`
	Theme         string         `db:"theme"`
	Phone         string         `db:"phone"`
	InstitutionID sql.NullString `db:"institution_id"`
	GoogleID      sql.NullString `db:"google_id"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	LastLogin     sql.NullTime   `db:"last_login"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo userRepository) toRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	theme := usr.Theme
	if theme == "" {
		theme = user.ThemeSystem
	}
	return userRow{
		ID:            usr.ID,
		Name:          usr.Name,
		Username:      nullString(usr.Username),
		Email:         nullString(usr.Email),
		IsActive:      usr.IsActive,
		Roles:         roles,
		PasswordHash:  usr.PasswordHash,
		AvatarURL:     usr.AvatarURL,
		Theme:         theme,
		Phone:         usr.Phone,
		InstitutionID: nullString(usr.InstitutionID),
		GoogleID:      nullString(usr.GoogleID),
		CreatedAt:     usr.CreatedAt.UTC(),
		UpdatedAt:     usr.UpdatedAt.UTC(),
		LastLogin:     nullTime(usr.LastLogin),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	usr := user.User{
		ID:            row.ID,
		Name:          row.Name,
		Username:      row.Username.String,
		Email:         row.Email.String,
		IsActive:      row.IsActive,
		Roles:         []string(row.Roles),
		PasswordHash:  row.PasswordHash,
		AvatarURL:     row.AvatarURL,
		Theme:         row.Theme,
		Phone:         row.Phone,
		InstitutionID: row.InstitutionID.String,
		GoogleID:      row.GoogleID.String,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

func (repo userRepository) fromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.fromRow(row))
	}
	return users
}

// trapErr maps "no rows" and unique violations to the user errors.
func (repo userRepository) trapErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	if constraint, ok := pqViolation(err, pqUniqueViolation); ok {
		switch constraint {
		case "users_username_key":
			return user.ErrUsernameExists
		case "users_email_key":
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	for _, check := range []struct {
		col, val string
		err      error
	}{
		{"username", username, user.ErrUsernameExists},
		{"email", email, user.ErrEmailExists},
	} {
		if check.val == "" {
			continue
		}
		where := sq.And{sq.Eq{check.col: check.val}}
		if len(excludedUsers) > 0 {
			ids := make([]string, 0, len(excludedUsers))
			for _, u := range excludedUsers {
				ids = append(ids, u.ID)
			}
			where = append(where, sq.NotEq{"id": ids})
		}
		n, err := count(ctx, repo.db, psql.Select("COUNT(*)").From("users").Where(where))
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if n > 0 {
			return check.err
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.toRow(usr)
	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash, row.AvatarURL,
			row.Theme, row.Phone, row.InstitutionID, row.GoogleID, row.CreatedAt, row.UpdatedAt, row.LastLogin).
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return user.User{}, repo.trapErr(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) applyFilter(b sq.SelectBuilder, filter *user.QueryFilter) sq.SelectBuilder {
	if filter == nil {
		return b
	}
	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		b = b.Where(searchAny(filter.Search, "name", "username", "email"))
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		roles := make(sq.Or, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roles = append(roles, sq.Expr("EXISTS (SELECT 1 FROM unnest(roles) AS user_role WHERE user_role LIKE ? ESCAPE '\\')", escapeLike(role)+"%"))
		}
		b = b.Where(roles)
	}
	if filter.IsActive != nil {
		b = b.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if filter.InstitutionID != "" {
		b = b.Where(sq.Eq{"institution_id": filter.InstitutionID})
	}
	if !filter.CreatedFrom.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		b = b.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}
	return b
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	if filter != nil && filter.InstitutionID != "" && !isUUID(filter.InstitutionID) {
		return []user.User{}, nil
	}
	b := repo.applyFilter(psql.Select(userColumns...).From("users"), filter).
		OrderBy(orderByClauses(ordering, "created_at ASC")...)

	var rows []userRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter) (int, error) {
	if filter != nil && filter.InstitutionID != "" && !isUUID(filter.InstitutionID) {
		return 0, nil
	}
	n, err := count(ctx, repo.db, repo.applyFilter(psql.Select("COUNT(*)").From("users"), filter))
	return n, errors.Wrap(err, "counting users")
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var where sq.Sqlizer
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		where = sq.Eq{"id": filter.ID}
	case filter.Username != "":
		where = sq.Eq{"username": filter.Username}
	case filter.Email != "":
		where = sq.Eq{"email": filter.Email}
	case filter.UsernameOrEmail != "":
		where = sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}}
	case filter.GoogleID != "":
		where = sq.Eq{"google_id": filter.GoogleID}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getOne(ctx, repo.db, &row, psql.Select(userColumns...).From("users").Where(where).Limit(1)); err != nil {
		return user.User{}, repo.trapErr(err, "finding user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUsersByID(ctx context.Context, ids []string) ([]user.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []user.User{}, nil
	}

	var rows []userRow
	b := psql.Select(userColumns...).From("users").Where(sq.Eq{"id": valid}).OrderBy("name ASC")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "finding users by ID")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !isUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	row := repo.toRow(usr)
	n, err := execAffected(ctx, repo.db, psql.Update("users").
		SetMap(map[string]interface{}{
			"name":           row.Name,
			"username":       row.Username,
			"email":          row.Email,
			"is_active":      row.IsActive,
			"roles":          row.Roles,
			"password_hash":  row.PasswordHash,
			"avatar_url":     row.AvatarURL,
			"theme":          row.Theme,
			"phone":          row.Phone,
			"institution_id": row.InstitutionID,
			"google_id":      row.GoogleID,
			"updated_at":     row.UpdatedAt,
			"last_login":     row.LastLogin,
		}).
		Where(sq.Eq{"id": row.ID}))
	if err != nil {
		return user.User{}, repo.trapErr(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	n, err := execAffected(ctx, repo.db, psql.Delete("users").Where(sq.Eq{"id": valid}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(n), nil
}
