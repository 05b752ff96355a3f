package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizforge/core/institution"
	"github.com/trezcool/quizforge/core/user"
	"github.com/trezcool/quizforge/storage/database/inmem"
	"github.com/trezcool/quizforge/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()

	db := inmemdb.NewDB()
	usrRepo = inmemdb.NewUserRepository(db)
	out := new(bytes.Buffer)
	return &commandLine{
		usrRepo:  usrRepo,
		instRepo: inmemdb.NewInstitutionRepository(db),
		out:      out,
	}, out
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCLI(t *testing.T, cli *commandLine, tt cliTest) error {
	t.Helper()
	mockPassword(t, tt.pwd)
	return cli.run(context.Background(), append([]string{"admin"}, tt.args...))
}

func checkErr(t *testing.T, err error, tt cliTest) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "grading", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, runCLI(t, cli, tt), tt)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	inst, err := cli.instRepo.CreateInstitution(ctx, institution.Institution{Name: "Kinshasa High"})
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "mobutu"}, pwd: "Pa55word!", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "mobutu", "-email", "mobutu@test.cd"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "-username", "mobutu", "-email", "mobutu@test.cd", "-role", "king:"}, pwd: "Pa55word!", wantErrStr: "unknown role \"king:\""},
		{name: "unknown institution", args: []string{"adduser", "-username", "mobutu", "-email", "mobutu@test.cd", "-institution", "lol"}, pwd: "Pa55word!", wantErr: institution.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, runCLI(t, cli, tt), tt)
		})
	}

	t.Run("create tutor", func(t *testing.T) {
		tt := cliTest{args: []string{"adduser", "-username", "Mobutu", "-email", "mobutu@test.cd", "-institution", inst.ID}, pwd: "Pa55word!"}
		require.NoError(t, runCLI(t, cli, tt))
		assert.Contains(t, out.String(), "created user mobutu")

		usr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "mobutu"})
		require.NoError(t, err)
		assert.Equal(t, "mobutu@test.cd", usr.Email)
		assert.Equal(t, []string{user.RoleTutor}, usr.Roles)
		assert.Equal(t, inst.ID, usr.InstitutionID)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword("Pa55word!"))
	})

	t.Run("promote existing user to admin", func(t *testing.T) {
		tt := cliTest{args: []string{"adduser", "-username", "mobutu", "-email", "mobutu@test.cd", "-admin"}, pwd: "N3wPa55word!"}
		require.NoError(t, runCLI(t, cli, tt))
		assert.Contains(t, out.String(), "updated user mobutu")

		usr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "mobutu"})
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleAdminOwner}, usr.Roles)
		assert.NoError(t, usr.CheckPassword("N3wPa55word!"))

		count, err := usrRepo.CountUsers(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.cd"}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runCLI(t, cli, tt)
			checkErr(t, err, tt)
			if err != nil {
				return
			}
			refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshedUsr.CheckPassword(tt.pwd))
		})
	}
}

func Test_commandLine_listUsers(t *testing.T) {
	cli, out := setup(t)

	testutil.CreateUser(t, usrRepo, "Tutor", "tutor1", "tutor1@test.cd", "mdr", []string{user.RoleTutor}, true)
	testutil.CreateUser(t, usrRepo, "Student", "student1", "student1@test.cd", "", []string{user.RoleStudent}, true)

	require.NoError(t, cli.run(context.Background(), []string{"admin", "listusers"}))
	assert.Contains(t, out.String(), "tutor1@test.cd")
	assert.Contains(t, out.String(), "student1@test.cd")

	out.Reset()
	require.NoError(t, cli.run(context.Background(), []string{"admin", "listusers", "-role", user.RoleStudent}))
	assert.NotContains(t, out.String(), "tutor1@test.cd")
	assert.Contains(t, out.String(), "student1@test.cd")
}
