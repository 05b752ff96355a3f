package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/user"
)

type addUserOptions struct {
	name          string
	username      string
	email         string
	password      string
	isAdmin       bool
	role          string
	institutionID string
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, opts addUserOptions) error {
	uname := core.CleanString(opts.username, true /* lower */)
	email := core.CleanString(opts.email, true /* lower */)

	role := opts.role
	if opts.isAdmin {
		role = user.RoleAdminOwner
	}
	if user.RolePriority(role) == 0 {
		return fmt.Errorf("unknown role %q", role)
	}
	if opts.institutionID != "" {
		if _, err := cli.instRepo.GetInstitution(ctx, opts.institutionID); err != nil {
			return errors.Wrap(err, "finding institution")
		}
	}

	create := false
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email}); err != nil {
			if errors.Cause(err) != user.ErrNotFound {
				return err
			}
			create = true
		}
	}

	now := core.NowFunc()
	if create {
		usr = user.User{
			Name:      opts.name,
			Username:  uname,
			Email:     email,
			Theme:     user.ThemeSystem,
			CreatedAt: now,
		}
		if usr.Name == "" {
			usr.Name = uname
		}
	} else if opts.name != "" {
		usr.Name = core.CleanString(opts.name)
	}
	usr.Roles = []string{role}
	usr.IsActive = true
	if opts.institutionID != "" {
		usr.InstitutionID = opts.institutionID
	}
	usr.UpdatedAt = now
	if err = usr.SetPassword(opts.password); err != nil {
		return err
	}

	if create {
		if err = cli.usrRepo.CheckUsernameUniqueness(ctx, usr.Username, usr.Email); err != nil {
			return err
		}
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created user %s (%s)\n", usr.Username, usr.ID)
		return nil
	}
	if usr, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "updated user %s (%s)\n", usr.Username, usr.ID)
	return nil
}
