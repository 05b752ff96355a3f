package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/user"
)

func (cli *commandLine) listUsers(ctx context.Context, role string) error {
	filter := new(user.QueryFilter)
	if role != "" {
		filter.Roles = []string{role}
	}
	users, err := cli.usrRepo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "username", Ascending: true}})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLES\tACTIVE")
	for _, usr := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", usr.ID, usr.Username, usr.Email, strings.Join(usr.Roles, ","), usr.IsActive)
	}
	return w.Flush()
}
