package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/storage/database"
	"github.com/trezcool/quizforge/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	ctx := context.Background()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(database.StatusCheck(ctx, db))

	// start CLI
	cli := commandLine{
		db:       db,
		usrRepo:  sqlxrepos.NewUserRepository(db),
		instRepo: sqlxrepos.NewInstitutionRepository(db),
		out:      os.Stdout,
	}
	err = cli.run(ctx, os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
