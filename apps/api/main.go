package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/quizforge/apps/api/echo"
	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/document"
	"github.com/trezcool/quizforge/core/enrollment"
	"github.com/trezcool/quizforge/core/exam"
	"github.com/trezcool/quizforge/core/institution"
	"github.com/trezcool/quizforge/core/stats"
	"github.com/trezcool/quizforge/core/user"
	emailsvc "github.com/trezcool/quizforge/services/email"
	googlesvc "github.com/trezcool/quizforge/services/google"
	logsvc "github.com/trezcool/quizforge/services/logger"
	smssvc "github.com/trezcool/quizforge/services/sms"
	storagesvc "github.com/trezcool/quizforge/services/storage"
	"github.com/trezcool/quizforge/storage/cache"
	"github.com/trezcool/quizforge/storage/database"
	inmemdb "github.com/trezcool/quizforge/storage/database/inmem"
	sqlxrepos "github.com/trezcool/quizforge/storage/database/sqlx"
)

type repositories struct {
	users        user.Repository
	institutions institution.Repository
	classes      class.Repository
	enrollments  enrollment.Repository
	exams        exam.Repository
	documents    document.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, closeDB, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up token blacklist
	var blacklist core.TokenBlacklist
	if conf.Redis.Address != "" {
		rdb, err := cache.Open(context.Background(), conf.Redis)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up redis: %v", err), err)
		}
		defer rdb.Close()
		blacklist = cache.NewRedisBlacklist(rdb)
	} else {
		blacklist = cache.NewMemoryBlacklist()
	}

	// set up services
	var mailSvc core.EmailService
	stdOut := log.New(os.Stdout, "", 0)
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(stdOut, logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	smsSvc := smssvc.NewTwilioService(logger, conf)
	if smsSvc == nil && conf.Debug {
		smsSvc = smssvc.NewConsoleService(stdOut)
	}

	var fileStorage core.FileStorage
	if conf.Storage.URL != "" {
		fileStorage = storagesvc.NewSupabaseStorage(conf.Storage)
	} else {
		fileStorage = storagesvc.NewMemoryStorage("http://" + conf.Server.Host + conf.Server.Address)
	}

	validate := validator.New()
	translator := core.NewTranslator()

	usrSvc := user.NewService(repos.users, mailSvc, googlesvc.NewVerifier(conf), conf)
	instSvc := institution.NewService(repos.institutions)
	clsSvc := class.NewService(repos.classes)
	enrolSvc := enrollment.NewService(repos.enrollments, clsSvc, usrSvc, mailSvc, validate)
	examSvc := exam.NewService(repos.exams, clsSvc, enrolSvc, usrSvc, mailSvc, smsSvc, logger)
	docSvc := document.NewService(repos.documents, fileStorage, clsSvc, usrSvc, conf.Storage, logger)
	statsSvc := stats.NewService(usrSvc, clsSvc, enrolSvc, examSvc, docSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator, logger)
	exam.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Blacklist:      blacklist,
		UserSvc:        usrSvc,
		InstitutionSvc: instSvc,
		ClassSvc:       clsSvc,
		EnrollmentSvc:  enrolSvc,
		ExamSvc:        examSvc,
		DocumentSvc:    docSvc,
		StatsSvc:       statsSvc,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepositories returns in-memory repositories for the "memory" engine, PostgreSQL ones otherwise.
func setUpRepositories(conf *core.Config) (repositories, func() error, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.NewDB()
		return repositories{
			users:        inmemdb.NewUserRepository(db),
			institutions: inmemdb.NewInstitutionRepository(db),
			classes:      inmemdb.NewClassRepository(db),
			enrollments:  inmemdb.NewEnrollmentRepository(db),
			exams:        inmemdb.NewExamRepository(db),
			documents:    inmemdb.NewDocumentRepository(db),
		}, func() error { return nil }, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return repositories{}, nil, err
	}
	return repositories{
		users:        sqlxrepos.NewUserRepository(db),
		institutions: sqlxrepos.NewInstitutionRepository(db),
		classes:      sqlxrepos.NewClassRepository(db),
		enrollments:  sqlxrepos.NewEnrollmentRepository(db),
		exams:        sqlxrepos.NewExamRepository(db),
		documents:    sqlxrepos.NewDocumentRepository(db),
	}, db.Close, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
