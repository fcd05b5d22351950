package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/techsoc/clubhub/apps/api/echo"
	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/announcement"
	"github.com/techsoc/clubhub/core/dashboard"
	"github.com/techsoc/clubhub/core/event"
	"github.com/techsoc/clubhub/core/member"
	"github.com/techsoc/clubhub/core/project"
	"github.com/techsoc/clubhub/core/resource"
	"github.com/techsoc/clubhub/core/user"
	emailsvc "github.com/techsoc/clubhub/services/email"
	logsvc "github.com/techsoc/clubhub/services/logger"
	"github.com/techsoc/clubhub/storage/database"
)

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

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	var mailSender core.EmailSender
	if conf.Debug {
		console := emailsvc.NewConsoleService(conf)
		mailSvc, mailSender = console, console
	} else {
		sendgrid := emailsvc.NewSendgridService(conf, logger)
		mailSvc, mailSender = sendgrid, sendgrid
	}

	usrSvc := user.NewService(database.NewUserRepository(db), mailSvc, conf)
	memberSvc := member.NewService(database.NewMemberRepository(db), mailSvc, conf)
	annSvc := announcement.NewService(database.NewAnnouncementRepository(db), memberSvc, mailSender, logger, conf)
	eventSvc := event.NewService(database.NewEventRepository(db))
	projectSvc := project.NewService(database.NewProjectRepository(db))
	resourceSvc := resource.NewService(database.NewResourceRepository(db))
	dashSvc := dashboard.NewService(database.NewDashboardRepository(db), memberSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			UserSvc:         usrSvc,
			MemberSvc:       memberSvc,
			AnnouncementSvc: annSvc,
			EventSvc:        eventSvc,
			ProjectSvc:      projectSvc,
			ResourceSvc:     resourceSvc,
			DashboardSvc:    dashSvc,
			Validate:        validate,
			Translator:      translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
