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
	"github.com/redis/go-redis/v9"

	echoapi "github.com/nyxmentor/portal/apps/api/echo"
	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/evaluation"
	"github.com/nyxmentor/portal/core/faq"
	"github.com/nyxmentor/portal/core/progress"
	"github.com/nyxmentor/portal/core/question"
	"github.com/nyxmentor/portal/core/training"
	"github.com/nyxmentor/portal/core/user"
	emailsvc "github.com/nyxmentor/portal/services/email"
	logsvc "github.com/nyxmentor/portal/services/logger"
	"github.com/nyxmentor/portal/services/notify"
	"github.com/nyxmentor/portal/storage/cache"
	"github.com/nyxmentor/portal/storage/database"
	pgrepos "github.com/nyxmentor/portal/storage/database/postgres"
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
	db, err := setUpDB(conf, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up the question bank, behind the redis cache when configured
	questionRepo := pgrepos.NewQuestionRepository(db)
	if conf.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err = rdb.Ping(context.Background()).Err(); err != nil {
			dbLogger.Warn(fmt.Sprintf("redis unreachable, questions are read through: %v", err), err)
		}
		questionRepo = cache.NewQuestionRepository(rdb, questionRepo, conf.Redis.QuestionTTL, dbLogger)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(pgrepos.NewUserRepository(db), conf)
	trainingSvc := training.NewService(pgrepos.NewTrainingRepository(db))
	evaluationSvc, err := evaluation.NewService(
		pgrepos.NewEvaluationRepository(db),
		question.NewService(questionRepo),
		notify.NewApprovalNotifier(mailSvc, conf),
		conf,
		logger,
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up evaluations: %v", err), err)
	}
	progressSvc := progress.NewService(pgrepos.NewProgressRepository(db), trainingSvc, evaluationSvc, logger)
	faqSvc := faq.NewService(pgrepos.NewFAQRepository(db))

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

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

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			UserSvc:       usrSvc,
			TrainingSvc:   trainingSvc,
			ProgressSvc:   progressSvc,
			EvaluationSvc: evaluationSvc,
			FAQSvc:        faqSvc,
			Validate:      validate,
			Translator:    translator,
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

func setUpDB(conf *core.Config, logger core.Logger) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err != nil {
		return nil, err
	}

	group, err := database.Migrate(ctx, db)
	if err != nil {
		return nil, err
	}
	if !group.IsZero() {
		logger.Info(fmt.Sprintf("migrated to %s", group))
	}
	return db, nil
}
