package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/question"
	logsvc "github.com/nyxmentor/portal/services/logger"
	"github.com/nyxmentor/portal/storage/cache"
	"github.com/nyxmentor/portal/storage/database"
	pgrepos "github.com/nyxmentor/portal/storage/database/postgres"
)

// questionRepository puts the API's Redis cache in front of repo when one is configured,
// so that reseeding invalidates what the API serves.
func questionRepository(ctx context.Context, conf *core.Config, repo question.Repository, logger core.Logger) (question.Repository, func(), error) {
	if conf.Redis.Addr == "" {
		return repo, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	closeFn := func() { _ = rdb.Close() }
	if err := rdb.Ping(ctx).Err(); err != nil {
		closeFn()
		return nil, nil, errors.Wrap(err, "pinging redis")
	}
	return cache.NewQuestionRepository(rdb, repo, conf.Redis.QuestionTTL, logger), closeFn, nil
}

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(false)

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Ping(ctx, db); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	questionRepo, closeCache, err := questionRepository(ctx, conf, pgrepos.NewQuestionRepository(db), logger)
	if err != nil {
		_ = db.Close()
		logger.Fatal(fmt.Sprintf("setting up question cache: %v", err), err)
	}

	// start CLI
	cli := newCommandLine(
		dbMigrations{db: db},
		pgrepos.NewUserRepository(db),
		question.NewService(questionRepo),
		pgrepos.NewEvaluationRepository(db),
	)
	err = cli.run(os.Args[1:])
	closeCache()
	_ = db.Close()
	if err != nil {
		logger.Error(fmt.Sprintf("error: %v", err))
		os.Exit(1)
	}
}
