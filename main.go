package main

import (
	"flag"
	"log"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"xorm.io/xorm"

	_ "github.com/unibuild/controller/docs"
	"github.com/unibuild/controller/hub"
	"github.com/unibuild/controller/model"
	"github.com/unibuild/controller/notify"
	"github.com/unibuild/controller/queue"
	"github.com/unibuild/controller/server"
)

func getEnv(key string, defaultValue string) string {
	v := os.Getenv(key)
	if len(v) == 0 {
		return defaultValue
	}
	return v
}

// @title UniBuild Controller
// @version 1.0
// @description Build orchestration and event distribution for remote build workers
// @BasePath /api
func main() {
	addr := flag.String("addr", getEnv("ADDRESS", "127.0.0.1:8080"), "Address to bind [$ADDRESS]")
	driver := flag.String("driver", getEnv("DB_DRIVER", "sqlite3"), "Database driver [$DB_DRIVER]")
	dsn := flag.String("dsn", getEnv("DB_DSN", "file::memory:?cache=shared"), "Database data source name [$DB_DSN]")
	flag.Parse()

	if len(*addr) == 0 {
		log.Fatal("Missing address")
	}
	if len(*driver) == 0 {
		log.Fatal("Missing database driver")
	}
	if len(*dsn) == 0 {
		log.Fatal("Missing database data source name")
	}

	engine := createDatabaseEngine(driver, dsn)
	initializeDatabase(engine)
	defer engine.Close()

	dispatcher := notify.NewDispatcher(engine)
	wsHub := hub.New(nil)
	buildQueue := queue.NewService(engine, wsHub, dispatcher)
	wsHub.SetHandler(buildQueue)

	buildQueue.Start()
	defer buildQueue.Stop()

	srv := server.Server{
		DB:    engine,
		Queue: buildQueue,
		Hub:   wsHub,
	}

	c := cron.New()
	c.AddFunc("@every 5m", srv.CheckStalledBuilds)
	c.Start()

	routerEngine := srv.NewRouter()

	log.Printf("Starting UniBuild Controller on %s\n", *addr)

	log.Fatal(routerEngine.Run(*addr))
}

func initializeDatabase(engine *xorm.Engine) {
	err := engine.Sync2(
		new(model.Project),
		new(model.Build),
		new(model.BuildLog),
		new(model.BuildPipeline),
		new(model.BuildProcess),
		new(model.Setting),
	)
	if err != nil {
		log.Fatal("Failed to sync structs to database tables: " + err.Error())
	}
}

func createDatabaseEngine(driver *string, dsn *string) *xorm.Engine {
	engine, err := xorm.NewEngine(*driver, *dsn)
	if err != nil {
		log.Fatal("Failed to open database connection: " + err.Error())
	}

	return engine
}
