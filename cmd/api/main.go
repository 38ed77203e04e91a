package main

import (
	"log"

	"github.com/hibiken/asynq"

	"github.com/makremffff/adwatch-backend/internal/api"
	"github.com/makremffff/adwatch-backend/internal/jobs"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
	"github.com/makremffff/adwatch-backend/internal/server"
	"github.com/makremffff/adwatch-backend/internal/worker"
)

func main() {
	server.ConfigLoad()
	app := miniapp.Init()

	// ops notifications go through a small worker pool instead of
	// per-request goroutines
	pool := worker.NewPool(server.GlobalConfig.NotifyWorkers, 64)
	api.Notifier = pool
	defer pool.Close()

	janitor := jobs.Start(app.Db)
	defer janitor.Stop()

	// commission crediting runs in-process off the asynq queue
	srv := miniapp.SetupAsynqServer()
	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TypeCommission, worker.HandleCommission(app.Db))
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatal("asynq: ", err)
		}
	}()

	server.ApiInit(app)
}
