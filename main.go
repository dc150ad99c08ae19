package main

import (
	"HealthConnect/jobs"
	"HealthConnect/migrations"
	"HealthConnect/routes"
	"HealthConnect/server"
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	startServer = server.Start
	isTest      = false
)

func main() {
	if err := run(); err != nil {
		log.Fatalln("server stopped:", err)
	}
}

func run() error {
	defaultopts, err := server.GetDefaultOptions()
	if err != nil {
		log.Println("Error in loading the config:", err)
		return err
	}

	options := server.Options{
		Config:           defaultopts.Config,
		CacheEnabled:     defaultopts.CacheEnabled,
		MongoEnabled:     defaultopts.MongoEnabled,
		WebServerEnabled: defaultopts.WebServerEnabled,
		WebServerPort:    defaultopts.WebServerPort,

		JobsEnabled: defaultopts.JobsEnabled && !isTest,
		JobsHandler: func(app *server.App) error {
			s, err := jobs.NewScheduler(app.Config, app.Services, app.Logger, app.MemoryLimiters...)
			if err != nil {
				return err
			}
			app.OnShutdown(s.Stop)
			if isTest {
				return nil
			}
			s.Start()
			return nil
		},

		WebServerPreHandler: func(r *gin.Engine, app *server.App) {
			r.Use(cors.New(cors.Config{
				AllowOrigins:     app.Config.Server.AllowedOrigins,
				AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
				AllowCredentials: true,
			}))
			routes.Routes(r, app.Handlers, app.AuthMiddleware(), app.AuthLimit())
		},

		MigrationEnabled: defaultopts.MigrationEnabled && !isTest,
		MigrationHandler: func(app *server.App) error {
			if app.Mongo == nil {
				return nil
			}
			return migrations.Run(context.Background(), app.Mongo.Database(), app.Logger, migrations.All)
		},
	}
	return startServer(options)
}
