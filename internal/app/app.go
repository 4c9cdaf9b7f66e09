package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/certsend/internal/certificate/inbound"
	"github.com/shandysiswandi/certsend/internal/pkg/clock"
	"github.com/shandysiswandi/certsend/internal/pkg/config"
	"github.com/shandysiswandi/certsend/internal/pkg/gslides"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"github.com/shandysiswandi/certsend/internal/pkg/mail"
	"github.com/shandysiswandi/certsend/internal/pkg/storage"
	"github.com/shandysiswandi/certsend/internal/pkg/uid"
	"github.com/shandysiswandi/certsend/internal/pkg/validator"
)

// App wires dependencies and manages the lifecycle of one run.
type App struct {
	ctx context.Context

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	validator validator.Validator
	clock     clock.Clocker
	uuid      uid.StringID

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	mail      mail.Mail
	storage   storage.Storage
	slides    *gslides.Client

	// modules
	runner *inbound.Runner

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App
// instance. The context bounds resource setup and the run itself.
func New(ctx context.Context) *App {
	app := &App{ctx: ctx}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initCache()
	app.initMail()
	app.initStorage()
	app.initTemplateService()
	app.initModules()
	app.initClosers()

	return app
}
