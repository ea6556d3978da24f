// Package server initializes and runs the gatekeeper server. It opens the
// stores, runs migrations, picks the mail and template backends from config
// and serves the HTTP API until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/gatekeeper/internal/server/mail"
	"github.com/dmitrijs2005/gatekeeper/internal/server/password"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/loginlogs"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/verifications"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	closers  []func(context.Context) error
	accounts *services.AccountService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.Setup(os.Stdout, c.LogLevel, c.LogFormat)
	app := &App{config: c, logger: logger}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, func(context.Context) error { return db.Close() })

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("migration error: %w", err)
	}

	opts, err := app.optionalBackends(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	renderer, err := mail.NewRenderer(ctx, newTemplateSource(c))
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	tokens := auth.NewService([]byte(c.SecretKey),
		auth.WithSessionTTL(c.SessionTokenTTL),
		auth.WithRefreshTTL(c.RefreshTokenTTL),
	)

	opts = append(opts,
		services.WithLogger(logger),
		services.WithHasher(password.NewBcrypt(password.DefaultCost)),
		services.WithMailer(newMailSender(c, logger), renderer),
	)
	app.accounts = services.NewAccountService(db, rm, tokens, c, opts...)

	return app, nil
}

// optionalBackends connects Mongo for login logs and Redis for verification
// markers when they are configured.
func (app *App) optionalBackends(ctx context.Context) ([]services.Option, error) {
	var opts []services.Option

	if app.config.MongoURI != "" {
		client, err := loginlogs.Connect(ctx, app.config.MongoURI)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Disconnect)
		opts = append(opts, services.WithLoginLogs(loginlogs.NewMongoRepository(client.Database(app.config.MongoDatabase))))
		app.logger.Info(ctx, "login logs stored in mongo", "database", app.config.MongoDatabase)
	}

	if app.config.RedisAddr != "" {
		client, err := verifications.Connect(ctx, app.config.RedisAddr)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
		opts = append(opts, services.WithVerificationStore(verifications.NewRedisStore(client)))
		app.logger.Info(ctx, "single-use verification tokens enabled", "redis", app.config.RedisAddr)
	}

	return opts, nil
}

func newMailSender(c *config.Config, logger logging.Logger) mail.Sender {
	if c.MailProvider == config.MailProviderPostmark {
		return mail.NewPostmarkSender(c.PostmarkToken, c.MailFrom, mail.WithHTTPClient(http.DefaultClient))
	}
	return mail.NewLogSender(c.MailFrom, logger)
}

func newTemplateSource(c *config.Config) mail.TemplateSource {
	switch c.TemplateSource {
	case config.TemplateSourceFile:
		return mail.FileSource{Path: c.TemplatePath}
	case config.TemplateSourceS3:
		return mail.NewS3Source(mail.S3Config{
			Bucket:       c.S3Bucket,
			Key:          c.TemplatePath,
			Region:       c.S3Region,
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	default:
		return mail.EmbeddedSource{}
	}
}

// Close releases connections in reverse order of opening.
func (app *App) Close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			app.logger.Error(ctx, "close", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, app.accounts)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.Close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}
