package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/certsend/internal/certificate"
	"github.com/shandysiswandi/certsend/internal/certificate/outbound/render"
	"github.com/shandysiswandi/certsend/internal/pkg/clock"
	"github.com/shandysiswandi/certsend/internal/pkg/config"
	"github.com/shandysiswandi/certsend/internal/pkg/gslides"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"github.com/shandysiswandi/certsend/internal/pkg/mail"
	"github.com/shandysiswandi/certsend/internal/pkg/storage"
	"github.com/shandysiswandi/certsend/internal/pkg/uid"
	"github.com/shandysiswandi/certsend/internal/pkg/validator"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

func (a *App) initConfig() {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env file", "error", err)
		os.Exit(1)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		//nolint:errcheck,gosec // ignore error
		os.Setenv("TZ", tz)
	}

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(a.ctx, &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		Log: instrument.LogConfig{
			File:       a.config.GetString("log.file"),
			Level:      a.config.GetString("log.level"),
			MaxSizeMB:  a.config.GetInt("log.max_size_mb"),
			MaxBackups: a.config.GetInt("log.max_backups"),
			MaxAgeDays: a.config.GetInt("log.max_age_days"),
			Compress:   a.config.GetBool("log.compress"),
			MaskFields: a.config.GetArray("log.mask_fields"),
		},
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator
}

func (a *App) initDatabase() {
	dsn := strings.TrimSpace(a.config.GetString("database.url"))
	if dsn == "" {
		slog.Info("outcome store disabled, database.url is empty")
		return
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	if v := a.config.GetInt("database.pool.max_conns"); v > 0 {
		config.MaxConns = int32(v)
	}
	if v := a.config.GetSecond("database.pool.max_conn_lifetime_seconds"); v > 0 {
		config.MaxConnLifetime = v
	}

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	url := strings.TrimSpace(a.config.GetString("redis.url"))
	if url == "" {
		slog.Info("delivery ledger disabled, redis.url is empty")
		return
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
}

func (a *App) initMail() {
	from := a.config.GetString("mail.from")
	timeout := a.config.GetSecond("mail.timeout_seconds")

	client, err := mail.NewFromDriver(a.config.GetString("mail.driver"), mail.FactoryOptions{
		EmailIt: mail.EmailItConfig{
			BaseURL: a.config.GetString("mail.emailit.base_url"),
			APIKey:  a.config.GetString("mail.emailit.api_key"),
			From:    from,
			Timeout: timeout,
		},
		SMTP: mail.SMTPConfig{
			Host:          a.config.GetString("mail.smtp.host"),
			Port:          a.config.GetInt("mail.smtp.port"),
			Username:      a.smtpUsername(),
			Password:      a.config.GetString("mail.smtp.password"),
			From:          from,
			Timeout:       timeout,
			AllowInsecure: a.config.GetBool("mail.smtp.allow_insecure"),
		},
		Resend: mail.ResendConfig{
			APIKey:  a.config.GetString("mail.resend.api_key"),
			From:    from,
			BaseURL: a.config.GetString("mail.resend.base_url"),
			Timeout: timeout,
		},
	})
	if err != nil {
		slog.Error("failed to init mail", "error", err)
		os.Exit(1)
	}

	a.mail = client
}

// smtpUsername falls back to the sender address, the usual Gmail setup.
func (a *App) smtpUsername() string {
	if v := a.config.GetString("mail.smtp.username"); v != "" {
		return v
	}
	return a.config.GetString("mail.from")
}

//nolint:gocognit // it's fine
func (a *App) initStorage() {
	driver := strings.TrimSpace(a.config.GetString("storage.driver"))
	if driver == "" {
		return
	}

	var gcsClient *gcs.Client
	if driver == storage.DriverGCS {
		gcsOptions := []option.ClientOption{}
		if a.config.GetBool("storage.gcs.without_auth") {
			gcsOptions = append(gcsOptions, option.WithoutAuthentication())
		}
		if v := strings.TrimSpace(a.config.GetString("storage.gcs.credentials_file")); v != "" {
			// #nosec G304 -- path is from trusted config file.
			credsJSON, err := os.ReadFile(v)
			if err != nil {
				slog.Error("failed to read gcs credentials file", "error", err)
				os.Exit(1)
			}
			creds, err := google.CredentialsFromJSON(a.ctx, credsJSON, gcs.ScopeFullControl)
			if err != nil {
				slog.Error("failed to parse gcs credentials file", "error", err)
				os.Exit(1)
			}
			gcsOptions = append(gcsOptions, option.WithCredentials(creds))
		}
		if v := strings.TrimSpace(a.config.GetString("storage.gcs.endpoint")); v != "" {
			gcsOptions = append(gcsOptions, option.WithEndpoint(v))
		}
		if len(gcsOptions) > 0 {
			client, err := gcs.NewClient(a.ctx, gcsOptions...)
			if err != nil {
				slog.Error("failed to init gcs client", "error", err)
				os.Exit(1)
			}
			gcsClient = client
		}
	}

	stg, err := storage.NewFromDriver(a.ctx, driver, storage.FactoryOptions{
		S3: storage.S3Options{
			Region:       strings.TrimSpace(a.config.GetString("storage.s3.region")),
			Endpoint:     strings.TrimSpace(a.config.GetString("storage.s3.endpoint")),
			AccessKey:    strings.TrimSpace(a.config.GetString("storage.s3.access_key")),
			SecretKey:    strings.TrimSpace(a.config.GetString("storage.s3.secret_key")),
			SessionToken: strings.TrimSpace(a.config.GetString("storage.s3.session_token")),
			UsePathStyle: a.config.GetBool("storage.s3.use_path_style"),
		},
		GCS: storage.GCSOptions{
			Client:         gcsClient,
			GoogleAccessID: strings.TrimSpace(a.config.GetString("storage.gcs.signer_access_id")),
			PrivateKey:     a.config.GetBinary("storage.gcs.signer_private_key"),
		},
		MinIO: storage.MinIOOptions{
			Region:       strings.TrimSpace(a.config.GetString("storage.minio.region")),
			Endpoint:     strings.TrimSpace(a.config.GetString("storage.minio.endpoint")),
			AccessKey:    strings.TrimSpace(a.config.GetString("storage.minio.access_key")),
			SecretKey:    strings.TrimSpace(a.config.GetString("storage.minio.secret_key")),
			SessionToken: strings.TrimSpace(a.config.GetString("storage.minio.session_token")),
			UseSSL:       a.config.GetBool("storage.minio.use_ssl"),
		},
	})
	if err != nil {
		slog.Error("failed to init storage", "error", err)
		os.Exit(1)
	}

	a.storage = stg
}

func (a *App) initTemplateService() {
	credsJSON, err := serviceAccountJSON(a.config)
	if err != nil {
		slog.Error("failed to load google credentials", "error", err)
		os.Exit(1)
	}

	if len(credsJSON) == 0 {
		if a.config.GetString("render.driver") == render.DriverRemote {
			slog.Error("failed to init template service", "error", certificate.ErrNoTemplateService)
			os.Exit(1)
		}
		return
	}

	creds, err := google.CredentialsFromJSON(a.ctx, credsJSON, gslides.Scopes...)
	if err != nil {
		slog.Error("failed to parse google credentials", "error", err)
		os.Exit(1)
	}

	client, err := gslides.New(a.ctx, gslides.Config{
		ClientOptions: []option.ClientOption{option.WithCredentials(creds)},
		ThumbnailSize: a.config.GetString("render.remote.thumbnail_size"),
		Timeout:       a.config.GetSecond("render.remote.timeout_seconds"),
	})
	if err != nil {
		slog.Error("failed to init template service", "error", err)
		os.Exit(1)
	}

	a.slides = client
}

func (a *App) initModules() {
	dep := certificate.Dependency{
		Ctx:        a.ctx,
		Config:     a.config,
		Instrument: a.ins,
		Validator:  a.validator,
		UUID:       a.uuid,
		Clock:      a.clock,
		Mail:       a.mail,
		Storage:    a.storage,
		CacheConn:  a.cacheConn,
		DBConn:     a.dbConn,
	}
	// a nil *gslides.Client must stay a nil interface
	if a.slides != nil {
		dep.TemplateService = a.slides
	}

	runner, err := certificate.New(dep)
	if err != nil {
		slog.Error("failed to init module certificate", "error", err)
		os.Exit(1)
	}

	a.runner = runner
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Mail",
			fn: func(context.Context) error {
				return a.mail.Close()
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				if a.cacheConn == nil {
					return nil
				}
				return a.cacheConn.Close()
			},
		},
		{
			name: "Database",
			fn: func(context.Context) error {
				if a.dbConn != nil {
					a.dbConn.Close()
				}

				return nil
			},
		},
		{
			name: "Storage",
			fn: func(context.Context) error {
				if a.storage == nil {
					return nil
				}
				return a.storage.Close()
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
