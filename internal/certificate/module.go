package certificate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/certificate/inbound"
	"github.com/shandysiswandi/certsend/internal/certificate/outbound/db"
	"github.com/shandysiswandi/certsend/internal/certificate/outbound/document"
	"github.com/shandysiswandi/certsend/internal/certificate/outbound/email"
	"github.com/shandysiswandi/certsend/internal/certificate/outbound/ledger"
	"github.com/shandysiswandi/certsend/internal/certificate/outbound/render"
	"github.com/shandysiswandi/certsend/internal/certificate/usecase"
	"github.com/shandysiswandi/certsend/internal/pkg/clock"
	"github.com/shandysiswandi/certsend/internal/pkg/config"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"github.com/shandysiswandi/certsend/internal/pkg/mail"
	"github.com/shandysiswandi/certsend/internal/pkg/storage"
	"github.com/shandysiswandi/certsend/internal/pkg/uid"
	"github.com/shandysiswandi/certsend/internal/pkg/validator"
)

var ErrNoTemplateService = errors.New("remote renderer requires google credentials")

type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Mail       mail.Mail                  `validate:"required"`

	// optional resources
	Storage         storage.Storage
	TemplateService render.TemplateService
	CacheConn       *redis.Client
	DBConn          *pgxpool.Pool
}

// New wires the certificate pipeline and returns the runner that drives it.
func New(dep Dependency) (*inbound.Runner, error) {
	if err := dep.Validator.Validate(dep); err != nil {
		return nil, err
	}

	cfg := dep.Config
	driver := strings.ToLower(strings.TrimSpace(cfg.GetString("render.driver")))

	if driver == render.DriverRemote && dep.TemplateService == nil {
		return nil, ErrNoTemplateService
	}

	overlay, err := overlayFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	renderer, err := render.NewFromDriver(driver, render.Options{
		Local: render.LocalConfig{JPEGQuality: cfg.GetInt("render.jpeg_quality")},
		Remote: render.RemoteConfig{
			Placeholder: cfg.GetString("render.remote.placeholder"),
			Timeout:     cfg.GetSecond("render.remote.timeout_seconds"),
			IDs:         dep.UUID,
		},
		Service: dep.TemplateService,
	}, dep.Instrument)
	if err != nil {
		return nil, err
	}

	deliverer := email.NewDeliverer(dep.Mail, email.Config{
		MaxRetries:     uint64(max(cfg.GetInt("mail.retry.max_retries"), 0)),
		BaseDelay:      cfg.GetSecond("mail.retry.base_delay_seconds"),
		MaxDelay:       cfg.GetSecond("mail.retry.max_delay_seconds"),
		AttemptTimeout: cfg.GetSecond("mail.timeout_seconds"),
	}, dep.Instrument)

	ucDep := usecase.Dependency{
		Renderer:   renderer,
		Packager:   document.NewPDF(cfg.GetString("app.name"), dep.Instrument),
		Deliverer:  deliverer,
		Validator:  dep.Validator,
		UUID:       dep.UUID,
		Clock:      dep.Clock,
		Instrument: dep.Instrument,
		Ledger:     ledger.Noop{},
		SkipBlank:  driver == render.DriverRemote,
		Workers:    cfg.GetInt("batch.workers"),
	}

	if dep.CacheConn != nil {
		ucDep.Ledger = ledger.NewRedis(dep.CacheConn, ledger.Config{
			Campaign:     campaignName(cfg),
			LockDuration: cfg.GetSecond("ledger.lock_seconds"),
			SentTTL:      cfg.GetSecond("ledger.ttl_seconds"),
		}, dep.Instrument)
	}

	if dep.DBConn != nil {
		repo := db.NewDB(dep.DBConn, dep.Clock, dep.Instrument)
		if err := repo.EnsureSchema(dep.Ctx); err != nil {
			return nil, fmt.Errorf("ensure outcome schema: %w", err)
		}
		ucDep.RepoDB = repo
	}

	return inbound.NewRunner(usecase.New(ucDep), inbound.NewSource(dep.Storage), inbound.RunConfig{
		Mode:           strings.ToLower(strings.TrimSpace(cfg.GetString("app.mode"))),
		RecipientsPath: cfg.GetString("recipients.path"),
		TemplateRef:    cfg.GetString("template.ref"),
		RemoteTemplate: driver == render.DriverRemote,
		Overlay:        overlay,
		Subject:        cfg.GetString("message.subject"),
		Body:           cfg.GetString("message.body"),
		PreviewName:    cfg.GetString("preview.name"),
		PreviewOutput:  cfg.GetString("preview.output"),
	}), nil
}

func overlayFromConfig(cfg config.Config) (entity.Overlay, error) {
	font, err := entity.ParseFont(cfg.GetString("render.overlay.font"))
	if err != nil {
		return entity.Overlay{}, err
	}

	color, err := entity.ParseColor(cfg.GetString("render.overlay.color"))
	if err != nil {
		return entity.Overlay{}, err
	}

	return entity.Overlay{
		Position: entity.Position{X: cfg.GetInt("render.overlay.x"), Y: cfg.GetInt("render.overlay.y")},
		Font:     font,
		Scale:    cfg.GetFloat64("render.overlay.scale"),
		Color:    color,
	}, nil
}

// campaignName defaults to the template so re-running the same certificate
// skips recipients who already received it.
func campaignName(cfg config.Config) string {
	if v := strings.TrimSpace(cfg.GetString("ledger.campaign")); v != "" {
		return v
	}
	return cfg.GetString("template.ref")
}
