package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/clock"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tableName = "certificate_outcomes"

const createTable = `CREATE TABLE IF NOT EXISTS certificate_outcomes (
	id         BIGSERIAL PRIMARY KEY,
	batch_id   TEXT        NOT NULL,
	position   INTEGER     NOT NULL,
	full_name  TEXT        NOT NULL,
	email      TEXT        NOT NULL,
	status     TEXT        NOT NULL,
	stage      TEXT        NOT NULL,
	detail     TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (batch_id, position)
)`

var columns = []string{"batch_id", "position", "full_name", "email", "status", "stage", "detail", "created_at"}

// Conn is the subset of *pgxpool.Pool used by DB.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// DB persists batch outcomes to Postgres.
type DB struct {
	conn  Conn
	clock clock.Clocker
	ins   instrument.Instrumentation
}

func NewDB(conn Conn, clk clock.Clocker, ins instrument.Instrumentation) *DB {
	return &DB{conn: conn, clock: clk, ins: ins}
}

// EnsureSchema creates the outcomes table when missing.
func (s *DB) EnsureSchema(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "EnsureSchema")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, createTable)
	return err
}

// SaveReport writes every outcome of the report, keyed by its input position.
func (s *DB) SaveReport(ctx context.Context, report *entity.Report) (err error) {
	ctx, span := s.startSpan(ctx, "SaveReport")
	defer func() { s.endSpan(span, err) }()

	if report == nil || len(report.Outcomes) == 0 {
		return nil
	}
	span.SetAttributes(attribute.String("batch_id", report.BatchID), attribute.Int("outcomes", len(report.Outcomes)))

	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	rows := make([][]any, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		rows = append(rows, []any{
			report.BatchID,
			int32(o.Position),
			o.Recipient.FullName,
			o.Recipient.Email,
			o.Status.String(),
			o.Stage.String(),
			o.Detail,
			now,
		})
	}

	_, err = s.conn.CopyFrom(ctx, pgx.Identifier{tableName}, columns, pgx.CopyFromRows(rows))
	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("certificate.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
