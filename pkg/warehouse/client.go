package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethpandaops/mirror/pkg/observability"
	"github.com/sirupsen/logrus"
	sf "github.com/snowflakedb/gosnowflake"
)

// Define static errors
var (
	ErrSessionClosed = errors.New("warehouse session is closed")
)

// Executor runs statements against the warehouse
type Executor interface {
	// Execute runs a statement that returns no rows of interest
	Execute(ctx context.Context, query string) error
	// Query runs a statement and returns every row
	Query(ctx context.Context, query string) ([]Row, error)
}

// Session is a single warehouse connection scoped to one run
type Session interface {
	Executor
	// InTx runs fn inside one transaction; any error rolls the whole unit back
	InTx(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error
	// Close releases the underlying connection
	Close() error
}

// Factory hands out run-scoped sessions
type Factory interface {
	Acquire(ctx context.Context) (Session, error)
}

// ClientInterface defines the warehouse client lifecycle
type ClientInterface interface {
	Factory
	// Start verifies connectivity
	Start() error
	// Stop closes the connection pool
	Stop() error
}

// client implements ClientInterface on a database/sql pool
type client struct {
	log   logrus.FieldLogger
	db    *sql.DB
	debug bool
}

// NewClient creates a Snowflake backed client from an explicit configuration
func NewClient(log logrus.FieldLogger, cfg *Config) (ClientInterface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	connector := sf.NewConnector(sf.SnowflakeDriver{}, cfg.snowflakeConfig())
	db := sql.OpenDB(connector)

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return NewClientFromDB(log, db, cfg.Debug), nil
}

// NewClientFromDB wraps an existing pool
func NewClientFromDB(log logrus.FieldLogger, db *sql.DB, debug bool) ClientInterface {
	return &client{
		log:   log.WithField("component", "warehouse"),
		db:    db,
		debug: debug,
	}
}

func (c *client) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	c.log.Info("Connected to warehouse")

	return nil
}

func (c *client) Stop() error {
	if err := c.db.Close(); err != nil {
		return err
	}

	c.log.Info("Closed warehouse client")

	return nil
}

func (c *client) Acquire(ctx context.Context) (Session, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire warehouse connection: %w", err)
	}

	return &session{
		log:   c.log,
		conn:  conn,
		debug: c.debug,
	}, nil
}

// queryer is satisfied by *sql.Conn and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type session struct {
	log    logrus.FieldLogger
	conn   *sql.Conn
	debug  bool
	closed bool
}

func (s *session) Execute(ctx context.Context, query string) error {
	if s.closed {
		return ErrSessionClosed
	}

	return execute(ctx, s.log, s.conn, query, s.debug)
}

func (s *session) Query(ctx context.Context, query string) ([]Row, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}

	return queryRows(ctx, s.log, s.conn, query, s.debug)
}

func (s *session) InTx(ctx context.Context, fn func(ctx context.Context, tx Executor) error) (err error) {
	if s.closed {
		return ErrSessionClosed
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txExecutor{log: s.log, tx: tx, debug: s.debug}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.WithError(rbErr).Error("Failed to roll back transaction")
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	return s.conn.Close()
}

type txExecutor struct {
	log   logrus.FieldLogger
	tx    *sql.Tx
	debug bool
}

func (t *txExecutor) Execute(ctx context.Context, query string) error {
	return execute(ctx, t.log, t.tx, query, t.debug)
}

func (t *txExecutor) Query(ctx context.Context, query string) ([]Row, error) {
	return queryRows(ctx, t.log, t.tx, query, t.debug)
}

func execute(ctx context.Context, log logrus.FieldLogger, q queryer, query string, debug bool) error {
	kind := StatementKind(query)
	start := time.Now()

	if debug {
		log.WithField("query", preview(query)).Debug("Executing warehouse statement")
	}

	if _, err := q.ExecContext(ctx, query); err != nil {
		observability.RecordWarehouseStatement(kind, "error", time.Since(start).Seconds())
		return fmt.Errorf("%s statement failed: %w", kind, err)
	}

	observability.RecordWarehouseStatement(kind, "success", time.Since(start).Seconds())

	return nil
}

func queryRows(ctx context.Context, log logrus.FieldLogger, q queryer, query string, debug bool) ([]Row, error) {
	kind := StatementKind(query)
	start := time.Now()

	if debug {
		log.WithField("query", preview(query)).Debug("Executing warehouse query")
	}

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		observability.RecordWarehouseStatement(kind, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%s query failed: %w", kind, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		observability.RecordWarehouseStatement(kind, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%s query failed: %w", kind, err)
	}

	observability.RecordWarehouseStatement(kind, "success", time.Since(start).Seconds())

	return result, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	for i, col := range columns {
		columns[i] = strings.ToUpper(col)
	}

	var result []Row

	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))

		for i := range values {
			dest[i] = &values[i]
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		result = append(result, Row{Columns: columns, Values: values})
	}

	return result, rows.Err()
}

//nolint:gochecknoglobals // Fixed label set for statement metrics
var statementKinds = map[string]bool{
	"SELECT": true, "COPY": true, "PUT": true, "REMOVE": true, "LIST": true,
	"CREATE": true, "DELETE": true, "TRUNCATE": true, "INSERT": true,
}

// StatementKind returns the leading keyword of a statement for metric labels
func StatementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "OTHER"
	}

	kind := strings.ToUpper(fields[0])
	if !statementKinds[kind] {
		return "OTHER"
	}

	return kind
}

func preview(query string) string {
	const maxPreview = 1000

	if len(query) > maxPreview {
		return query[:maxPreview] + "... (truncated)"
	}

	return query
}
