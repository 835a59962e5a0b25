package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver ("pgx")
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/rushteam/targetdb/core"
)

// Dialect 标识关系库变体，决定驱动名与占位符风格。
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectDuckDB   Dialect = "duckdb"
)

// ParseDialect 解析配置中的驱动名
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "duckdb":
		return DialectDuckDB, nil
	default:
		return "", core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: unknown driver "+name)
	}
}

func (d Dialect) driverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectDuckDB:
		return "duckdb"
	default:
		return "sqlite"
	}
}

// Rebind 把 `?` 占位符改写为当前方言的形式（postgres 使用 $1, $2 ...）。
// 单引号/双引号内的 `?` 不做改写。
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var (
		b     strings.Builder
		n     int
		quote rune
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			b.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(r)
		case r == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SQLStore 是基于 database/sql 的只读 TargetStore 实现。
// 连接池本身是并发安全的；每个 worker 通过 Session 独占一条连接。
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

var _ core.TargetStore = (*SQLStore)(nil)

// Option 配置 SQLStore
type Option func(*sqlOptions)

type sqlOptions struct {
	logger       *zap.Logger
	maxOpenConns int
	pingTimeout  time.Duration
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *sqlOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxOpenConns 设置连接池上限（通常与 worker 数一致）
func WithMaxOpenConns(n int) Option {
	return func(o *sqlOptions) {
		o.maxOpenConns = n
	}
}

// Open 打开关系库并检查连通性；连接失败返回 UNAVAILABLE（整批致命）。
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*SQLStore, error) {
	o := sqlOptions{logger: zap.NewNop(), pingTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if dsn == "" {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: empty dsn")
	}
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err, "store: open %s", dialect)
	}
	if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}
	s := &SQLStore{db: db, dialect: dialect, logger: o.logger}

	pingCtx, cancel := context.WithTimeout(ctx, o.pingTimeout)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Info("relational store opened", zap.String("dialect", string(dialect)))
	return s, nil
}

// NewSQLStore 包装已打开的 *sql.DB（测试或调用方自行管理连接时使用）。
func NewSQLStore(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{db: db, dialect: dialect, logger: logger}
}

func (s *SQLStore) Name() string { return string(s.dialect) }

// Dialect 返回方言
func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err, "store: ping %s", s.dialect)
	}
	return nil
}

// ListTargets 枚举主靶点表；主表不可读视为存储故障。
func (s *SQLStore) ListTargets(ctx context.Context) ([]core.Target, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT Target_id, Gene_name FROM Targets ORDER BY Target_id`)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err, "store: list targets")
	}
	defer func() { _ = rows.Close() }()

	var targets []core.Target
	for rows.Next() {
		var (
			id   string
			gene sql.NullString
		)
		if err := rows.Scan(&id, &gene); err != nil {
			return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err, "store: scan target")
		}
		targets = append(targets, core.Target{ID: id, GeneName: gene.String})
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err, "store: list targets")
	}
	return targets, nil
}

// Session 从连接池取出一条专用连接。
func (s *SQLStore) Session(ctx context.Context) (core.Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err, "store: acquire connection")
	}
	return &sqlSession{conn: conn, dialect: s.dialect}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlSession struct {
	conn    *sql.Conn
	dialect Dialect
}

// ErrWriteQuery 表示试图通过只读会话执行写语句
var ErrWriteQuery = errors.New("store: session is read-only")

func (s *sqlSession) Query(ctx context.Context, category, query string, columns []string, args ...any) (*core.Table, error) {
	if !isReadQuery(query) {
		return nil, ErrWriteQuery
	}
	rows, err := s.conn.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, classify(err, category)
	}
	defer func() { _ = rows.Close() }()

	got, err := rows.Columns()
	if err != nil {
		return nil, classify(err, category)
	}
	if len(columns) == 0 {
		columns = got
	} else if len(columns) != len(got) {
		return nil, fmt.Errorf("store: %s returned %d columns, want %d", category, len(got), len(columns))
	}

	table := core.NewTable(category, columns...)
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(err, category)
		}
		for i, v := range vals {
			vals[i] = normalizeValue(v)
		}
		table.Rows = append(table.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, category)
	}
	return table, nil
}

func (s *sqlSession) Close() error {
	return s.conn.Close()
}

func isReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}

// classify 把连接类错误提升为 UNAVAILABLE，其余错误原样返回（由调用方降级为空表）。
func classify(err error, category string) error {
	if IsConnectivity(err) {
		return core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err, "store: query %s", category)
	}
	return fmt.Errorf("store: query %s: %w", category, err)
}

// IsConnectivity 判断错误是否来自连接层（而不是某张表缺失/格式异常）。
func IsConnectivity(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int8:
		return int64(val)
	case int:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}
