package mdb

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ErDupEntry 唯一键冲突
const ErDupEntry = 1062

// SqlBuilder builder.LambdaQuery 实现了这个接口
type SqlBuilder interface {
	Query() (string, map[string]any)
}

// CountBuilder 用于 CountByBuilder
type CountBuilder interface {
	QueryCount() (string, map[string]any)
}

type MysqlClient struct {
	MysqlConfig MysqlConfig
	Db          *sqlx.DB
}

func NewMysqlClient(config MysqlConfig) (*MysqlClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	dsn, err := config.DSN()
	if err != nil {
		return nil, err
	}
	slog.Info("链接数据库", "host", config.Host, "port", config.Port, "db", config.Database)
	// 内部已经 ping 了
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		slog.Error("链接数据库失败", "error", err.Error(), "host", config.Host, "db", config.Database)
		return nil, errors.Wrap(err, "connect mysql")
	}
	db.SetMaxOpenConns(config.MaxOpenCons)
	db.SetMaxIdleConns(config.MaxIdleCons)
	return NewMysqlClientWithDB(db, config), nil
}

// NewMysqlClientWithDB 使用已有的连接
func NewMysqlClientWithDB(db *sqlx.DB, config MysqlConfig) *MysqlClient {
	return &MysqlClient{
		Db:          db,
		MysqlConfig: config,
	}
}

func (s *MysqlClient) MysqlPoolClose() {
	if err := s.Db.Close(); err != nil {
		slog.Error("关闭数据库错误", "error", err.Error())
		return
	}
	slog.Info("close mdb", "host", s.MysqlConfig.Host, "db", s.MysqlConfig.Database)
}

// 参数解析 :name -> ?, 切片参数展开
func (s *MysqlClient) sqlPares(ctx context.Context, osql string, params map[string]any) (string, []any, error) {
	if params == nil {
		params = map[string]any{}
	}
	q, args, err := sqlx.Named(osql, params)
	if err != nil {
		slog.ErrorContext(ctx, "sqlx.Named", "error", err.Error(), "sql", osql)
		return "", nil, errors.Wrap(err, "sqlx.Named")
	}
	q, args, err = sqlx.In(q, args...)
	if err != nil {
		slog.ErrorContext(ctx, "sqlx.In", "error", err.Error(), "params", params, "sql", osql)
		return "", nil, errors.Wrap(err, "sqlx.In")
	}
	return s.Db.Rebind(q), args, nil
}

func (s *MysqlClient) ext(tx []*sqlx.Tx) sqlx.ExtContext {
	if len(tx) > 0 && tx[0] != nil {
		return tx[0]
	}
	return s.Db
}

// Select 查询一行, 没有数据时返回 false, nil
func (s *MysqlClient) Select(ctx context.Context, sqlStr string, params map[string]any, row any, tx ...*sqlx.Tx) (bool, error) {
	q, args, err := s.sqlPares(ctx, sqlStr, params)
	if err != nil {
		return false, err
	}
	err = sqlx.GetContext(ctx, s.ext(tx), row, q, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		slog.ErrorContext(ctx, "mdb Query failed", "error", err.Error(), "sql", sqlStr, "data", params)
		return false, errors.Wrap(err, "mdb query")
	}
	return true, nil
}

// Fetch 查询多行
func (s *MysqlClient) Fetch(ctx context.Context, sqlStr string, params map[string]any, rows any, tx ...*sqlx.Tx) error {
	q, args, err := s.sqlPares(ctx, sqlStr, params)
	if err != nil {
		return err
	}
	if err = sqlx.SelectContext(ctx, s.ext(tx), rows, q, args...); err != nil {
		slog.ErrorContext(ctx, "mdb Fetch StructScan failed", "error", err.Error(), "sql", sqlStr, "data", params)
		return errors.Wrap(err, "mdb fetch")
	}
	return nil
}

// Execute 不能做查询, 这里是没有返回结果的
func (s *MysqlClient) Execute(ctx context.Context, sqlStr string, params map[string]any, tx ...*sqlx.Tx) (sql.Result, error) {
	q, args, err := s.sqlPares(ctx, sqlStr, params)
	if err != nil {
		return nil, err
	}
	rs, err := s.ext(tx).ExecContext(ctx, q, args...)
	if err != nil {
		slog.ErrorContext(ctx, "mdb Execute failed", "error", err.Error(), "sql", q, "data", params)
		return nil, errors.Wrap(err, "mdb execute")
	}
	return rs, nil
}

// builderErr builder 构造期间的错误, 例如参数名冲突
func builderErr(b any) error {
	if eb, ok := b.(interface{ Err() error }); ok && eb.Err() != nil {
		return errors.Wrap(eb.Err(), "mdb builder")
	}
	return nil
}

func (s *MysqlClient) QueryByBuilder(ctx context.Context, b SqlBuilder, row any, tx ...*sqlx.Tx) (bool, error) {
	if err := builderErr(b); err != nil {
		return false, err
	}
	sqlStr, params := b.Query()
	return s.Select(ctx, sqlStr, params, row, tx...)
}

func (s *MysqlClient) FetchByBuilder(ctx context.Context, b SqlBuilder, rows any, tx ...*sqlx.Tx) error {
	if err := builderErr(b); err != nil {
		return err
	}
	sqlStr, params := b.Query()
	return s.Fetch(ctx, sqlStr, params, rows, tx...)
}

// CountByBuilder 有 GROUP BY 时统计的是分组数
func (s *MysqlClient) CountByBuilder(ctx context.Context, b CountBuilder, tx ...*sqlx.Tx) (int64, error) {
	if err := builderErr(b); err != nil {
		return 0, err
	}
	sqlStr, params := b.QueryCount()
	var total int64
	if _, err := s.Select(ctx, sqlStr, params, &total, tx...); err != nil {
		return 0, err
	}
	return total, nil
}

// ExecByBuilder 执行 LambdaQuery.Insert / Delete / Update 生成的语句
// 构造出错时这些方法返回空字符串, 这里会报 empty sql
func (s *MysqlClient) ExecByBuilder(ctx context.Context, sqlStr string, params map[string]any, tx ...*sqlx.Tx) (sql.Result, error) {
	if sqlStr == "" {
		return nil, errors.New("mdb exec: empty sql")
	}
	return s.Execute(ctx, sqlStr, params, tx...)
}

// Transaction fn 返回错误或者 panic 时回滚, 否则提交
func (s *MysqlClient) Transaction(ctx context.Context, fn func(context.Context, *MysqlClient, *sqlx.Tx) error) (err error) {
	tx, err := s.Db.BeginTxx(ctx, nil)
	if err != nil {
		slog.ErrorContext(ctx, "begin trans failed", "error", err.Error())
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "回滚失败", "error", rbErr.Error())
			}
			slog.ErrorContext(ctx, "事务回滚", "panic", p)
			err = errors.Errorf("transaction panic: %v", p)
			return
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "回滚失败", "error", rbErr.Error())
			}
			slog.ErrorContext(ctx, "事务回滚", "error", err.Error())
			return
		}
		if err = tx.Commit(); err != nil {
			slog.ErrorContext(ctx, "提交失败", "error", err.Error())
			err = errors.Wrap(err, "commit transaction")
		}
	}()
	return fn(ctx, s, tx)
}

// IsDuplicateEntry mysql 1062 唯一键约束
func IsDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == ErDupEntry
}
