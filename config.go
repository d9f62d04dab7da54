package mdb

import (
	"net"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix 环境变量前缀, MDB_HOST -> host
const EnvPrefix = "MDB_"

type MysqlConfig struct {
	Host        string `json:"host" koanf:"host" validate:"required"`
	Port        string `json:"port" koanf:"port" validate:"required,numeric"`
	Password    string `json:"password" koanf:"password"`
	User        string `json:"user" koanf:"user" validate:"required"`
	Database    string `json:"db" koanf:"db" validate:"required"`
	MaxOpenCons int    `json:"maxOpenCons" koanf:"max_open_cons" validate:"gte=0"`
	MaxIdleCons int    `json:"maxIdleCons" koanf:"max_idle_cons" validate:"gte=0"`
	Params      string `json:"params" koanf:"params"` // 其他配置数据, 放在链接后面的参数里 charset=utf8mb4&parseTime=true
}

func DefaultMysqlConfig() MysqlConfig {
	return MysqlConfig{
		Host:        "127.0.0.1",
		Port:        "3306",
		MaxOpenCons: 10,
		MaxIdleCons: 2,
		Params:      "charset=utf8mb4&parseTime=true",
	}
}

// LoadConfig 默认值 < yaml 文件(path 为空时跳过) < MDB_ 环境变量
func LoadConfig(path string) (MysqlConfig, error) {
	var cfg MysqlConfig
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultMysqlConfig(), "koanf"), nil); err != nil {
		return cfg, errors.Wrap(err, "load defaults")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, errors.Wrapf(err, "load config file %s", path)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cfg, errors.Wrap(err, "load environment")
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func (c MysqlConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid mysql config")
	}
	return nil
}

// DSN user:password@tcp(host:port)/db?params
func (c MysqlConfig) DSN() (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, c.Port)
	cfg.DBName = c.Database
	if c.Params != "" {
		values, err := url.ParseQuery(c.Params)
		if err != nil {
			return "", errors.Wrapf(err, "parse params %q", c.Params)
		}
		cfg.Params = make(map[string]string, len(values))
		for k := range values {
			cfg.Params[k] = values.Get(k)
		}
	}
	return cfg.FormatDSN(), nil
}
