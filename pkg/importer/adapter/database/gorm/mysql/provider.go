// Package mysql registers the MySQL dialector with the gorm adapter.
package mysql

import (
	"fmt"
	"net/url"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/config"
	gormadapter "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		dsn, err := ConnectionString(cfg)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	})
}

// ConnectionString builds the DSN with the driver's own formatter.
// Params is parsed as a URL query string (e.g. "charset=utf8mb4&loc=Local").
func ConnectionString(c dbconfig.DatabaseConfig) (string, error) {
	dc := mysqldriver.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	dc.DBName = c.Database
	dc.ParseTime = true
	if c.Params != "" {
		values, err := url.ParseQuery(c.Params)
		if err != nil {
			return "", fmt.Errorf("invalid mysql params '%s': %w", c.Params, err)
		}
		dc.Params = make(map[string]string, len(values))
		for k := range values {
			dc.Params[k] = values.Get(k)
		}
	}
	return dc.FormatDSN(), nil
}
