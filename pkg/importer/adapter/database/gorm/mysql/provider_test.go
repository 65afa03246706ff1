package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/config"
)

func TestConnectionString(t *testing.T) {
	dsn, err := ConnectionString(dbconfig.DatabaseConfig{
		Host: "db", Port: 3306, User: "importer", Password: "p@ss", Database: "imports",
		Params: "charset=utf8mb4",
	})
	require.NoError(t, err)
	assert.Contains(t, dsn, "importer:p@ss@tcp(db:3306)/imports?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestConnectionString_InvalidParams(t *testing.T) {
	_, err := ConnectionString(dbconfig.DatabaseConfig{Host: "db", Port: 3306, Params: "%zz"})
	assert.Error(t, err)
}
