package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	databaseURLVar    = "DATABASE_URL"
	dbMaxConnsVar     = "DB_MAX_CONNS"
	dbQueryTimeoutVar = "DB_QUERY_TIMEOUT"
)

type StoreConfig interface {
	GetDatabaseURL() string
	GetDBMaxConns() int32
	GetDBQueryTimeout() time.Duration
}

type Store struct {
	v *viper.Viper
}

var _ StoreConfig = Store{}

// GetDatabaseURL returns a postgres:// URL or a sqlite DSN.
func (s Store) GetDatabaseURL() string {
	return s.v.GetString(databaseURLVar)
}

func (s Store) GetDBMaxConns() int32 {
	return s.v.GetInt32(dbMaxConnsVar)
}

func (s Store) GetDBQueryTimeout() time.Duration {
	return s.v.GetDuration(dbQueryTimeoutVar)
}
