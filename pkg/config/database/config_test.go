package database_test

import (
	"errors"
	"testing"

	"github.com/plgd-dev/device-bridge/pkg/config/database"
	"github.com/stretchr/testify/require"
)

type dbConfig struct {
	valid bool
}

func (c *dbConfig) Validate() error {
	if !c.valid {
		return errors.New("invalid")
	}
	return nil
}

func TestConfigValidate(t *testing.T) {
	type cfg = database.Config[*dbConfig, *dbConfig]
	tests := []struct {
		name    string
		cfg     cfg
		want    database.DBUse
		wantErr bool
	}{
		{name: "memory", cfg: cfg{Use: "MEMORY"}, want: database.Memory},
		{name: "mongo", cfg: cfg{Use: "mongodb", MongoDB: &dbConfig{valid: true}}, want: database.MongoDB},
		{name: "cql", cfg: cfg{Use: "cqlDB", CqlDB: &dbConfig{valid: true}}, want: database.CqlDB},
		{name: "mongo - empty", cfg: cfg{Use: "mongoDB"}, wantErr: true},
		{name: "cql - invalid", cfg: cfg{Use: "cqlDB", CqlDB: &dbConfig{}}, wantErr: true},
		{name: "unknown", cfg: cfg{Use: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, tt.cfg.Use)
		})
	}
}
