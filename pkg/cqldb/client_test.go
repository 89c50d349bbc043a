package cqldb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReplicationToCQL(t *testing.T) {
	got := replicationToCQL(map[string]interface{}{
		"replication_factor": 1,
		"class":              "SimpleStrategy",
	})
	require.Equal(t, "{'class': 'SimpleStrategy', 'replication_factor': 1}", got)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Hosts:          []string{"127.0.0.1"},
		NumConns:       1,
		ConnectTimeout: time.Second * 5,
		Keyspace: KeyspaceConfig{
			Name:   "deviceBridge",
			Create: true,
			Replication: map[string]interface{}{
				"class":              "SimpleStrategy",
				"replication_factor": 1,
			},
		},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{name: "no hosts", modify: func(c *Config) { c.Hosts = nil }},
		{name: "no connections", modify: func(c *Config) { c.NumConns = 0 }},
		{name: "no timeout", modify: func(c *Config) { c.ConnectTimeout = 0 }},
		{name: "no keyspace", modify: func(c *Config) { c.Keyspace.Name = "" }},
		{name: "no replication", modify: func(c *Config) { c.Keyspace.Replication = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			c.Keyspace.Replication = map[string]interface{}{"class": "SimpleStrategy", "replication_factor": 1}
			tt.modify(&c)
			require.Error(t, c.Validate())
		})
	}
}
