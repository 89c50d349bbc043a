package cqldb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gocql/gocql"
	"github.com/plgd-dev/device-bridge/pkg/log"
	"github.com/plgd-dev/device-bridge/pkg/net/http/client"
)

// Client holds a session to the cluster bound to one keyspace.
type Client struct {
	session  *gocql.Session
	keyspace string
	logger   log.Logger
}

func replicationToCQL(replication map[string]interface{}) string {
	keys := make([]string, 0, len(replication))
	for k := range replication {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := replication[k]
		if s, ok := v.(string); ok {
			parts = append(parts, fmt.Sprintf("'%v': '%v'", k, s))
			continue
		}
		parts = append(parts, fmt.Sprintf("'%v': %v", k, v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// New connects to the cluster and creates the keyspace when configured.
func New(ctx context.Context, config Config, logger log.Logger) (*Client, error) {
	cluster := gocql.NewCluster(config.Hosts...)
	if config.Port > 0 {
		cluster.Port = config.Port
	}
	cluster.NumConns = config.NumConns
	cluster.ConnectTimeout = config.ConnectTimeout
	cluster.Consistency = gocql.Quorum
	if config.TLS != nil {
		tlsCfg, err := client.NewTLSConfig(*config.TLS)
		if err != nil {
			return nil, fmt.Errorf("cannot create tls config: %w", err)
		}
		cluster.SslOpts = &gocql.SslOptions{
			Config:                 tlsCfg,
			EnableHostVerification: !config.TLS.InsecureSkipVerify,
		}
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cannot create session: %w", err)
	}
	c := &Client{
		session:  session,
		keyspace: config.Keyspace.Name,
		logger:   logger,
	}
	if config.Keyspace.Create {
		q := "create keyspace if not exists " + c.keyspace + " with replication = " + replicationToCQL(config.Keyspace.Replication) + ";"
		if err = session.Query(q).WithContext(ctx).Exec(); err != nil {
			session.Close()
			return nil, fmt.Errorf("cannot create keyspace %v: %w", c.keyspace, err)
		}
	}
	return c, nil
}

func (c *Client) Session() *gocql.Session {
	return c.session
}

func (c *Client) Keyspace() string {
	return c.keyspace
}

func (c *Client) Close() {
	c.session.Close()
	c.logger.Debugf("session to keyspace %v closed", c.keyspace)
}
