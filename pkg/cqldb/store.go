package cqldb

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/plgd-dev/device-bridge/pkg/log"
)

// Store is a table in the keyspace of the client.
type Store struct {
	table  string
	client *Client
	logger log.Logger
}

func NewStore(table string, client *Client, logger log.Logger) *Store {
	return &Store{
		table:  table,
		client: client,
		logger: logger,
	}
}

// Table returns the table name qualified by the keyspace.
func (s *Store) Table() string {
	return s.client.Keyspace() + "." + s.table
}

func (s *Store) Session() *gocql.Session {
	return s.client.Session()
}

// CreateTable creates the table with the columns definition unless it exists.
func (s *Store) CreateTable(ctx context.Context, definition string) error {
	q := "create table if not exists " + s.Table() + " (" + definition + ");"
	if err := s.Session().Query(q).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("cannot create table %v: %w", s.Table(), err)
	}
	s.logger.Debugf("table %v is ready", s.Table())
	return nil
}

// Close closes the session.
func (s *Store) Close(_ context.Context) error {
	s.client.Close()
	return nil
}
