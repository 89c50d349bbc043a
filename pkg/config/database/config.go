package database

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

type DBUse string

func (u DBUse) ToLower() DBUse {
	return DBUse(strings.ToLower(string(u)))
}

const (
	Memory  DBUse = "memory"
	MongoDB DBUse = "mongoDB"
	CqlDB   DBUse = "cqlDB"
)

type DBConfig interface {
	Validate() error
}

// Config selects one of the supported storages. Memory needs no configuration.
type Config[MongoConfig DBConfig, CQLDBConfig DBConfig] struct {
	Use     DBUse       `yaml:"use" json:"use"`
	MongoDB MongoConfig `yaml:"mongoDB" json:"mongoDb"`
	CqlDB   CQLDBConfig `yaml:"cqlDB" json:"cqlDb"`
}

func isNil(v interface{}) bool {
	return reflect.ValueOf(v).Kind() == reflect.Ptr && reflect.ValueOf(v).IsNil()
}

func (c *Config[MongoConfig, CQLDBConfig]) Validate() error {
	switch c.Use.ToLower() {
	case Memory.ToLower():
		c.Use = Memory
	case MongoDB.ToLower():
		if isNil(c.MongoDB) {
			return errors.New("mongoDB - is empty")
		}
		if err := c.MongoDB.Validate(); err != nil {
			return fmt.Errorf("mongoDB.%w", err)
		}
		c.Use = MongoDB
	case CqlDB.ToLower():
		if isNil(c.CqlDB) {
			return errors.New("cqlDB - is empty")
		}
		if err := c.CqlDB.Validate(); err != nil {
			return fmt.Errorf("cqlDB.%w", err)
		}
		c.Use = CqlDB
	default:
		return fmt.Errorf("use('%v' - only %v, %v or %v are supported)", c.Use, Memory, MongoDB, CqlDB)
	}
	return nil
}
