// Package dbconfig resolves the document-store connection settings
// signaldb needs from the environment, mirroring the five variables the
// original Python client read: mongodb_host, mongodb_port, mongodb_user,
// mongodb_pwd, and signaldb_collection (the database name).
package dbconfig

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config holds everything NewEngine needs to dial and authenticate.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// FromEnv reads Config from the process environment. User and Password
// are optional — an empty User means connect without authentication, same
// as the original client. Host, Port, and Database are required.
func FromEnv() (Config, error) {
	host := os.Getenv("mongodb_host")
	if host == "" {
		return Config{}, errors.New("dbconfig: mongodb_host is not set")
	}

	portStr := os.Getenv("mongodb_port")
	if portStr == "" {
		return Config{}, errors.New("dbconfig: mongodb_port is not set")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Config{}, errors.Wrap(err, "dbconfig: mongodb_port must be a positive integer")
	}

	database := os.Getenv("signaldb_collection")
	if database == "" {
		return Config{}, errors.New("dbconfig: signaldb_collection is not set")
	}

	cfg := Config{
		Host:     host,
		Port:     port,
		User:     os.Getenv("mongodb_user"),
		Password: os.Getenv("mongodb_pwd"),
		Database: database,
	}

	logrus.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.Database,
		"authed":   cfg.User != "",
	}).Debug("dbconfig: resolved connection settings from environment")

	return cfg, nil
}

// URI renders the config as a mongodb:// connection string suitable for
// options.Client().ApplyURI.
func (c Config) URI() string {
	if c.User == "" {
		return "mongodb://" + c.Host + ":" + strconv.Itoa(c.Port)
	}
	return "mongodb://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/?authSource=admin"
}
