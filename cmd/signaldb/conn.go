package main

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"signaldb/internal/dbconfig"
	"signaldb/internal/store/impl_mongo"
)

// connFlags holds the global connection overrides every subcommand shares.
type connFlags struct {
	host string
	port int
	user string
	pwd  string
	db   string
}

func (c connFlags) resolve() (dbconfig.Config, error) {
	cfg, err := dbconfig.FromEnv()
	if err != nil {
		return dbconfig.Config{}, err
	}
	if c.host != "" {
		cfg.Host = c.host
	}
	if c.port != 0 {
		cfg.Port = c.port
	}
	if c.user != "" {
		cfg.User = c.user
	}
	if c.pwd != "" {
		cfg.Password = c.pwd
	}
	if c.db != "" {
		cfg.Database = c.db
	}
	return cfg, nil
}

// connect resolves the connection settings and opens an impl_mongo.Engine
// against them, creating indexes idempotently.
func connect(ctx context.Context, flags connFlags) (*impl_mongo.Engine, func(context.Context) error, error) {
	cfg, err := flags.resolve()
	if err != nil {
		return nil, nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI()))
	if err != nil {
		return nil, nil, err
	}

	eng, err := impl_mongo.NewEngine(ctx, client.Database(cfg.Database))
	if err != nil {
		return nil, nil, err
	}
	return eng, client.Disconnect, nil
}

type traceIDKey struct{}

func withTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

func traceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
