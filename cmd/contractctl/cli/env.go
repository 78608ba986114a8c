package cli

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"
)

// Env is the slice of the server configuration contractctl needs to reach the queue.
type Env struct {
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// LoadEnv reads Env from the process environment.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("load contractctl env: %w", err)
	}
	return env, nil
}

// RedisOpt returns asynq connection options, with addr overriding RedisAddr when set.
func (e Env) RedisOpt(addr string) asynq.RedisClientOpt {
	if addr == "" {
		addr = e.RedisAddr
	}
	return asynq.RedisClientOpt{Addr: addr, Password: e.RedisPassword, DB: e.RedisDB}
}
