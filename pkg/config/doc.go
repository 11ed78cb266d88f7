// Package config loads typed configuration structs from environment
// variables, with .env support for local development.
//
// Each package that needs configuration declares its own struct with `env`
// tags (see docstore.MongoConfig and kv.RedisConfig) and hands a pointer to
// Load. Parsing is cached per struct type, so wiring code can call Load for
// the same type from several places without re-reading the environment.
package config
