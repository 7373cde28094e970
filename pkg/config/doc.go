// Package config loads typed configuration from environment variables.
//
// Structs declare their variables with caarlos0/env tags; a .env file in the
// working directory, read once through joho/godotenv, supplies values missing
// from the process environment. Parsed values are cached per type, so every
// package can call Load for the struct it owns without re-reading the
// environment. Structs implementing Validator are checked after parsing.
//
//	type Config struct {
//		Store string `env:"TWOFACTOR_STORE" envDefault:"memory"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
