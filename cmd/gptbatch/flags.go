package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "GPTBATCH_"

// mustBindFlag binds a flag and its environment variable to key, panicking if either binding fails.
func mustBindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name, env string) {
	if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
	if err := v.BindEnv(key, envPrefix+env); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

func bindRunFlags(v *viper.Viper, flags *pflag.FlagSet) {
	defaults := defaultRunConfig()

	flags.Int("max-connections", defaults.MaxConnections, "the maximum number of simultaneous connections to the endpoint")
	mustBindFlag(v, flags, "maxConnections", "max-connections", "MAX_CONNECTIONS")

	flags.String("api-key", "", "the API key; OPENAI_API_KEY is used when empty")
	mustBindFlag(v, flags, "apiKey", "api-key", "API_KEY")

	flags.String("base-url", "", "the base URL of an OpenAI compatible API")
	mustBindFlag(v, flags, "baseURL", "base-url", "BASE_URL")

	flags.String("model", defaults.Model, "the model identifier sent with every request")
	mustBindFlag(v, flags, "model", "model", "MODEL")

	flags.String("instruction", "", "the system instruction shared by every request")
	mustBindFlag(v, flags, "instruction", "instruction", "INSTRUCTION")

	flags.String("instruction-file", "", "read the system instruction from this file")
	mustBindFlag(v, flags, "instructionFile", "instruction-file", "INSTRUCTION_FILE")

	flags.String("input", "", "read inputs, one per line, from this file instead of stdin")
	mustBindFlag(v, flags, "input", "input", "INPUT")

	flags.String("format", defaults.Format, "the output format: 'text' or 'json'")
	mustBindFlag(v, flags, "format", "format", "FORMAT")

	flags.Bool("progress", defaults.Progress, "draw a progress bar on stderr")
	mustBindFlag(v, flags, "progress", "progress", "PROGRESS")

	flags.Bool("count-tokens", defaults.CountTokens, "count answer tokens with tiktoken")
	mustBindFlag(v, flags, "countTokens", "count-tokens", "COUNT_TOKENS")

	flags.Duration("request-timeout", defaults.RequestTimeout, "the timeout of a single request, 0 for none")
	mustBindFlag(v, flags, "requestTimeout", "request-timeout", "REQUEST_TIMEOUT")

	flags.String("log-level", defaults.LogLevel, "the log level: 'none', 'debug', 'info', 'warn' or 'error'")
	mustBindFlag(v, flags, "logLevel", "log-level", "LOG_LEVEL")
}
