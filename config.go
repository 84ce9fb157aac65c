package spindle

import (
	"fmt"

	"github.com/spf13/viper"
)

// configService wraps viper for process-wide configuration. Values the
// worker consults at dispatch/retry time (MAX_RETRIES, FOLLOW_REDIRECT,
// PROXY_SERVER) go through here so env changes apply without a restart of
// the workers.
type configService struct {
	v *viper.Viper
}

func newConfig() *configService {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	// A missing .env is fine; env vars still apply.
	_ = v.ReadInConfig()

	return &configService{v: v}
}

// Env retrieves a configuration value from environment variables.
func (c *configService) Env(envName string, defaultValue ...interface{}) interface{} {
	if value := c.v.Get(envName); value != nil {
		return value
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return nil
}

func (c *configService) EnvString(envName string, defaultValue ...string) string {
	if value := c.v.Get(envName); value != nil {
		return fmt.Sprint(value)
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// Add adds a configuration value to the application.
func (c *configService) Add(name string, configuration interface{}) {
	c.v.Set(name, configuration)
}

func (c *configService) GetString(path string, defaultValue ...string) string {
	if c.v.IsSet(path) {
		return c.v.GetString(path)
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *configService) GetInt(path string, defaultValue ...int) int {
	if c.v.IsSet(path) {
		return c.v.GetInt(path)
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return 0
}

func (c *configService) GetBool(path string, defaultValue ...bool) bool {
	if c.v.IsSet(path) {
		return c.v.GetBool(path)
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return false
}
