package mongo

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrConfParamMissing = fmt.Errorf("configuration parameter missing")

// Config holds the connection parameters, read from the [mongo] table of the service
// config and overridden by MONGO_* environment variables.
type Config struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	DBName   string `toml:"db_name"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// ApplyEnv overrides fields with the non-empty MONGO_HOST, MONGO_PORT, MONGO_DB_NAME,
// MONGO_USER and MONGO_PASS variables.
func (c *Config) ApplyEnv() {
	for env, field := range map[string]*string{
		"MONGO_HOST":    &c.Host,
		"MONGO_PORT":    &c.Port,
		"MONGO_DB_NAME": &c.DBName,
		"MONGO_USER":    &c.User,
		"MONGO_PASS":    &c.Password,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

// Validate reports every required parameter that is missing. Credentials are optional
// but must be given together.
func (c *Config) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Port == "" {
		missing = append(missing, "port")
	}
	if c.DBName == "" {
		missing = append(missing, "db_name")
	}
	if (c.User == "") != (c.Password == "") {
		missing = append(missing, "user/password pair")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfParamMissing, strings.Join(missing, ", "))
	}
	return nil
}

// URI builds the connection string with the credentials escaped.
func (c *Config) URI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/",
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

func (c *Config) Options() *options.ClientOptions {
	return options.Client().ApplyURI(c.URI())
}

func (c Config) String() string {
	c.Password = strings.Repeat("*", len([]rune(c.Password)))
	return fmt.Sprintf("%#v", c)
}
