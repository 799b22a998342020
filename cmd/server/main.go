package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"buddyfeed/pkg/api"
	"buddyfeed/pkg/identity"
	"buddyfeed/pkg/models"
	"buddyfeed/pkg/storage"
	"buddyfeed/pkg/storage/memdb"
	"buddyfeed/pkg/storage/mongo"
	"buddyfeed/pkg/storage/postgres"
)

type Config struct {
	ServiceName string `toml:"serviceName"`

	HTTPAddr string `toml:"httpAddr"`
	LogLevel string `toml:"logLevel"`

	Storage    string `toml:"storage"`
	PostgresDB string `toml:"postgresDB"`

	Directory           string `toml:"directory"`
	DirectoryURL        string `toml:"directoryURL"`
	DirectoryTimeoutSec int    `toml:"directoryTimeoutSec"`

	KafkaAddr  string `toml:"kafkaAddr"`
	KafkaTopic string `toml:"kafkaTopic"`
	KafkaBatch int    `toml:"kafkaBatch"`

	Mongo mongo.Config `toml:"mongo"`
}

const devUserID = "dev-user"

func main() {
	var (
		configPath  string
		httpAddr    string
		logLevel    string
		storageKind string
		dev         bool
		kafkaAddr   string
		kafkaTopic  string
	)

	flag.StringVar(&configPath, "config", "cmd/server/config.toml", "Path to TOML config file")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.StringVar(&storageKind, "storage", "", "Content store: mongo, postgres, memory.")
	flag.BoolVar(&dev, "dev", false, "Run the server in development mode with in-memory DB and users.")
	flag.StringVar(&kafkaAddr, "kafka", "", "Kafka server address in the form 'host:port'.")
	flag.StringVar(&kafkaTopic, "topic", "", "Kafka topic.")
	flag.Parse()

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Fatalf("[server] failed to load config file %s: %v", configPath, err)
	}

	// Override config with flags if set
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if storageKind != "" {
		cfg.Storage = storageKind
	}
	if kafkaAddr != "" {
		cfg.KafkaAddr = kafkaAddr
	}
	if kafkaTopic != "" {
		cfg.KafkaTopic = kafkaTopic
	}
	if dev {
		cfg.Storage = "memory"
		cfg.Directory = "memory"
	}

	if !strings.Contains(cfg.HTTPAddr, ":") {
		log.Warn("[server] use ':' before port number, e.g. ':8080'")
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("[server] unknown log level %q, keeping %s", cfg.LogLevel, log.GetLevel())
	}
	cfg.Mongo.ApplyEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, mongoDB, err := openStorage(ctx, &cfg)
	if err != nil {
		log.Fatalf("[server] failed to open content store: %v", err)
	}
	defer db.Close()

	dir, closeDir, err := openDirectory(ctx, &cfg, mongoDB)
	if err != nil {
		log.Fatalf("[server] failed to open user directory: %v", err)
	}
	defer closeDir()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if !dev {
			log.Fatal("[server] JWT_SECRET is not set")
		}
		secret = "dev-secret"
	}
	auth := identity.NewJWTVerifier(secret)
	auth.Users = dir

	if dev {
		token, err := auth.Issue(devUserID)
		if err != nil {
			log.Fatalf("[server] failed to issue development token: %v", err)
		}
		log.Infof("[server] development token for %s: %s", devUserID, token)
	}

	var kafkaWriter *kafka.Writer
	if cfg.KafkaAddr != "" && cfg.KafkaTopic != "" {
		kafkaWriter = &kafka.Writer{
			Addr:      kafka.TCP(cfg.KafkaAddr),
			Topic:     cfg.KafkaTopic,
			BatchSize: cfg.KafkaBatch,
		}
		defer kafkaWriter.Close()

		err := createTopic(kafkaWriter.Addr.String(), kafkaWriter.Topic)
		if err != nil {
			log.Warnf("[server] failed to create Kafka topic: %v", err)
		}
	} else {
		log.Warnf("[server] kafka was not configured, logs will not be sent to Kafka")
	}

	deps := api.Deps{
		Storage:   db,
		Directory: dir,
		Resolver:  auth,
		Issuer:    auth,
	}
	if kafkaWriter != nil {
		deps.LogWriter = kafkaWriter
	}
	// The remote directory owns its users; accounts are served here only for local ones.
	if accounts, ok := dir.(identity.Accounts); ok {
		deps.Accounts = accounts
	} else {
		log.Info("[server] user directory is remote, account routes are disabled")
	}
	api := api.New(cfg.ServiceName, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("[server] starting on %v", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
			return
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}
}

// openStorage connects the configured content store. The Mongo database is returned as
// well so the user directory can share the connection.
func openStorage(ctx context.Context, cfg *Config) (storage.Storage, *mongodrv.Database, error) {
	switch cfg.Storage {
	case "memory":
		log.Info("[server] running with in-memory content store")
		return memdb.New(), nil, nil

	case "postgres":
		conf := postgres.Config{
			User:     "postgres",
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     os.Getenv("POSTGRES_PORT"),
			DBName:   cfg.PostgresDB,
		}
		if !conf.IsValid() {
			return nil, nil, fmt.Errorf("invalid postgres config: %s", conf)
		}
		db, err := postgres.New(ctx, conf.ConString())
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Infof("[server] connected to postgres: %s", conf)
		return db, nil, nil

	case "mongo", "":
		if err := cfg.Mongo.Validate(); err != nil {
			return nil, nil, err
		}
		db, err := mongo.New(ctx, &cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Infof("[server] connected to mongo: %s", cfg.Mongo)
		return db, db.Database(), nil
	}

	return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}

// openDirectory builds the configured user directory. The returned func releases the
// connection the directory opened itself, if any.
func openDirectory(ctx context.Context, cfg *Config, mongoDB *mongodrv.Database) (identity.Directory, func(), error) {
	noop := func() {}

	switch cfg.Directory {
	case "memory":
		log.Info("[server] running with in-memory user directory")
		return identity.NewMemDirectory(models.PublicProfile{
			ID:        devUserID,
			FirstName: "Dev",
			LastName:  "User",
		}), noop, nil

	case "http":
		if cfg.DirectoryURL == "" {
			return nil, nil, fmt.Errorf("directoryURL is not set")
		}
		timeout := time.Duration(cfg.DirectoryTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		return identity.NewHTTPDirectory(cfg.DirectoryURL, timeout), noop, nil

	case "mongo", "":
		closeFn := noop
		if mongoDB == nil {
			if err := cfg.Mongo.Validate(); err != nil {
				return nil, nil, err
			}
			client, err := mongodrv.Connect(ctx, cfg.Mongo.Options())
			if err != nil {
				return nil, nil, err
			}
			closeFn = func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(ctx); err != nil {
					log.Errorf("[server] failed to disconnect user directory: %v", err)
				}
			}
			mongoDB = client.Database(cfg.Mongo.DBName)
		}
		dir := identity.NewMongoDirectory(mongoDB)
		if err := dir.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return dir, closeFn, nil
	}

	return nil, nil, fmt.Errorf("unknown directory %q", cfg.Directory)
}

func createTopic(broker, topic string) error {
	conn, err := kafka.DialContext(context.Background(), "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
