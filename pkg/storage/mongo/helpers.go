package mongo

import (
	"context"
	"time"
)

var MongoTestConf = &Config{
	Host:   "localhost",
	Port:   "27018",
	DBName: "buddyfeed_test",
}

// StorageConnect is a helper function that establishes a connection to the predefined test Mongo instance.
// It returns a connected Storage object or an error if connection fails.
func StorageConnect() (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	db, err := New(ctx, MongoTestConf)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// RestoreDB drops the "posts" collection to reset the database state.
// WARNING: Use only in tests to avoid data loss.
func RestoreDB(db *Storage) error {
	return db.posts().Drop(context.Background())
}
