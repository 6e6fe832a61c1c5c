package db

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/sentra-ai/knowledge-backend/config"
)

var (
	once sync.Once
	db   *gorm.DB
)

// GetSharedConnection returns the process-wide database connection, opening
// it on first use.
func GetSharedConnection() *gorm.DB {
	once.Do(func() {
		cfg := config.Config.Database
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=%s",
			cfg.Host,
			cfg.Username,
			cfg.Password,
			cfg.Name,
			cfg.Port,
			cfg.TimeZone,
		)
		var err error
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		}), &gorm.Config{
			QueryFields: true,
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			},
		})
		if err != nil {
			log.Fatal(err.Error())
		}

		sqlDB, err := db.DB()
		if err != nil {
			log.Fatal(err.Error())
		}
		sqlDB.SetMaxIdleConns(cfg.Pool.IdleConnections)
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxConnections)
		if cfg.Pool.ConnLifeTime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.Pool.ConnLifeTime)
		} else {
			sqlDB.SetConnMaxLifetime(30 * time.Minute)
		}
	})
	return db
}

// Close closes the underlying sql.DB of a gorm connection.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
