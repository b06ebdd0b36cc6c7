package storage

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/models"
)

// InitPostgres 初始化 PostgreSQL 连接并完成自动迁移
func InitPostgres(dsn string, maxIdleConns, maxOpenConns int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true, // 唯一约束冲突翻译为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(maxIdleConns)
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}

	// 自动迁移
	err = db.AutoMigrate(
		&models.Talk{},
		&models.TalkSequence{},
		&models.Message{},
		&models.MessageUserDelete{},
		&models.MessageMention{},
		&models.MessageForward{},
		&models.MessageRead{},
		&models.TalkSession{},
		&models.User{},
		&models.Contact{},
	)
	if err != nil {
		log.Printf("Failed to migrate models: %v", err)
		return nil, err
	}
	return db, nil
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(host, port, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
}
