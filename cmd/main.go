package main

import (
	"context"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DreamTraveler233/XinYu-IM-Backend/config"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/consumer"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/gateway"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/handlers"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/presence"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/repositories"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/routers"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/services"
	"github.com/DreamTraveler233/XinYu-IM-Backend/internal/storage"
	"github.com/DreamTraveler233/XinYu-IM-Backend/middleware/jwt"
	"github.com/DreamTraveler233/XinYu-IM-Backend/pkg/logger"
	pkgmiddlewares "github.com/DreamTraveler233/XinYu-IM-Backend/pkg/middlewares"
	"github.com/DreamTraveler233/XinYu-IM-Backend/pkg/mq"
	"github.com/DreamTraveler233/XinYu-IM-Backend/pkg/utils"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	zlog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer zlog.Close()

	// 初始化全局限流器
	pkgmiddlewares.InitGlobalLimiter(cfg.RateLimit.Burst, cfg.RateLimit.QPS)

	// 初始化全局 Worker Pool (协程池)
	// 用于事务提交后的异步推送，防止高并发下 Goroutine 暴涨
	utils.InitGlobalWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool := utils.GlobalWorkerPool

	// 初始化 PostgreSQL
	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	postgres, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		zlog.Fatal("postgres 初始化失败", zap.Error(err))
	}

	// 初始化 Redis
	redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		zlog.Fatal("redis 初始化失败", zap.Error(err))
	}

	// 初始化存储层与在线状态
	store := repositories.NewStore(postgres)
	pres := presence.NewRedisPresence(redisClient)

	// JWT
	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)

	// 初始化实时网关
	gw := gateway.NewGateway(tokens, pres, &cfg.Websocket, zlog)

	// 初始化 Kafka（不可用时降级为单节点推送）
	kafkaProducer, err := mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
	if err != nil {
		zlog.Warn("Kafka 生产者初始化失败，以单节点模式运行", zap.Error(err))
	} else {
		defer kafkaProducer.Close()
		gw.SetPublisher(cfg.Kafka.NodeID, kafkaProducer)

		pushConsumer := consumer.NewPushConsumer(gw, cfg.Kafka.NodeID, zlog)
		if err := consumer.StartConsumer(context.Background(), cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, pushConsumer); err != nil {
			zlog.Warn("Kafka 消费者启动失败，跨节点推送不可用", zap.Error(err))
		}
	}

	// 初始化服务层
	messageService := services.NewMessageService(store, gw, pool, zlog)
	talkService := services.NewTalkService(store, zlog)

	// 初始化处理器
	messageHandler := handlers.NewMessageHandler(messageService)
	talkHandler := handlers.NewTalkHandler(talkService)

	// 配置并创建 Gin 引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	routers.SetupRoutes(r, cfg, tokens, messageHandler, talkHandler, gw)

	zlog.Info("正在启动服务器", zap.Int("port", cfg.Server.Port))
	if err := r.Run(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
		zlog.Fatal("启动服务器失败", zap.Error(err))
	}
}
