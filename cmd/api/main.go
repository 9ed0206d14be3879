package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/config"
	"github.com/prenatal-care/appointment-booking/backend/internal/handler"
	"github.com/prenatal-care/appointment-booking/backend/internal/realtime"
	"github.com/prenatal-care/appointment-booking/backend/internal/repository"
	"github.com/prenatal-care/appointment-booking/backend/internal/seed"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	/**********************************************
	 * 创建 repository
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 确保数据库中存在初始医生
	 **********************************************/
	if err := ensureInitialDoctors(repo); err != nil {
		logger.Error("无法初始化医生数据", "error", err)
		return
	}

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	broker, err := realtime.NewBroker(conn, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	if err != nil {
		logger.Error("无法初始化消息通道", "error", err)
		return
	}
	defer broker.Close()

	/**********************************************
	 * 启动 websocket hub
	 **********************************************/
	hub := realtime.NewHub()

	consumeCtx, stopConsume := context.WithCancel(context.Background())
	defer stopConsume()

	// 所有 api 实例都会收到预约事件，各自推送给自己的 websocket 客户端
	go func() {
		if err := broker.ConsumeEvents(consumeCtx, hub); err != nil {
			logger.Error("预约事件消费已停止", "error", err)
		}
	}()

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	redisCtx, redisCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer redisCancel()

	// redis 只用来缓存医生信息，连不上时仍然可以直接读数据库
	if err := rdb.Ping(redisCtx).Err(); err != nil {
		logger.Warn("无法连接到 redis，医生信息将不使用缓存", "error", err)
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, repo, broker, rdb, hub)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")
	stopConsume()

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}

// ensureInitialDoctors 在医生表为空时插入默认医生。
// 多个实例同时启动时，后插入的实例会撞上 doctors_name_key，这种情况说明医生已经存在，不处理。
func ensureInitialDoctors(s seed.Store) error {
	seeded, err := seed.SeedDoctors(s)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "doctors_name_key":
				slog.Info("初始医生已由其他实例插入")
				return nil
			default:
				return err
			}
		default:
			return err
		}
	}

	if seeded > 0 {
		slog.Info("已插入初始医生", "count", seeded)
	}
	return nil
}
