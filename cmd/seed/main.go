package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/config"
	"github.com/prenatal-care/appointment-booking/backend/internal/repository"
	"github.com/prenatal-care/appointment-booking/backend/internal/seed"
	"github.com/prenatal-care/appointment-booking/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var date string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入默认医生, 2: 插入随机预约)")
	flag.IntVar(&n, "n", 5, "每个医生要插入的预约数量")
	flag.StringVar(&date, "date", time.Now().Format(utils.DayLayout), "随机预约的日期 (YYYY-MM-DD)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
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

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		cnt, err := seed.SeedDoctors(repo)
		if err != nil {
			slog.Error("无法插入医生", slog.String("error", err.Error()))
			return
		}
		slog.Info("插入医生成功", slog.Int("count", cnt))
	case 2:
		if n <= 0 {
			slog.Error("请输入合法的预约数量")
			return
		}

		day, err := utils.ParseDay(date)
		if err != nil {
			slog.Error("请输入合法的日期", slog.String("error", err.Error()))
			return
		}

		cnt, err := seed.SeedAppointments(repo, day, n, cfg.Booking.SlotWidth)
		if err != nil {
			slog.Error("无法插入预约", slog.Int("inserted", cnt), slog.String("error", err.Error()))
			return
		}
		slog.Info("插入预约成功", slog.Int("count", cnt), slog.String("date", day.Format(utils.DayLayout)))
	default:
		slog.Error("不支持的操作", slog.Int("op", op))
	}
}
