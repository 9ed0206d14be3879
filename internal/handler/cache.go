package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// 医生信息在初始化之后是只读的，因此可以放心缓存。号源和预约永远不缓存。
const allDoctorsCacheKey = "doctors:all"

func doctorCacheKey(id int64) string {
	return fmt.Sprintf("doctors:%d", id)
}

func (h *Handler) cacheGet(key string, v any) bool {
	if h.redisClient == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	data, err := h.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("读取缓存失败", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("缓存内容无法解析", "key", key, "error", err)
		return false
	}

	return true
}

func (h *Handler) cacheSet(key string, v any) {
	if h.redisClient == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("无法序列化缓存内容", "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationTimeout)*time.Second)
	defer cancel()

	ttl := time.Duration(h.config.Redis.DoctorCacheTTL) * time.Second
	if err := h.redisClient.Set(ctx, key, data, ttl).Err(); err != nil {
		slog.Warn("写入缓存失败", "key", key, "error", err)
	}
}

// getDoctor 优先从 redis 读取医生信息，缓存失效或出错时回退到数据库
func (h *Handler) getDoctor(id int64) (*domain.Doctor, error) {
	doctor := &domain.Doctor{}
	if h.cacheGet(doctorCacheKey(id), doctor) {
		return doctor, nil
	}

	doctor, err := h.repository.GetDoctorByID(id)
	if err != nil {
		return nil, err
	}

	h.cacheSet(doctorCacheKey(id), doctor)
	return doctor, nil
}

func (h *Handler) getAllDoctors() ([]*domain.Doctor, error) {
	doctors := make([]*domain.Doctor, 0)
	if h.cacheGet(allDoctorsCacheKey, &doctors) {
		return doctors, nil
	}

	doctors, err := h.repository.GetAllDoctors()
	if err != nil {
		return nil, err
	}

	h.cacheSet(allDoctorsCacheKey, doctors)
	return doctors, nil
}
