package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/prenatal-care/appointment-booking/backend/internal/realtime"
)

// ServeEvents 把连接升级为 websocket。带 doctor 参数时只推送该医生的预约变更。
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	topic := realtime.TopicAll
	if doctorParam := r.URL.Query().Get("doctor"); doctorParam != "" {
		doctorID, err := strconv.ParseInt(doctorParam, 10, 64)
		if err != nil {
			h.badRequest(w, r, errors.New("医生ID无效"))
			return
		}
		topic = realtime.DoctorTopic(doctorID)
	}

	if err := h.hub.ServeWS(w, r, h.checkOrigin, topic); err != nil {
		// 升级失败时 upgrader 已经写回了错误响应
		slog.Warn("websocket 连接升级失败", "ip", r.RemoteAddr, "error", err)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.config.CORS.AllowedOrigins, "*") || slices.Contains(h.config.CORS.AllowedOrigins, origin)
}
