package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/prenatal-care/appointment-booking/backend/internal/config"
	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
	"github.com/prenatal-care/appointment-booking/backend/internal/realtime"
	"github.com/redis/go-redis/v9"
)

// Store 是 handler 用到的仓储操作，由 repository.Repository 实现
type Store interface {
	GetAllDoctors() ([]*domain.Doctor, error)
	GetDoctorByID(id int64) (*domain.Doctor, error)
	GetAllAppointments() ([]*domain.Appointment, error)
	GetAppointmentByID(id int64) (*domain.Appointment, error)
	GetAppointmentsOverlappingWindow(doctorID int64, windowStart, windowEnd time.Time) ([]domain.AppointmentInterval, error)
	CreateAppointment(a *domain.Appointment) error
	UpdateAppointment(a *domain.Appointment) error
	DeleteAppointment(id int64) error
}

// Publisher 把预约变更发布出去，由 realtime.Broker 实现
type Publisher interface {
	PublishEvent(event domain.AppointmentEvent) error
	PublishMail(msg domain.MailMessage) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  Store
	translator  ut.Translator
	publisher   Publisher
	redisClient *redis.Client
	hub         *realtime.Hub
	limiter     *ipRateLimiter

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo Store, publisher Publisher, rdb *redis.Client, hub *realtime.Hub) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		publisher:   publisher,
		redisClient: rdb,
		hub:         hub,
		limiter:     newIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, time.Duration(cfg.RateLimit.IdleTimeout)*time.Second),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(middleware.RealIP)
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.config.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	h.Mux.Route("/api", func(r chi.Router) {
		r.Get("/ws", h.ServeEvents)

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", h.GetAllDoctors)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.doctor)
				r.Get("/", h.GetDoctor)
				r.Get("/slots", h.GetDoctorSlots)
				r.With(h.rateLimit).Post("/conflicts", h.CheckConflict)
			})
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.GetAllAppointments)
			r.With(h.rateLimit).Post("/", h.CreateAppointment)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.appointment)
				r.Get("/", h.GetAppointment)
				r.With(h.rateLimit).Put("/", h.UpdateAppointment)
				r.With(h.rateLimit).Delete("/", h.DeleteAppointment)
			})
		})
	})
}
