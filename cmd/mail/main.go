package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/config"
	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
	"github.com/prenatal-care/appointment-booking/backend/internal/realtime"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
)

type mailTemplate struct {
	file    string
	subject string
}

var mailTemplates = map[string]mailTemplate{
	domain.MailTypeAppointmentBooked:      {file: "./templates/appointment_booked.html", subject: "预约成功"},
	domain.MailTypeAppointmentRescheduled: {file: "./templates/appointment_rescheduled.html", subject: "预约已变更"},
	domain.MailTypeAppointmentCancelled:   {file: "./templates/appointment_cancelled.html", subject: "预约已取消"},
}

// templateData 是渲染邮件模板时使用的数据
type templateData struct {
	domain.AppointmentMailData
	ClinicName string
}

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 解析邮件模板
	 **********************************************/
	templates := make(map[string]*template.Template, len(mailTemplates))
	for mailType, mt := range mailTemplates {
		tmpl, err := template.ParseFiles(mt.file)
		if err != nil {
			logger.Error("无法解析邮件模板", slog.String("file", mt.file), slog.String("error", err.Error()))
			return
		}
		templates[mailType] = tmpl
	}

	/**********************************************
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
	)
	if err != nil {
		logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	// 验证邮件客户端是否连接成功
	clientDialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer cancel()
	if err := client.DialWithContext(clientDialCtx); err != nil {
		logger.Error("无法连接到邮件服务器", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// 创建通道
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// 声明队列，参数需要和 api 端保持一致
	q, err := ch.QueueDeclare(
		realtime.MailQueue, // 队列名称
		true,               // 是否持久化
		false,              // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
		false,              // 是否独占
		false,              // 是否不等待
		nil,                // 额外参数
	)
	if err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 消费消息
	msgs, err := ch.Consume(
		q.Name, // 队列
		"",     // 消费者标识，由 RabbitMQ 自动分配
		false,  // 手动确认
		false,  // 是否独占队列
		false,  // RabbitMQ 不支持 noLocal
		false,  // 是否不等待
		nil,    // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 用于关闭 goroutine 的上下文
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}
				logger.Info("收到消息", slog.String("message", string(msg.Body)))

				m, err := buildMail(cfg, templates, msg.Body)
				if err != nil {
					logger.Error("无法构建邮件", slog.String("error", err.Error()))
					_ = msg.Nack(false, false)
					continue
				}

				// 发送邮件
				if err := client.DialAndSend(m); err != nil {
					logger.Error("邮件发送失败", slog.String("error", err.Error()))
					_ = msg.Nack(false, true) // 将消息重新入队
					continue
				}

				// 确认消息
				_ = msg.Ack(false)
			}
		}
	}()

	// 等待 CTRL+C 信号
	logger.Info("等待消息...（按 CTRL+C 退出）")
	<-sigChan

	// 优雅退出
	slog.Info("正在关闭 mail worker...")
	cancel()
	wg.Wait() // 等待所有 goroutine 完成
	slog.Info("mail worker 已成功关闭")
}

// buildMail 把队列中的消息渲染成邮件，返回的错误都不值得重试
func buildMail(cfg *config.Config, templates map[string]*template.Template, body []byte) (*mail.Msg, error) {
	var raw struct {
		Type string          `json:"type"`
		To   string          `json:"to"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("邮件信息反序列化失败: %w", err)
	}

	tmpl, ok := templates[raw.Type]
	if !ok {
		return nil, fmt.Errorf("不支持的邮件类型: %s", raw.Type)
	}

	data := templateData{ClinicName: cfg.Email.ClinicName}
	if err := json.Unmarshal(raw.Data, &data.AppointmentMailData); err != nil {
		return nil, fmt.Errorf("邮件数据反序列化失败: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(cfg.Email.SMTP.Username); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := m.To(raw.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}
	if err := m.SetBodyHTMLTemplate(tmpl, data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	m.Subject(fmt.Sprintf("%s - %s", cfg.Email.ClinicName, mailTemplates[raw.Type].subject))

	return m, nil
}
