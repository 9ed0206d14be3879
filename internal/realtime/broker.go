package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "appointment_events"
	MailQueue      = "email_queue"
)

// Broker 负责把预约事件和邮件消息发布到 rabbitmq
type Broker struct {
	conn           *amqp.Connection
	ch             *amqp.Channel
	publishTimeout time.Duration
}

func NewBroker(conn *amqp.Connection, publishTimeout time.Duration) (*Broker, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	// 每个 api 实例都会绑定自己的队列，所以这里使用 fanout 交换机
	if err := ch.ExchangeDeclare(
		EventsExchange, // 交换机名称
		"fanout",       // 类型
		true,           // 是否持久化
		false,          // 是否自动删除
		false,          // 是否内部使用
		false,          // 是否不等待
		nil,            // 额外参数
	); err != nil {
		ch.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		MailQueue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		return nil, err
	}

	return &Broker{
		conn:           conn,
		ch:             ch,
		publishTimeout: publishTimeout,
	}, nil
}

func (b *Broker) Close() error {
	return b.ch.Close()
}

func (b *Broker) publish(exchange, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
	defer cancel()

	return b.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (b *Broker) PublishEvent(event domain.AppointmentEvent) error {
	return b.publish(EventsExchange, "", event)
}

func (b *Broker) PublishMail(msg domain.MailMessage) error {
	return b.publish("", MailQueue, msg)
}

// ConsumeEvents 为当前实例声明一个独占队列并绑定到事件交换机，
// 把收到的事件转发给 hub，直到 ctx 被取消或通道关闭
func (b *Broker) ConsumeEvents(ctx context.Context, hub *Hub) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		"",    // 由 rabbitmq 生成队列名称
		false, // 不持久化
		true,  // 没有消费者时自动删除
		true,  // 独占
		false,
		nil,
	)
	if err != nil {
		return err
	}

	if err := ch.QueueBind(q.Name, "", EventsExchange, false, nil); err != nil {
		return err
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}

			var event domain.AppointmentEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				slog.Error("预约事件反序列化失败", "error", err)
				continue
			}

			hub.Publish(event)
		}
	}
}
