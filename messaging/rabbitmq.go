package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ProgressionQueue receives one JSON event per progression state change
const ProgressionQueue = "progression.events"

const (
	EventVideoCompleted      = "video.completed"
	EventModuleUnlocked      = "module.unlocked"
	EventAssessmentSubmitted = "assessment.submitted"
)

// Event is the body published for a progression change
type Event struct {
	Type         string    `json:"type"`
	UserID       uint      `json:"user_id"`
	CourseID     uint      `json:"course_id"`
	ModuleID     uint      `json:"module_id,omitempty"`
	VideoID      uint      `json:"video_id,omitempty"`
	AssessmentID uint      `json:"assessment_id,omitempty"`
	Passed       *bool     `json:"passed,omitempty"`
	Percentage   float64   `json:"percentage,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex // one publisher at a time on the channel
}

// Rabbit is the shared publisher; nil when RABBITMQ_URL is empty.
var Rabbit *RabbitMQClient

func NewRabbitMQClient(url string) (*RabbitMQClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c := &RabbitMQClient{conn: conn, channel: channel}
	if _, err := c.DeclareQueue(ProgressionQueue); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return c, nil
}

// Connect installs the shared publisher when url is set.
func Connect(url string) error {
	if url == "" {
		return nil
	}
	c, err := NewRabbitMQClient(url)
	if err != nil {
		return err
	}
	Rabbit = c
	return nil
}

func (c *RabbitMQClient) Close() error {
	if c == nil {
		return nil
	}
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *RabbitMQClient) DeclareQueue(name string) (amqp.Queue, error) {
	return c.channel.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (c *RabbitMQClient) Publish(ctx context.Context, queueName string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel.PublishWithContext(
		ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// PublishEvent sends ev to the progression queue. Publishing is best
// effort: the state change is already committed, so failures are logged.
func PublishEvent(ev Event) {
	if Rabbit == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[EVENTS] marshal %s: %v", ev.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rabbit.Publish(ctx, ProgressionQueue, body); err != nil {
		log.Printf("[EVENTS] publish %s for user %d: %v", ev.Type, ev.UserID, err)
	}
}
