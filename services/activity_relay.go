package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/DeusGroup/Leadr/internal/types/event"
	"github.com/DeusGroup/Leadr/internal/types/metric"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Consumers are read-only, so
	// anything beyond a pong is suspicious.
	maxMessageSize = 512
)

// PushProvider delivers achievement events to mobile devices. Injected from
// main.go when configured; nil means push is disabled.
type PushProvider interface {
	SendPush(ctx context.Context, userID uuid.UUID, title, body string, data map[string]any) error
}

// ActivityRelay fans activity events out to websocket subscribers, persists
// them to the activity feed, and (for achievements) pushes to devices.
//
// Publishing never blocks the caller: events go onto a buffered queue and are
// dropped with a log line when the queue is full. The metric write that
// produced the event is already durable by then.
type ActivityRelay struct {
	db           *pgxpool.Pool
	hub          *Hub
	pushProvider PushProvider

	workers  int
	jobQueue chan *event.Event
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewActivityRelay(db *pgxpool.Pool) *ActivityRelay {
	relay := &ActivityRelay{
		db:       db,
		hub:      NewHub(),
		workers:  5,
		jobQueue: make(chan *event.Event, 256),
		stopChan: make(chan struct{}),
	}

	go relay.hub.Run()
	relay.startWorkers()

	return relay
}

// SetPushProvider wires the real FCM provider from main.go.
func (r *ActivityRelay) SetPushProvider(provider PushProvider) {
	r.pushProvider = provider
}

func (r *ActivityRelay) Hub() *Hub {
	return r.hub
}

func (r *ActivityRelay) startWorkers() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

func (r *ActivityRelay) worker() {
	defer r.wg.Done()
	for {
		select {
		case ev := <-r.jobQueue:
			r.processEvent(ev)
		case <-r.stopChan:
			return
		}
	}
}

func (r *ActivityRelay) processEvent(ev *event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.persist(ctx, ev); err != nil {
		log.Printf("Failed to persist activity event for user %s: %v", ev.UserID, err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal activity event: %v", err)
		return
	}
	r.hub.Send(data)

	if ev.Type == event.TypeAchievementEarned && r.pushProvider != nil {
		title := "Achievement unlocked"
		body := fmt.Sprintf("%s earned %s", ev.DisplayName, *ev.AchievementName)
		err := r.pushProvider.SendPush(ctx, ev.UserID, title, body, map[string]any{
			"type":        string(ev.Type),
			"achievement": *ev.AchievementName,
		})
		if err != nil {
			log.Printf("Push failed for user %s: %v", ev.UserID, err)
		}
	}
}

func (r *ActivityRelay) persist(ctx context.Context, ev *event.Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO activity_logs (id, user_id, event_type, display_name, metric_type, value, achievement_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.New(), ev.UserID, ev.Type, ev.DisplayName, ev.MetricType, ev.Value, ev.AchievementName, ev.Timestamp)
	return err
}

func (r *ActivityRelay) publish(ev *event.Event) {
	select {
	case r.jobQueue <- ev:
	default:
		log.Printf("Activity queue full, dropping %s event for user %s", ev.Type, ev.UserID)
	}
}

// PublishMetricRecorded queues a metric_recorded event.
func (r *ActivityRelay) PublishMetricRecorded(userID uuid.UUID, displayName string, metricType metric.Type, value decimal.Decimal) {
	r.publish(&event.Event{
		Type:        event.TypeMetricRecorded,
		UserID:      userID,
		DisplayName: displayName,
		MetricType:  &metricType,
		Value:       &value,
		Timestamp:   time.Now(),
	})
}

// PublishAchievementEarned queues an achievement_earned event.
func (r *ActivityRelay) PublishAchievementEarned(userID uuid.UUID, displayName string, achievementName string) {
	r.publish(&event.Event{
		Type:            event.TypeAchievementEarned,
		UserID:          userID,
		DisplayName:     displayName,
		AchievementName: &achievementName,
		Timestamp:       time.Now(),
	})
}

// GetRecent returns the newest activity feed entries.
func (r *ActivityRelay) GetRecent(ctx context.Context, limit int) ([]*event.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT user_id, event_type, display_name, metric_type, value, achievement_name, created_at
		FROM activity_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity feed: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		ev := &event.Event{}
		err := rows.Scan(&ev.UserID, &ev.Type, &ev.DisplayName, &ev.MetricType, &ev.Value, &ev.AchievementName, &ev.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity events: %w", err)
	}

	if events == nil {
		events = []*event.Event{}
	}
	return events, nil
}

// Stop drains the workers and closes the hub.
func (r *ActivityRelay) Stop() {
	log.Println("Stopping activity relay...")
	close(r.stopChan)
	r.wg.Wait()
	r.hub.Stop()
	log.Println("Activity relay stopped")
}

// Hub tracks connected websocket subscribers. Clients aren't added to the map
// directly: they go through the Register channel so the Run() loop is the only
// goroutine touching the map.
type Hub struct {
	Clients    map[*Client]bool
	Broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Clients[client] = true
			log.Printf("[Activity] Subscriber connected. Count: %d", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)
				log.Printf("[Activity] Subscriber disconnected. Count: %d", len(h.Clients))
			}

		case message := <-h.Broadcast:
			for client := range h.Clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.Clients, client)
				}
			}

		case <-h.done:
			for client := range h.Clients {
				close(client.Send)
				delete(h.Clients, client)
			}
			return
		}
	}
}

// Send hands a message to the hub without blocking the caller.
func (h *Hub) Send(message []byte) {
	select {
	case h.Broadcast <- message:
	case <-h.done:
	default:
		log.Println("[Activity] Broadcast channel full, dropping message")
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 16)}
}

// ReadPump drains the connection. Subscribers don't send application
// messages; the loop only exists to process pongs and notice disconnects.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}

// WritePump handles messages going TO the subscriber.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
