package web

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// hubClient одно соединение со своей очередью и горутиной записи.
type hubClient struct {
	key  string
	conn *websocket.Conn
	send chan []byte
}

type hubMessage struct {
	key  string
	data []byte
}

// Hub рассылает события конвейера по websocket-соединениям сессии.
// Отправка никогда не ждёт медленного клиента: при переполненной очереди он отключается.
type Hub struct {
	clients    map[string]map[*websocket.Conn]*hubClient
	broadcast  chan hubMessage
	register   chan *hubClient
	unregister chan *hubClient
	done       chan struct{}
	mutex      sync.RWMutex
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*websocket.Conn]*hubClient),
		broadcast:  make(chan hubMessage, sendBuffer),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run обслуживает подключения до отмены ctx, затем закрывает их.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mutex.Lock()
			if h.clients[c.key] == nil {
				h.clients[c.key] = make(map[*websocket.Conn]*hubClient)
			}
			h.clients[c.key][c.conn] = c
			h.mutex.Unlock()

			go c.writePump(h.log)
			h.log.Info("websocket client connected. Total: %d", h.ClientCount())

		case c := <-h.unregister:
			h.remove(c.key, c.conn)
			h.log.Info("websocket client disconnected. Total: %d", h.ClientCount())

		case m := <-h.broadcast:
			h.mutex.RLock()
			var slow []*hubClient
			for _, c := range h.clients[m.key] {
				select {
				case c.send <- m.data:
				default:
					slow = append(slow, c)
				}
			}
			h.mutex.RUnlock()

			for _, c := range slow {
				h.log.Warning("websocket client is not reading, dropping it")
				h.remove(c.key, c.conn)
			}
		}
	}
}

// remove закрывает очередь и соединение; повторный вызов ничего не делает.
func (h *Hub) remove(key string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	c, ok := h.clients[key][conn]
	if !ok {
		return
	}
	delete(h.clients[key], conn)
	if len(h.clients[key]) == 0 {
		delete(h.clients, key)
	}
	close(c.send)
	conn.Close()
}

func (h *Hub) closeAll() {
	close(h.done)

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for key, conns := range h.clients {
		for conn, c := range conns {
			close(c.send)
			conn.Close()
		}
		delete(h.clients, key)
	}
}

func (h *Hub) Register(key string, conn *websocket.Conn) {
	c := &hubClient{key: key, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
	}
}

func (h *Hub) Unregister(key string, conn *websocket.Conn) {
	select {
	case h.unregister <- &hubClient{key: key, conn: conn}:
	case <-h.done:
	}
}

// Send доставляет событие всем вкладкам сессии key.
func (h *Hub) Send(key string, event entity.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal event %s: %v", event.Kind, err)
		return
	}

	select {
	case h.broadcast <- hubMessage{key: key, data: data}:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// writePump пишет очередь клиента в соединение и шлёт ping.
// Завершается, когда хаб закрывает очередь.
func (c *hubClient) writePump(log *logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error("send websocket message: %v", err)
				c.fail()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail()
				return
			}
		}
	}
}

// fail закрывает соединение, чтобы читатель заметил обрыв и снял регистрацию,
// и вычитывает очередь до её закрытия хабом.
func (c *hubClient) fail() {
	c.conn.Close()
	for range c.send {
	}
}
