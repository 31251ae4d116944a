package live

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan Event
}

// Handler はWebSocket接続を受け付けるhttp.Handlerを返す。
// allowedOriginが空でない場合、Originヘッダがそれと一致する接続のみ受け付ける。
// Originヘッダのない接続（ブラウザ以外）は受け付ける。
func (h *Hub) Handler(allowedOrigin string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowedOrigin == "" {
				return true
			}
			return sameOrigin(origin, allowedOrigin) || sameOrigin(origin, "http://"+r.Host)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("WebSocketへのアップグレードに失敗しました", slog.String("error", err.Error()))
			return
		}

		c := &client{
			id:   newClientID(),
			hub:  h,
			conn: conn,
			send: make(chan Event, sendBuffer),
		}
		select {
		case h.register <- c:
		case <-h.done:
			conn.Close()
			return
		case <-r.Context().Done():
			conn.Close()
			return
		}

		go c.writePump()
		go c.readPump()
	})
}

// readPump はクライアントからのメッセージを読み捨て、切断を検知する。
// 受信専用のチャネルのため、クライアントからの入力は扱わない。
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("WebSocketの読み取りに失敗しました", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump は送信チャネルのイベントをクライアントへ書き込み、定期的にpingを送る。
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.hub.logger.Warn("WebSocketへの書き込みに失敗しました", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func sameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Scheme == ub.Scheme && ua.Host == ub.Host
}
