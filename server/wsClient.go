package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/hostbridge/proto"
)

type WSClient struct {
	ClientMetadata
	conn         *websocket.Conn
	writeTimeout time.Duration
	wmu          sync.Mutex // gorilla allows one concurrent writer
}

func NewWSClient(conn *websocket.Conn, t Transport) *WSClient {
	return &WSClient{
		conn: conn,
		ClientMetadata: ClientMetadata{
			Id:          generateClientId("ws"),
			RemoteAddr:  conn.RemoteAddr().String(),
			ConnectedAt: time.Now(),
			Transport:   t,
		},
	}
}

func (c *WSClient) Send(resp proto.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	slog.Debug("Sent WebSocket response", "to", c.Id, "status", resp.Status, "size", len(data))
	return nil
}

func (c *WSClient) Meta() *ClientMetadata {
	return &c.ClientMetadata
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}
