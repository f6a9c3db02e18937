package server

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mbocsi/hostbridge/proto"
)

type TCPClient struct {
	ClientMetadata
	conn         net.Conn
	writeTimeout time.Duration
	wmu          sync.Mutex
}

func NewTCPClient(conn net.Conn, t Transport) *TCPClient {
	return &TCPClient{
		conn: conn,
		ClientMetadata: ClientMetadata{
			Id:          generateClientId("tcp"),
			RemoteAddr:  conn.RemoteAddr().String(),
			ConnectedAt: time.Now(),
			Transport:   t,
		},
	}
}

func (c *TCPClient) Send(resp proto.Response) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	err := proto.WriteMessage(c.conn, resp)
	if err != nil {
		return err
	}
	slog.Debug("Sent response", "to", c.Id, "status", resp.Status)
	return nil
}

func (c *TCPClient) Meta() *ClientMetadata {
	return &c.ClientMetadata
}

func (c *TCPClient) Close() error {
	return c.conn.Close()
}
