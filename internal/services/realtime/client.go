// services/realtime/client.go
package realtime

import "github.com/gorilla/websocket"

type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	UserID int
	Admin  bool
}

func NewClient(conn *websocket.Conn, userID int, admin bool) *Client {
	return &Client{
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: userID,
		Admin:  admin,
	}
}
