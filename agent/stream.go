package agent

import (
	"net/http"
	"time"

	"Vidra/codec"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	// The API-level bearer auth already gates this endpoint.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamHeader precedes each binary payload on the websocket.
type streamHeader struct {
	Width       int    `json:"w"`
	Height      int    `json:"h"`
	TimestampNs int64  `json:"ts"`
	KeyFrame    bool   `json:"key"`
	Rotation    int    `json:"rotation"`
	Size        int    `json:"size"`
	Codec       string `json:"codec"`
}

// handleStream upgrades to a websocket and relays encoded frames:
// a JSON header message followed by the binary access unit, per frame.
func (a *Agent) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debugf("stream upgrade failed: %v", err)
		return
	}
	id, frames := a.Subscribe()
	logger.Infof("stream subscriber %d connected from %s", id, c.ClientIP())
	defer func() {
		a.Unsubscribe(id)
		conn.Close()
		logger.Infof("stream subscriber %d disconnected", id)
	}()

	// Reads only matter for detecting the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case img, ok := <-frames:
			if !ok {
				return
			}
			if err := writeFrame(conn, img, a.cfg.Codec); err != nil {
				logger.Debugf("stream subscriber %d write: %v", id, err)
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, img codec.EncodedImage, codecName string) error {
	header := streamHeader{
		Width:       img.Width,
		Height:      img.Height,
		TimestampNs: img.TimestampNs,
		KeyFrame:    img.FrameType == codec.FrameKey,
		Rotation:    img.Rotation,
		Size:        len(img.Buffer),
		Codec:       codecName,
	}
	raw, err := json.Marshal(header)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, img.Buffer)
}
