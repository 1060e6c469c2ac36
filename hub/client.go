package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unibuild/controller/message"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 1 << 20
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	groups    map[string]bool
	worker    bool
	agentName string
}

// rpcFrame is one inbound request over the persistent connection.
type rpcFrame struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// trySend queues data for the write pump. A viewer that cannot keep up has
// the event dropped rather than stalling every other client.
func (c *Client) trySend(eventType string, data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("Warning: Dropping %s event for slow client %s", eventType, c.conn.RemoteAddr())
	}
}

func (c *Client) inGroup(group string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groups[group]
}

func (c *Client) isWorker() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worker
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Println("Error: Websocket read failed:", err)
			}
			return
		}

		var frame rpcFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("Warning: Ignoring malformed frame from %s: %s", c.conn.RemoteAddr(), err)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// dispatch routes one inbound RPC. Group membership and progress
// passthrough are handled here; everything that touches build state is
// delegated to the handler.
func (c *Client) dispatch(frame rpcFrame) {
	switch frame.Method {
	case "JoinBuildGroup":
		var p struct {
			BuildId string `json:"buildId"`
		}
		if !c.decode(frame, &p) {
			return
		}
		c.mu.Lock()
		c.groups[message.BuildGroup(p.BuildId)] = true
		c.mu.Unlock()

	case "LeaveBuildGroup":
		var p struct {
			BuildId string `json:"buildId"`
		}
		if !c.decode(frame, &p) {
			return
		}
		c.mu.Lock()
		delete(c.groups, message.BuildGroup(p.BuildId))
		c.mu.Unlock()

	case "RegisterAgent":
		var p struct {
			AgentName string `json:"agentName"`
		}
		if !c.decode(frame, &p) {
			return
		}
		c.mu.Lock()
		c.worker = true
		c.agentName = p.AgentName
		c.mu.Unlock()
		log.Printf("Agent %q registered from %s", p.AgentName, c.conn.RemoteAddr())
		c.hub.broadcastExcept(c, message.Envelope{
			Type:    message.TYPE_AGENT_CONNECTED,
			Payload: message.AgentConnected{AgentName: p.AgentName},
		})

	case "SendBuildProgress":
		// Pure broadcast passthrough, never persisted.
		var p message.BuildProgress
		if !c.decode(frame, &p) {
			return
		}
		c.hub.BroadcastAll(message.Envelope{
			Type:    message.TYPE_BUILD_PROGRESS,
			Payload: p,
		})

	case "UpdateBuildStatus":
		var p struct {
			BuildId      string `json:"buildId"`
			Status       string `json:"status"`
			ErrorMessage string `json:"errorMessage"`
		}
		if !c.decode(frame, &p) {
			return
		}
		if err := c.hub.handler.UpdateStatus(p.BuildId, p.Status, p.ErrorMessage); err != nil {
			log.Printf("Error: UpdateBuildStatus for build %s failed: %s", p.BuildId, err)
		}

	case "AddBuildLog":
		var p struct {
			BuildId string `json:"buildId"`
			Level   string `json:"level"`
			Message string `json:"message"`
			Stage   string `json:"stage"`
		}
		if !c.decode(frame, &p) {
			return
		}
		if err := c.hub.handler.AddLog(p.BuildId, p.Level, p.Message, p.Stage); err != nil {
			log.Printf("Error: AddBuildLog for build %s failed: %s", p.BuildId, err)
		}

	case "BuildCompleted":
		var p struct {
			BuildId    string `json:"buildId"`
			Success    bool   `json:"success"`
			OutputPath string `json:"outputPath"`
			BuildSize  int64  `json:"buildSize"`
		}
		if !c.decode(frame, &p) {
			return
		}
		if err := c.hub.handler.CompleteBuild(p.BuildId, p.Success, p.OutputPath, p.BuildSize); err != nil {
			log.Printf("Error: BuildCompleted for build %s failed: %s", p.BuildId, err)
		}

	case "UpdateBuildCommitHash":
		var p struct {
			BuildId    string `json:"buildId"`
			CommitHash string `json:"commitHash"`
		}
		if !c.decode(frame, &p) {
			return
		}
		if err := c.hub.handler.UpdateCommitHash(p.BuildId, p.CommitHash); err != nil {
			log.Printf("Error: UpdateBuildCommitHash for build %s failed: %s", p.BuildId, err)
		}

	default:
		log.Printf("Warning: Unknown method %q from %s", frame.Method, c.conn.RemoteAddr())
	}
}

func (c *Client) decode(frame rpcFrame, params interface{}) bool {
	if err := json.Unmarshal(frame.Params, params); err != nil {
		log.Printf("Warning: Malformed %s params from %s: %s", frame.Method, c.conn.RemoteAddr(), err)
		return false
	}
	return true
}
