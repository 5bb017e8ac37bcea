package webui

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hive/internal/types"
)

// streamConn is one outbound push stream. Writes are serialized; close is
// idempotent because both the read loop and teardown paths reach it.
type streamConn struct {
	ws        *websocket.Conn
	sessionID string

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (sc *streamConn) send(frame types.Frame) {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	_ = sc.ws.WriteJSON(frame)
}

func (sc *streamConn) close() {
	sc.closeOnce.Do(func() {
		_ = sc.ws.Close()
	})
}

// handleStream upgrades the request and attaches the stream to its session.
// A new stream for the same session replaces the old one.
func (s *Server) handleStream(c *gin.Context) {
	sessionID := c.Param("id")
	if _, found := s.controller.Store().Session(sessionID); !found {
		fail(c, http.StatusNotFound, "session not found")
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed for session %s: %v", sessionID, err)
		return
	}

	stream := &streamConn{ws: ws, sessionID: sessionID}

	s.streamMu.Lock()
	if existing, replaced := s.streams[sessionID]; replaced {
		existing.close()
	}
	s.streams[sessionID] = stream
	s.streamMu.Unlock()

	s.logger.Info("push stream attached for session %s", sessionID)
	stream.send(types.ConnectionTest{
		Type:      types.FrameConnectionTest,
		SessionID: sessionID,
		Message:   "connected",
	})

	// Consume (and discard) inbound frames until the peer goes away; no
	// outbound application messages are defined beyond establishment.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				s.detachStream(stream)
				return
			}
		}
	}()
}

func (s *Server) detachStream(stream *streamConn) {
	s.streamMu.Lock()
	if s.streams[stream.sessionID] == stream {
		delete(s.streams, stream.sessionID)
	}
	s.streamMu.Unlock()
	stream.close()
	s.logger.Info("push stream detached for session %s", stream.sessionID)
}

func (s *Server) closeStream(sessionID string) {
	s.streamMu.Lock()
	stream := s.streams[sessionID]
	delete(s.streams, sessionID)
	s.streamMu.Unlock()
	if stream != nil {
		stream.close()
	}
}

func (s *Server) closeAllStreams() {
	s.streamMu.Lock()
	streams := s.streams
	s.streams = make(map[string]*streamConn)
	s.streamMu.Unlock()
	for _, stream := range streams {
		stream.close()
	}
}
