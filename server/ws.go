package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/xhad/paperqa/internal/types"
	"github.com/xhad/paperqa/pkg/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the frame exchanged on /ws. Clients send "index" (Content is a
// URL) and "ask" (Content is the question). The server answers with
// "status", "state", "indexed", "stream", "response" and "error".
type Message struct {
	Type       string      `json:"type"`
	Content    string      `json:"content"`
	DocumentID string      `json:"document_id,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// session is one websocket connection. gorilla connections allow a single
// concurrent writer, so all writes go through send.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex

	docMu   sync.Mutex
	current string
}

func (ss *session) send(msg Message) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.conn.WriteJSON(msg)
}

func (ss *session) setCurrent(id string) {
	ss.docMu.Lock()
	ss.current = id
	ss.docMu.Unlock()
}

func (ss *session) currentDoc() string {
	ss.docMu.Lock()
	defer ss.docMu.Unlock()
	return ss.current
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Requests in flight are cancelled when the client goes away.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ss := &session{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", "error", err)
			}
			cancel()
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(ss, errors.New("invalid message"))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, ss, msg)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, ss *session, msg Message) {
	switch msg.Type {
	case "index":
		s.wsIndex(ctx, ss, msg)
	case "ask":
		s.wsAsk(ctx, ss, msg)
	default:
		s.sendError(ss, fmt.Errorf("unknown message type %q", msg.Type))
	}
}

func (s *Server) wsIndex(ctx context.Context, ss *session, msg Message) {
	source := strings.TrimSpace(msg.Content)
	if !isRemote(source) {
		s.sendError(ss, errors.New("index needs an http(s) url"))
		return
	}
	ss.send(Message{Type: "status", Content: "Indexing " + source})

	h, err := s.pipeline.IndexDocument(ctx, source)
	if err != nil {
		s.sendError(ss, err)
		return
	}
	ss.setCurrent(h.ID)
	ss.send(Message{
		Type:       "indexed",
		Content:    fmt.Sprintf("Indexed %d sections", len(h.Sections)),
		DocumentID: h.ID,
		Data:       newDocumentResponse(h),
	})
}

func (s *Server) wsAsk(ctx context.Context, ss *session, msg Message) {
	id := msg.DocumentID
	if id == "" {
		id = ss.currentDoc()
	}
	h, ok := s.pipeline.Library().Get(id)
	if !ok {
		s.sendError(ss, errors.New("no indexed document; send an index message first"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	onState := func(st pipeline.State) {
		ss.send(Message{Type: "state", Content: st.String(), DocumentID: h.ID})
	}
	onChunk := func(chunk string) error {
		return ss.send(Message{Type: "stream", Content: chunk, DocumentID: h.ID})
	}

	result, err := s.pipeline.QueryStream(ctx, h, msg.Content, 0, onState, onChunk)
	if err != nil {
		s.sendError(ss, err)
		if result == nil {
			return
		}
	}
	ss.send(Message{
		Type:       "response",
		Content:    result.Answer,
		DocumentID: h.ID,
		Data:       result,
	})
}

func (s *Server) sendError(ss *session, err error) {
	body := errorBody{Error: err.Error(), Retryable: types.Retryable(err)}
	if kind := types.KindOf(err); kind != nil {
		body.Kind = kind.Error()
	}
	if err := ss.send(Message{Type: "error", Content: body.Error, Data: body}); err != nil {
		s.log.Debug("websocket send failed", "error", err)
	}
}
