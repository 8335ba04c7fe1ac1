package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Inbound frame types.
const (
	frameOpen   = "open"
	frameSend   = "send"
	frameSearch = "search"
	frameSelect = "select"
)

// Outbound frame types.
const (
	frameConversations = "conversations"
	frameThread        = "thread"
	frameSearchResults = "search_results"
	frameSendFailed    = "send_failed"
	frameContact       = "contact"
	frameError         = "error"
)

type inboundFrame struct {
	Type          string `json:"type"`
	CounterpartID string `json:"counterpart_id,omitempty"`
	Content       string `json:"content,omitempty"`
	Query         string `json:"query,omitempty"`
}

type outboundFrame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type threadView struct {
	CounterpartID string              `json:"counterpart_id"`
	Messages      []messaging.Message `json:"messages"`
}

type sendFailedView struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// frameFor renders a session update.
func frameFor(u messaging.Update) outboundFrame {
	switch u := u.(type) {
	case messaging.ConversationsUpdated:
		return outboundFrame{Type: frameConversations, Data: newConversationViews(u.Conversations)}
	case messaging.ThreadUpdated:
		msgs := u.Messages
		if msgs == nil {
			msgs = []messaging.Message{}
		}
		return outboundFrame{Type: frameThread, Data: threadView{CounterpartID: u.CounterpartID, Messages: msgs}}
	case messaging.SendFailed:
		f := outboundFrame{Type: frameSendFailed, Data: sendFailedView{ReceiverID: u.ReceiverID, Content: u.Content}}
		if u.Err != nil {
			f.Error = u.Err.Error()
		}
		return f
	}
	return outboundFrame{Type: frameError, Error: "unknown update"}
}

// wsClient is one browser connection and the session it drives.
type wsClient struct {
	srv  *Server
	conn *connection
	sess *messaging.Session
	log  zerolog.Logger
}

func (w *wsClient) push(f outboundFrame) {
	payload, err := json.Marshal(f)
	if err != nil {
		w.log.Error().Err(err).Str("frame", f.Type).Msg("encode frame failed")
		return
	}
	if err := w.conn.enqueue(payload); err != nil {
		w.log.Debug().Err(err).Str("frame", f.Type).Msg("frame dropped")
	}
}

func (w *wsClient) pushError(err error) {
	w.push(outboundFrame{Type: frameError, Error: err.Error()})
}

// serveWS upgrades the request and runs a messaging session on it. The token
// query parameter is optional; without it the session is anonymous. sellerId
// and productName start the contact-seller flow.
func (s *Server) serveWS(c *gin.Context) {
	var userID string
	if token := c.Query("token"); token != "" {
		claims, err := s.jwt.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID = claims.UserID
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	conn := newConnection(userID, ws)
	conn.start()
	client := &wsClient{
		srv:  s,
		conn: conn,
		sess: messaging.NewSession(ctx, s.svc, s.feed, userID),
		log:  s.log.With().Str("conn_id", conn.id).Str("user_id", userID).Logger(),
	}
	client.log.Info().Msg("websocket connected")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range client.sess.Updates() {
			client.push(frameFor(u))
		}
	}()

	defer func() {
		client.sess.Close()
		wg.Wait()
		conn.shutdown(websocket.CloseNormalClosure, "")
		client.log.Info().Msg("websocket disconnected")
	}()

	client.start(ctx, messaging.DeepLink{
		TargetID:    c.Query("sellerId"),
		ProductName: c.Query("productName"),
	})
	client.readLoop(ctx)
}

// start loads the conversation list and runs the contact flow when the
// connection came from a contact-seller link.
func (w *wsClient) start(ctx context.Context, link messaging.DeepLink) {
	opCtx, cancel := context.WithTimeout(ctx, w.srv.timeout)
	defer cancel()

	if err := w.sess.Load(opCtx); err != nil {
		w.log.Error().Err(err).Msg("load conversations failed")
		w.pushError(errors.New("could not load conversations"))
	}
	if link.TargetID == "" || w.sess.UserID() == "" {
		return
	}
	out, err := w.sess.ContactSeller(opCtx, link)
	if err != nil {
		w.pushError(err)
		return
	}
	w.push(outboundFrame{Type: frameContact, Data: newContactView(out)})
}

func (w *wsClient) readLoop(ctx context.Context) {
	ws := w.conn.ws
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f inboundFrame
		if err := ws.ReadJSON(&f); err != nil {
			// the frame was read whole; only its JSON is bad
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				w.pushError(errors.New("malformed frame"))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		w.handle(ctx, f)
	}
}

func (w *wsClient) handle(ctx context.Context, f inboundFrame) {
	ctx, cancel := context.WithTimeout(ctx, w.srv.timeout)
	defer cancel()

	switch f.Type {
	case frameOpen:
		if err := w.sess.Open(ctx, f.CounterpartID); err != nil {
			w.pushError(err)
		}
	case frameSelect:
		if w.sess.UserID() == "" {
			w.pushError(messaging.ErrNoCurrentUser)
			return
		}
		p, err := w.srv.svc.Profile(ctx, f.CounterpartID)
		if err != nil {
			w.pushError(err)
			return
		}
		if err := w.sess.Select(ctx, p); err != nil {
			w.pushError(err)
		}
	case frameSend:
		// failures arrive as a send_failed update
		_, _ = w.sess.Send(ctx, f.Content)
	case frameSearch:
		found, err := w.sess.Search(ctx, f.Query)
		if err != nil {
			w.pushError(err)
			return
		}
		w.push(outboundFrame{Type: frameSearchResults, Data: newProfileViews(found)})
	default:
		w.pushError(errors.New("unknown frame type " + f.Type))
	}
}
