package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

const (
	defaultHTTPTimeout      = 15 * time.Second
	defaultConnectTimeout   = 5 * time.Second
	defaultTLSHandshakeWait = 5 * time.Second
)

// Client is the remote document store. It speaks the daemon's REST API for
// sign-in, one-shot queries and mutations, and opens one WebSocket per live
// subscription. It satisfies both store.DocumentStore and
// session.IdentityProvider, so the console works against it exactly as it
// does against the embedded engine.
type Client struct {
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	token     string
	identity  *store.Identity
	listeners map[int]func(*store.Identity)
	nextID    int
}

// Connect builds a client for the daemon at addr (host:port, with or
// without an http:// prefix) and verifies it is reachable.
func Connect(addr string) (*Client, error) {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid store address: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimSuffix(u.String(), "/"),
		http: &http.Client{
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: defaultConnectTimeout}).DialContext,
				TLSHandshakeTimeout: defaultTLSHandshakeWait,
			},
			Timeout: defaultHTTPTimeout,
		},
		listeners: map[int]func(*store.Identity){},
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metrics", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store unreachable at %s: %w", addr, err)
	}
	resp.Body.Close()
	return c, nil
}

// SignIn authenticates against the daemon and caches the bearer token for
// subsequent calls.
func (c *Client) SignIn(ctx context.Context, email, password string) (store.Identity, string, error) {
	var out SignInResponse
	err := c.post(ctx, "/api/auth/sign-in", SignInRequest{Email: email, Password: password}, &out)
	if err != nil {
		return store.Identity{}, "", err
	}

	c.mu.Lock()
	c.token = out.Token
	id := out.Identity
	c.identity = &id
	fns := c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(&id)
	}
	return out.Identity, out.Token, nil
}

// SignOut drops the cached token. Tokens are stateless, so there is nothing
// to revoke server-side; they simply expire.
func (c *Client) SignOut(context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.identity = nil
	fns := c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(nil)
	}
	return nil
}

// SetToken resumes a prior session from a persisted token.
func (c *Client) SetToken(token string, id store.Identity) {
	c.mu.Lock()
	c.token = token
	c.identity = &id
	fns := c.listenersLocked()
	c.mu.Unlock()

	for _, fn := range fns {
		fn(&id)
	}
}

// OnAuthStateChange registers fn and invokes it immediately with the
// current state. The returned func detaches it.
func (c *Client) OnAuthStateChange(fn func(*store.Identity)) func() {
	c.mu.Lock()
	key := c.nextID
	c.nextID++
	c.listeners[key] = fn
	current := c.identity
	c.mu.Unlock()

	fn(current)
	return func() {
		c.mu.Lock()
		delete(c.listeners, key)
		c.mu.Unlock()
	}
}

func (c *Client) listenersLocked() []func(*store.Identity) {
	fns := make([]func(*store.Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	return fns
}

// GetAll evaluates a one-shot query on the daemon.
func (c *Client) GetAll(q store.Query) (store.Snapshot, error) {
	var snap store.Snapshot
	if err := c.post(context.Background(), "/api/query", q, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Create inserts a document and returns the daemon-assigned id.
func (c *Client) Create(collection string, fields map[string]any) (string, error) {
	var out CreateResponse
	err := c.post(context.Background(), "/api/docs/"+url.PathEscape(collection), fields, &out)
	return out.ID, err
}

// Update merges fields into a document.
func (c *Client) Update(collection, id string, fields map[string]any) error {
	path := "/api/docs/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
	return c.do(context.Background(), http.MethodPut, path, fields, nil)
}

// Delete removes a document.
func (c *Client) Delete(collection, id string) error {
	path := "/api/docs/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
	return c.do(context.Background(), http.MethodDelete, path, nil, nil)
}

// Watch opens a live subscription over its own WebSocket connection.
// Snapshots keep arriving until cancelled; any error frame is terminal.
func (c *Client) Watch(q store.Query, onSnapshot func(store.Snapshot), onError func(error)) (store.CancelFunc, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/subscribe?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe dial: %w", err)
	}

	subID := uuid.NewString()
	if err := conn.WriteJSON(ClientMessage{Type: MsgSubscribe, ID: subID, Query: q}); err != nil {
		conn.Close()
		return nil, err
	}

	w := &remoteWatch{conn: conn, id: subID}
	go w.readLoop(onSnapshot, onError)
	return w.cancel, nil
}

type remoteWatch struct {
	conn *websocket.Conn
	id   string

	mu   sync.Mutex
	done bool
}

func (w *remoteWatch) readLoop(onSnapshot func(store.Snapshot), onError func(error)) {
	for {
		var msg ServerMessage
		if err := w.conn.ReadJSON(&msg); err != nil {
			w.mu.Lock()
			done := w.done
			w.done = true
			w.mu.Unlock()
			if !done {
				onError(fmt.Errorf("%w: %v", store.ErrClosed, err))
			}
			return
		}
		if msg.ID != w.id {
			continue
		}
		switch msg.Type {
		case MsgSnapshot:
			w.mu.Lock()
			done := w.done
			w.mu.Unlock()
			if !done {
				onSnapshot(msg.Docs)
			}
		case MsgError:
			w.mu.Lock()
			done := w.done
			w.done = true
			w.mu.Unlock()
			w.conn.Close()
			if !done {
				onError(CodeError(msg.Code, msg.Message))
			}
			return
		}
	}
}

func (w *remoteWatch) cancel() {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.done = true
	w.mu.Unlock()

	if err := w.conn.WriteJSON(ClientMessage{Type: MsgUnsubscribe, ID: w.id}); err != nil {
		glog.V(1).Infof("unsubscribe write failed: %v", err)
	}
	w.conn.Close()
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var remote ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return CodeError(remote.Code, remote.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
