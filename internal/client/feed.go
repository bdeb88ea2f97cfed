package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/model"
)

// FeedConfig 피드 구독 설정
type FeedConfig struct {
	ServerURL      string // http(s)://host:port
	SessionID      string
	Token          string
	PingInterval   time.Duration
	ReconnectDelay time.Duration
}

// FeedClient 세션 변경 피드 + presence 구독자.
// 연결이 끊기면 ReconnectDelay 후 다시 구독한다.
type FeedClient struct {
	cfg      FeedConfig
	wsURL    string
	dialer   *websocket.Dialer
	announce func() model.Peer
	onEvent  func(feed.Event)
	onStatus func(connected bool)
}

// NewFeedClient FeedClient 생성
func NewFeedClient(cfg FeedConfig) (*FeedClient, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	wsURL, err := feedURL(cfg.ServerURL, cfg.SessionID)
	if err != nil {
		return nil, err
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	return &FeedClient{
		cfg:      cfg,
		wsURL:    wsURL,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		onEvent:  func(feed.Event) {},
		onStatus: func(bool) {},
	}, nil
}

// feedURL http://host -> ws://host/ws/calculator/<session>
func feedURL(serverURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	// 세션 ID의 '/'나 공백이 경로 구분자로 바뀌지 않도록 RawPath를 함께 둔다
	u.RawPath = u.EscapedPath() + "/ws/calculator/" + url.PathEscape(sessionID)
	u.Path += "/ws/calculator/" + sessionID
	return u.String(), nil
}

// OnEvent 수신 이벤트 콜백 (읽기 루프에서 순서대로 호출)
func (c *FeedClient) OnEvent(fn func(feed.Event)) {
	c.onEvent = fn
}

// OnStatus 연결 상태 콜백
func (c *FeedClient) OnStatus(fn func(connected bool)) {
	c.onStatus = fn
}

// Announce subscribed 수신 후 track 할 페이로드
func (c *FeedClient) Announce(fn func() model.Peer) {
	c.announce = fn
}

// Run ctx가 취소될 때까지 구독을 유지한다
func (c *FeedClient) Run(ctx context.Context) error {
	for {
		err := c.serve(ctx)
		c.onStatus(false)
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("⚠️ [Feed] Disconnected from %s: %v (retrying in %s)", c.wsURL, err, c.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// serve 한 번의 연결 수명
func (c *FeedClient) serve(ctx context.Context) error {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg feed.ClientMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(msg)
	}

	g, gctx := errgroup.WithContext(ctx)

	// 읽기 루프
	g.Go(func() error {
		for {
			var ev feed.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return err
			}
			if ev.Kind == feed.KindSubscribed {
				c.onStatus(true)
				if c.announce != nil {
					peer := c.announce()
					if err := send(feed.ClientMessage{Type: feed.ClientTrack, Peer: &peer}); err != nil {
						return err
					}
				}
			}
			if ev.Kind == feed.KindError {
				log.Printf("[Feed] Server error: %s", ev.Error)
			}
			c.onEvent(ev)
		}
	})

	// ping 루프 (presence TTL 연장). ctx 취소 시 연결을 닫아 읽기 루프를 끝낸다.
	g.Go(func() error {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				conn.Close()
				return gctx.Err()
			case <-ticker.C:
				if err := send(feed.ClientMessage{Type: feed.ClientPing}); err != nil {
					return err
				}
			}
		}
	})

	return g.Wait()
}
