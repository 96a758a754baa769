package chargepoint

import (
	"context"
	"evlink/internal"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"evlink/types"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const handshakeTimeout = 10 * time.Second

// Client is the simulated charge point: one websocket connection to the central system,
// the endpoint multiplexing calls over it and the session driving the state machine
type Client struct {
	settings   *Settings
	logger     internal.LogHandler
	conn       *websocket.Conn
	writeMutex sync.Mutex
	endpoint   *ocpp.Endpoint
	session    *Session
	closeOnce  sync.Once
}

func NewClient(settings *Settings, logger internal.LogHandler) *Client {
	return &Client{
		settings: settings,
		logger:   logger,
	}
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) Endpoint() *ocpp.Endpoint {
	return c.endpoint
}

// Write implements ocpp.Sender
func (c *Client) Write(data []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) address() (string, error) {
	base, err := url.Parse(strings.TrimRight(c.settings.CentralUrl, "/"))
	if err != nil {
		return "", errors.Wrap(err, "central url")
	}
	return base.JoinPath(c.settings.Id).String(), nil
}

// Connect dials the central system, retrying up to the configured number of attempts
func (c *Client) Connect(ctx context.Context) error {
	address, err := c.address()
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{
		Subprotocols:     []string{types.SubProtocol16},
		HandshakeTimeout: handshakeTimeout,
	}
	attempts := c.settings.DialAttempts
	if attempts == 0 {
		attempts = 1
	}
	var conn *websocket.Conn
	err = retry.Do(func() error {
		var dialErr error
		conn, _, dialErr = dialer.DialContext(ctx, address, nil)
		return dialErr
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn(fmt.Sprintf("[%s] dial attempt %d to %s failed: %s", c.settings.Id, n+1, address, err))
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "connecting to %s", address)
	}
	c.conn = conn

	router := ocpp.NewRouter(core.Profile)
	c.endpoint = ocpp.NewEndpoint(c.settings.Id, c, router, c.settings.CallTimeout, c.logger)
	c.session = NewSession(c.settings, c.endpoint, c.logger)
	RegisterHandler(router, c.session)
	c.logger.FeatureEvent("Connect", c.settings.Id, fmt.Sprintf("connected to %s", address))
	return nil
}

// RegisterHandler binds the calls a charge point answers to handler
func RegisterHandler(router *ocpp.Router, handler core.ChargePointHandler) {
	router.Handle(core.RemoteStartTransactionFeatureName, func(_ string, request ocpp.Request) (ocpp.Response, error) {
		return handler.OnRemoteStartTransaction(request.(*core.RemoteStartTransactionRequest))
	})
	router.Handle(core.RemoteStopTransactionFeatureName, func(_ string, request ocpp.Request) (ocpp.Response, error) {
		return handler.OnRemoteStopTransaction(request.(*core.RemoteStopTransactionRequest))
	})
}

// Run boots the charge point and processes frames until the connection ends or ctx is done
func (c *Client) Run(ctx context.Context) error {
	if c.conn == nil {
		return errors.New("not connected")
	}
	defer c.Close()
	c.endpoint.Start()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.endpoint.Done():
		}
	}()

	c.boot()
	go c.heartbeat()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "reading message")
		}
		if err = c.endpoint.HandleMessage(data); err != nil {
			c.logger.Error(fmt.Sprintf("[%s] closing connection", c.settings.Id), err)
			return err
		}
	}
}

func (c *Client) boot() {
	request := core.NewBootNotificationRequest(c.settings.Vendor, c.settings.Model)
	_, err := c.endpoint.Call(request,
		func(response ocpp.Response) {
			boot := response.(*core.BootNotificationResponse)
			c.logger.FeatureEvent(request.GetFeatureName(), c.settings.Id, fmt.Sprintf("registration %s", boot.Status))
		},
		func(err error) {
			c.logger.Error(fmt.Sprintf("[%s] boot notification", c.settings.Id), err)
		},
	)
	if err != nil {
		c.logger.Error(fmt.Sprintf("[%s] sending boot notification", c.settings.Id), err)
	}
	c.session.Post(func() {
		c.session.notifyStatus(c.session.Status())
	})
}

func (c *Client) heartbeat() {
	if c.settings.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.settings.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.endpoint.Done():
			return
		case <-ticker.C:
			_, err := c.endpoint.Call(core.NewHeartbeatRequest(), nil, func(err error) {
				c.logger.Warn(fmt.Sprintf("[%s] heartbeat: %s", c.settings.Id, err))
			})
			if err != nil {
				c.logger.Error(fmt.Sprintf("[%s] sending heartbeat", c.settings.Id), err)
			}
		}
	}
}

// Close abandons pending calls, cancels scheduled transitions and closes the socket
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.endpoint != nil {
			c.endpoint.Close()
		}
		if c.session != nil {
			c.session.Close()
		}
		if c.conn != nil {
			c.writeMutex.Lock()
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.writeMutex.Unlock()
			_ = c.conn.Close()
		}
	})
}
