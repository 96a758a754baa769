package server

import (
	"context"
	"evlink/internal"
	"evlink/internal/config"
	"evlink/metrics/counters"
	"evlink/models"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"evlink/telegram"
	"evlink/types"
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"
)

// defaultRequestTimeout bounds an api request when the configuration leaves it unset
const defaultRequestTimeout = 10 * time.Second

var ErrDeviceNotConnected = errors.New("device not connected")

type CentralSystem struct {
	conf        *config.Config
	server      *Server
	api         *Api
	logger      internal.LogHandler
	database    internal.Database
	registry    *Registry
	router      *ocpp.Router
	coreHandler *SystemHandler
}

// RegisterSystemHandler binds the calls a central system answers to handler
func RegisterSystemHandler(router *ocpp.Router, handler core.SystemHandler) {
	router.Handle(core.BootNotificationFeatureName, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return handler.OnBootNotification(id, request.(*core.BootNotificationRequest))
	})
	router.Handle(core.HeartbeatFeatureName, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return handler.OnHeartbeat(id, request.(*core.HeartbeatRequest))
	})
	router.Handle(core.StatusNotificationFeatureName, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return handler.OnStatusNotification(id, request.(*core.StatusNotificationRequest))
	})
	router.Handle(core.StartTransactionFeatureName, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return handler.OnStartTransaction(id, request.(*core.StartTransactionRequest))
	})
	router.Handle(core.StopTransactionFeatureName, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return handler.OnStopTransaction(id, request.(*core.StopTransactionRequest))
	})
}

func (cs *CentralSystem) OnConnect(ws *WebSocket) error {
	endpoint := ocpp.NewEndpoint(ws.ID(), ws, cs.router, cs.conf.Ocpp.CallTimeout, cs.logger)
	session := NewChargePointSession(ws.ID(), endpoint, ws)
	if previous := cs.registry.Add(session); previous != nil {
		cs.logger.FeatureEvent("Connect", ws.ID(), "replacing previous connection")
		previous.Close()
	}
	endpoint.Start()
	counters.ObserveConnections(cs.registry.Count())
	cs.logger.FeatureEvent("Connect", ws.ID(), "charge point connected")
	return nil
}

func (cs *CentralSystem) OnMessage(ws *WebSocket, data []byte) error {
	session, ok := cs.registry.Get(ws.ID())
	if !ok || session.socket != ws {
		return errors.Wrapf(ErrDeviceNotConnected, "stale connection of %s", ws.ID())
	}
	return session.endpoint.HandleMessage(data)
}

func (cs *CentralSystem) OnDisconnect(ws *WebSocket) {
	session, ok := cs.registry.Get(ws.ID())
	if !ok || session.socket != ws {
		return
	}
	if cs.registry.Remove(session) {
		session.Close()
		cs.logger.FeatureEvent("Disconnect", ws.ID(), "charge point disconnected")
	}
	counters.ObserveConnections(cs.registry.Count())
	counters.ObserveTransactions(cs.registry.ActiveTransactions())
}

func (cs *CentralSystem) getSession(chargePointId string) (*ChargePointSession, error) {
	session, ok := cs.registry.Get(chargePointId)
	if !ok {
		return nil, errors.Wrapf(ErrDeviceNotConnected, "charge point %s", chargePointId)
	}
	return session, nil
}

func (cs *CentralSystem) sendRequest(ctx context.Context, session *ChargePointSession, request ocpp.Request) (ocpp.Response, error) {
	timeout := cs.conf.Api.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	response, err := session.Endpoint().SendRequest(ctx, request)
	if err != nil {
		cs.logger.FeatureEvent(request.GetFeatureName(), session.ID(), fmt.Sprintf("request failed: %s", err))
		return nil, err
	}
	return response, nil
}

// RemoteStartTransaction asks the charge point to start charging; connectorId 0 leaves the choice to the device
func (cs *CentralSystem) RemoteStartTransaction(ctx context.Context, chargePointId string, connectorId int, idTag string) (*core.RemoteStartTransactionResponse, error) {
	session, err := cs.getSession(chargePointId)
	if err != nil {
		return nil, err
	}
	request := core.NewRemoteStartTransactionRequest(idTag)
	if connectorId > 0 {
		request.ConnectorId = &connectorId
	}
	response, err := cs.sendRequest(ctx, session, request)
	if err != nil {
		return nil, err
	}
	result := response.(*core.RemoteStartTransactionResponse)
	cs.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("id tag %s: %s", idTag, result.Status))
	return result, nil
}

// RemoteStopTransaction asks the charge point to stop; an empty chargePointId is resolved from the active transaction
func (cs *CentralSystem) RemoteStopTransaction(ctx context.Context, chargePointId string, transactionId int) (*core.RemoteStopTransactionResponse, error) {
	var session *ChargePointSession
	var err error
	if chargePointId == "" {
		var ok bool
		session, ok = cs.registry.FindByTransaction(transactionId)
		if !ok {
			return nil, errors.Wrapf(ErrDeviceNotConnected, "no charge point with transaction %d", transactionId)
		}
	} else {
		session, err = cs.getSession(chargePointId)
		if err != nil {
			return nil, err
		}
	}
	request := core.NewRemoteStopTransactionRequest(transactionId)
	response, err := cs.sendRequest(ctx, session, request)
	if err != nil {
		return nil, err
	}
	result := response.(*core.RemoteStopTransactionResponse)
	cs.logger.FeatureEvent(request.GetFeatureName(), session.ID(), fmt.Sprintf("transaction %d: %s", transactionId, result.Status))
	return result, nil
}

func (cs *CentralSystem) ChargePointStatus(chargePointId string) (*models.ChargePoint, error) {
	session, err := cs.getSession(chargePointId)
	if err != nil {
		return nil, err
	}
	return session.Snapshot(), nil
}

func (cs *CentralSystem) ChargePoints() []*models.ChargePoint {
	sessions := cs.registry.List()
	list := make([]*models.ChargePoint, 0, len(sessions))
	for _, session := range sessions {
		list = append(list, session.Snapshot())
	}
	return list
}

// ReadLog returns nil without error when no database is configured
func (cs *CentralSystem) ReadLog() (interface{}, error) {
	if cs.database == nil {
		return nil, nil
	}
	return cs.database.ReadLog()
}

func (cs *CentralSystem) Registry() *Registry {
	return cs.registry
}

// Start serves the api in the background and the websocket listener until it stops
func (cs *CentralSystem) Start() error {
	go func() {
		if err := cs.api.Start(); err != nil {
			cs.logger.Error("api server failed", err)
		}
	}()
	return cs.server.Start()
}

func (cs *CentralSystem) Shutdown(ctx context.Context) {
	if err := cs.api.Shutdown(ctx); err != nil {
		cs.logger.Error("api shutdown", err)
	}
	if err := cs.server.Shutdown(ctx); err != nil {
		cs.logger.Error("websocket server shutdown", err)
	}
	for _, session := range cs.registry.List() {
		if cs.registry.Remove(session) {
			session.Close()
		}
	}
}

// newCentralSystem wires the protocol engine without external services
func newCentralSystem(conf *config.Config, logger internal.LogHandler) *CentralSystem {
	cs := &CentralSystem{
		conf:     conf,
		logger:   logger,
		registry: NewRegistry(),
		router:   ocpp.NewRouter(core.Profile),
	}

	// system events handler
	cs.coreHandler = NewSystemHandler(cs.registry, conf.Ocpp.HeartbeatInterval)
	cs.coreHandler.SetLogger(logger)
	RegisterSystemHandler(cs.router, cs.coreHandler)

	// websocket listener
	cs.server = NewServer(conf, logger)
	cs.server.AddSupportedSupProtocol(types.SubProtocol16)
	cs.server.SetConnectionHandler(cs)

	// api server
	cs.api = NewServerApi(conf, cs, logger)
	return cs
}

func NewCentralSystem(conf *config.Config) (*CentralSystem, error) {
	var database internal.Database
	if conf.Mongo.Enabled {
		mongo, err := internal.NewMongoClient(conf)
		if err != nil {
			return nil, fmt.Errorf("mongodb setup failed: %s", err)
		}
		if mongo != nil {
			database = mongo
			log.Println("mongodb is configured and enabled")
		}
	} else {
		log.Println("database is disabled")
	}

	// logger with database for the message handling
	logService := internal.NewLogger()
	logService.SetDebugMode(conf.IsDebug)
	logService.SetDatabase(database)

	cs := newCentralSystem(conf, logService)
	cs.database = database

	if conf.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(conf.Telegram.ApiKey, conf.Telegram.ChatIds)
		if err != nil {
			return nil, fmt.Errorf("telegram bot setup failed: %s", err)
		}
		telegramBot.SetLogger(logService)
		telegramBot.Start()
		cs.coreHandler.AddEventListener(telegramBot)
		log.Println("telegram bot is configured and enabled")
	}

	return cs, nil
}

var _ ConnectionHandler = (*CentralSystem)(nil)
