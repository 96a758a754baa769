package server

import (
	"context"
	"encoding/json"
	"evlink/internal"
	"evlink/internal/config"
	"evlink/models"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

const (
	apiRemoteStart = "/api/remote-start"
	apiRemoteStop  = "/api/remote-stop"
	apiStatus      = "/api/status"
	apiStatusPoint = "/api/status/:id"
	apiLog         = "/api/log"
)

// Commands is the part of the central system reachable through the api
type Commands interface {
	RemoteStartTransaction(ctx context.Context, chargePointId string, connectorId int, idTag string) (*core.RemoteStartTransactionResponse, error)
	RemoteStopTransaction(ctx context.Context, chargePointId string, transactionId int) (*core.RemoteStopTransactionResponse, error)
	ChargePointStatus(chargePointId string) (*models.ChargePoint, error)
	ChargePoints() []*models.ChargePoint
	ReadLog() (interface{}, error)
}

type Api struct {
	conf       *config.Config
	httpServer *http.Server
	router     *httprouter.Router
	commands   Commands
	validate   *validator.Validate
	logger     internal.LogHandler
}

type RemoteStartCommand struct {
	ChargePointId string `json:"charge_point_id" validate:"required"`
	ConnectorId   int    `json:"connector_id" validate:"gte=0"`
	IdTag         string `json:"id_tag" validate:"required,max=20"`
}

type RemoteStopCommand struct {
	ChargePointId string `json:"charge_point_id"`
	TransactionId int    `json:"transaction_id" validate:"gt=0"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServerApi(conf *config.Config, commands Commands, logger internal.LogHandler) *Api {
	api := Api{
		conf:     conf,
		commands: commands,
		validate: validator.New(),
		logger:   logger,
	}
	api.router = httprouter.New()
	api.Register(api.router)
	api.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", conf.Api.BindIP, conf.Api.Port),
		Handler: api.router,
	}
	return &api
}

func (s *Api) Register(router *httprouter.Router) {
	router.POST(apiRemoteStart, s.handleRemoteStart)
	router.POST(apiRemoteStop, s.handleRemoteStop)
	router.GET(apiStatus, s.handleStatusList)
	router.GET(apiStatusPoint, s.handleStatus)
	router.GET(apiLog, s.handleLog)
}

func (s *Api) Handler() http.Handler {
	return s.router
}

func (s *Api) Start() error {
	s.logger.Debug(fmt.Sprintf("starting api server on %s", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Api) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Api) decode(w http.ResponseWriter, r *http.Request, command interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(command); err != nil {
		s.logger.Warn(fmt.Sprintf("api: error parsing command from %s: %s", r.RemoteAddr, err))
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := s.validate.Struct(command); err != nil {
		s.logger.Warn(fmt.Sprintf("api: invalid command from %s: %s", r.RemoteAddr, err))
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Api) handleRemoteStart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var command RemoteStartCommand
	if !s.decode(w, r, &command) {
		return
	}
	response, err := s.commands.RemoteStartTransaction(r.Context(), command.ChargePointId, command.ConnectorId, command.IdTag)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJson(w, http.StatusOK, response)
}

func (s *Api) handleRemoteStop(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var command RemoteStopCommand
	if !s.decode(w, r, &command) {
		return
	}
	response, err := s.commands.RemoteStopTransaction(r.Context(), command.ChargePointId, command.TransactionId)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJson(w, http.StatusOK, response)
}

func (s *Api) handleStatus(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	status, err := s.commands.ChargePointStatus(params.ByName("id"))
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJson(w, http.StatusOK, status)
}

func (s *Api) handleStatusList(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.writeJson(w, http.StatusOK, s.commands.ChargePoints())
}

func (s *Api) handleLog(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	data, err := s.commands.ReadLog()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJson(w, http.StatusOK, data)
}

// statusOf maps a command failure to the http status reported to the caller
func statusOf(err error) int {
	var callError *ocpp.Error
	switch {
	case errors.Is(err, ErrDeviceNotConnected):
		return http.StatusNotFound
	case errors.Is(err, ocpp.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &callError), errors.Is(err, ocpp.ErrConnectionClosed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Api) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJson(w, status, errorResponse{Error: err.Error()})
}

func (s *Api) writeJson(w http.ResponseWriter, status int, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("api: encoding response", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err = w.Write(data); err != nil {
		s.logger.Error("api: sending response", err)
	}
}
