package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"whatsapp-bridge/internal/domain"
	"whatsapp-bridge/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"

	contentTypeJSON = "application/json"
	contentTypeXML  = "application/xml"

	defaultArchiveLimit = 50
	maxArchiveLimit     = 200
)

// BridgeService is the use case surface the HTTP layer depends on.
type BridgeService interface {
	HandleInbound(ctx context.Context, in domain.InboundMessage) (usecase.Reply, error)
	Conversation(userKey string) []domain.Turn
	ClearConversation(userKey string)
	ArchivedConversation(ctx context.Context, userKey string, limit int) (domain.ArchiveMeta, []domain.ArchivedTurn, error)
	Status() usecase.Status
}

// Info is static service metadata reported by the health endpoints.
type Info struct {
	Service         string
	Version         string
	AgentBackendURL string
}

type Handler struct {
	bridge BridgeService
	info   Info
	logger *slog.Logger
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type rootResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Version          string `json:"version"`
	TwilioConfigured bool   `json:"twilio_configured"`
	AgentBackendURL  string `json:"agent_backend_url"`
}

type healthChecks struct {
	AgentBackendURL     string `json:"agent_backend_url"`
	TwilioConfigured    string `json:"twilio_configured"`
	ActiveConversations int    `json:"active_conversations"`
	ArchiveEnabled      bool   `json:"archive_enabled"`
}

type healthResponse struct {
	Status string       `json:"status"`
	Checks healthChecks `json:"checks"`
}

type clearResponse struct {
	Status      string `json:"status"`
	PhoneNumber string `json:"phone_number"`
}

type conversationResponse struct {
	PhoneNumber  string        `json:"phone_number"`
	MessageCount int           `json:"message_count"`
	Messages     []domain.Turn `json:"messages"`
}

type archiveResponse struct {
	PhoneNumber string                `json:"phone_number"`
	Summary     domain.ArchiveMeta    `json:"summary"`
	Turns       []domain.ArchivedTurn `json:"turns"`
}

// result is a transport-neutral response shared by the Lambda and echo
// adapters.
type result struct {
	status      int
	contentType string
	body        []byte
}

func NewHandler(bridge BridgeService, info Info, logger *slog.Logger) (*Handler, error) {
	if bridge == nil {
		return nil, errors.New("handler: bridge must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		bridge: bridge,
		info:   info,
		logger: logger.With(slog.String("service", "handler")),
	}, nil
}

// Handle is the API Gateway proxy entry point.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	cid := correlationID(event.Headers)
	log := h.logger.With(slog.String("correlation_id", cid))

	var res result
	r, phone := matchRoute(event.HTTPMethod, event.Path)
	switch r {
	case routeRoot:
		res = h.root()
	case routeHealth:
		res = h.health()
	case routeWebhook:
		form, err := parseFormBody(event.Body, event.IsBase64Encoded)
		if err != nil {
			log.Warn("webhook form could not be parsed", slog.Any("error", err))
			res = twimlResult(usecase.MsgGenericApology)
			break
		}
		res = h.webhook(ctx, log, form)
	case routeClear:
		res = h.clear(log, phone)
	case routeConversation:
		res = h.conversation(phone)
	case routeArchive:
		res = h.archive(ctx, log, phone, event.QueryStringParameters["limit"])
	default:
		res = jsonResult(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"})
	}

	return events.APIGatewayProxyResponse{
		StatusCode: res.status,
		Headers: map[string]string{
			"Content-Type":    res.contentType,
			correlationHeader: cid,
		},
		Body: string(res.body),
	}, nil
}

func (h *Handler) root() result {
	st := h.bridge.Status()
	return jsonResult(http.StatusOK, rootResponse{
		Status:           "healthy",
		Service:          h.info.Service,
		Version:          h.info.Version,
		TwilioConfigured: st.ChannelConfigured,
		AgentBackendURL:  h.info.AgentBackendURL,
	})
}

func (h *Handler) health() result {
	st := h.bridge.Status()
	configured := "no"
	if st.ChannelConfigured {
		configured = "yes"
	}
	return jsonResult(http.StatusOK, healthResponse{
		Status: "healthy",
		Checks: healthChecks{
			AgentBackendURL:     h.info.AgentBackendURL,
			TwilioConfigured:    configured,
			ActiveConversations: st.ActiveConversations,
			ArchiveEnabled:      st.ArchiveEnabled,
		},
	})
}

func (h *Handler) clear(log *slog.Logger, phone string) result {
	if strings.TrimSpace(phone) == "" {
		return jsonResult(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "missing_phone_number"})
	}
	h.bridge.ClearConversation(phone)
	log.Info("conversation cleared by admin")
	return jsonResult(http.StatusOK, clearResponse{Status: "cleared", PhoneNumber: phone})
}

func (h *Handler) conversation(phone string) result {
	turns := h.bridge.Conversation(phone)
	if turns == nil {
		turns = []domain.Turn{}
	}
	return jsonResult(http.StatusOK, conversationResponse{
		PhoneNumber:  phone,
		MessageCount: len(turns),
		Messages:     turns,
	})
}

func (h *Handler) archive(ctx context.Context, log *slog.Logger, phone, rawLimit string) result {
	limit := defaultArchiveLimit
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 {
			return jsonResult(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_limit"})
		}
		limit = min(n, maxArchiveLimit)
	}

	meta, turns, err := h.bridge.ArchivedConversation(ctx, phone, limit)
	if err != nil {
		return errorResult(log, err)
	}
	if turns == nil {
		turns = []domain.ArchivedTurn{}
	}
	return jsonResult(http.StatusOK, archiveResponse{PhoneNumber: phone, Summary: meta, Turns: turns})
}

func errorResult(log *slog.Logger, err error) result {
	code, reason := logFailure(log, err)
	return jsonResult(statusFor(code), errorResponse{Error: string(code), Reason: reason})
}

func logFailure(log *slog.Logger, err error) (usecase.ErrorCode, string) {
	code, reason := usecase.Classify(err)
	log.Error("request failed",
		slog.String("code", string(code)),
		slog.String("reason", reason),
		slog.Any("error", err),
	)
	return code, reason
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUnavailable:
		return http.StatusServiceUnavailable
	case usecase.ErrorUpstream, usecase.ErrorDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func jsonResult(status int, v any) result {
	body, err := json.Marshal(v)
	if err != nil {
		return result{
			status:      http.StatusInternalServerError,
			contentType: contentTypeJSON,
			body:        []byte(`{"error":"INTERNAL_ERROR"}`),
		}
	}
	return result{status: status, contentType: contentTypeJSON, body: body}
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func parseFormBody(body string, base64Encoded bool) (url.Values, error) {
	if base64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, err
		}
		body = string(raw)
	}
	return url.ParseQuery(body)
}

type route int

const (
	routeNone route = iota
	routeRoot
	routeHealth
	routeWebhook
	routeClear
	routeConversation
	routeArchive
)

// matchRoute maps a method and path to a route and its phone parameter.
func matchRoute(method, path string) (route, string) {
	path = "/" + strings.Trim(path, "/")
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")

	switch {
	case method == http.MethodGet && path == "/":
		return routeRoot, ""
	case method == http.MethodGet && path == "/health":
		return routeHealth, ""
	case method == http.MethodPost && path == "/webhook/whatsapp":
		return routeWebhook, ""
	case method == http.MethodPost && len(parts) == 3 && parts[0] == "conversation" && parts[1] == "clear":
		return routeClear, unescape(parts[2])
	case method == http.MethodGet && len(parts) == 2 && parts[0] == "conversation":
		return routeConversation, unescape(parts[1])
	case method == http.MethodGet && len(parts) == 3 && parts[0] == "conversation" && parts[2] == "archive":
		return routeArchive, unescape(parts[1])
	}
	return routeNone, ""
}

func unescape(segment string) string {
	if s, err := url.PathUnescape(segment); err == nil {
		return s
	}
	return segment
}
