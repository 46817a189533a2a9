package one2track

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-tracker/internal/infrastructure/mqtt"
)

// defaultCommandTimeout bounds a refresh triggered over MQTT.
const defaultCommandTimeout = 5 * time.Minute

// CommandRefresh is the command name in graytrack/command/one2track/refresh.
const CommandRefresh = "refresh"

// Subscriber is the MQTT capability the CommandHandler needs.
// Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Refresher runs one refresh cycle. Satisfied by *tracker.Coordinator.
type Refresher interface {
	RefreshOnce(ctx context.Context) error
}

// RefreshRequest is the optional JSON body of a refresh command.
type RefreshRequest struct {
	RequestID string `json:"request_id,omitempty"`
}

// RefreshResponse is published to graytrack/state/one2track/refresh after
// every command.
type RefreshResponse struct {
	RequestID string    `json:"request_id,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandHandler turns MQTT refresh commands into coordinator refreshes.
type CommandHandler struct {
	client    Subscriber
	refresher Refresher
	timeout   time.Duration
	logger    Logger
	ctx       context.Context
	wg        sync.WaitGroup
}

// NewCommandHandler creates a handler bound to ctx; cancelling ctx aborts
// in-flight command refreshes.
func NewCommandHandler(ctx context.Context, client Subscriber, refresher Refresher, logger Logger) *CommandHandler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CommandHandler{
		client:    client,
		refresher: refresher,
		timeout:   defaultCommandTimeout,
		logger:    logger,
		ctx:       ctx,
	}
}

// Subscribe starts listening for refresh commands.
func (h *CommandHandler) Subscribe() error {
	topic := mqtt.Topics{}.BridgeCommand(BridgeID, CommandRefresh)
	if err := h.client.Subscribe(topic, 1, h.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	h.logger.Info("listening for refresh commands", "topic", topic)
	return nil
}

// Unsubscribe stops listening for refresh commands.
func (h *CommandHandler) Unsubscribe() error {
	return h.client.Unsubscribe(mqtt.Topics{}.BridgeCommand(BridgeID, CommandRefresh))
}

// Wait blocks until every accepted command has published its response.
func (h *CommandHandler) Wait() {
	h.wg.Wait()
}

// handle runs on the MQTT router goroutine, which delivers messages one at a
// time, so the refresh itself runs on its own goroutine. An empty or
// non-JSON payload is still a valid refresh request.
func (h *CommandHandler) handle(topic string, payload []byte) error {
	var req RefreshRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			h.logger.Debug("refresh command payload ignored", "topic", topic, "error", err)
		}
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.refresh(req); err != nil {
			h.logger.Warn("refresh response not published", "request_id", req.RequestID, "error", err)
		}
	}()
	return nil
}

// refresh runs one refresh and publishes the response.
func (h *CommandHandler) refresh(req RefreshRequest) error {
	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()

	err := h.refresher.RefreshOnce(ctx)
	resp := RefreshResponse{
		RequestID: req.RequestID,
		Success:   err == nil,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		resp.Error = err.Error()
		h.logger.Warn("refresh command failed", "request_id", req.RequestID, "error", err)
	} else {
		h.logger.Info("refresh command completed", "request_id", req.RequestID)
	}

	data, mErr := json.Marshal(resp)
	if mErr != nil {
		return fmt.Errorf("marshalling refresh response: %w", mErr)
	}
	if pubErr := h.client.Publish(mqtt.Topics{}.BridgeState(BridgeID, CommandRefresh), data, 1, false); pubErr != nil {
		return fmt.Errorf("publishing refresh response: %w", pubErr)
	}
	return nil
}
