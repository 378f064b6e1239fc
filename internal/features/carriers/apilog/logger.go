// Package apilog records every outbound carrier call and keeps the carrier API counters current.
package apilog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"carrier-engine/internal/core/logger"
	"carrier-engine/internal/features/carriers/domain"
	"carrier-engine/internal/features/carriers/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a carrier call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Logger persists API call records and bumps carrier counters.
type Logger struct {
	logs     ports.APILogRepository
	carriers ports.CarrierRepository
	timeout  time.Duration
	now      func() time.Time
}

// NewLogger creates a Logger. A non-positive timeout falls back to DefaultTimeout.
func NewLogger(logs ports.APILogRepository, carriers ports.CarrierRepository, timeout time.Duration) *Logger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Logger{
		logs:     logs,
		carriers: carriers,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Wrap returns an adapter whose calls are timed, bounded and logged against carrier.
func (l *Logger) Wrap(carrier *domain.Carrier, adapter ports.CarrierAdapter) *LoggedAdapter {
	return &LoggedAdapter{
		logger:  l,
		carrier: carrier,
		inner:   adapter,
	}
}

// LoggedAdapter decorates a CarrierAdapter with API call logging.
type LoggedAdapter struct {
	logger  *Logger
	carrier *domain.Carrier
	inner   ports.CarrierAdapter
}

// Unwrap returns the decorated adapter.
func (a *LoggedAdapter) Unwrap() ports.CarrierAdapter {
	return a.inner
}

func (a *LoggedAdapter) CheckServiceability(ctx context.Context, pickupPincode, deliveryPincode string, isCOD bool) (*domain.ServiceabilityResult, error) {
	return logged(ctx, a, domain.APICallServiceability, deliveryPincode, func(ctx context.Context) (*domain.ServiceabilityResult, error) {
		return a.inner.CheckServiceability(ctx, pickupPincode, deliveryPincode, isCOD)
	})
}

func (a *LoggedAdapter) CreateShipment(ctx context.Context, req domain.ShipmentRequest) (*domain.BookingResult, error) {
	return logged(ctx, a, domain.APICallCreateShipment, req.OrderNumber, func(ctx context.Context) (*domain.BookingResult, error) {
		return a.inner.CreateShipment(ctx, req)
	})
}

func (a *LoggedAdapter) CancelShipment(ctx context.Context, awbNumber string) (*domain.CancellationResult, error) {
	return logged(ctx, a, domain.APICallCancel, awbNumber, func(ctx context.Context) (*domain.CancellationResult, error) {
		return a.inner.CancelShipment(ctx, awbNumber)
	})
}

func (a *LoggedAdapter) GetTrackingStatus(ctx context.Context, awbNumber string) (*domain.TrackingResult, error) {
	return logged(ctx, a, domain.APICallTrack, awbNumber, func(ctx context.Context) (*domain.TrackingResult, error) {
		return a.inner.GetTrackingStatus(ctx, awbNumber)
	})
}

// logged runs fn under the call timeout and records the outcome. Transport
// errors are returned as *domain.AdapterTransportError.
func logged[T any](ctx context.Context, a *LoggedAdapter, callType domain.APICallType, referenceID string, fn func(context.Context) (T, error)) (T, error) {
	l := a.logger
	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	callCtx, ex := withExchange(callCtx)

	start := l.now()
	result, err := fn(callCtx)
	elapsed := l.now().Sub(start)

	entry := l.buildEntry(a.carrier, callType, referenceID, ex.snapshot(), result, err)
	entry.ResponseTimeMs = elapsed.Milliseconds()
	entry.CreatedAt = start.UTC()

	l.record(ctx, entry)

	if err != nil {
		var zero T
		return zero, &domain.AdapterTransportError{
			CarrierCode: a.carrier.Code,
			Operation:   callType,
			Err:         err,
		}
	}
	return result, nil
}

func (l *Logger) buildEntry(carrier *domain.Carrier, callType domain.APICallType, referenceID string, call httpCall, result any, err error) *domain.APILog {
	entry := &domain.APILog{
		ID:             uuid.NewString(),
		CarrierID:      carrier.ID,
		CarrierCode:    carrier.Code,
		CallType:       callType,
		RequestURL:     call.url,
		RequestMethod:  call.method,
		RequestHeaders: call.headers,
		RequestBody:    call.requestBody,
		ResponseStatus: call.status,
		ResponseBody:   call.responseBody,
		ReferenceID:    referenceID,
	}

	// Adapters that never touched the network are described by their call type.
	if entry.RequestURL == "" {
		entry.RequestURL = fmt.Sprintf("adapter://%s/%s", carrier.Code, callType)
		entry.RequestMethod = "CALL"
	}
	if entry.ResponseStatus == 0 && err == nil {
		entry.ResponseStatus = http.StatusOK
	}
	if entry.ResponseBody == "" && err == nil {
		if b, mErr := json.Marshal(result); mErr == nil {
			entry.ResponseBody = string(b)
		}
	}

	entry.IsSuccess = err == nil && entry.ResponseStatus >= 200 && entry.ResponseStatus < 300
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	return entry
}

// record persists the entry and bumps counters. Failures here never fail the carrier call.
func (l *Logger) record(ctx context.Context, entry *domain.APILog) {
	// The caller's deadline may already have fired; the audit write must still happen.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	log := logger.Component("apilog")

	if err := l.logs.Append(storeCtx, entry); err != nil {
		log.Error("Failed to persist carrier API log",
			zap.String("carrier", entry.CarrierCode),
			zap.String("call_type", string(entry.CallType)),
			zap.Error(err),
		)
	}

	if entry.CarrierID == "" {
		return
	}
	if err := l.carriers.IncrementAPICounters(storeCtx, entry.CarrierID, entry.IsSuccess, entry.CreatedAt); err != nil {
		log.Error("Failed to update carrier API counters",
			zap.String("carrier", entry.CarrierCode),
			zap.Error(err),
		)
	}

	if !entry.IsSuccess {
		log.Warn("Carrier API call failed",
			zap.String("carrier", entry.CarrierCode),
			zap.String("call_type", string(entry.CallType)),
			zap.Int("status", entry.ResponseStatus),
			zap.String("reference_id", entry.ReferenceID),
			zap.String("error", entry.ErrorMessage),
		)
	}
}
