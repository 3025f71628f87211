package notifications

import (
	"fmt"

	"github.com/tradesafe/risk-core/internal/logger"
	"github.com/tradesafe/risk-core/internal/monitoring"
	"github.com/tradesafe/risk-core/internal/safety"
	"github.com/tradesafe/risk-core/internal/stops"
)

// Dispatcher fans breaker transitions and stop triggers out to the
// configured notifier, metrics and log, so the state machines stay
// free of delivery concerns.
type Dispatcher struct {
	notifier Notifier
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher. A nil notifier discards alerts.
func NewDispatcher(notifier Notifier, log *logger.Logger) *Dispatcher {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Dispatcher{notifier: notifier, log: log}
}

// OnBreakerStateChange satisfies safety.StateChangeCallback.
func (d *Dispatcher) OnBreakerStateChange(name string, from, to safety.State, reason string) {
	monitoring.RecordBreakerTransition(name, to.String())

	level := "info"
	if to == safety.StateOpen {
		level = "critical"
	}
	msg := fmt.Sprintf("breaker %s: %s -> %s (%s)", name, from, to, reason)
	if d.log != nil {
		d.log.Risk("%s", msg)
	}
	if err := d.notifier.SendAlert(level, msg); err != nil && d.log != nil {
		d.log.LogError("failed to deliver breaker alert", err)
	}
}

// OnStopTriggered publishes a trailing stop trigger event.
func (d *Dispatcher) OnStopTriggered(event *stops.TriggerEvent) {
	monitoring.RecordStopTrigger(event.Symbol)

	msg := fmt.Sprintf("trailing stop triggered: %s position %s at %.4f (stop %.4f, entry %.4f)",
		event.Symbol, event.PositionID, event.CurrentPrice, event.StopPrice, event.EntryPrice)
	if err := d.notifier.SendAlert("warning", msg); err != nil && d.log != nil {
		d.log.LogError("failed to deliver stop alert", err)
	}
}
