package monitoring

import "strconv"

// Catalog request outcomes.
const (
	OutcomeCommitted  = "committed"
	OutcomeCached     = "cached"
	OutcomeDiscarded  = "discarded"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)

// ApplicationMetrics records motiondeck's domain metrics. A nil
// *ApplicationMetrics records nothing.
type ApplicationMetrics struct {
	collector *MetricsCollector
}

// NewApplicationMetrics creates application metrics backed by collector.
func NewApplicationMetrics(collector *MetricsCollector) *ApplicationMetrics {
	return &ApplicationMetrics{collector: collector}
}

// Collector returns the underlying collector.
func (am *ApplicationMetrics) Collector() *MetricsCollector {
	if am == nil {
		return nil
	}
	return am.collector
}

// CatalogRequest counts one catalog Load/Refresh by outcome.
func (am *ApplicationMetrics) CatalogRequest(operation, variant, outcome string) {
	if am == nil {
		return
	}
	am.collector.Counter("catalog_requests_total", map[string]string{
		"operation": operation,
		"variant":   variant,
		"outcome":   outcome,
	})
}

// CatalogBuild starts timing a catalog build; calling the returned func
// records it.
func (am *ApplicationMetrics) CatalogBuild(variant string) func() {
	if am == nil {
		return func() {}
	}
	return am.collector.Timer("catalog_build", map[string]string{"variant": variant})
}

// CatalogSize sets the number of animations in the committed catalog.
func (am *ApplicationMetrics) CatalogSize(variant string, animations int) {
	if am == nil {
		return
	}
	am.collector.Gauge("catalog_animations", float64(animations), map[string]string{
		"variant": variant,
	})
}

// NavigationRedirect counts canonicalization redirects.
func (am *ApplicationMetrics) NavigationRedirect() {
	if am == nil {
		return
	}
	am.collector.Counter("navigation_redirects_total", nil)
}

// CardTransition counts card lifecycle transitions by target state.
func (am *ApplicationMetrics) CardTransition(state string) {
	if am == nil {
		return
	}
	am.collector.Counter("card_transitions_total", map[string]string{"state": state})
}

// CardReplay counts accepted and ignored replay requests.
func (am *ApplicationMetrics) CardReplay(accepted bool) {
	if am == nil {
		return
	}
	am.collector.Counter("card_replays_total", map[string]string{"accepted": strconv.FormatBool(accepted)})
}

// Sessions sets the number of live sessions.
func (am *ApplicationMetrics) Sessions(n int) {
	if am == nil {
		return
	}
	am.collector.Gauge("sessions_active", float64(n), nil)
}

// ServerRequest increments server request counter.
func (am *ApplicationMetrics) ServerRequest(method, path string, statusCode int) {
	if am == nil {
		return
	}
	am.collector.Counter("http_requests_total", map[string]string{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(statusCode),
	})
}

// WebSocketConnection tracks WebSocket connections ("opened", "closed",
// "error").
func (am *ApplicationMetrics) WebSocketConnection(action string) {
	if am == nil {
		return
	}
	am.collector.Counter("websocket_connections_total", map[string]string{"action": action})
}

// WebSocketMessage tracks WebSocket messages by type.
func (am *ApplicationMetrics) WebSocketMessage(messageType string) {
	if am == nil {
		return
	}
	am.collector.Counter("websocket_messages_total", map[string]string{"type": messageType})
}

// WatcherEvent tracks manifest watcher events.
func (am *ApplicationMetrics) WatcherEvent(eventType string) {
	if am == nil {
		return
	}
	am.collector.Counter("manifest_watcher_events_total", map[string]string{"type": eventType})
}
