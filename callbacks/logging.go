package callbacks

import (
	"github.com/49Simon/dynamiq/observability"
)

// LoggingHandler mirrors every lifecycle event onto a structured logger.
// It is the simplest useful observer and doubles as a worked example of the
// Handler contract.
type LoggingHandler struct {
	Base
	log observability.Logger
}

var _ Handler = (*LoggingHandler)(nil)

// NewLoggingHandler builds a LoggingHandler. A nil logger falls back to the
// slog-backed default.
func NewLoggingHandler(log observability.Logger) *LoggingHandler {
	if log == nil {
		log = observability.Default()
	}
	return &LoggingHandler{log: log}
}

func (h *LoggingHandler) OnNodeStart(node NodeView, _ map[string]any, meta Meta) {
	h.log.Info("node started", h.attrs(node, meta)...)
}

func (h *LoggingHandler) OnNodeEnd(node NodeView, _ any, meta Meta) {
	h.log.Info("node finished", append(h.attrs(node, meta),
		observability.Bool("from_cache", meta.FromCache))...)
}

func (h *LoggingHandler) OnNodeError(node NodeView, err error, meta Meta) {
	h.log.Error("node failed", append(h.attrs(node, meta), observability.Error(err))...)
}

func (h *LoggingHandler) OnNodeSkip(node NodeView, skipData map[string]any, _ map[string]any, meta Meta) {
	h.log.Info("node skipped", append(h.attrs(node, meta),
		observability.String("reason", stringField(skipData, "message")))...)
}

func (h *LoggingHandler) OnExecuteStart(node NodeView, _ map[string]any, meta Meta) {
	h.log.Debug("execute attempt started", h.attrs(node, meta)...)
}

func (h *LoggingHandler) OnExecuteEnd(node NodeView, _ any, meta Meta) {
	h.log.Debug("execute attempt succeeded", h.attrs(node, meta)...)
}

func (h *LoggingHandler) OnExecuteError(node NodeView, err error, meta Meta) {
	h.log.Warn("execute attempt failed", append(h.attrs(node, meta), observability.Error(err))...)
}

func (h *LoggingHandler) attrs(node NodeView, meta Meta) []observability.Attribute {
	return []observability.Attribute{
		observability.String(observability.AttrNodeID, node.ID),
		observability.String(observability.AttrNodeName, node.Name),
		observability.String("run_id", meta.RunID),
	}
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}
