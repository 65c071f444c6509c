package protocol

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/akhenakh/lspgo-core/jsonrpc2"
)

// ShowNotification sends a window/showMessage notification to conn.
func ShowNotification(ctx context.Context, conn *jsonrpc2.Conn, msgType MessageType, message string) {
	if conn == nil {
		slog.Warn("attempted to show notification with nil connection", "message", message)
		return
	}
	params := ShowMessageParams{Type: msgType, Message: message}
	rawParams, err := json.Marshal(params)
	if err != nil {
		slog.Warn("marshal showMessage params failed", "error", err)
		return
	}
	notification := &jsonrpc2.NotificationMessage{
		JSONRPC: jsonrpc2.Version,
		Method:  MethodWindowShowMessage,
		Params:  rawParams,
	}
	if err := conn.Write(ctx, notification); err != nil {
		slog.Warn("send showMessage notification failed", "error", err)
	}
}

// SendDiagnostics publishes the full current diagnostic set for uri.
func SendDiagnostics(ctx context.Context, conn *jsonrpc2.Conn, uri DocumentURI, diagnostics []Diagnostic) {
	if conn == nil {
		slog.Warn("attempted to send diagnostics with nil connection", "uri", uri)
		return
	}

	params := PublishDiagnosticsParams{URI: uri, Diagnostics: diagnostics}
	rawParams, err := json.Marshal(params)
	if err != nil {
		slog.Warn("marshal diagnostics params failed", "uri", uri, "error", err)
		return
	}

	notification := &jsonrpc2.NotificationMessage{
		JSONRPC: jsonrpc2.Version,
		Method:  MethodTextDocumentPublishDiagnostics,
		Params:  rawParams,
	}
	if err := conn.Write(ctx, notification); err != nil {
		slog.Warn("send diagnostics notification failed", "uri", uri, "error", err)
	}
}
