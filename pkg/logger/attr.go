package logger

import "log/slog"

// Group nests attrs under name.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error is a nil-safe "error" attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Identity records the enrolled user identity under the key "identity".
// An empty identity yields an empty Attr.
func Identity(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("identity", id)
}

// RequestID is empty for a nil id.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// Operation records the engine operation under the key "operation".
func Operation(name string) slog.Attr {
	return slog.String("operation", name)
}

// Outcome records how an operation ended under the key "outcome".
func Outcome(name string) slog.Attr {
	return slog.String("outcome", name)
}

// Store records the secret store backend under the key "store".
func Store(name string) slog.Attr {
	return slog.String("store", name)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Handler(name string) slog.Attr {
	return slog.String("handler", name)
}

// ClientIP is empty for an empty address.
func ClientIP(ip string) slog.Attr {
	if ip == "" {
		return slog.Attr{}
	}
	return slog.String("client_ip", ip)
}
