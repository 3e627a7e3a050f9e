package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
)

// HTMXResponseBuilder accumulates HX-Trigger events and an HTML fragment.
// The record:* events carry the ledger revision after the mutation so the
// page can refresh its window and its hidden revision fields.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{triggers: make(map[string]any), statusCode: http.StatusOK}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

func (b *HTMXResponseBuilder) trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

func (b *HTMXResponseBuilder) TriggerRecordCreated(position int, revision uint64) *HTMXResponseBuilder {
	return b.trigger("record:created", map[string]any{"position": position, "revision": revision})
}

func (b *HTMXResponseBuilder) TriggerRecordUpdated(position int, revision uint64) *HTMXResponseBuilder {
	return b.trigger("record:updated", map[string]any{"position": position, "revision": revision})
}

// TriggerRecordsDeleted lists the removed positions as they were before the
// delete; positions after them have shifted down.
func (b *HTMXResponseBuilder) TriggerRecordsDeleted(positions []int, revision uint64) *HTMXResponseBuilder {
	if positions == nil {
		positions = []int{}
	}
	return b.trigger("record:deleted", map[string]any{"positions": positions, "revision": revision})
}

// TriggerFormReset clears the entry form, keeping the chosen kind.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.trigger("form:reset", struct{}{})
}

type notificationType string

const (
	notificationSuccess notificationType = "success"
	notificationError   notificationType = "error"
)

func (b *HTMXResponseBuilder) notify(typ notificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.trigger("show-notification", map[string]any{
		"type":     string(typ),
		"message":  message,
		"duration": durationMs,
	})
}

// TriggerSuccessNotification shows a toast for 3s.
func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.notify(notificationSuccess, message, 3000)
}

// TriggerErrorNotification shows a toast for 5s.
func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.notify(notificationError, message, 5000)
}

func (b *HTMXResponseBuilder) html(fragment string) *HTMXResponseBuilder {
	b.body = []byte(fragment)
	return b
}

// Write sets HX-Trigger (if any events were added), then the status and body.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	if len(b.body) > 0 {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse escapes message into an error box.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return ErrorListResponse(statusCode, message, nil)
}

// ErrorListResponse renders message followed by one item per detail, as used
// for validation failures.
func ErrorListResponse(statusCode int, message string, details []string) *HTMXResponseBuilder {
	var sb strings.Builder
	sb.WriteString(`<div class="error">`)
	sb.WriteString(template.HTMLEscapeString(message))
	if len(details) > 0 {
		sb.WriteString(`<ul>`)
		for _, d := range details {
			sb.WriteString(`<li>` + template.HTMLEscapeString(d) + `</li>`)
		}
		sb.WriteString(`</ul>`)
	}
	sb.WriteString(`</div>`)
	return NewHTMXResponse().Status(statusCode).html(sb.String())
}

func SuccessResponse(message string) *HTMXResponseBuilder {
	return NewHTMXResponse().html(`<div class="success">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
