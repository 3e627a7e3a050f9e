package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kakeibo/internal/core"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	SuccessResponse("削除しました").Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != `<div class="success">削除しました</div>` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerRecordCreated(3, 7).
		TriggerFormReset().
		TriggerSuccessNotification("登録しました").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}
	expectedParts := []string{
		`"record:created"`,
		`"form:reset"`,
		`"show-notification"`,
		`"position":3`,
		`"revision":7`,
		`"type":"success"`,
	}
	for _, part := range expectedParts {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
}

func TestHTMXResponseBuilder_DeleteTrigger(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().TriggerRecordsDeleted(nil, 2).Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"record:deleted":{"positions":[],"revision":2}`) {
		t.Errorf("unexpected trigger: %s", trigger)
	}
}

func TestHTMXResponseBuilder_NoTriggers(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Status(http.StatusNoContent).Write(w)
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger should not be set without triggers")
	}
	if w.Header().Get("Content-Type") != "" || w.Code != http.StatusNoContent {
		t.Errorf("empty response got Content-Type %q, status %d", w.Header().Get("Content-Type"), w.Code)
	}
}

func TestErrorResponse_EscapesMessage(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(http.StatusUnprocessableEntity, "<script>alert(1)</script>").Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "<script>") {
		t.Errorf("message not escaped: %s", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestErrorListResponse(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorListResponse(http.StatusUnprocessableEntity, "入力内容に誤りがあります", []string{"a<b", "c"}).Write(w)

	body := w.Body.String()
	if strings.Count(body, "<li>") != 2 || !strings.Contains(body, "a&lt;b") {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ValidationError{Violations: []string{"x"}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("update: %w", core.ErrPositionOutOfRange), http.StatusConflict},
		{core.ErrStaleView, http.StatusConflict},
		{core.ErrAmbiguousMatch, http.StatusConflict},
		{fmt.Errorf("save: %w", core.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
