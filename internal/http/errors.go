package http

import (
	"context"
	"errors"
	"net/http"

	"kakeibo/internal/core"
	klog "kakeibo/internal/log"
)

// statusFor maps ledger error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrPositionOutOfRange),
		errors.Is(err, core.ErrStaleView),
		errors.Is(err, core.ErrAmbiguousMatch):
		return http.StatusConflict
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// messageFor is the user-facing text for an error kind.
func messageFor(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return "入力内容に誤りがあります"
	case errors.Is(err, core.ErrStaleView):
		return "家計簿が更新されました。画面を再読み込みしてください"
	case errors.Is(err, core.ErrPositionOutOfRange):
		return "指定された行は存在しません"
	case errors.Is(err, core.ErrAmbiguousMatch):
		return "対象の行を特定できません"
	case errors.Is(err, core.ErrStorageUnavailable):
		return "保存先にアクセスできません"
	default:
		return "内部エラーが発生しました"
	}
}

// writeError reports err to the initiating request and logs it at a level
// matching its kind.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	fields := klog.NewFields().WithOperation(op).WithError(err)
	fields[klog.FieldStatusCode] = status

	logger := klog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Ledger request failed", fields.ToSlice()...)
	} else {
		logger.WarnContext(r.Context(), "Ledger request rejected", fields.ToSlice()...)
	}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		ErrorListResponse(status, messageFor(err), verr.Violations).Write(w)
		return
	}
	ErrorResponse(status, messageFor(err)).
		TriggerErrorNotification(messageFor(err)).
		Write(w)
}
