package usecase

import (
	"errors"
	"fmt"

	"whatsapp-bridge/internal/integrations/agent"
)

// User-facing texts. The bridge serves a Turkish marketplace.
const (
	msgAgentNotConfigured = "Sistem yapılandırma hatası. Lütfen yönetici ile iletişime geçin."
	msgAgentUnsuccessful  = "İşlem başarısız oldu. Lütfen tekrar deneyin."
	msgAgentEmpty         = "Boş yanıt alındı. Lütfen tekrar deneyin."
	msgAgentUnavailable   = "Agent servisi şu anda yanıt vermiyor. Lütfen daha sonra tekrar deneyin."
	msgAgentTimeout       = "İstek zaman aşımına uğradı. Lütfen tekrar deneyin."
	msgAgentUnexpected    = "Beklenmeyen bir hata oluştu."

	// MsgGenericApology is returned in TwiML when a request fails outright.
	MsgGenericApology = "Üzgünüm, bir hata oluştu. Lütfen daha sonra tekrar deneyin."

	msgOutOfRange    = "Bu aramada sadece %d ilan var. 1-%d arasından bir numara seçebilirsin."
	truncationSuffix = "\n\n...(devamı için daha spesifik arama yapın)"
)

func outOfRangeText(n int) string {
	return fmt.Sprintf(msgOutOfRange, n, n)
}

// agentFallback maps an agent failure to the text the user receives.
func agentFallback(err error) string {
	switch {
	case errors.Is(err, agent.ErrNotConfigured):
		return msgAgentNotConfigured
	case errors.Is(err, agent.ErrUnsuccessful):
		return msgAgentUnsuccessful
	case errors.Is(err, agent.ErrEmptyResponse):
		return msgAgentEmpty
	case errors.Is(err, agent.ErrTimeout):
		return msgAgentTimeout
	}
	if _, ok := upstreamStatusCode(err); ok {
		return msgAgentUnavailable
	}
	return msgAgentUnexpected
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
