package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/twilio/twilio-go/twiml"

	"dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

const (
	twilioSignatureHeader = "X-Twilio-Signature"
	messageDedupTTL       = 24 * time.Hour
)

// SignatureValidator checks that a webhook request was signed by the SMS provider.
type SignatureValidator interface {
	Validate(url string, params map[string]string, expectedSignature string) bool
}

// WebhookHandler handles inbound driver replies and delivery callbacks.
type WebhookHandler struct {
	correlator      *service.WebhookCorrelator
	dispatchService *service.DispatchService
	dedup           redis.MessageDeduplicator
	validator       SignatureValidator
	publicBaseURL   string
}

// NewWebhookHandler creates a new WebhookHandler. dedup and validator may be nil.
func NewWebhookHandler(
	correlator *service.WebhookCorrelator,
	dispatchService *service.DispatchService,
	dedup redis.MessageDeduplicator,
	validator SignatureValidator,
	publicBaseURL string,
) *WebhookHandler {
	return &WebhookHandler{
		correlator:      correlator,
		dispatchService: dispatchService,
		dedup:           dedup,
		validator:       validator,
		publicBaseURL:   strings.TrimRight(publicBaseURL, "/"),
	}
}

// DriverReplyRequest is the JSON body for a driver reply from the app.
type DriverReplyRequest struct {
	DriverContact string `json:"driver_contact"`
	Reply         string `json:"reply"`
}

// DriverReplyResponse is the JSON response to a driver reply.
type DriverReplyResponse struct {
	BookingID string `json:"booking_id,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Applied   bool   `json:"applied"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message"`
}

// SMSReply handles POST /v1/webhooks/twilio/sms
//
// Always answers 200 with TwiML so the provider does not retry, except for
// requests with an invalid signature.
func (h *WebhookHandler) SMSReply(c *gin.Context) {
	params, ok := h.verify(c)
	if !ok {
		return
	}

	from, body, sid := params["From"], params["Body"], params["MessageSid"]
	log.Printf("[WEBHOOK] SMS from %s (sid %s): %q", from, sid, body)

	if sid != "" && h.dedup != nil {
		first, err := h.dedup.ClaimMessage(c.Request.Context(), sid, messageDedupTTL)
		if err != nil {
			log.Printf("[WEBHOOK] dedup check for %s failed: %v", sid, err)
		} else if !first {
			log.Printf("[WEBHOOK] duplicate delivery of %s ignored", sid)
			respondTwiML(c, "")
			return
		}
	}

	outcome, err := h.correlator.Correlate(c.Request.Context(), from, body)
	if err != nil && !isAcknowledged(err) {
		log.Printf("[WEBHOOK] reply from %s failed: %v", from, err)
		respondTwiML(c, "")
		return
	}

	if txn := nrgin.Transaction(c); txn != nil && outcome.BookingID != "" {
		txn.AddAttribute("booking_id", outcome.BookingID)
		txn.AddAttribute("decision", string(outcome.Decision))
	}

	respondTwiML(c, outcome.Ack)
}

// DeliveryStatus handles POST /v1/webhooks/twilio/status
func (h *WebhookHandler) DeliveryStatus(c *gin.Context) {
	params, ok := h.verify(c)
	if !ok {
		return
	}

	h.dispatchService.RecordDeliveryStatus(c.Request.Context(), service.DeliveryReport{
		MessageSID:   params["MessageSid"],
		Status:       params["MessageStatus"],
		To:           params["To"],
		ErrorCode:    params["ErrorCode"],
		ErrorMessage: params["ErrorMessage"],
	})

	c.Status(http.StatusOK)
}

// DriverReply handles POST /v1/webhooks/driver-reply
func (h *WebhookHandler) DriverReply(c *gin.Context) {
	var req DriverReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	outcome, err := h.correlator.Correlate(c.Request.Context(), req.DriverContact, req.Reply)
	if err != nil && !isAcknowledged(err) {
		respondError(c, err)
		return
	}

	resp := DriverReplyResponse{
		Decision: string(outcome.Decision),
		Message:  outcome.Ack,
	}
	if outcome.Result != nil {
		resp.BookingID = outcome.BookingID
		resp.Applied = outcome.Result.Applied
		resp.Status = string(outcome.Result.Booking.Status)
	}

	respondJSON(c, http.StatusOK, resp)
}

// verify parses the form and checks the provider signature. It writes a 403
// and returns false when the signature is wrong.
func (h *WebhookHandler) verify(c *gin.Context) (map[string]string, bool) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid form body"})
		return nil, false
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	if h.validator != nil {
		url := h.publicBaseURL + c.Request.URL.RequestURI()
		if !h.validator.Validate(url, params, c.GetHeader(twilioSignatureHeader)) {
			log.Printf("[WEBHOOK] invalid signature for %s", url)
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "invalid request signature"})
			return nil, false
		}
	}

	return params, true
}

// isAcknowledged reports errors that are answered with a message instead of a failure.
func isAcknowledged(err error) bool {
	return errors.Is(err, service.ErrInvalidReply) || errors.Is(err, repository.ErrNotFound)
}

func respondTwiML(c *gin.Context, message string) {
	var elements []twiml.Element
	if message != "" {
		elements = append(elements, &twiml.MessagingMessage{Body: message})
	}

	xml, err := twiml.Messages(elements)
	if err != nil {
		log.Printf("[WEBHOOK] render TwiML: %v", err)
		c.Data(http.StatusOK, "text/xml", []byte("<Response></Response>"))
		return
	}
	c.Data(http.StatusOK, "text/xml", []byte(xml))
}
