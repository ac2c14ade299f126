package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
)

// maxMediaItems is the most attachments Twilio delivers on one message.
const maxMediaItems = 10

// ValidateTwilioSignature validates that a request came from Twilio
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}

	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload concatenates the URL with every POST key/value pair,
// keys in sorted order.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// TwilioWebhookRequest is an inbound WhatsApp/SMS message as posted by Twilio.
type TwilioWebhookRequest struct {
	MessageSid string
	AccountSid string
	From       string
	To         string
	Body       string
	Latitude   string
	Longitude  string
	HasCoords  bool
	Media      []conversation.Attachment
}

// ParseTwilioWebhook parses a Twilio messaging webhook form.
func ParseTwilioWebhook(r *http.Request) (*TwilioWebhookRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	req := &TwilioWebhookRequest{
		MessageSid: strings.TrimSpace(r.FormValue("MessageSid")),
		AccountSid: strings.TrimSpace(r.FormValue("AccountSid")),
		From:       strings.TrimSpace(r.FormValue("From")),
		To:         strings.TrimSpace(r.FormValue("To")),
		Body:       strings.TrimSpace(r.FormValue("Body")),
	}

	// Location shares carry both keys; a lone key is ignored.
	_, hasLat := r.Form["Latitude"]
	_, hasLng := r.Form["Longitude"]
	if hasLat && hasLng {
		req.HasCoords = true
		req.Latitude = r.FormValue("Latitude")
		req.Longitude = r.FormValue("Longitude")
	}

	if raw := strings.TrimSpace(r.FormValue("NumMedia")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid NumMedia %q", raw)
		}
		if n > maxMediaItems {
			n = maxMediaItems
		}
		for i := 0; i < n; i++ {
			mediaURL := strings.TrimSpace(r.FormValue(fmt.Sprintf("MediaUrl%d", i)))
			if mediaURL == "" {
				continue
			}
			req.Media = append(req.Media, conversation.Attachment{
				URL:         mediaURL,
				ContentType: strings.TrimSpace(r.FormValue(fmt.Sprintf("MediaContentType%d", i))),
			})
		}
	}
	return req, nil
}

// Message converts the webhook into the channel-neutral inbound message.
func (w *TwilioWebhookRequest) Message() conversation.Message {
	msg := conversation.Message{
		SenderID:    w.From,
		MessageID:   w.MessageSid,
		Body:        w.Body,
		Attachments: w.Media,
	}
	if w.HasCoords {
		msg.Coordinate = &conversation.Coordinate{
			Latitude:  w.Latitude,
			Longitude: w.Longitude,
		}
	}
	return msg
}
