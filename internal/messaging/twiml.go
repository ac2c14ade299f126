package messaging

import (
	"encoding/xml"
	"net/http"
)

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

// RenderTwiML returns a messaging TwiML document replying with text.
// An empty text yields an empty <Response/>, which sends nothing.
func RenderTwiML(text string) ([]byte, error) {
	resp := twimlResponse{}
	if text != "" {
		resp.Messages = []string{text}
	}
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func writeTwiML(w http.ResponseWriter, text string) {
	body, err := RenderTwiML(text)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
