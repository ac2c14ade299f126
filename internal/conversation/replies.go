package conversation

// Replies holds the user-facing text for every turn outcome.
type Replies struct {
	Welcome          string
	WelcomeBack      string
	AskLocation      string
	LocationRequired string
	InvalidLocation  string
	AskPhoto         string
	PhotoRequired    string
	ImageRequired    string
	RetryPhoto       string
	Success          string
	Failure          string
}

// DefaultReplies returns the pothole reporter wording.
func DefaultReplies() Replies {
	return Replies{
		Welcome:          "Welcome to the Pothole Reporter! Please describe where the pothole is located (e.g., street name, nearest intersection, landmark).",
		WelcomeBack:      "Welcome back to the Pothole Reporter! Please describe where the pothole is located (e.g., street name, nearest intersection, landmark).",
		AskLocation:      "Thank you! Now, please share your location by using WhatsApp's location sharing feature.",
		LocationRequired: "I need your location to continue. Please use WhatsApp's location sharing feature to share your current location.",
		InvalidLocation:  "Sorry, I couldn't read that location. Please share it again using WhatsApp's location sharing feature.",
		AskPhoto:         "Got your location! Finally, please take and send a photo of the pothole.",
		PhotoRequired:    "Please send a photo of the pothole to complete your report.",
		ImageRequired:    "Please send an image file of the pothole.",
		RetryPhoto:       "Sorry, we couldn't download your photo. Please try sending it again.",
		Success:          "Thank you for reporting the pothole! Your report has been received and saved.",
		Failure:          "Sorry, something went wrong while saving your report. Please try again in a moment.",
	}
}

// withDefaults fills empty fields from DefaultReplies.
func (r Replies) withDefaults() Replies {
	d := DefaultReplies()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&r.Welcome, d.Welcome)
	fill(&r.WelcomeBack, d.WelcomeBack)
	fill(&r.AskLocation, d.AskLocation)
	fill(&r.LocationRequired, d.LocationRequired)
	fill(&r.InvalidLocation, d.InvalidLocation)
	fill(&r.AskPhoto, d.AskPhoto)
	fill(&r.PhotoRequired, d.PhotoRequired)
	fill(&r.ImageRequired, d.ImageRequired)
	fill(&r.RetryPhoto, d.RetryPhoto)
	fill(&r.Success, d.Success)
	fill(&r.Failure, d.Failure)
	return r
}
