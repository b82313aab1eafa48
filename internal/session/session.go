package session

import "time"

// Role identifies who authored a message
type Role string

const (
	RoleHuman     Role = "user"
	RoleAssistant Role = "assistant"
)

// Mode is the interaction flavour forwarded to the assistant service
type Mode string

const (
	ModeStandard     Mode = "standard"
	ModeVirtualTryOn Mode = "vto"
)

// ParseMode maps user input onto a Mode
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeStandard:
		return ModeStandard, true
	case ModeVirtualTryOn, "virtual-try-on", "tryon":
		return ModeVirtualTryOn, true
	}
	return "", false
}

// Message represents a single chat message
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Receipt   bool      `json:"receipt,omitempty"` // content is an unwrapped order receipt
	Timestamp time.Time `json:"timestamp"`
}

// Attachment is a file waiting to be sent with the next message
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}
