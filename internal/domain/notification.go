package domain

// ChannelType represents a notification delivery channel.
type ChannelType string

// Channel types.
const (
	ChannelTypeEmail      ChannelType = "email"
	ChannelTypeTelegram   ChannelType = "telegram"
	ChannelTypeMattermost ChannelType = "mattermost"
	ChannelTypeKafka      ChannelType = "kafka"
)

// IsValid checks if the channel type is valid.
func (t ChannelType) IsValid() bool {
	switch t {
	case ChannelTypeEmail, ChannelTypeTelegram, ChannelTypeMattermost, ChannelTypeKafka:
		return true
	}
	return false
}

// NotificationChannel is a configured destination for SLA notices.
type NotificationChannel struct {
	Type   ChannelType `json:"type" koanf:"type"`
	Target string      `json:"target" koanf:"target"`
}
