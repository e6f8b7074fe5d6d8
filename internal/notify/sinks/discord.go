package sinks

import "github.com/bwmarrin/discordgo"

// Discord posts a plain message to a fixed channel over an already-open
// session (the transport adapter owns the session lifecycle; this sink
// only sends).
type Discord struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscord builds a sink over an existing bot session.
func NewDiscord(session *discordgo.Session, channelID string) *Discord {
	return &Discord{session: session, channelID: channelID}
}

func (d *Discord) Send(message string) error {
	_, err := d.session.ChannelMessageSend(d.channelID, message)
	return err
}
