package discord

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/studentize/internal/discord"
)

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(_ context.Context) error {
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates)
	s.State.TrackVoice = true
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) JoinVoiceChannel(guildID, channelID string) (discordpkg.VoiceConnection, error) {
	if c.session == nil {
		return nil, fmt.Errorf("discord session is not initialized")
	}
	// mute=true: the bot only listens. deaf=false so audio is received.
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, true, false)
	if err != nil {
		return nil, err
	}
	return &voiceConnectionImpl{vc: vc}, nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	return err
}

func (c *Client) RegisterVoiceStateUpdateHandler(handler func(discordpkg.VoiceStateEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs == nil || vs.VoiceState == nil {
			return
		}
		beforeChannelID := ""
		if vs.BeforeUpdate != nil {
			beforeChannelID = vs.BeforeUpdate.ChannelID
		}
		afterChannelID := vs.ChannelID
		if beforeChannelID == afterChannelID {
			return
		}
		if vs.GuildID == "" || vs.UserID == "" {
			return
		}
		handler(discordpkg.VoiceStateEvent{
			GuildID:         vs.GuildID,
			UserID:          vs.UserID,
			UserIsBot:       c.resolveUserIsBot(vs.GuildID, vs.UserID, vs.VoiceState),
			BeforeChannelID: beforeChannelID,
			AfterChannelID:  afterChannelID,
		})
	})
}

func (c *Client) ListVoiceChannelParticipants(guildID, channelID string) ([]discordpkg.VoiceParticipant, error) {
	if c.session == nil || c.session.State == nil {
		return nil, nil
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return nil, nil
	}
	participants := make([]discordpkg.VoiceParticipant, 0)
	seen := make(map[string]struct{})
	for _, state := range guild.VoiceStates {
		if state == nil || state.ChannelID != channelID || state.UserID == "" {
			continue
		}
		if _, exists := seen[state.UserID]; exists {
			continue
		}
		seen[state.UserID] = struct{}{}
		participants = append(participants, discordpkg.VoiceParticipant{
			UserID: state.UserID,
			IsBot:  c.resolveUserIsBot(guildID, state.UserID, state),
		})
	}
	return participants, nil
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) resolveUserIsBot(guildID, userID string, state *discordgo.VoiceState) bool {
	if isBot, ok := botFlagFromVoiceState(state); ok {
		return isBot
	}
	if isBot, ok := c.botFlagFromSessionState(guildID, userID); ok {
		return isBot
	}
	return c.botFlagFromUserAPI(userID)
}

func botFlagFromVoiceState(state *discordgo.VoiceState) (bool, bool) {
	if state != nil && state.Member != nil && state.Member.User != nil {
		return state.Member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromSessionState(guildID, userID string) (bool, bool) {
	if c.session == nil || c.session.State == nil {
		return false, false
	}
	if c.session.State.User != nil && c.session.State.User.ID == userID {
		return true, true
	}
	member, err := c.session.State.Member(guildID, userID)
	if err == nil && member != nil && member.User != nil {
		return member.User.Bot, true
	}
	return false, false
}

func (c *Client) botFlagFromUserAPI(userID string) bool {
	if c.session == nil {
		return false
	}
	u, err := c.session.User(userID)
	if err != nil {
		return false
	}
	return u.Bot
}

type voiceConnectionImpl struct {
	vc *discordgo.VoiceConnection
}

func (v *voiceConnectionImpl) Disconnect() error {
	return v.vc.Disconnect()
}

// ReceiveAudio blocks until the connection's receive channel closes.
func (v *voiceConnectionImpl) ReceiveAudio(callback func(userID string, opusPacket []byte)) {
	if v.vc.OpusRecv == nil {
		return
	}
	ssrcToUser := make(map[uint32]string)
	var mu sync.RWMutex
	v.vc.AddHandler(func(vc *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		mu.Lock()
		if vs.Speaking {
			ssrcToUser[uint32(vs.SSRC)] = vs.UserID
		}
		mu.Unlock()
	})
	for p := range v.vc.OpusRecv {
		if p == nil || len(p.Opus) == 0 {
			continue
		}
		mu.RLock()
		userID := ssrcToUser[p.SSRC]
		mu.RUnlock()
		if userID == "" {
			userID = strconv.FormatUint(uint64(p.SSRC), 10)
		}
		callback(userID, p.Opus)
	}
}
