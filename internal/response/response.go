package response

import (
	"fmt"
	"log/slog"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/utils"
)

type MessageOptions struct {
	Content    string
	Embeds     []*dg.MessageEmbed
	Components []dg.MessageComponent
	Ephemeral  bool
}

type Responder struct {
	s *dg.Session
	l *slog.Logger
}

func NewSessionResponder(s *dg.Session, l *slog.Logger) *Responder {
	return &Responder{s: s, l: l}
}

func (r *Responder) Defer(i *dg.InteractionCreate, ephemeral bool) error {
	resp := &dg.InteractionResponse{
		Type: dg.InteractionResponseDeferredChannelMessageWithSource,
	}
	if ephemeral {
		resp.Data = &dg.InteractionResponseData{Flags: dg.MessageFlagsEphemeral}
	}

	return r.s.InteractionRespond(i.Interaction, resp)
}

func (r *Responder) Send(i *dg.InteractionCreate, opts MessageOptions) error {
	params := &dg.WebhookParams{
		Content:    opts.Content,
		Embeds:     opts.Embeds,
		Components: opts.Components,
	}

	if opts.Ephemeral {
		params.Flags = dg.MessageFlagsEphemeral
	}

	_, err := r.s.FollowupMessageCreate(i.Interaction, true, params)
	return err
}

func (r *Responder) Fail(i *dg.InteractionCreate, ctx utils.Failure) error {
	r.l.Warn("handler failure", "type", ctx.Type, "message", ctx.Message, "data", ctx.Data)

	var title, description string
	var color int
	switch ctx.Type {
	case utils.ErrInternal:
		detail, ok := ctx.Data["error"]
		if !ok {
			detail = "An unexpected error occurred."
		}

		str, ok := detail.(string)
		if !ok {
			str = fmt.Sprintf("%v", detail)
		}

		title = "Internal Error"
		description = fmt.Sprintf("%s\n\n```%s```", ctx.Message, str)
		color = 0xFF0000

	case utils.ErrBadInput:
		title = "Invalid Input"
		description = fmt.Sprintf("%s\n\nDouble-check your input and try again.", ctx.Message)
		color = 0xFFA500

	case utils.ErrNotAllowed:
		title = "Permission Denied"
		description = ctx.Message
		color = 0xFF0000

	case utils.ErrNotFound:
		title = "Not Found"
		description = ctx.Message
		color = 0xFFA500
	}

	embed := &dg.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
	}

	_, err := r.s.FollowupMessageCreate(i.Interaction, true, &dg.WebhookParams{
		Embeds: []*dg.MessageEmbed{embed},
	})
	return err
}
