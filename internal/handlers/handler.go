package handlers

import (
	"context"
	"log/slog"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/config"
	"github.com/glotchimo/warden/internal/policy"
	rp "github.com/glotchimo/warden/internal/response"
	st "github.com/glotchimo/warden/internal/store"
)

type Dependencies struct {
	Session     *dg.Session
	Store       *st.GuildStore
	Warnings    *st.WarningLedger
	AutoMod     *policy.AutoMod
	AntiRaid    *policy.AntiRaid
	Port        policy.ActionPort
	Responder   *rp.Responder
	Logger      *slog.Logger
	Conf        config.Conf
	Interaction *dg.InteractionCreate
	Options     map[string]*dg.ApplicationCommandInteractionDataOption
}

type Handler interface {
	Metadata() dg.ApplicationCommand
	Handle(context.Context, Dependencies) error
}
