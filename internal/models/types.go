package models

type Table string

const (
	TableGuilds   Table = "guilds"
	TableWarnings Table = "warnings"
)
