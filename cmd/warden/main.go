package main

import (
	"os"
	"os/signal"

	_ "net/http/pprof"

	"github.com/glotchimo/warden/internal/bot"
	"github.com/glotchimo/warden/internal/config"
	"github.com/joho/godotenv"
)

var VERSION = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		panic(err)
	}

	conf, err := config.Load()
	if err != nil {
		panic(err)
	}

	bot, err := bot.NewBot(conf)
	if err != nil {
		panic(err)
	}
	defer bot.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
}
