package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"dice-drop-bot/internal/common/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("dicebot exited")
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "dicebot"
	app.Usage = "Discord dice drop and collect bot"
	app.Action = cli.ShowAppHelp
	app.Commands = []*cli.Command{
		{
			Action:      runBot,
			Name:        "run",
			Usage:       "Connect to Discord and start dropping dice",
			Category:    "Bot",
			Description: `Opens the store, connects the gateway, starts the drop scheduler and the status API.`,
		},
		{
			Action:   exportDocument,
			Name:     "export",
			Usage:    "Write the stored document to a file",
			Category: "Data",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "out", Usage: "destination path; a .zst suffix compresses", Required: true},
				&cli.StringFlag{Name: "from", Usage: "store backend to read; defaults to STORE_BACKEND"},
			},
		},
		{
			Action:   migrateDocument,
			Name:     "migrate",
			Usage:    "Copy the document between store backends",
			Category: "Data",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "from", Usage: "source backend (file, redis, sqlite)"},
				&cli.StringFlag{Name: "in", Usage: "source export file, used instead of --from"},
				&cli.StringFlag{Name: "to", Usage: "destination backend", Required: true},
			},
		},
	}
	return app
}
