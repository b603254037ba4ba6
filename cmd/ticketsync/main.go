package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ticketsync",
		Usage: "Keep a local view of your support tickets in sync with the desk",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Access token (overrides SUPPORT_ACCESS_TOKEN)",
				EnvVars: []string{"SUPPORT_ACCESS_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Desk API base URL (overrides SUPPORT_API_URL)",
			},
		},
		Commands: []*cli.Command{
			watchCommand(),
			listCommand(),
			showCommand(),
			createCommand(),
			replyCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
