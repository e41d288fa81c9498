package main

import (
	"fmt"
	"os"

	"github.com/clanbot/clanbot/common"
	"github.com/mitchellh/cli"
)

func main() {
	app := cli.NewCLI("clanbot", common.VERSION)
	app.Args = os.Args[1:]

	app.Commands = map[string]cli.CommandFactory{
		"run":        StaticFactory(&RunCommand{}),
		"schema":     StaticFactory(&SchemaCommand{}),
		"configdocs": StaticFactory(&ConfigDocsCommand{}),
		"version":    StaticFactory(&VersionCommand{}),
		"setconfig":  StaticFactory(&SetConfigCommand{}),
	}

	exitStatus, err := app.Run()
	if err != nil {
		fmt.Println("Error: ", err)
	}

	os.Exit(exitStatus)
}

func StaticFactory(c cli.Command) cli.CommandFactory {
	return func() (cli.Command, error) {
		return c, nil
	}
}

type VersionCommand struct{}

func (v *VersionCommand) Help() string {
	return v.Synopsis()
}

func (v *VersionCommand) Synopsis() string {
	return "Print the version"
}

func (v *VersionCommand) Run(args []string) int {
	fmt.Println("clanbot", common.VERSION)
	return 0
}
