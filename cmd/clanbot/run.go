package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/clanbot/clanbot/bot"
	"github.com/clanbot/clanbot/commands"
	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/common/backgroundworkers"
	"github.com/clanbot/clanbot/common/config"
	"github.com/jedib0t/go-pretty/table"
	"github.com/mediocregopher/radix/v3"
)

const schemaInitTimeout = 2 * time.Minute

// setupCore loads the config, sets up logging and connects to the database, the returned func flushes the logs
func setupCore() (*common.Core, func(), error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	flush := common.SetupLogging(common.LogOptions{
		LogFile:   conf.LogFile,
		SentryDSN: conf.SentryDSN,
		Debug:     conf.Debug,
		Version:   common.VERSION,
	})

	core, err := common.Connect(context.Background(), conf)
	if err != nil {
		flush()
		return nil, nil, err
	}

	return core, flush, nil
}

func initSchemas(core *common.Core, plugins *common.PluginSet) error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaInitTimeout)
	defer cancel()

	return core.Schemas().InitAll(ctx, plugins.Schemas()...)
}

type RunCommand struct{}

func (r *RunCommand) Help() string {
	return `Usage: clanbot run

  Connects to discord, initializes the database schemas and runs the bot and its
  reminder worker until interrupted. See "clanbot configdocs" for the options.`
}

func (r *RunCommand) Synopsis() string {
	return "Run the bot"
}

func (r *RunCommand) Run(args []string) int {
	core, flush, err := setupCore()
	if err != nil {
		fmt.Println("Error: ", err)
		return 1
	}
	defer flush()
	defer core.Close()

	if err := core.Conf.RequireBotToken(); err != nil {
		logger.WithError(err).Error("Missing configuration")
		return 1
	}

	session, err := bot.NewSession(core.Conf.BotToken)
	if err != nil {
		logger.WithError(err).Error("Failed initializing discord session")
		return 1
	}

	s := newStores(core)
	plugins := buildPlugins(core, s, session)

	if err := initSchemas(core, plugins); err != nil {
		logger.WithError(err).Error("Failed initializing database schemas")
		return 1
	}

	system := commands.NewSystem(session, bot.NewOfficerResolver(session, core.Conf.OfficerRoles), s.guilds)
	system.AddProviders(plugins)

	session.AddHandler(system.HandleInteractionCreate)
	session.AddHandler(func(_ *discordgo.Session, ready *discordgo.Ready) {
		logger.Infof("Connected as %s#%s in %d guilds", ready.User.Username, ready.User.Discriminator, len(ready.Guilds))
		if err := system.RegisterApplicationCommands(ready.User.ID, core.Conf.DevGuild); err != nil {
			logger.WithError(err).Error("Failed registering slash commands")
		}
	})

	if err := session.Open(); err != nil {
		logger.WithError(err).Error("Failed connecting to discord")
		return 1
	}

	runner := backgroundworkers.NewRunner(plugins, core.Conf.BGWorkerHTTPAddr)
	runner.RunWorkers()

	logger.Info("clanbot ", common.VERSION, " is running")
	listenSignal()

	logger.Info("SHUTTING DOWN... ")
	wg := new(sync.WaitGroup)
	runner.StopWorkers(wg)

	logger.Info("Waiting for things to shut down...")
	wg.Wait()

	if err := session.Close(); err != nil {
		logger.WithError(err).Error("Failed closing discord session")
	}

	logger.Info("Bye..")
	return 0
}

func listenSignal() {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

type SchemaCommand struct{}

func (sc *SchemaCommand) Help() string {
	return `Usage: clanbot schema

  Creates the database tables and indexes that don't exist yet and exits.
  Safe to run against an already initialized database.`
}

func (sc *SchemaCommand) Synopsis() string {
	return "Initialize the database schemas"
}

func (sc *SchemaCommand) Run(args []string) int {
	core, flush, err := setupCore()
	if err != nil {
		fmt.Println("Error: ", err)
		return 1
	}
	defer flush()
	defer core.Close()

	plugins := buildPlugins(core, newStores(core), nil)
	if err := initSchemas(core, plugins); err != nil {
		logger.WithError(err).Error("Failed initializing database schemas")
		return 1
	}

	for _, s := range plugins.Schemas() {
		logger.Infof("Schema %s: %d statements", s.Name, len(s.Schemas))
	}

	return 0
}

type ConfigDocsCommand struct{}

func (c *ConfigDocsCommand) Help() string {
	return `Usage: clanbot configdocs

  Prints every configuration option with its environment variable and default.
  Options can also be set in a .env file or in the clanbot_config redis hash,
  using the option name without the "clanbot." prefix as the hash field.`
}

func (c *ConfigDocsCommand) Synopsis() string {
	return "List the configuration options"
}

func (c *ConfigDocsCommand) Run(args []string) int {
	manager := config.NewConfigManager()
	common.RegisterOptions(manager)

	tb := table.NewWriter()
	tb.AppendHeader(table.Row{"name", "env", "default", "description"})
	for _, opt := range manager.Sorted() {
		def := ""
		if opt.DefaultValue != nil {
			def = fmt.Sprint(opt.DefaultValue)
		}
		tb.AppendRow(table.Row{opt.Name, opt.EnvName(), def, opt.Description})
	}

	fmt.Println(tb.Render())
	return 0
}

type SetConfigCommand struct{}

func (c *SetConfigCommand) Help() string {
	return `Usage: clanbot setconfig <name> <value>

  Stores an option override in the clanbot_config redis hash, it's picked up the next
  time the bot starts. An empty value removes the override. Requires clanbot.redis
  to be set. Example:

    clanbot setconfig clanbot.reminder_lead 30m`
}

func (c *SetConfigCommand) Synopsis() string {
	return "Store a configuration override in redis"
}

func (c *SetConfigCommand) Run(args []string) int {
	if len(args) != 2 {
		fmt.Println(c.Help())
		return 1
	}

	manager := config.NewConfigManager()
	common.RegisterOptions(manager)

	name := args[0]
	if !strings.HasPrefix(name, "clanbot.") {
		name = "clanbot." + name
	}

	if _, ok := manager.Options[name]; !ok {
		fmt.Printf("Error: unknown option %q, see clanbot configdocs\n", args[0])
		return 1
	}

	conf, err := loadConfig()
	if err != nil {
		fmt.Println("Error: ", err)
		return 1
	}

	if conf.Redis == "" {
		fmt.Println("Error: clanbot.redis (CLANBOT_REDIS) is not set")
		return 1
	}

	pool, err := radix.NewPool("tcp", conf.Redis, 1)
	if err != nil {
		fmt.Println("Error: ", err)
		return 1
	}
	defer pool.Close()

	store := &config.RedisConfigStore{Pool: pool}
	if err := store.SaveValue(name, args[1]); err != nil {
		fmt.Println("Error: ", err)
		return 1
	}

	if args[1] == "" {
		fmt.Printf("Removed the override of %s\n", name)
	} else {
		fmt.Printf("Set %s\n", name)
	}
	return 0
}
