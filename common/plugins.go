package common

import (
	"github.com/sirupsen/logrus"
)

type PluginCategory struct {
	Name string
}

var (
	PluginCategoryCore       = &PluginCategory{Name: "Core"}
	PluginCategoryEvents     = &PluginCategory{Name: "Events"}
	PluginCategoryMembers    = &PluginCategory{Name: "Members"}
	PluginCategoryGovernance = &PluginCategory{Name: "Governance"}
)

type PluginInfo struct {
	Name     string // Human readable name of the plugin
	SysName  string // snake_case version of the name in lower case
	Category *PluginCategory
}

// Plugin represents a plugin, all plugins needs to implement this at a bare minimum
type Plugin interface {
	PluginInfo() *PluginInfo
}

// PluginWithSchemas is implemented by plugins that own database tables
type PluginWithSchemas interface {
	Plugin
	DBSchemas() []string
}

// PluginSet holds the plugins that make up a running bot
type PluginSet struct {
	Plugins []Plugin
}

// Register adds a plugin to the set, should be called when the bot is starting up
func (ps *PluginSet) Register(plugin Plugin) {
	ps.Plugins = append(ps.Plugins, plugin)
	logrus.Info("Registered plugin: " + plugin.PluginInfo().Name)
}

// Schemas returns the schemas of every registered plugin that has any, in registration order
func (ps *PluginSet) Schemas() []*DBSchema {
	var result []*DBSchema
	for _, p := range ps.Plugins {
		if ws, ok := p.(PluginWithSchemas); ok {
			result = append(result, &DBSchema{Name: p.PluginInfo().SysName, Schemas: ws.DBSchemas()})
		}
	}

	return result
}
