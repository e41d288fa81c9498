package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/clanbot/clanbot/common/backgroundworkers"
)

var logger = common.GetPluginLogger(&Plugin{})

// Plugin runs the reminder scanner on a ticker
type Plugin struct {
	Scanner  *Scanner
	Interval time.Duration

	stopWorker chan *sync.WaitGroup
	now        func() time.Time
}

func NewPlugin(scanner *Scanner, interval time.Duration) *Plugin {
	return &Plugin{
		Scanner:    scanner,
		Interval:   interval,
		stopWorker: make(chan *sync.WaitGroup),
		now:        time.Now,
	}
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Reminders",
		SysName:  "reminders",
		Category: common.PluginCategoryEvents,
	}
}

var _ backgroundworkers.BackgroundWorkerPlugin = (*Plugin)(nil)

// RunBackgroundWorker implements backgroundworkers.BackgroundWorkerPlugin
func (p *Plugin) RunBackgroundWorker() {
	logger.Infof("started reminder scanner, interval %s, lead %s +/- %s", p.Interval, p.Scanner.Lead, p.Scanner.Window)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		p.runScan()

		select {
		case <-ticker.C:
		case wg := <-p.stopWorker:
			wg.Done()
			return
		}
	}
}

// StopBackgroundWorker implements backgroundworkers.BackgroundWorkerPlugin
func (p *Plugin) StopBackgroundWorker(wg *sync.WaitGroup) {
	p.stopWorker <- wg
}

func (p *Plugin) runScan() {
	ctx, cancel := context.WithTimeout(context.Background(), p.Interval)
	defer cancel()

	started := time.Now()
	report := p.Scanner.Scan(ctx, p.now())
	if report.Sent > 0 || report.Failed > 0 {
		logger.Infof("reminder scan done in %s: %d guilds, %d sent, %d skipped, %d failed",
			time.Since(started), report.Guilds, report.Sent, report.Skipped, report.Failed)
	}
}
