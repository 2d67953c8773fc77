// MacroPad - a 12-key macro pad that follows the host's focused application.
// The default mode runs the pad in the terminal; -companion runs the host side.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"macropad/internal/api"
	"macropad/internal/autostart"
	"macropad/internal/config"
	"macropad/internal/embedded"
	"macropad/internal/input"
	"macropad/internal/link"
	"macropad/internal/profile"
	"macropad/internal/protocol"
	"macropad/internal/simulator"
	"macropad/internal/switcher"
	"macropad/internal/tray"
)

const (
	// linkReadTimeout lets the device link expire partial messages while the host is silent.
	linkReadTimeout   = 50 * time.Millisecond
	linkRetryInterval = 2 * time.Second
	redrawInterval    = 30 * time.Millisecond
)

var (
	version    = "0.1.0"
	configPath = flag.String("config", "", "Path to the configuration file")
	showVer    = flag.Bool("version", false, "Show version")
	listPorts  = flag.Bool("list", false, "List serial ports")
	companion  = flag.Bool("companion", false, "Run the host companion")
	install    = flag.Bool("install", false, "Start the companion on login")
	uninstall  = flag.Bool("uninstall", false, "Stop starting the companion on login")
	watch      = flag.Bool("watch", false, "Print events from a running device's API")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("macropad version %s\n", version)
		return
	}

	cfgMgr, err := newConfigManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	switch {
	case *listPorts:
		printPorts()
	case *install:
		setAutostart(cfgMgr, true)
	case *uninstall:
		setAutostart(cfgMgr, false)
	case *companion:
		runCompanion(cfgMgr)
	case *watch:
		runWatch(cfgMgr)
	default:
		runDevice(cfgMgr)
	}
}

func newConfigManager() (*config.Manager, error) {
	if *configPath != "" {
		return config.NewManagerWithPath(*configPath), nil
	}
	return config.NewManager()
}

func printPorts() {
	ports, err := link.ListPorts()
	if err != nil {
		log.Fatalf("Failed to list serial ports: %v", err)
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return
	}

	fmt.Println("Serial Ports:")
	fmt.Println("-------------")
	for _, p := range ports {
		fmt.Printf("%s\n", p.Name)
		if p.IsUSB {
			fmt.Printf("  USB: %s:%s", p.VID, p.PID)
			if p.SerialNumber != "" {
				fmt.Printf(" serial %s", p.SerialNumber)
			}
			fmt.Println()
		}
		if p.Product != "" {
			fmt.Printf("  Product: %s\n", p.Product)
		}
	}
}

func setAutostart(cfgMgr *config.Manager, enable bool) {
	var err error
	if enable {
		err = autostart.Enable()
	} else {
		err = autostart.Disable()
	}
	if err != nil {
		log.Fatalf("Failed to update login item: %v", err)
	}

	cfg := cfgMgr.Get()
	cfg.Companion.StartOnBoot = enable
	cfgMgr.Set(cfg)
	if err := cfgMgr.Save(); err != nil {
		log.Printf("Failed to save config: %v", err)
	}
	fmt.Printf("Companion auto-start enabled: %v\n", enable)
}

// loadProfiles seeds and reads the macro folder, falling back to the bundled
// profiles when the folder is unusable.
func loadProfiles(cfgMgr *config.Manager) *profile.Registry {
	reg := profile.NewRegistry()
	folder := cfgMgr.MacroFolder()

	if _, err := embedded.Seed(folder); err != nil {
		log.Printf("Profiles: Failed to seed %s: %v", folder, err)
	}
	n, err := profile.Load(os.DirFS(folder), reg)
	if err != nil {
		log.Printf("Profiles: Failed to read %s: %v", folder, err)
	}
	if n == 0 {
		log.Printf("Profiles: No profiles in %s, using bundled profiles", folder)
		if _, err := profile.Load(embedded.FS(), reg); err != nil {
			log.Printf("Profiles: Failed to load bundled profiles: %v", err)
		}
	}
	log.Printf("Profiles: %d loaded", reg.Len())
	return reg
}

func newOutput(kind string) (input.Output, func()) {
	if kind == config.OutputUinput {
		inj, err := input.NewInjector()
		if err == nil {
			return inj, func() { inj.Close() }
		}
		log.Printf("Output: Falling back to log output: %v", err)
	}
	return input.LogOutput{}, func() {}
}

func switcherOptions(cfg config.DeviceConfig) switcher.Options {
	opts := switcher.DefaultOptions()
	if d := cfg.SwitchTimeout.Std(); d > 0 {
		opts.SwitchTimeout = d
	}
	if d := cfg.PollInterval.Std(); d > 0 {
		opts.PollInterval = d
	}
	if d := cfg.IdleColorInterval.Std(); d > 0 {
		opts.AnimationInterval = d
	}
	if d := cfg.UpdateInterval.Std(); d > 0 {
		opts.UpdateInterval = d
	}
	if cfg.DefaultApp != "" {
		key, err := profile.ParseKey(cfg.DefaultApp)
		if err != nil {
			log.Printf("Config: Ignoring default_app: %v", err)
		} else {
			opts.DefaultApp = key
		}
	}
	return opts
}

func runDevice(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()

	// The terminal belongs to the simulator, so the log goes to a file.
	logPath := filepath.Join(filepath.Dir(cfgMgr.Path()), "macropad.log")
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		log.SetOutput(f)
		defer f.Close()
	} else {
		log.Printf("Warning: logging to stderr: %v", err)
	}
	log.Printf("MacroPad %s starting...", version)

	reg := loadProfiles(cfgMgr)
	out, closeOutput := newOutput(cfg.Device.KeyOutput)
	defer closeOutput()

	pad, err := simulator.NewTerminal()
	if err != nil {
		log.Fatalf("Failed to open terminal: %v", err)
	}
	defer pad.Close()

	sw := switcher.New(reg, pad, out, switcherOptions(cfg.Device))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Device.SerialPort != "" {
		go runDeviceLink(ctx, cfg.Device, sw)
	}

	if cfg.API.Enabled {
		apiServer := api.NewServer(cfgMgr, sw)
		sw.SetOnModeChange(apiServer.ModeChanged)
		sw.SetOnAppLoad(apiServer.AppLoaded)
		sw.SetOnFocus(apiServer.FocusReported)
		go reloadOnHangup(ctx, cfgMgr)
		go func() {
			if err := apiServer.Start(ctx, cfg.API.Port); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	go func() {
		if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Switcher: Stopped: %v", err)
		}
	}()

	if err := pad.Run(ctx, redrawInterval); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Simulator: %v", err)
	}
	stop()
	log.Println("MacroPad stopped")
}

// runDeviceLink serves the host link, detaching it from the switcher while the
// port is down.
func runDeviceLink(ctx context.Context, cfg config.DeviceConfig, sw *switcher.Switcher) {
	open := func() (link.Port, error) {
		return link.OpenPort(cfg.SerialPort, cfg.BaudRate, linkReadTimeout)
	}
	attach := func(dl *link.DeviceLink) {
		if dl == nil {
			sw.SetUpdateRequester(nil)
			return
		}
		sw.SetUpdateRequester(dl)
	}
	if err := link.ServeDevice(ctx, open, sw.HandleInbound, attach, linkRetryInterval); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Link: Stopped: %v", err)
	}
}

// reloadOnHangup reloads the config file on SIGHUP.
func reloadOnHangup(ctx context.Context, cfgMgr *config.Manager) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := cfgMgr.Load(); err != nil {
				log.Printf("Config: Reload failed: %v", err)
				continue
			}
			log.Printf("Config: Reloaded %s", cfgMgr.Path())
		}
	}
}

func runCompanion(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get().Companion
	log.Printf("MacroPad companion %s starting...", version)

	if cfg.StartOnBoot && !autostart.IsEnabled() {
		if err := autostart.Enable(); err != nil {
			log.Printf("Warning: failed to enable auto-start: %v", err)
		}
	}

	c := link.NewCompanion(link.CompanionOptions{
		PortName:          cfg.SerialPort,
		PortPrefix:        cfg.PortPrefix,
		BaudRate:          cfg.BaudRate,
		PollInterval:      cfg.PollInterval.Std(),
		ReconnectInterval: cfg.ReconnectInterval.Std(),
		IdleAfter:         cfg.IdleAfter.Std(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Tray {
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Companion: %v", err)
		}
		return
	}

	t := tray.New("MacroPad", "MacroPad companion")
	statusID := t.AddStatusItem(tray.StatusLine(c.Status()))
	t.AddSeparator()
	t.AddMenuItem("Resend focus", c.ResendFocus)
	t.AddMenuItem("Quit", func() {
		stop()
	})
	c.SetOnStatus(func(st link.Status) {
		line := tray.StatusLine(st)
		t.SetItemTitle(statusID, line)
		t.SetTooltip(line)
	})

	go func() {
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Companion: %v", err)
		}
		t.Stop()
	}()
	t.Run()
	log.Println("MacroPad companion stopped")
}

func runWatch(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get().API
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := api.NewClient(fmt.Sprintf("127.0.0.1:%d", cfg.Port), cfg.Token)
	c.OnMessage = func(msg protocol.Message) {
		payload, _ := json.Marshal(msg.Payload)
		fmt.Printf("%s %s %s\n", time.Now().Format("15:04:05.000"), msg.Type, payload)
	}
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Watch: %v", err)
	}
}
