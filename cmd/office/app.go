package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"agent_office/internal/assets"
	"agent_office/internal/clock"
	"agent_office/internal/config"
	"agent_office/internal/controller"
	"agent_office/internal/domain"
	"agent_office/internal/feed"
	"agent_office/internal/i18n"
	"agent_office/internal/render"
)

func run(parent context.Context, cfg config.Config, locale string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, closeLog, err := openLog(cfg.Viewer.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	client := feed.New(cfg.Viewer.ServerAddr)
	if err := client.WaitHealth(ctx, 10*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "officed at %s is not answering, will keep polling: %v\n", client.BaseURL(), err)
		logger.Printf("health check failed: %v", err)
	}

	app := tview.NewApplication()
	catalog := i18n.Default()

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")

	var lastSnap domain.Snapshot
	setStatusUI := func(msg string) {
		statusView.SetText(fmt.Sprintf(
			"%s | %d depts, %d agents | %s | F10 quit, Tab locale",
			client.BaseURL(),
			len(lastSnap.Departments),
			len(lastSnap.Agents),
			msg,
		))
	}

	ctrl := controller.New(controller.Options{
		Config:  cfg.Scene,
		Clock:   clock.Real(),
		Catalog: catalog,
		Post: func(f func()) {
			app.QueueUpdateDraw(f)
		},
		Logger: logger,
		Callbacks: controller.Callbacks{
			OnAgentSelected: func(agentID string) {
				setStatusUI("agent " + agentName(lastSnap, agentID))
			},
			OnDepartmentSelected: func(departmentID string) {
				setStatusUI("department " + departmentName(lastSnap, departmentID))
			},
			OnEventProcessed: func(eventID string) {
				go func() {
					if err := client.Resolve(ctx, eventID); err != nil {
						logger.Printf("resolve event %s: %v", eventID, err)
					}
				}()
			},
		},
	})
	if locale != "" {
		ctrl.SetLocale(locale)
	}

	view := render.NewOfficeView(ctrl, cfg.Viewer.CellWidth, cfg.Viewer.CellHeight)
	view.SetBorder(true).SetTitle("Office (arrows/WASD move, Enter interact, click select)")

	localeInput := tview.NewInputField().
		SetLabel("Locale: ").
		SetText(locale).
		SetFieldWidth(12)
	localeInput.SetBorder(true).SetTitle("Enter = apply")
	localeInput.SetFocusFunc(func() { ctrl.SetTextEntryFocus(true) })
	localeInput.SetBlurFunc(func() { ctrl.SetTextEntryFocus(false) })
	localeInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			want := strings.TrimSpace(localeInput.GetText())
			ctrl.SetLocale(want)
			setStatusUI("locale " + catalog.Match(want))
		}
		app.SetFocus(view)
	})

	bottom := tview.NewFlex().
		AddItem(statusView, 0, 1, false).
		AddItem(localeInput, 28, 0, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(view, 0, 1, true).
		AddItem(bottom, 3, 0, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyTAB:
			if app.GetFocus() == localeInput {
				app.SetFocus(view)
			} else {
				app.SetFocus(localeInput)
			}
			return nil
		case tcell.KeyEscape:
			app.SetFocus(view)
			return nil
		}
		return event
	})

	go loadAssets(ctx, app, ctrl, cfg, logger)

	watcher := &feed.Watcher{
		Client:       client,
		Locale:       locale,
		PollInterval: cfg.Viewer.PollInterval.Duration,
		Logger:       logger,
		OnSnapshot: func(snap domain.Snapshot) {
			app.QueueUpdateDraw(func() {
				lastSnap = snap
				ctrl.Update(snap)
				setStatusUI(fmt.Sprintf("v%d", snap.Version))
			})
		},
	}
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("watcher stopped: %v", err)
		}
	}()

	go frames(ctx, app, ctrl, cfg.Viewer.FPS)

	go func() {
		<-ctx.Done()
		app.Stop()
	}()

	setStatusUI("connecting")
	err = app.SetRoot(root, true).EnableMouse(true).SetFocus(view).Run()
	cancel()
	ctrl.Unmount()
	if err != nil {
		return fmt.Errorf("office viewer: %w", err)
	}
	return nil
}

func frames(ctx context.Context, app *tview.Application, ctrl *controller.Controller, fps int) {
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			app.QueueUpdateDraw(func() {
				ctrl.Frame(now)
			})
		}
	}
}

// loadAssets settles the whole sprite batch before the first scene is built.
func loadAssets(ctx context.Context, app *tview.Application, ctrl *controller.Controller, cfg config.Config, logger *log.Logger) {
	var fetcher assets.Fetcher = assets.Embedded()
	switch {
	case cfg.Viewer.RemoteAssets:
		fetcher = &assets.HTTPFetcher{BaseURL: cfg.Viewer.ServerAddr}
	case cfg.Viewer.AssetsDir != "":
		fetcher = &assets.FSFetcher{FS: os.DirFS(cfg.Viewer.AssetsDir)}
	}
	loader := &assets.Loader{
		Fetcher:     fetcher,
		SpriteCount: cfg.Scene.SpriteCount,
		Parallel:    8,
	}
	res := loader.Load(ctx)
	if ctx.Err() != nil {
		return
	}
	if len(res.Failed) > 0 {
		logger.Printf("assets: %d of %d failed: %s", len(res.Failed), res.Registry.Len()+len(res.Failed), strings.Join(res.Failed, ", "))
	}
	app.QueueUpdateDraw(func() {
		ctrl.AttachAssets(res.Registry)
	})
}

// openLog sends logs to a file; the terminal belongs to tview.
func openLog(path string) (*log.Logger, func(), error) {
	if strings.TrimSpace(path) == "" {
		return log.New(os.Stderr, "", 0), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return log.New(f, "office ", log.LstdFlags), func() { _ = f.Close() }, nil
}

func agentName(snap domain.Snapshot, id string) string {
	for _, a := range snap.Agents {
		if a.ID == id {
			return a.Name
		}
	}
	return id
}

func departmentName(snap domain.Snapshot, id string) string {
	for _, d := range snap.Departments {
		if d.ID == id {
			return d.Name
		}
	}
	return id
}
