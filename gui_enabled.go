//go:build gui

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"skinscan/auth"
	"skinscan/gui"
	"skinscan/log"
	"skinscan/shutdown"
)

// The fyne event loop must own the main OS thread.
func init() {
	runtime.LockOSThread()
}

func runGUI(d *deps) int {
	_, signedIn := d.auth.CurrentUser()
	win := gui.NewApp(gui.Options{
		Title:    "skinscan " + version,
		Previews: d.previews,
		SignedIn: signedIn,
		SignIn: func(token string) (string, error) {
			u, err := auth.FromToken(token, d.cfg.TokenSecret)
			if err != nil {
				return "", err
			}
			d.auth.SignIn(u)
			log.Infof("signed in as %s", u.Display())
			return u.Display(), nil
		},
		SignOut: d.auth.SignOut,
	})
	sess := d.newSession(win, win)
	win.Bind(sess)

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	go func() {
		<-ctx.Done()
		win.Quit()
	}()

	err := gui.Run(win)
	sess.Close()
	log.SessionEnd(sess.Scans())
	if err != nil {
		log.Errorf("GUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
