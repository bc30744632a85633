package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"

	"github.com/starford/jotpad/internal"
	"github.com/starford/jotpad/internal/apperr"
	"github.com/starford/jotpad/internal/models"
	"github.com/starford/jotpad/internal/session"
)

// withApp opens the store described by the config flag, runs fn and closes
// the store again, flushing anything fn left pending. configure, if set,
// adjusts the loaded config first.
func withApp(ctx context.Context, cmd *cli.Command, configure func(*internal.Config), fn func(*internal.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if configure != nil {
		configure(cfg)
	}
	a, err := internal.Open(ctx, internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	return errors.Join(fn(a), a.Close(ctx))
}

// noteRows renders the note list as a table, marking the active note.
func noteRows(items []models.ListItem) pterm.TableData {
	rows := pterm.TableData{{"", "ID", "Title", "Preview"}}
	return append(rows, lo.Map(items, func(it models.ListItem, _ int) []string {
		marker := ""
		if it.Active {
			marker = "*"
		}
		return []string{marker, it.ID, it.Title, it.Preview}
	})...)
}

func listNotes(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, nil, func(a *internal.App) error {
		items := a.Session.List()
		_ = pterm.DefaultTable.WithHasHeader().WithData(noteRows(items)).Render()
		return nil
	})
}

func addNote(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, nil, func(a *internal.App) error {
		n, err := a.Session.AddNote(ctx)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Added note %s\n", n.ID)
		return nil
	})
}

// confirmPrompt asks on the terminal.
func confirmPrompt(msg string) bool {
	pterm.DefaultInteractiveConfirm.DefaultText = msg
	ok, _ := pterm.DefaultInteractiveConfirm.Show()
	return ok
}

func deleteNote(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, nil, func(a *internal.App) error {
		var confirm session.Confirmer = confirmPrompt
		if cmd.Bool("yes") {
			confirm = session.Always
		}
		deleted, _ := a.Session.CurrentNote()
		only := len(a.Session.Notes()) == 1
		err := a.Session.DeleteCurrentNote(ctx, confirm)
		if errors.Is(err, apperr.ErrNotConfirmed) {
			pterm.Info.Println("Deletion cancelled")
			return nil
		}
		if err != nil {
			return err
		}
		if only {
			pterm.Success.Println("Cleared the only note")
			return nil
		}
		pterm.Success.Printf("Deleted note %s\n", deleted.ID)
		return nil
	})
}

func exportNote(ctx context.Context, cmd *cli.Command) error {
	configure := func(cfg *internal.Config) {
		if out := cmd.String("out"); out != "" {
			cfg.Export.Dir = out
		}
	}
	return withApp(ctx, cmd, configure, func(a *internal.App) error {
		path, err := a.ExportCurrent()
		if err != nil {
			return err
		}
		pterm.Success.Printf("Exported %s\n", path)
		return nil
	})
}

func themeCmd(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, nil, func(a *internal.App) error {
		value := cmd.Args().First()
		if value == "" {
			pterm.Println(string(a.Theme.Current()))
			return nil
		}
		if err := a.SetTheme(ctx, models.Theme(value)); err != nil {
			return fmt.Errorf("set theme: %w", err)
		}
		pterm.Success.Printf("Theme set to %s\n", value)
		return nil
	})
}
