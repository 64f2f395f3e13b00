package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/veilmark/chronicle/internal/engine"
)

func runTurn(args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		stat, err := os.Stdin.Stat()
		if err == nil && stat.Mode()&os.ModeCharDevice == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = strings.TrimSpace(string(b))
		}
	}
	if text == "" {
		return fmt.Errorf("usage: chronicle turn <text> (or pipe text on stdin)")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.engine.Turn(context.Background(), text)
	if err != nil {
		return fmt.Errorf("processing turn: %w", err)
	}
	printReport(rep)
	return nil
}

func printReport(rep *engine.TurnReport) {
	fmt.Printf("Turn %d: %d accepted, %d rejected\n", rep.Turn, len(rep.Entities), rep.Rejections)
	for _, ent := range rep.Entities {
		marker := ""
		if ent.New {
			marker = "  new"
		}
		fmt.Printf("  %-24s %-8s score %.2f  seen %d%s\n", ent.Name, ent.Type, ent.Score, ent.Occurrences, marker)
	}
	for _, m := range rep.Merges {
		fmt.Printf("  merged %s\n", m)
	}
	for _, p := range rep.Promotions {
		fmt.Printf("  promoted %s\n", p)
	}
	if rep.Pronouns > 0 || rep.Relations > 0 {
		fmt.Printf("  %d pronoun(s) resolved, %d relation(s) recorded\n", rep.Pronouns, rep.Relations)
	}
	if rep.BlacklistWrites > 0 {
		fmt.Printf("  %d blacklist entr(ies) written\n", rep.BlacklistWrites)
	}
}

func runSlash(args []string) error {
	line := strings.TrimSpace(strings.Join(args, " "))
	if line == "" {
		return fmt.Errorf("usage: chronicle command </command ...> (try /help)")
	}
	if !strings.HasPrefix(line, "/") {
		return fmt.Errorf("not a slash command: %s (try /help)", line)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reply, handled := a.engine.Command(context.Background(), line)
	if !handled {
		return fmt.Errorf("not a slash command: %s (try /help)", line)
	}
	fmt.Println(reply)
	return nil
}

// throughCommand opens the engine and routes one slash command line,
// converting "Error: ..." replies into proper errors for the CLI.
func throughCommand(line string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reply, handled := a.engine.Command(context.Background(), line)
	if !handled {
		return fmt.Errorf("unhandled command: %s", line)
	}
	if strings.HasPrefix(reply, "Error: ") {
		return fmt.Errorf("%s", strings.TrimPrefix(reply, "Error: "))
	}
	fmt.Println(reply)
	return nil
}
