package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

func runEntities(args []string) error {
	line := "/entities"
	switch len(args) {
	case 0:
	case 1:
		line += " " + args[0]
	default:
		return fmt.Errorf("usage: chronicle entities [person|place|object|faction|unknown]")
	}
	return throughCommand(line)
}

func runEntity(args []string) error {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return fmt.Errorf("usage: chronicle entity <name>")
	}
	return throughCommand("/entity " + name)
}

func runLists(args []string) error {
	if len(args) == 0 {
		return throughCommand("/lists")
	}
	// With arguments this is the list view: show, add, remove.
	return throughCommand("/list " + strings.Join(args, " "))
}

func runCandidates(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: chronicle candidates [category]")
	}
	return throughCommand(strings.TrimSpace("/candidates " + strings.Join(args, " ")))
}

func runHistory(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: chronicle history [turns]")
	}
	return throughCommand(strings.TrimSpace("/history " + strings.Join(args, " ")))
}

func runStats(args []string) error {
	asJSON := false
	for _, arg := range args {
		switch arg {
		case "--json":
			asJSON = true
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if !asJSON {
		return throughCommand("/stats")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.engine.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runConfig(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: chronicle config")
	}
	resolved, err := resolveSettings()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(resolved, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
