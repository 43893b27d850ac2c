package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/bizlinkmz/bizlink-go/internal/likes"
	"github.com/bizlinkmz/bizlink-go/internal/session"
	"github.com/bizlinkmz/bizlink-go/pkg/config"
)

// runLike toggles the like on one entity and prints the reconciled state.
func runLike(cfg *config.Config, out io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: bizlink like <type> <id>")
	}
	entityID, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid id: %s", args[1])
	}

	s := session.New(cfg)
	defer s.Close()

	counter := likes.NewCounter(s.API, args[0], entityID)
	if err := counter.Load(context.Background()); err != nil {
		return err
	}
	if err := counter.Toggle(context.Background()); err != nil {
		return fmt.Errorf("%s: %w", __("failed to like"), err)
	}

	state := counter.State()
	label := "Gostou"
	if !state.IsLiked {
		label = "Removido"
	}
	fmt.Fprintf(out, "%s  %s/%d  %d\n", label, args[0], entityID, state.LikesCount)
	return nil
}
