package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"agentville.ai/internal/sim/inputs"
)

func inputsCmd(args []string) {
	fs := flag.NewFlagSet("inputs", flag.ExitOnError)
	dbPath := fs.String("db", "./data/agentville.sqlite", "sqlite path")
	engineID := fs.String("engine", "engine_1", "engine id")
	after := fs.Int64("after", 0, "print inputs numbered above this")
	limit := fs.Int("limit", 100, "max inputs")
	pending := fs.Bool("pending", false, "only inputs without a result")
	_ = fs.Parse(args)

	db := openDB(*dbPath)
	defer db.Close()
	if err := printInputs(context.Background(), os.Stdout, db.Inputs(), *engineID, *after, *limit, *pending); err != nil {
		fail("inputs", err)
	}
}

func printInputs(ctx context.Context, out io.Writer, src inputs.Log, engineID string, after int64, limit int, pendingOnly bool) error {
	list, err := src.After(ctx, engineID, after, limit)
	if err != nil {
		return err
	}
	for _, in := range list {
		status := "pending"
		if in.Result != nil {
			status = "ok"
			if in.Result.Failed() {
				status = in.Result.Code + " " + in.Result.Error
			}
		}
		if pendingOnly && in.Result != nil {
			continue
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", in.Number, in.Name, string(in.Args), status)
	}
	return nil
}
