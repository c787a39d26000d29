package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"suiml.io/suiml/backend"
)

func cmdData(e *env, args []string) int {
	if len(args) == 0 {
		printDataUsage(e.errOut)
		return 2
	}
	switch args[0] {
	case "datasets", "categories", "annotations", "leaderboard":
		return cmdDataList(e, args[0], args[1:])
	case "help", "-h", "--help":
		printDataUsage(e.out)
		return 0
	default:
		fmt.Fprintf(e.errOut, "unknown data subcommand: %s\n\n", args[0])
		printDataUsage(e.errOut)
		return 2
	}
}

func printDataUsage(w io.Writer) {
	fmt.Fprintln(w, "suiml data: browse the backend's labeled data")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  suiml data datasets [--page <n>] [--limit <n>] [--search <text>]")
	fmt.Fprintln(w, "  suiml data categories [--page <n>] [--limit <n>] [--search <text>]")
	fmt.Fprintln(w, "  suiml data annotations [--page <n>] [--limit <n>] [--image <id>] [--category <id>] [--status <s>] [--source <s>]")
	fmt.Fprintln(w, "  suiml data leaderboard [--page <n>] [--limit <n>]")
}

// backendForRead attaches the session token when one is live. The
// leaderboard works without it; the other listings answer 401.
func (e *env) backendForRead() *backend.Client {
	c := e.backend()
	st, err := e.session()
	if err != nil {
		return c
	}
	if sess := st.Current(); sess.LoggedIn(time.Now()) {
		return c.WithToken(sess.Token)
	}
	return c
}

func cmdDataList(e *env, what string, args []string) int {
	fs := flag.NewFlagSet("data "+what, flag.ContinueOnError)
	fs.SetOutput(e.errOut)

	var q backend.AnnotationQuery
	fs.IntVar(&q.Page, "page", 0, "Page number (server default when 0)")
	fs.IntVar(&q.Limit, "limit", 0, "Page size (server default when 0)")
	if what == "datasets" || what == "categories" {
		fs.StringVar(&q.Search, "search", "", "Search text")
	}
	if what == "annotations" {
		fs.Int64Var(&q.ImageID, "image", 0, "Image id")
		fs.Int64Var(&q.CategoryID, "category", 0, "Category id")
		fs.StringVar(&q.Status, "status", "", "Annotation status")
		fs.StringVar(&q.SourceType, "source", "", "Annotation source type")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if q.Page < 0 || q.Limit < 0 {
		fmt.Fprintln(e.errOut, "--page and --limit must not be negative")
		return 2
	}

	ctx := context.Background()
	c := e.backendForRead()
	var (
		out any
		err error
	)
	switch what {
	case "datasets":
		out, err = c.Datasets(ctx, q.PageQuery)
	case "categories":
		out, err = c.Categories(ctx, q.PageQuery)
	case "annotations":
		out, err = c.Annotations(ctx, q)
	case "leaderboard":
		out, err = c.Leaderboard(ctx, q.PageQuery)
	}
	if err != nil {
		return e.fail(what, err)
	}
	return e.printJSON(out)
}
