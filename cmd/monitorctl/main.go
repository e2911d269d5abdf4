// Command monitorctl manages owners and targets in the web monitor database
// and can run a single check by hand.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"sjsage522/webmonitor/config"
	"sjsage522/webmonitor/helpers"
	"sjsage522/webmonitor/internal"
	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/logger"
	"sjsage522/webmonitor/services/store"

	"github.com/joho/godotenv"
)

const usage = `usage: monitorctl <command> [flags]

commands:
  register -email ADDR [-token CHAT_ID]
  add      -email ADDR -url URL -keywords "a,b" [-min N] [-max N] [-render] [-check]
  list     [-email ADDR]
  history  -id N
  toggle   -id N
  delete   -id N
  check    -id N
`

func main() {
	godotenv.Load()
	logger.Init()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	deps, err := internal.NewDependencies(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(1)
	}
	defer deps.Cleanup()

	cli := &cli{cfg: cfg, deps: deps}
	if err := cli.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		deps.Cleanup()
		os.Exit(1)
	}
}

type cli struct {
	cfg  *config.Config
	deps *internal.Dependencies
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return c.register(ctx, args)
	case "add":
		return c.add(ctx, args)
	case "list":
		return c.list(ctx, args)
	case "history":
		return c.history(ctx, args)
	case "toggle":
		return c.toggle(ctx, args)
	case "delete":
		return c.delete(ctx, args)
	case "check":
		return c.check(ctx, args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "owner email")
	token := fs.String("token", "", "push device token (telegram chat id)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	owner, err := c.deps.Store.RegisterOwner(ctx, *email)
	if err != nil {
		return err
	}
	if *token != "" {
		if err := c.deps.Store.SetDeviceToken(ctx, owner.ID, *token); err != nil {
			return err
		}
	}
	fmt.Printf("owner %d registered (%s)\n", owner.ID, owner.Email)
	return nil
}

func (c *cli) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	email := fs.String("email", "", "owner email")
	rawURL := fs.String("url", "", "page to monitor")
	keywords := fs.String("keywords", "", "comma separated keywords, all must appear")
	minPrice := fs.String("min", "", "minimum price in EUR")
	maxPrice := fs.String("max", "", "maximum price in EUR")
	render := fs.Bool("render", false, "render the page in a browser")
	checkNow := fs.Bool("check", false, "check the target right away")
	if err := fs.Parse(args); err != nil {
		return err
	}

	priceMin, err := parseBound(*minPrice)
	if err != nil {
		return fmt.Errorf("-min: %w", err)
	}
	priceMax, err := parseBound(*maxPrice)
	if err != nil {
		return fmt.Errorf("-max: %w", err)
	}

	owner, err := c.deps.Store.RegisterOwner(ctx, *email)
	if err != nil {
		return err
	}

	target, err := c.deps.Store.CreateTarget(ctx, store.NewTarget{
		OwnerID:  owner.ID,
		URL:      *rawURL,
		Keywords: *keywords,
		PriceMin: priceMin,
		PriceMax: priceMax,
		Render:   *render,
	})
	if err != nil {
		return err
	}
	fmt.Printf("target %d created: %s [%s]\n", target.ID, target.URL, strings.Join(target.Keywords, ", "))

	if *checkNow {
		return c.runCheck(ctx, *target)
	}
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	email := fs.String("email", "", "only targets of this owner")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var ownerID int64
	if *email != "" {
		owner, err := c.deps.Store.FindOwner(ctx, *email)
		if stderrors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no owner registered as %s", *email)
		}
		if err != nil {
			return err
		}
		ownerID = owner.ID
	}

	targets, err := c.deps.Store.ListTargets(ctx, ownerID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTIVE\tSTATUS\tURL\tKEYWORDS\tPRICE\tLAST CHECK")
	for _, t := range targets {
		fmt.Fprintf(w, "%d\t%v\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Active, statusLine(t), t.URL, strings.Join(t.Keywords, ","),
			boundsLine(t.PriceMin, t.PriceMax), timeLine(t.LastCheckedAt))
	}
	return w.Flush()
}

func (c *cli) history(ctx context.Context, args []string) error {
	id, err := parseID("history", args)
	if err != nil {
		return err
	}

	entries, err := c.deps.Store.ListHistory(ctx, id, 0)
	if err != nil {
		return err
	}
	for _, e := range entries {
		price := ""
		if e.MatchedPrice != nil {
			price = " for " + monitor.FormatPrice(*e.MatchedPrice) + " €"
		}
		fmt.Printf("%s  %s%s\n", e.CreatedAt.Local().Format(time.DateTime), e.MatchedText, price)
	}
	return nil
}

func (c *cli) toggle(ctx context.Context, args []string) error {
	id, err := parseID("toggle", args)
	if err != nil {
		return err
	}

	target, err := c.deps.Store.ToggleTarget(ctx, id)
	if err != nil {
		return err
	}
	state := "paused"
	if target.Active {
		state = "active"
	}
	fmt.Printf("target %d is %s\n", target.ID, state)
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	id, err := parseID("delete", args)
	if err != nil {
		return err
	}

	if err := c.deps.Store.DeleteTarget(ctx, id); err != nil {
		return err
	}
	fmt.Printf("target %d deleted\n", id)
	return nil
}

func (c *cli) check(ctx context.Context, args []string) error {
	id, err := parseID("check", args)
	if err != nil {
		return err
	}

	target, err := c.deps.Store.GetTarget(ctx, id)
	if err != nil {
		return err
	}
	return c.runCheck(ctx, *target)
}

func (c *cli) runCheck(ctx context.Context, target monitor.Target) error {
	checker := c.deps.NewChecker(c.cfg, helpers.NewLogger(c.cfg.ErrorLogFile))

	outcome := checker.CheckTarget(ctx, target)
	if outcome.Err != nil {
		return outcome.Err
	}

	fmt.Printf("matched=%v fired=%v notified=%v keywords=[%s]",
		outcome.Matched, outcome.Fired, outcome.Notified, strings.Join(outcome.Evidence.MatchedKeywords, ", "))
	if outcome.Evidence.MatchedPrice != nil {
		fmt.Printf(" price=%s €", monitor.FormatPrice(*outcome.Evidence.MatchedPrice))
	}
	fmt.Println()
	return nil
}

func parseID(name string, args []string) (int64, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.Int64("id", 0, "target id")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if *id <= 0 {
		return 0, fmt.Errorf("-id is required")
	}
	return *id, nil
}

func parseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%q is not a price", s)
	}
	return &v, nil
}

func statusLine(t monitor.Target) string {
	if t.StatusMessage == "" {
		return t.Status
	}
	return t.Status + " (" + t.StatusMessage + ")"
}

func boundsLine(min, max *float64) string {
	switch {
	case min == nil && max == nil:
		return "-"
	case max == nil:
		return ">= " + monitor.FormatPrice(*min)
	case min == nil:
		return "<= " + monitor.FormatPrice(*max)
	default:
		return monitor.FormatPrice(*min) + "-" + monitor.FormatPrice(*max)
	}
}

func timeLine(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
