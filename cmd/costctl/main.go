// Command costctl is a CLI client for the cost tracker service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	u "github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	clientapi "costtracker/internal/client/api"
	"costtracker/internal/client/gateway"
	"costtracker/internal/client/identity"
	"costtracker/internal/client/provision"
	"costtracker/internal/client/session"
	"costtracker/internal/client/syncer"
	"costtracker/internal/model"
	"costtracker/internal/money"
)

// ---- session store ----

type sessionFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "costtracker")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "costtracker")
}

func sessionPath() string { return filepath.Join(cfgDir(), "session.json") }

func saveSession(sf sessionFile) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(sessionPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(sf)
}

func loadSession() (sessionFile, error) {
	var sf sessionFile
	b, err := os.ReadFile(sessionPath())
	if err != nil {
		return sf, errors.New("not logged in (run: costctl login)")
	}
	if err := json.Unmarshal(b, &sf); err != nil {
		return sf, err
	}
	if sf.AccessToken == "" || time.Now().After(sf.ExpiresAt) {
		return sf, errors.New("session expired (run: costctl login)")
	}
	return sf, nil
}

func clearSession() error {
	err := os.Remove(sessionPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ---- core wiring ----

// core is the assembled client: resuming the saved session drives namespace
// provisioning and the initial fetch of both collections.
type core struct {
	manager    *session.Manager
	items      *syncer.Syncer[model.CostItem, model.CostItemFields]
	otherCosts *syncer.Syncer[model.OtherCost, model.OtherCostFields]
}

func buildCore(ctx context.Context, addr string) (*core, error) {
	sf, err := loadSession()
	if err != nil {
		return nil, err
	}
	userID, err := u.FromString(sf.UserID)
	if err != nil {
		return nil, fmt.Errorf("corrupt session file: %w", err)
	}

	api := clientapi.New(addr, 30*time.Second)
	idc := identity.NewClient(api)
	m := session.NewManager(idc, provision.New(api), zap.NewNop())
	items := syncer.ForItems(gateway.NewItems(api), m, nil)
	otherCosts := syncer.ForOtherCosts(gateway.NewOtherCosts(api), m, nil)
	m.Track(items, otherCosts)
	m.Start(ctx)

	idc.Resume(identity.Identity{UserID: userID, Email: sf.Email, DisplayName: sf.DisplayName}, sf.AccessToken)

	if state, serr := m.State(); state == session.StateErrored {
		fmt.Fprintf(os.Stderr, "warning: namespace provisioning failed: %v\n", serr)
	}
	return &core{manager: m, items: items, otherCosts: otherCosts}, nil
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `costctl
Usage:
  costctl -addr URL <cmd> [args]

Commands:
  version
  register   -e <email> -p <password> [-n <display name>]
  login      -e <email> -p <password>              (saves session)
  logout
  items      list | add -name N -cost C | edit -id ID -name N -cost C | rm -id ID
  costs      list | add -desc D -amount A | edit -id ID -desc D -amount A | rm -id ID
  total
  retry                                            (re-run provisioning)
`)
	os.Exit(2)
}

type itemRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cost string `json:"cost"`
}

type costRow struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func itemRows(entries []model.CostItem) []itemRow {
	rows := []itemRow{}
	for _, e := range entries {
		rows = append(rows, itemRow{ID: e.ID.String(), Name: e.Name, Cost: e.Cost.String()})
	}
	return rows
}

func costRows(entries []model.OtherCost) []costRow {
	rows := []costRow{}
	for _, e := range entries {
		rows = append(rows, costRow{ID: e.ID.String(), Description: e.Description, Amount: e.Amount.String()})
	}
	return rows
}

func parseID(s string) u.UUID {
	id, err := u.FromString(s)
	if err != nil {
		fail(fmt.Errorf("bad id %q: %w", s, err))
	}
	return id
}

func parseMoney(s string) money.Cents {
	c, err := money.ParseCents(s)
	if err != nil {
		fail(err)
	}
	return c
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands over the assembled client core.
func main() {
	addr := flag.String("addr", envOr("CT_ADDR", "http://localhost:8443"), "server base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("costctl %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		email := fs.String("e", "", "email")
		pass := fs.String("p", "", "password")
		name := fs.String("n", "", "display name")
		_ = fs.Parse(flag.Args()[1:])
		if *email == "" || *pass == "" {
			fmt.Fprintln(os.Stderr, "need -e and -p")
			os.Exit(1)
		}

		idc := identity.NewClient(clientapi.New(*addr, 30*time.Second))
		id, err := idc.Register(ctx, *email, *pass, *name)
		if err != nil {
			fail(err)
		}
		fmt.Println(id)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("e", "", "email")
		pass := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *email == "" || *pass == "" {
			fmt.Fprintln(os.Stderr, "need -e and -p")
			os.Exit(1)
		}

		api := clientapi.New(*addr, 30*time.Second)
		idc := identity.NewClient(api)
		id, err := idc.Login(ctx, *email, *pass)
		if err != nil {
			fail(err)
		}
		if err := saveSession(sessionFile{
			AccessToken: api.Token(),
			ExpiresAt:   idc.Expiry(),
			UserID:      id.UserID.String(),
			Email:       id.Email,
			DisplayName: id.DisplayName,
		}); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "logout":
		if err := clearSession(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "items":
		if flag.NArg() < 2 {
			usage()
		}
		c, err := buildCore(ctx, *addr)
		if err != nil {
			fail(err)
		}
		switch flag.Arg(1) {
		case "list":
			printJSON(itemRows(c.items.Projection().Entries))
		case "add":
			fs := flag.NewFlagSet("items add", flag.ExitOnError)
			name := fs.String("name", "", "item name")
			cost := fs.String("cost", "", "item cost, e.g. 12.99")
			_ = fs.Parse(flag.Args()[2:])
			rec, err := c.items.Add(ctx, model.CostItemFields{Name: *name, Cost: parseMoney(*cost)})
			if err != nil {
				fail(err)
			}
			fmt.Println(rec.ID)
		case "edit":
			fs := flag.NewFlagSet("items edit", flag.ExitOnError)
			id := fs.String("id", "", "item id")
			name := fs.String("name", "", "item name")
			cost := fs.String("cost", "", "item cost")
			_ = fs.Parse(flag.Args()[2:])
			if err := c.items.Update(ctx, parseID(*id), model.CostItemFields{Name: *name, Cost: parseMoney(*cost)}); err != nil {
				fail(err)
			}
			fmt.Println("ok")
		case "rm":
			fs := flag.NewFlagSet("items rm", flag.ExitOnError)
			id := fs.String("id", "", "item id")
			_ = fs.Parse(flag.Args()[2:])
			if err := c.items.Delete(ctx, parseID(*id)); err != nil {
				fail(err)
			}
			fmt.Println("ok")
		default:
			usage()
		}

	case "costs":
		if flag.NArg() < 2 {
			usage()
		}
		c, err := buildCore(ctx, *addr)
		if err != nil {
			fail(err)
		}
		switch flag.Arg(1) {
		case "list":
			printJSON(costRows(c.otherCosts.Projection().Entries))
		case "add":
			fs := flag.NewFlagSet("costs add", flag.ExitOnError)
			desc := fs.String("desc", "", "cost description")
			amount := fs.String("amount", "", "cost amount, e.g. 99.50")
			_ = fs.Parse(flag.Args()[2:])
			rec, err := c.otherCosts.Add(ctx, model.OtherCostFields{Description: *desc, Amount: parseMoney(*amount)})
			if err != nil {
				fail(err)
			}
			fmt.Println(rec.ID)
		case "edit":
			fs := flag.NewFlagSet("costs edit", flag.ExitOnError)
			id := fs.String("id", "", "cost id")
			desc := fs.String("desc", "", "cost description")
			amount := fs.String("amount", "", "cost amount")
			_ = fs.Parse(flag.Args()[2:])
			if err := c.otherCosts.Update(ctx, parseID(*id), model.OtherCostFields{Description: *desc, Amount: parseMoney(*amount)}); err != nil {
				fail(err)
			}
			fmt.Println("ok")
		case "rm":
			fs := flag.NewFlagSet("costs rm", flag.ExitOnError)
			id := fs.String("id", "", "cost id")
			_ = fs.Parse(flag.Args()[2:])
			if err := c.otherCosts.Delete(ctx, parseID(*id)); err != nil {
				fail(err)
			}
			fmt.Println("ok")
		default:
			usage()
		}

	case "total":
		c, err := buildCore(ctx, *addr)
		if err != nil {
			fail(err)
		}
		t := syncer.Totals(c.items.Projection(), c.otherCosts.Projection())
		printJSON(map[string]string{
			"items":       t.Items.String(),
			"other_costs": t.OtherCosts.String(),
			"grand":       t.Grand.String(),
		})

	case "retry":
		c, err := buildCore(ctx, *addr)
		if err != nil {
			fail(err)
		}
		if err := c.manager.RetryProvisioning(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	default:
		usage()
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
