package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quotegate/quotegate/internal/approval"
	approvalsql "github.com/quotegate/quotegate/internal/approval/sqlstore"
	"github.com/quotegate/quotegate/internal/audit"
	"github.com/quotegate/quotegate/internal/audit/pgstore"
	auditsql "github.com/quotegate/quotegate/internal/audit/sqlstore"
	"github.com/quotegate/quotegate/internal/config"
	"github.com/quotegate/quotegate/internal/dataset"
	"github.com/quotegate/quotegate/internal/engine"
	"github.com/quotegate/quotegate/pkg/types"
)

const defaultConfigPath = "quotegate.yaml"

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "quote":
		return handleQuote(args[2:], stdout, stderr)
	case "dataset":
		return handleDataset(args[2:], stdout, stderr)
	case "approval":
		return handleApproval(args[2:], stdout, stderr)
	case "audit":
		return handleAudit(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

// app holds everything a subcommand needs, wired once from config.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	auditLog *audit.Logger
	closers  []func() error
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("component", "cli").Logger()

	a := &app{cfg: cfg, log: logger}
	if err := a.openAudit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openAudit() error {
	var store audit.Store
	switch a.cfg.AuditDB.Driver {
	case "", "memory":
		store = audit.NewMemStore()
	case "sqlite":
		s, err := auditsql.OpenSQLite(a.cfg.AuditDB.DSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, s.Close)
		store = s
	case "postgres":
		s, err := pgstore.OpenPostgres(a.cfg.AuditDB.DSN)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, s.Close)
		store = s
	default:
		return fmt.Errorf("unknown audit_db.driver: %s", a.cfg.AuditDB.Driver)
	}
	a.auditLog = audit.NewLogger(store, a.cfg.ReasonRequired...)
	return nil
}

func (a *app) openApprovalStore() (approval.Store, error) {
	switch a.cfg.ApprovalDB.Driver {
	case "", "memory":
		return approval.NewMemStore(), nil
	case "sqlite":
		s, err := approvalsql.OpenSQLite(a.cfg.ApprovalDB.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown approval_db.driver: %s", a.cfg.ApprovalDB.Driver)
	}
}

func (a *app) approvalService() (*approval.Service, error) {
	signer, err := approval.NewTokenSigner([]byte(a.cfg.Approval.SigningSecret), a.cfg.Approval.TokenTTL())
	if err != nil {
		return nil, err
	}
	store, err := a.openApprovalStore()
	if err != nil {
		return nil, err
	}
	return approval.NewService(store, a.auditLog, signer, a.cfg.Approval.BaseURL, a.log), nil
}

func (a *app) datasetStore() (*dataset.Store, error) {
	return dataset.NewStore(a.cfg.DataRoot, a.auditLog, a.log)
}

func (a *app) close() {
	for _, fn := range a.closers {
		_ = fn()
	}
}

func handleQuote(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", envOrDefault("QUOTEGATE_CONFIG", defaultConfigPath), "config file path")
	quoteID := fs.String("quote-id", "", "quote id (generated when empty)")
	actor := fs.String("actor", envOrDefault("QUOTEGATE_ACTOR", "cli"), "acting user")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "quote requires <input.json>")
		fs.Usage()
		return 2
	}

	raw, err := os.ReadFile(fs.Arg(0)) // #nosec G304
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	var input types.QuoteInput
	if err := json.Unmarshal(raw, &input); err != nil {
		fmt.Fprintln(stderr, "invalid quote input:", err)
		return 1
	}

	a, err := newApp(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer a.close()

	loader, err := engine.NewLoader(a.cfg.RulesetPath, a.log)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	store, err := a.datasetStore()
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	bundle, err := store.ActiveBundle()
	if err != nil {
		fmt.Fprintln(stderr, "no active dataset:", err)
		return 1
	}

	id := *quoteID
	if id == "" {
		id = "q_" + uuid.NewString()
	}
	out := loader.Get().Runner.Run(input, bundle, id, time.Now())

	if _, err := a.auditLog.Log(audit.Action{
		ActionType: audit.ActionQuoteViewed,
		Actor:      *actor,
		TargetType: "quote",
		TargetID:   id,
		QuoteID:    id,
		NewValue:   map[string]string{"status": out.Status, "total": out.Total.Amount.StringFixed(2)},
	}); err != nil {
		fmt.Fprintln(stderr, "audit:", err)
		return 1
	}

	return printJSON(stdout, stderr, out)
}

func handleDataset(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	fs := flag.NewFlagSet("dataset "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", envOrDefault("QUOTEGATE_CONFIG", defaultConfigPath), "config file path")
	actor := fs.String("actor", envOrDefault("QUOTEGATE_ACTOR", "cli"), "acting user")
	reason := fs.String("reason", "", "reason for the action (required for rollback)")
	if err := fs.Parse(args[1:]); err != nil {
		fs.Usage()
		return 2
	}

	a, err := newApp(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer a.close()

	store, err := a.datasetStore()
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	switch args[0] {
	case "upload":
		if fs.NArg() != 3 {
			fmt.Fprintln(stderr, "dataset upload requires <version> <type> <file.csv>")
			return 2
		}
		if err := store.Upload(fs.Arg(0), fs.Arg(1), fs.Arg(2), *actor); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		fmt.Fprintf(stdout, "staged %s/%s\n", fs.Arg(0), fs.Arg(1))
		return 0
	case "validate":
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "dataset validate requires <version>")
			return 2
		}
		result, err := store.Validate(fs.Arg(0), *actor)
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		if code := printJSON(stdout, stderr, result); code != 0 {
			return code
		}
		if !result.OK {
			return 1
		}
		return 0
	case "activate":
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "dataset activate requires <version>")
			return 2
		}
		if err := store.Activate(fs.Arg(0), *actor); err != nil {
			var verr *dataset.ValidationError
			if errors.As(err, &verr) {
				_ = printJSON(stdout, stderr, verr.Result)
			}
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		fmt.Fprintf(stdout, "active_version=%s\n", store.ActiveVersionID())
		return 0
	case "rollback":
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "dataset rollback requires <version>")
			return 2
		}
		if err := store.Rollback(fs.Arg(0), *actor, *reason); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		fmt.Fprintf(stdout, "active_version=%s\n", store.ActiveVersionID())
		return 0
	default:
		usage(stderr)
		return 2
	}
}

func handleApproval(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	fs := flag.NewFlagSet("approval "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", envOrDefault("QUOTEGATE_CONFIG", defaultConfigPath), "config file path")
	actor := fs.String("actor", envOrDefault("QUOTEGATE_ACTOR", "cli"), "acting user")
	quoteID := fs.String("quote", "", "quote id the override applies to")
	pct := fs.String("pct", "", "requested override discount percentage")
	reason := fs.String("reason", "", "business reason for the override")
	decision := fs.String("decision", "", "APPROVED or REJECTED")
	token := fs.String("token", "", "signed decision token")
	if err := fs.Parse(args[1:]); err != nil {
		fs.Usage()
		return 2
	}

	a, err := newApp(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer a.close()

	svc, err := a.approvalService()
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	switch args[0] {
	case "create":
		overridePct, err := decimal.NewFromString(*pct)
		if err != nil {
			fmt.Fprintln(stderr, "invalid --pct:", err)
			return 2
		}
		created, err := svc.Create(*quoteID, *actor, overridePct, *reason)
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		return printJSON(stdout, stderr, created)
	case "decide":
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "approval decide requires <approval_id>")
			return 2
		}
		rec, err := svc.Decide(fs.Arg(0), *decision, *token, *actor)
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 1
		}
		return printJSON(stdout, stderr, rec)
	default:
		usage(stderr)
		return 2
	}
}

func handleAudit(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "recent" {
		usage(stderr)
		return 2
	}

	fs := flag.NewFlagSet("audit recent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", envOrDefault("QUOTEGATE_CONFIG", defaultConfigPath), "config file path")
	limit := fs.Int("limit", 20, "maximum entries to print")
	if err := fs.Parse(args[1:]); err != nil {
		fs.Usage()
		return 2
	}

	a, err := newApp(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer a.close()

	events, err := a.auditLog.Recent(*limit)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return printJSON(stdout, stderr, events)
}

func printJSON(stdout io.Writer, stderr io.Writer, v interface{}) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(stderr, "encode output:", err)
		return 1
	}
	return 0
}

func envOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Quotegate CLI

Usage:
  quotegate quote <input.json> [--config PATH] [--quote-id ID] [--actor USER]
  quotegate dataset upload <version> <type> <file.csv> [--actor USER]
  quotegate dataset validate <version>
  quotegate dataset activate <version> [--actor USER]
  quotegate dataset rollback <version> --reason TEXT [--actor USER]
  quotegate approval create --quote ID --pct N --reason TEXT [--actor USER]
  quotegate approval decide <approval_id> --decision APPROVED|REJECTED --token TOKEN [--actor USER]
  quotegate audit recent [--limit N]
`)
}
