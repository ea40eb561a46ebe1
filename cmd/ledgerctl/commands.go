package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	appcashier "github.com/erp/ledger/internal/application/cashier"
	appinv "github.com/erp/ledger/internal/application/inventory"
	appsale "github.com/erp/ledger/internal/application/sale"
	"github.com/erp/ledger/internal/domain/cashier"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errDivergence marks a command that completed but found stock levels
// diverging from their movement logs
var errDivergence = errors.New("stock divergence found")

// command is one ledgerctl subcommand. It parses its own flags from args.
type command func(ctx context.Context, a *app, args []string, out io.Writer) error

var commands = map[string]command{
	"apply":       cmdApply,
	"verify":      cmdVerify,
	"repair":      cmdRepair,
	"sweep":       cmdSweep,
	"checkout":    cmdCheckout,
	"sale":        cmdSale,
	"account":     cmdAccount,
	"shift":       cmdShift,
	"close-shift": cmdCloseShift,
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// uuidFlag is a flag.Value holding a required or optional UUID
type uuidFlag struct {
	id  uuid.UUID
	set bool
}

func (f *uuidFlag) String() string {
	if !f.set {
		return ""
	}
	return f.id.String()
}

func (f *uuidFlag) Set(s string) error {
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	f.id, f.set = id, true
	return nil
}

// timeFlag is a flag.Value holding an RFC 3339 timestamp
type timeFlag struct {
	t   time.Time
	set bool
}

func (f *timeFlag) String() string {
	if !f.set {
		return ""
	}
	return f.t.Format(time.RFC3339)
}

func (f *timeFlag) Set(s string) error {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	f.t, f.set = t.UTC(), true
	return nil
}

func (f *timeFlag) ptr() *time.Time {
	if !f.set {
		return nil
	}
	t := f.t
	return &t
}

func newFlagSet(name string) (*flag.FlagSet, *uuidFlag) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	tenant := &uuidFlag{}
	fs.Var(tenant, "tenant", "tenant id (required)")
	return fs, tenant
}

func parseFlags(fs *flag.FlagSet, args []string, required map[string]*uuidFlag) error {
	if err := fs.Parse(args); err != nil {
		return usageError{fmt.Errorf("%s: %w", fs.Name(), err)}
	}
	for name, f := range required {
		if !f.set {
			return usageError{fmt.Errorf("%s: -%s is required", fs.Name(), name)}
		}
	}
	return nil
}

// usageError is a malformed command line
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func cmdApply(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs, tenant := newFlagSet("apply")
	var product, location, user uuidFlag
	var at timeFlag
	fs.Var(&product, "product", "product id")
	fs.Var(&location, "location", "location id")
	fs.Var(&user, "user", "user recording the movement")
	fs.Var(&at, "at", "occurrence time (RFC 3339)")
	qty := fs.Int64("qty", 0, "signed quantity change")
	movementType := fs.String("type", "", "PURCHASE, SALE, RETURN, ADJUSTMENT, TRANSFER_IN or TRANSFER_OUT")
	ref := fs.String("ref", "", "reference id")
	reason := fs.String("reason", "", "reason")
	if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant, "product": &product, "location": &location}); err != nil {
		return err
	}

	resp, err := a.stock.ApplyMovement(ctx, tenant.id, appinv.ApplyMovementRequest{
		ProductID:      product.id,
		LocationID:     location.id,
		QuantityChange: *qty,
		MovementType:   strings.ToUpper(*movementType),
		ReferenceID:    *ref,
		UserID:         user.id,
		Reason:         *reason,
		OccurredAt:     at.ptr(),
	})
	if err != nil {
		return err
	}
	return writeJSON(out, resp)
}

func cmdVerify(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs, tenant := newFlagSet("verify")
	var product, location uuidFlag
	fs.Var(&product, "product", "product id")
	fs.Var(&location, "location", "location id")
	if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant, "product": &product, "location": &location}); err != nil {
		return err
	}

	report, err := a.stock.VerifyBalance(ctx, tenant.id, product.id, location.id)
	if report != nil {
		if werr := writeJSON(out, report); werr != nil {
			return werr
		}
	}
	if errors.Is(err, shared.ErrDataIntegrityDivergence) {
		return errDivergence
	}
	return err
}

func cmdRepair(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs, tenant := newFlagSet("repair")
	var product, location, user uuidFlag
	fs.Var(&product, "product", "product id")
	fs.Var(&location, "location", "location id")
	fs.Var(&user, "user", "user authorising the repair")
	reason := fs.String("reason", "", "why the log is being corrected")
	if err := parseFlags(fs, args, map[string]*uuidFlag{
		"tenant": tenant, "product": &product, "location": &location, "user": &user,
	}); err != nil {
		return err
	}

	result, err := a.stock.RepairBalance(ctx, tenant.id, appinv.RepairBalanceRequest{
		ProductID:  product.id,
		LocationID: location.id,
		UserID:     user.id,
		Reason:     *reason,
	})
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

// cmdSweep verifies every pair of the given tenants once, or on the
// configured schedule with -cron until interrupted
func cmdSweep(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	tenantList := fs.String("tenants", "", "comma separated tenant ids (default scheduler.tenants)")
	useCron := fs.Bool("cron", false, "keep running and sweep on scheduler.integrity_cron")
	if err := fs.Parse(args); err != nil {
		return usageError{fmt.Errorf("sweep: %w", err)}
	}

	ids := a.cfg.Scheduler.Tenants
	if *tenantList != "" {
		ids = strings.Split(*tenantList, ",")
	}
	tenants, err := scheduler.ParseTenants(ids)
	if err != nil {
		return usageError{err}
	}
	if len(tenants) == 0 {
		return usageError{errors.New("sweep: no tenants given")}
	}

	sched, err := scheduler.NewIntegrityScheduler(scheduler.Config{
		Cron:       a.cfg.Scheduler.IntegrityCron,
		JobTimeout: a.cfg.Scheduler.JobTimeout,
	}, a.stock, tenants, a.log)
	if err != nil {
		return err
	}

	if !*useCron {
		run, err := sched.RunOnce(ctx)
		if err != nil {
			return err
		}
		if err := writeJSON(out, run); err != nil {
			return err
		}
		if run.Divergent() > 0 {
			return errDivergence
		}
		if len(run.Failures) > 0 {
			return fmt.Errorf("sweep failed for %d tenant(s)", len(run.Failures))
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	prof := a.cfg.Profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           prof.Enabled,
		ServerAddress:     prof.ServerAddress,
		ApplicationName:   prof.ApplicationName,
		BasicAuthUser:     prof.BasicAuthUser,
		BasicAuthPassword: prof.BasicAuthPassword,
		ProfileTypes:      prof.ProfileTypes,
	}, a.log)
	if err != nil {
		return err
	}
	defer func() { _ = profiler.Stop(context.Background()) }()
	if prof.SpanProfiles && profiler.IsEnabled() && !a.telemetry.EnableSpanProfiles() {
		a.log.Warn("Span profiles need telemetry.enabled")
	}

	sched.OnRun(func(run *scheduler.SweepRun) {
		if err := writeJSON(out, run); err != nil {
			a.log.Warn("Failed to write sweep run", zap.Error(err))
		}
	})
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.log.Info("Integrity sweep scheduled",
		zap.String("cron", a.cfg.Scheduler.IntegrityCron),
		zap.Time("next", sched.Next(time.Now())),
		zap.Int("tenants", len(tenants)),
	)

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Scheduler.JobTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

func cmdCheckout(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs, tenant := newFlagSet("checkout")
	file := fs.String("file", "-", "checkout request JSON, - for stdin")
	if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant}); err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var req appsale.CheckoutRequest
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return fmt.Errorf("%w: decode checkout request: %v", shared.ErrInvalidInput, err)
	}

	resp, err := a.checkout.Checkout(ctx, tenant.id, req)
	if err != nil {
		return err
	}
	return writeJSON(out, resp)
}

// cmdSale reads back completed sales: "sale get" or "sale list"
func cmdSale(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError{errors.New("sale: expected get or list")}
	}
	switch args[0] {
	case "get":
		fs, tenant := newFlagSet("sale get")
		var id uuidFlag
		fs.Var(&id, "id", "sale id")
		if err := parseFlags(fs, args[1:], map[string]*uuidFlag{"tenant": tenant, "id": &id}); err != nil {
			return err
		}
		resp, err := a.checkout.GetSale(ctx, tenant.id, id.id)
		if err != nil {
			return err
		}
		return writeJSON(out, resp)
	case "list":
		fs, tenant := newFlagSet("sale list")
		filter := shared.Filter{OrderBy: "completed_at", OrderDir: "desc"}
		fs.IntVar(&filter.Page, "page", 1, "page number")
		fs.IntVar(&filter.PageSize, "size", 20, "page size")
		if err := parseFlags(fs, args[1:], map[string]*uuidFlag{"tenant": tenant}); err != nil {
			return err
		}
		resp, err := a.checkout.ListSales(ctx, tenant.id, filter)
		if err != nil {
			return err
		}
		return writeJSON(out, resp)
	default:
		return usageError{fmt.Errorf("sale: unknown subcommand %q", args[0])}
	}
}

// cmdAccount manages cash accounts: "account create|get|income|expense"
func cmdAccount(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError{errors.New("account: expected create, get, income or expense")}
	}
	sub, args := args[0], args[1:]
	fs, tenant := newFlagSet("account " + sub)
	var account, user uuidFlag
	var at timeFlag
	var resp any
	var err error

	switch sub {
	case "create":
		var location uuidFlag
		fs.Var(&location, "location", "location the drawer belongs to")
		name := fs.String("name", "", "account name")
		initial := fs.String("initial", "0", "initial balance")
		if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant, "location": &location}); err != nil {
			return err
		}
		resp, err = a.accounts.CreateAccount(ctx, tenant.id, appcashier.CreateAccountRequest{
			LocationID:     location.id,
			Name:           *name,
			InitialBalance: *initial,
		})
	case "get":
		fs.Var(&account, "account", "account id")
		if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant, "account": &account}); err != nil {
			return err
		}
		resp, err = a.accounts.GetAccount(ctx, tenant.id, account.id)
	case "income":
		fs.Var(&account, "account", "account id")
		fs.Var(&user, "user", "user recording the income")
		fs.Var(&at, "at", "time received (RFC 3339)")
		amount := fs.String("amount", "", "amount")
		description := fs.String("description", "", "description")
		if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant, "account": &account}); err != nil {
			return err
		}
		resp, err = a.accounts.RecordIncome(ctx, tenant.id, appcashier.RecordIncomeRequest{
			AccountID:   account.id,
			Amount:      *amount,
			Description: *description,
			ReceivedAt:  at.ptr(),
			UserID:      user.id,
		})
	case "expense":
		fs.Var(&account, "account", "account id")
		fs.Var(&user, "user", "user recording the expense")
		fs.Var(&at, "at", "time paid (RFC 3339)")
		amount := fs.String("amount", "", "amount")
		category := fs.String("category", "", "expense category")
		description := fs.String("description", "", "description")
		if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant, "account": &account}); err != nil {
			return err
		}
		resp, err = a.accounts.RecordExpense(ctx, tenant.id, appcashier.RecordExpenseRequest{
			AccountID:   account.id,
			Amount:      *amount,
			Category:    *category,
			Description: *description,
			PaidAt:      at.ptr(),
			UserID:      user.id,
		})
	default:
		return usageError{fmt.Errorf("account: unknown subcommand %q", sub)}
	}
	if err != nil {
		return err
	}
	return writeJSON(out, resp)
}

// cmdShift opens and ends cashier shifts: "shift open|end"
func cmdShift(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError{errors.New("shift: expected open or end")}
	}
	sub, args := args[0], args[1:]
	fs, tenant := newFlagSet("shift " + sub)
	var at timeFlag
	fs.Var(&at, "at", "shift boundary (RFC 3339, default now)")

	switch sub {
	case "open":
		var account, user uuidFlag
		fs.Var(&account, "account", "account id")
		fs.Var(&user, "user", "cashier opening the shift")
		if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant, "account": &account, "user": &user}); err != nil {
			return err
		}
		resp, err := a.accounts.OpenShift(ctx, tenant.id, appcashier.OpenShiftRequest{
			AccountID: account.id,
			UserID:    user.id,
			StartTime: at.ptr(),
		})
		if err != nil {
			return err
		}
		return writeJSON(out, resp)
	case "end":
		var shift uuidFlag
		fs.Var(&shift, "shift", "shift id")
		if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant, "shift": &shift}); err != nil {
			return err
		}
		end := time.Now().UTC()
		if at.set {
			end = at.t
		}
		resp, err := a.accounts.EndShift(ctx, tenant.id, shift.id, end)
		if err != nil {
			return err
		}
		return writeJSON(out, resp)
	default:
		return usageError{fmt.Errorf("shift: unknown subcommand %q", sub)}
	}
}

// cmdCloseShift derives the closure report of an account over an explicit
// window or over a recorded shift
func cmdCloseShift(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs, tenant := newFlagSet("close-shift")
	var account, shift uuidFlag
	var from, to timeFlag
	fs.Var(&account, "account", "account id (with -from and -to)")
	fs.Var(&shift, "shift", "shift id, instead of -account/-from/-to")
	fs.Var(&from, "from", "window start (RFC 3339)")
	fs.Var(&to, "to", "window end, exclusive (RFC 3339)")
	counted := fs.String("counted", "", "physically counted cash, reported with its discrepancy")
	if err := parseFlags(fs, args, map[string]*uuidFlag{"tenant": tenant}); err != nil {
		return err
	}

	var report *cashier.ClosureReport
	var err error
	switch {
	case shift.set:
		report, err = a.closure.CloseShiftByID(ctx, tenant.id, shift.id)
	case account.set && from.set && to.set:
		report, err = a.closure.CloseShift(ctx, tenant.id, account.id, from.t, to.t)
	default:
		return usageError{errors.New("close-shift: give -shift or -account with -from and -to")}
	}
	if err != nil {
		return err
	}

	if *counted != "" {
		cash, err := a.moneyCtx.Parse(*counted)
		if err != nil {
			return fmt.Errorf("counted: %w", err)
		}
		report = report.WithCountedCash(cash)
	}
	return writeJSON(out, report)
}
