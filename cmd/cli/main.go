package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caixaflow/ledger/internal/access"
	"github.com/caixaflow/ledger/internal/balance"
	"github.com/caixaflow/ledger/internal/domain"
	"github.com/caixaflow/ledger/internal/gateway"
	"github.com/caixaflow/ledger/internal/logger"
	"github.com/caixaflow/ledger/internal/session"
	"github.com/caixaflow/ledger/internal/store"
	"github.com/caixaflow/ledger/internal/syncer"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		runSync(log)
	case "balance":
		runBalance(log)
	case "series":
		runSeries(log)
	case "add":
		runAdd(log)
	case "whoami":
		runWhoami(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Caixaflow Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  ledger <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  sync      Fetch the remote snapshot and print a summary")
	fmt.Println("  balance   Print balances per establishment")
	fmt.Println("  series    Print the 7-day Entrada/Saída series")
	fmt.Println("  add       Record a transaction")
	fmt.Println("  whoami    Show the stored session and resolved role")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nSet WEBAPP_ENDPOINT (or SHEET_ID) and sign in via 'whoami -email'.")
}

// bootstrap builds an orchestrator from the environment and runs the
// login sync with the persisted identity.
func bootstrap(ctx context.Context, log zerolog.Logger) (*syncer.Orchestrator, *session.Manager) {
	var gw gateway.Client
	if endpoint := os.Getenv("WEBAPP_ENDPOINT"); endpoint != "" {
		gw = gateway.NewWebAppClient(endpoint, logger.Component(log, "gateway"))
	} else if sheetID := os.Getenv("SHEET_ID"); sheetID != "" {
		sheetsGW, err := gateway.NewSheetsClient(ctx, sheetID, logger.Component(log, "gateway"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Sheets gateway")
		}
		gw = sheetsGW
	}

	dir, err := session.DefaultDir()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve session directory")
	}
	sessions, err := session.NewManager(dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}

	orch := syncer.New(gw, store.New(), access.NewGate(), logger.Component(log, "syncer"))
	if profile, err := sessions.LoadProfile(); err == nil && profile != nil {
		orch.SetActor(profile.Email)
	}

	if err := orch.TriggerSync(ctx); err != nil {
		log.Warn().Err(err).Msg("Sync failed, showing cached/empty state")
	}
	return orch, sessions
}

func runSync(log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	orch, _ := bootstrap(ctx, log)
	st := orch.Store()

	fmt.Printf("Status: %s (failed: %v)\n", orch.Status(), orch.SyncFailed())
	fmt.Printf("Authorization: %s", orch.Gate().State())
	if orch.Gate().Authorized() {
		fmt.Printf(" (%s)", orch.Gate().Role())
	}
	fmt.Println()
	fmt.Printf("Establishments: %d, transactions: %d, users: %d\n",
		len(st.Establishments()), len(st.Transactions()), len(st.Users()))
	if !st.LastSync().IsZero() {
		fmt.Printf("Last sync: %s\n", st.LastSync().Format(time.RFC3339))
	}
}

func runBalance(log zerolog.Logger) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	ids := fs.String("ids", "", "Comma-separated establishment ids (default: each one, plus the total)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	orch, _ := bootstrap(ctx, log)
	txs := orch.Store().Transactions()

	if *ids != "" {
		set := balance.IDSet(strings.Split(*ids, ","))
		fmt.Printf("Balance: %s\n", balance.Sum(txs, set).StringFixed(2))
		return
	}

	for _, est := range orch.Store().Establishments() {
		total := balance.Sum(txs, balance.IDSet([]string{est.ID}))
		fmt.Printf("%-30s %12s\n", est.Name, total.StringFixed(2))
	}
	fmt.Printf("%-30s %12s\n", "TOTAL", balance.SumAll(txs).StringFixed(2))
}

func runSeries(log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	orch, _ := bootstrap(ctx, log)

	for _, day := range balance.WeeklySeries(orch.Store().Transactions(), time.Now()) {
		fmt.Printf("%s  entrada %12s  saída %12s\n", day.Date, day.In.StringFixed(2), day.Out.StringFixed(2))
	}
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	establishment := fs.String("establishment", "", "Establishment id")
	direction := fs.String("type", string(domain.DirectionIn), "Entrada or Saída")
	amountStr := fs.String("amount", "", "Amount (non-negative)")
	description := fs.String("description", "", "Description")
	date := fs.String("date", "", "Business date (defaults to today)")
	fs.Parse(os.Args[2:])

	if *establishment == "" || *amountStr == "" || *description == "" {
		log.Fatal().Msg("Usage: ledger add -establishment ID -amount N -description TEXT [-type Entrada|Saída] [-date YYYY-MM-DD]")
	}

	amount, err := decimal.NewFromString(*amountStr)
	if err != nil || amount.Sign() < 0 {
		log.Fatal().Str("amount", *amountStr).Msg("Amount must be a non-negative number")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	orch, _ := bootstrap(ctx, log)

	applied := orch.AddTransaction(ctx, domain.Transaction{
		EstablishmentID: *establishment,
		Direction:       domain.Direction(*direction),
		Amount:          amount,
		Description:     *description,
		Date:            *date,
	})
	if !applied {
		log.Fatal().Str("role", string(orch.Gate().Role())).Msg("Transaction not applied (check your role)")
	}
	fmt.Println("Transaction recorded.")
}

func runWhoami(log zerolog.Logger) {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	email := fs.String("email", "", "Sign in as this email (persisted)")
	logout := fs.Bool("logout", false, "Clear the stored session")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dir, err := session.DefaultDir()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve session directory")
	}
	sessions, err := session.NewManager(dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}

	if *logout {
		if err := sessions.ClearProfile(); err != nil {
			log.Fatal().Err(err).Msg("Failed to clear session")
		}
		fmt.Println("Signed out.")
		return
	}
	if *email != "" {
		if err := sessions.SaveProfile(domain.UserProfile{Email: *email}); err != nil {
			log.Fatal().Err(err).Msg("Failed to persist session")
		}
	}

	orch, _ := bootstrap(ctx, log)
	profile, _ := sessions.LoadProfile()
	if profile == nil {
		fmt.Println("Not signed in. Use 'ledger whoami -email you@example.com'.")
		return
	}
	fmt.Printf("Signed in as %s\n", profile.Email)
	fmt.Printf("Authorization: %s", orch.Gate().State())
	if orch.Gate().Authorized() {
		fmt.Printf(" (%s)", orch.Gate().Role())
	}
	fmt.Println()
}
