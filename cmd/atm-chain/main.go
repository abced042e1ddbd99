package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/chain"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/logger"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/policy"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/report"
	"github.com/birddograbbit/magic8-companion-ndx-fix/internal/session"
)

func main() {
	symbolsFlag := flag.String("symbols", "SPX", "comma-separated canonical symbols")
	dte := flag.Int("dte", 0, "days to expiry (0 = same-day)")
	policyPath := flag.String("policy", "", "optional YAML overlay for the symbol policy tables")
	reportDir := flag.String("report-dir", "out", "directory for chain.json / chain.csv")
	verbosity := flag.Int("v", 1, "log verbosity: 0=error 1=info 2=debug 3=trace")
	enrichOI := flag.Bool("oi", true, "enrich records with open interest")
	rest := flag.Bool("rest", false, "run as REST server (accept chain requests)")
	port := flag.String("port", ":8080", "REST server listen address")
	flag.Parse()

	logger.SetVerbosity(*verbosity)

	if err := godotenv.Load(); err != nil {
		logger.Debugf("no .env file loaded: %v", err)
	}

	table := policy.Default()
	if *policyPath != "" {
		var err error
		table, err = policy.Load(*policyPath)
		if err != nil {
			log.Fatalf("loading policy: %v", err)
		}
	}

	// choose session backend
	var sess session.Session
	apiKey := os.Getenv("MARKET_API_KEY")
	if apiKey != "" {
		sess = session.NewWebSession(apiKey)
	} else {
		sess = session.NewSyntheticSession()
		logger.Infof("MARKET_API_KEY not set, synthetic session enabled")
	}

	var enricher chain.Enricher = chain.NopEnricher{}
	if *enrichOI {
		enricher = chain.SnapshotEnricher{Sess: sess}
	}

	assembler := chain.NewAssembler(sess, table, enricher)

	if *rest {
		r := mux.NewRouter()
		r.HandleFunc("/chain", func(w http.ResponseWriter, req *http.Request) {
			symbols := splitSymbols(req.URL.Query().Get("symbols"))
			if len(symbols) == 0 {
				http.Error(w, "missing symbols parameter", http.StatusBadRequest)
				return
			}
			days := 0
			if v := req.URL.Query().Get("dte"); v != "" {
				parsed, err := strconv.Atoi(v)
				if err != nil {
					http.Error(w, "invalid dte parameter", http.StatusBadRequest)
					return
				}
				days = parsed
			}

			records, err := assembler.BuildChain(req.Context(), symbols, days)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(records)
		}).Methods(http.MethodGet)
		r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}).Methods(http.MethodGet)

		logger.Infof("starting REST server on %s", *port)
		log.Fatal(http.ListenAndServe(*port, r))
		return
	}

	start := time.Now()
	records, err := assembler.BuildChain(context.Background(), splitSymbols(*symbolsFlag), *dte)
	if err != nil {
		log.Fatalf("chain assembly failed: %v", err)
	}

	if err := os.MkdirAll(*reportDir, 0755); err != nil {
		log.Fatalf("could not create report dir %s: %v", *reportDir, err)
	}
	if err := report.WriteJSON(records, *reportDir); err != nil {
		logger.Errorf("writing JSON report: %v", err)
	}
	if err := report.WriteCSV(records, *reportDir); err != nil {
		logger.Errorf("writing CSV report: %v", err)
	}
	logger.Infof("finished in %v, wrote %d records to %s", time.Since(start), len(records), *reportDir)
}

func splitSymbols(raw string) []string {
	out := []string{}
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
