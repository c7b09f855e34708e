package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardpointe-client/internal/config"
	"cardpointe-client/internal/logger"
	"cardpointe-client/internal/metrics"
	"cardpointe-client/internal/payment"
	"cardpointe-client/internal/sandbox"
	"cardpointe-client/internal/tracing"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/leekchan/accounting"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cast"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const (
	sandboxMerchantID = "800000050032"
	sandboxUsername   = "testuser"
	sandboxPassword   = "testpass"
)

var money = accounting.Accounting{Symbol: "$", Precision: 2}

func main() {
	useSandbox := flag.Bool("sandbox", false, "run against an in-process gateway instead of CARDPOINTE_API_URL")
	voidAuth := flag.Bool("void", false, "void the authorization instead of capturing it")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *useSandbox, *voidAuth); err != nil {
		logger.L().Error("Demo failed", zap.Error(err))
		logger.Sync()
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}
	logger.Sync()
}

func run(ctx context.Context, useSandbox, voidAuth bool) error {
	cfg, loadErr := config.LoadConfig()

	appEnv, logLevel, metricsAddr := "", "", ""
	if cfg != nil {
		appEnv, logLevel, metricsAddr = cfg.AppEnv, cfg.LogLevel, cfg.MetricsAddr
	}

	if err := logger.Init(appEnv, logLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer zap.ReplaceGlobals(logger.L())()

	gwCfg, err := gatewayConfig(logger.L(), cfg, loadErr, useSandbox)
	if err != nil {
		return err
	}

	if useSandbox {
		srv := sandbox.New(gwCfg.MerchantID, gwCfg.AuthHeader)
		defer srv.Close()
		gwCfg.BaseURL = srv.URL
		logger.L().Info("Using in-process sandbox gateway", zap.String("url", srv.URL))
	}

	reg := prometheus.NewRegistry()
	gwMetrics := metrics.NewGatewayMetrics("cardpointe", reg)
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, reg)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	gw, err := payment.NewCardPointeGateway(gwCfg,
		payment.WithTransport(tracing.NewTransport(&logger.RequestIDTransport{}, tp)),
		payment.WithObserver(logger.NewGatewayObserver(nil)),
		payment.WithObserver(gwMetrics),
	)
	if err != nil {
		return err
	}

	return runDemo(logger.WithNewRequestID(ctx), gw, voidAuth)
}

// gatewayConfig picks the client settings. Outside sandbox mode a config
// error is fatal; in sandbox mode it is logged and the built-in sandbox
// credentials are used.
func gatewayConfig(log *zap.Logger, cfg *config.Config, loadErr error, useSandbox bool) (payment.GatewayConfig, error) {
	if loadErr != nil {
		if !useSandbox {
			return payment.GatewayConfig{}, loadErr
		}
		log.Warn("Ignoring invalid config, using sandbox credentials", zap.Error(loadErr))
	}

	var gwCfg payment.GatewayConfig
	if cfg != nil {
		gwCfg = cfg.Gateway()
	}
	if useSandbox && gwCfg.MerchantID == "" {
		gwCfg.MerchantID = sandboxMerchantID
		gwCfg.AuthHeader = config.BasicAuthHeader(sandboxUsername, sandboxPassword)
	}
	return gwCfg, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.L().Info("Serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.L().Error("Metrics server stopped", zap.Error(err))
	}
}

func runDemo(ctx context.Context, gw payment.Gateway, voidAuth bool) error {
	fmt.Println("CardPointe Gateway: L2/L3 transaction demo")

	// STEP 1: line items
	items := []payment.LineItem{
		{
			LineNo:      "1",
			Description: "Premium Widget",
			Quantity:    "2",
			UOM:         "each",
			UnitCost:    "10.00",
			NetAmount:   "20.00",
			TaxAmount:   "1.80",
			DiscAmount:  payment.Some("0.00"),
		},
		{
			LineNo:      "2",
			Description: "Deluxe Gadget",
			Quantity:    "1",
			UOM:         "each",
			UnitCost:    "15.00",
			NetAmount:   "15.00",
			TaxAmount:   "1.35",
			DiscAmount:  payment.Some("0.00"),
		},
	}

	fmt.Println("\nLine items:")
	var subtotal, tax int64
	for _, it := range items {
		fmt.Printf("  - %s: %s x %s = %s (tax: %s)\n",
			it.Description, it.Quantity, money.FormatMoney(cast.ToFloat64(it.UnitCost)),
			money.FormatMoney(cast.ToFloat64(it.NetAmount)), money.FormatMoney(cast.ToFloat64(it.TaxAmount)))
		subtotal += toCents(it.NetAmount)
		tax += toCents(it.TaxAmount)
	}
	total := subtotal + tax

	fmt.Printf("\n  Subtotal: %s\n", money.FormatMoney(fromCents(subtotal)))
	fmt.Printf("  Tax:      %s\n", money.FormatMoney(fromCents(tax)))
	fmt.Printf("  Total:    %s\n", money.FormatMoney(fromCents(total)))

	// STEP 2: authorize only, capture follows
	auth, err := gw.Authorize(ctx, payment.AuthorizationRequest{
		Amount:    amountString(total),
		Account:   payment.Some("4111111111111111"),
		Expiry:    payment.Some("1227"),
		CVV2:      payment.Some("123"),
		Capture:   payment.Some("N"),
		OrderID:   payment.Some("ORDER-" + uuid.NewString()[:8]),
		PONumber:  payment.Some("PO-2026-00123"),
		TaxAmount: payment.Some(amountString(tax)),
		ShipToZip: payment.Some("19106"),
		OrderDate: payment.Some(time.Now().Format("20060102")),
		Items:     items,
		Name:      payment.Some("Test Customer"),
		Address:   payment.Some("123 Test Street"),
		City:      payment.Some("Philadelphia"),
		Region:    payment.Some("PA"),
		Postal:    payment.Some("19106"),
		Country:   payment.Some("US"),
		Email:     payment.Some("test@example.com"),
		Phone:     payment.Some("5551234567"),
	})
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}

	fmt.Println("\nAuthorization:")
	fmt.Printf("  Status:          %s\n", auth.RespStat)
	fmt.Printf("  Response code:   %s\n", auth.RespCode)
	fmt.Printf("  Response text:   %s\n", auth.RespText)
	fmt.Printf("  Auth code:       %s\n", orNA(auth.AuthCode))
	fmt.Printf("  Reference #:     %s\n", auth.RetRef)
	fmt.Printf("  Token:           %s\n", auth.Token)
	fmt.Printf("  Amount:          %s\n", money.FormatMoney(cast.ToFloat64(auth.Amount)))
	fmt.Printf("  Masked account:  %s\n", auth.Account)
	fmt.Printf("  Commercial card: %s\n", orNA(auth.CommCard))
	fmt.Printf("  CVV response:    %s\n", orNA(auth.CVVResp))
	fmt.Printf("  AVS response:    %s\n", orNA(auth.AVSResp))

	if !auth.Approved() {
		fmt.Println("\nAuthorization was not approved, nothing to settle.")
		return nil
	}

	// STEP 3: status before settlement
	if err := printStatus(ctx, gw, auth.RetRef); err != nil {
		return err
	}

	// STEP 4: capture the full authorized amount, or release the hold
	if voidAuth {
		v, err := gw.Void(ctx, auth.RetRef)
		if err != nil {
			return fmt.Errorf("void: %w", err)
		}
		fmt.Println("\nVoid:")
		fmt.Printf("  Status:          %s\n", v.RespStat)
		fmt.Printf("  Response text:   %s\n", v.RespText)
		fmt.Printf("  Amount:          %s\n", money.FormatMoney(cast.ToFloat64(v.Amount)))
	} else {
		c, err := gw.Capture(ctx, auth.RetRef, payment.None[string]())
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		fmt.Println("\nCapture:")
		fmt.Printf("  Status:          %s\n", c.RespStat)
		fmt.Printf("  Response text:   %s\n", c.RespText)
		fmt.Printf("  Amount:          %s\n", money.FormatMoney(cast.ToFloat64(c.Amount)))
		fmt.Printf("  Settlement:      %s\n", orNA(c.SetlStat))
	}

	// STEP 5: status after settlement
	if err := printStatus(ctx, gw, auth.RetRef); err != nil {
		return err
	}

	fmt.Println("\nDemo complete.")
	return nil
}

func printStatus(ctx context.Context, gw payment.Gateway, retref string) error {
	inq, err := gw.Inquire(ctx, retref)
	if err != nil {
		return fmt.Errorf("inquire: %w", err)
	}
	fmt.Println("\nTransaction status:")
	fmt.Printf("  Reference #:     %s\n", inq.RetRef)
	fmt.Printf("  Amount:          %s\n", money.FormatMoney(cast.ToFloat64(inq.Amount)))
	fmt.Printf("  Settlement:      %s\n", orNA(inq.SetlStat))
	fmt.Printf("  Captured:        %s\n", captureAge(inq.CaptureDate, time.Now()))
	fmt.Printf("  Voidable:        %s\n", orNA(inq.Voidable))
	fmt.Printf("  Refundable:      %s\n", orNA(inq.Refundable))
	return nil
}

func toCents(amount string) int64 {
	return int64(math.Round(cast.ToFloat64(amount) * 100))
}

func fromCents(cents int64) float64 {
	return float64(cents) / 100
}

func amountString(cents int64) string {
	return accounting.FormatNumber(fromCents(cents), 2, "", ".")
}

// captureAge renders a gateway capture date (yyyyMMddHHmmss, local time)
// relative to now.
func captureAge(captureDate string, now time.Time) string {
	if captureDate == "" {
		return "N/A"
	}
	at, err := time.ParseInLocation("20060102150405", captureDate, time.Local)
	if err != nil {
		return captureDate
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
