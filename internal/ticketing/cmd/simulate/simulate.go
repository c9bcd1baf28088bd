// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/internal/purchase"
	sim "github.com/innovationmech/ticketing/internal/simulate"
	"github.com/innovationmech/ticketing/internal/ticketing"
	"github.com/innovationmech/ticketing/internal/ticketing/deps"
	"github.com/innovationmech/ticketing/pkg/config"
	"github.com/innovationmech/ticketing/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// ErrOversold is returned when a run ends with more tickets sold or held than exist.
var ErrOversold = errors.New("simulation oversold the ticket type")

type flags struct {
	tickets            int
	buyers             int
	quantity           int
	unitPrice          int64
	declineRate        float64
	requiresActionRate float64
	confirmFailureRate float64
	latency            time.Duration
	seed               uint64
	noColor            bool
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(options *config.Options) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a concurrent on-sale against simulated order and payment services",
		Long: `Seed one ticket type and let every buyer run the purchase saga at the same time.

The order and payment services are in-process simulations with configurable
decline, requires-action and confirmation failure rates. The command fails
when the run ends with more tickets sold or held than were available.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitDevelopmentLogger()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), *options, f)
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&f.tickets, "tickets", 10, "Tickets on sale")
	fs.IntVar(&f.buyers, "buyers", 100, "Concurrent buyers")
	fs.IntVar(&f.quantity, "quantity", 1, "Tickets requested by each buyer")
	fs.Int64Var(&f.unitPrice, "unit-price", 5000, "Ticket price in cents")
	fs.Float64Var(&f.declineRate, "decline-rate", 0.1, "Fraction of payments declined")
	fs.Float64Var(&f.requiresActionRate, "requires-action-rate", 0, "Fraction of payments needing customer action")
	fs.Float64Var(&f.confirmFailureRate, "confirm-failure-rate", 0, "Fraction of order confirmations rejected")
	fs.DurationVar(&f.latency, "latency", 0, "Simulated latency of each external call")
	fs.Uint64Var(&f.seed, "seed", 1, "Seed for the simulated services")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	return cmd
}

func run(ctx context.Context, out io.Writer, options config.Options, f *flags) error {
	cfg, _, err := config.Load(options)
	if err != nil {
		return err
	}

	d, err := deps.NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	server := ticketing.NewServer(d)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if stopErr := server.Stop(shutdownCtx); stopErr != nil {
			logger.GetLogger().Warn("server shutdown failed", zap.Error(stopErr))
		}
		if closeErr := d.Close(shutdownCtx); closeErr != nil {
			logger.GetLogger().Warn("dependency shutdown failed", zap.Error(closeErr))
		}
	}()
	if err := server.Start(ctx); err != nil {
		return err
	}
	if addr := server.MetricsAddr(); addr != "" {
		logger.GetLogger().Info("metrics endpoint listening", zap.String("addr", addr))
	}

	orders := sim.NewOrderBook(f.confirmFailureRate, f.latency, f.seed)
	payments := sim.NewPaymentGateway(f.declineRate, f.requiresActionRate, f.latency, f.seed+1)
	service, err := d.NewPurchaseService(orders, payments)
	if err != nil {
		return err
	}

	report, err := sim.Run(ctx, &sim.Environment{
		Ledger:   d.Ledger,
		Service:  service,
		Orders:   orders,
		Payments: payments,
	}, sim.Options{
		Tickets:   f.tickets,
		Buyers:    f.buyers,
		Quantity:  f.quantity,
		UnitPrice: f.unitPrice,
	})
	if err != nil {
		return err
	}

	newPrinter(out, f.noColor).report(report)
	if report.Oversold() {
		return ErrOversold
	}
	return nil
}

type printer struct {
	out     io.Writer
	title   *color.Color
	success *color.Color
	warning *color.Color
	failure *color.Color
}

func newPrinter(out io.Writer, noColor bool) *printer {
	p := &printer{
		out:     out,
		title:   color.New(color.FgCyan, color.Bold),
		success: color.New(color.FgGreen, color.Bold),
		warning: color.New(color.FgYellow, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.title, p.success, p.warning, p.failure} {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) report(r *sim.Report) {
	a := r.Availability
	p.title.Fprintf(p.out, "Simulated on-sale: %d buyers x %d ticket(s), %d available\n",
		r.Options.Buyers, r.Options.Quantity, a.QuantityAvailable)

	fmt.Fprintln(p.out)
	p.title.Fprintln(p.out, "Purchases")
	p.success.Fprintf(p.out, "  %-18s %d\n", "succeeded", r.Outcomes[purchase.ResultSuccess])
	p.warning.Fprintf(p.out, "  %-18s %d\n", "requires action", r.Outcomes[purchase.ResultRequiresAction])
	p.failure.Fprintf(p.out, "  %-18s %d\n", "failed", r.Outcomes[purchase.ResultFailed])
	for _, step := range sortedKeys(r.Failures) {
		fmt.Fprintf(p.out, "    at %-15s %d\n", step, r.Failures[step])
	}

	fmt.Fprintln(p.out)
	p.title.Fprintln(p.out, "Inventory")
	fmt.Fprintf(p.out, "  %-18s %d\n", "sold", a.QuantitySold)
	fmt.Fprintf(p.out, "  %-18s %d\n", "held", a.ActiveHeld)
	fmt.Fprintf(p.out, "  %-18s %d\n", "available now", a.AvailableNow)

	fmt.Fprintln(p.out)
	p.title.Fprintln(p.out, "Orders")
	for _, status := range []purchase.OrderStatus{purchase.OrderConfirmed, purchase.OrderPending, purchase.OrderCancelled} {
		fmt.Fprintf(p.out, "  %-18s %d\n", status, r.Orders[status])
	}
	fmt.Fprintf(p.out, "  %-18s %d\n", "refunds", r.Refunds)
	fmt.Fprintf(p.out, "  %-18s %s\n", "captured", formatCents(r.Captured))

	fmt.Fprintln(p.out)
	if r.Oversold() {
		p.failure.Fprintln(p.out, "oversold: yes")
	} else {
		p.success.Fprintln(p.out, "oversold: no")
	}
	fmt.Fprintf(p.out, "completed in %s\n", r.Duration.Round(time.Millisecond))
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
