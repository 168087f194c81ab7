package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rodpglo1956/GloJohnStocky/internal/alpaca"
	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
)

// Broker is the brokerage surface the trading tools need. *alpaca.Client
// satisfies it; tests substitute a fake.
type Broker interface {
	PlaceOrder(ctx context.Context, req alpaca.OrderRequest) (alpaca.Order, error)
	GetAccount(ctx context.Context) (alpaca.Account, error)
	GetPositions(ctx context.Context) ([]alpaca.Position, error)
	ListOrders(ctx context.Context, status string, limit int) ([]alpaca.Order, error)
	CancelOrder(ctx context.Context, id string) error
}

// TradingTools exposes the paper-trading brokerage. Every order attempt is
// written to the trade log, whether the brokerage accepted it or not.
func TradingTools(store *storage.Store, broker Broker) []Definition {
	return []Definition{
		{
			Spec: anthropic.Tool{
				Name:        "place_order",
				Description: "Submit a paper-trading order. Market orders execute at the current price; limit and stop orders need the corresponding price.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"symbol":      strProp("Ticker symbol, e.g. AAPL."),
					"qty":         numProp("Number of shares."),
					"side":        enumProp("Order side.", "buy", "sell"),
					"type":        enumProp("Order type. Defaults to market.", "market", "limit", "stop", "stop_limit"),
					"limit_price": numProp("Limit price, required for limit and stop_limit orders."),
					"stop_price":  numProp("Stop price, required for stop and stop_limit orders."),
				}, "symbol", "qty", "side"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				symbol, err := requireString(input, "symbol")
				if err != nil {
					return "", err
				}
				symbol = strings.ToUpper(symbol)
				qty, ok := floatArg(input, "qty")
				if !ok || qty <= 0 {
					return "", fmt.Errorf("qty must be a positive number")
				}
				side, err := requireString(input, "side")
				if err != nil {
					return "", err
				}
				if side != "buy" && side != "sell" {
					return "", fmt.Errorf("side must be buy or sell")
				}
				orderType := stringArg(input, "type")
				if orderType == "" {
					orderType = "market"
				}

				req := alpaca.OrderRequest{
					Symbol:      symbol,
					Qty:         strconv.FormatFloat(qty, 'f', -1, 64),
					Side:        side,
					Type:        orderType,
					TimeInForce: "day",
				}
				if p, ok := floatArg(input, "limit_price"); ok {
					req.LimitPrice = strconv.FormatFloat(p, 'f', 2, 64)
				}
				if p, ok := floatArg(input, "stop_price"); ok {
					req.StopPrice = strconv.FormatFloat(p, 'f', 2, 64)
				}

				record := storage.TradeRecord{
					ID:        uuid.NewString(),
					Bot:       caller.Bot,
					Symbol:    symbol,
					Side:      side,
					Qty:       req.Qty,
					OrderType: orderType,
					CreatedAt: time.Now(),
				}

				order, orderErr := broker.PlaceOrder(ctx, req)
				if orderErr != nil {
					record.Status = "rejected"
					record.Error = orderErr.Error()
				} else {
					record.Status = order.Status
					record.OrderID = order.ID
				}
				if err := store.LogTrade(record); err != nil {
					return "", fmt.Errorf("recording trade: %w", err)
				}
				if orderErr != nil {
					return "", fmt.Errorf("placing order: %w", orderErr)
				}
				return fmt.Sprintf("Order %s: %s %s %s %s, status %s", order.ID, side, req.Qty, symbol, orderType, order.Status), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "get_account",
				Description: "Get the trading account snapshot: cash, equity, buying power.",
				InputSchema: objSchema(nil),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				acct, err := broker.GetAccount(ctx)
				if err != nil {
					return "", fmt.Errorf("fetching account: %w", err)
				}
				return fmt.Sprintf("Account %s (%s): cash %s, equity %s, buying power %s, portfolio value %s",
					acct.ID, acct.Status, acct.Cash, acct.Equity, acct.BuyingPower, acct.PortfolioValue), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "get_positions",
				Description: "List all open positions with entry price and unrealized profit.",
				InputSchema: objSchema(nil),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				positions, err := broker.GetPositions(ctx)
				if err != nil {
					return "", fmt.Errorf("fetching positions: %w", err)
				}
				if len(positions) == 0 {
					return "No open positions.", nil
				}
				var b strings.Builder
				for _, p := range positions {
					fmt.Fprintf(&b, "%s: %s shares %s, entry %s, now %s, unrealized P/L %s\n",
						p.Symbol, p.Qty, p.Side, p.AvgEntryPrice, p.CurrentPrice, p.UnrealizedPL)
				}
				return b.String(), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "list_orders",
				Description: "List brokerage orders by status.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"status": enumProp("Order status filter. Defaults to open.", "open", "closed", "all"),
					"limit":  numProp("Maximum orders to return. Defaults to 20."),
				}),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				orders, err := broker.ListOrders(ctx, stringArg(input, "status"), intArg(input, "limit", 20))
				if err != nil {
					return "", fmt.Errorf("listing orders: %w", err)
				}
				if len(orders) == 0 {
					return "No matching orders.", nil
				}
				var b strings.Builder
				for _, o := range orders {
					fmt.Fprintf(&b, "%s: %s %s %s %s, status %s", o.ID, o.Side, o.Qty, o.Symbol, o.Type, o.Status)
					if o.FilledQty != "" && o.FilledQty != "0" {
						fmt.Fprintf(&b, ", filled %s @ %s", o.FilledQty, o.FilledAvgPrice)
					}
					b.WriteByte('\n')
				}
				return b.String(), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "cancel_order",
				Description: "Cancel an open brokerage order by id.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"id": strProp("Order id as returned by place_order or list_orders."),
				}, "id"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				id, err := requireString(input, "id")
				if err != nil {
					return "", err
				}
				if err := broker.CancelOrder(ctx, id); err != nil {
					return "", fmt.Errorf("cancelling order: %w", err)
				}
				return fmt.Sprintf("Order %s cancelled.", id), nil
			},
		},
	}
}
