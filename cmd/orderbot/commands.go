package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rxtech-lab/argo-orderbot/internal/config"
	"github.com/rxtech-lab/argo-orderbot/internal/execution"
	"github.com/rxtech-lab/argo-orderbot/internal/types"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/urfave/cli/v3"
)

// positionalArgs returns the command arguments, checking their count.
func positionalArgs(cmd *cli.Command, required, optional int) ([]string, error) {
	args := cmd.Args().Slice()
	if len(args) < required || len(args) > required+optional {
		return nil, errors.NewValidationErrorf("arguments", strings.Join(args, " "),
			"usage: %s %s", cmd.Name, cmd.ArgsUsage)
	}

	// Pad missing optional arguments so callers can index freely.
	for len(args) < required+optional {
		args = append(args, "")
	}

	return args, nil
}

func (a *application) marketCommand() *cli.Command {
	return &cli.Command{
		Name:      "market",
		Usage:     "Place a market order",
		ArgsUsage: "SYMBOL SIDE QTY",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positionalArgs(cmd, 3, 0)
			if err != nil {
				return err
			}

			return a.placeOrder(ctx, cmd, execution.RawOrder{
				Symbol:            args[0],
				Side:              args[1],
				Kind:              string(types.OrderKindMarket),
				Quantity:          args[2],
				Price:             "",
				StopPrice:         "",
				TimeInForce:       "",
				QuantityPrecision: 0,
			})
		},
	}
}

func (a *application) limitCommand() *cli.Command {
	return &cli.Command{
		Name:      "limit",
		Usage:     "Place a limit order",
		ArgsUsage: "SYMBOL SIDE QTY PRICE [TIF]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positionalArgs(cmd, 4, 1)
			if err != nil {
				return err
			}

			return a.placeOrder(ctx, cmd, execution.RawOrder{
				Symbol:            args[0],
				Side:              args[1],
				Kind:              string(types.OrderKindLimit),
				Quantity:          args[2],
				Price:             args[3],
				StopPrice:         "",
				TimeInForce:       args[4],
				QuantityPrecision: 0,
			})
		},
	}
}

func (a *application) stopLimitCommand() *cli.Command {
	return &cli.Command{
		Name:      "stop-limit",
		Aliases:   []string{"stoplimit"},
		Usage:     "Place a stop-limit order",
		ArgsUsage: "SYMBOL SIDE QTY STOP_PRICE LIMIT_PRICE [TIF]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positionalArgs(cmd, 5, 1)
			if err != nil {
				return err
			}

			return a.placeOrder(ctx, cmd, execution.RawOrder{
				Symbol:            args[0],
				Side:              args[1],
				Kind:              string(types.OrderKindStopLimit),
				Quantity:          args[2],
				Price:             args[4],
				StopPrice:         args[3],
				TimeInForce:       args[5],
				QuantityPrecision: 0,
			})
		},
	}
}

func (a *application) placeOrder(ctx context.Context, cmd *cli.Command, raw execution.RawOrder) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	raw.QuantityPrecision = cfg.QuantityPrecision()

	order, err := execution.ParseOrder(raw)
	if err != nil {
		return err
	}

	s, err := a.openSession(cfg, execution.Callbacks{})
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := s.engine.PlaceOrder(ctx, order)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, renderResult(result))

	return nil
}

func (a *application) ocoCommand() *cli.Command {
	return &cli.Command{
		Name:      "oco",
		Usage:     "Place a take-profit / stop-loss pair where one fill cancels the other",
		ArgsUsage: "SYMBOL SIDE QTY TAKE_PROFIT STOP_LOSS",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running until one leg fills and the other is canceled",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positionalArgs(cmd, 5, 0)
			if err != nil {
				return err
			}

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			request, err := execution.ParseOCO(execution.RawOCO{
				Symbol:            args[0],
				Side:              args[1],
				Quantity:          args[2],
				TakeProfit:        args[3],
				StopLoss:          args[4],
				QuantityPrecision: cfg.QuantityPrecision(),
			})
			if err != nil {
				return err
			}

			onStateChange := execution.OnOCOStateChangeCallback(func(pair types.OCOPair) {
				fmt.Fprintln(a.stdout, renderOCOState(pair))
			})

			s, err := a.openSession(cfg, execution.Callbacks{OnSlice: nil, OnOCOStateChange: &onStateChange})
			if err != nil {
				return err
			}
			defer s.Close()

			pair, err := s.engine.PlaceOCO(ctx, request)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, renderOCO(*pair))

			if !cmd.Bool("watch") {
				return nil
			}

			if err := s.engine.WatchOCO(ctx, pair); err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, renderResult(execution.FromOCO(pair)))

			return nil
		},
	}
}

func (a *application) twapCommand() *cli.Command {
	return &cli.Command{
		Name:      "twap",
		Usage:     "Split an order into equal slices placed at a fixed interval",
		ArgsUsage: "SYMBOL SIDE TOTAL_QTY NUM_ORDERS INTERVAL [ORDER_TYPE]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "limit-price",
				Usage: "Fixed limit price for LIMIT slices",
			},
			&cli.StringFlag{
				Name:  "price-offset",
				Usage: "Offset from the market price for LIMIT slices",
			},
			&cli.StringFlag{
				Name:  "tif",
				Usage: "Time in force for LIMIT slices (GTC, IOC, FOK)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positionalArgs(cmd, 5, 1)
			if err != nil {
				return err
			}

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			plan, err := execution.ParseTWAP(execution.RawTWAP{
				Symbol:            args[0],
				Side:              args[1],
				TotalQuantity:     args[2],
				NumOrders:         args[3],
				Interval:          args[4],
				OrderKind:         args[5],
				LimitPrice:        cmd.String("limit-price"),
				PriceOffset:       cmd.String("price-offset"),
				TimeInForce:       cmd.String("tif"),
				QuantityPrecision: cfg.QuantityPrecision(),
			})
			if err != nil {
				return err
			}

			progress := newSliceProgress(a.stderr, plan)
			onSlice := execution.OnSliceCallback(progress.OnSlice)

			s, err := a.openSession(cfg, execution.Callbacks{OnSlice: &onSlice, OnOCOStateChange: nil})
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.engine.ExecuteTWAP(ctx, plan)
			progress.Finish()

			if result.ID != "" {
				fmt.Fprintln(a.stdout, renderResult(result))
			}

			return err
		},
	}
}

func (a *application) gridCommand() *cli.Command {
	return &cli.Command{
		Name:      "grid",
		Usage:     "Place a ladder of limit orders around the market price",
		ArgsUsage: "SYMBOL LOWER UPPER LEVELS QTY_PER_LEVEL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "tif",
				Usage: "Time in force of the grid orders (GTC, IOC, FOK)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args, err := positionalArgs(cmd, 5, 0)
			if err != nil {
				return err
			}

			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			plan, err := execution.ParseGrid(execution.RawGrid{
				Symbol:            args[0],
				Lower:             args[1],
				Upper:             args[2],
				Levels:            args[3],
				QuantityPerLevel:  args[4],
				TimeInForce:       cmd.String("tif"),
				QuantityPrecision: cfg.QuantityPrecision(),
				PricePrecision:    cfg.PricePrecision(),
			})
			if err != nil {
				return err
			}

			s, err := a.openSession(cfg, execution.Callbacks{})
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.engine.BuildGrid(ctx, plan)
			if result.ID != "" {
				fmt.Fprintln(a.stdout, renderResult(result))
			}

			return err
		},
	}
}

func (a *application) configSchemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "config-schema",
		Usage: "Print the JSON schema of the config file",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "sample",
				Usage: "Print a sample YAML config instead",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Bool("sample") {
				sample, err := config.SampleYAML()
				if err != nil {
					return err
				}

				_, err = a.stdout.Write(sample)

				return err
			}

			schemaJSON, err := config.GenerateSchemaJSON()
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to generate config schema", err)
			}

			fmt.Fprintln(a.stdout, schemaJSON)

			return nil
		},
	}
}
