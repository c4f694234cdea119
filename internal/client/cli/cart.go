package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/tradeclub/internal/client/models"
)

// parseKey reads "<product> [size|-|size=<v>]" from the front of args and
// returns the remaining arguments. With numericTail set, a bare number after
// the product is left for the caller (a quantity), so numeric sizes need the
// size= form there.
func parseKey(args []string, numericTail bool) (models.ItemKey, []string, error) {
	if len(args) == 0 || args[0] == "" {
		return models.ItemKey{}, nil, errors.New("product id is required")
	}
	key := models.ItemKey{ProductID: args[0]}
	rest := args[1:]
	if len(rest) == 0 {
		return key, rest, nil
	}

	tok := rest[0]
	switch {
	case strings.HasPrefix(tok, "size="):
		if v := strings.TrimPrefix(tok, "size="); v != "" && v != "-" {
			key.Size = models.Size(v)
		}
	case tok == "-":
	case numericTail && isNumber(tok):
		return key, rest, nil
	default:
		key.Size = models.Size(tok)
	}
	return key, rest[1:], nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// parseLineItem reads "<product> [size|-|size=<v>] [qty] [price] [name..]".
func parseLineItem(args []string) (models.LineItem, error) {
	key, rest, err := parseKey(args, true)
	if err != nil {
		return models.LineItem{}, err
	}
	item := models.LineItem{ProductID: key.ProductID, Size: key.Size, Quantity: 1}

	if len(rest) > 0 {
		if item.Quantity, err = strconv.Atoi(rest[0]); err != nil {
			return models.LineItem{}, fmt.Errorf("invalid quantity %q", rest[0])
		}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		if item.UnitPrice, err = strconv.ParseFloat(rest[0], 64); err != nil || item.UnitPrice < 0 {
			return models.LineItem{}, fmt.Errorf("invalid price %q", rest[0])
		}
		rest = rest[1:]
	}
	item.Name = strings.Join(rest, " ")
	if item.Name == "" {
		item.Name = item.ProductID
	}
	return item, nil
}

func (a *App) AddToCart(ctx context.Context, args []string) error {
	item, err := parseLineItem(args)
	if err != nil {
		return fmt.Errorf("%w\nusage: add <product> [size|-|size=<v>] [qty] [price] [name]", err)
	}
	return a.cart.Add(ctx, item)
}

func (a *App) RemoveFromCart(ctx context.Context, args []string) error {
	key, rest, err := parseKey(args, false)
	if err == nil && len(rest) > 0 {
		err = fmt.Errorf("unexpected argument %q", rest[0])
	}
	if err != nil {
		return fmt.Errorf("%w\nusage: remove <product> [size|-]", err)
	}
	return a.cart.Remove(ctx, key)
}

// UpdateQuantity accepts only positive quantities; the store itself does
// not validate them. With three arguments the middle one is always the size.
func (a *App) UpdateQuantity(ctx context.Context, args []string) error {
	key, rest, err := parseKey(args, len(args) < 3)
	if err == nil && len(rest) != 1 {
		err = errors.New("quantity is required")
	}
	if err != nil {
		return fmt.Errorf("%w\nusage: qty <product> [size|-] <n>", err)
	}
	qty, err := strconv.Atoi(rest[0])
	if err != nil || qty <= 0 {
		return fmt.Errorf("quantity must be a positive integer, got %q", rest[0])
	}
	return a.cart.UpdateQuantity(ctx, key, qty)
}

func (a *App) ShowCart(_ context.Context) error {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Cart is empty")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\n", it.Key(), it.Name, it.Quantity, it.UnitPrice, it.Subtotal())
	}
	fmt.Fprintf(tw, "\t\t%d\t\t%.2f\n", a.cart.Count(), a.cart.Total())
	return tw.Flush()
}

func (a *App) ClearCart(ctx context.Context) error {
	return a.cart.Clear(ctx)
}
