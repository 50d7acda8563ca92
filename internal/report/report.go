package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"order-router/internal/routing/domain/models"

	"github.com/olekukonko/tablewriter"
)

// StatsSource is satisfied by services.OrderService.
type StatsSource interface {
	Stats(ctx context.Context, storeID string) (models.OrderStats, error)
	StoreStats(ctx context.Context) ([]models.StoreStats, error)
}

// Write renders the status table and, unless scoped to one store, the
// per store table.
func Write(ctx context.Context, w io.Writer, src StatsSource, storeID string) error {
	stats, err := src.Stats(ctx, storeID)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	title := "All orders"
	if storeID != "" {
		title = "Orders of store " + storeID
	}
	fmt.Fprintln(w, title)
	if err := statusTable(w, stats); err != nil {
		return err
	}
	if storeID != "" {
		return nil
	}

	perStore, err := src.StoreStats(ctx)
	if err != nil {
		return fmt.Errorf("load store stats: %w", err)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Orders per store")
	return storeTable(w, perStore)
}

func statusTable(w io.Writer, s models.OrderStats) error {
	table := tablewriter.NewWriter(w)
	table.Header("Status", "Orders")

	rows := [][]string{
		{models.StatusPending, strconv.Itoa(s.Pending)},
		{models.StatusAssigned, strconv.Itoa(s.Assigned)},
		{models.StatusDelivered, strconv.Itoa(s.Delivered)},
		{models.StatusReturned, strconv.Itoa(s.Returned)},
		{"total", strconv.Itoa(s.Total)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	return table.Render()
}

func storeTable(w io.Writer, stores []models.StoreStats) error {
	table := tablewriter.NewWriter(w)
	table.Header("Store", "Assigned", "Delivered", "Returned", "Total")

	for _, s := range stores {
		row := []string{
			s.StoreName,
			strconv.Itoa(s.Assigned),
			strconv.Itoa(s.Delivered),
			strconv.Itoa(s.Returned),
			strconv.Itoa(s.Total),
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	return table.Render()
}
